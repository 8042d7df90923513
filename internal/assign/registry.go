package assign

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry hands out one Store per partner and fans every store's events
// out to the registry's subscribers.
type Registry struct {
	clock Clock
	log   logrus.FieldLogger

	mu     sync.Mutex
	stores map[string]*Store

	subMu   sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

func NewRegistry(clock Clock, log logrus.FieldLogger) *Registry {
	if clock == nil {
		clock = RealClock()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		clock:  clock,
		log:    log,
		stores: map[string]*Store{},
		subs:   map[int]func(Event){},
	}
}

// Store returns the partner's store, creating it on first use.
func (r *Registry) Store(partnerID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[partnerID]; ok {
		return s
	}
	s := NewStore(Options{PartnerID: partnerID, Clock: r.clock, Logger: r.log})
	s.Subscribe(r.dispatch)
	r.stores[partnerID] = s
	return s
}

// Subscribe registers fn for events from every partner's store. fn is
// called inside the originating store's delivery step, so it must not
// block and must not call back into any store. Hand slow work to a
// buffered queue, as history.Writer does.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

// dispatch runs under the originating store's delivery lock and holds
// subMu for reading while subscribers run.
func (r *Registry) dispatch(ev Event) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for _, fn := range r.subs {
		fn(ev)
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stores {
		s.Close()
	}
}
