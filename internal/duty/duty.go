package duty

import (
	"errors"
	"sync"
)

var ErrActiveAssignments = errors.New("cannot go offline with active assignments")

// Gate is the partner's job store as seen by the roster. GoOffline must
// refuse while assignments are active and otherwise stop new offers in the
// same step.
type Gate interface {
	GoOffline() bool
	GoOnline()
}

// Roster tracks which partners are on duty. Partners start offline.
type Roster struct {
	mu     sync.RWMutex
	online map[string]bool
}

func NewRoster() *Roster {
	return &Roster{online: map[string]bool{}}
}

func (r *Roster) Online(partnerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.online[partnerID]
}

// Set changes the partner's duty status. The gate is consulted under the
// roster lock so the roster and the store never disagree.
func (r *Roster) Set(partnerID string, online bool, gate Gate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if online {
		if gate != nil {
			gate.GoOnline()
		}
		r.online[partnerID] = true
		return nil
	}
	if gate != nil && !gate.GoOffline() {
		return ErrActiveAssignments
	}
	delete(r.online, partnerID)
	return nil
}
