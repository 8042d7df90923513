package assign

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventOffered   EventType = "offered"
	EventAccepted  EventType = "accepted"
	EventRejected  EventType = "rejected"
	EventExpired   EventType = "expired"
	EventDiscarded EventType = "discarded"
	EventAdvanced  EventType = "advanced"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
	EventTracking  EventType = "tracking"
)

// Event describes one committed store transition.
type Event struct {
	PartnerID string    `json:"partner_id"`
	Type      EventType `json:"type"`
	Job       Job       `json:"job"`
	Tracking  *Tracking `json:"tracking,omitempty"`
	At        time.Time `json:"at"`
}

type Options struct {
	PartnerID string
	Clock     Clock
	Logger    logrus.FieldLogger
	NewID     func() string
}

// Store owns one partner's pending offer slot, active assignments and
// completed history. All mutations are serialized behind mu; timers are
// owned by the store and started or stopped only by store operations.
type Store struct {
	mu        sync.Mutex
	partnerID string
	clock     Clock
	log       logrus.FieldLogger
	newID     func() string

	pending       *Job
	offerDeadline time.Time
	offerTimer    Timer
	offerGen      uint64

	assignments []Job
	history     []Job
	retired     map[string]bool // completed or cancelled ids
	offline     bool

	trip    *trip
	tripGen uint64

	// deliverMu is taken before mu is released so subscribers observe
	// events in commit order.
	deliverMu sync.Mutex
	subMu     sync.Mutex
	subs      map[int]func(Event)
	nextSub   int
}

func NewStore(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Store{
		partnerID: opts.PartnerID,
		clock:     opts.Clock,
		log:       opts.Logger.WithField("partner_id", opts.PartnerID),
		newID:     opts.NewID,
		retired:   map[string]bool{},
		subs:      map[int]func(Event){},
	}
}

func (s *Store) PartnerID() string { return s.partnerID }

// Subscribe registers fn to be called after every committed transition.
// fn runs while the store holds its delivery lock, so it must not block
// and must not call back into the store: a slow fn stalls every
// operation on this partner.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Offer fills the pending slot and starts the accept/reject countdown.
func (s *Store) Offer(job Job) error {
	if err := validateOffer(job); err != nil {
		return err
	}

	s.mu.Lock()
	if s.offline {
		s.mu.Unlock()
		return ErrOffDuty
	}
	if s.pending != nil {
		s.mu.Unlock()
		return ErrAlreadyPending
	}
	if job.ID == "" {
		job.ID = s.newID()
	}
	if s.knows(job.ID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: duplicate id %s", ErrInvalidJob, job.ID)
	}

	now := s.clock.Now()
	j := job.clone()
	j.Status = StatusNewRequest
	j.Trail = []Status{StatusNewRequest}
	j.OfferedAt = now
	j.AcceptedAt = nil
	j.CompletedAt = nil
	j.CancelledAt = nil
	if j.Kind == KindInstant {
		j.ScheduledAt = nil
	}
	s.pending = &j

	s.stopOfferTimer()
	s.offerGen++
	gen := s.offerGen
	s.offerDeadline = now.Add(OfferTimeout)
	s.offerTimer = s.clock.AfterFunc(OfferTimeout, func() { s.expireOffer(gen) })

	s.log.WithFields(logrus.Fields{"job_id": j.ID, "kind": j.Kind}).Info("job offered")
	s.commit(Event{Type: EventOffered, Job: j.clone(), At: now})
	return nil
}

// Accept moves the pending offer into the assignment set. A conflicting
// offer is discarded, not retried.
func (s *Store) Accept() (Job, error) {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return Job{}, ErrNoPendingOffer
	}

	now := s.clock.Now()
	candidate := s.pending.clone()
	candidate.AcceptedAt = &now

	if HasConflictAt(candidate, s.assignments, now) {
		discarded := s.pending.clone()
		s.clearOffer()
		s.log.WithField("job_id", discarded.ID).Warn("job offer discarded: schedule conflict")
		s.commit(Event{Type: EventDiscarded, Job: discarded, At: now})
		return Job{}, fmt.Errorf("%w: %s", ErrConflict, discarded.ID)
	}

	candidate.Status = StatusAccepted
	candidate.Trail = append(candidate.Trail, StatusAccepted)
	s.assignments = append(s.assignments, candidate)
	s.clearOffer()

	s.log.WithField("job_id", candidate.ID).Info("job accepted")
	s.commit(Event{Type: EventAccepted, Job: candidate.clone(), At: now})
	return candidate.clone(), nil
}

// Reject clears the pending slot. It is a no-op when nothing is pending.
func (s *Store) Reject() {
	s.mu.Lock()
	s.rejectPending(EventRejected, 0)
}

func (s *Store) expireOffer(gen uint64) {
	s.mu.Lock()
	s.rejectPending(EventExpired, gen)
}

// rejectPending is the single reject path for both the caller and the
// countdown. A non-zero gen must match the current offer. Called with mu
// held; releases it.
func (s *Store) rejectPending(typ EventType, gen uint64) {
	if s.pending == nil || (gen != 0 && gen != s.offerGen) {
		s.mu.Unlock()
		return
	}
	job := s.pending.clone()
	s.clearOffer()
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "event": typ}).Info("job offer rejected")
	s.commit(Event{Type: typ, Job: job, At: s.clock.Now()})
}

// Cancel drops an assignment if it is still inside its cancellation
// window. Cancelled jobs are not added to history.
func (s *Store) Cancel(jobID string) error {
	s.mu.Lock()
	i, ok := s.indexOf(jobID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	now := s.clock.Now()
	job := s.assignments[i]
	elapsed := now.Sub(*job.AcceptedAt)
	grace := InstantCancelGrace
	if job.Kind == KindScheduled {
		grace = ScheduledCancelGrace
	}
	if elapsed > grace {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s accepted %s ago, limit %s", ErrCancellationWindowExpired, jobID, elapsed, grace)
	}

	s.assignments = append(s.assignments[:i:i], s.assignments[i+1:]...)
	s.retired[jobID] = true
	s.stopTripFor(jobID)

	job.Status = StatusCancelled
	job.Trail = append(job.Trail, StatusCancelled)
	job.CancelledAt = &now
	s.log.WithField("job_id", jobID).Info("job cancelled")
	s.commit(Event{Type: EventCancelled, Job: job.clone(), At: now})
	return nil
}

// Advance moves an assignment to the immediate successor of its current
// status. Reaching completed moves the job into history.
func (s *Store) Advance(jobID string, next Status) error {
	s.mu.Lock()
	i, ok := s.indexOf(jobID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	job := s.assignments[i]
	want, ok := job.Status.Next()
	if !ok || next != want {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, next)
	}

	now := s.clock.Now()
	if job.Status == StatusOnTheWay {
		s.stopTripFor(jobID)
	}
	job.Status = next
	job.Trail = append(job.Trail, next)

	if next == StatusCompleted {
		job.CompletedAt = &now
		s.assignments = append(s.assignments[:i:i], s.assignments[i+1:]...)
		s.history = append([]Job{job}, s.history...)
		s.retired[jobID] = true
		s.stopTripFor(jobID)
		s.log.WithFields(logrus.Fields{"job_id": jobID, "earnings": job.Earnings}).Info("job completed")
		s.commit(Event{Type: EventCompleted, Job: job.clone(), At: now})
		return nil
	}

	s.assignments[i] = job
	s.log.WithFields(logrus.Fields{"job_id": jobID, "status": next}).Debug("job advanced")
	s.commit(Event{Type: EventAdvanced, Job: job.clone(), At: now})
	return nil
}

// CanGoOffline reports whether the partner holds no active assignments.
func (s *Store) CanGoOffline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assignments) == 0
}

// GoOffline stops the store from taking offers. It refuses while any
// assignment is active; otherwise a pending offer is rejected in the same
// critical section, so nothing can be accepted once it returns true.
func (s *Store) GoOffline() bool {
	s.mu.Lock()
	if len(s.assignments) > 0 {
		s.mu.Unlock()
		return false
	}
	s.offline = true
	s.rejectPending(EventRejected, 0)
	return true
}

// GoOnline lets the store take offers again.
func (s *Store) GoOnline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = false
}

// CheckAvailability previews whether job could be accepted right now.
func (s *Store) CheckAvailability(job Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !HasConflictAt(job, s.assignments, s.clock.Now())
}

func (s *Store) Pending() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Job{}, false
	}
	return s.pending.clone(), true
}

// OfferRemaining is the time left before the pending offer auto-rejects.
func (s *Store) OfferRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return 0
	}
	d := s.offerDeadline.Sub(s.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

func (s *Store) Assignments() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.assignments)
}

// ActiveJob is the assignment the dashboard focuses on: the oldest one.
func (s *Store) ActiveJob() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.assignments) == 0 {
		return Job{}, false
	}
	return s.assignments[0].clone(), true
}

// History returns completed jobs, newest first.
func (s *Store) History() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.history)
}

// Close stops every timer the store owns.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopOfferTimer()
	s.offerGen++
	s.stopTrip()
}

func (s *Store) indexOf(jobID string) (int, bool) {
	for i, j := range s.assignments {
		if j.ID == jobID {
			return i, true
		}
	}
	return -1, false
}

// knows reports whether jobID is active or has already finished. Ids are
// never reused for a partner.
func (s *Store) knows(jobID string) bool {
	if _, ok := s.indexOf(jobID); ok {
		return true
	}
	return s.retired[jobID]
}

func (s *Store) clearOffer() {
	s.pending = nil
	s.offerDeadline = time.Time{}
	s.stopOfferTimer()
}

func (s *Store) stopOfferTimer() {
	if s.offerTimer != nil {
		s.offerTimer.Stop()
		s.offerTimer = nil
	}
}

// commit hands ev to subscribers. Called with mu held; releases it.
func (s *Store) commit(ev Event) {
	ev.PartnerID = s.partnerID
	s.deliverMu.Lock()
	s.mu.Unlock()
	defer s.deliverMu.Unlock()

	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func validateOffer(job Job) error {
	switch job.Kind {
	case KindInstant:
	case KindScheduled:
		if job.ScheduledAt == nil || job.ScheduledAt.IsZero() {
			return fmt.Errorf("%w: scheduled job without scheduled_at", ErrInvalidJob)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidJob, job.Kind)
	}
	if job.Earnings < 0 {
		return fmt.Errorf("%w: negative earnings", ErrInvalidJob)
	}
	return nil
}

func cloneAll(jobs []Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.clone())
	}
	return out
}
