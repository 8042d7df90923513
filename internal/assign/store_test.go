package assign

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	log := logrus.New()
	log.SetOutput(io.Discard)

	n := 0
	s := NewStore(Options{
		PartnerID: "p1",
		Clock:     clock,
		Logger:    log,
		NewID: func() string {
			n++
			return fmt.Sprintf("job-%d", n)
		},
	})
	t.Cleanup(s.Close)
	return s, clock
}

func offerAndAccept(t *testing.T, s *Store, job Job) Job {
	t.Helper()
	if err := s.Offer(job); err != nil {
		t.Fatalf("offer: %v", err)
	}
	accepted, err := s.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return accepted
}

func scheduledOffer(at time.Time) Job {
	return Job{Kind: KindScheduled, ScheduledAt: &at, Earnings: 800}
}

func instantOffer() Job {
	return Job{Kind: KindInstant, Earnings: 450}
}

func TestOfferAndAccept(t *testing.T) {
	s, clock := newTestStore(t)

	if err := s.Offer(instantOffer()); err != nil {
		t.Fatalf("offer: %v", err)
	}
	pending, ok := s.Pending()
	if !ok || pending.Status != StatusNewRequest || pending.ID != "job-1" {
		t.Fatalf("unexpected pending offer: %+v", pending)
	}

	clock.Advance(5 * time.Second)
	job, err := s.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if job.Status != StatusAccepted {
		t.Fatalf("status = %s", job.Status)
	}
	if job.AcceptedAt == nil || !job.AcceptedAt.Equal(clock.Now()) {
		t.Fatalf("accepted_at not stamped: %v", job.AcceptedAt)
	}
	if _, ok := s.Pending(); ok {
		t.Fatal("pending slot should be cleared")
	}
	if got := s.Assignments(); len(got) != 1 || got[0].ID != job.ID {
		t.Fatalf("assignments = %+v", got)
	}
	if s.CanGoOffline() {
		t.Fatal("partner with an assignment cannot go offline")
	}
	if clock.active() != 0 {
		t.Fatal("countdown timer should be stopped after accept")
	}
}

func TestSinglePendingSlot(t *testing.T) {
	s, _ := newTestStore(t)

	if err := s.Offer(instantOffer()); err != nil {
		t.Fatalf("offer: %v", err)
	}
	err := s.Offer(scheduledOffer(t0.Add(3 * time.Hour)))
	if !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("second offer err = %v, want ErrAlreadyPending", err)
	}
	pending, _ := s.Pending()
	if pending.ID != "job-1" || pending.Kind != KindInstant {
		t.Fatalf("original offer replaced: %+v", pending)
	}
}

func TestOfferValidation(t *testing.T) {
	s, _ := newTestStore(t)

	bad := []Job{
		{Kind: "express"},
		{Kind: KindScheduled},
		{Kind: KindInstant, Earnings: -1},
	}
	for _, j := range bad {
		if err := s.Offer(j); !errors.Is(err, ErrInvalidJob) {
			t.Fatalf("offer %+v err = %v, want ErrInvalidJob", j, err)
		}
	}
	if _, ok := s.Pending(); ok {
		t.Fatal("invalid offers must not fill the slot")
	}
}

func TestAcceptWithoutOffer(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := s.Accept(); !errors.Is(err, ErrNoPendingOffer) {
		t.Fatalf("err = %v, want ErrNoPendingOffer", err)
	}
}

func TestRejectIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	s.Reject()

	if err := s.Offer(instantOffer()); err != nil {
		t.Fatalf("offer: %v", err)
	}
	s.Reject()
	s.Reject()
	if _, ok := s.Pending(); ok {
		t.Fatal("reject should clear the slot")
	}
	if len(s.Assignments()) != 0 {
		t.Fatal("reject must not create an assignment")
	}
}

func TestOfferExpiresAfterCountdown(t *testing.T) {
	s, clock := newTestStore(t)

	var events []EventType
	s.Subscribe(func(ev Event) { events = append(events, ev.Type) })

	if err := s.Offer(instantOffer()); err != nil {
		t.Fatalf("offer: %v", err)
	}
	clock.Advance(10 * time.Second)
	if got := s.OfferRemaining(); got != 20*time.Second {
		t.Fatalf("remaining = %s, want 20s", got)
	}

	clock.Advance(20 * time.Second)
	if _, ok := s.Pending(); ok {
		t.Fatal("offer should auto-reject after 30s")
	}
	if s.OfferRemaining() != 0 {
		t.Fatal("no countdown without a pending offer")
	}
	if len(events) != 2 || events[0] != EventOffered || events[1] != EventExpired {
		t.Fatalf("events = %v", events)
	}
}

func TestStaleCountdownDoesNotRejectNewOffer(t *testing.T) {
	s, clock := newTestStore(t)

	if err := s.Offer(instantOffer()); err != nil {
		t.Fatalf("offer: %v", err)
	}
	clock.Advance(20 * time.Second)
	s.Reject()

	if err := s.Offer(scheduledOffer(t0.Add(4 * time.Hour))); err != nil {
		t.Fatalf("second offer: %v", err)
	}
	// first offer's deadline passes
	clock.Advance(15 * time.Second)
	if _, ok := s.Pending(); !ok {
		t.Fatal("second offer rejected by the first offer's countdown")
	}
	clock.Advance(15 * time.Second)
	if _, ok := s.Pending(); ok {
		t.Fatal("second offer should expire on its own deadline")
	}
}

func TestInstantExclusivity(t *testing.T) {
	s, clock := newTestStore(t)
	offerAndAccept(t, s, instantOffer())

	clock.Advance(4 * time.Hour)
	if err := s.Offer(instantOffer()); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if s.CheckAvailability(instantOffer()) {
		t.Fatal("preview should report a conflict")
	}
	_, err := s.Accept()
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if _, ok := s.Pending(); ok {
		t.Fatal("conflicting offer should be discarded")
	}
	if len(s.Assignments()) != 1 {
		t.Fatal("assignments changed on conflict")
	}
}

func TestScheduledAroundInstant(t *testing.T) {
	s, clock := newTestStore(t)
	now := clock.Now()
	offerAndAccept(t, s, instantOffer())

	if err := s.Offer(scheduledOffer(now.Add(30 * time.Minute))); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if _, err := s.Accept(); !errors.Is(err, ErrConflict) {
		t.Fatalf("t+30m err = %v, want ErrConflict", err)
	}

	if err := s.Offer(scheduledOffer(now.Add(90 * time.Minute))); err != nil {
		t.Fatalf("offer: %v", err)
	}
	job, err := s.Accept()
	if err != nil {
		t.Fatalf("t+90m accept: %v", err)
	}
	if job.Kind != KindScheduled || len(s.Assignments()) != 2 {
		t.Fatalf("unexpected state after accept: %+v", s.Assignments())
	}
}

func TestCancelInstantWindow(t *testing.T) {
	s, clock := newTestStore(t)

	a := offerAndAccept(t, s, instantOffer())
	clock.Advance(2*time.Minute + 59*time.Second)
	if err := s.Cancel(a.ID); err != nil {
		t.Fatalf("cancel at 2m59s: %v", err)
	}
	if len(s.Assignments()) != 0 || len(s.History()) != 0 {
		t.Fatal("cancelled job should leave assignments and skip history")
	}

	b := offerAndAccept(t, s, instantOffer())
	clock.Advance(3*time.Minute + time.Second)
	if err := s.Cancel(b.ID); !errors.Is(err, ErrCancellationWindowExpired) {
		t.Fatalf("cancel at 3m01s err = %v", err)
	}
	if len(s.Assignments()) != 1 {
		t.Fatal("failed cancel must not mutate assignments")
	}
}

func TestCancelScheduledWindow(t *testing.T) {
	s, clock := newTestStore(t)
	start := clock.Now()

	a := offerAndAccept(t, s, scheduledOffer(start.Add(5*time.Hour)))
	clock.Advance(time.Hour + 59*time.Minute)
	if err := s.Cancel(a.ID); err != nil {
		t.Fatalf("cancel at 1h59m: %v", err)
	}

	b := offerAndAccept(t, s, scheduledOffer(start.Add(8*time.Hour)))
	clock.Advance(2*time.Hour + time.Minute)
	if err := s.Cancel(b.ID); !errors.Is(err, ErrCancellationWindowExpired) {
		t.Fatalf("cancel at 2h01m err = %v", err)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Cancel("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestForwardOnlyTransitions(t *testing.T) {
	s, _ := newTestStore(t)
	job := offerAndAccept(t, s, instantOffer())

	if err := s.Advance(job.ID, StatusArrived); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("skip to arrived err = %v", err)
	}
	if err := s.Advance(job.ID, StatusAccepted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("self transition err = %v", err)
	}
	if err := s.Advance(job.ID, StatusCancelled); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("advance to cancelled err = %v", err)
	}
	if got := s.Assignments()[0].Status; got != StatusAccepted {
		t.Fatalf("status changed on failure: %s", got)
	}
}

func TestCompleteMovesJobToHistory(t *testing.T) {
	s, clock := newTestStore(t)
	job := offerAndAccept(t, s, instantOffer())

	for _, st := range []Status{StatusOnTheWay, StatusArrived, StatusInProgress} {
		clock.Advance(5 * time.Minute)
		if err := s.Advance(job.ID, st); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}
	if err := s.Advance(job.ID, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}

	hist := s.History()
	if len(hist) != 1 || hist[0].Status != StatusCompleted {
		t.Fatalf("history = %+v", hist)
	}
	if hist[0].CompletedAt == nil || !hist[0].CompletedAt.Equal(clock.Now()) {
		t.Fatalf("completed_at = %v", hist[0].CompletedAt)
	}
	if hist[0].Earnings != 450 {
		t.Fatalf("earnings changed: %d", hist[0].Earnings)
	}
	if !s.CanGoOffline() {
		t.Fatal("partner should be able to go offline after completing")
	}

	if err := s.Advance(job.ID, StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("advance after completion err = %v", err)
	}
	if err := s.Cancel(job.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel after completion err = %v", err)
	}
}

func TestReturnedJobsAreCopies(t *testing.T) {
	s, _ := newTestStore(t)
	job := offerAndAccept(t, s, instantOffer())

	*job.AcceptedAt = job.AcceptedAt.Add(-time.Hour)
	job.Earnings = 1

	stored := s.Assignments()[0]
	if stored.Earnings != 450 {
		t.Fatal("caller mutated stored earnings")
	}
	if err := s.Cancel(job.ID); err != nil {
		t.Fatalf("cancel should use the stored accepted_at: %v", err)
	}
}

func TestSubscribersSeeCommitOrder(t *testing.T) {
	s, _ := newTestStore(t)

	var got []EventType
	unsubscribe := s.Subscribe(func(ev Event) {
		if ev.PartnerID != "p1" {
			t.Errorf("partner id = %q", ev.PartnerID)
		}
		got = append(got, ev.Type)
	})

	job := offerAndAccept(t, s, instantOffer())
	if err := s.Advance(job.ID, StatusOnTheWay); err != nil {
		t.Fatal(err)
	}
	if err := s.Cancel(job.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Cancel("missing"); err == nil {
		t.Fatal("expected failure")
	}

	want := []EventType{EventOffered, EventAccepted, EventAdvanced, EventCancelled}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}

	unsubscribe()
	if err := s.Offer(instantOffer()); err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatal("unsubscribed callback still invoked")
	}
}

func TestActiveJobIsOldestAssignment(t *testing.T) {
	s, clock := newTestStore(t)
	if _, ok := s.ActiveJob(); ok {
		t.Fatal("no active job expected")
	}
	first := offerAndAccept(t, s, scheduledOffer(clock.Now().Add(3*time.Hour)))
	offerAndAccept(t, s, instantOffer())

	active, ok := s.ActiveJob()
	if !ok || active.ID != first.ID {
		t.Fatalf("active = %+v", active)
	}
}

func TestFinishedIdsAreNotReused(t *testing.T) {
	s, _ := newTestStore(t)

	done := instantOffer()
	done.ID = "x"
	offerAndAccept(t, s, done)
	for _, st := range []Status{StatusOnTheWay, StatusArrived, StatusInProgress, StatusCompleted} {
		if err := s.Advance("x", st); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}
	if err := s.Offer(done); !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("re-offer completed id err = %v, want ErrInvalidJob", err)
	}

	dropped := instantOffer()
	dropped.ID = "y"
	offerAndAccept(t, s, dropped)
	if err := s.Cancel("y"); err != nil {
		t.Fatal(err)
	}
	if err := s.Offer(dropped); !errors.Is(err, ErrInvalidJob) {
		t.Fatalf("re-offer cancelled id err = %v, want ErrInvalidJob", err)
	}

	if _, ok := s.Pending(); ok {
		t.Fatal("refused offer must not fill the slot")
	}
	if err := s.Advance("x", StatusOnTheWay); !errors.Is(err, ErrNotFound) {
		t.Fatalf("advance completed job err = %v", err)
	}
	if n := len(s.History()); n != 1 {
		t.Fatalf("history = %d entries", n)
	}
}

func TestGoOfflineRejectsPendingOffer(t *testing.T) {
	s, _ := newTestStore(t)
	var got []EventType
	s.Subscribe(func(ev Event) { got = append(got, ev.Type) })

	if err := s.Offer(instantOffer()); err != nil {
		t.Fatal(err)
	}
	if !s.GoOffline() {
		t.Fatal("no assignments, going offline should succeed")
	}
	if _, ok := s.Pending(); ok {
		t.Fatal("pending offer should be rejected when going offline")
	}
	if _, err := s.Accept(); !errors.Is(err, ErrNoPendingOffer) {
		t.Fatalf("accept after going offline err = %v", err)
	}
	if err := s.Offer(instantOffer()); !errors.Is(err, ErrOffDuty) {
		t.Fatalf("offer while offline err = %v, want ErrOffDuty", err)
	}
	if fmt.Sprint(got) != fmt.Sprint([]EventType{EventOffered, EventRejected}) {
		t.Fatalf("events = %v", got)
	}

	s.GoOnline()
	if err := s.Offer(instantOffer()); err != nil {
		t.Fatalf("offer after going online: %v", err)
	}
}

func TestGoOfflineRefusedWithAssignments(t *testing.T) {
	s, _ := newTestStore(t)
	offerAndAccept(t, s, instantOffer())

	if s.GoOffline() {
		t.Fatal("going offline must be refused while a job is active")
	}
	if err := s.Offer(scheduledOffer(time.Now().Add(5 * time.Hour))); err != nil {
		t.Fatalf("store should still take offers: %v", err)
	}
}
