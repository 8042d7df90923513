package assign

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	TripSteps    = 20
	TripInterval = time.Second
)

// Tracking is the simulated position of the partner en route to a job.
type Tracking struct {
	JobID      string  `json:"job_id"`
	Location   Coords  `json:"location"`
	DistanceKm float64 `json:"distance_km"`
	ETAMinutes int     `json:"eta_minutes"`
	Step       int     `json:"step"`
	Steps      int     `json:"steps"`
}

type trip struct {
	job      Job
	gen      uint64
	timer    Timer
	tracking Tracking
}

// StartTrip moves an accepted job to on_the_way and starts moving the
// partner towards the customer. Any trip already running is stopped.
func (s *Store) StartTrip(jobID string) error {
	s.mu.Lock()
	i, ok := s.indexOf(jobID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	job := s.assignments[i]
	if job.Status != StatusAccepted {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, StatusOnTheWay)
	}

	s.stopTrip()
	job.Status = StatusOnTheWay
	job.Trail = append(job.Trail, StatusOnTheWay)
	s.assignments[i] = job

	s.tripGen++
	t := &trip{
		job: job,
		gen: s.tripGen,
		tracking: Tracking{
			JobID:      job.ID,
			Location:   job.Details.PartnerCoords,
			DistanceKm: job.Details.DistanceKm,
			ETAMinutes: job.Details.ETAMinutes,
			Steps:      TripSteps,
		},
	}
	s.trip = t
	s.scheduleTick(t)

	s.log.WithField("job_id", jobID).Info("trip started")
	s.commit(Event{Type: EventAdvanced, Job: job.clone(), At: s.clock.Now()})
	return nil
}

// Tracking returns the current simulated position, if a trip exists.
func (s *Store) Tracking() (Tracking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trip == nil {
		return Tracking{}, false
	}
	return s.trip.tracking, true
}

func (s *Store) scheduleTick(t *trip) {
	gen := t.gen
	t.timer = s.clock.AfterFunc(TripInterval, func() { s.tick(gen) })
}

func (s *Store) tick(gen uint64) {
	s.mu.Lock()
	t := s.trip
	if t == nil || t.gen != gen {
		s.mu.Unlock()
		return
	}

	t.tracking.Step++
	t.tracking = interpolate(t.job.Details, t.tracking.Step, TripSteps)
	t.tracking.JobID = t.job.ID
	if t.tracking.Step >= TripSteps {
		t.timer = nil
		s.log.WithFields(logrus.Fields{"job_id": t.job.ID}).Debug("trip reached customer")
	} else {
		s.scheduleTick(t)
	}

	tr := t.tracking
	s.commit(Event{Type: EventTracking, Job: t.job.clone(), Tracking: &tr, At: s.clock.Now()})
}

func interpolate(d Details, step, steps int) Tracking {
	f := float64(step) / float64(steps)
	from, to := d.PartnerCoords, d.CustomerCoords
	return Tracking{
		Location: Coords{
			Latitude:  from.Latitude + (to.Latitude-from.Latitude)*f,
			Longitude: from.Longitude + (to.Longitude-from.Longitude)*f,
		},
		DistanceKm: math.Round(d.DistanceKm*(1-f)*10) / 10,
		ETAMinutes: int(math.Ceil(float64(d.ETAMinutes) * (1 - f))),
		Step:       step,
		Steps:      steps,
	}
}

func (s *Store) stopTripFor(jobID string) {
	if s.trip != nil && s.trip.job.ID == jobID {
		s.stopTrip()
	}
}

func (s *Store) stopTrip() {
	if s.trip == nil {
		return
	}
	if s.trip.timer != nil {
		s.trip.timer.Stop()
	}
	s.trip = nil
}
