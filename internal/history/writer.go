package history

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"partnerd/internal/assign"
)

type Saver interface {
	Save(ctx context.Context, rec Record) error
}

// Writer persists completed and cancelled jobs in the background. Saving
// is best-effort: a failure is retried a few times and then dropped, and
// never touches the in-memory store.
type Writer struct {
	Repo        Saver
	Log         logrus.FieldLogger
	MaxAttempts int
	Backoff     func(attempt int) time.Duration

	queue chan Record
}

func NewWriter(repo Saver, log logrus.FieldLogger, buffer int) *Writer {
	if buffer <= 0 {
		buffer = 256
	}
	return &Writer{
		Repo:        repo,
		Log:         log,
		MaxAttempts: 8,
		Backoff:     expBackoff,
		queue:       make(chan Record, buffer),
	}
}

// Handle is an assign event subscriber. It never blocks.
func (w *Writer) Handle(ev assign.Event) {
	if ev.Type != assign.EventCompleted && ev.Type != assign.EventCancelled {
		return
	}
	rec := FromJob(ev.PartnerID, ev.Job)
	select {
	case w.queue <- rec:
	default:
		w.Log.WithFields(logrus.Fields{"partner_id": rec.PartnerID, "job_id": rec.JobID}).
			Warn("history buffer full, record dropped")
	}
}

func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-w.queue:
			w.save(ctx, rec)
		}
	}
}

// Drain saves whatever is still queued once Run has returned. It stops
// when the queue is empty or ctx is done and reports how many records
// were left unsaved.
func (w *Writer) Drain(ctx context.Context) (left int) {
	for {
		if ctx.Err() != nil {
			left = len(w.queue)
			if left > 0 {
				w.Log.WithField("records", left).Warn("history drain timed out, records lost")
			}
			return left
		}
		select {
		case rec := <-w.queue:
			w.save(ctx, rec)
		default:
			return 0
		}
	}
}

func (w *Writer) save(ctx context.Context, rec Record) {
	log := w.Log.WithFields(logrus.Fields{"partner_id": rec.PartnerID, "job_id": rec.JobID, "status": rec.Status})
	for attempt := 1; ; attempt++ {
		err := w.Repo.Save(ctx, rec)
		if err == nil {
			log.Debug("history saved")
			return
		}
		if attempt >= w.MaxAttempts {
			log.WithError(err).Error("history save failed, giving up")
			return
		}
		log.WithError(err).WithField("attempt", attempt).Warn("history save failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.Backoff(attempt)):
		}
	}
}

func expBackoff(attempt int) time.Duration {
	sec := math.Min(math.Pow(2, float64(attempt)), 600)
	return time.Duration(sec) * time.Second
}
