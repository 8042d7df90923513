package assign

import "errors"

var (
	ErrAlreadyPending            = errors.New("a job request is already pending")
	ErrNoPendingOffer            = errors.New("no pending job request")
	ErrConflict                  = errors.New("job overlaps an existing assignment")
	ErrNotFound                  = errors.New("job not found")
	ErrCancellationWindowExpired = errors.New("cancellation window expired")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrInvalidJob                = errors.New("invalid job")
	ErrOffDuty                   = errors.New("partner is off duty")
)

// Code returns a stable machine-readable name for a store error, or
// "internal" for anything the store does not produce.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyPending):
		return "already_pending"
	case errors.Is(err, ErrNoPendingOffer):
		return "no_pending_offer"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCancellationWindowExpired):
		return "cancellation_window_expired"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrInvalidJob):
		return "invalid_job"
	case errors.Is(err, ErrOffDuty):
		return "off_duty"
	}
	return "internal"
}
