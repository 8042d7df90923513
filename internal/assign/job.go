package assign

import "time"

type Kind string

const (
	KindInstant   Kind = "instant"
	KindScheduled Kind = "scheduled"
)

type Status string

const (
	StatusNewRequest Status = "new_request"
	StatusAccepted   Status = "accepted"
	StatusOnTheWay   Status = "on_the_way"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

const (
	OfferTimeout         = 30 * time.Second
	JobDuration          = time.Hour
	InstantCancelGrace   = 3 * time.Minute
	ScheduledCancelGrace = 2 * time.Hour
)

// lifecycle is the fixed forward order an assignment moves through.
var lifecycle = []Status{
	StatusAccepted,
	StatusOnTheWay,
	StatusArrived,
	StatusInProgress,
	StatusCompleted,
}

// Next returns the status that must follow s, if any.
func (s Status) Next() (Status, bool) {
	for i, st := range lifecycle {
		if st == s && i+1 < len(lifecycle) {
			return lifecycle[i+1], true
		}
	}
	return "", false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	if s == StatusNewRequest || s == StatusCancelled {
		return true
	}
	for _, st := range lifecycle {
		if st == s {
			return true
		}
	}
	return false
}

type Coords struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Details is passthrough data for the presentation layer. Only the
// coordinates and route figures are read, by the trip simulation.
type Details struct {
	Service        string  `json:"service"`
	Customer       string  `json:"customer"`
	Location       string  `json:"location"`
	CustomerCoords Coords  `json:"customer_coords"`
	PartnerCoords  Coords  `json:"partner_coords"`
	DistanceKm     float64 `json:"distance_km"`
	ETAMinutes     int     `json:"eta_minutes"`
}

type Job struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Status      Status     `json:"status"`
	Earnings    int64      `json:"earnings"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	OfferedAt   time.Time  `json:"offered_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	Details     Details    `json:"details"`
	Trail       []Status   `json:"trail"`
}

// Window returns the half-open interval [start, end) the job occupies.
// ok is false when the anchor is not known yet (an instant job that has
// not been accepted, or a scheduled job without a time).
func (j Job) Window() (start, end time.Time, ok bool) {
	switch j.Kind {
	case KindInstant:
		if j.AcceptedAt == nil {
			return time.Time{}, time.Time{}, false
		}
		start = *j.AcceptedAt
	case KindScheduled:
		if j.ScheduledAt == nil {
			return time.Time{}, time.Time{}, false
		}
		start = *j.ScheduledAt
	default:
		return time.Time{}, time.Time{}, false
	}
	return start, start.Add(JobDuration), true
}

// clone copies the pointer fields so stored jobs never alias caller data.
func (j Job) clone() Job {
	out := j
	out.ScheduledAt = copyTime(j.ScheduledAt)
	out.AcceptedAt = copyTime(j.AcceptedAt)
	out.CompletedAt = copyTime(j.CompletedAt)
	out.CancelledAt = copyTime(j.CancelledAt)
	out.Trail = append([]Status(nil), j.Trail...)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
