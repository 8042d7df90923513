package history

import (
	"time"

	"github.com/lib/pq"

	"partnerd/internal/assign"
)

// Record is the durable copy of a job that left the active set, either
// completed or cancelled.
type Record struct {
	ID        uint64 `gorm:"primaryKey"`
	PartnerID string `gorm:"type:text;not null;uniqueIndex:uq_history_partner_job"`
	JobID     string `gorm:"type:text;not null;uniqueIndex:uq_history_partner_job"`

	Kind     string `gorm:"type:text;not null"`
	Status   string `gorm:"index;type:text;not null"` // completed/cancelled
	Earnings int64  `gorm:"not null;default:0"`

	Service  string `gorm:"type:text;not null;default:''"`
	Customer string `gorm:"type:text;not null;default:''"`
	Location string `gorm:"type:text;not null;default:''"`

	Trail pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	ScheduledAt *time.Time `gorm:"type:timestamptz"`
	AcceptedAt  *time.Time `gorm:"type:timestamptz"`
	CompletedAt *time.Time `gorm:"index;type:timestamptz"`
	CancelledAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (Record) TableName() string { return "job_history" }

func FromJob(partnerID string, j assign.Job) Record {
	trail := make(pq.StringArray, 0, len(j.Trail))
	for _, st := range j.Trail {
		trail = append(trail, string(st))
	}
	return Record{
		PartnerID:   partnerID,
		JobID:       j.ID,
		Kind:        string(j.Kind),
		Status:      string(j.Status),
		Earnings:    j.Earnings,
		Service:     j.Details.Service,
		Customer:    j.Details.Customer,
		Location:    j.Details.Location,
		Trail:       trail,
		ScheduledAt: j.ScheduledAt,
		AcceptedAt:  j.AcceptedAt,
		CompletedAt: j.CompletedAt,
		CancelledAt: j.CancelledAt,
	}
}
