package history

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	DB *gorm.DB
}

// Save inserts rec, or overwrites the row already recorded for the same
// partner and job.
func (r *Repo) Save(ctx context.Context, rec Record) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "partner_id"}, {Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "trail", "completed_at", "cancelled_at",
		}),
	}).Create(&rec).Error
}

func (r *Repo) List(ctx context.Context, partnerID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []Record
	err := r.DB.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("coalesce(completed_at, cancelled_at) desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

type DayTotal struct {
	Day    time.Time `json:"day"`
	Jobs   int64     `json:"jobs"`
	Amount int64     `json:"amount"`
}

type Earnings struct {
	Total int64      `json:"total"`
	Jobs  int64      `json:"jobs"`
	Days  []DayTotal `json:"days"`
}

// Earnings sums completed jobs per day since the given time.
func (r *Repo) Earnings(ctx context.Context, partnerID string, since time.Time) (Earnings, error) {
	var days []DayTotal
	if err := r.DB.WithContext(ctx).Raw(`
		select date_trunc('day', completed_at) as day,
		       count(*) as jobs,
		       coalesce(sum(earnings), 0) as amount
		from job_history
		where partner_id = ? and status = 'completed' and completed_at >= ?
		group by day
		order by day desc
	`, partnerID, since).Scan(&days).Error; err != nil {
		return Earnings{}, err
	}

	out := Earnings{Days: days}
	for _, d := range days {
		out.Total += d.Amount
		out.Jobs += d.Jobs
	}
	return out, nil
}
