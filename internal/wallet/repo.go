package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repo struct {
	DB *gorm.DB
}

func (r *Repo) Balance(ctx context.Context, partnerID string) (Balance, error) {
	return balance(r.DB.WithContext(ctx), partnerID)
}

func balance(tx *gorm.DB, partnerID string) (Balance, error) {
	var row struct {
		Earned    int64
		Withdrawn int64
	}
	err := tx.Raw(`
		select
		  coalesce((select sum(earnings) from job_history where partner_id = ? and status = 'completed'), 0) as earned,
		  coalesce((select sum(amount) from wallet_withdrawals where partner_id = ?), 0) as withdrawn
	`, partnerID, partnerID).Scan(&row).Error
	if err != nil {
		return Balance{}, err
	}
	return NewBalance(row.Earned, row.Withdrawn), nil
}

// Withdraw records a payout request. The per-partner advisory lock keeps
// two concurrent requests from spending the same balance.
func (r *Repo) Withdraw(ctx context.Context, partnerID string, requested int64) (Withdrawal, error) {
	var out Withdrawal
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`select pg_advisory_xact_lock(hashtext(?))`, "wallet:"+partnerID).Error; err != nil {
			return err
		}
		b, err := balance(tx, partnerID)
		if err != nil {
			return err
		}
		amount, err := WithdrawalAmount(b, requested)
		if err != nil {
			return err
		}
		out = Withdrawal{
			ID:        uuid.NewString(),
			PartnerID: partnerID,
			Amount:    amount,
			Status:    WithdrawalRequested,
		}
		return tx.Create(&out).Error
	})
	return out, err
}

func (r *Repo) Withdrawals(ctx context.Context, partnerID string, limit int) ([]Withdrawal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []Withdrawal
	err := r.DB.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
