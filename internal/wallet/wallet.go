package wallet

import (
	"errors"
	"time"
)

// MinWithdrawal is the smallest amount a partner may withdraw, in rupees.
const MinWithdrawal int64 = 500

var (
	ErrBelowMinimum        = errors.New("withdrawal below minimum amount")
	ErrInsufficientBalance = errors.New("withdrawal exceeds available balance")
)

type WithdrawalStatus string

const (
	WithdrawalRequested WithdrawalStatus = "requested"
	WithdrawalPaid      WithdrawalStatus = "paid"
)

// Withdrawal is a payout request against the partner's completed earnings.
type Withdrawal struct {
	ID        string           `gorm:"primaryKey;type:text" json:"id"`
	PartnerID string           `gorm:"index;type:text;not null" json:"-"`
	Amount    int64            `gorm:"not null" json:"amount"`
	Status    WithdrawalStatus `gorm:"type:text;not null;default:'requested'" json:"status"`
	CreatedAt time.Time        `gorm:"not null;default:now()" json:"created_at"`
}

func (Withdrawal) TableName() string { return "wallet_withdrawals" }

// Balance is completed earnings less everything already withdrawn.
type Balance struct {
	Earned    int64 `json:"earned"`
	Withdrawn int64 `json:"withdrawn"`
	Available int64 `json:"available"`
}

func NewBalance(earned, withdrawn int64) Balance {
	return Balance{Earned: earned, Withdrawn: withdrawn, Available: earned - withdrawn}
}

// WithdrawalAmount resolves a requested amount against b. Zero means the
// whole available balance.
func WithdrawalAmount(b Balance, requested int64) (int64, error) {
	amount := requested
	if amount == 0 {
		amount = b.Available
	}
	if amount < MinWithdrawal {
		return 0, ErrBelowMinimum
	}
	if amount > b.Available {
		return 0, ErrInsufficientBalance
	}
	return amount, nil
}
