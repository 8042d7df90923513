package auth

import "time"

// VerificationStatus is the single authorization input the job routes
// consult: only approved partners may take jobs.
type VerificationStatus string

const (
	StatusPendingVerification VerificationStatus = "pending_verification"
	StatusApproved            VerificationStatus = "approved"
)

type Partner struct {
	ID           string             `gorm:"primaryKey;type:text"`
	Phone        string             `gorm:"uniqueIndex;not null"`
	Name         string             `gorm:"not null;default:''"`
	PasswordHash string             `gorm:"not null"`
	Status       VerificationStatus `gorm:"type:text;not null;default:'pending_verification'"`
	CreatedAt    time.Time          `gorm:"not null;default:now()"`
}
