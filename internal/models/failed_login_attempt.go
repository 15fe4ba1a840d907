package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FailedLoginAttempt is an append-only record counted over a rolling window to
// drive account lockout. Rows are pruned by the maintenance sweep, never updated.
type FailedLoginAttempt struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	Email     string    `gorm:"not null;index" json:"email"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (a *FailedLoginAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
