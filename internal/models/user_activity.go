package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Security-relevant activity tags recorded by the auth flows.
const (
	ActivityUserRegistered = "USER_REGISTERED"
	ActivityUserLoggedIn   = "USER_LOGGED_IN"
)

// UserActivity is the append-only audit trail of security-relevant actions.
type UserActivity struct {
	ID        string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string            `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action    string            `gorm:"not null;index" json:"action"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress string            `json:"ip_address"`
	UserAgent string            `json:"user_agent"`
	CreatedAt time.Time         `gorm:"index" json:"created_at"`
}

func (a *UserActivity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
