package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account status values stored on User.AccountStatus.
const (
	AccountStatusActive = "ACTIVE"
	AccountStatusLocked = "LOCKED"
)

// User holds credentials and profile data for a platform account.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	AccountStatus      string     `gorm:"default:ACTIVE;not null" json:"account_status"`
	DeactivatedAt      *time.Time `json:"-"`
	DeactivationReason *string    `json:"-"`

	ResetToken       *string    `gorm:"index" json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	EmailVerified          bool    `gorm:"default:false" json:"email_verified"`
	EmailVerificationToken *string `gorm:"index" json:"-"`

	RoleID    string   `gorm:"type:uuid;not null;index" json:"role_id"`
	Role      *Role    `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	CompanyID string   `gorm:"type:uuid;not null;index" json:"company_id"`
	Company   *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`

	Sessions []UserSession `gorm:"foreignKey:UserID" json:"-"`

	LastLogin          *time.Time `json:"last_login"`
	LastPasswordChange *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserSummary is the public projection of a user returned by auth flows. It never
// carries the password hash.
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
}

// Summarize builds the public projection, falling back to the default role
// name when the association was not preloaded.
func (u *User) Summarize() UserSummary {
	roleName := "USER"
	if u.Role != nil && u.Role.Name != "" {
		roleName = u.Role.Name
	}
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      roleName,
		CompanyID: u.CompanyID,
	}
}
