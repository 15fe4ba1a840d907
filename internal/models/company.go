package models

// Company scopes users for the wider HR platform. Registration auto-provisions
// one when the caller does not supply an existing company.
type Company struct {
	BaseModel

	Name       string `gorm:"not null" json:"name"`
	Identifier string `gorm:"uniqueIndex;not null" json:"identifier"`
	IsActive   bool   `gorm:"default:true" json:"is_active"`

	Users []User `gorm:"foreignKey:CompanyID" json:"users,omitempty"`
}
