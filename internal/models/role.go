package models

// Role drives the permission string embedded in issued tokens.
type Role struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
	IsSystem    bool   `gorm:"default:false" json:"is_system"`

	Users []User `gorm:"foreignKey:RoleID" json:"users,omitempty"`
}
