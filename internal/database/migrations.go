package database

import (
	"gorm.io/gorm"

	"github.com/peopledeskhq/peopledesk/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Role{},
		&models.Company{},
		&models.User{},
		&models.UserSession{},
		&models.FailedLoginAttempt{},
		&models.UserActivity{},
	)
}

// SeedData populates the default roles registration depends on.
func SeedData(db *gorm.DB) error {
	roles := []models.Role{
		{
			BaseModel:   models.BaseModel{ID: "user"},
			Name:        "USER",
			Description: "Standard user access",
			IsSystem:    true,
		},
		{
			BaseModel:   models.BaseModel{ID: "admin"},
			Name:        "ADMIN",
			Description: "Full system access",
			IsSystem:    true,
		},
	}

	for _, role := range roles {
		if err := db.Where(models.Role{BaseModel: models.BaseModel{ID: role.ID}}).Attrs(role).FirstOrCreate(&models.Role{}).Error; err != nil {
			return err
		}
	}

	return nil
}
