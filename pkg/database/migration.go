package database

import (
	"github.com/Payphone-Digital/portfolio-service/internal/model"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Portfolio{},
		&model.OneTimeCode{},
		&model.Post{},
		&model.PostComment{},
		&model.RelationshipRepair{},
	)
}

// Migrate runs AutoMigrate followed by the hand-written indexes
func Migrate(db *gorm.DB, globalPortfolioNames bool) error {
	if err := AutoMigrate(db); err != nil {
		return err
	}
	return EnsureIndexes(db, globalPortfolioNames)
}
