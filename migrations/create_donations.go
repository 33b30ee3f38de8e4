package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"inua-fund-server/models"
)

// MigrateDonations creates the donations table. The primary key on id is the
// only duplicate guard for retried callbacks.
func MigrateDonations(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Donation{}); err != nil {
		return fmt.Errorf("failed to migrate donations: %w", err)
	}
	return nil
}

// Migrate runs every migration in order.
func Migrate(db *gorm.DB) error {
	if err := MigrateDonations(db); err != nil {
		return err
	}
	return MigrateCampaigns(db)
}
