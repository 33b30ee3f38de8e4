package migrations

import (
	"fmt"

	"gorm.io/gorm"

	"inua-fund-server/models"
)

func MigrateCampaigns(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Campaign{}); err != nil {
		return fmt.Errorf("failed to migrate campaigns: %w", err)
	}
	return nil
}
