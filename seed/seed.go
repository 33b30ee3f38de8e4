package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"inua-fund-server/models"
)

// DefaultCampaign matches the TransactionDesc used when a donor gives no purpose.
var DefaultCampaign = models.Campaign{
	Slug:        "general-support",
	Title:       "General Support",
	Description: "Unrestricted donations that go where they are needed most.",
	Active:      true,
}

// SeedCampaign inserts the default campaign unless it already exists.
func SeedCampaign(ctx context.Context, db *gorm.DB, log *logrus.Logger) error {
	var existing models.Campaign
	err := db.WithContext(ctx).Where("slug = ?", DefaultCampaign.Slug).First(&existing).Error
	if err == nil {
		log.Debug("Default campaign already exists. Skipping seeding.")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up default campaign: %w", err)
	}

	campaign := DefaultCampaign
	if err := db.WithContext(ctx).Create(&campaign).Error; err != nil {
		return fmt.Errorf("failed to seed default campaign: %w", err)
	}

	log.Info("Default campaign seeded successfully.")
	return nil
}
