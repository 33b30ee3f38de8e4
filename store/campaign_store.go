package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"inua-fund-server/models"
)

type CampaignStore struct {
	db *gorm.DB
}

func NewCampaignStore(db *gorm.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

// Active lists the campaigns donors can currently pick as a purpose.
func (s *CampaignStore) Active(ctx context.Context) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("title").Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}
