package store

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"inua-fund-server/models"
)

const mysqlDuplicateEntry = 1062

var (
	// ErrDuplicateDonation is returned when a donation with the same ID is
	// already recorded. Repeated provider callbacks end up here.
	ErrDuplicateDonation = errors.New("donation with this transaction ID already exists")
	ErrDonationNotFound  = errors.New("donation not found")
)

// DonationStore persists donations. The primary key on id is what keeps a
// retried callback from recording the same payment twice.
type DonationStore struct {
	db *gorm.DB
}

func NewDonationStore(db *gorm.DB) *DonationStore {
	return &DonationStore{db: db}
}

func (s *DonationStore) Create(ctx context.Context, donation *models.Donation) error {
	if err := s.db.WithContext(ctx).Create(donation).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateDonation
		}
		return fmt.Errorf("failed to create donation: %w", err)
	}
	return nil
}

// FindByID matches the receipt number or the CheckoutRequestID, so a donor
// holding only the push's correlation id can still find their donation.
func (s *DonationStore) FindByID(ctx context.Context, id string) (*models.Donation, error) {
	var donation models.Donation
	err := s.db.WithContext(ctx).Where("id = ? OR checkout_request_id = ?", id, id).First(&donation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDonationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find donation: %w", err)
	}
	return &donation, nil
}

// List returns one page of donations, newest first, and the total count.
func (s *DonationStore) List(ctx context.Context, limit, offset int) ([]models.Donation, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Donation{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count donations: %w", err)
	}

	var donations []models.Donation
	if err := s.db.WithContext(ctx).Order("date DESC").Limit(limit).Offset(offset).Find(&donations).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, total, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
