package models

import "time"

type DonationStatus string

const (
	DonationSuccessful DonationStatus = "successful"
	DonationPending    DonationStatus = "pending"
	DonationFailed     DonationStatus = "failed"
)

// Donation is the durable record of a payment. Only the payment callback
// creates these; ID is the M-Pesa receipt number, or the CheckoutRequestID when
// the provider omitted the receipt.
type Donation struct {
	ID                string         `gorm:"primaryKey;size:64" json:"id"`
	Date              time.Time      `gorm:"not null;index" json:"date"`
	Amount            int64          `gorm:"not null" json:"amount"`
	Campaign          *string        `gorm:"size:100" json:"campaign"`
	Status            DonationStatus `gorm:"type:varchar(20);not null;default:successful" json:"status"`
	Donor             string         `gorm:"not null" json:"donor"`
	CheckoutRequestID string         `gorm:"size:64;index" json:"checkout_request_id,omitempty"`
	MerchantRequestID string         `gorm:"size:64" json:"merchant_request_id,omitempty"`
}
