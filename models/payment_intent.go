package models

import "time"

// PaymentIntent remembers what the donor typed in for an STK push until the
// callback for that CheckoutRequestID arrives. It is not a donation.
type PaymentIntent struct {
	CheckoutRequestID string    `json:"checkout_request_id"`
	MerchantRequestID string    `json:"merchant_request_id"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	Email             string    `json:"email,omitempty"`
	Purpose           string    `json:"purpose,omitempty"`
	Amount            int64     `json:"amount"`
	CreatedAt         time.Time `json:"created_at"`
}
