package donations

import (
	"fmt"
	"strings"
	"time"

	"inua-fund-server/models"
	"inua-fund-server/mpesa"
)

const (
	itemAmount  = "Amount"
	itemReceipt = "MpesaReceiptNumber"
	itemPhone   = "PhoneNumber"

	anonymousDonor = "Anonymous"
)

// DataQualityError reports a successful callback that lacks fields the
// provider always sends. The donation is still recorded with fallbacks.
type DataQualityError struct {
	CheckoutRequestID string
	Missing           []string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("callback %s is missing %s", e.CheckoutRequestID, strings.Join(e.Missing, ", "))
}

// BuildDonation turns a successful callback into a donation record. The id is
// the receipt number, or the CheckoutRequestID when the receipt is absent.
// The campaign comes from the payment intent when one was saved.
func BuildDonation(cb mpesa.STKCallback, intent *models.PaymentIntent, now time.Time) (*models.Donation, *DataQualityError) {
	var missing []string

	amount, ok := cb.CallbackMetadata.Amount(itemAmount)
	if !ok {
		missing = append(missing, itemAmount)
	}

	id, ok := cb.CallbackMetadata.String(itemReceipt)
	if !ok {
		missing = append(missing, itemReceipt)
		id = cb.CheckoutRequestID
	}

	donor := anonymousDonor
	if phone, ok := cb.CallbackMetadata.String(itemPhone); ok {
		donor = "+" + strings.TrimPrefix(phone, "+")
	}

	d := &models.Donation{
		ID:                id,
		Date:              now,
		Amount:            amount,
		Status:            models.DonationSuccessful,
		Donor:             donor,
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
	}
	if intent != nil && intent.Purpose != "" {
		campaign := intent.Purpose
		d.Campaign = &campaign
	}

	if len(missing) > 0 {
		return d, &DataQualityError{CheckoutRequestID: cb.CheckoutRequestID, Missing: missing}
	}
	return d, nil
}
