package notifications

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"inua-fund-server/models"
	"inua-fund-server/utils"
)

// EmailSender is satisfied by *utils.Mailer.
type EmailSender interface {
	SendThankYou(email, name, receipt string, amount int64) error
}

// MessageSender is satisfied by *utils.WatiClient.
type MessageSender interface {
	SendMessage(ctx context.Context, phoneNumber, text string) error
}

// DonorNotifier thanks donors once their donation is on record. Either
// channel may be nil when it is not configured.
type DonorNotifier struct {
	email    EmailSender
	whatsapp MessageSender
	log      *logrus.Logger
}

func NewDonorNotifier(email EmailSender, whatsapp MessageSender, log *logrus.Logger) *DonorNotifier {
	return &DonorNotifier{email: email, whatsapp: whatsapp, log: log}
}

// DonationRecorded sends the thank-you on every configured channel. Failures
// are logged and never affect the stored donation.
func (n *DonorNotifier) DonationRecorded(ctx context.Context, d models.Donation, intent *models.PaymentIntent) {
	var name, email, phone string
	if intent != nil {
		name, email, phone = intent.Name, intent.Email, intent.Phone
	}
	if strings.HasPrefix(d.Donor, "+") {
		phone = strings.TrimPrefix(d.Donor, "+")
	}

	log := n.log.WithField("donation_id", d.ID)

	if n.email != nil && email != "" {
		if err := n.email.SendThankYou(email, name, d.ID, d.Amount); err != nil {
			log.WithError(err).Warn("Failed to send thank-you email")
		} else {
			log.Info("Thank-you email sent")
		}
	}

	if n.whatsapp != nil && phone != "" {
		if err := n.whatsapp.SendMessage(ctx, phone, utils.ThankYouText(name, d.ID, d.Amount)); err != nil {
			log.WithError(err).Warn("Failed to send WhatsApp thank-you")
		} else {
			log.Info("WhatsApp thank-you sent")
		}
	}
}
