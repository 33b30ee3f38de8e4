package utils

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends donor emails over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	sender string
}

func NewMailer(host string, port int, user, pass, sender string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, user, pass),
		sender: sender,
	}
}

// SendThankYou emails a donation receipt to the donor.
func (m *Mailer) SendThankYou(email, name, receipt string, amount int64) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Thank you for your donation")
	msg.SetBody("text/plain", ThankYouText(name, receipt, amount))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send thank-you email to %s: %w", email, err)
	}
	return nil
}

// ThankYouText is the message body shared by the email and WhatsApp channels.
func ThankYouText(name, receipt string, amount int64) string {
	if name == "" {
		name = "friend"
	}
	return fmt.Sprintf("Dear %s, we have received your donation of KES %d (M-Pesa receipt %s). Thank you for supporting Inua Fund.", name, amount, receipt)
}
