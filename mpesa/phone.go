package mpesa

import (
	"regexp"
	"strings"
)

// CountryCode is the Kenyan dialing prefix Daraja expects on payer numbers.
const CountryCode = "254"

var kenyanPhoneRegex = regexp.MustCompile(`^(07\d{8}|01\d{8}|2547\d{8}|2541\d{8}|\+2547\d{8}|\+2541\d{8})$`)

// NormalizePhone converts a Kenyan number to the 2547XXXXXXXX form.
// Numbers that are already international or malformed pass through untouched,
// so callers should run ValidPhone first.
func NormalizePhone(input string) string {
	phone := strings.TrimPrefix(input, "+")
	if strings.HasPrefix(phone, "0") {
		phone = CountryCode + phone[1:]
	}
	return phone
}

// ValidPhone reports whether input is an accepted Safaricom/Airtel number in
// domestic (07/01), international (2547/2541) or +254 form.
func ValidPhone(input string) bool {
	return kenyanPhoneRegex.MatchString(input)
}
