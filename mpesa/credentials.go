package mpesa

import (
	"encoding/base64"
	"time"
)

const timestampLayout = "20060102150405"

// Credential is the time-boxed signature sent with every STK call. The
// provider rejects it once Timestamp drifts too far from the send time, so
// build a new one per request.
type Credential struct {
	ShortCode string
	PassKey   string
	Timestamp string
	Password  string
}

// Timestamp formats now as YYYYMMDDHHmmss.
func Timestamp(now time.Time) string {
	return now.Format(timestampLayout)
}

// Password derives the STK password: base64(shortCode + passKey + timestamp).
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// NewCredential signs a credential for the instant now.
func NewCredential(shortCode, passKey string, now time.Time) Credential {
	ts := Timestamp(now)
	return Credential{
		ShortCode: shortCode,
		PassKey:   passKey,
		Timestamp: ts,
		Password:  Password(shortCode, passKey, ts),
	}
}
