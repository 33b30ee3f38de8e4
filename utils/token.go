package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const adminRole = "admin"

// GenerateAdminToken creates a JWT that unlocks the donation history endpoints.
func GenerateAdminToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": adminRole,
		"exp":  time.Now().Add(ttl).Unix(),
	})

	return token.SignedString(secret)
}
