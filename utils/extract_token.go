package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"
)

// ExtractAdminFromToken validates a "Bearer <jwt>" header and returns the
// token subject when it carries the admin role.
func ExtractAdminFromToken(authHeader string, secret []byte) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization header format")
	}

	tokenString := parts[1]

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	if role, _ := claims["role"].(string); role != adminRole {
		return "", errors.New("token does not grant admin access")
	}

	subject, _ := claims["sub"].(string)
	return subject, nil
}
