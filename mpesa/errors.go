package mpesa

import (
	"errors"
	"fmt"
)

// StillProcessingCode is returned by the STK query endpoint while the payer has
// not yet answered the prompt on their phone.
const StillProcessingCode = "500.001.1001"

// APIError is the error body Daraja returns on non-2xx responses.
type APIError struct {
	StatusCode   int    `json:"-"`
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa api error %s (status %d): %s", e.ErrorCode, e.StatusCode, e.ErrorMessage)
}

// AuthError means no access token could be obtained.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return "failed to authenticate with M-Pesa: " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

// InitiationError is returned when the STK push request fails. Provider holds
// the provider's error payload when one was returned.
type InitiationError struct {
	Provider *APIError
	Err      error
}

func (e *InitiationError) Error() string {
	if e.Provider != nil {
		return "stk push rejected: " + e.Provider.ErrorMessage
	}
	return "stk push failed: " + e.Err.Error()
}

func (e *InitiationError) Unwrap() error {
	if e.Provider != nil {
		return e.Provider
	}
	return e.Err
}

// IsStillProcessing reports whether err is the provider's "transaction is
// being processed" answer to a status query.
func IsStillProcessing(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == StillProcessingCode
	}
	return false
}
