package mpesa

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAccessToken(t *testing.T) {
	now := time.Date(2024, time.March, 5, 7, 0, 0, 0, time.UTC)
	fullLifetime := now.Add(3599*time.Second - tokenRefreshSkew)

	tests := []struct {
		name        string
		status      int
		body        string
		wantToken   string
		wantExpires time.Time
		wantAuthErr bool
	}{
		{"expires_in as string", http.StatusOK, `{"access_token":"tok","expires_in":"3599"}`, "tok", fullLifetime, false},
		{"expires_in as number", http.StatusOK, `{"access_token":"tok","expires_in":3599}`, "tok", fullLifetime, false},
		{"short lifetime", http.StatusOK, `{"access_token":"tok","expires_in":600}`, "tok", now.Add(540 * time.Second), false},
		{"expires_in missing", http.StatusOK, `{"access_token":"tok"}`, "tok", fullLifetime, false},
		{"expires_in unusable", http.StatusOK, `{"access_token":"tok","expires_in":{"s":1}}`, "tok", fullLifetime, false},
		{"expires_in null", http.StatusOK, `{"access_token":"tok","expires_in":null}`, "tok", fullLifetime, false},
		{"no access_token", http.StatusOK, `{"expires_in":3599}`, "", time.Time{}, true},
		{"not json", http.StatusOK, `<html>`, "", time.Time{}, true},
		{"rejected", http.StatusBadRequest, `{"errorMessage":"Invalid Authentication passed"}`, "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			tok, err := FetchAccessToken(context.Background(), srv.Client(), srv.URL, "key", "secret", now)
			if tt.wantAuthErr {
				var authErr *AuthError
				assert.True(t, errors.As(err, &authErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, tok.Value)
			assert.Equal(t, tt.wantExpires, tok.ExpiresAt)
		})
	}
}

func TestFetchAccessToken_MissingCredentials(t *testing.T) {
	_, err := FetchAccessToken(context.Background(), http.DefaultClient, "http://unused", "", "", time.Now())
	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
}
