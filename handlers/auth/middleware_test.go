package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inua-fund-server/utils"
)

func TestAdminMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	secret := []byte("test-secret")

	adminToken, err := utils.GenerateAdminToken(secret, "ops@example.org", time.Hour)
	require.NoError(t, err)

	donorToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "donor", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret []byte
		header string
		want   int
	}{
		{"admin token", secret, "Bearer " + adminToken, http.StatusOK},
		{"missing header", secret, "", http.StatusUnauthorized},
		{"wrong scheme", secret, "Token " + adminToken, http.StatusUnauthorized},
		{"not an admin", secret, "Bearer " + donorToken, http.StatusUnauthorized},
		{"wrong secret", []byte("other"), "Bearer " + adminToken, http.StatusUnauthorized},
		{"not configured", nil, "Bearer " + adminToken, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/admin", AdminMiddleware(tt.secret), func(c *gin.Context) {
				c.String(http.StatusOK, c.GetString(AdminKey))
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "ops@example.org", w.Body.String())
			}
		})
	}
}
