package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ward-admin-server/internal/config"
	"ward-admin-server/internal/models"
	"ward-admin-server/internal/utils"
)

const testSecret = "test-secret"

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTSecret: testSecret}

	r := gin.New()
	r.GET("/sync", AuthMiddleware(cfg), RoleAuthMiddleware(models.RoleAdmin, models.RoleNurse), func(c *gin.Context) {
		id, _ := GetUserIDFromContext(c)
		c.String(http.StatusOK, id)
	})
	r.GET("/unguarded", RoleAuthMiddleware(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func bearer(t *testing.T, userID string, role models.Role, secret string, ttl time.Duration) string {
	t.Helper()
	token, err := utils.GenerateAccessToken(userID, role, secret, ttl)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong secret", bearer(t, "u1", models.RoleAdmin, "other", time.Minute), http.StatusUnauthorized},
		{"expired", bearer(t, "u1", models.RoleAdmin, testSecret, -time.Minute), http.StatusUnauthorized},
		{"role not allowed", bearer(t, "u1", models.RoleDoctor, testSecret, time.Minute), http.StatusForbidden},
		{"allowed", bearer(t, "u1", models.RoleNurse, testSecret, time.Minute), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/sync", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "u1", w.Body.String())
			}
		})
	}
}

func TestRoleAuthMiddleware_WithoutAuth(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unguarded", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
