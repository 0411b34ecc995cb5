package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ward-admin-server/internal/config"
	"ward-admin-server/internal/emrsync"
	"ward-admin-server/internal/models"
	"ward-admin-server/internal/utils"
)

type idleSync struct{}

func (idleSync) RunSync(context.Context, string, emrsync.DateRange) (*emrsync.SyncResult, error) {
	return &emrsync.SyncResult{FailedAdmissionIDs: []string{}}, nil
}

func (idleSync) Status(context.Context) (*emrsync.LockHandle, error) { return nil, nil }

func newRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open("file::memory:"), models.GormConfig())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	emrsync.NewMetrics(reg)

	cfg := &config.Config{JWTSecret: "routes-secret"}
	router := gin.New()
	SetupRoutes(router, db, cfg, idleSync{}, reg, nil)
	return router, cfg
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	router, _ := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEMRSyncRequiresAllowedRole(t *testing.T) {
	router, cfg := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/emr-sync/status", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for role, want := range map[models.Role]int{
		models.RoleAdmin:  http.StatusOK,
		models.RoleDoctor: http.StatusOK,
		models.RoleNurse:  http.StatusOK,
		"patient":         http.StatusForbidden,
	} {
		token, err := utils.GenerateAccessToken("u1", role, cfg.JWTSecret, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/emr-sync/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}
