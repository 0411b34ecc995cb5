package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ward-admin-server/internal/config"
	"ward-admin-server/internal/emrsync"
	"ward-admin-server/internal/middleware"
	"ward-admin-server/internal/models"
	"ward-admin-server/internal/utils"
)

const testSecret = "handler-secret"

type fakeSync struct {
	gotActor string
	gotRange emrsync.DateRange
	ctxErr   error
	result   *emrsync.SyncResult
	err      error
	handle   *emrsync.LockHandle
	calls    int
}

func (f *fakeSync) RunSync(ctx context.Context, actorID string, r emrsync.DateRange) (*emrsync.SyncResult, error) {
	f.calls++
	f.gotActor = actorID
	f.gotRange = r
	f.ctxErr = ctx.Err()
	return f.result, f.err
}

func (f *fakeSync) Status(ctx context.Context) (*emrsync.LockHandle, error) {
	return f.handle, f.err
}

func newTestEngine(svc EMRSyncService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTSecret: testSecret}
	h := NewEMRSyncHandler(svc, nil)

	r := gin.New()
	g := r.Group("/api/v1/emr-sync", middleware.AuthMiddleware(cfg))
	g.POST("/import", h.Import)
	g.GET("/status", h.Status)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, utils.ResponseData) {
	t.Helper()
	token, err := utils.GenerateAccessToken("user-42", models.RoleNurse, testSecret, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp utils.ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestImport_Success(t *testing.T) {
	svc := &fakeSync{result: &emrsync.SyncResult{RunID: "run-1", TotalCount: 3, SuccessCount: 2, FailedCount: 1,
		FailedAdmissionIDs: []string{"A2"}}}
	w, resp := doRequest(t, newTestEngine(svc), http.MethodPost, "/api/v1/emr-sync/import",
		`{"startDate":"2026-01-01","endDate":"2026-01-07"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", svc.gotActor)
	assert.Equal(t, "2026-01-01~2026-01-07", svc.gotRange.String())
	assert.NoError(t, svc.ctxErr)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run-1", data["runId"])
	assert.EqualValues(t, 1, data["failedCount"])
	assert.Equal(t, []any{"A2"}, data["failedAdmissionIds"])
}

func TestImport_RejectsBeforeSync(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"seven day span", `{"startDate":"2026-01-01","endDate":"2026-01-08"}`},
		{"reversed", `{"startDate":"2026-01-05","endDate":"2026-01-01"}`},
		{"bad format", `{"startDate":"01/01/2026","endDate":"2026-01-02"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeSync{}
			w, resp := doRequest(t, newTestEngine(svc), http.MethodPost, "/api/v1/emr-sync/import", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(emrsync.CodeInvalidInput), resp.Code)
			assert.Zero(t, svc.calls)
		})
	}

	for name, body := range map[string]string{
		"missing endDate": `{"startDate":"2026-01-01"}`,
		"malformed json":  `{"startDate":`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := &fakeSync{}
			w, resp := doRequest(t, newTestEngine(svc), http.MethodPost, "/api/v1/emr-sync/import", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(emrsync.CodeInvalidInput), resp.Code)
			assert.NotEmpty(t, resp.Error)
			assert.Zero(t, svc.calls)
		})
	}
}

func TestImport_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
		want emrsync.ErrorCode
	}{
		{&emrsync.SyncError{Code: emrsync.CodeImportLocked, Message: "an EMR import is already running"}, http.StatusConflict, emrsync.CodeImportLocked},
		{&emrsync.SyncError{Code: emrsync.CodeSyncError, Message: "failed to fetch admissions from EMR"}, http.StatusInternalServerError, emrsync.CodeSyncError},
		{errors.New("boom"), http.StatusInternalServerError, emrsync.CodeSyncError},
	}
	for _, tt := range tests {
		svc := &fakeSync{err: tt.err}
		w, resp := doRequest(t, newTestEngine(svc), http.MethodPost, "/api/v1/emr-sync/import",
			`{"startDate":"2026-01-01","endDate":"2026-01-02"}`)
		assert.Equal(t, tt.code, w.Code)
		assert.Equal(t, string(tt.want), resp.Code)
		assert.NotEmpty(t, resp.Error)
	}
}

func TestStatus(t *testing.T) {
	svc := &fakeSync{}
	w, resp := doRequest(t, newTestEngine(svc), http.MethodGet, "/api/v1/emr-sync/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"locked": false}, resp.Data)

	expires := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	svc.handle = &emrsync.LockHandle{ID: "lock-1", HolderID: "SYSTEM_BATCH", ExpiresAt: expires}
	w, resp = doRequest(t, newTestEngine(svc), http.MethodGet, "/api/v1/emr-sync/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["locked"])
	assert.Equal(t, "SYSTEM_BATCH", data["holderId"])
	assert.Equal(t, "2026-01-10T09:30:00Z", data["expiresAt"])
}

func TestStatus_StoreFailure(t *testing.T) {
	svc := &fakeSync{err: errors.New("db down")}
	w, resp := doRequest(t, newTestEngine(svc), http.MethodGet, "/api/v1/emr-sync/status", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(emrsync.CodeSyncError), resp.Code)
}
