package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ward-admin-server/internal/emrsync"
	"ward-admin-server/internal/logger"
	"ward-admin-server/internal/middleware"
	"ward-admin-server/internal/utils"
)

// EMRSyncService is the sync surface the handler drives.
type EMRSyncService interface {
	RunSync(ctx context.Context, actorID string, r emrsync.DateRange) (*emrsync.SyncResult, error)
	Status(ctx context.Context) (*emrsync.LockHandle, error)
}

// EMRSyncHandler handles manual EMR import requests.
type EMRSyncHandler struct {
	Sync   EMRSyncService
	Logger *zap.Logger
}

// NewEMRSyncHandler creates a new EMRSyncHandler.
func NewEMRSyncHandler(sync EMRSyncService, log *zap.Logger) *EMRSyncHandler {
	return &EMRSyncHandler{Sync: sync, Logger: logger.OrNop(log)}
}

// ImportRequest represents the request body for a manual import.
type ImportRequest struct {
	StartDate string `json:"startDate" binding:"required"`
	EndDate   string `json:"endDate" binding:"required"`
}

// StatusResponse reports whether an import currently holds the lock.
type StatusResponse struct {
	Locked    bool       `json:"locked"`
	LockID    string     `json:"lockId,omitempty"`
	HolderID  string     `json:"holderId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Import runs a sync for the requested window on behalf of the caller.
func (h *EMRSyncHandler) Import(c *gin.Context) {
	var req ImportRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User ID not found in token")
		return
	}

	r, err := emrsync.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		h.respondError(c, err)
		return
	}

	role, _ := middleware.GetUserRoleFromContext(c)
	h.Logger.Info("Manual EMR import requested",
		zap.String("actor_id", actorID),
		zap.String("role", string(role)),
		zap.String("range", r.String()),
	)

	// a started import runs to completion even if the client goes away
	result, err := h.Sync.RunSync(context.WithoutCancel(c.Request.Context()), actorID, r)
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.Success(c, "EMR import completed", result)
}

// Status reports the active import lock, if any.
func (h *EMRSyncHandler) Status(c *gin.Context) {
	handle, err := h.Sync.Status(c.Request.Context())
	if err != nil {
		h.Logger.Error("Failed to read import lock", zap.Error(err))
		utils.ErrorWithCode(c, http.StatusInternalServerError, string(emrsync.CodeSyncError), "Failed to read import status")
		return
	}

	resp := StatusResponse{}
	if handle != nil {
		expires := handle.ExpiresAt
		resp = StatusResponse{
			Locked:    true,
			LockID:    handle.ID,
			HolderID:  handle.HolderID,
			ExpiresAt: &expires,
		}
	}
	utils.Success(c, "EMR import status fetched successfully", resp)
}

func (h *EMRSyncHandler) respondError(c *gin.Context, err error) {
	message := err.Error()
	var se *emrsync.SyncError
	if errors.As(err, &se) {
		message = se.Message
	}

	switch code := emrsync.CodeOf(err); code {
	case emrsync.CodeInvalidInput:
		utils.ErrorWithCode(c, http.StatusBadRequest, string(code), message)
	case emrsync.CodeImportLocked:
		utils.ErrorWithCode(c, http.StatusConflict, string(code), message)
	default:
		h.Logger.Error("EMR import failed", zap.Error(err))
		utils.ErrorWithCode(c, http.StatusInternalServerError, string(emrsync.CodeSyncError), message)
	}
}
