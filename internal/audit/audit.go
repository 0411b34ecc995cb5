// Package audit appends entries to the audit trail. Recording is
// fire-and-forget: callers never see a failure.
package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ward-admin-server/internal/models"
)

// Entry is one audit record.
type Entry struct {
	ActorID   string
	Action    string
	TargetID  string
	AfterData map[string]any
}

// Recorder receives audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// GormRecorder persists entries to the audit_logs table.
type GormRecorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormRecorder creates a recorder writing through db.
func NewGormRecorder(db *gorm.DB, logger *zap.Logger) *GormRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormRecorder{db: db, logger: logger}
}

// Record writes entry; failures are logged and swallowed.
func (r *GormRecorder) Record(ctx context.Context, entry Entry) {
	payload, err := json.Marshal(entry.AfterData)
	if err != nil {
		r.logger.Error("Failed to encode audit payload",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		return
	}

	row := models.AuditLog{
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		TargetID:  entry.TargetID,
		AfterData: payload,
	}
	if err := r.db.WithContext(context.WithoutCancel(ctx)).Create(&row).Error; err != nil {
		r.logger.Error("Failed to write audit log",
			zap.String("action", entry.Action),
			zap.String("actor_id", entry.ActorID),
			zap.String("target_id", entry.TargetID),
			zap.Error(err),
		)
	}
}

// LogRecorder writes entries to the logger only.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a log-only recorder.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(_ context.Context, entry Entry) {
	r.logger.Info("audit",
		zap.String("actor_id", entry.ActorID),
		zap.String("action", entry.Action),
		zap.String("target_id", entry.TargetID),
		zap.Any("after_data", entry.AfterData),
	)
}
