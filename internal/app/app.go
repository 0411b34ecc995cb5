// Package app wires the sync components shared by the server and the batch CLI.
package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ward-admin-server/internal/audit"
	"ward-admin-server/internal/config"
	"ward-admin-server/internal/emr"
	"ward-admin-server/internal/emrsync"
	"ward-admin-server/internal/models"
)

// OpenDB connects to the configured database and migrates the schema.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	return models.InitDB(models.DatabaseConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
}

// NewOrchestrator builds the sync orchestrator against db and the configured EMR.
// reg may be nil to skip metric registration.
func NewOrchestrator(cfg *config.Config, db *gorm.DB, logger *zap.Logger, reg prometheus.Registerer) *emrsync.Orchestrator {
	metrics := emrsync.NewMetrics(reg)

	client := emr.NewClient(emr.ClientConfig{
		BaseURL:    cfg.EMR.BaseURL,
		APIKey:     cfg.EMR.APIKey,
		Timeout:    time.Duration(cfg.EMR.FetchTimeoutSeconds) * time.Second,
		RetryCount: cfg.EMR.FetchRetryCount,
	}, logger.Named("emr"))

	return emrsync.NewOrchestrator(emrsync.OrchestratorDeps{
		Locks: emrsync.NewLockStore(db, emrsync.LockKeyEMRSync,
			time.Duration(cfg.EMR.LockTTLMinutes)*time.Minute, logger.Named("lock")),
		Fetcher: client,
		Upserter: emrsync.NewUpserter(db, emrsync.UpsertOptions{
			LabItemCodes: cfg.EMR.LabItemCodes,
			StrictCodes:  cfg.EMR.StrictCodes,
		}, logger.Named("upsert"), metrics),
		Auditor: audit.NewGormRecorder(db, logger.Named("audit")),
		Clock:   emrsync.SystemClock{},
		Logger:  logger.Named("emrsync"),
		Metrics: metrics,
	})
}
