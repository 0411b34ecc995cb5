package emrsync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ward-admin-server/internal/audit"
	"ward-admin-server/internal/emr"
	"ward-admin-server/internal/logger"
)

// BatchDriver runs scheduled imports with bounded retries.
type BatchDriver struct {
	orchestrator *Orchestrator
	clock        Clock
	auditor      audit.Recorder
	logger       *zap.Logger
	metrics      *Metrics
}

// NewBatchDriver wraps o. A nil clock or auditor falls back to the orchestrator's.
func NewBatchDriver(o *Orchestrator, clock Clock, auditor audit.Recorder, log *zap.Logger) *BatchDriver {
	if clock == nil {
		clock = o.clock
	}
	if auditor == nil {
		auditor = o.auditor
	}
	return &BatchDriver{
		orchestrator: o,
		clock:        clock,
		auditor:      auditor,
		logger:       logger.OrNop(log),
		metrics:      o.metrics,
	}
}

// backoff is the wait after failed attempt n (1-based): 1s, 2s, 4s, ...
func backoff(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}

// RunBatch imports [today - DaysBack, today] as SystemActorID, making up to
// MaxRetries+1 attempts. Only orchestrator-level failures are retried; a result
// with failed admissions is a success. When every attempt fails the error has
// CodeBatchImportFailed and wraps the last failure.
func (d *BatchDriver) RunBatch(ctx context.Context, cfg BatchConfig) (*SyncResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := cfg.RangeEndingAt(d.clock.Now())
	attempts := cfg.MaxRetries + 1
	log := d.logger.With(zap.String("range", r.String()), zap.Int("max_attempts", attempts))

	var lastErr error
	for n := 1; n <= attempts; n++ {
		result, err := d.orchestrator.run(ctx, SystemActorID, r, map[string]any{
			"trigger": "batch",
			"attempt": n,
		})
		if err == nil {
			d.metrics.batchAttempt("success")
			log.Info("Batch import succeeded", zap.Int("attempt", n), zap.String("run_id", result.RunID))
			return result, nil
		}

		lastErr = err
		d.metrics.batchAttempt("failed")
		if CodeOf(err) == CodeInvalidInput {
			break
		}
		if n == attempts {
			break
		}

		wait := backoff(n)
		log.Warn("Batch import attempt failed; retrying",
			zap.Int("attempt", n),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := d.clock.Sleep(ctx, wait); err != nil {
			log.Warn("Batch backoff interrupted", zap.Error(err))
			break
		}
	}

	log.Error("Batch import failed", zap.Error(lastErr))
	d.auditor.Record(ctx, audit.Entry{
		ActorID:  SystemActorID,
		Action:   ActionBatchImportFailed,
		TargetID: d.orchestrator.locks.Key(),
		AfterData: map[string]any{
			"startDate":   r.Start.Format(emr.DateLayout),
			"endDate":     r.End.Format(emr.DateLayout),
			"daysBack":    cfg.DaysBack,
			"maxRetries":  cfg.MaxRetries,
			"lastCode":    string(CodeOf(lastErr)),
			"lastError":   lastErr.Error(),
			"completedAt": d.clock.Now(),
		},
	})
	return nil, newError(CodeBatchImportFailed, "batch import failed after retries", lastErr)
}
