package emrsync

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"ward-admin-server/internal/audit"
	"ward-admin-server/internal/emr"
	"ward-admin-server/internal/logger"
)

// Fetcher is the external data source boundary.
type Fetcher interface {
	Fetch(ctx context.Context, start, end time.Time) ([]emr.Bundle, error)
}

// Locker is the lock store contract the orchestrator relies on.
type Locker interface {
	Acquire(ctx context.Context, holderID string, now time.Time) (*LockHandle, error)
	Release(ctx context.Context, lockID string) error
	Peek(ctx context.Context, now time.Time) (*LockHandle, error)
	Key() string
}

// AdmissionUpserter merges one bundle; failures must be isolated to that bundle.
type AdmissionUpserter interface {
	UpsertAdmission(ctx context.Context, b emr.Bundle) (UpsertCounts, error)
}

// OrchestratorDeps wires an Orchestrator. Auditor, Clock, Logger and Metrics are optional.
type OrchestratorDeps struct {
	Locks    Locker
	Fetcher  Fetcher
	Upserter AdmissionUpserter
	Auditor  audit.Recorder
	Clock    Clock
	Logger   *zap.Logger
	Metrics  *Metrics
}

// Orchestrator runs one lock-guarded fetch-and-merge pass.
type Orchestrator struct {
	locks    Locker
	fetcher  Fetcher
	upserter AdmissionUpserter
	auditor  audit.Recorder
	clock    Clock
	logger   *zap.Logger
	metrics  *Metrics
}

// NewOrchestrator creates an orchestrator from deps.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	o := &Orchestrator{
		locks:    deps.Locks,
		fetcher:  deps.Fetcher,
		upserter: deps.Upserter,
		auditor:  deps.Auditor,
		clock:    deps.Clock,
		logger:   logger.OrNop(deps.Logger),
		metrics:  deps.Metrics,
	}
	if o.clock == nil {
		o.clock = SystemClock{}
	}
	if o.auditor == nil {
		o.auditor = audit.NewLogRecorder(o.logger)
	}
	return o
}

// RunSync imports every admission the external system reports for r on behalf
// of actorID. Admissions that fail to merge are listed in the result; only a
// busy lock (IMPORT_LOCKED), a fetch failure (SYNC_ERROR) or bad arguments
// (INVALID_INPUT) fail the call. The lock is released on every path.
func (o *Orchestrator) RunSync(ctx context.Context, actorID string, r DateRange) (*SyncResult, error) {
	return o.run(ctx, actorID, r, nil)
}

// Status reports the active import lock, or nil when no import is running.
func (o *Orchestrator) Status(ctx context.Context) (*LockHandle, error) {
	return o.locks.Peek(ctx, o.clock.Now())
}

// run is one attempt; extra is merged into the audit payload.
func (o *Orchestrator) run(ctx context.Context, actorID string, r DateRange, extra map[string]any) (*SyncResult, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, newError(CodeInvalidInput, "actor id is required", nil)
	}
	if r.Start.IsZero() || r.End.IsZero() || r.End.Before(r.Start) {
		return nil, newError(CodeInvalidInput, "invalid date range "+r.String(), nil)
	}

	handle, err := o.locks.Acquire(ctx, actorID, o.clock.Now())
	if err != nil {
		if CodeOf(err) == CodeImportLocked {
			o.metrics.lockAcquisition("busy")
			o.metrics.run("locked")
		} else {
			o.metrics.run("sync_error")
			err = newError(CodeSyncError, "could not acquire import lock", err)
		}
		o.recordFailure(ctx, actorID, "", r, err, extra)
		return nil, err
	}
	o.metrics.lockAcquisition("acquired")

	result, err := o.syncHeld(ctx, handle, r)
	if err != nil {
		o.metrics.run("sync_error")
		o.recordFailure(ctx, actorID, handle.ID, r, err, extra)
		return nil, err
	}
	result.CompletedAt = o.clock.Now()
	o.metrics.run("success")

	o.logger.Info("EMR sync completed",
		zap.String("run_id", result.RunID),
		zap.String("actor_id", actorID),
		zap.String("range", r.String()),
		zap.Int("total", result.TotalCount),
		zap.Int("success", result.SuccessCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("vitals", result.VitalsWritten),
		zap.Int("labs", result.LabsWritten),
		zap.Int("prescriptions", result.PrescriptionsWritten),
	)

	data := result.auditData()
	for k, v := range extra {
		data[k] = v
	}
	o.auditor.Record(ctx, audit.Entry{
		ActorID:   actorID,
		Action:    ActionEMRSync,
		TargetID:  result.RunID,
		AfterData: data,
	})
	return result, nil
}

// syncHeld fetches and merges while handle is held, releasing it on return.
func (o *Orchestrator) syncHeld(ctx context.Context, handle *LockHandle, r DateRange) (*SyncResult, error) {
	defer o.release(ctx, handle)

	result := &SyncResult{
		RunID:              handle.ID,
		StartDate:          r.Start.Format(emr.DateLayout),
		EndDate:            r.End.Format(emr.DateLayout),
		FailedAdmissionIDs: []string{},
		StartedAt:          o.clock.Now(),
	}

	bundles, err := o.fetcher.Fetch(ctx, r.Start, r.End)
	if err != nil {
		o.logger.Error("EMR fetch failed", zap.String("run_id", handle.ID), zap.Error(err))
		return nil, newError(CodeSyncError, "failed to fetch admissions from EMR", err)
	}
	result.TotalCount = len(bundles)

	for _, b := range bundles {
		if err := ctx.Err(); err != nil {
			return nil, newError(CodeSyncError, "sync canceled", err)
		}
		counts, err := o.upserter.UpsertAdmission(ctx, b)
		if err != nil {
			result.FailedCount++
			result.FailedAdmissionIDs = append(result.FailedAdmissionIDs, b.Admission.ExternalAdmissionID)
			o.metrics.admission("failed")
			o.logger.Warn("Admission upsert failed",
				zap.String("run_id", handle.ID),
				zap.String("external_admission_id", b.Admission.ExternalAdmissionID),
				zap.Error(err),
			)
			continue
		}
		result.SuccessCount++
		result.addCounts(counts)
		o.metrics.admission("success")
	}
	return result, nil
}

func (o *Orchestrator) release(ctx context.Context, handle *LockHandle) {
	if err := o.locks.Release(context.WithoutCancel(ctx), handle.ID); err != nil {
		o.logger.Error("Failed to release import lock; it will expire at its TTL",
			zap.String("lock_id", handle.ID),
			zap.Time("expires_at", handle.ExpiresAt),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, actorID, runID string, r DateRange, err error, extra map[string]any) {
	data := map[string]any{
		"startDate": r.Start.Format(emr.DateLayout),
		"endDate":   r.End.Format(emr.DateLayout),
		"code":      string(CodeOf(err)),
		"error":     err.Error(),
	}
	for k, v := range extra {
		data[k] = v
	}
	o.auditor.Record(ctx, audit.Entry{
		ActorID:   actorID,
		Action:    ActionEMRSyncFailed,
		TargetID:  runID,
		AfterData: data,
	})
}
