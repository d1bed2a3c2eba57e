package fleetsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/wevois/vm_backend/config"
	"github.com/wevois/vm_backend/models"
	"github.com/wevois/vm_backend/utils"
	"gorm.io/gorm"
)

// RunSync executes one synchronization pass for the given entity: fetch the
// remote payload, reconcile it into storage inside a single transaction, and
// record the pass as a SyncRun row with its per-record diagnostics.
//
// The returned error is non-nil only for infrastructure failures (fetch or
// storage); record-level problems are reported in the summary and do not fail
// the call. Summary.Empty marks a pass where the remote path held no data.
func RunSync(ctx context.Context, db *gorm.DB, fetcher Fetcher, cfg entityConfig) (SyncSummary, error) {
	logger := config.GetLogger()

	// Guard against two concurrent passes on the same entity. A held lock
	// skips the pass; a down Redis degrades to running unguarded, since
	// upserts are idempotent and correctness never depends on the lock.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "fleetsync:run:"+cfg.Entity, 5*time.Minute, nil)
		switch {
		case err == nil:
			defer lock.Release(context.WithoutCancel(ctx))
		case errors.Is(err, redislock.ErrNotObtained):
			logger.WithField("entity", cfg.Entity).Warn("sync pass already running; skipping")
			return SyncSummary{
				Status:  SummaryStatusError,
				Message: "A synchronization pass for " + cfg.Entity + " is already running.",
				Errors:  []string{},
				Skipped: true,
			}, nil
		default:
			logger.WithField("entity", cfg.Entity).Warn("run lock unavailable; proceeding unguarded")
		}
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	now := time.Now()
	run := models.SyncRun{
		Entity:        cfg.Entity,
		Status:        models.SyncRunStatusRunning,
		StartedAt:     &now,
		CorrelationId: correlationId,
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		config.LogError(logger, "fleetsync", "RunSync", "create sync run", cfg.Entity, err)
		return SyncSummary{Status: SummaryStatusError, Message: "could not record sync run"}, err
	}

	payloads := make([]map[string]json.RawMessage, 0, len(cfg.Paths))
	for _, path := range cfg.Paths {
		payload, err := fetcher.Get(ctx, path)
		if err != nil {
			config.LogError(logger, "fleetsync", "RunSync", "fetch "+path, cfg.Entity, err)
			finalizeRun(ctx, db, &run, models.SyncRunStatusFailed, SyncSummary{}, 1, nil)
			return SyncSummary{Status: SummaryStatusError, Message: "could not reach the remote store", RunId: run.ID}, err
		}
		payloads = append(payloads, payload)
	}

	// No data is not a failure; the summary reports a clean zero-work pass.
	if len(payloads) == 0 || len(payloads[0]) == 0 {
		finalizeRun(ctx, db, &run, models.SyncRunStatusEmpty, SyncSummary{}, 0, nil)
		return SyncSummary{
			Status:  SummaryStatusSuccess,
			Message: "No data found in the remote store.",
			Errors:  []string{},
			RunId:   run.ID,
			Empty:   true,
		}, nil
	}

	var sum SyncSummary
	diag := &diagnostics{}
	txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return reconcile(tx, cfg, payloads, &sum, diag)
	})

	// Diagnostics are written outside the data transaction so a rolled-back
	// run still leaves a trace of what went wrong.
	persistDiagnostics(ctx, db, run.ID, diag)

	if txErr != nil {
		config.LogError(logger, "fleetsync", "RunSync", "reconcile", cfg.Entity, txErr)
		finalizeRun(ctx, db, &run, models.SyncRunStatusFailed, SyncSummary{}, len(diag.entries)+1, nil)
		return SyncSummary{Status: SummaryStatusError, Message: "synchronization failed", RunId: run.ID}, txErr
	}

	status := models.SyncRunStatusSuccess
	if len(diag.entries) > 0 {
		status = models.SyncRunStatusPartial
		if sum.Created+sum.Updated == 0 {
			status = models.SyncRunStatusFailed
		}
	}
	stats := map[string]int{
		"created": sum.Created,
		"updated": sum.Updated,
		"errors":  len(diag.entries),
	}
	finalizeRun(ctx, db, &run, status, sum, len(diag.entries), stats)

	sum.Status = SummaryStatusSuccess
	sum.Message = fmt.Sprintf("Synchronization complete. %d records processed. %d created, %d updated.",
		sum.Created+sum.Updated+len(diag.entries), sum.Created, sum.Updated)
	sum.Errors = diag.messages()
	sum.RunId = run.ID

	logger.WithFields(map[string]any{
		"entity":  cfg.Entity,
		"status":  status,
		"created": sum.Created,
		"updated": sum.Updated,
		"errors":  len(diag.entries),
		"run_id":  run.ID,
	}).Info("sync pass finished")

	return sum, nil
}

func lastStatusKey(entity string) string {
	return "fleetsync:last_status:" + entity
}

func finalizeRun(ctx context.Context, db *gorm.DB, run *models.SyncRun, status string, sum SyncSummary, errorCount int, stats map[string]int) {
	finishedAt := time.Now()
	updates := map[string]any{
		"status":      status,
		"created":     sum.Created,
		"updated":     sum.Updated,
		"error_count": errorCount,
		"finished_at": finishedAt,
	}
	if run.StartedAt != nil {
		updates["duration_ms"] = finishedAt.Sub(*run.StartedAt).Milliseconds()
	}
	if stats != nil {
		if statsJSON, err := json.Marshal(stats); err == nil {
			updates["stats_json"] = statsJSON
		}
	}
	if err := db.WithContext(ctx).Model(run).Updates(updates).Error; err != nil {
		config.LogError(config.GetLogger(), "fleetsync", "finalizeRun", "update sync run", run.ID, err)
	}
	_ = config.SetRedisValue(lastStatusKey(run.Entity), status, 24*time.Hour)
}

func persistDiagnostics(ctx context.Context, db *gorm.DB, runId uint, diag *diagnostics) {
	for _, e := range diag.entries {
		rec := models.SyncRunError{
			SyncRunId:   runId,
			Entity:      e.Entity,
			ExternalKey: e.Key,
			ErrorCode:   e.Code,
			Message:     e.Message,
		}
		if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
			config.LogError(config.GetLogger(), "fleetsync", "persistDiagnostics", "create sync run error", runId, err)
			return
		}
	}
}
