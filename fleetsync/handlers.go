package fleetsync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wevois/vm_backend/config"
	"github.com/wevois/vm_backend/models"
	"gorm.io/gorm"
)

// SyncHandler serves one pull-sync endpoint for the given entity. A run with
// record-level problems is still 200; only an unreachable remote store or a
// failing database turn into an HTTP error.
func SyncHandler(fetcher Fetcher, cfg entityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		sum, err := RunSync(c.Request.Context(), db, fetcher, cfg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": SummaryStatusError, "message": sum.Message})
			return
		}
		if sum.Skipped {
			c.JSON(http.StatusConflict, gin.H{"status": sum.Status, "message": sum.Message})
			return
		}
		if sum.Empty {
			c.JSON(http.StatusNotFound, sum)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

// PushIssuePartsHandler accepts parts consumed against an issue from the
// field app, keyed by the issue's remote id. Unknown parts are skipped and
// reported; they do not fail the request.
func PushIssuePartsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		firebaseId := strings.TrimSpace(c.Param("firebaseId"))

		var req PushIssuePartsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ctx := c.Request.Context()
		var issue models.Issue
		if err := db.WithContext(ctx).Where("firebase_id = ?", firebaseId).Take(&issue).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		sum := SyncSummary{Status: SummaryStatusSuccess, Errors: []string{}}
		diag := &diagnostics{}

		txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, part := range req.Parts {
				var dbPart models.Part
				if err := tx.Where("part_id = ?", part.PartId).Take(&dbPart).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						diag.add("issue_part", part.PartId, "reference_missing", "part '"+part.PartId+"' not synced yet")
						continue
					}
					return err
				}

				plan, err := mapPushPart(issue.FirebaseId, dbPart.ID, part)
				if err != nil {
					var recErr *recordError
					if errors.As(err, &recErr) {
						diag.add("issue_part", part.PartId, recErr.code, recErr.message)
						continue
					}
					return err
				}

				created, err := Upsert(tx, plan.Model, plan.Keys, plan.Fields, plan.CreateOnly)
				if err != nil {
					if isInfraError(err) {
						return err
					}
					diag.add("issue_part", part.PartId, "upsert_failed", err.Error())
					continue
				}
				if created {
					sum.Created++
				} else {
					sum.Updated++
				}
			}
			return nil
		})
		if txErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": txErr.Error()})
			return
		}

		sum.Message = "Parts recorded."
		sum.Errors = diag.messages()
		c.JSON(http.StatusOK, sum)
	}
}

// mapPushPart validates one pushed part the same way the pull path does: a
// quantity that is absent or non-positive, or a computed amount that is not
// positive, rejects the record instead of writing fabricated values.
func mapPushPart(issueFirebaseId string, partRowId uint, part PushIssuePart) (*upsertPlan, error) {
	qty := DecimalFromAny(part.Qty)
	if !qty.Valid || qty.Decimal.IntPart() <= 0 {
		return nil, errValidation("invalid qty %q", StringFromAny(part.Qty))
	}
	price := DecimalFromAny(part.Price)
	if !price.Valid {
		return nil, errValidation("missing price")
	}
	amount := price.Decimal.Mul(qty.Decimal)
	if amount.Sign() <= 0 {
		return nil, errValidation("non-positive amount %s", amount.String())
	}

	return &upsertPlan{
		Model: &models.IssuePart{},
		Keys: map[string]any{
			"firebase_id": issueFirebaseId,
			"part_id":     partRowId,
			"stock":       part.Stock,
		},
		Fields: map[string]any{
			"qty":         qty.Decimal.IntPart(),
			"price":       price.Decimal,
			"amount":      amount,
			"purchase_id": part.PurchaseId,
		},
	}, nil
}

// SyncStatusHandler reports the last known pass status per entity, served
// from Redis. Entities that have not run since the cache expired show as
// unknown.
func SyncStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses := make(map[string]string)
		for _, cfg := range EntityConfigs() {
			status, found, err := config.GetRedisValue(lastStatusKey(cfg.Entity))
			if err != nil || !found {
				status = "unknown"
			}
			statuses[cfg.Entity] = status
		}
		c.JSON(http.StatusOK, gin.H{"entities": statuses})
	}
}

// SyncRunsHandler lists recent sync passes, newest first. Optional filters:
// ?entity=issue and ?limit=N (max 100).
func SyncRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		query := db.WithContext(c.Request.Context()).Model(&models.SyncRun{})
		if entity := strings.TrimSpace(c.Query("entity")); entity != "" {
			query = query.Where("entity = ?", entity)
		}

		var runs []models.SyncRun
		if err := query.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncRunListResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := c.Request.Context()
		var run models.SyncRun
		if err := db.WithContext(ctx).Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var errs []models.SyncRunError
		if err := db.WithContext(ctx).Where("sync_run_id = ?", run.ID).Order("id desc").Find(&errs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(run),
			Errors:          mapRunErrors(errs),
		})
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:         run.ID,
		Entity:     run.Entity,
		Status:     run.Status,
		Created:    run.Created,
		Updated:    run.Updated,
		ErrorCount: run.ErrorCount,
		StartedAt:  formatTime(run.StartedAt),
		FinishedAt: formatTime(run.FinishedAt),
		DurationMs: run.DurationMs,
	}
}

func mapRunErrors(errorsList []models.SyncRunError) []SyncRunErrorResponse {
	out := make([]SyncRunErrorResponse, 0, len(errorsList))
	for _, errItem := range errorsList {
		out = append(out, SyncRunErrorResponse{
			ID:          errItem.ID,
			Entity:      errItem.Entity,
			ExternalKey: errItem.ExternalKey,
			Code:        errItem.ErrorCode,
			Message:     errItem.Message,
		})
	}
	return out
}
