package fleetsync

import "fmt"

// SyncSummary is the result of one reconciliation pass, rendered to the
// caller as-is. Record-level diagnostics ride in Errors; their presence does
// not make the run an HTTP error.
type SyncSummary struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
	RunId   uint     `json:"run_id,omitempty"`

	Empty   bool `json:"-"`
	Skipped bool `json:"-"`
}

const (
	SummaryStatusSuccess = "success"
	SummaryStatusError   = "error"
)

type diagnostic struct {
	Entity  string
	Key     string
	Code    string
	Message string
}

// diagnostics accumulates per-record notes and validation failures without
// aborting the batch.
type diagnostics struct {
	entries []diagnostic
}

func (d *diagnostics) add(entity, key, code, message string) {
	d.entries = append(d.entries, diagnostic{Entity: entity, Key: key, Code: code, Message: message})
}

func (d *diagnostics) messages() []string {
	out := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, fmt.Sprintf("%s '%s': %s", e.Entity, e.Key, e.Message))
	}
	return out
}

// recordError is a per-record failure with a stable code for the run log.
// It never escapes the reconcile loop.
type recordError struct {
	code    string
	message string
}

func (e *recordError) Error() string { return e.message }

func errValidation(format string, args ...any) error {
	return &recordError{code: "invalid_record", message: fmt.Sprintf(format, args...)}
}

func errReferenceMissing(format string, args ...any) error {
	return &recordError{code: "reference_missing", message: fmt.Sprintf(format, args...)}
}

// Push-based issue-part ingestion (the one push endpoint; everything else is
// pull-based).
type PushIssuePartsRequest struct {
	Parts []PushIssuePart `json:"parts" binding:"required,min=1,dive"`
}

type PushIssuePart struct {
	PartId     string `json:"part_id" binding:"required"`
	Stock      string `json:"stock"`
	Qty        any    `json:"qty"`
	Price      any    `json:"price"`
	PurchaseId string `json:"purchase_id"`
}

type SyncRunListResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID         uint    `json:"id"`
	Entity     string  `json:"entity"`
	Status     string  `json:"status"`
	Created    int     `json:"created"`
	Updated    int     `json:"updated"`
	ErrorCount int     `json:"errorCount"`
	StartedAt  *string `json:"startedAt"`
	FinishedAt *string `json:"finishedAt"`
	DurationMs int64   `json:"durationMs"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []SyncRunErrorResponse `json:"errors"`
}

type SyncRunErrorResponse struct {
	ID          uint   `json:"id"`
	Entity      string `json:"entity"`
	ExternalKey string `json:"externalKey"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}
