package models

import "time"

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusPartial = "partial"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusEmpty   = "empty"
)

// SyncRun is one synchronization pass for a single entity type. Per-record
// diagnostics live in SyncRunError; they are kept even when the data
// transaction of a failed run rolls back.
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	Entity        string     `gorm:"index;size:50;not null" json:"entity"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	Created       int        `json:"created"`
	Updated       int        `json:"updated"`
	ErrorCount    int        `json:"error_count"`
	StatsJSON     []byte     `gorm:"type:json" json:"stats"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CorrelationId string     `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type SyncRunError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	SyncRunId   uint      `gorm:"index;not null" json:"sync_run_id"`
	Entity      string    `gorm:"size:50" json:"entity"`
	ExternalKey string    `gorm:"size:255" json:"external_key"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
