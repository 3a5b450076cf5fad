package model

import "time"

// TriggerType identifies what started a sync run.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
)

// SyncStatus is the terminal status of a run.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusFailed  SyncStatus = "failed"
)

// SyncHistoryEntry is the immutable record of one sync run. Rows are only
// ever inserted; they are the sole audit trail for past runs.
type SyncHistoryEntry struct {
	ID          string      `gorm:"primaryKey;column:id;type:varchar(36)"`
	TeamID      string      `gorm:"column:team_id;index:idx_history_team;not null"`
	TriggerType TriggerType `gorm:"column:trigger_type;not null"`
	TriggeredBy string      `gorm:"column:triggered_by"`
	ManifestURL string      `gorm:"column:manifest_url;not null"`
	Status      SyncStatus  `gorm:"column:status;not null"`

	// Summary, Errors and Warnings hold JSON produced by the coordinator.
	Summary  string `gorm:"column:summary"`
	Errors   string `gorm:"column:errors"`
	Warnings string `gorm:"column:warnings"`

	DurationMs int64     `gorm:"column:duration_ms"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_history_created"`
}

// TableName returns the GORM table name.
func (SyncHistoryEntry) TableName() string { return "sync_history_entries" }
