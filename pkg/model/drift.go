package model

import "time"

// DriftType classifies what diverged.
type DriftType string

const (
	// DriftTypeFieldModified means a manifest-authoritative field was edited
	// outside the manifest after the last sync wrote it.
	DriftTypeFieldModified DriftType = "field_modified"
)

// DriftFlag records one observed divergence between a manifest-managed
// field's live value and the value last written by sync. Open flags are
// refreshed on repeated confirmation and resolved either automatically when
// convergence is observed or manually by a user.
type DriftFlag struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	TeamID        string    `gorm:"column:team_id;index:idx_drift_team;not null"`
	ServiceID     string    `gorm:"column:service_id;index:idx_drift_service;not null"`
	DriftType     DriftType `gorm:"column:drift_type;not null"`
	Field         string    `gorm:"column:field"`
	ManifestValue string    `gorm:"column:manifest_value"`
	LiveValue     string    `gorm:"column:live_value"`

	FirstDetectedAt time.Time  `gorm:"column:first_detected_at;not null"`
	LastDetectedAt  time.Time  `gorm:"column:last_detected_at;not null"`
	ResolvedAt      *time.Time `gorm:"column:resolved_at"`
	ResolvedBy      string     `gorm:"column:resolved_by"`

	SyncRunID string `gorm:"column:sync_run_id"`
}

// TableName returns the GORM table name.
func (DriftFlag) TableName() string { return "drift_flags" }

// Open reports whether the flag is still unresolved.
func (f *DriftFlag) Open() bool { return f.ResolvedAt == nil }
