// Package model defines the GORM models for the dependency graph that the
// sync engine reconciles: teams, their manifest configuration, tracked
// services, and the secondary resources (aliases, overrides, associations)
// whose lifecycle a manifest may own.
package model

import (
	"encoding/json"
	"time"
)

// Team is a tenant owning a partition of the dependency graph.
type Team struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Name      string    `gorm:"column:name;uniqueIndex:idx_team_name;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName returns the GORM table name.
func (Team) TableName() string { return "teams" }

// TeamManifestConfig holds a team's manifest sync settings plus the cached
// outcome of the most recent run. The last_sync_* fields are written only by
// the sync coordinator.
type TeamManifestConfig struct {
	ID           string `gorm:"primaryKey;column:id;type:varchar(36)"`
	TeamID       string `gorm:"column:team_id;uniqueIndex:idx_manifest_config_team;not null"`
	ManifestURL  string `gorm:"column:manifest_url;not null"`
	// No default tag: gorm skips zero-valued fields that carry one, which
	// would silently re-enable a config written with Enabled=false.
	Enabled      bool   `gorm:"column:enabled"`
	SyncInterval string `gorm:"column:sync_interval;default:1h"`
	AuthToken    string `gorm:"column:auth_token"`

	LastSyncAt      *time.Time `gorm:"column:last_sync_at"`
	LastSyncStatus  string     `gorm:"column:last_sync_status"`
	LastSyncError   string     `gorm:"column:last_sync_error"`
	LastSyncSummary string     `gorm:"column:last_sync_summary"`

	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (TeamManifestConfig) TableName() string { return "team_manifest_configs" }

// Interval parses the configured sync interval, falling back to one hour
// when unset or unparsable.
func (c *TeamManifestConfig) Interval() time.Duration {
	if c.SyncInterval == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// Service is a tracked system. A service claimed by a manifest carries its
// manifest key and a snapshot of the field values the last successful sync
// wrote, which is the baseline for drift detection. Services are
// soft-deactivated (Skipped) instead of deleted so health history and
// inbound associations survive manifest removal.
type Service struct {
	ID          string `gorm:"primaryKey;column:id;type:varchar(36)"`
	TeamID      string `gorm:"column:team_id;index:idx_service_team;uniqueIndex:idx_service_team_key,priority:1;not null"`
	Name        string `gorm:"column:name;not null"`
	Description string `gorm:"column:description"`
	Tier        string `gorm:"column:tier"`
	Link        string `gorm:"column:link"`
	Skipped     bool   `gorm:"column:skipped;default:false"`

	// Manifest keys are unique per team; rows without a key stay outside
	// the index (SQL NULLs never collide).
	ManifestKey              *string `gorm:"column:manifest_key;uniqueIndex:idx_service_team_key,priority:2"`
	ManifestManaged          bool    `gorm:"column:manifest_managed;default:false"`
	ManifestLastSyncedValues string  `gorm:"column:manifest_last_synced_values"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (Service) TableName() string { return "services" }

// LastSyncedValues decodes the stored field snapshot. Returns nil when no
// sync has written one yet.
func (s *Service) LastSyncedValues() map[string]string {
	if s.ManifestLastSyncedValues == "" {
		return nil
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(s.ManifestLastSyncedValues), &values); err != nil {
		return nil
	}
	return values
}

// SetLastSyncedValues encodes and stores the field snapshot.
func (s *Service) SetLastSyncedValues(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	s.ManifestLastSyncedValues = string(data)
	return nil
}

// FieldValue returns the live value of a manifest-authoritative field.
func (s *Service) FieldValue(field string) (string, bool) {
	switch field {
	case "name":
		return s.Name, true
	case "description":
		return s.Description, true
	case "tier":
		return s.Tier, true
	case "link":
		return s.Link, true
	}
	return "", false
}

// SetFieldValue sets a manifest-authoritative field by name.
func (s *Service) SetFieldValue(field, value string) bool {
	switch field {
	case "name":
		s.Name = value
	case "description":
		s.Description = value
	case "tier":
		s.Tier = value
	case "link":
		s.Link = value
	default:
		return false
	}
	return true
}

// DependencyAlias maps an observed dependency name to its canonical name.
// Team-scoped aliases (TeamID set) may be manifest-managed; global aliases
// (TeamID empty) are always human-owned.
type DependencyAlias struct {
	ID              string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	TeamID          string    `gorm:"column:team_id;uniqueIndex:idx_alias_scope,priority:1"`
	Alias           string    `gorm:"column:alias;uniqueIndex:idx_alias_scope,priority:2;not null"`
	Canonical       string    `gorm:"column:canonical;not null"`
	ManifestManaged bool      `gorm:"column:manifest_managed;default:false"`
	ManifestKey     string    `gorm:"column:manifest_key"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (DependencyAlias) TableName() string { return "dependency_aliases" }

// CanonicalOverride renames a canonical dependency for display within one
// team's view of the graph.
type CanonicalOverride struct {
	ID              string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	TeamID          string    `gorm:"column:team_id;uniqueIndex:idx_override_scope,priority:1;not null"`
	Canonical       string    `gorm:"column:canonical;uniqueIndex:idx_override_scope,priority:2;not null"`
	DisplayName     string    `gorm:"column:display_name;not null"`
	ManifestManaged bool      `gorm:"column:manifest_managed;default:false"`
	ManifestKey     string    `gorm:"column:manifest_key"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (CanonicalOverride) TableName() string { return "canonical_overrides" }

// DependencyAssociation links a canonical dependency to a service it backs.
// Manual associations are created through the CRUD API; manifest-managed
// ones by sync.
type DependencyAssociation struct {
	ID              string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	TeamID          string    `gorm:"column:team_id;uniqueIndex:idx_assoc_scope,priority:1;not null"`
	Dependency      string    `gorm:"column:dependency;uniqueIndex:idx_assoc_scope,priority:2;not null"`
	ServiceID       string    `gorm:"column:service_id;uniqueIndex:idx_assoc_scope,priority:3;index:idx_assoc_service;not null"`
	Manual          bool      `gorm:"column:manual;default:false"`
	ManifestManaged bool      `gorm:"column:manifest_managed;default:false"`
	ManifestKey     string    `gorm:"column:manifest_key"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

// TableName returns the GORM table name.
func (DependencyAssociation) TableName() string { return "dependency_associations" }
