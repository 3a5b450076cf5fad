package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/deptrack/deptrack/pkg/model"
)

// ManifestConfigStore provides operations on per-team manifest sync
// configuration, including the cached last_sync_* block the coordinator
// writes after each run.
type ManifestConfigStore struct {
	db *gorm.DB
}

// NewManifestConfigStore creates a new ManifestConfigStore.
func NewManifestConfigStore(db *gorm.DB) *ManifestConfigStore {
	return &ManifestConfigStore{db: db}
}

// AutoMigrate creates or updates the team_manifest_configs table.
func (s *ManifestConfigStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.TeamManifestConfig{})
}

// GetByTeam retrieves a team's manifest config. Returns nil, nil when the
// team has none.
func (s *ManifestConfigStore) GetByTeam(teamID string) (*model.TeamManifestConfig, error) {
	var cfg model.TeamManifestConfig
	err := s.db.Where("team_id = ?", teamID).First(&cfg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get manifest config: %w", err)
	}
	return &cfg, nil
}

// Upsert creates or updates a team's manifest config. The conflict is
// resolved on the team_id unique index; the cached last_sync_* fields are
// left untouched on update.
func (s *ManifestConfigStore) Upsert(cfg *model.TeamManifestConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	cfg.UpdatedAt = time.Now()
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"manifest_url", "enabled", "sync_interval", "auth_token", "updated_at",
		}),
	}).Create(cfg).Error
	if err != nil {
		return fmt.Errorf("upsert manifest config: %w", err)
	}
	return nil
}

// ListEnabled returns every enabled config, for the scheduler.
func (s *ManifestConfigStore) ListEnabled() ([]model.TeamManifestConfig, error) {
	var configs []model.TeamManifestConfig
	if err := s.db.Where("enabled = ?", true).Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("list enabled manifest configs: %w", err)
	}
	return configs, nil
}

// RecordRunOutcome updates the cached last_sync_* block after a run.
func (s *ManifestConfigStore) RecordRunOutcome(
	teamID string, at time.Time, status model.SyncStatus, syncErr, summary string,
) error {
	err := s.db.Model(&model.TeamManifestConfig{}).
		Where("team_id = ?", teamID).
		Updates(map[string]any{
			"last_sync_at":      at,
			"last_sync_status":  string(status),
			"last_sync_error":   syncErr,
			"last_sync_summary": summary,
		}).Error
	if err != nil {
		return fmt.Errorf("record run outcome: %w", err)
	}
	return nil
}
