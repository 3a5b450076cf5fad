package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/model"
)

// DriftStore provides operations on drift flags.
type DriftStore struct {
	db *gorm.DB
}

// NewDriftStore creates a new DriftStore.
func NewDriftStore(db *gorm.DB) *DriftStore {
	return &DriftStore{db: db}
}

// AutoMigrate creates or updates the drift_flags table.
func (s *DriftStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.DriftFlag{})
}

// Create inserts a drift flag, assigning an ID when missing.
func (s *DriftStore) Create(flag *model.DriftFlag) error {
	if flag.ID == "" {
		flag.ID = uuid.New().String()
	}
	if err := s.db.Create(flag).Error; err != nil {
		return fmt.Errorf("create drift flag: %w", err)
	}
	return nil
}

// Get retrieves a drift flag by ID. Returns nil, nil when it does not exist.
func (s *DriftStore) Get(id string) (*model.DriftFlag, error) {
	var flag model.DriftFlag
	err := s.db.Where("id = ?", id).First(&flag).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get drift flag: %w", err)
	}
	return &flag, nil
}

// GetOpen retrieves the open flag for one (service, field) pair. Returns
// nil, nil when no open flag exists.
func (s *DriftStore) GetOpen(serviceID, field string) (*model.DriftFlag, error) {
	var flag model.DriftFlag
	err := s.db.Where("service_id = ? AND field = ? AND resolved_at IS NULL", serviceID, field).
		First(&flag).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get open drift flag: %w", err)
	}
	return &flag, nil
}

// ListOpenByTeam returns a team's open drift flags, newest detection first.
func (s *DriftStore) ListOpenByTeam(teamID string) ([]model.DriftFlag, error) {
	var flags []model.DriftFlag
	err := s.db.Where("team_id = ? AND resolved_at IS NULL", teamID).
		Order("last_detected_at DESC").Find(&flags).Error
	if err != nil {
		return nil, fmt.Errorf("list open drift flags: %w", err)
	}
	return flags, nil
}

// ListByTeam returns a team's drift flags filtered by state: "open",
// "resolved" or "all".
func (s *DriftStore) ListByTeam(teamID, state string) ([]model.DriftFlag, error) {
	query := s.db.Where("team_id = ?", teamID).Order("last_detected_at DESC")
	switch state {
	case "open", "":
		query = query.Where("resolved_at IS NULL")
	case "resolved":
		query = query.Where("resolved_at IS NOT NULL")
	case "all":
	default:
		return nil, fmt.Errorf("unknown drift state filter %q", state)
	}

	var flags []model.DriftFlag
	if err := query.Find(&flags).Error; err != nil {
		return nil, fmt.Errorf("list drift flags: %w", err)
	}
	return flags, nil
}

// Refresh updates an open flag's observed values and detection time on
// repeated confirmation across runs.
func (s *DriftStore) Refresh(id string, manifestValue, liveValue string, at time.Time, runID string) error {
	err := s.db.Model(&model.DriftFlag{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"manifest_value":   manifestValue,
			"live_value":       liveValue,
			"last_detected_at": at,
			"sync_run_id":      runID,
		}).Error
	if err != nil {
		return fmt.Errorf("refresh drift flag: %w", err)
	}
	return nil
}

// Resolve closes a flag, recording who or what resolved it.
func (s *DriftStore) Resolve(id, resolvedBy string, at time.Time) error {
	err := s.db.Model(&model.DriftFlag{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(map[string]any{"resolved_at": at, "resolved_by": resolvedBy}).Error
	if err != nil {
		return fmt.Errorf("resolve drift flag: %w", err)
	}
	return nil
}
