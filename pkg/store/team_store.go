// Package store provides the GORM-backed persistence layer for the
// dependency graph and the sync engine's records.
package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/model"
)

// TeamStore provides CRUD operations for teams.
type TeamStore struct {
	db *gorm.DB
}

// NewTeamStore creates a new TeamStore.
func NewTeamStore(db *gorm.DB) *TeamStore {
	return &TeamStore{db: db}
}

// AutoMigrate creates or updates the teams table.
func (s *TeamStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.Team{})
}

// Create inserts a team, assigning an ID when missing.
func (s *TeamStore) Create(team *model.Team) error {
	if team.ID == "" {
		team.ID = uuid.New().String()
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now()
	}
	if err := s.db.Create(team).Error; err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// Get retrieves a team by ID. Returns nil, nil when it does not exist.
func (s *TeamStore) Get(id string) (*model.Team, error) {
	var team model.Team
	err := s.db.Where("id = ?", id).First(&team).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &team, nil
}

// GetByName retrieves a team by name. Returns nil, nil when it does not exist.
func (s *TeamStore) GetByName(name string) (*model.Team, error) {
	var team model.Team
	err := s.db.Where("name = ?", name).First(&team).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get team by name: %w", err)
	}
	return &team, nil
}

// List returns all teams ordered by name.
func (s *TeamStore) List() ([]model.Team, error) {
	var teams []model.Team
	if err := s.db.Order("name ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}
