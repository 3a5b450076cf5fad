package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/model"
)

// AliasStore provides CRUD operations for dependency aliases.
type AliasStore struct {
	db *gorm.DB
}

// NewAliasStore creates a new AliasStore.
func NewAliasStore(db *gorm.DB) *AliasStore {
	return &AliasStore{db: db}
}

// AutoMigrate creates or updates the dependency_aliases table.
func (s *AliasStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.DependencyAlias{})
}

// Create inserts an alias, assigning an ID when missing.
func (s *AliasStore) Create(alias *model.DependencyAlias) error {
	if alias.ID == "" {
		alias.ID = uuid.New().String()
	}
	now := time.Now()
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = now
	}
	alias.UpdatedAt = now
	if err := s.db.Create(alias).Error; err != nil {
		return fmt.Errorf("create alias: %w", err)
	}
	return nil
}

// Save persists all fields of an existing alias.
func (s *AliasStore) Save(alias *model.DependencyAlias) error {
	alias.UpdatedAt = time.Now()
	if err := s.db.Save(alias).Error; err != nil {
		return fmt.Errorf("save alias: %w", err)
	}
	return nil
}

// Delete removes an alias by ID.
func (s *AliasStore) Delete(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&model.DependencyAlias{}).Error; err != nil {
		return fmt.Errorf("delete alias: %w", err)
	}
	return nil
}

// ListByTeam returns the team-scoped aliases for a team.
func (s *AliasStore) ListByTeam(teamID string) ([]model.DependencyAlias, error) {
	var aliases []model.DependencyAlias
	if err := s.db.Where("team_id = ?", teamID).Find(&aliases).Error; err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	return aliases, nil
}

// OverrideStore provides CRUD operations for canonical overrides.
type OverrideStore struct {
	db *gorm.DB
}

// NewOverrideStore creates a new OverrideStore.
func NewOverrideStore(db *gorm.DB) *OverrideStore {
	return &OverrideStore{db: db}
}

// AutoMigrate creates or updates the canonical_overrides table.
func (s *OverrideStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.CanonicalOverride{})
}

// Create inserts an override, assigning an ID when missing.
func (s *OverrideStore) Create(ovr *model.CanonicalOverride) error {
	if ovr.ID == "" {
		ovr.ID = uuid.New().String()
	}
	now := time.Now()
	if ovr.CreatedAt.IsZero() {
		ovr.CreatedAt = now
	}
	ovr.UpdatedAt = now
	if err := s.db.Create(ovr).Error; err != nil {
		return fmt.Errorf("create override: %w", err)
	}
	return nil
}

// Save persists all fields of an existing override.
func (s *OverrideStore) Save(ovr *model.CanonicalOverride) error {
	ovr.UpdatedAt = time.Now()
	if err := s.db.Save(ovr).Error; err != nil {
		return fmt.Errorf("save override: %w", err)
	}
	return nil
}

// Delete removes an override by ID.
func (s *OverrideStore) Delete(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&model.CanonicalOverride{}).Error; err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	return nil
}

// ListByTeam returns a team's overrides.
func (s *OverrideStore) ListByTeam(teamID string) ([]model.CanonicalOverride, error) {
	var overrides []model.CanonicalOverride
	if err := s.db.Where("team_id = ?", teamID).Find(&overrides).Error; err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return overrides, nil
}

// AssociationStore provides CRUD operations for dependency associations.
type AssociationStore struct {
	db *gorm.DB
}

// NewAssociationStore creates a new AssociationStore.
func NewAssociationStore(db *gorm.DB) *AssociationStore {
	return &AssociationStore{db: db}
}

// AutoMigrate creates or updates the dependency_associations table.
func (s *AssociationStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.DependencyAssociation{})
}

// Create inserts an association, assigning an ID when missing.
func (s *AssociationStore) Create(assoc *model.DependencyAssociation) error {
	if assoc.ID == "" {
		assoc.ID = uuid.New().String()
	}
	now := time.Now()
	if assoc.CreatedAt.IsZero() {
		assoc.CreatedAt = now
	}
	assoc.UpdatedAt = now
	if err := s.db.Create(assoc).Error; err != nil {
		return fmt.Errorf("create association: %w", err)
	}
	return nil
}

// Delete removes an association by ID.
func (s *AssociationStore) Delete(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&model.DependencyAssociation{}).Error; err != nil {
		return fmt.Errorf("delete association: %w", err)
	}
	return nil
}

// ListByTeam returns a team's associations.
func (s *AssociationStore) ListByTeam(teamID string) ([]model.DependencyAssociation, error) {
	var assocs []model.DependencyAssociation
	if err := s.db.Where("team_id = ?", teamID).Find(&assocs).Error; err != nil {
		return nil, fmt.Errorf("list associations: %w", err)
	}
	return assocs, nil
}

// ListByService returns the associations pointing at one service.
func (s *AssociationStore) ListByService(serviceID string) ([]model.DependencyAssociation, error) {
	var assocs []model.DependencyAssociation
	if err := s.db.Where("service_id = ?", serviceID).Find(&assocs).Error; err != nil {
		return nil, fmt.Errorf("list associations by service: %w", err)
	}
	return assocs, nil
}
