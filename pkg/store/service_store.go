package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/model"
)

// ServiceStore provides CRUD operations for tracked services.
type ServiceStore struct {
	db *gorm.DB
}

// NewServiceStore creates a new ServiceStore.
func NewServiceStore(db *gorm.DB) *ServiceStore {
	return &ServiceStore{db: db}
}

// AutoMigrate creates or updates the services table.
func (s *ServiceStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.Service{})
}

// Create inserts a service, assigning an ID when missing.
func (s *ServiceStore) Create(svc *model.Service) error {
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}
	now := time.Now()
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = now
	}
	svc.UpdatedAt = now
	if err := s.db.Create(svc).Error; err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// Save persists all fields of an existing service.
func (s *ServiceStore) Save(svc *model.Service) error {
	svc.UpdatedAt = time.Now()
	if err := s.db.Save(svc).Error; err != nil {
		return fmt.Errorf("save service: %w", err)
	}
	return nil
}

// Get retrieves a service by ID. Returns nil, nil when it does not exist.
func (s *ServiceStore) Get(id string) (*model.Service, error) {
	var svc model.Service
	err := s.db.Where("id = ?", id).First(&svc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &svc, nil
}

// ListByTeam returns every service persisted for a team, including skipped
// ones, ordered by name.
func (s *ServiceStore) ListByTeam(teamID string) ([]model.Service, error) {
	var services []model.Service
	if err := s.db.Where("team_id = ?", teamID).Order("name ASC").Find(&services).Error; err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// SetSkipped soft-deactivates or reactivates a service.
func (s *ServiceStore) SetSkipped(id string, skipped bool) error {
	err := s.db.Model(&model.Service{}).
		Where("id = ?", id).
		Updates(map[string]any{"skipped": skipped, "updated_at": time.Now()}).Error
	if err != nil {
		return fmt.Errorf("set service skipped: %w", err)
	}
	return nil
}
