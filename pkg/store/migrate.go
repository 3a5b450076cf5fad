package store

import (
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/model"
)

// AutoMigrateAll creates or updates every table the engine uses. Production
// deployments run the embedded SQL migrations instead; this is the path for
// development databases.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Team{},
		&model.TeamManifestConfig{},
		&model.Service{},
		&model.DependencyAlias{},
		&model.CanonicalOverride{},
		&model.DependencyAssociation{},
		&model.DriftFlag{},
		&model.SyncHistoryEntry{},
	)
}
