package store

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/manifest"
	"github.com/deptrack/deptrack/pkg/model"
)

// Snapshot is the team's persisted state for the four reconciled resource
// kinds, indexed by natural key. It is read once per run, under the
// coordinator's per-team lock, so it is a consistent view.
type Snapshot struct {
	// ServicesByKey indexes manifest-keyed services by their manifest key.
	// Services without a manifest key never appear here and are never
	// touched by sync.
	ServicesByKey map[string]*model.Service

	// ServicesByID indexes every team service, keyed or not, for
	// association resolution and drift reporting.
	ServicesByID map[string]*model.Service

	// AliasesByName indexes team-scoped aliases by alias string.
	AliasesByName map[string]*model.DependencyAlias

	// OverridesByCanonical indexes the team's overrides by canonical name.
	OverridesByCanonical map[string]*model.CanonicalOverride

	// AssociationsByPair indexes associations by (dependency, service
	// manifest key). Associations pointing at services without a manifest
	// key are excluded: they cannot be expressed in a manifest.
	AssociationsByPair map[string]*model.DependencyAssociation
}

// ManifestKeys returns the set of manifest keys present in the snapshot.
func (s *Snapshot) ManifestKeys() mapset.Set[string] {
	keys := mapset.NewSet[string]()
	for key := range s.ServicesByKey {
		keys.Add(key)
	}
	return keys
}

// SnapshotReader loads a team's current persisted state.
type SnapshotReader struct {
	db *gorm.DB
}

// NewSnapshotReader creates a new SnapshotReader.
func NewSnapshotReader(db *gorm.DB) *SnapshotReader {
	return &SnapshotReader{db: db}
}

// Read loads the four resource kinds for one team and builds the natural-key
// indexes.
func (r *SnapshotReader) Read(teamID string) (*Snapshot, error) {
	snap := &Snapshot{
		ServicesByKey:        make(map[string]*model.Service),
		ServicesByID:         make(map[string]*model.Service),
		AliasesByName:        make(map[string]*model.DependencyAlias),
		OverridesByCanonical: make(map[string]*model.CanonicalOverride),
		AssociationsByPair:   make(map[string]*model.DependencyAssociation),
	}

	var services []model.Service
	if err := r.db.Where("team_id = ?", teamID).Find(&services).Error; err != nil {
		return nil, fmt.Errorf("snapshot services: %w", err)
	}
	for i := range services {
		svc := &services[i]
		snap.ServicesByID[svc.ID] = svc
		if svc.ManifestKey != nil && *svc.ManifestKey != "" {
			snap.ServicesByKey[*svc.ManifestKey] = svc
		}
	}

	var aliases []model.DependencyAlias
	if err := r.db.Where("team_id = ?", teamID).Find(&aliases).Error; err != nil {
		return nil, fmt.Errorf("snapshot aliases: %w", err)
	}
	for i := range aliases {
		snap.AliasesByName[aliases[i].Alias] = &aliases[i]
	}

	var overrides []model.CanonicalOverride
	if err := r.db.Where("team_id = ?", teamID).Find(&overrides).Error; err != nil {
		return nil, fmt.Errorf("snapshot overrides: %w", err)
	}
	for i := range overrides {
		snap.OverridesByCanonical[overrides[i].Canonical] = &overrides[i]
	}

	var assocs []model.DependencyAssociation
	if err := r.db.Where("team_id = ?", teamID).Find(&assocs).Error; err != nil {
		return nil, fmt.Errorf("snapshot associations: %w", err)
	}
	for i := range assocs {
		assoc := &assocs[i]
		svc, ok := snap.ServicesByID[assoc.ServiceID]
		if !ok || svc.ManifestKey == nil || *svc.ManifestKey == "" {
			continue
		}
		snap.AssociationsByPair[manifest.AssociationNaturalKey(assoc.Dependency, *svc.ManifestKey)] = assoc
	}

	return snap, nil
}
