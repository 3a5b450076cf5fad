package sync

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/model"
	"github.com/deptrack/deptrack/pkg/store"
)

// ApplierConfig tunes reconciliation policy.
type ApplierConfig struct {
	// SkipWhileDrifted, when true, leaves a service's drifted fields
	// untouched until its open flags are resolved. The default policy is
	// manifest-wins: drift is informational and never blocks an update.
	SkipWhileDrifted bool
}

// Applier executes a plan kind by kind, each kind inside its own
// transaction boundary. A failed item rolls back to its savepoint, is
// recorded, and the remaining items in the kind proceed; a failure in one
// kind never rolls back an earlier, already committed kind.
type Applier struct {
	db     *gorm.DB
	cfg    ApplierConfig
	logger *slog.Logger
}

// NewApplier creates an applier over the given database handle.
func NewApplier(db *gorm.DB, cfg ApplierConfig, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{db: db, cfg: cfg, logger: logger}
}

// ApplyResult reports what one apply pass did.
type ApplyResult struct {
	Summary Summary
	Errors  []ItemError

	// ServiceIDsByKey resolves manifest keys to service IDs, covering both
	// pre-existing and newly created services.
	ServiceIDsByKey map[string]string
}

// Apply executes the plan for one team. driftedFields maps service IDs to
// the set of field names with open drift, consulted only when
// SkipWhileDrifted is enabled.
func (a *Applier) Apply(teamID string, plan *Plan, snap *store.Snapshot, driftedFields map[string]map[string]bool) *ApplyResult {
	result := &ApplyResult{ServiceIDsByKey: make(map[string]string)}
	for key, svc := range snap.ServicesByKey {
		result.ServiceIDsByKey[key] = svc.ID
	}

	a.applyServices(teamID, plan.Services, driftedFields, result)
	a.applyAliases(teamID, plan.Aliases, result)
	a.applyOverrides(teamID, plan.Overrides, result)
	a.applyAssociations(teamID, plan.Associations, result)
	return result
}

// perKind runs fn inside the kind's transaction. The outer transaction
// always commits; item failures are contained by savepoints inside fn.
func (a *Applier) perKind(fn func(tx *gorm.DB)) {
	_ = a.db.Transaction(func(tx *gorm.DB) error {
		fn(tx)
		return nil
	})
}

// item runs one operation inside a savepoint and records a failure without
// aborting the kind.
func (a *Applier) item(tx *gorm.DB, kind Kind, key string, result *ApplyResult, fn func(tx *gorm.DB) error) bool {
	err := tx.Transaction(fn)
	if err != nil {
		a.logger.Warn("apply item failed", "kind", string(kind), "key", key, "error", err)
		result.Errors = append(result.Errors, ItemError{Kind: kind, Key: key, Message: err.Error()})
		return false
	}
	return true
}

func (a *Applier) applyServices(teamID string, ops []ServiceOp, driftedFields map[string]map[string]bool, result *ApplyResult) {
	counts := &result.Summary.Services
	a.perKind(func(tx *gorm.DB) {
		for _, op := range ops {
			switch op.Action {
			case ActionUnchanged:
				counts.Unchanged++

			case ActionCreate:
				op := op
				ok := a.item(tx, KindService, op.Key, result, func(tx *gorm.DB) error {
					key := op.Spec.Key
					svc := &model.Service{
						ID:              uuid.New().String(),
						TeamID:          teamID,
						Name:            op.Spec.Name,
						Description:     op.Spec.Description,
						Tier:            op.Spec.Tier,
						Link:            op.Spec.Link,
						ManifestKey:     &key,
						ManifestManaged: true,
						CreatedAt:       time.Now(),
						UpdatedAt:       time.Now(),
					}
					if err := svc.SetLastSyncedValues(op.Spec.Fields()); err != nil {
						return err
					}
					if err := tx.Create(svc).Error; err != nil {
						return err
					}
					result.ServiceIDsByKey[key] = svc.ID
					return nil
				})
				if ok {
					counts.Created++
				}

			case ActionUpdate:
				op := op
				ok := a.item(tx, KindService, op.Key, result, func(tx *gorm.DB) error {
					svc := op.Current
					skip := a.cfg.SkipWhileDrifted && len(driftedFields[svc.ID]) > 0
					skipped := make(map[string]bool)
					for field, value := range op.Delta {
						if skip && driftedFields[svc.ID][field] {
							skipped[field] = true
							continue
						}
						svc.SetFieldValue(field, value)
					}
					svc.Skipped = false
					svc.ManifestManaged = true
					svc.UpdatedAt = time.Now()
					if err := svc.SetLastSyncedValues(a.syncedValues(svc, op, skipped)); err != nil {
						return err
					}
					return tx.Save(svc).Error
				})
				if ok {
					counts.Updated++
				}

			case ActionRemove:
				op := op
				ok := a.item(tx, KindService, op.Key, result, func(tx *gorm.DB) error {
					return tx.Model(&model.Service{}).
						Where("id = ?", op.Current.ID).
						Updates(map[string]any{"skipped": true, "updated_at": time.Now()}).Error
				})
				if ok {
					counts.Removed++
				}
			}
		}
	})
}

// syncedValues builds the baseline snapshot for the next run's detector:
// the field values the service holds after this apply. A field skipped for
// open drift keeps its prior baseline, so detection keeps seeing the live
// value diverge until the flag resolves.
func (a *Applier) syncedValues(svc *model.Service, op ServiceOp, skipped map[string]bool) map[string]string {
	prior := svc.LastSyncedValues()
	values := make(map[string]string)
	for field := range op.Spec.Fields() {
		if skipped[field] {
			if v, ok := prior[field]; ok {
				values[field] = v
				continue
			}
		}
		live, _ := svc.FieldValue(field)
		values[field] = live
	}
	return values
}

func (a *Applier) applyAliases(teamID string, ops []AliasOp, result *ApplyResult) {
	counts := &result.Summary.Aliases
	a.perKind(func(tx *gorm.DB) {
		for _, op := range ops {
			switch op.Action {
			case ActionUnchanged:
				counts.Unchanged++

			case ActionCreate:
				op := op
				ok := a.item(tx, KindAlias, op.Key, result, func(tx *gorm.DB) error {
					return tx.Create(&model.DependencyAlias{
						ID:              uuid.New().String(),
						TeamID:          teamID,
						Alias:           op.Spec.Alias,
						Canonical:       op.Spec.Canonical,
						ManifestManaged: true,
						ManifestKey:     op.Spec.Key,
						CreatedAt:       time.Now(),
						UpdatedAt:       time.Now(),
					}).Error
				})
				if ok {
					counts.Created++
				}

			case ActionUpdate:
				op := op
				ok := a.item(tx, KindAlias, op.Key, result, func(tx *gorm.DB) error {
					alias := op.Current
					alias.Canonical = op.Spec.Canonical
					alias.ManifestManaged = true
					alias.ManifestKey = op.Spec.Key
					alias.UpdatedAt = time.Now()
					return tx.Save(alias).Error
				})
				if ok {
					counts.Updated++
				}

			case ActionRemove:
				op := op
				ok := a.item(tx, KindAlias, op.Key, result, func(tx *gorm.DB) error {
					return tx.Where("id = ?", op.Current.ID).Delete(&model.DependencyAlias{}).Error
				})
				if ok {
					counts.Removed++
				}
			}
		}
	})
}

func (a *Applier) applyOverrides(teamID string, ops []OverrideOp, result *ApplyResult) {
	counts := &result.Summary.Overrides
	a.perKind(func(tx *gorm.DB) {
		for _, op := range ops {
			switch op.Action {
			case ActionUnchanged:
				counts.Unchanged++

			case ActionCreate:
				op := op
				ok := a.item(tx, KindOverride, op.Key, result, func(tx *gorm.DB) error {
					return tx.Create(&model.CanonicalOverride{
						ID:              uuid.New().String(),
						TeamID:          teamID,
						Canonical:       op.Spec.Canonical,
						DisplayName:     op.Spec.DisplayName,
						ManifestManaged: true,
						ManifestKey:     op.Spec.Key,
						CreatedAt:       time.Now(),
						UpdatedAt:       time.Now(),
					}).Error
				})
				if ok {
					counts.Created++
				}

			case ActionUpdate:
				op := op
				ok := a.item(tx, KindOverride, op.Key, result, func(tx *gorm.DB) error {
					ovr := op.Current
					ovr.DisplayName = op.Spec.DisplayName
					ovr.ManifestManaged = true
					ovr.ManifestKey = op.Spec.Key
					ovr.UpdatedAt = time.Now()
					return tx.Save(ovr).Error
				})
				if ok {
					counts.Updated++
				}

			case ActionRemove:
				op := op
				ok := a.item(tx, KindOverride, op.Key, result, func(tx *gorm.DB) error {
					return tx.Where("id = ?", op.Current.ID).Delete(&model.CanonicalOverride{}).Error
				})
				if ok {
					counts.Removed++
				}
			}
		}
	})
}

func (a *Applier) applyAssociations(teamID string, ops []AssociationOp, result *ApplyResult) {
	counts := &result.Summary.Associations
	a.perKind(func(tx *gorm.DB) {
		for _, op := range ops {
			switch op.Action {
			case ActionUnchanged:
				counts.Unchanged++

			case ActionCreate:
				op := op
				ok := a.item(tx, KindAssociation, op.Key, result, func(tx *gorm.DB) error {
					serviceID, found := result.ServiceIDsByKey[op.Spec.Service]
					if !found {
						// The referenced service's create failed earlier in
						// this run; surface that instead of a dangling edge.
						return fmt.Errorf("referenced service %s was not applied", op.Spec.Service)
					}
					return tx.Create(&model.DependencyAssociation{
						ID:              uuid.New().String(),
						TeamID:          teamID,
						Dependency:      op.Spec.Dependency,
						ServiceID:       serviceID,
						ManifestManaged: true,
						ManifestKey:     op.Spec.Key,
						CreatedAt:       time.Now(),
						UpdatedAt:       time.Now(),
					}).Error
				})
				if ok {
					counts.Created++
				}

			case ActionUpdate:
				op := op
				ok := a.item(tx, KindAssociation, op.Key, result, func(tx *gorm.DB) error {
					assoc := op.Current
					assoc.ManifestManaged = true
					assoc.ManifestKey = op.Spec.Key
					assoc.UpdatedAt = time.Now()
					return tx.Save(assoc).Error
				})
				if ok {
					counts.Updated++
				}

			case ActionRemove:
				op := op
				ok := a.item(tx, KindAssociation, op.Key, result, func(tx *gorm.DB) error {
					return tx.Where("id = ?", op.Current.ID).Delete(&model.DependencyAssociation{}).Error
				})
				if ok {
					counts.Removed++
				}
			}
		}
	})
}
