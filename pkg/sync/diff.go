package sync

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/deptrack/deptrack/pkg/manifest"
	"github.com/deptrack/deptrack/pkg/model"
	"github.com/deptrack/deptrack/pkg/store"
)

// Action classifies one planned operation.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionRemove    Action = "remove"
	ActionUnchanged Action = "unchanged"
)

// ServiceOp is one planned operation on a service. Delta holds the
// authoritative fields whose values change, keyed by field name.
type ServiceOp struct {
	Action  Action
	Key     string
	Spec    *manifest.ServiceSpec
	Current *model.Service
	Delta   map[string]string
}

// AliasOp is one planned operation on a dependency alias.
type AliasOp struct {
	Action  Action
	Key     string // alias string, the natural key
	Spec    *manifest.AliasSpec
	Current *model.DependencyAlias
}

// OverrideOp is one planned operation on a canonical override.
type OverrideOp struct {
	Action  Action
	Key     string // canonical name, the natural key
	Spec    *manifest.OverrideSpec
	Current *model.CanonicalOverride
}

// AssociationOp is one planned operation on a dependency association.
type AssociationOp struct {
	Action  Action
	Key     string // (dependency, service key) natural key
	Spec    *manifest.AssociationSpec
	Current *model.DependencyAssociation
}

// Plan is the ordered operation set of one run. Kinds apply in declaration
// order: services first, because the other kinds may reference a service
// that must exist before they do.
type Plan struct {
	Services     []ServiceOp
	Aliases      []AliasOp
	Overrides    []OverrideOp
	Associations []AssociationOp
}

// Differ joins desired state (the manifest) against current state (the
// snapshot) on natural keys and classifies each entry.
type Differ struct {
	// excluded are manifest-authoritative service fields a user may edit
	// outside the manifest; they are left out of the content comparison so
	// sync never silently reverts them.
	excluded mapset.Set[string]
}

// NewDiffer creates a differ. excludedFields lists service fields removed
// from manifest authority.
func NewDiffer(excludedFields ...string) *Differ {
	return &Differ{excluded: mapset.NewSet(excludedFields...)}
}

// AuthoritativeFields returns the service fields the manifest owns after
// exclusions.
func (d *Differ) AuthoritativeFields() []string {
	fields := make([]string, 0, 4)
	for _, f := range []string{"name", "description", "tier", "link"} {
		if !d.excluded.Contains(f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// Plan computes the per-kind operation sets needed to move the snapshot
// toward the document.
func (d *Differ) Plan(doc *manifest.Document, snap *store.Snapshot) *Plan {
	return &Plan{
		Services:     d.planServices(doc, snap),
		Aliases:      d.planAliases(doc, snap),
		Overrides:    d.planOverrides(doc, snap),
		Associations: d.planAssociations(doc, snap),
	}
}

func (d *Differ) planServices(doc *manifest.Document, snap *store.Snapshot) []ServiceOp {
	var ops []ServiceOp
	declared := mapset.NewSet[string]()

	for i := range doc.Services {
		spec := &doc.Services[i]
		declared.Add(spec.Key)

		current, ok := snap.ServicesByKey[spec.Key]
		if !ok {
			ops = append(ops, ServiceOp{Action: ActionCreate, Key: spec.Key, Spec: spec})
			continue
		}

		delta := d.serviceDelta(spec, current)
		// A content-equal but unmanaged row still needs claiming, like the
		// alias path does, so later removals and drift tracking own it.
		if len(delta) == 0 && !current.Skipped && current.ManifestManaged {
			ops = append(ops, ServiceOp{Action: ActionUnchanged, Key: spec.Key, Spec: spec, Current: current})
			continue
		}
		ops = append(ops, ServiceOp{Action: ActionUpdate, Key: spec.Key, Spec: spec, Current: current, Delta: delta})
	}

	// Manifest-managed services the manifest stopped declaring are
	// soft-deactivated. A service already skipped from a prior run stays
	// untouched; human-owned services are never touched.
	for key, current := range snap.ServicesByKey {
		if declared.Contains(key) || !current.ManifestManaged {
			continue
		}
		if current.Skipped {
			ops = append(ops, ServiceOp{Action: ActionUnchanged, Key: key, Current: current})
			continue
		}
		ops = append(ops, ServiceOp{Action: ActionRemove, Key: key, Current: current})
	}
	return ops
}

// serviceDelta compares only the fields the manifest is authoritative for.
func (d *Differ) serviceDelta(spec *manifest.ServiceSpec, current *model.Service) map[string]string {
	delta := make(map[string]string)
	desired := spec.Fields()
	for _, field := range d.AuthoritativeFields() {
		live, _ := current.FieldValue(field)
		if desired[field] != live {
			delta[field] = desired[field]
		}
	}
	return delta
}

func (*Differ) planAliases(doc *manifest.Document, snap *store.Snapshot) []AliasOp {
	var ops []AliasOp
	declared := mapset.NewSet[string]()

	for i := range doc.Aliases {
		spec := &doc.Aliases[i]
		declared.Add(spec.Alias)

		current, ok := snap.AliasesByName[spec.Alias]
		if !ok {
			ops = append(ops, AliasOp{Action: ActionCreate, Key: spec.Alias, Spec: spec})
			continue
		}
		if current.Canonical == spec.Canonical && current.ManifestManaged {
			ops = append(ops, AliasOp{Action: ActionUnchanged, Key: spec.Alias, Spec: spec, Current: current})
			continue
		}
		ops = append(ops, AliasOp{Action: ActionUpdate, Key: spec.Alias, Spec: spec, Current: current})
	}

	for name, current := range snap.AliasesByName {
		if declared.Contains(name) || !current.ManifestManaged {
			continue
		}
		ops = append(ops, AliasOp{Action: ActionRemove, Key: name, Current: current})
	}
	return ops
}

func (*Differ) planOverrides(doc *manifest.Document, snap *store.Snapshot) []OverrideOp {
	var ops []OverrideOp
	declared := mapset.NewSet[string]()

	for i := range doc.Overrides {
		spec := &doc.Overrides[i]
		declared.Add(spec.Canonical)

		current, ok := snap.OverridesByCanonical[spec.Canonical]
		if !ok {
			ops = append(ops, OverrideOp{Action: ActionCreate, Key: spec.Canonical, Spec: spec})
			continue
		}
		if current.DisplayName == spec.DisplayName && current.ManifestManaged {
			ops = append(ops, OverrideOp{Action: ActionUnchanged, Key: spec.Canonical, Spec: spec, Current: current})
			continue
		}
		ops = append(ops, OverrideOp{Action: ActionUpdate, Key: spec.Canonical, Spec: spec, Current: current})
	}

	for canonical, current := range snap.OverridesByCanonical {
		if declared.Contains(canonical) || !current.ManifestManaged {
			continue
		}
		ops = append(ops, OverrideOp{Action: ActionRemove, Key: canonical, Current: current})
	}
	return ops
}

func (*Differ) planAssociations(doc *manifest.Document, snap *store.Snapshot) []AssociationOp {
	var ops []AssociationOp
	declared := mapset.NewSet[string]()

	for i := range doc.Associations {
		spec := &doc.Associations[i]
		pair := manifest.AssociationNaturalKey(spec.Dependency, spec.Service)
		declared.Add(pair)

		current, ok := snap.AssociationsByPair[pair]
		if !ok {
			ops = append(ops, AssociationOp{Action: ActionCreate, Key: pair, Spec: spec})
			continue
		}
		// Associations have no mutable content beyond their natural key.
		if current.ManifestManaged {
			ops = append(ops, AssociationOp{Action: ActionUnchanged, Key: pair, Spec: spec, Current: current})
			continue
		}
		ops = append(ops, AssociationOp{Action: ActionUpdate, Key: pair, Spec: spec, Current: current})
	}

	for pair, current := range snap.AssociationsByPair {
		if declared.Contains(pair) || !current.ManifestManaged {
			continue
		}
		ops = append(ops, AssociationOp{Action: ActionRemove, Key: pair, Current: current})
	}
	return ops
}
