package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deptrack/deptrack/pkg/manifest"
	"github.com/deptrack/deptrack/pkg/model"
	"github.com/deptrack/deptrack/pkg/store"
)

func emptySnapshot() *store.Snapshot {
	return &store.Snapshot{
		ServicesByKey:        map[string]*model.Service{},
		ServicesByID:         map[string]*model.Service{},
		AliasesByName:        map[string]*model.DependencyAlias{},
		OverridesByCanonical: map[string]*model.CanonicalOverride{},
		AssociationsByPair:   map[string]*model.DependencyAssociation{},
	}
}

func keyOf(s string) *string { return &s }

func managedService(id, key, name string) *model.Service {
	return &model.Service{
		ID:              id,
		TeamID:          "team-1",
		Name:            name,
		ManifestKey:     keyOf(key),
		ManifestManaged: true,
	}
}

func actionsByKey[T any](ops []T, key func(T) (string, Action)) map[string]Action {
	out := make(map[string]Action, len(ops))
	for _, op := range ops {
		k, a := key(op)
		out[k] = a
	}
	return out
}

func serviceActions(ops []ServiceOp) map[string]Action {
	return actionsByKey(ops, func(op ServiceOp) (string, Action) { return op.Key, op.Action })
}

func TestPlanServicesClassification(t *testing.T) {
	snap := emptySnapshot()
	snap.ServicesByKey["unchanged"] = managedService("s1", "unchanged", "Same")
	snap.ServicesByKey["renamed"] = managedService("s2", "renamed", "Old Name")
	snap.ServicesByKey["dropped"] = managedService("s3", "dropped", "Dropped")
	skipped := managedService("s4", "long-gone", "Long Gone")
	skipped.Skipped = true
	snap.ServicesByKey["long-gone"] = skipped

	doc := &manifest.Document{Services: []manifest.ServiceSpec{
		{Key: "unchanged", Name: "Same"},
		{Key: "renamed", Name: "New Name"},
		{Key: "brand-new", Name: "Brand New"},
	}}

	ops := NewDiffer().planServices(doc, snap)
	actions := serviceActions(ops)
	assert.Equal(t, ActionUnchanged, actions["unchanged"])
	assert.Equal(t, ActionUpdate, actions["renamed"])
	assert.Equal(t, ActionCreate, actions["brand-new"])
	assert.Equal(t, ActionRemove, actions["dropped"])
	// Already deactivated and still undeclared: nothing to do.
	assert.Equal(t, ActionUnchanged, actions["long-gone"])
}

func TestPlanServicesDeltaOnlyNamesChangedFields(t *testing.T) {
	current := managedService("s1", "svc", "Old Name")
	current.Tier = "2"
	snap := emptySnapshot()
	snap.ServicesByKey["svc"] = current

	doc := &manifest.Document{Services: []manifest.ServiceSpec{
		{Key: "svc", Name: "New Name", Tier: "2"},
	}}

	ops := NewDiffer().planServices(doc, snap)
	require.Len(t, ops, 1)
	require.Equal(t, ActionUpdate, ops[0].Action)
	assert.Equal(t, map[string]string{"name": "New Name"}, ops[0].Delta)
}

func TestPlanServicesIgnoresHumanOwnedRows(t *testing.T) {
	human := managedService("s1", "handmade", "Handmade")
	human.ManifestManaged = false
	snap := emptySnapshot()
	snap.ServicesByKey["handmade"] = human

	ops := NewDiffer().planServices(&manifest.Document{}, snap)
	assert.Empty(t, ops)
}

func TestPlanServicesClaimsUnmanagedMatch(t *testing.T) {
	unclaimed := managedService("s1", "svc", "Svc")
	unclaimed.ManifestManaged = false
	snap := emptySnapshot()
	snap.ServicesByKey["svc"] = unclaimed

	doc := &manifest.Document{Services: []manifest.ServiceSpec{{Key: "svc", Name: "Svc"}}}
	ops := NewDiffer().planServices(doc, snap)
	require.Len(t, ops, 1)
	// Content-equal, but the row must become manifest-managed.
	assert.Equal(t, ActionUpdate, ops[0].Action)
	assert.Empty(t, ops[0].Delta)
}

func TestPlanServicesSkippedRedeclaredBecomesUpdate(t *testing.T) {
	current := managedService("s1", "svc", "Svc")
	current.Skipped = true
	snap := emptySnapshot()
	snap.ServicesByKey["svc"] = current

	doc := &manifest.Document{Services: []manifest.ServiceSpec{{Key: "svc", Name: "Svc"}}}
	ops := NewDiffer().planServices(doc, snap)
	require.Len(t, ops, 1)
	// Even with identical fields the row needs reactivating.
	assert.Equal(t, ActionUpdate, ops[0].Action)
}

func TestExcludedFieldsLeaveDeltaEmpty(t *testing.T) {
	current := managedService("s1", "svc", "Svc")
	current.Description = "manual description"
	snap := emptySnapshot()
	snap.ServicesByKey["svc"] = current

	doc := &manifest.Document{Services: []manifest.ServiceSpec{
		{Key: "svc", Name: "Svc", Description: "manifest description"},
	}}

	ops := NewDiffer("description").planServices(doc, snap)
	require.Len(t, ops, 1)
	assert.Equal(t, ActionUnchanged, ops[0].Action)

	assert.NotContains(t, NewDiffer("description").AuthoritativeFields(), "description")
}

func TestPlanAliasesClaimsUnmanagedMatch(t *testing.T) {
	snap := emptySnapshot()
	snap.AliasesByName["pg"] = &model.DependencyAlias{
		ID: "a1", TeamID: "team-1", Alias: "pg", Canonical: "postgresql",
	}
	snap.AliasesByName["stale"] = &model.DependencyAlias{
		ID: "a2", TeamID: "team-1", Alias: "stale", Canonical: "old", ManifestManaged: true,
	}
	snap.AliasesByName["manual"] = &model.DependencyAlias{
		ID: "a3", TeamID: "team-1", Alias: "manual", Canonical: "whatever",
	}

	doc := &manifest.Document{Aliases: []manifest.AliasSpec{
		{Alias: "pg", Canonical: "postgresql"},
	}}

	ops := NewDiffer().planAliases(doc, snap)
	actions := actionsByKey(ops, func(op AliasOp) (string, Action) { return op.Key, op.Action })
	// A matching human-created alias is adopted, not duplicated.
	assert.Equal(t, ActionUpdate, actions["pg"])
	assert.Equal(t, ActionRemove, actions["stale"])
	// Undeclared human-owned aliases are out of scope entirely.
	assert.NotContains(t, actions, "manual")
}

func TestPlanAssociationsJoinsOnDependencyServicePair(t *testing.T) {
	svc := managedService("s1", "checkout", "Checkout")
	snap := emptySnapshot()
	snap.ServicesByKey["checkout"] = svc
	snap.ServicesByID["s1"] = svc
	snap.AssociationsByPair[manifest.AssociationNaturalKey("redis", "checkout")] = &model.DependencyAssociation{
		ID: "x1", TeamID: "team-1", Dependency: "redis", ServiceID: "s1", ManifestManaged: true,
	}

	doc := &manifest.Document{Associations: []manifest.AssociationSpec{
		{Dependency: "redis", Service: "checkout"},
		{Dependency: "postgresql", Service: "checkout"},
	}}

	ops := NewDiffer().planAssociations(doc, snap)
	actions := actionsByKey(ops, func(op AssociationOp) (string, Action) { return op.Key, op.Action })
	assert.Equal(t, ActionUnchanged, actions[manifest.AssociationNaturalKey("redis", "checkout")])
	assert.Equal(t, ActionCreate, actions[manifest.AssociationNaturalKey("postgresql", "checkout")])
}
