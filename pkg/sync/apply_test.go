package sync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deptrack/deptrack/pkg/manifest"
	"github.com/deptrack/deptrack/pkg/model"
	"github.com/deptrack/deptrack/pkg/store"
)

// A row inserted after the snapshot was read simulates a manual edit racing
// the run: the colliding create fails, rolls back to its savepoint, and the
// rest of the kind still lands.
func TestApplyPartialFailureIsolatesTheFailedItem(t *testing.T) {
	db := setupTestDB(t)
	teamID := uuid.New().String()

	snap := emptySnapshot()
	plan := &Plan{Services: []ServiceOp{
		{Action: ActionCreate, Key: "svc-a", Spec: &manifest.ServiceSpec{Key: "svc-a", Name: "A"}},
		{Action: ActionCreate, Key: "svc-b", Spec: &manifest.ServiceSpec{Key: "svc-b", Name: "B"}},
		{Action: ActionCreate, Key: "svc-c", Spec: &manifest.ServiceSpec{Key: "svc-c", Name: "C"}},
	}}

	// Lands between snapshot read and apply.
	racer := managedService(uuid.New().String(), "svc-b", "Raced")
	racer.TeamID = teamID
	require.NoError(t, db.Create(racer).Error)

	result := NewApplier(db, ApplierConfig{}, nil).Apply(teamID, plan, snap, nil)

	assert.Equal(t, 2, result.Summary.Services.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, KindService, result.Errors[0].Kind)
	assert.Equal(t, "svc-b", result.Errors[0].Key)

	var count int64
	require.NoError(t, db.Model(&model.Service{}).Where("team_id = ?", teamID).Count(&count).Error)
	assert.EqualValues(t, 3, count) // a, c, and the raced row
}

// An association whose service create failed earlier in the run reports its
// own error instead of pointing at a missing row.
func TestApplyAssociationSkippedWhenServiceFailed(t *testing.T) {
	db := setupTestDB(t)
	teamID := uuid.New().String()

	racer := managedService(uuid.New().String(), "svc-a", "Raced")
	racer.TeamID = teamID
	require.NoError(t, db.Create(racer).Error)

	snap := emptySnapshot()
	plan := &Plan{
		Services: []ServiceOp{
			{Action: ActionCreate, Key: "svc-a", Spec: &manifest.ServiceSpec{Key: "svc-a", Name: "A"}},
		},
		Associations: []AssociationOp{
			{
				Action: ActionCreate,
				Key:    manifest.AssociationNaturalKey("redis", "svc-a"),
				Spec:   &manifest.AssociationSpec{Dependency: "redis", Service: "svc-a"},
			},
		},
	}

	result := NewApplier(db, ApplierConfig{}, nil).Apply(teamID, plan, snap, nil)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, KindService, result.Errors[0].Kind)
	assert.Equal(t, KindAssociation, result.Errors[1].Kind)
	assert.Contains(t, result.Errors[1].Message, "svc-a")
}

func TestApplySkipWhileDriftedLeavesDriftedFieldAlone(t *testing.T) {
	db := setupTestDB(t)
	teamID := uuid.New().String()

	svc := managedService(uuid.New().String(), "svc-a", "Old Name")
	svc.TeamID = teamID
	svc.Description = "edited by hand"
	require.NoError(t, svc.SetLastSyncedValues(map[string]string{
		"name": "Old Name", "description": "from manifest", "tier": "", "link": "",
	}))
	require.NoError(t, db.Create(svc).Error)

	plan := &Plan{Services: []ServiceOp{{
		Action:  ActionUpdate,
		Key:     "svc-a",
		Spec:    &manifest.ServiceSpec{Key: "svc-a", Name: "New Name", Description: "from manifest"},
		Current: svc,
		Delta:   map[string]string{"name": "New Name", "description": "from manifest"},
	}}}
	drifted := map[string]map[string]bool{svc.ID: {"description": true}}

	result := NewApplier(db, ApplierConfig{SkipWhileDrifted: true}, nil).
		Apply(teamID, plan, &store.Snapshot{ServicesByKey: map[string]*model.Service{"svc-a": svc}}, drifted)
	assert.Equal(t, 1, result.Summary.Services.Updated)

	var after model.Service
	require.NoError(t, db.First(&after, "id = ?", svc.ID).Error)
	assert.Equal(t, "New Name", after.Name)
	assert.Equal(t, "edited by hand", after.Description)
}
