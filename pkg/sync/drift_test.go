package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deptrack/deptrack/pkg/manifest"
	"github.com/deptrack/deptrack/pkg/store"
)

func newTestDetector(t *testing.T) (*Detector, *store.DriftStore) {
	t.Helper()
	drifts := store.NewDriftStore(setupTestDB(t))
	return NewDetector(NewDiffer(), drifts, nil), drifts
}

func TestDetectFindsHumanEdits(t *testing.T) {
	detector, _ := newTestDetector(t)

	svc := managedService("s1", "svc", "Live Name")
	require.NoError(t, svc.SetLastSyncedValues(map[string]string{
		"name": "Synced Name", "description": "", "tier": "", "link": "",
	}))
	snap := emptySnapshot()
	snap.ServicesByKey["svc"] = svc

	doc := &manifest.Document{Services: []manifest.ServiceSpec{
		{Key: "svc", Name: "Manifest Name"},
	}}

	obs := detector.Detect(doc, snap)
	require.Len(t, obs, 1)
	assert.Equal(t, "name", obs[0].Field)
	assert.Equal(t, "Live Name", obs[0].LiveValue)
	assert.Equal(t, "Manifest Name", obs[0].ManifestValue)
}

// Drift is a live-vs-baseline comparison: a changed manifest alone is not
// drift, and a service with no baseline cannot drift.
func TestDetectIgnoresManifestOnlyChanges(t *testing.T) {
	detector, _ := newTestDetector(t)

	svc := managedService("s1", "svc", "Synced Name")
	require.NoError(t, svc.SetLastSyncedValues(map[string]string{
		"name": "Synced Name", "description": "", "tier": "", "link": "",
	}))
	fresh := managedService("s2", "fresh", "Never Synced")

	snap := emptySnapshot()
	snap.ServicesByKey["svc"] = svc
	snap.ServicesByKey["fresh"] = fresh

	doc := &manifest.Document{Services: []manifest.ServiceSpec{
		{Key: "svc", Name: "Renamed In Manifest"},
		{Key: "fresh", Name: "Also Renamed"},
	}}

	assert.Empty(t, detector.Detect(doc, snap))
}

func TestDetectUsesBaselineWhenSpecIsGone(t *testing.T) {
	detector, _ := newTestDetector(t)

	svc := managedService("s1", "svc", "Live Name")
	require.NoError(t, svc.SetLastSyncedValues(map[string]string{
		"name": "Synced Name", "description": "", "tier": "", "link": "",
	}))
	snap := emptySnapshot()
	snap.ServicesByKey["svc"] = svc

	// The service vanished from the manifest; the baseline still defines
	// what sync last wrote.
	obs := detector.Detect(&manifest.Document{}, snap)
	require.Len(t, obs, 1)
	assert.Equal(t, "Synced Name", obs[0].ManifestValue)
}

func TestRecordRaisesThenRefreshes(t *testing.T) {
	detector, drifts := newTestDetector(t)
	teamID := uuid.New().String()
	svc := managedService("s1", "svc", "v1")

	first := time.Now().UTC().Truncate(time.Second)
	flagged, err := detector.Record(teamID, "run-1", []Observation{
		{Service: svc, Field: "name", ManifestValue: "m", LiveValue: "v1"},
	}, first)
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	flagged, err = detector.Record(teamID, "run-2", []Observation{
		{Service: svc, Field: "name", ManifestValue: "m", LiveValue: "v2"},
	}, first.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	flags, err := drifts.ListByTeam(teamID, "all")
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "v2", flags[0].LiveValue)
	assert.Equal(t, "run-2", flags[0].SyncRunID)
	assert.Equal(t, first, flags[0].FirstDetectedAt.UTC())
}

func TestResolveConvergedClosesOnlyMatchingFlags(t *testing.T) {
	detector, drifts := newTestDetector(t)
	teamID := uuid.New().String()

	converged := managedService("s1", "converged", "Manifest Name")
	diverged := managedService("s2", "diverged", "Still Edited")
	snap := emptySnapshot()
	snap.ServicesByID["s1"] = converged
	snap.ServicesByID["s2"] = diverged

	now := time.Now()
	_, err := detector.Record(teamID, "run-1", []Observation{
		{Service: converged, Field: "name", ManifestValue: "Manifest Name", LiveValue: "old edit"},
		{Service: diverged, Field: "name", ManifestValue: "Manifest Name", LiveValue: "Still Edited"},
	}, now)
	require.NoError(t, err)

	doc := &manifest.Document{Services: []manifest.ServiceSpec{
		{Key: "converged", Name: "Manifest Name"},
		{Key: "diverged", Name: "Manifest Name"},
	}}
	require.NoError(t, detector.ResolveConverged(teamID, doc, snap, now.Add(time.Minute)))

	open, err := drifts.ListOpenByTeam(teamID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "s2", open[0].ServiceID)
}
