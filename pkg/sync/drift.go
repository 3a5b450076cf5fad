package sync

import (
	"log/slog"
	"time"

	"github.com/deptrack/deptrack/pkg/manifest"
	"github.com/deptrack/deptrack/pkg/model"
	"github.com/deptrack/deptrack/pkg/store"
)

// Observation is one detected divergence: a manifest-authoritative field
// whose live value no longer matches what the last sync wrote, meaning a
// human edited it between runs.
type Observation struct {
	Service       *model.Service
	Field         string
	ManifestValue string
	LiveValue     string
}

// Detector compares live state against the last-synced snapshot of every
// manifest-managed service. It only observes: the manifest value still wins
// on apply, and drift is surfaced for operator visibility.
type Detector struct {
	differ *Differ
	drift  *store.DriftStore
	logger *slog.Logger
}

// NewDetector creates a detector sharing the differ's field-authority
// configuration.
func NewDetector(differ *Differ, drift *store.DriftStore, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{differ: differ, drift: drift, logger: logger}
}

// Detect returns every divergence between live values and the last-synced
// snapshots. Only manifest-managed services with a prior snapshot
// participate: a service never written by sync has no baseline.
func (d *Detector) Detect(doc *manifest.Document, snap *store.Snapshot) []Observation {
	var observations []Observation

	specsByKey := make(map[string]*manifest.ServiceSpec, len(doc.Services))
	for i := range doc.Services {
		specsByKey[doc.Services[i].Key] = &doc.Services[i]
	}

	for key, svc := range snap.ServicesByKey {
		if !svc.ManifestManaged {
			continue
		}
		lastSynced := svc.LastSyncedValues()
		if lastSynced == nil {
			continue
		}

		spec := specsByKey[key]
		for _, field := range d.differ.AuthoritativeFields() {
			last, ok := lastSynced[field]
			if !ok {
				continue
			}
			live, _ := svc.FieldValue(field)
			if live == last {
				continue
			}
			manifestValue := last
			if spec != nil {
				manifestValue = spec.Fields()[field]
			}
			observations = append(observations, Observation{
				Service:       svc,
				Field:         field,
				ManifestValue: manifestValue,
				LiveValue:     live,
			})
		}
	}
	return observations
}

// Record raises a new flag or refreshes the open one for each observation.
// It returns the number of flags raised or refreshed.
func (d *Detector) Record(teamID, runID string, observations []Observation, now time.Time) (int, error) {
	flagged := 0
	for _, obs := range observations {
		existing, err := d.drift.GetOpen(obs.Service.ID, obs.Field)
		if err != nil {
			return flagged, err
		}
		if existing != nil {
			if err := d.drift.Refresh(existing.ID, obs.ManifestValue, obs.LiveValue, now, runID); err != nil {
				return flagged, err
			}
			flagged++
			continue
		}
		flag := &model.DriftFlag{
			TeamID:          teamID,
			ServiceID:       obs.Service.ID,
			DriftType:       model.DriftTypeFieldModified,
			Field:           obs.Field,
			ManifestValue:   obs.ManifestValue,
			LiveValue:       obs.LiveValue,
			FirstDetectedAt: now,
			LastDetectedAt:  now,
			SyncRunID:       runID,
		}
		if err := d.drift.Create(flag); err != nil {
			return flagged, err
		}
		flagged++
	}
	return flagged, nil
}

// ResolveConverged closes every open flag whose live value has converged
// with the manifest-declared value. It runs at the start of the run, before
// new drift is computed.
func (d *Detector) ResolveConverged(teamID string, doc *manifest.Document, snap *store.Snapshot, now time.Time) error {
	open, err := d.drift.ListOpenByTeam(teamID)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		return nil
	}

	specsByKey := make(map[string]*manifest.ServiceSpec, len(doc.Services))
	for i := range doc.Services {
		specsByKey[doc.Services[i].Key] = &doc.Services[i]
	}

	for _, flag := range open {
		svc, ok := snap.ServicesByID[flag.ServiceID]
		if !ok || svc.ManifestKey == nil {
			continue
		}
		spec, ok := specsByKey[*svc.ManifestKey]
		if !ok {
			continue
		}
		live, _ := svc.FieldValue(flag.Field)
		if live != spec.Fields()[flag.Field] {
			continue
		}
		if err := d.drift.Resolve(flag.ID, "sync", now); err != nil {
			return err
		}
		d.logger.Info("drift flag auto-resolved",
			"team", teamID, "service", svc.Name, "field", flag.Field)
	}
	return nil
}
