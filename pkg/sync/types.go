// Package sync implements the manifest synchronization and drift-detection
// engine: diffing a team's manifest against the persisted graph, detecting
// human edits to manifest-owned fields, applying the minimal change set, and
// recording an auditable history entry for every run.
package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deptrack/deptrack/pkg/model"
)

// Kind names one of the four reconciled resource kinds.
type Kind string

const (
	KindService     Kind = "services"
	KindAlias       Kind = "aliases"
	KindOverride    Kind = "overrides"
	KindAssociation Kind = "associations"
)

// Sentinel errors surfaced to trigger callers. None of these produce a
// history entry: the run never started.
var (
	// ErrSyncInProgress rejects a trigger while another run holds the
	// team's lock. The trigger is refused, never queued.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrTeamNotFound rejects a trigger for an unknown team.
	ErrTeamNotFound = errors.New("team not found")

	// ErrManifestNotConfigured rejects a trigger for a team without a
	// manifest config.
	ErrManifestNotConfigured = errors.New("team has no manifest configuration")

	// ErrSyncDisabled rejects a trigger for a team whose config is disabled.
	ErrSyncDisabled = errors.New("manifest sync is disabled for team")
)

// KindCounts are the per-kind summary counters of one run.
type KindCounts struct {
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Removed      int `json:"removed"`
	Unchanged    int `json:"unchanged"`
	DriftFlagged int `json:"drift_flagged"`
}

// Applied reports how many items the kind actually processed.
func (c KindCounts) Applied() int {
	return c.Created + c.Updated + c.Removed + c.Unchanged
}

// Summary aggregates the counters of all four kinds.
type Summary struct {
	Services     KindCounts `json:"services"`
	Aliases      KindCounts `json:"aliases"`
	Overrides    KindCounts `json:"overrides"`
	Associations KindCounts `json:"associations"`
}

// Counts returns the counters for a kind.
func (s *Summary) Counts(kind Kind) *KindCounts {
	switch kind {
	case KindService:
		return &s.Services
	case KindAlias:
		return &s.Aliases
	case KindOverride:
		return &s.Overrides
	case KindAssociation:
		return &s.Associations
	}
	return nil
}

// Applied reports how many items the run processed across all kinds.
func (s *Summary) Applied() int {
	return s.Services.Applied() + s.Aliases.Applied() +
		s.Overrides.Applied() + s.Associations.Applied()
}

// JSON encodes the summary for the history entry and the cached
// last_sync_summary.
func (s *Summary) JSON() string {
	data, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ItemError records one resource's failed create/update/delete. It is
// non-fatal: remaining items in the kind proceed.
type ItemError struct {
	Kind    Kind   `json:"kind"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Key, e.Message)
}

// Trigger describes what started a run.
type Trigger struct {
	Type model.TriggerType
	By   string
}

// Outcome is what a trigger caller gets back once the run reaches a
// terminal status.
type Outcome struct {
	RunID    string           `json:"run_id"`
	Status   model.SyncStatus `json:"status"`
	Summary  Summary          `json:"summary"`
	Errors   []ItemError      `json:"errors,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
	Duration time.Duration    `json:"-"`
}

func marshalErrors(errs []ItemError) string {
	if len(errs) == 0 {
		return "[]"
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func marshalWarnings(warnings []string) string {
	if len(warnings) == 0 {
		return "[]"
	}
	data, err := json.Marshal(warnings)
	if err != nil {
		return "[]"
	}
	return string(data)
}
