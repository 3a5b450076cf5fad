package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/manifest"
	"github.com/deptrack/deptrack/pkg/model"
	"github.com/deptrack/deptrack/pkg/store"
)

// Coordinator owns per-team mutual exclusion and orchestrates a run end to
// end: fetch, parse/validate, snapshot, drift detection, diff, apply,
// history. Every run past lock acquisition writes exactly one history entry
// and updates the team's cached sync status, whatever its outcome.
type Coordinator struct {
	teams     *store.TeamStore
	configs   *store.ManifestConfigStore
	snapshots *store.SnapshotReader
	history   *store.HistoryStore
	drift     *store.DriftStore

	fetcher  *manifest.Fetcher
	differ   *Differ
	detector *Detector
	applier  *Applier
	notifier Notifier

	applierCfg ApplierConfig

	locks  *teamLocks
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithNotifier sets the run-completion notifier.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithLogger sets the coordinator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithExcludedFields removes service fields from manifest authority; sync
// never compares or overwrites them.
func WithExcludedFields(fields ...string) Option {
	return func(c *Coordinator) { c.differ = NewDiffer(fields...) }
}

// WithApplierConfig sets reconciliation policy.
func WithApplierConfig(cfg ApplierConfig) Option {
	return func(c *Coordinator) { c.applierCfg = cfg }
}

// NewCoordinator wires a coordinator over the database handle and fetcher.
func NewCoordinator(db *gorm.DB, fetcher *manifest.Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		teams:     store.NewTeamStore(db),
		configs:   store.NewManifestConfigStore(db),
		snapshots: store.NewSnapshotReader(db),
		history:   store.NewHistoryStore(db),
		drift:     store.NewDriftStore(db),
		fetcher:   fetcher,
		differ:    NewDiffer(),
		locks:     newTeamLocks(),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.detector = NewDetector(c.differ, c.drift, c.logger)
	c.applier = NewApplier(db, c.applierCfg, c.logger)
	if c.notifier == nil {
		c.notifier = &LoggingNotifier{Logger: c.logger}
	}
	return c
}

// RunSync executes one sync run for a team and returns once it reaches a
// terminal status. A trigger while the team is already running returns
// ErrSyncInProgress immediately without queueing or writing history.
func (c *Coordinator) RunSync(ctx context.Context, teamID string, trigger Trigger) (*Outcome, error) {
	team, err := c.teams.Get(teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, ErrTeamNotFound
	}

	cfg, err := c.configs.GetByTeam(teamID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrManifestNotConfigured
	}
	if !cfg.Enabled {
		return nil, ErrSyncDisabled
	}

	if !c.locks.TryAcquire(teamID) {
		return nil, ErrSyncInProgress
	}
	defer c.locks.Release(teamID)

	run := &runState{
		id:      uuid.New().String(),
		teamID:  teamID,
		cfg:     cfg,
		trigger: trigger,
		started: c.now(),
	}
	c.logger.Info("sync run starting",
		"team", teamID, "run", run.id,
		"trigger", string(trigger.Type), "by", trigger.By)

	outcome := c.execute(ctx, run)
	c.finish(ctx, run, outcome)
	return outcome, nil
}

// runState carries one run's identity through the pipeline.
type runState struct {
	id       string
	teamID   string
	cfg      *model.TeamManifestConfig
	trigger  Trigger
	started  time.Time
	warnings []string
}

// execute walks the pipeline to a terminal outcome. Fetch and validation
// failures are run-fatal with no state changes; apply-stage item failures
// are recorded and the run continues.
func (c *Coordinator) execute(ctx context.Context, run *runState) *Outcome {
	data, err := c.fetcher.Fetch(ctx, run.cfg.ManifestURL, run.cfg.AuthToken)
	if err != nil {
		return c.failed(run, err)
	}

	doc, warnings, err := manifest.Parse(data)
	run.warnings = warnings
	if err != nil {
		return c.failed(run, err)
	}

	snap, err := c.snapshots.Read(run.teamID)
	if err != nil {
		return c.failed(run, err)
	}

	if verr := manifest.ValidateServiceRefs(doc, snap.ManifestKeys()); verr != nil {
		return c.failed(run, verr)
	}

	// Convergence observed now closes flags from earlier runs, before this
	// run's drift is computed.
	now := c.now()
	if err := c.detector.ResolveConverged(run.teamID, doc, snap, now); err != nil {
		return c.failed(run, err)
	}

	plan := c.differ.Plan(doc, snap)

	observations := c.detector.Detect(doc, snap)
	flagged, err := c.detector.Record(run.teamID, run.id, observations, now)
	if err != nil {
		return c.failed(run, err)
	}

	// The skip policy protects every field with an open flag, not just the
	// ones this run observed: Record already upserted this run's flags, so
	// the open set covers both.
	driftedFields := make(map[string]map[string]bool)
	if c.applierCfg.SkipWhileDrifted {
		open, err := c.drift.ListOpenByTeam(run.teamID)
		if err != nil {
			return c.failed(run, err)
		}
		for _, flag := range open {
			if driftedFields[flag.ServiceID] == nil {
				driftedFields[flag.ServiceID] = make(map[string]bool)
			}
			driftedFields[flag.ServiceID][flag.Field] = true
		}
	}

	result := c.applier.Apply(run.teamID, plan, snap, driftedFields)
	result.Summary.Services.DriftFlagged = flagged

	status := model.SyncStatusSuccess
	if len(result.Errors) > 0 {
		status = model.SyncStatusPartial
		if result.Summary.Applied() == 0 {
			status = model.SyncStatusFailed
		}
	}

	return &Outcome{
		RunID:    run.id,
		Status:   status,
		Summary:  result.Summary,
		Errors:   result.Errors,
		Warnings: run.warnings,
		Duration: c.now().Sub(run.started),
	}
}

// failed builds the outcome of a run-fatal error: no resource was mutated.
func (c *Coordinator) failed(run *runState, cause error) *Outcome {
	c.logger.Error("sync run failed", "team", run.teamID, "run", run.id, "error", cause)
	return &Outcome{
		RunID:    run.id,
		Status:   model.SyncStatusFailed,
		Errors:   []ItemError{{Kind: "run", Key: run.id, Message: cause.Error()}},
		Warnings: run.warnings,
		Duration: c.now().Sub(run.started),
	}
}

// finish writes the single immutable history entry, updates the team's
// cached last_sync_* block, and emits the completion notification.
func (c *Coordinator) finish(ctx context.Context, run *runState, outcome *Outcome) {
	entry := &model.SyncHistoryEntry{
		ID:          run.id,
		TeamID:      run.teamID,
		TriggerType: run.trigger.Type,
		TriggeredBy: run.trigger.By,
		ManifestURL: run.cfg.ManifestURL,
		Status:      outcome.Status,
		Summary:     outcome.Summary.JSON(),
		Errors:      marshalErrors(outcome.Errors),
		Warnings:    marshalWarnings(outcome.Warnings),
		DurationMs:  outcome.Duration.Milliseconds(),
		CreatedAt:   c.now(),
	}
	if err := c.history.Append(entry); err != nil {
		c.logger.Error("failed to append sync history", "team", run.teamID, "run", run.id, "error", err)
	}

	lastErr := ""
	if outcome.Status != model.SyncStatusSuccess && len(outcome.Errors) > 0 {
		lastErr = outcome.Errors[0].Message
	}
	if err := c.configs.RecordRunOutcome(run.teamID, entry.CreatedAt, outcome.Status, lastErr, entry.Summary); err != nil {
		c.logger.Error("failed to update team sync status", "team", run.teamID, "run", run.id, "error", err)
	}

	c.notifier.RunCompleted(ctx, run.teamID, entry)
}

// History exposes the paginated run history, newest first.
func (c *Coordinator) History(teamID string, pageSize int, pageToken string) ([]model.SyncHistoryEntry, string, error) {
	return c.history.ListByTeam(teamID, pageSize, pageToken)
}

// IsRunning reports whether a run currently holds the team's lock.
func (c *Coordinator) IsRunning(teamID string) bool {
	if c.locks.TryAcquire(teamID) {
		c.locks.Release(teamID)
		return false
	}
	return true
}

// IsRejection reports whether err is a trigger rejection rather than a run
// failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrSyncInProgress) ||
		errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, ErrManifestNotConfigured) ||
		errors.Is(err, ErrSyncDisabled)
}
