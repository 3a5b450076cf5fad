package sync

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/deptrack/deptrack/pkg/model"
	"github.com/deptrack/deptrack/pkg/store"
)

const (
	// defaultPollInterval is the base interval between scheduler passes.
	defaultPollInterval = time.Minute
	// pollJitter is the maximum random offset applied to each pass so
	// multiple instances do not poll the database in lockstep.
	pollJitter = 15 * time.Second
)

// Scheduler triggers scheduled runs for every enabled team whose sync
// interval has elapsed. Retry of failed runs is simply the next due tick;
// the engine itself never retries.
type Scheduler struct {
	coordinator *Coordinator
	configs     *store.ManifestConfigStore
	interval    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewScheduler creates a scheduler over the coordinator. pollInterval <= 0
// uses the default.
func NewScheduler(coordinator *Coordinator, configs *store.ManifestConfigStore, pollInterval time.Duration, logger *slog.Logger) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		coordinator: coordinator,
		configs:     configs,
		interval:    pollInterval,
		logger:      logger,
		now:         time.Now,
	}
}

// jitteredInterval returns the poll interval with a random ± offset.
func (s *Scheduler) jitteredInterval() time.Duration {
	jitter := pollJitter
	if jitter > s.interval/2 {
		jitter = s.interval / 2
	}
	if jitter <= 0 {
		return s.interval
	}
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return s.interval + offset
}

// Run blocks until the context is cancelled, triggering due teams on each
// pass. An in-flight run completes before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("sync scheduler starting", "poll_interval", s.interval.String())

	ticker := time.NewTicker(s.jitteredInterval())
	defer ticker.Stop()

	s.pass(ctx)
	for {
		select {
		case <-ticker.C:
			s.pass(ctx)
			ticker.Reset(s.jitteredInterval())
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopping")
			return
		}
	}
}

// pass triggers one scheduled run for every due team.
func (s *Scheduler) pass(ctx context.Context) {
	configs, err := s.configs.ListEnabled()
	if err != nil {
		s.logger.Error("scheduler failed to list manifest configs", "error", err)
		return
	}

	now := s.now()
	for i := range configs {
		cfg := &configs[i]
		if !s.due(cfg, now) {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		_, err := s.coordinator.RunSync(ctx, cfg.TeamID, Trigger{
			Type: model.TriggerScheduled,
			By:   "scheduler",
		})
		if errors.Is(err, ErrSyncInProgress) {
			s.logger.Debug("scheduled sync skipped, run in progress", "team", cfg.TeamID)
			continue
		}
		if err != nil {
			s.logger.Error("scheduled sync rejected", "team", cfg.TeamID, "error", err)
		}
	}
}

// due reports whether the team's interval has elapsed since its last run.
// Teams that never synced are due immediately.
func (*Scheduler) due(cfg *model.TeamManifestConfig, now time.Time) bool {
	if cfg.LastSyncAt == nil {
		return true
	}
	return now.Sub(*cfg.LastSyncAt) >= cfg.Interval()
}
