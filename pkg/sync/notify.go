package sync

import (
	"context"
	"log/slog"

	"github.com/deptrack/deptrack/pkg/model"
)

// Notifier receives a side-effect notification when a run reaches a
// terminal status. Delivery mechanisms (Slack, webhooks) implement this
// elsewhere; failures here never affect the run's recorded outcome.
type Notifier interface {
	RunCompleted(ctx context.Context, teamID string, entry *model.SyncHistoryEntry)
}

// LoggingNotifier logs run completions. It is the default when no delivery
// collaborator is wired.
type LoggingNotifier struct {
	Logger *slog.Logger
}

// RunCompleted logs the run's terminal status and summary.
func (n *LoggingNotifier) RunCompleted(_ context.Context, teamID string, entry *model.SyncHistoryEntry) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("sync run completed",
		"team", teamID,
		"run", entry.ID,
		"status", string(entry.Status),
		"trigger", string(entry.TriggerType),
		"duration_ms", entry.DurationMs)
}
