package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deptrack/deptrack/pkg/model"
	"github.com/deptrack/deptrack/pkg/store"
	"github.com/deptrack/deptrack/pkg/sync"
)

// triggerSyncHandler returns a handler that starts a manual sync run and
// blocks until the run reaches a terminal status.
func triggerSyncHandler(coordinator *sync.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamId")

		outcome, err := coordinator.RunSync(r.Context(), teamID, sync.Trigger{
			Type: model.TriggerManual,
			By:   UserFromRequest(r),
		})
		if err != nil {
			switch {
			case errors.Is(err, sync.ErrTeamNotFound):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, sync.ErrSyncInProgress):
				writeError(w, http.StatusConflict, err.Error())
			case errors.Is(err, sync.ErrManifestNotConfigured), errors.Is(err, sync.ErrSyncDisabled):
				writeError(w, http.StatusUnprocessableEntity, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to trigger sync: %v", err))
			}
			return
		}

		writeJSON(w, http.StatusOK, outcome)
	}
}

// historyEntryResponse renders a run record with its JSON columns inlined.
type historyEntryResponse struct {
	ID          string            `json:"id"`
	TeamID      string            `json:"team_id"`
	TriggerType model.TriggerType `json:"trigger_type"`
	TriggeredBy string            `json:"triggered_by"`
	ManifestURL string            `json:"manifest_url"`
	Status      model.SyncStatus  `json:"status"`
	Summary     json.RawMessage   `json:"summary"`
	Errors      json.RawMessage   `json:"errors"`
	Warnings    json.RawMessage   `json:"warnings"`
	DurationMs  int64             `json:"duration_ms"`
	CreatedAt   time.Time         `json:"created_at"`
}

func toHistoryEntryResponse(entry *model.SyncHistoryEntry) historyEntryResponse {
	return historyEntryResponse{
		ID:          entry.ID,
		TeamID:      entry.TeamID,
		TriggerType: entry.TriggerType,
		TriggeredBy: entry.TriggeredBy,
		ManifestURL: entry.ManifestURL,
		Status:      entry.Status,
		Summary:     rawOr(entry.Summary, "{}"),
		Errors:      rawOr(entry.Errors, "[]"),
		Warnings:    rawOr(entry.Warnings, "[]"),
		DurationMs:  entry.DurationMs,
		CreatedAt:   entry.CreatedAt,
	}
}

func rawOr(s, fallback string) json.RawMessage {
	if s == "" {
		return json.RawMessage(fallback)
	}
	return json.RawMessage(s)
}

type historyListResponse struct {
	Items         []historyEntryResponse `json:"items"`
	NextPageToken string                 `json:"nextPageToken,omitempty"`
}

// listHistoryHandler returns a handler for the paginated, newest-first run
// history.
func listHistoryHandler(history *store.HistoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamId")

		pageSize := 0
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			v, err := strconv.Atoi(ps)
			if err != nil || v < 0 {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid pageSize %q", ps))
				return
			}
			pageSize = v
		}

		entries, nextToken, err := history.ListByTeam(teamID, pageSize, r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		resp := historyListResponse{Items: make([]historyEntryResponse, 0, len(entries)), NextPageToken: nextToken}
		for i := range entries {
			resp.Items = append(resp.Items, toHistoryEntryResponse(&entries[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// getHistoryHandler returns a handler for a single run record.
func getHistoryHandler(history *store.HistoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamId")
		runID := chi.URLParam(r, "runId")

		entry, err := history.Get(runID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entry == nil || entry.TeamID != teamID {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
			return
		}
		writeJSON(w, http.StatusOK, toHistoryEntryResponse(entry))
	}
}

type driftListResponse struct {
	Items []model.DriftFlag `json:"items"`
}

// listDriftHandler returns a handler for a team's drift flags, filtered by
// state: open (default), resolved or all.
func listDriftHandler(drifts *store.DriftStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamId")

		flags, err := drifts.ListByTeam(teamID, r.URL.Query().Get("state"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if flags == nil {
			flags = []model.DriftFlag{}
		}
		writeJSON(w, http.StatusOK, driftListResponse{Items: flags})
	}
}

// resolveDriftHandler returns a handler that closes a drift flag, recording
// the caller as the resolver.
func resolveDriftHandler(drifts *store.DriftStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamId")
		flagID := chi.URLParam(r, "flagId")

		flag, err := drifts.Get(flagID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if flag == nil || flag.TeamID != teamID {
			writeError(w, http.StatusNotFound, fmt.Sprintf("drift flag %s not found", flagID))
			return
		}
		if flag.ResolvedAt != nil {
			writeError(w, http.StatusConflict, fmt.Sprintf("drift flag %s is already resolved", flagID))
			return
		}

		if err := drifts.Resolve(flagID, UserFromRequest(r), time.Now()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resolved, err := drifts.Get(flagID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, resolved)
	}
}

// syncStatusResponse is the cached outcome of a team's most recent run.
type syncStatusResponse struct {
	TeamID         string          `json:"team_id"`
	Enabled        bool            `json:"enabled"`
	ManifestURL    string          `json:"manifest_url"`
	SyncInterval   string          `json:"sync_interval"`
	Running        bool            `json:"running"`
	LastSyncAt     *time.Time      `json:"last_sync_at,omitempty"`
	LastSyncStatus string          `json:"last_sync_status,omitempty"`
	LastSyncError  string          `json:"last_sync_error,omitempty"`
	LastSummary    json.RawMessage `json:"last_sync_summary,omitempty"`
}

// syncStatusHandler returns a handler for a team's current sync status.
func syncStatusHandler(coordinator *sync.Coordinator, configs *store.ManifestConfigStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamId")

		cfg, err := configs.GetByTeam(teamID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if cfg == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("team %s has no manifest configuration", teamID))
			return
		}

		resp := syncStatusResponse{
			TeamID:         teamID,
			Enabled:        cfg.Enabled,
			ManifestURL:    cfg.ManifestURL,
			SyncInterval:   cfg.SyncInterval,
			Running:        coordinator.IsRunning(teamID),
			LastSyncAt:     cfg.LastSyncAt,
			LastSyncStatus: cfg.LastSyncStatus,
			LastSyncError:  cfg.LastSyncError,
		}
		if cfg.LastSyncSummary != "" {
			resp.LastSummary = json.RawMessage(cfg.LastSyncSummary)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// manifestConfigRequest is the PUT body for a team's manifest config.
type manifestConfigRequest struct {
	ManifestURL  string `json:"manifest_url"`
	Enabled      *bool  `json:"enabled"`
	SyncInterval string `json:"sync_interval"`
	AuthToken    string `json:"auth_token"`
}

type manifestConfigResponse struct {
	TeamID       string `json:"team_id"`
	ManifestURL  string `json:"manifest_url"`
	Enabled      bool   `json:"enabled"`
	SyncInterval string `json:"sync_interval"`
	HasAuthToken bool   `json:"has_auth_token"`
}

// putManifestConfigHandler returns a handler that creates or replaces a
// team's manifest config. The auth token is write-only.
func putManifestConfigHandler(teams *store.TeamStore, configs *store.ManifestConfigStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID := chi.URLParam(r, "teamId")

		team, err := teams.Get(teamID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if team == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("team %s not found", teamID))
			return
		}

		var req manifestConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		if req.ManifestURL == "" {
			writeError(w, http.StatusUnprocessableEntity, "manifest_url is required")
			return
		}
		if req.SyncInterval != "" {
			if d, err := time.ParseDuration(req.SyncInterval); err != nil || d <= 0 {
				writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid sync_interval %q", req.SyncInterval))
				return
			}
		}

		enabled := true
		if req.Enabled != nil {
			enabled = *req.Enabled
		}
		cfg := &model.TeamManifestConfig{
			TeamID:       teamID,
			ManifestURL:  req.ManifestURL,
			Enabled:      enabled,
			SyncInterval: req.SyncInterval,
			AuthToken:    req.AuthToken,
		}
		if err := configs.Upsert(cfg); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, manifestConfigResponse{
			TeamID:       teamID,
			ManifestURL:  cfg.ManifestURL,
			Enabled:      cfg.Enabled,
			SyncInterval: cfg.SyncInterval,
			HasAuthToken: cfg.AuthToken != "",
		})
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
