package main

import (
	"encoding/json"
	"time"
)

// Wire types mirrored from the server API responses.

type kindCounts struct {
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Removed      int `json:"removed"`
	Unchanged    int `json:"unchanged"`
	DriftFlagged int `json:"drift_flagged"`
}

type runSummary struct {
	Services     kindCounts `json:"services"`
	Aliases      kindCounts `json:"aliases"`
	Overrides    kindCounts `json:"overrides"`
	Associations kindCounts `json:"associations"`
}

type itemError struct {
	Kind    string `json:"kind"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

type runOutcome struct {
	RunID    string      `json:"run_id"`
	Status   string      `json:"status"`
	Summary  runSummary  `json:"summary"`
	Errors   []itemError `json:"errors,omitempty"`
	Warnings []string    `json:"warnings,omitempty"`
}

type historyEntry struct {
	ID          string          `json:"id"`
	TeamID      string          `json:"team_id"`
	TriggerType string          `json:"trigger_type"`
	TriggeredBy string          `json:"triggered_by"`
	ManifestURL string          `json:"manifest_url"`
	Status      string          `json:"status"`
	Summary     json.RawMessage `json:"summary"`
	Errors      json.RawMessage `json:"errors"`
	Warnings    json.RawMessage `json:"warnings"`
	DurationMs  int64           `json:"duration_ms"`
	CreatedAt   time.Time       `json:"created_at"`
}

type historyPage struct {
	Items         []historyEntry `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type driftFlag struct {
	ID              string     `json:"ID"`
	ServiceID       string     `json:"ServiceID"`
	DriftType       string     `json:"DriftType"`
	Field           string     `json:"Field"`
	ManifestValue   string     `json:"ManifestValue"`
	LiveValue       string     `json:"LiveValue"`
	FirstDetectedAt time.Time  `json:"FirstDetectedAt"`
	LastDetectedAt  time.Time  `json:"LastDetectedAt"`
	ResolvedAt      *time.Time `json:"ResolvedAt"`
	ResolvedBy      string     `json:"ResolvedBy"`
}

type driftPage struct {
	Items []driftFlag `json:"items"`
}

type syncStatus struct {
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

type manifestConfig struct {
	ManifestURL  string `json:"manifest_url"`
	Enabled      *bool  `json:"enabled,omitempty"`
	SyncInterval string `json:"sync_interval,omitempty"`
	AuthToken    string `json:"auth_token,omitempty"`
}
