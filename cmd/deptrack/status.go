package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <team-id>",
	Short: "Show a team's current sync status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newClient()

	var status syncStatus
	if err := client.getJSON("/teams/"+args[0]+"/sync/status", &status); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(status)
	}

	lastSync := "never"
	if status.LastSyncAt != nil {
		lastSync = status.LastSyncAt.Format("2006-01-02 15:04:05")
	}

	headers := []string{"Field", "Value"}
	rows := [][]string{
		{"Enabled", fmt.Sprintf("%t", status.Enabled)},
		{"Running", fmt.Sprintf("%t", status.Running)},
		{"Manifest URL", status.ManifestURL},
		{"Interval", status.SyncInterval},
		{"Last sync", lastSync},
		{"Last status", status.LastSyncStatus},
	}
	if status.LastSyncError != "" {
		rows = append(rows, []string{"Last error", truncate(status.LastSyncError, 80)})
	}
	printTable(headers, rows)
	return nil
}
