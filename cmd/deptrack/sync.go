package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <team-id>",
	Short: "Trigger a manifest sync run and wait for its outcome",
	Args:  cobra.ExactArgs(1),
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	teamID := args[0]
	client := newClient()

	var outcome runOutcome
	if err := client.postJSON("/teams/"+teamID+"/sync", nil, &outcome); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(outcome)
	}

	fmt.Printf("Run %s finished: %s\n\n", outcome.RunID, outcome.Status)

	headers := []string{"Kind", "Created", "Updated", "Removed", "Unchanged", "Drift"}
	rows := [][]string{
		summaryRow("services", outcome.Summary.Services),
		summaryRow("aliases", outcome.Summary.Aliases),
		summaryRow("overrides", outcome.Summary.Overrides),
		summaryRow("associations", outcome.Summary.Associations),
	}
	printTable(headers, rows)

	if len(outcome.Errors) > 0 {
		fmt.Printf("\n%d item(s) failed:\n", len(outcome.Errors))
		for _, e := range outcome.Errors {
			fmt.Printf("  %s/%s: %s\n", e.Kind, e.Key, e.Message)
		}
	}
	for _, w := range outcome.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}

func summaryRow(kind string, c kindCounts) []string {
	return []string{
		kind,
		fmt.Sprintf("%d", c.Created),
		fmt.Sprintf("%d", c.Updated),
		fmt.Sprintf("%d", c.Removed),
		fmt.Sprintf("%d", c.Unchanged),
		fmt.Sprintf("%d", c.DriftFlagged),
	}
}
