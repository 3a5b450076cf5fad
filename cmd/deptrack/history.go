package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var (
	historyPageSize  int
	historyPageToken string
)

var historyCmd = &cobra.Command{
	Use:   "history <team-id> [run-id]",
	Short: "Show a team's sync run history, newest first",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyPageSize, "page-size", 20, "Number of runs per page")
	historyCmd.Flags().StringVar(&historyPageToken, "page-token", "", "Cursor from a previous page")
}

func runHistory(cmd *cobra.Command, args []string) error {
	teamID := args[0]
	client := newClient()

	if len(args) == 2 {
		var entry historyEntry
		if err := client.getJSON(fmt.Sprintf("/teams/%s/sync/history/%s", teamID, args[1]), &entry); err != nil {
			return err
		}
		return printOutputOrDefaultJSON(entry)
	}

	query := url.Values{}
	query.Set("pageSize", fmt.Sprintf("%d", historyPageSize))
	if historyPageToken != "" {
		query.Set("pageToken", historyPageToken)
	}

	var page historyPage
	if err := client.getJSON(fmt.Sprintf("/teams/%s/sync/history?%s", teamID, query.Encode()), &page); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(page)
	}

	headers := []string{"Run ID", "Status", "Trigger", "By", "Duration", "Created"}
	rows := make([][]string, 0, len(page.Items))
	for _, e := range page.Items {
		rows = append(rows, []string{
			e.ID,
			e.Status,
			e.TriggerType,
			truncate(e.TriggeredBy, 24),
			fmt.Sprintf("%dms", e.DurationMs),
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	printTable(headers, rows)

	if page.NextPageToken != "" {
		fmt.Printf("\nNext page: --page-token %s\n", page.NextPageToken)
	}
	return nil
}

// printOutputOrDefaultJSON prints structured output, defaulting the table
// format to JSON for single-record responses.
func printOutputOrDefaultJSON(v any) error {
	if outputFmt == "yaml" {
		return printYAML(v)
	}
	return printJSON(v)
}
