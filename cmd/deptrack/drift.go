package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var driftState string

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Inspect and resolve drift flags",
}

var driftListCmd = &cobra.Command{
	Use:   "list <team-id>",
	Short: "List a team's drift flags",
	Args:  cobra.ExactArgs(1),
	RunE:  runDriftList,
}

var driftResolveCmd = &cobra.Command{
	Use:   "resolve <team-id> <flag-id>",
	Short: "Resolve a drift flag",
	Args:  cobra.ExactArgs(2),
	RunE:  runDriftResolve,
}

func init() {
	driftListCmd.Flags().StringVar(&driftState, "state", "open", "Filter: open, resolved or all")
	driftCmd.AddCommand(driftListCmd)
	driftCmd.AddCommand(driftResolveCmd)
}

func runDriftList(cmd *cobra.Command, args []string) error {
	client := newClient()

	var page driftPage
	if err := client.getJSON(fmt.Sprintf("/teams/%s/drift?state=%s", args[0], driftState), &page); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(page)
	}

	headers := []string{"Flag ID", "Service", "Field", "Manifest Value", "Live Value", "Last Detected", "Resolved By"}
	rows := make([][]string, 0, len(page.Items))
	for _, f := range page.Items {
		resolvedBy := ""
		if f.ResolvedAt != nil {
			resolvedBy = f.ResolvedBy
		}
		rows = append(rows, []string{
			f.ID,
			f.ServiceID,
			f.Field,
			truncate(f.ManifestValue, 32),
			truncate(f.LiveValue, 32),
			f.LastDetectedAt.Format("2006-01-02 15:04:05"),
			resolvedBy,
		})
	}
	printTable(headers, rows)
	return nil
}

func runDriftResolve(cmd *cobra.Command, args []string) error {
	client := newClient()

	var flag driftFlag
	if err := client.postJSON(fmt.Sprintf("/teams/%s/drift/%s:resolve", args[0], args[1]), nil, &flag); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(flag)
	}
	fmt.Printf("Resolved drift flag %s (%s) as %s\n", flag.ID, flag.Field, flag.ResolvedBy)
	return nil
}
