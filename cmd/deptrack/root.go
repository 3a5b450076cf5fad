package main

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	asUser    string
)

var rootCmd = &cobra.Command{
	Use:   "deptrack",
	Short: "CLI for the deptrack sync engine",
	Long: `deptrack manages team manifest synchronization: triggering runs,
inspecting run history and drift flags, and configuring manifests.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Deptrack server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&asUser, "as", "", "Identity recorded for triggers and resolutions (X-User header)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(driftCmd)
	rootCmd.AddCommand(configCmd)
}
