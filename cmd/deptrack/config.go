package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configManifestURL string
	configInterval    string
	configAuthToken   string
	configDisabled    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage team manifest configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set <team-id>",
	Short: "Create or update a team's manifest config",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigSet,
}

func init() {
	configSetCmd.Flags().StringVar(&configManifestURL, "manifest-url", "", "Manifest URL (https://... or git+https://host/repo.git#branch:path)")
	configSetCmd.Flags().StringVar(&configInterval, "interval", "", "Sync interval, e.g. 30m or 1h")
	configSetCmd.Flags().StringVar(&configAuthToken, "auth-token", "", "Bearer token for manifest fetches")
	configSetCmd.Flags().BoolVar(&configDisabled, "disabled", false, "Disable scheduled syncs for the team")
	_ = configSetCmd.MarkFlagRequired("manifest-url")

	configCmd.AddCommand(configSetCmd)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	client := newClient()

	enabled := !configDisabled
	body := manifestConfig{
		ManifestURL:  configManifestURL,
		Enabled:      &enabled,
		SyncInterval: configInterval,
		AuthToken:    configAuthToken,
	}

	var resp map[string]any
	if err := client.putJSON("/teams/"+args[0]+"/manifest-config", body, &resp); err != nil {
		return err
	}

	if outputFmt == "json" || outputFmt == "yaml" {
		return printOutput(resp)
	}
	fmt.Printf("Manifest config saved for team %s (enabled=%t)\n", args[0], enabled)
	return nil
}
