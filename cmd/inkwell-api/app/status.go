package app

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the processing status of a site",
	Long: `Show the processing status of a site: the aggregate state plus the
per-item detail visible to the site owner. Output is JSON on stdout.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("server", "http://localhost:8080", "Base URL of the publishing API server")
	statusCmd.Flags().String("site", "", "Site ID (required)")
	statusCmd.Flags().String("token", "", "Bearer token of the site owner (required)")

	for _, flag := range []string{"site", "token"} {
		if err := statusCmd.MarkFlagRequired(flag); err != nil {
			panic(err)
		}
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	client, err := newAPIClient(cmd)
	if err != nil {
		return err
	}

	st, err := client.fetchStatus(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	output, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
