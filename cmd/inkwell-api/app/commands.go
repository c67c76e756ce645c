// Package app provides the entry point for the Inkwell publishing API
// application.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inkwell-sh/inkwell/internal/versions"
)

// NewRootCmd assembles the CLI: the server, migration tooling, and the
// client-side publish/status commands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "inkwell-api",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Inkwell publishing API server",
		Long: `Inkwell publishing API server keeps hosted markdown sites in sync with
their source repositories and accepts direct client uploads.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", root.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}

	root.AddCommand(
		serveCmd,
		migrateCmd,
		publishCmd,
		statusCmd,
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()

			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(output))
				return nil
			}

			fmt.Printf("inkwell-api %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return nil
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
