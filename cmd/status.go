package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"authflow/internal/config"
	"authflow/internal/store"
)

var statusConfigPath string

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show the archived record of a session",
	Long: `Prints the archived record of a finished session, including its
terminal state, attempt counters, and the names of any page captures
taken on the way to a failure. Token values are not printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(statusConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	archive, err := store.NewArchive(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	rec, err := archive.Load(args[0])
	if err != nil {
		return err
	}

	// Tokens stay in the archive; the status output only confirms
	// their presence.
	if rec.Result != nil {
		redacted := *rec.Result
		redacted.AccessToken = "(redacted)"
		if redacted.RefreshToken != "" {
			redacted.RefreshToken = "(redacted)"
		}
		if redacted.TokenSecret != "" {
			redacted.TokenSecret = "(redacted)"
		}
		rec.Result = &redacted
	}

	out, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to render record: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusConfigPath, "config", "config.yaml", "Path to the configuration file")
}
