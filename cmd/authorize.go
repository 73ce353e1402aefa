package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"authflow/internal/browser"
	"authflow/internal/config"
	"authflow/internal/engine"
	"authflow/internal/oauthx"
	"authflow/internal/profile"
	"authflow/internal/store"
	"authflow/pkg/logging"
)

var (
	authorizeConfigPath string
	authorizeProfileID  string
	authorizeAccountID  string
	authorizeAppID      string
	authorizeUsername   string
	authorizeDebug      bool
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Run one authorization flow for an account",
	Long: `Runs a single authorization: starts the account's remote browser
profile, drives the provider's login and consent pages, and redeems the
resulting authorization code for tokens.

The account password is read from the AUTHFLOW_PASSWORD environment
variable so it never appears in the process list. Profiles that are
already authorized skip the login step.

The session's terminal record, including page captures taken on
failures, is archived under the configured data directory.`,
	Args: cobra.NoArgs,
	RunE: runAuthorize,
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(authorizeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	initLogging(cfg, authorizeDebug)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	archive, err := store.NewArchive(cfg.Storage.DataDir)
	if err != nil {
		return err
	}

	strategy, err := buildStrategy(ctx, cfg)
	if err != nil {
		return err
	}

	connector := browser.NewPlaywrightConnector()
	defer func() {
		if err := connector.Shutdown(); err != nil {
			logging.Error("CLI", err, "browser driver shutdown failed")
		}
	}()

	eng := engine.New(cfg, archive,
		profile.NewClient(cfg.Provider.APIURL, cfg.Provider.Token, cfg.Provider.StartTimeout.Std()),
		connector, strategy, oauthx.NewClient(cfg.Exchange))

	reaper := engine.NewReaper(eng.Registry(), cfg.Engine.ReaperInterval.Std())
	go reaper.Run(ctx)

	s, err := eng.RequestAuthorization(ctx, engine.Request{
		ProfileID: authorizeProfileID,
		AccountID: authorizeAccountID,
		AppID:     authorizeAppID,
		Credentials: engine.Credentials{
			Username: authorizeUsername,
			Password: os.Getenv("AUTHFLOW_PASSWORD"),
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session %s started\n", s.ID)

	status := awaitTerminal(eng, s.ID)
	if status == nil {
		return fmt.Errorf("session %s vanished before completing", s.ID)
	}

	if !status.State.Succeeded() {
		return &AuthFailedError{State: status.State, Detail: status.FailureDetail}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "session %s completed; tokens archived for account %s\n", s.ID, status.AccountID)
	return nil
}

// awaitTerminal polls session status until the run finishes.
func awaitTerminal(eng *engine.Engine, sessionID string) *engine.Status {
	for {
		status, err := eng.SessionStatus(sessionID)
		if err != nil {
			return nil
		}
		if status.State.Terminal() {
			return status
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// buildStrategy loads the detection candidate table and, when it comes
// from a file, keeps it hot-reloaded for the lifetime of the run.
func buildStrategy(ctx context.Context, cfg config.Config) (*browser.Strategy, error) {
	if cfg.Detection.CandidatesFile == "" {
		return browser.NewStrategy(browser.DefaultTable()), nil
	}

	table, err := browser.LoadTable(cfg.Detection.CandidatesFile)
	if err != nil {
		return nil, err
	}
	strategy := browser.NewStrategy(table)
	go func() {
		if err := strategy.WatchFile(ctx, cfg.Detection.CandidatesFile); err != nil {
			logging.Error("CLI", err, "candidate table watcher stopped")
		}
	}()
	return strategy, nil
}

func initLogging(cfg config.Config, debug bool) {
	level := logging.ParseLevel(cfg.Logging.Level)
	if debug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)
}

func init() {
	rootCmd.AddCommand(authorizeCmd)

	authorizeCmd.Flags().StringVar(&authorizeConfigPath, "config", "config.yaml", "Path to the configuration file")
	authorizeCmd.Flags().StringVar(&authorizeProfileID, "profile", "", "Remote browser profile to run in")
	authorizeCmd.Flags().StringVar(&authorizeAccountID, "account", "", "Account identifier the run is for")
	authorizeCmd.Flags().StringVar(&authorizeAppID, "app", "", "Application (OAuth client) to authorize")
	authorizeCmd.Flags().StringVar(&authorizeUsername, "username", "", "Login username; omit for already-authorized profiles")
	authorizeCmd.Flags().BoolVar(&authorizeDebug, "debug", false, "Enable debug logging")

	_ = authorizeCmd.MarkFlagRequired("profile")
	_ = authorizeCmd.MarkFlagRequired("account")
	_ = authorizeCmd.MarkFlagRequired("app")
}
