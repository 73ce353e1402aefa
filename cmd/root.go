package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"authflow/internal/gate"
	"authflow/internal/session"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeBusy indicates the run could not start: the concurrency
	// gate timed out or the profile already has an active session.
	ExitCodeBusy = 2
	// ExitCodeAuthFailed indicates the authorization flow ran but
	// ended in a failure state.
	ExitCodeAuthFailed = 3
)

// AuthFailedError carries the terminal failure state of a run so the
// process can exit with a semantic code.
type AuthFailedError struct {
	State  session.State
	Detail string
}

// Error implements the error interface.
func (e *AuthFailedError) Error() string {
	if e.Detail == "" {
		return "authorization failed: " + e.State.String()
	}
	return "authorization failed: " + e.State.String() + ": " + e.Detail
}

// rootCmd represents the base command for the authflow application.
var rootCmd = &cobra.Command{
	Use:   "authflow",
	Short: "Automate third-party authorization flows in remote browser profiles",
	Long: `authflow drives OAuth authorization flows for managed accounts inside
their remote browser profiles: it starts the profile, walks the
provider's login and consent pages, captures the callback, and redeems
the authorization code for tokens.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the
// main package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "authflow version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to semantic exit codes for scripting.
func getExitCode(err error) int {
	if gate.IsGateTimeout(err) || session.IsDuplicateSession(err) {
		return ExitCodeBusy
	}

	var authFailed *AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
