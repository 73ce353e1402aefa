package config

import "time"

const (
	// DefaultMaxConcurrentProfiles caps simultaneously running browser
	// profiles. The profile provider bills per concurrent profile, so
	// this mirrors the provider-side plan limit.
	DefaultMaxConcurrentProfiles = 10

	// DefaultGateAcquireTimeout is the longest a caller blocks waiting
	// for a free profile slot before the request fails.
	DefaultGateAcquireTimeout = 30 * time.Second

	// DefaultSessionLease is the maximum lifetime of a non-terminal
	// session before the reaper forces it to timed_out.
	DefaultSessionLease = 2 * time.Hour

	// DefaultReaperInterval is how often the reaper sweeps the registry.
	DefaultReaperInterval = 30 * time.Second

	// DefaultLoginAttemptCeiling bounds how many times a login sequence
	// may be re-entered after re-classification lands on a login page
	// again.
	DefaultLoginAttemptCeiling = 2

	// DefaultBrowserConnectTimeout bounds establishing the CDP
	// connection to a started profile.
	DefaultBrowserConnectTimeout = 30 * time.Second

	// DefaultNavigationTimeout bounds a single page navigation.
	DefaultNavigationTimeout = 30 * time.Second

	// DefaultElementWait is the overall bounded wait for one element
	// lookup across all detection candidates.
	DefaultElementWait = 10 * time.Second

	// DefaultProbeWait is the short existence probe used during page
	// classification. Kept small: classification probes several page
	// kinds in sequence.
	DefaultProbeWait = 3 * time.Second

	// DefaultCallbackWait bounds waiting for the browser to land on the
	// callback URL after consent is submitted.
	DefaultCallbackWait = 30 * time.Second

	// DefaultProfileStartTimeout bounds the provider start-profile call.
	DefaultProfileStartTimeout = 60 * time.Second

	// DefaultExchangeMaxAttempts is the token-exchange attempt ceiling
	// for transient failures.
	DefaultExchangeMaxAttempts = 4

	// DefaultExchangeInitialBackoff seeds the exponential backoff
	// between token-exchange attempts.
	DefaultExchangeInitialBackoff = 500 * time.Millisecond
)

// GetDefaultConfig returns the default configuration for authflow.
// Apps and provider credentials have no defaults; they must come from
// the configuration file.
func GetDefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			MaxConcurrentProfiles: DefaultMaxConcurrentProfiles,
			GateAcquireTimeout:    Duration(DefaultGateAcquireTimeout),
			SessionLease:          Duration(DefaultSessionLease),
			ReaperInterval:        Duration(DefaultReaperInterval),
			LoginAttemptCeiling:   DefaultLoginAttemptCeiling,
		},
		Browser: BrowserConfig{
			ConnectTimeout:    Duration(DefaultBrowserConnectTimeout),
			NavigationTimeout: Duration(DefaultNavigationTimeout),
			ElementWait:       Duration(DefaultElementWait),
			ProbeWait:         Duration(DefaultProbeWait),
			CallbackWait:      Duration(DefaultCallbackWait),
		},
		Provider: ProviderConfig{
			StartTimeout: Duration(DefaultProfileStartTimeout),
		},
		Exchange: ExchangeConfig{
			MaxAttempts:    DefaultExchangeMaxAttempts,
			InitialBackoff: Duration(DefaultExchangeInitialBackoff),
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
