package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so configuration files can use Go
// duration strings ("30s", "2h") directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration structure for authflow.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Browser   BrowserConfig   `yaml:"browser"`
	Provider  ProviderConfig  `yaml:"provider"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Detection DetectionConfig `yaml:"detection"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Apps      []AppConfig     `yaml:"apps"`
}

// EngineConfig bounds the orchestration engine: how many browser
// profiles may run at once, how long a caller waits for a slot, and how
// long a session may live before the reaper forces it out.
type EngineConfig struct {
	MaxConcurrentProfiles int      `yaml:"maxConcurrentProfiles,omitempty"`
	GateAcquireTimeout    Duration `yaml:"gateAcquireTimeout,omitempty"`
	SessionLease          Duration `yaml:"sessionLease,omitempty"`
	ReaperInterval        Duration `yaml:"reaperInterval,omitempty"`
	LoginAttemptCeiling   int      `yaml:"loginAttemptCeiling,omitempty"`
}

// BrowserConfig holds the bounded waits applied to browser interaction.
// Every wait here is a hard upper bound; there are no unbounded waits in
// the state machine.
type BrowserConfig struct {
	ConnectTimeout    Duration `yaml:"connectTimeout,omitempty"`
	NavigationTimeout Duration `yaml:"navigationTimeout,omitempty"`
	ElementWait       Duration `yaml:"elementWait,omitempty"`
	ProbeWait         Duration `yaml:"probeWait,omitempty"`
	CallbackWait      Duration `yaml:"callbackWait,omitempty"`
}

// ProviderConfig configures the remote browser-profile provider API.
type ProviderConfig struct {
	APIURL       string   `yaml:"apiUrl,omitempty"`
	Token        string   `yaml:"token,omitempty"`
	StartTimeout Duration `yaml:"startTimeout,omitempty"`
}

// ExchangeConfig bounds the token-exchange retry policy. Only transient
// failures are retried; provider rejections are terminal on first sight.
type ExchangeConfig struct {
	MaxAttempts    int      `yaml:"maxAttempts,omitempty"`
	InitialBackoff Duration `yaml:"initialBackoff,omitempty"`
}

// DetectionConfig points at an optional YAML file of element detection
// candidates. When set, the file overrides the built-in tables and is
// watched for changes so new locales can be added without a restart.
type DetectionConfig struct {
	CandidatesFile string `yaml:"candidatesFile,omitempty"`
}

// StorageConfig locates the on-disk archive of completed sessions and
// their diagnostic snapshots.
type StorageConfig struct {
	DataDir string `yaml:"dataDir,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// AppConfig describes one external OAuth application the engine can
// authorize accounts against.
type AppConfig struct {
	ID           string   `yaml:"id"`
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret,omitempty"`
	AuthURL      string   `yaml:"authUrl"`
	TokenURL     string   `yaml:"tokenUrl"`
	CallbackURL  string   `yaml:"callbackUrl"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// App returns the application config with the given id.
func (c *Config) App(id string) (AppConfig, bool) {
	for _, app := range c.Apps {
		if app.ID == id {
			return app, true
		}
	}
	return AppConfig{}, false
}
