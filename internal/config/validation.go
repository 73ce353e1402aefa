package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add appends a new validation error.
func (ve *ValidationErrors) Add(field, message string) {
	*ve = append(*ve, ValidationError{Field: field, Message: message})
}

// Validate checks the configuration for values the engine cannot run
// with. It returns nil when the configuration is usable.
func Validate(c Config) error {
	var errs ValidationErrors

	if c.Engine.MaxConcurrentProfiles < 1 {
		errs.Add("engine.maxConcurrentProfiles", "must be at least 1")
	}
	if c.Engine.GateAcquireTimeout <= 0 {
		errs.Add("engine.gateAcquireTimeout", "must be positive")
	}
	if c.Engine.SessionLease <= 0 {
		errs.Add("engine.sessionLease", "must be positive")
	}
	if c.Engine.ReaperInterval <= 0 {
		errs.Add("engine.reaperInterval", "must be positive")
	}
	if c.Engine.LoginAttemptCeiling < 1 {
		errs.Add("engine.loginAttemptCeiling", "must be at least 1")
	}

	if c.Browser.ConnectTimeout <= 0 {
		errs.Add("browser.connectTimeout", "must be positive")
	}
	if c.Browser.ElementWait <= 0 {
		errs.Add("browser.elementWait", "must be positive")
	}
	if c.Browser.CallbackWait <= 0 {
		errs.Add("browser.callbackWait", "must be positive")
	}

	if c.Exchange.MaxAttempts < 1 {
		errs.Add("exchange.maxAttempts", "must be at least 1")
	}

	if len(c.Apps) == 0 {
		errs.Add("apps", "at least one application config is required")
	}
	seen := make(map[string]bool)
	for i, app := range c.Apps {
		prefix := fmt.Sprintf("apps[%d]", i)
		if app.ID == "" {
			errs.Add(prefix+".id", "is required")
		} else if seen[app.ID] {
			errs.Add(prefix+".id", fmt.Sprintf("duplicate app id %q", app.ID))
		} else {
			seen[app.ID] = true
		}
		if app.ClientID == "" {
			errs.Add(prefix+".clientId", "is required")
		}
		validateURL(&errs, prefix+".authUrl", app.AuthURL)
		validateURL(&errs, prefix+".tokenUrl", app.TokenURL)
		validateURL(&errs, prefix+".callbackUrl", app.CallbackURL)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateURL(errs *ValidationErrors, field, raw string) {
	if raw == "" {
		errs.Add(field, "is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs.Add(field, fmt.Sprintf("%q is not an absolute URL", raw))
	}
}
