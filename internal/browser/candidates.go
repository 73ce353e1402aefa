package browser

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Element purposes the detection strategy knows about. Each maps to a
// priority-ordered candidate list in the table.
const (
	PurposeLoginUser      = "loginUser"
	PurposeLoginPassword  = "loginPassword"
	PurposeLoginSubmit    = "loginSubmit"
	PurposeLoginContinue  = "loginContinue"
	PurposeLoginError     = "loginError"
	PurposeConsentApprove = "consentApprove"
	PurposeConsentDeny    = "consentDeny"
	PurposeCookieAccept   = "cookieAccept"
)

// Candidate is one way an element might appear on a provider's page.
// Lower priority values are tried first; locale is informational and
// helps operators maintain the table.
type Candidate struct {
	Selector string `yaml:"selector"`
	Locale   string `yaml:"locale,omitempty"`
	Priority int    `yaml:"priority"`
}

// Table maps element purposes to their candidate lists. Tables are
// immutable once built; hot reload swaps the whole table.
type Table struct {
	Candidates map[string][]Candidate `yaml:"candidates"`
}

// ForPurpose returns the candidates for a purpose sorted by priority,
// stable within equal priorities.
func (t *Table) ForPurpose(purpose string) []Candidate {
	cands := t.Candidates[purpose]
	out := make([]Candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// DefaultTable returns the built-in candidate table. It covers the
// structural selectors providers share plus text-matched fallbacks for
// the locales commonly served to remote profiles.
func DefaultTable() *Table {
	return &Table{
		Candidates: map[string][]Candidate{
			PurposeLoginUser: {
				{Selector: `input[name="username"]`, Priority: 1},
				{Selector: `input[name="email"]`, Priority: 2},
				{Selector: `input[type="email"]`, Priority: 3},
				{Selector: `input[autocomplete="username"]`, Priority: 4},
				{Selector: `input[name="login"]`, Priority: 5},
			},
			PurposeLoginPassword: {
				{Selector: `input[name="password"]`, Priority: 1},
				{Selector: `input[type="password"]`, Priority: 2},
				{Selector: `input[autocomplete="current-password"]`, Priority: 3},
			},
			PurposeLoginSubmit: {
				{Selector: `button[type="submit"]`, Priority: 1},
				{Selector: `input[type="submit"]`, Priority: 2},
				{Selector: `button:has-text("Sign in")`, Locale: "en", Priority: 3},
				{Selector: `button:has-text("Log in")`, Locale: "en", Priority: 4},
				{Selector: `button:has-text("Anmelden")`, Locale: "de", Priority: 5},
				{Selector: `button:has-text("Se connecter")`, Locale: "fr", Priority: 6},
				{Selector: `button:has-text("Iniciar sesión")`, Locale: "es", Priority: 7},
			},
			PurposeLoginContinue: {
				{Selector: `button:has-text("Next")`, Locale: "en", Priority: 1},
				{Selector: `button:has-text("Continue")`, Locale: "en", Priority: 2},
				{Selector: `button:has-text("Weiter")`, Locale: "de", Priority: 3},
				{Selector: `button:has-text("Continuer")`, Locale: "fr", Priority: 4},
			},
			PurposeLoginError: {
				{Selector: `[role="alert"]`, Priority: 1},
				{Selector: `.error-message`, Priority: 2},
				{Selector: `text=/incorrect (password|username)/i`, Locale: "en", Priority: 3},
			},
			PurposeConsentApprove: {
				{Selector: `button[name="authorize"]`, Priority: 1},
				{Selector: `input[name="authorize"]`, Priority: 2},
				{Selector: `button:has-text("Authorize")`, Locale: "en", Priority: 3},
				{Selector: `button:has-text("Allow")`, Locale: "en", Priority: 4},
				{Selector: `button:has-text("Accept")`, Locale: "en", Priority: 5},
				{Selector: `button:has-text("Autorisieren")`, Locale: "de", Priority: 6},
				{Selector: `button:has-text("Autoriser")`, Locale: "fr", Priority: 7},
				{Selector: `button:has-text("Autorizar")`, Locale: "es", Priority: 8},
			},
			PurposeConsentDeny: {
				{Selector: `button:has-text("Deny")`, Locale: "en", Priority: 1},
				{Selector: `button:has-text("Cancel")`, Locale: "en", Priority: 2},
				{Selector: `button:has-text("Ablehnen")`, Locale: "de", Priority: 3},
			},
			PurposeCookieAccept: {
				{Selector: `#onetrust-accept-btn-handler`, Priority: 1},
				{Selector: `button:has-text("Accept all")`, Locale: "en", Priority: 2},
				{Selector: `button:has-text("Alle akzeptieren")`, Locale: "de", Priority: 3},
				{Selector: `button:has-text("Tout accepter")`, Locale: "fr", Priority: 4},
			},
		},
	}
}

// LoadTable reads a candidate table from a YAML file. Purposes present
// in the file replace the built-in candidates for that purpose;
// purposes the file omits keep their defaults, so operators only
// maintain the entries that differ.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate table %s: %w", path, err)
	}

	var loaded Table
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse candidate table %s: %w", path, err)
	}

	table := DefaultTable()
	for purpose, cands := range loaded.Candidates {
		if len(cands) == 0 {
			continue
		}
		for i, c := range cands {
			if c.Selector == "" {
				return nil, fmt.Errorf("candidate table %s: purpose %s entry %d has no selector", path, purpose, i)
			}
		}
		table.Candidates[purpose] = cands
	}
	return table, nil
}
