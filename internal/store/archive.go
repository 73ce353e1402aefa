package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"authflow/internal/session"
	"authflow/pkg/logging"
)

// Record is the durable form of a finished session. It answers status
// queries after the session leaves the in-memory registry.
type Record struct {
	ID             string               `yaml:"id"`
	ProfileID      string               `yaml:"profileId"`
	AccountID      string               `yaml:"accountId"`
	AppID          string               `yaml:"appId"`
	State          session.State        `yaml:"state"`
	FailureDetail  string               `yaml:"failureDetail,omitempty"`
	LastPage       string               `yaml:"lastPage,omitempty"`
	Attempts       map[string]int       `yaml:"attempts,omitempty"`
	CreatedAt      time.Time            `yaml:"createdAt"`
	ArchivedAt     time.Time            `yaml:"archivedAt"`
	Result         *session.TokenBundle `yaml:"result,omitempty"`
	SnapshotFiles  []string             `yaml:"snapshotFiles,omitempty"`
	SnapshotStates []session.State      `yaml:"snapshotStates,omitempty"`
}

// NotFoundError indicates no archived record exists for the session.
type NotFoundError struct {
	SessionID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no archived record for session %s", e.SessionID)
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// Archive persists finished sessions under a data directory: one YAML
// record per session, with page captures stored alongside as HTML
// files so they can be opened directly in a browser.
type Archive struct {
	dataDir string
}

// NewArchive creates the archive directories if needed.
func NewArchive(dataDir string) (*Archive, error) {
	for _, dir := range []string{
		filepath.Join(dataDir, "sessions"),
		filepath.Join(dataDir, "snapshots"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory %s: %w", dir, err)
		}
	}
	return &Archive{dataDir: dataDir}, nil
}

func (a *Archive) recordPath(sessionID string) string {
	return filepath.Join(a.dataDir, "sessions", sessionID+".yaml")
}

// Save writes the session's terminal record and its page captures.
// Records are written atomically so a crashed write never leaves a
// half-parseable record behind.
func (a *Archive) Save(s *session.Session) error {
	v := s.View()
	rec := Record{
		ID:            s.ID,
		ProfileID:     s.ProfileID,
		AccountID:     s.AccountID,
		AppID:         s.AppID,
		State:         v.State,
		FailureDetail: v.FailureDetail,
		LastPage:      v.LastPage,
		Attempts:      v.Attempts,
		CreatedAt:     s.CreatedAt,
		ArchivedAt:    time.Now(),
		Result:        v.Result,
	}

	for i, snap := range v.Snapshots {
		name := fmt.Sprintf("%s-%d.html", s.ID, i)
		path := filepath.Join(a.dataDir, "snapshots", name)
		body := fmt.Sprintf("<!-- url: %s captured: %s -->\n%s",
			snap.URL, snap.CapturedAt.Format(time.RFC3339), snap.HTML)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("failed to write snapshot %s: %w", name, err)
		}
		rec.SnapshotFiles = append(rec.SnapshotFiles, name)
		rec.SnapshotStates = append(rec.SnapshotStates, snap.State)
	}

	data, err := yaml.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	tmp := a.recordPath(s.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}
	if err := os.Rename(tmp, a.recordPath(s.ID)); err != nil {
		return fmt.Errorf("failed to finalize session record: %w", err)
	}

	logging.Debug("Archive", "archived session %s in state %s", s.ID, rec.State)
	return nil
}

// Load reads an archived session record.
func (a *Archive) Load(sessionID string) (*Record, error) {
	data, err := os.ReadFile(a.recordPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{SessionID: sessionID}
		}
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session record %s: %w", sessionID, err)
	}
	return &rec, nil
}

// List returns the IDs of all archived sessions.
func (a *Archive) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.dataDir, "sessions"))
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) != ".yaml" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".yaml")])
	}
	return ids, nil
}
