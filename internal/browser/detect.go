package browser

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"authflow/pkg/logging"
)

// minCandidateSlice is the floor for the per-candidate time slice.
// Below this the remote round-trip dominates and a present element can
// be missed.
const minCandidateSlice = 250 * time.Millisecond

// ElementNotFoundError indicates none of the candidates for a purpose
// matched within the overall budget.
type ElementNotFoundError struct {
	Purpose string
	Tried   int
	Budget  time.Duration
}

// Error implements the error interface.
func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("no %s element found after trying %d candidates within %s", e.Purpose, e.Tried, e.Budget)
}

// IsElementNotFound checks if an error is an ElementNotFoundError.
func IsElementNotFound(err error) bool {
	var enf *ElementNotFoundError
	return errors.As(err, &enf)
}

// Strategy finds page elements by trying priority-ordered candidate
// selectors, each for a slice of the overall budget. The table can be
// swapped at runtime without disturbing in-flight lookups.
type Strategy struct {
	table atomic.Pointer[Table]
}

// NewStrategy creates a strategy over the given table.
func NewStrategy(table *Table) *Strategy {
	s := &Strategy{}
	s.table.Store(table)
	return s
}

// SetTable replaces the candidate table. In-flight lookups finish with
// the table they started on.
func (s *Strategy) SetTable(table *Table) {
	s.table.Store(table)
}

// Find tries each candidate for the purpose in priority order, giving
// each an equal slice of the budget, and returns the first selector
// that matched a visible element. The first match wins even if a
// lower-priority candidate would also have matched.
func (s *Strategy) Find(h Handle, purpose string, budget time.Duration) (string, error) {
	cands := s.table.Load().ForPurpose(purpose)
	if len(cands) == 0 {
		return "", &ElementNotFoundError{Purpose: purpose, Budget: budget}
	}

	slice := budget / time.Duration(len(cands))
	if slice < minCandidateSlice {
		slice = minCandidateSlice
	}

	for _, c := range cands {
		if err := h.WaitVisible(c.Selector, slice); err == nil {
			logging.Debug("Detect", "%s matched candidate %q (locale %s)", purpose, c.Selector, c.Locale)
			return c.Selector, nil
		}
	}
	return "", &ElementNotFoundError{Purpose: purpose, Tried: len(cands), Budget: budget}
}

// Probe is a short, non-fatal lookup used during page classification.
// It reports whether any candidate for the purpose is present, without
// returning an error when none is.
func (s *Strategy) Probe(h Handle, purpose string, budget time.Duration) (string, bool) {
	sel, err := s.Find(h, purpose, budget)
	return sel, err == nil
}

// WatchFile reloads the candidate table whenever the file changes, and
// blocks until ctx is cancelled. A file that becomes unreadable or
// malformed keeps the previous table in place.
func (s *Strategy) WatchFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create candidate table watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	logging.Info("Detect", "watching candidate table %s for changes", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			table, err := LoadTable(path)
			if err != nil {
				logging.Error("Detect", err, "candidate table reload failed, keeping previous table")
				continue
			}
			s.SetTable(table)
			logging.Info("Detect", "candidate table reloaded from %s", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Detect", err, "candidate table watcher error")
		}
	}
}
