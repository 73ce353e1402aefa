package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle scripts element visibility by selector.
type fakeHandle struct {
	visible   map[string]bool
	waits     []string
	waitDelay time.Duration
	url       string
	html      string
}

func (f *fakeHandle) Navigate(url string, timeout time.Duration) error {
	f.url = url
	return nil
}

func (f *fakeHandle) CurrentURL() string { return f.url }

func (f *fakeHandle) WaitVisible(selector string, timeout time.Duration) error {
	f.waits = append(f.waits, selector)
	if f.waitDelay > 0 {
		time.Sleep(f.waitDelay)
	}
	if f.visible[selector] {
		return nil
	}
	return fmt.Errorf("wait for %q failed: timeout", selector)
}

func (f *fakeHandle) Click(selector string, timeout time.Duration) error { return nil }

func (f *fakeHandle) Fill(selector, value string, timeout time.Duration) error { return nil }

func (f *fakeHandle) Content() (string, error) { return f.html, nil }

func (f *fakeHandle) Close() error { return nil }

func TestFindFirstMatchWins(t *testing.T) {
	table := &Table{Candidates: map[string][]Candidate{
		"thing": {
			{Selector: "#third", Priority: 3},
			{Selector: "#first", Priority: 1},
			{Selector: "#second", Priority: 2},
		},
	}}
	s := NewStrategy(table)
	h := &fakeHandle{visible: map[string]bool{"#second": true, "#third": true}}

	sel, err := s.Find(h, "thing", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "#second", sel)
	// Priority order: #first tried and missed, #second matched, #third
	// never tried.
	assert.Equal(t, []string{"#first", "#second"}, h.waits)
}

func TestFindExhaustsCandidates(t *testing.T) {
	table := &Table{Candidates: map[string][]Candidate{
		"thing": {
			{Selector: "#a", Priority: 1},
			{Selector: "#b", Priority: 2},
		},
	}}
	s := NewStrategy(table)
	h := &fakeHandle{visible: map[string]bool{}}

	_, err := s.Find(h, "thing", time.Second)
	require.Error(t, err)
	assert.True(t, IsElementNotFound(err))
	var enf *ElementNotFoundError
	require.ErrorAs(t, err, &enf)
	assert.Equal(t, 2, enf.Tried)
	assert.Equal(t, []string{"#a", "#b"}, h.waits)
}

func TestFindUnknownPurpose(t *testing.T) {
	s := NewStrategy(&Table{Candidates: map[string][]Candidate{}})
	h := &fakeHandle{}

	_, err := s.Find(h, "missing", time.Second)
	assert.True(t, IsElementNotFound(err))
	assert.Empty(t, h.waits)
}

func TestProbe(t *testing.T) {
	table := &Table{Candidates: map[string][]Candidate{
		"thing": {{Selector: "#a", Priority: 1}},
	}}
	s := NewStrategy(table)

	sel, ok := s.Probe(&fakeHandle{visible: map[string]bool{"#a": true}}, "thing", time.Second)
	assert.True(t, ok)
	assert.Equal(t, "#a", sel)

	_, ok = s.Probe(&fakeHandle{}, "thing", time.Second)
	assert.False(t, ok)
}

func TestSetTableSwapsCandidates(t *testing.T) {
	s := NewStrategy(&Table{Candidates: map[string][]Candidate{
		"thing": {{Selector: "#old", Priority: 1}},
	}})
	s.SetTable(&Table{Candidates: map[string][]Candidate{
		"thing": {{Selector: "#new", Priority: 1}},
	}})

	h := &fakeHandle{visible: map[string]bool{"#new": true}}
	sel, err := s.Find(h, "thing", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "#new", sel)
}

func TestWatchFileReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candidates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("candidates:\n  thing:\n    - selector: \"#v1\"\n      priority: 1\n"), 0o644))

	table, err := LoadTable(path)
	require.NoError(t, err)
	s := NewStrategy(table)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.WatchFile(ctx, path) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("candidates:\n  thing:\n    - selector: \"#v2\"\n      priority: 1\n"), 0o644))

	assert.Eventually(t, func() bool {
		h := &fakeHandle{visible: map[string]bool{"#v2": true}}
		_, ok := s.Probe(h, "thing", time.Second)
		return ok
	}, 2*time.Second, 50*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
