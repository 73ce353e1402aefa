package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/internal/session"
)

func finishedSession(t *testing.T, r *session.Registry, state session.State) *session.Session {
	t.Helper()
	s, err := r.Admit("profile-1", "acct-1", "app-1", time.Hour)
	require.NoError(t, err)
	require.NoError(t, r.Transition(s.ID, session.StatePending, state))
	return s
}

func TestSaveAndLoad(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	r := session.NewRegistry()
	s := finishedSession(t, r, session.StateCompleted)
	s.SetResult(&session.TokenBundle{
		AccessToken:  "at",
		RefreshToken: "rt",
		Scopes:       []string{"read"},
		IssuedAt:     time.Now(),
	})
	s.SetLastPage("callback")
	s.RecordAttempt("login")

	require.NoError(t, archive.Save(s))

	rec, err := archive.Load(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, rec.ID)
	assert.Equal(t, "profile-1", rec.ProfileID)
	assert.Equal(t, session.StateCompleted, rec.State)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "at", rec.Result.AccessToken)
	assert.Equal(t, 1, rec.Attempts["login"])
	assert.False(t, rec.ArchivedAt.IsZero())
}

func TestSaveWritesSnapshots(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	r := session.NewRegistry()
	s := finishedSession(t, r, session.StateUnexpectedPage)
	s.SetFailureDetail("no known elements on page")
	s.AddSnapshot(session.Snapshot{
		URL:        "https://provider.example/interstitial",
		HTML:       "<html><body>captcha</body></html>",
		State:      session.StatePageClassified,
		CapturedAt: time.Now(),
	})

	require.NoError(t, archive.Save(s))

	rec, err := archive.Load(s.ID)
	require.NoError(t, err)
	require.Len(t, rec.SnapshotFiles, 1)
	assert.Equal(t, session.StatePageClassified, rec.SnapshotStates[0])

	body, err := os.ReadFile(filepath.Join(dir, "snapshots", rec.SnapshotFiles[0]))
	require.NoError(t, err)
	assert.Contains(t, string(body), "captcha")
	assert.Contains(t, string(body), "https://provider.example/interstitial")
}

func TestLoadMissing(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	_, err = archive.Load("nope")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLoadCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewArchive(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sessions", "bad.yaml"), []byte("{not yaml"), 0o644))

	_, err = archive.Load("bad")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestList(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	r := session.NewRegistry()
	a := finishedSession(t, r, session.StateCompleted)
	require.NoError(t, archive.Save(a))
	r2 := session.NewRegistry()
	b := finishedSession(t, r2, session.StateTimedOut)
	require.NoError(t, archive.Save(b))

	ids, err := archive.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}
