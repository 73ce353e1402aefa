package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/profiles/p-1/start", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"wsEndpoint":"ws://127.0.0.1:9222/devtools/browser/abc"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	endpoint, err := c.StartProfile(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", endpoint)
}

func TestStartProfileRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"wsEndpoint":"ws://host/devtools"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	endpoint, err := c.StartProfile(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "ws://host/devtools", endpoint)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStartProfileClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such profile", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	_, err := c.StartProfile(context.Background(), "p-1")
	require.Error(t, err)
	assert.True(t, IsStartError(err))
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestStartProfileMissingEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	_, err := c.StartProfile(context.Background(), "p-1")
	require.Error(t, err)
	assert.True(t, IsStartError(err))
	assert.Contains(t, err.Error(), "wsEndpoint")
}

func TestStopProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profiles/p-1/stop", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	assert.NoError(t, c.StopProfile(context.Background(), "p-1"))
}

func TestStopProfileNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not running", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	assert.NoError(t, c.StopProfile(context.Background(), "p-1"), "stopping a stopped profile must succeed")
}

func TestStopProfileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 5*time.Second)
	err := c.StopProfile(context.Background(), "p-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
