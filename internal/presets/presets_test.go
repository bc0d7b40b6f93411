package presets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mimiclab/simlink/internal/common/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.PresetsConfig{
		BaseURL: srv.URL,
		Timeout: time.Second,
	}, zap.NewNop())
}

func TestClientList(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/presets", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]Preset{
			{Name: "walk", Values: map[string]any{"speed": 1.0}},
			{Name: "crouch", Values: map[string]any{"height": 0.5}},
		})
	}))

	got, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "walk", got[0].Name)
	assert.Equal(t, 0.5, got[1].Values["height"])
}

func TestClientGetNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientSave(t *testing.T) {
	var received Preset
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/presets/sprint%20fast", r.URL.EscapedPath())
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))

	err := c.Save(context.Background(), &Preset{
		Name:   "sprint fast",
		Values: map[string]any{"stiffness": 0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, "sprint fast", received.Name)
	assert.Equal(t, 0.9, received.Values["stiffness"])

	// A nameless preset is rejected before any request is made.
	assert.Error(t, c.Save(context.Background(), &Preset{}))
}

func TestClientDelete(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	assert.NoError(t, c.Delete(context.Background(), "walk"))
}

func TestClientServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
