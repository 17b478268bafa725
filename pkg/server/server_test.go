package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"taura/pkg/auth"
	"taura/pkg/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Store) {
	t.Helper()
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), zerolog.Nop())
	orch := auth.New(auth.Options{Store: store, Logger: zerolog.Nop()})

	s := New("127.0.0.1:0", orch, zerolog.Nop())
	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestSessionViewSignedOut(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/session")
	require.NoError(t, err)
	defer resp.Body.Close()

	var view SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.False(t, view.SignedIn)
	assert.Equal(t, "idle", view.Phase)
}

func TestSessionViewRedactsTokens(t *testing.T) {
	srv, store := newTestServer(t)
	at := int64(1_900_000_000)
	require.NoError(t, store.Persist(&session.Session{
		AccessToken:  "secret-access",
		RefreshToken: "secret-refresh",
		ExpiresAt:    &at,
		Email:        "u@example.com",
		Name:         "U",
	}))

	resp, err := http.Get(srv.URL + "/session")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	assert.Equal(t, true, raw["signed_in"])
	assert.Equal(t, "u@example.com", raw["email"])
	assert.Equal(t, float64(at), raw["expires_at"])
	for key := range raw {
		assert.NotContains(t, key, "token", "tokens must never appear in the view")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
