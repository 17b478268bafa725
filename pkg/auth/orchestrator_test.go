package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taura/pkg/oauth"
	"taura/pkg/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeProvider is an httptest-backed token and userinfo endpoint pair. Token
// responses are pushed onto a queue; tokenCalls counts grant requests.
type fakeProvider struct {
	srv        *httptest.Server
	tokenCalls atomic.Int64

	mu        sync.Mutex
	responses []map[string]any
	lastForm  url.Values
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		require.NoError(t, r.ParseForm())

		f.mu.Lock()
		f.lastForm = r.PostForm
		var resp map[string]any
		if len(f.responses) > 0 {
			resp = f.responses[0]
			f.responses = f.responses[1:]
		}
		f.mu.Unlock()

		if resp == nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"sub-1","email":"u@example.com","name":"U","picture":"https://p/u.png"}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeProvider) queue(resp map[string]any) {
	f.mu.Lock()
	f.responses = append(f.responses, resp)
	f.mu.Unlock()
}

func (f *fakeProvider) provider() *oauth.Provider {
	p := oauth.NewStaticProvider(
		oauth.Config{ClientID: "abc"},
		oauth2.Endpoint{AuthURL: f.srv.URL + "/auth", TokenURL: f.srv.URL + "/token"},
		f.srv.URL+"/userinfo",
	)
	return p.WithHTTPClient(f.srv.Client())
}

// completeRedirect acts as the browser: it pulls state and redirect_uri out of
// the consent URL and immediately follows the redirect back with a code.
func completeRedirect(t *testing.T, code string) func(authURL string) error {
	t.Helper()
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		state := u.Query().Get("state")
		redirectURI := u.Query().Get("redirect_uri")
		go func() {
			resp, err := http.Get(redirectURI + "/?code=" + url.QueryEscape(code) + "&state=" + url.QueryEscape(state))
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

type testEnv struct {
	provider *fakeProvider
	store    *session.Store
	orch     *Orchestrator
}

func newTestEnv(t *testing.T, openBrowser func(string) error) *testEnv {
	t.Helper()
	fp := newFakeProvider(t)
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), zerolog.Nop())
	orch := New(Options{
		Provider:        fp.provider(),
		Store:           store,
		Logger:          zerolog.Nop(),
		OpenBrowser:     openBrowser,
		RedirectTimeout: 5 * time.Second,
	})
	return &testEnv{provider: fp, store: store, orch: orch}
}

func TestSignInEndToEnd(t *testing.T) {
	env := newTestEnv(t, completeRedirect(t, "the-code"))
	env.provider.queue(map[string]any{
		"access_token":  "at-1",
		"expires_in":    3600,
		"refresh_token": "rt-1",
	})

	before := time.Now().Unix()
	sess, err := env.orch.SignIn(context.Background(), ClientConfig{ClientID: "abc"})
	require.NoError(t, err)

	assert.Equal(t, "at-1", sess.AccessToken)
	assert.Equal(t, "rt-1", sess.RefreshToken)
	assert.Equal(t, "u@example.com", sess.Email)
	assert.Equal(t, "sub-1", sess.Sub)
	assert.Equal(t, "abc", sess.ClientID)
	require.NotNil(t, sess.ExpiresAt)
	assert.InDelta(t, before+3600-30, *sess.ExpiresAt, 5, "expiry is skewed early")
	assert.Equal(t, PhaseAuthenticated, env.orch.Phase())

	// The exchange must carry the PKCE verifier and attempt redirect URI.
	env.provider.mu.Lock()
	form := env.provider.lastForm
	env.provider.mu.Unlock()
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "the-code", form.Get("code"))
	assert.NotEmpty(t, form.Get("code_verifier"))
	assert.Contains(t, form.Get("redirect_uri"), "http://127.0.0.1:")

	stored, err := env.store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, sess, stored)
}

func TestSignInEmptyClientID(t *testing.T) {
	env := newTestEnv(t, completeRedirect(t, "the-code"))

	_, err := env.orch.SignIn(context.Background(), ClientConfig{ClientID: "   "})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, int64(0), env.provider.tokenCalls.Load())
}

func TestSignInRejectedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	env := newTestEnv(t, func(authURL string) error {
		close(started)
		<-release
		return completeRedirect(t, "the-code")(authURL)
	})
	env.provider.queue(map[string]any{"access_token": "at-1", "expires_in": 3600})

	firstDone := make(chan error, 1)
	go func() {
		_, err := env.orch.SignIn(context.Background(), ClientConfig{ClientID: "abc"})
		firstDone <- err
	}()
	<-started

	_, err := env.orch.SignIn(context.Background(), ClientConfig{ClientID: "abc"})
	assert.ErrorIs(t, err, ErrSignInInFlight)

	close(release)
	require.NoError(t, <-firstDone)

	// Once the first attempt finishes, new attempts are accepted again.
	env.provider.queue(map[string]any{"access_token": "at-2", "expires_in": 3600})
	env.orch.openBrowser = completeRedirect(t, "another-code")
	_, err = env.orch.SignIn(context.Background(), ClientConfig{ClientID: "abc"})
	require.NoError(t, err)
}

func TestEnsureFreshNoSession(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.orch.EnsureFresh(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestEnsureFreshSessionStillFresh(t *testing.T) {
	env := newTestEnv(t, nil)
	at := time.Now().Unix() + 500
	require.NoError(t, env.store.Persist(&session.Session{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    &at,
		ClientID:     "abc",
	}))

	sess, err := env.orch.EnsureFresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "at-1", sess.AccessToken)
	assert.Equal(t, int64(0), env.provider.tokenCalls.Load(), "fresh session must not hit the token endpoint")
}

func TestEnsureFreshRefreshes(t *testing.T) {
	env := newTestEnv(t, nil)
	at := time.Now().Unix() + 10
	require.NoError(t, env.store.Persist(&session.Session{
		AccessToken:  "at-old",
		RefreshToken: "rt-1",
		ExpiresAt:    &at,
		Email:        "u@example.com",
		ClientID:     "abc",
	}))
	// The provider does not reissue a refresh token here.
	env.provider.queue(map[string]any{"access_token": "at-new", "expires_in": 3600})

	sess, err := env.orch.EnsureFresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "at-new", sess.AccessToken)
	assert.Equal(t, "rt-1", sess.RefreshToken, "old refresh token carried forward")
	assert.Equal(t, "u@example.com", sess.Email, "profile fields survive a refresh")
	assert.Equal(t, int64(1), env.provider.tokenCalls.Load())

	env.provider.mu.Lock()
	form := env.provider.lastForm
	env.provider.mu.Unlock()
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "rt-1", form.Get("refresh_token"))

	stored, err := env.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "at-new", stored.AccessToken, "refreshed session overwrites the file")
}

func TestEnsureFreshNoRefreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	at := time.Now().Unix() + 10
	require.NoError(t, env.store.Persist(&session.Session{
		AccessToken: "at-old",
		ExpiresAt:   &at,
		ClientID:    "abc",
	}))

	_, err := env.orch.EnsureFresh(context.Background())

	var expErr *ExpiredSessionError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, int64(0), env.provider.tokenCalls.Load())

	stored, loadErr := env.store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, "at-old", stored.AccessToken, "store untouched on failure")
}

func TestEnsureFreshProviderFailureLeavesStore(t *testing.T) {
	env := newTestEnv(t, nil)
	at := time.Now().Unix() + 10
	require.NoError(t, env.store.Persist(&session.Session{
		AccessToken:  "at-old",
		RefreshToken: "rt-dead",
		ExpiresAt:    &at,
		ClientID:     "abc",
	}))
	// No queued response: the token endpoint answers 400 invalid_grant.

	_, err := env.orch.EnsureFresh(context.Background())

	var provErr *oauth.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusBadRequest, provErr.StatusCode)

	stored, loadErr := env.store.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, "at-old", stored.AccessToken)
	assert.Equal(t, "rt-dead", stored.RefreshToken)
}

func TestEnsureFreshNoExpiryNeverRefreshes(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.Persist(&session.Session{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ClientID:     "abc",
	}))

	sess, err := env.orch.EnsureFresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at-1", sess.AccessToken)
	assert.Equal(t, int64(0), env.provider.tokenCalls.Load())
}

func TestSignOutIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.Persist(&session.Session{AccessToken: "at-1"}))

	require.NoError(t, env.orch.SignOut())
	assert.Equal(t, PhaseIdle, env.orch.Phase())

	sess, err := env.orch.Session()
	require.NoError(t, err)
	assert.Nil(t, sess)

	require.NoError(t, env.orch.SignOut())

	_, err = os.Stat(env.store.Path())
	assert.True(t, os.IsNotExist(err))
}
