// Package auth composes PKCE generation, the loopback redirect listener, the
// token exchanger, the profile fetcher and the session store into the
// end-to-end sign-in flow and the refresh policy. It is the only package the
// scanner, sync client and UI talk to for credentials.
package auth

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"taura/pkg/browser"
	"taura/pkg/metrics"
	"taura/pkg/oauth"
	"taura/pkg/session"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// freshnessWindow is how far from expiry a session must be for EnsureFresh to
// return it without a refresh.
const freshnessWindow = 60 * time.Second

// Phase is the orchestrator's current position in the sign-in or refresh
// state machine, exposed for status display.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseAwaitingRedirect Phase = "awaiting_redirect"
	PhaseExchangingCode   Phase = "exchanging_code"
	PhaseFetchingProfile  Phase = "fetching_profile"
	PhaseAuthenticated    Phase = "authenticated"
	PhaseRefreshing       Phase = "refreshing"
	PhaseFailed           Phase = "failed"
)

// ClientConfig is the registered application identity for a sign-in attempt.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
}

// Options configures an Orchestrator.
type Options struct {
	Provider *oauth.Provider
	Store    *session.Store
	Logger   zerolog.Logger

	// OpenBrowser launches the system browser. Defaults to browser.Open.
	OpenBrowser func(url string) error

	// RedirectTimeout bounds the wait for the browser redirect. Defaults to
	// oauth.DefaultRedirectTimeout.
	RedirectTimeout time.Duration
}

// Orchestrator drives authorization attempts and the refresh decision policy.
type Orchestrator struct {
	provider        *oauth.Provider
	store           *session.Store
	openBrowser     func(url string) error
	redirectTimeout time.Duration
	log             zerolog.Logger

	// signInMu serializes interactive sign-in attempts: a second attempt is
	// rejected while one is pending.
	signInMu sync.Mutex
	inFlight bool

	// refreshMu makes EnsureFresh single-flight. A caller that waited on the
	// lock re-reads the store and usually finds the session already fresh.
	refreshMu sync.Mutex

	phaseMu sync.Mutex
	phase   Phase
	lastErr error
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	open := opts.OpenBrowser
	if open == nil {
		open = browser.Open
	}
	return &Orchestrator{
		provider:        opts.Provider,
		store:           opts.Store,
		openBrowser:     open,
		redirectTimeout: opts.RedirectTimeout,
		log:             opts.Logger.With().Str("component", "auth").Logger(),
		phase:           PhaseIdle,
	}
}

// Phase returns the current state-machine phase.
func (o *Orchestrator) Phase() Phase {
	o.phaseMu.Lock()
	defer o.phaseMu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phaseMu.Lock()
	o.phase = p
	if p != PhaseFailed {
		o.lastErr = nil
	}
	o.phaseMu.Unlock()
}

func (o *Orchestrator) fail(err error) error {
	o.phaseMu.Lock()
	o.phase = PhaseFailed
	o.lastErr = err
	o.phaseMu.Unlock()
	return err
}

// Session returns the stored session without any network call or freshness
// guarantee. A nil session means nobody is signed in.
func (o *Orchestrator) Session() (*session.Session, error) {
	return o.store.Load()
}

// SignIn runs the full interactive authorization attempt: PKCE material,
// loopback listener, browser launch, code exchange, profile fetch, persist.
// Only one attempt may be in flight at a time.
func (o *Orchestrator) SignIn(ctx context.Context, cfg ClientConfig) (*session.Session, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, &ConfigError{Reason: "client_id is empty"}
	}
	clientSecret := strings.TrimSpace(cfg.ClientSecret)

	if !o.beginSignIn() {
		return nil, ErrSignInInFlight
	}
	defer o.endSignIn()

	pkce := oauth.GeneratePKCE()
	state := oauth.GenerateState()

	listener, err := oauth.NewRedirectListener(state, o.redirectTimeout)
	if err != nil {
		metrics.RecordSignInFailure("listener")
		return nil, o.fail(err)
	}
	defer listener.Close()

	redirectURI := listener.RedirectURI()
	authURL := o.provider.AuthCodeURL(state, redirectURI, pkce.Challenge)

	o.setPhase(PhaseAwaitingRedirect)
	o.log.Info().Int("port", listener.Port()).Msg("opening browser for consent")
	if err := o.openBrowser(authURL); err != nil {
		metrics.RecordSignInFailure("browser")
		return nil, o.fail(fmt.Errorf("failed to open browser: %w", err))
	}

	code, err := listener.WaitForCode(ctx)
	if err != nil {
		metrics.RecordSignInFailure("redirect")
		return nil, o.fail(err)
	}

	o.setPhase(PhaseExchangingCode)
	tr, err := o.provider.Exchanger().ExchangeCode(ctx, clientID, clientSecret, code, pkce.Verifier, redirectURI)
	if err != nil {
		metrics.RecordSignInFailure("exchange")
		return nil, o.fail(err)
	}

	if tr.IDToken != "" && o.provider.CanVerifyIDToken() {
		if _, err := o.provider.VerifyIDToken(ctx, tr.IDToken); err != nil {
			metrics.RecordSignInFailure("id_token")
			return nil, o.fail(err)
		}
	}

	o.setPhase(PhaseFetchingProfile)
	profile, err := o.provider.FetchProfile(ctx, tr.AccessToken)
	if err != nil {
		metrics.RecordSignInFailure("profile")
		return nil, o.fail(err)
	}

	sess := session.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    session.ExpiresAtUnix(time.Now(), tr.ExpiresIn),
		IDToken:      tr.IDToken,
		Email:        profile.Email,
		Name:         profile.Name,
		Picture:      profile.Picture,
		Sub:          profile.Sub,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}
	if err := o.store.Persist(&sess); err != nil {
		metrics.RecordSignInFailure("persist")
		return nil, o.fail(err)
	}

	o.setPhase(PhaseAuthenticated)
	metrics.RecordSignInSuccess()
	o.log.Info().Str("email", sess.Email).Msg("signed in")
	return &sess, nil
}

// SignInDevice runs the device-authorization fallback flow for headless
// machines, then fetches the profile and persists the session like SignIn.
func (o *Orchestrator) SignInDevice(ctx context.Context, cfg ClientConfig, instructions io.Writer) (*session.Session, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, &ConfigError{Reason: "client_id is empty"}
	}

	if !o.beginSignIn() {
		return nil, ErrSignInInFlight
	}
	defer o.endSignIn()

	o.setPhase(PhaseAwaitingRedirect)
	token, err := o.provider.StartDeviceFlow(ctx, instructions)
	if err != nil {
		metrics.RecordSignInFailure("device")
		return nil, o.fail(err)
	}

	o.setPhase(PhaseFetchingProfile)
	profile, err := o.provider.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		metrics.RecordSignInFailure("profile")
		return nil, o.fail(err)
	}

	sess := session.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiryFromToken(token),
		Email:        profile.Email,
		Name:         profile.Name,
		Picture:      profile.Picture,
		Sub:          profile.Sub,
		ClientID:     clientID,
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		sess.IDToken = idToken
	}
	if err := o.store.Persist(&sess); err != nil {
		metrics.RecordSignInFailure("persist")
		return nil, o.fail(err)
	}

	o.setPhase(PhaseAuthenticated)
	metrics.RecordSignInSuccess()
	return &sess, nil
}

// EnsureFresh returns a session whose expiry is more than a minute away,
// running at most one refresh grant. Concurrent callers share a single
// refresh rather than racing the provider, which can invalidate a just-issued
// refresh token.
func (o *Orchestrator) EnsureFresh(ctx context.Context) (*session.Session, error) {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	sess, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}

	if sess.FreshFor(time.Now(), freshnessWindow) {
		return sess, nil
	}

	if sess.RefreshToken == "" {
		return nil, &ExpiredSessionError{Reason: "no refresh token available"}
	}
	if sess.ClientID == "" {
		return nil, &ExpiredSessionError{Reason: "client_id missing from session"}
	}

	o.setPhase(PhaseRefreshing)
	start := time.Now()
	tr, err := o.provider.Exchanger().Refresh(ctx, sess.ClientID, sess.ClientSecret, sess.RefreshToken)
	metrics.TokenRefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// The stored session stays untouched; the caller decides whether to
		// re-run the interactive flow.
		metrics.RecordRefreshFailure("provider")
		o.setPhase(PhaseAuthenticated)
		return nil, err
	}

	next := sess.WithTokens(tr.AccessToken, session.ExpiresAtUnix(time.Now(), tr.ExpiresIn), tr.RefreshToken, tr.IDToken)
	if err := o.store.Persist(&next); err != nil {
		metrics.RecordRefreshFailure("persist")
		o.setPhase(PhaseAuthenticated)
		return nil, err
	}

	o.setPhase(PhaseAuthenticated)
	metrics.RecordRefreshSuccess()
	o.log.Debug().Msg("session refreshed")
	return &next, nil
}

// SignOut removes the stored session. Signing out twice is not an error.
func (o *Orchestrator) SignOut() error {
	if err := o.store.Remove(); err != nil {
		return err
	}
	o.setPhase(PhaseIdle)
	return nil
}

func (o *Orchestrator) beginSignIn() bool {
	o.signInMu.Lock()
	defer o.signInMu.Unlock()
	if o.inFlight {
		return false
	}
	o.inFlight = true
	return true
}

func (o *Orchestrator) endSignIn() {
	o.signInMu.Lock()
	o.inFlight = false
	o.signInMu.Unlock()
}

func expiryFromToken(token *oauth2.Token) *int64 {
	if token.Expiry.IsZero() {
		return nil
	}
	at := token.Expiry.Add(-session.ExpirySkew).Unix()
	return &at
}
