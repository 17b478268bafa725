package oauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Google endpoints used when no issuer is configured. The companion app is
// registered with Google as an installed application.
const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Config holds the OAuth2/OIDC provider configuration.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Provider wraps the OAuth2 endpoints and, when discovery was used, the OIDC
// provider for userinfo and ID token verification.
type Provider struct {
	OAuth2Config *oauth2.Config
	UserInfoURL  string

	oidcProvider    *oidc.Provider
	idTokenVerifier *oidc.IDTokenVerifier
	client          *http.Client
}

// NewProvider creates a provider through OIDC discovery at the configured
// issuer.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	oidcProvider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider at %s: %w", cfg.IssuerURL, err)
	}

	p := newProvider(cfg, oidcProvider.Endpoint(), "")
	p.oidcProvider = oidcProvider
	p.idTokenVerifier = oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return p, nil
}

// NewGoogleProvider creates a provider with Google's static endpoints, the
// default for the companion app. No discovery round trip is made.
func NewGoogleProvider(cfg Config) *Provider {
	endpoint := oauth2.Endpoint{
		AuthURL:  googleAuthURL,
		TokenURL: googleTokenURL,
	}
	return newProvider(cfg, endpoint, googleUserInfoURL)
}

// NewStaticProvider creates a provider with explicit endpoints, bypassing
// discovery. Used for providers without a discovery document and in tests.
func NewStaticProvider(cfg Config, endpoint oauth2.Endpoint, userInfoURL string) *Provider {
	return newProvider(cfg, endpoint, userInfoURL)
}

func newProvider(cfg Config, endpoint oauth2.Endpoint, userInfoURL string) *Provider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &Provider{
		OAuth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		UserInfoURL: userInfoURL,
		client:      http.DefaultClient,
	}
}

// WithHTTPClient overrides the HTTP client used for token, userinfo and
// device requests. Mainly for tests.
func (p *Provider) WithHTTPClient(client *http.Client) *Provider {
	p.client = client
	return p
}

// AuthCodeURL builds the authorization URL for one attempt, binding it to the
// attempt's state, redirect URI and PKCE challenge. Offline access and a
// forced consent prompt are requested so the provider issues a refresh token.
func (p *Provider) AuthCodeURL(state, redirectURI, codeChallenge string) string {
	cfg := *p.OAuth2Config
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchanger returns a token exchanger bound to this provider's token
// endpoint.
func (p *Provider) Exchanger() *Exchanger {
	return &Exchanger{
		TokenURL: p.OAuth2Config.Endpoint.TokenURL,
		Client:   p.client,
	}
}

// VerifyIDToken verifies and parses an ID token. Only available when the
// provider was built through OIDC discovery.
func (p *Provider) VerifyIDToken(ctx context.Context, rawIDToken string) (*oidc.IDToken, error) {
	if p.idTokenVerifier == nil {
		return nil, fmt.Errorf("ID token verification requires OIDC discovery")
	}
	idToken, err := p.idTokenVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	return idToken, nil
}

// CanVerifyIDToken reports whether ID token verification is available.
func (p *Provider) CanVerifyIDToken() bool {
	return p.idTokenVerifier != nil
}
