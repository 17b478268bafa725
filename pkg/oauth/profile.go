package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Profile carries the identity claims fetched after sign-in. Every field is
// optional; only the HTTP request itself can fail.
type Profile struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// FetchProfile retrieves identity claims from the userinfo endpoint using the
// access token as a bearer credential.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	if p.oidcProvider != nil {
		return p.fetchProfileOIDC(ctx, accessToken)
	}
	return p.fetchProfileHTTP(ctx, accessToken)
}

func (p *Provider) fetchProfileOIDC(ctx context.Context, accessToken string) (*Profile, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	userInfo, err := p.oidcProvider.UserInfo(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}

	var profile Profile
	if err := userInfo.Claims(&profile); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("userinfo returned unparsable claims: %v", err)}
	}
	if profile.Sub == "" {
		profile.Sub = userInfo.Subject
	}
	return &profile, nil
}

func (p *Provider) fetchProfileHTTP(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("userinfo: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("userinfo: failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Op: "userinfo", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("userinfo returned unparsable body: %v", err)}
	}
	return &profile, nil
}
