package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TokenResponse is the provider's answer to either grant at the token
// endpoint. Only access_token is guaranteed.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// Exchanger performs the authorization-code and refresh-token grants against
// a provider's token endpoint.
type Exchanger struct {
	TokenURL string
	Client   *http.Client
}

// ExchangeCode redeems an authorization code. The code verifier proves this
// client started the attempt; the client secret is included only when one was
// configured.
func (e *Exchanger) ExchangeCode(ctx context.Context, clientID, clientSecret, code, codeVerifier, redirectURI string) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {clientID},
		"code":          {code},
		"code_verifier": {codeVerifier},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {redirectURI},
	}
	if clientSecret != "" {
		form.Set("client_secret", clientSecret)
	}
	return e.post(ctx, "token exchange", form)
}

// Refresh redeems a refresh token for a new access token.
func (e *Exchanger) Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"client_id":     {clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if clientSecret != "" {
		form.Set("client_secret", clientSecret)
	}
	return e.post(ctx, "token refresh", form)
}

func (e *Exchanger) post(ctx context.Context, op string, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("%s returned unparsable body: %v", op, err)}
	}
	if tr.AccessToken == "" {
		return nil, &ProtocolError{Reason: op + " response missing access_token"}
	}

	return &tr, nil
}
