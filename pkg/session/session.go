package session

import (
	"time"
)

// ExpirySkew is subtracted from the provider-reported lifetime so a session
// is treated as stale slightly before the access token actually expires.
const ExpirySkew = 30 * time.Second

// Session is the durable credential record for the one signed-in identity.
// It mirrors the on-disk JSON layout.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    *int64 `json:"expires_at,omitempty"`
	IDToken      string `json:"id_token,omitempty"`

	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	Sub     string `json:"sub,omitempty"`

	// Client identity used for this session. Needed to run a refresh grant
	// later, so it travels with the tokens.
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// ExpiresAtUnix computes the absolute expiry timestamp for a token issued now
// with the given lifetime in seconds, applying ExpirySkew. Returns nil when
// the provider did not report a lifetime.
func ExpiresAtUnix(now time.Time, expiresIn int64) *int64 {
	if expiresIn <= 0 {
		return nil
	}
	at := now.Add(time.Duration(expiresIn)*time.Second - ExpirySkew).Unix()
	return &at
}

// FreshFor reports whether the session's expiry is more than window away from
// now. A session without an expiry is always considered fresh; there is
// nothing to compare against and no way to refresh proactively.
func (s *Session) FreshFor(now time.Time, window time.Duration) bool {
	if s.ExpiresAt == nil {
		return true
	}
	return *s.ExpiresAt-now.Unix() > int64(window/time.Second)
}

// WithTokens derives the post-refresh session record. The receiver is not
// mutated. The refresh token and ID token are replaced only when the provider
// reissued them; otherwise the previous values are carried forward.
func (s *Session) WithTokens(accessToken string, expiresAt *int64, refreshToken, idToken string) Session {
	next := *s
	next.AccessToken = accessToken
	next.ExpiresAt = expiresAt
	if refreshToken != "" {
		next.RefreshToken = refreshToken
	}
	if idToken != "" {
		next.IDToken = idToken
	}
	return next
}
