package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiresAtUnix(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	at := ExpiresAtUnix(now, 3600)
	require.NotNil(t, at)
	assert.Equal(t, now.Unix()+3600-30, *at, "expiry is skewed 30s early")

	assert.Nil(t, ExpiresAtUnix(now, 0))
	assert.Nil(t, ExpiresAtUnix(now, -1))
}

func TestFreshFor(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	expiresAt := func(delta int64) *int64 {
		at := now.Unix() + delta
		return &at
	}

	tests := []struct {
		name      string
		expiresAt *int64
		want      bool
	}{
		{name: "no expiry is always fresh", expiresAt: nil, want: true},
		{name: "far future", expiresAt: expiresAt(500), want: true},
		{name: "just outside window", expiresAt: expiresAt(61), want: true},
		{name: "at window boundary", expiresAt: expiresAt(60), want: false},
		{name: "inside window", expiresAt: expiresAt(10), want: false},
		{name: "already expired", expiresAt: expiresAt(-10), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{AccessToken: "at", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, s.FreshFor(now, 60*time.Second))
		})
	}
}

func TestWithTokens(t *testing.T) {
	at := int64(1_700_000_000)
	prior := Session{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		IDToken:      "old-id",
		Email:        "u@example.com",
		ClientID:     "abc",
	}

	t.Run("refresh token carried forward when not reissued", func(t *testing.T) {
		next := prior.WithTokens("new-access", &at, "", "")

		assert.Equal(t, "new-access", next.AccessToken)
		assert.Equal(t, "old-refresh", next.RefreshToken)
		assert.Equal(t, "old-id", next.IDToken)
		assert.Equal(t, "u@example.com", next.Email)
		assert.Equal(t, "abc", next.ClientID)
	})

	t.Run("reissued tokens replace old ones", func(t *testing.T) {
		next := prior.WithTokens("new-access", &at, "new-refresh", "new-id")

		assert.Equal(t, "new-refresh", next.RefreshToken)
		assert.Equal(t, "new-id", next.IDToken)
	})

	t.Run("receiver is not mutated", func(t *testing.T) {
		_ = prior.WithTokens("new-access", &at, "new-refresh", "new-id")

		assert.Equal(t, "old-access", prior.AccessToken)
		assert.Equal(t, "old-refresh", prior.RefreshToken)
	})
}
