package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCE(t *testing.T) {
	pkce := GeneratePKCE()

	assert.GreaterOrEqual(t, len(pkce.Verifier), verifierMinLen)
	assert.LessOrEqual(t, len(pkce.Verifier), verifierMaxLen)
	assert.Equal(t, ChallengeS256(pkce.Verifier), pkce.Challenge)

	// Two attempts must never share material.
	other := GeneratePKCE()
	assert.NotEqual(t, pkce.Verifier, other.Verifier)
	assert.NotEqual(t, pkce.Challenge, other.Challenge)
}

func TestChallengeS256Deterministic(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	first := ChallengeS256(verifier)
	second := ChallengeS256(verifier)
	assert.Equal(t, first, second)

	sum := sha256.Sum256([]byte(verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), first)
}

func TestNormalizeVerifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
	}{
		{
			name:    "short verifier padded to minimum",
			input:   strings.Repeat("x", 40),
			wantLen: 43,
		},
		{
			name:    "minimum length unchanged",
			input:   strings.Repeat("x", 43),
			wantLen: 43,
		},
		{
			name:    "typical length unchanged",
			input:   strings.Repeat("x", 64),
			wantLen: 64,
		},
		{
			name:    "overlong verifier truncated",
			input:   strings.Repeat("x", 200),
			wantLen: 128,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeVerifier(tt.input)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestNormalizeVerifierPadsWithFiller(t *testing.T) {
	got := normalizeVerifier(strings.Repeat("x", 40))

	require.Len(t, got, 43)
	assert.Equal(t, strings.Repeat("x", 40)+"AAA", got)

	// The challenge is derived from the padded value, not the raw input.
	assert.Equal(t, ChallengeS256(got), ChallengeS256(strings.Repeat("x", 40)+"AAA"))
	assert.NotEqual(t, ChallengeS256(strings.Repeat("x", 40)), ChallengeS256(got))
}

func TestGenerateState(t *testing.T) {
	first := GenerateState()
	second := GenerateState()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
