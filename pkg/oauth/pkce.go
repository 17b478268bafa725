package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/google/uuid"
)

const (
	// RFC 7636 constrains the verifier length to [43,128] characters.
	verifierMinLen = 43
	verifierMaxLen = 128

	// 48 random bytes encode to 64 URL-safe characters, comfortably inside
	// the allowed range.
	verifierEntropyBytes = 48

	verifierPad = 'A'
)

// PKCE holds the verifier/challenge pair for one authorization attempt. The
// verifier is kept in memory only and never persisted.
type PKCE struct {
	Verifier  string
	Challenge string
}

// GeneratePKCE produces a fresh code verifier and its S256 challenge. Failure
// of the system random source is fatal; there is no weaker fallback.
func GeneratePKCE() PKCE {
	b := make([]byte, verifierEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		panic("oauth: system random source unavailable: " + err.Error())
	}
	verifier := normalizeVerifier(base64.RawURLEncoding.EncodeToString(b))
	return PKCE{
		Verifier:  verifier,
		Challenge: ChallengeS256(verifier),
	}
}

// ChallengeS256 derives the code challenge from a verifier. It is a pure
// function: the same verifier always yields the same challenge.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// normalizeVerifier forces the verifier into the [43,128] range, padding with
// a fixed filler character or truncating as needed.
func normalizeVerifier(v string) string {
	for len(v) < verifierMinLen {
		v += string(verifierPad)
	}
	if len(v) > verifierMaxLen {
		v = v[:verifierMaxLen]
	}
	return v
}

// GenerateState generates a single-use correlation token binding the
// authorization request to its redirect.
func GenerateState() string {
	return uuid.NewString()
}
