package oauth

import (
	"errors"
	"fmt"
)

// ErrRedirectTimeout is returned when no browser redirect arrives before the
// listener's deadline, usually because the user abandoned the consent page.
var ErrRedirectTimeout = errors.New("timed out waiting for browser redirect")

// ProtocolError indicates a malformed redirect request, a state mismatch, or
// an unparsable response from the provider.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// ProviderError is a non-success HTTP status from the provider. The status
// and body are carried verbatim because they are usually the only way to
// diagnose a provider-side configuration mistake.
type ProviderError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s failed: provider returned %d: %s", e.Op, e.StatusCode, e.Body)
}
