package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/oauth2"
)

const deviceFlowTimeout = 10 * time.Minute

// StartDeviceFlow runs the OAuth2 device authorization grant as a fallback
// for headless machines where a loopback redirect is not possible. User
// instructions are written to w.
func (p *Provider) StartDeviceFlow(ctx context.Context, w io.Writer) (*oauth2.Token, error) {
	deviceAuth, err := p.OAuth2Config.DeviceAuth(ctx, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("device authorization failed: %w", err)
	}

	fmt.Fprintf(w, "\nTo sign in, visit: %s\n", deviceAuth.VerificationURI)
	fmt.Fprintf(w, "And enter code: %s\n\n", deviceAuth.UserCode)
	if deviceAuth.VerificationURIComplete != "" {
		fmt.Fprintf(w, "Or visit this URL directly:\n%s\n\n", deviceAuth.VerificationURIComplete)
	}
	fmt.Fprintf(w, "Waiting for sign-in to complete...\n")

	return p.pollForDeviceToken(ctx, deviceAuth)
}

func (p *Provider) pollForDeviceToken(ctx context.Context, deviceAuth *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	interval := time.Duration(deviceAuth.Interval) * time.Second
	if interval == 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	timeout := time.NewTimer(deviceFlowTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("device flow cancelled: %w", ctx.Err())

		case <-timeout.C:
			return nil, errors.New("device flow timed out waiting for sign-in")

		case <-ticker.C:
			token, err := p.OAuth2Config.DeviceAccessToken(ctx, deviceAuth)
			if err == nil {
				return token, nil
			}

			var rerr *oauth2.RetrieveError
			if errors.As(err, &rerr) {
				switch rerr.ErrorCode {
				case "authorization_pending":
					continue
				case "slow_down":
					interval += 5 * time.Second
					ticker.Reset(interval)
					continue
				case "expired_token":
					return nil, errors.New("device code expired, start over")
				case "access_denied":
					return nil, errors.New("sign-in was denied")
				default:
					return nil, &ProviderError{Op: "device flow", StatusCode: rerr.Response.StatusCode, Body: string(rerr.Body)}
				}
			}

			return nil, fmt.Errorf("device flow error: %w", err)
		}
	}
}
