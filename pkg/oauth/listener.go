package oauth

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// DefaultRedirectTimeout bounds how long a sign-in attempt waits for the user
// to complete consent in the browser.
const DefaultRedirectTimeout = 3 * time.Minute

// connIOTimeout bounds reading the redirect request and writing the
// confirmation page once a connection has arrived.
const connIOTimeout = 10 * time.Second

// RedirectListener receives exactly one browser redirect on a loopback
// address and hands back the authorization code. It binds an OS-assigned
// ephemeral port on 127.0.0.1, so there is no network exposure and no
// collision with other local services.
type RedirectListener struct {
	ln            net.Listener
	expectedState string
	timeout       time.Duration
}

// NewRedirectListener binds the loopback port for one authorization attempt.
// A timeout of zero falls back to DefaultRedirectTimeout.
func NewRedirectListener(expectedState string, timeout time.Duration) (*RedirectListener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to bind loopback listener: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultRedirectTimeout
	}
	return &RedirectListener{
		ln:            ln,
		expectedState: expectedState,
		timeout:       timeout,
	}, nil
}

// RedirectURI returns the redirect URI registered with the provider for this
// attempt.
func (l *RedirectListener) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d", l.Port())
}

// Port returns the bound ephemeral port.
func (l *RedirectListener) Port() int {
	return l.ln.Addr().(*net.TCPAddr).Port
}

// Close releases the bound port. Safe to call after WaitForCode returned.
func (l *RedirectListener) Close() error {
	return l.ln.Close()
}

// WaitForCode blocks until one redirect arrives, the timeout elapses, or the
// context is cancelled. Whatever the validation outcome, the browser
// connection is answered with a terminal HTML page before closing so the tab
// never hangs.
func (l *RedirectListener) WaitForCode(ctx context.Context) (string, error) {
	if tcp, ok := l.ln.(*net.TCPListener); ok {
		_ = tcp.SetDeadline(time.Now().Add(l.timeout))
	}

	// Unblock Accept when the caller abandons the attempt.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			l.ln.Close()
		case <-done:
		}
	}()

	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("sign-in cancelled: %w", ctx.Err())
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return "", ErrRedirectTimeout
		}
		return "", fmt.Errorf("failed to accept redirect connection: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connIOTimeout))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read redirect request: %w", err)
	}

	code, parseErr := parseRedirect(line, l.expectedState)
	if parseErr != nil {
		writeHTTPResponse(conn, "400 Bad Request", rejectionPage())
		return "", parseErr
	}

	writeHTTPResponse(conn, "200 OK", confirmationPage())
	return code, nil
}

// parseRedirect extracts the authorization code from the first request line
// of the redirect, e.g. "GET /?code=...&state=... HTTP/1.1". Only this line
// is examined; headers and body are irrelevant to the contract.
func parseRedirect(requestLine, expectedState string) (string, error) {
	fields := strings.Fields(requestLine)
	if len(fields) < 2 {
		return "", &ProtocolError{Reason: "malformed redirect request"}
	}

	target := fields[1]
	qIdx := strings.Index(target, "?")
	if qIdx < 0 {
		return "", &ProtocolError{Reason: "missing query in redirect"}
	}

	var code string
	for _, pair := range strings.Split(target[qIdx+1:], "&") {
		key, rawValue, _ := strings.Cut(pair, "=")
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			value = ""
		}
		if key == "state" && value != expectedState {
			return "", &ProtocolError{Reason: "state mismatch"}
		}
		if key == "code" {
			code = value
		}
	}

	if code == "" {
		return "", &ProtocolError{Reason: "authorization code missing"}
	}
	return code, nil
}

func writeHTTPResponse(conn net.Conn, status, body string) {
	fmt.Fprintf(conn, "HTTP/1.1 %s\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\n\r\n%s", status, len(body), body)
}
