package ngsi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
)

// MapTransportError turns a failed client.Do into the error the browser sees:
// timeouts become 504, everything else that stopped us reaching the broker 502.
func MapTransportError(err error, duration time.Duration) error {
	if err == nil {
		return nil
	}

	described := describeTransportError(err, duration)
	if isTimeout(err) {
		return domain.NewAppError(http.StatusGatewayTimeout, constants.MsgTimeout, described)
	}
	return domain.NewAppError(http.StatusBadGateway, constants.MsgConnectionError, described)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// describeTransportError gives the log line something more useful than
// "dial tcp: i/o timeout"
func describeTransportError(err error, duration time.Duration) error {
	secs := duration.Seconds()

	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("request cancelled after %.1fs - client went away before the broker answered", secs)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timeout after %.1fs - deadline exceeded", secs)
	case errors.Is(err, io.EOF):
		return fmt.Errorf("connection closed after %.1fs - context broker ended communication unexpectedly", secs)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connection refused after %.1fs - context broker is not accepting connections", secs)
	case errors.Is(err, syscall.ECONNRESET):
		return fmt.Errorf("connection reset after %.1fs - context broker closed the connection", secs)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return fmt.Errorf("connect timeout after %.1fs - cannot reach context broker at %s", secs, opErr.Addr)
		}
		return fmt.Errorf("connection failed after %.1fs - cannot reach context broker at %s: %w", secs, opErr.Addr, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("DNS lookup failed after %.1fs - cannot resolve %s", secs, dnsErr.Name)
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "timeout awaiting response headers"):
		return fmt.Errorf("no response headers after %.1fs - context broker is too slow", secs)
	case strings.Contains(errStr, "TLS handshake timeout"):
		return fmt.Errorf("TLS handshake timeout after %.1fs", secs)
	case strings.Contains(errStr, "certificate"):
		return fmt.Errorf("TLS certificate error after %.1fs - check the verify_requests setting: %w", secs, err)
	}

	return fmt.Errorf("request failed after %.1fs: %w", secs, err)
}
