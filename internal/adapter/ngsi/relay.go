package ngsi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
	"github.com/thushan/ngsiproxy/internal/logger"
)

// error bodies are small, anything bigger than this is not a broker error document
const maxErrorBodySize = 1 << 20

// ErrStreamInterrupted marks a relay that failed after the 200 went out, the
// caller can only log it
var ErrStreamInterrupted = errors.New("relay interrupted")

// relay translates the broker response. Only a 2xx/3xx reaches the browser
// as a body, every error status is turned into an AppError before anything
// is written to w.
func (s *Service) relay(ctx context.Context, w http.ResponseWriter, resp *http.Response, resource *domain.Resource, user string, rlog logger.StyledLogger) (int64, error) {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return 0, s.unauthorised(ctx, resource, user, rlog)

	case resp.StatusCode == http.StatusBadRequest:
		return 0, badRequest(resp.Body)

	case resp.StatusCode >= http.StatusBadRequest:
		return 0, domain.NewAppError(http.StatusConflict, constants.MsgHTTPError,
			fmt.Errorf("context broker answered %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	if contentType := resp.Header.Get(constants.HeaderContentType); contentType != "" {
		w.Header().Set(constants.HeaderContentType, contentType)
	}
	w.WriteHeader(http.StatusOK)

	return s.stream(ctx, w, resp.Body, rlog)
}

func (s *Service) unauthorised(ctx context.Context, resource *domain.Resource, user string, rlog logger.StyledLogger) error {
	if !resource.AuthType.RequiresToken() {
		return domain.NewAppError(http.StatusConflict, constants.MsgAuthenticationRequested, nil)
	}

	if s.creds == nil {
		rlog.Warn("Broker rejected token but no credential provider is configured", "user", user)
	} else if err := s.creds.RefreshToken(ctx, user); err != nil {
		// the browser is told to reload either way
		rlog.Warn("Token refresh failed", "user", user, "error", err)
	} else {
		rlog.Debug("Token refreshed after broker 401", "user", user)
	}

	return domain.NewAppError(http.StatusConflict, constants.MsgTokenExpired, nil)
}

// badRequest passes the broker's own description through as a 422. A body we
// can't make sense of is a 409 with no detail.
func badRequest(body io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil {
		return domain.NewAppError(http.StatusConflict, "", err)
	}

	if !gjson.ValidBytes(raw) {
		return domain.NewAppError(http.StatusConflict, "", fmt.Errorf("broker 400 body is not json"))
	}

	description := gjson.GetBytes(raw, "description")
	if !description.Exists() {
		return domain.NewAppError(http.StatusConflict, "", fmt.Errorf("broker 400 body has no description"))
	}

	return domain.NewAppError(http.StatusUnprocessableEntity, description.String(), nil)
}

// stream copies body to w one chunk at a time, flushing after every write so
// the browser sees data as soon as the broker produces it.
func (s *Service) stream(ctx context.Context, w http.ResponseWriter, body io.Reader, rlog logger.StyledLogger) (int64, error) {
	bufPtr := s.chunks.Get()
	defer s.chunks.Put(bufPtr)
	buffer := *bufPtr

	flusher, canFlush := w.(http.Flusher)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("%w: %w", ErrStreamInterrupted, err)
		}

		n, readErr := body.Read(buffer)
		if n > 0 {
			written, writeErr := w.Write(buffer[:n])
			total += int64(written)
			if writeErr != nil {
				rlog.Debug("write error during relay", "error", writeErr, "bytes_written", total)
				return total, fmt.Errorf("%w: %w", ErrStreamInterrupted, writeErr)
			}
			if canFlush {
				flusher.Flush()
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return total, nil
			}
			rlog.Debug("read error during relay", "error", readErr, "bytes_read", total)
			return total, fmt.Errorf("%w: %w", ErrStreamInterrupted, readErr)
		}
	}
}
