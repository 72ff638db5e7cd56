package security

import (
	"net/http"

	"github.com/docker/go-units"

	"github.com/thushan/ngsiproxy/internal/logger"
)

// SizeLimiter caps request bodies on the catalog write routes. Proxy
// requests carry no body so they don't go through it.
type SizeLimiter struct {
	logger      logger.StyledLogger
	maxBodySize int64
}

func NewSizeLimiter(maxBodySize int64, log logger.StyledLogger) *SizeLimiter {
	return &SizeLimiter{maxBodySize: maxBodySize, logger: log}
}

func (sl *SizeLimiter) Middleware(next http.Handler) http.Handler {
	if sl.maxBodySize <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > sl.maxBodySize {
			sl.logger.Warn("Request rejected",
				"reason", "body too large",
				"content_length", units.HumanSize(float64(r.ContentLength)),
				"limit", units.HumanSize(float64(sl.maxBodySize)),
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, sl.maxBodySize)
		next.ServeHTTP(w, r)
	})
}
