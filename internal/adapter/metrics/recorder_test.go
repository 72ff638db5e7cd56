package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordProxy(t *testing.T) {
	r := New("")

	r.RecordProxy("registration", http.StatusOK, 2048, 120*time.Millisecond)
	r.RecordProxy("registration", http.StatusOK, 10, 5*time.Millisecond)
	r.RecordProxy("query", http.StatusConflict, 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.ProxyRequests.WithLabelValues("registration", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ProxyRequests.WithLabelValues("query", "409")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.ProxyDuration))
	// failed requests relay nothing
	assert.Equal(t, 1, testutil.CollectAndCount(r.ProxyBytes))
}

func TestRecordRateLimitedAndGauge(t *testing.T) {
	r := New("test")

	r.RecordRateLimited("proxy")
	r.SetCatalogResources(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.RateLimited.WithLabelValues("proxy")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.CatalogResources))
}

type stubCredentials struct {
	err error
}

func (s stubCredentials) AccessToken(context.Context, string) (string, error) { return "t", nil }
func (s stubCredentials) RefreshToken(context.Context, string) error          { return s.err }

func TestInstrumentCredentials(t *testing.T) {
	r := New("")

	ok := InstrumentCredentials(stubCredentials{}, r)
	failing := InstrumentCredentials(stubCredentials{err: errors.New("idm down")}, r)

	require.NoError(t, ok.RefreshToken(context.Background(), "alice"))
	require.Error(t, failing.RefreshToken(context.Background(), "alice"))

	token, err := ok.AccessToken(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "t", token)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.TokenRefreshes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.TokenRefreshes.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	r := New("")
	r.RecordProxy("query", http.StatusOK, 1, time.Millisecond)

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/metrics", nil))

	body, _ := io.ReadAll(w.Body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(body), "ngsiproxy_proxy_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}
