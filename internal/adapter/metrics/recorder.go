package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thushan/ngsiproxy/internal/core/ports"
)

const DefaultNamespace = "ngsiproxy"

// Recorder holds the prometheus instruments for proxied broker requests. It
// owns its registry so tests and multiple instances don't collide.
type Recorder struct {
	registry *prometheus.Registry

	ProxyRequests    *prometheus.CounterVec
	ProxyDuration    *prometheus.HistogramVec
	ProxyBytes       *prometheus.HistogramVec
	RateLimited      *prometheus.CounterVec
	TokenRefreshes   *prometheus.CounterVec
	CatalogResources prometheus.Gauge
}

func New(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ProxyRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proxy_requests_total",
				Help:      "Total number of proxied context broker requests",
			},
			[]string{"mode", "status"},
		),
		ProxyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "proxy_request_duration_seconds",
				Help:      "Time from receiving the proxy request to the end of the relay",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),
		ProxyBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "proxy_response_bytes",
				Help:      "Bytes relayed to the browser per request",
				Buckets:   prometheus.ExponentialBuckets(512, 4, 8),
			},
			[]string{"mode"},
		),
		RateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		TokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Token refreshes triggered by broker 401 responses",
			},
			[]string{"result"},
		),
		CatalogResources: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_resources",
				Help:      "Resources held by the catalog store",
			},
		),
	}
}

// RecordProxy satisfies ports.ProxyRecorder
func (r *Recorder) RecordProxy(mode string, status int, bytes int64, duration time.Duration) {
	r.ProxyRequests.WithLabelValues(mode, strconv.Itoa(status)).Inc()
	r.ProxyDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if status == http.StatusOK {
		r.ProxyBytes.WithLabelValues(mode).Observe(float64(bytes))
	}
}

func (r *Recorder) RecordRateLimited(route string) {
	r.RateLimited.WithLabelValues(route).Inc()
}

func (r *Recorder) RecordTokenRefresh(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.TokenRefreshes.WithLabelValues(result).Inc()
}

func (r *Recorder) SetCatalogResources(n int) {
	r.CatalogResources.Set(float64(n))
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler exposes the registry in the prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

type instrumentedCredentials struct {
	ports.CredentialProvider
	recorder *Recorder
}

// InstrumentCredentials counts refresh outcomes of provider
func InstrumentCredentials(provider ports.CredentialProvider, recorder *Recorder) ports.CredentialProvider {
	return &instrumentedCredentials{CredentialProvider: provider, recorder: recorder}
}

func (c *instrumentedCredentials) RefreshToken(ctx context.Context, user string) error {
	err := c.CredentialProvider.RefreshToken(ctx, user)
	c.recorder.RecordTokenRefresh(err)
	return err
}
