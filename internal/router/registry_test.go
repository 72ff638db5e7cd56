package router

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ngsiproxy/internal/logger"
)

func newTestRegistry(out io.Writer) *RouteRegistry {
	r := NewRouteRegistry(logger.NewPlainStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.SetOutput(out)
	return r
}

func TestRouteRegistry_WireUp(t *testing.T) {
	var table bytes.Buffer
	registry := newTestRegistry(&table)

	registry.Register(http.MethodGet, "/dataset/{id}/resource/{resource_id}/ngsiproxy", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.PathValue("resource_id")))
	}, "Proxy resource", GroupProxy)
	registry.Register(http.MethodGet, "/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("v"))
	}, "Version", GroupInternal)

	registry.Use(GroupProxy, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Proxy-Group", "yes")
			next.ServeHTTP(w, r)
		})
	})

	mux := http.NewServeMux()
	registry.WireUp(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dataset/p/resource/r1/ngsiproxy", nil))
	assert.Equal(t, "r1", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-Proxy-Group"))

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, "v", w.Body.String())
	assert.Empty(t, w.Header().Get("X-Proxy-Group"))

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	assert.Contains(t, table.String(), "Proxy resource")
}

func TestRouteRegistry_SameRouteDifferentMethods(t *testing.T) {
	registry := newTestRegistry(io.Discard)
	noop := func(w http.ResponseWriter, r *http.Request) {}

	registry.Register(http.MethodPost, "/api/resources", noop, "Create", GroupCatalog)
	registry.Register(http.MethodPut, "/api/resources/{resource_id}", noop, "Update", GroupCatalog)
	registry.Register(http.MethodGet, "/api/resources/{resource_id}", noop, "Show", GroupCatalog)

	routes := registry.GetRoutes()
	require.Len(t, routes, 3)
	assert.Equal(t, "Create", routes[0].Description)
	assert.Equal(t, "Show", routes[2].Description)
}
