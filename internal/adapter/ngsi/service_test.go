package ngsi

import (
	"context"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
	"github.com/thushan/ngsiproxy/internal/logger"
)

type fakeRepository struct {
	resources map[string]*domain.Resource
}

func (f *fakeRepository) Show(_ context.Context, id string) (*domain.Resource, error) {
	r, ok := f.resources[id]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	return r.Clone(), nil
}

func (f *fakeRepository) Create(_ context.Context, r *domain.Resource) (*domain.Resource, error) {
	f.resources[r.ID] = r
	return r, nil
}

func (f *fakeRepository) Update(ctx context.Context, r *domain.Resource) (*domain.Resource, error) {
	return f.Create(ctx, r)
}

func (f *fakeRepository) Close() error { return nil }

type fakeCredentials struct {
	err       error
	token     string
	refreshes atomic.Int32
}

func (f *fakeCredentials) AccessToken(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func (f *fakeCredentials) RefreshToken(context.Context, string) error {
	f.refreshes.Add(1)
	return nil
}

type recordedProxy struct {
	mode   string
	status int
	bytes  int64
}

type fakeRecorder struct {
	calls []recordedProxy
}

func (f *fakeRecorder) RecordProxy(mode string, status int, bytes int64, _ time.Duration) {
	f.calls = append(f.calls, recordedProxy{mode: mode, status: status, bytes: bytes})
}

// chunkRecorder remembers the size of every write and every flush
type chunkRecorder struct {
	*httptest.ResponseRecorder
	writes  []int
	flushes int
}

func (c *chunkRecorder) Write(b []byte) (int, error) {
	c.writes = append(c.writes, len(b))
	return c.ResponseRecorder.Write(b)
}

func (c *chunkRecorder) Flush() {
	c.flushes++
	c.ResponseRecorder.Flush()
}

func createTestLogger() logger.StyledLogger {
	return logger.NewPlainStyledLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type testHarness struct {
	service  *Service
	repo     *fakeRepository
	creds    *fakeCredentials
	recorder *fakeRecorder
}

func newTestHarness(t *testing.T, env MapEnvironment, config Config) *testHarness {
	t.Helper()

	h := &testHarness{
		repo:     &fakeRepository{resources: map[string]*domain.Resource{}},
		creds:    &fakeCredentials{token: "user-token"},
		recorder: &fakeRecorder{},
	}
	if env == nil {
		env = MapEnvironment{}
	}

	service, err := NewService(config, Dependencies{
		Repository:  h.repo,
		Credentials: h.creds,
		Settings:    mapSettings{},
		Environment: env,
		Recorder:    h.recorder,
		Logger:      createTestLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(service.Close)

	h.service = service
	return h
}

func (h *testHarness) add(resource *domain.Resource) {
	if resource.ID == "" {
		resource.ID = "res-1"
	}
	h.repo.resources[resource.ID] = resource
}

func (h *testHarness) proxy(t *testing.T, id string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	w := httptest.NewRecorder()
	err := h.service.ProxyResource(context.Background(), w, Request{ResourceID: id, User: "alice", RequestID: "req-1"})
	return w, err
}

func requireAppError(t *testing.T, err error, status int, detail string) {
	t.Helper()
	appErr := domain.AsAppError(err)
	require.NotNil(t, appErr, "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.Status)
	assert.Equal(t, detail, appErr.Detail)
}

func TestProxyResource_RegistrationQuery(t *testing.T) {
	var gotPath, gotMethod, gotContentType, gotAuth, gotService, gotServicePath string
	var gotBody []byte
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		gotContentType = r.Header.Get(constants.HeaderContentType)
		gotAuth = r.Header.Get(constants.HeaderAuthorization)
		gotService = r.Header.Get(constants.HeaderFiwareService)
		gotServicePath = r.Header.Get(constants.HeaderFiwareServicePath)
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set(constants.HeaderContentType, "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"id":"vehicle1","type":"Vehicle"}]`))
	}))
	defer broker.Close()

	h := newTestHarness(t, nil, Config{})
	h.add(&domain.Resource{
		URL:         broker.URL + "/",
		Format:      "FIWARE-NGSI-Registry",
		AuthType:    domain.AuthOAuth2,
		Tenant:      "smartcity",
		ServicePath: "/parking",
		AttrsStr:    "temperature,speed",
		Expression:  "georel=near;minDistance:5000&geometry=point&coords=-40.4,-3.5",
		Entity:      []domain.Entity{{ID: "vehicle1", Value: "Vehicle"}},
	})

	w, err := h.proxy(t, "res-1")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/v2/op/query", gotPath)
	assert.Equal(t, constants.ContentTypeJSON, gotContentType)
	assert.Equal(t, "Bearer user-token", gotAuth)
	assert.Equal(t, "smartcity", gotService)
	assert.Equal(t, "/parking", gotServicePath)
	assert.JSONEq(t, `{
		"entities":[{"id":"vehicle1","type":"Vehicle"}],
		"attrs":["temperature","speed"],
		"expression":{"georel":"near;minDistance:5000","geometry":"point","coords":"-40.4,-3.5"}
	}`, string(gotBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get(constants.HeaderContentType))
	assert.Equal(t, `[{"id":"vehicle1","type":"Vehicle"}]`, w.Body.String())

	require.Len(t, h.recorder.calls, 1)
	assert.Equal(t, ModeRegistration, h.recorder.calls[0].mode)
	assert.Equal(t, http.StatusOK, h.recorder.calls[0].status)
}

func TestProxyResource_DirectQueries(t *testing.T) {
	type seen struct {
		method, path, accept, xauth, auth string
		body                              string
	}
	var got seen
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = seen{
			method: r.Method,
			path:   r.URL.RequestURI(),
			accept: r.Header.Get(constants.HeaderAccept),
			xauth:  r.Header.Get(constants.HeaderXAuthToken),
			auth:   r.Header.Get(constants.HeaderAuthorization),
			body:   string(body),
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer broker.Close()

	t.Run("entities get", func(t *testing.T) {
		h := newTestHarness(t, nil, Config{})
		h.add(&domain.Resource{URL: broker.URL + "/v2/entities?type=Room", Format: "fiware-ngsi"})

		_, err := h.proxy(t, "res-1")
		require.NoError(t, err)
		assert.Equal(t, seen{method: http.MethodGet, path: "/v2/entities?type=Room", accept: constants.ContentTypeJSON}, got)
	})

	t.Run("queryContext post with legacy token", func(t *testing.T) {
		payload := `{"entities":[{"type":"Room","isPattern":"true","id":"Room.*"}]}`
		h := newTestHarness(t, nil, Config{})
		h.add(&domain.Resource{
			URL:      broker.URL + "/v1/queryContext",
			Format:   "fiware-ngsi",
			Payload:  payload,
			AuthType: domain.AuthXAuthTokenFiware,
		})

		_, err := h.proxy(t, "res-1")
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, payload, got.body)
		assert.Equal(t, "user-token", got.xauth)
		assert.Empty(t, got.auth)
	})
}

func TestProxyResource_FailsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer broker.Close()

	tests := []struct {
		resource *domain.Resource
		name     string
		detail   string
		status   int
	}{
		{name: "invalid url", resource: &domain.Resource{URL: "tatata:///da"}, status: http.StatusConflict, detail: constants.MsgInvalidURL},
		{name: "empty url", resource: &domain.Resource{URL: ""}, status: http.StatusConflict, detail: constants.MsgInvalidURL},
		{name: "missing payload", resource: &domain.Resource{URL: broker.URL + "/v1/queryContext"}, status: http.StatusConflict, detail: constants.MsgMissingPayload},
		{name: "invalid payload", resource: &domain.Resource{URL: broker.URL + "/v1/queryContext", Payload: "{"}, status: http.StatusConflict, detail: constants.MsgInvalidPayload},
		{
			name:     "invalid expression",
			resource: &domain.Resource{URL: broker.URL, Format: constants.FormatNGSIRegistry, Expression: "invalid=value", Entity: []domain.Entity{{ID: "a", Value: "A"}}},
			status:   http.StatusUnprocessableEntity,
			detail:   constants.MsgInvalidExpression,
		},
		{
			name:     "registry without entities",
			resource: &domain.Resource{URL: broker.URL, Format: constants.FormatNGSIRegistry},
			status:   http.StatusConflict,
			detail:   constants.MsgMissingEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t, nil, Config{})
			h.add(tt.resource)

			w, err := h.proxy(t, "res-1")
			requireAppError(t, err, tt.status, tt.detail)
			assert.Zero(t, w.Body.Len())
		})
	}

	assert.Zero(t, hits.Load())
}

func TestProxyResource_ResourceNotFound(t *testing.T) {
	h := newTestHarness(t, nil, Config{})

	_, err := h.proxy(t, "missing")
	requireAppError(t, err, http.StatusNotFound, constants.MsgResourceNotFound)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
}

func TestProxyResource_MissingToken(t *testing.T) {
	h := newTestHarness(t, nil, Config{})
	h.creds.err = domain.ErrNoAccessToken
	h.add(&domain.Resource{URL: "http://broker/v2/entities", AuthType: domain.AuthOAuth2})

	_, err := h.proxy(t, "res-1")
	requireAppError(t, err, http.StatusConflict, constants.MsgMissingToken)
}

func TestProxyResource_Unauthorised(t *testing.T) {
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer broker.Close()

	tests := []struct {
		authType      domain.AuthType
		detail        string
		wantRefreshes int32
	}{
		{authType: domain.AuthOAuth2, detail: constants.MsgTokenExpired, wantRefreshes: 1},
		{authType: domain.AuthXAuthTokenFiware, detail: constants.MsgTokenExpired, wantRefreshes: 1},
		{authType: domain.AuthNone, detail: constants.MsgAuthenticationRequested, wantRefreshes: 0},
		{authType: "", detail: constants.MsgAuthenticationRequested, wantRefreshes: 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.authType), func(t *testing.T) {
			h := newTestHarness(t, nil, Config{})
			h.add(&domain.Resource{URL: broker.URL + "/v2/entities", AuthType: tt.authType})

			_, err := h.proxy(t, "res-1")
			requireAppError(t, err, http.StatusConflict, tt.detail)
			assert.Equal(t, tt.wantRefreshes, h.creds.refreshes.Load())
		})
	}
}

func TestProxyResource_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
		code   int
		status int
	}{
		{name: "400 with description", code: http.StatusBadRequest, body: `{"error":"BadRequest","description":"Error in the CB"}`, status: http.StatusUnprocessableEntity, detail: "Error in the CB"},
		{name: "400 not json", code: http.StatusBadRequest, body: `<html>bad</html>`, status: http.StatusConflict, detail: ""},
		{name: "400 without description", code: http.StatusBadRequest, body: `{"error":"BadRequest"}`, status: http.StatusConflict, detail: ""},
		{name: "404", code: http.StatusNotFound, body: `{"error":"NotFound"}`, status: http.StatusConflict, detail: constants.MsgHTTPError},
		{name: "500", code: http.StatusInternalServerError, status: http.StatusConflict, detail: constants.MsgHTTPError},
		{name: "503", code: http.StatusServiceUnavailable, status: http.StatusConflict, detail: constants.MsgHTTPError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer broker.Close()

			h := newTestHarness(t, nil, Config{})
			h.add(&domain.Resource{URL: broker.URL + "/v2/entities"})

			w, err := h.proxy(t, "res-1")
			requireAppError(t, err, tt.status, tt.detail)
			assert.Zero(t, w.Body.Len())

			require.Len(t, h.recorder.calls, 1)
			assert.Equal(t, tt.status, h.recorder.calls[0].status)
		})
	}
}

func TestProxyResource_StreamsInChunks(t *testing.T) {
	payload := strings.Repeat("0123456789abcdef", 200) // 3200 bytes
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(constants.HeaderContentType, "text/plain; charset=iso-8859-1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(payload))
	}))
	defer broker.Close()

	h := newTestHarness(t, nil, Config{})
	h.add(&domain.Resource{URL: broker.URL + "/v2/entities"})

	w := &chunkRecorder{ResponseRecorder: httptest.NewRecorder()}
	err := h.service.ProxyResource(context.Background(), w, Request{ResourceID: "res-1"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=iso-8859-1", w.Header().Get(constants.HeaderContentType))
	assert.Equal(t, payload, w.Body.String())

	require.NotEmpty(t, w.writes)
	for _, n := range w.writes {
		assert.LessOrEqual(t, n, constants.DefaultChunkSize)
	}
	assert.Equal(t, len(w.writes), w.flushes)
	assert.Equal(t, int64(len(payload)), h.recorder.calls[0].bytes)
}

func TestProxyResource_ConnectionRefused(t *testing.T) {
	broker := httptest.NewServer(http.NotFoundHandler())
	target := broker.URL
	broker.Close()

	h := newTestHarness(t, nil, Config{})
	h.add(&domain.Resource{URL: target + "/v2/entities"})

	_, err := h.proxy(t, "res-1")
	requireAppError(t, err, http.StatusBadGateway, constants.MsgConnectionError)
}

func TestProxyResource_Timeout(t *testing.T) {
	release := make(chan struct{})
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
	}))
	defer broker.Close()
	defer close(release)

	h := newTestHarness(t, nil, Config{ResponseHeaderTimeout: 50 * time.Millisecond})
	h.add(&domain.Resource{URL: broker.URL + "/v2/entities"})

	_, err := h.proxy(t, "res-1")
	requireAppError(t, err, http.StatusGatewayTimeout, constants.MsgTimeout)
}

func TestProxyResource_VerifyPolicy(t *testing.T) {
	broker := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer broker.Close()

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: broker.Certificate().Raw})
	require.NoError(t, os.WriteFile(bundle, certPEM, 0o600))

	tests := []struct {
		name   string
		verify string
		detail string
		status int
	}{
		{name: "default verifies and rejects self signed", verify: "", status: http.StatusBadGateway, detail: constants.MsgConnectionError},
		{name: "verify disabled", verify: "false", status: http.StatusOK},
		{name: "ca bundle", verify: bundle, status: http.StatusOK},
		{name: "missing ca bundle", verify: filepath.Join(t.TempDir(), "nope.pem"), status: http.StatusInternalServerError, detail: constants.MsgInvalidCABundle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := MapEnvironment{constants.EnvVerifyRequestsExtension: tt.verify}
			h := newTestHarness(t, env, Config{})
			h.add(&domain.Resource{URL: broker.URL + "/v2/entities"})

			w, err := h.proxy(t, "res-1")
			if tt.status == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, `[]`, w.Body.String())
				return
			}
			requireAppError(t, err, tt.status, tt.detail)
		})
	}
}

func TestProxyResource_InterruptedStreamIsNotAnAppError(t *testing.T) {
	broker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer broker.Close()

	h := newTestHarness(t, nil, Config{})
	h.add(&domain.Resource{URL: broker.URL + "/v2/entities"})

	w := &failingWriter{ResponseRecorder: httptest.NewRecorder()}
	err := h.service.ProxyResource(context.Background(), w, Request{ResourceID: "res-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamInterrupted))
	assert.Nil(t, domain.AsAppError(err))
	assert.Equal(t, http.StatusOK, h.recorder.calls[0].status)
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (f *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("client went away")
}

func TestPrepare(t *testing.T) {
	h := newTestHarness(t, MapEnvironment{constants.EnvVerifyRequestsGlobal: "off"}, Config{RegistrationPath: "/v2/op/query"})

	out, err := h.service.Prepare(context.Background(), &domain.Resource{
		URL:    "http://broker:1026/",
		Format: constants.FormatNGSIRegistry,
		Entity: []domain.Entity{{ID: "Room.*", Value: "Room", IsPattern: "on"}},
	}, "alice")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, out.Method)
	assert.Equal(t, "http://broker:1026/v2/op/query", out.Target)
	assert.Equal(t, ModeRegistration, out.Mode)
	assert.Equal(t, domain.VerifyDisabled, out.Verify)
	assert.Equal(t, constants.EnvVerifyRequestsGlobal, out.VerifySource)
	assert.Equal(t, constants.ContentTypeJSON, out.Header.Get(constants.HeaderAccept))
	assert.Empty(t, out.Header.Get(constants.HeaderAuthorization))
	assert.JSONEq(t, `{"entities":[{"idPattern":"Room.*","type":"Room"}],"attrs":[]}`, string(out.Body))
}

func TestClientFactory_CachesPerPolicy(t *testing.T) {
	factory := NewClientFactory(0, 0)
	defer factory.Close()

	a, err := factory.Client(domain.VerifyEnabled)
	require.NoError(t, err)
	b, err := factory.Client(domain.VerifyEnabled)
	require.NoError(t, err)
	c, err := factory.Client(domain.VerifyDisabled)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, factory.Size())
}
