package ngsi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
	"github.com/thushan/ngsiproxy/internal/core/ports"
	"github.com/thushan/ngsiproxy/internal/logger"
	"github.com/thushan/ngsiproxy/pkg/pool"
)

type Config struct {
	RegistrationPath      string
	ChunkSize             int
	ConnectionTimeout     time.Duration
	ResponseHeaderTimeout time.Duration
}

// Request identifies one proxy call: which resource and on whose behalf
type Request struct {
	ResourceID string
	User       string
	RequestID  string
}

// Service proxies a single catalog resource to its context broker. Each call
// is independent; the only shared state is the client cache and chunk pool.
type Service struct {
	repo     ports.ResourceRepository
	creds    ports.CredentialProvider
	settings ports.Settings
	env      ports.Environment
	recorder ports.ProxyRecorder
	logger   logger.StyledLogger
	clients  *ClientFactory
	chunks   *pool.Pool[*[]byte]
	config   Config
}

type Dependencies struct {
	Repository  ports.ResourceRepository
	Credentials ports.CredentialProvider
	Settings    ports.Settings
	Environment ports.Environment
	Recorder    ports.ProxyRecorder
	Logger      logger.StyledLogger
}

func NewService(config Config, deps Dependencies) (*Service, error) {
	if deps.Repository == nil {
		return nil, errors.New("ngsi: resource repository is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("ngsi: logger is required")
	}
	if config.RegistrationPath == "" {
		config.RegistrationPath = constants.DefaultRegistrationQueryPath
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = constants.DefaultChunkSize
	}
	if deps.Environment == nil {
		deps.Environment = OSEnvironment{}
	}

	chunks, err := pool.NewBufferPool(config.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("ngsi: %w", err)
	}

	return &Service{
		repo:     deps.Repository,
		creds:    deps.Credentials,
		settings: deps.Settings,
		env:      deps.Environment,
		recorder: deps.Recorder,
		logger:   deps.Logger,
		clients:  NewClientFactory(config.ConnectionTimeout, config.ResponseHeaderTimeout),
		chunks:   chunks,
		config:   config,
	}, nil
}

// Outbound describes the broker request a resource turns into, used by the
// proxy itself and by the cli to show what would be sent.
type Outbound struct {
	Header       http.Header
	Method       string
	Target       string
	Mode         string
	VerifySource string
	Body         []byte
	Verify       domain.VerifyPolicy
}

// Prepare runs every check that happens before the network: url validation,
// mode selection, body construction, header injection and verify policy.
func (s *Service) Prepare(ctx context.Context, resource *domain.Resource, user string) (*Outbound, error) {
	parsed, err := ValidateURL(resource.URL)
	if err != nil {
		return nil, err
	}

	var plan *outboundPlan
	if resource.IsRegistry() {
		plan, err = planRegistrationQuery(resource, parsed, s.config.RegistrationPath)
	} else {
		plan, err = planDirectQuery(resource, parsed)
	}
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	if plan.contentType != "" {
		header.Set(constants.HeaderContentType, plan.contentType)
	}
	if err = applyHeaders(ctx, header, resource, user, s.creds); err != nil {
		return nil, err
	}

	policy, source := ResolveVerifyPolicy(s.env, s.settings)

	return &Outbound{
		Method:       plan.method,
		Target:       plan.target,
		Mode:         plan.mode,
		Body:         plan.body,
		Header:       header,
		Verify:       policy,
		VerifySource: source,
	}, nil
}

// ProxyResource looks the resource up, issues the one broker request and
// relays the answer into w. When an error is returned nothing has been
// written to w and the caller renders it; a failure mid stream is only
// logged since the status line is already gone.
func (s *Service) ProxyResource(ctx context.Context, w http.ResponseWriter, req Request) error {
	start := time.Now()
	rlog := s.logger
	if req.RequestID != "" {
		rlog = rlog.WithRequestID(req.RequestID)
	}

	mode := ModeQuery
	bytesOut, err := s.proxy(ctx, w, req, rlog, &mode)
	duration := time.Since(start)

	status := http.StatusOK
	if err != nil && !errors.Is(err, ErrStreamInterrupted) {
		status = http.StatusInternalServerError
		if appErr := domain.AsAppError(err); appErr != nil {
			status = appErr.Status
		}
	}
	if s.recorder != nil {
		s.recorder.RecordProxy(mode, status, bytesOut, duration)
	}

	if err != nil {
		rlog.ResultWithStatus("Proxy request failed", status, "resource_id", req.ResourceID, "mode", mode, "duration", duration, "error", err)
		return err
	}

	rlog.ResultWithStatus("Proxied resource", status, "resource_id", req.ResourceID, "mode", mode, "bytes", bytesOut, "duration", duration)
	return nil
}

func (s *Service) proxy(ctx context.Context, w http.ResponseWriter, req Request, rlog logger.StyledLogger, mode *string) (int64, error) {
	resource, err := s.repo.Show(ctx, req.ResourceID)
	if err != nil {
		if errors.Is(err, domain.ErrResourceNotFound) {
			return 0, domain.NewAppError(http.StatusNotFound, constants.MsgResourceNotFound, err)
		}
		return 0, err
	}
	if resource.IsRegistry() {
		*mode = ModeRegistration
	}

	out, err := s.Prepare(ctx, resource, req.User)
	if err != nil {
		return 0, err
	}
	*mode = out.Mode

	client, err := s.clients.Client(out.Verify)
	if err != nil {
		return 0, err
	}

	var body io.Reader
	if out.Body != nil {
		body = bytes.NewReader(out.Body)
	}
	outReq, err := http.NewRequestWithContext(ctx, out.Method, out.Target, body)
	if err != nil {
		return 0, domain.NewAppError(http.StatusConflict, constants.MsgInvalidURL, err)
	}
	outReq.Header = out.Header

	rlog.DebugWithBroker("Forwarding to context broker", out.Target, "method", out.Method, "mode", out.Mode, "verify", out.Verify.String(), "verify_source", out.VerifySource)

	sent := time.Now()
	resp, err := client.Do(outReq)
	if err != nil {
		return 0, MapTransportError(err, time.Since(sent))
	}
	defer resp.Body.Close()

	return s.relay(ctx, w, resp, resource, req.User, rlog)
}

// Close releases pooled broker connections
func (s *Service) Close() {
	s.clients.Close()
}
