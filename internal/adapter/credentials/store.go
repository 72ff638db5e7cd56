package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	jsoniter "github.com/json-iterator/go"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/ngsiproxy/internal/core/constants"
	"github.com/thushan/ngsiproxy/internal/core/domain"
	"github.com/thushan/ngsiproxy/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultAccessTokenPath  = "$.access_token"
	DefaultRefreshTokenPath = "$.refresh_token"
	DefaultRefreshTimeout   = 15 * time.Second

	maxTokenResponseSize = 1 << 20
)

var ErrNoRefreshToken = errors.New("no refresh token for user")

// Session is what the identity layer hands over after a user logs in
type Session struct {
	UpdatedAt    time.Time `json:"updated_at"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}

type Config struct {
	TokenURL         string
	ClientID         string
	ClientSecret     string
	AccessTokenPath  string
	RefreshTokenPath string
	Timeout          time.Duration
}

// Store keeps the current OAuth2 session of every catalog user and refreshes
// tokens against the identity manager when the broker rejects them.
type Store struct {
	sessions *xsync.Map[string, Session]
	client   *http.Client
	logger   logger.StyledLogger
	config   Config
}

func NewStore(config Config, log logger.StyledLogger) (*Store, error) {
	if config.AccessTokenPath == "" {
		config.AccessTokenPath = DefaultAccessTokenPath
	}
	if config.RefreshTokenPath == "" {
		config.RefreshTokenPath = DefaultRefreshTokenPath
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefreshTimeout
	}

	for _, path := range []string{config.AccessTokenPath, config.RefreshTokenPath} {
		if _, err := jsonpath.New(path); err != nil {
			return nil, fmt.Errorf("invalid token JSONPath %q: %w", path, err)
		}
	}
	if config.TokenURL != "" {
		if parsed, err := url.Parse(config.TokenURL); err != nil || parsed.Host == "" {
			return nil, &domain.ConfigValidationError{Field: "credentials.token_url", Value: config.TokenURL, Reason: "must be an absolute url"}
		}
	}

	return &Store{
		sessions: xsync.NewMap[string, Session](),
		client:   &http.Client{Timeout: config.Timeout},
		logger:   log,
		config:   config,
	}, nil
}

// Put registers or replaces the session of user
func (s *Store) Put(user string, session Session) error {
	if user == "" {
		return errors.New("user is required")
	}
	if session.AccessToken == "" {
		return errors.New("access_token is required")
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}
	s.sessions.Store(user, session)
	return nil
}

func (s *Store) Remove(user string) {
	s.sessions.Delete(user)
}

func (s *Store) Size() int {
	return s.sessions.Size()
}

func (s *Store) AccessToken(_ context.Context, user string) (string, error) {
	if user == "" {
		return "", domain.ErrNoAccessToken
	}
	session, ok := s.sessions.Load(user)
	if !ok || session.AccessToken == "" {
		return "", domain.ErrNoAccessToken
	}
	return session.AccessToken, nil
}

// RefreshToken swaps the user's refresh token for a new access token. With
// no token url configured the session is dropped instead, the next login
// repopulates it.
func (s *Store) RefreshToken(ctx context.Context, user string) error {
	session, ok := s.sessions.Load(user)
	if !ok {
		return domain.ErrNoAccessToken
	}

	if s.config.TokenURL == "" {
		s.sessions.Delete(user)
		s.logger.Info("Dropped expired session", "user", user)
		return nil
	}
	if session.RefreshToken == "" {
		s.sessions.Delete(user)
		return ErrNoRefreshToken
	}

	refreshed, err := s.exchange(ctx, session.RefreshToken)
	if err != nil {
		return fmt.Errorf("refreshing token for %q: %w", user, err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = session.RefreshToken
	}

	s.sessions.Store(user, refreshed)
	s.logger.Info("Refreshed access token", "user", user)
	return nil
}

func (s *Store) exchange(ctx context.Context, refreshToken string) (Session, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set(constants.HeaderContentType, "application/x-www-form-urlencoded")
	req.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	if s.config.ClientID != "" {
		req.SetBasicAuth(s.config.ClientID, s.config.ClientSecret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Session{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return Session{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("token endpoint answered %d", resp.StatusCode)
	}

	var doc interface{}
	if err = json.Unmarshal(body, &doc); err != nil {
		return Session{}, fmt.Errorf("token endpoint response: %w", err)
	}

	access, err := extractString(s.config.AccessTokenPath, doc)
	if err != nil || access == "" {
		return Session{}, fmt.Errorf("no access token at %s in token response", s.config.AccessTokenPath)
	}
	// providers that don't rotate refresh tokens omit it
	refresh, _ := extractString(s.config.RefreshTokenPath, doc)

	return Session{AccessToken: access, RefreshToken: refresh, UpdatedAt: time.Now()}, nil
}

func extractString(path string, doc interface{}) (string, error) {
	value, err := jsonpath.Get(path, doc)
	if err != nil {
		return "", err
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%s is %T, not a string", path, value)
	}
	return str, nil
}
