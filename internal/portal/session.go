// Package portal owns the authenticated connection to the CeHuPo customer
// portal: form login, session-expiry classification and raw page fetches.
package portal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cehupo-sync/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// State session lifecycle. Failed is terminal for the run.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateFailed
)

const (
	loginPath     = "/user/authenticate"
	loginFormPath = "/user"
	homePath      = "/home"
	customerPath  = "/customer"
)

// Session one authenticated portal connection shared by all sync workers.
// The proof of auth is an opaque cookie held by the HTTP client; the engine
// only ever observes whether responses look signed-in.
type Session struct {
	http     *resty.Client
	username string
	password string
	detect   SigninDetector
	cache    *PageCache
	logger   *zap.Logger

	// mu serializes login attempts: when many workers hit an expired
	// session at once, exactly one re-authenticates and the rest wait.
	mu    sync.Mutex
	state State
	gen   uint64 // bumped on every successful login
}

// NewSession builds an unauthenticated session. cache may be nil.
func NewSession(cfg config.PortalConfig, detect SigninDetector, cache *PageCache, logger *zap.Logger) *Session {
	if detect == nil {
		detect = DefaultSigninDetector
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	return &Session{
		http:     client,
		username: cfg.Username,
		password: cfg.Password,
		detect:   detect,
		cache:    cache,
		logger:   logger,
	}
}

// State current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation identifies the login epoch a caller observed. Pass it to
// Reauthenticate so a login that already happened is not repeated.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Authenticate performs the initial login. A failure here is fatal for the
// run.
func (s *Session) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.login(ctx); err != nil {
		s.state = StateFailed
		return err
	}
	s.state = StateAuthenticated
	s.gen++
	return nil
}

// Reauthenticate recovers from a session expiry observed at sinceGen. If
// another worker already logged in since, it returns immediately. A failed
// re-login moves the session to its terminal state.
func (s *Session) Reauthenticate(ctx context.Context, sinceGen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFailed {
		return ErrSessionFailed
	}
	if s.gen > sinceGen {
		return nil // somebody else re-authenticated while we waited
	}

	s.logger.Warn("portal session expired, re-authenticating")
	if err := s.login(ctx); err != nil {
		s.state = StateFailed
		return fmt.Errorf("re-authentication: %w", err)
	}
	s.state = StateAuthenticated
	s.gen++
	return nil
}

// login issues the portal's form login. Caller holds s.mu.
func (s *Session) login(ctx context.Context) error {
	s.state = StateAuthenticating

	// Prime the session cookie before posting credentials.
	if _, err := s.http.R().SetContext(ctx).Get(loginFormPath); err != nil {
		return fmt.Errorf("%w: %v", ErrPortalUnreachable, err)
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"action":   "auth",
			"username": s.username,
			"password": s.password,
		}).
		Post(loginPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPortalUnreachable, err)
	}

	finalURL := resp.RawResponse.Request.URL.String()
	body := resp.String()

	// A successful login lands on an authenticated page; a refusal bounces
	// back to the sign-in form or an error URL.
	if strings.Contains(strings.ToLower(finalURL), "error") {
		return ErrLoginRejected
	}
	if resp.StatusCode() != 200 || s.detect(body, finalURL) {
		return ErrLoginRejected
	}

	s.logger.Info("portal login successful", zap.String("username", s.username))
	return nil
}

// IsValid probes the portal with a lightweight request and reports whether
// the session still looks signed in.
func (s *Session) IsValid(ctx context.Context) bool {
	resp, err := s.http.R().SetContext(ctx).Get(homePath)
	if err != nil {
		return false
	}
	return !s.detect(resp.String(), resp.RawResponse.Request.URL.String())
}

// Fetch issues an authenticated GET and returns the raw page. A response
// that looks like the sign-in page fails with ErrSessionExpired rather than
// being returned as content.
func (s *Session) Fetch(ctx context.Context, path string) (string, error) {
	if s.State() == StateFailed {
		return "", ErrSessionFailed
	}

	resp, err := s.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPortalUnreachable, err)
	}

	body := resp.String()
	finalURL := resp.RawResponse.Request.URL.String()

	if s.detect(body, finalURL) {
		return "", ErrSessionExpired
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 || body == "" {
		return "", &HTTPError{Status: resp.StatusCode()}
	}

	return body, nil
}

// ListEntities fetches the customer enumeration page.
func (s *Session) ListEntities(ctx context.Context) (string, error) {
	return s.Fetch(ctx, customerPath)
}

// FetchEntityDetail fetches one customer detail page, consulting the page
// cache first when one is configured.
func (s *Session) FetchEntityDetail(ctx context.Context, remoteID int64) (string, error) {
	if s.cache != nil {
		if page, ok := s.cache.Get(ctx, remoteID); ok {
			s.logger.Debug("detail page served from cache", zap.Int64("remote_id", remoteID))
			return page, nil
		}
	}

	page, err := s.Fetch(ctx, fmt.Sprintf("/customer/viewcustomer/%d", remoteID))
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		s.cache.Set(ctx, remoteID, page)
	}
	return page, nil
}

// Close drops idle portal connections.
func (s *Session) Close() {
	s.http.GetClient().CloseIdleConnections()
}
