package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cehupo-sync/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// signinDetector for tests: the fake portal marks its sign-in page
// explicitly instead of relying on page size.
func signinDetector(body, _ string) bool {
	return strings.Contains(body, "Signin")
}

const (
	signinPage = `<html><body><h1>Signin</h1></body></html>`
	homepage   = `<html><body><h1>Welcome</h1></body></html>`
)

// fakePortal is a minimal stand-in for the customer portal. rejectLogins
// flips it into refusing credentials; expireSessions makes every content
// page render as the sign-in form until the next login.
type fakePortal struct {
	srv            *httptest.Server
	logins         atomic.Int64
	rejectLogins   atomic.Bool
	expireSessions atomic.Bool
	detailPage     string
}

func newFakePortal(t *testing.T) *fakePortal {
	fp := &fakePortal{detailPage: `<html><body><div class="invoice-col">Email: x</div></body></html>`}
	mux := http.NewServeMux()

	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(signinPage))
	})
	mux.HandleFunc("/user/authenticate", func(w http.ResponseWriter, r *http.Request) {
		fp.logins.Add(1)
		if fp.rejectLogins.Load() {
			w.Write([]byte(signinPage))
			return
		}
		fp.expireSessions.Store(false)
		w.Write([]byte(homepage))
	})
	serveContent := func(page string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if fp.expireSessions.Load() {
				w.Write([]byte(signinPage))
				return
			}
			w.Write([]byte(page))
		}
	}
	mux.HandleFunc("/home", serveContent(homepage))
	mux.HandleFunc("/customer", serveContent(`<html><body><table id="TableCustomer"></table></body></html>`))
	mux.HandleFunc("/customer/viewcustomer/101", serveContent(fp.detailPage))
	mux.HandleFunc("/customer/viewcustomer/500", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func newTestSession(fp *fakePortal) *Session {
	cfg := config.PortalConfig{
		BaseURL:  fp.srv.URL,
		Username: "sync",
		Password: "secret",
		Timeout:  5 * time.Second,
	}
	return NewSession(cfg, signinDetector, nil, zap.NewNop())
}

func TestAuthenticate_Success(t *testing.T) {
	fp := newFakePortal(t)
	s := newTestSession(fp)

	require.NoError(t, s.Authenticate(context.Background()))

	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, uint64(1), s.Generation())
	assert.Equal(t, int64(1), fp.logins.Load())
}

func TestAuthenticate_Rejected(t *testing.T) {
	fp := newFakePortal(t)
	fp.rejectLogins.Store(true)
	s := newTestSession(fp)

	err := s.Authenticate(context.Background())

	require.ErrorIs(t, err, ErrLoginRejected)
	assert.Equal(t, StateFailed, s.State())
}

func TestAuthenticate_Unreachable(t *testing.T) {
	fp := newFakePortal(t)
	s := newTestSession(fp)
	fp.srv.Close()

	err := s.Authenticate(context.Background())

	require.ErrorIs(t, err, ErrPortalUnreachable)
}

func TestFetch_ClassifiesResponses(t *testing.T) {
	fp := newFakePortal(t)
	s := newTestSession(fp)
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))

	page, err := s.ListEntities(ctx)
	require.NoError(t, err)
	assert.Contains(t, page, "TableCustomer")

	page, err = s.FetchEntityDetail(ctx, 101)
	require.NoError(t, err)
	assert.Contains(t, page, "invoice-col")

	// Non-2xx is an HTTP error, not expiry.
	_, err = s.FetchEntityDetail(ctx, 500)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)

	// A sign-in page in place of content is an expiry.
	fp.expireSessions.Store(true)
	_, err = s.ListEntities(ctx)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestIsValid(t *testing.T) {
	fp := newFakePortal(t)
	s := newTestSession(fp)
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))

	assert.True(t, s.IsValid(ctx))

	fp.expireSessions.Store(true)
	assert.False(t, s.IsValid(ctx))
}

func TestReauthenticate_SingleFlight(t *testing.T) {
	fp := newFakePortal(t)
	s := newTestSession(fp)
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))

	// Two workers observed the same expired generation. Only the first
	// performs a login; the second sees the advanced generation and
	// returns immediately.
	observed := s.Generation()
	fp.expireSessions.Store(true)

	require.NoError(t, s.Reauthenticate(ctx, observed))
	require.NoError(t, s.Reauthenticate(ctx, observed))

	assert.Equal(t, observed+1, s.Generation())
	assert.Equal(t, int64(2), fp.logins.Load())

	_, err := s.ListEntities(ctx)
	assert.NoError(t, err)
}

func TestReauthenticate_FailureIsTerminal(t *testing.T) {
	fp := newFakePortal(t)
	s := newTestSession(fp)
	ctx := context.Background()
	require.NoError(t, s.Authenticate(ctx))

	fp.expireSessions.Store(true)
	fp.rejectLogins.Store(true)

	err := s.Reauthenticate(ctx, s.Generation())
	require.ErrorIs(t, err, ErrLoginRejected)
	assert.Equal(t, StateFailed, s.State())

	// The terminal state sticks: no further fetches or logins.
	_, err = s.ListEntities(ctx)
	assert.ErrorIs(t, err, ErrSessionFailed)
	assert.ErrorIs(t, s.Reauthenticate(ctx, s.Generation()), ErrSessionFailed)
}

func TestDefaultSigninDetector(t *testing.T) {
	long := strings.Repeat("<p>customer data</p>", 200)

	assert.False(t, DefaultSigninDetector(long, "https://portal.example/customer"))
	assert.True(t, DefaultSigninDetector(long, "https://portal.example/user/login"))
	assert.True(t, DefaultSigninDetector("<h1>Signin</h1>"+long, "https://portal.example/customer"))
	assert.True(t, DefaultSigninDetector("<h1>tiny</h1>", "https://portal.example/customer"))
}
