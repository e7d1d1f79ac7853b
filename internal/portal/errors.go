package portal

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginRejected credentials were refused by the portal.
	ErrLoginRejected = errors.New("portal rejected credentials")

	// ErrPortalUnreachable network-level failure talking to the portal.
	ErrPortalUnreachable = errors.New("portal unreachable")

	// ErrSessionExpired a fetch came back as the sign-in page. Callers must
	// re-authenticate and retry the fetch once; it is never valid content.
	ErrSessionExpired = errors.New("portal session expired")

	// ErrSessionFailed the session hit its terminal state: a
	// re-authentication failed and no further fetches will be attempted.
	ErrSessionFailed = errors.New("portal session failed")
)

// HTTPError any other non-2xx or empty response.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("portal returned HTTP %d", e.Status)
}
