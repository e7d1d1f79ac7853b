package portal

import "strings"

// minAuthenticatedBodyLen responses shorter than this are never a real
// customer page; the portal's error and sign-in pages are tiny.
const minAuthenticatedBodyLen = 2000

// SigninDetector classifies a response as the portal's sign-in page. The
// heuristic is portal-specific and therefore pluggable: the engine only
// cares about the authenticated/not-authenticated verdict, never about the
// session marker itself.
type SigninDetector func(body string, finalURL string) bool

// DefaultSigninDetector matches the CeHuPo portal: authenticated pages are
// large and never contain the sign-in widget; expired sessions redirect to
// a login URL or render the Signin form.
func DefaultSigninDetector(body string, finalURL string) bool {
	if strings.Contains(strings.ToLower(finalURL), "login") {
		return true
	}
	if strings.Contains(body, "Signin") {
		return true
	}
	return len(body) < minAuthenticatedBodyLen
}
