// Package session holds the recruiting-site session cookies and verifies that
// they still grant access.
package session

import (
	"net/http"
	"strings"
	"sync"
)

const (
	sessionCookie = "sessionid"
	csrfCookie    = "csrftoken"
	csrfHeader    = "X-CSRFToken"
)

// Credentials are the two cookie values copied from a logged-in browser.
type Credentials struct {
	SessionToken string
	CSRFToken    string
}

func (c Credentials) trimmed() Credentials {
	return Credentials{
		SessionToken: strings.TrimSpace(c.SessionToken),
		CSRFToken:    strings.TrimSpace(c.CSRFToken),
	}
}

// Store is the process-wide cookie jar for the recruiting site.
type Store struct {
	mu    sync.RWMutex
	creds Credentials
}

func NewStore() *Store {
	return &Store{}
}

// Install replaces both tokens.
func (s *Store) Install(c Credentials) {
	s.mu.Lock()
	s.creds = c.trimmed()
	s.mu.Unlock()
}

// Current returns the installed tokens.
func (s *Store) Current() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Clear forgets both tokens. Authenticator calls it once the site rejects
// them so a stale session is never reused.
func (s *Store) Clear() {
	s.mu.Lock()
	s.creds = Credentials{}
	s.mu.Unlock()
}

// Handle is an authenticated session snapshot. Requests issued through one
// handle always carry the same cookies, even if the store is re-primed.
type Handle struct {
	creds Credentials
}

// Headers returns the cookie and CSRF headers for an authenticated request.
func (h *Handle) Headers() http.Header {
	return headersFor(h.creds)
}

// NewHandle wraps credentials without verifying them. Tests and offline
// tooling use it; the pipeline goes through Authenticator.
func NewHandle(c Credentials) *Handle {
	return &Handle{creds: c.trimmed()}
}

func headersFor(c Credentials) http.Header {
	h := http.Header{}
	h.Set("Cookie", sessionCookie+"="+c.SessionToken+"; "+csrfCookie+"="+c.CSRFToken)
	if c.CSRFToken != "" {
		h.Set(csrfHeader, c.CSRFToken)
	}
	return h
}
