package session

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"autoapply-backend/internal/instahyre"
	"autoapply-backend/internal/shared/telemetry"
)

var (
	ErrMissingCredential = errors.New("session credentials missing")
	ErrSessionExpired    = errors.New("session expired")
	ErrAuthFailed        = errors.New("session verification failed")
)

// Prober issues a GET without following redirects.
type Prober interface {
	Probe(ctx context.Context, path string, headers http.Header) (instahyre.Response, error)
}

// Authenticator primes the Store and checks the session against a page that
// only logged-in candidates can see.
type Authenticator struct {
	Store  *Store
	Prober Prober
	// Path defaults to instahyre.VerifyPath.
	Path string

	mu sync.Mutex
}

func NewAuthenticator(store *Store, prober Prober) *Authenticator {
	return &Authenticator{Store: store, Prober: prober, Path: instahyre.VerifyPath}
}

// Authenticate installs creds and verifies them with one request. It always
// re-verifies; concurrent calls are serialized.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*Handle, error) {
	creds = creds.trimmed()
	if creds.SessionToken == "" {
		return nil, errors.WithHint(errors.Wrap(ErrMissingCredential, "sessionid"),
			"set AUTOAPPLY_SESSION_TOKEN or INSTAHYRE_SESSIONID from a logged-in browser")
	}
	if creds.CSRFToken == "" {
		return nil, errors.WithHint(errors.Wrap(ErrMissingCredential, "csrftoken"),
			"set AUTOAPPLY_SESSION_CSRF_TOKEN or INSTAHYRE_CSRFTOKEN from a logged-in browser")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.Store.Install(creds)

	path := a.Path
	if path == "" {
		path = instahyre.VerifyPath
	}
	resp, err := a.Prober.Probe(ctx, path, headersFor(creds))
	if err != nil {
		telemetry.Warn("session.verify.transport_error", map[string]any{"error": err})
		return nil, errors.Mark(errors.Wrap(err, "verify session"), ErrAuthFailed)
	}

	if resp.IsRedirect() && strings.Contains(strings.ToLower(resp.Location), "login") {
		telemetry.Warn("session.verify.expired", map[string]any{"status": resp.Status, "location": resp.Location})
		a.Store.Clear()
		return nil, errors.WithHint(ErrSessionExpired, "refresh the sessionid and csrftoken cookies")
	}
	if resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden {
		telemetry.Warn("session.verify.expired", map[string]any{"status": resp.Status})
		a.Store.Clear()
		return nil, errors.WithHint(ErrSessionExpired, "refresh the sessionid and csrftoken cookies")
	}
	if resp.Status >= http.StatusInternalServerError {
		return nil, errors.Wrapf(ErrAuthFailed, "verify returned status %d", resp.Status)
	}

	telemetry.Info("session.verify.ok", map[string]any{"status": resp.Status})
	return &Handle{creds: creds}, nil
}
