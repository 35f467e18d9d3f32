package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoapply-backend/internal/instahyre"
)

type stubProber struct {
	mu      sync.Mutex
	calls   int
	resp    instahyre.Response
	err     error
	headers http.Header
}

func (s *stubProber) Probe(ctx context.Context, path string, headers http.Header) (instahyre.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.headers = headers
	return s.resp, s.err
}

func validCreds() Credentials {
	return Credentials{SessionToken: "sess-1", CSRFToken: "csrf-1"}
}

func TestAuthenticateMissingCredential(t *testing.T) {
	prober := &stubProber{resp: instahyre.Response{Status: http.StatusOK}}
	auth := NewAuthenticator(NewStore(), prober)

	_, err := auth.Authenticate(context.Background(), Credentials{SessionToken: "  ", CSRFToken: "c"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCredential))

	_, err = auth.Authenticate(context.Background(), Credentials{SessionToken: "s"})
	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Zero(t, prober.calls)
}

func TestAuthenticateSuccessPrimesStore(t *testing.T) {
	prober := &stubProber{resp: instahyre.Response{Status: http.StatusOK}}
	store := NewStore()
	auth := NewAuthenticator(store, prober)

	h, err := auth.Authenticate(context.Background(), validCreds())
	require.NoError(t, err)

	assert.Equal(t, validCreds(), store.Current())
	assert.Equal(t, "sessionid=sess-1; csrftoken=csrf-1", h.Headers().Get("Cookie"))
	assert.Equal(t, "csrf-1", h.Headers().Get("X-CSRFToken"))
	assert.Equal(t, "sessionid=sess-1; csrftoken=csrf-1", prober.headers.Get("Cookie"))
}

func TestAuthenticateLoginRedirectIsExpired(t *testing.T) {
	prober := &stubProber{resp: instahyre.Response{Status: http.StatusFound, Location: "/login/?next=/candidate/opportunities"}}
	auth := NewAuthenticator(NewStore(), prober)

	_, err := auth.Authenticate(context.Background(), validCreds())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestAuthenticateNonLoginRedirectIsAccepted(t *testing.T) {
	prober := &stubProber{resp: instahyre.Response{Status: http.StatusFound, Location: "/candidate/opportunities/"}}
	auth := NewAuthenticator(NewStore(), prober)

	_, err := auth.Authenticate(context.Background(), validCreds())
	assert.NoError(t, err)
}

func TestAuthenticateForbiddenIsExpired(t *testing.T) {
	prober := &stubProber{resp: instahyre.Response{Status: http.StatusForbidden}}
	auth := NewAuthenticator(NewStore(), prober)

	_, err := auth.Authenticate(context.Background(), validCreds())
	assert.True(t, errors.Is(err, ErrSessionExpired))
}

func TestAuthenticateTransportErrorIsAuthFailed(t *testing.T) {
	prober := &stubProber{err: errors.New("dial tcp: timeout")}
	auth := NewAuthenticator(NewStore(), prober)

	_, err := auth.Authenticate(context.Background(), validCreds())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthFailed))
	assert.False(t, errors.Is(err, ErrSessionExpired))
}

func TestAuthenticateAlwaysReverifies(t *testing.T) {
	prober := &stubProber{resp: instahyre.Response{Status: http.StatusOK}}
	auth := NewAuthenticator(NewStore(), prober)

	for i := 0; i < 3; i++ {
		_, err := auth.Authenticate(context.Background(), validCreds())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, prober.calls)
}

func TestHandleIsStableAcrossReinstall(t *testing.T) {
	prober := &stubProber{resp: instahyre.Response{Status: http.StatusOK}}
	store := NewStore()
	auth := NewAuthenticator(store, prober)

	h, err := auth.Authenticate(context.Background(), validCreds())
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), Credentials{SessionToken: "sess-2", CSRFToken: "csrf-2"})
	require.NoError(t, err)

	assert.Equal(t, "csrf-2", store.Current().CSRFToken)
	assert.Equal(t, "csrf-1", h.Headers().Get("X-CSRFToken"))
}

func TestAuthenticateAgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("sessionid")
		if err != nil || cookie.Value != "sess-1" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := instahyre.NewClient(instahyre.Options{BaseURL: srv.URL})
	require.NoError(t, err)
	auth := NewAuthenticator(NewStore(), client)

	_, err = auth.Authenticate(context.Background(), validCreds())
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), Credentials{SessionToken: "stale", CSRFToken: "c"})
	assert.True(t, errors.Is(err, ErrSessionExpired))
}

func TestAuthenticateExpiredClearsStore(t *testing.T) {
	prober := &stubProber{resp: instahyre.Response{Status: http.StatusUnauthorized}}
	store := NewStore()
	auth := NewAuthenticator(store, prober)

	_, err := auth.Authenticate(context.Background(), validCreds())
	require.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, Credentials{}, store.Current())
}

func TestAuthenticateConcurrentCallsShareHandle(t *testing.T) {
	prober := &stubProber{resp: instahyre.Response{Status: http.StatusOK}}
	store := NewStore()
	auth := NewAuthenticator(store, prober)

	first, err := auth.Authenticate(context.Background(), validCreds())
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	handles := make(chan *Handle, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := auth.Authenticate(context.Background(), validCreds())
			errs <- err
			handles <- h
		}()
	}
	wg.Wait()
	close(errs)
	close(handles)

	for err := range errs {
		assert.NoError(t, err)
	}
	for h := range handles {
		require.NotNil(t, h)
		assert.Equal(t, "sessionid=sess-1; csrftoken=csrf-1", h.Headers().Get("Cookie"))
	}
	assert.Equal(t, "sessionid=sess-1; csrftoken=csrf-1", first.Headers().Get("Cookie"))
	assert.Equal(t, "csrf-1", first.Headers().Get("X-CSRFToken"))
	assert.Equal(t, validCreds(), store.Current())

	prober.mu.Lock()
	defer prober.mu.Unlock()
	assert.Equal(t, callers+1, prober.calls)
}
