package instahyre

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSendsHeadersAndQuery(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL + "/", UserAgent: "test-agent"})
	require.NoError(t, err)

	headers := http.Header{}
	headers.Set("Cookie", "sessionid=s; csrftoken=c")
	resp, err := c.Get(context.Background(), OpportunityPath, "?limit=30&offset=0", headers)
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, `{"results":[]}`, string(resp.Body))
	require.NotNil(t, got)
	assert.Equal(t, OpportunityPath, got.URL.Path)
	assert.Equal(t, "30", got.URL.Query().Get("limit"))
	assert.Equal(t, "sessionid=s; csrftoken=c", got.Header.Get("Cookie"))
	assert.Equal(t, "test-agent", got.Header.Get("User-Agent"))
}

func TestProbeDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login?next=/candidate/opportunities", http.StatusFound)
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := c.Probe(context.Background(), VerifyPath, nil)
	require.NoError(t, err)
	assert.True(t, resp.IsRedirect())
	assert.Contains(t, resp.Location, "/login")
}

func TestPostJSONEncodesPayload(t *testing.T) {
	var body map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := c.PostJSON(context.Background(), ApplyPath, map[string]any{"job_id": 12, "is_interested": true}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "application/json", contentType)
	assert.EqualValues(t, 12, body["job_id"])
	assert.Equal(t, true, body["is_interested"])
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/slow", "", nil)
	assert.Error(t, err)
}

func TestNewClientRejectsBadScheme(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := NewClient(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}
