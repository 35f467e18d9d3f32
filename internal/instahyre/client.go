// Package instahyre is the HTTP transport used to talk to the recruiting site.
// It knows hosts, headers and timeouts; it does not interpret response bodies.
package instahyre

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	DefaultBaseURL = "https://www.instahyre.com"
	DefaultTimeout = 15 * time.Second

	OpportunityPath = "/api/v1/candidate_opportunity"
	JobSearchPath   = "/api/v1/job_search"
	ApplyPath       = "/api/v1/candidate_opportunity/apply"
	VerifyPath      = "/candidate/opportunities"

	maxBodyBytes = 8 << 20
)

// Response is a fully read HTTP response.
type Response struct {
	Status   int
	Body     []byte
	Location string
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// IsRedirect reports a 3xx status.
func (r Response) IsRedirect() bool {
	return r.Status >= 300 && r.Status < 400
}

// Client issues requests against a single host. Every request is bounded by
// the client timeout.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	httpClient *http.Client
	// probeClient never follows redirects so callers can inspect Location.
	probeClient *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Transport http.RoundTripper
}

// NewClient constructs a Client.
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid base url")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Newf("unsupported base url scheme %q", base.Scheme)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:   base,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
		},
		probeClient: &http.Client{
			Timeout:   timeout,
			Transport: opts.Transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// BaseURL returns the host the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get issues a GET for path with the raw query appended.
func (c *Client) Get(ctx context.Context, path, rawQuery string, headers http.Header) (Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, rawQuery, nil, headers)
	if err != nil {
		return Response{}, err
	}
	return c.do(c.httpClient, req)
}

// Probe issues a GET without following redirects.
func (c *Client) Probe(ctx context.Context, path string, headers http.Header) (Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, "", nil, headers)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	return c.do(c.probeClient, req)
}

// PostJSON encodes payload and POSTs it to path.
func (c *Client) PostJSON(ctx context.Context, path string, payload any, headers http.Header) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, errors.Wrap(err, "encode payload")
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, "", bytes.NewReader(body), headers)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", c.baseURL.String())
	req.Header.Set("Referer", c.baseURL.String()+VerifyPath)
	return c.do(c.httpClient, req)
}

func (c *Client) newRequest(ctx context.Context, method, path, rawQuery string, body io.Reader, headers http.Header) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = strings.TrimPrefix(rawQuery, "?")

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func (c *Client) do(hc *http.Client, req *http.Request) (Response, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return Response{}, errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, errors.Wrapf(err, "read %s %s", req.Method, req.URL.Path)
	}
	return Response{
		Status:   resp.StatusCode,
		Body:     body,
		Location: resp.Header.Get("Location"),
	}, nil
}
