package psdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/paydesk/pkg/plog"
	"github.com/quatton/paydesk/pkg/psdk/perr"
	"github.com/quatton/paydesk/pkg/session"
)

const (
	// RefreshPath is the token refresh exchange. A 401 from it is never
	// recovered.
	RefreshPath = "/api/auth/refresh/"

	RequestIDHeader = "X-Request-ID"

	DefaultRefreshTimeout = 30 * time.Second
)

// Request describes one call to the backend. Body, when non-nil, is sent as
// JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Client talks to the payroll backend. It attaches the stored access token
// to every request and, when a request fails with 401, runs a single shared
// refresh and replays every request that was waiting on it.
type Client struct {
	baseURL string
	store   session.Store
	log     *plog.Logger

	httpClient    *http.Client
	refreshClient *http.Client

	refreshTimeout  time.Duration
	refreshRotation bool
	requestTimeout  time.Duration

	refresh refreshState
}

type Option func(*Client)

// WithHTTPClient sets the client used for ordinary requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRefreshHTTPClient sets the client used for the refresh exchange. It
// must not route back through this Client.
func WithRefreshHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.refreshClient = hc }
}

func WithLogger(l *plog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRefreshTimeout bounds the refresh exchange. Zero keeps the default.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithRefreshRotation makes a refresh token returned by the refresh exchange
// replace the stored one. When off the stored refresh token is kept.
func WithRefreshRotation(on bool) Option {
	return func(c *Client) { c.refreshRotation = on }
}

// WithRequestTimeout sets an overall timeout on ordinary requests. It
// applies to whichever HTTP client the options end up selecting.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// NewClient returns a Client for baseURL reading and writing credentials
// through store.
func NewClient(baseURL string, store session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		store:          store,
		log:            plog.Discard(),
		httpClient:     &http.Client{},
		refreshClient:  &http.Client{},
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.requestTimeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.requestTimeout
		c.httpClient = &hc
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Session() session.Store { return c.store }

// attempt carries per-request recovery state across a replay.
type attempt struct {
	retried bool
	bearer  string
}

// Do sends req and decodes a 2xx JSON response into out (which may be nil).
// Non-2xx responses are returned as *perr.APIError; transport errors are
// returned unchanged.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return perr.New(perr.CodeInvalidInput, fmt.Errorf("encoding request body: %w", err))
		}
		body = b
	}
	return c.do(ctx, req, body, out, attempt{})
}

func (c *Client) do(ctx context.Context, req Request, body []byte, out any, a attempt) error {
	err := c.send(ctx, req, body, out, a.bearer)
	if err == nil || !perr.IsUnauthorized(err) {
		return err
	}
	if isRefreshRequest(req.Path) || a.retried {
		return err
	}

	c.log.Debug("request unauthorized, waiting for refresh", "method", req.Method, "path", req.Path)
	token, werr := c.awaitRefresh(ctx)
	if werr != nil {
		return werr
	}
	if token == "" {
		return err
	}

	c.log.Debug("replaying request", "method", req.Method, "path", req.Path)
	return c.do(ctx, req, body, out, attempt{retried: true, bearer: token})
}

func (c *Client) send(ctx context.Context, req Request, body []byte, out any, bearer string) error {
	httpReq, err := c.newRequest(ctx, req, body)
	if err != nil {
		return err
	}

	if bearer == "" {
		bearer, err = c.store.Get(ctx, session.AccessToken)
		if err != nil {
			return perr.New(perr.CodeUnknown, fmt.Errorf("reading access token: %w", err))
		}
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, req.Method, req.Path, out)
}

func (c *Client) newRequest(ctx context.Context, req Request, body []byte) (*http.Request, error) {
	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, r)
	if err != nil {
		return nil, perr.New(perr.CodeInvalidInput, fmt.Errorf("building request: %w", err))
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return httpReq, nil
}

func decodeResponse(resp *http.Response, method, path string, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return perr.NewAPIError(method, path, resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func isRefreshRequest(path string) bool {
	p := path
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return strings.TrimRight(p, "/") == strings.TrimRight(RefreshPath, "/")
}

// Get is Do for a GET without a body.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post is Do for a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}
