package psdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/quatton/paydesk/pkg/psdk/perr"
	"github.com/quatton/paydesk/pkg/session"
)

// refreshState tracks the one refresh that may be running. While inFlight is
// set, requests that fail with 401 join waiters instead of starting another
// refresh. Each waiter receives exactly one value: the new access token, or
// "" when the refresh failed.
type refreshState struct {
	mu       sync.Mutex
	inFlight bool
	waiters  []chan string
}

// errNoAccess is a 2xx refresh answer without an access token. The session
// is left as it was.
var errNoAccess = errors.New("refresh response has no access token")

type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// awaitRefresh joins the pending refresh, starting one if none is running,
// and blocks until it settles or ctx is done.
func (c *Client) awaitRefresh(ctx context.Context) (string, error) {
	ch := make(chan string, 1)

	c.refresh.mu.Lock()
	c.refresh.waiters = append(c.refresh.waiters, ch)
	start := !c.refresh.inFlight
	c.refresh.inFlight = true
	c.refresh.mu.Unlock()

	if start {
		go c.runRefresh(context.WithoutCancel(ctx))
	}

	select {
	case token := <-ch:
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) runRefresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	token := c.exchange(ctx)

	c.refresh.mu.Lock()
	waiters := c.refresh.waiters
	c.refresh.waiters = nil
	c.refresh.inFlight = false
	c.refresh.mu.Unlock()

	for _, w := range waiters {
		w <- token
	}
}

// exchange performs the refresh and updates the session. It returns the new
// access token or "" on failure.
func (c *Client) exchange(ctx context.Context) string {
	refreshToken, err := c.store.Get(ctx, session.RefreshToken)
	if err != nil {
		c.log.Warn("could not read refresh token", "error", err)
		return ""
	}
	if refreshToken == "" {
		c.log.Debug("no refresh token stored, skipping refresh")
		return ""
	}

	c.log.Debug("refreshing access token")
	resp, err := c.postRefresh(ctx, refreshToken)
	if errors.Is(err, errNoAccess) {
		c.log.Warn("token refresh failed", "error", err)
		return ""
	}
	if err != nil {
		c.log.Warn("token refresh failed, clearing session", "error", err)
		if cerr := session.ClearTokens(ctx, c.store); cerr != nil {
			c.log.Error("could not clear session", "error", cerr)
		}
		return ""
	}

	newRefresh := ""
	if c.refreshRotation {
		newRefresh = resp.Refresh
	}
	if err := session.SaveTokens(ctx, c.store, resp.Access, newRefresh); err != nil {
		c.log.Error("could not persist refreshed token", "error", err)
	}

	c.log.Info("access token refreshed", "rotated", newRefresh != "")
	return resp.Access
}

func (c *Client) postRefresh(ctx context.Context, refreshToken string) (*refreshResponse, error) {
	body, err := json.Marshal(map[string]string{"refresh": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+RefreshPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.refreshClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out refreshResponse
	if err := decodeResponse(resp, http.MethodPost, RefreshPath, &out); err != nil {
		return nil, err
	}
	if out.Access == "" {
		return nil, errNoAccess
	}
	return &out, nil
}

// RefreshSession forces a refresh through the same coordinator used for 401
// recovery, so it never races a refresh already in flight.
func (c *Client) RefreshSession(ctx context.Context) (string, error) {
	refreshToken, err := c.store.Get(ctx, session.RefreshToken)
	if err != nil {
		return "", perr.New(perr.CodeUnknown, fmt.Errorf("reading refresh token: %w", err))
	}
	if refreshToken == "" {
		return "", perr.Newf(perr.CodeUnauthorized, "not logged in")
	}

	token, err := c.awaitRefresh(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", perr.Newf(perr.CodeRefreshFailed, "session could not be refreshed")
	}
	return token, nil
}

// waiting reports how many requests are parked on the current refresh.
func (c *Client) waiting() int {
	c.refresh.mu.Lock()
	defer c.refresh.mu.Unlock()
	return len(c.refresh.waiters)
}
