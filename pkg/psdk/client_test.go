package psdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/paydesk/pkg/psdk/perr"
	"github.com/quatton/paydesk/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is a minimal stand-in for the payroll API. Routes under
// /api/items/ accept only the bearer token in valid.
type backend struct {
	srv   *httptest.Server
	valid string

	refreshCalls atomic.Int32

	mu          sync.Mutex
	hits        map[string][]string
	refreshSent []string
}

func newBackend(t *testing.T, valid string, refresh http.HandlerFunc) *backend {
	t.Helper()
	b := &backend{valid: valid, hits: map[string][]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc(RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		var body struct {
			Refresh string `json:"refresh"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.refreshSent = append(b.refreshSent, body.Refresh)
		b.mu.Unlock()
		refresh(w, r)
	})
	mux.HandleFunc("/api/items/", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		b.mu.Lock()
		b.hits[r.URL.Path] = append(b.hits[r.URL.Path], auth)
		b.mu.Unlock()

		if auth != "Bearer "+b.valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"path":       r.URL.Path,
			"token":      strings.TrimPrefix(auth, "Bearer "),
			"request_id": r.Header.Get(RequestIDHeader),
		})
	})
	mux.HandleFunc("/api/missing/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Run not found"})
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) hitsFor(path string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.hits[path]...)
}

func (b *backend) sentRefreshTokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.refreshSent...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func grant(access, refresh string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"access": access}
		if refresh != "" {
			body["refresh"] = refresh
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func deny(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
}

// waitUntil polls cond for up to five seconds. It is used inside handlers,
// where require cannot be called.
func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

type itemResponse struct {
	Path      string `json:"path"`
	Token     string `json:"token"`
	RequestID string `json:"request_id"`
}

func TestAttachesBearerToken(t *testing.T) {
	b := newBackend(t, "A1", grant("unused", ""))
	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
	c := NewClient(b.srv.URL+"/", st)

	var out itemResponse
	require.NoError(t, c.Get(context.Background(), "/api/items/1/", nil, &out))

	assert.Equal(t, "A1", out.Token)
	_, err := uuid.Parse(out.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, int32(0), b.refreshCalls.Load())
}

func TestNoHeaderWithoutToken(t *testing.T) {
	b := newBackend(t, "A1", grant("unused", ""))
	c := NewClient(b.srv.URL, session.NewMemoryStore())

	err := c.Get(context.Background(), "/api/items/1/", nil, nil)
	require.True(t, perr.IsUnauthorized(err))

	assert.Equal(t, []string{""}, b.hitsFor("/api/items/1/"))
	assert.Equal(t, int32(0), b.refreshCalls.Load())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 5
	var cp atomic.Pointer[Client]

	b := newBackend(t, "A2", func(w http.ResponseWriter, r *http.Request) {
		waitUntil(func() bool { return cp.Load().waiting() == n })
		grant("A2", "")(w, r)
	})
	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
	c := NewClient(b.srv.URL, st)
	cp.Store(c)

	var wg sync.WaitGroup
	errs := make([]error, n)
	outs := make([]itemResponse, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Get(context.Background(), fmt.Sprintf("/api/items/%d/", i), nil, &outs[i])
		}(i)
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i], "request %d", i)
		assert.Equal(t, "A2", outs[i].Token)
		assert.Equal(t, []string{"Bearer A1", "Bearer A2"}, b.hitsFor(fmt.Sprintf("/api/items/%d/", i)))
	}
	assert.Equal(t, int32(1), b.refreshCalls.Load())
	assert.Equal(t, []string{"R1"}, b.sentRefreshTokens())

	s, err := session.Load(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "A2", s.AccessToken)
	assert.Equal(t, "R1", s.RefreshToken)
	assert.Equal(t, 0, c.waiting())
}

func TestFailedRefreshRejectsEachWaiterWithItsOwnError(t *testing.T) {
	const n = 3
	var cp atomic.Pointer[Client]

	b := newBackend(t, "A2", func(w http.ResponseWriter, r *http.Request) {
		waitUntil(func() bool { return cp.Load().waiting() == n })
		deny(w, r)
	})
	st := session.NewMemoryStoreFrom(session.Session{
		AccessToken: "A1", RefreshToken: "R1", Wallet: "0xabc", ActiveOrg: "7",
	})
	c := NewClient(b.srv.URL, st)
	cp.Store(c)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Get(context.Background(), fmt.Sprintf("/api/items/%d/", i), nil, nil)
		}(i)
	}
	wg.Wait()

	for i := range n {
		var apiErr *perr.APIError
		require.ErrorAs(t, errs[i], &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, fmt.Sprintf("/api/items/%d/", i), apiErr.Path)
		assert.Equal(t, "token expired", apiErr.Message)
		assert.Len(t, b.hitsFor(apiErr.Path), 1, "rejected requests are not replayed")
	}
	assert.Equal(t, int32(1), b.refreshCalls.Load())

	s, err := session.Load(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, session.Session{Wallet: "0xabc", ActiveOrg: "7"}, s)
}

func TestMissingRefreshTokenSkipsExchange(t *testing.T) {
	b := newBackend(t, "A2", grant("A2", ""))
	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", Wallet: "0xabc"})
	c := NewClient(b.srv.URL, st)

	err := c.Get(context.Background(), "/api/items/1/", nil, nil)

	var apiErr *perr.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "/api/items/1/", apiErr.Path)
	assert.Equal(t, int32(0), b.refreshCalls.Load())

	s, lerr := session.Load(context.Background(), st)
	require.NoError(t, lerr)
	assert.Equal(t, session.Session{AccessToken: "A1", Wallet: "0xabc"}, s)
}

func TestUnauthorizedRefreshIsNotRecovered(t *testing.T) {
	b := newBackend(t, "A2", deny)
	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
	c := NewClient(b.srv.URL, st)

	err := c.Post(context.Background(), RefreshPath, map[string]string{"refresh": "R1"}, nil)

	require.True(t, perr.IsUnauthorized(err))
	assert.Equal(t, int32(1), b.refreshCalls.Load())

	s, lerr := session.Load(context.Background(), st)
	require.NoError(t, lerr)
	assert.Equal(t, "R1", s.RefreshToken, "a direct refresh call does not clear the session")
}

func TestReplayedRequestIsNotRecoveredTwice(t *testing.T) {
	b := newBackend(t, "never", grant("A2", ""))
	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
	c := NewClient(b.srv.URL, st)

	err := c.Get(context.Background(), "/api/items/1/", nil, nil)

	require.True(t, perr.IsUnauthorized(err))
	assert.Equal(t, int32(1), b.refreshCalls.Load())
	assert.Equal(t, []string{"Bearer A1", "Bearer A2"}, b.hitsFor("/api/items/1/"))
}

func TestRefreshRotation(t *testing.T) {
	tests := []struct {
		name        string
		rotate      bool
		wantRefresh string
	}{
		{name: "retained by default", rotate: false, wantRefresh: "R1"},
		{name: "rotated when enabled", rotate: true, wantRefresh: "R2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, "A2", grant("A2", "R2"))
			st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
			c := NewClient(b.srv.URL, st, WithRefreshRotation(tt.rotate))

			require.NoError(t, c.Get(context.Background(), "/api/items/1/", nil, nil))

			s, err := session.Load(context.Background(), st)
			require.NoError(t, err)
			assert.Equal(t, "A2", s.AccessToken)
			assert.Equal(t, tt.wantRefresh, s.RefreshToken)
		})
	}
}

func TestRotationWithoutRefreshInResponseKeepsToken(t *testing.T) {
	b := newBackend(t, "A2", grant("A2", ""))
	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
	c := NewClient(b.srv.URL, st, WithRefreshRotation(true))

	require.NoError(t, c.Get(context.Background(), "/api/items/1/", nil, nil))

	v, err := st.Get(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "R1", v)
}

func TestRefreshWithoutAccessTokenFails(t *testing.T) {
	b := newBackend(t, "A2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{})
	})
	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
	c := NewClient(b.srv.URL, st)

	err := c.Get(context.Background(), "/api/items/1/", nil, nil)
	require.True(t, perr.IsUnauthorized(err))

	s, lerr := session.Load(context.Background(), st)
	require.NoError(t, lerr)
	assert.Equal(t, "A1", s.AccessToken, "an empty grant leaves the session alone")
	assert.Equal(t, "R1", s.RefreshToken)
}

func TestRejectedRefreshClearsSession(t *testing.T) {
	b := newBackend(t, "A2", deny)
	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1", Wallet: "0xabc"})
	c := NewClient(b.srv.URL, st)

	err := c.Get(context.Background(), "/api/items/1/", nil, nil)
	require.True(t, perr.IsUnauthorized(err))

	s, lerr := session.Load(context.Background(), st)
	require.NoError(t, lerr)
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.RefreshToken)
	assert.Equal(t, "0xabc", s.Wallet)
}

func TestRequestTimeoutSurvivesLaterHTTPClient(t *testing.T) {
	hc := &http.Client{}
	c := NewClient("http://localhost", session.NewMemoryStore(), WithRequestTimeout(2*time.Second), WithHTTPClient(hc))

	assert.Equal(t, 2*time.Second, c.httpClient.Timeout)
	assert.Zero(t, hc.Timeout, "the caller's client is not modified")

	c = NewClient("http://localhost", session.NewMemoryStore(), WithHTTPClient(hc))
	assert.Same(t, hc, c.httpClient)
}

// flakyStore refuses to persist access tokens.
type flakyStore struct {
	*session.MemoryStore
}

func (f flakyStore) Set(ctx context.Context, field session.Field, value string) error {
	if field == session.AccessToken {
		return errors.New("keyring locked")
	}
	return f.MemoryStore.Set(ctx, field, value)
}

func TestReplayUsesRefreshedTokenEvenIfNotPersisted(t *testing.T) {
	b := newBackend(t, "A2", grant("A2", ""))
	st := flakyStore{session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})}
	c := NewClient(b.srv.URL, st)

	var out itemResponse
	require.NoError(t, c.Get(context.Background(), "/api/items/1/", nil, &out))
	assert.Equal(t, "A2", out.Token)

	v, err := st.Get(context.Background(), session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "A1", v)
}

func TestCancelledWaiterReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	b := newBackend(t, "A2", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		grant("A2", "")(w, r)
	})
	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
	c := NewClient(b.srv.URL, st, WithRefreshTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Get(ctx, "/api/items/1/", nil, nil) }()

	require.Eventually(t, func() bool { return c.waiting() == 1 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not return after cancellation")
	}

	close(release)
	require.Eventually(t, func() bool {
		v, _ := st.Get(context.Background(), session.AccessToken)
		return v == "A2"
	}, 5*time.Second, time.Millisecond, "refresh keeps running after its initiator gives up")
	require.Eventually(t, func() bool { return c.waiting() == 0 }, 5*time.Second, time.Millisecond)
}

func TestTransportErrorPropagatesUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
	c := NewClient(srv.URL, st)

	err := c.Get(context.Background(), "/api/items/1/", nil, nil)

	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)
	var apiErr *perr.APIError
	assert.False(t, errors.As(err, &apiErr))

	v, _ := st.Get(context.Background(), session.AccessToken)
	assert.Equal(t, "A1", v)
}

func TestNonSuccessBecomesAPIError(t *testing.T) {
	b := newBackend(t, "A1", grant("unused", ""))
	c := NewClient(b.srv.URL, session.NewMemoryStoreFrom(session.Session{AccessToken: "A1"}))

	err := c.Get(context.Background(), "/api/missing/9/", nil, nil)

	var apiErr *perr.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Run not found", apiErr.Message)
	assert.True(t, perr.IsCode(err, perr.CodeNotFound))
}

func TestRefreshSession(t *testing.T) {
	b := newBackend(t, "A2", grant("A2", ""))

	t.Run("not logged in", func(t *testing.T) {
		c := NewClient(b.srv.URL, session.NewMemoryStore())
		_, err := c.RefreshSession(context.Background())
		assert.True(t, perr.IsCode(err, perr.CodeUnauthorized))
	})

	t.Run("refreshes", func(t *testing.T) {
		st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
		c := NewClient(b.srv.URL, st)
		token, err := c.RefreshSession(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "A2", token)
	})

	t.Run("rejected", func(t *testing.T) {
		denied := newBackend(t, "A2", deny)
		st := session.NewMemoryStoreFrom(session.Session{AccessToken: "A1", RefreshToken: "R1"})
		c := NewClient(denied.srv.URL, st)
		_, err := c.RefreshSession(context.Background())
		assert.True(t, perr.IsCode(err, perr.CodeRefreshFailed))
	})
}

func TestIsRefreshRequest(t *testing.T) {
	assert.True(t, isRefreshRequest("/api/auth/refresh/"))
	assert.True(t, isRefreshRequest("/api/auth/refresh"))
	assert.True(t, isRefreshRequest("/api/auth/refresh/?x=1"))
	assert.False(t, isRefreshRequest("/api/auth/me/"))
}
