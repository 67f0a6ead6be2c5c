package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/homepage/internal/config"
)

// =========================================================================
// HARNESS
// =========================================================================

// These tests drive the real router over HTTP against an in-memory SQLite
// database. Each test gets its own server, so state never leaks between them.

func testConfig(t *testing.T) config.Config {
	t.Helper()
	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>home</h1>"), 0o600))

	return config.Config{
		Port:           0,
		DBDriver:       "sqlite",
		DatabaseURL:    ":memory:",
		SIDSecret:      "test-secret-0123456789abcdef",
		SessionTTL:     time.Hour,
		PresenceWindow: 30 * time.Second,
		StaticDir:      static,
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		BcryptCost:     4,
		PruneSchedule:  "@every 10m",
		LogLevel:       "error",
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerWith(t, testConfig(t))
}

func newTestServerWith(t *testing.T, cfg config.Config) (*Server, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(cfg, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

// client is one browser: it keeps its own cookie jar, so its sid and
// session survive across requests.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.body, &m), "body: %s", r.body)
	return m
}

func (r response) list(t *testing.T) []map[string]any {
	t.Helper()
	var l []map[string]any
	require.NoError(t, json.Unmarshal(r.body, &l), "body: %s", r.body)
	return l
}

func (c *client) do(method, path string, body any) response {
	c.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rdr)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	return response{status: res.StatusCode, header: res.Header, body: raw}
}

// sid claims a presence name and returns the client's anonymous id.
func (c *client) sid(name string) string {
	c.t.Helper()
	res := c.do(http.MethodPost, "/api/basement/users", map[string]string{"name": name})
	require.Equal(c.t, http.StatusOK, res.status, string(res.body))
	return res.json(c.t)["sid"].(string)
}

// newAdmin registers a user through the API and promotes it in the store.
func newAdmin(t *testing.T, srv *Server, ts *httptest.Server) *client {
	t.Helper()
	admin := newClient(t, ts)
	res := admin.do(http.MethodPost, "/api/auth/register", map[string]string{"username": "root", "password": "correct-horse"})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	id := res.json(t)["user"].(map[string]any)["id"].(string)
	require.NoError(t, srv.db.SetAdmin(context.Background(), id, true))
	return admin
}

// =========================================================================
// INFRASTRUCTURE ROUTES
// =========================================================================

func TestHealthzMetricsStatic(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)

	res := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.json(t)["status"])

	c.do(http.MethodGet, "/api/quotes", nil)
	res = c.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, string(res.body), "http_requests_total")

	res = c.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, string(res.body), "<h1>home</h1>")
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodPut, "/api/quotes", "GET, POST, DELETE"},
		{http.MethodGet, "/api/auth/login", "POST"},
		{http.MethodPatch, "/api/stats", "GET, POST"},
		{http.MethodPost, "/api/basement/chat/abc", "DELETE"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			res := c.do(tt.method, tt.path, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, res.status)
			assert.Equal(t, tt.allow, res.header.Get("Allow"))
			assert.Equal(t, "Method Not Allowed", res.json(t)["error"])
		})
	}
}

// =========================================================================
// IDENTITY AND AUTH
// =========================================================================

func TestSIDCookie_MintedOnceAndReused(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)

	res := c.do(http.MethodGet, "/api/stats", nil)
	setCookie := res.header.Get("Set-Cookie")
	require.Contains(t, setCookie, "sid=")
	assert.Contains(t, setCookie, "HttpOnly")
	assert.Contains(t, setCookie, "SameSite=Lax")

	res = c.do(http.MethodGet, "/api/stats", nil)
	assert.Empty(t, res.header.Values("Set-Cookie"), "a valid sid must not be replaced")

	first := c.sid("neo")
	second := c.sid("neo")
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "sid_"))
}

func TestSIDCookie_TamperedIsReplaced(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "sid_0190f1d2-0000-7000-8000-000000000000"})

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Contains(t, res.Header.Get("Set-Cookie"), "sid=", "an unsigned sid is not trusted")
}

func TestAuthFlow(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)

	res := c.do(http.MethodGet, "/api/auth/verify", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "Not authenticated", res.json(t)["error"])
	assert.Equal(t, false, res.json(t)["authenticated"])

	res = c.do(http.MethodPost, "/api/auth/register", map[string]string{"username": "alice", "password": "hunter22"})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	assert.Contains(t, res.header.Get("Set-Cookie"), "sessionToken=")
	body := res.json(t)
	assert.Equal(t, "alice", body["user"].(map[string]any)["display_name"])
	assert.Len(t, body["session"].(map[string]any)["token"], 64)

	res = c.do(http.MethodGet, "/api/auth/verify", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, true, res.json(t)["authenticated"])

	res = c.do(http.MethodPost, "/api/auth/register", map[string]string{"username": "alice", "password": "whatever1"})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "Username already taken", res.json(t)["error"])

	res = c.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, res.header.Get("Set-Cookie"), "Max-Age=0")

	res = c.do(http.MethodGet, "/api/auth/verify", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)

	res = c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "Invalid username or password", res.json(t)["error"])

	res = c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Username and password are required", res.json(t)["error"])
}

func TestAuthActionDispatch(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)

	res := c.do(http.MethodPost, "/api/auth?action=register", map[string]string{"username": "bob", "password": "hunter22"})
	assert.Equal(t, http.StatusCreated, res.status)

	res = c.do(http.MethodGet, "/api/auth?action=verify", nil)
	assert.Equal(t, http.StatusOK, res.status)

	res = c.do(http.MethodGet, "/api/auth?action=login", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.status)
	assert.Equal(t, "Method not allowed for action: login", res.json(t)["error"])

	res = c.do(http.MethodGet, "/api/auth", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Contains(t, res.json(t)["error"], "Action parameter required")
}

// =========================================================================
// BASEMENT
// =========================================================================

func TestChatAndModeration(t *testing.T) {
	srv, ts := newTestServer(t)
	admin := newAdmin(t, srv, ts)
	visitor := newClient(t, ts)
	visitorSID := visitor.sid("neo")

	res := visitor.do(http.MethodPost, "/api/basement/chat", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	msg := res.json(t)
	assert.Equal(t, "neo", msg["author"])
	msgID := msg["id"].(string)

	res = visitor.do(http.MethodPost, "/api/basement/chat", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Message is required", res.json(t)["error"])

	res = visitor.do(http.MethodGet, "/api/basement/chat?since=abc", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)

	// Visitors cannot moderate.
	res = visitor.do(http.MethodPost, "/api/basement/moderation?action=ban", map[string]string{"sid": visitorSID})
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "Admin access required", res.json(t)["error"])
	res = visitor.do(http.MethodDelete, "/api/basement/chat/"+msgID, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	// Settings are public.
	res = visitor.do(http.MethodGet, "/api/basement/moderation?action=settings", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 0, res.json(t)["slow_mode_seconds"])

	// Pin, then delete via the path form.
	res = admin.do(http.MethodPost, "/api/basement/moderation?action=pin", map[string]string{"messageId": msgID})
	assert.Equal(t, http.StatusOK, res.status)
	res = admin.do(http.MethodPost, "/api/basement/moderation?action=pin", map[string]string{"messageId": "nope"})
	assert.Equal(t, http.StatusNotFound, res.status)
	res = admin.do(http.MethodPost, "/api/basement/moderation?action=pin", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Message ID is required", res.json(t)["error"])
	res = admin.do(http.MethodDelete, "/api/basement/chat/"+msgID, nil)
	assert.Equal(t, http.StatusOK, res.status)

	// Ban with a reason; the visitor sees it.
	res = admin.do(http.MethodPost, "/api/basement/moderation?action=ban", map[string]string{"sid": visitorSID, "reason": "spam"})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.Equal(t, "root", res.json(t)["banned_by"])

	res = visitor.do(http.MethodPost, "/api/basement/chat", map[string]string{"message": "let me in"})
	assert.Equal(t, http.StatusForbidden, res.status)
	body := res.json(t)
	assert.Equal(t, "You are banned from the chat", body["error"])
	assert.Equal(t, "spam", body["reason"])

	res = admin.do(http.MethodGet, "/api/basement/moderation?action=banned", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, res.list(t), 1)

	res = admin.do(http.MethodDelete, "/api/basement/moderation?action=unban&sid="+visitorSID, nil)
	assert.Equal(t, http.StatusOK, res.status)

	// Mute.
	res = admin.do(http.MethodPost, "/api/basement/moderation?action=mute", map[string]any{"sid": visitorSID, "duration": 5})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	res = visitor.do(http.MethodPost, "/api/basement/chat", map[string]string{"message": "still here"})
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "You are muted for 5 more minutes", res.json(t)["error"])
	assert.Equal(t, "No reason provided", res.json(t)["reason"])
	res = admin.do(http.MethodDelete, "/api/basement/moderation?action=unmute", map[string]string{"sid": visitorSID})
	assert.Equal(t, http.StatusOK, res.status)

	// Slow mode.
	res = admin.do(http.MethodPost, "/api/basement/moderation?action=settings", map[string]any{"slow_mode_seconds": 60})
	require.Equal(t, http.StatusOK, res.status)
	res = visitor.do(http.MethodPost, "/api/basement/chat", map[string]string{"message": "one"})
	require.Equal(t, http.StatusCreated, res.status)
	res = visitor.do(http.MethodPost, "/api/basement/chat", map[string]string{"message": "two"})
	assert.Equal(t, http.StatusTooManyRequests, res.status)
	assert.Contains(t, res.json(t)["error"], "Slow mode: wait")
	assert.NotEmpty(t, res.header.Get("Retry-After"))

	// Clear.
	res = admin.do(http.MethodPost, "/api/basement/moderation?action=clear", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "bulk", res.json(t)["strategy"])
	res = visitor.do(http.MethodGet, "/api/basement/chat", nil)
	assert.Empty(t, res.list(t))

	// Unknown action.
	res = admin.do(http.MethodPost, "/api/basement/moderation?action=nuke", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.status)
	assert.Equal(t, "GET, POST, DELETE", res.header.Get("Allow"))
}

func TestLockdownBlocksEveryone(t *testing.T) {
	srv, ts := newTestServer(t)
	admin := newAdmin(t, srv, ts)

	res := admin.do(http.MethodPost, "/api/basement/moderation?action=settings", map[string]any{"lockdown_mode": true})
	require.Equal(t, http.StatusOK, res.status)

	for _, c := range []*client{admin, newClient(t, ts)} {
		res = c.do(http.MethodPost, "/api/basement/chat", map[string]string{"message": "hi"})
		assert.Equal(t, http.StatusForbidden, res.status)
		assert.Equal(t, "Chat is in lockdown mode - admin only", res.json(t)["error"])
	}
}

func TestPresence(t *testing.T) {
	_, ts := newTestServer(t)
	a, b := newClient(t, ts), newClient(t, ts)

	a.sid("trinity")

	res := b.do(http.MethodPost, "/api/basement/users", map[string]string{"name": "trinity"})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "Name is taken", res.json(t)["error"])

	res = b.do(http.MethodPost, "/api/basement/users", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Name is required", res.json(t)["error"])

	res = b.do(http.MethodGet, "/api/basement/users", nil)
	require.Equal(t, http.StatusOK, res.status)
	users := res.list(t)
	require.Len(t, users, 1)
	assert.Equal(t, "trinity", users[0]["name"])

	res = a.do(http.MethodDelete, "/api/basement/users", nil)
	assert.Equal(t, http.StatusOK, res.status)
	res = b.do(http.MethodPost, "/api/basement/users", map[string]string{"name": "trinity"})
	assert.Equal(t, http.StatusOK, res.status, "name is free once its holder leaves")
}

// =========================================================================
// CONTENT AND SINGLETONS
// =========================================================================

func TestContentCRUD(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)

	res := c.do(http.MethodPost, "/api/quotes", map[string]string{"quote": "Simplicity is prerequisite for reliability.", "author": "Dijkstra"})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	id := res.json(t)["id"].(string)
	assert.NotEmpty(t, res.json(t)["date_added"])

	res = c.do(http.MethodPost, "/api/quotes", map[string]string{"quote": "orphan"})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Quote and author are required", res.json(t)["error"])

	res = c.do(http.MethodGet, "/api/quotes", nil)
	assert.Len(t, res.list(t), 1)

	res = c.do(http.MethodDelete, "/api/quotes", nil)
	assert.Equal(t, http.StatusBadRequest, res.status)
	res = c.do(http.MethodDelete, "/api/quotes?id="+id, nil)
	assert.Equal(t, http.StatusOK, res.status)
	res = c.do(http.MethodDelete, "/api/quotes/"+id, nil)
	assert.Equal(t, http.StatusNotFound, res.status)

	res = c.do(http.MethodPost, "/api/basement/playlist", map[string]string{"name": "lofi", "src": "music/lofi.mp3"})
	require.Equal(t, http.StatusCreated, res.status)
	assert.Equal(t, "audio/mpeg", res.json(t)["type"])

	res = c.do(http.MethodPost, "/api/forum", map[string]string{"message": "first!"})
	require.Equal(t, http.StatusCreated, res.status)
	assert.Equal(t, "Anonymous", res.json(t)["author"])
}

func TestStatsAndAdminSettings(t *testing.T) {
	srv, ts := newTestServer(t)
	c := newClient(t, ts)

	res := c.do(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 0, res.json(t)["visitorCount"])

	c.do(http.MethodPost, "/api/stats", nil)
	res = c.do(http.MethodPost, "/api/stats", nil)
	assert.EqualValues(t, 2, res.json(t)["visitorCount"])

	res = c.do(http.MethodGet, "/api/admin/settings", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "images/avatar.JPG", res.json(t)["image_path"])

	res = c.do(http.MethodPost, "/api/admin/settings", map[string]string{"mood_description": "hacked"})
	assert.Equal(t, http.StatusForbidden, res.status)

	admin := newAdmin(t, srv, ts)
	res = admin.do(http.MethodPost, "/api/admin/settings", map[string]string{"mood_description": "sleepy"})
	require.Equal(t, http.StatusOK, res.status)
	body := res.json(t)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "sleepy", body["data"].(map[string]any)["mood_description"])
}

func TestStats_MillisecondTimestamps(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts)

	res := c.do(http.MethodPost, "/api/stats", map[string]any{"firstVisit": int64(1700000000000)})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	assert.Equal(t, "1700000000000", jsonNumber(t, res.body, "firstVisit"))

	res = c.do(http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "1700000000000", jsonNumber(t, res.body, "firstVisit"))
	assert.EqualValues(t, 1, res.json(t)["visitorCount"])

	lastUpdated := jsonNumber(t, res.body, "lastUpdated")
	assert.Regexp(t, `^\d{13}$`, lastUpdated, "lastUpdated is Unix milliseconds")
}

// jsonNumber returns the literal text of a numeric field, so a string or a
// float64 rounding cannot pass for the exact integer.
func jsonNumber(t *testing.T, body []byte, key string) string {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m))
	n, ok := m[key].(json.Number)
	require.True(t, ok, "%s is %T, want a number", key, m[key])
	return n.String()
}

func TestRateLimit_ForwardedForOnlyTrustedBehindProxy(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		wantLast   int
	}{
		{"direct: header ignored, one bucket", false, http.StatusTooManyRequests},
		{"behind proxy: one bucket per forwarded client", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.RateLimitRPS = 0.001
			cfg.RateLimitBurst = 2
			cfg.TrustProxy = tt.trustProxy
			_, ts := newTestServerWith(t, cfg)

			var last int
			for i, ip := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3"} {
				req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
				require.NoError(t, err)
				req.Header.Set("X-Forwarded-For", ip)

				res, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				res.Body.Close()
				if i < 2 {
					require.Equal(t, http.StatusOK, res.StatusCode)
				}
				last = res.StatusCode
			}
			assert.Equal(t, tt.wantLast, last)
		})
	}
}
