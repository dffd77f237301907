package login

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage"
	"gorm.io/gorm"

	"github.com/prohelper/prohelper-web/internal/config"
	"github.com/prohelper/prohelper-web/internal/db/models"
	"github.com/prohelper/prohelper-web/internal/events"
	"github.com/prohelper/prohelper-web/internal/prohelper"
	"github.com/prohelper/prohelper-web/internal/tokenstore"
	"github.com/prohelper/prohelper-web/internal/web/handler"
	websess "github.com/prohelper/prohelper-web/internal/web/session"
)

// noOpViews is a minimal Fiber Views engine used for tests.
// It writes the "error" field from the provided fiber.Map (if any)
// so tests can assert error messages rendered by handlers.
type noOpViews struct{}

func (noOpViews) Load() error { return nil }

func (noOpViews) Render(w io.Writer, name string, data interface{}, _ ...string) error {
	if m, ok := data.(fiber.Map); ok {
		if v, exists := m["error"]; exists && v != nil {
			_, _ = io.WriteString(w, v.(string))
			return nil
		}
	}
	// write template name to have some content
	_, _ = io.WriteString(w, name)

	return nil
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{Views: noOpViews{}})
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		t.Fatalf("failed to migrate setting model: %v", err)
	}

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Title:   "ProHelper",
		DevMode: false,
		Webserver: config.Webserver{
			URL:     "http://localhost",
			Port:    3000,
			Session: config.Session{ExpiryTime: time.Minute},
		},
	}
}

// testStorage is a minimal in-memory implementation of storage.Storage for tests.
type testStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Storage = (*testStorage)(nil)

func (s *testStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.data[key]
	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

func (s *testStorage) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string][]byte)
	}

	buf := make([]byte, len(val))
	copy(buf, val)
	s.data[key] = buf

	return nil
}

func (s *testStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

func (s *testStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)

	return nil
}

func (s *testStorage) Close() error { return nil }

func initSessionStore() {
	// Initialize a fresh in-memory session store for each test.
	websess.Init(&testStorage{data: make(map[string][]byte)})
}

// newPlatformServer serves a platform API that accepts exactly one
// email/password pair and answers everything else with a 401 envelope.
func newPlatformServer(t *testing.T, email, password, token string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lk/v1/auth/login" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")

		if !strings.Contains(string(body), email) || !strings.Contains(string(body), password) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success": false, "message": "invalid credentials"}`))
			return
		}

		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"token": "` + token + `",
				"user": {"id": 7, "email": "` + email + `", "first_name": "Anna"},
				"organization_id": 3
			}
		}`))
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestDeps(t *testing.T, platformURL string) *handler.Deps {
	t.Helper()

	return &handler.Deps{
		Client: prohelper.New(platformURL, time.Second),
		Bus:    events.New(),
		Tokens: tokenstore.New(tokenstore.NewStorageBackend(&testStorage{}, time.Minute)),
	}
}

func performPost(t *testing.T, app *fiber.App, target string, form url.Values) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	return resp
}

func TestPost_Success_SetsCookieAndRedirects(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.DevMode = false // Secure cookie expected

	app := newTestApp()

	initSessionStore()

	platform := newPlatformServer(t, "anna@example.com", "s3cr3t", "tok-login-1")
	deps := newTestDeps(t, platform.URL)

	var gotLogin events.Event

	deps.Bus.Subscribe(events.TopicUserLogin, func(ev events.Event) {
		gotLogin = ev
	})

	var s Service
	if err := s.Init(app, cfg, db, deps); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	form := url.Values{
		"email":    {"anna@example.com"},
		"password": {"s3cr3t"},
	}
	resp := performPost(t, app, Path+"/", form)

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 Found, got %d", resp.StatusCode)
	}

	if loc := resp.Header.Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %s", loc)
	}

	setCookie := resp.Header.Get("Set-Cookie")
	if !strings.Contains(setCookie, "session=") {
		t.Fatalf("expected session cookie, got %q", setCookie)
	}

	if !strings.Contains(strings.ToLower(setCookie), "secure") {
		t.Fatalf("expected Secure flag on cookie when DevMode=false, got %q", setCookie)
	}

	// the token cookie backend is bound per request, the login response
	// must carry the token cookie next to the session cookie
	var tokenCookie *http.Cookie

	for _, cookie := range resp.Cookies() {
		if cookie.Name == tokenstore.CookieName {
			tokenCookie = cookie
		}
	}

	if tokenCookie == nil || tokenCookie.Value != "tok-login-1" {
		t.Fatalf("expected %s cookie with the issued token, got %+v", tokenstore.CookieName, tokenCookie)
	}

	if tokenCookie.MaxAge != int(tokenstore.CookieMaxAge.Seconds()) {
		t.Fatalf("expected token cookie max-age %v, got %d", tokenstore.CookieMaxAge, tokenCookie.MaxAge)
	}

	deps.Bus.Wait()

	if gotLogin.SessionID == "" || gotLogin.UserID != 7 || gotLogin.OrganizationID != 3 {
		t.Fatalf("expected login event with session, user 7 and organization 3, got %+v", gotLogin)
	}

	// The token must be retrievable under the issued session ID.
	token, ok := deps.Tokens.Token(gotLogin.SessionID)
	if !ok || token != "tok-login-1" {
		t.Fatalf("expected token tok-login-1 stored for session, got %q ok=%v", token, ok)
	}

	// The session data must carry the user and organization.
	var data websess.Data
	if err := data.Read(gotLogin.SessionID); err != nil {
		t.Fatalf("failed to read session: %v", err)
	}

	if data.User.ID != 7 || data.OrganizationID != 3 {
		t.Fatalf("unexpected session data: %+v", data)
	}
}

func TestPost_Success_DevModeDisablesSecure(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.DevMode = true // Secure=false expected

	app := newTestApp()

	initSessionStore()

	platform := newPlatformServer(t, "boris@example.com", "pass", "tok-login-2")

	var s Service
	if err := s.Init(app, cfg, db, newTestDeps(t, platform.URL)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	form := url.Values{
		"email":    {"boris@example.com"},
		"password": {"pass"},
	}
	resp := performPost(t, app, Path+"/", form)

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302 Found, got %d", resp.StatusCode)
	}

	setCookie := resp.Header.Get("Set-Cookie")
	if strings.Contains(strings.ToLower(setCookie), "secure") {
		t.Fatalf("did not expect Secure flag when DevMode=true, got %q", setCookie)
	}
}

func TestPost_ReturnToSurvivesLogin(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app := newTestApp()

	initSessionStore()

	platform := newPlatformServer(t, "carla@example.com", "pass", "tok-login-3")

	var s Service
	if err := s.Init(app, cfg, db, newTestDeps(t, platform.URL)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	form := url.Values{
		"email":     {"carla@example.com"},
		"password":  {"pass"},
		"return_to": {"/billing/modules?module=projects"},
	}
	resp := performPost(t, app, Path+"/", form)

	defer func() {
		_ = resp.Body.Close()
	}()

	if loc := resp.Header.Get("Location"); loc != "/billing/modules?module=projects" {
		t.Fatalf("expected redirect to requested page, got %s", loc)
	}
}

func TestPost_BadCredentials_RendersError(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app := newTestApp()

	initSessionStore()

	platform := newPlatformServer(t, "dora@example.com", "right", "tok-login-4")

	var s Service
	if err := s.Init(app, cfg, db, newTestDeps(t, platform.URL)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	form := url.Values{
		"email":    {"dora@example.com"},
		"password": {"wrong"},
	}
	resp := performPost(t, app, Path+"/", form)

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 OK on render error page, got %d", resp.StatusCode)
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(bodyBytes), "Invalid email or password") {
		t.Fatalf("expected credentials error in body, got %q", string(bodyBytes))
	}

	// No cookie on failed login.
	if setCookie := resp.Header.Get("Set-Cookie"); strings.Contains(setCookie, "session=") {
		t.Fatalf("did not expect a session cookie, got %q", setCookie)
	}
}

func TestPost_MissingFields_RendersError(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app := newTestApp()

	initSessionStore()

	platform := newPlatformServer(t, "edda@example.com", "pass", "tok-login-5")

	var s Service
	if err := s.Init(app, cfg, db, newTestDeps(t, platform.URL)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	resp := performPost(t, app, Path+"/", url.Values{"email": {"edda@example.com"}})

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 OK on render error page, got %d", resp.StatusCode)
	}

	bodyBytes, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(bodyBytes), "Email and password are required") {
		t.Fatalf("expected validation error in body, got %q", string(bodyBytes))
	}
}

func TestResend_CooldownBlocksSecondRequest(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app := newTestApp()

	initSessionStore()

	platform := newPlatformServer(t, "fred@example.com", "pass", "tok-login-6")

	var s Service
	if err := s.Init(app, cfg, db, newTestDeps(t, platform.URL)); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	first := performPost(t, app, Path+"/resend", url.Values{})

	defer func() {
		_ = first.Body.Close()
	}()

	if first.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 OK on first resend, got %d", first.StatusCode)
	}

	second := performPost(t, app, Path+"/resend", url.Values{})

	defer func() {
		_ = second.Body.Close()
	}()

	bodyBytes, _ := io.ReadAll(second.Body)
	if !strings.Contains(string(bodyBytes), "Please wait") {
		t.Fatalf("expected cooldown error on second resend, got %q", string(bodyBytes))
	}
}

func TestSanitizeReturnTo(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/dashboard"},
		{"/projects", "/projects"},
		{"/billing/modules?module=crm-basic", "/billing/modules?module=crm-basic"},
		{"https://evil.example.com/", "/dashboard"},
		{"//evil.example.com/", "/dashboard"},
		{"relative/path", "/dashboard"},
	}

	for _, tc := range cases {
		if got := sanitizeReturnTo(tc.in); got != tc.want {
			t.Errorf("sanitizeReturnTo(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
