package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panel/internal/boot"
	"panel/internal/gateway/gatewaytest"
	"panel/pkg/config"
)

const indexHTML = "<!doctype html><title>panel</title>"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// browser 在请求之间携带会话Cookie
type browser struct {
	t      *testing.T
	engine *gin.Engine
	cookie *http.Cookie
}

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}

	rec := httptest.NewRecorder()
	b.engine.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "panel_session" {
			b.cookie = ck
		}
	}
	return rec
}

func (b *browser) json(method, path, body string, out interface{}) int {
	b.t.Helper()
	rec := b.do(method, path, body)
	var env envelope
	require.NoError(b.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(b.t, json.Unmarshal(env.Data, out))
	}
	return rec.Code
}

func newPanel(t *testing.T) (*gatewaytest.Server, *browser) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := gatewaytest.NewServer(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(indexHTML), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           3000,
			Mode:           gin.TestMode,
			AppURL:         "http://panel.test",
			DefaultLang:    "fr",
			StaticDir:      dir,
			AllowedOrigins: []string{"http://panel.test"},
		},
		Upstream: config.UpstreamConfig{
			AuthService: srv.URL,
			Timeout:     2 * time.Second,
		},
		Identity: config.IdentityConfig{
			CacheTTL:     time.Minute,
			GuardTimeout: time.Second,
			RetryTimeout: time.Second,
		},
		Session: config.SessionConfig{
			CookieName: "panel_session",
			Secret:     "test-secret",
			IdleTTL:    time.Hour,
			Store:      "memory",
		},
	}

	services, err := boot.InitServices(cfg)
	require.NoError(t, err)
	repos := boot.InitRepositories(cfg, nil)
	handlers := boot.InitHandlers(services, cfg)

	engine := gin.New()
	boot.InitRouter(engine, handlers, services, repos, cfg)
	return srv, &browser{t: t, engine: engine}
}

type loginResult struct {
	Attempt struct {
		Phase     string `json:"phase"`
		Username  string `json:"username"`
		Message   string `json:"message"`
		Challenge *struct {
			Channel          string `json:"channel"`
			ChallengeVisible bool   `json:"challengeVisible"`
			SelectorVisible  bool   `json:"selectorVisible"`
			Error            string `json:"error"`
		} `json:"challenge"`
	} `json:"attempt"`
	Redirect string `json:"redirect"`
}

func TestPanel_AuthenticatorLoginFlow(t *testing.T) {
	srv, b := newPanel(t)
	srv.AddUser(gatewaytest.User{Email: "ada@example.com", Password: "secret1", FirstName: "Ada", Active: true, Authenticator: true, EmailMFA: true})

	rec := b.do(http.MethodGet, "/fr/customer/dashboard", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/fr/sign-in", rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/fr/sign-in", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "panel")

	var res loginResult
	code := b.json(http.MethodPost, "/panel/login?lang=fr", `{"username":" ada@example.com ","password":"secret1"}`, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "second_factor_required", res.Attempt.Phase)
	require.NotNil(t, res.Attempt.Challenge)
	assert.Equal(t, "authenticator", res.Attempt.Challenge.Channel)
	assert.True(t, res.Attempt.Challenge.ChallengeVisible)
	assert.Empty(t, srv.Sent())

	res = loginResult{}
	code = b.json(http.MethodPost, "/panel/2fa/verify?lang=fr", `{"code":"`+srv.TOTPCode("ada@example.com")+`"}`, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "authenticated", res.Attempt.Phase)
	assert.Equal(t, "/fr/customer/dashboard", res.Redirect)

	rec = b.do(http.MethodGet, "/fr/customer/dashboard", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = b.do(http.MethodGet, "/fr/sign-in", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/fr/customer/dashboard", rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/fr/admin/users", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/fr/customer/dashboard", rec.Header().Get("Location"))

	var state struct {
		Authenticated bool `json:"isAuthenticated"`
		User          *struct {
			Email string `json:"email"`
		} `json:"currentUser"`
		Attempt struct {
			Phase string `json:"phase"`
		} `json:"attempt"`
	}
	require.Equal(t, http.StatusOK, b.json(http.MethodGet, "/panel/session", "", &state))
	assert.True(t, state.Authenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, "ada@example.com", state.User.Email)

	var redirect struct {
		Location string `json:"location"`
	}
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/logout?lang=en", "", &redirect))
	assert.Equal(t, "/en/sign-in", redirect.Location)
	assert.Equal(t, 1, srv.Hits("/auth/logout"))

	rec = b.do(http.MethodGet, "/fr/customer/dashboard", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/fr/sign-in", rec.Header().Get("Location"))
}

func TestPanel_EmailChannelSendsCode(t *testing.T) {
	srv, b := newPanel(t)
	srv.AddUser(gatewaytest.User{Email: "bob@example.com", Password: "secret1", Active: true, EmailMFA: true, Admin: true})

	var res loginResult
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/login", `{"username":"bob@example.com","password":"secret1"}`, &res))
	require.NotNil(t, res.Attempt.Challenge)
	assert.Equal(t, "email", res.Attempt.Challenge.Channel)
	assert.Empty(t, srv.SentCode("bob@example.com"))

	res = loginResult{}
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/2fa/selector", "", &res))
	assert.True(t, res.Attempt.Challenge.SelectorVisible)

	res = loginResult{}
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/2fa/method", `{"channel":"email"}`, &res))
	assert.True(t, res.Attempt.Challenge.ChallengeVisible)
	assert.Empty(t, res.Attempt.Challenge.Error)
	sent := srv.SentCode("bob@example.com")
	require.NotEmpty(t, sent)

	code := b.json(http.MethodPost, "/panel/2fa/method", `{"channel":"whatsapp"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	res = loginResult{}
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/2fa/verify", `{"code":"000000"}`, &res))
	assert.Equal(t, "second_factor_required", res.Attempt.Phase)
	assert.NotEmpty(t, res.Attempt.Challenge.Error)

	res = loginResult{}
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/2fa/verify", `{"code":"`+sent+`"}`, &res))
	assert.Equal(t, "authenticated", res.Attempt.Phase)

	rec := b.do(http.MethodGet, "/en/admin/users", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = b.do(http.MethodGet, "/en/sign-in", "")
	assert.Equal(t, "/en/admin/dashboard", rec.Header().Get("Location"))
}

func TestPanel_InactiveAccountAndResend(t *testing.T) {
	srv, b := newPanel(t)
	srv.AddUser(gatewaytest.User{Email: "new@example.com", Password: "secret1"})

	var res loginResult
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/login", `{"username":"new@example.com","password":"secret1"}`, &res))
	assert.Equal(t, "inactive_account", res.Attempt.Phase)
	assert.Equal(t, "Account not activated", res.Attempt.Message)

	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/activation/resend", "", nil))
	assert.Contains(t, srv.Sent(), "activation:new@example.com")

	res = loginResult{}
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/login/dismiss", "", &res))
	assert.Equal(t, "idle", res.Attempt.Phase)
	assert.Equal(t, "new@example.com", res.Attempt.Username)
}

func TestPanel_ValidationErrors(t *testing.T) {
	_, b := newPanel(t)

	rec := b.do(http.MethodPost, "/panel/login", `{"username":"","password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username is required")

	code := b.json(http.MethodPost, "/panel/2fa/cancel", "", nil)
	assert.Equal(t, http.StatusConflict, code)

	code = b.json(http.MethodPost, "/panel/2fa/verify", `{"code":"123456"}`, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestPanel_NetworkErrorAndRetry(t *testing.T) {
	srv, b := newPanel(t)
	srv.FailNext("/auth/info", http.StatusServiceUnavailable, "Maintenance")

	rec := b.do(http.MethodGet, "/fr/customer/dashboard", "")
	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/network-error?"), loc)
	assert.Contains(t, loc, "errorType=server")
	assert.Contains(t, loc, "canRetry=true")
	assert.Contains(t, loc, "returnTo=%2Ffr%2Fcustomer%2Fdashboard")

	rec = b.do(http.MethodGet, "/network-error", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, indexHTML, rec.Body.String())

	var redirect struct {
		Location string `json:"location"`
	}
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/network/retry", `{"returnTo":"/fr/customer/dashboard"}`, &redirect))
	assert.Equal(t, "/fr/customer/dashboard", redirect.Location)

	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/network/retry", `{"returnTo":"https://evil.test"}`, &redirect))
	assert.Equal(t, "/", redirect.Location)
}

func TestPanel_ProxyUsesSessionCredentials(t *testing.T) {
	srv, b := newPanel(t)
	srv.AddUser(gatewaytest.User{Email: "ada@example.com", Password: "secret1", FirstName: "Ada", Active: true})

	rec := b.do(http.MethodGet, "/api/auth/info", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var res loginResult
	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/login", `{"username":"ada@example.com","password":"secret1"}`, &res))
	assert.Equal(t, "authenticated", res.Attempt.Phase)
	assert.Equal(t, "/fr/customer/dashboard", res.Redirect)

	rec = b.do(http.MethodGet, "/api/auth/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ada@example.com")
	for _, ck := range rec.Result().Cookies() {
		assert.NotEqual(t, gatewaytest.AccessCookie, ck.Name)
	}
}

func TestPanel_ProxiedLogoutClearsSession(t *testing.T) {
	srv, b := newPanel(t)
	srv.AddUser(gatewaytest.User{Email: "ada@example.com", Password: "secret1", FirstName: "Ada", Active: true})

	require.Equal(t, http.StatusOK, b.json(http.MethodPost, "/panel/login", `{"username":"ada@example.com","password":"secret1"}`, nil))
	rec := b.do(http.MethodGet, "/fr/customer/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = b.do(http.MethodDelete, "/api/auth/logout", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = b.do(http.MethodGet, "/fr/customer/dashboard", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/fr/sign-in", rec.Header().Get("Location"))

	var state struct {
		Authenticated bool `json:"isAuthenticated"`
		Attempt       struct {
			Phase string `json:"phase"`
		} `json:"attempt"`
	}
	require.Equal(t, http.StatusOK, b.json(http.MethodGet, "/panel/session", "", &state))
	assert.False(t, state.Authenticated)
	assert.Equal(t, "idle", state.Attempt.Phase)
}

func TestPanel_HealthMetricsAndStatic(t *testing.T) {
	_, b := newPanel(t)

	rec := b.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status   string            `json:"status"`
		Services map[string]string `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Contains(t, health.Services, "auth")
	assert.NotContains(t, health.Services, "payment")

	b.do(http.MethodGet, "/fr/customer/dashboard", "")
	rec = b.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `panel_guard_decisions_total{decision="redirect_sign_in",kind="panel"} 1`)

	rec = b.do(http.MethodGet, "/assets/app.js", "")
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = b.do(http.MethodGet, "/de/sign-in", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/fr/sign-in", rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/panel/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func gatewaytestUser(email, password string) gatewaytest.User {
	return gatewaytest.User{Email: email, Password: password, FirstName: "Ada", Active: true}
}
