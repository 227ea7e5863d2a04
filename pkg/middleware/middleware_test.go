package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panel/internal/repository"
	"panel/internal/service"
	"panel/internal/session"
	"panel/pkg/middleware"
)

const cookieName = "panel_session"

func init() {
	gin.SetMode(gin.TestMode)
}

func newSessionEngine(t *testing.T, repo repository.SessionRepository) *gin.Engine {
	t.Helper()
	signer := session.NewCookieSigner("test-secret", time.Hour, nil)
	mw := middleware.NewSessionMiddleware(repo, signer, middleware.SessionOptions{
		CookieName: cookieName,
		MaxAge:     time.Hour,
		CacheTTL:   time.Minute,
	})

	r := gin.New()
	r.Use(mw.Handle())
	r.GET("/whoami", func(c *gin.Context) {
		sess := middleware.MustGetSession(c)
		assert.Same(t, sess, session.FromContext(c.Request.Context()))
		c.String(http.StatusOK, sess.ID+"|"+sess.Attempt.Username)
	})
	r.POST("/remember/:name", func(c *gin.Context) {
		sess := middleware.MustGetSession(c)
		sess.Attempt.Username = c.Param("name")
		c.String(http.StatusOK, sess.ID)
	})
	return r
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == cookieName {
			return ck
		}
	}
	t.Fatalf("response has no %s cookie", cookieName)
	return nil
}

func TestSessionMiddleware_PersistsAcrossRequests(t *testing.T) {
	repo := repository.NewMemorySessionRepository(time.Hour, time.Now)
	r := newSessionEngine(t, repo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/remember/ada", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	sid := rec.Body.String()
	ck := sessionCookie(t, rec)
	assert.True(t, ck.HttpOnly)

	snap, err := repo.Load(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "ada", snap.Attempt.Username)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(ck)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, sid+"|ada", rec.Body.String())
}

func TestSessionMiddleware_InvalidCookieStartsFreshSession(t *testing.T) {
	repo := repository.NewMemorySessionRepository(time.Hour, time.Now)
	r := newSessionEngine(t, repo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/remember/ada", nil))
	sid := rec.Body.String()

	forged := session.NewCookieSigner("other-secret", time.Hour, nil)
	token, err := forged.Sign(sid)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.NotEqual(t, sid+"|ada", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "ada")
}

func TestSessionMiddleware_ExpiredSessionStartsFresh(t *testing.T) {
	repo := repository.NewMemorySessionRepository(time.Hour, time.Now)
	r := newSessionEngine(t, repo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/remember/ada", nil))
	sid := rec.Body.String()
	ck := sessionCookie(t, rec)
	require.NoError(t, repo.Delete(context.Background(), sid))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(ck)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.NotContains(t, rec.Body.String(), sid)
}

type fakeGuard struct {
	redirect *service.Redirect
	kind     service.GuardKind
	path     string
	lang     string
	calls    int
}

func (f *fakeGuard) Check(_ context.Context, _ *session.Session, kind service.GuardKind, path, lang string) *service.Redirect {
	f.calls++
	f.kind, f.path, f.lang = kind, path, lang
	return f.redirect
}

func (f *fakeGuard) Retry(context.Context, *session.Session) error { return nil }

func newGuardEngine(guard service.GuardService) *gin.Engine {
	signer := session.NewCookieSigner("test-secret", time.Hour, nil)
	sessions := middleware.NewSessionMiddleware(repository.NewMemorySessionRepository(time.Hour, time.Now), signer, middleware.SessionOptions{})
	gm := middleware.NewGuardMiddleware(guard, "fr")

	r := gin.New()
	pages := r.Group("/:lang", sessions.Handle())
	pages.GET("/customer/*path", gm.Handle(service.GuardPanel), func(c *gin.Context) {
		c.String(http.StatusOK, "page")
	})
	return r
}

func TestGuardMiddleware_Proceeds(t *testing.T) {
	guard := &fakeGuard{}
	r := newGuardEngine(guard)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/en/customer/dashboard", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "page", rec.Body.String())
	assert.Equal(t, service.GuardPanel, guard.kind)
	assert.Equal(t, "/en/customer/dashboard", guard.path)
	assert.Equal(t, "en", guard.lang)
}

func TestGuardMiddleware_Redirects(t *testing.T) {
	guard := &fakeGuard{redirect: &service.Redirect{Location: "/fr/sign-in", Reason: "unauthenticated"}}
	r := newGuardEngine(guard)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fr/customer/servers", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/fr/sign-in", rec.Header().Get("Location"))
	assert.NotEqual(t, "page", rec.Body.String())
}

func TestGuardMiddleware_UnsupportedLanguage(t *testing.T) {
	guard := &fakeGuard{}
	r := newGuardEngine(guard)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/de/customer/dashboard?tab=1", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/fr/customer/dashboard?tab=1", rec.Header().Get("Location"))
	assert.Zero(t, guard.calls)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORSMiddleware([]string{"http://panel.test/"}), middleware.SecureHeaders())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://panel.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "http://panel.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://panel.test")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(middleware.HeaderRequestID)) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := rec.Header().Get(middleware.HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.HeaderRequestID, "upstream-id")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", rec.Header().Get(middleware.HeaderRequestID))
}
