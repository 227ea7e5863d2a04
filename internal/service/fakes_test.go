package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"panel/internal/errs"
	"panel/internal/gateway"
	"panel/internal/model"
	"panel/internal/session"
)

type fakeAuthAPI struct {
	mu sync.Mutex

	info    *model.Identity
	infoErr error

	loginOutcome *model.LoginOutcome
	loginErr     error
	loginBlock   chan struct{}

	verifyIdentity *model.Identity
	verifyErr      error
	sendErr        error
	logoutErr      error
	resendErr      error
	oauthURL       string

	calls       map[string]int
	lastVerify  gateway.SecondFactorRequest
	lastChannel model.Channel
	lastTimeout time.Duration
}

var _ gateway.AuthAPI = (*fakeAuthAPI)(nil)

func newFakeAuthAPI() *fakeAuthAPI {
	return &fakeAuthAPI{calls: map[string]int{}}
}

func (f *fakeAuthAPI) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAuthAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAuthAPI) Info(_ context.Context, _ gateway.CredentialStore, timeout time.Duration) (*model.Identity, error) {
	f.record("info")
	f.mu.Lock()
	f.lastTimeout = timeout
	f.mu.Unlock()
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return f.info.Clone(), nil
}

func (f *fakeAuthAPI) Login(_ context.Context, creds gateway.CredentialStore, _, _, _ string) (*model.LoginOutcome, error) {
	f.record("login")
	if f.loginBlock != nil {
		<-f.loginBlock
	}
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	creds.Merge([]*http.Cookie{{Name: "access_token", Value: "t"}})
	return f.loginOutcome, nil
}

func (f *fakeAuthAPI) VerifySecondFactor(_ context.Context, _ gateway.CredentialStore, ch model.Channel, req gateway.SecondFactorRequest) (*model.Identity, error) {
	f.record("verify")
	f.lastVerify = req
	f.lastChannel = ch
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.verifyIdentity.Clone(), nil
}

func (f *fakeAuthAPI) SendOTP(_ context.Context, _ gateway.CredentialStore, ch model.Channel, _ string) error {
	f.record("send_otp:" + string(ch))
	return f.sendErr
}

func (f *fakeAuthAPI) Logout(context.Context, gateway.CredentialStore) error {
	f.record("logout")
	return f.logoutErr
}

func (f *fakeAuthAPI) ResendActivation(_ context.Context, _ gateway.CredentialStore, email, _ string) error {
	f.record("resend:" + email)
	return f.resendErr
}

func (f *fakeAuthAPI) Register(context.Context, gateway.CredentialStore, gateway.RegisterRequest, string, string) error {
	f.record("register")
	return nil
}

func (f *fakeAuthAPI) Activate(_ context.Context, _ gateway.CredentialStore, token string) error {
	f.record("activate:" + token)
	return nil
}

func (f *fakeAuthAPI) ForgotPassword(_ context.Context, _ gateway.CredentialStore, email, _ string) error {
	f.record("forgot:" + email)
	return nil
}

func (f *fakeAuthAPI) ResetPassword(context.Context, gateway.CredentialStore, string, string) error {
	f.record("reset")
	return nil
}

func (f *fakeAuthAPI) OAuthRedirect(_ context.Context, _ gateway.CredentialStore, provider, _ string) (string, error) {
	f.record("oauth:" + provider)
	return f.oauthURL, nil
}

func (f *fakeAuthAPI) AxmarilLogin(context.Context, gateway.CredentialStore, string) error {
	f.record("axmaril")
	return nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newSession() (*session.Session, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return session.New(5*time.Minute, clock), clock
}

func customer() *model.Identity {
	return &model.Identity{ID: "c1", Email: "ada@example.com", FirstName: "Ada"}
}

func admin() *model.Identity {
	return &model.Identity{ID: "a1", Email: "root@example.com", IsAdmin: true}
}

var errTimeout = &errs.NetworkError{Op: "GET /auth/info", Timeout: true, Err: context.DeadlineExceeded}

var errUnauthorized = &errs.ServerError{Status: http.StatusUnauthorized, Message: "Not authenticated"}

const (
	timeoutShort = time.Second
	tick         = 5 * time.Millisecond
)
