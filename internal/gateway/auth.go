package gateway

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"panel/internal/errs"
	"panel/internal/model"
)

// SecondFactorRequest 二次验证提交内容
type SecondFactorRequest struct {
	Code  string `json:"code"`
	Email string `json:"email"`
}

// RegisterRequest 注册请求体
type RegisterRequest struct {
	Firstname   string `json:"firstname"`
	Lastname    string `json:"lastname"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"accountType"`
	Name        string `json:"name,omitempty"`
	SiretNumber string `json:"siret_number,omitempty"`
	HeadOffice  string `json:"head_office,omitempty"`
	Invitation  string `json:"invitation,omitempty"`
}

// AuthAPI 身份服务的全部接口
type AuthAPI interface {
	Info(ctx context.Context, creds CredentialStore, timeout time.Duration) (*model.Identity, error)
	Login(ctx context.Context, creds CredentialStore, username, password, redirectURL string) (*model.LoginOutcome, error)
	VerifySecondFactor(ctx context.Context, creds CredentialStore, ch model.Channel, req SecondFactorRequest) (*model.Identity, error)
	SendOTP(ctx context.Context, creds CredentialStore, ch model.Channel, email string) error
	Logout(ctx context.Context, creds CredentialStore) error
	ResendActivation(ctx context.Context, creds CredentialStore, email, redirectURL string) error
	Register(ctx context.Context, creds CredentialStore, req RegisterRequest, redirectURL, origin string) error
	Activate(ctx context.Context, creds CredentialStore, token string) error
	ForgotPassword(ctx context.Context, creds CredentialStore, email, redirectURL string) error
	ResetPassword(ctx context.Context, creds CredentialStore, token, password string) error
	OAuthRedirect(ctx context.Context, creds CredentialStore, provider, returnURL string) (string, error)
	AxmarilLogin(ctx context.Context, creds CredentialStore, token string) error
}

// AuthClient 基于 Client 的身份服务实现
type AuthClient struct {
	client *Client
}

var _ AuthAPI = (*AuthClient)(nil)

// NewAuthClient 创建身份服务客户端
func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{client: client}
}

// Info 获取当前身份
func (a *AuthClient) Info(ctx context.Context, creds CredentialStore, timeout time.Duration) (*model.Identity, error) {
	body, err := a.client.Do(ctx, creds, Request{Method: http.MethodGet, Path: "/auth/info", Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return model.ParseIdentity(body)
}

// Login 提交用户名密码
func (a *AuthClient) Login(ctx context.Context, creds CredentialStore, username, password, redirectURL string) (*model.LoginOutcome, error) {
	body, err := a.client.Do(ctx, creds, Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Query:  url.Values{"redirected_url": {redirectURL}},
		Body:   map[string]string{"username": username, "password": password},
	})
	if err != nil {
		return nil, err
	}
	return model.ParseLoginOutcome(body)
}

// VerifySecondFactor 提交二次验证码，成功时返回完整身份
func (a *AuthClient) VerifySecondFactor(ctx context.Context, creds CredentialStore, ch model.Channel, req SecondFactorRequest) (*model.Identity, error) {
	r := Request{Method: http.MethodPost, Body: req}
	switch ch {
	case model.ChannelAuthenticator:
		r.Path, r.Query = "/auth/2FA/login", url.Values{"fa_type": {"otp"}}
	case model.ChannelEmail:
		r.Path, r.Query = "/auth/2FA/login", url.Values{"fa_type": {"email"}}
	case model.ChannelWhatsApp:
		r.Path = "/auth/number/login"
	default:
		return nil, errs.ErrChannelDisabled
	}
	body, err := a.client.Do(ctx, creds, r)
	if err != nil {
		return nil, err
	}
	return model.ParseIdentity(body)
}

// SendOTP 通过 WhatsApp 或邮件发送验证码
func (a *AuthClient) SendOTP(ctx context.Context, creds CredentialStore, ch model.Channel, email string) error {
	var faType string
	switch ch {
	case model.ChannelWhatsApp:
		faType = "number"
	case model.ChannelEmail:
		faType = "email"
	default:
		return nil
	}
	_, err := a.client.Do(ctx, creds, Request{
		Method: http.MethodPost,
		Path:   "/auth/send-otp",
		Query:  url.Values{"email": {email}, "fa_type": {faType}},
	})
	return err
}

// Logout 注销上游会话
func (a *AuthClient) Logout(ctx context.Context, creds CredentialStore) error {
	_, err := a.client.Do(ctx, creds, Request{Method: http.MethodDelete, Path: "/auth/logout"})
	return err
}

// ResendActivation 重发激活邮件
func (a *AuthClient) ResendActivation(ctx context.Context, creds CredentialStore, email, redirectURL string) error {
	_, err := a.client.Do(ctx, creds, Request{
		Method: http.MethodPost,
		Path:   "/auth/send-activation-email",
		Query:  url.Values{"email": {email}, "redirected_url": {redirectURL}},
	})
	return err
}

// Register 注册账号
func (a *AuthClient) Register(ctx context.Context, creds CredentialStore, req RegisterRequest, redirectURL, origin string) error {
	_, err := a.client.Do(ctx, creds, Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Query:  url.Values{"redirected_url": {redirectURL}, "origin": {origin}},
		Body:   req,
	})
	return err
}

// Activate 激活账号
func (a *AuthClient) Activate(ctx context.Context, creds CredentialStore, token string) error {
	_, err := a.client.Do(ctx, creds, Request{
		Method: http.MethodPost,
		Path:   "/auth/activation/" + url.PathEscape(token),
	})
	return err
}

// ForgotPassword 发送重置密码邮件
func (a *AuthClient) ForgotPassword(ctx context.Context, creds CredentialStore, email, redirectURL string) error {
	_, err := a.client.Do(ctx, creds, Request{
		Method: http.MethodPost,
		Path:   "/auth/forgot-password",
		Query:  url.Values{"email": {email}, "redirected_url": {redirectURL}},
	})
	return err
}

// ResetPassword 使用邮件令牌重置密码
func (a *AuthClient) ResetPassword(ctx context.Context, creds CredentialStore, token, password string) error {
	_, err := a.client.Do(ctx, creds, Request{
		Method: http.MethodPost,
		Path:   "/auth/reset-password",
		Query:  url.Values{"token": {token}},
		Body:   map[string]string{"password": password},
	})
	return err
}

// OAuthRedirect 获取第三方登录跳转地址
func (a *AuthClient) OAuthRedirect(ctx context.Context, creds CredentialStore, provider, returnURL string) (string, error) {
	var path, field string
	switch provider {
	case "google":
		path, field = "/auth/google/login", "redirect_url"
	case "axmaril":
		path, field = "/auth/axmaril/login-redirect", "redirect_uri"
	default:
		return "", errs.ErrUnknownProvider
	}

	var payload map[string]interface{}
	err := a.client.DoJSON(ctx, creds, Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  url.Values{"redirection_url": {returnURL}},
	}, &payload)
	if err != nil {
		return "", err
	}
	target, _ := payload[field].(string)
	if target == "" {
		return "", &errs.ServerError{Status: http.StatusBadGateway, Message: errs.DefaultServerMessage}
	}
	return target, nil
}

// AxmarilLogin 使用 Axmaril 回调令牌登录
func (a *AuthClient) AxmarilLogin(ctx context.Context, creds CredentialStore, token string) error {
	_, err := a.client.Do(ctx, creds, Request{
		Method: http.MethodPost,
		Path:   "/auth/axmaril/login",
		Query:  url.Values{"axmaril_token": {token}},
	})
	return err
}
