package service

import (
	"context"
	"strings"

	"panel/internal/errs"
	"panel/internal/gateway"
	"panel/internal/model"
	"panel/internal/session"
	"panel/pkg/logger"
)

// AccountService 注册、激活、找回密码与第三方登录
type AccountService interface {
	Register(ctx context.Context, sess *session.Session, req model.SignUpRequest, invitation string) error
	Activate(ctx context.Context, sess *session.Session, token string) error
	ForgotPassword(ctx context.Context, sess *session.Session, req model.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, sess *session.Session, token string, req model.ResetPasswordRequest) error
	// OAuthStart 返回第三方登录地址
	OAuthStart(ctx context.Context, sess *session.Session, provider, lang string) (string, error)
	// AxmarilCallback 完成 Axmaril 登录并建立会话状态
	AxmarilCallback(ctx context.Context, sess *session.Session, token, lang string) (*Redirect, error)
}

// accountService 账户服务实现
type accountService struct {
	api      gateway.AuthAPI
	identity IdentityService
	appURL   string
}

// NewAccountService 创建账户服务实例
func NewAccountService(api gateway.AuthAPI, identity IdentityService, appURL string) AccountService {
	return &accountService{api: api, identity: identity, appURL: strings.TrimRight(appURL, "/")}
}

// Register 注册新账号
func (s *accountService) Register(ctx context.Context, sess *session.Session, req model.SignUpRequest, invitation string) error {
	req.Normalize()
	if err := model.Validate(&req); err != nil {
		return err
	}

	body := gateway.RegisterRequest{
		Firstname:   req.Firstname,
		Lastname:    req.Lastname,
		Email:       req.Email,
		Password:    req.Password,
		AccountType: string(req.AccountType),
	}
	if req.AccountType == model.AccountTypeEnterprise {
		body.Name = req.Name
		body.SiretNumber = req.SiretNumber
		body.HeadOffice = req.HeadOffice
	}
	return s.api.Register(ctx, &sess.Credentials, body, s.appURL+"/activate-account", invitation)
}

// Activate 激活账号
func (s *accountService) Activate(ctx context.Context, sess *session.Session, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errs.NewValidationError("token", "Activation token is required")
	}
	return s.api.Activate(ctx, &sess.Credentials, token)
}

// ForgotPassword 发送重置邮件
func (s *accountService) ForgotPassword(ctx context.Context, sess *session.Session, req model.ForgotPasswordRequest) error {
	req.Normalize()
	if err := model.Validate(&req); err != nil {
		return err
	}
	return s.api.ForgotPassword(ctx, &sess.Credentials, req.Email, s.appURL+"/reset-password")
}

// ResetPassword 重置密码
func (s *accountService) ResetPassword(ctx context.Context, sess *session.Session, token string, req model.ResetPasswordRequest) error {
	if strings.TrimSpace(token) == "" {
		return errs.NewValidationError("token", "Reset token is required")
	}
	if err := model.Validate(&req); err != nil {
		return err
	}
	return s.api.ResetPassword(ctx, &sess.Credentials, token, req.Password)
}

// OAuthStart 第三方登录完成后回到 /{lang}/oauth
func (s *accountService) OAuthStart(ctx context.Context, sess *session.Session, provider, lang string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != "google" && provider != "axmaril" {
		return "", errs.ErrUnknownProvider
	}
	return s.api.OAuthRedirect(ctx, &sess.Credentials, provider, s.appURL+"/"+lang+"/oauth")
}

// AxmarilCallback 登录后丢弃旧缓存并重新查询身份
func (s *accountService) AxmarilCallback(ctx context.Context, sess *session.Session, token, lang string) (*Redirect, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errs.NewValidationError("token", "Axmaril token is required")
	}
	if err := s.api.AxmarilLogin(ctx, &sess.Credentials, token); err != nil {
		return nil, err
	}

	sess.Cache.Clear()
	id, err := s.identity.Fetch(ctx, sess, DefaultGuardTimeout)
	if err != nil {
		logger.Warn("identity fetch after axmaril login failed for session %s: %v", sess.ID, err)
		return nil, err
	}
	sess.State.Establish(id)
	sess.Attempt = model.LoginAttempt{Phase: model.PhaseAuthenticated, Username: id.Email}
	return &Redirect{Location: DashboardFor(id, lang), Reason: "oauth"}, nil
}
