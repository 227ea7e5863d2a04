package service

import (
	"context"
	"errors"
	"sync"

	"panel/internal/errs"
	"panel/internal/gateway"
	"panel/internal/model"
	"panel/internal/session"
	"panel/pkg/logger"
)

// LoginResult 状态机处理结果
type LoginResult struct {
	Attempt  model.LoginAttempt `json:"attempt"`
	Redirect string             `json:"redirect,omitempty"`
}

// LoginService 登录与二次验证状态机接口
type LoginService interface {
	// Submit 提交用户名密码
	Submit(ctx context.Context, sess *session.Session, req model.SignInRequest, lang string) (*LoginResult, error)
	// OpenSelector 打开验证方式选择
	OpenSelector(ctx context.Context, sess *session.Session) (*LoginResult, error)
	// SelectMethod 切换验证方式，WhatsApp 与邮件会先发送验证码
	SelectMethod(ctx context.Context, sess *session.Session, ch model.Channel) (*LoginResult, error)
	// Verify 提交验证码
	Verify(ctx context.Context, sess *session.Session, req model.OTPRequest, lang string) (*LoginResult, error)
	// Cancel 关闭二次验证，保留已填写的用户名
	Cancel(ctx context.Context, sess *session.Session) (*LoginResult, error)
	// ResendActivation 重发激活邮件
	ResendActivation(ctx context.Context, sess *session.Session, req model.ResendActivationRequest) error
	// Dismiss 从未激活或失败状态返回登录表单
	Dismiss(ctx context.Context, sess *session.Session) (*LoginResult, error)
}

// inflight 按会话ID串行化请求，重叠请求直接失败而不是排队
type inflight struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func (f *inflight) acquire(id string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.busy[id]; ok {
		return nil, errs.ErrRequestPending
	}
	f.busy[id] = struct{}{}
	return func() {
		f.mu.Lock()
		delete(f.busy, id)
		f.mu.Unlock()
	}, nil
}

// loginService 登录状态机实现
type loginService struct {
	api         gateway.AuthAPI
	activateURL string
	rec         Recorder
	pending     inflight
}

// NewLoginService 创建登录服务实例
func NewLoginService(api gateway.AuthAPI, appURL string, rec Recorder) LoginService {
	return &loginService{
		api:         api,
		activateURL: appURL + "/activate-account",
		rec:         recorderOrNop(rec),
		pending:     inflight{busy: make(map[string]struct{})},
	}
}

func (s *loginService) transition(sess *session.Session, attempt model.LoginAttempt) {
	if sess.Attempt.Phase != attempt.Phase {
		logger.Debug("session %s login %s -> %s", sess.ID, sess.Attempt.Phase, attempt.Phase)
		s.rec.LoginTransition(string(attempt.Phase))
	}
	sess.Attempt = attempt
}

func result(sess *session.Session, redirect string) *LoginResult {
	return &LoginResult{Attempt: sess.Attempt, Redirect: redirect}
}

// Submit 提交凭据
func (s *loginService) Submit(ctx context.Context, sess *session.Session, req model.SignInRequest, lang string) (*LoginResult, error) {
	req.Normalize()
	if err := model.Validate(&req); err != nil {
		return nil, err
	}

	release, err := s.pending.acquire(sess.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 新的登录尝试不继承上一个账号的身份
	sess.Cache.Clear()
	sess.State.Reset()
	s.transition(sess, model.LoginAttempt{Phase: model.PhaseCredentialsSubmitted, Username: req.Username})

	outcome, err := s.api.Login(ctx, &sess.Credentials, req.Username, req.Password, s.activateURL)
	switch {
	case errors.Is(err, errs.ErrInactiveAccount):
		s.transition(sess, model.LoginAttempt{
			Phase:    model.PhaseInactiveAccount,
			Username: req.Username,
			Message:  errs.Message(err),
		})
		return result(sess, ""), nil
	case err != nil:
		logger.Info("login failed for session %s: %v", sess.ID, err)
		s.transition(sess, model.LoginAttempt{
			Phase:    model.PhaseFailed,
			Username: req.Username,
			Message:  failureMessage(err),
		})
		return result(sess, ""), nil
	}

	if !outcome.Channels.Any() {
		sess.State.Establish(outcome.Identity)
		s.transition(sess, model.LoginAttempt{Phase: model.PhaseAuthenticated, Username: req.Username})
		return result(sess, CustomerDashboardPath(lang)), nil
	}

	// 按 authenticator > whatsapp > email 自动选择，不发送验证码
	ch, _ := outcome.Channels.Preferred()
	sess.State.SetChannels(outcome.Channels)
	s.transition(sess, model.LoginAttempt{
		Phase:    model.PhaseSecondFactorRequired,
		Username: req.Username,
		Challenge: &model.Challenge{
			Channel:          ch,
			ChallengeVisible: true,
			Identifier:       req.Username,
		},
	})
	return result(sess, ""), nil
}

func (s *loginService) challenge(sess *session.Session) (*model.Challenge, error) {
	if sess.Attempt.Phase != model.PhaseSecondFactorRequired || sess.Attempt.Challenge == nil {
		return nil, errs.ErrInvalidTransition
	}
	return sess.Attempt.Challenge, nil
}

// OpenSelector 显示验证方式选择
func (s *loginService) OpenSelector(ctx context.Context, sess *session.Session) (*LoginResult, error) {
	ch, err := s.challenge(sess)
	if err != nil {
		return nil, err
	}
	ch.SelectorVisible = true
	ch.ChallengeVisible = false
	ch.Error = ""
	return result(sess, ""), nil
}

// SelectMethod 选择验证方式；发送失败时仍进入验证码输入并显示错误
func (s *loginService) SelectMethod(ctx context.Context, sess *session.Session, channel model.Channel) (*LoginResult, error) {
	ch, err := s.challenge(sess)
	if err != nil {
		return nil, err
	}
	if !sess.State.Channels().Enabled(channel) {
		return nil, errs.ErrChannelDisabled
	}

	release, err := s.pending.acquire(sess.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	ch.Channel = channel
	ch.Code = ""
	ch.Error = ""
	if channel == model.ChannelWhatsApp || channel == model.ChannelEmail {
		if err := s.api.SendOTP(ctx, &sess.Credentials, channel, ch.Identifier); err != nil {
			logger.Warn("send %s code failed for session %s: %v", channel, sess.ID, err)
			ch.Error = failureMessage(err)
		}
	}
	ch.SelectorVisible = false
	ch.ChallengeVisible = true
	return result(sess, ""), nil
}

// Verify 提交验证码
func (s *loginService) Verify(ctx context.Context, sess *session.Session, req model.OTPRequest, lang string) (*LoginResult, error) {
	ch, err := s.challenge(sess)
	if err != nil {
		return nil, err
	}
	if err := model.Validate(&req); err != nil {
		return nil, err
	}

	release, err := s.pending.acquire(sess.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	ch.Code = req.Code
	id, err := s.api.VerifySecondFactor(ctx, &sess.Credentials, ch.Channel, gateway.SecondFactorRequest{
		Code:  req.Code,
		Email: ch.Identifier,
	})
	switch {
	case errors.Is(err, errs.ErrInactiveAccount):
		sess.Cache.Clear()
		sess.State.Reset()
		s.transition(sess, model.LoginAttempt{
			Phase:    model.PhaseInactiveAccount,
			Username: sess.Attempt.Username,
			Message:  errs.Message(err),
		})
		return result(sess, ""), nil
	case err != nil:
		ch.Code = ""
		ch.Error = failureMessage(err)
		return result(sess, ""), nil
	}

	sess.State.Establish(id)
	s.transition(sess, model.LoginAttempt{Phase: model.PhaseAuthenticated, Username: sess.Attempt.Username})
	return result(sess, CustomerDashboardPath(lang)), nil
}

// Cancel 关闭二次验证层
func (s *loginService) Cancel(ctx context.Context, sess *session.Session) (*LoginResult, error) {
	switch sess.Attempt.Phase {
	case model.PhaseSecondFactorRequired:
	case model.PhaseCredentialsSubmitted:
		return nil, errs.ErrRequestPending
	default:
		return nil, errs.ErrInvalidTransition
	}
	s.transition(sess, model.LoginAttempt{Phase: model.PhaseIdle, Username: sess.Attempt.Username})
	return result(sess, ""), nil
}

// ResendActivation 与登录表单的校验状态无关，只需要邮箱
func (s *loginService) ResendActivation(ctx context.Context, sess *session.Session, req model.ResendActivationRequest) error {
	if req.Email == "" && sess.Attempt.Phase == model.PhaseInactiveAccount {
		req.Email = sess.Attempt.Username
	}
	if err := model.Validate(&req); err != nil {
		return err
	}

	release, err := s.pending.acquire(sess.ID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.api.ResendActivation(ctx, &sess.Credentials, req.Email, s.activateURL); err != nil {
		logger.Warn("resend activation failed for session %s: %v", sess.ID, err)
		return err
	}
	return nil
}

// Dismiss 返回登录表单
func (s *loginService) Dismiss(ctx context.Context, sess *session.Session) (*LoginResult, error) {
	switch sess.Attempt.Phase {
	case model.PhaseInactiveAccount, model.PhaseFailed, model.PhaseIdle:
	default:
		return nil, errs.ErrInvalidTransition
	}
	s.transition(sess, model.LoginAttempt{Phase: model.PhaseIdle, Username: sess.Attempt.Username})
	return result(sess, ""), nil
}

// failureMessage 服务端信息原样返回，其他错误给出通用提示
func failureMessage(err error) string {
	var se *errs.ServerError
	if errors.As(err, &se) || errs.IsNetwork(err) {
		return errs.Message(err)
	}
	return errs.DefaultServerMessage
}
