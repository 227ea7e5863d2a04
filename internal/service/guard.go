package service

import (
	"context"
	"errors"
	"time"

	"panel/internal/errs"
	"panel/internal/session"
)

// GuardKind 守卫类型
type GuardKind string

const (
	// GuardAuth 登录、注册等未登录页面
	GuardAuth GuardKind = "auth"
	// GuardPanel 需要登录的面板页面
	GuardPanel GuardKind = "panel"
)

const (
	// DefaultGuardTimeout 路由守卫的身份查询超时
	DefaultGuardTimeout = 10 * time.Second
	// DefaultRetryTimeout 网络错误页重试的超时
	DefaultRetryTimeout = 5 * time.Second
)

// GuardService 路由守卫服务接口
type GuardService interface {
	// Check 返回 nil 表示放行
	Check(ctx context.Context, sess *session.Session, kind GuardKind, path, lang string) *Redirect
	// Retry 网络错误页的重试
	Retry(ctx context.Context, sess *session.Session) error
}

// guardService 路由守卫服务实现
type guardService struct {
	identity     IdentityService
	guardTimeout time.Duration
	retryTimeout time.Duration
	rec          Recorder
}

// NewGuardService 创建路由守卫服务实例
func NewGuardService(identity IdentityService, guardTimeout, retryTimeout time.Duration, rec Recorder) GuardService {
	if guardTimeout <= 0 {
		guardTimeout = DefaultGuardTimeout
	}
	if retryTimeout <= 0 {
		retryTimeout = DefaultRetryTimeout
	}
	return &guardService{
		identity:     identity,
		guardTimeout: guardTimeout,
		retryTimeout: retryTimeout,
		rec:          recorderOrNop(rec),
	}
}

// Check 执行守卫
func (s *guardService) Check(ctx context.Context, sess *session.Session, kind GuardKind, path, lang string) *Redirect {
	id, err := s.identity.Fetch(ctx, sess, s.guardTimeout)
	unauthenticated := errors.Is(err, errs.ErrUnauthenticated)

	if err != nil && !unauthenticated {
		s.rec.GuardDecision(string(kind), "network_error")
		return NetworkErrorRedirect(err, path)
	}

	switch kind {
	case GuardAuth:
		if unauthenticated {
			sess.Cache.Clear()
			sess.State.Reset()
			s.rec.GuardDecision(string(kind), "proceed")
			return nil
		}
		sess.State.Establish(id)
		s.rec.GuardDecision(string(kind), "redirect_dashboard")
		return &Redirect{Location: DashboardFor(id, lang), Reason: "already_authenticated"}

	case GuardPanel:
		if unauthenticated {
			sess.Cache.Clear()
			sess.State.Reset()
			s.rec.GuardDecision(string(kind), "redirect_sign_in")
			return &Redirect{Location: SignInPath(lang), Reason: "unauthenticated"}
		}
		sess.State.Establish(id)
		if !id.IsAdmin && IsAdminPath(path, lang) {
			s.rec.GuardDecision(string(kind), "redirect_customer")
			return &Redirect{Location: CustomerDashboardPath(lang), Reason: "forbidden_role"}
		}
		s.rec.GuardDecision(string(kind), "proceed")
		return nil
	}
	return nil
}

// Retry 以较短超时重新查询身份；成功或确认未登录都说明网络已恢复
func (s *guardService) Retry(ctx context.Context, sess *session.Session) error {
	_, err := s.identity.Fetch(ctx, sess, s.retryTimeout)
	if err == nil || errors.Is(err, errs.ErrUnauthenticated) {
		return nil
	}
	return err
}
