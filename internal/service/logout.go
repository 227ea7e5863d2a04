package service

import (
	"context"

	"panel/internal/gateway"
	"panel/internal/session"
	"panel/pkg/logger"
)

// LogoutService 登出服务接口
type LogoutService interface {
	// Logout 清空会话并跳转登录页，可重复调用
	Logout(ctx context.Context, sess *session.Session, lang string) *Redirect
}

// logoutService 登出服务实现
type logoutService struct {
	api gateway.AuthAPI
	rec Recorder
}

// NewLogoutService 创建登出服务实例
func NewLogoutService(api gateway.AuthAPI, rec Recorder) LogoutService {
	return &logoutService{api: api, rec: recorderOrNop(rec)}
}

// Logout 上游注销失败只记录日志，本地状态总会被清空
func (s *logoutService) Logout(ctx context.Context, sess *session.Session, lang string) *Redirect {
	if !sess.Credentials.Empty() {
		if err := s.api.Logout(ctx, &sess.Credentials); err != nil {
			logger.Warn("upstream logout failed for session %s: %v", sess.ID, err)
		}
	}

	wasAuthenticated := sess.State.IsAuthenticated()
	sess.Destroy()
	if wasAuthenticated {
		s.rec.Logout()
	}
	return &Redirect{Location: SignInPath(lang), Reason: "logout"}
}
