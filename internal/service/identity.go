package service

import (
	"context"
	"errors"
	"time"

	"panel/internal/errs"
	"panel/internal/gateway"
	"panel/internal/model"
	"panel/internal/session"
	"panel/pkg/logger"
)

// IdentityService 身份查询服务接口
type IdentityService interface {
	// Fetch 先读缓存，未命中时请求身份接口并写入缓存
	Fetch(ctx context.Context, sess *session.Session, timeout time.Duration) (*model.Identity, error)
}

// identityService 身份查询服务实现
type identityService struct {
	api gateway.AuthAPI
	rec Recorder
}

// NewIdentityService 创建身份查询服务实例
func NewIdentityService(api gateway.AuthAPI, rec Recorder) IdentityService {
	return &identityService{api: api, rec: recorderOrNop(rec)}
}

// Fetch 只有成功的网络请求会修改缓存；并发调用不做合并
func (s *identityService) Fetch(ctx context.Context, sess *session.Session, timeout time.Duration) (*model.Identity, error) {
	if id, ok := sess.Cache.Get(); ok {
		s.rec.IdentityFetch("cache", "hit")
		return id, nil
	}

	id, err := s.api.Info(ctx, &sess.Credentials, timeout)
	if err != nil {
		s.rec.IdentityFetch("network", fetchResult(err))
		if !errors.Is(err, errs.ErrUnauthenticated) {
			logger.Warn("identity fetch failed for session %s: %v", sess.ID, err)
		}
		return nil, err
	}

	sess.Cache.Set(id)
	s.rec.IdentityFetch("network", "ok")
	return id, nil
}

func fetchResult(err error) string {
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		return "unauthenticated"
	case errs.IsTimeout(err):
		return "timeout"
	case errs.IsNetwork(err):
		return "network_error"
	}
	return "server_error"
}
