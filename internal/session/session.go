package session

import (
	"time"

	"github.com/google/uuid"

	"panel/internal/model"
)

// Session 一个浏览器会话：身份缓存、会话状态、登录尝试与上游凭据
type Session struct {
	ID          string
	Cache       *Cache
	State       *State
	Attempt     model.LoginAttempt
	Credentials model.Credentials

	clock Clock
}

// New 创建新的浏览器会话
func New(ttl time.Duration, clock Clock) *Session {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Session{
		ID:      uuid.NewString(),
		Cache:   NewCache(ttl, clock),
		State:   NewState(),
		Attempt: model.NewLoginAttempt(),
		clock:   clock,
	}
}

// FromSnapshot 从持久化快照恢复会话
func FromSnapshot(snap *model.SessionSnapshot, ttl time.Duration, clock Clock) *Session {
	s := New(ttl, clock)
	s.ID = snap.ID
	s.Cache.restore(snap.Cached)
	if snap.Authenticated && snap.User != nil {
		s.State.Establish(snap.User)
	}
	s.State.SetChannels(snap.Channels)
	s.Attempt = snap.Attempt
	if s.Attempt.Phase == "" {
		s.Attempt = model.NewLoginAttempt()
	}
	s.Credentials = model.Credentials{Items: append([]model.Cookie(nil), snap.Credentials.Items...)}
	return s
}

// Snapshot 导出可持久化快照
func (s *Session) Snapshot() *model.SessionSnapshot {
	view := s.State.View()
	return &model.SessionSnapshot{
		ID:            s.ID,
		Cached:        s.Cache.snapshot(),
		Authenticated: view.Authenticated,
		User:          view.User,
		Channels:      view.Channels,
		Attempt:       s.Attempt,
		Credentials:   model.Credentials{Items: append([]model.Cookie(nil), s.Credentials.Items...)},
		UpdatedAt:     s.clock.Now(),
	}
}

// ResetLogin 清空缓存、状态与登录尝试（保留凭据）
func (s *Session) ResetLogin() {
	s.Cache.Clear()
	s.State.Reset()
	s.Attempt = model.NewLoginAttempt()
}

// Destroy 清空会话内的全部认证数据
func (s *Session) Destroy() {
	s.ResetLogin()
	s.Credentials.Clear()
}
