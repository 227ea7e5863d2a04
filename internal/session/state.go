package session

import (
	"sync"

	"panel/internal/model"
)

// State 会话状态：是否已登录、当前用户、二次验证渠道
//
// 只有登录状态机、路由守卫和登出会写入。
type State struct {
	mu            sync.RWMutex
	authenticated bool
	user          *model.Identity
	channels      model.Channels
}

// NewState 创建未登录的初始状态
func NewState() *State {
	return &State{}
}

// IsAuthenticated 是否已登录
func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// User 当前用户，未登录时为 nil
func (s *State) User() *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Channels 二次验证渠道配置
func (s *State) Channels() model.Channels {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels
}

// IsAdmin 当前用户是否为管理员
func (s *State) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsAdmin
}

// Establish 以身份建立已登录状态
func (s *State) Establish(id *model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.authenticated = true
	s.user = id.Clone()
	s.channels = id.TwoFactor
}

// SetChannels 记录登录响应中的渠道配置
func (s *State) SetChannels(ch model.Channels) {
	s.mu.Lock()
	s.channels = ch
	s.mu.Unlock()
}

// Reset 恢复为未登录的初始状态
func (s *State) Reset() {
	s.mu.Lock()
	s.authenticated = false
	s.user = nil
	s.channels = model.Channels{}
	s.mu.Unlock()
}

// View 只读视图，用于响应序列化
type View struct {
	Authenticated bool            `json:"isAuthenticated"`
	User          *model.Identity `json:"currentUser,omitempty"`
	Channels      model.Channels  `json:"twoFactorChannels"`
}

// View 返回当前状态的只读视图
func (s *State) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Authenticated: s.authenticated,
		User:          s.user.Clone(),
		Channels:      s.channels,
	}
}
