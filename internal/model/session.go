package model

import (
	"net/http"
	"sort"
	"time"
)

// Phase 登录状态机阶段
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseCredentialsSubmitted Phase = "credentials_submitted"
	PhaseAuthenticated        Phase = "authenticated"
	PhaseSecondFactorRequired Phase = "second_factor_required"
	PhaseInactiveAccount      Phase = "inactive_account"
	PhaseFailed               Phase = "failed"
)

// Challenge 二次验证挑战，仅存在于单次登录尝试中
type Challenge struct {
	Channel          Channel `json:"channel"`
	Code             string  `json:"-"`
	SelectorVisible  bool    `json:"selectorVisible"`
	ChallengeVisible bool    `json:"challengeVisible"`
	Identifier       string  `json:"identifier"`
	Error            string  `json:"error,omitempty"`
}

// LoginAttempt 单次登录尝试
type LoginAttempt struct {
	Phase     Phase      `json:"phase"`
	Username  string     `json:"username,omitempty"`
	Message   string     `json:"message,omitempty"`
	Challenge *Challenge `json:"challenge,omitempty"`
}

// NewLoginAttempt 初始的空闲尝试
func NewLoginAttempt() LoginAttempt {
	return LoginAttempt{Phase: PhaseIdle}
}

// Cookie 上游会话Cookie
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Credentials 代表浏览器会话持有的上游凭据
type Credentials struct {
	Items []Cookie `json:"items,omitempty"`
}

// Cookies 以 http.Cookie 形式返回
func (c *Credentials) Cookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, &http.Cookie{Name: it.Name, Value: it.Value})
	}
	return out
}

// Merge 合并上游 Set-Cookie；MaxAge<0 或已过期的Cookie会被删除
func (c *Credentials) Merge(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	now := time.Now()
	index := make(map[string]string, len(c.Items))
	for _, it := range c.Items {
		index[it.Name] = it.Value
	}
	for _, ck := range cookies {
		expired := ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(now))
		if expired || ck.Value == "" {
			delete(index, ck.Name)
			continue
		}
		index[ck.Name] = ck.Value
	}

	items := make([]Cookie, 0, len(index))
	for name, value := range index {
		items = append(items, Cookie{Name: name, Value: value})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	c.Items = items
}

// Clear 清空凭据
func (c *Credentials) Clear() {
	c.Items = nil
}

// Empty 是否没有任何凭据
func (c *Credentials) Empty() bool {
	return len(c.Items) == 0
}

// CachedIdentity 带捕获时间的缓存条目
type CachedIdentity struct {
	Identity   *Identity `json:"identity"`
	CapturedAt time.Time `json:"capturedAt"`
}

// SessionSnapshot 浏览器会话的可持久化快照
type SessionSnapshot struct {
	ID            string          `json:"id"`
	Cached        *CachedIdentity `json:"cached,omitempty"`
	Authenticated bool            `json:"authenticated"`
	User          *Identity       `json:"user,omitempty"`
	Channels      Channels        `json:"channels"`
	Attempt       LoginAttempt    `json:"attempt"`
	Credentials   Credentials     `json:"credentials"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
