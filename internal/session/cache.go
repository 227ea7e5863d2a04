package session

import (
	"sync"
	"time"

	"panel/internal/model"
)

// DefaultCacheTTL 身份缓存默认有效期
const DefaultCacheTTL = 5 * time.Minute

// Clock 时间源，测试中可替换
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时间
type SystemClock struct{}

// Now 当前时间
func (SystemClock) Now() time.Time { return time.Now() }

// Cache 单槽身份缓存
//
// 过期条目只在读取时被清除，不存在后台清理。
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock Clock
	entry *model.CachedIdentity
}

// NewCache 创建身份缓存
func NewCache(ttl time.Duration, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Cache{ttl: ttl, clock: clock}
}

// Get 读取缓存，条目过期时清空并返回未命中
func (c *Cache) Get() (*model.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry == nil {
		return nil, false
	}
	if c.clock.Now().Sub(c.entry.CapturedAt) > c.ttl {
		c.entry = nil
		return nil, false
	}
	return c.entry.Identity.Clone(), true
}

// Set 覆盖唯一的缓存槽
func (c *Cache) Set(id *model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = &model.CachedIdentity{
		Identity:   id.Clone(),
		CapturedAt: c.clock.Now(),
	}
}

// Clear 清空缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

// TTL 缓存有效期
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// snapshot 导出当前条目（保留原始捕获时间）
func (c *Cache) snapshot() *model.CachedIdentity {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry == nil {
		return nil
	}
	return &model.CachedIdentity{
		Identity:   c.entry.Identity.Clone(),
		CapturedAt: c.entry.CapturedAt,
	}
}

// restore 从快照恢复条目
func (c *Cache) restore(entry *model.CachedIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry == nil || entry.Identity == nil {
		c.entry = nil
		return
	}
	c.entry = &model.CachedIdentity{
		Identity:   entry.Identity.Clone(),
		CapturedAt: entry.CapturedAt,
	}
}
