package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"panel/internal/model"
)

// sweepInterval 两次过期清理之间的最小间隔
const sweepInterval = time.Minute

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// memorySessionRepository 单实例部署使用的内存会话仓储
type memorySessionRepository struct {
	mu        sync.Mutex
	idleTTL   time.Duration
	now       func() time.Time
	entries   map[string]memoryEntry
	lastSweep time.Time
}

// NewMemorySessionRepository 创建内存会话仓储实例
func NewMemorySessionRepository(idleTTL time.Duration, now func() time.Time) SessionRepository {
	if now == nil {
		now = time.Now
	}
	return &memorySessionRepository{
		idleTTL:   idleTTL,
		now:       now,
		entries:   make(map[string]memoryEntry),
		lastSweep: now(),
	}
}

// Load 读取会话，过期条目顺带清除
func (r *memorySessionRepository) Load(ctx context.Context, id string) (*model.SessionSnapshot, error) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok && r.idleTTL > 0 && r.now().After(entry.expiresAt) {
		delete(r.entries, id)
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal(entry.data, &snap); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &snap, nil
}

// Save 以序列化副本保存，调用方之后的修改不会影响仓储
func (r *memorySessionRepository) Save(ctx context.Context, snap *model.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.entries[snap.ID] = memoryEntry{data: data, expiresAt: now.Add(r.idleTTL)}
	if now.Sub(r.lastSweep) >= sweepInterval {
		r.sweepLocked(now)
	}
	return nil
}

// Delete 删除会话
func (r *memorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	return nil
}

// sweepLocked 清理过期会话，调用方需持有锁
func (r *memorySessionRepository) sweepLocked(now time.Time) {
	r.lastSweep = now
	if r.idleTTL <= 0 {
		return
	}
	for id, e := range r.entries {
		if now.After(e.expiresAt) {
			delete(r.entries, id)
		}
	}
}
