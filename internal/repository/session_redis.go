package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"panel/internal/model"
	"panel/pkg/redis"
)

// KV 会话仓储需要的键值操作，*redis.Client 实现该接口
type KV interface {
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
}

var _ KV = (*redis.Client)(nil)

// redisSessionRepository 多副本部署共享的Redis会话仓储
type redisSessionRepository struct {
	kv      KV
	prefix  string
	idleTTL time.Duration
}

// NewRedisSessionRepository 创建Redis会话仓储实例
func NewRedisSessionRepository(kv KV, prefix string, idleTTL time.Duration) SessionRepository {
	return &redisSessionRepository{kv: kv, prefix: prefix, idleTTL: idleTTL}
}

func (r *redisSessionRepository) key(id string) string {
	return r.prefix + id
}

// Load 读取会话
func (r *redisSessionRepository) Load(ctx context.Context, id string) (*model.SessionSnapshot, error) {
	data, err := r.kv.Get(ctx, r.key(id))
	if err != nil {
		if redis.IsNil(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &snap, nil
}

// Save 保存会话，每次保存都会刷新过期时间
func (r *redisSessionRepository) Save(ctx context.Context, snap *model.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", snap.ID, err)
	}
	if err := r.kv.Set(ctx, r.key(snap.ID), data, r.idleTTL); err != nil {
		return fmt.Errorf("save session %s: %w", snap.ID, err)
	}
	return nil
}

// Delete 删除会话
func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.kv.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}
