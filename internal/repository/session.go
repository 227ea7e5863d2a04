package repository

import (
	"context"
	"errors"

	"panel/internal/model"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository 浏览器会话仓储接口
type SessionRepository interface {
	// Load 读取会话快照
	Load(ctx context.Context, id string) (*model.SessionSnapshot, error)

	// Save 保存会话快照并刷新空闲过期时间
	Save(ctx context.Context, snap *model.SessionSnapshot) error

	// Delete 删除会话
	Delete(ctx context.Context, id string) error
}
