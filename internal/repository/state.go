package repository

import (
	"context"
	"time"

	"collab-whiteboard/internal/domain"
)

// StateRepository 定义了 Redis 中与房间相关的临时状态。
type StateRepository interface {
	// === Snapshot Caching ===

	// GetSnapshotCache 从缓存读取快照，未命中时返回 ErrNotFound。
	GetSnapshotCache(ctx context.Context, roomID string) (*domain.Snapshot, error)

	// SetSnapshotCache 写入缓存；缓存中已有更新的 Revision 时返回 (false, nil)。
	// ttl 为 0 表示不过期。
	SetSnapshotCache(ctx context.Context, snapshot *domain.Snapshot, ttl time.Duration) (bool, error)

	// DeleteSnapshotCache 删除房间的快照缓存。
	DeleteSnapshotCache(ctx context.Context, roomID string) error

	// === Rate Limiting ===

	// CheckRateLimit 递增 key 的计数，超过 limit 时返回 true。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
