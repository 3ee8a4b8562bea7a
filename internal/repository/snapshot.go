package repository

import (
	"context"

	"collab-whiteboard/internal/domain"
)

// SnapshotRepository 定义了快照在数据库中的持久化操作。
type SnapshotRepository interface {
	// GetLatestSnapshot 获取指定房间的快照记录，没有时返回 ErrSnapshotNotFound。
	GetLatestSnapshot(ctx context.Context, roomID string) (*domain.Snapshot, error)

	// SaveSnapshot 写入快照；已存在更新 Revision 的记录时不会被旧数据覆盖。
	SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error
}
