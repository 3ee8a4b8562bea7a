package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"collab-whiteboard/internal/domain"
	"collab-whiteboard/internal/repository"
)

// GormSnapshotRepository 是 SnapshotRepository 接口的 GORM 实现
type GormSnapshotRepository struct {
	db *gorm.DB
}

// NewGormSnapshotRepository 创建 GormSnapshotRepository 实例
func NewGormSnapshotRepository(db *gorm.DB) *GormSnapshotRepository {
	if db == nil {
		panic("database connection cannot be nil for GormSnapshotRepository")
	}
	return &GormSnapshotRepository{db: db}
}

// GetLatestSnapshot 实现获取指定房间的快照记录（每个房间一行）
func (r *GormSnapshotRepository) GetLatestSnapshot(ctx context.Context, roomID string) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("gorm: failed to get snapshot for room %s: %w", roomID, err)
	}
	return &snapshot, nil
}

// SaveSnapshot 实现按房间 upsert 快照。
// 只有 revision 不小于已存记录时才覆盖数据，revision 必须最后赋值。
func (r *GormSnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	row := &domain.Snapshot{
		RoomID:   snapshot.RoomID,
		Data:     snapshot.Data,
		Revision: snapshot.Revision,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "room_id"}},
		DoUpdates: []clause.Assignment{
			{Column: clause.Column{Name: "data"}, Value: gorm.Expr("IF(VALUES(revision) >= revision, VALUES(data), data)")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("IF(VALUES(revision) >= revision, VALUES(updated_at), updated_at)")},
			{Column: clause.Column{Name: "revision"}, Value: gorm.Expr("GREATEST(revision, VALUES(revision))")},
		},
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("gorm: failed to save snapshot (room %s, revision %d): %w", snapshot.RoomID, snapshot.Revision, err)
	}
	return nil
}
