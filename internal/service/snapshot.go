package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collab-whiteboard/internal/domain"
	"collab-whiteboard/internal/repository"

	"github.com/sirupsen/logrus"
)

// TaskEnqueuer 把快照写库交给后台任务队列。
type TaskEnqueuer interface {
	EnqueueSnapshotPersist(ctx context.Context, snapshot *domain.Snapshot) error
}

// SnapshotService 是实时核心的持久化桥：
// Redis 缓存保存最新快照，数据库写入由后台任务完成。
type SnapshotService struct {
	snapshotRepo repository.SnapshotRepository // DB 操作
	stateRepo    repository.StateRepository    // Redis 缓存
	roomRepo     repository.RoomRepository
	enqueuer     TaskEnqueuer // 为 nil 时同步写库
	cacheTTL     time.Duration
}

// NewSnapshotService 创建 SnapshotService 实例。
func NewSnapshotService(
	snapshotRepo repository.SnapshotRepository,
	stateRepo repository.StateRepository,
	roomRepo repository.RoomRepository,
	enqueuer TaskEnqueuer,
	cacheTTL time.Duration,
) *SnapshotService {
	if snapshotRepo == nil || stateRepo == nil || roomRepo == nil {
		panic("repositories cannot be nil for SnapshotService")
	}
	return &SnapshotService{
		snapshotRepo: snapshotRepo,
		stateRepo:    stateRepo,
		roomRepo:     roomRepo,
		enqueuer:     enqueuer,
		cacheTTL:     cacheTTL,
	}
}

// LoadSnapshot 读取房间最近的快照。
// 实现 "缓存优先，数据库备用，回填缓存" 策略；没有快照时返回 nil, nil。
func (s *SnapshotService) LoadSnapshot(ctx context.Context, roomID string) ([]byte, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "operation": "LoadSnapshot"})

	cached, err := s.stateRepo.GetSnapshotCache(ctx, roomID)
	switch {
	case err == nil && cached != nil:
		logCtx.WithField("revision", cached.Revision).Debug("Snapshot cache hit")
		return cached.Data, nil
	case errors.Is(err, repository.ErrNotFound):
		logCtx.Debug("Snapshot cache miss")
	case err != nil:
		logCtx.WithError(err).Warn("Failed to get snapshot from cache, falling back to database")
	}

	stored, err := s.snapshotRepo.GetLatestSnapshot(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			logCtx.Debug("No snapshot found in database")
			return nil, nil
		}
		logCtx.WithError(err).Error("Failed to get latest snapshot from database")
		return nil, fmt.Errorf("load snapshot for room %s: %w", roomID, err)
	}

	logCtx.WithField("revision", stored.Revision).Info("Snapshot loaded from database")
	go s.warmCache(stored)
	return stored.Data, nil
}

// warmCache 异步回填缓存，失败只记录日志。
func (s *SnapshotService) warmCache(snapshot *domain.Snapshot) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": snapshot.RoomID, "revision": snapshot.Revision})
	if _, err := s.stateRepo.SetSnapshotCache(context.Background(), snapshot, s.cacheTTL); err != nil {
		logCtx.WithError(err).Warn("Failed to warm snapshot cache after DB load")
		return
	}
	logCtx.Debug("Snapshot cache warmed")
}

// SaveSnapshot 写入缓存并投递写库任务。缓存中已有更新的 revision 时直接返回。
func (s *SnapshotService) SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": snapshot.RoomID, "revision": snapshot.Revision})

	applied, err := s.stateRepo.SetSnapshotCache(ctx, snapshot, s.cacheTTL)
	if err != nil {
		logCtx.WithError(err).Error("Failed to write snapshot cache")
		return fmt.Errorf("cache snapshot for room %s: %w", snapshot.RoomID, err)
	}
	if !applied {
		logCtx.Debug("Newer snapshot already cached, skipping stale save")
		return nil
	}

	if s.enqueuer == nil {
		return s.Persist(ctx, snapshot)
	}
	if err := s.enqueuer.EnqueueSnapshotPersist(ctx, snapshot); err != nil {
		logCtx.WithError(err).Error("Failed to enqueue snapshot persistence task")
		return err
	}
	logCtx.Debug("Snapshot persistence task enqueued")
	return nil
}

// Persist 把快照写入数据库，供后台任务调用。
func (s *SnapshotService) Persist(ctx context.Context, snapshot *domain.Snapshot) error {
	if err := s.snapshotRepo.SaveSnapshot(ctx, snapshot); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id":  snapshot.RoomID,
			"revision": snapshot.Revision,
		}).WithError(err).Error("Failed to save snapshot to database")
		return err
	}
	return nil
}

// Checkpoint 同步写入缓存和数据库，用于周期性补存。
func (s *SnapshotService) Checkpoint(ctx context.Context, snapshot *domain.Snapshot) error {
	if _, err := s.stateRepo.SetSnapshotCache(ctx, snapshot, s.cacheTTL); err != nil {
		// 缓存失败不影响写库
		logrus.WithField("room_id", snapshot.RoomID).WithError(err).Warn("Checkpoint: failed to refresh snapshot cache")
	}
	return s.Persist(ctx, snapshot)
}

// RoomExists 检查房间是否已通过凭证接口创建。
func (s *SnapshotService) RoomExists(ctx context.Context, roomID string) (bool, error) {
	exists, err := s.roomRepo.Exists(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("check room %s: %w", roomID, err)
	}
	return exists, nil
}
