package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collab-whiteboard/internal/domain"
)

// checkpointTimeout 限制单个房间补存的耗时
const checkpointTimeout = 30 * time.Second

// CheckpointSource 提供尚未持久化的内存快照
type CheckpointSource interface {
	Unsaved() []domain.Snapshot
	SavedMarker
}

// SnapshotCheckpointer 同步写入缓存和数据库
type SnapshotCheckpointer interface {
	Checkpoint(ctx context.Context, snapshot *domain.Snapshot) error
}

// SnapshotCheckpointHandler 处理周期性的快照检查点任务：
// 把内存中比上次持久化更新的房间快照补写到存储。
type SnapshotCheckpointHandler struct {
	source       CheckpointSource
	checkpointer SnapshotCheckpointer
}

// NewSnapshotCheckpointHandler 创建 Handler 实例
func NewSnapshotCheckpointHandler(source CheckpointSource, checkpointer SnapshotCheckpointer) *SnapshotCheckpointHandler {
	if source == nil {
		panic("CheckpointSource cannot be nil for SnapshotCheckpointHandler")
	}
	if checkpointer == nil {
		panic("SnapshotCheckpointer cannot be nil for SnapshotCheckpointHandler")
	}
	return &SnapshotCheckpointHandler{source: source, checkpointer: checkpointer}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *SnapshotCheckpointHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	pending := h.source.Unsaved()
	if len(pending) == 0 {
		logCtx.Debug("No unsaved rooms, skipping checkpoint")
		return nil
	}
	logCtx.Infof("Checkpointing %d rooms", len(pending))

	failed := 0
	for i := range pending {
		snapshot := &pending[i]
		roomCtx, cancel := context.WithTimeout(ctx, checkpointTimeout)
		err := h.checkpointer.Checkpoint(roomCtx, snapshot)
		cancel()
		if err != nil {
			failed++
			logCtx.WithField("room_id", snapshot.RoomID).WithError(err).Error("Checkpoint failed for room")
			continue
		}
		h.source.MarkSaved(snapshot.RoomID, snapshot.Revision)
	}

	// 单个房间失败不让整个周期任务重试，下个周期会再次尝试
	if failed > 0 {
		logCtx.Errorf("Checkpoint completed with %d failed rooms", failed)
	}
	return nil
}
