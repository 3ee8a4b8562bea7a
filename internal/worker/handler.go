package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collab-whiteboard/internal/domain"
	"collab-whiteboard/internal/tasks"
)

// SnapshotPersister 把快照写入数据库
type SnapshotPersister interface {
	Persist(ctx context.Context, snapshot *domain.Snapshot) error
}

// SavedMarker 记录某个 revision 已经写入数据库，检查点任务据此跳过房间
type SavedMarker interface {
	MarkSaved(roomID string, revision int64)
}

// SnapshotPersistHandler 处理快照持久化任务
type SnapshotPersistHandler struct {
	persister SnapshotPersister
	marker    SavedMarker
}

// NewSnapshotPersistHandler 创建 Handler 实例
func NewSnapshotPersistHandler(persister SnapshotPersister, marker SavedMarker) *SnapshotPersistHandler {
	if persister == nil {
		panic("SnapshotPersister cannot be nil for SnapshotPersistHandler")
	}
	if marker == nil {
		panic("SavedMarker cannot be nil for SnapshotPersistHandler")
	}
	return &SnapshotPersistHandler{persister: persister, marker: marker}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *SnapshotPersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID, _ := asynq.GetTaskID(ctx)
	currentRetry, _ := asynq.GetRetryCount(ctx)
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
	})

	var payload tasks.SnapshotPersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.RoomID == "" {
		return fmt.Errorf("snapshot payload without room id: %w", asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_id": payload.RoomID, "revision": payload.Revision})

	if err := h.persister.Persist(ctx, payload.Snapshot()); err != nil {
		logCtx.WithError(err).Error("Failed to persist snapshot")
		return fmt.Errorf("failed to persist snapshot for room %s: %w", payload.RoomID, err)
	}
	h.marker.MarkSaved(payload.RoomID, payload.Revision)

	logCtx.Debug("Snapshot persistence task processed successfully")
	return nil
}
