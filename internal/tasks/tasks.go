package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"collab-whiteboard/internal/domain"

	"github.com/hibiken/asynq"
)

// 定义任务类型常量
const (
	TypeSnapshotPersist    = "snapshot:persist"    // 快照写入数据库
	TypeSnapshotCheckpoint = "snapshot:checkpoint" // 周期性补存活跃房间的快照
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// SnapshotPersistPayload 定义了快照持久化任务的数据结构
type SnapshotPersistPayload struct {
	RoomID   string `json:"room_id"`
	Data     []byte `json:"data"`
	Revision int64  `json:"revision"`
}

// Snapshot 还原为领域对象。
func (p SnapshotPersistPayload) Snapshot() *domain.Snapshot {
	return &domain.Snapshot{RoomID: p.RoomID, Data: p.Data, Revision: p.Revision}
}

// NewSnapshotPersistTask 创建一个新的快照持久化任务
func NewSnapshotPersistTask(snapshot *domain.Snapshot) (*asynq.Task, error) {
	payload, err := json.Marshal(SnapshotPersistPayload{
		RoomID:   snapshot.RoomID,
		Data:     snapshot.Data,
		Revision: snapshot.Revision,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot persist payload: %w", err)
	}
	return asynq.NewTask(TypeSnapshotPersist, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// NewSnapshotCheckpointTask 创建检查点任务，由调度器周期性投递。
func NewSnapshotCheckpointTask() *asynq.Task {
	return asynq.NewTask(TypeSnapshotCheckpoint, nil,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Minute),
	)
}

// Enqueuer 把快照持久化任务投递到 asynq。
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer 创建 Enqueuer。
func NewEnqueuer(client *asynq.Client) *Enqueuer {
	if client == nil {
		panic("asynq client cannot be nil for Enqueuer")
	}
	return &Enqueuer{client: client}
}

// EnqueueSnapshotPersist 投递快照持久化任务。
func (e *Enqueuer) EnqueueSnapshotPersist(ctx context.Context, snapshot *domain.Snapshot) error {
	task, err := NewSnapshotPersistTask(snapshot)
	if err != nil {
		return err
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("asynq: enqueue %s for room %s: %w", TypeSnapshotPersist, snapshot.RoomID, err)
	}
	return nil
}
