package hub

import (
	"context"

	"collab-whiteboard/internal/domain"
)

// Bridge 是核心对持久化层的全部依赖。
type Bridge interface {
	// LoadSnapshot 读取房间最近一次持久化的快照，没有时返回 nil, nil。
	LoadSnapshot(ctx context.Context, roomID string) ([]byte, error)
	// SaveSnapshot 尽力保存快照。核心不等待、不重试。
	SaveSnapshot(ctx context.Context, snapshot *domain.Snapshot) error
	// RoomExists 检查房间是否已通过凭证流程创建。
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

// Gate 判断连接能否加入房间。
type Gate interface {
	Admit(ctx context.Context, connID, roomID string) error
}

// Sink 接收路由计算出的扇出列表。
// Deliver 在房间临界区内被调用，实现不能阻塞，也不能回调 Router。
type Sink interface {
	Deliver(out []Outbound)
}

type allowAll struct{}

func (allowAll) Admit(context.Context, string, string) error { return nil }
