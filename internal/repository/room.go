package repository

import (
	"context"

	"collab-whiteboard/internal/domain"
)

// RoomRepository 定义了房间记录的存储和检索操作。
type RoomRepository interface {
	// FindByRoomID 根据对外房间标识查找房间。
	// 房间不存在时返回 ErrRoomNotFound。
	FindByRoomID(ctx context.Context, roomID string) (*domain.Room, error)

	// Create 创建新房间。房间标识冲突时返回 ErrDuplicateEntry。
	Create(ctx context.Context, room *domain.Room) error

	// Exists 检查房间标识是否已存在。
	Exists(ctx context.Context, roomID string) (bool, error)
}
