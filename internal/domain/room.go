package domain

import "time"

// Room 是持久化的房间记录，只用于凭证校验和存在性检查。
// 实时成员和画布状态保存在 hub 的内存 RoomState 中。
type Room struct {
	ID           uint      `gorm:"primaryKey"`
	RoomID       string    `gorm:"column:room_id;type:varchar(191);uniqueIndex:idx_room_id;not null"` // 对外的房间标识
	PasswordHash string    `gorm:"type:text;not null"`                                                // bcrypt 哈希，不保存明文
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}
