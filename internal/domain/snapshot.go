package domain

import (
	"encoding/json"
	"time"
)

// Snapshot 是某个房间整张画布的序列化状态（对服务端不透明）。
// 每个房间只保留一条记录，Revision 用于丢弃乱序到达的旧写入。
type Snapshot struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	RoomID    string    `gorm:"column:room_id;type:varchar(191);uniqueIndex:idx_snapshot_room;not null" json:"room_id"`
	Data      []byte    `gorm:"type:longblob" json:"data"`
	Revision  int64     `gorm:"not null;default:0" json:"revision"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEmpty 报告快照是否不含任何画布数据。
// 长度为 0 或 JSON null 视为空画布。
func (s *Snapshot) IsEmpty() bool {
	if s == nil {
		return true
	}
	return IsEmptyBlob(s.Data)
}

// IsEmptyBlob 判断一个快照 blob 是否为空画布。
func IsEmptyBlob(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	return string(b) == "null"
}

// RawJSON 返回可直接嵌入 JSON 消息的快照内容；空快照返回 nil（序列化为 null）。
// 非法 JSON 会被编码为字符串，保证出站消息总是合法的。
func RawJSON(b []byte) json.RawMessage {
	if IsEmptyBlob(b) {
		return nil
	}
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	quoted, _ := json.Marshal(string(b))
	return json.RawMessage(quoted)
}
