package hub

import (
	"math/rand"
	"sync"
	"time"

	"collab-whiteboard/internal/domain"
)

// palette 是加入房间时可分配的光标颜色。
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#fabebe", "#008080", "#9a6324",
}

// Connection 是一个活跃连接的身份和展示信息。
type Connection struct {
	ID          string
	Username    string
	Color       string
	RoomID      string // 未加入房间时为空
	ConnectedAt time.Time
}

// Presence 返回用于成员列表的展示信息。
func (c Connection) Presence() domain.Presence {
	return domain.Presence{ID: c.ID, Username: c.Username, Color: c.Color}
}

// Registry 记录所有活跃连接，每个条目只由对应连接的处理流程和断开流程访问。
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	pick  func(n int) int
	now   func() time.Time
}

// NewRegistry 创建空的连接表。
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		pick:  rand.Intn,
		now:   time.Now,
	}
}

// Register 新建连接条目，id 重复时返回 ErrDuplicateConnection。
func (r *Registry) Register(id string) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.conns[id]; exists {
		return Connection{}, ErrDuplicateConnection
	}
	c := &Connection{ID: id, ConnectedAt: r.now()}
	r.conns[id] = c
	return *c, nil
}

// AssignRoom 设置连接的房间和显示名，并随机分配颜色。
// 重复调用会覆盖之前的房间、显示名和颜色。
func (r *Registry) AssignRoom(id, roomID, username string) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return Connection{}, ErrUnknownConnection
	}
	c.RoomID = roomID
	c.Username = username
	c.Color = palette[r.pick(len(palette))]
	return *c, nil
}

// Unregister 删除连接并返回被删除的记录，已删除时 ok 为 false。
func (r *Registry) Unregister(id string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, id)
	return *c, true
}

// Get 返回连接记录的副本。
func (r *Registry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// Len 返回活跃连接数。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
