package hub

import (
	"sync"
	"time"

	"collab-whiteboard/internal/domain"
)

// RoomState 是一个房间的内存状态。
// 除 id 和 createdAt 外的字段只能在持有 mu 时访问。
type RoomState struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time

	members map[string]domain.Presence
	order   []string // 加入顺序，用于生成稳定的 users-list

	// 快照 blob 写入后不再修改，可以在锁外共享
	snapshot      []byte
	revision      int64
	savedRevision int64

	// hydrated 表示已经尝试过从持久化层加载快照，之后内存快照是唯一权威
	hydrated bool

	// closed 表示房间已从 Store 中删除，持有旧指针的调用方需要重试
	closed bool
}

func (rs *RoomState) ID() string           { return rs.id }
func (rs *RoomState) CreatedAt() time.Time { return rs.createdAt }

func (rs *RoomState) add(p domain.Presence) {
	if _, exists := rs.members[p.ID]; !exists {
		rs.order = append(rs.order, p.ID)
	}
	rs.members[p.ID] = p
}

func (rs *RoomState) remove(id string) (domain.Presence, bool) {
	p, ok := rs.members[id]
	if !ok {
		return domain.Presence{}, false
	}
	delete(rs.members, id)
	for i, mid := range rs.order {
		if mid == id {
			rs.order = append(rs.order[:i], rs.order[i+1:]...)
			break
		}
	}
	return p, true
}

func (rs *RoomState) list() []domain.Presence {
	out := make([]domain.Presence, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, rs.members[id])
	}
	return out
}

// setSnapshot 替换快照并返回新的 revision，revision 在房间内严格递增。
func (rs *RoomState) setSnapshot(blob []byte, now time.Time) int64 {
	if len(blob) == 0 {
		rs.snapshot = nil
	} else {
		rs.snapshot = append([]byte(nil), blob...)
	}
	rev := now.UnixNano()
	if rev <= rs.revision {
		rev = rs.revision + 1
	}
	rs.revision = rev
	return rev
}

// Store 保存所有活跃房间。
// 锁顺序：RoomState.mu 先于 Store.mu，Store.mu 持有期间不获取任何房间锁。
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*RoomState
	now   func() time.Time
}

// NewStore 创建空的房间表。
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*RoomState),
		now:   time.Now,
	}
}

// EnsureRoom 返回已有房间，不存在则创建一个空房间。
// 没有成员的房间会在下一次进入其临界区时被删除，调用方应随后 AddMember。
func (s *Store) EnsureRoom(roomID string) *RoomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		rs = &RoomState{
			id:        roomID,
			createdAt: s.now(),
			members:   make(map[string]domain.Presence),
		}
		s.rooms[roomID] = rs
	}
	return rs
}

func (s *Store) get(roomID string) *RoomState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

// withRoom 在房间临界区内执行 fn。
// create 为 false 且房间不存在时返回 false。fn 执行后房间为空则立即删除。
func (s *Store) withRoom(roomID string, create bool, fn func(rs *RoomState)) bool {
	for {
		var rs *RoomState
		if create {
			rs = s.EnsureRoom(roomID)
		} else if rs = s.get(roomID); rs == nil {
			return false
		}

		rs.mu.Lock()
		if rs.closed {
			// 拿到的是刚被删除的房间
			rs.mu.Unlock()
			if !create {
				return false
			}
			continue
		}
		fn(rs)
		if len(rs.members) == 0 {
			s.discard(rs)
		}
		rs.mu.Unlock()
		return true
	}
}

// discard 删除房间，调用方必须持有 rs.mu。
func (s *Store) discard(rs *RoomState) {
	rs.closed = true
	s.mu.Lock()
	if s.rooms[rs.id] == rs {
		delete(s.rooms, rs.id)
	}
	s.mu.Unlock()
}

// AddMember 把连接加入房间成员，已存在时覆盖。
func (s *Store) AddMember(roomID, connID string, p domain.Presence) {
	p.ID = connID
	s.withRoom(roomID, true, func(rs *RoomState) {
		rs.add(p)
	})
}

// RemoveMember 从房间删除成员，返回剩余人数和被删除的成员信息。
// 剩余人数为 0 时房间在本次调用内被删除。
func (s *Store) RemoveMember(roomID, connID string) (remaining int, removed domain.Presence, ok bool) {
	s.withRoom(roomID, false, func(rs *RoomState) {
		removed, ok = rs.remove(connID)
		remaining = len(rs.members)
	})
	return remaining, removed, ok
}

// seed 在房间第一次加载时写入持久化的快照，调用方必须持有 rs.mu。
// 房间创建后已经接受过快照修改时忽略 blob，只标记为已加载。
func (rs *RoomState) seed(blob []byte, now time.Time) {
	if rs.hydrated {
		return
	}
	rs.hydrated = true
	if rs.revision != 0 || domain.IsEmptyBlob(blob) {
		return
	}
	rs.savedRevision = rs.setSnapshot(blob, now)
}

// needsHydration 报告房间是否不存在或尚未从持久化层加载过快照。
func (s *Store) needsHydration(roomID string) bool {
	needs := true
	s.withRoom(roomID, false, func(rs *RoomState) {
		needs = !rs.hydrated
	})
	return needs
}

// ApplySnapshot 无条件替换房间快照（后写者胜），房间不存在时返回 false。
func (s *Store) ApplySnapshot(roomID string, blob []byte) bool {
	return s.withRoom(roomID, false, func(rs *RoomState) {
		rs.setSnapshot(blob, s.now())
	})
}

// Snapshot 返回房间当前快照，房间不存在或无快照时返回 nil。
func (s *Store) Snapshot(roomID string) []byte {
	var blob []byte
	s.withRoom(roomID, false, func(rs *RoomState) {
		blob = rs.snapshot
	})
	return blob
}

// Members 按加入顺序返回房间成员。
func (s *Store) Members(roomID string) []domain.Presence {
	var members []domain.Presence
	s.withRoom(roomID, false, func(rs *RoomState) {
		members = rs.list()
	})
	return members
}

// Exists 报告房间是否在内存中。
func (s *Store) Exists(roomID string) bool {
	return s.get(roomID) != nil
}

// RoomIDs 返回所有活跃房间的 ID。
func (s *Store) RoomIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Len 返回活跃房间数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Unsaved 返回内存快照比上次成功持久化更新的房间。
func (s *Store) Unsaved() []domain.Snapshot {
	var out []domain.Snapshot
	for _, id := range s.RoomIDs() {
		s.withRoom(id, false, func(rs *RoomState) {
			if rs.revision > rs.savedRevision {
				out = append(out, domain.Snapshot{RoomID: rs.id, Data: rs.snapshot, Revision: rs.revision})
			}
		})
	}
	return out
}

// MarkSaved 记录 revision 已经写入数据库。
func (s *Store) MarkSaved(roomID string, revision int64) {
	s.withRoom(roomID, false, func(rs *RoomState) {
		if revision > rs.savedRevision {
			rs.savedRevision = revision
		}
	})
}
