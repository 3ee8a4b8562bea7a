package hub

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"collab-whiteboard/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func presence(id string) domain.Presence {
	return domain.Presence{ID: id, Username: "user-" + id, Color: "#000000"}
}

func TestStore_RoomLifecycle(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Exists("r"))

	s.AddMember("r", "a", presence("a"))
	s.AddMember("r", "b", presence("b"))
	assert.True(t, s.Exists("r"))
	assert.Len(t, s.Members("r"), 2)

	remaining, removed, ok := s.RemoveMember("r", "a")
	require.True(t, ok)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, "a", removed.ID)
	assert.True(t, s.Exists("r"))

	remaining, _, ok = s.RemoveMember("r", "b")
	require.True(t, ok)
	assert.Equal(t, 0, remaining)
	assert.False(t, s.Exists("r"), "最后一个成员离开后房间应被删除")
	assert.Equal(t, 0, s.Len())
}

func TestStore_RemoveMemberUnknown(t *testing.T) {
	s := NewStore()
	_, _, ok := s.RemoveMember("missing", "a")
	assert.False(t, ok)

	s.AddMember("r", "a", presence("a"))
	_, _, ok = s.RemoveMember("r", "zzz")
	assert.False(t, ok)
	assert.True(t, s.Exists("r"))
}

func TestStore_AddMemberOverwritesSameID(t *testing.T) {
	s := NewStore()
	s.AddMember("r", "a", presence("a"))
	p := presence("a")
	p.Username = "renamed"
	s.AddMember("r", "a", p)

	members := s.Members("r")
	require.Len(t, members, 1)
	assert.Equal(t, "renamed", members[0].Username)
}

func TestStore_SnapshotLastWriterWins(t *testing.T) {
	s := NewStore()
	assert.False(t, s.ApplySnapshot("r", []byte(`1`)), "房间不存在时不应创建")

	s.AddMember("r", "a", presence("a"))
	assert.Nil(t, s.Snapshot("r"))

	require.True(t, s.ApplySnapshot("r", []byte(`{"v":1}`)))
	require.True(t, s.ApplySnapshot("r", []byte(`{"v":2}`)))
	assert.Equal(t, `{"v":2}`, string(s.Snapshot("r")))

	require.True(t, s.ApplySnapshot("r", nil))
	assert.Nil(t, s.Snapshot("r"))
}

func TestStore_SnapshotIsCopied(t *testing.T) {
	s := NewStore()
	s.AddMember("r", "a", presence("a"))
	blob := []byte(`"abc"`)
	s.ApplySnapshot("r", blob)
	blob[1] = 'X'
	assert.Equal(t, `"abc"`, string(s.Snapshot("r")))
}

func TestStore_RevisionStrictlyIncreases(t *testing.T) {
	s := NewStore()
	fixed := s.now()
	s.now = func() time.Time { return fixed }
	s.AddMember("r", "a", presence("a"))

	var revs []int64
	for i := 0; i < 3; i++ {
		s.withRoom("r", false, func(rs *RoomState) {
			revs = append(revs, rs.setSnapshot([]byte(`1`), s.now()))
		})
	}
	assert.Less(t, revs[0], revs[1])
	assert.Less(t, revs[1], revs[2])
}

func TestStore_UnsavedAndMarkSaved(t *testing.T) {
	s := NewStore()
	s.AddMember("r1", "a", presence("a"))
	s.AddMember("r2", "b", presence("b"))
	assert.Empty(t, s.Unsaved())

	s.ApplySnapshot("r1", []byte(`[1]`))
	pending := s.Unsaved()
	require.Len(t, pending, 1)
	assert.Equal(t, "r1", pending[0].RoomID)
	assert.Equal(t, `[1]`, string(pending[0].Data))

	s.MarkSaved("r1", pending[0].Revision-1)
	assert.Len(t, s.Unsaved(), 1, "旧 revision 不应标记为已保存")

	s.MarkSaved("r1", pending[0].Revision)
	assert.Empty(t, s.Unsaved())
}

// 并发加入和离开：房间存在当且仅当有成员
func TestStore_ConcurrentJoinLeave(t *testing.T) {
	s := NewStore()
	const workers = 16
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", w)
			for i := 0; i < rounds; i++ {
				s.AddMember("shared", id, presence(id))
				_, _, ok := s.RemoveMember("shared", id)
				assert.True(t, ok, "刚加入的成员必须能被移除")
			}
		}(w)
	}
	wg.Wait()

	assert.False(t, s.Exists("shared"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ClosedRoomIsRecreated(t *testing.T) {
	s := NewStore()
	s.AddMember("r", "a", presence("a"))
	stale := s.get("r")
	s.RemoveMember("r", "a")
	require.True(t, stale.closed)

	s.AddMember("r", "b", presence("b"))
	fresh := s.get("r")
	require.NotNil(t, fresh)
	assert.NotSame(t, stale, fresh)
	assert.Len(t, s.Members("r"), 1)
}

func TestStore_SeedOnlyOnce(t *testing.T) {
	s := NewStore()
	assert.True(t, s.needsHydration("r"), "不存在的房间需要加载")

	s.withRoom("r", true, func(rs *RoomState) {
		rs.seed([]byte(`"OLD"`), s.now())
		rs.add(presence("a"))
	})
	assert.False(t, s.needsHydration("r"))
	assert.Equal(t, `"OLD"`, string(s.Snapshot("r")))
	assert.Empty(t, s.Unsaved(), "加载的快照已经持久化")

	s.ApplySnapshot("r", nil)
	s.withRoom("r", false, func(rs *RoomState) {
		rs.seed([]byte(`"OLD"`), s.now())
	})
	assert.Nil(t, s.Snapshot("r"), "已加载过的房间不再被旧快照覆盖")
	assert.Len(t, s.Unsaved(), 1)
}

func TestStore_SeedSkippedAfterLocalEdit(t *testing.T) {
	s := NewStore()
	s.AddMember("r", "a", presence("a"))
	s.ApplySnapshot("r", []byte(`"NEW"`))
	require.True(t, s.needsHydration("r"))

	s.withRoom("r", false, func(rs *RoomState) {
		rs.seed([]byte(`"OLD"`), s.now())
	})
	assert.Equal(t, `"NEW"`, string(s.Snapshot("r")))
	assert.False(t, s.needsHydration("r"))
}
