package redisstate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-whiteboard/internal/domain"
	"collab-whiteboard/internal/repository"
)

func newTestRepo(t *testing.T) (*RedisStateRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStateRepository(client, "test:"), mr
}

func TestSnapshotCache_Miss(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.GetSnapshotCache(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSnapshotCache_RevisionGuard(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()
	at := time.UnixMilli(1700000000000).UTC()

	applied, err := repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Data: []byte(`"v2"`), Revision: 200, UpdatedAt: at}, 0)
	require.NoError(t, err)
	assert.True(t, applied)

	// 旧 revision 被丢弃
	applied, err = repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Data: []byte(`"v1"`), Revision: 99}, 0)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := repo.GetSnapshotCache(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, `"v2"`, string(got.Data))
	assert.Equal(t, int64(200), got.Revision)
	assert.True(t, at.Equal(got.UpdatedAt))
	assert.True(t, mr.Exists("test:room:r1:snapshot"))

	// 相同 revision 可以覆盖（重试）
	applied, err = repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Data: []byte(`"v2b"`), Revision: 200}, 0)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Data: []byte(`"v3"`), Revision: 1000}, 0)
	require.NoError(t, err)
	assert.True(t, applied)
	got, err = repo.GetSnapshotCache(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, `"v3"`, string(got.Data))
}

// revision 是纳秒时间戳，超出 Lua double 的精确范围
func TestSnapshotCache_LargeRevisions(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := int64(1_760_000_000_000_000_001)

	applied, err := repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Data: []byte("a"), Revision: base + 1}, 0)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Data: []byte("b"), Revision: base}, 0)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := repo.GetSnapshotCache(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, base+1, got.Revision)
}

func TestSnapshotCache_TTLAndEmptyData(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()
	key := "test:room:r1:snapshot"

	_, err := repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Revision: 1}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(key))

	got, err := repo.GetSnapshotCache(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got.Data)

	// ttl 为 0 时去掉过期时间
	_, err = repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Data: []byte("x"), Revision: 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), mr.TTL(key))

	_, err = repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Data: []byte("y"), Revision: 3}, time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	_, err = repo.GetSnapshotCache(ctx, "r1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSnapshotCache_Delete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.SetSnapshotCache(ctx, &domain.Snapshot{RoomID: "r1", Data: []byte("x"), Revision: 1}, 0)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSnapshotCache(ctx, "r1"))
	require.NoError(t, repo.DeleteSnapshotCache(ctx, "r1"))
	_, err = repo.GetSnapshotCache(ctx, "r1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCheckRateLimit(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limited, err := repo.CheckRateLimit(ctx, "1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, limited, "request %d", i+1)
	}
	limited, err := repo.CheckRateLimit(ctx, "1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, limited)

	// 其他 key 不受影响
	limited, err = repo.CheckRateLimit(ctx, "5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited)

	// 窗口只在第一次请求时设置
	assert.Equal(t, time.Minute, mr.TTL("test:ratelimit:1.2.3.4"))
	mr.FastForward(time.Minute + time.Second)
	limited, err = repo.CheckRateLimit(ctx, "1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, limited)
}

func TestStateRepository_RedisDown(t *testing.T) {
	repo, mr := newTestRepo(t)
	mr.SetError("ERR simulated outage")

	_, err := repo.CheckRateLimit(context.Background(), "k", 1, time.Second)
	assert.Error(t, err)
	_, err = repo.SetSnapshotCache(context.Background(), &domain.Snapshot{RoomID: "r1", Revision: 1}, 0)
	assert.Error(t, err)
}
