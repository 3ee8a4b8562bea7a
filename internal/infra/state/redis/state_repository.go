package redisstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"collab-whiteboard/internal/domain"
	"collab-whiteboard/internal/repository"
)

// setSnapshotScript 只在缓存中没有更新的 revision 时写入快照。
// revision 是十进制正整数字符串，先比长度再按字典序比较，避免 Lua 数值精度丢失。
var setSnapshotScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'revision')
if cur then
  local incoming = ARGV[2]
  if #cur > #incoming or (#cur == #incoming and cur > incoming) then
    return 0
  end
end
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'revision', ARGV[2], 'updated_at', ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
else
  redis.call('PERSIST', KEYS[1])
end
return 1
`)

// rateLimitScript 原子地递增计数，并只在窗口第一次请求时设置过期时间。
var rateLimitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "wb:" // 默认前缀 "wb:" (whiteboard)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---
func (r *RedisStateRepository) roomSnapshotCacheKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:snapshot", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) rateLimitKey(key string) string {
	return fmt.Sprintf("%sratelimit:%s", r.keyPrefix, key)
}

// --- StateRepository Interface Implementation ---

// GetSnapshotCache 从 Redis Hash 读取快照缓存
func (r *RedisStateRepository) GetSnapshotCache(ctx context.Context, roomID string) (*domain.Snapshot, error) {
	key := r.roomSnapshotCacheKey(roomID)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get snapshot cache for room %s from %s: %w", roomID, key, err)
	}
	revStr, ok := fields["revision"]
	if !ok {
		return nil, repository.ErrNotFound
	}

	revision, err := strconv.ParseInt(revStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: failed to parse revision '%s' for room %s: %w", revStr, roomID, err)
	}
	snapshot := &domain.Snapshot{RoomID: roomID, Revision: revision}
	if data := fields["data"]; data != "" {
		snapshot.Data = []byte(data)
	}
	if ts, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		snapshot.UpdatedAt = time.UnixMilli(ts).UTC()
	}
	return snapshot, nil
}

// SetSnapshotCache 以 revision 比较后写入快照缓存
func (r *RedisStateRepository) SetSnapshotCache(ctx context.Context, snapshot *domain.Snapshot, ttl time.Duration) (bool, error) {
	key := r.roomSnapshotCacheKey(snapshot.RoomID)
	updatedAt := snapshot.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	applied, err := setSnapshotScript.Run(ctx, r.client, []string{key},
		string(snapshot.Data),
		strconv.FormatInt(snapshot.Revision, 10),
		strconv.FormatInt(updatedAt.UnixMilli(), 10),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: failed to set snapshot cache for room %s (revision %d): %w", snapshot.RoomID, snapshot.Revision, err)
	}
	return applied == 1, nil
}

// DeleteSnapshotCache 删除房间的快照缓存
func (r *RedisStateRepository) DeleteSnapshotCache(ctx context.Context, roomID string) error {
	key := r.roomSnapshotCacheKey(roomID)
	if err := r.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: failed to delete snapshot cache for room %s: %w", roomID, err)
	}
	return nil
}

// CheckRateLimit 在固定窗口内计数，超过 limit 时返回 true
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := rateLimitScript.Run(ctx, r.client, []string{r.rateLimitKey(key)}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check rate limit for %s: %w", key, err)
	}
	return count > int64(limit), nil
}
