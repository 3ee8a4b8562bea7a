package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"collab-whiteboard/internal/domain"
)

// dryRunDB 返回只生成 SQL、不连接数据库的 gorm 实例，并记录最后一条 INSERT。
func dryRunDB(t *testing.T) (*gorm.DB, *string) {
	t.Helper()
	db, err := gorm.Open(mysqldriver.New(mysqldriver.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/whiteboard_db?parseTime=True",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)

	var captured string
	err = db.Callback().Create().After("gorm:create").Register("test:capture_sql", func(tx *gorm.DB) {
		captured = tx.Statement.SQL.String()
	})
	require.NoError(t, err)
	return db, &captured
}

func TestSaveSnapshot_RevisionGuardedUpsert(t *testing.T) {
	db, captured := dryRunDB(t)
	repo := NewGormSnapshotRepository(db)

	err := repo.SaveSnapshot(context.Background(), &domain.Snapshot{RoomID: "r1", Data: []byte("blob"), Revision: 7})
	require.NoError(t, err)

	sql := *captured
	assert.Contains(t, sql, "INSERT INTO `snapshots`")
	assert.Contains(t, sql, "ON DUPLICATE KEY UPDATE")
	assert.Contains(t, sql, "`data`=IF(VALUES(revision) >= revision, VALUES(data), data)")
	assert.Contains(t, sql, "`revision`=GREATEST(revision, VALUES(revision))")

	// revision 必须最后更新，前面的 IF 才能读到旧值
	dataAt := strings.Index(sql, "`data`=IF")
	updatedAt := strings.Index(sql, "`updated_at`=IF")
	revisionAt := strings.Index(sql, "`revision`=GREATEST")
	assert.Less(t, dataAt, revisionAt)
	assert.Less(t, updatedAt, revisionAt)
}

func TestIsDuplicateEntry(t *testing.T) {
	dup := &mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry 'r1' for key 'idx_room_id'"}

	assert.True(t, isDuplicateEntry(dup))
	assert.True(t, isDuplicateEntry(fmt.Errorf("insert: %w", dup)))
	assert.True(t, isDuplicateEntry(gorm.ErrDuplicatedKey))
	assert.False(t, isDuplicateEntry(&mysql.MySQLError{Number: 1045}))
	assert.False(t, isDuplicateEntry(errors.New("connection refused")))
}

func TestNewRepositories_NilDB(t *testing.T) {
	assert.Panics(t, func() { NewGormRoomRepository(nil) })
	assert.Panics(t, func() { NewGormSnapshotRepository(nil) })
}
