package setup

import (
	"fmt"

	"collab-whiteboard/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MigrateDB handles all database migrations using the provided GORM DB instance.
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := migrateRoomsTable(db); err != nil {
		return fmt.Errorf("failed to migrate rooms table: %w", err)
	}

	// snapshots 的 longblob 列和唯一索引由 struct tag 描述，AutoMigrate 即可
	if err := db.AutoMigrate(&domain.Snapshot{}); err != nil {
		logrus.Errorf("Failed to auto-migrate snapshots table: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

// migrateRoomsTable 表不存在时用原生 SQL 建表，已存在时交给 AutoMigrate 补齐列和索引
func migrateRoomsTable(db *gorm.DB) error {
	if db.Migrator().HasTable(&domain.Room{}) {
		if err := db.AutoMigrate(&domain.Room{}); err != nil {
			logrus.Errorf("Failed to auto-migrate Room table for index updates: %v", err)
			return fmt.Errorf("failed to migrate room indexes: %w", err)
		}
		logrus.Info("Rooms table schema checked/updated successfully")
		return nil
	}

	sql := `
	CREATE TABLE rooms (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		room_id VARCHAR(191) NOT NULL,
		password_hash TEXT NOT NULL,
		created_at DATETIME(3),
		updated_at DATETIME(3),
		UNIQUE INDEX idx_room_id (room_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
	`
	if err := db.Exec(sql).Error; err != nil {
		logrus.Errorf("Failed to create rooms table: %v", err)
		return fmt.Errorf("failed to create rooms table: %w", err)
	}
	logrus.Info("Rooms table created successfully")
	return nil
}
