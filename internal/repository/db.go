package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskpulse/internal/model"
)

// NewDB opens the database named by dsn and runs migrations. DSNs starting
// with postgres:// or postgresql:// use PostgreSQL, anything else is a SQLite path.
func NewDB(dsn string, dbLogger logger.Interface) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "taskpulse.db"
	}
	if dbLogger == nil {
		dbLogger = logger.Discard
	}

	cfg := &gorm.Config{
		Logger:  dbLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		db  *gorm.DB
		err error
	)
	if isPostgres(dsn) {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		if dir := sqliteDir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir %q: %w", dir, err)
			}
		}
		db, err = gorm.Open(sqlite.Open(withForeignKeys(dsn)), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if !isPostgres(dsn) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		// SQLite prefers a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the scheduler uses.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&model.Task{}, "Tags", &model.Tagging{}); err != nil {
		return fmt.Errorf("setup taggings: %w", err)
	}
	if err := db.SetupJoinTable(&model.Task{}, "Assignees", &model.Assignment{}); err != nil {
		return fmt.Errorf("setup assignments: %w", err)
	}
	if err := db.AutoMigrate(
		&model.Account{},
		&model.User{},
		&model.Board{},
		&model.Tag{},
		&model.Task{},
		&model.Tagging{},
		&model.Assignment{},
		&model.ChecklistItem{},
		&model.Recurrence{},
		&model.NotificationRule{},
		&model.Event{},
	); err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}
	return nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=1"
}

// sqliteDir returns the directory holding a file DSN, or "" for in-memory
// databases and files in the working directory.
func sqliteDir(dsn string) string {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return ""
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if dir := filepath.Dir(path); dir != "." {
		return dir
	}
	return ""
}
