package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/coursebot/backend/internal/infrastructure/config"
)

// OpenDB 打开数据库连接
func OpenDB(dbPath string) (*sql.DB, error) {
	// 确保目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// PRAGMA 按连接生效，通过 DSN 让连接池中每个连接都启用
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite 同一时刻只允许一个写者
	db.SetMaxOpenConns(1)

	return db, nil
}

// InitDatabase 初始化表结构
func InitDatabase(db *sql.DB) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS index_records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		source_name TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		ingested_at INTEGER NOT NULL DEFAULT 0,
		text TEXT NOT NULL,
		vector BLOB NOT NULL,
		PRIMARY KEY (collection, id)
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create index_records table: %w", err)
	}

	// 创建索引
	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_index_records_source ON index_records(collection, source_name, chunk_index);`

	if _, err := db.Exec(createIndexSQL); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// ProvideDB 打开并初始化数据库，返回关闭函数
func ProvideDB(cfg *config.DatabaseConfig) (*sql.DB, func(), error) {
	db, err := OpenDB(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := InitDatabase(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}
