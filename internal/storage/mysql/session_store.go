package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"OpenMint-Chain/internal/session"
)

// SessionStore 使用 MySQL 保存用户与线程的绑定。
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore 创建连接池并执行迁移。
func NewSessionStore(ctx context.Context, cfg Config) (*SessionStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SessionStore{db: db}, nil
}

// Resolve 实现 session.Store 接口。
func (s *SessionStore) Resolve(ctx context.Context, userID string) (string, error) {
	var threadID string
	err := s.db.QueryRowContext(ctx, `SELECT thread_id FROM sessions WHERE user_id = ?`, userID).Scan(&threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("查询会话失败: %w", err)
	}
	return threadID, nil
}

// Save 实现 session.Store 接口。
func (s *SessionStore) Save(ctx context.Context, userID, threadID string) error {
	now := time.Now().Unix()
	const stmt = `INSERT INTO sessions (user_id, thread_id, created_at, updated_at)
        VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE thread_id = VALUES(thread_id), updated_at = VALUES(updated_at)`
	if _, err := s.db.ExecContext(ctx, stmt, userID, threadID, now, now); err != nil {
		return fmt.Errorf("写入会话失败: %w", err)
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *SessionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ session.Store = (*SessionStore)(nil)
