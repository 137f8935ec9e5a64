package session

import (
	"context"

	xerrors "OpenMint-Chain/internal/errors"
)

// ErrNotFound 表示用户尚未绑定线程。
var ErrNotFound = xerrors.New(xerrors.CodeNotFound, "会话不存在")

// Record 描述一条用户与线程的绑定。
type Record struct {
	UserID    string `json:"user_id"`
	ThreadID  string `json:"thread_id"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Store 定义了 userID 到 threadID 的持久化映射。
type Store interface {
	// Resolve 返回用户已绑定的线程；不存在时返回 ErrNotFound。
	Resolve(ctx context.Context, userID string) (string, error)
	// Save 建立或更新绑定。
	Save(ctx context.Context, userID, threadID string) error
	// Close 释放底层资源。
	Close() error
}
