package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	xerrors "OpenMint-Chain/internal/errors"
)

// MemoryStore 以内存保存会话映射，可选地落盘到一个 JSON 文件，
// 便于进程重启后恢复已有线程。
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*Record
	filePath string
}

// NewMemoryStore 创建内存会话存储。filePath 为空时不落盘。
func NewMemoryStore(filePath string) (*MemoryStore, error) {
	store := &MemoryStore{
		records:  make(map[string]*Record),
		filePath: filePath,
	}
	if filePath != "" {
		if err := store.load(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Resolve 实现 Store 接口。
func (m *MemoryStore) Resolve(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[userID]
	if !ok {
		return "", ErrNotFound
	}
	return record.ThreadID, nil
}

// Save 实现 Store 接口。
func (m *MemoryStore) Save(_ context.Context, userID, threadID string) error {
	if userID == "" || threadID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "用户 ID 与线程 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().Unix()
	record, ok := m.records[userID]
	if !ok {
		record = &Record{UserID: userID, CreatedAt: now}
		m.records[userID] = record
	}
	record.ThreadID = threadID
	record.UpdatedAt = now
	if m.filePath == "" {
		return nil
	}
	return m.persist()
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) load() error {
	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("读取会话文件失败: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("解析会话文件失败: %w", err)
	}
	for _, record := range records {
		if record != nil && record.UserID != "" {
			m.records[record.UserID] = record
		}
	}
	return nil
}

func (m *MemoryStore) persist() error {
	records := make([]*Record, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.filePath), 0o755); err != nil {
		return fmt.Errorf("创建会话目录失败: %w", err)
	}
	tmp := m.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("写入会话文件失败: %w", err)
	}
	if err := os.Rename(tmp, m.filePath); err != nil {
		return fmt.Errorf("替换会话文件失败: %w", err)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
