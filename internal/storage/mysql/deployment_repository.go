package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/go-sql-driver/mysql"
)

// DeploymentRecord 表示一次部署流水线终态的落库结构。
type DeploymentRecord struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	ThreadID       string `json:"thread_id"`
	State          string `json:"state"`
	FailedStage    string `json:"failed_stage,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	TokenName      string `json:"token_name,omitempty"`
	TokenSymbol    string `json:"token_symbol,omitempty"`
	TokenDesc      string `json:"token_description,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
	MintAddress    string `json:"mint_address,omitempty"`
	DeployURL      string `json:"deploy_url,omitempty"`
	Signature      string `json:"signature,omitempty"`
	SearchAttempts uint64 `json:"search_attempts"`
	DurationMS     int64  `json:"duration_ms"`
	CreatedAt      int64  `json:"created_at"`
}

// DeploymentRepository 抽象部署记录的持久化接口。
type DeploymentRepository interface {
	Save(ctx context.Context, record DeploymentRecord) error
	ListLatest(ctx context.Context, limit int) ([]DeploymentRecord, error)
	Close() error
}

// MemoryDeploymentRepository 使用本地 JSON 行文件模拟 MySQL 的效果，方便迭代开发。
type MemoryDeploymentRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []DeploymentRecord
}

// NewMemoryDeploymentRepository 创建一个内存部署仓库。
func NewMemoryDeploymentRepository(dataDir string) (*MemoryDeploymentRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "deployments.log")
	repo := &MemoryDeploymentRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录部署结果。
func (m *MemoryDeploymentRepository) Save(_ context.Context, record DeploymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开部署日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化部署记录失败: %w", err)
	}

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入部署日志失败: %w", err)
	}

	m.records = append([]DeploymentRecord{record}, m.records...)
	if len(m.records) > 512 {
		m.records = m.records[:512]
	}
	return nil
}

// ListLatest 返回最近的部署记录，按时间倒序排列。
func (m *MemoryDeploymentRepository) ListLatest(_ context.Context, limit int) ([]DeploymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}

	results := make([]DeploymentRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

// Close 对内存仓库无需操作。
func (m *MemoryDeploymentRepository) Close() error {
	return nil
}

func (m *MemoryDeploymentRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取部署日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []DeploymentRecord
	for scanner.Scan() {
		var record DeploymentRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]DeploymentRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析部署日志失败: %w", err)
	}

	if len(restored) > 512 {
		restored = restored[:512]
	}
	if len(restored) > 0 {
		m.records = restored
	}
	return nil
}

// SQLDeploymentRepository 使用真实的 MySQL 数据库存储部署记录。
type SQLDeploymentRepository struct {
	db *sql.DB
}

// NewSQLDeploymentRepository 创建连接池并执行迁移。
func NewSQLDeploymentRepository(ctx context.Context, cfg Config) (*SQLDeploymentRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLDeploymentRepository{db: db}, nil
}

// Save 将部署记录写入 MySQL。
func (s *SQLDeploymentRepository) Save(ctx context.Context, record DeploymentRecord) error {
	const stmt = `INSERT INTO deployments
        (id, user_id, thread_id, state, failed_stage, error_code, error_message,
         token_name, token_symbol, token_description, image_url, mint_address,
         deploy_url, signature, search_attempts, duration_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.UserID,
		record.ThreadID,
		record.State,
		record.FailedStage,
		record.ErrorCode,
		record.ErrorMessage,
		record.TokenName,
		record.TokenSymbol,
		record.TokenDesc,
		record.ImageURL,
		record.MintAddress,
		record.DeployURL,
		record.Signature,
		record.SearchAttempts,
		record.DurationMS,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入部署记录失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条部署记录。
func (s *SQLDeploymentRepository) ListLatest(ctx context.Context, limit int) ([]DeploymentRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, thread_id, state, failed_stage, error_code, error_message,
        token_name, token_symbol, token_description, image_url, mint_address,
        deploy_url, signature, search_attempts, duration_ms, created_at
        FROM deployments ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询部署记录失败: %w", err)
	}
	defer rows.Close()

	var records []DeploymentRecord
	for rows.Next() {
		var record DeploymentRecord
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.ThreadID,
			&record.State,
			&record.FailedStage,
			&record.ErrorCode,
			&record.ErrorMessage,
			&record.TokenName,
			&record.TokenSymbol,
			&record.TokenDesc,
			&record.ImageURL,
			&record.MintAddress,
			&record.DeployURL,
			&record.Signature,
			&record.SearchAttempts,
			&record.DurationMS,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("解析部署记录失败: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历部署记录失败: %w", err)
	}

	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLDeploymentRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ DeploymentRepository = (*MemoryDeploymentRepository)(nil)
	_ DeploymentRepository = (*SQLDeploymentRepository)(nil)
)
