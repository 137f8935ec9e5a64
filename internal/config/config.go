package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 描述了 OpenMint 守护进程在启动阶段需要加载的核心配置。
type Config struct {
	Telegram  TelegramConfig  `json:"telegram" yaml:"telegram"`
	Assistant AssistantConfig `json:"assistant" yaml:"assistant"`
	Generator GeneratorConfig `json:"generator" yaml:"generator"`
	Chain     ChainConfig     `json:"chain" yaml:"chain"`
	Vanity    VanityConfig    `json:"vanity" yaml:"vanity"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Events    EventsConfig    `json:"events" yaml:"events"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Runtime   RuntimeConfig   `json:"runtime" yaml:"runtime"`
}

// TelegramConfig 描述访问 Telegram Bot API 所需的信息。
type TelegramConfig struct {
	Token        string `json:"token" yaml:"token"`
	TokenEnv     string `json:"token_env" yaml:"token_env"`
	BaseURL      string `json:"base_url" yaml:"base_url"`
	PollInterval int    `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
}

// AssistantConfig 描述 OpenAI Assistants 会话所需的信息。
type AssistantConfig struct {
	APIKey         string `json:"api_key" yaml:"api_key"`
	APIKeyEnv      string `json:"api_key_env" yaml:"api_key_env"`
	AssistantID    string `json:"assistant_id" yaml:"assistant_id"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// GeneratorConfig 描述元数据与图像生成的调用方式。
type GeneratorConfig struct {
	APIKey         string `json:"api_key" yaml:"api_key"`
	APIKeyEnv      string `json:"api_key_env" yaml:"api_key_env"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	Model          string `json:"model" yaml:"model"`
	ImageModel     string `json:"image_model" yaml:"image_model"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ChainConfig 描述链上余额查询与发射所需的信息。
type ChainConfig struct {
	ChainConfig     string  `json:"chain_config" yaml:"chain_config"`
	DefaultChain    string  `json:"default_chain" yaml:"default_chain"`
	DevWallet       string  `json:"dev_wallet" yaml:"dev_wallet"`
	PrivateKeyEnv   string  `json:"private_key_env" yaml:"private_key_env"`
	RequiredBalance float64 `json:"required_balance" yaml:"required_balance"`
	BuyAmount       float64 `json:"buy_amount" yaml:"buy_amount"`
}

// VanityConfig 控制靓号地址搜索的参数。
type VanityConfig struct {
	Suffix         string `json:"suffix" yaml:"suffix"`
	MaxAttempts    uint64 `json:"max_attempts" yaml:"max_attempts"`
	ProgressStride uint64 `json:"progress_stride" yaml:"progress_stride"`
	Workers        int    `json:"workers" yaml:"workers"`
}

// StorageConfig 统一描述会话与部署记录的持久化后端。
type StorageConfig struct {
	SessionStore SessionStoreConfig `json:"session_store" yaml:"session_store"`
}

// SessionStoreConfig 支持 memory（JSON 文件）与 mysql 两种驱动。
type SessionStoreConfig struct {
	Driver                 string `json:"driver" yaml:"driver"`
	DSN                    string `json:"dsn" yaml:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds" yaml:"conn_max_idle_time_seconds"`
}

// EventsConfig 描述部署事件对外广播的驱动。
type EventsConfig struct {
	Driver   string         `json:"driver" yaml:"driver"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq"`
}

// RedisConfig 描述 Redis 事件通道的连接参数。
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Queue    string `json:"queue" yaml:"queue"`
}

// RabbitMQConfig 描述 RabbitMQ 事件通道的连接参数。
type RabbitMQConfig struct {
	URL        string `json:"url" yaml:"url"`
	Queue      string `json:"queue" yaml:"queue"`
	Durable    bool   `json:"durable" yaml:"durable"`
	AutoDelete bool   `json:"auto_delete" yaml:"auto_delete"`
}

// ServerConfig 控制管理 API 服务的监听地址等参数。
// APIToken 非空时，/api/v1 路由要求携带 Bearer 令牌。
type ServerConfig struct {
	Address        string `json:"address" yaml:"address"`
	MetricsAddress string `json:"metrics_address" yaml:"metrics_address"`
	APIToken       string `json:"api_token" yaml:"api_token"`
	APITokenEnv    string `json:"api_token_env" yaml:"api_token_env"`
}

// LogConfig 控制日志输出。
type LogConfig struct {
	Level       string   `json:"level" yaml:"level"`
	Format      string   `json:"format" yaml:"format"`
	OutputPaths []string `json:"output_paths" yaml:"output_paths"`
	AuditPath   string   `json:"audit_path" yaml:"audit_path"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Load 负责解析指定路径的配置文件，按扩展名支持 JSON 与 YAML 两种格式。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置失败: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置失败: %w", err)
		}
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// Timeout 返回 Assistant 调用的超时时间。
func (c AssistantConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout 返回生成调用的超时时间。
func (c GeneratorConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Telegram.TokenEnv == "" {
		c.Telegram.TokenEnv = "TELEGRAM_BOT_API"
	}
	if c.Telegram.PollInterval <= 0 {
		c.Telegram.PollInterval = 2
	}

	if c.Assistant.APIKeyEnv == "" {
		c.Assistant.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Generator.APIKeyEnv == "" {
		c.Generator.APIKeyEnv = c.Assistant.APIKeyEnv
	}

	if c.Chain.PrivateKeyEnv == "" {
		c.Chain.PrivateKeyEnv = "PRIVATE_KEY"
	}
	if c.Chain.RequiredBalance <= 0 {
		c.Chain.RequiredBalance = 0.7
	}
	if c.Chain.BuyAmount <= 0 {
		c.Chain.BuyAmount = 0.7
	}

	if c.Vanity.Suffix == "" {
		c.Vanity.Suffix = "pump"
	}
	if c.Vanity.MaxAttempts == 0 {
		c.Vanity.MaxAttempts = 1_000_000
	}
	if c.Vanity.ProgressStride == 0 {
		c.Vanity.ProgressStride = 20_000
	}

	if c.Storage.SessionStore.Driver == "" {
		c.Storage.SessionStore.Driver = "memory"
	}

	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}

	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
}
