package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"OpenMint-Chain/internal/api"
	"OpenMint-Chain/internal/assistant"
	assistantopenai "OpenMint-Chain/internal/assistant/openai"
	"OpenMint-Chain/internal/auth"
	"OpenMint-Chain/internal/bot"
	"OpenMint-Chain/internal/chain/provider"
	"OpenMint-Chain/internal/config"
	"OpenMint-Chain/internal/deploy"
	"OpenMint-Chain/internal/deploy/events"
	"OpenMint-Chain/internal/generate"
	generateopenai "OpenMint-Chain/internal/generate/openai"
	"OpenMint-Chain/internal/observability/metrics"
	"OpenMint-Chain/internal/session"
	"OpenMint-Chain/internal/storage/mysql"
	"OpenMint-Chain/internal/telegram"
	"OpenMint-Chain/pkg/logger"
)

// main 是 OpenMint 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("openmintd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("OPENMINT_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "openmint.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
		Audit:       logger.AuditConfig{Enabled: cfg.Log.AuditPath != "", Path: cfg.Log.AuditPath},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	dataDir := cfg.Runtime.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	// 消息通道。
	channel, err := telegram.NewClient(telegram.Config{
		Token:   secretFrom(cfg.Telegram.Token, cfg.Telegram.TokenEnv),
		BaseURL: cfg.Telegram.BaseURL,
	})
	if err != nil {
		return err
	}

	// 助手会话。
	conversation, err := assistantopenai.NewClient(assistantopenai.Config{
		APIKey:      secretFrom(cfg.Assistant.APIKey, cfg.Assistant.APIKeyEnv),
		AssistantID: cfg.Assistant.AssistantID,
		BaseURL:     cfg.Assistant.BaseURL,
		Timeout:     cfg.Assistant.Timeout(),
	})
	if err != nil {
		return err
	}

	// 内容生成。
	var generator generate.Generator
	generator, err = generateopenai.NewClient(generateopenai.Config{
		APIKey:     secretFrom(cfg.Generator.APIKey, cfg.Generator.APIKeyEnv),
		BaseURL:    cfg.Generator.BaseURL,
		Model:      cfg.Generator.Model,
		ImageModel: cfg.Generator.ImageModel,
		Timeout:    cfg.Generator.Timeout(),
	})
	if err != nil {
		return err
	}

	// 链客户端。
	chainRegistry, err := provider.NewRegistry(ctx, cfg.Chain)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	oracle, err := chainRegistry.DefaultOracle()
	if err != nil {
		return err
	}
	publisher, err := chainRegistry.DefaultPublisher()
	if err != nil {
		return err
	}

	// 会话存储与部署记录。
	sessions, deployments, err := openStorage(ctx, cfg, dataDir)
	if err != nil {
		return err
	}
	defer sessions.Close()
	defer deployments.Close()

	// 部署事件广播。
	sink, err := openEventSink(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	reporter := deploy.NewResultReporter(conversation, channel,
		deploy.WithRepository(deployments),
	)

	pipeline := deploy.NewPipeline(deploy.Config{
		Wallet:          cfg.Chain.DevWallet,
		RequiredBalance: cfg.Chain.RequiredBalance,
		BuyAmount:       cfg.Chain.BuyAmount,
		Suffix:          cfg.Vanity.Suffix,
		MaxAttempts:     cfg.Vanity.MaxAttempts,
		ProgressStride:  cfg.Vanity.ProgressStride,
		Workers:         cfg.Vanity.Workers,
	}, oracle, generator, publisher, reporter,
		deploy.WithMessenger(channel),
		deploy.WithEventSink(sink),
	)

	service := bot.NewService(channel, sessions, conversation, deploy.NewGate(), pipeline)

	botCtx, botCancel := context.WithCancel(ctx)
	defer botCancel()
	go func() {
		if err := service.Run(botCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("机器人主循环异常退出", "error", err)
		}
	}()

	if cfg.Server.MetricsAddress != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Server.MetricsAddress); err != nil && !errors.Is(err, context.Canceled) {
				logger.L().Error("指标服务异常退出", "error", err)
			}
		}()
	}

	guard := auth.NewGuard(secretFrom(cfg.Server.APIToken, cfg.Server.APITokenEnv))
	server := api.NewServer(cfg.Server.Address, deployments, chainRegistry.Chains(), api.WithGuard(guard))
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, dataDir string) (session.Store, mysql.DeploymentRepository, error) {
	store := cfg.Storage.SessionStore
	switch store.Driver {
	case "", "memory":
		sessions, err := session.NewMemoryStore(filepath.Join(dataDir, "threads.json"))
		if err != nil {
			return nil, nil, err
		}
		deployments, err := mysql.NewMemoryDeploymentRepository(dataDir)
		if err != nil {
			return nil, nil, err
		}
		return sessions, deployments, nil
	case "mysql":
		dbCfg := mysql.Config{
			DSN:             store.DSN,
			MaxOpenConns:    store.MaxOpenConns,
			MaxIdleConns:    store.MaxIdleConns,
			ConnMaxLifetime: time.Duration(store.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(store.ConnMaxIdleTimeSeconds) * time.Second,
		}
		sessions, err := mysql.NewSessionStore(ctx, dbCfg)
		if err != nil {
			return nil, nil, err
		}
		deployments, err := mysql.NewSQLDeploymentRepository(ctx, dbCfg)
		if err != nil {
			sessions.Close()
			return nil, nil, err
		}
		return sessions, deployments, nil
	default:
		return nil, nil, fmt.Errorf("未知的存储驱动: %s", store.Driver)
	}
}

func openEventSink(cfg *config.Config) (events.Sink, error) {
	switch cfg.Events.Driver {
	case "", "memory":
		return events.NewMemorySink(256), nil
	case "redis":
		return events.NewRedisSink(events.RedisConfig{
			Address:  cfg.Events.Redis.Address,
			Password: cfg.Events.Redis.Password,
			DB:       cfg.Events.Redis.DB,
			Queue:    cfg.Events.Redis.Queue,
		})
	case "rabbitmq":
		return events.NewRabbitMQSink(events.RabbitMQConfig{
			URL:        cfg.Events.RabbitMQ.URL,
			Queue:      cfg.Events.RabbitMQ.Queue,
			Durable:    cfg.Events.RabbitMQ.Durable,
			AutoDelete: cfg.Events.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Events.Driver)
	}
}

func secretFrom(value, envName string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	if envName != "" {
		return strings.TrimSpace(os.Getenv(envName))
	}
	return ""
}

var _ assistant.Conversation = (*assistantopenai.Client)(nil)
