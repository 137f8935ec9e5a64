package deploy

import (
	"context"
	"fmt"
	"time"

	"OpenMint-Chain/internal/chain"
	"OpenMint-Chain/internal/deploy/events"
	"OpenMint-Chain/internal/generate"
	"OpenMint-Chain/internal/observability/metrics"
	"OpenMint-Chain/internal/vanity"
	"OpenMint-Chain/pkg/logger"
)

// Messenger 是流水线向最终用户推送消息的最小能力集合。
type Messenger interface {
	SendText(ctx context.Context, conversationID, text string) error
	SendPhoto(ctx context.Context, conversationID, photoURL, caption string) error
}

// Reporter 消费流水线的进度事件与终态上下文。
type Reporter interface {
	Progress(ctx context.Context, pc *Context, progress vanity.Progress)
	Report(ctx context.Context, pc *Context)
}

// Config 描述流水线的固定参数。
type Config struct {
	// Wallet 是 CheckingFunds 阶段检查余额的运营钱包。
	Wallet          string
	RequiredBalance float64
	BuyAmount       float64

	Suffix         string
	MaxAttempts    uint64
	ProgressStride uint64
	Workers        int
}

// Pipeline 按固定顺序执行五个部署阶段，任一阶段失败即短路终止。
// 阶段内部不做重试；重试语义属于新一次触发。
type Pipeline struct {
	cfg       Config
	oracle    chain.BalanceOracle
	generator generate.Generator
	publisher chain.Publisher
	reporter  Reporter

	messenger Messenger
	sink      events.Sink
	keygen    vanity.Generator
}

// PipelineOption 配置可选依赖。
type PipelineOption func(*Pipeline)

// WithMessenger 启用面向用户的阶段性通知。
func WithMessenger(messenger Messenger) PipelineOption {
	return func(p *Pipeline) { p.messenger = messenger }
}

// WithEventSink 启用部署事件广播。
func WithEventSink(sink events.Sink) PipelineOption {
	return func(p *Pipeline) { p.sink = sink }
}

// WithKeypairGenerator 替换候选密钥对生成器。
func WithKeypairGenerator(generator vanity.Generator) PipelineOption {
	return func(p *Pipeline) { p.keygen = generator }
}

// NewPipeline 组装流水线。
func NewPipeline(cfg Config, oracle chain.BalanceOracle, generator generate.Generator, publisher chain.Publisher, reporter Reporter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		oracle:    oracle,
		generator: generator,
		publisher: publisher,
		reporter:  reporter,
		keygen:    vanity.RandomGenerator{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Run 执行一次完整的部署流水线并返回终态上下文。
// 每个阶段至多执行一次；失败阶段即该次调用的终点。
func (p *Pipeline) Run(ctx context.Context, pc *Context) *Context {
	pc.StartedAt = time.Now()

	p.checkFunds(ctx, pc)
	if pc.Stage != StageAborted {
		p.generateContent(ctx, pc)
	}
	if pc.Stage != StageAborted {
		p.searchAddress(ctx, pc)
	}
	if pc.Stage != StageAborted {
		p.publish(ctx, pc)
	}

	p.finish(ctx, pc)
	return pc
}

func (p *Pipeline) checkFunds(ctx context.Context, pc *Context) {
	p.enter(ctx, pc, StageCheckingFunds)
	p.notify(ctx, pc, "Checking wallet balance...")

	balance, err := p.oracle.GetBalance(ctx, p.cfg.Wallet)
	if err != nil {
		logger.L().Warn("余额查询失败",
			"deployment_id", pc.ID,
			"oracle", p.oracle.Name(),
			"error", err,
		)
		pc.abort(StageCheckingFunds, CodeOracleUnavailable, err.Error())
		return
	}
	if balance < p.cfg.RequiredBalance {
		pc.abort(StageCheckingFunds, CodeInsufficientFunds, "insufficient funds")
		pc.Err.ObservedBalance = &balance
		return
	}
	logger.L().Info("余额检查通过",
		"deployment_id", pc.ID,
		"balance", balance,
		"required", p.cfg.RequiredBalance,
	)
}

func (p *Pipeline) generateContent(ctx context.Context, pc *Context) {
	p.enter(ctx, pc, StageGeneratingContent)
	p.notify(ctx, pc, "Generating token metadata...")

	metadata, err := p.generator.Generate(ctx, pc.IdeaText)
	if err != nil {
		pc.abort(StageGeneratingContent, CodeGenerationFailure, err.Error())
		return
	}
	pc.Metadata = metadata

	if p.messenger != nil && metadata.ImageURL != "" {
		caption := fmt.Sprintf("Name: %s\nSymbol: %s\nDescription: %s", metadata.Name, metadata.Symbol, metadata.Description)
		if err := p.messenger.SendPhoto(ctx, pc.ConversationID, metadata.ImageURL, caption); err != nil {
			logger.L().Warn("发送元数据预览失败", "deployment_id", pc.ID, "error", err)
		}
	}
}

func (p *Pipeline) searchAddress(ctx context.Context, pc *Context) {
	p.enter(ctx, pc, StageSearchingAddress)
	p.notify(ctx, pc, fmt.Sprintf("Searching for a token address ending in %q...", p.cfg.Suffix))

	started := time.Now()
	pair, err := vanity.Search(ctx, vanity.Options{
		Suffix:         p.cfg.Suffix,
		MaxAttempts:    p.cfg.MaxAttempts,
		ProgressStride: p.cfg.ProgressStride,
		Workers:        p.cfg.Workers,
		Generator:      p.keygen,
		Observer: func(progress vanity.Progress) {
			pc.SearchAttempts = progress.Attempts
			p.reporter.Progress(ctx, pc, progress)
		},
	})
	metrics.AddSearchAttempts(pc.SearchAttempts)
	if err != nil {
		pc.abort(StageSearchingAddress, CodeSearchExhausted, "exhausted")
		return
	}
	pc.Keypair = &pair
	logger.L().Info("找到满足后缀的地址",
		"deployment_id", pc.ID,
		"address", pair.Address(),
		"elapsed", time.Since(started).String(),
	)
	p.notify(ctx, pc, "Address found: "+pair.Address())
}

func (p *Pipeline) publish(ctx context.Context, pc *Context) {
	p.enter(ctx, pc, StagePublishing)
	p.notify(ctx, pc, "Publishing token...")

	result, err := p.publisher.Publish(ctx, chain.LaunchRequest{
		Name:        pc.Metadata.Name,
		Symbol:      pc.Metadata.Symbol,
		Description: pc.Metadata.Description,
		ImageURL:    pc.Metadata.ImageURL,
		Mint:        *pc.Keypair,
		BuyAmount:   p.cfg.BuyAmount,
	})
	if err != nil {
		pc.abort(StagePublishing, CodePublishFailure, err.Error())
		return
	}
	pc.DeployURL = result.URL
	pc.Signature = result.Signature
}

// finish 把终态上下文交给报告器，并广播终态事件。
func (p *Pipeline) finish(ctx context.Context, pc *Context) {
	if pc.Stage != StageAborted {
		p.enter(ctx, pc, StageReporting)
		p.reporter.Report(ctx, pc)
		pc.Stage = StageDone
	} else {
		p.reporter.Report(ctx, pc)
	}

	duration := time.Since(pc.StartedAt)
	errorCode := ""
	if pc.Err != nil {
		errorCode = string(pc.Err.Code)
	}
	metrics.ObserveDeployment(string(pc.Stage), errorCode, duration)
	p.emit(ctx, pc, events.TypeTerminal)

	logger.Audit().Info("部署流水线结束",
		"deployment_id", pc.ID,
		"conversation_id", pc.ConversationID,
		"state", string(pc.Stage),
		"error_code", errorCode,
		"duration", duration.String(),
	)
}

func (p *Pipeline) enter(ctx context.Context, pc *Context, stage Stage) {
	pc.Stage = stage
	logger.L().Info("进入部署阶段", "deployment_id", pc.ID, "stage", string(stage))
	p.emit(ctx, pc, events.TypeStage)
}

func (p *Pipeline) notify(ctx context.Context, pc *Context, text string) {
	if p.messenger == nil {
		return
	}
	if err := p.messenger.SendText(ctx, pc.ConversationID, text); err != nil {
		logger.L().Warn("发送阶段通知失败", "deployment_id", pc.ID, "error", err)
	}
}

func (p *Pipeline) emit(ctx context.Context, pc *Context, eventType events.Type) {
	if p.sink == nil {
		return
	}
	event := events.Event{
		Type:           eventType,
		DeploymentID:   pc.ID,
		ConversationID: pc.ConversationID,
		Stage:          string(pc.Stage),
		SearchAttempts: pc.SearchAttempts,
		At:             time.Now().Unix(),
	}
	if pc.Err != nil {
		event.ErrorCode = string(pc.Err.Code)
	}
	if eventType == events.TypeTerminal {
		if pc.Keypair != nil {
			event.MintAddress = pc.Keypair.Address()
		}
		event.DeployURL = pc.DeployURL
	}
	if err := p.sink.Publish(ctx, event); err != nil {
		logger.L().Warn("广播部署事件失败", "deployment_id", pc.ID, "error", err)
	}
}
