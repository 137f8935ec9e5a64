package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"OpenMint-Chain/internal/assistant"
	"OpenMint-Chain/internal/observability/alerting"
	"OpenMint-Chain/internal/storage/mysql"
	"OpenMint-Chain/internal/vanity"
	"OpenMint-Chain/pkg/logger"
)

// ToolResultSink 把结构化工具结果回传给助手会话。
type ToolResultSink interface {
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []assistant.ToolOutput) error
}

// ResultReporter 把每个终态转换为恰好一条工具结果与一条用户消息。
// 投递失败只记录日志，绝不回流到流水线；私钥材料从不出现在任何输出中。
type ResultReporter struct {
	conversation ToolResultSink
	messenger    Messenger

	repo   mysql.DeploymentRepository
	alerts alerting.Dispatcher
}

// ReporterOption 配置可选依赖。
type ReporterOption func(*ResultReporter)

// WithRepository 启用部署记录落库。
func WithRepository(repo mysql.DeploymentRepository) ReporterOption {
	return func(r *ResultReporter) { r.repo = repo }
}

// WithAlerts 启用高危失败告警。
func WithAlerts(dispatcher alerting.Dispatcher) ReporterOption {
	return func(r *ResultReporter) { r.alerts = dispatcher }
}

// NewResultReporter 组装报告器。
func NewResultReporter(conversation ToolResultSink, messenger Messenger, opts ...ReporterOption) *ResultReporter {
	r := &ResultReporter{conversation: conversation, messenger: messenger}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

type toolResult struct {
	State       string `json:"state"`
	DeployURL   string `json:"deploy_url,omitempty"`
	MintAddress string `json:"mint_address,omitempty"`
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	ErrorStage  string `json:"error_stage,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Progress 记录搜索进度。事件按非递减的尝试次数到达。
func (r *ResultReporter) Progress(_ context.Context, pc *Context, progress vanity.Progress) {
	logger.L().Info("地址搜索进度",
		"deployment_id", pc.ID,
		"attempts", progress.Attempts,
		"limit", progress.Limit,
	)
}

// Report 上报终态。成功与失败都恰好产生一条工具结果与一条用户消息。
func (r *ResultReporter) Report(ctx context.Context, pc *Context) {
	aborted := pc.Err != nil

	result := toolResult{State: "Done"}
	if aborted {
		result.State = "Aborted"
		result.ErrorStage = string(pc.Err.Stage)
		result.Error = pc.Err.Cause
	} else {
		result.DeployURL = pc.DeployURL
		if pc.Keypair != nil {
			result.MintAddress = pc.Keypair.Address()
		}
		if pc.Metadata != nil {
			result.Name = pc.Metadata.Name
			result.Symbol = pc.Metadata.Symbol
		}
	}

	payload, err := json.Marshal(result)
	if err != nil {
		logger.L().Error("序列化工具结果失败", "deployment_id", pc.ID, "error", err)
		payload = []byte(`{"state":"Aborted","error":"internal error"}`)
	}
	if err := r.conversation.SubmitToolOutputs(ctx, pc.ThreadID, pc.RunID, []assistant.ToolOutput{
		{ToolCallID: pc.ToolCallID, Output: string(payload)},
	}); err != nil {
		logger.L().Warn("回传工具结果失败", "deployment_id", pc.ID, "error", err)
	}

	if err := r.messenger.SendText(ctx, pc.ConversationID, r.userMessage(pc)); err != nil {
		logger.L().Warn("发送终态消息失败", "deployment_id", pc.ID, "error", err)
	}

	r.persist(ctx, pc)
	r.alert(ctx, pc)
}

func (r *ResultReporter) userMessage(pc *Context) string {
	if pc.Err == nil {
		return "Token deployed successfully!\n" + pc.DeployURL
	}
	switch pc.Err.Code {
	case CodeInsufficientFunds:
		if pc.Err.ObservedBalance != nil {
			return fmt.Sprintf("Insufficient funds: the wallet holds %.2f SOL but more is required. Please top up and try again.", *pc.Err.ObservedBalance)
		}
		return "Insufficient funds. Please top up the wallet and try again."
	case CodeOracleUnavailable:
		return "Could not fetch the wallet balance. Please try again later."
	case CodeGenerationFailure:
		return "Content generation failed: " + pc.Err.Cause
	case CodeSearchExhausted:
		return "Could not find a matching token address in time. Please try again."
	case CodePublishFailure:
		return "Deployment failed: " + pc.Err.Cause
	default:
		return "Deployment aborted: " + pc.Err.Cause
	}
}

func (r *ResultReporter) persist(ctx context.Context, pc *Context) {
	if r.repo == nil {
		return
	}
	record := mysql.DeploymentRecord{
		ID:             pc.ID,
		UserID:         pc.ConversationID,
		ThreadID:       pc.ThreadID,
		State:          "Done",
		SearchAttempts: pc.SearchAttempts,
		DurationMS:     time.Since(pc.StartedAt).Milliseconds(),
		CreatedAt:      time.Now().Unix(),
	}
	if pc.Err != nil {
		record.State = "Aborted"
		record.FailedStage = string(pc.Err.Stage)
		record.ErrorCode = string(pc.Err.Code)
		record.ErrorMessage = pc.Err.Cause
	}
	if pc.Metadata != nil {
		record.TokenName = pc.Metadata.Name
		record.TokenSymbol = pc.Metadata.Symbol
		record.TokenDesc = pc.Metadata.Description
		record.ImageURL = pc.Metadata.ImageURL
	}
	if pc.Keypair != nil {
		record.MintAddress = pc.Keypair.Address()
	}
	record.DeployURL = pc.DeployURL
	record.Signature = pc.Signature

	if err := r.repo.Save(ctx, record); err != nil {
		logger.L().Warn("部署记录落库失败", "deployment_id", pc.ID, "error", err)
	}
}

func (r *ResultReporter) alert(ctx context.Context, pc *Context) {
	if r.alerts == nil || pc.Err == nil {
		return
	}
	if pc.Err.Code != CodePublishFailure && pc.Err.Code != CodeOracleUnavailable {
		return
	}
	event := alerting.Event{
		Code:         pc.Err.Code,
		Message:      pc.Err.Cause,
		Severity:     pc.Err.Severity(),
		DeploymentID: pc.ID,
		Stage:        string(pc.Err.Stage),
		OccurredAt:   time.Now(),
	}
	if err := r.alerts.Notify(ctx, event); err != nil {
		logger.L().Warn("发送部署告警失败", "deployment_id", pc.ID, "error", err)
	}
}
