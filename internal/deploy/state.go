package deploy

import (
	"time"

	xerrors "OpenMint-Chain/internal/errors"
	"OpenMint-Chain/internal/generate"
	"OpenMint-Chain/internal/vanity"
)

// Stage 标识流水线状态机中的一个状态。
type Stage string

const (
	StageCheckingFunds     Stage = "CheckingFunds"
	StageGeneratingContent Stage = "GeneratingContent"
	StageSearchingAddress  Stage = "SearchingAddress"
	StagePublishing        Stage = "Publishing"
	StageReporting         Stage = "Reporting"
	StageDone              Stage = "Done"
	StageAborted           Stage = "Aborted"
)

// 部署域的错误码。
const (
	CodeInsufficientFunds xerrors.Code = "INSUFFICIENT_FUNDS"
	CodeOracleUnavailable xerrors.Code = "ORACLE_UNAVAILABLE"
	CodeGenerationFailure xerrors.Code = "GENERATION_FAILURE"
	CodeSearchExhausted   xerrors.Code = "SEARCH_EXHAUSTED"
	CodePublishFailure    xerrors.Code = "PUBLISH_FAILURE"
	CodeBusy              xerrors.Code = "DEPLOY_BUSY"
)

func init() {
	xerrors.Register(CodeInsufficientFunds, xerrors.Attributes{
		Message:  "insufficient funds",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeOracleUnavailable, xerrors.Attributes{
		Message:   "balance oracle unavailable",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeGenerationFailure, xerrors.Attributes{
		Message:  "content generation failed",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeSearchExhausted, xerrors.Attributes{
		Message:  "address search exhausted",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodePublishFailure, xerrors.Attributes{
		Message:  "publish failed",
		Severity: xerrors.SeverityCritical,
		Alert:    true,
	})
	xerrors.Register(CodeBusy, xerrors.Attributes{
		Message:  "deployment already in flight",
		Severity: xerrors.SeverityInfo,
	})
}

// StageError 记录导致流水线终止的阶段性失败。
type StageError struct {
	Stage Stage
	Code  xerrors.Code
	// Cause 保留协作方的原始错误文案，原样上报。
	Cause string
	// ObservedBalance 仅在余额不足时填充。
	ObservedBalance *float64
}

// Severity 返回该失败对应错误码的严重程度。
func (e *StageError) Severity() xerrors.Severity {
	return xerrors.AttributesOf(e.Code).Severity
}

// Context 是一次被准入的部署调用所独占的可变上下文。
// 私钥材料只在 Keypair 中短暂停留，绝不进入日志或上报内容。
type Context struct {
	ID             string
	ConversationID string
	ThreadID       string
	RunID          string
	ToolCallID     string
	IdeaText       string

	Stage          Stage
	Metadata       *generate.TokenMetadata
	Keypair        *vanity.Keypair
	SearchAttempts uint64
	DeployURL      string
	Signature      string
	Err            *StageError

	StartedAt time.Time
}

// Terminal 报告上下文是否已到达终态。
func (c *Context) Terminal() bool {
	return c.Stage == StageDone || c.Stage == StageAborted
}

func (c *Context) abort(stage Stage, code xerrors.Code, cause string) {
	c.Stage = StageAborted
	c.Err = &StageError{Stage: stage, Code: code, Cause: cause}
}
