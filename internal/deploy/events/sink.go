package events

import "context"

// Type 区分事件类别。
type Type string

const (
	// TypeStage 表示流水线进入了一个新阶段。
	TypeStage Type = "stage"
	// TypeTerminal 表示流水线到达终态。
	TypeTerminal Type = "terminal"
)

// Event 是对外广播的部署事件。永不携带私钥材料。
type Event struct {
	Type           Type   `json:"type"`
	DeploymentID   string `json:"deployment_id"`
	ConversationID string `json:"conversation_id"`
	Stage          string `json:"stage"`
	ErrorCode      string `json:"error_code,omitempty"`
	MintAddress    string `json:"mint_address,omitempty"`
	DeployURL      string `json:"deploy_url,omitempty"`
	SearchAttempts uint64 `json:"search_attempts,omitempty"`
	At             int64  `json:"at"`
}

// Sink 抽象部署事件的下游投递通道。
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
