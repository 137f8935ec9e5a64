package assistant

import "context"

// EventType 标识一次运行轮询流中的事件类别。
type EventType string

const (
	// EventToolAction 表示助手请求执行工具调用，需要提交工具输出后运行才会继续。
	EventToolAction EventType = "tool_action"
	// EventMessage 表示助手产出了一条面向用户的文本回复。
	EventMessage EventType = "message"
	// EventCompleted 表示运行正常结束。
	EventCompleted EventType = "completed"
	// EventFailed 表示运行以失败、取消或过期告终。
	EventFailed EventType = "failed"
)

// ToolCall 是助手在 requires_action 状态下发出的单个函数调用。
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput 是针对某个工具调用回传的结构化结果。
type ToolOutput struct {
	ToolCallID string
	Output     string
}

// Event 是运行轮询流对外暴露的最小事件单元。
type Event struct {
	Type      EventType
	RunID     string
	Text      string
	ToolCalls []ToolCall
	Err       error
}

// Conversation 定义了与会话式助手交互的能力集合。
// StreamRun 返回的通道在运行到达终态后关闭；收到 EventToolAction 后
// 必须调用 SubmitToolOutputs，否则流会停在 requires_action 状态。
type Conversation interface {
	CreateThread(ctx context.Context) (string, error)
	PostUserMessage(ctx context.Context, threadID, text string) error
	StreamRun(ctx context.Context, threadID string) (<-chan Event, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error
}
