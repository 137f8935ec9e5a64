package bot

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"OpenMint-Chain/internal/assistant"
	"OpenMint-Chain/internal/deploy"
	"OpenMint-Chain/internal/session"
	"OpenMint-Chain/internal/telegram"
	"OpenMint-Chain/pkg/logger"
)

const defaultToolName = "deploy_token"

// Channel 是机器人依赖的消息通道能力集合。
type Channel interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendText(ctx context.Context, chatID, text string) error
	SendPhoto(ctx context.Context, chatID, photoURL, caption string) error
	SendTyping(ctx context.Context, chatID string) error
}

// PipelineRunner 执行一次部署流水线并返回终态上下文。
type PipelineRunner interface {
	Run(ctx context.Context, pc *deploy.Context) *deploy.Context
}

// Service 把 Telegram 更新流接入助手会话，并在助手请求部署工具时
// 通过准入闸门触发部署流水线。
type Service struct {
	channel      Channel
	sessions     session.Store
	conversation assistant.Conversation
	gate         *deploy.Gate
	pipeline     PipelineRunner

	toolName string
}

// Option 定义可选配置。
type Option func(*Service)

// WithToolName 覆盖触发部署的工具名。
func WithToolName(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.toolName = name
		}
	}
}

// NewService 组装机器人服务。
func NewService(channel Channel, sessions session.Store, conversation assistant.Conversation, gate *deploy.Gate, pipeline PipelineRunner, opts ...Option) *Service {
	s := &Service{
		channel:      channel,
		sessions:     sessions,
		conversation: conversation,
		gate:         gate,
		pipeline:     pipeline,
		toolName:     defaultToolName,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run 持续拉取更新并分发处理，直到上下文取消。
// 不同会话的消息并行处理；同一会话内的部署由闸门串行化。
func (s *Service) Run(ctx context.Context) error {
	var offset int64
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := s.channel.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.L().Warn("拉取更新失败", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			message := *update.Message
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.HandleMessage(ctx, message)
			}()
		}
	}
}

// HandleMessage 处理一条入站消息。
func (s *Service) HandleMessage(ctx context.Context, message telegram.Message) {
	userID := strconv.FormatInt(message.From.ID, 10)
	chatID := strconv.FormatInt(message.Chat.ID, 10)
	text := strings.TrimSpace(message.Text)
	if text == "" {
		return
	}

	threadID, err := s.resolveThread(ctx, userID)
	if err != nil {
		logger.L().Error("解析会话线程失败", "user_id", userID, "error", err)
		s.sendText(ctx, chatID, "Something went wrong while preparing your session. Please try again.")
		return
	}

	if text == "/start" {
		s.sendText(ctx, chatID, "Welcome! Your session is ready (thread "+threadID+"). Describe a token idea and I will take it from there.")
		return
	}

	if err := s.conversation.PostUserMessage(ctx, threadID, text); err != nil {
		logger.L().Warn("追加用户消息失败", "thread_id", threadID, "error", err)
		s.sendText(ctx, chatID, "Please wait for the previous response to finish.")
		return
	}

	if err := s.channel.SendTyping(ctx, chatID); err != nil {
		logger.L().Warn("发送输入状态失败", "chat_id", chatID, "error", err)
	}

	events, err := s.conversation.StreamRun(ctx, threadID)
	if err != nil {
		logger.L().Warn("启动助手运行失败", "thread_id", threadID, "error", err)
		s.sendText(ctx, chatID, "Please wait for the previous response to finish.")
		return
	}

	for event := range events {
		switch event.Type {
		case assistant.EventToolAction:
			s.handleToolAction(ctx, chatID, threadID, text, event)
		case assistant.EventMessage:
			s.sendText(ctx, chatID, event.Text)
		case assistant.EventFailed:
			logger.L().Warn("助手运行失败", "thread_id", threadID, "error", event.Err)
			s.sendText(ctx, chatID, "Something went wrong. Please try again.")
		}
	}
}

// handleToolAction 响应助手的工具调用请求。部署工具经由闸门准入；
// 闸门拒绝时只产生一条等待提示，不排队也不执行流水线。
func (s *Service) handleToolAction(ctx context.Context, chatID, threadID, fallbackIdea string, event assistant.Event) {
	for _, call := range event.ToolCalls {
		if call.Name != s.toolName {
			s.submitToolOutput(ctx, threadID, event.RunID, call.ID, `{"error":"unknown tool"}`)
			continue
		}

		lease, err := s.gate.Admit(chatID)
		if stdErrors.Is(err, deploy.ErrBusy) {
			s.sendText(ctx, chatID, "Please wait for the previous deployment to finish.")
			s.submitToolOutput(ctx, threadID, event.RunID, call.ID, `{"state":"Busy"}`)
			continue
		}
		if err != nil {
			logger.L().Error("申请部署租约失败", "chat_id", chatID, "error", err)
			s.submitToolOutput(ctx, threadID, event.RunID, call.ID, `{"state":"Aborted","error":"internal error"}`)
			continue
		}

		pc := &deploy.Context{
			ID:             uuid.NewString(),
			ConversationID: chatID,
			ThreadID:       threadID,
			RunID:          event.RunID,
			ToolCallID:     call.ID,
			IdeaText:       parseIdea(call.Arguments, fallbackIdea),
		}
		s.pipeline.Run(ctx, pc)
		lease.Release()
	}
}

func (s *Service) resolveThread(ctx context.Context, userID string) (string, error) {
	threadID, err := s.sessions.Resolve(ctx, userID)
	if err == nil {
		return threadID, nil
	}
	if !stdErrors.Is(err, session.ErrNotFound) {
		return "", err
	}

	threadID, err = s.conversation.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	if err := s.sessions.Save(ctx, userID, threadID); err != nil {
		return "", err
	}
	return threadID, nil
}

func (s *Service) sendText(ctx context.Context, chatID, text string) {
	if err := s.channel.SendText(ctx, chatID, text); err != nil {
		logger.L().Warn("发送消息失败", "chat_id", chatID, "error", err)
	}
}

func (s *Service) submitToolOutput(ctx context.Context, threadID, runID, toolCallID, output string) {
	err := s.conversation.SubmitToolOutputs(ctx, threadID, runID, []assistant.ToolOutput{
		{ToolCallID: toolCallID, Output: output},
	})
	if err != nil {
		logger.L().Warn("回传工具结果失败", "thread_id", threadID, "error", err)
	}
}

func parseIdea(arguments, fallback string) string {
	var decoded struct {
		Idea string `json:"idea"`
	}
	if err := json.Unmarshal([]byte(arguments), &decoded); err == nil && strings.TrimSpace(decoded.Idea) != "" {
		return decoded.Idea
	}
	return fallback
}
