package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"OpenMint-Chain/internal/assistant"
	"OpenMint-Chain/pkg/logger"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	defaultPollInterval = 800 * time.Millisecond
	defaultTimeout      = 30 * time.Second
)

// Config 描述了访问 OpenAI Assistants v2 所需的信息。
type Config struct {
	APIKey       string
	AssistantID  string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Client 是基于轮询的 Assistants v2 客户端。
type Client struct {
	apiKey       string
	assistantID  string
	baseURL      string
	pollInterval time.Duration
	httpClient   *http.Client
}

// NewClient 根据配置创建助手客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}
	assistantID := strings.TrimSpace(cfg.AssistantID)
	if assistantID == "" {
		return nil, errors.New("未提供 Assistant ID")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:       apiKey,
		assistantID:  assistantID,
		baseURL:      baseURL,
		pollInterval: pollInterval,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type runPayload struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

// CreateThread 创建一个新的会话线程并返回其 ID。
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/threads", []byte("{}"))
	if err != nil {
		return "", err
	}
	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("解析线程响应失败: %w", err)
	}
	if decoded.ID == "" {
		return "", errors.New("线程响应中缺少 id")
	}
	return decoded.ID, nil
}

// PostUserMessage 向线程追加一条用户消息。
func (c *Client) PostUserMessage(ctx context.Context, threadID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"role":    "user",
		"content": text,
	})
	if err != nil {
		return fmt.Errorf("序列化用户消息失败: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", payload)
	return err
}

// StreamRun 在线程上启动一次运行，并通过通道暴露轮询事件。
// 通道在运行到达终态后关闭。
func (c *Client) StreamRun(ctx context.Context, threadID string) (<-chan assistant.Event, error) {
	payload, err := json.Marshal(map[string]string{"assistant_id": c.assistantID})
	if err != nil {
		return nil, fmt.Errorf("序列化运行请求失败: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", payload)
	if err != nil {
		return nil, err
	}
	var run runPayload
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("解析运行响应失败: %w", err)
	}
	if run.ID == "" {
		return nil, errors.New("运行响应中缺少 id")
	}

	events := make(chan assistant.Event, 8)
	go c.poll(ctx, threadID, run.ID, events)
	return events, nil
}

// SubmitToolOutputs 提交工具输出，使 requires_action 状态的运行继续。
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []assistant.ToolOutput) error {
	items := make([]map[string]string, 0, len(outputs))
	for _, output := range outputs {
		items = append(items, map[string]string{
			"tool_call_id": output.ToolCallID,
			"output":       output.Output,
		})
	}
	payload, err := json.Marshal(map[string]any{"tool_outputs": items})
	if err != nil {
		return fmt.Errorf("序列化工具输出失败: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs/"+runID+"/submit_tool_outputs", payload)
	return err
}

func (c *Client) poll(ctx context.Context, threadID, runID string, events chan<- assistant.Event) {
	defer close(events)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	toolActionSent := false
	for {
		run, err := c.fetchRun(ctx, threadID, runID)
		if err != nil {
			events <- assistant.Event{Type: assistant.EventFailed, RunID: runID, Err: err}
			return
		}

		switch run.Status {
		case "requires_action":
			if !toolActionSent && run.RequiredAction != nil {
				calls := make([]assistant.ToolCall, 0, len(run.RequiredAction.SubmitToolOutputs.ToolCalls))
				for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
					calls = append(calls, assistant.ToolCall{
						ID:        call.ID,
						Name:      call.Function.Name,
						Arguments: call.Function.Arguments,
					})
				}
				toolActionSent = true
				events <- assistant.Event{Type: assistant.EventToolAction, RunID: runID, ToolCalls: calls}
			}
		case "completed":
			text, err := c.latestAssistantMessage(ctx, threadID)
			if err != nil {
				logger.L().Warn("拉取助手回复失败", "thread_id", threadID, "error", err)
			} else if text != "" {
				events <- assistant.Event{Type: assistant.EventMessage, RunID: runID, Text: text}
			}
			events <- assistant.Event{Type: assistant.EventCompleted, RunID: runID}
			return
		case "failed", "cancelled", "expired", "incomplete":
			failure := fmt.Errorf("运行以 %s 状态结束", run.Status)
			if run.LastError != nil && run.LastError.Message != "" {
				failure = fmt.Errorf("运行以 %s 状态结束: %s", run.Status, run.LastError.Message)
			}
			events <- assistant.Event{Type: assistant.EventFailed, RunID: runID, Err: failure}
			return
		}

		select {
		case <-ctx.Done():
			events <- assistant.Event{Type: assistant.EventFailed, RunID: runID, Err: ctx.Err()}
			return
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchRun(ctx context.Context, threadID, runID string) (*runPayload, error) {
	body, err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil)
	if err != nil {
		return nil, err
	}
	var run runPayload
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("解析运行状态失败: %w", err)
	}
	return &run, nil
}

func (c *Client) latestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/messages?limit=1&order=desc", nil)
	if err != nil {
		return "", err
	}
	var decoded struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("解析消息列表失败: %w", err)
	}
	if len(decoded.Data) == 0 || decoded.Data[0].Role != "assistant" {
		return "", nil
	}
	var builder strings.Builder
	for _, part := range decoded.Data[0].Content {
		if part.Type == "text" {
			builder.WriteString(part.Text.Value)
		}
	}
	return strings.TrimSpace(builder.String()), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("构建助手请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("OpenAI-Beta", "assistants=v2")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求助手服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("读取助手响应失败: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("助手服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
