package telegram

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
)

const (
	defaultBaseURL     = "https://api.telegram.org"
	defaultTimeout     = 65 * time.Second
	defaultPollSeconds = 50
)

// Config 描述 Bot API 客户端的连接参数。
type Config struct {
	Token   string
	BaseURL string
	// PollSeconds 是 getUpdates 长轮询的服务端等待秒数。
	PollSeconds int
	Timeout     time.Duration
}

// Client 是手写的 Telegram Bot API 客户端。
type Client struct {
	token       string
	baseURL     string
	pollSeconds int
	httpClient  *http.Client
}

// User 是消息发送者。
type User struct {
	ID int64 `json:"id"`
}

// Chat 是消息所属会话。
type Chat struct {
	ID int64 `json:"id"`
}

// Message 是一条入站消息。
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Update 是 getUpdates 返回的单个更新。
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// NewClient 创建 Bot API 客户端。
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("未提供 Telegram Bot Token")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	pollSeconds := cfg.PollSeconds
	if pollSeconds <= 0 {
		pollSeconds = defaultPollSeconds
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		token:       token,
		baseURL:     baseURL,
		pollSeconds: pollSeconds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// GetUpdates 以长轮询方式拉取 offset 之后的更新。
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	body, err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         c.pollSeconds,
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(body, &updates); err != nil {
		return nil, fmt.Errorf("解析更新列表失败: %w", err)
	}
	return updates, nil
}

// SendText 发送纯文本消息。
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	_, err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	return err
}

// SendPhoto 发送带说明文字的图片。
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	_, err := c.call(ctx, "sendPhoto", map[string]any{
		"chat_id": chatID,
		"photo":   photoURL,
		"caption": caption,
	})
	return err
}

// SendTyping 发送输入中状态指示。
func (c *Client) SendTyping(ctx context.Context, chatID string) error {
	_, err := c.call(ctx, "sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  "typing",
	})
	return err
}

func (c *Client) call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("序列化 %s 请求失败: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建 %s 请求失败: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求 Telegram 失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("读取 Telegram 响应失败: %w", err)
	}

	var decoded struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("解析 Telegram 响应失败: %w", err)
	}
	if !decoded.OK {
		return nil, fmt.Errorf("Telegram %s 调用失败: %s", method, decoded.Description)
	}
	return decoded.Result, nil
}
