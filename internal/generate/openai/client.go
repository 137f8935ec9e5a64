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

	"OpenMint-Chain/internal/generate"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModelName  = "gpt-4o"
	defaultImageModel = "dall-e-3"
	defaultTimeout    = 120 * time.Second
)

// Config 描述了调用 OpenAI 生成元数据与图像所需的信息。
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
	Timeout    time.Duration
}

// Client 通过 HTTP 调用 OpenAI 完成元数据与配图的两段式生成。
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	imageModel string
	httpClient *http.Client
}

// NewClient 根据配置创建生成客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}
	imageModel := strings.TrimSpace(cfg.ImageModel)
	if imageModel == "" {
		imageModel = defaultImageModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		imageModel: imageModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Generate 先生成结构化元数据，再为其生成配图。
func (c *Client) Generate(ctx context.Context, idea string) (*generate.TokenMetadata, error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, errors.New("概念不能为空")
	}

	metadata, err := c.generateMetadata(ctx, idea)
	if err != nil {
		return nil, err
	}

	imageURL, err := c.generateImage(ctx, metadata)
	if err != nil {
		return nil, err
	}
	metadata.ImageURL = imageURL

	return metadata, nil
}

func (c *Client) generateMetadata(ctx context.Context, idea string) (*generate.TokenMetadata, error) {
	payload, err := json.Marshal(map[string]any{
		"model":      c.model,
		"max_tokens": 100,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": metadataPrompt(idea),
			},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("序列化元数据请求失败: %w", err)
	}

	body, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("解析元数据响应失败: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("元数据响应中没有有效的 choices")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	var metadata generate.TokenMetadata
	if err := json.Unmarshal([]byte(content), &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据 JSON 失败: %w", err)
	}
	if metadata.Name == "" || metadata.Symbol == "" {
		return nil, errors.New("元数据缺少 name 或 symbol 字段")
	}
	return &metadata, nil
}

func (c *Client) generateImage(ctx context.Context, metadata *generate.TokenMetadata) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model":   c.imageModel,
		"prompt":  imagePrompt(metadata),
		"n":       1,
		"size":    "1024x1024",
		"quality": "standard",
	})
	if err != nil {
		return "", fmt.Errorf("序列化图像请求失败: %w", err)
	}

	body, err := c.post(ctx, "/images/generations", payload)
	if err != nil {
		return "", err
	}

	var decoded struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("解析图像响应失败: %w", err)
	}
	if len(decoded.Data) == 0 || strings.TrimSpace(decoded.Data[0].URL) == "" {
		return "", errors.New("图像响应中没有可用的 URL")
	}
	return decoded.Data[0].URL, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构建 OpenAI 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("请求 OpenAI 失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("读取 OpenAI 响应失败: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("OpenAI 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func metadataPrompt(idea string) string {
	var builder strings.Builder
	builder.WriteString("Generate token metadata based on the following schema, deeply inspired by the provided concept idea. ")
	builder.WriteString("Envision this token as a sophisticated digital artifact, merging elegance with the unique qualities of the concept. ")
	builder.WriteString("The name should directly evoke the concept's intrigue, beauty, or exclusivity. ")
	builder.WriteString("The symbol must be a concise, memorable abbreviation. ")
	builder.WriteString("The description should distill the concept's core with a layer of mystery or philosophical depth.\n\n")
	builder.WriteString("Concept idea: ")
	builder.WriteString(idea)
	builder.WriteString("\n\nSchema: {\"name\": string, \"symbol\": string, \"description\": string}\n")
	builder.WriteString("Constraints:\n- Name: max 32 characters\n- Symbol: max 6 characters\n- Description: max 100 characters\n")
	builder.WriteString("Return JSON object only.")
	return builder.String()
}

func imagePrompt(metadata *generate.TokenMetadata) string {
	return fmt.Sprintf(""+
		"Create an ultra-realistic, smooth, and fluid image that visually represents the essence described by the token's name, symbol, and description. "+
		"Use soft gradients and flowing shapes with a clean and futuristic look. "+
		"Colors should be vibrant yet fluid, using sophisticated tones like metallic blues, silvers, and soft neutrals. "+
		"NO text should appear in the image, NEVER.\n\n"+
		"Name: %s\nSymbol: %s\nDescription: %s",
		metadata.Name, metadata.Symbol, metadata.Description)
}
