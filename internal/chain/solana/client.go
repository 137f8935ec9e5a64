package solana

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

	"github.com/mr-tron/base58"

	"OpenMint-Chain/internal/chain"
)

const (
	defaultRPCURL  = "https://api.mainnet-beta.solana.com"
	defaultTimeout = 60 * time.Second
)

// Config 描述构造 Solana 客户端所需的信息。
type Config struct {
	Name      string
	RPCURL    string
	LaunchURL string
	Notes     string
	Timeout   time.Duration
}

// Client 通过 JSON-RPC 查询余额，并通过发射服务提交 create-and-buy 交易。
// 发射交易的构造与签名委托给运营方自建的发射服务，本进程只持有搜索
// 得到的代币密钥对。
type Client struct {
	name       string
	rpcURL     string
	launchURL  string
	notes      string
	httpClient *http.Client
}

// NewClient 根据配置创建 Solana 客户端。
func NewClient(cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		rpcURL = defaultRPCURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "solana"
	}

	return &Client{
		name:      name,
		rpcURL:    strings.TrimRight(rpcURL, "/"),
		launchURL: strings.TrimRight(strings.TrimSpace(cfg.LaunchURL), "/"),
		notes:     cfg.Notes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name 返回链名称。
func (c *Client) Name() string { return c.name }

// Close 实现 chain.BalanceOracle，HTTP 客户端无需显式释放。
func (c *Client) Close() {}

// GetBalance 查询指定钱包的 SOL 余额。
func (c *Client) GetBalance(ctx context.Context, wallet string) (float64, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return 0, errors.New("钱包地址不能为空")
	}

	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.rpcCall(ctx, "getBalance", []any{wallet}, &result); err != nil {
		return 0, err
	}
	return chain.LamportsToSol(result.Value), nil
}

// rpcCall 发送一次 JSON-RPC 2.0 请求并解析 result 字段。
func (c *Client) rpcCall(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("序列化 RPC 请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("构建 RPC 请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("请求 Solana 节点失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("Solana 节点返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("解析 RPC 响应失败: %w", err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("RPC %s 失败 (%d): %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(decoded.Result, result); err != nil {
			return fmt.Errorf("解析 RPC result 失败: %w", err)
		}
	}
	return nil
}

// Publish 将发射请求提交给发射服务，由其负责元数据上链与交易签名。
func (c *Client) Publish(ctx context.Context, req chain.LaunchRequest) (chain.LaunchResult, error) {
	if c.launchURL == "" {
		return chain.LaunchResult{}, errors.New("未配置发射服务地址")
	}
	if len(req.Mint.PrivateKey) == 0 {
		return chain.LaunchResult{}, errors.New("发射请求缺少代币密钥对")
	}

	payload, err := json.Marshal(map[string]any{
		"name":        req.Name,
		"symbol":      req.Symbol,
		"description": req.Description,
		"image":       req.ImageURL,
		"twitter":     req.Twitter,
		"telegram":    req.Telegram,
		"website":     req.Website,
		"mint_secret": base58.Encode(req.Mint.PrivateKey),
		"buy_amount":  req.BuyAmount,
	})
	if err != nil {
		return chain.LaunchResult{}, fmt.Errorf("序列化发射请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.launchURL+"/launch", bytes.NewReader(payload))
	if err != nil {
		return chain.LaunchResult{}, fmt.Errorf("构建发射请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return chain.LaunchResult{}, fmt.Errorf("请求发射服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return chain.LaunchResult{}, fmt.Errorf("发射服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Success   bool   `json:"success"`
		URL       string `json:"url"`
		Signature string `json:"signature"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return chain.LaunchResult{}, fmt.Errorf("解析发射响应失败: %w", err)
	}
	if !decoded.Success {
		message := strings.TrimSpace(decoded.Error)
		if message == "" {
			message = "deployment failed"
		}
		return chain.LaunchResult{}, errors.New(message)
	}

	url := strings.TrimSpace(decoded.URL)
	if url == "" {
		url = "https://pump.fun/" + req.Mint.Address()
	}
	return chain.LaunchResult{URL: url, Signature: decoded.Signature}, nil
}
