package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// weiPerEther 用于将余额换算为主单位。
var weiPerEther = new(big.Float).SetFloat64(1e18)

// Config describes how to construct an EVM compatible balance oracle.
type Config struct {
	Name   string
	RPCURL string
	Notes  string
}

// Client implements the chain.BalanceOracle interface for EVM compatible
// chains. Operators that fund the dev wallet from an EVM treasury can point
// the funds check here instead of the Solana oracle.
type Client struct {
	name      string
	notes     string
	rpcClient *gethrpc.Client
	eth       *ethclient.Client
	mu        sync.Mutex
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = "evm"
	}

	return &Client{
		name:      name,
		notes:     cfg.Notes,
		rpcClient: rpcClient,
		eth:       ethclient.NewClient(rpcClient),
	}, nil
}

// Name 返回链名称。
func (c *Client) Name() string { return c.name }

// GetBalance 查询指定地址的余额并换算为 ether。
func (c *Client) GetBalance(ctx context.Context, wallet string) (float64, error) {
	if c == nil || c.eth == nil {
		return 0, errors.New("未初始化的以太坊客户端")
	}
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return 0, errors.New("钱包地址不能为空")
	}
	if !common.IsHexAddress(wallet) {
		return 0, fmt.Errorf("非法的以太坊地址: %s", wallet)
	}

	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(wallet), nil)
	if err != nil {
		return 0, fmt.Errorf("查询余额失败: %w", err)
	}

	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(balance), weiPerEther).Float64()
	return ether, nil
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}
