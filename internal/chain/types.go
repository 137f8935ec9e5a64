package chain

import (
	"context"

	"OpenMint-Chain/internal/vanity"
)

// LamportsPerSol 是 SOL 与最小记账单位的换算比例。
const LamportsPerSol = 1_000_000_000

// BalanceOracle 抽象对运营钱包余额的只读查询，返回值以链的主单位计。
type BalanceOracle interface {
	// Name 返回链的可读名称。
	Name() string
	// GetBalance 查询指定钱包的余额。查询失败返回可区分的错误，
	// 不允许与余额不足混为一谈。
	GetBalance(ctx context.Context, wallet string) (float64, error)
	// Close 释放底层连接。
	Close()
}

// LaunchRequest 汇总一次代币发射所需的全部信息。
type LaunchRequest struct {
	Name        string
	Symbol      string
	Description string
	ImageURL    string
	Twitter     string
	Telegram    string
	Website     string
	// Mint 是搜索得到的靓号密钥对，发射交易以其公钥作为代币地址。
	Mint vanity.Keypair
	// BuyAmount 为发射时的初始买入量，以 SOL 计。
	BuyAmount float64
}

// LaunchResult 描述发射成功后的产物。
type LaunchResult struct {
	// URL 为发射完成后可访问的页面地址。
	URL string
	// Signature 为链上交易签名，可能为空。
	Signature string
}

// Publisher 抽象发射交易的提交方。
type Publisher interface {
	Publish(ctx context.Context, req LaunchRequest) (LaunchResult, error)
}

// LamportsToSol 将最小单位换算为 SOL。
func LamportsToSol(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSol
}

// SolToLamports 将 SOL 换算为最小单位。
func SolToLamports(sol float64) uint64 {
	if sol <= 0 {
		return 0
	}
	return uint64(sol * LamportsPerSol)
}
