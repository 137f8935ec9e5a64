package vanity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair 表示一个 ed25519 身份，公钥以 base58 形式作为链上地址展示。
// PrivateKey 属于敏感材料，绝不允许进入日志或对外报告。
type Keypair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Address 返回公钥的 base58 规范展示形式。
func (k Keypair) Address() string {
	return base58.Encode(k.PublicKey)
}

// Generator 抽象候选密钥对的生成方式，便于在测试中注入确定性实现。
type Generator interface {
	Generate() (Keypair, error)
}

// RandomGenerator 使用 crypto/rand 生成相互独立的随机密钥对。
type RandomGenerator struct{}

// Generate 实现 Generator 接口。
func (RandomGenerator) Generate() (Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("生成随机密钥对失败: %w", err)
	}
	return Keypair{PublicKey: pub, PrivateKey: priv}, nil
}
