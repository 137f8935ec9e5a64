package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"OpenMint-Chain/internal/chain"
	"OpenMint-Chain/internal/chain/ethereum"
	"OpenMint-Chain/internal/chain/solana"
	"OpenMint-Chain/internal/config"
)

// Registry manages a set of balance oracles keyed by human readable names.
// The default chain additionally provides the launch publisher when it is a
// Solana endpoint.
type Registry struct {
	defaultChain string
	oracles      map[string]chain.BalanceOracle
	publishers   map[string]chain.Publisher
}

// NewRegistry loads chain definitions and instantiates concrete clients.
func NewRegistry(ctx context.Context, cfg config.ChainConfig) (*Registry, error) {
	defs, err := chain.LoadChainDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}

	oracles := make(map[string]chain.BalanceOracle)
	publishers := make(map[string]chain.Publisher)
	for name, def := range defs.Chains {
		chainType := strings.ToLower(strings.TrimSpace(def.Type))
		if chainType == "" {
			chainType = "solana"
		}
		switch chainType {
		case "solana":
			client, err := solana.NewClient(solana.Config{
				Name:      name,
				RPCURL:    def.RPCURL,
				LaunchURL: def.LaunchURL,
				Notes:     def.Description,
				Timeout:   60 * time.Second,
			})
			if err != nil {
				return nil, fmt.Errorf("初始化链 %s 失败: %w", name, err)
			}
			oracles[name] = client
			publishers[name] = client
		case "evm":
			client, err := ethereum.NewClient(ctx, ethereum.Config{
				Name:   name,
				RPCURL: def.RPCURL,
				Notes:  def.Description,
			})
			if err != nil {
				return nil, fmt.Errorf("初始化链 %s 失败: %w", name, err)
			}
			oracles[name] = client
		default:
			return nil, fmt.Errorf("链 %s 使用了不支持的类型 %s", name, def.Type)
		}
	}

	if len(oracles) == 0 {
		client, err := solana.NewClient(solana.Config{Name: "default"})
		if err != nil {
			return nil, err
		}
		oracles["default"] = client
		publishers["default"] = client
	}

	defaultChain := cfg.DefaultChain
	if defaultChain == "" {
		names := make([]string, 0, len(oracles))
		for name := range oracles {
			names = append(names, name)
		}
		sort.Strings(names)
		defaultChain = names[0]
	}
	if _, ok := oracles[defaultChain]; !ok {
		return nil, fmt.Errorf("默认链 %s 未在配置中找到", defaultChain)
	}

	return &Registry{defaultChain: defaultChain, oracles: oracles, publishers: publishers}, nil
}

// DefaultOracle returns the oracle configured as default chain.
func (r *Registry) DefaultOracle() (chain.BalanceOracle, error) {
	if r == nil {
		return nil, errors.New("未初始化的链客户端注册表")
	}
	oracle, ok := r.oracles[r.defaultChain]
	if !ok {
		return nil, fmt.Errorf("默认链 %s 未在注册表中", r.defaultChain)
	}
	return oracle, nil
}

// DefaultPublisher returns the publisher bound to the default chain.
func (r *Registry) DefaultPublisher() (chain.Publisher, error) {
	if r == nil {
		return nil, errors.New("未初始化的链客户端注册表")
	}
	publisher, ok := r.publishers[r.defaultChain]
	if !ok {
		return nil, fmt.Errorf("默认链 %s 不支持发射交易", r.defaultChain)
	}
	return publisher, nil
}

// Oracle returns the balance oracle identified by name.
func (r *Registry) Oracle(name string) (chain.BalanceOracle, bool) {
	if r == nil {
		return nil, false
	}
	oracle, ok := r.oracles[name]
	return oracle, ok
}

// Chains returns the list of registered chain names.
func (r *Registry) Chains() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.oracles))
	for name := range r.oracles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, oracle := range r.oracles {
		if oracle != nil {
			oracle.Close()
		}
		delete(r.oracles, name)
		delete(r.publishers, name)
	}
}
