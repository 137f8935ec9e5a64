package generate

import "context"

// TokenMetadata 是内容生成阶段的结构化产物。
type TokenMetadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// Generator 定义了根据概念生成代币元数据与配图的统一接口。
type Generator interface {
	Generate(ctx context.Context, idea string) (*TokenMetadata, error)
}
