package token

import (
	_ "embed"

	"gopkg.in/yaml.v3"

	"wallet-tax-sol/pkg/logger"
)

//go:embed hints.yaml
var hintsYAML []byte

// staticHints 是本地静态提示表（优先级第 5 步），覆盖主备元数据源都查不到的常见 mint。
var staticHints = loadStaticHints()

type hintEntry struct {
	Mint     string `yaml:"mint"`
	Symbol   string `yaml:"symbol"`
	Decimals int    `yaml:"decimals"`
}

func loadStaticHints() map[string]Meta {
	var entries []hintEntry
	if err := yaml.Unmarshal(hintsYAML, &entries); err != nil {
		logger.Errorf("[token] failed to parse embedded hints.yaml: %v", err)
		return map[string]Meta{}
	}
	out := make(map[string]Meta, len(entries))
	for _, e := range entries {
		if e.Mint == "" || e.Symbol == "" {
			continue
		}
		out[e.Mint] = Meta{Symbol: e.Symbol, Decimals: e.Decimals}
	}
	return out
}
