package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wallet-tax-sol/internal/logic/token"
	"wallet-tax-sol/pkg/logger"
)

// HTTPMetadataSource 通过 HTTP JSON 接口批量解析 token 元数据，
// 实现 token.MetadataSource。主备两个数据源各配一个实例。
type HTTPMetadataSource struct {
	name       string
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewMetadataSource(name, endpoint, apiKey string, timeoutMs int) *HTTPMetadataSource {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPMetadataSource{
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type metadataRequest struct {
	Mints []string `json:"mints"`
}

type metadataEntry struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// MetadataFor 批量查询 mint 的符号与精度。
// 单个 mint 缺失是正常情况（返回 map 里不出现），不作为错误。
func (s *HTTPMetadataSource) MetadataFor(ctx context.Context, mints []string) (map[string]token.Meta, error) {
	if len(mints) == 0 {
		return map[string]token.Meta{}, nil
	}

	body, err := json.Marshal(metadataRequest{Mints: mints})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata source %s: %w", s.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata source %s: http %d", s.name, resp.StatusCode)
	}

	var entries []metadataEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("metadata source %s: decode: %w", s.name, err)
	}

	out := make(map[string]token.Meta, len(entries))
	for _, e := range entries {
		if e.Mint == "" || e.Symbol == "" {
			continue
		}
		out[e.Mint] = token.Meta{Symbol: e.Symbol, Decimals: e.Decimals}
	}
	logger.Debugf("[metadata] source=%s asked=%d resolved=%d", s.name, len(mints), len(out))
	return out, nil
}
