package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/cache"
	"wallet-tax-sol/pkg/logger"
)

// RateSource 是历史汇率的单一数据源抽象。
type RateSource interface {
	RateFor(ctx context.Context, base, quote, date string) (decimal.Decimal, error)
}

// HTTPRateSource 通过 HTTP JSON 接口查询某日收盘汇率。
type HTTPRateSource struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

func NewRateSource(name, endpoint string, timeoutMs int) *HTTPRateSource {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPRateSource{
		name:       name,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPRateSource) RateFor(ctx context.Context, base, quote, date string) (decimal.Decimal, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate source %s: %w", s.name, err)
	}
	q := u.Query()
	q.Set("base", base)
	q.Set("quote", quote)
	q.Set("date", date)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate source %s: %w", s.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate source %s: http %d", s.name, resp.StatusCode)
	}

	var body struct {
		Rate string `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("rate source %s: decode: %w", s.name, err)
	}
	rate, err := decimal.NewFromString(body.Rate)
	if err != nil || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("rate source %s: bad rate %q", s.name, body.Rate)
	}
	return rate, nil
}

// RateResolver 实现带回退链与按日缓存的汇率解析：
// 缓存 → 主历史价格源 → 经由参照币种用两个源合成交叉汇率。
type RateResolver struct {
	primary   RateSource
	reference RateSource // 合成交叉汇率用的第二数据源
	refSymbol string     // 参照币种（通常 USD）
	cache     *cache.RateCache
}

func NewRateResolver(primary, reference RateSource, refSymbol string, c *cache.RateCache) *RateResolver {
	if refSymbol == "" {
		refSymbol = "USD"
	}
	return &RateResolver{primary: primary, reference: reference, refSymbol: refSymbol, cache: c}
}

// RateFor 解析 base/quote 在 date 当日的汇率。
func (r *RateResolver) RateFor(ctx context.Context, base, quote, date string) (decimal.Decimal, error) {
	if base == quote {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := r.cache.Get(ctx, base, quote, date); ok {
		return rate, nil
	}

	rate, err := r.primary.RateFor(ctx, base, quote, date)
	if err != nil {
		logger.Warnf("[rates] primary failed for %s/%s@%s: %v, trying cross rate", base, quote, date, err)
		rate, err = r.crossRate(ctx, base, quote, date)
		if err != nil {
			return decimal.Zero, fmt.Errorf("rate %s/%s@%s: %w", base, quote, date, err)
		}
	}

	r.cache.Put(ctx, base, quote, date, rate)
	return rate, nil
}

// crossRate 用两个源经参照币种合成：base/quote = (base/ref) ÷ (quote/ref)。
func (r *RateResolver) crossRate(ctx context.Context, base, quote, date string) (decimal.Decimal, error) {
	baseRef, err := r.primary.RateFor(ctx, base, r.refSymbol, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cross leg %s/%s: %w", base, r.refSymbol, err)
	}
	quoteRef, err := r.reference.RateFor(ctx, quote, r.refSymbol, date)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cross leg %s/%s: %w", quote, r.refSymbol, err)
	}
	if !quoteRef.IsPositive() {
		return decimal.Zero, fmt.Errorf("cross leg %s/%s: zero rate", quote, r.refSymbol)
	}
	return baseRef.Div(quoteRef), nil
}
