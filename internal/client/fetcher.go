package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"wallet-tax-sol/internal/config"
	"wallet-tax-sol/internal/logic/domain"
	"wallet-tax-sol/pkg/logger"
)

// QuotaError 表示上游配额 / 限流耗尽。携带服务端给出的重试提示；
// 调用方应把当前扫描作为带游标的部分结果返回，而不是硬失败。
type QuotaError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("upstream quota exhausted (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// TxFetcher 从增强交易服务分页拉取某地址的交易（倒序时间，before 签名游标）。
type TxFetcher struct {
	endpoint   string
	apiKey     string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
}

func NewTxFetcher(cfg *config.FetcherConfig) *TxFetcher {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	backoff := time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &TxFetcher{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		maxRetries: retries,
		backoff:    backoff,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchPage 拉取一页增强交易。429/5xx 做有界退避重试并尊重 Retry-After；
// 限流重试耗尽后返回 *QuotaError。
func (f *TxFetcher) FetchPage(ctx context.Context, address, before string, limit int) ([]*domain.Transaction, error) {
	u, err := url.Parse(f.endpoint + "/v0/addresses/" + address + "/transactions")
	if err != nil {
		return nil, fmt.Errorf("build fetch url: %w", err)
	}
	q := u.Query()
	q.Set("api-key", f.apiKey)
	q.Set("limit", strconv.Itoa(limit))
	if before != "" {
		q.Set("before", before)
	}
	u.RawQuery = q.Encode()

	var lastErr error
	wait := f.backoff
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		txs, retryAfter, err := f.doFetch(ctx, u.String())
		if err == nil {
			return txs, nil
		}
		lastErr = err
		if retryAfter > 0 {
			wait = retryAfter
		}
		if !isRetryable(err) {
			return nil, err
		}
		logger.Warnf("[fetcher] attempt %d failed for %s: %v", attempt+1, address, err)
	}

	if he, ok := lastErr.(*httpStatusError); ok && he.status == http.StatusTooManyRequests {
		return nil, &QuotaError{RetryAfter: wait, Err: lastErr}
	}
	return nil, fmt.Errorf("fetch %s after %d retries: %w", address, f.maxRetries, lastErr)
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.status, e.body)
}

func isRetryable(err error) bool {
	he, ok := err.(*httpStatusError)
	if !ok {
		return true // 网络层错误可重试
	}
	return he.status == http.StatusTooManyRequests || he.status >= 500
}

func (f *TxFetcher) doFetch(ctx context.Context, url string) ([]*domain.Transaction, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		var retryAfter time.Duration
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, &httpStatusError{status: resp.StatusCode, body: string(body)}
	}

	var txs []*domain.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txs); err != nil {
		return nil, 0, fmt.Errorf("decode transactions page: %w", err)
	}
	return txs, 0, nil
}
