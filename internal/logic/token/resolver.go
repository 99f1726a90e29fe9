package token

import (
	"context"
	"sync"
	"time"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/tools"
	"wallet-tax-sol/pkg/logger"
)

// Meta 表示一个 mint 的符号与精度。
type Meta struct {
	Symbol   string
	Decimals int
}

// MetadataSource 表示一个外部元数据源（主源 / 备源），按 mint 批量查询。
// 单个 mint 查询失败只表现为结果缺失，不返回整体错误之外的中断。
type MetadataSource interface {
	MetadataFor(ctx context.Context, mints []string) (map[string]Meta, error)
}

// Resolver 按固定优先级解析 mint 的符号与精度：
// 1) WSOL mint 常量短路为原生符号；2) 交易内嵌提示；3) 主元数据源；
// 4) 备元数据源；5) 本地静态提示表；6) mint 前 6 字符合成占位符。
// 2–5 的结果若与原生符号撞名而 mint 不是 WSOL，降级为占位符（防伪装）。
type Resolver struct {
	primary   MetadataSource
	secondary MetadataSource

	mu       sync.RWMutex
	resolved map[string]Meta // 外部源的预取结果，仅追加
}

const (
	placeholderDecimals = 6
	sourceTimeout       = 3 * time.Second
)

func NewResolver(primary, secondary MetadataSource) *Resolver {
	return &Resolver{
		primary:   primary,
		secondary: secondary,
		resolved:  make(map[string]Meta),
	}
}

// Prefetch 对一批 mint 并发预取两个元数据源，失败静默降级。
// 主源结果优先；备源只补主源缺口。
func (r *Resolver) Prefetch(ctx context.Context, mints []string) {
	missing := make([]string, 0, len(mints))
	r.mu.RLock()
	for _, m := range mints {
		if _, ok := r.resolved[m]; !ok {
			missing = append(missing, m)
		}
	}
	r.mu.RUnlock()
	if len(missing) == 0 {
		return
	}

	fetch := func(src MetadataSource, name string) map[string]Meta {
		if src == nil {
			return nil
		}
		cctx, cancel := context.WithTimeout(ctx, sourceTimeout)
		defer cancel()
		got, err := src.MetadataFor(cctx, missing)
		if err != nil {
			logger.Warnf("[token] %s metadata source failed (degrading): %v", name, err)
			return nil
		}
		return got
	}

	var wg sync.WaitGroup
	var primaryGot, secondaryGot map[string]Meta
	wg.Add(2)
	go func() { defer wg.Done(); primaryGot = fetch(r.primary, "primary") }()
	go func() { defer wg.Done(); secondaryGot = fetch(r.secondary, "secondary") }()
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for m, meta := range secondaryGot {
		if _, ok := r.resolved[m]; !ok && meta.Symbol != "" {
			r.resolved[m] = meta
		}
	}
	for m, meta := range primaryGot {
		if meta.Symbol != "" {
			r.resolved[m] = meta
		}
	}
}

// Resolve 解析单个 mint。hintSymbol 为空、hintDecimals 为负表示提示缺失。
// 返回符号已经过 NormalizeAsset，调用方不得二次规范化。
func (r *Resolver) Resolve(mint, hintSymbol string, hintDecimals int) Meta {
	if mint == consts.WSOLMintStr {
		return Meta{Symbol: consts.NativeSymbol, Decimals: consts.NativeDecimals}
	}

	if meta, ok := r.guard(mint, Meta{Symbol: hintSymbol, Decimals: hintDecimals}); ok {
		return meta
	}

	r.mu.RLock()
	fetched, haveFetched := r.resolved[mint]
	r.mu.RUnlock()
	if haveFetched {
		if meta, ok := r.guard(mint, fetched); ok {
			return meta
		}
	}

	if hint, ok := staticHints[mint]; ok {
		if meta, ok := r.guard(mint, hint); ok {
			return meta
		}
	}

	return placeholderMeta(mint)
}

// guard 对 2–5 步的候选结果做规范化与原生符号防伪校验。
// 候选为空时返回 (zero, false)；撞名原生符号时直接降级为占位符并命中返回。
func (r *Resolver) guard(mint string, candidate Meta) (Meta, bool) {
	if candidate.Symbol == "" {
		return Meta{}, false
	}
	sym := tools.NormalizeAsset(candidate.Symbol)
	if sym == consts.NativeSymbol {
		// 非 WSOL mint 冒充原生符号：丢弃解析结果，防止伪币顶替 SOL 进入交易行
		logger.Warnf("[token] mint %s resolves to native symbol, demoting to placeholder", mint)
		return placeholderMeta(mint), true
	}
	dec := candidate.Decimals
	if dec < 0 {
		dec = placeholderDecimals
	}
	return Meta{Symbol: sym, Decimals: dec}, true
}

func placeholderMeta(mint string) Meta {
	head := mint
	if len(head) > 6 {
		head = head[:6]
	}
	return Meta{Symbol: tools.NormalizeAsset(head), Decimals: placeholderDecimals}
}
