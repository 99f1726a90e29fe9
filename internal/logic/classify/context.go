package classify

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/logic/domain"
	"wallet-tax-sol/internal/logic/token"
)

// Options 控制分类行为。
type Options struct {
	IncludeNFTs bool           // 是否为 NFT 转账生成通用转账行
	Location    *time.Location // 行时间戳时区；nil 表示 UTC
}

// Context 是一次扫描内贯穿所有分类调用的所有权上下文：
// 钱包地址、扫描开始时一次性取回的衍生 Token 子账户集合、符号解析器与选项。
type Context struct {
	Owner    string
	Derived  map[string]bool // 衍生子账户集合，恒包含 Owner 自身
	Resolver *token.Resolver
	Opts     Options
}

// NewContext 构造分类上下文。derivedAccounts 无须包含 owner，这里会补上。
func NewContext(owner string, derivedAccounts []string, resolver *token.Resolver, opts Options) *Context {
	derived := make(map[string]bool, len(derivedAccounts)+1)
	derived[owner] = true
	for _, a := range derivedAccounts {
		derived[a] = true
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Context{
		Owner:    owner,
		Derived:  derived,
		Resolver: resolver,
		Opts:     opts,
	}
}

// resolveLeg 解析一条 token 转账的 (规范符号, 精确金额)。
func (c *Context) resolveLeg(t *domain.TokenTransfer) (string, decimal.Decimal) {
	hintDec := -1
	if t.RawAmount != "" {
		hintDec = t.Decimals
	}
	meta := c.Resolver.Resolve(t.Mint, t.Symbol, hintDec)
	return meta.Symbol, t.Value()
}

func (c *Context) timestamp(tx *domain.Transaction) string {
	return domain.FormatTimestamp(tx.Timestamp, c.Opts.Location)
}
