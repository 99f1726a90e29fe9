package scan

import (
	"context"
	"errors"
	"fmt"

	"wallet-tax-sol/internal/client"
	"wallet-tax-sol/internal/logic/domain"
	"wallet-tax-sol/pkg/logger"
)

// Fetcher 是分页交易拉取的抽象（倒序时间，before 签名游标）。
type Fetcher interface {
	FetchPage(ctx context.Context, address, before string, limit int) ([]*domain.Transaction, error)
}

// AccountDiscoverer 发现 owner 名下的衍生 token 子账户。
type AccountDiscoverer interface {
	AccountsOwnedBy(ctx context.Context, owner string) ([]string, error)
}

// Cursor 是可恢复的扫描游标：下一个待扫地址下标 + 各地址已见最早签名。
// 值不可变地在两次扫描调用之间由调用方传递，可跨进程重启续扫。
type Cursor struct {
	NextAddressIndex         int               `json:"nextAddressIndex"`
	BeforeSignatureByAddress map[string]string `json:"beforeSignatureByAddress"`
}

func (c *Cursor) clone() *Cursor {
	out := &Cursor{
		NextAddressIndex:         c.NextAddressIndex,
		BeforeSignatureByAddress: make(map[string]string, len(c.BeforeSignatureByAddress)),
	}
	for k, v := range c.BeforeSignatureByAddress {
		out.BeforeSignatureByAddress[k] = v
	}
	return out
}

// Result 是一次扫描的产出。Partial 为 true 时 Cursor 可用于续扫；
// 部分结果同样有效可缓存，绝不丢弃。
type Result struct {
	TxMap   domain.TxMap
	Order   []string // 首见顺序的签名列表
	Derived []string
	Partial bool
	Cursor  *Cursor
}

// Scanner 维护一次扫描的分页拉取与签名去重。
// 每个地址的分页有固定页数上限；每页拉取前检查取消信号。
type Scanner struct {
	fetcher    Fetcher
	discoverer AccountDiscoverer
	pageSize   int
	pageCap    int
}

func NewScanner(fetcher Fetcher, discoverer AccountDiscoverer, pageSize, pageCap int) *Scanner {
	if pageSize <= 0 {
		pageSize = 100
	}
	if pageCap <= 0 {
		pageCap = 50
	}
	return &Scanner{fetcher: fetcher, discoverer: discoverer, pageSize: pageSize, pageCap: pageCap}
}

// Scan 从头扫描 owner 及其全部衍生子账户。
func (s *Scanner) Scan(ctx context.Context, owner string) (*Result, error) {
	derived, err := s.discoverer.AccountsOwnedBy(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("discover derived accounts: %w", err)
	}
	return s.ScanFrom(ctx, owner, derived, nil)
}

// ScanFrom 从给定游标继续扫描。cursor 为 nil 表示从头开始。
// 去重规则：同签名首见的交易元数据获胜；各地址的 before 游标总是推进到
// 该地址最新一页的末签名，与去重无关。
func (s *Scanner) ScanFrom(ctx context.Context, owner string, derived []string, cursor *Cursor) (*Result, error) {
	addresses := append([]string{owner}, derived...)

	cur := &Cursor{BeforeSignatureByAddress: make(map[string]string)}
	if cursor != nil {
		cur = cursor.clone()
	}

	res := &Result{
		TxMap:   make(domain.TxMap),
		Derived: derived,
		Cursor:  cur,
	}

	for i := cur.NextAddressIndex; i < len(addresses); i++ {
		addr := addresses[i]
		before := cur.BeforeSignatureByAddress[addr]

		for page := 0; page < s.pageCap; page++ {
			if err := ctx.Err(); err != nil {
				res.Partial = true
				cur.NextAddressIndex = i
				return res, fmt.Errorf("scan cancelled at address %d page %d: %w", i, page, err)
			}

			txs, err := s.fetcher.FetchPage(ctx, addr, before, s.pageSize)
			if err != nil {
				var qe *client.QuotaError
				if errors.As(err, &qe) {
					logger.Warnf("[scan] quota exhausted, addr=%s page=%d, returning partial result", addr, page)
					res.Partial = true
					cur.NextAddressIndex = i
					return res, err
				}
				return nil, fmt.Errorf("fetch page for %s: %w", addr, err)
			}
			if len(txs) == 0 {
				break
			}

			for _, tx := range txs {
				if tx == nil || tx.Signature == "" {
					continue
				}
				if _, seen := res.TxMap[tx.Signature]; seen {
					continue
				}
				tx.Normalize()
				res.TxMap[tx.Signature] = tx
				res.Order = append(res.Order, tx.Signature)
			}

			before = txs[len(txs)-1].Signature
			cur.BeforeSignatureByAddress[addr] = before

			if len(txs) < s.pageSize {
				break
			}
		}
		cur.NextAddressIndex = i + 1
	}

	logger.Infof("[scan] done, owner=%s, addresses=%d, txs=%d", owner, len(addresses), len(res.TxMap))
	return res, nil
}
