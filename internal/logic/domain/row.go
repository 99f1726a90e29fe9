package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/consts"
)

// RowKind 表示记账行的语义类型。
type RowKind string

const (
	KindTrade       RowKind = "Trade"
	KindAcquisition RowKind = "Acquisition"
	KindIncome      RowKind = "Income"
	KindLoss        RowKind = "Loss"
	KindTransferIn  RowKind = "TransferIn"
	KindTransferOut RowKind = "TransferOut"
)

// Row 是管线的输出单元：一条会计意义上的记账行。
// 金额内部用精确 decimal 保存，序列化时再转规范字符串。
type Row struct {
	Timestamp   string // 按配置时区格式化的秒级时间串
	Kind        RowKind
	AmountIn    decimal.Decimal
	CurrencyIn  string
	AmountOut   decimal.Decimal
	CurrencyOut string
	Fee         decimal.Decimal
	FeeCurrency string
	Market      string
	Note        string // 非聚合行必须包含恰好一个 sig:<signature> 标记
}

// FormatTimestamp 将 unix 秒格式化为行时间串。
func FormatTimestamp(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(ts, 0).In(loc).Format("2006-01-02 15:04:05")
}

// SigNote 构造标准行备注：可选前缀标记 + sig:<signature>。
// 前缀在前，sig: 标记保持可 grep。
func SigNote(signature string, prefixes ...string) string {
	parts := make([]string, 0, len(prefixes)+1)
	for _, p := range prefixes {
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, consts.NoteSigPrefix+signature)
	return strings.Join(parts, " ")
}

/// ExtractSignature 从行备注中提取 sig: 标记后的签名；没有则返回空串。
// 这是 Dust 的签名者回查与 Consolidate 分组共用的 join key。
func ExtractSignature(note string) string {
	idx := strings.Index(note, consts.NoteSigPrefix)
	if idx < 0 {
		return ""
	}
	rest := note[idx+len(consts.NoteSigPrefix):]
	if end := strings.IndexAny(rest, " \t"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// IsDustAggregate 判断该行是否为 dust 聚合的合成行。
func (r *Row) IsDustAggregate() bool {
	return strings.HasPrefix(r.Note, consts.NoteDustPrefix)
}

// IsLiquidity 判断该行是否来自流动性事件（绕过 dust 与合并归并）。
func (r *Row) IsLiquidity() bool {
	return strings.HasPrefix(r.Note, consts.NoteLiquidityAdd) ||
		strings.HasPrefix(r.Note, consts.NoteLiquidityRem)
}

// IsAdjustment 判断该行是否为显式收入修正行（找零 / 返利），不参与归并。
func (r *Row) IsAdjustment() bool {
	return strings.HasPrefix(r.Note, consts.NoteAdjustTag)
}

// HasSingleSide 判断该行是否恰好只有一侧金额非零（dust 参与条件）。
func (r *Row) HasSingleSide() bool {
	in := r.AmountIn.IsPositive()
	out := r.AmountOut.IsPositive()
	return in != out
}
