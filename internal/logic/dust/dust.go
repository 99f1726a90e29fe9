package dust

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/logic/domain"
	"wallet-tax-sol/internal/pkg/types"
)

// Mode 是 dust 处理模式。
type Mode string

const (
	ModeOff               Mode = "off"
	ModeRemove            Mode = "remove"
	ModeAggregateBySigner Mode = "aggregate-by-signer"
	ModeAggregateByPeriod Mode = "aggregate-by-period"
)

// Interval 是聚合时间桶粒度。
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week" // ISO 周，周一为起点
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Options 控制 dust 处理行为。Clock 可注入以便测试控制时间，nil 取 time.Now。
type Options struct {
	Mode      Mode
	Threshold decimal.Decimal
	Interval  Interval
	Owner     string
	Location  *time.Location
	Clock     func() time.Time
}

func (o *Options) loc() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o *Options) now() time.Time {
	if o.Clock == nil {
		return time.Now().In(o.loc())
	}
	return o.Clock().In(o.loc())
}

// ApplyDustPolicy 按配置模式处理低于阈值的小额转账行。
// txMap 用于签名 → 付费者回查（signer 模式）与同签名豁免判定。
func ApplyDustPolicy(rows []domain.Row, txMap domain.TxMap, opts Options) []domain.Row {
	if opts.Mode == "" || opts.Mode == ModeOff || !opts.Threshold.IsPositive() {
		return rows
	}

	exempt := exemptSignatures(rows, opts.Threshold)

	switch opts.Mode {
	case ModeRemove:
		out := make([]domain.Row, 0, len(rows))
		for i := range rows {
			if isDustRow(&rows[i], opts.Threshold) && !exempt[domain.ExtractSignature(rows[i].Note)] {
				continue
			}
			out = append(out, rows[i])
		}
		return out

	case ModeAggregateBySigner, ModeAggregateByPeriod:
		return aggregate(rows, txMap, opts, exempt)
	}
	return rows
}

// isDustRow 判断一行是否参与 dust 处理：
// 单边的转账/取得/损失行，金额低于阈值，且不属于流动性/聚合/修正行。
func isDustRow(r *domain.Row, threshold decimal.Decimal) bool {
	switch r.Kind {
	case domain.KindTransferIn, domain.KindTransferOut, domain.KindAcquisition, domain.KindLoss:
	default:
		return false
	}
	if !r.HasSingleSide() || r.IsLiquidity() || r.IsDustAggregate() || r.IsAdjustment() {
		return false
	}
	amt := r.AmountIn
	if r.AmountOut.IsPositive() {
		amt = r.AmountOut
	}
	return amt.LessThan(threshold)
}

// exemptSignatures 返回应豁免跨签名聚合的签名集合：
// 同一签名的全部行（数量 ≥2）都是低于阈值的 dust 转账时，这组行保持原样，
// 留给 Consolidator 做签名内配对，聚合不得拆散它们。
func exemptSignatures(rows []domain.Row, threshold decimal.Decimal) map[string]bool {
	count := make(map[string]int)
	allDust := make(map[string]bool)
	for i := range rows {
		sig := domain.ExtractSignature(rows[i].Note)
		if sig == "" {
			continue
		}
		count[sig]++
		if _, seen := allDust[sig]; !seen {
			allDust[sig] = true
		}
		if !isDustRow(&rows[i], threshold) {
			allDust[sig] = false
		}
	}
	out := make(map[string]bool)
	for sig, ok := range allDust {
		if ok && count[sig] >= 2 {
			out[sig] = true
		}
	}
	return out
}

// bucketKey 是聚合桶的身份：时间桶 × 方向 × 币种（signer 模式另加签名者）。
type bucketKey struct {
	start    int64
	inbound  bool
	currency string
	signer   string
}

type bucket struct {
	key      bucketKey
	end      time.Time
	count    int
	amount   decimal.Decimal
	fee      decimal.Decimal
	firstTs  string
	lastTs   string
}

func aggregate(rows []domain.Row, txMap domain.TxMap, opts Options, exempt map[string]bool) []domain.Row {
	loc := opts.loc()
	out := make([]domain.Row, 0, len(rows))
	buckets := make(map[bucketKey]*bucket)

	for i := range rows {
		r := &rows[i]
		sig := domain.ExtractSignature(r.Note)
		if !isDustRow(r, opts.Threshold) || exempt[sig] {
			out = append(out, *r)
			continue
		}

		ts, err := time.ParseInLocation("2006-01-02 15:04:05", r.Timestamp, loc)
		if err != nil {
			out = append(out, *r)
			continue
		}
		start, end := bucketBounds(ts, opts.Interval, loc)

		inbound := r.AmountIn.IsPositive()
		amt, cur := r.AmountIn, r.CurrencyIn
		if !inbound {
			amt, cur = r.AmountOut, r.CurrencyOut
		}

		key := bucketKey{start: start.Unix(), inbound: inbound, currency: cur}
		if opts.Mode == ModeAggregateBySigner {
			key.signer = resolveSigner(r, sig, txMap, opts.Owner, inbound)
		}

		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key, end: end, amount: decimal.Zero, fee: decimal.Zero, firstTs: r.Timestamp, lastTs: r.Timestamp}
			buckets[key] = b
		}
		b.count++
		b.amount = b.amount.Add(amt)
		b.fee = b.fee.Add(r.Fee)
		if r.Timestamp < b.firstTs {
			b.firstTs = r.Timestamp
		}
		if r.Timestamp > b.lastTs {
			b.lastTs = r.Timestamp
		}
	}

	synth := make([]domain.Row, 0, len(buckets))
	now := opts.now()
	for _, b := range buckets {
		synth = append(synth, b.toRow(opts, now, loc))
	}
	sort.Slice(synth, func(i, j int) bool {
		if synth[i].Timestamp != synth[j].Timestamp {
			return synth[i].Timestamp < synth[j].Timestamp
		}
		return synth[i].Note < synth[j].Note
	})
	return append(out, synth...)
}

// toRow 生成聚合桶的合成行：入向聚合为 Acquisition，出向聚合为 Loss；
// 时间戳取桶结束时刻，桶未关闭时封顶到当前时间。
func (b *bucket) toRow(opts Options, now time.Time, loc *time.Location) domain.Row {
	end := b.end
	if end.After(now) {
		end = now
	}

	note := fmt.Sprintf("%s count=%d threshold=%s", consts.NoteDustPrefix, b.count, opts.Threshold.String())
	if b.key.signer != "" {
		note += " signer=" + types.ShortAddress(b.key.signer)
	}
	note += fmt.Sprintf(" %s ~ %s", b.firstTs, b.lastTs)

	row := domain.Row{
		Timestamp: end.In(loc).Format("2006-01-02 15:04:05"),
		Market:    consts.MarketSolana,
		Note:      note,
	}
	if b.fee.IsPositive() {
		row.Fee = b.fee
		row.FeeCurrency = consts.NativeSymbol
	}
	if b.key.inbound {
		row.Kind = domain.KindAcquisition
		row.AmountIn = b.amount
		row.CurrencyIn = b.key.currency
	} else {
		row.Kind = domain.KindLoss
		row.AmountOut = b.amount
		row.CurrencyOut = b.key.currency
	}
	return row
}

// resolveSigner 解析聚合分桶用的签名者：
// 出向行归 owner 自己；入向行回查交易付费者，查不到落到哨兵值。
func resolveSigner(r *domain.Row, sig string, txMap domain.TxMap, owner string, inbound bool) string {
	if !inbound {
		return owner
	}
	if tx, ok := txMap[sig]; ok && tx.FeePayer != "" {
		return tx.FeePayer
	}
	return consts.UnknownSigner
}

// bucketBounds 返回时间桶的 [start, end) 边界；end 返回前回拨 1 秒，
// 使合成行时间戳落在桶内最后一个可表示的秒上。
func bucketBounds(ts time.Time, interval Interval, loc *time.Location) (time.Time, time.Time) {
	y, m, d := ts.Date()
	var start, next time.Time
	switch interval {
	case IntervalWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		// ISO 周：周一为第 0 天
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
		next = start.AddDate(0, 0, 7)
	case IntervalMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	case IntervalYear:
		start = time.Date(y, 1, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
	default: // day
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 1)
	}
	return start, next.Add(-time.Second)
}
