package consolidate

import (
	"strings"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/logic/domain"
)

// ConsolidateBySignature 将同一签名产出的多行归并成净经济结果。
// 无签名行、dust 聚合行、显式修正行整体绕过分组，原样透传。
// dustThreshold 用于同签名全 dust 组的豁免判定（与 Dust 处理器保持一致）。
func ConsolidateBySignature(
	rows []domain.Row,
	txMap domain.TxMap,
	owner string,
	dustThreshold decimal.Decimal,
) []domain.Row {
	type group struct {
		sig  string
		rows []domain.Row
	}

	var order []string
	groups := make(map[string]*group)
	out := make([]domain.Row, 0, len(rows))

	for i := range rows {
		r := &rows[i]
		sig := domain.ExtractSignature(r.Note)
		if sig == "" || r.IsDustAggregate() || r.IsAdjustment() {
			out = append(out, *r)
			continue
		}
		g, ok := groups[sig]
		if !ok {
			g = &group{sig: sig}
			groups[sig] = g
			order = append(order, sig)
		}
		g.rows = append(g.rows, *r)
	}

	for _, sig := range order {
		g := groups[sig]
		tx := txMap[sig]
		if len(g.rows) == 1 {
			out = append(out, touchUpSingle(g.rows[0], tx, owner))
			continue
		}
		out = append(out, consolidateGroup(g.sig, g.rows, tx, owner, dustThreshold)...)
	}
	return out
}

// touchUpSingle 对单行组应用独立的修正规则。
// 各规则有各自的前置条件门控，互不排斥，但实际上每行至多命中一条。
func touchUpSingle(r domain.Row, tx *domain.Transaction, owner string) domain.Row {
	if tx == nil {
		return r
	}

	// 规则 1：通用入账 + order-fill 标记 + 未入账的原生支出 → 隐藏的买入，升级为 Trade
	if r.Kind == domain.KindTransferIn && tx.Has(domain.TagOrderFill) &&
		r.CurrencyIn != consts.NativeSymbol && !r.AmountOut.IsPositive() {
		if delta, ok := tx.BalanceDelta(owner); ok && delta.IsNegative() {
			paid := delta.Neg()
			if tx.FeePayer == owner {
				paid = paid.Sub(tx.FeeValue())
			}
			if paid.IsPositive() {
				r.Kind = domain.KindTrade
				r.AmountOut = paid
				r.CurrencyOut = consts.NativeSymbol
				r.Market = consts.MarketDex
			}
		}
	}

	// 规则 2：小额原生出账 + 账户创建/质押标记 → 实为操作/质押成本，降级为 Loss
	if r.Kind == domain.KindTransferOut && r.CurrencyOut == consts.NativeSymbol &&
		(tx.Has(domain.TagAccountCreate) || tx.Has(domain.TagStake)) &&
		r.AmountOut.LessThanOrEqual(consts.OperationalOutflowCeil) {
		r.Kind = domain.KindLoss
	}

	// 规则 3：账户关闭的入账是租金返还，扣费后记 Acquisition
	if r.Kind == domain.KindTransferIn && r.CurrencyIn == consts.NativeSymbol &&
		tx.Has(domain.TagAccountClose) {
		in := r.AmountIn.Sub(r.Fee)
		if in.IsPositive() {
			r.Kind = domain.KindAcquisition
			r.AmountIn = in
			r.Fee = decimal.Zero
			r.FeeCurrency = ""
		}
	}

	// 规则 4：UNKNOWN 币种回填。结构化 swap 描述可用时从中恢复符号
	if r.CurrencyIn == consts.UnknownCurrency || r.CurrencyOut == consts.UnknownCurrency {
		spent, received := symbolsFromDescription(tx.Description)
		if r.CurrencyIn == consts.UnknownCurrency && received != "" {
			r.CurrencyIn = received
		}
		if r.CurrencyOut == consts.UnknownCurrency && spent != "" {
			r.CurrencyOut = spent
		}
	}
	return r
}

// consolidateGroup 归并一个多行组（size ≥ 2）。
func consolidateGroup(
	sig string,
	members []domain.Row,
	tx *domain.Transaction,
	owner string,
	dustThreshold decimal.Decimal,
) []domain.Row {
	// 流动性行与修正行绕过净额计算，原样放行
	var passthrough, nettable []domain.Row
	for i := range members {
		if members[i].IsLiquidity() || members[i].IsAdjustment() {
			passthrough = append(passthrough, members[i])
			continue
		}
		nettable = append(nettable, members[i])
	}
	if len(nettable) < 2 {
		return append(passthrough, nettable...)
	}

	// 全 dust 组豁免：与 Dust 处理器的同签名豁免保持一致，不得改写
	if dustThreshold.IsPositive() && allDust(nettable, dustThreshold) {
		return append(passthrough, nettable...)
	}

	inflow := make(map[string]decimal.Decimal)
	outflow := make(map[string]decimal.Decimal)
	totalFee := decimal.Zero
	latestTs := nettable[0].Timestamp
	carried := ""
	for i := range nettable {
		r := &nettable[i]
		if r.AmountIn.IsPositive() {
			inflow[r.CurrencyIn] = inflow[r.CurrencyIn].Add(r.AmountIn)
		}
		if r.AmountOut.IsPositive() {
			outflow[r.CurrencyOut] = outflow[r.CurrencyOut].Add(r.AmountOut)
		}
		totalFee = totalFee.Add(r.Fee)
		if r.Timestamp > latestTs {
			latestTs = r.Timestamp
		}
		if carried == "" {
			carried = notePrefixOf(r.Note)
		}
	}

	note := domain.SigNote(sig, carried)
	base := domain.Row{Timestamp: latestTs, Note: note}
	if totalFee.IsPositive() {
		base.Fee = totalFee
		base.FeeCurrency = consts.NativeSymbol
	}

	// 非 DEX 场所且余额差可用时，余额差是 ground truth，
	// 赢过朴素的腿求和，净结果表达为单条原生转账
	if tx != nil && !isDexVenue(tx) {
		if delta, ok := tx.BalanceDelta(owner); ok && !delta.Abs().LessThanOrEqual(consts.FlowEpsilon) {
			row := base
			row.Market = consts.MarketSolana
			if delta.IsPositive() {
				row.Kind = domain.KindTransferIn
				row.AmountIn = delta.Add(totalFee)
				row.CurrencyIn = consts.NativeSymbol
			} else {
				row.Kind = domain.KindTransferOut
				out := delta.Neg().Sub(totalFee)
				if !out.IsPositive() {
					out = delta.Neg()
				}
				row.AmountOut = out
				row.CurrencyOut = consts.NativeSymbol
			}
			return append(passthrough, row)
		}
	}

	in := largestEntry(inflow)
	out := largestEntry(outflow)

	switch {
	case in == nil && out == nil:
		return passthrough

	case in != nil && out == nil:
		row := base
		row.Kind = domain.KindTransferIn
		row.AmountIn, row.CurrencyIn = in.amount, in.currency
		row.Market = consts.MarketSolana
		return append(passthrough, row)

	case in == nil:
		row := base
		row.Kind = domain.KindTransferOut
		row.AmountOut, row.CurrencyOut = out.amount, out.currency
		row.Market = consts.MarketSolana
		return append(passthrough, row)

	case in.currency == out.currency:
		// 同币种两侧净轧，绝不生成自成交
		row := base
		row.Market = consts.MarketSolana
		net := in.amount.Sub(out.amount)
		if net.IsPositive() {
			row.Kind = domain.KindTransferIn
			row.AmountIn, row.CurrencyIn = net, in.currency
		} else if net.IsNegative() {
			row.Kind = domain.KindTransferOut
			row.AmountOut, row.CurrencyOut = net.Neg(), out.currency
		} else {
			return passthrough
		}
		return append(passthrough, row)
	}

	trade := base
	trade.Kind = domain.KindTrade
	trade.AmountIn, trade.CurrencyIn = in.amount, in.currency
	trade.AmountOut, trade.CurrencyOut = out.amount, out.currency
	trade.Market = consts.MarketDex
	result := append(passthrough, trade)

	// 聚合器成交的原生余额差超出主行已入账部分时，补一条小额收入行
	if tx != nil && consts.IsAggregatorSource(tx.Source+" "+tx.Type) {
		if delta, ok := tx.BalanceDelta(owner); ok && delta.IsPositive() {
			accounted := decimal.Zero
			if in.currency == consts.NativeSymbol {
				accounted = in.amount
			}
			extra := delta.Sub(accounted)
			if extra.IsPositive() && extra.LessThan(consts.IncidentalIncomeCeil) {
				result = append(result, domain.Row{
					Timestamp:  latestTs,
					Kind:       domain.KindIncome,
					AmountIn:   extra,
					CurrencyIn: consts.NativeSymbol,
					Market:     consts.MarketDex,
					Note:       domain.SigNote(sig, consts.NoteAdjustTag),
				})
			}
		}
	}
	return result
}

// allDust 判断组内每条可净额行是否都是低于阈值的单边转账。
func allDust(members []domain.Row, threshold decimal.Decimal) bool {
	for i := range members {
		r := &members[i]
		switch r.Kind {
		case domain.KindTransferIn, domain.KindTransferOut, domain.KindAcquisition, domain.KindLoss:
		default:
			return false
		}
		if !r.HasSingleSide() {
			return false
		}
		amt := r.AmountIn
		if r.AmountOut.IsPositive() {
			amt = r.AmountOut
		}
		if !amt.LessThan(threshold) {
			return false
		}
	}
	return true
}

func isDexVenue(tx *domain.Transaction) bool {
	src := tx.Source + " " + tx.Type
	return consts.IsDexSource(src) || consts.IsAggregatorSource(src) ||
		tx.Has(domain.TagSwapEvent) || tx.Has(domain.TagOrderFill)
}

type flowEntry struct {
	currency string
	amount   decimal.Decimal
}

func largestEntry(flows map[string]decimal.Decimal) *flowEntry {
	var best *flowEntry
	for cur, amt := range flows {
		if !amt.IsPositive() {
			continue
		}
		if best == nil || amt.GreaterThan(best.amount) ||
			(amt.Equal(best.amount) && cur < best.currency) {
			best = &flowEntry{currency: cur, amount: amt}
		}
	}
	return best
}

// notePrefixOf 返回行备注中 sig: 标记之前携带的标签片段（如 lp-add）。
func notePrefixOf(note string) string {
	idx := strings.Index(note, consts.NoteSigPrefix)
	if idx <= 0 {
		return ""
	}
	return strings.TrimSpace(note[:idx])
}

// symbolsFromDescription 从自由文本 swap 描述里恢复 (支出符号, 收到符号)。
// 形如 "swapped 100 USDC for 2 SOL" 的描述取数字后跟的两个符号。
func symbolsFromDescription(desc string) (spent, received string) {
	fields := strings.Fields(desc)
	var syms []string
	for i := 0; i+1 < len(fields); i++ {
		if !looksNumeric(fields[i]) {
			continue
		}
		sym := strings.ToUpper(strings.Trim(fields[i+1], ".,"))
		if sym != "" {
			syms = append(syms, sym)
		}
	}
	if len(syms) >= 2 {
		return syms[0], syms[1]
	}
	return "", ""
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}
