package classify

import (
	"strings"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/logic/domain"
	"wallet-tax-sol/internal/logic/token"
	"wallet-tax-sol/pkg/logger"
)

// Classify 对一批交易逐条分类，产出记账行。
// 单条交易分类失败（panic）只记日志并跳过，绝不中断整批扫描。
func Classify(
	txs []*domain.Transaction,
	owner string,
	derivedAccounts []string,
	resolver *token.Resolver,
	opts Options,
) []domain.Row {
	c := NewContext(owner, derivedAccounts, resolver, opts)
	var rows []domain.Row
	for _, tx := range txs {
		rows = append(rows, c.ClassifyTx(tx)...)
	}
	return rows
}

// ClassifyTx 对单笔交易执行有序规则表，返回 0..N 条记账行。
func (c *Context) ClassifyTx(tx *domain.Transaction) (rows []domain.Row) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[classify] skip malformed tx, sig=%s, err=%v", tx.Signature, r)
			rows = nil
		}
	}()

	e := &emitter{c: c, tx: tx}
	for _, rl := range classifyRules {
		if rl.apply(c, tx, e) {
			break
		}
	}
	return e.rows
}

// rule 是规则表中的一条具名分支：apply 返回 true 表示分支命中并终止评估。
// 顺序即优先级，分支之间互不重入。
type rule struct {
	name  string
	apply func(c *Context, tx *domain.Transaction, e *emitter) bool
}

var classifyRules = []rule{
	{"order-place-no-fill", ruleOrderPlaceNoFill},
	{"order-fill", ruleOrderFill},
	{"account-create-cost", ruleAccountCreateCost},
	{"account-close-refund", ruleAccountCloseRefund},
	{"stake-fee-only", ruleStakeFeeOnly},
	{"liquidity", ruleLiquidity},
	{"swap", ruleSwap},
	{"hybrid-fallback", ruleHybridFallback},
	{"routed-fallback", ruleRoutedFallback},
	{"generic-transfers", ruleGenericTransfers},
	{"airdrop", ruleAirdrop},
	{"reward", ruleReward},
	{"safety-net", ruleSafetyNet},
}

// emitter 负责落行并维护单笔交易的手续费唯一性：
// 第一条落地的行消费交易费，其余行一律零费。
type emitter struct {
	c       *Context
	tx      *domain.Transaction
	rows    []domain.Row
	feeUsed bool
}

// emit 追加一行，未消费过的交易费挂到这一行上。
func (e *emitter) emit(r domain.Row) {
	e.emitExtraFee(r, decimal.Zero)
}

// emitExtraFee 同 emit，另将 extra（已折算 SOL）并入费字段。
func (e *emitter) emitExtraFee(r domain.Row, extra decimal.Decimal) {
	if !e.feeUsed {
		fee := e.feeIfPayer().Add(extra)
		if fee.IsPositive() {
			r.Fee = fee
			r.FeeCurrency = consts.NativeSymbol
		}
		e.feeUsed = true
	}
	e.rows = append(e.rows, r)
}

// emitFeeFolded 追加一行并把交易费标记为已消费但不落字段：
// 行金额本身已经包含（或就是）手续费，再挂费会重复计数。
func (e *emitter) emitFeeFolded(r domain.Row) {
	e.feeUsed = true
	e.rows = append(e.rows, r)
}

// feeIfPayer 返回 owner 实际承担的交易费（非 owner 付费时为零）。
func (e *emitter) feeIfPayer() decimal.Decimal {
	if e.tx.FeePayer == e.c.Owner {
		return e.tx.FeeValue()
	}
	return decimal.Zero
}

// netNativeOutflow 计算 owner 在本交易中的原生净支出（SOL，含费）。
// 优先用 accountData 余额差这一 ground truth，缺失时回退到转账腿汇总。
func (c *Context) netNativeOutflow(tx *domain.Transaction) decimal.Decimal {
	if delta, ok := tx.BalanceDelta(c.Owner); ok {
		return delta.Neg()
	}
	nf := c.NativeFlows(tx)
	out := nf.Out.Sub(nf.In)
	if tx.FeePayer == c.Owner {
		out = out.Add(tx.FeeValue())
	}
	return out
}

// 分支 1：挂单未成交。小额有界的原生支出按不可退回的操作成本记损失。
func ruleOrderPlaceNoFill(c *Context, tx *domain.Transaction, e *emitter) bool {
	if !tx.Has(domain.TagOrderPlace) || tx.Has(domain.TagOrderFill) {
		return false
	}
	out := c.netNativeOutflow(tx)
	if out.GreaterThan(consts.FlowEpsilon) && out.LessThanOrEqual(consts.OperationalOutflowCeil) {
		e.emitFeeFolded(domain.Row{
			Timestamp:   c.timestamp(tx),
			Kind:        domain.KindLoss,
			AmountOut:   out,
			CurrencyOut: consts.NativeSymbol,
			Market:      consts.MarketDex,
			Note:        domain.SigNote(tx.Signature),
		})
	}
	return true
}

// 分支 2：订单成交。直接按 token/原生进出总量出腿（§ 重建策略 4 的内联变体）；
// 重建不出来则继续向下评估，不在这里吞掉交易。
func ruleOrderFill(c *Context, tx *domain.Transaction, e *emitter) bool {
	if !tx.Has(domain.TagOrderFill) {
		return false
	}
	tf := c.collectTokenFlows(tx)
	nf := c.NativeFlows(tx)
	r := c.orderFillCollapse(tx, tf, nf)
	if r == nil {
		return false
	}
	emitSwapRows(c, tx, e, r)
	return true
}

// 分支 3：创建子账户且无对冲流入。租金等原生支出记损失。
func ruleAccountCreateCost(c *Context, tx *domain.Transaction, e *emitter) bool {
	if !tx.Has(domain.TagAccountCreate) {
		return false
	}
	tf := c.collectTokenFlows(tx)
	if len(tf.grossIn)+len(tf.grossOut) > 0 {
		return false
	}
	out := c.netNativeOutflow(tx)
	if !out.GreaterThan(consts.FlowEpsilon) || out.GreaterThan(consts.OperationalOutflowCeil) {
		return false
	}
	e.emitFeeFolded(domain.Row{
		Timestamp:   c.timestamp(tx),
		Kind:        domain.KindLoss,
		AmountOut:   out,
		CurrencyOut: consts.NativeSymbol,
		Market:      consts.MarketSolana,
		Note:        domain.SigNote(tx.Signature),
	})
	return true
}

// 分支 4：关闭子账户且产生正余额差。返还的是租金，不是收入，记 Acquisition。
// 金额为余额差扣除交易费后的净值，费字段置零避免重复计数。
func ruleAccountCloseRefund(c *Context, tx *domain.Transaction, e *emitter) bool {
	if !tx.Has(domain.TagAccountClose) {
		return false
	}
	delta, ok := tx.BalanceDelta(c.Owner)
	if !ok {
		nf := c.NativeFlows(tx)
		delta = nf.In.Sub(nf.Out)
		if tx.FeePayer == c.Owner {
			delta = delta.Sub(tx.FeeValue())
		}
	}
	if !delta.IsPositive() {
		return false
	}
	in := delta
	if tx.FeePayer == c.Owner {
		in = in.Sub(tx.FeeValue())
	}
	if !in.IsPositive() {
		return false
	}
	e.emitFeeFolded(domain.Row{
		Timestamp:  c.timestamp(tx),
		Kind:       domain.KindAcquisition,
		AmountIn:   in,
		CurrencyIn: consts.NativeSymbol,
		Market:     consts.MarketSolana,
		Note:       domain.SigNote(tx.Signature),
	})
	return true
}

// 分支 5：质押类动作且原生变动仅为交易费。记一条费额损失并终止，
// 防止质押被误读成转账或交易。
func ruleStakeFeeOnly(c *Context, tx *domain.Transaction, e *emitter) bool {
	if !tx.Has(domain.TagStake) {
		return false
	}
	delta, ok := tx.BalanceDelta(c.Owner)
	feeOnly := false
	if ok {
		feeOnly = delta.Add(e.feeIfPayer()).Abs().LessThanOrEqual(consts.FlowEpsilon)
	} else {
		nf := c.NativeFlows(tx)
		feeOnly = nf.In.IsZero() && nf.Out.IsZero()
	}
	if !feeOnly {
		return false
	}
	fee := e.feeIfPayer()
	if fee.IsPositive() {
		e.emitFeeFolded(domain.Row{
			Timestamp:   c.timestamp(tx),
			Kind:        domain.KindLoss,
			AmountOut:   fee,
			CurrencyOut: consts.NativeSymbol,
			Market:      consts.MarketStaking,
			Note:        domain.SigNote(tx.Signature),
		})
	}
	return true
}

// 分支 6：流动性事件。add 每条存入腿出一行，remove 对称；
// 有具名 LP 标记时按 LP 份额配成 Trade，否则退化为 Loss/Acquisition。
func ruleLiquidity(c *Context, tx *domain.Transaction, e *emitter) bool {
	ev := c.DetectLiquidity(tx)
	if ev == nil {
		return false
	}

	prefix := consts.NoteLiquidityRem
	if ev.Kind.IsAdd() {
		prefix = consts.NoteLiquidityAdd
	}
	note := domain.SigNote(tx.Signature, prefix)
	ts := c.timestamp(tx)

	var share decimal.Decimal
	if ev.LPLeg != nil && len(ev.Legs) > 0 {
		share = ev.LPLeg.Amount.Div(decimal.NewFromInt(int64(len(ev.Legs))))
	}

	for _, leg := range ev.Legs {
		row := domain.Row{Timestamp: ts, Market: consts.MarketLiquidity, Note: note}
		switch {
		case ev.Kind.IsAdd() && ev.LPLeg != nil:
			row.Kind = domain.KindTrade
			row.AmountIn, row.CurrencyIn = share, ev.LPLeg.Symbol
			row.AmountOut, row.CurrencyOut = leg.Amount, leg.Symbol
		case ev.Kind.IsAdd():
			row.Kind = domain.KindLoss
			row.AmountOut, row.CurrencyOut = leg.Amount, leg.Symbol
		case ev.LPLeg != nil:
			row.Kind = domain.KindTrade
			row.AmountIn, row.CurrencyIn = leg.Amount, leg.Symbol
			row.AmountOut, row.CurrencyOut = share, ev.LPLeg.Symbol
		default:
			row.Kind = domain.KindAcquisition
			row.AmountIn, row.CurrencyIn = leg.Amount, leg.Symbol
		}
		e.emit(row)
	}
	return len(ev.Legs) > 0
}

// 分支 7：四策略 swap 重建成功即出一条 Trade（附带收入行可选）。
func ruleSwap(c *Context, tx *domain.Transaction, e *emitter) bool {
	r := c.ReconstructSwap(tx)
	if r == nil {
		return false
	}
	emitSwapRows(c, tx, e, r)
	return true
}

func emitSwapRows(c *Context, tx *domain.Transaction, e *emitter, r *SwapResult) {
	e.emitExtraFee(domain.Row{
		Timestamp:   c.timestamp(tx),
		Kind:        domain.KindTrade,
		AmountIn:    r.InAmount,
		CurrencyIn:  r.InSymbol,
		AmountOut:   r.OutAmount,
		CurrencyOut: r.OutSymbol,
		Market:      consts.MarketDex,
		Note:        domain.SigNote(tx.Signature),
	}, r.FeeFold)
	if r.Income != nil {
		e.emit(domain.Row{
			Timestamp:  c.timestamp(tx),
			Kind:       domain.KindIncome,
			AmountIn:   r.Income.Amount,
			CurrencyIn: r.Income.Symbol,
			Market:     consts.MarketDex,
			Note:       domain.SigNote(tx.Signature, consts.NoteAdjustTag),
		})
	}
}

// 分支 8：缺完整 swap 证据的 token↔native 兜底。
// 先区分纯质押/锁仓（token 出、原生变动≈费 → TransferOut）与
// 纯赎回/领取（token 入、原生变动≈费 → TransferIn）；
// 都不是且没有显式原生转账记录时，用整体余额差合成原生腿做一次折叠。
func ruleHybridFallback(c *Context, tx *domain.Transaction, e *emitter) bool {
	tf := c.collectTokenFlows(tx)
	pos, neg := tf.positivesNegatives()
	delta, hasDelta := tx.BalanceDelta(c.Owner)
	fee := e.feeIfPayer()
	feeOnly := hasDelta && delta.Add(fee).Abs().LessThanOrEqual(consts.FlowEpsilon)

	ts := c.timestamp(tx)
	note := domain.SigNote(tx.Signature)

	switch {
	case len(neg) == 1 && len(pos) == 0 && feeOnly:
		e.emit(domain.Row{
			Timestamp: ts, Kind: domain.KindTransferOut,
			AmountOut: neg[0].Amount, CurrencyOut: neg[0].Symbol,
			Market: consts.MarketSolana, Note: note,
		})
		return true

	case len(pos) == 1 && len(neg) == 0 && feeOnly:
		e.emit(domain.Row{
			Timestamp: ts, Kind: domain.KindTransferIn,
			AmountIn: pos[0].Amount, CurrencyIn: pos[0].Symbol,
			Market: consts.MarketSolana, Note: note,
		})
		return true
	}

	// 合成原生腿：仅在完全没有显式原生转账记录时启用
	if len(tx.Native) != 0 || !hasDelta {
		return false
	}
	switch {
	case len(pos) == 1 && len(neg) == 0 && delta.IsNegative():
		spent := delta.Neg().Sub(fee)
		if spent.GreaterThan(consts.FlowEpsilon) {
			emitSwapRows(c, tx, e, &SwapResult{
				InSymbol: pos[0].Symbol, InAmount: pos[0].Amount,
				OutSymbol: consts.NativeSymbol, OutAmount: spent,
			})
			return true
		}
	case len(neg) == 1 && len(pos) == 0 && delta.IsPositive():
		received := delta.Add(fee)
		emitSwapRows(c, tx, e, &SwapResult{
			InSymbol: consts.NativeSymbol, InAmount: received,
			OutSymbol: neg[0].Symbol, OutAmount: neg[0].Amount,
		})
		return true
	}
	return false
}

// 分支 9：多跳路由兜底。双向都有 token 毛流量即按首付 → 终收折叠成一条 Trade，
// 不再要求桥腿严格对账（严格版在分支 7 已经试过）。
func ruleRoutedFallback(c *Context, tx *domain.Transaction, e *emitter) bool {
	if len(tx.Tokens) < 2 {
		return false
	}
	tf := c.collectTokenFlows(tx)
	nf := c.NativeFlows(tx)
	in := largestExcluding(tf.grossIn, "")
	out := largestExcluding(tf.grossOut, "")
	if in == nil || out == nil || in.Symbol == out.Symbol {
		return false
	}
	r := &SwapResult{
		InSymbol: in.Symbol, InAmount: in.Amount,
		OutSymbol: out.Symbol, OutAmount: out.Amount,
	}
	change := nf.In.Sub(nf.Out)
	if change.IsPositive() && change.LessThan(consts.IncidentalIncomeCeil) {
		r.Income = &Leg{Symbol: consts.NativeSymbol, Amount: change}
	}
	emitSwapRows(c, tx, e, r)
	return true
}

// 分支 10+11：通用转账（复合段）。原生流出/流入各出一行（可同笔并存），
// 剩余 owner 相关 token 腿逐条出转账行。任一行落地即终止评估。
func ruleGenericTransfers(c *Context, tx *domain.Transaction, e *emitter) bool {
	nf := c.NativeFlows(tx)
	ts := c.timestamp(tx)
	note := domain.SigNote(tx.Signature)

	suppress := func(amt decimal.Decimal) bool {
		// 系统/子账户程序来源的亚 epsilon 流量是租金机制噪声，不是真实转账
		return amt.LessThanOrEqual(consts.FlowEpsilon) && isAccountMechanicsSource(tx)
	}

	if nf.Out.IsPositive() && !suppress(nf.Out) {
		e.emit(domain.Row{
			Timestamp: ts, Kind: domain.KindTransferOut,
			AmountOut: nf.Out, CurrencyOut: consts.NativeSymbol,
			Market: consts.MarketSolana, Note: note,
		})
	}
	if nf.In.IsPositive() && !suppress(nf.In) {
		in := nf.In
		// owner 自己付费且无对向流出时，毛额补回交易费
		if !nf.Out.IsPositive() {
			in = in.Add(e.feeIfPayer())
		}
		e.emit(domain.Row{
			Timestamp: ts, Kind: domain.KindTransferIn,
			AmountIn: in, CurrencyIn: consts.NativeSymbol,
			Market: consts.MarketSolana, Note: note,
		})
	}

	for i := range tx.Tokens {
		t := &tx.Tokens[i]
		if t.IsNFT() && !c.Opts.IncludeNFTs {
			continue
		}
		sym, amt := c.resolveLeg(t)
		if !amt.IsPositive() {
			continue
		}
		switch {
		case c.outbound(t):
			e.emit(domain.Row{
				Timestamp: ts, Kind: domain.KindTransferOut,
				AmountOut: amt, CurrencyOut: sym,
				Market: consts.MarketSolana, Note: note,
			})
		case c.inbound(t):
			e.emit(domain.Row{
				Timestamp: ts, Kind: domain.KindTransferIn,
				AmountIn: amt, CurrencyIn: sym,
				Market: consts.MarketSolana, Note: note,
			})
		}
	}
	return len(e.rows) > 0
}

// 分支 12：空投标记。取第一条入向 token 腿记 Acquisition。
// 走到这里说明复合段没认出任何 owner 相关腿，放宽到任意 token 腿兜底。
func ruleAirdrop(c *Context, tx *domain.Transaction, e *emitter) bool {
	if !tx.Has(domain.TagAirdrop) || len(tx.Tokens) == 0 {
		return false
	}
	leg := &tx.Tokens[0]
	for i := range tx.Tokens {
		if c.OwnsAsDestination(&tx.Tokens[i]) {
			leg = &tx.Tokens[i]
			break
		}
	}
	sym, amt := c.resolveLeg(leg)
	if !amt.IsPositive() {
		return false
	}
	e.emit(domain.Row{
		Timestamp: c.timestamp(tx), Kind: domain.KindAcquisition,
		AmountIn: amt, CurrencyIn: sym,
		Market: consts.MarketSolana, Note: domain.SigNote(tx.Signature),
	})
	return true
}

// 分支 13：奖励/质押收益。金额优先取显式字段，缺失时从余额差扣费反推。
func ruleReward(c *Context, tx *domain.Transaction, e *emitter) bool {
	if !tx.Has(domain.TagReward) {
		return false
	}
	var amt decimal.Decimal
	if tx.RewardAmount != "" {
		if d, err := decimal.NewFromString(tx.RewardAmount); err == nil {
			amt = d
		}
	}
	if !amt.IsPositive() {
		if delta, ok := tx.BalanceDelta(c.Owner); ok {
			amt = delta.Add(e.feeIfPayer())
		}
	}
	if !amt.IsPositive() {
		return false
	}
	e.emit(domain.Row{
		Timestamp: c.timestamp(tx), Kind: domain.KindIncome,
		AmountIn: amt, CurrencyIn: consts.NativeSymbol,
		Market: consts.MarketStaking, Note: domain.SigNote(tx.Signature),
	})
	return true
}

// 分支 14：安全网。有可观测余额变化的交易绝不静默丢弃：
// 按扣费后的余额差出一条转账行；净变化只剩费时退化为费额损失行。
func ruleSafetyNet(c *Context, tx *domain.Transaction, e *emitter) bool {
	delta, ok := tx.BalanceDelta(c.Owner)
	fee := e.feeIfPayer()
	if !ok {
		nf := c.NativeFlows(tx)
		delta = nf.In.Sub(nf.Out).Sub(fee)
	}
	ts := c.timestamp(tx)
	note := domain.SigNote(tx.Signature)

	switch {
	case delta.GreaterThan(consts.FlowEpsilon):
		e.emit(domain.Row{
			Timestamp: ts, Kind: domain.KindTransferIn,
			AmountIn: delta.Add(fee), CurrencyIn: consts.NativeSymbol,
			Market: consts.MarketSolana, Note: note,
		})
	case delta.Neg().GreaterThan(consts.FlowEpsilon):
		out := delta.Neg().Sub(fee)
		if out.GreaterThan(consts.FlowEpsilon) {
			e.emit(domain.Row{
				Timestamp: ts, Kind: domain.KindTransferOut,
				AmountOut: out, CurrencyOut: consts.NativeSymbol,
				Market: consts.MarketSolana, Note: note,
			})
		} else {
			// 流出全部被交易费解释，记费额损失
			e.emitFeeFolded(domain.Row{
				Timestamp: ts, Kind: domain.KindLoss,
				AmountOut: delta.Neg(), CurrencyOut: consts.NativeSymbol,
				Market: consts.MarketSolana, Note: note,
			})
		}
	}
	return true
}

// isAccountMechanicsSource 判断交易来源是否为系统/子账户程序一类的账户机制操作。
func isAccountMechanicsSource(tx *domain.Transaction) bool {
	upper := strings.ToUpper(tx.Source + " " + tx.Type)
	return strings.Contains(upper, "SYSTEM_PROGRAM") ||
		strings.Contains(upper, "ASSOCIATED") ||
		tx.Has(domain.TagAccountCreate) || tx.Has(domain.TagAccountClose)
}
