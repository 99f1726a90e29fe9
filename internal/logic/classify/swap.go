package classify

import (
	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/logic/domain"
)

// SwapResult 表示重建出的一笔交易的两条经济腿：
// 换入（InSymbol/InAmount）与换出（OutSymbol/OutAmount），
// 以及应折入手续费而非交易腿的附带原生支出 FeeFold。
type SwapResult struct {
	InSymbol  string
	InAmount  decimal.Decimal
	OutSymbol string
	OutAmount decimal.Decimal
	FeeFold   decimal.Decimal
	Income    *Leg // 可选的小额找零/返利收入腿（原生币，受上限约束）
}

// tokenFlows 汇总 owner 相关 token 腿的净流量与双向毛流量（按符号）。
type tokenFlows struct {
	net      map[string]decimal.Decimal
	grossIn  map[string]decimal.Decimal
	grossOut map[string]decimal.Decimal
}

func (c *Context) collectTokenFlows(tx *domain.Transaction) tokenFlows {
	tf := tokenFlows{
		net:      make(map[string]decimal.Decimal),
		grossIn:  make(map[string]decimal.Decimal),
		grossOut: make(map[string]decimal.Decimal),
	}
	for i := range tx.Tokens {
		t := &tx.Tokens[i]
		if t.IsNFT() {
			continue
		}
		sym, amt := c.resolveLeg(t)
		if c.inbound(t) {
			tf.net[sym] = tf.net[sym].Add(amt)
			tf.grossIn[sym] = tf.grossIn[sym].Add(amt)
		} else if c.outbound(t) {
			tf.net[sym] = tf.net[sym].Sub(amt)
			tf.grossOut[sym] = tf.grossOut[sym].Add(amt)
		}
	}
	return tf
}

// positivesNegatives 将净流量按符号切成正负两组，忽略低于噪声容差的净值。
func (tf tokenFlows) positivesNegatives() (pos, neg []Leg) {
	for sym, amt := range tf.net {
		switch {
		case amt.GreaterThan(consts.FlowEpsilon):
			pos = append(pos, Leg{Symbol: sym, Amount: amt})
		case amt.LessThan(consts.FlowEpsilon.Neg()):
			neg = append(neg, Leg{Symbol: sym, Amount: amt.Neg()})
		}
	}
	return pos, neg
}

// ReconstructSwap 在流动性检测落空后按优先级尝试四种策略重建交易双腿：
// 1) token 净流量折叠；2) token↔native 混合折叠；3) 多跳桥腿折叠；4) 订单簿成交。
// 全部失败返回 nil，调用方落到通用转账处理。
func (c *Context) ReconstructSwap(tx *domain.Transaction) *SwapResult {
	tf := c.collectTokenFlows(tx)
	nf := c.NativeFlows(tx)

	if r := c.tokenNetCollapse(tx, tf, nf); r != nil {
		return r
	}
	if r := c.hybridCollapse(tx, tf, nf); r != nil {
		return r
	}
	if r := c.bridgeCollapse(tf); r != nil {
		return r
	}
	if tx.Has(domain.TagOrderFill) {
		return c.orderFillCollapse(tx, tf, nf)
	}
	return nil
}

// tokenNetCollapse（策略 1）：整笔交易内每个符号的净流量恰好一正一负即为两腿。
// 未被 token 腿覆盖的原生净支出视为附带小费，封顶后折入手续费。
func (c *Context) tokenNetCollapse(tx *domain.Transaction, tf tokenFlows, nf NativeFlows) *SwapResult {
	pos, neg := tf.positivesNegatives()
	if len(pos) != 1 || len(neg) != 1 {
		return nil
	}

	r := &SwapResult{
		InSymbol:  pos[0].Symbol,
		InAmount:  pos[0].Amount,
		OutSymbol: neg[0].Symbol,
		OutAmount: neg[0].Amount,
	}

	// 原生净支出未被同币种 token 腿覆盖时按附带小费处理
	netNativeOut := nf.Out.Sub(nf.In)
	if netNativeOut.IsPositive() && r.OutSymbol != consts.NativeSymbol {
		r.FeeFold = decimal.Min(netNativeOut, consts.TipFoldCap)
	}
	return r
}

// hybridCollapse（策略 2）：交易的一侧是普通原生转账而非 wrapped token
//（bonding-curve 场所的常见形态）。主导原生腿必须满足显著性校验，
// 防止把顺带出现的小额 token 转账误判成买卖。
func (c *Context) hybridCollapse(tx *domain.Transaction, tf tokenFlows, nf NativeFlows) *SwapResult {
	pos, neg := tf.positivesNegatives()
	src := tx.Source + " " + tx.Type

	dominant := dominantNativeLeg(nf)
	total := nf.In.Add(nf.Out)
	dominanceOK := dominant.GreaterThanOrEqual(consts.HybridNativeFloor) ||
		(total.IsPositive() && dominant.GreaterThanOrEqual(total.Div(decimal.NewFromInt(2)))) ||
		consts.IsBondingCurveSource(src) || consts.IsAggregatorSource(src)
	if !dominanceOK {
		return nil
	}

	switch {
	case len(pos) == 1 && len(neg) == 0:
		// 买入：收到 token，支付原生币
		paid := nf.Out.Sub(nf.In)
		if !paid.IsPositive() || pos[0].Symbol == consts.NativeSymbol {
			return nil
		}
		return &SwapResult{
			InSymbol:  pos[0].Symbol,
			InAmount:  pos[0].Amount,
			OutSymbol: consts.NativeSymbol,
			OutAmount: paid,
		}

	case len(neg) == 1 && len(pos) == 0:
		// 卖出要求原生净入账严格为正，否则更可能是质押/锁仓而非出售。
		// 该守卫是判定的承重墙，不得放宽。
		if !nf.In.GreaterThan(nf.Out) {
			return nil
		}
		if neg[0].Symbol == consts.NativeSymbol {
			return nil
		}
		return &SwapResult{
			InSymbol:  consts.NativeSymbol,
			InAmount:  nf.In.Sub(nf.Out),
			OutSymbol: neg[0].Symbol,
			OutAmount: neg[0].Amount,
		}
	}
	return nil
}

// bridgeCollapse（策略 3）：路由交易经过中间桥币（双向毛流量近等，1% 容差）时，
// 折叠为真实首付资产 → 真实终收资产，桥币只是路由管道，不进输出。
func (c *Context) bridgeCollapse(tf tokenFlows) *SwapResult {
	var bridge string
	for sym, in := range tf.grossIn {
		out, ok := tf.grossOut[sym]
		if !ok || !in.IsPositive() || !out.IsPositive() {
			continue
		}
		maxSide := decimal.Max(in, out)
		if in.Sub(out).Abs().LessThanOrEqual(maxSide.Mul(consts.BridgeTolerancePct)) {
			bridge = sym
			break
		}
	}
	if bridge == "" {
		return nil
	}

	firstSpent := largestExcluding(tf.grossOut, bridge)
	finalReceived := largestExcluding(tf.grossIn, bridge)
	if firstSpent == nil || finalReceived == nil || firstSpent.Symbol == finalReceived.Symbol {
		return nil
	}
	return &SwapResult{
		InSymbol:  finalReceived.Symbol,
		InAmount:  finalReceived.Amount,
		OutSymbol: firstSpent.Symbol,
		OutAmount: firstSpent.Amount,
	}
}

// orderFillCollapse（策略 4）：订单簿成交直接用 token 双向毛流量出腿，
// 缺 token 腿的一侧用原生币替位；原生净入账小于上限时以附带收入行记找零/返利。
func (c *Context) orderFillCollapse(tx *domain.Transaction, tf tokenFlows, nf NativeFlows) *SwapResult {
	in := largestExcluding(tf.grossIn, "")
	out := largestExcluding(tf.grossOut, "")

	r := &SwapResult{}
	switch {
	case in != nil && out != nil:
		r.InSymbol, r.InAmount = in.Symbol, in.Amount
		r.OutSymbol, r.OutAmount = out.Symbol, out.Amount
		// 双侧都有 token 腿时，额外的原生净入账按找零/返利记收入
		change := nf.In.Sub(nf.Out)
		if change.IsPositive() && change.LessThan(consts.IncidentalIncomeCeil) {
			r.Income = &Leg{Symbol: consts.NativeSymbol, Amount: change}
		}
	case in != nil:
		paid := nf.Out.Sub(nf.In)
		if !paid.IsPositive() {
			return nil
		}
		r.InSymbol, r.InAmount = in.Symbol, in.Amount
		r.OutSymbol, r.OutAmount = consts.NativeSymbol, paid
	case out != nil:
		received := nf.In.Sub(nf.Out)
		if !received.IsPositive() {
			return nil
		}
		r.InSymbol, r.InAmount = consts.NativeSymbol, received
		r.OutSymbol, r.OutAmount = out.Symbol, out.Amount
	default:
		return nil
	}
	if r.InSymbol == r.OutSymbol {
		return nil
	}
	return r
}

func dominantNativeLeg(nf NativeFlows) decimal.Decimal {
	max := decimal.Zero
	for _, l := range nf.InLegs {
		if amt := lamports(l.Amount); amt.GreaterThan(max) {
			max = amt
		}
	}
	for _, l := range nf.OutLegs {
		if amt := lamports(l.Amount); amt.GreaterThan(max) {
			max = amt
		}
	}
	return max
}

func lamports(v uint64) decimal.Decimal {
	return decimal.New(int64(v), -consts.NativeDecimals)
}

func largestExcluding(flows map[string]decimal.Decimal, exclude string) *Leg {
	var best *Leg
	for sym, amt := range flows {
		if sym == exclude || !amt.IsPositive() {
			continue
		}
		if best == nil || amt.GreaterThan(best.Amount) {
			best = &Leg{Symbol: sym, Amount: amt}
		}
	}
	return best
}
