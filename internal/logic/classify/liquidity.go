package classify

import (
	"strings"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/logic/domain"
)

// LiquidityKind 表示流动性事件的方向 × 池模型。
type LiquidityKind int

const (
	LiquidityAddClassic LiquidityKind = iota + 1
	LiquidityAddConcentrated
	LiquidityRemoveClassic
	LiquidityRemoveConcentrated
)

func (k LiquidityKind) IsAdd() bool {
	return k == LiquidityAddClassic || k == LiquidityAddConcentrated
}

// Leg 表示流动性事件中的一条资产腿。
type Leg struct {
	Symbol string
	Amount decimal.Decimal
}

// LiquidityEvent 是流动性检测的结构化输出。
type LiquidityEvent struct {
	Kind     LiquidityKind
	Protocol string
	Legs     []Leg // 存入（add）或取回（remove）侧的资产腿，已按符号聚合
	LPLeg    *Leg  // LP token 或 position NFT 标记腿（可选）
}

// sideLeg 是检测过程中带上下文的内部腿。
type sideLeg struct {
	transfer *domain.TokenTransfer
	symbol   string
	amount   decimal.Decimal
	nft      bool
}

// DetectLiquidity 从一笔交易的转账形态识别 add/remove 流动性事件。
// 与具体池子程序无关：只看 token/原生流量的形状与 source 提示。
// 识别不出（包括普通 swap、聚合器路由）时返回 nil，调用方落到 Swap 重建。
func (c *Context) DetectLiquidity(tx *domain.Transaction) *LiquidityEvent {
	src := tx.Source + " " + tx.Type

	// 聚合器整体排除：路由会顺带穿过池子，绝不能记成直接流动性操作
	if consts.IsAggregatorSource(src) {
		return nil
	}

	// Step 1: 按 NFT / fungible 与方向切分 owner 相关的 token 转账
	var fungibleIn, fungibleOut, nftIn, nftOut []sideLeg
	for i := range tx.Tokens {
		t := &tx.Tokens[i]
		var dir int
		switch {
		case c.inbound(t):
			dir = 1
		case c.outbound(t):
			dir = -1
		default:
			continue
		}
		sym, amt := c.resolveLeg(t)
		leg := sideLeg{transfer: t, symbol: sym, amount: amt, nft: t.IsNFT()}
		switch {
		case leg.nft && dir > 0:
			nftIn = append(nftIn, leg)
		case leg.nft:
			nftOut = append(nftOut, leg)
		case dir > 0:
			fungibleIn = append(fungibleIn, leg)
		default:
			fungibleOut = append(fungibleOut, leg)
		}
	}

	inSyms := distinctSymbols(fungibleIn)
	outSyms := distinctSymbols(fungibleOut)

	// Step 2: 一进一出且无 NFT 腿 → 普通 swap，不是流动性
	if len(inSyms) == 1 && len(outSyms) == 1 && len(nftIn)+len(nftOut) == 0 {
		return nil
	}
	if len(fungibleIn)+len(fungibleOut) == 0 {
		return nil
	}

	// Step 3: 从场所提示判定协议与池模型
	protocol := consts.DexProtocolName(src)
	concentrated := consts.IsConcentratedSource(src)

	// Step 4: 识别 LP 腿（文本标记 → 少数侧单腿 → 单侧独有 mint → position NFT）
	lpIn, lpOut := findLPLeg(fungibleIn, fungibleOut)
	var positionNFT *sideLeg
	if lpIn == nil && lpOut == nil {
		positionNFT = c.findPositionNFT(nftIn)
		if positionNFT != nil {
			concentrated = true
		}
	}

	// Step 5: 分类
	nonLPOut := excludeLeg(fungibleOut, lpOut)
	nonLPIn := excludeLeg(fungibleIn, lpIn)
	addEvidence := lpIn != nil || positionNFT != nil
	burnEvidence := lpOut != nil

	switch {
	case addEvidence && !burnEvidence && len(distinctSymbols(nonLPOut)) >= 2:
		lp := lpLegOf(lpIn, positionNFT)
		return &LiquidityEvent{
			Kind:     addKind(concentrated),
			Protocol: protocol,
			Legs:     aggregateBySymbol(nonLPOut),
			LPLeg:    lp,
		}

	case burnEvidence && len(distinctSymbols(nonLPIn)) >= 2:
		lp := lpLegOf(lpOut, nil)
		return &LiquidityEvent{
			Kind:     removeKind(concentrated),
			Protocol: protocol,
			Legs:     aggregateBySymbol(nonLPIn),
			LPLeg:    lp,
		}

	case len(inSyms) >= 2 && len(outSyms) == 0 && !addEvidence && !burnEvidence:
		// 部分池子不会暴露独立的 LP 转账；纯多币入账按 remove 处理。
		// 单边 bonding-curve 场所不允许走这条兜底（其普通买卖必须落到 swap 重建）。
		if consts.IsBondingCurveSource(src) {
			return nil
		}
		return &LiquidityEvent{
			Kind:     removeKind(concentrated),
			Protocol: protocol,
			Legs:     aggregateBySymbol(fungibleIn),
		}
	}
	return nil
}

func addKind(concentrated bool) LiquidityKind {
	if concentrated {
		return LiquidityAddConcentrated
	}
	return LiquidityAddClassic
}

func removeKind(concentrated bool) LiquidityKind {
	if concentrated {
		return LiquidityRemoveConcentrated
	}
	return LiquidityRemoveClassic
}

// findLPLeg 在 fungible 腿里找 LP 标记腿。
// 优先文本标记；其次少数侧恰好单腿的结构判定；再次单侧独有 mint。
func findLPLeg(in, out []sideLeg) (lpIn, lpOut *sideLeg) {
	for i := range in {
		if looksLikeLPSymbol(in[i].symbol) {
			return &in[i], nil
		}
	}
	for i := range out {
		if looksLikeLPSymbol(out[i].symbol) {
			return nil, &out[i]
		}
	}

	// 少数侧单腿：两币存入换一腿回执（add），或一腿回执换两币取回（remove）
	if len(in) == 1 && len(out) >= 2 {
		return &in[0], nil
	}
	if len(out) == 1 && len(in) >= 2 {
		return nil, &out[0]
	}

	// 单侧独有 mint：恰有一条腿的 mint 未在对侧出现
	inMints := mintSet(in)
	outMints := mintSet(out)
	var unique []*sideLeg
	var uniqueIn bool
	for i := range in {
		if !outMints[in[i].transfer.Mint] {
			unique = append(unique, &in[i])
			uniqueIn = true
		}
	}
	for i := range out {
		if !inMints[out[i].transfer.Mint] {
			unique = append(unique, &out[i])
			uniqueIn = false
		}
	}
	if len(unique) == 1 {
		if uniqueIn {
			return unique[0], nil
		}
		return nil, unique[0]
	}
	return nil, nil
}

// findPositionNFT 找集中流动性的 position NFT：
// 同交易内新铸给新子账户的入账 NFT（目标子账户不在已知衍生账户集合中）。
func (c *Context) findPositionNFT(nftIn []sideLeg) *sideLeg {
	for i := range nftIn {
		t := nftIn[i].transfer
		if t.ToTokenAccount != "" && !c.Derived[t.ToTokenAccount] {
			return &nftIn[i]
		}
	}
	return nil
}

func looksLikeLPSymbol(sym string) bool {
	return strings.Contains(sym, "LP") || strings.HasSuffix(sym, "-POOL")
}

func lpLegOf(leg *sideLeg, nft *sideLeg) *Leg {
	if leg != nil {
		return &Leg{Symbol: leg.symbol, Amount: leg.amount}
	}
	if nft != nil {
		return &Leg{Symbol: nft.symbol, Amount: decimal.NewFromInt(1)}
	}
	return nil
}

func distinctSymbols(legs []sideLeg) []string {
	seen := make(map[string]bool, len(legs))
	var out []string
	for _, l := range legs {
		if !seen[l.symbol] {
			seen[l.symbol] = true
			out = append(out, l.symbol)
		}
	}
	return out
}

func mintSet(legs []sideLeg) map[string]bool {
	out := make(map[string]bool, len(legs))
	for _, l := range legs {
		out[l.transfer.Mint] = true
	}
	return out
}

func excludeLeg(legs []sideLeg, drop *sideLeg) []sideLeg {
	if drop == nil {
		return legs
	}
	out := make([]sideLeg, 0, len(legs))
	for i := range legs {
		if &legs[i] == drop || legs[i].transfer == drop.transfer {
			continue
		}
		out = append(out, legs[i])
	}
	return out
}

func aggregateBySymbol(legs []sideLeg) []Leg {
	idx := make(map[string]int)
	var out []Leg
	for _, l := range legs {
		if i, ok := idx[l.symbol]; ok {
			out[i].Amount = out[i].Amount.Add(l.amount)
			continue
		}
		idx[l.symbol] = len(out)
		out = append(out, Leg{Symbol: l.symbol, Amount: l.amount})
	}
	return out
}
