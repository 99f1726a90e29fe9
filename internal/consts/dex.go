package consts

import "strings"

// 交易来源（source 提示）中的 DEX 名称片段。
// 增强交易的 source/description 是自由文本，这里统一做大小写无关的片段匹配。
var DexNameFragments = []string{
	"RAYDIUM",
	"ORCA",
	"METEORA",
	"LIFINITY",
	"PHOENIX",
	"OPENBOOK",
	"SERUM",
	"PUMP",
}

// 集中流动性（position NFT 模型）池子的名称片段。
var ConcentratedPoolFragments = []string{
	"WHIRLPOOL",
	"CLMM",
	"DLMM",
	"CONCENTRATED",
}

// 聚合器场所：路由过程会顺带穿过若干池子，
// 绝不能被误判为用户的直接流动性操作。
var AggregatorFragments = []string{
	"JUPITER",
	"OKX",
	"DFLOW",
	"AGGREGATOR",
}

// 单边 bonding-curve 场所（memecoin 发射台）：
// 除非找到显式的 add/remove 结构，否则其普通买卖必须落到 Swap 重建。
var BondingCurveFragments = []string{
	"PUMP_FUN",
	"PUMPFUN",
	"MOONSHOT",
}

// 订单簿成交的文本标记（type/source/description 任一命中即视为 order-fill）。
var OrderFillFragments = []string{
	"LIMIT_ORDER",
	"FILL_ORDER",
	"TAKE_ORDER",
	"OPENBOOK",
	"SERUM",
}

// 订单挂单 / 撤单的文本标记。
var OrderPlaceFragments = []string{
	"PLACE_ORDER",
	"INIT_ORDER",
	"CREATE_ORDER",
	"CANCEL_ORDER",
}

// 质押动作的文本标记。
var StakeFragments = []string{
	"STAKE",
	"DELEGATE",
	"UNSTAKE",
	"WITHDRAW_STAKE",
}

func matchAnyFragment(s string, fragments []string) bool {
	if s == "" {
		return false
	}
	u := strings.ToUpper(s)
	for _, f := range fragments {
		if strings.Contains(u, f) {
			return true
		}
	}
	return false
}

// IsDexSource 判断 source/description 是否指向已知 DEX。
func IsDexSource(s string) bool { return matchAnyFragment(s, DexNameFragments) }

// IsConcentratedSource 判断是否为集中流动性池（position NFT 模型）。
func IsConcentratedSource(s string) bool { return matchAnyFragment(s, ConcentratedPoolFragments) }

// IsAggregatorSource 判断是否为聚合器场所。
func IsAggregatorSource(s string) bool { return matchAnyFragment(s, AggregatorFragments) }

// IsBondingCurveSource 判断是否为单边 bonding-curve 场所。
func IsBondingCurveSource(s string) bool { return matchAnyFragment(s, BondingCurveFragments) }

// IsOrderFillMarker 判断是否为订单簿成交标记。
func IsOrderFillMarker(s string) bool { return matchAnyFragment(s, OrderFillFragments) }

// IsOrderPlaceMarker 判断是否为订单挂单标记。
func IsOrderPlaceMarker(s string) bool { return matchAnyFragment(s, OrderPlaceFragments) }

// IsStakeMarker 判断是否为质押动作标记。
func IsStakeMarker(s string) bool { return matchAnyFragment(s, StakeFragments) }

// DexProtocolName 从 source 提示中提取规范化协议名（首个命中的片段）。
func DexProtocolName(s string) string {
	u := strings.ToUpper(s)
	for _, f := range DexNameFragments {
		if strings.Contains(u, f) {
			return strings.ToUpper(f[:1]) + strings.ToLower(f[1:])
		}
	}
	return "Unknown"
}
