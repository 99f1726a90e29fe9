package consts

import "github.com/shopspring/decimal"

// 经验调参常量。这些阈值来自对主网钱包的实测标定，
// 针对 Solana 的费率与常见场所行为，换链或换场所时需要重新评估。
var (
	// FlowEpsilon 判定 token 净流量是否视为噪声（strategy 1 的近零容差）。
	FlowEpsilon = decimal.RequireFromString("0.000000001")

	// OperationalOutflowCeil 操作性原生支出（租金、挂单押金）的上限，单位 SOL。
	// 超过该值的支出不再按"运营成本"处理。
	OperationalOutflowCeil = decimal.RequireFromString("0.02")

	// IncidentalIncomeCeil 附带收入行（找零 / 返利）的上限，单位 SOL。
	IncidentalIncomeCeil = decimal.RequireFromString("0.05")

	// TipFoldCap 折入手续费的附带原生支出（小费）上限，单位 SOL。
	TipFoldCap = decimal.RequireFromString("0.5")

	// HybridNativeFloor token↔native 混合折叠中主导原生腿的绝对下限，单位 SOL。
	HybridNativeFloor = decimal.RequireFromString("0.01")
)

// BridgeTolerancePct 多跳路由中桥腿进出金额的相对容差（1%）。
var BridgeTolerancePct = decimal.RequireFromString("0.01")

// 行的 market 字段使用的封闭标签集；未识别的场所透传原文。
const (
	MarketSolana    = "Solana"
	MarketStaking   = "Solana Staking"
	MarketDex       = "Solana DEX"
	MarketLiquidity = "Solana LP"
)

// 行备注中的结构化标记。sig: 是贯穿 Dust / Consolidate 的 join key。
const (
	NoteSigPrefix    = "sig:"
	NoteDustPrefix   = "dust:"
	NoteAdjustTag    = "adjust"
	NoteLiquidityAdd = "lp-add"
	NoteLiquidityRem = "lp-remove"
)

// UnknownCurrency 是符号规范化失败时的哨兵值。
const UnknownCurrency = "UNKNOWN"

// UnknownSigner 是 dust 聚合中无法解析入账签名者时的哨兵值。
const UnknownSigner = "unknown"
