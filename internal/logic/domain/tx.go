package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/tools"
)

// NativeTransfer 表示一笔原生 SOL 转账（lamports）。
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          uint64 `json:"amount"`
}

// RawTokenAmount 表示最小单位整数串 + 精度的金额编码。
type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    int    `json:"decimals"`
}

// TokenTransfer 表示一笔 SPL Token 转账。
// 金额要么以 RawAmount（最小单位整数串）到达，要么以 TokenAmount（预缩放浮点）到达。
type TokenTransfer struct {
	Mint             string  `json:"mint"`
	FromUserAccount  string  `json:"fromUserAccount"`
	ToUserAccount    string  `json:"toUserAccount"`
	FromTokenAccount string  `json:"fromTokenAccount"`
	ToTokenAccount   string  `json:"toTokenAccount"`
	RawAmount        string  `json:"rawTokenAmount,omitempty"`
	Decimals         int     `json:"decimals"`
	TokenAmount      float64 `json:"tokenAmount"`
	TokenStandard    string  `json:"tokenStandard,omitempty"`
	Symbol           string  `json:"symbol,omitempty"`
}

// Value 返回该转账的精确十进制金额。
// 优先走整数串路径（无浮点），预缩放浮点仅作兜底。
func (t *TokenTransfer) Value() decimal.Decimal {
	if t.RawAmount != "" {
		if d, err := decimal.NewFromString(t.RawAmount); err == nil {
			return d.Shift(int32(-t.Decimals))
		}
	}
	d, err := decimal.NewFromString(tools.FormatFloat(t.TokenAmount))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// IsNFT 判断该转账是否为 NFT（显式 standard 标记，或 0 精度且数量≈1）。
func (t *TokenTransfer) IsNFT() bool {
	if strings.Contains(strings.ToUpper(t.TokenStandard), "NONFUNGIBLE") {
		return true
	}
	return t.Decimals == 0 && t.Value().Equal(decimal.NewFromInt(1))
}

// SwapLeg 表示交易事件子对象中的一条 token 腿。
type SwapLeg struct {
	UserAccount    string         `json:"userAccount"`
	TokenAccount   string         `json:"tokenAccount"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

// SwapEvent 表示上游已解析出的结构化 swap 描述（可选）。
type SwapEvent struct {
	NativeInput  *NativeAmount `json:"nativeInput,omitempty"`
	NativeOutput *NativeAmount `json:"nativeOutput,omitempty"`
	TokenInputs  []SwapLeg     `json:"tokenInputs,omitempty"`
	TokenOutputs []SwapLeg     `json:"tokenOutputs,omitempty"`
}

// NativeAmount 表示 swap 事件中的原生币腿。
type NativeAmount struct {
	Account string `json:"account"`
	Amount  string `json:"amount"` // lamports，十进制整数串
}

// AccountDelta 表示交易前后某账户的原生余额变化（lamports，含正负）。
type AccountDelta struct {
	Account             string `json:"account"`
	NativeBalanceChange int64  `json:"nativeBalanceChange"`
}

// TxTag 是在入库时一次性判定的交易形态标记位。
// 下游分类只匹配标记位，不再反复嗅探字段存在性。
type TxTag uint16

const (
	TagSwapEvent TxTag = 1 << iota
	TagOrderFill
	TagOrderPlace
	TagAccountCreate
	TagAccountClose
	TagStake
	TagAirdrop
	TagReward
)

// Transaction 是一条增强交易的规范化内部表示（外部输入，逐条不可变）。
type Transaction struct {
	Signature   string           `json:"signature"`
	Timestamp   int64            `json:"timestamp"`
	Fee         uint64           `json:"fee"` // lamports
	FeePayer    string           `json:"feePayer"`
	Type        string           `json:"type"`
	Source      string           `json:"source"`
	Description string           `json:"description"`
	Native      []NativeTransfer `json:"nativeTransfers"`
	Tokens      []TokenTransfer  `json:"tokenTransfers"`
	Events      struct {
		Swap *SwapEvent `json:"swap,omitempty"`
	} `json:"events"`
	AccountData  []AccountDelta `json:"accountData,omitempty"`
	RewardAmount string         `json:"rewardAmount,omitempty"` // 预缩放十进制串（可选）

	// Tags 由 Normalize 填充，JSON 反序列化不覆盖。
	Tags TxTag `json:"-"`
}

// Normalize 在入库时一次性将自由文本提示折叠为标记位。
func (tx *Transaction) Normalize() {
	hint := tx.hintText()
	if tx.Events.Swap != nil {
		tx.Tags |= TagSwapEvent
	}
	if consts.IsOrderFillMarker(hint) {
		tx.Tags |= TagOrderFill
	}
	if consts.IsOrderPlaceMarker(hint) && !consts.IsOrderFillMarker(hint) {
		tx.Tags |= TagOrderPlace
	}
	if containsAny(hint, "CREATE_ACCOUNT", "CREATE_ASSOCIATED", "INIT_ACCOUNT") {
		tx.Tags |= TagAccountCreate
	}
	if containsAny(hint, "CLOSE_ACCOUNT", "CLOSE ACCOUNT") {
		tx.Tags |= TagAccountClose
	}
	if consts.IsStakeMarker(hint) {
		tx.Tags |= TagStake
	}
	if containsAny(hint, "AIRDROP") {
		tx.Tags |= TagAirdrop
	}
	if tx.RewardAmount != "" || containsAny(hint, "REWARD") {
		tx.Tags |= TagReward
	}
}

func (tx *Transaction) Has(tag TxTag) bool {
	return tx.Tags&tag != 0
}

func (tx *Transaction) hintText() string {
	return strings.ToUpper(tx.Type + " " + tx.Source + " " + tx.Description)
}

func containsAny(upper string, fragments ...string) bool {
	for _, f := range fragments {
		if strings.Contains(upper, f) {
			return true
		}
	}
	return false
}

// FeeValue 返回交易费（SOL）。
func (tx *Transaction) FeeValue() decimal.Decimal {
	return tools.LamportsToSol(tx.Fee)
}

// BalanceDelta 返回 addr 在本交易中的原生余额变化（SOL），
// 以及 accountData 中是否存在该账户的记录。
func (tx *Transaction) BalanceDelta(addr string) (decimal.Decimal, bool) {
	for _, ad := range tx.AccountData {
		if ad.Account == addr {
			return tools.LamportsDeltaToSol(ad.NativeBalanceChange), true
		}
	}
	return decimal.Zero, false
}

// TxMap 表示一次扫描去重后保留的签名 → 交易映射。
type TxMap map[string]*Transaction
