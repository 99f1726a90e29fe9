package consolidate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/logic/domain"
)

const (
	conOwner = "OwnerWa11et111111111111111111111111111111111"
	conSig   = "ConsolidateSig1111111111111111111111111111111111111111111111111"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func txWith(typ, source string, fee uint64, delta int64, hasDelta bool) *domain.Transaction {
	tx := &domain.Transaction{
		Signature: conSig,
		Type:      typ,
		Source:    source,
		Fee:       fee,
		FeePayer:  conOwner,
	}
	if hasDelta {
		tx.AccountData = []domain.AccountDelta{{Account: conOwner, NativeBalanceChange: delta}}
	}
	tx.Normalize()
	return tx
}

func run(rows []domain.Row, tx *domain.Transaction, threshold string) []domain.Row {
	txMap := domain.TxMap{}
	if tx != nil {
		txMap[conSig] = tx
	}
	return ConsolidateBySignature(rows, txMap, conOwner, dec(threshold))
}

// 无签名行、dust 聚合行、修正行整体绕过分组
func TestConsolidate_Bypass(t *testing.T) {
	rows := []domain.Row{
		{Kind: domain.KindIncome, AmountIn: dec("1"), CurrencyIn: "SOL", Note: "manual entry"},
		{Kind: domain.KindAcquisition, AmountIn: dec("0.001"), CurrencyIn: "SOL",
			Note: consts.NoteDustPrefix + " count=3 threshold=0.001"},
		{Kind: domain.KindIncome, AmountIn: dec("0.01"), CurrencyIn: "SOL",
			Note: domain.SigNote(conSig, consts.NoteAdjustTag)},
	}
	out := run(rows, nil, "0")
	assert.Equal(t, rows, out)
}

// order-fill 标记 + 未入账的原生支出：单条入账升级为 Trade
func TestTouchUp_OrderFillUpgrade(t *testing.T) {
	tx := txWith("FILL_ORDER", "", 5000, -500_005_000, true)
	rows := []domain.Row{{
		Kind:       domain.KindTransferIn,
		AmountIn:   dec("10"),
		CurrencyIn: "TOKA",
		Market:     consts.MarketSolana,
		Note:       domain.SigNote(conSig),
	}}
	out := run(rows, tx, "0")
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindTrade, out[0].Kind)
	assert.Equal(t, "10", out[0].AmountIn.String())
	assert.Equal(t, "0.5", out[0].AmountOut.String())
	assert.Equal(t, consts.NativeSymbol, out[0].CurrencyOut)
	assert.Equal(t, consts.MarketDex, out[0].Market)
}

// 账户创建押金降级为操作成本，超出上限时保持转账语义
func TestTouchUp_CreateCostDowngrade(t *testing.T) {
	tx := txWith("CREATE_ACCOUNT", "", 5000, 0, false)

	small := []domain.Row{{
		Kind:        domain.KindTransferOut,
		AmountOut:   dec("0.002"),
		CurrencyOut: consts.NativeSymbol,
		Note:        domain.SigNote(conSig),
	}}
	out := run(small, tx, "0")
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindLoss, out[0].Kind)

	big := []domain.Row{{
		Kind:        domain.KindTransferOut,
		AmountOut:   dec("0.5"),
		CurrencyOut: consts.NativeSymbol,
		Note:        domain.SigNote(conSig),
	}}
	out = run(big, tx, "0")
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindTransferOut, out[0].Kind)
}

// 账户关闭的入账是租金返还：扣费记 Acquisition，费置零
func TestTouchUp_CloseRefund(t *testing.T) {
	tx := txWith("CLOSE_ACCOUNT", "", 5000, 0, false)
	rows := []domain.Row{{
		Kind:        domain.KindTransferIn,
		AmountIn:    dec("0.00203928"),
		CurrencyIn:  consts.NativeSymbol,
		Fee:         dec("0.000005"),
		FeeCurrency: consts.NativeSymbol,
		Note:        domain.SigNote(conSig),
	}}
	out := run(rows, tx, "0")
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindAcquisition, out[0].Kind)
	assert.Equal(t, "0.00203428", out[0].AmountIn.String())
	assert.True(t, out[0].Fee.IsZero())
	assert.Empty(t, out[0].FeeCurrency)
}

// UNKNOWN 币种从结构化 swap 描述回填
func TestTouchUp_UnknownBackfill(t *testing.T) {
	tx := txWith("", "", 0, 0, false)
	tx.Description = "Swapped 100 USDC for 2 SOL"
	rows := []domain.Row{{
		Kind:        domain.KindTrade,
		AmountIn:    dec("2"),
		CurrencyIn:  consts.UnknownCurrency,
		AmountOut:   dec("100"),
		CurrencyOut: consts.UnknownCurrency,
		Note:        domain.SigNote(conSig),
	}}
	out := run(rows, tx, "0")
	require.Len(t, out, 1)
	assert.Equal(t, "SOL", out[0].CurrencyIn)
	assert.Equal(t, "USDC", out[0].CurrencyOut)
}

// 非 DEX 场所多行组：余额差是 ground truth，净结果回补手续费后单行表达
func TestGroup_BalanceDeltaPreferred(t *testing.T) {
	tx := txWith("TRANSFER", "SYSTEM_PROGRAM", 5000, -1_000_005_000, true)
	rows := []domain.Row{
		{
			Timestamp: "2024-01-15 10:00:00", Kind: domain.KindTransferOut,
			AmountOut: dec("0.6"), CurrencyOut: consts.NativeSymbol,
			Fee: dec("0.000005"), FeeCurrency: consts.NativeSymbol,
			Note: domain.SigNote(conSig),
		},
		{
			Timestamp: "2024-01-15 10:00:01", Kind: domain.KindTransferOut,
			AmountOut: dec("0.4"), CurrencyOut: consts.NativeSymbol,
			Note: domain.SigNote(conSig),
		},
	}
	out := run(rows, tx, "0")
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindTransferOut, out[0].Kind)
	assert.Equal(t, "1", out[0].AmountOut.String())
	assert.Equal(t, "0.000005", out[0].Fee.String())
	assert.Equal(t, "2024-01-15 10:00:01", out[0].Timestamp)
	assert.Equal(t, consts.MarketSolana, out[0].Market)
}

// DEX 场所多行组：最大入腿对最大出腿归并为 Trade
func TestGroup_TradeFromLargestLegs(t *testing.T) {
	tx := txWith("SWAP", "RAYDIUM", 5000, 0, false)
	rows := []domain.Row{
		{
			Kind: domain.KindTransferIn, AmountIn: dec("40"), CurrencyIn: "TOKB",
			Fee: dec("0.000005"), FeeCurrency: consts.NativeSymbol,
			Note: domain.SigNote(conSig),
		},
		{
			Kind: domain.KindTransferOut, AmountOut: dec("100"), CurrencyOut: "TOKA",
			Note: domain.SigNote(conSig),
		},
	}
	out := run(rows, tx, "0")
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindTrade, out[0].Kind)
	assert.Equal(t, "40", out[0].AmountIn.String())
	assert.Equal(t, "TOKB", out[0].CurrencyIn)
	assert.Equal(t, "100", out[0].AmountOut.String())
	assert.Equal(t, "TOKA", out[0].CurrencyOut)
	assert.Equal(t, consts.MarketDex, out[0].Market)
	assert.Equal(t, "0.000005", out[0].Fee.String())
}

// 同币种两侧净轧，绝不产出自成交
func TestGroup_SameCurrencyNetting(t *testing.T) {
	tx := txWith("SWAP", "RAYDIUM", 0, 0, false)
	rows := []domain.Row{
		{Kind: domain.KindTransferIn, AmountIn: dec("1"), CurrencyIn: consts.NativeSymbol,
			Note: domain.SigNote(conSig)},
		{Kind: domain.KindTransferOut, AmountOut: dec("0.3"), CurrencyOut: consts.NativeSymbol,
			Note: domain.SigNote(conSig)},
	}
	out := run(rows, tx, "0")
	require.Len(t, out, 1)
	assert.Equal(t, domain.KindTransferIn, out[0].Kind)
	assert.Equal(t, "0.7", out[0].AmountIn.String())
	assert.Equal(t, consts.NativeSymbol, out[0].CurrencyIn)
}

// 同签名全 dust 组豁免归并，与 Dust 处理器的豁免判定保持一致
func TestGroup_AllDustExempt(t *testing.T) {
	tx := txWith("TRANSFER", "", 0, -300, true)
	rows := []domain.Row{
		{Kind: domain.KindTransferIn, AmountIn: dec("0.0001"), CurrencyIn: "TOKA",
			Note: domain.SigNote(conSig)},
		{Kind: domain.KindTransferOut, AmountOut: dec("0.0002"), CurrencyOut: "TOKB",
			Note: domain.SigNote(conSig)},
	}
	out := run(rows, tx, "0.001")
	assert.Equal(t, rows, out)
}

// 聚合器成交：主行之外的原生余额盈余补一条小额收入行
func TestGroup_AggregatorIncomeRow(t *testing.T) {
	tx := txWith("SWAP", "JUPITER", 0, 10_000_000, true)
	rows := []domain.Row{
		{Kind: domain.KindTransferIn, AmountIn: dec("40"), CurrencyIn: "TOKB",
			Note: domain.SigNote(conSig)},
		{Kind: domain.KindTransferOut, AmountOut: dec("1"), CurrencyOut: consts.NativeSymbol,
			Note: domain.SigNote(conSig)},
	}
	out := run(rows, tx, "0")
	require.Len(t, out, 2)
	assert.Equal(t, domain.KindTrade, out[0].Kind)
	assert.Equal(t, domain.KindIncome, out[1].Kind)
	assert.Equal(t, "0.01", out[1].AmountIn.String())
	assert.True(t, out[1].IsAdjustment())
}

// 流动性行在多行组内绕过净额计算
func TestGroup_LiquidityPassthrough(t *testing.T) {
	tx := txWith("", "RAYDIUM", 0, 0, false)
	lp := domain.Row{
		Kind: domain.KindTrade, AmountIn: dec("0.25"), CurrencyIn: "RAY-LP",
		AmountOut: dec("100"), CurrencyOut: "USDC", Market: consts.MarketLiquidity,
		Note: domain.SigNote(conSig, consts.NoteLiquidityAdd),
	}
	plain := domain.Row{
		Kind: domain.KindTransferIn, AmountIn: dec("0.5"), CurrencyIn: consts.NativeSymbol,
		Note: domain.SigNote(conSig),
	}
	out := run([]domain.Row{lp, plain}, tx, "0")
	require.Len(t, out, 2)
	assert.True(t, out[0].IsLiquidity())
	assert.Equal(t, plain, out[1])
}

func TestNotePrefixOf(t *testing.T) {
	assert.Equal(t, consts.NoteLiquidityAdd, notePrefixOf(domain.SigNote("x", consts.NoteLiquidityAdd)))
	assert.Equal(t, "", notePrefixOf(domain.SigNote("x")))
}

func TestSymbolsFromDescription(t *testing.T) {
	spent, received := symbolsFromDescription("wallet swapped 100.5 usdc for 2 SOL on Jupiter")
	assert.Equal(t, "USDC", spent)
	assert.Equal(t, "SOL", received)

	spent, received = symbolsFromDescription("no amounts here")
	assert.Empty(t, spent)
	assert.Empty(t, received)
}
