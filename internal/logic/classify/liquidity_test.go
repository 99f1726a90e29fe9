package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-tax-sol/internal/logic/domain"
)

func outTok(mint, symbol, raw string, decimals int) domain.TokenTransfer {
	return domain.TokenTransfer{
		Mint: mint, Symbol: symbol, RawAmount: raw, Decimals: decimals,
		FromUserAccount: testOwner, ToUserAccount: otherParty,
	}
}

func inTok(mint, symbol, raw string, decimals int) domain.TokenTransfer {
	return domain.TokenTransfer{
		Mint: mint, Symbol: symbol, RawAmount: raw, Decimals: decimals,
		FromUserAccount: otherParty, ToUserAccount: testOwner,
	}
}

func TestDetectLiquidity_ClassicAdd(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "RAYDIUM",
		Tokens: []domain.TokenTransfer{
			outTok("mintUSDC", "USDC", "100000000", 6), // 100 USDC 存入
			outTok("mintWSOL", "WSOL", "2000000000", 9), // 2 WSOL 存入
			inTok("mintLP", "RAY-LP", "500000", 6),      // LP 回执
		},
	}
	ev := c.DetectLiquidity(tx)
	require.NotNil(t, ev)
	assert.Equal(t, LiquidityAddClassic, ev.Kind)
	assert.True(t, ev.Kind.IsAdd())
	require.NotNil(t, ev.LPLeg)
	assert.Equal(t, "RAY-LP", ev.LPLeg.Symbol)
	assert.Len(t, ev.Legs, 2)
}

// 少数侧单腿规则：LP 符号没有文本标记时仍能从结构识别
func TestDetectLiquidity_MinoritySideLPLeg(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "METEORA",
		Tokens: []domain.TokenTransfer{
			outTok("mintA", "TOKA", "1000000", 6),
			outTok("mintB", "TOKB", "2000000", 6),
			inTok("mintR", "RECEIPT", "42", 0),
		},
	}
	// 0 精度数量 1 会被当 NFT，这里数量 42 保持 fungible
	ev := c.DetectLiquidity(tx)
	require.NotNil(t, ev)
	assert.Equal(t, LiquidityAddClassic, ev.Kind)
	require.NotNil(t, ev.LPLeg)
	assert.Equal(t, "RECEIPT", ev.LPLeg.Symbol)
}

func TestDetectLiquidity_ConcentratedAddViaPositionNFT(t *testing.T) {
	c := newTestContext(testTokAcct)
	nft := domain.TokenTransfer{
		Mint: "mintPos", Symbol: "ORCAPOS", RawAmount: "1", Decimals: 0,
		FromUserAccount: otherParty, ToUserAccount: testOwner,
		ToTokenAccount: "FreshPositionAcct111111111111111111111111111",
	}
	tx := &domain.Transaction{
		Source: "ORCA WHIRLPOOL",
		Tokens: []domain.TokenTransfer{
			outTok("mintUSDC", "USDC", "50000000", 6),
			outTok("mintWSOL", "WSOL", "1000000000", 9),
			nft,
		},
	}
	ev := c.DetectLiquidity(tx)
	require.NotNil(t, ev)
	assert.Equal(t, LiquidityAddConcentrated, ev.Kind)
	require.NotNil(t, ev.LPLeg)
	assert.Len(t, ev.Legs, 2)
}

func TestDetectLiquidity_ClassicRemove(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "RAYDIUM",
		Tokens: []domain.TokenTransfer{
			outTok("mintLP", "RAY-LP", "500000", 6), // 销毁 LP
			inTok("mintUSDC", "USDC", "99000000", 6),
			inTok("mintWSOL", "WSOL", "1900000000", 9),
		},
	}
	ev := c.DetectLiquidity(tx)
	require.NotNil(t, ev)
	assert.Equal(t, LiquidityRemoveClassic, ev.Kind)
	assert.Len(t, ev.Legs, 2)
}

// 部分池子不暴露 LP 转账：纯多币入账按 remove 兜底
func TestDetectLiquidity_RemoveWithoutLPLeg(t *testing.T) {
	c := newTestContext()
	tokens := []domain.TokenTransfer{
		inTok("mintUSDC", "USDC", "99000000", 6),
		inTok("mintWSOL", "WSOL", "1900000000", 9),
	}

	ev := c.DetectLiquidity(&domain.Transaction{Source: "LIFINITY", Tokens: tokens})
	require.NotNil(t, ev)
	assert.Equal(t, LiquidityRemoveClassic, ev.Kind)

	// 单边 bonding-curve 场所不允许走这条兜底
	ev = c.DetectLiquidity(&domain.Transaction{Source: "PUMP_FUN", Tokens: tokens})
	assert.Nil(t, ev)
}

// 一进一出且无 NFT 是普通 swap，绝不能记成流动性
func TestDetectLiquidity_PlainSwapSuppression(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "RAYDIUM",
		Tokens: []domain.TokenTransfer{
			outTok("mintUSDC", "USDC", "100000000", 6),
			inTok("mintBONK", "BONK", "5000000000", 5),
		},
	}
	assert.Nil(t, c.DetectLiquidity(tx))
}

// 聚合器路由顺带穿过池子，整体排除
func TestDetectLiquidity_AggregatorExcluded(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "JUPITER",
		Tokens: []domain.TokenTransfer{
			outTok("mintA", "TOKA", "1000000", 6),
			outTok("mintB", "TOKB", "2000000", 6),
			inTok("mintLP", "X-LP", "500000", 6),
		},
	}
	assert.Nil(t, c.DetectLiquidity(tx))
}
