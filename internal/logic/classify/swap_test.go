package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-tax-sol/internal/logic/domain"
)

func nativeOut(amount uint64) domain.NativeTransfer {
	return domain.NativeTransfer{FromUserAccount: testOwner, ToUserAccount: otherParty, Amount: amount}
}

func nativeIn(amount uint64) domain.NativeTransfer {
	return domain.NativeTransfer{FromUserAccount: otherParty, ToUserAccount: testOwner, Amount: amount}
}

// 策略 1：token 净流量恰好一正一负
func TestReconstructSwap_TokenNetCollapse(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "RAYDIUM",
		Tokens: []domain.TokenTransfer{
			outTok("mintA", "TOKA", "100000000", 6), // 100 A 换出
			inTok("mintB", "TOKB", "40000000", 6),   // 40 B 换入
		},
	}
	r := c.ReconstructSwap(tx)
	require.NotNil(t, r)
	assert.Equal(t, "TOKB", r.InSymbol)
	assert.Equal(t, "40", r.InAmount.String())
	assert.Equal(t, "TOKA", r.OutSymbol)
	assert.Equal(t, "100", r.OutAmount.String())
	assert.True(t, r.FeeFold.IsZero())
}

// 未被 token 腿覆盖的原生净支出按小费折入手续费，超出上限封顶
func TestReconstructSwap_TipFolding(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "RAYDIUM",
		Native: []domain.NativeTransfer{nativeOut(1_000_000)}, // 0.001 SOL 小费
		Tokens: []domain.TokenTransfer{
			outTok("mintA", "TOKA", "100000000", 6),
			inTok("mintB", "TOKB", "40000000", 6),
		},
	}
	r := c.ReconstructSwap(tx)
	require.NotNil(t, r)
	assert.Equal(t, "0.001", r.FeeFold.String())

	// 超过 0.5 SOL 的"小费"按上限封顶
	tx.Native = []domain.NativeTransfer{nativeOut(2_000_000_000)} // 2 SOL
	r = c.ReconstructSwap(tx)
	require.NotNil(t, r)
	assert.Equal(t, "0.5", r.FeeFold.String())
}

// 策略 2：token↔native 混合（bonding-curve 买入）
func TestReconstructSwap_HybridBuy(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "PUMP_FUN",
		Native: []domain.NativeTransfer{nativeOut(500_000_000)}, // 支付 0.5 SOL
		Tokens: []domain.TokenTransfer{
			inTok("mintMEME", "MEME", "1000000000000", 6),
		},
	}
	r := c.ReconstructSwap(tx)
	require.NotNil(t, r)
	assert.Equal(t, "MEME", r.InSymbol)
	assert.Equal(t, "SOL", r.OutSymbol)
	assert.Equal(t, "0.5", r.OutAmount.String())
}

func TestReconstructSwap_HybridSell(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "PUMP_FUN",
		Native: []domain.NativeTransfer{nativeIn(300_000_000)}, // 收到 0.3 SOL
		Tokens: []domain.TokenTransfer{
			outTok("mintMEME", "MEME", "1000000000000", 6),
		},
	}
	r := c.ReconstructSwap(tx)
	require.NotNil(t, r)
	assert.Equal(t, "SOL", r.InSymbol)
	assert.Equal(t, "0.3", r.InAmount.String())
	assert.Equal(t, "MEME", r.OutSymbol)
}

// 卖出守卫：原生净入账不为正时绝不能判卖出（更可能是质押/锁仓）
func TestReconstructSwap_SellGuard(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "PUMP_FUN",
		Native: []domain.NativeTransfer{nativeOut(20_000_000)}, // 只有支出，没有入账
		Tokens: []domain.TokenTransfer{
			outTok("mintMEME", "MEME", "1000000000000", 6),
		},
	}
	assert.Nil(t, c.ReconstructSwap(tx))
}

// 显著性校验：无主导原生腿且非特殊场所时不做混合折叠
func TestReconstructSwap_HybridDominanceCheck(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "UNKNOWN_PROGRAM",
		Native: []domain.NativeTransfer{
			nativeOut(1_000_000), // 0.001，低于 0.01 下限
			nativeIn(1_000_000),
		},
		Tokens: []domain.TokenTransfer{
			inTok("mintX", "TOKX", "1000000", 6),
		},
	}
	assert.Nil(t, c.ReconstructSwap(tx))
}

// 策略 3：桥腿折叠（A→B→C 路由，B 进出近等）
func TestReconstructSwap_BridgeCollapse(t *testing.T) {
	c := newTestContext()
	tx := &domain.Transaction{
		Source: "RAYDIUM",
		Tokens: []domain.TokenTransfer{
			outTok("mintA", "TOKA", "100000000", 6), // 真实首付 100 A
			inTok("mintB", "TOKB", "50000000", 6),   // 桥腿进 50
			outTok("mintB", "TOKB", "49800000", 6),  // 桥腿出 49.8（1% 容差内）
			inTok("mintC", "TOKC", "30000000", 6),   // 真实终收 30 C
		},
	}
	r := c.ReconstructSwap(tx)
	require.NotNil(t, r)
	assert.Equal(t, "TOKC", r.InSymbol)
	assert.Equal(t, "30", r.InAmount.String())
	assert.Equal(t, "TOKA", r.OutSymbol)
	assert.Equal(t, "100", r.OutAmount.String())
}

// 策略 4：订单簿成交（分类器的 order-fill 分支直接调用）
func TestOrderFillCollapse(t *testing.T) {
	c := newTestContext()

	// 双侧 token 腿 + 原生找零 → 附带收入腿
	tx := &domain.Transaction{
		Source: "OPENBOOK",
		Native: []domain.NativeTransfer{nativeIn(10_000_000)}, // 0.01 找零
		Tokens: []domain.TokenTransfer{
			inTok("mintA", "TOKA", "10000000", 6),
			outTok("mintB", "TOKB", "5000000", 6),
		},
	}
	r := c.orderFillCollapse(tx, c.collectTokenFlows(tx), c.NativeFlows(tx))
	require.NotNil(t, r)
	assert.Equal(t, "TOKA", r.InSymbol)
	assert.Equal(t, "TOKB", r.OutSymbol)
	require.NotNil(t, r.Income)
	assert.Equal(t, "0.01", r.Income.Amount.String())

	// 只有入向 token 腿时用原生支出替位
	tx = &domain.Transaction{
		Source: "OPENBOOK",
		Native: []domain.NativeTransfer{nativeOut(300_000_000)},
		Tokens: []domain.TokenTransfer{
			inTok("mintA", "TOKA", "10000000", 6),
		},
	}
	r = c.orderFillCollapse(tx, c.collectTokenFlows(tx), c.NativeFlows(tx))
	require.NotNil(t, r)
	assert.Equal(t, "SOL", r.OutSymbol)
	assert.Equal(t, "0.3", r.OutAmount.String())
}
