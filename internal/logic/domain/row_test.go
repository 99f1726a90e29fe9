package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSigNoteAndExtract(t *testing.T) {
	sig := "5KtP9vDkzV3mXw1pQr7yTbA2cFgH8jLm4nRsUeWxYzAbCdEfGhJkMnPqRsTuVwXy"

	note := SigNote(sig)
	assert.Equal(t, "sig:"+sig, note)
	assert.Equal(t, sig, ExtractSignature(note))

	// 带前缀标记时签名仍可恢复
	note = SigNote(sig, "lp-add")
	assert.Equal(t, "lp-add sig:"+sig, note)
	assert.Equal(t, sig, ExtractSignature(note))

	// 签名后还有尾随文本
	assert.Equal(t, "abc", ExtractSignature("sig:abc trailing text"))
	assert.Equal(t, "", ExtractSignature("no marker here"))
	assert.Equal(t, "", ExtractSignature(""))
}

func TestRowTagPredicates(t *testing.T) {
	lp := Row{Note: "lp-add sig:abc"}
	assert.True(t, lp.IsLiquidity())
	assert.False(t, lp.IsDustAggregate())

	dust := Row{Note: "dust: count=3 threshold=0.001"}
	assert.True(t, dust.IsDustAggregate())
	assert.False(t, dust.IsLiquidity())

	adj := Row{Note: "adjust sig:abc"}
	assert.True(t, adj.IsAdjustment())
}

func TestHasSingleSide(t *testing.T) {
	in := Row{AmountIn: decimal.RequireFromString("1.5")}
	assert.True(t, in.HasSingleSide())

	trade := Row{
		AmountIn:  decimal.RequireFromString("1"),
		AmountOut: decimal.RequireFromString("2"),
	}
	assert.False(t, trade.HasSingleSide())

	empty := Row{}
	assert.False(t, empty.HasSingleSide())
}

func TestFormatTimestamp(t *testing.T) {
	// 2024-01-15 12:30:45 UTC
	ts := int64(1705321845)
	assert.Equal(t, "2024-01-15 12:30:45", FormatTimestamp(ts, time.UTC))
	assert.Equal(t, "2024-01-15 12:30:45", FormatTimestamp(ts, nil))
}

func TestTransactionNormalize(t *testing.T) {
	cases := []struct {
		name string
		tx   Transaction
		tag  TxTag
	}{
		{"close account", Transaction{Type: "CLOSE_ACCOUNT"}, TagAccountClose},
		{"create account", Transaction{Type: "CREATE_ACCOUNT"}, TagAccountCreate},
		{"stake", Transaction{Type: "STAKE_SOL", Source: "STAKE_PROGRAM"}, TagStake},
		{"airdrop", Transaction{Description: "airdrop received"}, TagAirdrop},
		{"reward field", Transaction{RewardAmount: "0.01"}, TagReward},
		{"order fill", Transaction{Source: "LIMIT_ORDER"}, TagOrderFill},
		{"order place", Transaction{Type: "PLACE_ORDER"}, TagOrderPlace},
	}
	for _, c := range cases {
		c.tx.Normalize()
		assert.True(t, c.tx.Has(c.tag), c.name)
	}

	var swap Transaction
	swap.Events.Swap = &SwapEvent{}
	swap.Normalize()
	assert.True(t, swap.Has(TagSwapEvent))
}

func TestBalanceDelta(t *testing.T) {
	tx := Transaction{
		AccountData: []AccountDelta{
			{Account: "owner1", NativeBalanceChange: 1500000000},
			{Account: "other", NativeBalanceChange: -42},
		},
	}
	d, ok := tx.BalanceDelta("owner1")
	assert.True(t, ok)
	assert.Equal(t, "1.5", d.String())

	_, ok = tx.BalanceDelta("missing")
	assert.False(t, ok)
}

func TestTokenTransferValue(t *testing.T) {
	// 整数串路径优先
	raw := TokenTransfer{RawAmount: "123456789", Decimals: 6, TokenAmount: 999}
	assert.Equal(t, "123.456789", raw.Value().String())

	// 浮点兜底
	f := TokenTransfer{TokenAmount: 0.15}
	assert.Equal(t, "0.15", f.Value().String())
}

func TestIsNFT(t *testing.T) {
	assert.True(t, (&TokenTransfer{TokenStandard: "NonFungible"}).IsNFT())
	assert.True(t, (&TokenTransfer{Decimals: 0, RawAmount: "1"}).IsNFT())
	assert.False(t, (&TokenTransfer{Decimals: 6, RawAmount: "1000000"}).IsNFT())
}
