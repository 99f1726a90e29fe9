package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"wallet-tax-sol/internal/consts"
)

func TestScaleRawAmount(t *testing.T) {
	cases := []struct {
		raw      string
		decimals int
		want     string
	}{
		{"1000000", 6, "1"},
		{"1", 9, "0.000000001"},
		{"150000000", 9, "0.15"},
		{"123456789", 6, "123.456789"},
		{"120000", 6, "0.12"},
		{"0", 9, "0"},
		{"", 9, "0"},
		{"000", 6, "0"},
		{"-5000000", 6, "-5"},
		{"42", 0, "42"},
		{"007", 0, "7"},
		// 超过 uint64 的大供应量 token 金额
		{"123456789012345678901234567890", 18, "123456789012.34567890123456789"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ScaleRawAmount(c.raw, c.decimals), "raw=%s decimals=%d", c.raw, c.decimals)
	}
}

// 缩放可逆：去掉小数点并补回尾零后还原出去前导零的原串
func TestScaleRawAmount_RoundTrip(t *testing.T) {
	cases := []struct {
		raw      string
		decimals int
	}{
		{"123456789", 6},
		{"1", 9},
		{"1000000", 6},
		{"999999999999999999", 12},
	}
	for _, c := range cases {
		scaled := ScaleRawAmount(c.raw, c.decimals)
		intPart, fracPart, _ := strings.Cut(scaled, ".")
		rebuilt := intPart + fracPart + strings.Repeat("0", c.decimals-len(fracPart))
		rebuilt = strings.TrimLeft(rebuilt, "0")
		want := strings.TrimLeft(c.raw, "0")
		assert.Equal(t, want, rebuilt, "raw=%s decimals=%d scaled=%s", c.raw, c.decimals, scaled)
	}
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.15", FormatFloat(0.15))
	assert.Equal(t, "1", FormatFloat(1.0))
	assert.Equal(t, "0", FormatFloat(0))
	assert.Equal(t, "-2.5", FormatFloat(-2.5))
	// 禁止指数记法
	assert.NotContains(t, FormatFloat(1e-8), "e")
	assert.NotContains(t, FormatFloat(1e12), "e")
}

func TestNormalizeAsset(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"usdc", "USDC"},
		{" Bonk ", "BONK"},
		{"wSOL-LP", "WSOL-LP"},
		{"token$%^", "TOKEN"},
		{"", consts.UnknownCurrency},
		{"$$$", consts.UnknownCurrency},
		{"VERYLONGSYMBOLNAME-X", "VERYLONGSYMBOLNA"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeAsset(c.in), "in=%q", c.in)
	}
}

// 规范化幂等
func TestNormalizeAsset_Idempotent(t *testing.T) {
	for _, s := range []string{"usdc", "wSOL-LP", "$$$", "", "VERYLONGSYMBOLNAME-X", "a b c"} {
		once := NormalizeAsset(s)
		assert.Equal(t, once, NormalizeAsset(once), "in=%q", s)
	}
}

func TestLamportsToSol(t *testing.T) {
	assert.Equal(t, "1.5", LamportsToSol(1500000000).String())
	assert.Equal(t, "0.000005", LamportsToSol(5000).String())
	assert.Equal(t, "-0.002", LamportsDeltaToSol(-2000000).String())
}
