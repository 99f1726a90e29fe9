package tools

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/consts"
)

// ScaleRawAmount 将任意长度的最小单位整数串按 decimals 插入小数点。
// 纯字符串运算，不经过二进制浮点，避免大供应量 token 的精度损失。
// 例：ScaleRawAmount("1000000", 6) == "1"；ScaleRawAmount("1", 9) == "0.000000001"。
func ScaleRawAmount(raw string, decimals int) string {
	raw = strings.TrimSpace(raw)
	neg := false
	if strings.HasPrefix(raw, "-") {
		neg = true
		raw = raw[1:]
	}
	raw = strings.TrimLeft(raw, "0")
	if raw == "" {
		return "0"
	}
	if decimals <= 0 {
		if neg {
			return "-" + raw
		}
		return raw
	}

	var intPart, fracPart string
	if len(raw) <= decimals {
		intPart = "0"
		fracPart = strings.Repeat("0", decimals-len(raw)) + raw
	} else {
		intPart = raw[:len(raw)-decimals]
		fracPart = raw[len(raw)-decimals:]
	}

	fracPart = strings.TrimRight(fracPart, "0")
	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if out == "0" {
		return "0"
	}
	if neg {
		return "-" + out
	}
	return out
}

// FormatFloat 渲染一个 float64，禁止指数记法，并去除多余的尾零。
// 仅用于金额未以最小单位整数串到达的路径（外部预缩放金额）。
func FormatFloat(n float64) string {
	s := strconv.FormatFloat(n, 'f', -1, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}

// FormatDecimal 渲染 decimal 金额为规范字符串（无指数、无尾零）。
func FormatDecimal(d decimal.Decimal) string {
	return d.String()
}

var assetCharFilter = regexp.MustCompile(`[^A-Z0-9-]`)

// NormalizeAsset 是符号进入行的唯一规范化入口：
// 大写、剔除 [A-Z0-9-] 之外的字符、截断到 16 字符，空结果落到 UNKNOWN 哨兵。
// 幂等；但调用方不得依赖二次调用（截断边界不同会导致结果不同）。
func NormalizeAsset(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = assetCharFilter.ReplaceAllString(s, "")
	if len(s) > 16 {
		s = s[:16]
	}
	if s == "" {
		return consts.UnknownCurrency
	}
	return s
}

// LamportsToSol 将 lamports 金额转换为 SOL 的精确 decimal。
func LamportsToSol(lamports uint64) decimal.Decimal {
	return decimal.New(int64(lamports), -consts.NativeDecimals)
}

// LamportsDeltaToSol 同上，但接受有符号的余额差。
func LamportsDeltaToSol(delta int64) decimal.Decimal {
	return decimal.New(delta, -consts.NativeDecimals)
}
