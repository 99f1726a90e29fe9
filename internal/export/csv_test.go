package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/logic/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestWriteCSV_HeaderAndFields(t *testing.T) {
	rows := []domain.Row{{
		Timestamp:   "2024-01-15 12:30:45",
		Kind:        domain.KindTrade,
		AmountIn:    dec("40"),
		CurrencyIn:  "TOKB",
		AmountOut:   dec("100"),
		CurrencyOut: "TOKA",
		Fee:         dec("0.000005"),
		FeeCurrency: "SOL",
		Market:      consts.MarketDex,
		Note:        domain.SigNote("sigA"),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(CSVHeader, ","), lines[0])
	assert.Equal(t, "2024-01-15 12:30:45,Trade,40,TOKB,100,TOKA,0.000005,SOL,Solana DEX,sig:sigA", lines[1])
}

// 零金额输出空单元格而不是 "0"
func TestWriteCSV_ZeroAmountsEmpty(t *testing.T) {
	rows := []domain.Row{{
		Timestamp:  "2024-01-15 12:30:45",
		Kind:       domain.KindTransferIn,
		AmountIn:   dec("1.5"),
		CurrencyIn: "SOL",
		Market:     consts.MarketSolana,
		Note:       domain.SigNote("sigB"),
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	assert.Contains(t, buf.String(), ",1.5,SOL,,,,,Solana,sig:sigB")
}

// 含分隔符的值走双引号包裹 + 引号加倍，重新解析精确还原
func TestWriteCSV_QuotingRoundTrip(t *testing.T) {
	note := `dust: count=3, threshold=0.001 "tiny" spam`
	rows := []domain.Row{{
		Timestamp:  "2024-01-15 23:59:59",
		Kind:       domain.KindAcquisition,
		AmountIn:   dec("0.0003"),
		CurrencyIn: "SOL",
		Market:     consts.MarketSolana,
		Note:       note,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	assert.Contains(t, buf.String(), `"dust: count=3, threshold=0.001 ""tiny"" spam"`)

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, CSVHeader, records[0])
	assert.Equal(t, note, records[1][9])
}

func TestOverrides_Apply(t *testing.T) {
	o := &Overrides{
		Currency: map[string]string{"WSOL": "SOL"},
		Market:   map[string]string{consts.MarketDex: "Raydium"},
	}
	rows := []domain.Row{{
		Kind:        domain.KindTrade,
		AmountIn:    dec("1"),
		CurrencyIn:  "WSOL",
		AmountOut:   dec("100"),
		CurrencyOut: "USDC",
		FeeCurrency: "WSOL",
		Market:      consts.MarketDex,
	}}
	out := o.Apply(rows)
	assert.Equal(t, "SOL", out[0].CurrencyIn)
	assert.Equal(t, "USDC", out[0].CurrencyOut)
	assert.Equal(t, "SOL", out[0].FeeCurrency)
	assert.Equal(t, "Raydium", out[0].Market)

	// 空映射与 nil 接收者都是 no-op
	assert.Equal(t, rows, (&Overrides{}).Apply(rows))
	var nilO *Overrides
	assert.Equal(t, rows, nilO.Apply(rows))
}
