package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/logic/domain"
	"wallet-tax-sol/internal/tools"
)

// CSVHeader 是固定的 10 列输出表头，顺序不可变。
var CSVHeader = []string{
	"Timestamp",
	"Type",
	"AmountIn",
	"CurrencyIn",
	"AmountOut",
	"CurrencyOut",
	"Fee",
	"FeeCurrency",
	"Market",
	"Note",
}

// WriteCSV 将记账行序列化为 CSV。含分隔符 / 引号 / 换行的值
// 走标准的双引号包裹 + 引号加倍转义，重新解析可精确还原。
func WriteCSV(w io.Writer, rows []domain.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range rows {
		if err := cw.Write(record(&rows[i])); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile 输出到文件（整体覆盖写）。
func WriteCSVFile(path string, rows []domain.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()
	if err := WriteCSV(f, rows); err != nil {
		return err
	}
	return f.Sync()
}

func record(r *domain.Row) []string {
	return []string{
		r.Timestamp,
		string(r.Kind),
		amountField(r.AmountIn),
		r.CurrencyIn,
		amountField(r.AmountOut),
		r.CurrencyOut,
		amountField(r.Fee),
		r.FeeCurrency,
		r.Market,
		r.Note,
	}
}

// amountField 金额为零时输出空单元格而非 "0"。
func amountField(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return tools.FormatDecimal(d)
}
