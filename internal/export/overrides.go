package export

import "wallet-tax-sol/internal/logic/domain"

// Overrides 是使用方提供的改名映射，在管线之后按精确匹配应用：
// 键是已经规范化的币种代码 / 市场标签，不做模糊匹配。
type Overrides struct {
	Currency map[string]string `json:"currency,omitempty" yaml:"currency,omitempty"`
	Market   map[string]string `json:"market,omitempty" yaml:"market,omitempty"`
}

// Apply 就地应用改名，返回同一个切片。
func (o *Overrides) Apply(rows []domain.Row) []domain.Row {
	if o == nil || (len(o.Currency) == 0 && len(o.Market) == 0) {
		return rows
	}
	for i := range rows {
		r := &rows[i]
		r.CurrencyIn = o.rename(o.Currency, r.CurrencyIn)
		r.CurrencyOut = o.rename(o.Currency, r.CurrencyOut)
		r.FeeCurrency = o.rename(o.Currency, r.FeeCurrency)
		r.Market = o.rename(o.Market, r.Market)
	}
	return rows
}

func (o *Overrides) rename(m map[string]string, v string) string {
	if v == "" {
		return v
	}
	if to, ok := m[v]; ok {
		return to
	}
	return v
}
