package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders amount in the display format of the currency, e.g.
// "R$3.600,00" for BRL. Unknown currency codes fall back to "3600.00 XYZ".
func FormatMoney(amount decimal.Decimal, currency string) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	frac := int32(cur.Fraction)
	minor := amount.Round(frac).Shift(frac).IntPart()
	return money.New(minor, currency).Display()
}

func formatNullMoney(amount decimal.NullDecimal, currency string) string {
	if !amount.Valid {
		return ""
	}
	return FormatMoney(amount.Decimal, currency)
}
