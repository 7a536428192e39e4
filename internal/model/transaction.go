package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a transaction as an acquisition or a disposal.
type Kind string

const (
	KindBuy  Kind = "BUY"
	KindSell Kind = "SELL"
)

// ParseKind accepts "buy"/"sell" in any case, plus the "OpType.BUY" spelling
// found in older spreadsheets.
func ParseKind(s string) (Kind, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "OPTYPE.")
	switch Kind(v) {
	case KindBuy:
		return KindBuy, nil
	case KindSell:
		return KindSell, nil
	default:
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
}

// Transaction is one buy or sell event as read from the input file.
type Transaction struct {
	Date        time.Time           // execution day, UTC midnight
	Kind        Kind
	Quantity    decimal.Decimal     // shares, always positive
	UnitPrice   decimal.Decimal     // per share, foreign currency
	NetProceeds decimal.NullDecimal // sells only; cash actually received after fees
}

// Proceeds returns the foreign-currency proceeds of a sale: the net proceeds
// when recorded, quantity x unit price otherwise.
func (t Transaction) Proceeds() decimal.Decimal {
	if t.NetProceeds.Valid {
		return t.NetProceeds.Decimal
	}
	return t.Quantity.Mul(t.UnitPrice)
}

// Day truncates a time to its calendar day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
