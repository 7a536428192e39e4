package pipeline

import (
	"fmt"
	"strings"

	"github.com/cleared-dev/equitax/internal/model"
)

// ValidationError describes one rejected input row.
type ValidationError struct {
	Index       int // zero-based position in the input
	Date        string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("transaction %d [%s]: %s", e.Index+1, e.Date, e.Description)
}

// ValidationErrors is returned by Run when the input is rejected before any
// event reaches the ledger.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return "invalid input: " + strings.Join(msgs, "; ")
}

// Validate checks every transaction and the ordering of the sequence:
// dates ascending, and on a shared date every buy before any sell.
func Validate(txs []model.Transaction) []ValidationError {
	var errs []ValidationError
	add := func(i int, tx model.Transaction, format string, args ...any) {
		d := "no date"
		if !tx.Date.IsZero() {
			d = tx.Date.Format("2006-01-02")
		}
		errs = append(errs, ValidationError{Index: i, Date: d, Description: fmt.Sprintf(format, args...)})
	}

	for i, tx := range txs {
		if tx.Date.IsZero() {
			add(i, tx, "missing date")
		}
		if tx.Kind != model.KindBuy && tx.Kind != model.KindSell {
			add(i, tx, "unknown kind %q", tx.Kind)
		}
		if !tx.Quantity.IsPositive() {
			add(i, tx, "quantity %s must be positive", tx.Quantity)
		}
		if tx.UnitPrice.IsNegative() {
			add(i, tx, "unit price %s must not be negative", tx.UnitPrice)
		}
		if tx.NetProceeds.Valid {
			if tx.Kind == model.KindBuy {
				add(i, tx, "net proceeds are only allowed on sells")
			}
			if tx.NetProceeds.Decimal.IsNegative() {
				add(i, tx, "net proceeds %s must not be negative", tx.NetProceeds.Decimal)
			}
		}

		if i == 0 || tx.Date.IsZero() || txs[i-1].Date.IsZero() {
			continue
		}
		prev := txs[i-1]
		if tx.Date.Before(prev.Date) {
			add(i, tx, "out of order: follows %s", prev.Date.Format("2006-01-02"))
		} else if tx.Date.Equal(prev.Date) && prev.Kind == model.KindSell && tx.Kind == model.KindBuy {
			add(i, tx, "buy follows a sell on the same day; buys must come first")
		}
	}
	return errs
}
