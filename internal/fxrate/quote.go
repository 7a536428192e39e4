// Package fxrate resolves official daily exchange rates, falling back to the
// most recent earlier publication on weekends and holidays.
package fxrate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side selects which of the two published quotes is used.
type Side string

const (
	// Bid is the buying quote (PTAX "cotacaoCompra").
	Bid Side = "bid"
	// Ask is the selling quote (PTAX "cotacaoVenda").
	Ask Side = "ask"
)

// ParseSide parses "bid" or "ask".
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case Bid:
		return Bid, nil
	case Ask:
		return Ask, nil
	default:
		return "", fmt.Errorf("unknown quote side %q (want bid or ask)", s)
	}
}

// Quote is the pair of rates published for one day, in local units per one
// foreign unit.
type Quote struct {
	Day time.Time
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Value returns the quote for the given side.
func (q Quote) Value(side Side) decimal.Decimal {
	if side == Ask {
		return q.Ask
	}
	return q.Bid
}

// Source returns the quotes published for a currency between from and to,
// both inclusive. Days without a publication are simply absent.
type Source interface {
	Quotes(ctx context.Context, currency string, from, to time.Time) ([]Quote, error)
}

// Rate is the outcome of a resolution.
type Rate struct {
	Requested   time.Time       // day asked for
	PublishedOn time.Time       // day of the publication used, never after Requested
	Value       decimal.Decimal // local units per foreign unit
}

// RateUnavailableError reports that no rate was published within the lookback
// window ending on Day.
type RateUnavailableError struct {
	Currency     string
	Day          time.Time
	LookbackDays int
}

func (e *RateUnavailableError) Error() string {
	return fmt.Sprintf("no %s rate published between %s and %s (lookback %d days)",
		e.Currency,
		e.Day.AddDate(0, 0, -e.LookbackDays).Format(dayFormat),
		e.Day.Format(dayFormat),
		e.LookbackDays)
}

const dayFormat = "2006-01-02"

