// Package ledger maintains a moving-average cost position over a chronological
// sequence of buys and sells.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InsufficientSharesError reports a sale of more shares than are held. It
// usually means a purchase is missing from the input.
type InsufficientSharesError struct {
	Date      time.Time
	Requested decimal.Decimal
	Held      decimal.Decimal
}

func (e *InsufficientSharesError) Error() string {
	day := "unknown date"
	if !e.Date.IsZero() {
		day = e.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("sell of %s shares on %s exceeds holdings of %s", e.Requested, day, e.Held)
}

// SaleResult is the outcome of a sale in the foreign currency.
type SaleResult struct {
	CostBasis   decimal.Decimal // quantity * average cost at the time of sale
	Proceeds    decimal.Decimal
	Profit      decimal.Decimal // proceeds - cost basis
	AverageCost decimal.Decimal // unchanged by the sale
}

// Engine is the running position of a single processing run. It is not safe
// for concurrent use; events must be applied in chronological order.
type Engine struct {
	shares decimal.Decimal
	// cost is the foreign cost of the current holding. Between sales it is the
	// exact sum of quantity*price over the buys, so the average of a buy-only
	// history does not depend on the order of the buys.
	cost    decimal.Decimal
	average decimal.Decimal
}

// New returns an engine holding nothing.
func New() *Engine {
	return &Engine{}
}

// Shares returns the quantity currently held.
func (e *Engine) Shares() decimal.Decimal { return e.shares }

// AverageCost returns the weighted-average acquisition cost per share.
func (e *Engine) AverageCost() decimal.Decimal { return e.average }

// Buy adds quantity shares bought at price and recomputes the average cost
// as the quantity-weighted mean over everything held.
func (e *Engine) Buy(quantity, price decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("buy quantity must be positive, got %s", quantity)
	}
	if price.IsNegative() {
		return fmt.Errorf("buy price must not be negative, got %s", price)
	}

	e.cost = e.cost.Add(quantity.Mul(price))
	e.shares = e.shares.Add(quantity)
	e.average = e.cost.Div(e.shares)
	return nil
}

// Sell removes quantity shares and reports cost basis and profit against the
// given proceeds. The average cost is left untouched.
func (e *Engine) Sell(date time.Time, quantity, proceeds decimal.Decimal) (SaleResult, error) {
	if !quantity.IsPositive() {
		return SaleResult{}, fmt.Errorf("sell quantity must be positive, got %s", quantity)
	}
	if quantity.GreaterThan(e.shares) {
		return SaleResult{}, &InsufficientSharesError{Date: date, Requested: quantity, Held: e.shares}
	}

	costBasis := quantity.Mul(e.average)
	e.shares = e.shares.Sub(quantity)
	e.cost = e.shares.Mul(e.average)

	return SaleResult{
		CostBasis:   costBasis,
		Proceeds:    proceeds,
		Profit:      proceeds.Sub(costBasis),
		AverageCost: e.average,
	}, nil
}
