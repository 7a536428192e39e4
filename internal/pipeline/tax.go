package pipeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/equitax/internal/fxrate"
)

// TaxMethod selects how tax due is derived from a sale's profit.
type TaxMethod int

const (
	// FlatRate applies one percentage to every positive profit. Losses owe
	// nothing and are not carried forward.
	FlatRate TaxMethod = iota
)

func (m TaxMethod) String() string {
	switch m {
	case FlatRate:
		return "flat_rate"
	default:
		return "unknown"
	}
}

// ParseTaxMethod parses a string into a TaxMethod.
func ParseTaxMethod(s string) (TaxMethod, error) {
	switch s {
	case "flat_rate", "":
		return FlatRate, nil
	default:
		return 0, fmt.Errorf("unknown tax method: %q", s)
	}
}

// Config holds the inputs the pipeline needs besides the transactions.
type Config struct {
	TaxMethod TaxMethod
	TaxRate   decimal.Decimal // fraction, 0.15 for 15%
	BuySide   fxrate.Side     // quote used to convert purchases
	SellSide  fxrate.Side     // quote used to convert sales
}

// DefaultConfig returns a flat 15% rate, bid quotes for buys and ask quotes
// for sells.
func DefaultConfig() Config {
	return Config{
		TaxMethod: FlatRate,
		TaxRate:   decimal.RequireFromString("0.15"),
		BuySide:   fxrate.Bid,
		SellSide:  fxrate.Ask,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TaxMethod != FlatRate {
		return fmt.Errorf("unsupported tax method %s", c.TaxMethod)
	}
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax rate %s must be between 0 and 1", c.TaxRate)
	}
	if c.BuySide != fxrate.Bid && c.BuySide != fxrate.Ask {
		return fmt.Errorf("invalid buy quote side %q", c.BuySide)
	}
	if c.SellSide != fxrate.Bid && c.SellSide != fxrate.Ask {
		return fmt.Errorf("invalid sell quote side %q", c.SellSide)
	}
	return nil
}

// TaxDue returns the tax owed on profit: profit * rate when positive, zero
// otherwise.
func (c Config) TaxDue(profit decimal.Decimal) decimal.Decimal {
	if !profit.IsPositive() {
		return decimal.Zero
	}
	return profit.Mul(c.TaxRate)
}
