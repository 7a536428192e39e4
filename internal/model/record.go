package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is a Transaction enriched with the exchange rate, the ledger position
// after the event and, for sells, the local-currency tax figures.
//
// Local-currency amounts are rounded to cents, and profit and tax are derived
// from the rounded cost basis and proceeds. Local-currency columns that do not
// apply to the record's kind are left invalid (written as empty cells).
type Record struct {
	Transaction

	RateDate     time.Time       // day of the published rate actually used
	ExchangeRate decimal.Decimal // local units per foreign unit
	SharesHeld   decimal.Decimal // holdings after this event
	AverageCost  decimal.Decimal // foreign average cost after this event

	AcquisitionCostLocal decimal.NullDecimal // buy: quantity * unit price * rate
	CostBasisLocal       decimal.NullDecimal // sell: quantity * average cost * rate
	ProceedsLocal        decimal.NullDecimal // sell: proceeds * rate
	ProfitLocal          decimal.NullDecimal // sell: proceeds - cost basis
	TaxDueLocal          decimal.NullDecimal // sell: profit * tax rate, never negative
}

// FiscalYear returns the calendar year of the event.
func (r Record) FiscalYear() int {
	return r.Date.Year()
}
