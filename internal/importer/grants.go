package importer

import (
	"fmt"
	"io"
	"time"

	"github.com/cleared-dev/equitax/internal/model"
)

// GrantParser parses the purchase table of a share plan statement, exported
// to CSV. Each row is one purchase.
type GrantParser struct{}

const (
	grantDateFormat  = "2 Jan 2006"
	grantColDate     = "Grant date"
	grantColCost     = "Cost basis /"
	grantColQuantity = "Allocated /"
	// statements put a title block above the table
	grantMaxPreamble = 10
)

// Format returns the parser name.
func (p *GrantParser) Format() string { return "grants" }

// Parse reads the purchase table. Rows whose grant date is not a date, such
// as repeated page headers or subtotals, are skipped.
func (p *GrantParser) Parse(r io.Reader) ([]model.Transaction, error) {
	s, err := readSheet(r, grantMaxPreamble, grantColDate, grantColCost, grantColQuantity)
	if err != nil {
		return nil, fmt.Errorf("reading grants CSV: %w", err)
	}

	var txs []model.Transaction
	for i, row := range s.rows {
		date, err := time.Parse(grantDateFormat, s.cell(row, grantColDate))
		if err != nil {
			continue
		}

		cost, err := parseAmount(s.cell(row, grantColCost))
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing cost basis %q: %w", s.first+i, s.cell(row, grantColCost), err)
		}
		qty, err := parseAmount(s.cell(row, grantColQuantity))
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing quantity %q: %w", s.first+i, s.cell(row, grantColQuantity), err)
		}

		txs = append(txs, model.Transaction{
			Date:      date,
			Kind:      model.KindBuy,
			Quantity:  qty,
			UnitPrice: cost,
		})
	}
	return txs, nil
}
