package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/equitax/internal/model"
)

// OrderHistoryParser parses the broker's order history export. Only executed
// share sales are returned.
type OrderHistoryParser struct{}

const (
	orderColDate        = "Date"
	orderColType        = "Order type"
	orderColStatus      = "Status"
	orderColProduct     = "Product type"
	orderColPrice       = "Execution price"
	orderColQuantity    = "Quantity"
	orderColNetProceeds = "Net proceeds"

	orderStatusExecuted = "Executed"
	orderProductShares  = "shares"
	orderMaxPreamble    = 4
)

var sellOrderTypes = map[string]bool{
	"Sell at market price":  true,
	"Sell with price limit": true,
	"Sell-to-cover":         true,
	"Sell":                  true,
}

var orderDateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"2 Jan 2006",
}

// Format returns the parser name.
func (p *OrderHistoryParser) Format() string { return "orders" }

// Parse reads the order history.
func (p *OrderHistoryParser) Parse(r io.Reader) ([]model.Transaction, error) {
	s, err := readSheet(r, orderMaxPreamble,
		orderColDate, orderColType, orderColStatus, orderColProduct,
		orderColPrice, orderColQuantity, orderColNetProceeds)
	if err != nil {
		return nil, fmt.Errorf("reading order history CSV: %w", err)
	}

	var txs []model.Transaction
	for i, row := range s.rows {
		if !sellOrderTypes[s.cell(row, orderColType)] ||
			s.cell(row, orderColStatus) != orderStatusExecuted ||
			s.cell(row, orderColProduct) != orderProductShares {
			continue
		}

		tx, err := parseOrderRow(s, row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", s.first+i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func parseOrderRow(s *sheet, row []string) (model.Transaction, error) {
	raw := s.cell(row, orderColDate)
	date, err := parseOrderDate(raw)
	if err != nil {
		return model.Transaction{}, err
	}

	price, err := parseAmount(s.cell(row, orderColPrice))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing execution price %q: %w", s.cell(row, orderColPrice), err)
	}
	qty, err := parseAmount(s.cell(row, orderColQuantity))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing quantity %q: %w", s.cell(row, orderColQuantity), err)
	}
	// Some exports sign sold quantities negative.
	qty = qty.Abs()

	tx := model.Transaction{
		Date:      date,
		Kind:      model.KindSell,
		Quantity:  qty,
		UnitPrice: price,
	}
	if net := s.cell(row, orderColNetProceeds); net != "" {
		d, err := parseAmount(net)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing net proceeds %q: %w", net, err)
		}
		tx.NetProceeds = decimal.NewNullDecimal(d)
	}
	return tx, nil
}

func parseOrderDate(s string) (time.Time, error) {
	for _, layout := range orderDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q: expected one of %s", s, strings.Join(orderDateFormats, ", "))
}
