package fxrate

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/equitax/internal/model"
)

// TableHeader is the CSV header of a rate table file.
const TableHeader = "date,bid,ask"

const (
	tableNumFields = 3
	tableColDate   = 0
	tableColBid    = 1
	tableColAsk    = 2
)

// Table is an in-memory Source holding one currency's quotes, typically read
// from a CSV file maintained by hand or exported from the rate store.
type Table struct {
	currency string
	quotes   []Quote // sorted by day
}

// NewTable builds a table from quotes in any order.
func NewTable(currency string, quotes []Quote) *Table {
	qs := make([]Quote, len(quotes))
	for i, q := range quotes {
		q.Day = model.Day(q.Day)
		qs[i] = q
	}
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Day.Before(qs[j].Day) })
	return &Table{currency: strings.ToUpper(currency), quotes: qs}
}

// LoadTable reads a rate table CSV file for currency.
func LoadTable(path, currency string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rate table: %w", err)
	}
	defer f.Close()

	quotes, err := ReadQuotes(f)
	if err != nil {
		return nil, fmt.Errorf("reading rate table %s: %w", path, err)
	}
	return NewTable(currency, quotes), nil
}

// Quotes implements Source.
func (t *Table) Quotes(_ context.Context, currency string, from, to time.Time) ([]Quote, error) {
	if !strings.EqualFold(currency, t.currency) {
		return nil, fmt.Errorf("rate table holds %s, not %s", t.currency, currency)
	}
	from, to = model.Day(from), model.Day(to)
	var out []Quote
	for _, q := range t.quotes {
		if q.Day.Before(from) || q.Day.After(to) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// ReadQuotes reads quotes from a rate table CSV (header required).
func ReadQuotes(r io.Reader) ([]Quote, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = tableNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rate CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var quotes []Quote
	for i, rec := range records[1:] {
		d, err := time.Parse(dayFormat, rec[tableColDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[tableColDate], err)
		}
		bid, err := decimal.NewFromString(rec[tableColBid])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing bid %q: %w", i+2, rec[tableColBid], err)
		}
		ask, err := decimal.NewFromString(rec[tableColAsk])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing ask %q: %w", i+2, rec[tableColAsk], err)
		}
		quotes = append(quotes, Quote{Day: d, Bid: bid, Ask: ask})
	}
	return quotes, nil
}

// WriteQuotes writes quotes as a rate table CSV, header included.
func WriteQuotes(w io.Writer, quotes []Quote) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TableHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, q := range quotes {
		row := make([]string, tableNumFields)
		row[tableColDate] = q.Day.Format(dayFormat)
		row[tableColBid] = q.Bid.String()
		row[tableColAsk] = q.Ask.String()
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}
