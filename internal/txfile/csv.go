// Package txfile reads and writes transaction and record CSV files.
package txfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/equitax/internal/model"
)

// Header is the CSV header of a transaction file.
const Header = "date,kind,quantity,unit_price,net_proceeds"

// RecordHeader is the CSV header of a processed file.
const RecordHeader = Header + ",rate_date,exchange_rate,shares_held,average_cost," +
	"acquisition_cost_local,cost_basis_local,proceeds_local,profit_local,tax_due_local"

const (
	numFields       = 5
	numRecordFields = 14
	dateFormat      = "2006-01-02"

	colDate        = 0
	colKind        = 1
	colQuantity    = 2
	colUnitPrice   = 3
	colNetProceeds = 4

	colRateDate        = 5
	colRate            = 6
	colSharesHeld      = 7
	colAverageCost     = 8
	colAcquisitionCost = 9
	colCostBasis       = 10
	colProceeds        = 11
	colProfit          = 12
	colTaxDue          = 13
)

// ReadTransactions reads all transactions from a transaction CSV reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	records, err := readAll(r, numFields)
	if err != nil {
		return nil, fmt.Errorf("reading transaction CSV: %w", err)
	}

	var txs []model.Transaction
	for i, rec := range records {
		tx, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// WriteTransactions writes transactions (including header).
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, tx := range txs {
		if err := cw.Write(MarshalTransaction(tx)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// ReadRecords reads all records from a processed CSV reader.
func ReadRecords(r io.Reader) ([]model.Record, error) {
	records, err := readAll(r, numRecordFields)
	if err != nil {
		return nil, fmt.Errorf("reading record CSV: %w", err)
	}

	var recs []model.Record
	for i, row := range records {
		rec, err := UnmarshalRecord(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// WriteRecords writes records (including header).
func WriteRecords(w io.Writer, recs []model.Record) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(RecordHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, rec := range recs {
		if err := cw.Write(MarshalRecord(rec)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(tx model.Transaction) []string {
	row := make([]string, numFields)
	fillTransaction(row, tx)
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction. Extra trailing
// columns are ignored so a processed row can be read back as input.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) < numFields {
		return model.Transaction{}, fmt.Errorf("expected at least %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, strings.TrimSpace(record[colDate]))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	kind, err := model.ParseKind(record[colKind])
	if err != nil {
		return model.Transaction{}, err
	}

	quantity, err := parseDecimal("quantity", record[colQuantity])
	if err != nil {
		return model.Transaction{}, err
	}
	price, err := parseDecimal("unit_price", record[colUnitPrice])
	if err != nil {
		return model.Transaction{}, err
	}
	net, err := parseNullDecimal("net_proceeds", record[colNetProceeds])
	if err != nil {
		return model.Transaction{}, err
	}

	return model.Transaction{
		Date:        date,
		Kind:        kind,
		Quantity:    quantity,
		UnitPrice:   price,
		NetProceeds: net,
	}, nil
}

// MarshalRecord converts a Record to a CSV row. Money is written with two
// decimals, average cost with six, rates and quantities as held.
func MarshalRecord(rec model.Record) []string {
	row := make([]string, numRecordFields)
	fillTransaction(row, rec.Transaction)

	if !rec.RateDate.IsZero() {
		row[colRateDate] = rec.RateDate.Format(dateFormat)
	}
	row[colRate] = rec.ExchangeRate.String()
	row[colSharesHeld] = rec.SharesHeld.String()
	row[colAverageCost] = rec.AverageCost.StringFixed(6)
	row[colAcquisitionCost] = money(rec.AcquisitionCostLocal)
	row[colCostBasis] = money(rec.CostBasisLocal)
	row[colProceeds] = money(rec.ProceedsLocal)
	row[colProfit] = money(rec.ProfitLocal)
	row[colTaxDue] = money(rec.TaxDueLocal)
	return row
}

// UnmarshalRecord converts a processed CSV row to a Record.
func UnmarshalRecord(record []string) (model.Record, error) {
	if len(record) != numRecordFields {
		return model.Record{}, fmt.Errorf("expected %d fields, got %d", numRecordFields, len(record))
	}

	tx, err := UnmarshalTransaction(record)
	if err != nil {
		return model.Record{}, err
	}
	rec := model.Record{Transaction: tx}

	if record[colRateDate] != "" {
		rec.RateDate, err = time.Parse(dateFormat, record[colRateDate])
		if err != nil {
			return model.Record{}, fmt.Errorf("parsing rate_date %q: %w", record[colRateDate], err)
		}
	}
	if rec.ExchangeRate, err = parseDecimal("exchange_rate", record[colRate]); err != nil {
		return model.Record{}, err
	}
	if rec.SharesHeld, err = parseDecimal("shares_held", record[colSharesHeld]); err != nil {
		return model.Record{}, err
	}
	if rec.AverageCost, err = parseDecimal("average_cost", record[colAverageCost]); err != nil {
		return model.Record{}, err
	}

	nullCols := []struct {
		name string
		col  int
		dst  *decimal.NullDecimal
	}{
		{"acquisition_cost_local", colAcquisitionCost, &rec.AcquisitionCostLocal},
		{"cost_basis_local", colCostBasis, &rec.CostBasisLocal},
		{"proceeds_local", colProceeds, &rec.ProceedsLocal},
		{"profit_local", colProfit, &rec.ProfitLocal},
		{"tax_due_local", colTaxDue, &rec.TaxDueLocal},
	}
	for _, c := range nullCols {
		if *c.dst, err = parseNullDecimal(c.name, record[c.col]); err != nil {
			return model.Record{}, err
		}
	}
	return rec, nil
}

func fillTransaction(row []string, tx model.Transaction) {
	row[colDate] = tx.Date.Format(dateFormat)
	row[colKind] = string(tx.Kind)
	row[colQuantity] = tx.Quantity.String()
	row[colUnitPrice] = tx.UnitPrice.String()
	if tx.NetProceeds.Valid {
		row[colNetProceeds] = tx.NetProceeds.Decimal.String()
	}
}

func money(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing %s %q: %w", name, s, err)
	}
	return d, nil
}

func parseNullDecimal(name, s string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(name, s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// readAll returns the data rows, header excluded. Rows may carry more than
// minFields columns; fewer is an error.
func readAll(r io.Reader, minFields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records[0]) < minFields {
		return nil, fmt.Errorf("header has %d fields, expected at least %d", len(records[0]), minFields)
	}
	return records[1:], nil
}
