// Package report renders processed records for the terminal.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/equitax/internal/model"
)

// Options controls Markdown output.
type Options struct {
	// Reverse lists the newest record first.
	Reverse         bool
	ForeignCurrency string
	LocalCurrency   string
}

// YearSummary totals the sales of one fiscal year.
type YearSummary struct {
	Year      int
	Sales     int
	Proceeds  decimal.Decimal
	CostBasis decimal.Decimal
	Profit    decimal.Decimal
	TaxDue    decimal.Decimal
}

// Summarize totals sale figures per fiscal year, oldest year first. Years
// with only purchases appear with zero sales.
func Summarize(recs []model.Record) []YearSummary {
	byYear := make(map[int]*YearSummary)
	for _, rec := range recs {
		y := rec.FiscalYear()
		s, ok := byYear[y]
		if !ok {
			s = &YearSummary{Year: y}
			byYear[y] = s
		}
		if rec.Kind != model.KindSell {
			continue
		}
		s.Sales++
		s.Proceeds = s.Proceeds.Add(rec.ProceedsLocal.Decimal)
		s.CostBasis = s.CostBasis.Add(rec.CostBasisLocal.Decimal)
		s.Profit = s.Profit.Add(rec.ProfitLocal.Decimal)
		s.TaxDue = s.TaxDue.Add(rec.TaxDueLocal.Decimal)
	}

	out := make([]YearSummary, 0, len(byYear))
	for _, s := range byYear {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

var recordColumns = []string{
	"Date", "Kind", "Quantity", "Unit price", "Rate date", "Rate",
	"Held", "Avg cost", "Acquisition", "Cost basis", "Proceeds", "Profit", "Tax due",
}

// Markdown renders recs as a table followed by one summary per fiscal year.
func Markdown(recs []model.Record, opts Options) string {
	var b strings.Builder

	b.WriteString("# Transactions\n\n")
	if len(recs) == 0 {
		b.WriteString("No transactions.\n")
		return b.String()
	}

	writeRow(&b, recordColumns)
	writeSeparator(&b, len(recordColumns))

	order := make([]model.Record, len(recs))
	copy(order, recs)
	if opts.Reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	for _, rec := range order {
		rateDate := ""
		if !rec.RateDate.IsZero() {
			rateDate = rec.RateDate.Format("2006-01-02")
		}
		writeRow(&b, []string{
			rec.Date.Format("2006-01-02"),
			string(rec.Kind),
			rec.Quantity.String(),
			FormatMoney(rec.UnitPrice, opts.ForeignCurrency),
			rateDate,
			rec.ExchangeRate.StringFixed(4),
			rec.SharesHeld.String(),
			rec.AverageCost.StringFixed(4),
			formatNullMoney(rec.AcquisitionCostLocal, opts.LocalCurrency),
			formatNullMoney(rec.CostBasisLocal, opts.LocalCurrency),
			formatNullMoney(rec.ProceedsLocal, opts.LocalCurrency),
			formatNullMoney(rec.ProfitLocal, opts.LocalCurrency),
			formatNullMoney(rec.TaxDueLocal, opts.LocalCurrency),
		})
	}

	b.WriteString("\n# Summary\n\n")
	cols := []string{"Year", "Sales", "Proceeds", "Cost basis", "Profit", "Tax due"}
	writeRow(&b, cols)
	writeSeparator(&b, len(cols))
	for _, s := range Summarize(recs) {
		writeRow(&b, []string{
			fmt.Sprintf("%d", s.Year),
			fmt.Sprintf("%d", s.Sales),
			FormatMoney(s.Proceeds, opts.LocalCurrency),
			FormatMoney(s.CostBasis, opts.LocalCurrency),
			FormatMoney(s.Profit, opts.LocalCurrency),
			FormatMoney(s.TaxDue, opts.LocalCurrency),
		})
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cells, " | "))
	b.WriteString(" |\n")
}

func writeSeparator(b *strings.Builder, n int) {
	b.WriteString("|")
	b.WriteString(strings.Repeat(" --- |", n))
	b.WriteString("\n")
}
