package importer

import (
	"fmt"
	"io"

	"github.com/cleared-dev/equitax/internal/model"
	"github.com/cleared-dev/equitax/internal/txfile"
)

// Input is one broker export and the parser format it is written in.
type Input struct {
	Name   string // for error messages
	Format string
	Reader io.Reader
}

// Extract parses each input with the parser registered for its format and
// returns the transactions dated in the fiscal year, sorted with buys ahead
// of sells on the same day. Inputs with a nil Reader are skipped.
func Extract(reg *Registry, year int, inputs ...Input) ([]model.Transaction, error) {
	var all []model.Transaction
	for _, in := range inputs {
		if in.Reader == nil {
			continue
		}
		p, err := reg.Lookup(in.Format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.Name, err)
		}
		txs, err := p.Parse(in.Reader)
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", in.Name, err)
		}
		all = append(all, InYear(txs, year)...)
	}

	txfile.Sort(all)
	return all, nil
}

// InYear returns the transactions dated in year.
func InYear(txs []model.Transaction, year int) []model.Transaction {
	var out []model.Transaction
	for _, tx := range txs {
		if tx.Date.Year() == year {
			out = append(out, tx)
		}
	}
	return out
}
