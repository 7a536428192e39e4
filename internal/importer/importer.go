// Package importer converts broker exports into transactions.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/equitax/internal/model"
)

// Parser converts a broker export into Transactions.
type Parser interface {
	Parse(r io.Reader) ([]model.Transaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// ErrUnknownFormat is returned by Lookup for an unregistered format.
var ErrUnknownFormat = errors.New("unknown import format")

// Lookup is Get with an error naming the registered formats.
func (r *Registry) Lookup(format string) (Parser, error) {
	if p := r.Get(format); p != nil {
		return p, nil
	}
	return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownFormat, format, strings.Join(r.Formats(), ", "))
}

// Formats lists the registered format names in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&GrantParser{})
	r.Register(&OrderHistoryParser{})
	return r
}

// sheet is a CSV export with a located header row.
type sheet struct {
	cols map[string]int
	rows [][]string
	// line of the first data row, 1-based
	first int
}

// readSheet reads a CSV export whose header row is the first one, within
// maxPreamble+1 lines, that contains every name in required.
func readSheet(r io.Reader, maxPreamble int, required ...string) (*sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &sheet{}, nil
	}

	for i := 0; i <= maxPreamble && i < len(records); i++ {
		cols, ok := headerColumns(records[i], required)
		if ok {
			return &sheet{cols: cols, rows: records[i+1:], first: i + 2}, nil
		}
	}
	return nil, fmt.Errorf("no header with columns %s", strings.Join(required, ", "))
}

// headerColumns maps each required name to its column. A header cell matches
// when it equals the name or starts with it, so "Cost basis /" matches
// "Cost basis / Unit".
func headerColumns(row []string, required []string) (map[string]int, bool) {
	cols := make(map[string]int, len(required))
	for _, name := range required {
		for i, cell := range row {
			cell = strings.TrimSpace(cell)
			if strings.EqualFold(cell, name) || strings.HasPrefix(strings.ToLower(cell), strings.ToLower(name)) {
				cols[name] = i
				break
			}
		}
		if _, ok := cols[name]; !ok {
			return nil, false
		}
	}
	return cols, true
}

func (s *sheet) cell(row []string, name string) string {
	i := s.cols[name]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseAmount parses "12.34", "12.34 EUR" or "1,234.50 EUR".
func parseAmount(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	if i := strings.LastIndexByte(v, ' '); i >= 0 && isCurrencyCode(v[i+1:]) {
		v = strings.TrimSpace(v[:i])
	}
	v = strings.ReplaceAll(v, ",", "")
	return decimal.NewFromString(v)
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
