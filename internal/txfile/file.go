package txfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/equitax/internal/model"
)

// Ext is the extension every file written by this package carries.
const Ext = ".csv"

// ErrExists is returned when a save would overwrite an existing file.
var ErrExists = errors.New("file already exists")

// EnsureExt appends Ext to path unless it already ends with it.
func EnsureExt(path string) string {
	if strings.EqualFold(filepath.Ext(path), Ext) {
		return path
	}
	return path + Ext
}

// Sort orders txs by date, buys before sells on the same date. The sort is
// stable so same-day events of one kind keep their input order.
func Sort(txs []model.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return kindRank(a.Kind) < kindRank(b.Kind)
	})
}

func kindRank(k model.Kind) int {
	if k == model.KindBuy {
		return 0
	}
	return 1
}

// LoadTransactions reads a transaction file.
func LoadTransactions(path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txs, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return txs, nil
}

// Merge loads every file and returns the union as one sorted sequence.
func Merge(paths ...string) ([]model.Transaction, error) {
	var all []model.Transaction
	for _, p := range paths {
		txs, err := LoadTransactions(p)
		if err != nil {
			return nil, err
		}
		all = append(all, txs...)
	}
	Sort(all)
	return all, nil
}

// SaveTransactions writes txs to path. Without overwrite an existing file is
// left alone and ErrExists is returned.
func SaveTransactions(path string, txs []model.Transaction, overwrite bool) error {
	return save(path, overwrite, func(w io.Writer) error {
		return WriteTransactions(w, txs)
	})
}

// SaveRecords writes processed records to path, refusing to overwrite
// unless asked.
func SaveRecords(path string, recs []model.Record, overwrite bool) error {
	return save(path, overwrite, func(w io.Writer) error {
		return WriteRecords(w, recs)
	})
}

// LoadRecords reads a processed file.
func LoadRecords(path string) ([]model.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	recs, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return recs, nil
}

// save writes through a temp file in the target directory and renames it
// into place, so a failed write leaves no file behind and an existing one
// untouched.
func save(path string, overwrite bool, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dir for %s: %w", path, err)
	}
	if !overwrite {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
