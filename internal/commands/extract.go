package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/equitax/internal/importer"
	"github.com/cleared-dev/equitax/internal/txfile"
)

func newExtractCommand(a *app) *cobra.Command {
	var year int
	var buysPath, sellsPath, output string
	var buysFormat, sellsFormat string
	var force bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract one fiscal year of transactions from broker exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if buysPath == "" && sellsPath == "" {
				return fmt.Errorf("at least one of --buys or --sells is required")
			}
			reg := importer.DefaultRegistry()
			for _, f := range []string{buysFormat, sellsFormat} {
				if _, err := reg.Lookup(f); err != nil {
					return err
				}
			}
			output = txfile.EnsureExt(output)
			n, err := a.runExtract(reg, year, output, force,
				extractInput{path: buysPath, format: buysFormat, name: "buys"},
				extractInput{path: sellsPath, format: sellsFormat, name: "sells"})
			a.audit("extract", strings.Trim(buysPath+","+sellsPath, ","), output, n, err)
			if err != nil {
				return err
			}
			a.commit(cmd.Context(), fmt.Sprintf("extract: %d", year), output)
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d transactions for %d to %s\n", n, year, output)
			return nil
		},
	}

	cmd.Flags().IntVarP(&year, "year", "y", 0, "fiscal year (required)")
	cmd.Flags().StringVarP(&buysPath, "buys", "b", "", "purchase table CSV")
	cmd.Flags().StringVarP(&sellsPath, "sells", "s", "", "order history CSV")
	cmd.Flags().StringVar(&buysFormat, "buys-format", "grants", "parser for --buys")
	cmd.Flags().StringVar(&sellsFormat, "sells-format", "orders", "parser for --sells")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output CSV (required)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the output file")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

type extractInput struct {
	path, format, name string
}

func (a *app) runExtract(reg *importer.Registry, year int, output string, force bool, files ...extractInput) (int, error) {
	inputs := make([]importer.Input, 0, len(files))
	for _, f := range files {
		r, closeFn, err := openOptional(f.path)
		if err != nil {
			return 0, err
		}
		defer closeFn()
		inputs = append(inputs, importer.Input{Name: f.name, Format: f.format, Reader: r})
	}

	txs, err := importer.Extract(reg, year, inputs...)
	if err != nil {
		return 0, err
	}
	a.log.Info().Int("year", year).Int("transactions", len(txs)).Msg("Extracted transactions")

	if err := txfile.SaveTransactions(output, txs, force); err != nil {
		return 0, err
	}
	return len(txs), nil
}

// openOptional opens path, or returns a nil reader when path is empty.
func openOptional(path string) (io.Reader, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
