package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/equitax/internal/fxrate"
	"github.com/cleared-dev/equitax/internal/model"
	"github.com/cleared-dev/equitax/internal/pipeline"
	"github.com/cleared-dev/equitax/internal/report"
	"github.com/cleared-dev/equitax/internal/txfile"
)

type processOptions struct {
	input   string
	output  string
	print   bool
	reverse bool
	force   bool
	style   string
}

func newProcessCommand(a *app) *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Compute average cost, converted values, profit and tax for each transaction",
		Long: "Process a date-sorted transaction file. Every row is converted at the official\n" +
			"rate of its date, or of the nearest earlier published day. Any missing rate or\n" +
			"sale of more shares than held aborts the run and nothing is written.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.output = txfile.EnsureExt(opts.output)
			recs, err := a.runProcess(cmd.Context(), opts)
			a.audit("process", opts.input, opts.output, len(recs), err)
			if err != nil {
				return err
			}

			a.commit(cmd.Context(), fmt.Sprintf("process: %s", filepath.Base(opts.output)), opts.output)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d transactions into %s\n", len(recs), opts.output)
			if opts.print {
				return a.printReport(out, recs, opts.reverse, opts.style)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "transaction CSV (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output CSV (required)")
	cmd.Flags().BoolVarP(&opts.print, "print", "p", false, "print the result as a table")
	cmd.Flags().BoolVarP(&opts.reverse, "reverse", "r", false, "print newest first")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite the output file")
	cmd.Flags().StringVar(&opts.style, "style", report.DefaultStyle, "table style: auto, dark, light, notty, ascii")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (a *app) runProcess(ctx context.Context, opts processOptions) ([]model.Record, error) {
	txs, err := txfile.LoadTransactions(opts.input)
	if err != nil {
		return nil, err
	}

	pcfg, err := a.cfg.Pipeline()
	if err != nil {
		return nil, err
	}
	resolver, closeSrc, err := a.resolver()
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	recs, err := pipeline.New(resolver, pcfg, a.log).Run(ctx, txs)
	if err != nil {
		return nil, err
	}
	a.log.Debug().Int("rate_fetches", resolver.Fetches()).Msg("Rates resolved")

	if err := txfile.SaveRecords(opts.output, recs, opts.force); err != nil {
		return nil, err
	}
	return recs, nil
}

func (a *app) printReport(out io.Writer, recs []model.Record, reverse bool, style string) error {
	md := report.Markdown(recs, report.Options{
		Reverse:         reverse,
		ForeignCurrency: a.cfg.Currency.Foreign,
		LocalCurrency:   a.cfg.Currency.Local,
	})
	rendered, err := report.Render(md, style)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, rendered)
	return err
}

// resolver builds a run-scoped resolver over the configured rate source.
// The returned func releases the source.
func (a *app) resolver() (*fxrate.Resolver, func(), error) {
	src, closeSrc, err := a.rateSource()
	if err != nil {
		return nil, nil, err
	}
	r := fxrate.NewResolver(src, a.cfg.Currency.Foreign, a.cfg.Rates.LookbackDays, a.log)
	return r, closeSrc, nil
}
