// Package pipeline turns a chronological list of transactions into enriched
// records by feeding them, in order, through one ledger engine.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/equitax/internal/fxrate"
	"github.com/cleared-dev/equitax/internal/ledger"
	"github.com/cleared-dev/equitax/internal/model"
)

// RateResolver returns the official rate for a day.
type RateResolver interface {
	Resolve(ctx context.Context, day time.Time, side fxrate.Side) (fxrate.Rate, error)
}

// Pipeline enriches transactions. A Pipeline may be reused; every Run starts
// from an empty ledger.
type Pipeline struct {
	rates RateResolver
	cfg   Config
	log   zerolog.Logger
}

// New creates a Pipeline.
func New(rates RateResolver, cfg Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		rates: rates,
		cfg:   cfg,
		log:   log.With().Str("component", "pipeline").Logger(),
	}
}

// Run processes txs, which must be sorted by date with buys before sells on
// the same day. It returns one record per transaction, in input order, or an
// error and no records at all: the input is rejected up front on any
// validation failure, and the run aborts on the first missing rate or
// oversold position.
func (p *Pipeline) Run(ctx context.Context, txs []model.Transaction) ([]model.Record, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	if verrs := Validate(txs); len(verrs) > 0 {
		return nil, ValidationErrors(verrs)
	}

	engine := ledger.New()
	records := make([]model.Record, 0, len(txs))

	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := p.apply(ctx, engine, tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d (%s %s on %s): %w",
				i+1, tx.Kind, tx.Quantity, tx.Date.Format("2006-01-02"), err)
		}
		records = append(records, rec)
	}

	p.log.Info().
		Int("records", len(records)).
		Str("shares_held", engine.Shares().String()).
		Str("average_cost", engine.AverageCost().StringFixed(4)).
		Msg("Processed transactions")
	return records, nil
}

func (p *Pipeline) apply(ctx context.Context, engine *ledger.Engine, tx model.Transaction) (model.Record, error) {
	side := p.cfg.BuySide
	if tx.Kind == model.KindSell {
		side = p.cfg.SellSide
	}
	rate, err := p.rates.Resolve(ctx, tx.Date, side)
	if err != nil {
		return model.Record{}, err
	}

	rec := model.Record{
		Transaction:  tx,
		RateDate:     rate.PublishedOn,
		ExchangeRate: rate.Value,
	}

	switch tx.Kind {
	case model.KindBuy:
		if err := engine.Buy(tx.Quantity, tx.UnitPrice); err != nil {
			return model.Record{}, err
		}
		rec.AcquisitionCostLocal = valid(cents(tx.Quantity.Mul(tx.UnitPrice).Mul(rate.Value)))

	case model.KindSell:
		sale, err := engine.Sell(tx.Date, tx.Quantity, tx.Proceeds())
		if err != nil {
			return model.Record{}, err
		}
		// Profit and tax derive from the rounded amounts so every row adds up
		// as written. The ledger itself stays unrounded.
		costBasis := cents(sale.CostBasis.Mul(rate.Value))
		proceeds := cents(sale.Proceeds.Mul(rate.Value))
		profit := proceeds.Sub(costBasis)

		rec.CostBasisLocal = valid(costBasis)
		rec.ProceedsLocal = valid(proceeds)
		rec.ProfitLocal = valid(profit)
		rec.TaxDueLocal = valid(cents(p.cfg.TaxDue(profit)))

		p.log.Debug().
			Str("date", tx.Date.Format("2006-01-02")).
			Str("profit_local", profit.StringFixed(2)).
			Msg("Sale processed")

	default:
		return model.Record{}, fmt.Errorf("unsupported transaction kind %q", tx.Kind)
	}

	rec.SharesHeld = engine.Shares()
	rec.AverageCost = engine.AverageCost()
	return rec, nil
}

// localPlaces is the precision of local-currency amounts in a Record.
const localPlaces = 2

func cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(localPlaces)
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}
