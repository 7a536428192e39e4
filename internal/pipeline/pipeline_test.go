package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/equitax/internal/fxrate"
	"github.com/cleared-dev/equitax/internal/ledger"
	"github.com/cleared-dev/equitax/internal/model"
)

var nopLog = zerolog.New(nil).Level(zerolog.Disabled)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func buy(d time.Time, qty, price string) model.Transaction {
	return model.Transaction{Date: d, Kind: model.KindBuy, Quantity: dec(qty), UnitPrice: dec(price)}
}

func sell(d time.Time, qty, price, net string) model.Transaction {
	tx := model.Transaction{Date: d, Kind: model.KindSell, Quantity: dec(qty), UnitPrice: dec(price)}
	if net != "" {
		tx.NetProceeds = decimal.NewNullDecimal(dec(net))
	}
	return tx
}

// fixedRates resolves every day to the same bid/ask pair and records calls.
type fixedRates struct {
	bid, ask decimal.Decimal
	calls    []fxrate.Side
	err      error
}

func (f *fixedRates) Resolve(_ context.Context, d time.Time, side fxrate.Side) (fxrate.Rate, error) {
	f.calls = append(f.calls, side)
	if f.err != nil {
		return fxrate.Rate{}, f.err
	}
	v := f.bid
	if side == fxrate.Ask {
		v = f.ask
	}
	return fxrate.Rate{Requested: d, PublishedOn: d, Value: v}, nil
}

func flat(rate string) *fixedRates {
	return &fixedRates{bid: dec(rate), ask: dec(rate)}
}

func TestRun_Scenario(t *testing.T) {
	txs := []model.Transaction{
		buy(date(2024, 1, 15), "100", "10.00"),
		buy(date(2024, 4, 15), "50", "16.00"),
		sell(date(2024, 6, 14), "60", "15.10", "900.00"),
	}
	p := New(flat("5.00"), DefaultConfig(), nopLog)

	recs, err := p.Run(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.True(t, recs[0].AverageCost.Equal(dec("10")))
	assert.True(t, recs[0].SharesHeld.Equal(dec("100")))
	assert.True(t, recs[0].AcquisitionCostLocal.Valid)
	assert.True(t, recs[0].AcquisitionCostLocal.Decimal.Equal(dec("5000")))
	assert.False(t, recs[0].CostBasisLocal.Valid, "buys carry no sale figures")
	assert.False(t, recs[0].ProceedsLocal.Valid)
	assert.False(t, recs[0].ProfitLocal.Valid)
	assert.False(t, recs[0].TaxDueLocal.Valid)

	assert.True(t, recs[1].AverageCost.Equal(dec("12")))
	assert.True(t, recs[1].SharesHeld.Equal(dec("150")))

	s := recs[2]
	assert.True(t, s.SharesHeld.Equal(dec("90")))
	assert.True(t, s.AverageCost.Equal(dec("12")))
	assert.True(t, s.ExchangeRate.Equal(dec("5")))
	assert.Equal(t, date(2024, 6, 14), s.RateDate)
	assert.Equal(t, "3600.00", s.CostBasisLocal.Decimal.StringFixed(2))
	assert.Equal(t, "4500.00", s.ProceedsLocal.Decimal.StringFixed(2))
	assert.Equal(t, "900.00", s.ProfitLocal.Decimal.StringFixed(2))
	assert.Equal(t, "135.00", s.TaxDueLocal.Decimal.StringFixed(2))
	assert.False(t, s.AcquisitionCostLocal.Valid)

	// Input is carried through untouched.
	assert.Equal(t, txs[2], s.Transaction)
}

func TestRun_ZeroProfit(t *testing.T) {
	txs := []model.Transaction{
		buy(date(2024, 1, 15), "10", "12"),
		sell(date(2024, 2, 15), "5", "12", "60"),
	}
	recs, err := New(flat("5"), DefaultConfig(), nopLog).Run(context.Background(), txs)
	require.NoError(t, err)
	assert.True(t, recs[1].ProfitLocal.Decimal.IsZero())
	assert.True(t, recs[1].TaxDueLocal.Valid)
	assert.True(t, recs[1].TaxDueLocal.Decimal.IsZero())
}

func TestRun_LossOwesNothing(t *testing.T) {
	txs := []model.Transaction{
		buy(date(2024, 1, 15), "10", "12"),
		sell(date(2024, 2, 15), "5", "10", "50"),
	}
	recs, err := New(flat("5"), DefaultConfig(), nopLog).Run(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, "-50.00", recs[1].ProfitLocal.Decimal.StringFixed(2))
	assert.True(t, recs[1].TaxDueLocal.Decimal.IsZero(), "losses are not taxed negatively")
}

func TestRun_ProceedsFallBackToPrice(t *testing.T) {
	txs := []model.Transaction{
		buy(date(2024, 1, 15), "10", "10"),
		sell(date(2024, 2, 15), "4", "12.50", ""),
	}
	recs, err := New(flat("2"), DefaultConfig(), nopLog).Run(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, "100.00", recs[1].ProceedsLocal.Decimal.StringFixed(2))
	assert.Equal(t, "80.00", recs[1].CostBasisLocal.Decimal.StringFixed(2))
	assert.Equal(t, "20.00", recs[1].ProfitLocal.Decimal.StringFixed(2))
	assert.Equal(t, "3.00", recs[1].TaxDueLocal.Decimal.StringFixed(2))
}

func TestRun_LocalAmountsAddUp(t *testing.T) {
	// Unrounded: cost basis 10.004, proceeds 20.006, profit 10.002.
	txs := []model.Transaction{
		buy(date(2024, 1, 15), "1", "10.004"),
		sell(date(2024, 2, 15), "1", "20.006", ""),
	}
	recs, err := New(flat("1"), DefaultConfig(), nopLog).Run(context.Background(), txs)
	require.NoError(t, err)

	s := recs[1]
	assert.Equal(t, "10.00", s.CostBasisLocal.Decimal.StringFixed(2))
	assert.Equal(t, "20.01", s.ProceedsLocal.Decimal.StringFixed(2))
	assert.True(t, s.ProfitLocal.Decimal.Equal(s.ProceedsLocal.Decimal.Sub(s.CostBasisLocal.Decimal)),
		"profit %s must equal proceeds - cost basis", s.ProfitLocal.Decimal)
	assert.Equal(t, "1.50", s.TaxDueLocal.Decimal.String(), "10.01 * 0.15 rounded to cents")
	assert.Equal(t, "10.004", s.AverageCost.String(), "ledger average is not rounded")
	assert.Equal(t, "10.00", recs[0].AcquisitionCostLocal.Decimal.String())
}

func TestRun_QuoteSides(t *testing.T) {
	rates := &fixedRates{bid: dec("5.0"), ask: dec("5.5")}
	txs := []model.Transaction{
		buy(date(2024, 1, 15), "10", "10"),
		sell(date(2024, 2, 15), "10", "10", "100"),
	}
	recs, err := New(rates, DefaultConfig(), nopLog).Run(context.Background(), txs)
	require.NoError(t, err)

	assert.Equal(t, []fxrate.Side{fxrate.Bid, fxrate.Ask}, rates.calls)
	assert.True(t, recs[0].ExchangeRate.Equal(dec("5.0")))
	assert.True(t, recs[1].ExchangeRate.Equal(dec("5.5")))
	// Cost basis is converted at the sale-date rate, like the proceeds.
	assert.Equal(t, "0.00", recs[1].ProfitLocal.Decimal.StringFixed(2))
}

func TestRun_InsufficientSharesAborts(t *testing.T) {
	txs := []model.Transaction{
		buy(date(2024, 1, 15), "10", "10"),
		sell(date(2024, 2, 15), "4", "12", ""),
		sell(date(2024, 3, 15), "7", "12", ""),
		buy(date(2024, 4, 15), "10", "10"),
	}
	recs, err := New(flat("5"), DefaultConfig(), nopLog).Run(context.Background(), txs)
	require.Error(t, err)
	assert.Nil(t, recs, "no partial output")

	var ise *ledger.InsufficientSharesError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, date(2024, 3, 15), ise.Date)
	assert.True(t, ise.Held.Equal(dec("6")))
	assert.Contains(t, err.Error(), "transaction 3")
}

func TestRun_RateUnavailableAborts(t *testing.T) {
	src := fxrate.NewTable("EUR", []fxrate.Quote{
		{Day: date(2024, 1, 12), Bid: dec("5.3"), Ask: dec("5.4")},
	})
	resolver := fxrate.NewResolver(src, "EUR", 10, nopLog)
	txs := []model.Transaction{
		buy(date(2024, 1, 15), "10", "10"),
		sell(date(2024, 3, 15), "4", "12", ""),
	}

	recs, err := New(resolver, DefaultConfig(), nopLog).Run(context.Background(), txs)
	require.Error(t, err)
	assert.Nil(t, recs)

	var rue *fxrate.RateUnavailableError
	require.ErrorAs(t, err, &rue)
	assert.Equal(t, date(2024, 3, 15), rue.Day)
}

func TestRun_WithResolverFallback(t *testing.T) {
	src := fxrate.NewTable("EUR", []fxrate.Quote{
		{Day: date(2024, 3, 28), Bid: dec("5.40"), Ask: dec("5.41")},
	})
	resolver := fxrate.NewResolver(src, "EUR", 10, nopLog)
	txs := []model.Transaction{buy(date(2024, 3, 30), "1", "10")}

	recs, err := New(resolver, DefaultConfig(), nopLog).Run(context.Background(), txs)
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 28), recs[0].RateDate)
	assert.Equal(t, date(2024, 3, 30), recs[0].Date)
	assert.True(t, recs[0].ExchangeRate.Equal(dec("5.40")))
}

func TestRun_ValidationRejectsBeforeEngine(t *testing.T) {
	rates := flat("5")
	txs := []model.Transaction{
		buy(date(2024, 2, 15), "10", "10"),
		buy(date(2024, 1, 15), "-1", "10"),
	}
	recs, err := New(rates, DefaultConfig(), nopLog).Run(context.Background(), txs)
	require.Error(t, err)
	assert.Nil(t, recs)
	assert.Empty(t, rates.calls, "no rate lookups on invalid input")

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func TestRun_Empty(t *testing.T) {
	recs, err := New(flat("5"), DefaultConfig(), nopLog).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRun_IndependentRuns(t *testing.T) {
	p := New(flat("1"), DefaultConfig(), nopLog)
	txs := []model.Transaction{buy(date(2024, 1, 15), "10", "10")}

	_, err := p.Run(context.Background(), txs)
	require.NoError(t, err)
	recs, err := p.Run(context.Background(), txs)
	require.NoError(t, err)
	assert.True(t, recs[0].SharesHeld.Equal(dec("10")), "each run starts from zero")
}

func TestRun_RateErrorAborts(t *testing.T) {
	rates := flat("1")
	rates.err = errors.New("service down")
	_, err := New(rates, DefaultConfig(), nopLog).Run(context.Background(), []model.Transaction{buy(date(2024, 1, 15), "1", "1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service down")
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(flat("1"), DefaultConfig(), nopLog).Run(ctx, []model.Transaction{buy(date(2024, 1, 15), "1", "1")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TaxRate = dec("1.5")
	_, err := New(flat("1"), cfg, nopLog).Run(context.Background(), nil)
	assert.Error(t, err)
}
