package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/cleared-dev/equitax/internal/model"
)

// DefaultPTAXBaseURL is the Banco Central do Brasil open-data endpoint.
const DefaultPTAXBaseURL = "https://olinda.bcb.gov.br/olinda/servico/PTAX/versao/v1/odata"

// ptaxDateFormat is the MM-DD-YYYY layout the OData service expects.
const ptaxDateFormat = "01-02-2006"

// PTAXConfig configures a PTAXClient. Zero values select defaults.
type PTAXConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retries           int
}

// PTAXClient is a Source backed by the official closing PTAX bulletins.
type PTAXClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retries int
	backoff time.Duration
	log     zerolog.Logger
}

// NewPTAXClient creates a client for the BCB PTAX service.
func NewPTAXClient(cfg PTAXConfig, log zerolog.Logger) *PTAXClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPTAXBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &PTAXClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retries: cfg.Retries,
		backoff: 500 * time.Millisecond,
		log:     log.With().Str("client", "ptax").Logger(),
	}
}

type ptaxResponse struct {
	Value []ptaxQuote `json:"value"`
}

type ptaxQuote struct {
	Bid       decimal.Decimal `json:"cotacaoCompra"`
	Ask       decimal.Decimal `json:"cotacaoVenda"`
	Timestamp string          `json:"dataHoraCotacao"` // "2024-01-02 13:09:29.411"
}

// errRetryable marks failures worth another attempt.
var errRetryable = errors.New("retryable")

// Quotes implements Source.
func (c *PTAXClient) Quotes(ctx context.Context, currency string, from, to time.Time) ([]Quote, error) {
	url := c.periodURL(strings.ToUpper(currency), model.Day(from), model.Day(to))

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.log.Warn().Err(lastErr).Int("attempt", attempt+1).Msg("Retrying PTAX request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		quotes, err := c.fetch(ctx, url)
		if err == nil {
			return quotes, nil
		}
		if !errors.Is(err, errRetryable) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("PTAX request failed after %d attempts: %w", c.retries+1, lastErr)
}

func (c *PTAXClient) periodURL(currency string, from, to time.Time) string {
	return fmt.Sprintf(
		"%s/CotacaoMoedaPeriodoFechamento(codigoMoeda=@codigoMoeda,dataInicialCotacao=@dataInicialCotacao,dataFinalCotacao=@dataFinalCotacao)"+
			"?@codigoMoeda='%s'&@dataInicialCotacao='%s'&@dataFinalCotacao='%s'&$format=json",
		c.baseURL, currency, from.Format(ptaxDateFormat), to.Format(ptaxDateFormat),
	)
}

func (c *PTAXClient) fetch(ctx context.Context, url string) ([]Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building PTAX request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("url", url).Msg("Fetching PTAX quotes")
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("PTAX request: %w: %w", errRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("PTAX returned status %d: %w", resp.StatusCode, errRetryable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PTAX returned status %d", resp.StatusCode)
	}

	var body ptaxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding PTAX response: %w", err)
	}

	quotes := make([]Quote, 0, len(body.Value))
	for _, v := range body.Value {
		if len(v.Timestamp) < len(dayFormat) {
			return nil, fmt.Errorf("unexpected PTAX timestamp %q", v.Timestamp)
		}
		d, err := time.Parse(dayFormat, v.Timestamp[:len(dayFormat)])
		if err != nil {
			return nil, fmt.Errorf("parsing PTAX timestamp %q: %w", v.Timestamp, err)
		}
		quotes = append(quotes, Quote{Day: d, Bid: v.Bid, Ask: v.Ask})
	}
	return quotes, nil
}
