package marketdata

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ChartClient fetches daily candles from a chart-API style endpoint that
// returns timestamps plus parallel OHLCV arrays.
type ChartClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
}

func NewChartClient(baseURL string, limiter *RateLimiter) *ChartClient {
	return &ChartClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    limiter,
	}
}

func (c *ChartClient) Name() string { return "chart" }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Daily fetches up to days daily candles for symbol, oldest first.
func (c *ChartClient) Daily(ctx context.Context, symbol string, days int) ([]Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", rangeFor(days))

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "market-signals/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching chart: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart API error (%d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing chart response: %w", err)
	}
	if parsed.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %s", parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart API returned no data for %s", symbol)
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == 0 {
			continue
		}
		candles = append(candles, Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  quote.Close[i],
			Volume: at(quote.Volume, i),
		})
	}

	if len(candles) > days {
		candles = candles[len(candles)-days:]
	}
	return candles, nil
}

func rangeFor(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 185:
		return "6mo"
	case days <= 366:
		return "1y"
	case days <= 732:
		return "2y"
	default:
		return "5y"
	}
}

func at(vals []float64, i int) float64 {
	if i < len(vals) {
		return vals[i]
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ============================================================================
// CSV PROVIDER
// ============================================================================

// CSVClient fetches daily candles from a Stooq-style CSV endpoint with a
// Date,Open,High,Low,Close,Volume header row.
type CSVClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
}

func NewCSVClient(baseURL string, limiter *RateLimiter) *CSVClient {
	return &CSVClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    limiter,
	}
}

func (c *CSVClient) Name() string { return "csv" }

func (c *CSVClient) Daily(ctx context.Context, symbol string, days int) ([]Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("s", strings.ToLower(symbol))
	params.Set("i", "d")

	endpoint := fmt.Sprintf("%s/q/d/l/?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching csv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("csv API error (%d)", resp.StatusCode)
	}

	candles, err := ParseCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing csv for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("csv API returned no data for %s", symbol)
	}

	if len(candles) > days {
		candles = candles[len(candles)-days:]
	}
	return candles, nil
}

// ParseCSV reads Date,Open,High,Low,Close,Volume rows, oldest first. Rows
// that fail to parse are skipped.
func ParseCSV(r io.Reader) ([]Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var candles []Candle
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && strings.EqualFold(rec[0], "date") {
			continue
		}
		if len(rec) < 6 {
			continue
		}
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}
		closeP, err := strconv.ParseFloat(rec[4], 64)
		if err != nil || closeP == 0 {
			continue
		}
		open, _ := strconv.ParseFloat(rec[1], 64)
		high, _ := strconv.ParseFloat(rec[2], 64)
		low, _ := strconv.ParseFloat(rec[3], 64)
		volume, _ := strconv.ParseFloat(rec[5], 64)

		candles = append(candles, Candle{
			Time:   date.UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeP,
			Volume: volume,
		})
	}
	return candles, nil
}

// ============================================================================
// FALLBACK CHAIN
// ============================================================================

// Chain tries each provider in order until one returns data.
type Chain struct {
	providers []Provider
	logger    zerolog.Logger
}

func NewChain(logger zerolog.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		logger:    logger.With().Str("component", "marketdata").Logger(),
	}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Daily(ctx context.Context, symbol string, days int) ([]Candle, error) {
	var lastErr error
	for _, p := range c.providers {
		candles, err := p.Daily(ctx, symbol, days)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		c.logger.Warn().
			Str("provider", p.Name()).
			Str("symbol", symbol).
			Err(err).
			Msg("Provider failed, trying next")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	return nil, fmt.Errorf("all providers failed for %s: %w", symbol, lastErr)
}
