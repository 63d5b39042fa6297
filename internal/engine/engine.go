// Package engine orchestrates the signal pipeline: fetch candles, build
// walk-forward series, score, audit and validate, with caching and
// persistence layered around the pure computation packages.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"market-signals/config"
	"market-signals/internal/audit"
	"market-signals/internal/cache"
	"market-signals/internal/database"
	"market-signals/internal/events"
	"market-signals/internal/indicator"
	"market-signals/internal/marketdata"
	"market-signals/internal/scoring"
	"market-signals/internal/series"
	"market-signals/internal/validate"
)

// Engine is the application core shared by the API, the scheduler and the
// offline CLI.
type Engine struct {
	cfg      *config.Config
	fetcher  *marketdata.BatchFetcher
	provider marketdata.Provider
	cache    *cache.Service       // nil when redis is disabled
	repo     *database.Repository // nil when the database is disabled
	bus      *events.Bus
	logger   zerolog.Logger
}

func New(cfg *config.Config, provider marketdata.Provider, cacheSvc *cache.Service, repo *database.Repository, bus *events.Bus, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		fetcher:  marketdata.NewBatchFetcher(provider, cfg.MarketDataConfig.FetchConcurrency, logger),
		provider: provider,
		cache:    cacheSvc,
		repo:     repo,
		bus:      bus,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// Signal is a live score for one symbol.
type Signal struct {
	Symbol   string               `json:"symbol"`
	Result   scoring.Result       `json:"result"`
	Strength *float64             `json:"strength,omitempty"`
	Entry70  *scoring.EntryResult `json:"entry70,omitempty"`
	Entry80  *scoring.EntryResult `json:"entry80,omitempty"`
	Snapshot indicator.Snapshot   `json:"snapshot"`
	AsOf     time.Time            `json:"asOf"`
	Candles  int                  `json:"candles"`
}

// LiveSignal scores a symbol on its latest candle history.
func (e *Engine) LiveSignal(ctx context.Context, symbol string, market scoring.Market, mode scoring.Mode) (*Signal, error) {
	cacheKey := fmt.Sprintf(cache.KeySignal, symbol, market, mode)
	if e.cache != nil {
		var cached Signal
		if e.cache.GetJSON(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	candles, err := e.candlesFor(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candle history for %s", symbol)
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	snap := indicator.Compute(closes, volumes)
	result := scoring.Score(snap, market, mode)
	strength := scoring.Strength(result.Status, result.Score)

	signal := &Signal{
		Symbol:   symbol,
		Result:   result,
		Strength: strength,
		Snapshot: snap,
		AsOf:     candles[len(candles)-1].Time,
		Candles:  len(candles),
	}
	if strength != nil {
		if *strength >= 70 {
			entry := scoring.QualifyEntry(result.Status, *strength, 70, snap)
			signal.Entry70 = &entry
		}
		if *strength >= 80 {
			entry := scoring.QualifyEntry(result.Status, *strength, 80, snap)
			signal.Entry80 = &entry
		}
	}

	if e.cache != nil {
		e.cache.SetJSON(ctx, cacheKey, signal, cache.SignalTTL)
	}
	e.bus.PublishSignal(symbol, string(market), result.Score, string(result.Status), result.Confidence)

	return signal, nil
}

// RunAudit builds the walk-forward series for every symbol in the market
// and replays all strategies over them.
func (e *Engine) RunAudit(ctx context.Context, market scoring.Market, mode scoring.Mode) (*audit.Report, error) {
	cacheKey := fmt.Sprintf(cache.KeyAudit, market, mode)
	if e.cache != nil {
		var cached audit.Report
		if e.cache.GetJSON(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	bySymbol, err := e.marketSeries(ctx, market, mode)
	if err != nil {
		return nil, err
	}

	report := audit.Run(market, mode, bySymbol)
	e.logger.Info().
		Str("market", string(market)).
		Str("mode", string(mode)).
		Int("symbols", report.Symbols).
		Msg("Audit complete")

	if e.repo != nil {
		if _, err := e.repo.SaveAuditReport(ctx, report, report.Trades); err != nil {
			e.logger.Error().Err(err).Msg("Failed to persist audit report")
		}
	}
	if e.cache != nil {
		e.cache.SetJSON(ctx, cacheKey, report, cache.ReportTTL)
	}
	e.bus.PublishAuditCompleted(string(market), string(mode), report.Symbols)

	return report, nil
}

// RunValidation runs the leave-one-out cutoff search for the market.
func (e *Engine) RunValidation(ctx context.Context, market scoring.Market, mode scoring.Mode) (*validate.Report, error) {
	cacheKey := fmt.Sprintf(cache.KeyValidation, market, mode)
	if e.cache != nil {
		var cached validate.Report
		if e.cache.GetJSON(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	bySymbol, err := e.marketSeries(ctx, market, mode)
	if err != nil {
		return nil, err
	}

	cfg := validate.DefaultConfig()
	cfg.TargetWinRate = e.cfg.ValidationConfig.TargetWinRate
	cfg.MinTrades = e.cfg.ValidationConfig.MinTrades

	report := validate.Run(market, mode, bySymbol, cfg)
	e.logger.Info().
		Str("market", string(market)).
		Bool("validated", report.Validated).
		Int("active_signals", len(report.ActiveSignals)).
		Msg("Validation complete")

	if e.repo != nil {
		if _, err := e.repo.SaveValidationReport(ctx, report); err != nil {
			e.logger.Error().Err(err).Msg("Failed to persist validation report")
		}
	}
	if e.cache != nil {
		e.cache.SetJSON(ctx, cacheKey, report, cache.ReportTTL)
	}
	e.bus.PublishValidationUpdate(string(market), string(mode), report.Validated, len(report.ActiveSignals))

	return report, nil
}

// Refresh drops cached reports for a market so the next request recomputes
// them from fresh candles.
func (e *Engine) Refresh(ctx context.Context, market scoring.Market) {
	if e.cache == nil {
		return
	}
	e.cache.Invalidate(ctx,
		fmt.Sprintf("signal:*:%s:*", market),
		fmt.Sprintf("audit:%s:*", market),
		fmt.Sprintf("validation:%s:*", market),
	)
}

// Symbols returns the configured universe for a market.
func (e *Engine) Symbols(market scoring.Market) []string {
	return e.cfg.SymbolsFor(string(market))
}

func (e *Engine) marketSeries(ctx context.Context, market scoring.Market, mode scoring.Mode) (map[string][]series.Point, error) {
	symbols := e.Symbols(market)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured for market %s", market)
	}

	batch := e.fetchAll(ctx, symbols)
	if len(batch.Candles) == 0 {
		return nil, fmt.Errorf("no candle data available for market %s", market)
	}

	bySymbol := make(map[string][]series.Point, len(batch.Candles))
	for symbol, candles := range batch.Candles {
		points := series.Build(candles, market, mode)
		if points == nil {
			e.logger.Debug().Str("symbol", symbol).Int("candles", len(candles)).Msg("Insufficient history, skipping")
			continue
		}
		bySymbol[symbol] = points
	}
	if len(bySymbol) == 0 {
		return nil, fmt.Errorf("no symbol in %s has enough history", market)
	}
	return bySymbol, nil
}

// fetchAll pulls candles for the symbols, serving from cache where
// possible and batch-fetching the misses.
func (e *Engine) fetchAll(ctx context.Context, symbols []string) marketdata.BatchResult {
	result := marketdata.BatchResult{
		Candles: make(map[string][]marketdata.Candle, len(symbols)),
		Errors:  make(map[string]error),
	}

	var misses []string
	for _, symbol := range symbols {
		if e.cache != nil {
			var cached []marketdata.Candle
			if e.cache.GetJSON(ctx, fmt.Sprintf(cache.KeyCandles, symbol), &cached) {
				result.Candles[symbol] = cached
				continue
			}
		}
		misses = append(misses, symbol)
	}

	if len(misses) > 0 {
		fetched := e.fetcher.FetchAll(ctx, misses, e.cfg.MarketDataConfig.HistoryDays)
		for symbol, candles := range fetched.Candles {
			result.Candles[symbol] = candles
			if e.cache != nil {
				e.cache.SetJSON(ctx, fmt.Sprintf(cache.KeyCandles, symbol), candles, cache.CandlesTTL)
			}
		}
		for symbol, err := range fetched.Errors {
			result.Errors[symbol] = err
			e.bus.PublishError("marketdata", fmt.Sprintf("%s: %v", symbol, err))
		}
	}

	return result
}

// candlesFor fetches one symbol's history through the cache.
func (e *Engine) candlesFor(ctx context.Context, symbol string) ([]marketdata.Candle, error) {
	if e.cache != nil {
		var cached []marketdata.Candle
		if e.cache.GetJSON(ctx, fmt.Sprintf(cache.KeyCandles, symbol), &cached) {
			return cached, nil
		}
	}

	candles, err := e.provider.Daily(ctx, symbol, e.cfg.MarketDataConfig.HistoryDays)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.SetJSON(ctx, fmt.Sprintf(cache.KeyCandles, symbol), candles, cache.CandlesTTL)
	}
	return candles, nil
}

// AuditFromCandles runs the audit pipeline over already-loaded candles,
// bypassing providers and caches. Used by the offline CLI.
func AuditFromCandles(market scoring.Market, mode scoring.Mode, candlesBySymbol map[string][]marketdata.Candle) *audit.Report {
	bySymbol := make(map[string][]series.Point, len(candlesBySymbol))
	for symbol, candles := range candlesBySymbol {
		if points := series.Build(candles, market, mode); points != nil {
			bySymbol[symbol] = points
		}
	}
	return audit.Run(market, mode, bySymbol)
}

// ValidationFromCandles mirrors AuditFromCandles for the validator.
func ValidationFromCandles(market scoring.Market, mode scoring.Mode, candlesBySymbol map[string][]marketdata.Candle, cfg validate.Config) *validate.Report {
	bySymbol := make(map[string][]series.Point, len(candlesBySymbol))
	for symbol, candles := range candlesBySymbol {
		if points := series.Build(candles, market, mode); points != nil {
			bySymbol[symbol] = points
		}
	}
	return validate.Run(market, mode, bySymbol, cfg)
}
