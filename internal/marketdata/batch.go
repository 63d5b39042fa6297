package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BatchResult holds the outcome of a multi-symbol fetch. Failed symbols are
// reported alongside the successes; one bad ticker must not sink a market.
type BatchResult struct {
	Candles map[string][]Candle
	Errors  map[string]error
}

// BatchFetcher fans out candle fetches over a bounded worker pool with a
// pause between batches.
type BatchFetcher struct {
	provider    Provider
	concurrency int
	batchSize   int
	batchPause  time.Duration
	logger      zerolog.Logger
}

func NewBatchFetcher(provider Provider, concurrency int, logger zerolog.Logger) *BatchFetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &BatchFetcher{
		provider:    provider,
		concurrency: concurrency,
		batchSize:   20,
		batchPause:  2 * time.Second,
		logger:      logger.With().Str("component", "batch_fetcher").Logger(),
	}
}

// FetchAll fetches daily history for every symbol. Returns early with the
// partial result if the context is cancelled.
func (f *BatchFetcher) FetchAll(ctx context.Context, symbols []string, days int) BatchResult {
	result := BatchResult{
		Candles: make(map[string][]Candle, len(symbols)),
		Errors:  make(map[string]error),
	}

	var mu sync.Mutex

	for start := 0; start < len(symbols); start += f.batchSize {
		if ctx.Err() != nil {
			break
		}

		end := start + f.batchSize
		if end > len(symbols) {
			end = len(symbols)
		}
		batch := symbols[start:end]

		sem := make(chan struct{}, f.concurrency)
		var wg sync.WaitGroup
		for _, symbol := range batch {
			wg.Add(1)
			sem <- struct{}{}
			go func(symbol string) {
				defer wg.Done()
				defer func() { <-sem }()

				candles, err := f.provider.Daily(ctx, symbol, days)

				mu.Lock()
				if err != nil {
					result.Errors[symbol] = err
				} else {
					result.Candles[symbol] = candles
				}
				mu.Unlock()
			}(symbol)
		}
		wg.Wait()

		if end < len(symbols) {
			select {
			case <-ctx.Done():
			case <-time.After(f.batchPause):
			}
		}
	}

	f.logger.Info().
		Int("requested", len(symbols)).
		Int("fetched", len(result.Candles)).
		Int("failed", len(result.Errors)).
		Msg("Batch fetch complete")

	return result
}
