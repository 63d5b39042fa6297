// Package marketdata fetches daily OHLCV candles from public providers with
// fallback, rate limiting and bounded batch fan-out.
package marketdata

import (
	"context"
	"time"
)

// Candle is one daily bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Provider serves daily candle history for a symbol, oldest first.
type Provider interface {
	Daily(ctx context.Context, symbol string, days int) ([]Candle, error)
	Name() string
}
