// Package scheduler keeps configured markets warm by refreshing their
// audits and validations on an interval.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"market-signals/internal/engine"
	"market-signals/internal/events"
	"market-signals/internal/scoring"
)

// Scheduler runs the background refresh loop.
type Scheduler struct {
	engine   *engine.Engine
	bus      *events.Bus
	markets  []scoring.Market
	interval time.Duration
	logger   zerolog.Logger
}

func New(eng *engine.Engine, bus *events.Bus, markets []string, interval time.Duration, logger zerolog.Logger) *Scheduler {
	resolved := make([]scoring.Market, 0, len(markets))
	for _, m := range markets {
		resolved = append(resolved, scoring.ResolveMarket(m))
	}
	return &Scheduler{
		engine:   eng,
		bus:      bus,
		markets:  resolved,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run refreshes immediately and then on every tick until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.markets) == 0 {
		s.logger.Info().Msg("No markets configured, scheduler idle")
		<-ctx.Done()
		return
	}

	s.refreshAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler stopped")
			return
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *Scheduler) refreshAll(ctx context.Context) {
	started := time.Now()
	s.bus.Publish(events.Event{Type: events.EventRefreshStarted, Data: map[string]interface{}{
		"markets": len(s.markets),
	}})

	for _, market := range s.markets {
		if ctx.Err() != nil {
			return
		}

		s.engine.Refresh(ctx, market)

		if _, err := s.engine.RunAudit(ctx, market, scoring.ModeStandard); err != nil {
			s.logger.Error().Str("market", string(market)).Err(err).Msg("Scheduled audit failed")
			s.bus.PublishError("scheduler", err.Error())
			continue
		}
		if _, err := s.engine.RunValidation(ctx, market, scoring.ModeStandard); err != nil {
			s.logger.Error().Str("market", string(market)).Err(err).Msg("Scheduled validation failed")
			s.bus.PublishError("scheduler", err.Error())
		}
	}

	s.logger.Info().Dur("elapsed", time.Since(started)).Int("markets", len(s.markets)).Msg("Refresh cycle complete")
	s.bus.Publish(events.Event{Type: events.EventRefreshCompleted, Data: map[string]interface{}{
		"markets":    len(s.markets),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}})
}
