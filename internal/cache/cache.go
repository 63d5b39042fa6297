// Package cache provides Redis-based caching for candles, signals and
// reports. When Redis is unavailable the service degrades to a no-op and
// callers recompute instead.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"market-signals/config"
)

// Key formats for the cache namespaces.
const (
	KeyCandles    = "candles:%s"         // symbol
	KeySignal     = "signal:%s:%s:%s"    // symbol, market, mode
	KeyAudit      = "audit:%s:%s"        // market, mode
	KeyValidation = "validation:%s:%s"   // market, mode
)

// Default TTLs. Daily candles only change after the close, signals follow
// the refresh cadence, reports live until the next scheduled run.
const (
	CandlesTTL    = 1 * time.Hour
	SignalTTL     = 30 * time.Minute
	ReportTTL     = 6 * time.Hour
)

// Service wraps the Redis client with health tracking.
type Service struct {
	client *redis.Client
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	maxFailures  int
}

// New connects to Redis. A failed initial connection is not fatal: the
// service starts degraded and recovers on the first successful operation.
func New(cfg config.RedisConfig, logger zerolog.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &Service{
		client:      client,
		logger:      logger.With().Str("component", "cache").Logger(),
		maxFailures: 3,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("Initial Redis connection failed, starting degraded")
		return s, nil
	}

	s.healthy = true
	s.logger.Info().Str("address", cfg.Address).Msg("Redis connected")
	return s, nil
}

// IsHealthy returns whether Redis is currently usable.
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Service) recordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	if s.failureCount >= s.maxFailures && s.healthy {
		s.healthy = false
		s.logger.Warn().Err(err).Int("failures", s.failureCount).Msg("Redis marked unhealthy")
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount = 0
	if !s.healthy {
		s.healthy = true
		s.logger.Info().Msg("Redis recovered")
	}
}

// GetJSON loads and unmarshals a cached value into dest. Returns false on
// miss or unhealthy cache.
func (s *Service) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		s.recordSuccess()
		return false
	}
	if err != nil {
		s.recordFailure(err)
		return false
	}
	s.recordSuccess()

	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.Warn().Str("key", key).Err(err).Msg("Corrupt cache entry, dropping")
		s.client.Del(ctx, key)
		return false
	}
	return true
}

// SetJSON marshals and stores a value. Failures are swallowed after being
// counted; the cache is best effort.
func (s *Service) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error().Str("key", key).Err(err).Msg("Failed to marshal cache value")
		return
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.recordFailure(err)
		return
	}
	s.recordSuccess()
}

// Invalidate removes keys matching the namespaces of a market refresh.
func (s *Service) Invalidate(ctx context.Context, patterns ...string) {
	for _, pattern := range patterns {
		iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			s.client.Del(ctx, iter.Val())
		}
		if err := iter.Err(); err != nil {
			s.recordFailure(err)
			return
		}
	}
	s.recordSuccess()
}

// Close shuts down the underlying client.
func (s *Service) Close() error {
	return s.client.Close()
}
