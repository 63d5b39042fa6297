// Package database persists users, favorites and report runs in PostgreSQL.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New creates a new database connection pool from a connection URL.
func New(url string, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "database").Logger()
	log.Info().Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: log}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS favorites (
			id SERIAL PRIMARY KEY,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			symbol VARCHAR(20) NOT NULL,
			market VARCHAR(20) NOT NULL DEFAULT 'DEFAULT',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_favorites_user ON favorites(user_id)`,

		`CREATE TABLE IF NOT EXISTS audit_runs (
			id UUID PRIMARY KEY,
			market VARCHAR(20) NOT NULL,
			mode VARCHAR(12) NOT NULL,
			symbols INTEGER NOT NULL,
			generated_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_runs_market ON audit_runs(market, mode, generated_at DESC)`,

		`CREATE TABLE IF NOT EXISTS audit_strategy_stats (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES audit_runs(id) ON DELETE CASCADE,
			strategy VARCHAR(20) NOT NULL,
			trades INTEGER NOT NULL,
			wins INTEGER NOT NULL,
			win_rate DECIMAL(8, 6) NOT NULL,
			avg_return_pct DECIMAL(12, 6) NOT NULL,
			median_return_pct DECIMAL(12, 6) NOT NULL,
			total_return_pct DECIMAL(12, 6) NOT NULL,
			compounded_value DECIMAL(16, 6) NOT NULL,
			max_drawdown_pct DECIMAL(8, 4) NOT NULL,
			avg_days_held DECIMAL(8, 2) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_stats_run ON audit_strategy_stats(run_id)`,

		`CREATE TABLE IF NOT EXISTS audit_trades (
			id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES audit_runs(id) ON DELETE CASCADE,
			strategy VARCHAR(20) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			entry_date TIMESTAMP NOT NULL,
			exit_date TIMESTAMP NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			entry_score INTEGER NOT NULL DEFAULT 0,
			exit_score INTEGER NOT NULL DEFAULT 0,
			days_held INTEGER NOT NULL,
			return_pct DECIMAL(12, 6) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_trades_run ON audit_trades(run_id, strategy)`,

		`CREATE TABLE IF NOT EXISTS validation_reports (
			id UUID PRIMARY KEY,
			market VARCHAR(20) NOT NULL,
			mode VARCHAR(12) NOT NULL,
			events INTEGER NOT NULL,
			cutoff DECIMAL(5, 1),
			horizon INTEGER,
			held_out_trades INTEGER NOT NULL,
			held_out_win_rate DECIMAL(8, 6) NOT NULL,
			held_out_avg_return DECIMAL(12, 6) NOT NULL,
			profit_factor DECIMAL(12, 6) NOT NULL,
			validated BOOLEAN NOT NULL,
			generated_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_validation_market ON validation_reports(market, mode, generated_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Int("count", len(migrations)).Msg("Migrations complete")
	return nil
}
