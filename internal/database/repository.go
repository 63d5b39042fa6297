package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"market-signals/internal/audit"
	"market-signals/internal/simulator"
	"market-signals/internal/validate"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("not found")

// Repository provides data access on top of the pool.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// ============================================================================
// USERS
// ============================================================================

// User is an account row.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUser inserts a new account and returns its ID.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
		email, passwordHash,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail looks up an account for login.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetUserByID looks up an account by primary key.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ============================================================================
// FAVORITES
// ============================================================================

// Favorite is a user's saved symbol.
type Favorite struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Market    string    `json:"market"`
	CreatedAt time.Time `json:"created_at"`
}

// AddFavorite saves a symbol for a user. Adding the same symbol twice is a
// no-op.
func (r *Repository) AddFavorite(ctx context.Context, userID int64, symbol, market string) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO favorites (user_id, symbol, market) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, symbol) DO NOTHING`,
		userID, symbol, market,
	)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite deletes a saved symbol.
func (r *Repository) RemoveFavorite(ctx context.Context, userID int64, symbol string) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND symbol = $2`,
		userID, symbol,
	)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// ListFavorites returns a user's saved symbols, newest first.
func (r *Repository) ListFavorites(ctx context.Context, userID int64) ([]Favorite, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, symbol, market, created_at FROM favorites
		 WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []Favorite
	for rows.Next() {
		var f Favorite
		if err := rows.Scan(&f.ID, &f.Symbol, &f.Market, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// ============================================================================
// AUDIT RUNS
// ============================================================================

// SaveAuditReport persists an audit run, its per-strategy stats and the
// closed trades in a transaction. Returns the run ID.
func (r *Repository) SaveAuditReport(ctx context.Context, report *audit.Report, trades map[simulator.StrategyKey][]simulator.Trade) (uuid.UUID, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	runID := uuid.New()
	_, err = tx.Exec(ctx,
		`INSERT INTO audit_runs (id, market, mode, symbols, generated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		runID, string(report.Market), string(report.Mode), report.Symbols, report.GeneratedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert audit run: %w", err)
	}

	for _, s := range report.Strategies {
		_, err = tx.Exec(ctx,
			`INSERT INTO audit_strategy_stats (
				run_id, strategy, trades, wins, win_rate,
				avg_return_pct, median_return_pct, total_return_pct,
				compounded_value, max_drawdown_pct, avg_days_held
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			runID, string(s.Strategy), s.Trades, s.Wins, s.WinRate,
			s.AvgReturnPct, s.MedianReturnPct, s.TotalReturnPct,
			s.CompoundedValue, s.MaxDrawdownPct, s.AvgDaysHeld,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert strategy stats: %w", err)
		}
	}

	for strategy, strategyTrades := range trades {
		for _, t := range strategyTrades {
			_, err = tx.Exec(ctx,
				`INSERT INTO audit_trades (
					run_id, strategy, symbol, side, entry_date, exit_date,
					entry_price, exit_price, entry_score, exit_score, days_held, return_pct
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				runID, string(strategy), t.Symbol, string(t.Side), t.EntryDate, t.ExitDate,
				t.EntryPrice, t.ExitPrice, t.EntryScore, t.ExitScore, t.DaysHeld, t.ReturnPct,
			)
			if err != nil {
				return uuid.Nil, fmt.Errorf("failed to insert audit trade: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit audit run: %w", err)
	}
	return runID, nil
}

// ============================================================================
// VALIDATION REPORTS
// ============================================================================

// SaveValidationReport persists a validation run summary.
func (r *Repository) SaveValidationReport(ctx context.Context, report *validate.Report) (uuid.UUID, error) {
	id := uuid.New()

	var cutoff *float64
	var horizon *int
	if report.Recommendation != nil {
		cutoff = &report.Recommendation.Cutoff
		horizon = &report.Recommendation.Horizon
	}

	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO validation_reports (
			id, market, mode, events, cutoff, horizon,
			held_out_trades, held_out_win_rate, held_out_avg_return,
			profit_factor, validated, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, string(report.Market), string(report.Mode), report.Events, cutoff, horizon,
		report.HeldOut.Trades, report.HeldOut.WinRate, report.HeldOut.AvgReturn,
		report.HeldOut.ProfitFactor, report.Validated, report.GeneratedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert validation report: %w", err)
	}
	return id, nil
}
