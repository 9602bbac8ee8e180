package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier defines what the repository needs from the database layer.
type Querier interface {
	IncrementWins(ctx context.Context, playerName string) error
	GetWins(ctx context.Context, playerName string) (int, error)
}

// Repository implements durable win-count access on Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a stats repository over a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IncrementWins adds one win for a player, creating the row on first win.
func (r *Repository) IncrementWins(ctx context.Context, playerName string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO player_stats (player_name, wins)
		VALUES ($1, 1)
		ON CONFLICT (player_name)
		DO UPDATE SET wins = player_stats.wins + 1`,
		playerName,
	)
	if err != nil {
		return fmt.Errorf("failed to increment wins: %w", err)
	}
	return nil
}

// GetWins returns a player's historical win count, zero if unknown.
func (r *Repository) GetWins(ctx context.Context, playerName string) (int, error) {
	var wins int
	err := r.pool.QueryRow(ctx,
		`SELECT wins FROM player_stats WHERE player_name = $1`,
		playerName,
	).Scan(&wins)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get wins: %w", err)
	}
	return wins, nil
}
