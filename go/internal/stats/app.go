package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = time.Second
)

// App is the best-effort face of the durable win-count store. Store
// unavailability must never block or fail a session operation, so writes are
// fire-and-forget and reads degrade to zero. A nil *App disables the store
// entirely.
type App struct {
	repo Querier
}

// NewApp creates an App over a repository.
func NewApp(repo Querier) *App {
	return &App{repo: repo}
}

// RecordWin asynchronously increments a player's durable win count. Failures
// are logged and swallowed.
func (a *App) RecordWin(playerName string) {
	if a == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := a.repo.IncrementWins(ctx, playerName); err != nil {
			log.Warn().Err(err).Str("player", playerName).Msg("failed to record win")
		}
	}()
}

// Wins returns a player's historical win count, or zero when the store is
// unavailable or disabled.
func (a *App) Wins(ctx context.Context, playerName string) int {
	if a == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	wins, err := a.repo.GetWins(ctx, playerName)
	if err != nil {
		log.Debug().Err(err).Str("player", playerName).Msg("failed to read wins")
		return 0
	}
	return wins
}
