package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	mu         sync.Mutex
	wins       map[string]int
	err        error
	increments []string
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{wins: make(map[string]int)}
}

func (q *fakeQuerier) IncrementWins(ctx context.Context, playerName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.wins[playerName]++
	q.increments = append(q.increments, playerName)
	return nil
}

func (q *fakeQuerier) GetWins(ctx context.Context, playerName string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	return q.wins[playerName], nil
}

func (q *fakeQuerier) recorded() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.increments))
	copy(out, q.increments)
	return out
}

func TestRecordWin(t *testing.T) {
	q := newFakeQuerier()
	app := NewApp(q)

	app.RecordWin("amira")

	require.Eventually(t, func() bool {
		return len(q.recorded()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, app.Wins(context.Background(), "amira"))
}

func TestWinsDegradesToZero(t *testing.T) {
	q := newFakeQuerier()
	q.err = errors.New("connection refused")
	app := NewApp(q)

	assert.Equal(t, 0, app.Wins(context.Background(), "amira"))
}

func TestNilAppIsDisabled(t *testing.T) {
	var app *App

	// Neither call may panic or block when the store is disabled.
	app.RecordWin("amira")
	assert.Equal(t, 0, app.Wins(context.Background(), "amira"))
}
