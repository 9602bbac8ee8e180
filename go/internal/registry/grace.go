package registry

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultGracePeriod is how long an empty room survives awaiting a rejoin.
const DefaultGracePeriod = 30 * time.Second

// pending is one armed deletion timer. done releases the waiting goroutine
// when the deletion is cancelled or superseded, since a stopped timer never
// fires its channel.
type pending struct {
	timer clockwork.Timer
	done  chan struct{}
}

// GraceManager owns the deferred-deletion timers for empty rooms. At most one
// pending deletion exists per room code; scheduling again supersedes the old
// timer, and cancelling a code with no timer is a no-op. The expiry callback
// is responsible for re-checking that the room is still empty before removal.
type GraceManager struct {
	clock  clockwork.Clock
	delay  time.Duration
	expire func(roomCode string)

	mu     sync.Mutex
	timers map[string]*pending
}

// NewGraceManager creates a GraceManager firing expire after delay.
func NewGraceManager(clock clockwork.Clock, delay time.Duration, expire func(roomCode string)) *GraceManager {
	return &GraceManager{
		clock:  clock,
		delay:  delay,
		expire: expire,
		timers: make(map[string]*pending),
	}
}

// Schedule arms a deletion timer for a room, replacing any existing one.
func (g *GraceManager) Schedule(roomCode string) {
	p := &pending{
		timer: g.clock.NewTimer(g.delay),
		done:  make(chan struct{}),
	}

	g.mu.Lock()
	if prev, ok := g.timers[roomCode]; ok {
		disarm(prev)
		log.Debug().Str("room_code", roomCode).Msg("superseded pending deletion")
	}
	g.timers[roomCode] = p
	g.mu.Unlock()

	log.Info().
		Str("room_code", roomCode).
		Dur("delay", g.delay).
		Msg("room empty, deletion scheduled")

	go func() {
		select {
		case <-p.timer.Chan():
		case <-p.done:
			return
		}
		if !g.claim(roomCode, p) {
			// Cancelled or superseded while firing.
			return
		}
		g.expire(roomCode)
	}()
}

// Cancel disarms a room's pending deletion. Idempotent.
func (g *GraceManager) Cancel(roomCode string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.timers[roomCode]; ok {
		disarm(p)
		delete(g.timers, roomCode)
		log.Debug().Str("room_code", roomCode).Msg("pending deletion cancelled")
	}
}

// Pending reports whether a deletion is armed for a room.
func (g *GraceManager) Pending(roomCode string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.timers[roomCode]
	return ok
}

// claim removes the fired timer's bookkeeping and reports whether this timer
// was still the one registered for the room.
func (g *GraceManager) claim(roomCode string, p *pending) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	current, ok := g.timers[roomCode]
	if !ok || current != p {
		return false
	}
	delete(g.timers, roomCode)
	return true
}

// disarm stops a pending timer, drains its channel per the time.Timer.Stop()
// documentation, and releases the goroutine waiting on it.
func disarm(p *pending) {
	if !p.timer.Stop() {
		select {
		case <-p.timer.Chan():
		default:
		}
	}
	close(p.done)
}
