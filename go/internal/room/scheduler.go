package room

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// countdownStart is the first tick of the pre-round countdown.
const countdownStart = 3

// countdown tracks one running countdown so a finished run can tell whether
// it was already superseded by a newer one for the same room.
type countdown struct {
	cancel context.CancelFunc
}

// Scheduler owns one cancellable countdown per room code. Ticks and the
// final completion are delivered through callbacks; the coordinator re-enters
// the room's serialized context from there. Cancellation is idempotent and
// safe against a countdown that already finished.
type Scheduler struct {
	clock      clockwork.Clock
	onTick     func(roomCode string, tick int)
	onComplete func(roomCode string)

	mu     sync.Mutex
	active map[string]*countdown
}

// NewScheduler creates a Scheduler. Callbacks must be non-nil.
func NewScheduler(clock clockwork.Clock, onTick func(string, int), onComplete func(string)) *Scheduler {
	return &Scheduler{
		clock:      clock,
		onTick:     onTick,
		onComplete: onComplete,
		active:     make(map[string]*countdown),
	}
}

// Start begins a 3-2-1-0 countdown for a room, one tick per second.
// An in-flight countdown for the same room is cancelled first.
func (s *Scheduler) Start(ctx context.Context, roomCode string) {
	ctx, cancel := context.WithCancel(ctx)
	cd := &countdown{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.active[roomCode]; ok {
		prev.cancel()
		log.Debug().Str("room_code", roomCode).Msg("replaced running countdown")
	}
	s.active[roomCode] = cd
	s.mu.Unlock()

	go s.run(ctx, roomCode, cd)
}

// Cancel stops a room's countdown. Cancelling a room with no countdown is a
// no-op.
func (s *Scheduler) Cancel(roomCode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cd, ok := s.active[roomCode]; ok {
		cd.cancel()
		delete(s.active, roomCode)
		log.Debug().Str("room_code", roomCode).Msg("cancelled countdown")
	}
}

func (s *Scheduler) run(ctx context.Context, roomCode string, cd *countdown) {
	defer s.clear(roomCode, cd)

	for tick := countdownStart; ; tick-- {
		if ctx.Err() != nil {
			return
		}
		s.onTick(roomCode, tick)
		if tick == 0 {
			s.onComplete(roomCode)
			return
		}

		timer := s.clock.NewTimer(time.Second)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			stopAndDrainTimer(timer)
			return
		}
	}
}

// clear removes the countdown's bookkeeping, unless a newer countdown for the
// same room already replaced it.
func (s *Scheduler) clear(roomCode string, cd *countdown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.active[roomCode]; ok && current == cd {
		delete(s.active, roomCode)
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel so the
// goroutine behind it can be collected. This follows the pattern recommended
// in the time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
