package coordinator

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/tarekmz/stopgame/go/internal/models"
	"github.com/tarekmz/stopgame/go/internal/registry"
	"github.com/tarekmz/stopgame/go/internal/room"
)

// Broadcaster delivers outbound events to the connection layer. Associate
// binds a connection to a room's broadcast group; implementations must accept
// rebinding an already-associated connection.
type Broadcaster interface {
	Associate(connectionID, roomCode string)
	Dissociate(connectionID string)
	BroadcastRoom(roomCode string, ev *room.Event)
	SendTo(connectionID string, ev *room.Event)
}

// Judge arbitrates a stop claim's answers against the round letter.
type Judge interface {
	Judge(ctx context.Context, letter string, answers map[string]string) (map[string]models.Verdict, error)
}

// WinStore is the best-effort durable win-count boundary.
type WinStore interface {
	RecordWin(playerName string)
	Wins(ctx context.Context, playerName string) int
}

// Mirror republishes room-wide events for observation. May be a disabled
// (nil-backed) implementation.
type Mirror interface {
	Publish(ev *room.Event)
}

// Config tunes the coordinator's timers and rules.
type Config struct {
	// Clock drives countdowns and grace periods; fake in tests.
	Clock clockwork.Clock
	// GracePeriod is how long an empty room survives before deletion.
	GracePeriod time.Duration
	// RequireAllCorrect selects the strict acceptance rule: every judged
	// category must be correct for a stop claim to win. When false, a single
	// correct category suffices.
	RequireAllCorrect bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Clock:             clockwork.NewRealClock(),
		GracePeriod:       registry.DefaultGracePeriod,
		RequireAllCorrect: true,
	}
}

// Coordinator routes inbound connection events to the owning session under
// the registry's single-writer-per-room discipline, and drives the letter
// allocator, round scheduler, grace-period manager and judge adapter on the
// session's behalf. It implements the gateway's EventHandler.
type Coordinator struct {
	ctx    context.Context
	reg    *registry.Registry
	grace  *registry.GraceManager
	sched  *room.Scheduler
	judge  Judge
	stats  WinStore
	bc     Broadcaster
	mirror Mirror

	requireAllCorrect bool
}

// New wires a Coordinator. ctx bounds the lifetime of all timers it starts.
func New(ctx context.Context, cfg Config, judge Judge, stats WinStore, bc Broadcaster, mirror Mirror) *Coordinator {
	c := &Coordinator{
		ctx:               ctx,
		reg:               registry.New(),
		judge:             judge,
		stats:             stats,
		bc:                bc,
		mirror:            mirror,
		requireAllCorrect: cfg.RequireAllCorrect,
	}
	c.sched = room.NewScheduler(cfg.Clock, c.countdownTick, c.countdownComplete)
	c.grace = registry.NewGraceManager(cfg.Clock, cfg.GracePeriod, c.graceExpired)
	return c
}

// Registry exposes the room registry for health/stats reporting.
func (c *Coordinator) Registry() *registry.Registry {
	return c.reg
}

// HandleCreate creates a room with the requester as sole leader.
func (c *Coordinator) HandleCreate(ctx context.Context, connectionID, playerName string) {
	if playerName == "" {
		c.sendError(connectionID, "player name is required")
		return
	}
	code := c.reg.Create(playerName, connectionID)
	c.bc.Associate(connectionID, code)
	c.bc.SendTo(connectionID, room.NewEvent(code, room.EventRoomCreated, room.RoomCreatedPayload{RoomCode: code}))
	c.withSession(connectionID, code, func(s *room.Session) error {
		c.broadcastInfo(s)
		return nil
	})
}

// HandleJoin adds a member to an existing room.
func (c *Coordinator) HandleJoin(ctx context.Context, connectionID, roomCode, playerName string) {
	if playerName == "" {
		c.sendError(connectionID, "player name is required")
		return
	}
	if !validRoomCode(roomCode) {
		c.sendError(connectionID, "room code is malformed")
		return
	}
	c.withSession(connectionID, roomCode, func(s *room.Session) error {
		if err := s.Join(playerName, connectionID); err != nil {
			c.sendError(connectionID, "game already in progress")
			return nil
		}
		c.grace.Cancel(roomCode)
		c.bc.Associate(connectionID, roomCode)
		c.bc.SendTo(connectionID, room.NewEvent(roomCode, room.EventRoomJoined, room.RoomJoinedPayload{RoomCode: roomCode}))
		c.broadcastInfo(s)
		return nil
	})
}

// HandleIdentify upserts a player by display name, covering reconnects after
// a page reload. The durable win count is read before taking the room lock so
// a slow store never stalls the room.
func (c *Coordinator) HandleIdentify(ctx context.Context, connectionID, roomCode, playerName string) {
	if playerName == "" {
		c.sendError(connectionID, "player name is required")
		return
	}
	if !validRoomCode(roomCode) {
		c.sendError(connectionID, "room code is malformed")
		return
	}
	var wins int
	if c.stats != nil {
		wins = c.stats.Wins(ctx, playerName)
	}
	c.withSession(connectionID, roomCode, func(s *room.Session) error {
		p := s.Identify(playerName, connectionID)
		if p.Wins == 0 {
			p.Wins = wins
		}
		c.grace.Cancel(roomCode)
		c.bc.Associate(connectionID, roomCode)
		c.broadcastInfo(s)
		return nil
	})
}

// HandleSnapshot resends the room state to one connection, including the
// running round if there is one. Used by clients loading the game view late.
func (c *Coordinator) HandleSnapshot(ctx context.Context, connectionID, roomCode string) {
	c.withSession(connectionID, roomCode, func(s *room.Session) error {
		c.bc.SendTo(connectionID, room.NewEvent(s.Code, room.EventRoomInfo, s.Info()))
		if s.State == room.StatePlaying {
			c.bc.SendTo(connectionID, room.NewEvent(s.Code, room.EventRoundStarted, room.RoundStartedPayload{
				Letter:  s.CurrentLetter,
				TimeSec: s.Settings.TimeSec,
				Round:   s.Settings.CurrentRound,
			}))
		}
		return nil
	})
}

// HandleUpdateSettings clamps and applies settings when the requester is the
// leader; anything else changes nothing and stays silent.
func (c *Coordinator) HandleUpdateSettings(ctx context.Context, connectionID, roomCode string, rounds, timeSec int) {
	c.withSession(connectionID, roomCode, func(s *room.Session) error {
		if s.UpdateSettings(rounds, timeSec, connectionID) {
			c.broadcastInfo(s)
		}
		return nil
	})
}

// HandleStartRound begins the pre-round countdown. Non-leader requests and
// requests during a live round are dropped.
func (c *Coordinator) HandleStartRound(ctx context.Context, connectionID, roomCode string) {
	started := false
	c.withSession(connectionID, roomCode, func(s *room.Session) error {
		if err := s.BeginCountdown(connectionID); err != nil {
			log.Debug().
				Err(err).
				Str("room_code", roomCode).
				Msg("start round rejected")
			return nil
		}
		started = true
		return nil
	})
	if started {
		c.sched.Start(c.ctx, roomCode)
	}
}

// HandleRequestStop processes a stop claim. The room lock is held across the
// judge round trip, queueing the claiming room's own events behind the
// verdict while leaving every other room untouched.
func (c *Coordinator) HandleRequestStop(ctx context.Context, connectionID, roomCode, playerName, claimedLetter string, answers map[string]string) {
	if claimedLetter == "" || len(answers) == 0 {
		c.sendError(connectionID, "stop request is missing letter or answers")
		return
	}
	c.withSession(connectionID, roomCode, func(s *room.Session) error {
		if err := s.CheckStopClaim(claimedLetter); err != nil {
			c.rejectStop(connectionID, roomCode, err)
			return nil
		}

		verdicts, err := c.judge.Judge(ctx, claimedLetter, answers)
		if err != nil {
			log.Warn().
				Err(err).
				Str("room_code", roomCode).
				Str("player", playerName).
				Msg("judge unavailable, stop claim may be retried")
			c.bc.SendTo(connectionID, room.NewEvent(roomCode, room.EventStopRejected, room.StopRejectedPayload{
				Reason: room.StopReasonJudgeUnavailable,
			}))
			return nil
		}

		if !c.accepted(verdicts, answers) {
			c.bc.SendTo(connectionID, room.NewEvent(roomCode, room.EventStopRejected, room.StopRejectedPayload{
				Reason:   room.StopReasonAnswersRejected,
				Verdicts: verdicts,
			}))
			return nil
		}

		winner := s.ResolveStop(connectionID)
		winnerName := playerName
		if winner != nil {
			winnerName = winner.Name
		}
		if c.stats != nil {
			c.stats.RecordWin(winnerName)
		}

		log.Info().
			Str("room_code", roomCode).
			Str("winner", winnerName).
			Int("round", s.Settings.CurrentRound).
			Msg("round won")

		c.broadcastRoom(roomCode, room.NewEvent(roomCode, room.EventRoundWon, room.RoundWonPayload{
			Winner:   winnerName,
			Answers:  answers,
			Verdicts: verdicts,
		}))
		c.broadcastInfo(s)
		return nil
	})
}

// HandleKick removes a member at the leader's request. The target is told
// apart from the room-wide update.
func (c *Coordinator) HandleKick(ctx context.Context, connectionID, roomCode, targetConnectionID string) {
	var kicked *models.Player
	c.withSession(connectionID, roomCode, func(s *room.Session) error {
		target, err := s.Kick(connectionID, targetConnectionID)
		if err != nil || target == nil {
			return nil
		}
		kicked = target
		c.bc.SendTo(target.ConnectionID, room.NewEvent(roomCode, room.EventKicked, room.KickedPayload{
			Message: "you were removed from the room",
		}))
		c.broadcastInfo(s)
		return nil
	})
	if kicked != nil {
		c.bc.Dissociate(kicked.ConnectionID)
	}
}

// HandleDisconnect removes the player bound to a dropped connection, hands
// leadership to the earliest-joined survivor, and schedules deletion of a
// room that became empty.
func (c *Coordinator) HandleDisconnect(connectionID string) {
	c.bc.Dissociate(connectionID)

	roomCode, ok := c.reg.FindByConnection(connectionID)
	if !ok {
		return
	}
	err := c.reg.WithSession(roomCode, func(s *room.Session) error {
		removed, promoted := s.RemoveByConnection(connectionID)
		if removed == nil {
			return nil
		}
		if promoted != nil {
			log.Info().
				Str("room_code", roomCode).
				Str("leader", promoted.Name).
				Msg("leadership handed off")
		}
		if s.IsEmpty() {
			c.sched.Cancel(roomCode)
			c.grace.Schedule(roomCode)
			return nil
		}
		c.broadcastInfo(s)
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("room_code", roomCode).Msg("disconnect on removed room")
	}
}

// countdownTick broadcasts one tick of a room's countdown.
func (c *Coordinator) countdownTick(roomCode string, tick int) {
	c.broadcastRoom(roomCode, room.NewEvent(roomCode, room.EventCountdownTick, room.CountdownTickPayload{Tick: tick}))
}

// countdownComplete draws the round letter at tick zero and announces the
// round, or reports exhaustion and returns the room to Waiting.
func (c *Coordinator) countdownComplete(roomCode string) {
	err := c.reg.WithSession(roomCode, func(s *room.Session) error {
		letter, round, err := s.FinishCountdown()
		switch err {
		case nil:
			c.broadcastRoom(roomCode, room.NewEvent(roomCode, room.EventRoundStarted, room.RoundStartedPayload{
				Letter:  letter,
				TimeSec: s.Settings.TimeSec,
				Round:   round,
			}))
		case room.ErrLettersExhausted:
			log.Info().Str("room_code", roomCode).Msg("alphabet exhausted")
			c.broadcastRoom(roomCode, room.NewEvent(roomCode, room.EventLettersExhausted, room.LettersExhaustedPayload{
				UsedLetters: s.UsedLetters(),
			}))
		case room.ErrCountdownNotRunning:
			// Countdown raced a state change; drop it.
		}
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("room_code", roomCode).Msg("countdown finished on removed room")
	}
}

// graceExpired re-checks that the room is still empty before removal, closing
// the race against a join arriving exactly at expiry. Removal happens under
// the room lock so a blocked join observes the room as gone.
func (c *Coordinator) graceExpired(roomCode string) {
	c.reg.WithSession(roomCode, func(s *room.Session) error {
		if !s.IsEmpty() {
			log.Debug().Str("room_code", roomCode).Msg("room repopulated before expiry, keeping")
			return nil
		}
		c.reg.Remove(roomCode)
		return nil
	})
}

// rejectStop maps a stop-claim guard failure to the caller-only rejection.
func (c *Coordinator) rejectStop(connectionID, roomCode string, err error) {
	reason := room.StopReasonNoActiveRound
	switch err {
	case room.ErrStaleClaim:
		reason = room.StopReasonStaleClaim
	case room.ErrAlreadyResolved:
		reason = room.StopReasonAlreadyResolved
	}
	c.bc.SendTo(connectionID, room.NewEvent(roomCode, room.EventStopRejected, room.StopRejectedPayload{Reason: reason}))
}

// accepted applies the configured acceptance rule to a verdict set. The
// strict rule demands a Correct ruling for every submitted category; a
// verdict set missing a category (the judge skipped or garbled a line)
// cannot win, only answers ruled correct in full can.
func (c *Coordinator) accepted(verdicts map[string]models.Verdict, answers map[string]string) bool {
	if c.requireAllCorrect {
		return len(verdicts) == len(answers) && models.AllCorrect(verdicts)
	}
	return models.AnyCorrect(verdicts)
}

// withSession runs fn under the room lock, surfacing an unknown room code to
// the requesting connection.
func (c *Coordinator) withSession(connectionID, roomCode string, fn func(*room.Session) error) {
	if err := c.reg.WithSession(roomCode, fn); err != nil {
		c.sendError(connectionID, "room code is incorrect or the room does not exist")
	}
}

func (c *Coordinator) sendError(connectionID, message string) {
	c.bc.SendTo(connectionID, room.NewEvent("", room.EventRoomError, room.RoomErrorPayload{Message: message}))
}

// broadcastInfo sends the room-wide snapshot. Must be called under the room
// lock.
func (c *Coordinator) broadcastInfo(s *room.Session) {
	c.broadcastRoom(s.Code, room.NewEvent(s.Code, room.EventRoomInfo, s.Info()))
}

func (c *Coordinator) broadcastRoom(roomCode string, ev *room.Event) {
	c.bc.BroadcastRoom(roomCode, ev)
	if c.mirror != nil {
		c.mirror.Publish(ev)
	}
}

func validRoomCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
