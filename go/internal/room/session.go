package room

import (
	"github.com/tarekmz/stopgame/go/internal/models"
)

// State is a session's position in the round lifecycle.
type State string

const (
	StateWaiting  State = "waiting"
	StateCounting State = "counting"
	StatePlaying  State = "playing"
)

// Session is the authoritative state of one room. It holds no locks and
// starts no goroutines; the registry serializes all access per room and the
// coordinator drives timers. Methods mutate state and report what happened,
// nothing more.
type Session struct {
	Code       string
	LeaderName string
	Settings   models.Settings
	State      State

	// CurrentLetter is set only while a round is active.
	CurrentLetter string

	players      []*models.Player
	usedLetters  map[string]struct{}
	stopResolved bool

	// intn is the random source for letter draws, swappable in tests.
	intn func(int) int
}

// NewSession creates a Waiting session with the requester as sole leader.
func NewSession(code, leaderName, connectionID string) *Session {
	return &Session{
		Code:       code,
		LeaderName: leaderName,
		Settings:   models.DefaultSettings(),
		State:      StateWaiting,
		players: []*models.Player{{
			ConnectionID: connectionID,
			Name:         leaderName,
			Role:         models.RoleLeader,
		}},
		usedLetters: make(map[string]struct{}),
		intn:        defaultIntn,
	}
}

// Join appends a member. Joining mid-round is rejected; a join from a
// connection that is already a member refreshes its name instead of
// duplicating it. Entering a room that has no leader (it emptied while
// awaiting deletion) takes leadership, keeping the single-leader invariant.
func (s *Session) Join(name, connectionID string) error {
	if s.State == StatePlaying {
		return ErrGameInProgress
	}
	if p := s.playerByConn(connectionID); p != nil {
		p.Name = name
		return nil
	}
	s.players = append(s.players, &models.Player{
		ConnectionID: connectionID,
		Name:         name,
		Role:         s.claimRole(name),
	})
	return nil
}

// Identify upserts a player by display name. A matching name rebinds its
// connection (reconnect after a page reload) keeping role, wins and score.
// A new name creates a player, taking leadership when the room has none.
func (s *Session) Identify(name, connectionID string) *models.Player {
	for _, p := range s.players {
		if p.Name == name {
			p.ConnectionID = connectionID
			return p
		}
	}
	p := &models.Player{
		ConnectionID: connectionID,
		Name:         name,
		Role:         s.claimRole(name),
	}
	s.players = append(s.players, p)
	return p
}

// claimRole decides the role of a player entering the room. A room with a
// leader hands out memberships; a leaderless room gives the entrant
// leadership and records their name, so no non-empty room ever lacks one.
func (s *Session) claimRole(name string) models.Role {
	if s.Leader() != nil {
		return models.RoleMember
	}
	s.LeaderName = name
	return models.RoleLeader
}

// UpdateSettings clamps and applies leader-supplied settings. Non-leader
// requests change nothing and report false.
func (s *Session) UpdateSettings(rounds, timeSec int, requesterConnectionID string) bool {
	if !s.isLeaderConn(requesterConnectionID) {
		return false
	}
	s.Settings.Rounds, s.Settings.TimeSec = models.ClampSettings(rounds, timeSec)
	return true
}

// BeginCountdown moves the session into Counting. Only the leader may start
// a round, and not while one is being played. Restarting during an existing
// countdown is allowed; the caller cancels the previous timer.
func (s *Session) BeginCountdown(requesterConnectionID string) error {
	if !s.isLeaderConn(requesterConnectionID) {
		return ErrNotLeader
	}
	if s.State == StatePlaying {
		return ErrGameInProgress
	}
	s.State = StateCounting
	return nil
}

// FinishCountdown is invoked at tick zero. It draws an unused letter and
// starts the round, or falls back to Waiting when the alphabet is spent.
// The round counter is not advanced on exhaustion.
func (s *Session) FinishCountdown() (letter string, round int, err error) {
	if s.State != StateCounting {
		return "", 0, ErrCountdownNotRunning
	}
	letter, err = pickLetter(s.usedLetters, s.intn)
	if err != nil {
		s.State = StateWaiting
		return "", 0, err
	}
	s.usedLetters[letter] = struct{}{}
	s.CurrentLetter = letter
	s.Settings.CurrentRound++
	s.State = StatePlaying
	s.stopResolved = false
	return letter, s.Settings.CurrentRound, nil
}

// CheckStopClaim validates a stop claim against the current round before any
// judge round trip. The stopResolved guard is checked first so a claim that
// lost the race reports ErrAlreadyResolved even after the round closed.
func (s *Session) CheckStopClaim(claimedLetter string) error {
	if s.stopResolved {
		return ErrAlreadyResolved
	}
	if s.State != StatePlaying {
		return ErrNoActiveRound
	}
	if claimedLetter != s.CurrentLetter {
		return ErrStaleClaim
	}
	return nil
}

// ResolveStop accepts a stop claim: the round closes, the winner scores, and
// later claims for this round are rejected. Returns the winning player, which
// may be nil if the claimant disconnected while the judge was deliberating.
func (s *Session) ResolveStop(connectionID string) *models.Player {
	s.stopResolved = true
	s.State = StateWaiting
	s.CurrentLetter = ""
	winner := s.playerByConn(connectionID)
	if winner != nil {
		winner.Score++
	}
	return winner
}

// Kick removes a member at the leader's request. The leader cannot be
// kicked, and members cannot kick anyone.
func (s *Session) Kick(requesterConnectionID, targetConnectionID string) (*models.Player, error) {
	if !s.isLeaderConn(requesterConnectionID) {
		return nil, ErrNotLeader
	}
	target := s.playerByConn(targetConnectionID)
	if target == nil || target.IsLeader() {
		return nil, nil
	}
	s.removePlayer(targetConnectionID)
	return target, nil
}

// RemoveByConnection drops the player bound to a connection. When the leader
// leaves and players remain, the earliest-joined survivor is promoted.
func (s *Session) RemoveByConnection(connectionID string) (removed, promoted *models.Player) {
	removed = s.playerByConn(connectionID)
	if removed == nil {
		return nil, nil
	}
	s.removePlayer(connectionID)
	if removed.IsLeader() && len(s.players) > 0 {
		promoted = s.players[0]
		promoted.Role = models.RoleLeader
		s.LeaderName = promoted.Name
	}
	return removed, promoted
}

// HasConnection reports whether a connection is bound to a player here.
func (s *Session) HasConnection(connectionID string) bool {
	return s.playerByConn(connectionID) != nil
}

// IsEmpty reports whether no players remain.
func (s *Session) IsEmpty() bool {
	return len(s.players) == 0
}

// Leader returns the current leader, or nil for an empty room.
func (s *Session) Leader() *models.Player {
	for _, p := range s.players {
		if p.IsLeader() {
			return p
		}
	}
	return nil
}

// Players returns a copy of the player list in join order.
func (s *Session) Players() []models.Player {
	out := make([]models.Player, len(s.players))
	for i, p := range s.players {
		out[i] = *p
	}
	return out
}

// UsedLetters returns the letters drawn so far, in alphabet order.
func (s *Session) UsedLetters() []string {
	out := make([]string, 0, len(s.usedLetters))
	for _, l := range Alphabet {
		if _, ok := s.usedLetters[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Info builds the room-wide snapshot payload.
func (s *Session) Info() RoomInfoPayload {
	info := RoomInfoPayload{
		Players:  s.Players(),
		Settings: s.Settings,
	}
	if leader := s.Leader(); leader != nil {
		info.LeaderID = leader.ConnectionID
	}
	return info
}

func (s *Session) playerByConn(connectionID string) *models.Player {
	for _, p := range s.players {
		if p.ConnectionID == connectionID {
			return p
		}
	}
	return nil
}

func (s *Session) isLeaderConn(connectionID string) bool {
	p := s.playerByConn(connectionID)
	return p != nil && p.IsLeader()
}

func (s *Session) removePlayer(connectionID string) {
	for i, p := range s.players {
		if p.ConnectionID == connectionID {
			s.players = append(s.players[:i], s.players[i+1:]...)
			return
		}
	}
}
