package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarekmz/stopgame/go/internal/models"
)

func newTestSession() *Session {
	return NewSession("123456", "amira", "conn-leader")
}

// startRound drives a session into Playing through the normal transitions.
func startRound(t *testing.T, s *Session) string {
	t.Helper()
	require.NoError(t, s.BeginCountdown("conn-leader"))
	letter, _, err := s.FinishCountdown()
	require.NoError(t, err)
	return letter
}

func TestNewSession(t *testing.T) {
	s := newTestSession()

	assert.Equal(t, StateWaiting, s.State)
	assert.Equal(t, models.DefaultSettings(), s.Settings)
	assert.Empty(t, s.CurrentLetter)

	players := s.Players()
	require.Len(t, players, 1)
	assert.Equal(t, "amira", players[0].Name)
	assert.Equal(t, models.RoleLeader, players[0].Role)
	assert.Equal(t, "conn-leader", s.Leader().ConnectionID)
}

func TestJoin(t *testing.T) {
	t.Run("appends members in join order", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.Join("basim", "conn-b"))
		require.NoError(t, s.Join("celine", "conn-c"))

		players := s.Players()
		require.Len(t, players, 3)
		assert.Equal(t, "basim", players[1].Name)
		assert.Equal(t, models.RoleMember, players[1].Role)
		assert.Equal(t, "celine", players[2].Name)
	})

	t.Run("rejected while a round is live", func(t *testing.T) {
		s := newTestSession()
		startRound(t, s)
		assert.ErrorIs(t, s.Join("basim", "conn-b"), ErrGameInProgress)
		assert.Len(t, s.Players(), 1)
	})

	t.Run("allowed during countdown", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.BeginCountdown("conn-leader"))
		assert.NoError(t, s.Join("basim", "conn-b"))
	})

	t.Run("idempotent for a known connection", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.Join("basim", "conn-b"))
		require.NoError(t, s.Join("basim the second", "conn-b"))

		players := s.Players()
		require.Len(t, players, 2)
		assert.Equal(t, "basim the second", players[1].Name)
	})

	t.Run("takes leadership in a leaderless room", func(t *testing.T) {
		s := newTestSession()
		s.RemoveByConnection("conn-leader")
		require.True(t, s.IsEmpty())

		require.NoError(t, s.Join("noor", "conn-2"))
		require.NotNil(t, s.Leader())
		assert.Equal(t, "conn-2", s.Leader().ConnectionID)
		assert.Equal(t, "noor", s.LeaderName)
		assert.NoError(t, s.BeginCountdown("conn-2"))
	})
}

func TestIdentify(t *testing.T) {
	t.Run("rebinds connection by name keeping role and score", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.Join("basim", "conn-b"))
		startRound(t, s)
		s.ResolveStop("conn-b")

		p := s.Identify("basim", "conn-b2")
		assert.Equal(t, "conn-b2", p.ConnectionID)
		assert.Equal(t, models.RoleMember, p.Role)
		assert.Equal(t, 1, p.Score)
		assert.Len(t, s.Players(), 2)
	})

	t.Run("creates a member for an unknown name", func(t *testing.T) {
		s := newTestSession()
		p := s.Identify("celine", "conn-c")
		assert.Equal(t, models.RoleMember, p.Role)
		assert.Len(t, s.Players(), 2)
	})

	t.Run("restores leadership for the recorded leader name", func(t *testing.T) {
		s := newTestSession()
		s.RemoveByConnection("conn-leader")
		require.True(t, s.IsEmpty())

		p := s.Identify("amira", "conn-leader2")
		assert.Equal(t, models.RoleLeader, p.Role)
		require.NotNil(t, s.Leader())
		assert.Equal(t, "conn-leader2", s.Leader().ConnectionID)
	})

	t.Run("takes leadership in a leaderless room", func(t *testing.T) {
		s := newTestSession()
		s.RemoveByConnection("conn-leader")
		require.True(t, s.IsEmpty())

		// Any name may repopulate the room, not only the recorded leader's.
		p := s.Identify("noor", "conn-2")
		assert.Equal(t, models.RoleLeader, p.Role)
		assert.Equal(t, "noor", s.LeaderName)
		assert.NoError(t, s.BeginCountdown("conn-2"))
	})

	t.Run("never creates a second leader", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.Join("basim", "conn-b"))
		s.RemoveByConnection("conn-leader")

		// basim was promoted; the returning amira is a member now.
		p := s.Identify("amira", "conn-leader2")
		assert.Equal(t, models.RoleMember, p.Role)
		assert.Equal(t, "conn-b", s.Leader().ConnectionID)
	})
}

func TestUpdateSettings(t *testing.T) {
	t.Run("clamps out-of-range values", func(t *testing.T) {
		s := newTestSession()
		require.True(t, s.UpdateSettings(999, 0, "conn-leader"))
		assert.Equal(t, 10, s.Settings.Rounds)
		assert.Equal(t, 30, s.Settings.TimeSec)
	})

	t.Run("silent no-op for members", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.Join("basim", "conn-b"))
		before := s.Settings
		assert.False(t, s.UpdateSettings(3, 60, "conn-b"))
		assert.Equal(t, before, s.Settings)
	})
}

func TestBeginCountdown(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.Join("basim", "conn-b"))

	assert.ErrorIs(t, s.BeginCountdown("conn-b"), ErrNotLeader)
	require.NoError(t, s.BeginCountdown("conn-leader"))
	assert.Equal(t, StateCounting, s.State)

	// Restart during an existing countdown is allowed.
	assert.NoError(t, s.BeginCountdown("conn-leader"))

	_, _, err := s.FinishCountdown()
	require.NoError(t, err)
	assert.ErrorIs(t, s.BeginCountdown("conn-leader"), ErrGameInProgress)
}

func TestFinishCountdown(t *testing.T) {
	t.Run("draws a letter and starts the round", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.BeginCountdown("conn-leader"))
		letter, round, err := s.FinishCountdown()
		require.NoError(t, err)

		assert.NotEmpty(t, letter)
		assert.Equal(t, 1, round)
		assert.Equal(t, StatePlaying, s.State)
		assert.Equal(t, letter, s.CurrentLetter)
		assert.Equal(t, []string{letter}, s.UsedLetters())
	})

	t.Run("outside a countdown", func(t *testing.T) {
		s := newTestSession()
		_, _, err := s.FinishCountdown()
		assert.ErrorIs(t, err, ErrCountdownNotRunning)
	})

	t.Run("never repeats a letter and exhausts stickily", func(t *testing.T) {
		s := newTestSession()
		seen := make(map[string]bool)
		for i := 0; i < len(Alphabet); i++ {
			require.NoError(t, s.BeginCountdown("conn-leader"))
			letter, _, err := s.FinishCountdown()
			require.NoError(t, err)
			assert.False(t, seen[letter], "letter %q drawn twice", letter)
			seen[letter] = true
			s.ResolveStop("conn-leader")
		}
		assert.Equal(t, len(Alphabet), s.Settings.CurrentRound)

		require.NoError(t, s.BeginCountdown("conn-leader"))
		_, _, err := s.FinishCountdown()
		assert.ErrorIs(t, err, ErrLettersExhausted)
		assert.Equal(t, StateWaiting, s.State)
		assert.Equal(t, len(Alphabet), s.Settings.CurrentRound, "round must not advance on exhaustion")

		// Exhaustion is sticky; the session stays usable but draws nothing.
		require.NoError(t, s.BeginCountdown("conn-leader"))
		_, _, err = s.FinishCountdown()
		assert.ErrorIs(t, err, ErrLettersExhausted)
	})
}

func TestStopClaim(t *testing.T) {
	t.Run("no active round", func(t *testing.T) {
		s := newTestSession()
		assert.ErrorIs(t, s.CheckStopClaim("ب"), ErrNoActiveRound)
	})

	t.Run("stale letter", func(t *testing.T) {
		s := newTestSession()
		letter := startRound(t, s)
		stale := "ب"
		if letter == stale {
			stale = "س"
		}
		assert.ErrorIs(t, s.CheckStopClaim(stale), ErrStaleClaim)
	})

	t.Run("first acceptance wins, later claims rejected", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.Join("basim", "conn-b"))
		letter := startRound(t, s)

		require.NoError(t, s.CheckStopClaim(letter))
		winner := s.ResolveStop("conn-b")
		require.NotNil(t, winner)
		assert.Equal(t, "basim", winner.Name)
		assert.Equal(t, 1, winner.Score)
		assert.Equal(t, StateWaiting, s.State)
		assert.Empty(t, s.CurrentLetter)

		assert.ErrorIs(t, s.CheckStopClaim(letter), ErrAlreadyResolved)
	})

	t.Run("guard resets at next round start", func(t *testing.T) {
		s := newTestSession()
		letter := startRound(t, s)
		require.NoError(t, s.CheckStopClaim(letter))
		s.ResolveStop("conn-leader")

		next := startRound(t, s)
		assert.NoError(t, s.CheckStopClaim(next))
	})
}

func TestKick(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.Join("basim", "conn-b"))
	require.NoError(t, s.Join("celine", "conn-c"))

	t.Run("member cannot kick", func(t *testing.T) {
		_, err := s.Kick("conn-b", "conn-c")
		assert.ErrorIs(t, err, ErrNotLeader)
		assert.Len(t, s.Players(), 3)
	})

	t.Run("leader cannot be kicked", func(t *testing.T) {
		target, err := s.Kick("conn-leader", "conn-leader")
		assert.NoError(t, err)
		assert.Nil(t, target)
		assert.Len(t, s.Players(), 3)
	})

	t.Run("leader kicks a member", func(t *testing.T) {
		target, err := s.Kick("conn-leader", "conn-c")
		require.NoError(t, err)
		require.NotNil(t, target)
		assert.Equal(t, "celine", target.Name)
		assert.Len(t, s.Players(), 2)
		assert.False(t, s.HasConnection("conn-c"))
	})
}

func TestRemoveByConnection(t *testing.T) {
	t.Run("promotes the earliest-joined survivor", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.Join("basim", "conn-b"))
		require.NoError(t, s.Join("celine", "conn-c"))

		removed, promoted := s.RemoveByConnection("conn-leader")
		require.NotNil(t, removed)
		assert.Equal(t, "amira", removed.Name)
		require.NotNil(t, promoted)
		assert.Equal(t, "basim", promoted.Name)
		assert.Equal(t, models.RoleLeader, promoted.Role)
		assert.Equal(t, "basim", s.LeaderName)
	})

	t.Run("member removal keeps leadership", func(t *testing.T) {
		s := newTestSession()
		require.NoError(t, s.Join("basim", "conn-b"))

		removed, promoted := s.RemoveByConnection("conn-b")
		require.NotNil(t, removed)
		assert.Nil(t, promoted)
		assert.Equal(t, "conn-leader", s.Leader().ConnectionID)
	})

	t.Run("unknown connection is a no-op", func(t *testing.T) {
		s := newTestSession()
		removed, promoted := s.RemoveByConnection("conn-unknown")
		assert.Nil(t, removed)
		assert.Nil(t, promoted)
		assert.Len(t, s.Players(), 1)
	})
}

// Exactly one leader must survive any sequence of membership changes on a
// non-empty room.
func TestSingleLeaderInvariant(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.Join("basim", "conn-b"))
	require.NoError(t, s.Join("celine", "conn-c"))
	s.Identify("dalia", "conn-d")

	countLeaders := func() int {
		n := 0
		for _, p := range s.Players() {
			if p.Role == models.RoleLeader {
				n++
			}
		}
		return n
	}

	for _, conn := range []string{"conn-leader", "conn-c", "conn-b"} {
		s.RemoveByConnection(conn)
		if !s.IsEmpty() {
			assert.Equal(t, 1, countLeaders())
		}
	}
}

func TestInfo(t *testing.T) {
	s := newTestSession()
	require.NoError(t, s.Join("basim", "conn-b"))

	info := s.Info()
	assert.Equal(t, "conn-leader", info.LeaderID)
	assert.Len(t, info.Players, 2)
	assert.Equal(t, s.Settings, info.Settings)
}
