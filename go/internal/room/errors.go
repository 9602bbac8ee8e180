package room

import "errors"

var (
	// ErrGameInProgress rejects joins and round starts while a round is live.
	ErrGameInProgress = errors.New("game in progress")

	// ErrNotLeader rejects leader-only operations from members. Callers
	// swallow it silently so leadership is not leaked to probing clients.
	ErrNotLeader = errors.New("requester is not the room leader")

	// ErrNoActiveRound rejects a stop claim when no round is being played.
	ErrNoActiveRound = errors.New("no active round")

	// ErrStaleClaim rejects a stop claim whose letter does not match the
	// current round, guarding against a client racing a round transition.
	ErrStaleClaim = errors.New("stop claim is for a stale letter")

	// ErrAlreadyResolved rejects a stop claim that lost the race for the
	// current round. First acceptance wins, all later claims fail.
	ErrAlreadyResolved = errors.New("round already resolved")

	// ErrLettersExhausted signals that every alphabet letter has been drawn.
	ErrLettersExhausted = errors.New("no unused letters remain")

	// ErrCountdownNotRunning signals a countdown completion that raced a
	// state change and should be dropped.
	ErrCountdownNotRunning = errors.New("countdown is not running")
)
