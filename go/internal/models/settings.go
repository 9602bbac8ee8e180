package models

// Bounds enforced on caller-supplied settings. Out-of-range values are
// clamped, never rejected.
const (
	MinRounds = 1
	MaxRounds = 10
	MinTime   = 30
	MaxTime   = 180

	DefaultRounds = 5
	DefaultTime   = 90
)

// Settings holds the leader-configurable room parameters plus the round
// counter. TimeSec is the per-round play time in seconds.
type Settings struct {
	Rounds       int `json:"rounds"`
	TimeSec      int `json:"time"`
	CurrentRound int `json:"currentRound"`
}

// DefaultSettings returns the settings a freshly created room starts with.
func DefaultSettings() Settings {
	return Settings{
		Rounds:  DefaultRounds,
		TimeSec: DefaultTime,
	}
}

// ClampSettings corrects out-of-range values to the nearest legal bound.
func ClampSettings(rounds, timeSec int) (int, int) {
	return clamp(rounds, MinRounds, MaxRounds), clamp(timeSec, MinTime, MaxTime)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
