package room

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tarekmz/stopgame/go/internal/models"
)

// EventType names an outbound room event as it appears on the wire.
type EventType string

const (
	EventRoomCreated      EventType = "room_created"
	EventRoomJoined       EventType = "room_joined"
	EventRoomError        EventType = "room_error"
	EventRoomInfo         EventType = "room_info"
	EventCountdownTick    EventType = "countdown_tick"
	EventRoundStarted     EventType = "round_started"
	EventStopRejected     EventType = "stop_rejected"
	EventRoundWon         EventType = "round_won"
	EventLettersExhausted EventType = "letters_exhausted"
	EventKicked           EventType = "kicked"
)

// Event is the envelope every outbound room event is delivered in.
type Event struct {
	ID        string          `json:"id"`
	RoomCode  string          `json:"room_code"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps a payload in an Event envelope. Payloads are plain structs
// from this package, so marshaling does not fail in practice; a nil Data is
// sent if it somehow does.
func NewEvent(roomCode string, eventType EventType, payload any) *Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = nil
	}
	return &Event{
		ID:        uuid.New().String(),
		RoomCode:  roomCode,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// RoomCreatedPayload acknowledges room creation to the requesting connection.
type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
}

// RoomJoinedPayload acknowledges a successful join to the joining connection.
type RoomJoinedPayload struct {
	RoomCode string `json:"roomCode"`
}

// RoomErrorPayload carries a caller-facing failure message.
type RoomErrorPayload struct {
	Message string `json:"message"`
}

// RoomInfoPayload is the room-wide snapshot broadcast after membership or
// settings changes.
type RoomInfoPayload struct {
	Players  []models.Player `json:"players"`
	LeaderID string          `json:"leaderId"`
	Settings models.Settings `json:"settings"`
}

// CountdownTickPayload is one tick of the pre-round 3-2-1-0 countdown.
type CountdownTickPayload struct {
	Tick int `json:"tick"`
}

// RoundStartedPayload announces a new round to the whole room.
type RoundStartedPayload struct {
	Letter  string `json:"letter"`
	TimeSec int    `json:"time"`
	Round   int    `json:"round"`
}

// Stop rejection reasons surfaced to the losing caller only.
const (
	StopReasonNoActiveRound    = "no_active_round"
	StopReasonStaleClaim       = "stale_claim"
	StopReasonAlreadyResolved  = "already_resolved"
	StopReasonJudgeUnavailable = "judge_unavailable"
	StopReasonAnswersRejected  = "answers_rejected"
)

// StopRejectedPayload tells one requester why their stop claim failed.
// Verdicts is populated only for answers_rejected.
type StopRejectedPayload struct {
	Reason   string                    `json:"reason"`
	Verdicts map[string]models.Verdict `json:"verdicts,omitempty"`
}

// RoundWonPayload announces the accepted stop claim to the whole room.
type RoundWonPayload struct {
	Winner   string                    `json:"winner"`
	Answers  map[string]string         `json:"answers"`
	Verdicts map[string]models.Verdict `json:"verdicts"`
}

// LettersExhaustedPayload tells the room no unused letters remain.
type LettersExhaustedPayload struct {
	UsedLetters []string `json:"usedLetters"`
}

// KickedPayload is delivered to the kicked connection only.
type KickedPayload struct {
	Message string `json:"message"`
}
