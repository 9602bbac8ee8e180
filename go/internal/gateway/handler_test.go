package gateway

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call records one invocation on the recording handler, normalized to the
// operation name plus its string arguments.
type call struct {
	Op      string
	Args    []string
	Rounds  int
	Time    int
	Answers map[string]string
}

type recordingHandler struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingHandler) record(c call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recordingHandler) all() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]call, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recordingHandler) HandleCreate(ctx context.Context, connectionID, playerName string) {
	r.record(call{Op: "create", Args: []string{connectionID, playerName}})
}

func (r *recordingHandler) HandleJoin(ctx context.Context, connectionID, roomCode, playerName string) {
	r.record(call{Op: "join", Args: []string{connectionID, roomCode, playerName}})
}

func (r *recordingHandler) HandleIdentify(ctx context.Context, connectionID, roomCode, playerName string) {
	r.record(call{Op: "identify", Args: []string{connectionID, roomCode, playerName}})
}

func (r *recordingHandler) HandleUpdateSettings(ctx context.Context, connectionID, roomCode string, rounds, timeSec int) {
	r.record(call{Op: "update_settings", Args: []string{connectionID, roomCode}, Rounds: rounds, Time: timeSec})
}

func (r *recordingHandler) HandleStartRound(ctx context.Context, connectionID, roomCode string) {
	r.record(call{Op: "start_round", Args: []string{connectionID, roomCode}})
}

func (r *recordingHandler) HandleRequestStop(ctx context.Context, connectionID, roomCode, playerName, claimedLetter string, answers map[string]string) {
	r.record(call{Op: "request_stop", Args: []string{connectionID, roomCode, playerName, claimedLetter}, Answers: answers})
}

func (r *recordingHandler) HandleKick(ctx context.Context, connectionID, roomCode, targetConnectionID string) {
	r.record(call{Op: "kick", Args: []string{connectionID, roomCode, targetConnectionID}})
}

func (r *recordingHandler) HandleSnapshot(ctx context.Context, connectionID, roomCode string) {
	r.record(call{Op: "room_snapshot", Args: []string{connectionID, roomCode}})
}

func (r *recordingHandler) HandleDisconnect(connectionID string) {
	r.record(call{Op: "disconnect", Args: []string{connectionID}})
}

func newTestHandler() (*Handler, *recordingHandler) {
	rec := &recordingHandler{}
	return NewHandler(NewConnectionManager(DefaultConnectionConfig()), rec), rec
}

func TestDispatchRoutes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want call
	}{
		{
			"create",
			`{"type":"create","data":{"playerName":"amira"}}`,
			call{Op: "create", Args: []string{"conn-1", "amira"}},
		},
		{
			"join",
			`{"type":"join","data":{"roomCode":"123456","playerName":"noor"}}`,
			call{Op: "join", Args: []string{"conn-1", "123456", "noor"}},
		},
		{
			"identify",
			`{"type":"identify","data":{"roomCode":"123456","playerName":"noor"}}`,
			call{Op: "identify", Args: []string{"conn-1", "123456", "noor"}},
		},
		{
			"update_settings",
			`{"type":"update_settings","data":{"roomCode":"123456","rounds":7,"time":120}}`,
			call{Op: "update_settings", Args: []string{"conn-1", "123456"}, Rounds: 7, Time: 120},
		},
		{
			"start_round",
			`{"type":"start_round","data":{"roomCode":"123456"}}`,
			call{Op: "start_round", Args: []string{"conn-1", "123456"}},
		},
		{
			"request_stop",
			`{"type":"request_stop","data":{"roomCode":"123456","playerName":"noor","currentLetter":"ب","answers":{"animal":"بطة"}}}`,
			call{
				Op:      "request_stop",
				Args:    []string{"conn-1", "123456", "noor", "ب"},
				Answers: map[string]string{"animal": "بطة"},
			},
		},
		{
			"kick",
			`{"type":"kick","data":{"roomCode":"123456","targetId":"conn-9"}}`,
			call{Op: "kick", Args: []string{"conn-1", "123456", "conn-9"}},
		},
		{
			"room_snapshot",
			`{"type":"room_snapshot","data":{"roomCode":"123456"}}`,
			call{Op: "room_snapshot", Args: []string{"conn-1", "123456"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, rec := newTestHandler()
			h.dispatch("conn-1", []byte(tt.raw))

			calls := rec.all()
			require.Len(t, calls, 1)
			if diff := cmp.Diff(tt.want, calls[0]); diff != "" {
				t.Errorf("dispatched call mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDispatchDropsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `this is not json`},
		{"unknown type", `{"type":"dance","data":{}}`},
		{"malformed payload", `{"type":"join","data":"not an object"}`},
		{"missing payload", `{"type":"create"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, rec := newTestHandler()
			h.dispatch("conn-1", []byte(tt.raw))
			assert.Empty(t, rec.all())
		})
	}
}

func TestDisconnectedForwards(t *testing.T) {
	h, rec := newTestHandler()
	h.disconnected("conn-1")

	calls := rec.all()
	require.Len(t, calls, 1)
	assert.Equal(t, call{Op: "disconnect", Args: []string{"conn-1"}}, calls[0])
}
