package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Message type names the connection layer accepts.
const (
	MessageCreate         = "create"
	MessageJoin           = "join"
	MessageIdentify       = "identify"
	MessageUpdateSettings = "update_settings"
	MessageStartRound     = "start_round"
	MessageRequestStop    = "request_stop"
	MessageKick           = "kick"
	MessageRoomSnapshot   = "room_snapshot"
)

// EventHandler is what the gateway needs from the session core. The
// coordinator implements it.
type EventHandler interface {
	HandleCreate(ctx context.Context, connectionID, playerName string)
	HandleJoin(ctx context.Context, connectionID, roomCode, playerName string)
	HandleIdentify(ctx context.Context, connectionID, roomCode, playerName string)
	HandleUpdateSettings(ctx context.Context, connectionID, roomCode string, rounds, timeSec int)
	HandleStartRound(ctx context.Context, connectionID, roomCode string)
	HandleRequestStop(ctx context.Context, connectionID, roomCode, playerName, claimedLetter string, answers map[string]string)
	HandleKick(ctx context.Context, connectionID, roomCode, targetConnectionID string)
	HandleSnapshot(ctx context.Context, connectionID, roomCode string)
	HandleDisconnect(connectionID string)
}

// inboundMessage is the envelope clients send.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type createRequest struct {
	PlayerName string `json:"playerName"`
}

type joinRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type updateSettingsRequest struct {
	RoomCode string `json:"roomCode"`
	Rounds   int    `json:"rounds"`
	Time     int    `json:"time"`
}

type startRoundRequest struct {
	RoomCode string `json:"roomCode"`
}

type requestStopRequest struct {
	RoomCode      string            `json:"roomCode"`
	PlayerName    string            `json:"playerName"`
	CurrentLetter string            `json:"currentLetter"`
	Answers       map[string]string `json:"answers"`
}

type kickRequest struct {
	RoomCode string `json:"roomCode"`
	TargetID string `json:"targetId"`
}

type roomSnapshotRequest struct {
	RoomCode string `json:"roomCode"`
}

// Handler decodes inbound WebSocket messages and routes them to the session
// core.
type Handler struct {
	cm      *ConnectionManager
	handler EventHandler
}

// NewHandler creates a Handler.
func NewHandler(cm *ConnectionManager, handler EventHandler) *Handler {
	return &Handler{cm: cm, handler: handler}
}

// HandleWS upgrades an HTTP request to a managed WebSocket connection.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := h.cm.Upgrade(w, r, h); err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

// HandleStats reports live connection counts.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	connections, rooms := h.cm.Stats()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"connections":%d,"rooms":%d}`, connections, rooms)
}

// RegisterRoutes wires the gateway's HTTP endpoints.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWS)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}

// dispatch decodes one inbound message and invokes the matching operation.
// Undecodable messages are logged and dropped; the session core handles all
// semantic validation itself.
func (h *Handler) dispatch(connectionID string, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", connectionID).
			Msg("dropping undecodable message")
		return
	}

	ctx := context.Background()
	switch msg.Type {
	case MessageCreate:
		var req createRequest
		if !decode(connectionID, msg.Data, &req) {
			return
		}
		h.handler.HandleCreate(ctx, connectionID, req.PlayerName)

	case MessageJoin:
		var req joinRequest
		if !decode(connectionID, msg.Data, &req) {
			return
		}
		h.handler.HandleJoin(ctx, connectionID, req.RoomCode, req.PlayerName)

	case MessageIdentify:
		var req joinRequest
		if !decode(connectionID, msg.Data, &req) {
			return
		}
		h.handler.HandleIdentify(ctx, connectionID, req.RoomCode, req.PlayerName)

	case MessageUpdateSettings:
		var req updateSettingsRequest
		if !decode(connectionID, msg.Data, &req) {
			return
		}
		h.handler.HandleUpdateSettings(ctx, connectionID, req.RoomCode, req.Rounds, req.Time)

	case MessageStartRound:
		var req startRoundRequest
		if !decode(connectionID, msg.Data, &req) {
			return
		}
		h.handler.HandleStartRound(ctx, connectionID, req.RoomCode)

	case MessageRequestStop:
		var req requestStopRequest
		if !decode(connectionID, msg.Data, &req) {
			return
		}
		h.handler.HandleRequestStop(ctx, connectionID, req.RoomCode, req.PlayerName, req.CurrentLetter, req.Answers)

	case MessageKick:
		var req kickRequest
		if !decode(connectionID, msg.Data, &req) {
			return
		}
		h.handler.HandleKick(ctx, connectionID, req.RoomCode, req.TargetID)

	case MessageRoomSnapshot:
		var req roomSnapshotRequest
		if !decode(connectionID, msg.Data, &req) {
			return
		}
		h.handler.HandleSnapshot(ctx, connectionID, req.RoomCode)

	default:
		log.Debug().
			Str("connection_id", connectionID).
			Str("type", msg.Type).
			Msg("unknown message type - ignoring")
	}
}

// disconnected forwards a socket teardown to the session core.
func (h *Handler) disconnected(connectionID string) {
	h.handler.HandleDisconnect(connectionID)
}

func decode(connectionID string, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", connectionID).
			Msg("dropping message with malformed payload")
		return false
	}
	return true
}
