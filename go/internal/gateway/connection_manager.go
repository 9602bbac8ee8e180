package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tarekmz/stopgame/go/internal/room"
)

// ConnectionManager owns every live WebSocket connection and the room-keyed
// broadcast groups. A connection starts unassociated; create/join/identify
// bind it to a room through Associate. It implements the coordinator's
// Broadcaster.
type ConnectionManager struct {
	mu        sync.RWMutex
	byID      map[string]*Connection
	roomConns map[string]map[*Connection]bool

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan broadcastMessage
}

// Connection represents one WebSocket client. ID doubles as the player's
// connection identity throughout the session core.
type Connection struct {
	ID       string
	RoomCode string
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	ConnectedAt time.Time
	LastPing    time.Time

	// sendMu and closed guard Send against a write racing its close: the
	// read pump removes a dying connection while deliver may hold a
	// snapshot that still lists it.
	sendMu sync.Mutex
	closed bool
}

// enqueue queues data for the write pump. Reports false when the connection
// is already closed or its buffer is full.
func (c *Connection) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// broadcastMessage routes an event to a room's connections, or to a single
// connection when ConnectionID is set.
type broadcastMessage struct {
	RoomCode     string
	ConnectionID string
	Event        *room.Event
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8192,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		byID:      make(map[string]*Connection),
		roomConns: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// Start processes broadcast messages until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.deliver(message)
		}
	}
}

// Upgrade turns an HTTP request into a managed WebSocket connection. handler
// receives each inbound message and the eventual disconnect.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, handler *Handler) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.byID[connection.ID] = connection
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump(handler)

	log.Info().
		Str("connection_id", connection.ID).
		Msg("WebSocket connection established")
	return nil
}

// Associate binds a connection to a room's broadcast group, replacing any
// previous binding.
func (cm *ConnectionManager) Associate(connectionID, roomCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conn, ok := cm.byID[connectionID]
	if !ok {
		return
	}
	cm.dissociateLocked(conn)
	conn.RoomCode = roomCode
	if cm.roomConns[roomCode] == nil {
		cm.roomConns[roomCode] = make(map[*Connection]bool)
	}
	cm.roomConns[roomCode][conn] = true

	log.Debug().
		Str("connection_id", connectionID).
		Str("room_code", roomCode).
		Int("room_connections", len(cm.roomConns[roomCode])).
		Msg("connection associated")
}

// Dissociate unbinds a connection from its room group. Idempotent.
func (cm *ConnectionManager) Dissociate(connectionID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if conn, ok := cm.byID[connectionID]; ok {
		cm.dissociateLocked(conn)
	}
}

func (cm *ConnectionManager) dissociateLocked(conn *Connection) {
	if conn.RoomCode == "" {
		return
	}
	if conns, ok := cm.roomConns[conn.RoomCode]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(cm.roomConns, conn.RoomCode)
		}
	}
	conn.RoomCode = ""
}

// BroadcastRoom queues an event for every connection in a room.
func (cm *ConnectionManager) BroadcastRoom(roomCode string, ev *room.Event) {
	select {
	case cm.broadcastCh <- broadcastMessage{RoomCode: roomCode, Event: ev}:
	default:
		log.Warn().Str("room_code", roomCode).Msg("broadcast channel full, dropping message")
	}
}

// SendTo queues an event for one connection.
func (cm *ConnectionManager) SendTo(connectionID string, ev *room.Event) {
	select {
	case cm.broadcastCh <- broadcastMessage{ConnectionID: connectionID, Event: ev}:
	default:
		log.Warn().Str("connection_id", connectionID).Msg("broadcast channel full, dropping message")
	}
}

// deliver fans one queued message out to its targets.
func (cm *ConnectionManager) deliver(message broadcastMessage) {
	cm.mu.RLock()
	var targets []*Connection
	if message.ConnectionID != "" {
		if conn, ok := cm.byID[message.ConnectionID]; ok {
			targets = append(targets, conn)
		}
	} else {
		for conn := range cm.roomConns[message.RoomCode] {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for delivery")
		return
	}

	for _, conn := range targets {
		if conn.enqueue(data) {
			continue
		}
		// Connection is slow or already dead, drop it.
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection not writable, closing connection")
		cm.remove(conn)
		if conn.Conn != nil {
			conn.Conn.Close()
		}
	}
}

// remove forgets a connection entirely.
func (cm *ConnectionManager) remove(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, ok := cm.byID[conn.ID]; !ok {
		return
	}
	cm.dissociateLocked(conn)
	delete(cm.byID, conn.ID)
	conn.sendMu.Lock()
	conn.closed = true
	close(conn.Send)
	conn.sendMu.Unlock()
	log.Info().Str("connection_id", conn.ID).Msg("connection unregistered")
}

// Stats returns counts of live connections and occupied rooms.
func (cm *ConnectionManager) Stats() (connections, rooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.byID), len(cm.roomConns)
}

// writePump pushes queued events and pings to the socket.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump consumes inbound messages, dispatching each to the handler. When
// the socket dies the handler is told the connection is gone.
func (c *Connection) readPump(handler *Handler) {
	defer func() {
		handler.disconnected(c.ID)
		c.Manager.remove(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}
		handler.dispatch(c.ID, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
