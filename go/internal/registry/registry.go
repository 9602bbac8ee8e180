package registry

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tarekmz/stopgame/go/internal/room"
)

// ErrRoomNotFound is returned for operations on unknown room codes.
var ErrRoomNotFound = errors.New("room not found")

// entry pairs a session with the mutex that serializes access to it. All
// mutations of a session go through this mutex; rooms never share one.
type entry struct {
	mu   sync.Mutex
	sess *room.Session
}

// Registry maps room codes to sessions and enforces single-writer-per-room:
// every operation against a session runs under that room's own mutex, so
// operations on distinct rooms never contend. The registry's own lock only
// guards the map and is never held across a session operation.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*entry

	// intn is the random source for code generation, swappable in tests.
	intn func(int) int
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		rooms: make(map[string]*entry),
		intn:  rand.IntN,
	}
}

// Create inserts a new Waiting session with the requester as sole leader and
// returns its room code. Candidate codes are retried until unused.
func (r *Registry) Create(leaderName, connectionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = fmt.Sprintf("%06d", 100000+r.intn(900000))
		if _, taken := r.rooms[code]; !taken {
			break
		}
	}
	r.rooms[code] = &entry{sess: room.NewSession(code, leaderName, connectionID)}

	log.Info().
		Str("room_code", code).
		Str("leader", leaderName).
		Msg("room created")
	return code
}

// Exists reports whether a room code is registered.
func (r *Registry) Exists(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[code]
	return ok
}

// WithSession runs fn with exclusive access to the session for code. The room
// mutex is held for the whole call, including any external waits fn performs;
// other rooms proceed unaffected. Returns ErrRoomNotFound for unknown codes.
func (r *Registry) WithSession(code string, fn func(*room.Session) error) error {
	r.mu.RLock()
	e, ok := r.rooms[code]
	r.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The room may have been removed while we waited for its lock; treat the
	// session as gone rather than mutate an orphan.
	r.mu.RLock()
	current, ok := r.rooms[code]
	r.mu.RUnlock()
	if !ok || current != e {
		return ErrRoomNotFound
	}
	return fn(e.sess)
}

// FindByConnection locates the room currently claiming a connection.
func (r *Registry) FindByConnection(connectionID string) (string, bool) {
	r.mu.RLock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	r.mu.RUnlock()

	for _, code := range codes {
		found := false
		err := r.WithSession(code, func(s *room.Session) error {
			found = s.HasConnection(connectionID)
			return nil
		})
		if err == nil && found {
			return code, true
		}
	}
	return "", false
}

// Remove drops a session. Only the grace-period manager calls this, after
// confirming the room is still empty at expiry.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[code]; ok {
		delete(r.rooms, code)
		log.Info().Str("room_code", code).Msg("room removed")
	}
}

// Count returns the number of registered rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
