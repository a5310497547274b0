// Package game holds the relay core: authenticated sessions, room
// membership, and the packet fan-out rules that keep every client in a room
// seeing the same world.
package game

import (
	"sync"

	"github.com/schoolerbbh/bbh-server/internal/account"
)

// FrameWriter is the transport a session writes to. Implementations must
// serialize concurrent WriteFrame calls; the relay fans out from multiple
// sender goroutines.
type FrameWriter interface {
	WriteFrame(frame []byte) error
	Close() error
	RemoteAddr() string
}

// Session is one connected client. Identity fields are written once during
// authentication and by the registry under its own lock; lastState is the
// only field mutated on the hot path.
type Session struct {
	conn FrameWriter

	mu            sync.Mutex
	authenticated bool
	account       account.Account
	slot          int
	room          *Room
	lastState     string // raw cacheable state frame, replayed to late joiners
	closing       bool
}

// NewSession wraps a transport in an unauthenticated session.
func NewSession(conn FrameWriter) *Session {
	return &Session{conn: conn}
}

// Send writes one terminated frame to the client.
func (s *Session) Send(frame []byte) error {
	return s.conn.WriteFrame(frame)
}

// Close tears down the underlying transport. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()
	return s.conn.Close()
}

// RemoteAddr returns the peer address for logging.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

// Authenticate records a successful login and the allocated slot.
func (s *Session) Authenticate(acc account.Account, slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.account = acc
	s.slot = slot
}

// Authenticated reports whether the login handshake has completed.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Slot returns the wire slot, 0 before authentication.
func (s *Session) Slot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot
}

// Username returns the authenticated username, empty before authentication.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.Username
}

// AccountID returns the authenticated account id, 0 before authentication.
func (s *Session) AccountID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account.ID
}

// Room returns the room the session currently occupies, nil if none.
func (s *Session) Room() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// setRoom is called by the registry under its membership lock.
func (s *Session) setRoom(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = r
}

// SetLastState caches the raw frame of the session's latest replayable state
// packet.
func (s *Session) SetLastState(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastState = raw
}

// LastState returns the cached state frame, empty if none was seen yet.
func (s *Session) LastState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastState
}
