package game

import (
	"time"

	"github.com/schoolerbbh/bbh-server/internal/config"
	"github.com/schoolerbbh/bbh-server/internal/protocol"
)

// Room is a named relay group. The lobby is a permanent room holding every
// player not currently in a game; all other rooms are created by clients and
// deleted when their last member leaves.
//
// Rooms carry no lock of their own: every mutation happens under the
// registry's membership lock.
type Room struct {
	Name        string
	Settings    protocol.RoomSettings
	CreatedAt   time.Time
	roundLength time.Duration
	roundStart  time.Time // zero until the first player enters the round
	members     []*Session
}

// timeNow is stubbed in tests that exercise the round clock.
var timeNow = time.Now

func newRoom(name string, settings protocol.RoomSettings, roundLength time.Duration) *Room {
	return &Room{
		Name:        name,
		Settings:    settings,
		CreatedAt:   time.Now(),
		roundLength: roundLength,
	}
}

// IsLobby reports whether this is the permanent lobby room.
func (r *Room) IsLobby() bool {
	return r.Name == config.LobbyName
}

// Members returns the current membership. The slice is shared; callers only
// iterate it under the registry lock.
func (r *Room) Members() []*Session {
	return r.members
}

// MemberCount returns the number of sessions in the room.
func (r *Room) MemberCount() int {
	return len(r.members)
}

func (r *Room) addMember(s *Session) {
	r.members = append(r.members, s)
}

func (r *Room) removeMember(s *Session) {
	for i, m := range r.members {
		if m == s {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

// ensureRoundStarted arms the round clock on first entry. The clock keeps
// running while the room exists; re-joining never resets it.
func (r *Room) ensureRoundStarted(now time.Time) {
	if r.roundStart.IsZero() {
		r.roundStart = now
	}
}

// Remaining returns the whole seconds left in the current round, clamped to
// [0, round length]. Before the round starts the full length is reported.
func (r *Room) Remaining(now time.Time) int {
	if r.roundStart.IsZero() {
		return int(r.roundLength / time.Second)
	}
	left := r.roundLength - now.Sub(r.roundStart)
	if left < 0 {
		left = 0
	}
	return int(left / time.Second)
}
