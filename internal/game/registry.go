package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/schoolerbbh/bbh-server/internal/account"
	"github.com/schoolerbbh/bbh-server/internal/config"
	"github.com/schoolerbbh/bbh-server/internal/events"
	"github.com/schoolerbbh/bbh-server/internal/protocol"
	"github.com/schoolerbbh/bbh-server/internal/slot"
	"github.com/schoolerbbh/bbh-server/internal/util"
)

// Registry owns every session and room. One mutex covers all membership
// state: a join, leave or create runs start to finish under it, so no client
// ever observes a player in two rooms or in none while connected to one.
//
// Sends to peers happen while the lock is held; a failed send never aborts
// the operation. Broken peers are collected and torn down after the lock is
// released, which feeds their disconnect back through the normal Detach path.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	sessions map[int]*Session // by slot

	slots       *slot.Allocator
	bus         *events.EventBus
	roundLength time.Duration
	logger      zerolog.Logger
}

// NewRegistry creates a registry with the permanent lobby in place.
func NewRegistry(maxSlots int, roundLength time.Duration, bus *events.EventBus) *Registry {
	r := &Registry{
		rooms:       make(map[string]*Room),
		sessions:    make(map[int]*Session),
		slots:       slot.NewAllocator(maxSlots),
		bus:         bus,
		roundLength: roundLength,
		logger:      util.ComponentLogger("registry"),
	}
	r.rooms[config.LobbyName] = newRoom(config.LobbyName, protocol.RoomSettings{}, roundLength)
	return r
}

// Attach allocates a slot for a freshly authenticated session and registers
// it. The session is not yet in any room; the client joins the lobby itself.
func (reg *Registry) Attach(ctx context.Context, sess *Session, acc account.Account) (int, error) {
	reg.mu.Lock()
	s, err := reg.slots.Acquire(acc.Username)
	if err != nil {
		reg.mu.Unlock()
		return 0, err
	}
	sess.Authenticate(acc, s)
	reg.sessions[s] = sess
	reg.mu.Unlock()

	reg.bus.Emit(ctx, events.Event{
		Type:   events.EventPlayerLogin,
		Source: "registry",
		Payload: events.PlayerPayload{
			AccountID: acc.ID,
			Username:  acc.Username,
			Slot:      s,
		},
	})
	return s, nil
}

// Detach removes a session entirely: departure notifications to its room,
// empty-room cleanup, slot release. Safe to call for sessions that never
// authenticated.
func (reg *Registry) Detach(ctx context.Context, sess *Session) {
	var broken []*Session

	reg.mu.Lock()
	s := sess.Slot()
	room := sess.Room()
	if room != nil {
		reg.leaveLocked(sess, room, &broken)
	}
	if s > 0 {
		delete(reg.sessions, s)
		reg.slots.Release(s)
	}
	reg.mu.Unlock()

	reg.teardown(ctx, broken)

	if sess.Authenticated() {
		reg.bus.Emit(ctx, events.Event{
			Type:   events.EventPlayerLogout,
			Source: "registry",
			Payload: events.PlayerPayload{
				AccountID: sess.AccountID(),
				Username:  sess.Username(),
				Slot:      s,
			},
		})
	}
}

// Join moves a session into the named room, running the full departure and
// arrival notification sequence. Joining a room that does not exist is a
// silent no-op unless it is the lobby, which always exists.
func (reg *Registry) Join(ctx context.Context, sess *Session, name string) {
	var broken []*Session

	reg.mu.Lock()
	room, ok := reg.rooms[name]
	if !ok {
		reg.mu.Unlock()
		reg.logger.Debug().Str("room", name).Str("player", sess.Username()).Msg("join for unknown room ignored")
		return
	}

	if old := sess.Room(); old != nil {
		reg.leaveLocked(sess, old, &broken)
	}

	room.addMember(sess)
	sess.setRoom(room)
	selfSlot := sess.Slot()

	reg.send(sess, protocol.BuildPeerJoined(selfSlot), &broken)

	if room.IsLobby() {
		for _, peer := range room.Members() {
			if peer == sess {
				continue
			}
			reg.send(peer, protocol.BuildPeerJoined(selfSlot), &broken)
			reg.send(peer, protocol.BuildLobbyUser(selfSlot, sess.Username()), &broken)
			reg.send(sess, protocol.BuildPeerJoined(peer.Slot()), &broken)
			reg.send(sess, protocol.BuildLobbyUser(peer.Slot(), peer.Username()), &broken)
		}
		// Everyone in the lobby gets the fresh occupancy summary, the
		// joiner included.
		reg.broadcastRoomListLocked(&broken)
	} else {
		now := timeNow()
		room.ensureRoundStarted(now)

		timer := protocol.BuildRoundTimer(room.Remaining(now))
		for _, m := range room.Members() {
			reg.send(m, timer, &broken)
		}

		reg.send(sess, protocol.BuildSettings(room.Settings.Raw), &broken)
		reg.send(sess, protocol.BuildRoundInit(selfSlot), &broken)
		reg.send(sess, protocol.BuildGameStart(selfSlot), &broken)
		reg.send(sess, protocol.BuildInitDone(selfSlot), &broken)

		for _, peer := range room.Members() {
			if peer == sess {
				continue
			}
			reg.send(peer, protocol.BuildPeerJoined(selfSlot), &broken)
			reg.send(peer, protocol.BuildGameUser(selfSlot), &broken)
			reg.send(sess, protocol.BuildPeerJoined(peer.Slot()), &broken)
			reg.send(sess, protocol.BuildGameUser(peer.Slot()), &broken)

			if ls := peer.LastState(); ls != "" {
				reg.send(sess, protocol.BuildStateRelay(ls[0], peer.Slot(), ls[1:]), &broken)
			}
			if ls := sess.LastState(); ls != "" {
				reg.send(peer, protocol.BuildStateRelay(ls[0], selfSlot, ls[1:]), &broken)
			}
		}

		spawn := protocol.BuildSpawnReady(selfSlot)
		for _, m := range room.Members() {
			reg.send(m, spawn, &broken)
		}
		// The joiner also needs a spawn signal for every peer already in
		// the round, or their avatars never appear on its side.
		for _, peer := range room.Members() {
			if peer != sess {
				reg.send(sess, protocol.BuildSpawnReady(peer.Slot()), &broken)
			}
		}

		reg.broadcastRoomListLocked(&broken)
	}
	members := room.MemberCount()
	reg.mu.Unlock()

	reg.teardown(ctx, broken)

	reg.logger.Info().Str("room", name).Str("player", sess.Username()).Int("slot", selfSlot).Msg("player joined room")
	reg.bus.Emit(ctx, events.Event{
		Type:   events.EventRoomJoined,
		Source: "registry",
		Payload: events.RoomPayload{Name: name, Members: members},
	})
}

// Create registers a new game room with the session as its sole member. An
// existing room of the same name is displaced; its members keep relaying
// among themselves until they leave, but the name now resolves to the new
// room. The settings string is taken as the client sent it.
func (reg *Registry) Create(ctx context.Context, sess *Session, name, settingsRaw string) {
	settings := protocol.DecodeSettings(settingsRaw)

	var broken []*Session

	reg.mu.Lock()
	if old := sess.Room(); old != nil {
		reg.leaveLocked(sess, old, &broken)
	}

	room := newRoom(name, settings, reg.roundLength)
	reg.rooms[name] = room
	room.addMember(sess)
	sess.setRoom(room)

	now := timeNow()
	room.ensureRoundStarted(now)
	selfSlot := sess.Slot()

	reg.send(sess, protocol.BuildPeerJoined(selfSlot), &broken)
	reg.send(sess, protocol.BuildRoundTimer(room.Remaining(now)), &broken)
	reg.send(sess, protocol.BuildSettings(settings.Raw), &broken)
	reg.send(sess, protocol.BuildRoundInit(selfSlot), &broken)
	reg.send(sess, protocol.BuildGameStart(selfSlot), &broken)
	reg.send(sess, protocol.BuildInitDone(selfSlot), &broken)
	reg.send(sess, protocol.BuildGameUser(selfSlot), &broken)

	reg.broadcastRoomListLocked(&broken)
	reg.mu.Unlock()

	reg.teardown(ctx, broken)

	reg.logger.Info().Str("room", name).Str("player", sess.Username()).Str("settings", settings.Raw).Msg("room created")
	reg.bus.Emit(ctx, events.Event{
		Type:   events.EventRoomCreated,
		Source: "registry",
		Payload: events.RoomPayload{
			Name:      name,
			Settings:  settings.Raw,
			Members:   1,
			CreatorID: sess.AccountID(),
			Creator:   sess.Username(),
		},
	})
}

// SendRoomList answers a room-list query for one session.
func (reg *Registry) SendRoomList(ctx context.Context, sess *Session) {
	var broken []*Session
	reg.mu.Lock()
	reg.send(sess, protocol.BuildRoomList(reg.roomListLocked()), &broken)
	reg.mu.Unlock()
	reg.teardown(ctx, broken)
}

// SendRoomInfo answers a room-info query. Queries for unknown rooms or the
// lobby are ignored.
func (reg *Registry) SendRoomInfo(ctx context.Context, sess *Session, name string) {
	var broken []*Session
	reg.mu.Lock()
	room, ok := reg.rooms[name]
	if ok && !room.IsLobby() {
		frame := protocol.BuildRoomInfo(room.Settings.FirstMapCode(), room.MemberCount(), room.Remaining(timeNow()))
		reg.send(sess, frame, &broken)
	}
	reg.mu.Unlock()
	reg.teardown(ctx, broken)
}

// SessionBySlot resolves a wire slot to its session, nil if offline.
func (reg *Registry) SessionBySlot(s int) *Session {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.sessions[s]
}

// leaveLocked runs the departure side of a room change: departure packets to
// the remaining peers, membership removal, and empty-room cleanup. Caller
// holds reg.mu.
func (reg *Registry) leaveLocked(sess *Session, room *Room, broken *[]*Session) {
	departed := protocol.BuildPeerDeparted(sess.Slot())
	for _, peer := range room.Members() {
		if peer != sess {
			reg.send(peer, departed, broken)
		}
	}
	room.removeMember(sess)
	sess.setRoom(nil)

	reg.bus.Emit(context.Background(), events.Event{
		Type:    events.EventRoomLeft,
		Source:  "registry",
		Payload: events.RoomPayload{Name: room.Name, Members: room.MemberCount()},
	})

	if !room.IsLobby() && room.MemberCount() == 0 && reg.rooms[room.Name] == room {
		delete(reg.rooms, room.Name)
		reg.logger.Info().Str("room", room.Name).Msg("empty room deleted")
		reg.broadcastRoomListLocked(broken)
		reg.bus.Emit(context.Background(), events.Event{
			Type:    events.EventRoomDeleted,
			Source:  "registry",
			Payload: events.RoomPayload{Name: room.Name, Settings: room.Settings.Raw},
		})
	}
}

// roomListLocked builds the occupancy summary of all non-lobby rooms, sorted
// by name so repeated queries render identically.
func (reg *Registry) roomListLocked() []protocol.RoomListEntry {
	entries := make([]protocol.RoomListEntry, 0, len(reg.rooms)-1)
	for _, r := range reg.rooms {
		if r.IsLobby() {
			continue
		}
		entries = append(entries, protocol.RoomListEntry{Name: r.Name, Members: r.MemberCount()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// broadcastRoomListLocked pushes a fresh room list to every lobby member.
func (reg *Registry) broadcastRoomListLocked(broken *[]*Session) {
	lobby := reg.rooms[config.LobbyName]
	frame := protocol.BuildRoomList(reg.roomListLocked())
	for _, m := range lobby.Members() {
		reg.send(m, frame, broken)
	}
}

// send writes a frame to one session, collecting it for teardown on failure.
// A peer with a broken socket must not abort the operation for everyone else.
func (reg *Registry) send(sess *Session, frame []byte, broken *[]*Session) {
	if err := sess.Send(frame); err != nil {
		for _, b := range *broken {
			if b == sess {
				return
			}
		}
		*broken = append(*broken, sess)
	}
}

// teardown closes broken sessions outside the registry lock. Closing the
// socket unblocks each session's read loop, which then drives the normal
// Detach path.
func (reg *Registry) teardown(ctx context.Context, broken []*Session) {
	for _, sess := range broken {
		reg.logger.Warn().Str("player", sess.Username()).Int("slot", sess.Slot()).Msg("peer unreachable, closing connection")
		_ = sess.Close()
		reg.bus.Emit(ctx, events.Event{
			Type:   events.EventPeerUnreachable,
			Source: "registry",
			Payload: events.PlayerPayload{
				AccountID: sess.AccountID(),
				Username:  sess.Username(),
				Slot:      sess.Slot(),
			},
		})
	}
}

// RoomSummary is a point-in-time view of one room for the admin surfaces.
type RoomSummary struct {
	Name         string `json:"name"`
	Settings     string `json:"settings"`
	Members      int    `json:"members"`
	RemainingSec int    `json:"remaining_sec"`
	Lobby        bool   `json:"lobby"`
}

// SessionSummary is a point-in-time view of one connected player.
type SessionSummary struct {
	Slot       int    `json:"slot"`
	Username   string `json:"username"`
	AccountID  int    `json:"account_id"`
	Room       string `json:"room,omitempty"`
	RemoteAddr string `json:"remote_addr"`
}

// Rooms snapshots every room, lobby included.
func (reg *Registry) Rooms() []RoomSummary {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	now := timeNow()
	out := make([]RoomSummary, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, RoomSummary{
			Name:         r.Name,
			Settings:     r.Settings.Raw,
			Members:      r.MemberCount(),
			RemainingSec: r.Remaining(now),
			Lobby:        r.IsLobby(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Sessions snapshots every connected, authenticated player.
func (reg *Registry) Sessions() []SessionSummary {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := make([]SessionSummary, 0, len(reg.sessions))
	for s, sess := range reg.sessions {
		sum := SessionSummary{
			Slot:       s,
			Username:   sess.Username(),
			AccountID:  sess.AccountID(),
			RemoteAddr: sess.RemoteAddr(),
		}
		if r := sess.Room(); r != nil {
			sum.Room = r.Name
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// SessionCount returns the number of authenticated sessions.
func (reg *Registry) SessionCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.sessions)
}

// RoomCount returns the number of rooms, lobby included.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Kick force-closes the session on the given slot. Used by the admin CLI and
// API; the read loop handles the cleanup.
func (reg *Registry) Kick(s int) bool {
	reg.mu.Lock()
	sess := reg.sessions[s]
	reg.mu.Unlock()
	if sess == nil {
		return false
	}
	_ = sess.Close()
	return true
}

// BroadcastChat pushes a server-originated chat line to every connected
// player, tagged with the reserved slot 0.
func (reg *Registry) BroadcastChat(ctx context.Context, text string) {
	var broken []*Session
	frame := protocol.BuildChatWrap(0, "9"+text)
	reg.mu.Lock()
	for _, sess := range reg.sessions {
		reg.send(sess, frame, &broken)
	}
	reg.mu.Unlock()
	reg.teardown(ctx, broken)
}
