package game

import (
	"context"
	"strconv"

	"github.com/schoolerbbh/bbh-server/internal/protocol"
)

// In-room traffic falls into three rewrite classes: state packets get the
// sender's slot injected after the opcode, raw-relay control packets are
// forwarded untouched, and chat packets are wrapped with the sender tag.
// All of it fans out under the registry lock with the same broken-peer
// handling as membership changes.

// RelayState forwards a gameplay state packet to the sender's room peers
// with the sender slot injected. Cacheable packets are retained on the
// session for late-joiner replay. A sender outside any room is a no-op.
func (reg *Registry) RelayState(ctx context.Context, sess *Session, pkt protocol.Packet) {
	if pkt.Cacheable {
		sess.SetLastState(pkt.Raw)
	}

	room := sess.Room()
	if room == nil {
		return
	}
	frame := protocol.BuildStateRelay(pkt.Opcode, sess.Slot(), pkt.Body)
	reg.relayToPeers(ctx, sess, room, frame)
}

// RelayRaw forwards a control packet to the sender's room peers without
// rewriting.
func (reg *Registry) RelayRaw(ctx context.Context, sess *Session, raw string) {
	room := sess.Room()
	if room == nil {
		return
	}
	frame := make([]byte, len(raw)+1)
	copy(frame, raw)
	frame[len(frame)-1] = protocol.Terminator
	reg.relayToPeers(ctx, sess, room, frame)
}

// RelayChat wraps a chat payload with the sender tag and delivers it to the
// whole room, the sender included, so every client renders the line once.
func (reg *Registry) RelayChat(ctx context.Context, sess *Session, body string) {
	room := sess.Room()
	if room == nil {
		return
	}
	frame := protocol.BuildChatWrap(sess.Slot(), "9"+body)

	var broken []*Session
	reg.mu.Lock()
	for _, m := range room.Members() {
		reg.send(m, frame, &broken)
	}
	reg.mu.Unlock()
	reg.teardown(ctx, broken)
}

// EchoPing answers a latency probe to the sender only, wrapped like a chat
// line from the sender itself.
func (reg *Registry) EchoPing(ctx context.Context, sess *Session, body string) {
	frame := protocol.BuildChatWrap(sess.Slot(), "9?"+body)
	var broken []*Session
	reg.mu.Lock()
	reg.send(sess, frame, &broken)
	reg.mu.Unlock()
	reg.teardown(ctx, broken)
}

// RelayDirect delivers a point-to-point payload to the target slot, tagged
// with the sender. Direct messages cross room boundaries; an offline target
// is dropped silently.
func (reg *Registry) RelayDirect(ctx context.Context, sess *Session, targetWire, payload string) {
	target, err := strconv.Atoi(targetWire)
	if err != nil {
		return
	}
	frame := protocol.BuildChatWrap(sess.Slot(), payload)

	var broken []*Session
	reg.mu.Lock()
	if peer := reg.sessions[target]; peer != nil {
		reg.send(peer, frame, &broken)
	} else {
		reg.logger.Debug().Str("target", targetWire).Msg("direct message to offline slot dropped")
	}
	reg.mu.Unlock()
	reg.teardown(ctx, broken)
}

// Reannounce replays the sender's arrival and appearance packets to its room
// peers, used after a client changes customization.
func (reg *Registry) Reannounce(ctx context.Context, sess *Session) {
	room := sess.Room()
	if room == nil {
		return
	}
	s := sess.Slot()

	var broken []*Session
	reg.mu.Lock()
	for _, peer := range room.Members() {
		if peer == sess {
			continue
		}
		reg.send(peer, protocol.BuildPeerJoined(s), &broken)
		reg.send(peer, protocol.BuildGameUser(s), &broken)
	}
	reg.mu.Unlock()
	reg.teardown(ctx, broken)
}

// SyncRoundTimer answers a timer query: the remaining time goes back to the
// sender and the bare query is relayed to the peers so their clients stay in
// step.
func (reg *Registry) SyncRoundTimer(ctx context.Context, sess *Session, raw string) {
	room := sess.Room()
	if room == nil {
		return
	}

	var broken []*Session
	reg.mu.Lock()
	reg.send(sess, protocol.BuildRoundTimer(room.Remaining(timeNow())), &broken)
	frame := make([]byte, len(raw)+1)
	copy(frame, raw)
	frame[len(frame)-1] = protocol.Terminator
	for _, peer := range room.Members() {
		if peer != sess {
			reg.send(peer, frame, &broken)
		}
	}
	reg.mu.Unlock()
	reg.teardown(ctx, broken)
}

// relayToPeers fans a frame out to everyone in the room except the sender.
func (reg *Registry) relayToPeers(ctx context.Context, sess *Session, room *Room, frame []byte) {
	var broken []*Session
	reg.mu.Lock()
	for _, peer := range room.Members() {
		if peer != sess {
			reg.send(peer, frame, &broken)
		}
	}
	reg.mu.Unlock()
	reg.teardown(ctx, broken)
}
