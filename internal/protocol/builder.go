package protocol

import (
	"bytes"
	"fmt"
)

// WireID renders a slot as its zero-padded 3-digit wire identifier.
func WireID(slot int) string {
	return fmt.Sprintf("%03d", slot)
}

// FrameBuilder assembles outbound frames, appending the terminator on Build.
type FrameBuilder struct {
	buf bytes.Buffer
}

// NewFrameBuilder creates a new FrameBuilder.
func NewFrameBuilder() *FrameBuilder {
	return &FrameBuilder{}
}

// WriteString appends raw text to the frame.
func (b *FrameBuilder) WriteString(s string) *FrameBuilder {
	b.buf.WriteString(s)
	return b
}

// WriteWireID appends a slot's 3-digit wire identifier.
func (b *FrameBuilder) WriteWireID(slot int) *FrameBuilder {
	fmt.Fprintf(&b.buf, "%03d", slot)
	return b
}

// Build returns the frame bytes including the terminator.
func (b *FrameBuilder) Build() []byte {
	out := make([]byte, b.buf.Len()+1)
	copy(out, b.buf.Bytes())
	out[len(out)-1] = Terminator
	return out
}

// frame terminates a formatted string.
func frame(format string, args ...interface{}) []byte {
	s := fmt.Sprintf(format, args...)
	out := make([]byte, len(s)+1)
	copy(out, s)
	out[len(out)-1] = Terminator
	return out
}

// padName renders a display name as '#' plus the name left-padded to a fixed
// total width, truncated if necessary. The client reads these as fixed-width
// fields.
func padName(name string, total int) string {
	s := fmt.Sprintf("#%-*s", total-1, name)
	return s[:total]
}

// authStats is the 6-field stat block the client expects on the identity
// packet. Real per-account stats are tracked out of band; the client only
// requires the field count.
const authStats = "1;1;1;1;1;1"

// gameUserBlob is the fixed-length appearance/stat blob for in-room
// handshakes: team, score, head model/color, gender, body model/color,
// level, then kills;deaths;assists;cash.
const gameUserBlob = "00" + "000" + "00000" + "00000" + "0" + "00" + "00" + "0" + "0;0;0;10000;"

// ---- Session / authentication ----

// BuildHandshakeAck is sent immediately after an auth request is received.
func BuildHandshakeAck() []byte {
	return frame("00;1")
}

// BuildLoginAccepted acknowledges a successful authentication.
func BuildLoginAccepted(accountID int, username, passwordHash string) []byte {
	return frame("10;1;%d;%s;%s;%s;1", accountID, username, username, passwordHash)
}

// BuildLoginRejected reports a failed authentication; the connection stays open.
func BuildLoginRejected(reason string) []byte {
	return frame("10;0;%s", reason)
}

// BuildAuthIdentity is the authenticated-identity packet: wire slot plus the
// padded display name and stat block.
func BuildAuthIdentity(slot int, username string) []byte {
	return frame("A%03d%s%s", slot, padName(username, 20), authStats)
}

// BuildReadyMarker signals the client that login processing is complete.
func BuildReadyMarker() []byte {
	return frame("0p")
}

// ---- Room membership ----

// BuildPeerJoined announces an identity (self or peer) entering a room.
func BuildPeerJoined(slot int) []byte {
	return frame("C%03d", slot)
}

// BuildPeerDeparted announces a peer leaving a room.
func BuildPeerDeparted(slot int) []byte {
	return frame("D%03d", slot)
}

// BuildLobbyUser is the appearance/stat handshake shown in the lobby user
// list: padded display name plus the stat block.
func BuildLobbyUser(slot int, username string) []byte {
	return frame("U%03d%s%s", slot, padName(username, 21), authStats)
}

// BuildGameUser is the in-room appearance/stat handshake.
func BuildGameUser(slot int) []byte {
	return frame("U%03d%s", slot, gameUserBlob)
}

// BuildSpawnReady signals that a player's avatar may be spawned.
func BuildSpawnReady(slot int) []byte {
	return frame("6%03d100000000000", slot)
}

// BuildRoundInit, BuildGameStart and BuildInitDone form the three-packet
// initialization sequence sent to a client entering a game room.
func BuildRoundInit(slot int) []byte { return frame("R%03d", slot) }
func BuildGameStart(slot int) []byte { return frame("G%03d", slot) }
func BuildInitDone(slot int) []byte  { return frame("I%03d", slot) }

// ---- Room browsing ----

// RoomListEntry is one row of the occupancy summary sent to lobby members.
type RoomListEntry struct {
	Name    string
	Members int
}

// BuildRoomList renders the non-lobby room occupancy summary.
func BuildRoomList(entries []RoomListEntry) []byte {
	b := NewFrameBuilder()
	b.WriteString(OpRoomList)
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("%02d%s;", e.Members, e.Name))
	}
	return b.Build()
}

// BuildRoomInfo renders a room-info response: game type, custom-map flag,
// first map code, player count and remaining round seconds, all fixed width.
func BuildRoomInfo(mapCode byte, players, remainingSec int) []byte {
	return frame("0410%c%02d%03d", mapCode, players, remainingSec)
}

// ---- In-room traffic ----

// BuildChatWrap wraps a chat or direct-message payload with the sender's
// identity tag.
func BuildChatWrap(senderSlot int, payload string) []byte {
	return frame("M%03d%s", senderSlot, payload)
}

// BuildStateRelay injects the sender's wire slot between a state packet's
// opcode and its payload. The payload is opaque and copied verbatim.
func BuildStateRelay(opcode byte, senderSlot int, body string) []byte {
	return frame("%c%03d%s", opcode, senderSlot, body)
}

// BuildRoundTimer renders a round-timer sync with the remaining seconds.
func BuildRoundTimer(remainingSec int) []byte {
	return frame("p%d", remainingSec)
}

// BuildSettings echoes a room's raw settings string to a joining client.
func BuildSettings(settings string) []byte {
	return frame("s%s", settings)
}

// ---- Out-of-band ----

// BuildPolicyResponse answers the Flash cross-domain probe for the given
// listener port.
func BuildPolicyResponse(port int) []byte {
	return frame(`<?xml version="1.0"?><cross-domain-policy><allow-access-from domain="*" to-ports="%d"/></cross-domain-policy>`, port)
}
