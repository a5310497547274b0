// Package protocol implements the legacy NUL-terminated wire protocol spoken
// by the game client: stream de-framing, inbound packet classification into a
// closed set of kinds, and builders for every outbound packet. Frames are
// ASCII-like text with fixed-width numeric subfields; the payload of gameplay
// opcodes is treated as opaque bytes and never reinterpreted.
package protocol

import "errors"

// Terminator is the reserved sentinel byte ending every frame.
const Terminator byte = 0x00

// MaxFrameSize bounds the de-framing buffer. A client that streams this much
// data without a terminator is not speaking the protocol.
const MaxFrameSize = 8192

// PolicyRequest is the Flash cross-domain probe. It is answered immediately,
// before and independent of authentication.
const PolicyRequest = "<policy-file-request/>"

// Client-to-server opcode prefixes.
const (
	OpAuth       = "09" // 09<username>;<password>
	OpCreateRoom = "02" // 02<header3><room>;<settings>
	OpJoinRoom   = "03" // 03<room>
	OpRoomList   = "01"
	OpRoomInfo   = "04" // 04<room>
	OpDirect     = "00" // 00<target-slot3><payload>
	OpCustomize  = "0d"
	OpTimer      = "p"
)

// Kind classifies an inbound frame. The relay's rewrite behavior is decided
// entirely by the kind, never by payload content.
type Kind int

const (
	KindUnknown Kind = iota
	KindPolicyRequest
	KindAuth
	KindJoinRoom
	KindCreateRoom
	KindRoomList
	KindRoomInfo
	KindState     // movement/state/spawn opcodes: sender slot injected on relay
	KindRawRelay  // short control opcodes forwarded intact to room peers
	KindPingProbe // 9?<idx>, echoed to the sender only
	KindChat      // 9<payload>, wrapped as M<slot>9<payload>
	KindDirect    // point-to-point, cross-room
	KindCustomize // re-announce identity + appearance to room peers
	KindTimerQuery
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindPolicyRequest: "policy_request",
	KindAuth:          "auth",
	KindJoinRoom:      "join_room",
	KindCreateRoom:    "create_room",
	KindRoomList:      "room_list",
	KindRoomInfo:      "room_info",
	KindState:         "state",
	KindRawRelay:      "raw_relay",
	KindPingProbe:     "ping_probe",
	KindChat:          "chat",
	KindDirect:        "direct",
	KindCustomize:     "customize",
	KindTimerQuery:    "timer_query",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// RequiresAuth reports whether a packet of this kind may only be processed on
// an authenticated session. Anything else arriving pre-auth is silently
// discarded; the client probes with gameplay packets before the handshake
// completes.
func (k Kind) RequiresAuth() bool {
	switch k {
	case KindPolicyRequest, KindAuth, KindUnknown:
		return false
	}
	return true
}

// Packet is one decoded inbound frame.
type Packet struct {
	Kind Kind
	Raw  string // full frame without the terminator

	// Auth
	Username string
	Password string

	// Rooms
	Room     string
	Header   string // opaque 3-char create-room header (game type flags)
	Settings string

	// Relay
	Opcode     byte   // leading opcode character for state packets
	Body       string // payload after the opcode prefix
	TargetWire string // 3-digit target slot for direct messages

	// Cacheable marks state packets whose raw frame is retained on the
	// session for late-joiner replay (movement/pose opcodes only).
	Cacheable bool
}

// ErrMalformedPacket reports an unparsable opcode body. The packet is dropped
// and the connection stays open.
var ErrMalformedPacket = errors.New("malformed packet")
