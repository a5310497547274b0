package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

// Framer splits a byte stream into NUL-terminated frames. A partial frame at
// the end of a read is retained and prefixed to the next read; no frame is
// surfaced before its terminator arrives.
type Framer struct {
	buf []byte
}

// Push appends data to the buffer and returns every complete frame now
// available, in arrival order, without their terminators. It returns an error
// when the unterminated tail exceeds MaxFrameSize.
func (f *Framer) Push(data []byte) ([]string, error) {
	f.buf = append(f.buf, data...)

	var frames []string
	for {
		i := bytes.IndexByte(f.buf, Terminator)
		if i < 0 {
			break
		}
		if i > 0 {
			frames = append(frames, string(f.buf[:i]))
		}
		f.buf = f.buf[i+1:]
	}

	if len(f.buf) > MaxFrameSize {
		return frames, fmt.Errorf("unterminated frame exceeds %d bytes", MaxFrameSize)
	}
	return frames, nil
}

// Pending returns the number of buffered bytes awaiting a terminator.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// NormalizeRoomName strips trailing whitespace and stray NULs from a
// client-supplied room name.
func NormalizeRoomName(name string) string {
	return strings.TrimRight(strings.TrimRight(name, "\x00"), " ")
}

// Parse classifies one de-framed packet into its kind and extracts the
// opcode-specific fields. Unrecognized frames come back as KindUnknown with
// a nil error; the dispatcher logs and drops them. ErrMalformedPacket is
// returned when a recognized opcode has an unparsable body.
func Parse(frame string) (Packet, error) {
	p := Packet{Raw: frame}
	if frame == "" {
		p.Kind = KindUnknown
		return p, nil
	}

	if frame == PolicyRequest {
		p.Kind = KindPolicyRequest
		return p, nil
	}

	switch {
	case strings.HasPrefix(frame, OpAuth):
		p.Kind = KindAuth
		creds := frame[2:]
		sep := strings.Index(creds, ";")
		if sep < 0 {
			return p, fmt.Errorf("%w: auth without separator", ErrMalformedPacket)
		}
		p.Username = creds[:sep]
		p.Password = creds[sep+1:]
		if p.Username == "" {
			return p, fmt.Errorf("%w: empty username", ErrMalformedPacket)
		}
		return p, nil

	case strings.HasPrefix(frame, OpJoinRoom):
		p.Kind = KindJoinRoom
		p.Room = NormalizeRoomName(frame[2:])
		if p.Room == "" {
			return p, fmt.Errorf("%w: empty room name", ErrMalformedPacket)
		}
		return p, nil

	case frame == OpRoomList:
		p.Kind = KindRoomList
		return p, nil

	case strings.HasPrefix(frame, OpRoomInfo):
		p.Kind = KindRoomInfo
		p.Room = NormalizeRoomName(frame[2:])
		return p, nil

	case strings.HasPrefix(frame, OpCreateRoom):
		// 02<header3><room>;<settings>
		body := frame[2:]
		if len(body) < 4 {
			return p, fmt.Errorf("%w: create-room body too short", ErrMalformedPacket)
		}
		p.Header = body[:3]
		rest := body[3:]
		sep := strings.Index(rest, ";")
		if sep < 0 {
			return p, fmt.Errorf("%w: create-room without settings", ErrMalformedPacket)
		}
		p.Kind = KindCreateRoom
		p.Room = NormalizeRoomName(rest[:sep])
		p.Settings = strings.TrimSpace(strings.TrimRight(rest[sep+1:], "\x00"))
		if p.Room == "" {
			return p, fmt.Errorf("%w: empty room name", ErrMalformedPacket)
		}
		return p, nil

	case strings.HasPrefix(frame, OpCustomize):
		p.Kind = KindCustomize
		return p, nil

	case strings.HasPrefix(frame, OpDirect):
		// 00<target3><payload>; the payload must itself be a chat-class
		// frame, the client uses this channel for encrypted state sync.
		body := frame[2:]
		if len(body) < 4 {
			return p, fmt.Errorf("%w: direct message too short", ErrMalformedPacket)
		}
		target := body[:3]
		if !isDigits(target) {
			return p, fmt.Errorf("%w: direct target %q not numeric", ErrMalformedPacket, target)
		}
		if body[3] != '9' {
			return p, fmt.Errorf("%w: direct payload missing chat marker", ErrMalformedPacket)
		}
		p.Kind = KindDirect
		p.TargetWire = target
		p.Body = body[3:]
		return p, nil

	case strings.HasPrefix(frame, "0k"), strings.HasPrefix(frame, "0q"):
		p.Kind = KindRawRelay
		return p, nil

	case strings.HasPrefix(frame, "9?"):
		p.Kind = KindPingProbe
		p.Body = frame[2:]
		return p, nil

	case frame[0] == '9':
		p.Kind = KindChat
		p.Body = frame[1:]
		return p, nil

	case frame == OpTimer:
		p.Kind = KindTimerQuery
		return p, nil

	case frame[0] == '1', frame[0] == '8':
		// Movement/pose: cached on the session so late joiners see the
		// sender's last known state immediately.
		p.Kind = KindState
		p.Opcode = frame[0]
		p.Body = frame[1:]
		p.Cacheable = true
		return p, nil

	case frame[0] == '4', frame[0] == '6', frame[0] == '7':
		// Fire / spawn-ready / death: relayed with sender injection but
		// never replayed to late joiners.
		p.Kind = KindState
		p.Opcode = frame[0]
		p.Body = frame[1:]
		return p, nil
	}

	p.Kind = KindUnknown
	return p, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
