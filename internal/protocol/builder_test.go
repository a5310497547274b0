package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// text strips the terminator for readable comparisons.
func text(t *testing.T, frame []byte) string {
	t.Helper()
	assert.NotEmpty(t, frame)
	assert.Equal(t, Terminator, frame[len(frame)-1])
	return string(frame[:len(frame)-1])
}

func TestWireID(t *testing.T) {
	assert.Equal(t, "001", WireID(1))
	assert.Equal(t, "042", WireID(42))
	assert.Equal(t, "999", WireID(999))
}

func TestBuildAuthSequence(t *testing.T) {
	assert.Equal(t, "00;1", text(t, BuildHandshakeAck()))
	assert.Equal(t, "10;1;7;alice;alice;abc123;1", text(t, BuildLoginAccepted(7, "alice", "abc123")))
	assert.Equal(t, "10;0;Incorrect password", text(t, BuildLoginRejected("Incorrect password")))
	assert.Equal(t, "0p", text(t, BuildReadyMarker()))
}

func TestBuildAuthIdentityPadding(t *testing.T) {
	got := text(t, BuildAuthIdentity(1, "alice"))
	// A + slot(3) + name field(20) + stats
	assert.Equal(t, "A001#alice"+strings.Repeat(" ", 14)+"1;1;1;1;1;1", got)
	assert.Len(t, got, 4+20+11)

	// Long names are truncated to the fixed field width
	long := text(t, BuildAuthIdentity(2, "averyveryverylongusername"))
	assert.Equal(t, "A002#averyveryverylongus1;1;1;1;1;1", long)
	assert.Len(t, long, 4+20+11)
}

func TestBuildLobbyUserPadding(t *testing.T) {
	got := text(t, BuildLobbyUser(3, "bob"))
	// U + slot(3) + name field(21) + stats
	assert.Equal(t, "U003#bob"+strings.Repeat(" ", 17)+"1;1;1;1;1;1", got)
	assert.Len(t, got, 4+21+11)
}

func TestBuildGameUser(t *testing.T) {
	got := text(t, BuildGameUser(5))
	assert.Equal(t, "U005"+strings.Repeat("0", 21)+"0;0;0;10000;", got)
}

func TestBuildMembershipPackets(t *testing.T) {
	assert.Equal(t, "C007", text(t, BuildPeerJoined(7)))
	assert.Equal(t, "D007", text(t, BuildPeerDeparted(7)))
	assert.Equal(t, "R012", text(t, BuildRoundInit(12)))
	assert.Equal(t, "G012", text(t, BuildGameStart(12)))
	assert.Equal(t, "I012", text(t, BuildInitDone(12)))
	assert.Equal(t, "6012100000000000", text(t, BuildSpawnReady(12)))
}

func TestBuildRoomList(t *testing.T) {
	assert.Equal(t, "01", text(t, BuildRoomList(nil)))

	got := text(t, BuildRoomList([]RoomListEntry{
		{Name: "cool room", Members: 3},
		{Name: "empty", Members: 0},
	}))
	assert.Equal(t, "0103cool room;00empty;", got)
}

func TestBuildRoomInfo(t *testing.T) {
	assert.Equal(t, "0410A02057", text(t, BuildRoomInfo('A', 2, 57)))
	assert.Equal(t, "0410G10600", text(t, BuildRoomInfo('G', 10, 600)))
}

func TestBuildRelayPackets(t *testing.T) {
	assert.Equal(t, "1005xyz", text(t, BuildStateRelay('1', 5, "xyz")))
	assert.Equal(t, "8042", text(t, BuildStateRelay('8', 42, "")))
	assert.Equal(t, "M0129hello", text(t, BuildChatWrap(12, "9hello")))
	assert.Equal(t, "p583", text(t, BuildRoundTimer(583)))
	assert.Equal(t, "sABC", text(t, BuildSettings("ABC")))
}

func TestBuildPolicyResponse(t *testing.T) {
	got := text(t, BuildPolicyResponse(6123))
	assert.Contains(t, got, `to-ports="6123"`)
	assert.Contains(t, got, "<cross-domain-policy>")
}

func TestFrameBuilder(t *testing.T) {
	frame := NewFrameBuilder().WriteString("M").WriteWireID(7).WriteString("9hi").Build()
	assert.Equal(t, "M0079hi", text(t, frame))
}
