package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramerPartialFrames(t *testing.T) {
	var f Framer

	frames, err := f.Push([]byte("ab"))
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Equal(t, 2, f.Pending())

	frames, err = f.Push([]byte("c\x00de\x00f"))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "de"}, frames)
	assert.Equal(t, 1, f.Pending())

	frames, err = f.Push([]byte("\x00"))
	require.NoError(t, err)
	assert.Equal(t, []string{"f"}, frames)
	assert.Equal(t, 0, f.Pending())
}

func TestFramerSkipsEmptyFrames(t *testing.T) {
	var f Framer

	frames, err := f.Push([]byte("\x00\x00hi\x00\x00"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, frames)
}

func TestFramerOversizedFrame(t *testing.T) {
	var f Framer

	_, err := f.Push([]byte(strings.Repeat("x", MaxFrameSize+1)))
	assert.Error(t, err)
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Kind
	}{
		{"policy request", PolicyRequest, KindPolicyRequest},
		{"auth", "09alice;secret", KindAuth},
		{"join room", "03cool room", KindJoinRoom},
		{"join lobby", "03_", KindJoinRoom},
		{"room list", "01", KindRoomList},
		{"room info", "04cool room", KindRoomInfo},
		{"create room", "02xyzcool room;AB", KindCreateRoom},
		{"customize", "0d", KindCustomize},
		{"direct message", "000429hello", KindDirect},
		{"raw relay 0k", "0k1", KindRawRelay},
		{"raw relay 0q", "0q", KindRawRelay},
		{"ping probe", "9?3", KindPingProbe},
		{"chat", "9hello there", KindChat},
		{"timer query", "p", KindTimerQuery},
		{"movement state", "1x2y3", KindState},
		{"pose state", "8abc", KindState},
		{"fire state", "4abc", KindState},
		{"spawn state", "6abc", KindState},
		{"death state", "7abc", KindState},
		{"unknown", "zzz", KindUnknown},
		{"empty", "", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt, err := Parse(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pkt.Kind)
		})
	}
}

func TestParseAuthFields(t *testing.T) {
	pkt, err := Parse("09alice;se;cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", pkt.Username)
	// Only the first separator splits; passwords may contain semicolons
	assert.Equal(t, "se;cret", pkt.Password)

	pkt, err = Parse("09alice")
	assert.ErrorIs(t, err, ErrMalformedPacket)
	assert.Equal(t, KindAuth, pkt.Kind)

	_, err = Parse("09;secret")
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestParseCreateRoomFields(t *testing.T) {
	pkt, err := Parse("02xyzcool room;ABC")
	require.NoError(t, err)
	assert.Equal(t, "xyz", pkt.Header)
	assert.Equal(t, "cool room", pkt.Room)
	assert.Equal(t, "ABC", pkt.Settings)

	_, err = Parse("02xyznosettings")
	assert.ErrorIs(t, err, ErrMalformedPacket)

	_, err = Parse("02x")
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestParseDirectFields(t *testing.T) {
	pkt, err := Parse("000429some payload")
	require.NoError(t, err)
	assert.Equal(t, "042", pkt.TargetWire)
	assert.Equal(t, "9some payload", pkt.Body)

	// Target must be numeric
	_, err = Parse("00abc9hello")
	assert.ErrorIs(t, err, ErrMalformedPacket)

	// Payload must carry the chat marker
	_, err = Parse("00042xhello")
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestParseStateCacheability(t *testing.T) {
	for _, frame := range []string{"1move", "8pose"} {
		pkt, err := Parse(frame)
		require.NoError(t, err)
		assert.True(t, pkt.Cacheable, frame)
		assert.Equal(t, frame[0], pkt.Opcode)
		assert.Equal(t, frame[1:], pkt.Body)
	}

	for _, frame := range []string{"4fire", "6spawn", "7death"} {
		pkt, err := Parse(frame)
		require.NoError(t, err)
		assert.False(t, pkt.Cacheable, frame)
	}
}

func TestParseRoomNameNormalization(t *testing.T) {
	pkt, err := Parse("03cool room  \x00")
	require.NoError(t, err)
	assert.Equal(t, "cool room", pkt.Room)
}

func TestRequiresAuth(t *testing.T) {
	assert.False(t, KindPolicyRequest.RequiresAuth())
	assert.False(t, KindAuth.RequiresAuth())
	assert.False(t, KindUnknown.RequiresAuth())

	for _, k := range []Kind{KindJoinRoom, KindCreateRoom, KindRoomList, KindState, KindChat, KindDirect, KindTimerQuery} {
		assert.True(t, k.RequiresAuth(), k.String())
	}
}
