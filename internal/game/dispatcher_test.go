package game

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolerbbh/bbh-server/internal/account"
	"github.com/schoolerbbh/bbh-server/internal/config"
	"github.com/schoolerbbh/bbh-server/internal/util"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Registry) {
	t.Helper()
	store, err := account.NewStore(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	reg := newTestRegistry(t)
	return NewDispatcher(reg, store, 6123), reg
}

func connect(t *testing.T, d *Dispatcher) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	return NewSession(conn), conn
}

func login(t *testing.T, d *Dispatcher, user, pass string) (*Session, *fakeConn) {
	t.Helper()
	sess, conn := connect(t, d)
	d.HandleFrame(context.Background(), sess, "09"+user+";"+pass)
	require.True(t, sess.Authenticated())
	conn.Reset()
	return sess, conn
}

func TestAuthFlowNewAccount(t *testing.T) {
	d, _ := newTestDispatcher(t)
	sess, conn := connect(t, d)

	d.HandleFrame(context.Background(), sess, "09alice;secret")

	hash := util.MD5Hex("secret")
	frames := conn.Frames()
	require.Len(t, frames, 4)
	assert.Equal(t, "00;1", frames[0])
	assert.Equal(t, "10;1;1;alice;alice;"+hash+";1", frames[1])
	assert.Equal(t, "A001", frames[2][:4])
	assert.Equal(t, "0p", frames[3])

	assert.True(t, sess.Authenticated())
	assert.Equal(t, 1, sess.Slot())
	assert.Equal(t, "alice", sess.Username())
}

func TestAuthFlowWrongPassword(t *testing.T) {
	d, _ := newTestDispatcher(t)
	login(t, d, "alice", "secret")

	sess, conn := connect(t, d)
	d.HandleFrame(context.Background(), sess, "09alice;wrong")

	assert.Equal(t, []string{"00;1", "10;0;Incorrect password"}, conn.Frames())
	assert.False(t, sess.Authenticated())
}

func TestAuthFlowBadFormat(t *testing.T) {
	d, _ := newTestDispatcher(t)
	sess, conn := connect(t, d)

	d.HandleFrame(context.Background(), sess, "09noseparator")

	assert.Equal(t, []string{"00;1", "10;0;Bad format"}, conn.Frames())
	assert.False(t, sess.Authenticated())
}

func TestPreAuthPacketsDiscarded(t *testing.T) {
	d, _ := newTestDispatcher(t)
	sess, conn := connect(t, d)
	ctx := context.Background()

	for _, frame := range []string{"01", "03_", "9hello", "1state", "p", "0d"} {
		d.HandleFrame(ctx, sess, frame)
	}
	assert.Empty(t, conn.Frames())
}

func TestPolicyRequestAnsweredPreAuth(t *testing.T) {
	d, _ := newTestDispatcher(t)
	sess, conn := connect(t, d)

	d.HandleFrame(context.Background(), sess, "<policy-file-request/>")

	frames := conn.Frames()
	require.Len(t, frames, 1)
	assert.Contains(t, frames[0], `to-ports="6123"`)
}

func TestChatDeliveredToWholeRoom(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	p1, c1 := login(t, d, "alice", "pw")
	d.HandleFrame(ctx, p1, "03"+config.LobbyName)
	_, c2 := login(t, d, "bob", "pw")
	d.HandleFrame(ctx, d.registry.SessionBySlot(2), "03"+config.LobbyName)
	c1.Reset()
	c2.Reset()

	d.HandleFrame(ctx, p1, "9hello room")

	// The sender gets its own line back, so every client renders it once
	assert.Equal(t, []string{"M0019hello room"}, c1.Frames())
	assert.Equal(t, []string{"M0019hello room"}, c2.Frames())
}

func TestPingProbeEchoedToSenderOnly(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	p1, c1 := login(t, d, "alice", "pw")
	d.HandleFrame(ctx, p1, "03"+config.LobbyName)
	p2, c2 := login(t, d, "bob", "pw")
	d.HandleFrame(ctx, p2, "03"+config.LobbyName)
	c1.Reset()
	c2.Reset()

	d.HandleFrame(ctx, p1, "9?7")

	assert.Equal(t, []string{"M0019?7"}, c1.Frames())
	assert.Empty(t, c2.Frames())
}

func TestStateRelayInjectsSenderSlot(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	p1, c1 := login(t, d, "alice", "pw")
	d.HandleFrame(ctx, p1, "02xxxcool room;A")
	p2, c2 := login(t, d, "bob", "pw")
	d.HandleFrame(ctx, p2, "03cool room")
	c1.Reset()
	c2.Reset()

	d.HandleFrame(ctx, p1, "1moving east")

	assert.Equal(t, []string{"1001moving east"}, c2.Frames())
	assert.Empty(t, c1.Frames())
	assert.Equal(t, "1moving east", p1.LastState())
}

func TestRawRelayForwardedVerbatim(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	p1, c1 := login(t, d, "alice", "pw")
	d.HandleFrame(ctx, p1, "02xxxcool room;A")
	p2, c2 := login(t, d, "bob", "pw")
	d.HandleFrame(ctx, p2, "03cool room")
	c1.Reset()
	c2.Reset()

	d.HandleFrame(ctx, p1, "0k1")

	assert.Equal(t, []string{"0k1"}, c2.Frames())
	assert.Empty(t, c1.Frames())
}

func TestDirectMessageCrossesRooms(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	p1, c1 := login(t, d, "alice", "pw")
	d.HandleFrame(ctx, p1, "02xxxcool room;A")
	p2, c2 := login(t, d, "bob", "pw")
	d.HandleFrame(ctx, p2, "03"+config.LobbyName)
	c1.Reset()
	c2.Reset()

	// Slot 002 is in a different room; direct messages still arrive
	d.HandleFrame(ctx, p1, "000029private line")
	assert.Equal(t, []string{"M0019private line"}, c2.Frames())
	assert.Empty(t, c1.Frames())

	// Offline target drops silently
	c1.Reset()
	d.HandleFrame(ctx, p1, "009429to nobody")
	assert.Empty(t, c1.Frames())
}

func TestTimerQuerySyncsRoom(t *testing.T) {
	freezeTime(t)
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	p1, c1 := login(t, d, "alice", "pw")
	d.HandleFrame(ctx, p1, "02xxxcool room;A")
	p2, c2 := login(t, d, "bob", "pw")
	d.HandleFrame(ctx, p2, "03cool room")
	c1.Reset()
	c2.Reset()

	d.HandleFrame(ctx, p1, "p")

	assert.Equal(t, []string{"p600"}, c1.Frames())
	assert.Equal(t, []string{"p"}, c2.Frames())
}

func TestCustomizeReannouncesToPeers(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	p1, c1 := login(t, d, "alice", "pw")
	d.HandleFrame(ctx, p1, "02xxxcool room;A")
	p2, c2 := login(t, d, "bob", "pw")
	d.HandleFrame(ctx, p2, "03cool room")
	c1.Reset()
	c2.Reset()

	d.HandleFrame(ctx, p1, "0d")

	frames := c2.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "C001", frames[0])
	assert.Equal(t, "U001", frames[1][:4])
	assert.Empty(t, c1.Frames())
}

func TestDisconnectCleansUp(t *testing.T) {
	d, reg := newTestDispatcher(t)
	ctx := context.Background()

	p1, c1 := login(t, d, "alice", "pw")
	d.HandleFrame(ctx, p1, "03"+config.LobbyName)
	p2, _ := login(t, d, "bob", "pw")
	d.HandleFrame(ctx, p2, "03"+config.LobbyName)
	c1.Reset()

	d.HandleDisconnect(ctx, p2)

	assert.Equal(t, []string{"D002"}, c1.Frames())
	assert.Nil(t, reg.SessionBySlot(2))
}

func TestReAuthDropped(t *testing.T) {
	d, _ := newTestDispatcher(t)
	sess, conn := connect(t, d)
	ctx := context.Background()

	d.HandleFrame(ctx, sess, "09alice;pw")
	conn.Reset()

	d.HandleFrame(ctx, sess, "09alice;pw")

	// Only the handshake ack goes out; the live session keeps its identity
	assert.Equal(t, []string{"00;1"}, conn.Frames())
	assert.Equal(t, 1, sess.Slot())
}
