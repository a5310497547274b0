package game

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/schoolerbbh/bbh-server/internal/account"
	"github.com/schoolerbbh/bbh-server/internal/protocol"
	"github.com/schoolerbbh/bbh-server/internal/util"
)

// Dispatcher routes decoded packets to the registry. One instance serves all
// connections; per-session state lives on the Session.
type Dispatcher struct {
	registry *Registry
	accounts *account.Store
	gamePort int
	logger   zerolog.Logger
}

// NewDispatcher wires the dispatcher to its registry and account store.
// gamePort is advertised in the cross-domain policy response.
func NewDispatcher(registry *Registry, accounts *account.Store, gamePort int) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		accounts: accounts,
		gamePort: gamePort,
		logger:   util.ComponentLogger("dispatcher"),
	}
}

// HandleFrame processes one de-framed packet from a session. Errors are
// protocol-level and already handled (logged, or answered with a rejection);
// the connection stays open for everything except transport failures, which
// surface through the registry's teardown path instead.
func (d *Dispatcher) HandleFrame(ctx context.Context, sess *Session, frame string) {
	pkt, err := protocol.Parse(frame)

	if pkt.Kind == protocol.KindAuth {
		d.handleAuth(ctx, sess, pkt, err)
		return
	}
	if err != nil {
		d.logger.Debug().Err(err).Str("kind", pkt.Kind.String()).Msg("dropping malformed packet")
		return
	}

	if pkt.Kind.RequiresAuth() && !sess.Authenticated() {
		d.logger.Debug().Str("kind", pkt.Kind.String()).Str("remote", sess.RemoteAddr()).Msg("dropping pre-auth packet")
		return
	}

	switch pkt.Kind {
	case protocol.KindPolicyRequest:
		if err := sess.Send(protocol.BuildPolicyResponse(d.gamePort)); err != nil {
			_ = sess.Close()
		}

	case protocol.KindJoinRoom:
		d.registry.Join(ctx, sess, pkt.Room)

	case protocol.KindCreateRoom:
		d.registry.Create(ctx, sess, pkt.Room, pkt.Settings)

	case protocol.KindRoomList:
		d.registry.SendRoomList(ctx, sess)

	case protocol.KindRoomInfo:
		d.registry.SendRoomInfo(ctx, sess, pkt.Room)

	case protocol.KindState:
		d.registry.RelayState(ctx, sess, pkt)

	case protocol.KindRawRelay:
		d.registry.RelayRaw(ctx, sess, pkt.Raw)

	case protocol.KindPingProbe:
		d.registry.EchoPing(ctx, sess, pkt.Body)

	case protocol.KindChat:
		d.registry.RelayChat(ctx, sess, pkt.Body)

	case protocol.KindDirect:
		d.registry.RelayDirect(ctx, sess, pkt.TargetWire, pkt.Body)

	case protocol.KindCustomize:
		d.registry.Reannounce(ctx, sess)

	case protocol.KindTimerQuery:
		d.registry.SyncRoundTimer(ctx, sess, pkt.Raw)

	case protocol.KindUnknown:
		d.logger.Debug().Str("frame", truncate(frame, 64)).Msg("dropping unrecognized packet")
	}
}

// HandleDisconnect runs the full cleanup for a closed connection.
func (d *Dispatcher) HandleDisconnect(ctx context.Context, sess *Session) {
	d.registry.Detach(ctx, sess)
}

// handleAuth runs the login handshake. The ack goes out before credential
// checking; the client waits for it before reading the verdict. A rejected
// login leaves the connection open for another attempt.
func (d *Dispatcher) handleAuth(ctx context.Context, sess *Session, pkt protocol.Packet, parseErr error) {
	if err := sess.Send(protocol.BuildHandshakeAck()); err != nil {
		_ = sess.Close()
		return
	}

	if parseErr != nil {
		d.reject(sess, "Bad format")
		return
	}
	if sess.Authenticated() {
		d.logger.Warn().Str("player", sess.Username()).Msg("dropping re-auth on live session")
		return
	}

	acc, err := d.accounts.Authenticate(pkt.Username, pkt.Password)
	if err != nil {
		if errors.Is(err, account.ErrBadCredentials) {
			d.logger.Info().Str("username", pkt.Username).Str("remote", sess.RemoteAddr()).Msg("login rejected")
			d.reject(sess, "Incorrect password")
			return
		}
		d.logger.Error().Err(err).Str("username", pkt.Username).Msg("account store failure during login")
		d.reject(sess, "Incorrect password")
		return
	}

	s, err := d.registry.Attach(ctx, sess, acc)
	if err != nil {
		d.logger.Error().Err(err).Str("username", pkt.Username).Msg("no slot available for login")
		d.reject(sess, "Incorrect password")
		return
	}

	ok := sess.Send(protocol.BuildLoginAccepted(acc.ID, acc.Username, acc.PasswordHash)) == nil &&
		sess.Send(protocol.BuildAuthIdentity(s, acc.Username)) == nil &&
		sess.Send(protocol.BuildReadyMarker()) == nil
	if !ok {
		_ = sess.Close()
		return
	}

	d.logger.Info().Str("username", acc.Username).Int("account_id", acc.ID).Int("slot", s).Msg("login accepted")
}

func (d *Dispatcher) reject(sess *Session, reason string) {
	if err := sess.Send(protocol.BuildLoginRejected(reason)); err != nil {
		_ = sess.Close()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
