package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/schoolerbbh/bbh-server/internal/config"
	"github.com/schoolerbbh/bbh-server/internal/game"
	"github.com/schoolerbbh/bbh-server/internal/protocol"
)

// TCPListener accepts game client connections. Every client gets its own
// goroutine running the read/de-frame/dispatch loop; all cross-client
// coordination happens inside the game registry.
type TCPListener struct {
	cfg        *config.Config
	dispatcher *game.Dispatcher
	listener   net.Listener
}

// NewTCPListener creates a new TCP listener.
func NewTCPListener(cfg *config.Config, dispatcher *game.Dispatcher) *TCPListener {
	return &TCPListener{
		cfg:        cfg,
		dispatcher: dispatcher,
	}
}

// Start binds the game port and accepts connections until the context is
// cancelled.
func (l *TCPListener) Start(ctx context.Context) error {
	gd := l.cfg.GetGameData()
	addr := fmt.Sprintf("%s:%d", gd.Host, gd.Port)

	// Use SO_REUSEADDR to allow immediate rebinding after restart
	lc := ReuseAddrListenConfig()
	var err error
	l.listener, err = lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP listener on %s: %w", addr, err)
	}

	log.Info().Str("addr", addr).Msg("game listener started")

	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info().Msg("game listener stopping")
				return nil
			default:
				log.Error().Err(err).Msg("failed to accept connection")
				continue
			}
		}

		log.Debug().
			Str("remote", conn.RemoteAddr().String()).
			Msg("new client connection")

		go l.handleConnection(ctx, conn)
	}
}

// handleConnection runs one client's lifetime: read bytes, de-frame, hand
// each packet to the dispatcher, and run disconnect cleanup on the way out.
func (l *TCPListener) handleConnection(ctx context.Context, rawConn net.Conn) {
	conn := NewConnection(rawConn)
	sess := game.NewSession(conn)

	logger := log.With().
		Str("component", "tcp_handler").
		Str("remote", rawConn.RemoteAddr().String()).
		Logger()

	defer func() {
		conn.Close()
		l.dispatcher.HandleDisconnect(ctx, sess)
		logger.Debug().Str("player", sess.Username()).Msg("client disconnected")
	}()

	var framer protocol.Framer
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("context cancelled, closing connection")
			return
		default:
		}

		n, err := conn.Read(buf)
		if err != nil {
			if conn.IsClosed() || errors.Is(err, io.EOF) {
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				logger.Warn().Msg("connection timed out, closing")
				return
			}
			logger.Debug().Err(err).Msg("read error, closing connection")
			return
		}

		frames, err := framer.Push(buf[:n])
		if err != nil {
			logger.Warn().Err(err).Msg("oversized frame, closing connection")
			return
		}

		for _, frame := range frames {
			l.dispatcher.HandleFrame(ctx, sess, frame)
		}
	}
}

// Stop gracefully stops the TCP listener.
func (l *TCPListener) Stop() error {
	if l.listener != nil {
		return l.listener.Close()
	}
	return nil
}
