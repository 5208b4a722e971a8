// Package server adapts gorilla WebSocket connections to the chat.Stream
// contract, handling read deadlines, keepalive pings and close frames.
package server

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/radon/internal/chat"
)

// wsStream is a chat.Stream over a gorilla connection. ReadFrame and
// WriteText each have a single caller (the session); pings and close go
// through WriteControl and Close, which gorilla allows concurrently.
type wsStream struct {
	conn           *websocket.Conn
	addr           string
	maxMessageSize int64
	writeTimeout   time.Duration
	pongTimeout    time.Duration
	pingInterval   time.Duration
	log            zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// newWSStream configures conn and starts its keepalive. The stream must be
// closed to stop the keepalive goroutine.
func newWSStream(conn *websocket.Conn, addr string, cfg Config, log zerolog.Logger) *wsStream {
	s := &wsStream{
		conn:           conn,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		writeTimeout:   cfg.WriteTimeout,
		pongTimeout:    cfg.PongTimeout,
		pingInterval:   cfg.PingInterval,
		log:            log,
		done:           make(chan struct{}),
	}
	conn.SetReadLimit(cfg.MaxMessageSize)
	s.setupReadConnection()
	go s.keepalive()
	return s
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (s *wsStream) setupReadConnection() {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout)); err != nil {
		s.log.Debug().Err(err).Msg("Error setting initial read deadline")
	}
	s.conn.SetPongHandler(func(string) error {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout)); err != nil {
			s.log.Debug().Err(err).Msg("Error setting read deadline in pong handler")
		}
		return nil
	})
}

// ReadFrame returns the next data message. Control frames are handled by
// gorilla's handlers and never surface here.
func (s *wsStream) ReadFrame() (chat.Frame, error) {
	messageType, payload, err := s.conn.ReadMessage()
	if err != nil {
		return chat.Frame{}, s.classifyReadError(err)
	}

	if messageType != websocket.TextMessage {
		return chat.Frame{Kind: chat.FrameBinary}, nil
	}
	return chat.Frame{Kind: chat.FrameText, Text: string(payload)}, nil
}

// classifyReadError logs read failures by kind and wraps them around
// chat.ErrStreamClosed.
func (s *wsStream) classifyReadError(err error) error {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.log.Info().Int64("limit", s.maxMessageSize).Msg("Message exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		s.log.Debug().Err(err).Msg("Client disconnected")
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || isExpectedCloseError(err) || s.isClosed():
		s.log.Debug().Err(err).Msg("Connection closed")
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		s.log.Warn().Err(err).Msg("Unexpected WebSocket close")
	default:
		s.log.Warn().Err(err).Msg("WebSocket read error")
	}
	return errors.Wrap(chat.ErrStreamClosed, err.Error())
}

// WriteText writes one text frame under the write deadline.
func (s *wsStream) WriteText(text string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return errors.Wrap(chat.ErrStreamClosed, err.Error())
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		if !isExpectedCloseError(err) && !s.isClosed() {
			s.log.Warn().Err(err).Msg("Error writing message")
		}
		return errors.Wrap(chat.ErrStreamClosed, err.Error())
	}
	return nil
}

// Close sends a normal close frame, then closes the connection. Safe to call
// concurrently with ReadFrame and WriteText and more than once.
func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeCloseMessage()
		if cerr := s.conn.Close(); cerr != nil && !isExpectedCloseError(cerr) {
			err = errors.Wrap(cerr, "close websocket")
		}
	})
	return err
}

// writeCloseMessage sends a close frame to the client
func (s *wsStream) writeCloseMessage() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout)); err != nil {
		if !isExpectedCloseError(err) {
			s.log.Debug().Err(err).Msg("Error writing close message")
		}
	}
}

// keepalive pings the peer until the stream is closed.
func (s *wsStream) keepalive() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.handlePing() {
				return
			}
		}
	}
}

// handlePing sends a ping message to keep the connection alive
func (s *wsStream) handlePing() bool {
	deadline := time.Now().Add(s.writeTimeout)
	if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		if !isExpectedCloseError(err) {
			s.log.Debug().Err(err).Msg("Error writing ping message")
		}
		return false
	}
	return true
}

func (s *wsStream) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
