package httpserver

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/protocol"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

const closeWriteTimeout = time.Second

// handleWebSocket holds one chat session for the lifetime of the socket.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader already answered the client.
		s.log.Debug("WebSocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()
	if s.options.MaxFrameBytes > 0 {
		conn.SetReadLimit(s.options.MaxFrameBytes)
	}

	ws := &wsConnection{conn: conn, codec: s.codec, clock: s.clock, writeTimeout: s.options.WriteTimeout}
	closeCode, reason := websocket.CloseNormalClosure, ""
	if err := s.relay.Serve(s.ctx, ws); err != nil {
		s.log.Warn("WebSocket session ended with error", "remote", c.RealIP(), "error", err)
		closeCode, reason = websocket.CloseInternalServerErr, errors.Code(err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeCode, reason),
		s.clock.Now().Add(closeWriteTimeout))
	return nil
}

type wsConnection struct {
	conn         *websocket.Conn
	codec        *protocol.Codec
	clock        clockwork.Clock
	writeTimeout time.Duration
}

func (c *wsConnection) Receive() (protocol.InboundFrame, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
			return protocol.InboundFrame{}, io.EOF
		}
		return protocol.InboundFrame{}, err
	}
	if messageType != websocket.TextMessage {
		return protocol.InboundFrame{}, fmt.Errorf("%w: text frames only", errors.ErrInvalidPayload)
	}
	return c.codec.Decode(data)
}

func (c *wsConnection) Send(e event.DomainEvent) error {
	data, err := protocol.Encode(e)
	if err != nil {
		return err
	}
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(c.clock.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
