package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tablewise/floorstaff-backend/pkg/config"
	"github.com/tablewise/floorstaff-backend/pkg/logger"
)

// Client pumps one WebSocket connection for a registered session. Reads are
// discarded; the channel is broadcast-only, inbound frames just keep the
// connection's read deadline fresh.
type Client struct {
	hub     *Hub
	session *Session
	conn    *websocket.Conn
	logg    *logger.Logger
	cfg     config.RealtimeConfig
}

// NewClient binds a connection to a hub session.
func NewClient(hub *Hub, session *Session, conn *websocket.Conn, logg *logger.Logger, cfg config.RealtimeConfig) *Client {
	return &Client{hub: hub, session: session, conn: conn, logg: logg, cfg: cfg}
}

// Run registers the session and serves both pumps until the connection
// drops. Blocks until the read pump exits.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c.session)
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c.session)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(c.cfg.ReadLimitBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logg.Warn(c.logg.WithField(ctx, "session_id", c.session.ID.String()), "websocket closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	pingInterval := c.cfg.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-c.session.Outbound():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
