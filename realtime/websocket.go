// websocket.go - WebSocket transport for the hub

package realtime

import (
	"net/http"
	"strings"
	"time"

	"cima-backend/logging"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// NewUpgrader accepts same-origin requests, requests without an Origin
// header, and the listed origins. "*" allows any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || strings.HasSuffix(origin, "://"+r.Host) {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

type wsClient struct {
	hub     *Hub
	sub     *Subscriber
	conn    *websocket.Conn
	replies chan Message
}

// ServeWebSocket upgrades the request and streams hub events to the client.
// The subscriber is registered before the handshake completes, so any
// broadcast that happens after the client sees the 101 response reaches it.
func (h *Hub) ServeWebSocket(upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := h.Subscribe()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.Unsubscribe(sub)
			logging.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		c := &wsClient{hub: h, sub: sub, conn: conn, replies: make(chan Message, 4)}
		go c.writePump()
		go c.readPump()
	}
}

// readPump only services control traffic; clients never publish events.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		if msg.Type == EventPing {
			select {
			case c.replies <- Message{Type: EventPong}:
			default:
			}
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.Messages():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case msg := <-c.replies:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
