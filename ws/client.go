package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one live subscription to a session's feed. Events are only
// pushed server -> client, anything the peer sends besides pongs is
// ignored.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	SessionID string

	sync []byte
}

// NewClient registers a connection with the hub. Deltas start queueing in
// Send immediately; nothing is written to the peer until Run. Callers
// must build the sync snapshot after this call, so an event racing the
// snapshot query is either in the snapshot or queued as a delta, never
// lost in between.
func NewClient(h *Hub, conn *websocket.Conn, sessionID string) *Client {
	c := &Client{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, 64),
		SessionID: sessionID,
	}

	h.register <- c
	return c
}

// Run starts the pumps. The sync frame is written before anything queued
// in Send, so subscribers always see sync first; a delta that also made it
// into the snapshot arrives twice, which sync-as-reset tolerates.
func (c *Client) Run(sync *Event) {
	if sync != nil {
		if payload, err := json.Marshal(sync); err == nil {
			c.sync = payload
		}
	}

	go c.WritePump()
	go c.ReadPump()
}

// Close releases the subscription without starting the pumps. For callers
// that registered but can't serve the connection after all.
func (c *Client) Close() {
	c.Hub.unregister <- c
	c.Conn.Close()
}

// ReadPump drains the connection until the client goes away and then
// releases the subscription. Running it is what keeps the read deadline
// alive.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("Subscriber read error", zap.Error(err))
			}
			break
		}
	}
}

// WritePump pumps queued events to the connection and keeps it alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	if c.sync != nil {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, c.sync); err != nil {
			return
		}
	}

	for {
		select {
		case payload, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
