package websocket

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
)

// client bridges one websocket connection to a hub subscription
type client struct {
	hub  *Hub
	conn *websocket.Conn
	sub  *Subscription
}

// readPump drains the connection until the peer goes away
func (c *client) readPump() {
	defer c.sub.Cancel()

	// Browser clients handle ping/pong at the protocol level, so no read
	// deadline is set here
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Msg("websocket unexpected close")
			}
			return
		}
		// Messages from clients are ignored
	}
}

// writePump forwards subscription messages to the connection
func (c *client) writePump() {
	defer c.conn.Close()

	for message := range c.sub.C {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))

		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			c.sub.Cancel()
			return
		}
		w.Write(message)

		// Add queued messages to the current websocket message
		n := len(c.sub.C)
		for i := 0; i < n; i++ {
			w.Write([]byte{'\n'})
			w.Write(<-c.sub.C)
		}

		if err := w.Close(); err != nil {
			c.sub.Cancel()
			return
		}
	}

	// The subscription was closed by the hub or by readPump
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeWS handles one websocket connection and blocks until it closes
func ServeWS(hub *Hub, conn *websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	sub := hub.Subscribe(ctx)
	cancel()

	c := &client{hub: hub, conn: conn, sub: sub}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	// Run read pump in current goroutine (blocks until disconnect)
	c.readPump()
	<-done
}
