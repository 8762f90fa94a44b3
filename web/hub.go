package web

import (
	"time"

	"github.com/gorilla/websocket"

	"hark/log"
)

const (
	// writeWait bounds a single websocket write. A browser tab frozen
	// longer than this is treated as gone.
	writeWait = 5 * time.Second

	// pongWait is how long a client may stay silent before the read
	// side gives up. Three missed pings.
	pongWait = 90 * time.Second

	pingPeriod = 30 * time.Second

	// maxMessageSize caps inbound frames. The dashboard never sends
	// anything larger than a keepalive.
	maxMessageSize = 1024

	sendBuffer = 16
)

// A client is one connected dashboard tab.
type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

// hub fans broadcast frames out to every connected dashboard tab.
// Register, unregister and broadcast all funnel through run so the
// client set is owned by a single goroutine.
type hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	stop       chan struct{}
	done       chan struct{}
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *hub) run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			log.Debugf("web: client connected (%d active)", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer. Drop it rather than stall
					// every other tab.
					delete(h.clients, c)
					close(c.send)
				}
			}
		case <-h.stop:
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		}
	}
}

// publish queues a frame for every connected client. Frames are
// dropped when the hub is shutting down or the queue is full.
func (h *hub) publish(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.stop:
	default:
		log.Debugf("web: broadcast queue full, dropping frame")
	}
}

// readPump drains inbound frames so pings and close frames are
// processed. The dashboard sends no commands; anything it does send is
// discarded.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debugf("web: read error: %v", err)
			}
			return
		}
	}
}

// writePump pushes queued frames to the connection and keeps it alive
// with pings. It is the sole writer for its connection; gorilla conns
// do not allow concurrent writes.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
