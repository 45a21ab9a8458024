package preview

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/courtside/dualcam/internal/log"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize allows full camera frames
	maxMessageSize = 512 * 1024
)

// hub broadcasts frames to the websocket clients of one camera feed.
// Slow clients are dropped rather than buffered: preview is best
// effort and must never hold frames back.
type hub struct {
	name string
	stop <-chan struct{}

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	mu sync.RWMutex
}

func newHub(name string, stop <-chan struct{}) *hub {
	return &hub{
		name:       name,
		stop:       stop,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// run is the hub's main loop; call in a goroutine. It exits when the
// stop channel closes, releasing every connected client.
func (h *hub) run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("preview client connected", "feed", h.name, "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("preview client disconnected", "feed", h.name, "clients", count)

		case frame := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- frame:
				default:
					// Too slow to keep up; cut them loose.
					close(c.send)
					delete(h.clients, c)
					log.Warn("dropped slow preview client", "feed", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// send queues a frame for broadcast, dropping it if the hub is backed up.
func (h *hub) send(frame []byte) {
	select {
	case h.broadcast <- frame:
	default:
	}
}

func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// client is one websocket connection subscribed to a feed.
type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

func newClient(h *hub, conn *websocket.Conn) *client {
	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
	}
	// The hub may already be shut down; never block a handler on it.
	select {
	case h.register <- c:
	case <-h.stop:
	}
	return c
}

// serve starts the write pump and blocks reading until the connection
// closes. Only the write pump writes to the connection.
func (c *client) serve() {
	go c.writePump()
	c.readPump()
}

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
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Clients never send frames; reading only detects
		// disconnects and pong responses.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
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
