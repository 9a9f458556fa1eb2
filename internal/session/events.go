package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"danmaku-overlay/internal/surface/virtual"
)

const (
	clientBuffer = 64
	writeTimeout = 200 * time.Millisecond
)

// hub fans a session's render events out to websocket clients. The engine
// emits from its loop goroutine, so broadcast never blocks: a client that
// falls behind by more than clientBuffer events misses the overflow.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan virtual.RenderEvent
	once sync.Once
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) broadcast(ev virtual.RenderEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// serve registers conn and blocks until the peer goes away or the hub is
// closed. initial is written before any live event.
func (h *hub) serve(conn *websocket.Conn, initial []virtual.RenderEvent) {
	defer conn.Close()
	c := &client{conn: conn, send: make(chan virtual.RenderEvent, clientBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer h.remove(c)

	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, ev := range initial {
		if err := c.write(ev); err != nil {
			return
		}
	}
	for ev := range c.send {
		if err := c.write(ev); err != nil {
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
		time.Now().Add(writeTimeout))
}

func (c *client) write(ev virtual.RenderEvent) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ev)
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.once.Do(func() {
		close(c.send)
	})
}

// close ends every client. Later serve calls return immediately.
func (h *hub) close() {
	h.mu.Lock()
	h.closed = true
	cs := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		cs = append(cs, c)
	}
	h.mu.Unlock()
	for _, c := range cs {
		h.remove(c)
	}
}
