package ws

import (
	"net/http"
	"sync"

	domrepo "TradeDash/internal/domain/repository"
	xlogger "TradeDash/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// sendBuffer bounds how far a slow client may fall behind before it is
// dropped.
const sendBuffer = 32

// Hub pushes cache-commit events to connected dashboard clients so the
// UI re-queries without polling. Implements CommitNotifier.
//
// gorilla/websocket allows one concurrent writer per connection, and
// commits settle on independent goroutines, so each client owns a
// single writer goroutine fed through a buffered channel.
type Hub struct {
	log      *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan domrepo.CommitEvent
	done chan struct{}
	once sync.Once
}

// NewHub creates a live-update hub.
func NewHub(log *xlogger.Logger) *Hub {
	if log == nil {
		log = xlogger.Nop()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Serve upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{
		conn: conn,
		send: make(chan domrepo.CommitEvent, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client connected", xlogger.Int("clients", n))

	go h.writeLoop(cl)

	// Drain reads so close frames are processed; we never expect data.
	go func() {
		defer h.drop(cl)
		for {
			if _, _, err := cl.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// writeLoop is the sole writer for one connection.
func (h *Hub) writeLoop(cl *client) {
	for {
		select {
		case ev := <-cl.send:
			if err := cl.conn.WriteJSON(ev); err != nil {
				h.drop(cl)
				return
			}
		case <-cl.done:
			return
		}
	}
}

// NotifyCommit broadcasts a commit event to all clients. A client
// whose send buffer is full is dropped rather than blocking the
// commit path.
func (h *Hub) NotifyCommit(ev domrepo.CommitEvent) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		select {
		case cl.send <- ev:
		default:
			h.drop(cl)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		h.drop(cl)
	}
}

func (h *Hub) drop(cl *client) {
	cl.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		close(cl.done)
		_ = cl.conn.Close()
	})
}
