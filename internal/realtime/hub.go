// README: WebSocket hub. Fans session events out to connected devices and
// feeds location messages from devices back into their sessions.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"compass/internal/modules/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 16 << 10
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sessions are authenticated before the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Upgrade switches an HTTP request to a WebSocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}

type outbound struct {
	sessionID string
	data      []byte
}

type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	closeAll   chan string
	inbound    Inbound
	done       chan struct{}
}

func NewHub(inbound Inbound, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, buffer),
		closeAll:   make(chan string, 16),
		inbound:    inbound,
		done:       make(chan struct{}),
	}
}

// Run owns the client registry until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for sid := range h.clients {
				h.dropSession(sid)
			}
			return

		case c := <-h.register:
			set := h.clients[c.sessionID]
			if set == nil {
				set = make(map[*Client]struct{})
				h.clients[c.sessionID] = set
			}
			set[c] = struct{}{}
			log.Printf("realtime: client connected to session %s (%d)", c.sessionID, len(set))

		case c := <-h.unregister:
			h.remove(c)

		case sid := <-h.closeAll:
			h.dropSession(sid)

		case msg := <-h.broadcast:
			for c := range h.clients[msg.sessionID] {
				select {
				case c.send <- msg.data:
				default:
					log.Printf("realtime: client of session %s too slow, disconnecting", msg.sessionID)
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.sessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.sessionID)
	}
}

func (h *Hub) dropSession(sessionID string) {
	for c := range h.clients[sessionID] {
		h.remove(c)
	}
}

// Publish queues ev for every device attached to the session. It never
// blocks; events are dropped when the hub is backed up.
func (h *Hub) Publish(sessionID string, ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("realtime: marshal %s event: %v", ev.Type, err)
		return
	}
	select {
	case h.broadcast <- outbound{sessionID: sessionID, data: data}:
	default:
		log.Printf("realtime: hub backed up, dropped %s event for session %s", ev.Type, sessionID)
	}
}

// CloseSession disconnects every device attached to the session.
func (h *Hub) CloseSession(sessionID string) {
	select {
	case h.closeAll <- sessionID:
	default:
		log.Printf("realtime: could not queue disconnect for session %s", sessionID)
	}
}

// Serve attaches conn to the session and blocks until the device goes away.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, sessionID string) {
	c := &Client{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		hub:       h,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	case <-ctx.Done():
		conn.Close()
		return
	}
	go c.writePump()
	c.readPump(ctx)
}
