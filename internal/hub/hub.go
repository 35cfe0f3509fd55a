package hub

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devboard/devboard/internal/domain"
	pkglog "github.com/devboard/devboard/pkg/log"
)

// Config holds the connection keepalive parameters.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DisconnectHandler is called when a client disconnects, before the hub
// forgets its room memberships.
type DisconnectHandler func(*Client)

// Client represents one connected WebSocket session.
type Client struct {
	ID                string
	Hub               *Hub
	Conn              *websocket.Conn
	Send              chan []byte
	Session           *domain.Session
	disconnectHandler DisconnectHandler
}

// SetDisconnectHandler sets the handler to be called on disconnect.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.disconnectHandler = handler
}

// Hub owns the room membership maps for one server process. It is an
// explicit object so tests can run several independent instances; there
// is no package-level state.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[string]*Client // room name -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *RoomEvent
	mu         sync.RWMutex
	config     Config
}

// RoomEvent is a frame to be fanned out to a room.
type RoomEvent struct {
	Room    string
	Message []byte
	Exclude string // client ID to skip
}

// New creates a new Hub.
func New(cfg Config) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomEvent, 256),
		config:     cfg,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	l := pkglog.L()
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Debug().Str(pkglog.FieldSID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for room, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, room)
					}
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			l.Debug().Str(pkglog.FieldSID, client.ID).Msg("client unregistered")

		case evt := <-h.broadcast:
			h.mu.RLock()
			if members, ok := h.rooms[evt.Room]; ok {
				for clientID, client := range members {
					if clientID == evt.Exclude {
						continue
					}
					select {
					case client.Send <- evt.Message:
					default:
						// Send buffer full: the client is gone or stuck.
						go h.removeClient(client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub and every room it holds.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom adds a client to a room. Idempotent.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][client.ID] = client
	pkglog.L().Debug().Str(pkglog.FieldSID, client.ID).Str(pkglog.FieldRoom, room).Msg("joined room")
}

// LeaveRoom removes a client from a room. Idempotent.
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	pkglog.L().Debug().Str(pkglog.FieldSID, client.ID).Str(pkglog.FieldRoom, room).Msg("left room")
}

// BroadcastToRoom sends a message to all clients in a room, skipping the
// excluded client id if non-empty. Fire and forget.
func (h *Hub) BroadcastToRoom(room string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &RoomEvent{Room: room, Message: data, Exclude: exclude}
	return nil
}

// SendToClient sends a message to a specific connection. Unknown ids are
// ignored: the target may have disconnected between addressing and delivery.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	select {
	case client.Send <- data:
	default:
		go h.removeClient(client)
	}
	return nil
}

// Occupants returns the connection ids currently in a room.
func (h *Hub) Occupants(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[room]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomSizes returns occupancy for every room whose name starts with
// prefix. Used by the presence endpoint.
func (h *Hub) RoomSizes(prefix string) map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]int)
	for room, members := range h.rooms {
		if strings.HasPrefix(room, prefix) {
			out[room] = len(members)
		}
	}
	return out
}

func (h *Hub) removeClient(client *Client) {
	h.unregister <- client
}

// ReadPump pumps frames from the WebSocket connection into the handler.
// Frames are handled one at a time, so per-connection event handling is
// serialized end to end, storage round-trips included.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		if c.disconnectHandler != nil {
			c.disconnectHandler(c)
		}
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				pkglog.L().Error().Err(err).Str(pkglog.FieldSID, c.ID).Msg("websocket error")
			}
			break
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

// WritePump pumps frames from the Send channel to the WebSocket
// connection and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Hub.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage marshals and queues a frame for this client.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
		// Buffer full; the read side will notice the dead peer.
	}
	return nil
}
