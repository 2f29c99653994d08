package matching

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imadgeboyega/movienight-backend/internal/auth"
	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Configure origin checking in production
		return true
	},
}

// Hub pushes group notifications to connected members. A user may hold
// several connections; each receives every message addressed to them.
type Hub struct {
	clients    map[int64]map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	userID int64
}

type Message struct {
	Type   string      `json:"type"`
	UserID int64       `json:"user_id"`
	Data   interface{} `json:"data"`
}

type groupFormedPayload struct {
	EventID     int64   `json:"event_id"`
	GroupID     string  `json:"group_id"`
	Members     []int64 `json:"members"`
	Suggestions []int   `json:"suggestions"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			if h.clients[client.userID] == nil {
				h.clients[client.userID] = make(map[*Client]bool)
			}
			h.clients[client.userID][client] = true
			logging.Debug().Int64("user_id", client.userID).Msg("websocket connected")

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			for client := range h.clients[message.UserID] {
				select {
				case client.send <- message:
				default:
					h.remove(client)
				}
			}

		case <-ctx.Done():
			close(h.done)
			for _, conns := range h.clients {
				for client := range conns {
					close(client.send)
				}
			}
			h.clients = make(map[int64]map[*Client]bool)
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	conns, ok := h.clients[client.userID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	logging.Debug().Int64("user_id", client.userID).Msg("websocket disconnected")
}

// NotifyGroupFormed queues one message per member. Messages are dropped
// when the queue is full so group formation never blocks on delivery.
func (h *Hub) NotifyGroupFormed(eventID int64, group *Group) {
	payload := groupFormedPayload{
		EventID:     eventID,
		GroupID:     group.PublicID.String(),
		Members:     group.Members,
		Suggestions: group.Suggestions,
	}

	for _, memberID := range group.Members {
		message := Message{
			Type:   "group_formed",
			UserID: memberID,
			Data:   payload,
		}
		select {
		case h.broadcast <- message:
		default:
			logging.Warn().Int64("user_id", memberID).Int64("event_id", eventID).Msg("notification queue full, dropping message")
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan Message, 16),
		userID: userID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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
