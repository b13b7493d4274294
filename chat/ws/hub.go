package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/chat/repository"
	"chat-messaging-demo/backend/chat/service"
	"chat-messaging-demo/backend/chat/stream"
	"chat-messaging-demo/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// room groups the clients watching one conversation around a single
// shared message stream.
type room struct {
	conversationID string
	clients        map[*Client]bool
	stream         *stream.Stream
}

// Hub routes live feed snapshots to connected clients. One stream per
// conversation exists while at least one client watches it; the last
// client leaving tears the stream down.
type Hub struct {
	register   chan *Client
	unregister chan *Client

	sends     *service.SendService
	reactions *service.ReactionService
	messages  repository.MessageRepository
	feed      stream.ChangeFeed
	log       *logger.Logger

	mu    sync.Mutex
	rooms map[string]*room
}

// NewHub creates a hub. Call Run in a goroutine before serving clients.
func NewHub(sends *service.SendService, reactions *service.ReactionService, messages repository.MessageRepository, feed stream.ChangeFeed, log *logger.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sends:      sends,
		reactions:  reactions,
		messages:   messages,
		feed:       feed,
		log:        log.WithComponent("ws_hub"),
		rooms:      make(map[string]*room),
	}
}

// Run processes client registrations until the context ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(ctx, client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

func (h *Hub) addClient(ctx context.Context, client *Client) {
	h.mu.Lock()
	r, ok := h.rooms[client.ConversationID]
	if !ok {
		r = &room{
			conversationID: client.ConversationID,
			clients:        make(map[*Client]bool),
			stream:         stream.NewStream(h.messages, h.feed, h.log),
		}
		h.rooms[client.ConversationID] = r
	}
	r.clients[client] = true
	h.mu.Unlock()

	h.log.Info("client registered", "client_id", client.ID, "conversation_id", client.ConversationID)

	if !ok {
		conversationID := r.conversationID
		err := r.stream.Subscribe(ctx, conversationID,
			func(snapshot []models.Message) {
				h.broadcast(conversationID, Envelope{Type: "feed", Content: snapshot})
			},
			func(err error) {
				h.broadcast(conversationID, Envelope{Type: "error", Content: map[string]string{
					"message": "live updates interrupted, reconnect to resume",
				}})
				h.log.LogError(err, "room stream failed", "conversation_id", conversationID)
			})
		if err != nil {
			h.log.LogError(err, "room stream subscribe failed", "conversation_id", conversationID)
		}
	} else {
		// Joining an already-live room: replay the current snapshot to
		// just this client.
		client.send("feed", r.stream.Messages())
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	r, ok := h.rooms[client.ConversationID]
	if ok {
		if _, member := r.clients[client]; member {
			delete(r.clients, client)
			close(client.Send)
		}
		if len(r.clients) == 0 {
			delete(h.rooms, client.ConversationID)
		} else {
			r = nil
		}
	} else {
		r = nil
	}
	h.mu.Unlock()

	if r != nil {
		r.stream.Unsubscribe()
	}
	h.log.Info("client unregistered", "client_id", client.ID)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for _, r := range rooms {
		r.stream.Unsubscribe()
		for client := range r.clients {
			close(client.Send)
		}
	}
}

// Counts returns the number of live rooms and connected clients.
func (h *Hub) Counts() (rooms, clients int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.rooms {
		clients += len(r.clients)
	}
	return len(h.rooms), clients
}

// broadcast fans an envelope out to every client in a conversation's
// room. A client with a blocked channel is dropped.
func (h *Hub) broadcast(conversationID string, envelope Envelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		h.log.LogError(err, "envelope marshal failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	for client := range r.clients {
		select {
		case client.Send <- data:
		default:
			close(client.Send)
			delete(r.clients, client)
			h.log.Warn("client dropped, blocked channel", "client_id", client.ID)
		}
	}
}

// ServeWS upgrades an HTTP request into a hub client connection.
func ServeWS(hub *Hub, c *gin.Context) {
	conversationID := c.Query("conversationId")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversationId is required"})
		return
	}
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "websocket upgrade failed")
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		ID:             userID + "-" + conversationID,
		Conn:           conn,
		Send:           make(chan []byte, 256),
		ConversationID: conversationID,
		UserID:         userID,
		Hub:            hub,
	}
	hub.register <- client

	// The request context dies with the handler; the connection outlives it.
	go client.WritePump()
	go client.ReadPump(context.Background())
}
