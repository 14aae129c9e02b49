// Package ws broadcasts order status transitions to connected clients so the
// storefront can track an order live without polling.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"feastflow-api/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS layer in front of the API
		return true
	},
}

// StatusUpdate is the wire message sent for every successful transition.
type StatusUpdate struct {
	OrderID     uint   `json:"order_id"`
	OrderNumber string `json:"order_number"`
	FromStatus  string `json:"from_status,omitempty"`
	Status      string `json:"status"`
	Note        string `json:"note,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type Client struct {
	conn *websocket.Conn
	send chan StatusUpdate
	hub  *Hub
	log  *logrus.Logger
}

// Hub fans status updates out to all connected clients. Clients filter by
// order number on their side.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan StatusUpdate
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	log        *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan StatusUpdate, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.log.WithField("client_count", len(h.clients)).Debug("tracking client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.log.WithField("client_count", len(h.clients)).Debug("tracking client disconnected")

		case update := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- update:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// BroadcastStatus queues one transition for delivery. The request path is
// never blocked: if the queue is full the update is dropped.
func (h *Hub) BroadcastStatus(order *models.Order, event models.TrackingEvent) {
	update := StatusUpdate{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FromStatus:  string(event.FromStatus),
		Status:      string(event.Status),
		Note:        event.Note,
		Timestamp:   event.CreatedAt.Format(time.RFC3339),
	}
	select {
	case h.broadcast <- update:
	default:
		h.log.Warn("status broadcast queue full, dropping update")
	}
}

// HandleWebSocket upgrades the connection and starts the client pumps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Error("websocket upgrade failed")
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan StatusUpdate, 64),
		hub:  h,
		log:  h.log,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("tracking client read error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case update, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				c.log.WithError(err).Error("failed to marshal status update")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
