package handler

import (
	"log"
	"net/http"
	"sync"

	"price-history/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// PriceHub fans refresh-cycle snapshots out to websocket subscribers.
// It implements the poller's listener contract, so every finished cycle
// pushes the full record set to every connected client.
type PriceHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewPriceHub() *PriceHub {
	return &PriceHub{clients: make(map[*websocket.Conn]struct{})}
}

// PublishPrices broadcasts a snapshot. Clients that fail to accept the
// write are dropped.
func (hub *PriceHub) PublishPrices(records []*domain.PriceRecord) {
	payload := gin.H{"prices": records}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	for conn := range hub.clients {
		if err := conn.WriteJSON(payload); err != nil {
			log.Printf("websocket write failed, dropping client: %v", err)
			conn.Close()
			delete(hub.clients, conn)
		}
	}
}

// ClientCount reports the number of connected subscribers.
func (hub *PriceHub) ClientCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

func (hub *PriceHub) add(conn *websocket.Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.clients[conn] = struct{}{}
}

func (hub *PriceHub) remove(conn *websocket.Conn) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if _, ok := hub.clients[conn]; ok {
		conn.Close()
		delete(hub.clients, conn)
	}
}

// StreamPrices godoc
// @Summary      Subscribe to price snapshots
// @Description  Upgrades to a websocket that receives the full price record set after every refresh cycle
// @Tags         prices
// @Success      101
// @Router       /ws/prices [get]
func (h *Handler) StreamPrices(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	h.priceHub.add(conn)

	// Drain the connection to notice the client going away. Subscribers
	// only receive; inbound frames are discarded.
	go func() {
		defer h.priceHub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
