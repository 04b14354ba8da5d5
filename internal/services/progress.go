package services

import (
	"context"
	"sync"

	"cargamasiva-backend-go/internal/bulkimport"

	"github.com/gorilla/websocket"
)

// ProgressHub fans batch progress events out to every connected socket.
// Events are dropped when the buffer is full so a slow client never stalls
// an import.
type ProgressHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	ch      chan bulkimport.Progress
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients: map[*websocket.Conn]bool{},
		ch:      make(chan bulkimport.Progress, 64),
	}
}

func (h *ProgressHub) Run(ctx context.Context) {
	for {
		select {
		case event := <-h.ch:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(event); err != nil {
					delete(h.clients, conn)
					_ = conn.Close()
				}
			}
			h.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (h *ProgressHub) Publish(event bulkimport.Progress) {
	select {
	case h.ch <- event:
	default:
	}
}

func (h *ProgressHub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
}

func (h *ProgressHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *ProgressHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
