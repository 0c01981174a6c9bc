package websocket

import (
	"sync"

	"github.com/Techsolutions2024/strawberry/internal/logger"
	"github.com/gorilla/websocket"
)

// Client is the part of a websocket connection the hub writes to.
type Client interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// HubService fans out viewer messages to every registered client.
type HubService struct {
	clients    map[Client]bool
	broadcast  chan []byte
	register   chan Client
	unregister chan Client
	quit       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan Client),
		unregister: make(chan Client),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *HubService) Run() {
	for {
		select {
		case <-h.quit:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

func (h *HubService) send(message []byte) {
	h.mutex.RLock()
	var failed []Client
	for client := range h.clients {
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			failed = append(failed, client)
		}
	}
	h.mutex.RUnlock()

	if len(failed) == 0 {
		return
	}
	h.mutex.Lock()
	for _, client := range failed {
		delete(h.clients, client)
		client.Close()
	}
	h.mutex.Unlock()
}

func (h *HubService) Register(client Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.Close()
	}
}

func (h *HubService) Unregister(client Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Broadcast hands message to the run loop. It returns false once the hub is stopped.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	case <-h.quit:
		return false
	}
}

// Stop ends Run and closes every client.
func (h *HubService) Stop() {
	select {
	case <-h.quit:
	default:
		close(h.quit)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
