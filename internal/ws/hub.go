package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/models"
)

// EventAudit тип сообщения с записью журнала аудита.
const EventAudit = "audit"

type outbound struct {
	eventType models.AuditEventType
	payload   []byte
}

// Hub управляет всеми WebSocket клиентами и рассылает им события журнала.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 64),
		done:       make(chan struct{}),
	}
}

// Run запускает главный цикл хаба до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount количество подключённых клиентов.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishAudit рассылает запись журнала всем клиентам. Не блокирует
// вызывающего: при переполнении буфера событие отбрасывается.
func (h *Hub) PublishAudit(rec models.AuditRecord) {
	// Сообщение для клиента: поле "type" содержит имя события, "data" - полезную нагрузку.
	raw, err := json.Marshal(map[string]any{
		"type": EventAudit,
		"data": rec,
	})
	if err != nil {
		logger.WithComponent("ws").WithError(err).Error("ws: не удалось сериализовать сообщение")
		return
	}

	select {
	case h.broadcast <- outbound{eventType: rec.EventType, payload: raw}:
	default:
		logger.WithComponent("ws").WithField("seq", rec.Seq).Warn("ws broadcast buffer full, event dropped")
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) send(msg outbound) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.clients {
		if !client.wants(msg.eventType) {
			continue
		}
		select {
		case client.send <- msg.payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	// Медленные клиенты отключаются, чтобы не задерживать остальных.
	for _, client := range slow {
		h.removeClient(client)
		client.conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
