package ws

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client представляет одно подключение WebSocket.
type Client struct {
	conn    *websocket.Conn
	hub     *Hub
	subject string
	events  map[models.AuditEventType]struct{}
	send    chan []byte
}

// NewClient создаёт нового клиента для оператора subject.
// Пустой events означает подписку на все события журнала.
func NewClient(conn *websocket.Conn, hub *Hub, subject string, events []models.AuditEventType) *Client {
	c := &Client{
		conn:    conn,
		hub:     hub,
		subject: subject,
		send:    make(chan []byte, 16),
	}
	if len(events) > 0 {
		c.events = make(map[models.AuditEventType]struct{}, len(events))
		for _, e := range events {
			c.events[e] = struct{}{}
		}
	}
	return c
}

// ParseEventFilter разбирает список событий вида "withdrawal_completed,withdrawal_failed".
func ParseEventFilter(raw string) ([]models.AuditEventType, error) {
	var events []models.AuditEventType
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		e := models.AuditEventType(part)
		if !e.IsValid() {
			return nil, fmt.Errorf("неизвестный тип события %q", part)
		}
		events = append(events, e)
	}
	return events, nil
}

func (c *Client) wants(e models.AuditEventType) bool {
	if c.events == nil {
		return true
	}
	_, ok := c.events[e]
	return ok
}

// Run регистрирует клиента и обрабатывает сообщения до закрытия соединения.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	go c.writePumpSafe()
	c.readPump(ctx)
}

func (c *Client) log() *logrus.Entry {
	return logger.WithComponent("ws").WithField("subject", c.subject)
}

// writePumpSafe запускает writePump с обработкой panic
func (c *Client) writePumpSafe() {
	defer func() {
		if r := recover(); r != nil {
			c.log().WithField("stack", string(debug.Stack())).Errorf("writePump panic recovered: %v", r)
			c.Close()
		}
	}()
	c.writePump()
}

// Close отключает клиента от хаба и закрывает соединение.
func (c *Client) Close() {
	c.hub.Unregister(c)
	c.conn.Close()
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log().WithField("stack", string(debug.Stack())).Errorf("readPump panic recovered: %v", r)
		}
		c.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			// Клиент только получает события, входящие сообщения игнорируются.
			_, _, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					c.log().WithError(err).Debug("websocket closed unexpectedly")
				}
				return
			}
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
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
