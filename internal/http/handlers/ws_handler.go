package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/earnings-ledger/internal/http/handlers/common"
	"github.com/ignatzorin/earnings-ledger/internal/service"
	"github.com/ignatzorin/earnings-ledger/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub          *ws.Hub
	tokenManager *service.TokenManager
	upgrader     websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер.
func NewWSHandler(hub *ws.Hub, tokens *service.TokenManager) *WSHandler {
	return &WSHandler{
		hub:          hub,
		tokenManager: tokens,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle обслуживает GET /api/ws?token=...&events=...
// Браузер не передаёт заголовки при открытии WebSocket, поэтому токен в query.
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		common.RespondUnauthorized(c, "access токен обязателен")
		return
	}

	subject, _, err := h.tokenManager.ParseAccess(rawToken)
	if err != nil {
		common.RespondUnauthorized(c, "невалидный access токен")
		return
	}

	events, err := ws.ParseEventFilter(c.Query("events"))
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту.
		return
	}

	ws.NewClient(conn, h.hub, subject, events).Run(c.Request.Context())
}
