package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/earnings-ledger/internal/dto"
	"github.com/ignatzorin/earnings-ledger/internal/http/handlers/common"
	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/service"
)

type WithdrawalHandler struct {
	queue *service.WithdrawalQueue
}

func NewWithdrawalHandler(queue *service.WithdrawalQueue) *WithdrawalHandler {
	return &WithdrawalHandler{queue: queue}
}

// ListAccountWithdrawals GET /api/accounts/:id/withdrawals?status=
func (h *WithdrawalHandler) ListAccountWithdrawals(c *gin.Context) {
	state := models.WithdrawalState(c.Query("status"))
	list, err := h.queue.ListWithdrawals(c.Request.Context(), c.Param("id"), state)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(list, len(list)))
}

// ReEnqueue POST /api/accounts/:id/withdrawals
func (h *WithdrawalHandler) ReEnqueue(c *gin.Context) {
	w, err := h.queue.ReEnqueue(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	if w == nil {
		c.JSON(http.StatusOK, dto.ReEnqueueResponse{Queued: false})
		return
	}
	c.JSON(http.StatusCreated, dto.ReEnqueueResponse{Queued: true, Withdrawal: w})
}

// GetWithdrawal GET /api/withdrawals/:id
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	w, err := h.queue.GetWithdrawal(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// Pause POST /api/queue/pause
func (h *WithdrawalHandler) Pause(c *gin.Context) {
	h.respondCommand(c, "pause", h.queue.Pause())
}

// Resume POST /api/queue/resume
func (h *WithdrawalHandler) Resume(c *gin.Context) {
	h.respondCommand(c, "resume", h.queue.Resume())
}

// Drain POST /api/queue/drain
func (h *WithdrawalHandler) Drain(c *gin.Context) {
	h.respondCommand(c, "drain", h.queue.DrainNow())
}

func (h *WithdrawalHandler) respondCommand(c *gin.Context, command string, accepted bool) {
	c.JSON(http.StatusAccepted, dto.QueueCommandResponse{
		Command:  command,
		Accepted: accepted,
		Paused:   h.queue.Paused(),
	})
}
