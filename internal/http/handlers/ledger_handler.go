package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/earnings-ledger/internal/dto"
	"github.com/ignatzorin/earnings-ledger/internal/http/handlers/common"
	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/service"
)

type LedgerHandler struct {
	ledger *service.LedgerService
}

func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Credit POST /api/accounts/:id/credits
func (h *LedgerHandler) Credit(c *gin.Context) {
	var req dto.CreditRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.ledger.CreditPoints(c.Request.Context(), c.Param("id"), req.Points, req.Rate)
	if err != nil {
		common.Fail(c, err)
		return
	}

	subject, _ := common.CurrentSubject(c)
	logger.WithComponent("http").WithFields(logrus.Fields{
		"subject":    subject,
		"account_id": result.AccountID,
		"points":     result.Points,
	}).Debug("credit accepted")

	c.JSON(http.StatusOK, result)
}

// ListAccounts GET /api/accounts
func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.ledger.ListAccounts(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(accounts, len(accounts)))
}

// GetBalance GET /api/accounts/:id/balance
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	balance, err := h.ledger.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// ConfigurePolicy PUT /api/accounts/:id/policy
func (h *LedgerHandler) ConfigurePolicy(c *gin.Context) {
	var req dto.PolicyRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	snapshot, err := h.ledger.ConfigureAccount(c.Request.Context(), c.Param("id"), models.AccountPolicy{
		Threshold:      req.Threshold,
		WithdrawalKind: req.WithdrawalKind,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
