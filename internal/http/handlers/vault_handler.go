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

type VaultHandler struct {
	vault *service.VaultService
}

func NewVaultHandler(vault *service.VaultService) *VaultHandler {
	return &VaultHandler{vault: vault}
}

// StoreEntry POST /api/vault/entries
func (h *VaultHandler) StoreEntry(c *gin.Context) {
	var req dto.StoreSecretRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	id, err := h.vault.StoreSecret(c.Request.Context(), req.Category, req.ToSecret())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreatedResponse{ID: id})
}

// ListEntries GET /api/vault/entries?status=&category=
func (h *VaultHandler) ListEntries(c *gin.Context) {
	entries, err := h.vault.ListEntries(c.Request.Context(), models.VaultFilter{
		Status:   models.VaultEntryStatus(c.Query("status")),
		Category: c.Query("category"),
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(entries, len(entries)))
}

// RetrieveSecret GET /api/vault/entries/:id/secret
func (h *VaultHandler) RetrieveSecret(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	secret, err := h.vault.Retrieve(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	// Кто и когда открывал секреты, видно только в логах: в журнал аудита они не пишутся.
	subject, _ := common.CurrentSubject(c)
	logger.WithComponent("vault").WithFields(logrus.Fields{
		"subject":  subject,
		"entry_id": id,
	}).Info("vault secret retrieved")

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, secret)
}

// Redeem POST /api/vault/entries/:id/redeem
func (h *VaultHandler) Redeem(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	entry, err := h.vault.MarkRedeemed(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	entry.EncryptedPayload = nil
	c.JSON(http.StatusOK, entry)
}
