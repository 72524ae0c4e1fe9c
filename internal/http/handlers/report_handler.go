package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/earnings-ledger/internal/dto"
	"github.com/ignatzorin/earnings-ledger/internal/http/handlers/common"
	"github.com/ignatzorin/earnings-ledger/internal/service"
)

// ReportHandler отдаёт сводку и журнал аудита.
type ReportHandler struct {
	summary *service.SummaryService
	audit   *service.AuditService
}

func NewReportHandler(summary *service.SummaryService, audit *service.AuditService) *ReportHandler {
	return &ReportHandler{summary: summary, audit: audit}
}

// Summary GET /api/summary
func (h *ReportHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.summary.GetSummary(c.Request.Context()))
}

// Audit GET /api/audit?limit=&offset=
func (h *ReportHandler) Audit(c *gin.Context) {
	limit, offset := common.GetPagination(c, 100, h.audit.Retention())
	ctx := c.Request.Context()

	records, err := h.audit.List(ctx, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	total, err := h.audit.Count(ctx)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AuditPageResponse{
		Items:  records,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
