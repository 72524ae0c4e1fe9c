package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/models"
)

// QueueState текущее состояние очереди выплат.
type QueueState interface {
	Paused() bool
	Counts(ctx context.Context) (models.WithdrawalCounts, error)
}

// SummaryService собирает сводку по всем компонентам. Если часть данных
// прочитать не удалось, сводка возвращается с перечнем пропущенных частей.
type SummaryService struct {
	ledger *LedgerService
	vault  *VaultService
	audit  *AuditService
	queue  QueueState
}

func NewSummaryService(ledger *LedgerService, vault *VaultService, audit *AuditService, queue QueueState) *SummaryService {
	return &SummaryService{ledger: ledger, vault: vault, audit: audit, queue: queue}
}

// GetSummary никогда не возвращает ошибку: сбои попадают в Degraded.
func (s *SummaryService) GetSummary(ctx context.Context) models.Summary {
	log := logger.WithComponent("summary")
	summary := models.Summary{
		PendingValue:     decimal.Zero,
		VaultActiveValue: decimal.Zero,
		GeneratedAt:      nowUTC(),
	}

	if accounts, err := s.ledger.ListAccounts(ctx); err != nil {
		log.WithError(err).Warn("summary: accounts unavailable")
		summary.Degraded = append(summary.Degraded, "accounts")
	} else {
		summary.AccountsTracked = len(accounts)
		for _, a := range accounts {
			summary.PendingValue = summary.PendingValue.Add(a.ValuePending)
		}
	}

	if s.queue != nil {
		summary.QueuePaused = s.queue.Paused()
		if counts, err := s.queue.Counts(ctx); err != nil {
			log.WithError(err).Warn("summary: withdrawals unavailable")
			summary.Degraded = append(summary.Degraded, "withdrawals")
		} else {
			summary.Withdrawals = counts
		}
	}

	if counts, total, err := s.vault.Totals(ctx); err != nil {
		log.WithError(err).Warn("summary: vault unavailable")
		summary.Degraded = append(summary.Degraded, "vault")
	} else {
		summary.Vault = counts
		summary.VaultActiveValue = total
	}

	if n, err := s.audit.Count(ctx); err != nil {
		log.WithError(err).Warn("summary: audit unavailable")
		summary.Degraded = append(summary.Degraded, "audit")
	} else {
		summary.AuditRecords = n
	}

	summary.TotalAssets = summary.PendingValue.Add(summary.VaultActiveValue)
	return summary
}
