package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary сводка по всем компонентам леджера.
// Degraded перечисляет части, которые не удалось прочитать.
type Summary struct {
	PendingValue     decimal.Decimal  `json:"pending_value"`
	VaultActiveValue decimal.Decimal  `json:"vault_active_value"`
	TotalAssets      decimal.Decimal  `json:"total_assets"`
	AccountsTracked  int              `json:"accounts_tracked"`
	Withdrawals      WithdrawalCounts `json:"withdrawals"`
	Vault            VaultCounts      `json:"vault"`
	AuditRecords     int              `json:"audit_records"`
	QueuePaused      bool             `json:"queue_paused"`
	Degraded         []string         `json:"degraded,omitempty"`
	GeneratedAt      time.Time        `json:"generated_at"`
}
