package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Withdrawal заявка на вывод накопленных баллов.
// EstimatedValue фиксируется в момент постановки в очередь и не пересчитывается.
type Withdrawal struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	AccountID      string          `db:"account_id" json:"account_id"`
	Points         uint64          `db:"points" json:"points"`
	Rate           decimal.Decimal `db:"rate" json:"rate"`
	EstimatedValue decimal.Decimal `db:"estimated_value" json:"estimated_value"`
	Kind           WithdrawalKind  `db:"kind" json:"kind"`
	State          WithdrawalState `db:"state" json:"state"`
	Attempts       int             `db:"attempts" json:"attempts"`
	FailureReason  *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	VaultEntryID   *uuid.UUID      `db:"vault_entry_id" json:"vault_entry_id,omitempty"`
	QueuedAt       time.Time       `db:"queued_at" json:"queued_at"`
	StartedAt      *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// IsActive сообщает, что заявка ещё не в терминальном состоянии.
func (w *Withdrawal) IsActive() bool {
	return !w.State.IsTerminal()
}

// WithdrawalCounts количество активных заявок по состояниям.
type WithdrawalCounts struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
}
