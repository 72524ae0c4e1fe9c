package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/earnings-ledger/internal/models"
)

// Полезная нагрузка событий журнала. Секреты подарочных карт сюда не попадают.

type pointsCreditedEvent struct {
	AccountID string          `json:"account_id"`
	Points    uint64          `json:"points"`
	Rate      decimal.Decimal `json:"rate"`
	Value     decimal.Decimal `json:"value"`
	Pending   uint64          `json:"pending"`
	Total     uint64          `json:"total"`
	Created   bool            `json:"created,omitempty"`
}

type accountConfiguredEvent struct {
	AccountID      string                `json:"account_id"`
	Threshold      uint64                `json:"threshold"`
	WithdrawalKind models.WithdrawalKind `json:"withdrawal_kind"`
}

type withdrawalEvent struct {
	WithdrawalID   uuid.UUID             `json:"withdrawal_id"`
	AccountID      string                `json:"account_id"`
	Points         uint64                `json:"points"`
	EstimatedValue decimal.Decimal       `json:"estimated_value"`
	Kind           models.WithdrawalKind `json:"kind"`
	Attempt        int                   `json:"attempt,omitempty"`
	Reason         string                `json:"reason,omitempty"`
	VaultEntryID   *uuid.UUID            `json:"vault_entry_id,omitempty"`
	Action         string                `json:"action,omitempty"`
}

func newWithdrawalEvent(w *models.Withdrawal) withdrawalEvent {
	return withdrawalEvent{
		WithdrawalID:   w.ID,
		AccountID:      w.AccountID,
		Points:         w.Points,
		EstimatedValue: w.EstimatedValue,
		Kind:           w.Kind,
	}
}

type vaultEntryEvent struct {
	EntryID      uuid.UUID       `json:"entry_id"`
	Category     string          `json:"category"`
	Value        decimal.Decimal `json:"value"`
	WithdrawalID *uuid.UUID      `json:"withdrawal_id,omitempty"`
}
