package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GiftCardSecretVersion текущая версия формата секрета.
const GiftCardSecretVersion = 1

// VaultEntry запись хранилища. Открыто хранятся только категория и номинал.
type VaultEntry struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	Category         string           `db:"category" json:"category"`
	Value            decimal.Decimal  `db:"value" json:"value"`
	EncryptedPayload []byte           `db:"encrypted_payload" json:"-"`
	Status           VaultEntryStatus `db:"status" json:"status"`
	WithdrawalID     *uuid.UUID       `db:"withdrawal_id" json:"withdrawal_id,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	RedeemedAt       *time.Time       `db:"redeemed_at" json:"redeemed_at,omitempty"`
}

// GiftCardSecret содержимое зашифрованной части записи.
type GiftCardSecret struct {
	Version       int             `json:"v"`
	Brand         string          `json:"brand"`
	Code          string          `json:"code"`
	PIN           string          `json:"pin,omitempty"`
	Value         decimal.Decimal `json:"value"`
	SourceAccount string          `json:"source_account,omitempty"`
	WithdrawalID  *uuid.UUID      `json:"withdrawal_id,omitempty"`
	IssuedAt      time.Time       `json:"issued_at"`
}

// VaultFilter фильтр для списка записей.
type VaultFilter struct {
	Status   VaultEntryStatus
	Category string
}

// VaultCounts количество записей по статусам.
type VaultCounts struct {
	Active   int `json:"active"`
	Redeemed int `json:"redeemed"`
}
