package models

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Account хранит баланс баллов одного источника начислений.
type Account struct {
	ID               string          `db:"id" json:"account_id"`
	TotalPoints      uint64          `db:"total_points" json:"total_points"`
	PendingPoints    uint64          `db:"pending_points" json:"pending_points"`
	WithdrawnPoints  uint64          `db:"withdrawn_points" json:"withdrawn_points"`
	ConversionRate   decimal.Decimal `db:"conversion_rate" json:"conversion_rate"`
	Threshold        uint64          `db:"threshold" json:"threshold"`
	WithdrawalKind   WithdrawalKind  `db:"withdrawal_kind" json:"withdrawal_kind"`
	LastWithdrawalAt *time.Time      `db:"last_withdrawal_at" json:"last_withdrawal_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// PendingValue возвращает денежную оценку невыведенных баллов.
func (a *Account) PendingValue() decimal.Decimal {
	return PointsValue(a.PendingPoints, a.ConversionRate)
}

// Balanced проверяет инвариант total = pending + withdrawn.
func (a *Account) Balanced() bool {
	return a.TotalPoints == a.PendingPoints+a.WithdrawnPoints
}

// ReachedThreshold сообщает, что накоплено достаточно баллов для вывода.
func (a *Account) ReachedThreshold() bool {
	return a.PendingPoints > 0 && a.PendingPoints >= a.Threshold
}

// Snapshot формирует представление баланса для ответа.
func (a *Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		AccountID:        a.ID,
		Found:            true,
		Total:            a.TotalPoints,
		Pending:          a.PendingPoints,
		Withdrawn:        a.WithdrawnPoints,
		ValuePending:     a.PendingValue(),
		ConversionRate:   a.ConversionRate,
		Threshold:        a.Threshold,
		WithdrawalKind:   a.WithdrawalKind,
		LastWithdrawalAt: a.LastWithdrawalAt,
	}
}

// AccountSnapshot снимок баланса аккаунта. Found=false для неизвестного аккаунта.
type AccountSnapshot struct {
	AccountID        string          `json:"account_id"`
	Found            bool            `json:"found"`
	Total            uint64          `json:"total"`
	Pending          uint64          `json:"pending"`
	Withdrawn        uint64          `json:"withdrawn"`
	ValuePending     decimal.Decimal `json:"value_pending"`
	ConversionRate   decimal.Decimal `json:"conversion_rate"`
	Threshold        uint64          `json:"threshold"`
	WithdrawalKind   WithdrawalKind  `json:"withdrawal_kind,omitempty"`
	LastWithdrawalAt *time.Time      `json:"last_withdrawal_at,omitempty"`
}

// AccountPolicy параметры, с которыми создаётся новый аккаунт.
type AccountPolicy struct {
	Threshold      uint64         `json:"threshold" yaml:"threshold"`
	WithdrawalKind WithdrawalKind `json:"withdrawal_kind" yaml:"withdrawal_kind"`
}

// PointsValue переводит баллы в деньги по курсу.
func PointsValue(points uint64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(points), 0).Mul(rate)
}
