package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/repository/common"
)

const withdrawalColumns = `id, account_id, points, rate, estimated_value, kind, state, attempts,
	failure_reason, vault_entry_id, queued_at, started_at, completed_at`

// InsertWithdrawal ставит заявку в очередь. Уникальный индекс по активным
// заявкам превращается в ErrActiveWithdrawalExists.
func (q queries) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	_, err := q.ext.ExecContext(ctx, q.ext.Rebind(`
		INSERT INTO withdrawals (id, account_id, points, rate, estimated_value, kind, state, attempts,
			failure_reason, vault_entry_id, queued_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		w.ID, w.AccountID, w.Points, w.Rate, w.EstimatedValue, w.Kind, w.State, w.Attempts,
		w.FailureReason, w.VaultEntryID, w.QueuedAt, w.StartedAt, w.CompletedAt)
	if common.IsUniqueViolation(err) {
		return ErrActiveWithdrawalExists
	}
	return err
}

// GetWithdrawal возвращает заявку по id.
func (q queries) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return common.GetOne[models.Withdrawal](ctx, q.ext,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = ?`, ErrWithdrawalNotFound, id)
}

// ActiveWithdrawal возвращает queued/processing заявку аккаунта или nil.
func (q queries) ActiveWithdrawal(ctx context.Context, accountID string) (*models.Withdrawal, error) {
	w, err := common.GetOne[models.Withdrawal](ctx, q.ext,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE account_id = ? AND state IN (?, ?)`,
		ErrWithdrawalNotFound, accountID, models.WithdrawalStateQueued, models.WithdrawalStateProcessing)
	if errors.Is(err, ErrWithdrawalNotFound) {
		return nil, nil
	}
	return w, err
}

// ListWithdrawals история заявок аккаунта, новые первыми. Пустой state - все состояния.
func (q queries) ListWithdrawals(ctx context.Context, accountID string, state models.WithdrawalState) ([]models.Withdrawal, error) {
	if state == "" {
		return common.SelectAll[models.Withdrawal](ctx, q.ext,
			`SELECT `+withdrawalColumns+` FROM withdrawals WHERE account_id = ? ORDER BY queued_at DESC`, accountID)
	}
	return common.SelectAll[models.Withdrawal](ctx, q.ext,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE account_id = ? AND state = ? ORDER BY queued_at DESC`,
		accountID, state)
}

// ListWithdrawalsByState заявки в состоянии state в порядке постановки в очередь.
func (q queries) ListWithdrawalsByState(ctx context.Context, state models.WithdrawalState, limit int) ([]models.Withdrawal, error) {
	return common.SelectAll[models.Withdrawal](ctx, q.ext,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE state = ? ORDER BY queued_at, id LIMIT ?`,
		state, limit)
}

// ClaimWithdrawal переводит queued -> processing. false, если заявку уже забрали.
func (q queries) ClaimWithdrawal(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	n, err := common.ExecAffected(ctx, q.ext, `
		UPDATE withdrawals SET state = ?, started_at = ?, attempts = attempts + 1
		WHERE id = ? AND state = ?`,
		models.WithdrawalStateProcessing, now, id, models.WithdrawalStateQueued)
	return n > 0, err
}

// FinishWithdrawal фиксирует терминальное состояние processing-заявки.
func (q queries) FinishWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	n, err := common.ExecAffected(ctx, q.ext, `
		UPDATE withdrawals SET state = ?, failure_reason = ?, vault_entry_id = ?, completed_at = ?
		WHERE id = ? AND state = ?`,
		w.State, w.FailureReason, w.VaultEntryID, w.CompletedAt, w.ID, models.WithdrawalStateProcessing)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}

// RequeueWithdrawal возвращает прерванную processing-заявку в очередь.
func (q queries) RequeueWithdrawal(ctx context.Context, id uuid.UUID) error {
	n, err := common.ExecAffected(ctx, q.ext,
		`UPDATE withdrawals SET state = ?, started_at = NULL WHERE id = ? AND state = ?`,
		models.WithdrawalStateQueued, id, models.WithdrawalStateProcessing)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}

type stateCount struct {
	State models.WithdrawalState `db:"state"`
	N     int                    `db:"n"`
}

// CountActiveWithdrawals считает queued и processing заявки.
func (q queries) CountActiveWithdrawals(ctx context.Context) (models.WithdrawalCounts, error) {
	rows, err := common.SelectAll[stateCount](ctx, q.ext,
		`SELECT state, COUNT(*) AS n FROM withdrawals WHERE state IN (?, ?) GROUP BY state`,
		models.WithdrawalStateQueued, models.WithdrawalStateProcessing)
	if err != nil {
		return models.WithdrawalCounts{}, err
	}

	var counts models.WithdrawalCounts
	for _, r := range rows {
		switch r.State {
		case models.WithdrawalStateQueued:
			counts.Queued = r.N
		case models.WithdrawalStateProcessing:
			counts.Processing = r.N
		}
	}
	return counts, nil
}
