package repository

import (
	"context"
	"time"

	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/repository/common"
)

const accountColumns = `id, total_points, pending_points, withdrawn_points, conversion_rate, threshold,
	withdrawal_kind, last_withdrawal_at, created_at, updated_at`

// GetAccount возвращает аккаунт или ErrAccountNotFound.
func (q queries) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return common.GetOne[models.Account](ctx, q.ext,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, ErrAccountNotFound, id)
}

// GetAccountForUpdate читает аккаунт с блокировкой строки до конца транзакции.
func (q queries) GetAccountForUpdate(ctx context.Context, id string) (*models.Account, error) {
	return common.GetOne[models.Account](ctx, q.ext,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`+q.forUpdate, ErrAccountNotFound, id)
}

// InsertAccountIfAbsent создаёт аккаунт, если его ещё нет. Возвращает true, если строка вставлена.
func (q queries) InsertAccountIfAbsent(ctx context.Context, a *models.Account) (bool, error) {
	n, err := common.ExecAffected(ctx, q.ext, `
		INSERT INTO accounts (id, total_points, pending_points, withdrawn_points, conversion_rate,
			threshold, withdrawal_kind, last_withdrawal_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.TotalPoints, a.PendingPoints, a.WithdrawnPoints, a.ConversionRate,
		a.Threshold, a.WithdrawalKind, a.LastWithdrawalAt, a.CreatedAt, a.UpdatedAt)
	return n > 0, err
}

// UpdateAccountBalance сохраняет баланс, курс и время последнего вывода.
func (q queries) UpdateAccountBalance(ctx context.Context, a *models.Account) error {
	n, err := common.ExecAffected(ctx, q.ext, `
		UPDATE accounts
		SET total_points = ?, pending_points = ?, withdrawn_points = ?, conversion_rate = ?,
			last_withdrawal_at = ?, updated_at = ?
		WHERE id = ?`,
		a.TotalPoints, a.PendingPoints, a.WithdrawnPoints, a.ConversionRate,
		a.LastWithdrawalAt, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// UpdateAccountPolicy меняет порог и способ вывода.
func (q queries) UpdateAccountPolicy(ctx context.Context, id string, policy models.AccountPolicy, now time.Time) error {
	n, err := common.ExecAffected(ctx, q.ext,
		`UPDATE accounts SET threshold = ?, withdrawal_kind = ?, updated_at = ? WHERE id = ?`,
		policy.Threshold, policy.WithdrawalKind, now, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListAccounts возвращает все аккаунты по алфавиту.
func (q queries) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return common.SelectAll[models.Account](ctx, q.ext,
		`SELECT `+accountColumns+` FROM accounts ORDER BY id`)
}
