package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/repository/common"
)

const vaultColumns = `id, category, value, encrypted_payload, status, withdrawal_id, created_at, redeemed_at`

// InsertVaultEntry сохраняет запись хранилища.
func (q queries) InsertVaultEntry(ctx context.Context, e *models.VaultEntry) error {
	_, err := q.ext.ExecContext(ctx, q.ext.Rebind(`
		INSERT INTO vault_entries (id, category, value, encrypted_payload, status, withdrawal_id, created_at, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.Category, e.Value, e.EncryptedPayload, e.Status, e.WithdrawalID, e.CreatedAt, e.RedeemedAt)
	return err
}

// GetVaultEntry возвращает запись вместе с шифротекстом.
func (q queries) GetVaultEntry(ctx context.Context, id uuid.UUID) (*models.VaultEntry, error) {
	return common.GetOne[models.VaultEntry](ctx, q.ext,
		`SELECT `+vaultColumns+` FROM vault_entries WHERE id = ?`, ErrVaultEntryNotFound, id)
}

// MarkVaultEntryRedeemed переводит active -> redeemed. false, если запись уже погашена.
func (q queries) MarkVaultEntryRedeemed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	n, err := common.ExecAffected(ctx, q.ext,
		`UPDATE vault_entries SET status = ?, redeemed_at = ? WHERE id = ? AND status = ?`,
		models.VaultEntryStatusRedeemed, now, id, models.VaultEntryStatusActive)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if _, err := q.GetVaultEntry(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ListVaultEntries записи по фильтру, новые первыми.
func (q queries) ListVaultEntries(ctx context.Context, filter models.VaultFilter) ([]models.VaultEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT ` + vaultColumns + ` FROM vault_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	return common.SelectAll[models.VaultEntry](ctx, q.ext, query, args...)
}

type vaultValueRow struct {
	Status models.VaultEntryStatus `db:"status"`
	Value  decimal.Decimal         `db:"value"`
}

// VaultTotals считает записи по статусам и сумму номиналов активных записей.
// Сумма считается в decimal: в SQLite номинал хранится строкой.
func (q queries) VaultTotals(ctx context.Context) (models.VaultCounts, decimal.Decimal, error) {
	rows, err := common.SelectAll[vaultValueRow](ctx, q.ext, `SELECT status, value FROM vault_entries`)
	if err != nil {
		return models.VaultCounts{}, decimal.Zero, err
	}

	var counts models.VaultCounts
	total := decimal.Zero
	for _, r := range rows {
		switch r.Status {
		case models.VaultEntryStatusActive:
			counts.Active++
			total = total.Add(r.Value)
		case models.VaultEntryStatusRedeemed:
			counts.Redeemed++
		}
	}
	return counts, total, nil
}
