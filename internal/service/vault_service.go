package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/pkg/apperror"
	"github.com/ignatzorin/earnings-ledger/internal/repository"
	"github.com/ignatzorin/earnings-ledger/internal/sealer"
	"github.com/ignatzorin/earnings-ledger/internal/validation"
)

// VaultSealPurpose контекст вывода подключа для секретов хранилища.
const VaultSealPurpose = "earnings-ledger/vault/gift-card"

// VaultService хранилище зашифрованных секретов подарочных карт.
// Без ключа хранилище закрыто: запись и чтение секретов отклоняются.
type VaultService struct {
	store  *repository.Store
	audit  *AuditService
	sealer *sealer.Sealer
}

// NewVaultService создаёт хранилище. sealer == nil означает, что ключ не настроен.
func NewVaultService(store *repository.Store, audit *AuditService, s *sealer.Sealer) *VaultService {
	return &VaultService{store: store, audit: audit, sealer: s}
}

// Locked сообщает, что ключ хранилища не настроен.
func (v *VaultService) Locked() bool {
	return v.sealer == nil
}

// Seal шифрует секрет ключом хранилища.
func (v *VaultService) Seal(secret models.GiftCardSecret) ([]byte, error) {
	if v.Locked() {
		return nil, apperror.ErrVaultLocked
	}
	if secret.Version == 0 {
		secret.Version = models.GiftCardSecretVersion
	}

	raw, err := json.Marshal(secret)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать секрет")
	}
	sealed, err := v.sealer.Seal(raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось зашифровать секрет")
	}
	return sealed, nil
}

// Store сохраняет уже зашифрованный секрет. Шифротекст должен открываться
// ключом хранилища, иначе запись отклоняется.
func (v *VaultService) Store(ctx context.Context, category string, value decimal.Decimal, encrypted []byte) (uuid.UUID, error) {
	var (
		entry *models.VaultEntry
		rec   models.AuditRecord
	)
	err := v.store.InTx(ctx, func(tx *repository.Tx) error {
		var err error
		entry, rec, err = v.storeTx(ctx, tx, category, value, encrypted, nil)
		return err
	})
	if err != nil {
		return uuid.Nil, wrapPersistence(err, "не удалось сохранить запись хранилища")
	}

	v.audit.Committed(ctx, rec)
	return entry.ID, nil
}

// StoreSecret шифрует и сохраняет секрет.
func (v *VaultService) StoreSecret(ctx context.Context, category string, secret models.GiftCardSecret) (uuid.UUID, error) {
	if secret.IssuedAt.IsZero() {
		secret.IssuedAt = nowUTC()
	}
	sealed, err := v.Seal(secret)
	if err != nil {
		return uuid.Nil, err
	}
	return v.Store(ctx, category, secret.Value, sealed)
}

// storeTx пишет запись внутри транзакции выплаты или отдельной транзакции Store.
func (v *VaultService) storeTx(ctx context.Context, tx *repository.Tx, category string, value decimal.Decimal, encrypted []byte, withdrawalID *uuid.UUID) (*models.VaultEntry, models.AuditRecord, error) {
	category = strings.TrimSpace(category)
	if err := validation.ValidateCategory(category); err != nil {
		return nil, models.AuditRecord{}, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if value.IsNegative() {
		return nil, models.AuditRecord{}, apperror.Validation("номинал не может быть отрицательным")
	}
	if v.Locked() {
		return nil, models.AuditRecord{}, apperror.ErrVaultLocked
	}
	if _, err := v.sealer.Open(encrypted); err != nil {
		return nil, models.AuditRecord{}, apperror.Wrap(err, apperror.ErrCodeDecryptFailure, apperror.ErrDecryptFailure.Message)
	}

	entry := &models.VaultEntry{
		ID:               uuid.New(),
		Category:         category,
		Value:            value,
		EncryptedPayload: encrypted,
		Status:           models.VaultEntryStatusActive,
		WithdrawalID:     withdrawalID,
		CreatedAt:        nowUTC(),
	}
	if err := tx.InsertVaultEntry(ctx, entry); err != nil {
		return nil, models.AuditRecord{}, err
	}

	rec, err := v.audit.Record(ctx, tx, models.AuditVaultEntryStored, vaultEntryEvent{
		EntryID:      entry.ID,
		Category:     entry.Category,
		Value:        entry.Value,
		WithdrawalID: withdrawalID,
	})
	if err != nil {
		return nil, models.AuditRecord{}, err
	}
	return entry, rec, nil
}

// Retrieve расшифровывает секрет записи.
func (v *VaultService) Retrieve(ctx context.Context, id uuid.UUID) (*models.GiftCardSecret, error) {
	if v.Locked() {
		return nil, apperror.ErrVaultLocked
	}

	entry, err := v.store.GetVaultEntry(ctx, id)
	if err != nil {
		return nil, wrapPersistence(err, "не удалось прочитать запись хранилища")
	}

	raw, err := v.sealer.Open(entry.EncryptedPayload)
	if err != nil {
		logger.WithComponent("vault").WithFields(logrus.Fields{
			"entry_id": id,
		}).WithError(err).Warn("vault entry failed authentication")
		return nil, apperror.Wrap(err, apperror.ErrCodeDecryptFailure, apperror.ErrDecryptFailure.Message)
	}

	var secret models.GiftCardSecret
	if err := json.Unmarshal(raw, &secret); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDecryptFailure, apperror.ErrDecryptFailure.Message)
	}
	if secret.Version > models.GiftCardSecretVersion {
		return nil, apperror.Wrap(
			fmt.Errorf("версия секрета %d не поддерживается", secret.Version),
			apperror.ErrCodeDecryptFailure, apperror.ErrDecryptFailure.Message)
	}
	return &secret, nil
}

// MarkRedeemed помечает запись погашенной. Повторный вызов ничего не меняет
// и не пишет событие в журнал.
func (v *VaultService) MarkRedeemed(ctx context.Context, id uuid.UUID) (*models.VaultEntry, error) {
	var (
		entry   *models.VaultEntry
		rec     models.AuditRecord
		changed bool
	)
	err := v.store.InTx(ctx, func(tx *repository.Tx) error {
		var err error
		changed, err = tx.MarkVaultEntryRedeemed(ctx, id, nowUTC())
		if err != nil {
			return err
		}

		entry, err = tx.GetVaultEntry(ctx, id)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		rec, err = v.audit.Record(ctx, tx, models.AuditVaultEntryRedeemed, vaultEntryEvent{
			EntryID:      entry.ID,
			Category:     entry.Category,
			Value:        entry.Value,
			WithdrawalID: entry.WithdrawalID,
		})
		return err
	})
	if err != nil {
		return nil, wrapPersistence(err, "не удалось погасить запись хранилища")
	}

	if changed {
		v.audit.Committed(ctx, rec)
	}
	return entry, nil
}

// ListEntries записи без шифротекстов, по фильтру.
func (v *VaultService) ListEntries(ctx context.Context, filter models.VaultFilter) ([]models.VaultEntry, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.Validation("неизвестный статус %q", filter.Status)
	}

	entries, err := v.store.ListVaultEntries(ctx, filter)
	if err != nil {
		return nil, wrapPersistence(err, "не удалось прочитать хранилище")
	}
	for i := range entries {
		entries[i].EncryptedPayload = nil
	}
	return entries, nil
}

// Totals количество записей и сумма номиналов активных.
func (v *VaultService) Totals(ctx context.Context) (models.VaultCounts, decimal.Decimal, error) {
	counts, total, err := v.store.VaultTotals(ctx)
	if err != nil {
		return models.VaultCounts{}, decimal.Zero, wrapPersistence(err, "не удалось посчитать хранилище")
	}
	return counts, total, nil
}
