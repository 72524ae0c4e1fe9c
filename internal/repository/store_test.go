package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/repository"
	"github.com/ignatzorin/earnings-ledger/internal/testutil"
)

func newAccount(id string) *models.Account {
	now := time.Now().UTC()
	return &models.Account{
		ID:             id,
		ConversionRate: decimal.RequireFromString("0.0001"),
		Threshold:      1000,
		WithdrawalKind: models.WithdrawalKindGiftCard,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func newWithdrawal(accountID string, points uint64) *models.Withdrawal {
	rate := decimal.RequireFromString("0.01")
	return &models.Withdrawal{
		ID:             uuid.New(),
		AccountID:      accountID,
		Points:         points,
		Rate:           rate,
		EstimatedValue: models.PointsValue(points, rate),
		Kind:           models.WithdrawalKindCrypto,
		State:          models.WithdrawalStateQueued,
		QueuedAt:       time.Now().UTC(),
	}
}

func TestAccounts_InsertGetUpdate(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	_, err := store.GetAccount(ctx, "acc")
	assert.True(t, errors.Is(err, repository.ErrAccountNotFound))

	acc := newAccount("acc")
	inserted, err := store.InsertAccountIfAbsent(ctx, acc)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertAccountIfAbsent(ctx, newAccount("acc"))
	require.NoError(t, err)
	assert.False(t, inserted)

	acc.TotalPoints, acc.PendingPoints = 30000, 30000
	acc.ConversionRate = decimal.RequireFromString("0.00015")
	require.NoError(t, store.UpdateAccountBalance(ctx, acc))

	got, err := store.GetAccount(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, uint64(30000), got.PendingPoints)
	assert.True(t, got.ConversionRate.Equal(decimal.RequireFromString("0.00015")))
	assert.Equal(t, models.WithdrawalKindGiftCard, got.WithdrawalKind)
	assert.Nil(t, got.LastWithdrawalAt)

	require.NoError(t, store.UpdateAccountPolicy(ctx, "acc",
		models.AccountPolicy{Threshold: 50, WithdrawalKind: models.WithdrawalKindCrypto}, time.Now().UTC()))
	got, err = store.GetAccount(ctx, "acc")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), got.Threshold)

	err = store.UpdateAccountPolicy(ctx, "missing", models.AccountPolicy{Threshold: 1}, time.Now())
	assert.True(t, errors.Is(err, repository.ErrAccountNotFound))
}

func TestAccounts_BalanceConstraint(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	acc := newAccount("acc")
	_, err := store.InsertAccountIfAbsent(ctx, acc)
	require.NoError(t, err)

	acc.TotalPoints = 10
	acc.PendingPoints = 3
	assert.Error(t, store.UpdateAccountBalance(ctx, acc))
}

func TestWithdrawals_OneActivePerAccount(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	_, err := store.InsertAccountIfAbsent(ctx, newAccount("acc"))
	require.NoError(t, err)

	first := newWithdrawal("acc", 1000)
	require.NoError(t, store.InsertWithdrawal(ctx, first))

	err = store.InsertWithdrawal(ctx, newWithdrawal("acc", 5))
	assert.True(t, errors.Is(err, repository.ErrActiveWithdrawalExists))

	active, err := store.ActiveWithdrawal(ctx, "acc")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)
	assert.True(t, active.EstimatedValue.Equal(decimal.NewFromInt(10)))

	claimed, err := store.ClaimWithdrawal(ctx, first.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = store.ClaimWithdrawal(ctx, first.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, claimed)

	now := time.Now().UTC()
	reason := "declined"
	first.State = models.WithdrawalStateFailed
	first.FailureReason = &reason
	first.CompletedAt = &now
	require.NoError(t, store.FinishWithdrawal(ctx, first))
	assert.True(t, errors.Is(store.FinishWithdrawal(ctx, first), repository.ErrStateConflict))

	active, err = store.ActiveWithdrawal(ctx, "acc")
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, store.InsertWithdrawal(ctx, newWithdrawal("acc", 7)))

	failed, err := store.ListWithdrawals(ctx, "acc", models.WithdrawalStateFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "declined", *failed[0].FailureReason)
	assert.Equal(t, 1, failed[0].Attempts)

	all, err := store.ListWithdrawals(ctx, "acc", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	counts, err := store.CountActiveWithdrawals(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalCounts{Queued: 1}, counts)
}

func TestWithdrawals_Requeue(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	_, err := store.InsertAccountIfAbsent(ctx, newAccount("acc"))
	require.NoError(t, err)

	w := newWithdrawal("acc", 1000)
	require.NoError(t, store.InsertWithdrawal(ctx, w))
	assert.True(t, errors.Is(store.RequeueWithdrawal(ctx, w.ID), repository.ErrStateConflict))

	_, err = store.ClaimWithdrawal(ctx, w.ID, time.Now().UTC())
	require.NoError(t, err)
	processing, err := store.ListWithdrawalsByState(ctx, models.WithdrawalStateProcessing, 10)
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.NotNil(t, processing[0].StartedAt)

	require.NoError(t, store.RequeueWithdrawal(ctx, w.ID))
	got, err := store.GetWithdrawal(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStateQueued, got.State)
	assert.Nil(t, got.StartedAt)

	_, err = store.GetWithdrawal(ctx, uuid.New())
	assert.True(t, errors.Is(err, repository.ErrWithdrawalNotFound))
}

func TestVault_RedeemIsIdempotent(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	entry := &models.VaultEntry{
		ID:               uuid.New(),
		Category:         "Acme",
		Value:            decimal.RequireFromString("25.50"),
		EncryptedPayload: []byte{1, 2, 3, 0, 255},
		Status:           models.VaultEntryStatusActive,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, store.InsertVaultEntry(ctx, entry))

	got, err := store.GetVaultEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.EncryptedPayload, got.EncryptedPayload)

	changed, err := store.MarkVaultEntryRedeemed(ctx, entry.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.MarkVaultEntryRedeemed(ctx, entry.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = store.MarkVaultEntryRedeemed(ctx, uuid.New(), time.Now().UTC())
	assert.True(t, errors.Is(err, repository.ErrVaultEntryNotFound))

	require.NoError(t, store.InsertVaultEntry(ctx, &models.VaultEntry{
		ID: uuid.New(), Category: "Other", Value: decimal.RequireFromString("4.25"),
		EncryptedPayload: []byte{9}, Status: models.VaultEntryStatusActive, CreatedAt: time.Now().UTC(),
	}))

	counts, total, err := store.VaultTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.VaultCounts{Active: 1, Redeemed: 1}, counts)
	assert.True(t, total.Equal(decimal.RequireFromString("4.25")))

	redeemed, err := store.ListVaultEntries(ctx, models.VaultFilter{Status: models.VaultEntryStatusRedeemed})
	require.NoError(t, err)
	require.Len(t, redeemed, 1)
	assert.Equal(t, "Acme", redeemed[0].Category)

	byCategory, err := store.ListVaultEntries(ctx, models.VaultFilter{Category: "Other"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)
}

func TestAudit_InsertListTrim(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		payload, _ := json.Marshal(map[string]int{"i": i})
		rec := &models.AuditRecord{
			ID:         uuid.New(),
			EventType:  models.AuditPointsCredited,
			RecordedAt: base.Add(time.Duration(i) * time.Millisecond),
			Payload:    payload,
		}
		require.NoError(t, store.InsertAudit(ctx, rec))
		assert.Positive(t, rec.Seq)
	}

	n, err := store.CountAudit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	removed, err := store.TrimAudit(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	records, err := store.ListAudit(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.JSONEq(t, fmt.Sprintf(`{"i":%d}`, i+2), string(rec.Payload))
		if i > 0 {
			assert.False(t, rec.RecordedAt.Before(records[i-1].RecordedAt))
		}
	}
}

func TestInTx_RollbackOnError(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx *repository.Tx) error {
		if _, err := tx.InsertAccountIfAbsent(ctx, newAccount("acc")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetAccount(ctx, "acc")
	assert.True(t, errors.Is(err, repository.ErrAccountNotFound))
}
