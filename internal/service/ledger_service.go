package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/pkg/apperror"
	"github.com/ignatzorin/earnings-ledger/internal/repository"
	"github.com/ignatzorin/earnings-ledger/internal/validation"
)

// PolicyResolver выдаёт порог и способ вывода для нового аккаунта.
type PolicyResolver interface {
	PolicyFor(accountID string) models.AccountPolicy
}

// StaticPolicy одна политика для всех аккаунтов.
type StaticPolicy models.AccountPolicy

func (p StaticPolicy) PolicyFor(string) models.AccountPolicy {
	return models.AccountPolicy(p)
}

// CreditResult итог начисления.
type CreditResult struct {
	AccountID  string                 `json:"account_id"`
	Points     uint64                 `json:"points"`
	Value      decimal.Decimal        `json:"value"`
	Balance    models.AccountSnapshot `json:"balance"`
	Withdrawal *models.Withdrawal     `json:"withdrawal,omitempty"`
}

// LedgerService начисления и балансы аккаунтов.
type LedgerService struct {
	store  *repository.Store
	audit  *AuditService
	policy PolicyResolver
	locks  *accountLocks
}

// NewLedgerService создаёт сервис леджера.
func NewLedgerService(store *repository.Store, audit *AuditService, policy PolicyResolver) *LedgerService {
	return &LedgerService{
		store:  store,
		audit:  audit,
		policy: policy,
		locks:  newAccountLocks(),
	}
}

// CreditPoints начисляет баллы аккаунту. Аккаунт создаётся при первом
// начислении. Если накопленный остаток достиг порога и активной заявки нет,
// в той же транзакции ставится заявка на вывод всего остатка.
func (s *LedgerService) CreditPoints(ctx context.Context, accountID string, points uint64, rate decimal.Decimal) (*CreditResult, error) {
	accountID = strings.TrimSpace(accountID)
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	if points == 0 {
		return nil, apperror.Validation("количество баллов должно быть больше нуля")
	}
	if points > math.MaxInt64 {
		return nil, apperror.Validation("слишком большое начисление: %d", points)
	}
	if !rate.IsPositive() {
		return nil, apperror.Validation("курс конвертации должен быть положительным")
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	result := &CreditResult{AccountID: accountID, Points: points, Value: models.PointsValue(points, rate)}
	var records []models.AuditRecord

	err := s.store.InTx(ctx, func(tx *repository.Tx) error {
		now := nowUTC()

		created, err := tx.InsertAccountIfAbsent(ctx, s.newAccount(accountID, rate, now))
		if err != nil {
			return err
		}

		acc, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		// Счётчики хранятся в BIGINT.
		if acc.TotalPoints > math.MaxInt64-points {
			return apperror.Validation("переполнение счётчика баллов аккаунта %s", accountID)
		}
		acc.TotalPoints += points
		acc.PendingPoints += points
		acc.ConversionRate = rate
		acc.UpdatedAt = now
		if err := tx.UpdateAccountBalance(ctx, acc); err != nil {
			return err
		}

		rec, err := s.audit.Record(ctx, tx, models.AuditPointsCredited, pointsCreditedEvent{
			AccountID: accountID,
			Points:    points,
			Rate:      rate,
			Value:     result.Value,
			Pending:   acc.PendingPoints,
			Total:     acc.TotalPoints,
			Created:   created,
		})
		if err != nil {
			return err
		}
		records = append(records, rec)

		w, queued, err := s.enqueueIfEligible(ctx, tx, acc, now)
		if err != nil {
			return err
		}
		if queued != nil {
			records = append(records, *queued)
		}

		result.Balance = acc.Snapshot()
		result.Withdrawal = w
		return nil
	})
	if err != nil {
		return nil, wrapPersistence(err, "не удалось сохранить начисление")
	}

	s.audit.Committed(ctx, records...)

	log := logger.WithComponent("ledger").WithFields(logrus.Fields{
		"account_id": accountID,
		"points":     points,
		"pending":    result.Balance.Pending,
	})
	if result.Withdrawal != nil {
		log.WithField("withdrawal_id", result.Withdrawal.ID).Info("threshold reached, withdrawal queued")
	} else {
		log.Debug("points credited")
	}

	return result, nil
}

// GetBalance снимок баланса. Для неизвестного аккаунта Found=false.
func (s *LedgerService) GetBalance(ctx context.Context, accountID string) (models.AccountSnapshot, error) {
	acc, err := s.store.GetAccount(ctx, strings.TrimSpace(accountID))
	if err != nil {
		if apperror.IsNotFound(err) {
			return models.AccountSnapshot{
				AccountID:      accountID,
				ValuePending:   decimal.Zero,
				ConversionRate: decimal.Zero,
			}, nil
		}
		return models.AccountSnapshot{}, wrapPersistence(err, "не удалось прочитать баланс")
	}
	return acc.Snapshot(), nil
}

// ListAccounts снимки всех аккаунтов.
func (s *LedgerService) ListAccounts(ctx context.Context) ([]models.AccountSnapshot, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, wrapPersistence(err, "не удалось прочитать аккаунты")
	}

	snapshots := make([]models.AccountSnapshot, 0, len(accounts))
	for i := range accounts {
		snapshots = append(snapshots, accounts[i].Snapshot())
	}
	return snapshots, nil
}

// ConfigureAccount меняет порог и способ вывода существующего аккаунта.
// Уже поставленные заявки не пересчитываются.
func (s *LedgerService) ConfigureAccount(ctx context.Context, accountID string, policy models.AccountPolicy) (models.AccountSnapshot, error) {
	accountID = strings.TrimSpace(accountID)
	if err := validateAccountID(accountID); err != nil {
		return models.AccountSnapshot{}, err
	}
	if !policy.WithdrawalKind.IsValid() {
		return models.AccountSnapshot{}, apperror.Validation("неизвестный способ вывода %q", policy.WithdrawalKind)
	}
	if policy.Threshold == 0 || policy.Threshold > math.MaxInt64 {
		return models.AccountSnapshot{}, apperror.Validation("порог вывода должен быть от 1 до %d", int64(math.MaxInt64))
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	var (
		snapshot models.AccountSnapshot
		rec      models.AuditRecord
	)
	err := s.store.InTx(ctx, func(tx *repository.Tx) error {
		acc, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		now := nowUTC()
		if err := tx.UpdateAccountPolicy(ctx, accountID, policy, now); err != nil {
			return err
		}
		acc.Threshold = policy.Threshold
		acc.WithdrawalKind = policy.WithdrawalKind
		acc.UpdatedAt = now

		rec, err = s.audit.Record(ctx, tx, models.AuditAccountConfigured, accountConfiguredEvent{
			AccountID:      accountID,
			Threshold:      policy.Threshold,
			WithdrawalKind: policy.WithdrawalKind,
		})
		if err != nil {
			return err
		}

		snapshot = acc.Snapshot()
		return nil
	})
	if err != nil {
		return models.AccountSnapshot{}, wrapPersistence(err, "не удалось изменить настройки аккаунта")
	}

	s.audit.Committed(ctx, rec)
	return snapshot, nil
}

// ReEnqueue повторно проверяет порог аккаунта, например после неуспешного вывода.
// Возвращает nil, если ставить заявку не нужно.
func (s *LedgerService) ReEnqueue(ctx context.Context, accountID string) (*models.Withdrawal, error) {
	accountID = strings.TrimSpace(accountID)

	unlock := s.locks.Lock(accountID)
	defer unlock()

	var (
		w   *models.Withdrawal
		rec *models.AuditRecord
	)
	err := s.store.InTx(ctx, func(tx *repository.Tx) error {
		acc, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		w, rec, err = s.enqueueIfEligible(ctx, tx, acc, nowUTC())
		return err
	})
	if err != nil {
		return nil, wrapPersistence(err, "не удалось поставить заявку в очередь")
	}

	if rec != nil {
		s.audit.Committed(ctx, *rec)
	}
	return w, nil
}

func (s *LedgerService) newAccount(accountID string, rate decimal.Decimal, now time.Time) *models.Account {
	policy := s.policy.PolicyFor(accountID)
	return &models.Account{
		ID:             accountID,
		ConversionRate: rate,
		Threshold:      policy.Threshold,
		WithdrawalKind: policy.WithdrawalKind,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// enqueueIfEligible ставит заявку на весь остаток, если порог достигнут и
// активной заявки у аккаунта нет. Вызывается под блокировкой аккаунта.
func (s *LedgerService) enqueueIfEligible(ctx context.Context, tx *repository.Tx, acc *models.Account, now time.Time) (*models.Withdrawal, *models.AuditRecord, error) {
	if !acc.ReachedThreshold() {
		return nil, nil, nil
	}

	active, err := tx.ActiveWithdrawal(ctx, acc.ID)
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		return nil, nil, nil
	}

	w := &models.Withdrawal{
		ID:             uuid.New(),
		AccountID:      acc.ID,
		Points:         acc.PendingPoints,
		Rate:           acc.ConversionRate,
		EstimatedValue: acc.PendingValue(),
		Kind:           acc.WithdrawalKind,
		State:          models.WithdrawalStateQueued,
		QueuedAt:       now,
	}
	if err := tx.InsertWithdrawal(ctx, w); err != nil {
		return nil, nil, err
	}

	rec, err := s.audit.Record(ctx, tx, models.AuditWithdrawalQueued, newWithdrawalEvent(w))
	if err != nil {
		return nil, nil, err
	}
	return w, &rec, nil
}

func validateAccountID(accountID string) error {
	if err := validation.ValidateAccountID(accountID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return nil
}
