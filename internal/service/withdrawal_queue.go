package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/pkg/apperror"
	"github.com/ignatzorin/earnings-ledger/internal/repository"
)

const (
	DefaultDrainInterval   = 5 * time.Second
	DefaultExecutorTimeout = 30 * time.Second
	defaultDrainBatch      = 50
	finishTimeout          = 10 * time.Second
	defaultFinishRetries   = 3
	defaultFinishBackoff   = 200 * time.Millisecond

	ReasonExecutorTimeout = "executor timeout"
	ReasonInterrupted     = "interrupted"
	giftCardCategory      = "gift_card"
)

// QueueOptions настройки обработки очереди.
type QueueOptions struct {
	DrainInterval   time.Duration
	ExecutorTimeout time.Duration
	BatchSize       int
	// FinishRetries сколько раз повторить запись итога при сбое БД.
	FinishRetries   int
	FinishBackoff   time.Duration
}

type queueCommand int

const (
	commandPause queueCommand = iota
	commandResume
	commandDrain
)

func (c queueCommand) String() string {
	switch c {
	case commandPause:
		return "pause"
	case commandResume:
		return "resume"
	default:
		return "drain"
	}
}

// WithdrawalQueue обрабатывает заявки на вывод в порядке постановки.
// Исполнитель вызывается вне блокировки аккаунта; под блокировкой только
// переходы состояния заявки и изменение баланса.
type WithdrawalQueue struct {
	store     *repository.Store
	ledger    *LedgerService
	vault     *VaultService
	audit     *AuditService
	executors *ExecutorRegistry
	opts      QueueOptions

	commands chan queueCommand
	paused   atomic.Bool
	draining atomic.Bool
}

// NewWithdrawalQueue создаёт очередь. Блокировки аккаунтов общие с ledger.
func NewWithdrawalQueue(store *repository.Store, ledger *LedgerService, vault *VaultService, audit *AuditService, executors *ExecutorRegistry, opts QueueOptions) *WithdrawalQueue {
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = DefaultDrainInterval
	}
	if opts.ExecutorTimeout <= 0 {
		opts.ExecutorTimeout = DefaultExecutorTimeout
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultDrainBatch
	}
	if opts.FinishRetries <= 0 {
		opts.FinishRetries = defaultFinishRetries
	}
	if opts.FinishBackoff <= 0 {
		opts.FinishBackoff = defaultFinishBackoff
	}
	return &WithdrawalQueue{
		store:     store,
		ledger:    ledger,
		vault:     vault,
		audit:     audit,
		executors: executors,
		opts:      opts,
		commands:  make(chan queueCommand, 8),
	}
}

// Run обрабатывает очередь по таймеру и командам до отмены ctx.
func (q *WithdrawalQueue) Run(ctx context.Context) {
	log := logger.WithComponent("queue")
	ticker := time.NewTicker(q.opts.DrainInterval)
	defer ticker.Stop()

	log.WithField("interval", q.opts.DrainInterval).Info("withdrawal queue started")
	defer log.Info("withdrawal queue stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-q.commands:
			log.WithField("command", cmd).Info("queue command received")
			switch cmd {
			case commandPause:
				q.paused.Store(true)
			case commandResume:
				q.paused.Store(false)
				q.drainLogged(ctx)
			case commandDrain:
				q.drainLogged(ctx)
			}
		case <-ticker.C:
			q.drainLogged(ctx)
		}
	}
}

func (q *WithdrawalQueue) drainLogged(ctx context.Context) {
	if q.paused.Load() {
		return
	}
	if _, err := q.DrainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithComponent("queue").WithError(err).Error("drain failed")
	}
}

// Pause приостанавливает обработку. Заявка, уже переданная исполнителю,
// дорабатывается, следующие остаются в очереди.
func (q *WithdrawalQueue) Pause() bool {
	q.paused.Store(true)
	return q.send(commandPause)
}

// Resume возобновляет обработку и сразу разбирает очередь.
func (q *WithdrawalQueue) Resume() bool {
	q.paused.Store(false)
	return q.send(commandResume)
}

// DrainNow просит разобрать очередь вне расписания.
func (q *WithdrawalQueue) DrainNow() bool { return q.send(commandDrain) }

// Paused состояние паузы.
func (q *WithdrawalQueue) Paused() bool {
	return q.paused.Load()
}

func (q *WithdrawalQueue) send(cmd queueCommand) bool {
	select {
	case q.commands <- cmd:
		return true
	default:
		logger.WithComponent("queue").WithField("command", cmd).Warn("queue command dropped, channel full")
		return false
	}
}

// DrainOnce обрабатывает накопившиеся queued заявки по одной.
// Возвращает количество обработанных заявок.
func (q *WithdrawalQueue) DrainOnce(ctx context.Context) (int, error) {
	if q.paused.Load() {
		return 0, nil
	}
	if !q.draining.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer q.draining.Store(false)

	pending, err := q.store.ListWithdrawalsByState(ctx, models.WithdrawalStateQueued, q.opts.BatchSize)
	if err != nil {
		return 0, wrapPersistence(err, "не удалось прочитать очередь")
	}

	processed := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if q.paused.Load() {
			break
		}
		done, err := q.process(ctx, &pending[i])
		if err != nil {
			return processed, err
		}
		if done {
			processed++
		}
	}
	return processed, nil
}

func (q *WithdrawalQueue) process(ctx context.Context, w *models.Withdrawal) (bool, error) {
	log := logger.WithComponent("queue").WithFields(logrus.Fields{
		"withdrawal_id": w.ID,
		"account_id":    w.AccountID,
		"kind":          w.Kind,
	})

	claimed, err := q.claim(ctx, w)
	if err != nil {
		return false, err
	}
	if !claimed {
		log.Debug("withdrawal already claimed")
		return false, nil
	}

	result, err := q.execute(ctx, w)
	if err != nil {
		log.WithError(err).Warn("execution interrupted, withdrawal left in processing")
		return false, err
	}

	if err := q.finishWithRetry(ctx, w, result, log); err != nil {
		log.WithError(err).Error("failed to record withdrawal result, left in processing")
		return false, nil
	}

	if w.State == models.WithdrawalStateCompleted {
		log.WithField("points", w.Points).Info("withdrawal completed")
	} else {
		log.WithField("reason", result.FailureReason).Warn("withdrawal failed")
	}
	return true, nil
}

func (q *WithdrawalQueue) claim(ctx context.Context, w *models.Withdrawal) (bool, error) {
	unlock := q.ledger.locks.Lock(w.AccountID)
	defer unlock()

	var (
		claimed bool
		rec     models.AuditRecord
	)
	err := q.store.InTx(ctx, func(tx *repository.Tx) error {
		now := nowUTC()
		var err error
		claimed, err = tx.ClaimWithdrawal(ctx, w.ID, now)
		if err != nil || !claimed {
			return err
		}

		w.State = models.WithdrawalStateProcessing
		w.StartedAt = &now
		w.Attempts++

		event := newWithdrawalEvent(w)
		event.Attempt = w.Attempts
		rec, err = q.audit.Record(ctx, tx, models.AuditWithdrawalStarted, event)
		return err
	})
	if err != nil {
		return false, wrapPersistence(err, "не удалось взять заявку в работу")
	}

	if claimed {
		q.audit.Committed(ctx, rec)
	}
	return claimed, nil
}

// execute вызывает исполнителя с таймаутом. Ошибка возвращается только при
// отмене ctx: заявка в этом случае остаётся processing.
func (q *WithdrawalQueue) execute(ctx context.Context, w *models.Withdrawal) (ExecutionResult, error) {
	exec, ok := q.executors.Get(w.Kind)
	if !ok {
		return Failed(fmt.Sprintf("no executor registered for kind %s", w.Kind)), nil
	}

	execCtx, cancel := context.WithTimeout(ctx, q.opts.ExecutorTimeout)
	defer cancel()

	// Исполнитель получает копию: после таймаута finish меняет *w,
	// а горутина исполнителя может ещё работать.
	wd := *w
	done := make(chan ExecutionResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Failed(fmt.Sprintf("executor panic: %v", r))
			}
		}()
		done <- exec.Execute(execCtx, wd)
	}()

	select {
	case res := <-done:
		if !res.Success && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return ExecutionResult{}, ctx.Err()
			}
			return Failed(ReasonExecutorTimeout), nil
		}
		if !res.Success && ctx.Err() != nil {
			return ExecutionResult{}, ctx.Err()
		}
		if !res.Success && res.FailureReason == "" {
			res.FailureReason = "executor reported failure"
		}
		return res, nil
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return ExecutionResult{}, ctx.Err()
		}
		return Failed(ReasonExecutorTimeout), nil
	}
}

// finishWithRetry повторяет finish с растущей паузой, пока ошибка не от
// бизнес-логики. Итог фиксируется даже при остановке сервиса.
func (q *WithdrawalQueue) finishWithRetry(ctx context.Context, w *models.Withdrawal, result ExecutionResult, log *logrus.Entry) error {
	backoff := q.opts.FinishBackoff
	for attempt := 1; ; attempt++ {
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
		err := q.finish(finishCtx, w, result)
		cancel()
		if err == nil || !isTransient(err) || attempt > q.opts.FinishRetries {
			return err
		}

		log.WithError(err).WithField("attempt", attempt).Warn("failed to record withdrawal result, retrying")
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}
		backoff *= 2
	}
}

// isTransient: ошибки приложения (конфликт состояния, закрытое хранилище)
// повтором не исправить, остальные считаются сбоем БД.
func isTransient(err error) bool {
	var appErr *apperror.AppError
	return !errors.As(err, &appErr)
}

// finish фиксирует итог выплаты. При успехе баланс уменьшается на баллы
// заявки, а секрет подарочной карты сохраняется в хранилище той же транзакцией.
func (q *WithdrawalQueue) finish(ctx context.Context, w *models.Withdrawal, result ExecutionResult) error {
	unlock := q.ledger.locks.Lock(w.AccountID)
	defer unlock()

	var records []models.AuditRecord
	err := q.store.InTx(ctx, func(tx *repository.Tx) error {
		records = records[:0]
		now := nowUTC()

		if !result.Success {
			reason := result.FailureReason
			w.State = models.WithdrawalStateFailed
			w.FailureReason = &reason
			w.CompletedAt = &now
			if err := tx.FinishWithdrawal(ctx, w); err != nil {
				return err
			}

			event := newWithdrawalEvent(w)
			event.Attempt = w.Attempts
			event.Reason = reason
			rec, err := q.audit.Record(ctx, tx, models.AuditWithdrawalFailed, event)
			if err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		}

		acc, err := tx.GetAccountForUpdate(ctx, w.AccountID)
		if err != nil {
			return err
		}
		if acc.PendingPoints < w.Points {
			return apperror.New(apperror.ErrCodeInternal,
				fmt.Sprintf("остаток аккаунта %s меньше суммы заявки %s", w.AccountID, w.ID))
		}
		acc.PendingPoints -= w.Points
		acc.WithdrawnPoints += w.Points
		acc.LastWithdrawalAt = &now
		acc.UpdatedAt = now
		if err := tx.UpdateAccountBalance(ctx, acc); err != nil {
			return err
		}

		if result.Secret != nil {
			entry, rec, err := q.storeSecret(ctx, tx, w, *result.Secret, now)
			if err != nil {
				return err
			}
			w.VaultEntryID = &entry.ID
			records = append(records, rec)
		}

		w.State = models.WithdrawalStateCompleted
		w.FailureReason = nil
		w.CompletedAt = &now
		if err := tx.FinishWithdrawal(ctx, w); err != nil {
			return err
		}

		event := newWithdrawalEvent(w)
		event.Attempt = w.Attempts
		event.VaultEntryID = w.VaultEntryID
		rec, err := q.audit.Record(ctx, tx, models.AuditWithdrawalCompleted, event)
		if err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		w.State = models.WithdrawalStateProcessing
		w.FailureReason = nil
		w.CompletedAt = nil
		w.VaultEntryID = nil
		return err
	}

	q.audit.Committed(ctx, records...)
	return nil
}

func (q *WithdrawalQueue) storeSecret(ctx context.Context, tx *repository.Tx, w *models.Withdrawal, secret models.GiftCardSecret, now time.Time) (*models.VaultEntry, models.AuditRecord, error) {
	secret.Version = models.GiftCardSecretVersion
	secret.SourceAccount = w.AccountID
	secret.WithdrawalID = &w.ID
	if secret.IssuedAt.IsZero() {
		secret.IssuedAt = now
	}
	if secret.Value.IsZero() {
		secret.Value = w.EstimatedValue
	}

	sealed, err := q.vault.Seal(secret)
	if err != nil {
		return nil, models.AuditRecord{}, err
	}

	category := secret.Brand
	if category == "" {
		category = giftCardCategory
	}
	return q.vault.storeTx(ctx, tx, category, secret.Value, sealed, &w.ID)
}

// Recover разбирает заявки, прерванные остановкой сервиса. Для идемпотентного
// исполнителя заявка возвращается в очередь, иначе помечается failed.
func (q *WithdrawalQueue) Recover(ctx context.Context) (requeued, failed int, err error) {
	stuck, err := q.store.ListWithdrawalsByState(ctx, models.WithdrawalStateProcessing, 1<<20)
	if err != nil {
		return 0, 0, wrapPersistence(err, "не удалось прочитать прерванные заявки")
	}

	for i := range stuck {
		w := &stuck[i]
		retry := q.executors.IsIdempotent(w.Kind)
		if err := q.recoverOne(ctx, w, retry); err != nil {
			return requeued, failed, err
		}
		if retry {
			requeued++
		} else {
			failed++
		}
	}

	if len(stuck) > 0 {
		logger.WithComponent("queue").WithFields(logrus.Fields{
			"requeued": requeued,
			"failed":   failed,
		}).Warn("recovered interrupted withdrawals")
	}
	return requeued, failed, nil
}

func (q *WithdrawalQueue) recoverOne(ctx context.Context, w *models.Withdrawal, retry bool) error {
	unlock := q.ledger.locks.Lock(w.AccountID)
	defer unlock()

	var rec models.AuditRecord
	err := q.store.InTx(ctx, func(tx *repository.Tx) error {
		event := newWithdrawalEvent(w)
		event.Attempt = w.Attempts

		if retry {
			if err := tx.RequeueWithdrawal(ctx, w.ID); err != nil {
				return err
			}
			event.Action = "requeued"
			var err error
			rec, err = q.audit.Record(ctx, tx, models.AuditWithdrawalRecovered, event)
			return err
		}

		now := nowUTC()
		reason := ReasonInterrupted
		w.State = models.WithdrawalStateFailed
		w.FailureReason = &reason
		w.CompletedAt = &now
		if err := tx.FinishWithdrawal(ctx, w); err != nil {
			return err
		}
		event.Action = "failed"
		event.Reason = reason
		var err error
		rec, err = q.audit.Record(ctx, tx, models.AuditWithdrawalFailed, event)
		return err
	})
	if err != nil {
		return wrapPersistence(err, "не удалось восстановить заявку")
	}

	q.audit.Committed(ctx, rec)
	return nil
}

// ReEnqueue повторно проверяет порог аккаунта и ставит заявку при необходимости.
func (q *WithdrawalQueue) ReEnqueue(ctx context.Context, accountID string) (*models.Withdrawal, error) {
	w, err := q.ledger.ReEnqueue(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		q.DrainNow()
	}
	return w, nil
}

// GetWithdrawal заявка по id.
func (q *WithdrawalQueue) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := q.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, wrapPersistence(err, "не удалось прочитать заявку")
	}
	return w, nil
}

// ListWithdrawals история заявок аккаунта. Пустой state - все состояния.
func (q *WithdrawalQueue) ListWithdrawals(ctx context.Context, accountID string, state models.WithdrawalState) ([]models.Withdrawal, error) {
	if state != "" && !state.IsValid() {
		return nil, apperror.Validation("неизвестное состояние заявки %q", state)
	}
	list, err := q.store.ListWithdrawals(ctx, accountID, state)
	if err != nil {
		return nil, wrapPersistence(err, "не удалось прочитать заявки")
	}
	return list, nil
}

// Counts количество активных заявок.
func (q *WithdrawalQueue) Counts(ctx context.Context) (models.WithdrawalCounts, error) {
	counts, err := q.store.CountActiveWithdrawals(ctx)
	if err != nil {
		return models.WithdrawalCounts{}, wrapPersistence(err, "не удалось посчитать заявки")
	}
	return counts, nil
}
