package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/pkg/apperror"
	"github.com/ignatzorin/earnings-ledger/internal/repository"
)

// DefaultAuditRetention сколько последних записей журнала хранится по умолчанию.
const DefaultAuditRetention = 1000

// AuditSubscriber получает записи журнала после коммита.
type AuditSubscriber interface {
	PublishAudit(rec models.AuditRecord)
}

// AuditService журнал аудита. Записи пишутся в той же транзакции, что и
// изменение состояния, и рассылаются подписчикам только после коммита.
type AuditService struct {
	store     *repository.Store
	retention int

	clockMu sync.Mutex
	last    time.Time

	subsMu      sync.RWMutex
	subscribers []AuditSubscriber
}

// NewAuditService создаёт журнал. retention <= 0 означает значение по умолчанию.
func NewAuditService(store *repository.Store, retention int) *AuditService {
	if retention <= 0 {
		retention = DefaultAuditRetention
	}
	return &AuditService{store: store, retention: retention}
}

// Subscribe добавляет получателя событий.
func (s *AuditService) Subscribe(sub AuditSubscriber) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// Retention лимит хранимых записей.
func (s *AuditService) Retention() int {
	return s.retention
}

// now возвращает неубывающее время записи. Точность микросекунды,
// как у TIMESTAMP в PostgreSQL.
func (s *AuditService) now() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	t := nowUTC()
	if t.Before(s.last) {
		t = s.last
	}
	s.last = t
	return t
}

// Record пишет событие внутри транзакции tx.
// После коммита вызывающий передаёт запись в Committed.
func (s *AuditService) Record(ctx context.Context, tx *repository.Tx, eventType models.AuditEventType, payload any) (models.AuditRecord, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.AuditRecord{}, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сериализовать событие аудита")
	}

	rec := models.AuditRecord{
		ID:         uuid.New(),
		EventType:  eventType,
		RecordedAt: s.now(),
		Payload:    raw,
	}
	if err := tx.InsertAudit(ctx, &rec); err != nil {
		return models.AuditRecord{}, err
	}
	return rec, nil
}

// Committed обрезает журнал до лимита и рассылает записи подписчикам.
// Ошибка обрезки не влияет на уже зафиксированную операцию.
func (s *AuditService) Committed(ctx context.Context, records ...models.AuditRecord) {
	if len(records) == 0 {
		return
	}

	if err := s.Trim(ctx); err != nil {
		logger.WithComponent("audit").WithError(err).Warn("audit trim failed")
	}

	s.subsMu.RLock()
	subs := s.subscribers
	s.subsMu.RUnlock()

	for _, rec := range records {
		for _, sub := range subs {
			sub.PublishAudit(rec)
		}
	}
}

// Append пишет самостоятельное событие в отдельной транзакции.
func (s *AuditService) Append(ctx context.Context, eventType models.AuditEventType, payload any) (models.AuditRecord, error) {
	var rec models.AuditRecord
	err := s.store.InTx(ctx, func(tx *repository.Tx) error {
		var err error
		rec, err = s.Record(ctx, tx, eventType, payload)
		return err
	})
	if err != nil {
		return models.AuditRecord{}, wrapPersistence(err, "не удалось записать событие аудита")
	}

	s.Committed(ctx, rec)
	return rec, nil
}

// Trim удаляет записи сверх лимита, начиная с самых старых.
func (s *AuditService) Trim(ctx context.Context) error {
	removed, err := s.store.TrimAudit(ctx, s.retention)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.WithComponent("audit").WithFields(logrus.Fields{
			"removed":   removed,
			"retention": s.retention,
		}).Debug("audit log trimmed")
	}
	return nil
}

// List записи журнала от старых к новым.
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]models.AuditRecord, error) {
	if limit <= 0 || limit > s.retention {
		limit = s.retention
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.store.ListAudit(ctx, limit, offset)
	if err != nil {
		return nil, wrapPersistence(err, "не удалось прочитать журнал аудита")
	}
	return records, nil
}

// Count количество записей в журнале.
func (s *AuditService) Count(ctx context.Context) (int, error) {
	n, err := s.store.CountAudit(ctx)
	if err != nil {
		return 0, wrapPersistence(err, "не удалось посчитать записи журнала")
	}
	return n, nil
}
