package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/repository/common"
)

type auditRow struct {
	Seq        int64                 `db:"seq"`
	ID         uuid.UUID             `db:"id"`
	EventType  models.AuditEventType `db:"event_type"`
	RecordedAt time.Time             `db:"recorded_at"`
	Payload    string                `db:"payload"`
}

func (r auditRow) toModel() models.AuditRecord {
	return models.AuditRecord{
		Seq:        r.Seq,
		ID:         r.ID,
		EventType:  r.EventType,
		RecordedAt: r.RecordedAt,
		Payload:    []byte(r.Payload),
	}
}

// InsertAudit добавляет запись в журнал и заполняет Seq.
func (q queries) InsertAudit(ctx context.Context, rec *models.AuditRecord) error {
	var seq int64
	err := q.ext.QueryRowxContext(ctx, q.ext.Rebind(`
		INSERT INTO audit_log (id, event_type, recorded_at, payload)
		VALUES (?, ?, ?, ?)
		RETURNING seq`),
		rec.ID, rec.EventType, rec.RecordedAt, string(rec.Payload)).Scan(&seq)
	if err != nil {
		return err
	}
	rec.Seq = seq
	return nil
}

// ListAudit возвращает записи от старых к новым.
func (q queries) ListAudit(ctx context.Context, limit, offset int) ([]models.AuditRecord, error) {
	rows, err := common.SelectAll[auditRow](ctx, q.ext, `
		SELECT seq, id, event_type, recorded_at, payload
		FROM audit_log ORDER BY recorded_at, seq LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}

	records := make([]models.AuditRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toModel())
	}
	return records, nil
}

// CountAudit количество записей в журнале.
func (q queries) CountAudit(ctx context.Context) (int, error) {
	var n int
	err := q.ext.QueryRowxContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n)
	return n, err
}

// TrimAudit удаляет самые старые записи, оставляя keep последних.
func (q queries) TrimAudit(ctx context.Context, keep int) (int64, error) {
	return common.ExecAffected(ctx, q.ext, `
		DELETE FROM audit_log WHERE seq NOT IN (
			SELECT seq FROM audit_log ORDER BY recorded_at DESC, seq DESC LIMIT ?
		)`, keep)
}
