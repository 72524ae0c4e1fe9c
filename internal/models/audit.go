package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditRecord неизменяемая запись журнала аудита.
type AuditRecord struct {
	Seq        int64           `json:"seq"`
	ID         uuid.UUID       `json:"id"`
	EventType  AuditEventType  `json:"event_type"`
	RecordedAt time.Time       `json:"recorded_at"`
	Payload    json.RawMessage `json:"payload"`
}
