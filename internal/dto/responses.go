package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/earnings-ledger/internal/models"
)

// ErrorResponse represents an error payload
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ListResponse wraps a list with its size
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// NewListResponse creates a ListResponse, never returning a null list
func NewListResponse[T any](items []T, total int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: total}
}

// CreatedResponse represents an identifier of a created entity
type CreatedResponse struct {
	ID uuid.UUID `json:"id"`
}

// QueueCommandResponse represents the result of a queue command
type QueueCommandResponse struct {
	Command  string `json:"command"`
	Accepted bool   `json:"accepted"`
	Paused   bool   `json:"paused"`
}

// ReEnqueueResponse represents the result of an explicit re-evaluation
type ReEnqueueResponse struct {
	Queued     bool               `json:"queued"`
	Withdrawal *models.Withdrawal `json:"withdrawal,omitempty"`
}

// AuditPageResponse represents a page of the audit log
type AuditPageResponse struct {
	Items  []models.AuditRecord `json:"items"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// TokenResponse represents an issued operator token
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
