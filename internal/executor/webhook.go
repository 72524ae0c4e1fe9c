// Package executor содержит исполнителей выплат, подключаемые к очереди.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/service"
)

const (
	statusCompleted = "completed"
	statusFailed    = "failed"

	maxResponseBody = 64 * 1024
)

// Webhook передаёт выплату во внешний сервис по HTTP.
// Заголовок Idempotency-Key содержит id заявки.
type Webhook struct {
	url         string
	token       string
	destination string
	httpClient  *http.Client
}

// NewWebhook создаёт исполнителя. Таймаут задаёт очередь через контекст.
func NewWebhook(url, token string) *Webhook {
	return &Webhook{
		url:   url,
		token: token,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type webhookRequest struct {
	WithdrawalID   uuid.UUID             `json:"withdrawal_id"`
	AccountID      string                `json:"account_id"`
	Kind           models.WithdrawalKind `json:"kind"`
	Points         uint64                `json:"points"`
	EstimatedValue decimal.Decimal       `json:"estimated_value"`
	Attempt        int                   `json:"attempt"`
	Destination    string                `json:"destination,omitempty"`
}

type webhookResponse struct {
	Status   string `json:"status"`
	Reason   string `json:"reason"`
	GiftCard *struct {
		Brand string          `json:"brand"`
		Code  string          `json:"code"`
		PIN   string          `json:"pin"`
		Value decimal.Decimal `json:"value"`
	} `json:"gift_card"`
}

// WithDestination задаёт реквизиты получателя, которые уходят в теле запроса.
func (w *Webhook) WithDestination(destination string) *Webhook {
	w.destination = destination
	return w
}

// Idempotent сообщает очереди, что прерванную заявку можно отправить повторно.
func (w *Webhook) Idempotent() bool {
	return true
}

// Execute отправляет заявку и разбирает ответ сервиса.
func (w *Webhook) Execute(ctx context.Context, wd models.Withdrawal) service.ExecutionResult {
	log := logger.WithComponent("executor").WithFields(logrus.Fields{
		"withdrawal_id": wd.ID,
		"kind":          wd.Kind,
	})

	resp, err := w.post(ctx, wd)
	if err != nil {
		log.WithError(err).Warn("webhook request failed")
		return service.Failed(err.Error())
	}

	switch resp.Status {
	case statusCompleted:
		if resp.GiftCard == nil {
			return service.Succeeded(nil)
		}
		if strings.TrimSpace(resp.GiftCard.Code) == "" {
			return service.Failed("webhook: пустой код подарочной карты")
		}
		return service.Succeeded(&models.GiftCardSecret{
			Brand: resp.GiftCard.Brand,
			Code:  resp.GiftCard.Code,
			PIN:   resp.GiftCard.PIN,
			Value: resp.GiftCard.Value,
		})
	case statusFailed:
		reason := resp.Reason
		if reason == "" {
			reason = "webhook: выплата отклонена"
		}
		return service.Failed(reason)
	default:
		return service.Failed(fmt.Sprintf("webhook: неизвестный статус %q", resp.Status))
	}
}

func (w *Webhook) post(ctx context.Context, wd models.Withdrawal) (*webhookResponse, error) {
	body, err := json.Marshal(webhookRequest{
		WithdrawalID:   wd.ID,
		AccountID:      wd.AccountID,
		Kind:           wd.Kind,
		Points:         wd.Points,
		EstimatedValue: wd.EstimatedValue,
		Attempt:        wd.Attempts,
		Destination:    w.destination,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", wd.ID.String())
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil, fmt.Errorf("webhook: код ответа %d", resp.StatusCode)
	}

	var result webhookResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&result); err != nil {
		return nil, fmt.Errorf("webhook: не удалось разобрать ответ: %w", err)
	}
	return &result, nil
}

// Register подключает webhook-исполнителей для каждого способа вывода из hooks.
// destinations может быть nil.
func Register(registry *service.ExecutorRegistry, hooks, destinations map[models.WithdrawalKind]string, token string) error {
	for kind, url := range hooks {
		hook := NewWebhook(url, token).WithDestination(destinations[kind])
		if err := registry.Register(kind, hook); err != nil {
			return err
		}
	}
	return nil
}
