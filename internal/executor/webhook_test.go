package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/service"
)

func testWithdrawal() models.Withdrawal {
	return models.Withdrawal{
		ID:             uuid.New(),
		AccountID:      "acc-1",
		Points:         1000,
		Rate:           decimal.RequireFromString("0.01"),
		EstimatedValue: decimal.RequireFromString("10"),
		Kind:           models.WithdrawalKindGiftCard,
		State:          models.WithdrawalStateProcessing,
		Attempts:       1,
	}
}

func TestWebhook_CompletedWithGiftCard(t *testing.T) {
	wd := testWithdrawal()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, wd.ID.String(), r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer hook-token", r.Header.Get("Authorization"))

		var body webhookRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, wd.ID, body.WithdrawalID)
		assert.Equal(t, uint64(1000), body.Points)
		assert.True(t, decimal.RequireFromString("10").Equal(body.EstimatedValue))
		assert.Empty(t, body.Destination)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"completed","gift_card":{"brand":"acme","code":"AC-1","pin":"99","value":"10"}}`))
	}))
	defer srv.Close()

	res := NewWebhook(srv.URL, "hook-token").Execute(context.Background(), wd)
	require.True(t, res.Success, res.FailureReason)
	require.NotNil(t, res.Secret)
	assert.Equal(t, "acme", res.Secret.Brand)
	assert.Equal(t, "AC-1", res.Secret.Code)
	assert.Equal(t, "99", res.Secret.PIN)
}

func TestWebhook_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason string
	}{
		{name: "declined", status: http.StatusOK, body: `{"status":"failed","reason":"insufficient funds"}`, reason: "insufficient funds"},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, reason: "код ответа 502"},
		{name: "garbage", status: http.StatusOK, body: `not json`, reason: "не удалось разобрать ответ"},
		{name: "unknown status", status: http.StatusOK, body: `{"status":"pending"}`, reason: "неизвестный статус"},
		{name: "empty code", status: http.StatusOK, body: `{"status":"completed","gift_card":{"code":" "}}`, reason: "пустой код"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res := NewWebhook(srv.URL, "").Execute(context.Background(), testWithdrawal())
			assert.False(t, res.Success)
			assert.Contains(t, res.FailureReason, tt.reason)
		})
	}
}

func TestWebhook_RespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := NewWebhook(srv.URL, "").Execute(ctx, testWithdrawal())
	assert.False(t, res.Success)
	assert.Contains(t, res.FailureReason, "deadline")
}

func TestRegister_PassesDestination(t *testing.T) {
	bodies := make(chan map[string]any, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	}))
	defer srv.Close()

	registry := service.NewExecutorRegistry()
	err := Register(registry,
		map[models.WithdrawalKind]string{
			models.WithdrawalKindCrypto:   srv.URL,
			models.WithdrawalKindGiftCard: srv.URL,
		},
		map[models.WithdrawalKind]string{models.WithdrawalKindCrypto: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"},
		"")
	require.NoError(t, err)

	crypto, ok := registry.Get(models.WithdrawalKindCrypto)
	require.True(t, ok)
	wd := testWithdrawal()
	wd.Kind = models.WithdrawalKindCrypto
	require.True(t, crypto.Execute(context.Background(), wd).Success)
	assert.Equal(t, "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh", (<-bodies)["destination"])

	giftCard, ok := registry.Get(models.WithdrawalKindGiftCard)
	require.True(t, ok)
	require.True(t, giftCard.Execute(context.Background(), testWithdrawal()).Success)
	assert.NotContains(t, <-bodies, "destination")
}

func TestRegister(t *testing.T) {
	registry := service.NewExecutorRegistry()

	err := Register(registry, map[models.WithdrawalKind]string{
		models.WithdrawalKindCrypto: "http://localhost:9/hook",
	}, nil, "")
	require.NoError(t, err)

	_, ok := registry.Get(models.WithdrawalKindCrypto)
	assert.True(t, ok)
	assert.True(t, registry.IsIdempotent(models.WithdrawalKindCrypto))

	err = Register(registry, map[models.WithdrawalKind]string{"paypal": "http://localhost:9"}, nil, "")
	assert.Error(t, err)
}
