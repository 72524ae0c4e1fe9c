package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/repository"
	"github.com/ignatzorin/earnings-ledger/internal/sealer"
	"github.com/ignatzorin/earnings-ledger/internal/testutil"
)

var testRate = decimal.RequireFromString("0.01")

type fixture struct {
	store     *repository.Store
	audit     *AuditService
	ledger    *LedgerService
	vault     *VaultService
	executors *ExecutorRegistry
	queue     *WithdrawalQueue
	summary   *SummaryService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	policy    models.AccountPolicy
	retention int
	locked    bool
	timeout   time.Duration
	backoff   time.Duration
}

func withThreshold(threshold uint64, kind models.WithdrawalKind) fixtureOption {
	return func(c *fixtureConfig) {
		c.policy = models.AccountPolicy{Threshold: threshold, WithdrawalKind: kind}
	}
}

func withLockedVault() fixtureOption {
	return func(c *fixtureConfig) { c.locked = true }
}

func withExecutorTimeout(d time.Duration) fixtureOption {
	return func(c *fixtureConfig) { c.timeout = d }
}

func withFinishBackoff(d time.Duration) fixtureOption {
	return func(c *fixtureConfig) { c.backoff = d }
}

func withRetention(n int) fixtureOption {
	return func(c *fixtureConfig) { c.retention = n }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{
		policy:  models.AccountPolicy{Threshold: 100, WithdrawalKind: models.WithdrawalKindCrypto},
		timeout: time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := testutil.NewStore(t)
	audit := NewAuditService(store, cfg.retention)
	ledger := NewLedgerService(store, audit, StaticPolicy(cfg.policy))

	var s *sealer.Sealer
	if !cfg.locked {
		s = newTestSealer(t)
	}
	vault := NewVaultService(store, audit, s)

	executors := NewExecutorRegistry()
	queue := NewWithdrawalQueue(store, ledger, vault, audit, executors, QueueOptions{
		DrainInterval:   time.Hour,
		ExecutorTimeout: cfg.timeout,
		FinishBackoff:   cfg.backoff,
	})

	return &fixture{
		store:     store,
		audit:     audit,
		ledger:    ledger,
		vault:     vault,
		executors: executors,
		queue:     queue,
		summary:   NewSummaryService(ledger, vault, audit, queue),
	}
}

func newTestSealer(t *testing.T) *sealer.Sealer {
	t.Helper()
	encoded, err := sealer.GenerateKey()
	require.NoError(t, err)
	key, err := sealer.ParseKey(encoded)
	require.NoError(t, err)
	s, err := sealer.New(key, VaultSealPurpose)
	require.NoError(t, err)
	return s
}

func (f *fixture) credit(t *testing.T, accountID string, points uint64) *CreditResult {
	t.Helper()
	res, err := f.ledger.CreditPoints(context.Background(), accountID, points, testRate)
	require.NoError(t, err)
	return res
}

func (f *fixture) withdrawal(t *testing.T, id uuid.UUID) *models.Withdrawal {
	t.Helper()
	w, err := f.store.GetWithdrawal(context.Background(), id)
	require.NoError(t, err)
	return w
}

func (f *fixture) auditTypes(t *testing.T) []models.AuditEventType {
	t.Helper()
	records, err := f.audit.List(context.Background(), 0, 0)
	require.NoError(t, err)
	types := make([]models.AuditEventType, 0, len(records))
	for _, r := range records {
		types = append(types, r.EventType)
	}
	return types
}

type mockExecutor struct {
	mock.Mock
	idempotent bool
}

func (m *mockExecutor) Execute(ctx context.Context, w models.Withdrawal) ExecutionResult {
	args := m.Called(ctx, w)
	return args.Get(0).(ExecutionResult)
}

func (m *mockExecutor) Idempotent() bool {
	return m.idempotent
}

type recordingSubscriber struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func (s *recordingSubscriber) PublishAudit(rec models.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *recordingSubscriber) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
