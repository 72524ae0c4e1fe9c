//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ignatzorin/earnings-ledger/internal/db"
	"github.com/ignatzorin/earnings-ledger/internal/models"
	"github.com/ignatzorin/earnings-ledger/internal/repository"
)

type PostgresStoreTestSuite struct {
	suite.Suite
	postgres testcontainers.Container
	store    *repository.Store
}

func (s *PostgresStoreTestSuite) SetupSuite() {
	if testing.Short() {
		s.T().Skip("Skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:16-alpine"),
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("example"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(s.T(), err)
	s.postgres = container

	host, err := container.Host(ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(s.T(), err)

	dsn := fmt.Sprintf("host=%s port=%s user=postgres password=example dbname=ledger sslmode=disable", host, port.Port())
	conn, err := db.NewPostgres(ctx, dsn)
	require.NoError(s.T(), err)
	require.NoError(s.T(), db.RunMigrations(ctx, conn))
	// Повторный запуск миграций ничего не делает.
	require.NoError(s.T(), db.RunMigrations(ctx, conn))

	s.store = repository.NewStore(conn)
}

func (s *PostgresStoreTestSuite) TearDownSuite() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.store != nil {
		_ = s.store.DB().Close()
	}
	if s.postgres != nil {
		require.NoError(s.T(), s.postgres.Terminate(ctx))
	}
}

func (s *PostgresStoreTestSuite) TestConcurrentCreditsAreSerialized() {
	ctx := context.Background()
	_, err := s.store.InsertAccountIfAbsent(ctx, newAccount("pg-concurrent"))
	s.Require().NoError(err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.InTx(ctx, func(tx *repository.Tx) error {
				acc, err := tx.GetAccountForUpdate(ctx, "pg-concurrent")
				if err != nil {
					return err
				}
				acc.TotalPoints += 5
				acc.PendingPoints += 5
				acc.UpdatedAt = time.Now().UTC()
				return tx.UpdateAccountBalance(ctx, acc)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	acc, err := s.store.GetAccount(ctx, "pg-concurrent")
	s.Require().NoError(err)
	s.Equal(uint64(workers*5), acc.PendingPoints)
	s.True(acc.Balanced())
}

func (s *PostgresStoreTestSuite) TestPartialIndexAllowsOneActiveWithdrawal() {
	ctx := context.Background()
	_, err := s.store.InsertAccountIfAbsent(ctx, newAccount("pg-active"))
	s.Require().NoError(err)

	first := newWithdrawal("pg-active", 1000)
	s.Require().NoError(s.store.InsertWithdrawal(ctx, first))

	err = s.store.InsertWithdrawal(ctx, newWithdrawal("pg-active", 10))
	s.True(errors.Is(err, repository.ErrActiveWithdrawalExists))

	claimed, err := s.store.ClaimWithdrawal(ctx, first.ID, time.Now().UTC())
	s.Require().NoError(err)
	s.True(claimed)

	now := time.Now().UTC()
	first.State = models.WithdrawalStateCompleted
	first.CompletedAt = &now
	s.Require().NoError(s.store.FinishWithdrawal(ctx, first))

	s.Require().NoError(s.store.InsertWithdrawal(ctx, newWithdrawal("pg-active", 10)))

	got, err := s.store.GetWithdrawal(ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(models.WithdrawalStateCompleted, got.State)
	s.True(got.EstimatedValue.Equal(decimal.NewFromInt(10)))
}

func (s *PostgresStoreTestSuite) TestVaultPayloadRoundTrip() {
	ctx := context.Background()

	withdrawalID := uuid.New()
	entry := &models.VaultEntry{
		ID:               uuid.New(),
		Category:         "pg-brand",
		Value:            decimal.RequireFromString("12.34"),
		EncryptedPayload: []byte{0, 1, 2, 254, 255},
		Status:           models.VaultEntryStatusActive,
		WithdrawalID:     &withdrawalID,
		CreatedAt:        time.Now().UTC(),
	}
	s.Require().NoError(s.store.InsertVaultEntry(ctx, entry))

	got, err := s.store.GetVaultEntry(ctx, entry.ID)
	s.Require().NoError(err)
	s.Equal(entry.EncryptedPayload, got.EncryptedPayload)
	s.Require().NotNil(got.WithdrawalID)
	s.Equal(withdrawalID, *got.WithdrawalID)
	s.True(got.Value.Equal(entry.Value))
}

func (s *PostgresStoreTestSuite) TestAuditTrimKeepsNewest() {
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		s.Require().NoError(s.store.InsertAudit(ctx, &models.AuditRecord{
			ID:         uuid.New(),
			EventType:  models.AuditPointsCredited,
			RecordedAt: base.Add(time.Duration(i) * time.Second),
			Payload:    []byte(fmt.Sprintf(`{"i":%d}`, i)),
		}))
	}

	_, err := s.store.TrimAudit(ctx, 2)
	s.Require().NoError(err)

	records, err := s.store.ListAudit(ctx, 10, 0)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.JSONEq(`{"i":2}`, string(records[0].Payload))
	s.JSONEq(`{"i":3}`, string(records[1].Payload))
}

func TestPostgresStoreTestSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreTestSuite))
}
