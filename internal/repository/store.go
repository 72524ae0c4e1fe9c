package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/earnings-ledger/internal/pkg/apperror"
	"github.com/ignatzorin/earnings-ledger/internal/repository/common"
)

var (
	ErrAccountNotFound        = apperror.ErrAccountNotFound
	ErrWithdrawalNotFound     = apperror.ErrWithdrawalNotFound
	ErrVaultEntryNotFound     = apperror.ErrVaultEntryNotFound
	ErrActiveWithdrawalExists = apperror.New(apperror.ErrCodeConflict, "у аккаунта уже есть активная заявка на вывод")
	ErrStateConflict          = apperror.New(apperror.ErrCodeConflict, "состояние заявки изменилось")
)

// Store доступ к таблицам леджера. Методы Store работают вне транзакции,
// для атомарных изменений используется InTx.
type Store struct {
	queries
	db *sqlx.DB
}

// Tx набор тех же запросов внутри одной транзакции.
type Tx struct {
	queries
}

type queries struct {
	ext       sqlx.ExtContext
	forUpdate string
}

// NewStore создаёт хранилище поверх соединения sqlx.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		queries: queries{ext: db, forUpdate: lockClause(db.DriverName())},
		db:      db,
	}
}

// DB возвращает соединение (health check, статистика пула).
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// InTx выполняет fn в транзакции; ошибка fn откатывает все изменения.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	return common.WithTransaction(ctx, s.db, func(sqlTx *sqlx.Tx) error {
		return fn(&Tx{queries: queries{ext: sqlTx, forUpdate: s.forUpdate}})
	})
}

// SQLite блокирует базу целиком на запись, FOR UPDATE там не поддерживается.
func lockClause(driver string) string {
	if driver == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}
