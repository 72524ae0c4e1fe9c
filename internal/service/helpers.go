package service

import (
	"errors"
	"time"

	"github.com/ignatzorin/earnings-ledger/internal/pkg/apperror"
)

// nowUTC текущее время с точностью до микросекунд: так значения одинаково
// переживают запись в SQLite и PostgreSQL.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// wrapPersistence оставляет доменные ошибки как есть, остальные считает сбоем хранилища.
func wrapPersistence(err error, message string) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Persistence(err, message)
}
