package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/earnings-ledger/internal/logger"
)

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	log logrus.FieldLogger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(log logrus.FieldLogger) *RecoveryHandler {
	return &RecoveryHandler{log: log}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(name string, fn func()) {
	go func() {
		defer rh.recover(name)
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer rh.recover(name)
		fn(ctx)
	}()
}

// SafeGoWait как SafeGoWithContext, но возвращает канал, закрываемый после
// выхода fn (в том числе по panic).
func (rh *RecoveryHandler) SafeGoWait(ctx context.Context, name string, fn func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer rh.recover(name)
		fn(ctx)
	}()
	return done
}

func (rh *RecoveryHandler) recover(name string) {
	if r := recover(); r != nil {
		rh.log.WithFields(logrus.Fields{
			"goroutine": name,
			"panic":     r,
			"stack":     string(debug.Stack()),
		}).Error("panic in goroutine")
	}
}

// SafeGo - упрощенная функция для запуска безопасной горутины.
// Логгер берётся в момент вызова, чтобы учитывать logger.Init.
func SafeGo(name string, fn func()) {
	NewRecoveryHandler(logger.WithComponent("goroutine")).SafeGo(name, fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	NewRecoveryHandler(logger.WithComponent("goroutine")).SafeGoWithContext(ctx, name, fn)
}

// SafeGoWait - упрощенная функция, возвращающая канал завершения горутины.
func SafeGoWait(ctx context.Context, name string, fn func(context.Context)) <-chan struct{} {
	return NewRecoveryHandler(logger.WithComponent("goroutine")).SafeGoWait(ctx, name, fn)
}
