package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/ignatzorin/earnings-ledger/internal/models"
)

// Executor выполняет выплату по заявке во внешней системе.
//
// Реализация обязана быть идемпотентной по Withdrawal.ID: после рестарта
// очередь может вызвать её повторно для той же заявки.
type Executor interface {
	Execute(ctx context.Context, w models.Withdrawal) ExecutionResult
}

// IdempotencyDeclarer реализуют исполнители, которые гарантируют безопасный
// повторный вызов. Без этого прерванная заявка помечается failed при старте.
type IdempotencyDeclarer interface {
	Idempotent() bool
}

// ExecutionResult итог выплаты. Secret заполняется для подарочных карт.
type ExecutionResult struct {
	Success       bool
	Secret        *models.GiftCardSecret
	FailureReason string
}

// Succeeded успешный результат.
func Succeeded(secret *models.GiftCardSecret) ExecutionResult {
	return ExecutionResult{Success: true, Secret: secret}
}

// Failed неуспешный результат с причиной.
func Failed(reason string) ExecutionResult {
	return ExecutionResult{FailureReason: reason}
}

// ExecutorFunc адаптер функции к Executor.
type ExecutorFunc func(ctx context.Context, w models.Withdrawal) ExecutionResult

func (f ExecutorFunc) Execute(ctx context.Context, w models.Withdrawal) ExecutionResult {
	return f(ctx, w)
}

// ExecutorRegistry исполнители по способам вывода.
type ExecutorRegistry struct {
	mu        sync.RWMutex
	executors map[models.WithdrawalKind]Executor
}

// NewExecutorRegistry создаёт пустой реестр.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[models.WithdrawalKind]Executor)}
}

// Register регистрирует исполнителя, заменяя предыдущего.
func (r *ExecutorRegistry) Register(kind models.WithdrawalKind, exec Executor) error {
	if !kind.IsValid() {
		return fmt.Errorf("executor: неизвестный способ вывода %q", kind)
	}
	if exec == nil {
		return fmt.Errorf("executor: пустой исполнитель для %q", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[kind] = exec
	return nil
}

// Get возвращает исполнителя для способа вывода.
func (r *ExecutorRegistry) Get(kind models.WithdrawalKind) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[kind]
	return exec, ok
}

// IsIdempotent сообщает, можно ли повторно вызвать исполнителя после сбоя.
func (r *ExecutorRegistry) IsIdempotent(kind models.WithdrawalKind) bool {
	exec, ok := r.Get(kind)
	if !ok {
		return false
	}
	d, ok := exec.(IdempotencyDeclarer)
	return ok && d.Idempotent()
}
