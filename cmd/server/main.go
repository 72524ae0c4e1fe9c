package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/earnings-ledger/internal/config"
	"github.com/ignatzorin/earnings-ledger/internal/db"
	"github.com/ignatzorin/earnings-ledger/internal/executor"
	"github.com/ignatzorin/earnings-ledger/internal/goroutine"
	httpHandlers "github.com/ignatzorin/earnings-ledger/internal/http/handlers"
	httpRouter "github.com/ignatzorin/earnings-ledger/internal/http/router"
	"github.com/ignatzorin/earnings-ledger/internal/logger"
	"github.com/ignatzorin/earnings-ledger/internal/repository"
	"github.com/ignatzorin/earnings-ledger/internal/sealer"
	"github.com/ignatzorin/earnings-ledger/internal/service"
	"github.com/ignatzorin/earnings-ledger/internal/ws"
)

const queueStopTimeout = 30 * time.Second

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}
	mainLog := logger.WithComponent("main")

	// Подключение к базе и миграции.
	dbConn, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	vaultSealer, err := newSealer(cfg.VaultKey)
	if err != nil {
		log.Fatalf("main: невалидный VAULT_KEY: %v", err)
	}
	if vaultSealer == nil {
		mainLog.Warn("VAULT_KEY не задан: хранилище заблокировано, выплаты подарочными картами не завершатся")
	}

	store := repository.NewStore(dbConn)
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)

	// Исполнители выплат.
	executors := service.NewExecutorRegistry()
	if err := executor.Register(executors, cfg.ExecutorHooks, cfg.ExecutorDestinations, cfg.ExecutorToken); err != nil {
		log.Fatalf("main: ошибка регистрации исполнителей: %v", err)
	}

	// Сервисы.
	auditService := service.NewAuditService(store, cfg.AuditRetention)
	ledgerService := service.NewLedgerService(store, auditService, cfg)
	vaultService := service.NewVaultService(store, auditService, vaultSealer)
	queue := service.NewWithdrawalQueue(store, ledgerService, vaultService, auditService, executors, service.QueueOptions{
		DrainInterval:   cfg.DrainInterval,
		ExecutorTimeout: cfg.ExecutorTimeout,
	})
	summaryService := service.NewSummaryService(ledgerService, vaultService, auditService, queue)

	// Вебсокеты: поток записей аудита.
	hub := ws.NewHub()
	auditService.Subscribe(hub)
	goroutine.SafeGoWithContext(ctx, "ws-hub", hub.Run)

	// Заявки, зависшие в processing после прошлого запуска.
	requeued, failed, err := queue.Recover(ctx)
	if err != nil {
		log.Fatalf("main: ошибка восстановления очереди: %v", err)
	}
	if requeued > 0 || failed > 0 {
		mainLog.WithField("requeued", requeued).WithField("failed", failed).Info("queue recovered")
	}
	queueDone := goroutine.SafeGoWait(ctx, "withdrawal-queue", queue.Run)

	// HTTP хэндлеры.
	ledgerHandler := httpHandlers.NewLedgerHandler(ledgerService)
	withdrawalHandler := httpHandlers.NewWithdrawalHandler(queue)
	vaultHandler := httpHandlers.NewVaultHandler(vaultService)
	reportHandler := httpHandlers.NewReportHandler(summaryService, auditService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, queue, vaultService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, tokenManager, ledgerHandler, withdrawalHandler, vaultHandler, reportHandler, healthHandler, wsHandler)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	mainLog.WithField("port", cfg.HTTPPort).WithField("driver", cfg.DBDriver).Info("HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}

	// База закрывается только после того, как очередь запишет текущий итог.
	select {
	case <-queueDone:
	case <-time.After(queueStopTimeout):
		mainLog.Warn("withdrawal queue did not stop in time")
	}
}

// newSealer возвращает nil без ключа: хранилище тогда работает в заблокированном режиме.
func newSealer(encodedKey string) (*sealer.Sealer, error) {
	if encodedKey == "" {
		return nil, nil
	}
	key, err := sealer.ParseKey(encodedKey)
	if err != nil {
		return nil, err
	}
	return sealer.New(key, service.VaultSealPurpose)
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
