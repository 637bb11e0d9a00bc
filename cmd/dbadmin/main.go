package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kolobok/dbadmin/internal/approval"
	"github.com/kolobok/dbadmin/internal/audit"
	"github.com/kolobok/dbadmin/internal/broker"
	"github.com/kolobok/dbadmin/internal/cli"
	"github.com/kolobok/dbadmin/internal/config"
	"github.com/kolobok/dbadmin/internal/db"
	"github.com/kolobok/dbadmin/internal/display"
	"github.com/kolobok/dbadmin/internal/models"
	"github.com/kolobok/dbadmin/internal/processor"
	"github.com/kolobok/dbadmin/internal/service"
	"github.com/kolobok/dbadmin/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)

	if err := run(cfg, logger); err != nil {
		logger.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go serveMetrics(cfg.MetricsAddr, logger)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening data store: %w", err)
	}
	defer store.Close()

	client, err := connectBroker(ctx, cfg.RabbitMQURL, logger)
	if err != nil {
		return fmt.Errorf("connecting to broker: %w", err)
	}
	defer client.Close()

	slot := approval.NewSlot()
	router := approval.NewRouter(slot, logger)
	handler := processor.NewCallbackHandler(router, logger)

	consumer, err := broker.NewCallbackConsumer(cfg.RabbitMQURL, handler, logger)
	if err != nil {
		return fmt.Errorf("starting callback consumer: %w", err)
	}
	defer consumer.Close()
	go func() {
		if err := consumer.Listen(ctx); err != nil {
			logger.Error("Callback consumer stopped", "error", err)
		}
	}()

	auditor := audit.New(client, cfg.ActorName, cfg.AuditLogPath, logger)

	verifier := service.NewSecretVerifier(cfg.SecretURL, cfg.SecretFetchTimeout)
	approver := approval.NewApprover(slot, client, cfg.ActorName, cfg.ApprovalTimeout, cfg.ApprovalPollInterval, logger)
	gate := service.NewGate(verifier, approver, auditor, cfg.LoginAttempts, cfg.SharedAttemptBudget, logger)

	reader := cli.NewLineReader(os.Stdin, os.Stdout)
	prompter := cli.NewLoginPrompter(reader, os.Stdout)

	if gate.Authenticate(ctx, prompter) != service.OutcomeSuccess {
		auditor.Flush(cfg.ShutdownFlushTimeout)
		return nil
	}

	catalog, err := display.Load(cfg.DisplayMapPath)
	if err != nil {
		logger.Warn("Display catalog unavailable, using raw identifiers", "error", err)
		catalog = &display.Catalog{}
	}

	engine := service.NewEngine(store, auditor, logger)
	app := cli.NewApp(engine, catalog, reader, os.Stdout, logger)

	runErr := app.Run(ctx)

	// Final events go out synchronously within the shutdown budget
	auditor.EmitSync(models.EventLogout, "", "session ended", cfg.ShutdownFlushTimeout)
	if err := auditor.Flush(cfg.ShutdownFlushTimeout); err != nil {
		logger.Warn("Audit drain incomplete", "error", err)
	}

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (db.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		return db.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	case "firebird":
		return db.NewFirebirdStore(cfg.DatabaseURL, logger)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q (want postgres or firebird)", cfg.DBDriver)
	}
}

// connectBroker retries the initial connection with jittered backoff so a
// broker that is still starting does not kill the console.
func connectBroker(ctx context.Context, url string, logger *slog.Logger) (*broker.RabbitMQClient, error) {
	backoff := infra.NewBackoff(500*time.Millisecond, 10*time.Second, 2.0)

	for {
		client, err := broker.NewRabbitMQClient(url, logger)
		if err == nil {
			return client, nil
		}
		if backoff.Attempts() >= 5 {
			return nil, err
		}

		wait := backoff.Next()
		logger.Warn("Broker connect failed, retrying", "attempt", backoff.Attempts(), "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", "error", err)
	}
}
