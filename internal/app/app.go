package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/dal/rabbitmq"
	notificationrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/notification"
	outboxrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/outbox/postgres"
	"github.com/corray333/backend-labs/checkout/internal/gateway"
	"github.com/corray333/backend-labs/checkout/internal/otel"
	"github.com/corray333/backend-labs/checkout/internal/service/services/checkoutsvc"
	httptransport "github.com/corray333/backend-labs/checkout/internal/transport/http"
	outboxworker "github.com/corray333/backend-labs/checkout/internal/worker/outbox"
)

// App represents the application.
type App struct {
	checkoutSvc    *checkoutsvc.CheckoutService
	transport      *httptransport.HTTPTransport
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	outboxWorker   *outboxworker.Worker
	otelController *otel.OtelController
	workerCancel   context.CancelFunc
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()

	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	outboxRepo := outboxrepo.NewOutboxRepository(postgresClient.Pool())
	notifier := notificationrepo.NewRabbitMQNotificationRepository(rabbitClient, outboxRepo)
	gatewayClient := gateway.MustNewClient()

	checkoutSvc := checkoutsvc.MustNewCheckoutService(
		checkoutsvc.WithPostgresClient(postgresClient),
		checkoutsvc.WithGateway(gatewayClient),
		checkoutsvc.WithNotifier(notifier),
	)

	transport := httptransport.NewHTTPTransport(checkoutSvc)
	transport.RegisterRoutes()

	return &App{
		checkoutSvc:    checkoutSvc,
		transport:      transport,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		outboxWorker:   outboxworker.NewWorker(outboxRepo, rabbitClient),
		otelController: otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	workerCtx, cancel := context.WithCancel(context.Background())
	a.workerCancel = cancel
	go a.outboxWorker.Start(workerCtx)

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.workerCancel()
	a.outboxWorker.Stop()

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	if err := a.postgresClient.Close(); err != nil {
		slog.Error("Database connection close error", "error", err)
	} else {
		slog.Info("Database connection closed gracefully")
	}

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Tracer provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
