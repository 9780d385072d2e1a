package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/handler"
	"github.com/boddenberg/wise-recon-go/internal/infra/observability"
	"github.com/boddenberg/wise-recon-go/internal/infra/wise"
	"github.com/boddenberg/wise-recon-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver and admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx, appOptions{ledger: true, strictWise: true})
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "wise-recon")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdown(context.Background())

	// --- Webhooks ---
	if cfg.WiseWebhookKeyPath == "" {
		return fmt.Errorf("TRANSFERWISE_WEBHOOK_PUBLIC_KEY is not set")
	}
	verifier, err := wise.LoadVerifier(cfg.WiseWebhookKeyPath)
	if err != nil {
		return fmt.Errorf("load wise webhook public key: %w", err)
	}

	credit := service.NewBalanceCredit(a.ledger, a.wise, a.notifier(), a.metrics, logger)
	receiver := service.NewReceiver(
		verifier,
		map[domain.EventType]service.EventHandler{
			domain.EventBalanceCredit: credit,
		},
		a.metrics,
		logger,
		service.WithRejectedPayloadLogging(cfg.LogRejectedPayloads),
	)

	// --- Admin ---
	adminAuth := service.NewAdminAuth(cfg.AdminJWTSecret, cfg.AdminAPIKeyHash, cfg.AdminTokenTTL, logger)
	if !adminAuth.Enabled() {
		logger.Warn("admin API disabled: ADMIN_JWT_SECRET or ADMIN_API_KEY_HASH not set")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Receiver:  receiver,
		Discovery: a.discovery,
		Validator: service.NewValidator(cfg.WiseEnvironment, cfg.WiseAPIToken, a.wise, a.discovery, logger),
		AdminAuth: adminAuth,
		Ledger:    a.ledger,
	}, a.metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
