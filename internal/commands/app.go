package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boddenberg/wise-recon-go/internal/config"
	"github.com/boddenberg/wise-recon-go/internal/infra/cache"
	"github.com/boddenberg/wise-recon-go/internal/infra/notify"
	"github.com/boddenberg/wise-recon-go/internal/infra/observability"
	"github.com/boddenberg/wise-recon-go/internal/infra/postgres"
	"github.com/boddenberg/wise-recon-go/internal/infra/resilience"
	"github.com/boddenberg/wise-recon-go/internal/infra/wise"
	"github.com/boddenberg/wise-recon-go/internal/port"
	"github.com/boddenberg/wise-recon-go/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics

	pool   *pgxpool.Pool
	ledger *postgres.LedgerStore

	wise      *wise.Client
	profiles  *cache.InMemory[int64]
	discovery *service.Discovery
}

type appOptions struct {
	// ledger connects to Postgres.
	ledger bool
	// strictWise fails on an unknown TRANSFERWISE_ENVIRONMENT instead of
	// leaving the self-check to report it.
	strictWise bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel)

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("wise_environment", cfg.WiseEnvironment),
		zap.Int64("wise_profile_id", cfg.WiseProfileID),
		zap.Bool("wise_2fa_key", cfg.WisePrivateKeyPath != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
	}

	if opts.ledger {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, resilience.Config{
			MaxRetries:     cfg.DBConnectRetries,
			InitialBackoff: cfg.DBConnectBackoff,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.ledger = postgres.NewLedgerStore(pool)
	}

	baseURL, err := wise.BaseURL(cfg.WiseEnvironment)
	if err != nil {
		if opts.strictWise {
			a.Close()
			return nil, err
		}
		baseURL = wise.SandboxBaseURL
	}

	clientOpts := []wise.Option{wise.WithBulkhead(resilience.NewBulkhead(cfg.MaxConcurrency))}
	if cfg.WisePrivateKeyPath != "" {
		signer, err := wise.LoadSigner(cfg.WisePrivateKeyPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load wise private key: %w", err)
		}
		clientOpts = append(clientOpts, wise.WithChallengeSigner(signer))
	}

	a.wise = wise.NewClient(
		&http.Client{Timeout: cfg.HTTPTimeout},
		baseURL,
		cfg.WiseAPIToken,
		resilience.NewCircuitBreaker("wise"),
		a.metrics,
		logger,
		clientOpts...,
	)

	a.profiles = cache.New[int64](cfg.CacheTTL)

	// Without Postgres the discovery service only resolves the profile.
	var ledger port.LedgerStore
	if a.ledger != nil {
		ledger = a.ledger
	}
	a.discovery = service.NewDiscovery(a.wise, ledger, a.profiles, cfg.WiseProfileID, a.metrics, logger)

	return a, nil
}

// notifier returns the Telegram notifier when a bot token is configured,
// the log notifier otherwise.
func (a *app) notifier() port.Notifier {
	if a.cfg.TelegramBotToken == "" {
		return notify.NewLog(a.logger)
	}
	if a.cfg.TelegramChatID == 0 {
		a.logger.Warn("TELEGRAM_CHAT_ID not set, alerts go to the log only")
		return notify.NewLog(a.logger)
	}
	tg, err := notify.DialTelegram(a.cfg.TelegramBotToken, a.cfg.TelegramChatID, a.logger)
	if err != nil {
		a.logger.Warn("telegram unavailable, alerts go to the log only", zap.Error(err))
		return notify.NewLog(a.logger)
	}
	return tg
}

func (a *app) Close() {
	if a.profiles != nil {
		a.profiles.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.logger.Sync()
}

// exitError reports a failed command whose output already explains why.
type exitError struct {
	msg string
}

func (e *exitError) Error() string { return e.msg }

