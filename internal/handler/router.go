package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/boddenberg/wise-recon-go/internal/domain"
	"github.com/boddenberg/wise-recon-go/internal/infra/observability"
	"github.com/boddenberg/wise-recon-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups what the router serves. Admin routes answer 503 when
// Discovery, Validator or AdminAuth is missing or disabled.
type Services struct {
	Receiver  *service.Receiver
	Discovery *service.Discovery
	Validator *service.Validator
	AdminAuth *service.AdminAuth
	Ledger    Pinger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Ledger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Wise webhook ---
	r.Post("/wise-webhook", wiseWebhookHandler(svc.Receiver, logger))

	// --- Admin API ---
	r.Route("/v1/admin", func(r chi.Router) {
		if svc.AdminAuth == nil || !svc.AdminAuth.Enabled() || svc.Discovery == nil || svc.Validator == nil {
			r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusServiceUnavailable, "admin API unavailable: not configured")
			}))
			return
		}

		r.Post("/token", adminTokenHandler(svc.AdminAuth, logger))

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(svc.AdminAuth, logger))

			r.Post("/wise/accounts/discover", discoverAccountsHandler(svc.Discovery, logger))
			r.Get("/wise/accounts", listAccountsHandler(svc.Discovery, logger))
			r.Post("/wise/accounts/{accountId}/activate", setAccountActiveHandler(svc.Discovery, true, logger))
			r.Post("/wise/accounts/{accountId}/deactivate", setAccountActiveHandler(svc.Discovery, false, logger))
			r.Get("/wise/accounts/{accountId}/transactions", listTransactionsHandler(svc.Discovery, logger))
			r.Get("/wise/validate", validateHandler(svc.Validator))
			r.Get("/wise/metrics", reconcileMetricsHandler(metrics))
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(ledger Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "wise-recon", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if ledger != nil {
			start := time.Now()
			err := ledger.Ping(r.Context())
			status := "healthy"
			if err != nil {
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name: "postgres", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		code := http.StatusOK
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				code = http.StatusServiceUnavailable
				break
			}
		}

		writeJSON(w, code, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// Admin: POST /v1/admin/token
// ============================================================

func adminTokenHandler(auth *service.AdminAuth, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.AdminTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := auth.Login(r.Context(), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Admin: Wise accounts
// ============================================================

func discoverAccountsHandler(discovery *service.Discovery, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/wise/accounts/discover")
		defer span.End()

		save := queryBool(r, "save")
		span.SetAttributes(attribute.Bool("discover.save", save))

		result, err := discovery.DiscoverAccounts(ctx, save)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if save {
			logger.Info("admin saved discovered accounts",
				zap.String("token_id", AdminTokenIDFromContext(ctx)),
				zap.Int("saved", result.Saved),
			)
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func listAccountsHandler(discovery *service.Discovery, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := discovery.ListAccounts(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if accounts == nil {
			accounts = []domain.BankAccount{}
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func setAccountActiveHandler(discovery *service.Discovery, active bool, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/wise/accounts/{accountId}")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID), attribute.Bool("account.active", active))

		if err := discovery.SetAccountActive(ctx, accountID, active); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("admin changed bank account",
			zap.String("token_id", AdminTokenIDFromContext(ctx)),
			zap.String("account_id", accountID),
			zap.Bool("active", active),
		)
		w.WriteHeader(http.StatusNoContent)
	}
}

func listTransactionsHandler(discovery *service.Discovery, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txns, err := discovery.ListTransactions(r.Context(), chi.URLParam(r, "accountId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if txns == nil {
			txns = []domain.BankTransaction{}
		}
		writeJSON(w, http.StatusOK, txns)
	}
}

// ============================================================
// Admin: self-check and metrics
// ============================================================

func validateHandler(validator *service.Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := validator.Validate(r.Context())
		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func reconcileMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
