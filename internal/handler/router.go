package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/observability"
	"github.com/BnaryBlade/loyalty-hive-core/internal/service"
)

var tracer = otel.Tracer("handler")

// Options carries the transport-level knobs of the router.
type Options struct {
	// Idempotency stores replayable responses of mutating routes. nil
	// disables Idempotency-Key handling.
	Idempotency *IdempotencyCache
	// LoginLimit throttles the login and register endpoints per client IP.
	LoginLimit RateLimit
	// AllowedOrigins enables CORS for the storefront and admin front ends.
	AllowedOrigins []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.LoyaltyService, authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", idempotencyHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	limiter := NewRateLimiter(opts.LoginLimit, logger)
	idempotent := Idempotency(opts.Idempotency, logger)

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Program (public)
		// =============================================
		r.Get("/levels", levelsHandler(svc))
		r.Get("/program", programHandler(svc))

		// =============================================
		// Customer authentication
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/register", authRegisterHandler(authSvc, logger))
			r.Post("/login", authLoginHandler(authSvc, logger))
		})

		// =============================================
		// Customer self-service
		// =============================================
		r.Route("/me", func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))
			r.Use(RequireRole(domain.SubjectCustomer))

			r.Get("/", getMyStatusHandler(svc, logger))
			r.Put("/", updateMyProfileHandler(svc, logger))
			r.Get("/ledger", getMyLedgerHandler(svc, logger))
			r.With(idempotent).Post("/redeem", redeemMyPointsHandler(svc, logger))
		})

		// =============================================
		// Back office
		// =============================================
		r.Route("/admin", func(r chi.Router) {
			r.With(limiter.Middleware).Post("/auth/login", adminLoginHandler(authSvc, logger))

			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(authSvc, logger))
				r.Use(RequireRole(domain.SubjectAdmin))

				perm := func(p domain.Permission) func(http.Handler) http.Handler {
					return RequirePermission(authSvc, p, logger)
				}

				r.Get("/me", adminMeHandler(authSvc, logger))

				// Dashboard
				r.With(perm(domain.PermViewDashboard)).Get("/dashboard", dashboardHandler(svc, logger))
				r.With(perm(domain.PermViewDashboard)).Get("/users/recent", recentUsersHandler(svc, logger))
				r.With(perm(domain.PermViewDashboard)).Get("/metrics/engine", engineMetricsHandler(metrics))

				// Accounts
				r.With(perm(domain.PermViewAccounts)).Get("/accounts", listAccountsHandler(svc, logger))
				r.With(perm(domain.PermViewAccounts)).Get("/accounts/{accountId}", getAccountHandler(svc, logger))
				r.With(perm(domain.PermViewAccounts)).Get("/accounts/{accountId}/ledger", getAccountLedgerHandler(svc, logger))
				r.With(perm(domain.PermViewAccounts)).Get("/accounts/{accountId}/verify", verifyBalanceHandler(svc, logger))
				r.With(perm(domain.PermManageAccounts)).Post("/accounts/{accountId}/activate", setActiveHandler(svc, true, logger))
				r.With(perm(domain.PermManageAccounts)).Post("/accounts/{accountId}/deactivate", setActiveHandler(svc, false, logger))

				// Ledger mutations
				r.With(perm(domain.PermAwardPoints), idempotent).Post("/awards", awardPointsHandler(svc, logger))
				r.With(perm(domain.PermRecordPurchases), idempotent).Post("/purchases", recordPurchaseHandler(svc, logger))
				r.With(perm(domain.PermManageAccounts), idempotent).Post("/redemptions", adminRedeemHandler(svc, logger))
				r.With(perm(domain.PermExpirePoints)).Post("/expire", expirePointsHandler(svc, logger))
			})
		})
	})

	return r
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(svc *service.LoyaltyService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "loyalty-api", Status: "healthy", LastChecked: now},
		}

		start := time.Now()
		status := "healthy"
		if err := svc.Ping(r.Context()); err != nil {
			logger.Warn("health check: store unreachable", zap.Error(err))
			status = "unhealthy"
		}
		services = append(services, domain.ServiceHealth{
			Name: "store", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
		})

		overall := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overall = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overall = "degraded"
			}
		}

		code := http.StatusOK
		if overall == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, domain.HealthStatus{Status: overall, Services: services})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

// ============================================================
// Program
// ============================================================

type programResponse struct {
	Settings domain.ProgramSettings `json:"settings"`
	Levels   []domain.LoyaltyLevel  `json:"levels"`
}

func levelsHandler(svc *service.LoyaltyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Program().Levels.Levels())
	}
}

func programHandler(svc *service.LoyaltyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := svc.Program()
		writeJSON(w, http.StatusOK, programResponse{Settings: p.Settings, Levels: p.Levels.Levels()})
	}
}
