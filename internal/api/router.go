package api

import (
	"encoding/json"
	"net/http"

	"github.com/credencehq/credence/internal/api/handlers"
	mw "github.com/credencehq/credence/internal/api/middleware"
	"github.com/credencehq/credence/internal/buildconfig"
	"github.com/credencehq/credence/internal/config"
	"github.com/credencehq/credence/internal/domain"
	"github.com/credencehq/credence/internal/metrics"
	"github.com/credencehq/credence/internal/policy"
	"github.com/credencehq/credence/internal/service"
	"github.com/credencehq/credence/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router   *chi.Mux
	Refusion *service.RefusionService
	Expirer  *service.ExpirerService
	Policies *policy.Provider
	Metrics  *metrics.Metrics
}

func NewApp(db *pgxpool.Pool, policies *policy.Provider, logger *zap.Logger) *App {
	// Stores
	tenantStore := store.NewTenantStore(db)
	sourceStore := store.NewSourceStore(db)
	claimStore := store.NewClaimStore(db)
	evidenceStore := store.NewEvidenceStore(db)
	fusionStore := store.NewFusionStore(db)

	m := metrics.New()

	// Services
	sourceSvc := service.NewSourceService(sourceStore)
	claimSvc := service.NewClaimService(claimStore, policies, logger)
	evidenceSvc := service.NewEvidenceService(evidenceStore, claimStore, sourceStore, logger)
	fusionSvc := service.NewFusionService(claimStore, evidenceStore, fusionStore, sourceStore, policies, logger)
	diagnosticsSvc := service.NewDiagnosticsService(claimStore, evidenceStore, fusionStore, logger)
	refusionSvc := service.NewRefusionService(claimStore, fusionSvc, logger)
	expirerSvc := service.NewExpirerService(evidenceStore, logger)

	evidenceSvc.SetMetrics(m)
	fusionSvc.SetMetrics(m)
	refusionSvc.SetMetrics(m)
	expirerSvc.SetMetrics(m)
	refusionSvc.SetInterval(config.RefusionInterval())
	expirerSvc.SetInterval(config.ExpirerInterval())

	// Handlers
	tenantHandler := handlers.NewTenantHandler(tenantStore)
	sourceHandler := handlers.NewSourceHandler(sourceSvc)
	claimHandler := handlers.NewClaimHandler(claimSvc)
	evidenceHandler := handlers.NewEvidenceHandler(evidenceSvc)
	fusionHandler := handlers.NewFusionHandler(fusionSvc, policies)
	diagnosticsHandler := handlers.NewDiagnosticsHandler(diagnosticsSvc)

	r := chi.NewRouter()

	app := &App{
		Router:   r,
		Refusion: refusionSvc,
		Expirer:  expirerSvc,
		Policies: policies,
		Metrics:  m,
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics(m))
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(db))
	r.Method(http.MethodGet, "/metrics", m.Handler())

	// Tenant creation (no auth, bootstrap endpoint)
	r.Post("/v1/tenants", tenantHandler.Create)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(tenantStore))

		r.Route("/sources", func(r chi.Router) {
			r.Post("/", sourceHandler.Create)
			r.Get("/", sourceHandler.List)
			r.Get("/{id}", sourceHandler.GetByID)
		})

		r.Route("/claims", func(r chi.Router) {
			r.Post("/", claimHandler.Create)
			r.Get("/", claimHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", claimHandler.GetByID)
				r.Delete("/", claimHandler.Delete)
				r.Post("/status", claimHandler.UpdateStatus)

				r.Post("/evidence", evidenceHandler.Attach)
				r.Get("/evidence", evidenceHandler.ListByClaim)

				r.Post("/fuse", fusionHandler.Fuse)
				r.Post("/fuse/preview", fusionHandler.Preview)
				r.Get("/belief", fusionHandler.Belief)
				r.Get("/fusions", fusionHandler.History)
				r.Get("/diagnostics", diagnosticsHandler.Report)
			})
		})

		r.Delete("/evidence/{id}", evidenceHandler.Delete)

		// Stateless fusion: the kernel over HTTP.
		r.Post("/fuse", fusionHandler.AdHoc)
		r.Get("/rules", fusionHandler.Rules)
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"commit":  buildconfig.Commit(),
		})
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.TenantStore   = (*store.TenantStore)(nil)
	_ domain.SourceStore   = (*store.SourceStore)(nil)
	_ domain.ClaimStore    = (*store.ClaimStore)(nil)
	_ domain.EvidenceStore = (*store.EvidenceStore)(nil)
	_ domain.FusionStore   = (*store.FusionStore)(nil)
)
