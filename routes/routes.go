package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/trycompai/comp-sub012/handlers"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/models"
	"github.com/trycompai/comp-sub012/utils"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers mounted by SetupRoutes
type Handlers struct {
	Health        *handlers.HealthHandler
	Context       *handlers.ContextHandler
	KnowledgeBase *handlers.KnowledgeBaseHandler
	Findings      *handlers.FindingHandler
	Vendors       *handlers.VendorHandler
	Risks         *handlers.RiskHandler
	Policies      *handlers.PolicyHandler
	Tasks         *handlers.TaskHandler
	Integrations  *handlers.IntegrationHandler
	Devices       *handlers.DeviceHandler
	TrustPortal   *handlers.TrustPortalHandler
	Onboarding    *handlers.OnboardingHandler
	AuditLogs     *handlers.AuditHandler
}

// Options configures the router
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Auth           *middleware.AuthMiddleware
	RunTokens      middleware.RunTokenValidator
	Logger         *zap.Logger
}

// SetupRoutes configures all application routes and middleware
func SetupRoutes(h Handlers, opts Options) http.Handler {
	r := chi.NewRouter()

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "https://*"}
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.APIKeyHeader},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", h.Health.HandleHealth)
	r.Get("/readyz", h.Health.HandleReadiness)

	r.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Get("/public/trust/{friendlyUrl}", h.TrustPortal.HandlePublicView)
		r.With(middleware.RequireRunToken(opts.RunTokens, opts.Logger)).
			Get("/onboarding/runs/{id}/progress", h.Onboarding.HandleProgress)

		r.Group(func(r chi.Router) {
			r.Use(opts.Auth.RequireAuth)
			r.Use(opts.Auth.ExtractTenant)
			r.Use(middleware.AuditActor)

			r.Route("/context", func(r chi.Router) {
				r.Get("/", h.Context.HandleList)
				r.Post("/", h.Context.HandleCreate)
				r.Get("/{id}", h.Context.HandleGet)
				r.Patch("/{id}", h.Context.HandleUpdate)
				r.Delete("/{id}", h.Context.HandleDelete)
			})

			r.Route("/knowledge-base/documents", func(r chi.Router) {
				r.Get("/", h.KnowledgeBase.HandleList)
				r.Post("/upload", h.KnowledgeBase.HandleUpload)
				r.Post("/process", h.KnowledgeBase.HandleProcess)
				r.Get("/{id}/download", h.KnowledgeBase.HandleDownload)
				r.Get("/{id}/view", h.KnowledgeBase.HandleView)
				r.Delete("/{id}", h.KnowledgeBase.HandleDelete)
			})

			r.Route("/findings", func(r chi.Router) {
				r.Get("/", h.Findings.HandleList)
				r.Post("/", h.Findings.HandleCreate)
				r.Get("/{id}", h.Findings.HandleGet)
				r.Patch("/{id}", h.Findings.HandleUpdate)
				r.Patch("/{id}/status", h.Findings.HandleTransition)
				r.Delete("/{id}", h.Findings.HandleDelete)
			})

			r.Route("/vendors", func(r chi.Router) {
				r.Get("/", h.Vendors.HandleList)
				r.Post("/", h.Vendors.HandleCreate)
				r.Get("/{id}", h.Vendors.HandleGet)
				r.Patch("/{id}", h.Vendors.HandleUpdate)
				r.Delete("/{id}", h.Vendors.HandleDelete)
			})

			r.Route("/risks", func(r chi.Router) {
				r.Get("/", h.Risks.HandleList)
				r.Post("/", h.Risks.HandleCreate)
				r.Get("/{id}", h.Risks.HandleGet)
				r.Patch("/{id}", h.Risks.HandleUpdate)
				r.Delete("/{id}", h.Risks.HandleDelete)
			})

			r.Route("/policies", func(r chi.Router) {
				r.Get("/", h.Policies.HandleListPolicies)
				r.Post("/", h.Policies.HandleCreatePolicy)
				r.Get("/{id}", h.Policies.HandleGetPolicy)
				r.Patch("/{id}", h.Policies.HandleUpdatePolicy)
				r.Delete("/{id}", h.Policies.HandleDeletePolicy)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.Tasks.HandleList)
				r.Post("/", h.Tasks.HandleCreate)
				r.Get("/{id}", h.Tasks.HandleGet)
				r.Patch("/{id}", h.Tasks.HandleUpdate)
				r.Delete("/{id}", h.Tasks.HandleDelete)
			})

			r.Route("/integrations", func(r chi.Router) {
				r.Get("/providers", h.Integrations.HandleListProviders)
				r.Post("/crm/sync", h.Integrations.HandleSyncCRM)
				r.Route("/connections", func(r chi.Router) {
					r.Get("/", h.Integrations.HandleListConnections)
					r.Post("/", h.Integrations.HandleConnect)
					r.Get("/{id}", h.Integrations.HandleGetConnection)
					r.Patch("/{id}", h.Integrations.HandleUpdateConnection)
					r.Delete("/{id}", h.Integrations.HandleDisconnect)
					r.Post("/{id}/test", h.Integrations.HandleTest)
				})
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", h.Devices.HandleList)
				r.Post("/label", h.Devices.HandleEnsureLabel)
				r.Get("/setup-script", h.Devices.HandleSetupScript)
			})

			r.Get("/trust-portal", h.TrustPortal.HandleGet)
			r.Put("/trust-portal", h.TrustPortal.HandleUpdate)

			r.Post("/onboarding", h.Onboarding.HandleStart)
			r.Get("/onboarding/runs/{id}", h.Onboarding.HandleGetRun)

			// Audit logs (require admin role)
			r.With(opts.Auth.RequireRole(models.RoleOwner, models.RoleAdmin)).
				Get("/audit-logs", h.AuditLogs.HandleList)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

// requestLogger logs one line per request through zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
