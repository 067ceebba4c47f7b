package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trycompai/comp-sub012/auth"
	"github.com/trycompai/comp-sub012/config"
	"github.com/trycompai/comp-sub012/handlers"
	"github.com/trycompai/comp-sub012/internal/crm/hubspot"
	"github.com/trycompai/comp-sub012/internal/jobs"
	"github.com/trycompai/comp-sub012/internal/llm"
	"github.com/trycompai/comp-sub012/internal/mdm/fleet"
	"github.com/trycompai/comp-sub012/internal/revalidate"
	"github.com/trycompai/comp-sub012/internal/storage"
	"github.com/trycompai/comp-sub012/internal/vectorstore"
	"github.com/trycompai/comp-sub012/middleware"
	"github.com/trycompai/comp-sub012/repositories"
	"github.com/trycompai/comp-sub012/repositories/postgres"
	"github.com/trycompai/comp-sub012/routes"
	"github.com/trycompai/comp-sub012/services/audit"
	"github.com/trycompai/comp-sub012/services/contextentry"
	"github.com/trycompai/comp-sub012/services/devices"
	"github.com/trycompai/comp-sub012/services/findings"
	"github.com/trycompai/comp-sub012/services/integrations"
	"github.com/trycompai/comp-sub012/services/knowledgebase"
	"github.com/trycompai/comp-sub012/services/onboarding"
	"github.com/trycompai/comp-sub012/services/organizations"
	"github.com/trycompai/comp-sub012/services/policies"
	"github.com/trycompai/comp-sub012/services/risks"
	"github.com/trycompai/comp-sub012/services/tasks"
	"github.com/trycompai/comp-sub012/services/trustportal"
	"github.com/trycompai/comp-sub012/services/vendors"
	"go.uber.org/zap"
)

const (
	trustCacheSize     = 1000
	trustCacheTTL      = time.Minute
	trustCacheInterval = 5 * time.Minute
	aggregatorBuffer   = 1024
)

// Services groups the domain services
type Services struct {
	Contexts      *contextentry.Service
	KnowledgeBase *knowledgebase.Service
	Findings      *findings.Service
	Vendors       *vendors.Service
	Risks         *risks.Service
	Policies      *policies.Service
	Tasks         *tasks.Service
	Integrations  *integrations.Service
	Devices       *devices.Service
	TrustPortal   *trustportal.Service
	Organizations *organizations.Service
	Onboarding    *onboarding.Service
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger
	Redis  *redis.Client

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// Outbound clients
	Storage *storage.Client
	Vectors *vectorstore.Store
	LLM     *llm.OpenAIAdapter
	HubSpot *hubspot.Client
	Fleet   *fleet.Client

	// Background work
	Registry   *jobs.Registry
	Runner     *jobs.Runner
	Aggregator *jobs.Aggregator
	Audit      *audit.AuditService
	Notifier   *revalidate.Notifier

	Catalog    *integrations.Catalog
	TrustCache *trustportal.ViewCache
	Services   Services

	// Auth
	Tokens         *auth.TokenService
	AuthMiddleware *middleware.AuthMiddleware

	stopCleanup chan struct{}
	stopWatch   context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.initRepositories()

	if err := deps.initRedis(ctx, cfg); err != nil {
		deps.closeInfra()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	if err := deps.initClients(ctx, cfg); err != nil {
		deps.closeInfra()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := deps.initJobs(cfg); err != nil {
		deps.closeInfra()
		return nil, fmt.Errorf("failed to initialize job runner: %w", err)
	}

	deps.initAuth(cfg)

	if err := deps.initServices(cfg); err != nil {
		deps.closeInfra()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.Repos = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()
	d.Logger.Info("repositories initialized")
}

// initRedis connects to Redis when an address is configured
func (d *Dependencies) initRedis(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.Addr == "" {
		d.Logger.Info("redis not configured, using in-process queues and no revalidation")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	d.Redis = client
	d.Logger.Info("redis connection established", zap.String("addr", cfg.Redis.Addr))
	return nil
}

// initClients builds the outbound clients
func (d *Dependencies) initClients(ctx context.Context, cfg *config.Config) error {
	store, err := storage.New(cfg.Storage, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure bucket: %w", err)
	}
	d.Storage = store

	vectors, err := vectorstore.New(cfg.VectorStore, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create vector store: %w", err)
	}
	d.Vectors = vectors
	if err := vectors.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	d.LLM = llm.NewOpenAIAdapter(cfg.LLM, d.Logger)
	if cfg.LLM.APIKey == "" {
		d.Logger.Warn("no LLM provider configured")
	}

	d.HubSpot = hubspot.New(cfg.HubSpot, d.Logger)
	d.Fleet = fleet.New(cfg.Fleet, d.Logger)
	return nil
}

// initJobs builds the task registry, queue, runner and progress aggregator
func (d *Dependencies) initJobs(cfg *config.Config) error {
	var (
		queue       jobs.Queue
		bus         jobs.ResultBus
		sharedQueue bool
	)
	switch cfg.Jobs.Backend {
	case "redis":
		if d.Redis == nil {
			return errors.New("redis jobs backend requires REDIS_ADDR")
		}
		queue = jobs.NewRedisQueue(d.Redis, "jobs")
		bus = jobs.NewRedisResultBus(d.Redis, "")
		sharedQueue = true
	default:
		queue = jobs.NewMemoryQueue(cfg.Jobs.QueueBufferSize)
	}

	runnerCfg := jobs.DefaultRunnerConfig()
	for name, n := range cfg.Jobs.Concurrency {
		runnerCfg.Concurrency[name] = n
	}
	if cfg.Jobs.MaxAttempts > 0 {
		runnerCfg.MaxAttempts = cfg.Jobs.MaxAttempts
	}
	if cfg.Jobs.RetryBaseDelay > 0 {
		runnerCfg.RetryBaseDelay = cfg.Jobs.RetryBaseDelay
	}

	d.Registry = jobs.NewRegistry()
	d.Runner = jobs.NewRunner(d.Registry, queue, bus, runnerCfg, d.Logger)

	// a nil client leaves the publisher logging instead of publishing
	var pubsub revalidate.PubSub
	if d.Redis != nil {
		pubsub = d.Redis
	}
	publisher := revalidate.NewPublisher(pubsub, d.Logger)
	d.Notifier = revalidate.NewNotifier(publisher, cfg.Redis.RevalidationChannel, d.Logger)
	d.Aggregator = jobs.NewAggregator(d.Repos.OnboardingRuns, publisher, d.Logger, aggregatorBuffer, sharedQueue)

	d.Audit = audit.NewAuditService(d.Repos.AuditLogs, d.Logger, audit.DefaultConfig())
	return nil
}

// initAuth builds the token service and authentication middleware
func (d *Dependencies) initAuth(cfg *config.Config) {
	d.Tokens = auth.NewTokenService(auth.Config{
		Secret:      []byte(cfg.Auth.JWTSecret),
		Issuer:      cfg.Auth.Issuer,
		Audience:    cfg.Auth.Audience,
		RunTokenTTL: cfg.Auth.RunTokenTTL,
	})
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Tokens, d.Repos.APIKeys, d.Repos.Members, d.Logger)
}

// initServices builds the domain services and registers their job handlers
func (d *Dependencies) initServices(cfg *config.Config) error {
	if cfg.Integrations.CatalogPath != "" {
		providers, err := integrations.LoadCatalogFile(cfg.Integrations.CatalogPath)
		if err != nil {
			return fmt.Errorf("failed to load integration catalog: %w", err)
		}
		d.Catalog = integrations.NewCatalog(providers)
	} else {
		d.Catalog = integrations.DefaultCatalog()
	}
	d.TrustCache = trustportal.NewViewCache(trustCacheSize, trustCacheTTL)

	recorder := d.Audit
	s := &d.Services

	s.Contexts = contextentry.NewService(d.Repos.Contexts, recorder, d.Logger)
	s.Vendors = vendors.NewService(d.Repos.Vendors, recorder, d.Logger)
	s.Risks = risks.NewService(d.Repos.Risks, recorder, d.Logger)
	s.Policies = policies.NewService(d.Repos.Policies, recorder, d.Logger)
	s.Tasks = tasks.NewService(d.Repos.Tasks, d.Repos.Vendors, d.Repos.Risks, recorder, d.Logger)
	s.Findings = findings.NewService(d.Repos.Findings, d.Repos.Tasks, recorder, d.Logger)
	s.Devices = devices.NewService(d.Fleet, cfg.Fleet, recorder, d.Logger)
	s.TrustPortal = trustportal.NewService(d.Repos, d.TrustCache, recorder, d.Logger)

	s.KnowledgeBase = knowledgebase.NewService(
		d.Repos.KnowledgeBase,
		d.Storage,
		d.Vectors,
		d.LLM,
		d.Runner,
		recorder,
		knowledgebase.Config{
			MaxUploadBytes: cfg.Storage.MaxUploadBytes,
			URLTTL:         cfg.Storage.PresignTTL,
		},
		d.Logger,
	)

	crm := integrations.HubSpotFactory(d.HubSpot)
	s.Integrations = integrations.NewService(d.Repos, d.Catalog, crm, recorder, d.Logger)
	s.Integrations.RegisterProbe("hubspot", integrations.HubSpotProbe(crm))
	s.Integrations.RegisterProbe("fleet", integrations.FleetProbe(cfg.Fleet.Timeout, d.Logger))

	s.Organizations = organizations.NewService(d.Repos, d.TxManager, d.Storage, d.Vectors, d.Runner, recorder, d.Logger)

	s.Onboarding = onboarding.NewService(onboarding.Deps{
		Runs:        d.Repos.OnboardingRuns,
		Orgs:        d.Repos.Organizations,
		Contexts:    d.Repos.Contexts,
		Vendors:     s.Vendors,
		Risks:       s.Risks,
		Policies:    s.Policies,
		Tasks:       s.Tasks,
		Chat:        d.LLM,
		Runner:      d.Runner,
		Progress:    d.Aggregator,
		Tokens:      d.Tokens,
		Revalidator: d.Notifier,
		Audit:       recorder,
	}, cfg.LLM.ChatModel, d.Logger)

	maxAttempts := cfg.Jobs.MaxAttempts
	if err := s.KnowledgeBase.RegisterTasks(d.Registry, maxAttempts); err != nil {
		return err
	}
	if err := s.Integrations.RegisterTasks(d.Registry, maxAttempts); err != nil {
		return err
	}
	if err := s.Onboarding.RegisterTasks(d.Registry, maxAttempts); err != nil {
		return err
	}

	d.Logger.Info("services initialized",
		zap.Int("integration_providers", len(d.Catalog.List())))
	return nil
}

// Start launches the background workers: audit, progress aggregation, job
// runner, trust portal cache cleanup and the catalog watcher
func (d *Dependencies) Start(ctx context.Context) error {
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}
	if err := d.Aggregator.Start(); err != nil {
		return fmt.Errorf("failed to start progress aggregator: %w", err)
	}
	if err := d.Runner.Start(); err != nil {
		return fmt.Errorf("failed to start job runner: %w", err)
	}

	d.stopCleanup = make(chan struct{})
	go d.TrustCache.StartCleanupWorker(trustCacheInterval, d.stopCleanup)

	if path := d.Config.Integrations.CatalogPath; path != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		d.stopWatch = cancel
		go func() {
			if err := integrations.WatchCatalog(watchCtx, path, d.Catalog, d.Logger); err != nil {
				d.Logger.Error("catalog watcher stopped", zap.Error(err))
			}
		}()
	}
	return nil
}

// HealthChecks returns the readiness probes of the configured backends
func (d *Dependencies) HealthChecks() map[string]handlers.Check {
	checks := map[string]handlers.Check{
		"database": handlers.DatabaseCheck(d.DB.DB),
	}
	if d.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// HealthDetails returns the job runner and audit writer statistics shown
// by the readiness endpoint
func (d *Dependencies) HealthDetails() map[string]handlers.Detail {
	details := map[string]handlers.Detail{}
	if d.Runner != nil {
		details["jobs"] = func(ctx context.Context) interface{} { return d.Runner.GetStats(ctx) }
	}
	if d.Audit != nil {
		details["audit"] = func(context.Context) interface{} { return d.Audit.GetStats() }
	}
	return details
}

// Router builds the HTTP handler tree
func (d *Dependencies) Router() http.Handler {
	s := d.Services
	h := routes.Handlers{
		Health:        handlers.NewHealthHandler(d.HealthChecks(), d.Logger).WithDetails(d.HealthDetails()),
		Context:       handlers.NewContextHandler(s.Contexts, d.Logger),
		KnowledgeBase: handlers.NewKnowledgeBaseHandler(s.KnowledgeBase, d.Logger).WithMaxUploadBytes(d.Config.Storage.MaxUploadBytes),
		Findings:      handlers.NewFindingHandler(s.Findings, d.Logger),
		Vendors:       handlers.NewVendorHandler(s.Vendors, d.Logger),
		Risks:         handlers.NewRiskHandler(s.Risks, d.Logger),
		Policies:      handlers.NewPolicyHandler(s.Policies, d.Logger),
		Tasks:         handlers.NewTaskHandler(s.Tasks, d.Logger),
		Integrations:  handlers.NewIntegrationHandler(s.Integrations, d.Logger),
		Devices:       handlers.NewDeviceHandler(s.Devices, d.Logger),
		TrustPortal:   handlers.NewTrustPortalHandler(s.TrustPortal, d.Logger),
		Onboarding:    handlers.NewOnboardingHandler(s.Onboarding, d.Logger),
		AuditLogs:     handlers.NewAuditHandler(d.Audit, d.Logger),
	}
	return routes.SetupRoutes(h, routes.Options{
		AllowedOrigins: d.Config.Server.AllowedOrigins,
		RequestTimeout: d.Config.Server.WriteTimeout,
		Auth:           d.AuthMiddleware,
		RunTokens:      d.Tokens,
		Logger:         d.Logger,
	})
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error
	timeout := d.Config.Jobs.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if d.stopWatch != nil {
		d.stopWatch()
	}
	if d.stopCleanup != nil {
		close(d.stopCleanup)
		d.stopCleanup = nil
	}

	// the runner goes first so in-flight jobs can still emit progress
	if d.Runner != nil {
		if err := d.Runner.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop job runner: %w", err))
		}
	}
	if d.Aggregator != nil {
		if err := d.Aggregator.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop progress aggregator: %w", err))
		}
	}
	if d.Audit != nil {
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	errs = append(errs, d.closeInfra()...)

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}
	return nil
}

// closeInfra releases connections opened during initialization
func (d *Dependencies) closeInfra() []error {
	var errs []error
	if d.Vectors != nil {
		if err := d.Vectors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close vector store: %w", err))
		}
		d.Vectors = nil
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.Redis = nil
	}
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}
	return errs
}
