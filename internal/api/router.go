package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsgeek/promptguard-sub003/internal/api/handlers"
	mw "github.com/fsgeek/promptguard-sub003/internal/api/middleware"
	"github.com/fsgeek/promptguard-sub003/internal/buildconfig"
	"github.com/fsgeek/promptguard-sub003/internal/config"
	"github.com/fsgeek/promptguard-sub003/internal/domain"
	"github.com/fsgeek/promptguard-sub003/internal/embedding"
	"github.com/fsgeek/promptguard-sub003/internal/judge"
	"github.com/fsgeek/promptguard-sub003/internal/service"
	"github.com/fsgeek/promptguard-sub003/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router       *chi.Mux
	Expirer      *service.ExpirerService
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	tenantStore := store.NewTenantStore(db)
	sessionStore := store.NewSessionStore(db)
	verdictStore := store.NewVerdictStore(db)
	patternStore := store.NewPatternStore(db)
	cacheStore := store.NewEvalCacheStore(db)

	// Judge pool via provider factory. Each entry is "provider" or
	// "provider:model"; a judge that fails to initialize is skipped with
	// a warning rather than silently replaced.
	judgeOpts := judge.Options{
		Timeout:           time.Duration(config.JudgeTimeoutSeconds()) * time.Second,
		RequestsPerSecond: config.JudgeRPS(),
	}
	var participants []domain.DialogueParticipant
	for _, entry := range config.JudgeModels() {
		provider, model, _ := strings.Cut(entry, ":")
		opts := judgeOpts
		opts.Model = model

		j, err := judge.NewClient(provider, config.JudgeAPIKey(provider), opts)
		if err != nil {
			logger.Warn("judge initialization failed",
				zap.String("provider", provider), zap.Error(err))
			continue
		}
		logger.Info("judge initialized",
			zap.String("provider", provider), zap.String("model_id", j.ModelID()))
		participants = append(participants, j)
	}

	embedder, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed",
			zap.String("provider", config.EmbeddingProvider()), zap.Error(err))
		embedder = embedding.NewMockClient()
	}

	// Services
	trustCalc := service.NewTrustFieldCalculator(logger)
	balanceAgg := service.NewBalanceAggregator(logger)
	balanceAgg.SevereFalsehood = config.BalanceSevereFalsehood()

	quorum := service.NewQuorumValidator()
	quorum.MinCoverage = config.QuorumMinCoverage()
	quorum.MinLineages = config.QuorumMinLineages()

	fireCircle := service.NewFireCircleService(quorum, logger)
	fireCircle.MaxRounds = config.FireCircleMaxRounds()
	fireCircle.PatternThreshold = config.FireCirclePatternThreshold()

	sessionSvc := service.NewSessionService(sessionStore, logger)
	sessionSvc.Alpha = config.SessionAlpha()
	sessionSvc.TrustFloor = config.SessionTrustFloor()
	sessionSvc.DebtCeiling = config.SessionDebtCeiling()
	sessionSvc.RecoveryTurns = config.SessionRecoveryTurns()

	judges := make([]domain.JudgeClient, len(participants))
	for i, p := range participants {
		judges[i] = p
	}

	evaluatorSvc, err := service.NewEvaluatorService(judges, domain.EnsembleStrategy(config.EnsembleStrategy()), trustCalc, balanceAgg, verdictStore, logger)
	if err != nil {
		logger.Fatal("evaluator initialization failed", zap.Error(err))
	}

	var expirerSvc *service.ExpirerService
	if ttl := config.CacheTTLSeconds(); ttl > 0 {
		evaluatorSvc.SetCache(cacheStore, time.Duration(ttl)*time.Second)
		expirerSvc = service.NewExpirerService(cacheStore, logger)
	}
	if config.FireCircleEscalation() && len(participants) > 1 {
		evaluatorSvc.SetEscalation(fireCircle, participants)
	}

	patternSvc := service.NewPatternService(patternStore, embedder, logger)

	// Handlers
	tenantHandler := handlers.NewTenantHandler(tenantStore)
	evaluateHandler := handlers.NewEvaluateHandler(evaluatorSvc)
	sessionHandler := handlers.NewSessionHandler(sessionSvc, evaluatorSvc, verdictStore)
	fireCircleHandler := handlers.NewFireCircleHandler(fireCircle, patternSvc, participants)
	patternHandler := handlers.NewPatternHandler(patternSvc)
	verdictHandler := handlers.NewVerdictHandler(verdictStore)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Expirer:   expirerSvc,
		startTime: time.Now(),
	}

	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and stats (no auth)
	r.Get("/healthz", healthHandler(db))
	r.Get("/stats", app.statsHandler())

	// Tenant creation (no auth, bootstrap endpoint)
	r.Post("/v1/tenants", tenantHandler.Create)

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(tenantStore))

		r.Post("/evaluate", evaluateHandler.Evaluate)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetByID)
				r.Post("/evaluate", sessionHandler.Evaluate)
				r.Get("/verdicts", sessionHandler.ListVerdicts)
			})
		})

		r.Post("/firecircle", fireCircleHandler.Run)
		r.Get("/patterns/similar", patternHandler.FindSimilar)
		r.Get("/verdicts/{id}", verdictHandler.GetByID)
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.TenantStore     = (*store.TenantStore)(nil)
	_ domain.SessionStore    = (*store.SessionStore)(nil)
	_ domain.VerdictStore    = (*store.VerdictStore)(nil)
	_ domain.PatternStore    = (*store.PatternStore)(nil)
	_ domain.EvaluationCache = (*store.EvalCacheStore)(nil)

	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)

	_ domain.DialogueParticipant = (*judge.Judge)(nil)
	_ domain.DialogueParticipant = (*judge.MockJudge)(nil)
)
