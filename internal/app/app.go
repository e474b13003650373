package app

import (
	"context"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/controller"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/service"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/cache"
	"exam_tracker_backend/pkg/configwatcher"
	"exam_tracker_backend/pkg/database"
	"exam_tracker_backend/pkg/jobs"
	"exam_tracker_backend/pkg/logger"
	"exam_tracker_backend/pkg/monitoring"
	"exam_tracker_backend/pkg/security"
	"exam_tracker_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
)

const configDir = "configs"

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services

	limiter        *security.RateLimiter
	memoryCache    *cache.MemoryStore
	jobs           *jobs.Manager
	tracerProvider *sdktrace.TracerProvider
	cancelWatch    context.CancelFunc

	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	question        *repository.QuestionRepository
	progress        *repository.ProgressRepository
	article         *repository.ArticleRepository
	articleCategory *repository.ArticleCategoryRepository
	mockTest        *repository.MockTestRepository
}

type services struct {
	storage         *service.StorageService
	question        *service.QuestionService
	progress        *service.ProgressService
	progressBuffer  *service.ProgressBuffer
	article         *service.ArticleService
	articleCategory *service.ArticleCategoryService
	generation      *service.ArticleGenerationService
	mockTest        *service.MockTestService
	testBank        *service.TestBankService
}

type controllers struct {
	health          *controller.HealthController
	question        *controller.QuestionController
	progress        *controller.ProgressController
	article         *controller.ArticleController
	articleCategory *controller.ArticleCategoryController
	generation      *controller.ArticleGenerationController
	mockTest        *controller.MockTestController
	testBank        *controller.TestBankController
}

// RegisterConfigCallback runs fn with every successfully reloaded config.
func (a *App) RegisterConfigCallback(fn func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, fn)
}

func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.Config = cfg
	a.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	logger.Log.Info("Configuration reloaded")
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		question:        repository.NewQuestionRepository(db),
		progress:        repository.NewProgressRepository(db),
		article:         repository.NewArticleRepository(db),
		articleCategory: repository.NewArticleCategoryRepository(db),
		mockTest:        repository.NewMockTestRepository(db),
	}
}

func (a *App) newCacheStore(cfg *config.Config) cache.Store {
	if cfg.Cache.Type == util.CacheRedis && a.Redis != nil {
		return cache.NewRedisStore(a.Redis, "exam-tracker:", cfg.Cache.TTL)
	}
	switch cfg.Cache.Type {
	case util.CacheRedis:
		logger.Log.Warn("Redis cache requested but Redis is disabled, using memory cache")
	case util.CacheMemory, "":
	default:
		logger.Log.Warn("Unknown cache type, using memory cache", zap.String("type", cfg.Cache.Type))
	}

	a.memoryCache = cache.NewMemoryStore(cfg.Cache.TTL)
	return a.memoryCache
}

// newNotifier chooses how saved articles reach the social sheet: not at all,
// synchronously, or through the job queue.
func (a *App) newNotifier(cfg *config.Config) service.Notifier {
	if !cfg.Webhook.Enabled || cfg.Webhook.URL == "" {
		return service.NopNotifier{}
	}

	webhook := service.NewSheetWebhook(cfg.Webhook, &http.Client{Timeout: 15 * time.Second})
	if !cfg.Webhook.Queued || a.Redis == nil {
		return webhook
	}

	manager := jobs.NewManager(&cfg.Redis)
	manager.Register(jobs.TypeArticleWebhook, service.WebhookJobHandler(webhook))
	if err := manager.Start(); err != nil {
		logger.Log.Warn("Job worker failed to start, posting webhooks inline", zap.Error(err))
		manager.Stop()
		return webhook
	}
	a.jobs = manager
	return service.NewQueuedNotifier(cfg.Webhook.SiteURL, manager)
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	loader := cache.NewLoader(a.newCacheStore(cfg))
	loader.OnLookup(monitoring.ObserveCache)

	s.storage = service.NewStorageService(cfg)
	s.question = service.NewQuestionService(repos.question, loader)
	s.progress = service.NewProgressService(repos.progress, s.question)
	s.progressBuffer = service.NewProgressBuffer(s.progress, cfg.Progress.FlushDelay())
	s.articleCategory = service.NewArticleCategoryService(repos.articleCategory, repos.article)
	s.article = service.NewArticleService(repos.article, repos.articleCategory, s.storage, a.newNotifier(cfg))

	llm := service.NewAIService(cfg.AI, &http.Client{})
	s.generation = service.NewArticleGenerationService(llm, s.article, cfg.AI.SearchModel,
		service.LimitsFromConfig(cfg.Generation, cfg.AI))

	s.mockTest = service.NewMockTestService(repos.mockTest, repos.question)
	s.testBank = service.NewTestBankService(cfg.TestBank, &http.Client{})

	a.RegisterConfigCallback(func(c *config.Config) {
		s.generation.SetLimits(service.LimitsFromConfig(c.Generation, c.AI))
	})

	return s
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		health:          controller.NewHealthController(a.DB, a.Redis),
		question:        controller.NewQuestionController(s.question),
		progress:        controller.NewProgressController(s.progress, s.progressBuffer),
		article:         controller.NewArticleController(s.article),
		articleCategory: controller.NewArticleCategoryController(s.articleCategory),
		generation:      controller.NewArticleGenerationController(s.generation),
		mockTest:        controller.NewMockTestController(s.mockTest),
		testBank:        controller.NewTestBankController(s.testBank),
	}
}

func rateWindow(cfg config.RateLimitConfig) time.Duration {
	if cfg.WindowMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(cfg.WindowMinutes) * time.Minute
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.limiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, rateWindow(cfg.RateLimit))
	router.Use(a.limiter.Middleware())
	a.RegisterConfigCallback(func(c *config.Config) {
		a.limiter.Update(c.RateLimit.MaxRequests, rateWindow(c.RateLimit))
	})

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != "release"
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Warn("Redis unavailable, continuing without it", zap.Error(err))
		} else {
			app.Redis = rdb
		}
	}

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("exam-tracker-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracerProvider = tp
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg)
	ctrls := app.initControllers(app.services)

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) startBackgroundTasks(ctx context.Context) {
	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()
	go a.limiter.Run(stop)

	if a.memoryCache != nil {
		go a.memoryCache.RunSweeper(ctx, a.Config.Cache.TTL, func(n int) {
			if n > 0 {
				logger.Log.Debug("Expired cache entries removed", zap.Int("count", n))
			}
		})
	}

	go func() {
		if err := configwatcher.Watch(ctx, configDir, 500*time.Millisecond, a.applyConfig); err != nil {
			logger.Log.Warn("Config watcher stopped", zap.Error(err))
		}
	}()
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelWatch = cancel
	a.startBackgroundTasks(ctx)

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.Close(shutdownCtx)
	logger.Log.Info("Server exiting")
}

// Close writes buffered progress and releases background resources.
func (a *App) Close(ctx context.Context) {
	if a.cancelWatch != nil {
		a.cancelWatch()
	}
	if a.services != nil {
		if err := a.services.progressBuffer.FlushOnExit(ctx); err != nil {
			logger.Log.Error("Progress lost on shutdown", zap.Error(err))
		}
	}
	if a.jobs != nil {
		a.jobs.Stop()
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Log.Sync()
}
