package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"talentmatch/api/internal/auth"
	"talentmatch/api/internal/config"
	"talentmatch/api/internal/events"
	"talentmatch/api/internal/handlers"
	"talentmatch/api/internal/queue"
	"talentmatch/api/internal/quota"
	"talentmatch/api/internal/realtime"
	"talentmatch/api/internal/repositories"
	"talentmatch/api/internal/services"
)

// App owns every process-wide singleton: the DB pool, the event bus, the
// queue client and consumers, the realtime hub, and the HTTP server. It is
// built once at boot; Start and Shutdown are idempotent.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db          *gorm.DB
	bus         *events.Bus
	hub         *realtime.Hub
	fiber       *fiber.App
	queueClient *queue.Client
	servers     *queue.Servers

	startOnce    sync.Once
	shutdownOnce sync.Once
	startErr     error
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := config.InitDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(logger)
	hub := realtime.NewHub(logger)

	userRepo := repositories.NewUserRepository(db)
	resumeRepo := repositories.NewResumeRepository(db, bus)
	jobRepo := repositories.NewJobRepository(db, bus)
	matchRepo := repositories.NewMatchRepository(db, bus)

	storageService := services.NewStorageService(cfg.R2, logger)
	nlpService := services.NewNLPService(cfg.NLP, logger)

	queueClient, err := queue.NewClient(cfg.Redis.URL, cfg.Worker.MaxRetries, logger)
	if err != nil {
		return nil, err
	}

	resumeParser := services.NewResumeParser(resumeRepo, storageService, nlpService, logger)
	jobParser := services.NewJobParser(jobRepo, storageService, nlpService, logger)
	matchComputer := services.NewMatchComputer(matchRepo, resumeRepo, jobRepo, nlpService, logger)

	servers, err := queue.NewServers(queue.ServerOptions{
		RedisURL:               cfg.Redis.URL,
		ParseResumeConcurrency: cfg.Worker.ParseResumeConcurrency,
		ParseJobConcurrency:    cfg.Worker.ParseJobConcurrency,
		MatchConcurrency:       cfg.Worker.MatchConcurrency,
	}, queue.Handlers{
		ParseResume:  resumeParser.ProcessTask,
		ParseJob:     jobParser.ProcessTask,
		ComputeMatch: matchComputer.ProcessTask,
	}, logger)
	if err != nil {
		return nil, err
	}

	bridge := realtime.NewBridge(bus, hub, resumeRepo, jobRepo, matchRepo, logger)
	bridge.Register()

	verifier, err := auth.NewVerifier(ctx, cfg.Auth, logger)
	if err != nil {
		servers.Shutdown()
		return nil, err
	}

	enforcer := quota.NewEnforcer(userRepo, logger)

	authMiddleware := handlers.NewAuthMiddleware(verifier, userRepo, logger)
	resumeHandler := handlers.NewResumeHandler(resumeRepo, storageService, queueClient, cfg.Storage.MaxFileSize, logger)
	jobHandler := handlers.NewJobHandler(jobRepo, storageService, queueClient, cfg.Storage.MaxFileSize, logger)
	matchHandler := handlers.NewMatchHandler(matchRepo, resumeRepo, jobRepo, enforcer, queueClient, logger)
	usageHandler := handlers.NewUsageHandler(userRepo, logger)
	wsHandler := realtime.NewHandler(hub, verifier, logger)

	fiberApp := fiber.New(fiber.Config{
		AppName:      "TalentMatch API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize) + 1<<20,
		ErrorHandler: errorHandler,
	})

	fiberApp.Use(recover.New())
	fiberApp.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, x-pro-member",
	}))

	api := fiberApp.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	protected := api.Group("", authMiddleware.Handle)

	protected.Post("/resumes", resumeHandler.HandleUpload)
	protected.Get("/resumes", resumeHandler.HandleList)
	protected.Get("/resumes/:id", resumeHandler.HandleGet)
	protected.Delete("/resumes/:id", resumeHandler.HandleDelete)

	protected.Post("/jobs", jobHandler.HandleCreate)
	protected.Get("/jobs", jobHandler.HandleList)
	protected.Get("/jobs/:id", jobHandler.HandleGet)
	protected.Delete("/jobs/:id", jobHandler.HandleDelete)

	protected.Post("/matches", matchHandler.HandleCreate)
	protected.Get("/matches", matchHandler.HandleList)
	protected.Get("/matches/:id", matchHandler.HandleGet)

	protected.Get("/usage", usageHandler.HandleGet)

	fiberApp.Use("/ws", wsHandler.Upgrade)
	fiberApp.Get("/ws", wsHandler.Serve())

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "TalentMatch API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/resumes",
				"POST /api/v1/jobs",
				"POST /api/v1/matches",
				"GET /api/v1/usage",
				"GET /ws",
			},
		})
	})

	return &App{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		bus:         bus,
		hub:         hub,
		fiber:       fiberApp,
		queueClient: queueClient,
		servers:     servers,
	}, nil
}

// Start blocks serving HTTP. Calling it twice serves once; the queue
// consumers were already started during construction and the bus dedupes
// listener registration on its own.
func (a *App) Start() error {
	a.startOnce.Do(func() {
		addr := fmt.Sprintf(":%s", a.cfg.Server.Port)
		a.logger.Info("server starting", zap.String("addr", addr))
		a.startErr = a.fiber.Listen(addr)
	})
	return a.startErr
}

// Shutdown drains queue consumers, disconnects realtime sessions, and stops
// the HTTP server. Safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down")
		a.servers.Shutdown()
		a.hub.Close()
		if err := a.queueClient.Close(); err != nil {
			a.logger.Warn("queue client close failed", zap.Error(err))
		}
		if err := a.fiber.Shutdown(); err != nil {
			a.logger.Warn("http shutdown failed", zap.Error(err))
		}
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		return c.Status(code).JSON(fiber.Map{
			"error": e.Message,
			"code":  code,
		})
	}

	return c.Status(code).JSON(fiber.Map{
		"error": "internal_error",
	})
}
