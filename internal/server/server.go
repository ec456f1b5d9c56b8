package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ifuryst/autopost/internal/config"
	"github.com/ifuryst/autopost/internal/service"
	"github.com/ifuryst/autopost/internal/service/image"
	"github.com/ifuryst/autopost/internal/service/publisher"
	"github.com/ifuryst/autopost/internal/service/queue"
)

// Services are the handlers' dependencies.
type Services struct {
	Registry     *publisher.Registry
	Publisher    *service.PublisherService
	Orchestrator *service.Orchestrator
	Stats        service.JobCounter
	// Images is nil when no image API key is configured.
	Images image.Generator
}

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Queue  *queue.RedisQueue
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	Services
}

// NewServer connects the database and queue and wires every service.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	q, err := queue.New(queue.Config{URL: cfg.Redis.URL, Key: cfg.Redis.QueueKey}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	registry := publisher.NewRegistry(logger)
	if err := service.RegisterDefaults(registry, cfg.Agents, logger); err != nil {
		return nil, fmt.Errorf("failed to register agents: %w", err)
	}

	store := service.NewGormStore(db)
	services := Services{
		Registry:     registry,
		Publisher:    service.NewPublisherService(store, registry, logger, cfg.Publishing.SyncMaxAttempts),
		Orchestrator: service.NewOrchestrator(store, store, q, logger, cfg.Publishing.JobMaxAttempts),
		Stats:        store,
	}
	if cfg.Image.APIKey != "" {
		services.Images = image.NewOpenAIGenerator(image.Config{
			APIKey:  cfg.Image.APIKey,
			BaseURL: cfg.Image.BaseURL,
			Model:   cfg.Image.Model,
			Size:    cfg.Image.Size,
		}, logger)
	}

	srv := New(cfg, logger, services)
	srv.DB = db
	srv.Queue = q
	return srv, nil
}

// New builds the router around already constructed services.
func New(cfg *config.Config, logger *zap.Logger, services Services) *Server {
	gin.SetMode(cfg.Server.Mode)

	srv := &Server{
		Config:   cfg,
		Router:   gin.New(),
		Logger:   logger,
		Services: services,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	api := s.Router.Group("/api/v1")
	{
		api.GET("/platforms", s.handleGetPlatforms)
		api.POST("/validate-credentials", s.handleValidateCredentials)
		api.POST("/publish", s.handlePublish)

		api.POST("/orchestrate", s.handleOrchestrate)
		api.POST("/retry", s.handleRetry)
		api.POST("/cancel", s.handleCancel)
		api.GET("/job-status", s.handleJobStatus)
		api.GET("/stats", s.handleStats)

		api.POST("/images", s.handleGenerateImage)
	}
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.Queue != nil {
		defer func() {
			if err := s.Queue.Close(); err != nil {
				s.Logger.Warn("Failed to close queue", zap.Error(err))
			}
		}()
	}

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
