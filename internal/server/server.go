package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/theiauto/feedsync/internal/config"
	"github.com/theiauto/feedsync/internal/service"
	"github.com/theiauto/feedsync/internal/store"
)

const requestIDHeader = "X-Request-ID"

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Publisher *service.PublisherService
	Articles  *service.ArticleService
	Scheduler *service.Scheduler
	Deletions *service.DeletionWorker
	Gate      *service.AdminGate
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Initialize database
	db, err := store.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return New(cfg, db, logger), nil
}

// New wires the services and routes on an open database.
func New(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *Server {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize services
	articleStore := store.NewArticleStore(db)
	auditLog := service.NewAuditLog(db, logger)
	publisherService := service.NewPublisherService(&cfg.Daum, articleStore, auditLog, logger)
	deletions := service.NewDeletionWorker(publisherService, logger, cfg.Daum.DeletionQueueSize)

	srv := &Server{
		Config:    cfg,
		DB:        db,
		Router:    gin.New(),
		Logger:    logger,
		Publisher: publisherService,
		Articles:  service.NewArticleService(articleStore, deletions, logger),
		Scheduler: service.NewScheduler(&cfg.Scheduler, logger, articleStore, publisherService),
		Deletions: deletions,
		Gate:      service.NewAdminGate(logger, cfg.Auth.TOTPSecret, cfg.Auth.Issuer),
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Request ID middleware
	s.Router.Use(func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	})

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\" %s\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
				param.Keys["request_id"],
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+service.AdminGateHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
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

	// Local article lifecycle hooks
	api := s.Router.Group("/api/v1", s.Gate.Middleware())
	{
		api.DELETE("/articles/:id", s.handleDeleteArticle)
	}

	// Daum feed integration
	daum := s.Router.Group("/integrations/daum", s.Gate.Middleware())
	{
		daum.GET("/check", s.handleCheckAuth)
		daum.POST("/articles/:id/push", s.handlePushJSON)
		daum.POST("/articles/:id/push-file", s.handlePushWithFiles)
		daum.GET("/result", s.handleFetchResult)
		daum.DELETE("/delete/uuid/:uuid", s.handleDeleteByUUID)
		daum.DELETE("/delete/content-id/:contentId", s.handleDeleteByContentID)
		daum.GET("/preview/:articleId", s.handlePreview)
		daum.GET("/logs", s.handleListFeedLogs)
		daum.GET("/settings", s.handleGetSettings)
		daum.PUT("/settings", s.handleUpdateSettings)
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Background workers
	s.Deletions.Start(ctx)
	go s.watchDeletionErrors(ctx)

	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

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

// watchDeletionErrors keeps a running count of failed background deletes.
func (s *Server) watchDeletionErrors(ctx context.Context) {
	failed := 0
	for {
		select {
		case failure := <-s.Deletions.Errors():
			failed++
			s.Logger.Warn("Background feed deletion needs manual follow-up",
				zap.Int("article_id", failure.Task.ArticleID),
				zap.String("uuid", failure.Task.UUID),
				zap.String("content_id", failure.Task.ContentID),
				zap.Int("failed_total", failed),
				zap.Error(failure.Err))
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop background work first
	s.Scheduler.Stop()
	s.Deletions.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
