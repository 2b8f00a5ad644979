package handlers

import (
	"time"

	"github.com/ask4sham/letsrevise-attempts/internal/auth"
	"github.com/ask4sham/letsrevise-attempts/internal/services"
	"github.com/ask4sham/letsrevise-attempts/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "assessment-attempts"

type HandlerManager struct {
	attemptHandler *AttemptHandler
	paperHandler   *PaperHandler
	healthHandler  *HealthHandler
	resolver       auth.IdentityResolver
	logger         utils.Logger
}

func NewHandlerManager(
	attemptService services.AttemptService,
	paperService services.PaperService,
	resolver auth.IdentityResolver,
	healthChecks map[string]HealthCheck,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(attemptService, logger),
		paperHandler:   NewPaperHandler(paperService, logger),
		healthHandler:  NewHealthHandler(serviceName, healthChecks),
		resolver:       resolver,
		logger:         logger,
	}
}

// NewRouter builds the gin engine with middleware and every route registered.
func (hm *HandlerManager) NewRouter(allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(utils.ContextLogger(hm.logger))
	router.Use(utils.LoggerMiddleware(hm.logger))
	router.Use(cors.New(corsConfig(allowedOrigins)))

	hm.SetupRoutes(router)
	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", utils.RequestIDHeader},
		ExposeHeaders: []string{utils.RequestIDHeader, "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.healthHandler.Health)

	v1 := router.Group("/api/v1")
	v1.Use(auth.Middleware(hm.resolver, hm.logger))
	{
		papers := v1.Group("/assessment-papers")
		{
			papers.GET("/:id", hm.paperHandler.GetPaper)
		}

		attempts := v1.Group("/assessment-attempts")
		{
			attempts.POST("/start", hm.attemptHandler.StartAttempt)
			attempts.GET("/in-progress/:paper_id", hm.attemptHandler.GetInProgress)
			attempts.GET("", hm.attemptHandler.ListAttempts)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.PUT("/:id/answers", hm.attemptHandler.RecordAnswer)
			attempts.POST("/:id/heartbeat", hm.attemptHandler.Heartbeat)
			attempts.POST("/:id/submit", hm.attemptHandler.SubmitAttempt)
			attempts.GET("/:id/results", hm.attemptHandler.GetResults)
			attempts.GET("/:id/results/export", hm.attemptHandler.ExportResults)
		}
	}
}
