package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/salesrouter/backend/internal/config"
	"github.com/salesrouter/backend/internal/engine"
	"github.com/salesrouter/backend/internal/http/handlers"
	"github.com/salesrouter/backend/internal/http/middleware"
	"github.com/salesrouter/backend/internal/metrics"

	_ "github.com/salesrouter/backend/docs"
)

func Router(cfg config.Config, store handlers.Store, eng *engine.Engine, monitor *engine.Monitor, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:     store,
		Engine:    eng,
		Monitor:   monitor,
		Metrics:   &metrics.Aggregator{Assignments: store},
		Validator: validator.New(),
		Logger:    logger,
		AdminKey:  cfg.AdminKey,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/leads", h.LeadCreate)
		api.POST("/leads/:id/route", h.LeadRoute)

		api.GET("/assignments", h.AssignmentsList)
		api.GET("/assignments/:id", h.AssignmentGet)
		api.POST("/assignments/:id/accept", h.AssignmentAccept)
		api.POST("/assignments/:id/reject", h.AssignmentReject)
		api.POST("/assignments/:id/convert", h.AssignmentConvert)
		api.POST("/assignments/:id/cancel", h.AssignmentCancel)

		api.GET("/reps", h.RepsList)
		api.GET("/rules", h.RulesList)
		api.GET("/rules/:id", h.RuleGet)
		api.GET("/metrics", h.MetricsGet)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/reps", h.RepCreate)
		admin.PATCH("/reps/:id", h.RepUpdate)
		admin.POST("/rules", h.RuleCreate)
		admin.PATCH("/rules/:id", h.RuleUpdate)
		admin.DELETE("/rules/:id", h.RuleDelete)
		admin.POST("/escalations/sweep", h.SweepTrigger)
		admin.GET("/debug/route-preview", h.RoutePreview)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
