package router

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/psds-microservice/issue-tracker/api"
	"github.com/psds-microservice/issue-tracker/internal/handler"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathSwagger = "/swagger"
	PathIssues  = "/api/issues/:project"
)

func New(issues *handler.IssueHandler, health *handler.HealthHandler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}))

	r.GET(PathHealth, health.Health)
	r.GET(PathReady, health.Ready)
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})

	r.GET(PathIssues, issues.List)
	r.POST(PathIssues, issues.Create)
	r.PUT(PathIssues, issues.Update)
	r.DELETE(PathIssues, issues.Delete)

	return r
}

// requestLogger logs one line per request once the handler chain has run.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http: request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
