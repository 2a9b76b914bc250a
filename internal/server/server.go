package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"report_catalog/internal/catalog"
	"report_catalog/internal/config"
	"report_catalog/internal/domain/report"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// LocalCatalog is the local source as served through the export API.
type LocalCatalog interface {
	catalog.Source
	Report(ctx context.Context, reportID string) (report.Definition, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// HTTPServer is what the lifecycle hooks need from the server.
type HTTPServer interface {
	Start(address string) error
	Shutdown(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	catalog *catalog.Aggregator
	local   LocalCatalog
	dbCheck HealthCheck
	logger  *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, agg *catalog.Aggregator, local LocalCatalog, dbCheck HealthCheck, logger *logrus.Logger) *Server {
	e := echo.New()
	e.Debug = cfg.IsDevelopment()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	server := &Server{
		echo:    e,
		catalog: agg,
		local:   local,
		dbCheck: dbCheck,
		logger:  logger,
	}

	server.setupRoutes(cfg.Server)
	return server
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.WithField("address", address).Info("Starting HTTP server")
	err := s.echo.Start(address)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets the server be used as a plain handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes(cfg config.Server) {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	// API routes
	api := s.echo.Group("/api/v1")
	{
		reports := api.Group("/reports")
		{
			reports.GET("", s.listReports)
			reports.GET("/online", s.listOnlineReports)
			reports.GET("/:id", s.getReport)
			reports.GET("/:id/template", s.getTemplate)
		}

		sources := api.Group("/sources")
		{
			sources.GET("", s.listSources)
			sources.POST("/reload", s.reloadSources)
			sources.GET("/:id/reports", s.listSourceReports)
			sources.GET("/:id/reports/online", s.listSourceOnlineReports)
		}

		api.GET("/catalog.txt", s.catalogText)
		api.GET("/catalog.xlsx", s.catalogXLSX)

		export := api.Group("/export")
		if cfg.ExportLogin != "" {
			export.Use(middleware.BasicAuth(basicAuthValidator(cfg.ExportLogin, cfg.ExportPassword)))
		}
		{
			export.GET("/reports", s.exportReports)
			export.GET("/reports/online", s.exportOnlineReports)
			export.GET("/reports/:id", s.exportReport)
			export.GET("/reports/:id/template", s.exportTemplate)
		}
	}
}

// healthCheck handles health check requests
func (s *Server) healthCheck(c echo.Context) error {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "report-catalog",
		"catalog":   s.catalog.Status(),
	}

	if s.dbCheck != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.dbCheck(ctx); err != nil {
			s.logger.WithError(err).Warn("Database health check failed")
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
			body["database"] = err.Error()
		} else {
			body["database"] = "ok"
		}
	}
	if status == http.StatusOK && s.catalog.Status().Degraded() {
		body["status"] = string(catalog.StatusDegraded)
	}

	return c.JSON(status, body)
}

func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency,
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("Request failed")
				return nil
			}
			entry.Debug("Request handled")
			return nil
		},
	})
}

func basicAuthValidator(login, password string) middleware.BasicAuthValidator {
	return func(user, pass string, c echo.Context) (bool, error) {
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(login)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		return userOK && passOK, nil
	}
}
