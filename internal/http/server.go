package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmehdipour/billing-sandbox/internal/config"
	"github.com/jmehdipour/billing-sandbox/internal/http/middleware"
	"github.com/jmehdipour/billing-sandbox/internal/query"
)

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

// NewServer wires the mock payment API over svc. rds may be nil, which
// disables rate limiting. Metrics must be registered by the caller.
func NewServer(cfg config.Config, svc *query.Service, rds *redis.Client, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Logger.SetLevel(echoLevel(cfg.App.LogLevel))
	// Metrics wraps Recover so recovered panics are counted as 500s.
	e.Use(middleware.RequestLogger(logger), middleware.Metrics(), echoMid.Recover())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", healthHandler(svc, cfg.App.Version))

	// middlewares
	authMW := middleware.APIKeyMiddleware(cfg.API.APIKeys)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Counter:        middleware.NewRedisCounter(rds),
		RPS:            cfg.API.RateLimit.RPS,
		KeyPrefix:      cfg.API.RateLimit.KeyPrefix,
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.GET("/customers", listCustomersHandler(svc))
	v1.GET("/subscriptions", listSubscriptionsHandler(svc))
	v1.GET("/charges", listChargesHandler(svc))
	v1.GET("/invoices", listInvoicesHandler(svc))

	return &Server{e: e, log: logger}
}

func echoLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
