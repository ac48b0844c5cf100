package server

import (
	"net/http"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/handler"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/logging"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/metrics"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/middleware"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Options struct {
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	JWTSecret      string
	RequestTimeout time.Duration

	// nil ならメモリ上で制限する
	RateLimitStore echomw.RateLimiterStore
	RateLimitRPS   float64
	RateLimitBurst int

	Orders *handler.OrderHandler
	Health *handler.HealthHandler
}

// New はミドルウェアとルートを組み立てた echo を返す。
func New(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(logging.ContextLogger(opts.Logger))
	e.Use(logging.RequestLogger(opts.Logger, middleware.CtxUserIDKey))
	if opts.Metrics != nil {
		e.Use(opts.Metrics.Middleware())
	}
	e.Use(echomw.RateLimiterWithConfig(rateLimiterConfig(opts)))
	if opts.RequestTimeout > 0 {
		e.Use(echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
			Timeout: opts.RequestTimeout,
		}))
	}

	if opts.Health != nil {
		opts.Health.RegisterRoutes(e)
	}
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}
	if opts.Orders != nil {
		opts.Orders.RegisterRoutes(e, middleware.AuthJWT(opts.JWTSecret))
	}

	return e
}

func rateLimiterConfig(opts Options) echomw.RateLimiterConfig {
	store := opts.RateLimitStore
	if store == nil {
		store = echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(opts.RateLimitRPS),
			Burst:     opts.RateLimitBurst,
			ExpiresIn: 3 * time.Minute,
		})
	}

	deny := func(c echo.Context, identifier string, err error) error {
		return c.JSON(http.StatusTooManyRequests, handler.ErrorResponse{Error: "rate limit exceeded", Code: "rate_limited"})
	}

	return echomw.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == "/health" || p == "/metrics"
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, handler.ErrorResponse{Error: "forbidden", Code: "forbidden"})
		},
		DenyHandler: deny,
	}
}
