package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/handler"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/infra/memory"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/metrics"
	"github.com/SambhavSinghChouhan-CN/canvas/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, burst int) *echo.Echo {
	t.Helper()
	clock := usecase.SystemClock{}
	uc := usecase.NewOrderUsecase(memory.NewStore(), usecase.NewULIDOrderNumberGenerator(clock), clock)

	return New(Options{
		Logger:         zerolog.Nop(),
		Metrics:        metrics.New(),
		JWTSecret:      "secret",
		RequestTimeout: 5 * time.Second,
		RateLimitRPS:   0.001,
		RateLimitBurst: burst,
		Orders:         handler.NewOrderHandler(uc),
		Health:         handler.NewHealthHandler(nil),
	})
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_RequestIDHeader(t *testing.T) {
	e := newTestServer(t, 10)

	rec := get(e, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestServer_RateLimit(t *testing.T) {
	e := newTestServer(t, 1)

	assert.Equal(t, http.StatusUnauthorized, get(e, "/orders").Code)

	rec := get(e, "/orders")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate_limited")

	// health と metrics は対象外
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(e, "/health").Code)
		assert.Equal(t, http.StatusOK, get(e, "/metrics").Code)
	}
}

func TestServer_MetricsExposeRequests(t *testing.T) {
	e := newTestServer(t, 10)

	get(e, "/health")
	rec := get(e, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orders_http_requests_total")
}
