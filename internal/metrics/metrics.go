package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/SambhavSinghChouhan-CN/canvas/internal/domain/model"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orders"

type Metrics struct {
	registry *prometheus.Registry

	Requests    *prometheus.CounterVec
	LatencyMS   *prometheus.HistogramVec
	Placements  *prometheus.CounterVec
	Transitions *prometheus.CounterVec
}

// プロセスごとに専用のレジストリを持つ（テストで何度作っても衝突しない）
func New() *Metrics {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "route"})
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "placements_total",
		Help:      "Order placement attempts by result.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_transitions_total",
		Help:      "Applied order status transitions.",
	}, []string{"from", "to"})

	reg.MustRegister(
		requests, latency, placements, transitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:    reg,
		Requests:    requests,
		LatencyMS:   latency,
		Placements:  placements,
		Transitions: transitions,
	}
}

func (m *Metrics) ObservePlacement(result string) {
	m.Placements.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveTransition(from model.OrderStatus, to model.OrderStatus) {
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ルート単位でリクエスト数とレイテンシを数える
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" {
				route = "unknown"
			}
			m.Requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(c.Request().Method, route).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
	}
}
