package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// UnmatchedRoute метка маршрута для запросов, не попавших ни в один маршрут
const UnmatchedRoute = "unmatched"

// RouteFunc возвращает шаблон маршрута для запроса.
// Используется как значение метки, поэтому множество значений должно быть конечным.
type RouteFunc func(r *http.Request) string

// Metrics представляет систему метрик
type Metrics struct {
	registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ErrorsCount     *prometheus.CounterVec
	InFlight        prometheus.Gauge

	// OpenTelemetry Tracer
	Tracer trace.Tracer `json:"-"`
}

// Option настраивает Metrics
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
}

// WithTracerProvider задает провайдер трассировки вместо глобального
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// NewMetrics создает новую систему метрик на собственном реестре.
// Отдельный реестр позволяет создавать несколько экземпляров в одном процессе.
func NewMetrics(namespace string, opts ...Option) *Metrics {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ErrorsCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total number of HTTP errors",
			},
			[]string{"method", "route", "error_type"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of HTTP requests being served",
			},
		),
		Tracer: o.tracerProvider.Tracer(namespace),
	}

	registry.MustRegister(
		m.RequestCount,
		m.RequestDuration,
		m.ErrorsCount,
		m.InFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry возвращает реестр Prometheus
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GetHandler возвращает HTTP обработчик для эндпоинта /metrics
func (m *Metrics) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware создает middleware для сбора метрик и трассировки.
// route определяет метку маршрута; nil означает метку UnmatchedRoute для всех запросов.
func (m *Metrics) Middleware(route RouteFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			label := UnmatchedRoute
			if route != nil {
				label = route(r)
			}

			ctx, span := m.Tracer.Start(r.Context(), r.Method+" "+label, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			m.InFlight.Inc()
			defer m.InFlight.Dec()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start).Seconds()

			m.RequestCount.WithLabelValues(r.Method, label, strconv.Itoa(wrapped.statusCode)).Inc()
			m.RequestDuration.WithLabelValues(r.Method, label).Observe(duration)

			if wrapped.statusCode >= 400 {
				errorType := "client_error"
				if wrapped.statusCode >= 500 {
					errorType = "server_error"
				}
				m.ErrorsCount.WithLabelValues(r.Method, label, errorType).Inc()
			}

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", label),
				attribute.String("http.target", r.URL.Path),
				attribute.Int("http.status_code", wrapped.statusCode),
				attribute.Float64("http.duration", duration),
			)
		})
	}
}

// responseWriter обертка для перехвата статуса ответа
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

// WriteHeader перехватывает установку статуса
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// InitializeOpenTelemetry создает провайдер трассировки и делает его глобальным.
// Вызывающий отвечает за Shutdown провайдера.
func InitializeOpenTelemetry(serviceName, version string, sampleRatio float64) *tracesdk.TracerProvider {
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(sampleRatio))),
		tracesdk.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		)),
	)

	otel.SetTracerProvider(tp)

	return tp
}
