package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal - общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration - длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Длительность HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RequestsInFlight - количество запросов в обработке
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Текущее количество запросов в обработке",
		},
	)

	// WSConnectionsActive - активные WebSocket подключения по ролям
	WSConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Текущее количество WebSocket подключений по ролям",
		},
		[]string{"role"},
	)

	// LocationUpdatesTotal - общее количество обновлений позиции
	LocationUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "location_updates_total",
			Help: "Общее количество обновлений позиции от водителей",
		},
	)

	// LocationBroadcastsTotal - общее количество разосланных сообщений с позицией
	LocationBroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "location_broadcasts_total",
			Help: "Общее количество сообщений с позицией, разосланных подписчикам",
		},
	)
)

// PrometheusMiddleware собирает метрики для HTTP запросов
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Увеличиваем счетчик запросов в обработке
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		// Фиксируем время начала запроса
		start := time.Now()

		// Обрабатываем запрос
		c.Next()

		// Вычисляем длительность запроса
		duration := time.Since(start).Seconds()

		// Получаем статус код и эндпоинт
		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// WSConnectionOpened учитывает новое WebSocket подключение
func WSConnectionOpened(role string) {
	WSConnectionsActive.WithLabelValues(role).Inc()
}

// WSConnectionClosed учитывает закрытие WebSocket подключения
func WSConnectionClosed(role string) {
	WSConnectionsActive.WithLabelValues(role).Dec()
}

// TrackLocationUpdate учитывает обновление позиции и число получателей рассылки
func TrackLocationUpdate(recipients int) {
	LocationUpdatesTotal.Inc()
	LocationBroadcastsTotal.Add(float64(recipients))
}
