package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ListingsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "listings_created_total",
		Help: "Созданные объявления",
	})
	StatusChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_status_changes_total",
		Help: "Смены статуса объявлений",
	}, []string{"status"})
	ListingsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "listings_deleted_total",
		Help: "Удалённые объявления",
	})

	SnapshotApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_snapshots_applied_total",
		Help: "Применённые срезы удалённой ленты",
	})
	SnapshotErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_snapshot_errors_total",
		Help: "Ошибки получения среза удалённой ленты",
	})
	SnapshotSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_snapshot_size",
		Help: "Размер последнего применённого среза",
	})

	GateUnlocks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gate_unlocks_total",
		Help: "Прохождения гейта подписки",
	})

	WritebackEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "writeback_enqueued_total",
		Help: "Отложенные задачи записи, поставленные в очередь",
	}, []string{"op"})
	WritebackJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "writeback_jobs_total",
		Help: "Обработанные задачи отложенной записи",
	}, []string{"op", "status"})

	AnnounceErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "announce_errors_total",
		Help: "Ошибки публикации анонсов в канал",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ListingsCreated,
		StatusChanges,
		ListingsDeleted,
		SnapshotApplied,
		SnapshotErrors,
		SnapshotSize,
		GateUnlocks,
		WritebackEnqueued,
		WritebackJobs,
		AnnounceErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}
