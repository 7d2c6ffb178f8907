// Воркер отложенной записи: читает задачи из очереди и доводит их до
// удалённого хранилища. Сбой задачи возвращает её в очередь с
// увеличенным счётчиком попыток.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gruz-board/internal/adapters/remote"
	"gruz-board/internal/domain"
	"gruz-board/internal/infra/config"
	"gruz-board/internal/infra/db"
	infralog "gruz-board/internal/infra/log"
	"gruz-board/internal/infra/metrics"
	"gruz-board/internal/infra/queue"
)

const maxAttempts = 10

func main() {
	cfg := config.Load()
	logger := infralog.NewLogger(cfg.AppEnv).With().Str("component", "writeback").Logger()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("writeback: нет подключения к БД")
	}
	defer pool.Close()
	store := remote.NewStore(pool, logger)

	var q domain.WriteQueue
	if cfg.AMQPURL != "" {
		rq, err := queue.NewRabbitWriteQueue(cfg.AMQPURL, cfg.Queues.Writeback)
		if err != nil {
			logger.Fatal().Err(err).Msg("writeback: очередь недоступна")
		}
		defer rq.Close()
		q = rq
	} else {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		q = queue.NewRedisWriteQueue(redisClient, cfg.Queues.Writeback)
	}

	metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	logger.Info().Msg("writeback: старт")
	run(ctx, logger, q, store)
	logger.Info().Msg("writeback: остановка")
}

func run(ctx context.Context, logger zerolog.Logger, q domain.WriteQueue, store domain.RemoteStore) {
	for {
		job, err := q.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("writeback: чтение очереди не удалось")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		process(ctx, logger, q, store, job)
	}
}

func process(ctx context.Context, logger zerolog.Logger, q domain.WriteQueue, store domain.RemoteStore, job domain.WriteJob) {
	err := apply(ctx, store, job)
	if err == nil {
		metrics.WritebackJobs.WithLabelValues(string(job.Op), "ok").Inc()
		logger.Info().Str("op", string(job.Op)).Str("listing_id", jobID(job)).Msg("writeback: задача выполнена")
		return
	}

	job.Attempt++
	if job.Attempt >= maxAttempts {
		metrics.WritebackJobs.WithLabelValues(string(job.Op), "dropped").Inc()
		logger.Error().Err(err).Str("op", string(job.Op)).Str("listing_id", jobID(job)).
			Int("attempt", job.Attempt).Msg("writeback: задача отброшена")
		return
	}

	metrics.WritebackJobs.WithLabelValues(string(job.Op), "retry").Inc()
	logger.Warn().Err(err).Str("op", string(job.Op)).Str("listing_id", jobID(job)).
		Int("attempt", job.Attempt).Msg("writeback: повтор задачи")
	select {
	case <-ctx.Done():
		return
	case <-time.After(backoff(job.Attempt)):
	}
	if qErr := q.Enqueue(ctx, job); qErr != nil {
		logger.Error().Err(qErr).Str("op", string(job.Op)).Msg("writeback: возврат задачи не удался")
	}
}

func apply(ctx context.Context, store domain.RemoteStore, job domain.WriteJob) error {
	switch job.Op {
	case domain.WriteCreate:
		if job.Listing == nil {
			return errors.New("writeback: в задаче create нет объявления")
		}
		_, err := store.CreateListing(ctx, *job.Listing)
		return err
	case domain.WriteUpdate:
		if job.Listing == nil {
			return errors.New("writeback: в задаче update нет объявления")
		}
		// ErrNotFound не терминален: отложенный create той же записи
		// мог ещё не дойти до хранилища, повтор его догонит. Правка
		// уже удалённой записи исчерпает попытки и будет отброшена.
		return store.UpdateListing(ctx, *job.Listing)
	case domain.WriteDelete:
		return store.DeleteListing(ctx, job.ListingID)
	default:
		return errors.New("writeback: неизвестная операция " + string(job.Op))
	}
}

func jobID(job domain.WriteJob) string {
	if job.Listing != nil {
		return job.Listing.ID
	}
	return job.ListingID
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * time.Second
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}
