package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"gruz-board/internal/adapters/announce"
	"gruz-board/internal/adapters/api"
	"gruz-board/internal/adapters/assistant"
	"gruz-board/internal/adapters/remote"
	"gruz-board/internal/adapters/state"
	"gruz-board/internal/domain"
	"gruz-board/internal/infra/config"
	"gruz-board/internal/infra/db"
	"gruz-board/internal/infra/gemini"
	gruzhttp "gruz-board/internal/infra/http"
	infralog "gruz-board/internal/infra/log"
	"gruz-board/internal/infra/metrics"
	"gruz-board/internal/infra/queue"
	"gruz-board/internal/usecase/board"
	"gruz-board/internal/usecase/gate"
	"gruz-board/internal/usecase/history"
	"gruz-board/internal/usecase/lifecycle"
)

func main() {
	cfg := config.Load()
	logger := infralog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	remoteStore := remote.NewStore(pool, logger.With().Str("component", "remote").Logger())
	if err := remoteStore.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("api: схема не создана")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	accountState := state.NewRedis(redisClient)

	var writeQueue domain.WriteQueue
	if cfg.AMQPURL != "" {
		rq, err := queue.NewRabbitWriteQueue(cfg.AMQPURL, cfg.Queues.Writeback)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: очередь записи недоступна")
		}
		defer rq.Close()
		writeQueue = rq
	} else {
		writeQueue = queue.NewRedisWriteQueue(redisClient, cfg.Queues.Writeback)
	}

	var announcer domain.Announcer
	subscribeLink := cfg.Gate.SubscribeLink
	if cfg.Telegram.Token != "" && cfg.Telegram.Channel != "" {
		tg, err := announce.NewTelegram(cfg.Telegram.Token, cfg.Telegram.Channel)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: телеграм недоступен")
		}
		announcer = tg
		if subscribeLink == "" {
			subscribeLink = tg.SubscribeLink()
		}
	}

	var assist domain.Assistant = assistant.NewSimple(nil)
	if cfg.Gemini.APIKey != "" {
		geminiClient := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Timeout)
		assist = assistant.WithFallback(
			assistant.NewGemini(geminiClient, cfg.Gemini.Model),
			assistant.NewSimple(nil),
			logger.With().Str("component", "assistant").Logger(),
		)
	}

	boardStore := board.NewStore()
	lifecycleSvc := lifecycle.NewService(boardStore, remoteStore, writeQueue, announcer,
		logger.With().Str("component", "lifecycle").Logger(), cfg.Listing.TTL)
	gateSvc := gate.NewService(accountState,
		logger.With().Str("component", "gate").Logger(),
		gate.Options{
			CountdownSeconds: cfg.Gate.CountdownSeconds,
			TickInterval:     time.Second,
			SubscribeLink:    subscribeLink,
		})
	historySvc := history.NewService(accountState, boardStore,
		logger.With().Str("component", "history").Logger())

	feed := remote.NewFeed(remoteStore, cfg.Feed.PollInterval,
		logger.With().Str("component", "feed").Logger())
	sub, err := feed.Subscribe(ctx, domain.FeedQuery{Limit: cfg.Feed.Limit},
		boardStore.ApplyRemoteSnapshot, boardStore.ApplyFeedError)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: подписка на ленту не удалась")
	}
	defer sub.Unsubscribe()

	srv := gruzhttp.NewServer(logger.With().Str("component", "http").Logger())
	srv.Router.Use(gruzhttp.IdentityMiddleware(cfg.Telegram.Token))
	handler := api.NewHandler(boardStore, lifecycleSvc, gateSvc, historySvc, assist,
		logger.With().Str("component", "api").Logger())
	handler.Register(srv.Router)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	go func() {
		if err := srv.Start(":" + strconv.Itoa(cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
