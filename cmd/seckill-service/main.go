// cmd/seckill-service/main.go
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"flashsale/internal/pkg/bootstrap"
	"flashsale/internal/pkg/logger"
	"flashsale/internal/pkg/mq"
	"flashsale/internal/pkg/redis"
	"flashsale/internal/service/seckill/application"
	"flashsale/internal/service/seckill/domain/port"
	"flashsale/internal/service/seckill/infrastructure"
	"flashsale/internal/service/seckill/infrastructure/adapter"
	"flashsale/internal/service/seckill/interfaces"
	"flashsale/internal/zookeeper"
)

const (
	serviceName = "seckill-service"
	servicePort = 8084
)

// main 函数是应用的"组装根" (Composition Root)。
// 秒杀服务是单体部署：同一进程承载 HTTP 准入、队列消费和死信处理，
// 因为订单状态表是进程内的，拆开部署会让轮询接口查不到消费侧的结果。
func main() {
	bootstrap.Init()
	logger.Init(serviceName)
	cfg := bootstrap.GetCurrentConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- 基础设施 ---
	redisClient, err := redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	db, err := infrastructure.NewMysqlDB(cfg.Infra.Mysql.DSN)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to connect to MySQL")
	}

	orderWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.App.OrderTopic)
	retryWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.App.RetryTopic)
	dltWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.App.DltTopic)

	// 每个消费 worker 独立的 Reader；消费组内按分区分摊
	newOrderReader := func() *kafka.Reader {
		return mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.App.OrderTopic, cfg.App.ConsumerGroup)
	}
	newRetryReader := func() *kafka.Reader {
		return mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.App.RetryTopic, cfg.App.ConsumerGroup)
	}
	dltReader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.App.DltTopic, cfg.App.ConsumerGroup)

	// --- 出站适配器 ---
	admission, err := adapter.NewAdmissionRedisAdapter(redisClient)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to initialize admission adapter")
	}

	rateLimiter, err := adapter.NewTokenBucketLimiter(redisClient)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to initialize rate limiter")
	}
	if err := rateLimiter.Configure(ctx, cfg.App.RateLimit.MaxTokens, cfg.App.RateLimit.TokensPerSecond); err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to configure rate limiter bucket")
	}
	rateLimiter.StartReplenisher(ctx, time.Second)

	idWorker := adapter.NewIDWorker(redisClient)
	producer := infrastructure.NewOrderProducerAdapter(orderWriter)
	orderRepo := infrastructure.NewGormOrderRepository(db)
	voucherRepo := infrastructure.NewGormVoucherRepository(db)

	lockFactory, zkConn, err := buildLockFactory(cfg, redisClient)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Str("provider", cfg.App.LockProvider).Msg("Failed to initialize lock factory")
	}

	eligibility, err := adapter.NewCelEligibilityEngine()
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("Failed to initialize eligibility engine")
	}

	// --- 应用服务 ---
	tracker := application.NewStatusTracker()
	hub := interfaces.NewPushHub()
	go hub.Run()

	appSvc := application.NewSeckillApplicationService(
		otel.Tracer(serviceName),
		rateLimiter,
		idWorker,
		admission,
		producer,
		orderRepo,
		voucherRepo,
		lockFactory,
		time.Duration(cfg.App.LockTTLSeconds)*time.Second,
		eligibility,
		tracker,
		hub,
	)

	// --- 入站适配器：消费者 ---
	failureHandler := mq.NewFailureHandler(retryWriter, dltWriter, cfg.App.MaxRetries)

	orderConsumer := interfaces.NewOrderConsumerAdapter(newOrderReader, appSvc, failureHandler, cfg.App.WorkerCount)
	orderConsumer.Start(ctx)

	retryConsumer := interfaces.NewOrderConsumerAdapter(newRetryReader, appSvc, failureHandler, 1)
	retryConsumer.SetDelay(time.Duration(cfg.App.RetryDelaySeconds) * time.Second)
	retryConsumer.Start(ctx)

	dltConsumer := interfaces.NewDltConsumerAdapter(dltReader, appSvc)
	dltConsumer.Start(ctx)

	// --- 入站适配器：HTTP ---
	handler := interfaces.NewSeckillHandler(appSvc, hub)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			handler.RegisterRoutes(appCtx.Mux)
		},
		OnShutdown: func(shutdownCtx context.Context) {
			cancel()
			orderConsumer.Stop(shutdownCtx)
			retryConsumer.Stop(shutdownCtx)
			dltConsumer.Stop(shutdownCtx)

			orderWriter.Close()
			retryWriter.Close()
			dltWriter.Close()

			if zkConn != nil {
				zkConn.Close()
			}
			if err := redisClient.Close(); err != nil {
				logger.Ctx(shutdownCtx).Warn().Err(err).Msg("Error closing redis client")
			}
		},
	})
}

// buildLockFactory 按配置选择分布式锁实现。
func buildLockFactory(cfg bootstrap.Config, redisClient *redis.Client) (port.LockFactory, *zookeeper.Conn, error) {
	if cfg.App.LockProvider == "zookeeper" {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 5*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return adapter.NewZkLockFactory(conn), conn, nil
	}
	factory, err := adapter.NewRedisLockFactory(redisClient)
	if err != nil {
		return nil, nil, err
	}
	return factory, nil, nil
}
