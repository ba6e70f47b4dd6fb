package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"tour_chat_service/internal/chat/app"
	"tour_chat_service/internal/chat/domain"
	"tour_chat_service/internal/chat/repository"
	"tour_chat_service/internal/chat/router"
	"tour_chat_service/pkg/config"
	"tour_chat_service/pkg/database"
	"tour_chat_service/pkg/logger"
	testtool "tour_chat_service/pkg/test_tool"
	t_token "tour_chat_service/pkg/token"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()

	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath).WithDefaults()
	if config.EnvConfig.ChatServicePort != "" {
		cfg.Port = config.EnvConfig.ChatServicePort
	}
	t_token.SetSecret(cfg.Auth.Secret)
	testtool.StartPprof(cfg.PprofAddr)

	ctx := context.Background()

	// 1. message store and bookings
	msgRepo, bookingRepo, mongoDB := openStore(ctx, cfg)

	// 2. redis: cluster fan-out and group cache
	registry := app.NewRoomRegistry()
	var (
		broadcaster app.Broadcaster = app.NewLocalBroadcaster(registry)
		groupCache  database.RedisRepository[[]domain.Group]
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled {
		redisClient = openRedis(ctx, cfg)
		clusterBroadcaster := app.NewRedisBroadcaster(repository.NewRedisPubSub(redisClient), registry)
		if err := clusterBroadcaster.Start(ctx); err != nil {
			logger.Log.Fatal("subscribe room channels failed", zap.Error(err))
		}
		broadcaster = clusterBroadcaster
		groupCache = database.NewRedisRepository[[]domain.Group](redisClient)
	}

	// 3. message event sink
	events := openEvents(ctx, cfg.Events)

	// 4. use cases and relay
	locks := app.NewRoomLocks()
	messages := app.NewSendMessageUseCase(msgRepo, broadcaster, events, locks, cfg.Relay.MaxTextLength)
	groups := app.NewGroupUseCase(bookingRepo, groupCache, cfg.Redis.GroupCacheTTL)

	guard := app.NewOpenGuard()
	if cfg.Relay.RequirePaidBooking {
		guard = app.NewBookingGuard(groups)
	}
	relay := app.NewRelay(cfg.Relay, registry, app.NewPresenceTracker(cfg.Relay.TypingTTL), broadcaster, guard, messages, locks)

	relayCtx, stopRelay := context.WithCancel(ctx)
	go relay.Run(relayCtx)

	// 5. fiber
	r := fiber.New(fiber.Config{DisableStartupMessage: config.IsProduction()})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r,
		app.NewChatHTTPHandler(messages, groups, guard),
		app.NewChatWebsocketHandler(relay, cfg.Relay),
		cfg.Auth.Required,
	)

	go func() {
		port := ":" + cfg.Port
		logger.Log.Info("Chat Service listening", zap.String("port", port),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.String("events", cfg.Events.Driver),
			zap.Bool("require_paid_booking", cfg.Relay.RequirePaidBooking),
			zap.Bool("auth_required", cfg.Auth.Required),
		)
		if err := r.Listen(port); err != nil {
			logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
		}
	}()

	// 6. graceful shutdown, fiber drains first so no handler outlives its stores
	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"chat-service": func(ctx context.Context) error {
			logger.Log.Info("Graceful shutdown initiated")
			if err := r.ShutdownWithContext(ctx); err != nil {
				logger.Log.Error("fiber shutdown failed", zap.Error(err))
			}
			stopRelay()

			if err := events.Close(); err != nil {
				logger.Log.Error("close event sink failed", zap.Error(err))
			}
			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					logger.Log.Error("close redis failed", zap.Error(err))
				}
			}
			if mongoDB != nil {
				if err := mongoDB.Close(ctx); err != nil {
					logger.Log.Error("close mongo failed", zap.Error(err))
				}
			}
			return nil
		},
	})

	exitCode := <-wait
	logger.Log.Info("Chat Service exited", zap.Int("code", exitCode))
	logger.Log.Sync()
	os.Exit(exitCode)
}

// openStore connect the message store, mongoDB is nil with the memory driver
func openStore(ctx context.Context, cfg config.Chat) (repository.MessageRepository, repository.BookingRepository, *database.MongoDB) {
	if cfg.Store.Driver == "memory" {
		logger.Log.Warn("memory store selected, messages are lost on restart and no bookings are known")
		return repository.NewMemoryMessageRepository(), repository.NewMemoryBookingRepository(nil), nil
	}

	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongoDB, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
			zap.Error(err),
		)
	}

	if err := repository.EnsureMessageIndexes(ctx, mongoDB.Database); err != nil {
		logger.Log.Warn("ensure message indexes failed", zap.Error(err))
	}
	return repository.NewMongoMessageRepository(mongoDB.Database), repository.NewMongoBookingRepository(mongoDB.Database), mongoDB
}

func openRedis(ctx context.Context, cfg config.Chat) *redis.Client {
	masterName, sentinel := config.GetRedisSetting()
	client, err := database.NewRedisClient(ctx, database.RedisConnection{
		Addr:          cfg.Redis.Addr,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.RedisDB,
		MasterName:    masterName,
		SentinelAddrs: sentinel,
	})
	if err != nil {
		logger.Log.Fatal("connect redis failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	return client
}

func openEvents(ctx context.Context, ev config.EventsConfig) repository.EventPublisher {
	interval := time.Duration(ev.RetryInterval) * time.Second

	switch ev.Driver {
	case "kafka":
		w, err := database.NewKafkaWriterWithRetry(ctx, database.KafkaConnection{
			Brokers:       ev.Brokers,
			Topic:         ev.Topic,
			RetryCount:    ev.RetryCount,
			RetryInterval: interval,
		})
		if err != nil {
			logger.Log.Fatal("kafka event sink unavailable", zap.Strings("brokers", ev.Brokers), zap.Error(err))
		}
		return repository.NewKafkaEventPublisher(w)

	case "rabbitmq":
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    ev.AMQPURL,
			RetryCount:    ev.RetryCount,
			RetryInterval: interval,
		})
		if err != nil {
			logger.Log.Fatal("rabbitmq event sink unavailable", zap.Error(err))
		}
		ch, err := database.GetRabbitMQChannelWithRetry(conn, ev.RetryCount, interval)
		if err != nil {
			logger.Log.Fatal("open rabbitmq channel failed", zap.Error(err))
		}
		if err := repository.DeclareEventExchange(ch, ev.Exchange); err != nil {
			logger.Log.Fatal("declare event exchange failed", zap.String("exchange", ev.Exchange), zap.Error(err))
		}
		return repository.NewRabbitEventPublisher(database.NewRabbitRepository(ch), ev.Exchange, ev.Topic)

	case "none", "":
		return repository.NewNopEventPublisher()

	default:
		logger.Log.Fatal("unknown events driver", zap.String("driver", ev.Driver))
		return nil
	}
}
