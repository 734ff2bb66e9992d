package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mr1hm/event-weather-alerts/internal/alerting"
	"github.com/mr1hm/event-weather-alerts/internal/api"
	"github.com/mr1hm/event-weather-alerts/internal/automation"
	"github.com/mr1hm/event-weather-alerts/internal/config"
	internalgrpc "github.com/mr1hm/event-weather-alerts/internal/grpc"
	"github.com/mr1hm/event-weather-alerts/internal/logging"
	"github.com/mr1hm/event-weather-alerts/internal/notification"
	"github.com/mr1hm/event-weather-alerts/internal/queue"
	"github.com/mr1hm/event-weather-alerts/internal/recipients"
	"github.com/mr1hm/event-weather-alerts/internal/repository"
	"github.com/mr1hm/event-weather-alerts/internal/weather"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, "weather-alerts")

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Weather provider, cached in redis when configured.
	var cache weather.Cache
	var memCache *weather.MemoryCache
	if cfg.Weather.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Weather.RedisAddr,
			Password: cfg.Weather.RedisPassword,
			DB:       cfg.Weather.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, cache misses will hit the provider", "addr", cfg.Weather.RedisAddr, "error", err)
		}
		cache = weather.NewRedisCache(rdb)
	} else {
		memCache = weather.NewMemoryCache(cfg.Weather.CacheSweep)
		memCache.Start(ctx)
		cache = memCache
	}
	if cfg.Weather.APIKey == "" {
		slog.Warn("WEATHER_API_KEY not set, weather requests will be rejected by the provider")
	}
	provider := weather.NewProvider(
		weather.NewClient(cfg.Weather.APIURL, cfg.Weather.APIKey, cfg.Weather.Timeout),
		cache,
		cfg.Weather.CacheTTL,
	)

	twilio := notification.NewTwilioClient(cfg.Twilio, cfg.Notify.SendTimeout)
	dispatcher := notification.NewDispatcher(cfg.Notify.SendTimeout,
		notification.NewEmailChannel(cfg.SMTP),
		notification.NewSMSChannel(twilio, cfg.Twilio.SMSFrom),
		notification.NewWhatsAppChannel(twilio, cfg.Twilio.WhatsAppFrom),
	)

	var publishers queue.Multi
	if len(cfg.Kafka.Brokers) > 0 {
		publishers = append(publishers, queue.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		slog.Info("publishing alerts to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	if cfg.MQTT.Broker != "" {
		mqttPub, err := queue.NewMQTTPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix)
		if err != nil {
			slog.Error("mqtt publisher disabled", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			publishers = append(publishers, mqttPub)
			slog.Info("publishing alerts to mqtt", "broker", cfg.MQTT.Broker, "prefix", cfg.MQTT.TopicPrefix)
		}
	}
	defer publishers.Close()

	// Create broadcaster for gRPC streaming
	broadcaster := internalgrpc.NewBroadcaster()

	svc := alerting.NewService(alerting.Deps{
		Store:       db,
		Weather:     provider,
		Resolver:    recipients.NewResolver(db),
		Dispatcher:  dispatcher,
		Automation:  automation.NewExecutor(db, db),
		Broadcaster: broadcaster,
		Publisher:   publishers,
	})

	var scheduler *alerting.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = alerting.NewScheduler(svc, cfg.Scheduler, cfg.Worker)
		scheduler.Start(ctx)
	}

	// Start gRPC server
	grpcServer := internalgrpc.NewServer(db, broadcaster)
	go func() {
		grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logging.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS))

	auth := api.NewAuthenticator(cfg.Auth.JWTSecret, db)
	handler := api.NewHandler(svc, db, auth)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	if memCache != nil {
		memCache.Stop()
	}
	broadcaster.Close() // Close all streams gracefully
	grpcServer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
