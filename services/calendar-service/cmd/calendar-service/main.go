package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Lorvello/real-bookings-assistant-sub000/libs/config"
	"github.com/Lorvello/real-bookings-assistant-sub000/libs/db"
	"github.com/Lorvello/real-bookings-assistant-sub000/libs/httpx"
	"github.com/Lorvello/real-bookings-assistant-sub000/libs/kafkax"
	otelx "github.com/Lorvello/real-bookings-assistant-sub000/libs/otel"
	"github.com/Lorvello/real-bookings-assistant-sub000/libs/runtime"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/cache"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/consumer"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/handlers"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/inbox"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/outbox"
	"github.com/Lorvello/real-bookings-assistant-sub000/services/calendar-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	service := config.String("SERVICE_NAME", "calendar-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
	}

	cacheTTL := 30 * time.Second
	if v, err := strconv.Atoi(config.String("AVAILABILITY_CACHE_TTL_SECONDS", "30")); err == nil && v > 0 {
		cacheTTL = time.Duration(v) * time.Second
	}
	availCache := cache.New(rdb, logger, cacheTTL)
	if availCache.Enabled() {
		logger.Info("availability cache enabled (redis)", "ttl", cacheTTL)
	} else {
		logger.Info("availability cache disabled (no redis configured)")
	}

	repo := storage.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		consumerCfg := consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "calendar-service"),
			Topic:   topic,
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
			// Booking lifecycle events change occupied time, so cached
			// availability for that calendar is stale.
			var payload struct {
				CalendarID string `json:"calendar_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.CalendarID == "" {
				logger.Error("missing calendar_id in event", "topic", msg.Topic)
				return nil
			}
			availCache.Bump(ctx, payload.CalendarID)
			return nil
		})
		go eventConsumer.Run(ctx)
	}

	startConsumer(config.String("KAFKA_CONSUME_TOPIC", "booking.appointment.booked.v1"))
	startConsumer(config.String("KAFKA_CONSUME_TOPIC_2", "booking.appointment.cancelled.v1"))

	calendarHandler := handlers.NewCalendarHandler(repo, outboxRepo, availCache, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/calendars", calendarHandler.CreateCalendar)
	mux.HandleFunc("/api/v1/calendars/get", calendarHandler.GetCalendar)
	mux.HandleFunc("/api/v1/schedule", calendarHandler.UpsertSchedule)
	mux.HandleFunc("/api/v1/patterns", calendarHandler.CreatePattern)
	mux.HandleFunc("/api/v1/patterns/update", calendarHandler.UpdatePattern)
	mux.HandleFunc("/api/v1/patterns/delete", calendarHandler.DeletePattern)
	mux.HandleFunc("/api/v1/overrides", calendarHandler.CreateOverride)
	mux.HandleFunc("/api/v1/overrides/delete", calendarHandler.DeleteOverride)
	mux.HandleFunc("/api/v1/availability", calendarHandler.Availability)
	mux.HandleFunc("/api/v1/public/slots", calendarHandler.Slots)

	limitPerMinute := 120
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "120")); err == nil && v > 0 {
		limitPerMinute = v
	}
	var rateLimitMW httpx.Middleware
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		rateLimitMW,
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "calendar")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
