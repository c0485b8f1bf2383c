package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sartorlabs/sartor/libs/cache"
	"github.com/sartorlabs/sartor/libs/config"
	"github.com/sartorlabs/sartor/libs/db"
	"github.com/sartorlabs/sartor/libs/httpx"
	"github.com/sartorlabs/sartor/libs/kafkax"
	otelx "github.com/sartorlabs/sartor/libs/otel"
	"github.com/sartorlabs/sartor/libs/runtime"
	"github.com/sartorlabs/sartor/services/booking-service/internal/booking"
	"github.com/sartorlabs/sartor/services/booking-service/internal/handlers"
	"github.com/sartorlabs/sartor/services/booking-service/internal/outbox"
	"github.com/sartorlabs/sartor/services/booking-service/internal/slots"
	"github.com/sartorlabs/sartor/services/booking-service/internal/storage"
)

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
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}

	// With no Redis configured the lock and slot cache fall back to an
	// in-process store. Correct on a single instance, not across replicas.
	var store cache.Store
	var redisClient *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisClient = cache.NewRedisClient(addr, config.String("REDIS_PASSWORD", ""), config.Int("REDIS_DB", 0))
		defer redisClient.Close()
		store = cache.NewRedisStore(redisClient)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(redisClient)})
		logger.Info("slot cache and locks on redis", "addr", addr)
	} else {
		store = cache.NewMemoryStore()
		logger.Warn("REDIS_ADDR empty; slot cache and locks are in-process only")
	}

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	var rateLimitMW httpx.Middleware
	if redisClient != nil {
		rl := httpx.NewRedisRateLimiter(redisClient, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, true)
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	outboxRepo := outbox.NewRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo)
	measRepo := storage.NewMeasurementRepository(pool)

	gen := slots.NewGenerator(apptRepo, store, logger, slots.Config{
		OpenHour:   config.Int("BUSINESS_OPEN_HOUR", 8),
		CloseHour:  config.Int("BUSINESS_CLOSE_HOUR", 18),
		SlotLength: config.Seconds("SLOT_LENGTH_SECONDS", time.Hour),
		CacheTTL:   config.Seconds("SLOT_CACHE_TTL_SECONDS", 60*time.Second),
	})
	svc := booking.NewService(apptRepo, store, gen, logger,
		config.Seconds("SLOT_LOCK_TTL_SECONDS", booking.DefaultLockTTL))

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)
	if kafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}

	slotHandler := handlers.NewSlotHandler(gen, logger)
	apptHandler := handlers.NewAppointmentHandler(svc, logger)
	measHandler := handlers.NewMeasurementHandler(measRepo, logger)
	authed := handlers.RequireAuth(jwtSecret)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/public/slots", slotHandler.Day)
	mux.HandleFunc("/api/v1/public/slots/check", slotHandler.Check)
	mux.Handle("/api/v1/appointments", httpx.Chain(http.HandlerFunc(apptHandler.Collection), authed))
	mux.Handle("/api/v1/appointments/get", httpx.Chain(http.HandlerFunc(apptHandler.Get), authed))
	mux.Handle("/api/v1/appointments/status", httpx.Chain(http.HandlerFunc(apptHandler.UpdateStatus), authed))
	mux.Handle("/api/v1/appointments/cancel", httpx.Chain(http.HandlerFunc(apptHandler.Cancel), authed))
	mux.Handle("/api/v1/appointments/reschedule", httpx.Chain(http.HandlerFunc(apptHandler.Reschedule), authed))
	mux.Handle("/api/v1/appointments/assign", httpx.Chain(http.HandlerFunc(apptHandler.Assign), authed))
	mux.Handle("/api/v1/measurements", httpx.Chain(http.HandlerFunc(measHandler.Collection), authed))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods: parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS")),
			AllowedHeaders: parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
		}),
		rateLimitMW,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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
