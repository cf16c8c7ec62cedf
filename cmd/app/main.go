package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"notify-service/internal/config"
	"notify-service/internal/credential"
	"notify-service/internal/idem"
	"notify-service/internal/kafka"
	"notify-service/internal/migrate"
	"notify-service/internal/notification"
	"notify-service/internal/push"
	"notify-service/internal/ratelimit"
	"notify-service/internal/realtime"
	"notify-service/internal/shared/db"
	"notify-service/internal/shared/httpx"
	"notify-service/internal/shared/jwt"
	"notify-service/internal/shared/logging"
	"notify-service/internal/shared/redisx"
	"notify-service/internal/subscription"
)

func initOTEL(ctx context.Context, env string) func(context.Context) error {
	endpoint := config.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318")
	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		log.Fatal().Err(err).Msg("otel exporter")
	}
	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(config.GetEnv("OTEL_SERVICE_NAME", "notify-service")),
		attribute.String("deployment.environment", env),
	))
	ratio := 1.0
	if s := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); s != "" {
		if f, e := strconv.ParseFloat(s, 64); e == nil && f >= 0 && f <= 1 {
			ratio = f
		}
	}
	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(ratio))),
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown
}

// loadMinter builds the cached bearer-token minter. A missing credential does
// not stop the service; every batch then fails with the load error.
func loadMinter(ctx context.Context, cfg *config.Config, rds *redis.Client) credential.Minter {
	lg := logging.Component("credential")

	var objects credential.ObjectGetter
	if cfg.Creds.Bucket != "" {
		objStore, err := credential.NewObjectStore(cfg.S3)
		if err != nil {
			lg.Error().Err(err).Msg("object store")
		} else {
			objects = objStore
		}
	}

	cred, err := credential.Load(ctx, cfg.Creds, objects)
	if err != nil {
		lg.Error().Err(err).Msg("service credential unavailable")
		return credential.Unavailable(err)
	}
	if cfg.Push.ProjectID == "" {
		cfg.Push.ProjectID = cred.ProjectID
	}
	var shared credential.TokenStore
	if cfg.Creds.SharedCache {
		shared = credential.NewRedisTokenStore(rds, cred)
	}
	return credential.NewCachingMinter(credential.NewAssertionMinter(cred), shared)
}

func main() {
	cfg := config.Load()
	logging.Setup(cfg.Env, cfg.LogLevel)
	lg := logging.Component("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := initOTEL(ctx, cfg.Env)
	defer func() {
		c, cc := context.WithTimeout(context.Background(), 5*time.Second)
		defer cc()
		_ = shutdown(c)
	}()

	// Postgres
	store, err := db.Open(ctx, cfg.DSN(), cfg.DBReplicas)
	if err != nil {
		lg.Fatal().Err(err).Msg("db open")
	}
	defer func() { _ = store.Close() }()

	if cfg.AutoMigrate {
		if err := migrate.AutoMigrateAll(store); err != nil {
			lg.Fatal().Err(err).Msg("migrate")
		}
	}

	// Redis
	rds := redisx.Open(cfg.RedisAddr())
	defer func() { _ = rds.Close() }()

	// Wire repos & services
	subSvc := subscription.NewService(subscription.NewRepository(store))
	inboxSvc := notification.NewService(notification.NewRedisRepository(rds))

	minter := loadMinter(ctx, cfg, rds)
	sender := push.NewFCMSender(cfg.Push.SendEndpoint, cfg.Push.ProjectID, nil)
	dispatcher := push.NewDispatcher(sender, subSvc, push.Defaults{
		Icon:  cfg.Push.DefaultIcon,
		Badge: cfg.Push.DefaultBadge,
		Link:  cfg.Push.DefaultLink,
		Tag:   cfg.Push.DefaultTag,
	}, cfg.Push.Concurrency)

	hooks := []push.Option{
		push.WithHook("inbox", inboxSvc.RecordBatch),
		push.WithHook("realtime", realtime.SummaryHook(realtime.NewRedisPublisher(rds, cfg.RealtimeChannel))),
	}

	brokers := kafka.SplitBrokers(cfg.KafkaBrokers)
	var kWriter kafka.Writer
	if cfg.KafkaEnabled && len(brokers) > 0 {
		kWriter = kafka.NewWriter(brokers, cfg.KafkaResultsTopic)
		defer func() { _ = kWriter.Close() }()
		hooks = append(hooks, push.WithHook("kafka", kafka.SummaryHook(kWriter)))
	}

	pushSvc := push.NewService(subSvc, minter, dispatcher, hooks...)

	feed := realtime.NewFeed(realtime.RedisConnector(rds, cfg.RealtimeChannel))
	defer feed.Close()

	// HTTP
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, err, "db_unavailable")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	auth := httpx.AuthMiddleware(jwt.NewVerifier(cfg.JWTSecret))
	protect := func(pattern string, h http.Handler) {
		mux.Handle(pattern, auth(h))
	}

	limiter := ratelimit.New(ratelimit.NewRedisCounter(rds))
	byUser := func(r *http.Request) (string, error) { return httpx.UserFromCtx(r) }

	ph := push.NewHandler(pushSvc)
	sh := subscription.NewHandler(subSvc)
	nh := notification.NewHandler(inboxSvc)
	eh := realtime.NewHandler(feed)

	protect("POST /notify", limiter.LimitHTTP(cfg.NotifyRateLimit, time.Minute, byUser, httpx.Wrap(ph.Notify)))

	protect("POST /subscriptions", httpx.Wrap(sh.Register))
	protect("DELETE /subscriptions", httpx.Wrap(sh.Unregister))
	protect("DELETE /subscriptions/all", httpx.Wrap(sh.UnregisterAll))
	protect("GET /subscriptions", httpx.Wrap(sh.List))

	protect("GET /notifications", httpx.Wrap(nh.List))
	protect("POST /notifications/{id}/read", httpx.Wrap(nh.MarkRead))

	protect("GET /events", httpx.Wrap(eh.Events))

	srv := &http.Server{
		Addr:              cfg.AppPort,
		Handler:           otelhttp.NewHandler(mux, "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		lg.Info().Str("addr", cfg.AppPort).Msg("notify-service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal().Err(err).Msg("http server")
		}
	}()

	if cfg.KafkaEnabled && len(brokers) > 0 {
		cons := kafka.NewConsumer(brokers, cfg.KafkaGroupID, cfg.KafkaRequestsTopic, kafka.NotifyHandler(pushSvc, idem.New(rds)))
		go func() {
			if err := cons.Run(ctx); err != nil {
				lg.Error().Err(err).Msg("consumer stopped")
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	lg.Info().Msg("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	cancel()
}
