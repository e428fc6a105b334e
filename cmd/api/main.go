package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/Quikler/react-url-shortener/gee"
	"github.com/Quikler/react-url-shortener/gee/middleware"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/cache"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/httpapi"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/jobs"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/realtime"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/stats"
	"github.com/Quikler/react-url-shortener/internal/platform/auth"
	platformcache "github.com/Quikler/react-url-shortener/internal/platform/cache"
	"github.com/Quikler/react-url-shortener/internal/platform/config"
	"github.com/Quikler/react-url-shortener/internal/platform/httpmiddleware"
	"github.com/Quikler/react-url-shortener/internal/platform/httpserver"
	"github.com/Quikler/react-url-shortener/internal/platform/metrics"
	"github.com/Quikler/react-url-shortener/internal/platform/ratelimit"
	"github.com/Quikler/react-url-shortener/internal/platform/trace"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h).With("service", cfg.ServiceName))

	ts, err := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		log.Fatal(err)
	}

	metrics.Init()

	if cfg.TracingEnabled {
		shutdown := trace.InitTrace(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				slog.Error("trace shutdown", "err", err)
			}
		}()
	} else {
		slog.Warn("Tracing disabled by config", "TRACING_ENABLED", false)
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(stopCtx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.close()

	seedCtx, cancel := context.WithTimeout(stopCtx, 10*time.Second)
	err = urlshortener.SeedAdmin(seedCtx, store.users, store.users, cfg.SeedAdminUsername, cfg.SeedAdminPassword)
	cancel()
	if err != nil {
		log.Fatal(err)
	}

	// redirect path: bloom filter in front of a ristretto code cache
	codes, err := cache.NewLocalCache(cfg.CodeCacheItems, cfg.CodeCacheBytes, cfg.CodeCacheTTL, cfg.CodeCacheNegativeTTL)
	if err != nil {
		log.Fatal(err)
	}
	urlStore := cache.NewStore(store.rows, cache.Options{
		TTL:   cfg.CacheTTL,
		Codes: codes,
		Bloom: cache.NewBloomFilter(cfg.BloomExpectedItems, cfg.BloomFalsePositive),
	})
	defer urlStore.Close()
	if err := urlStore.Warm(stopCtx); err != nil {
		log.Fatal(err)
	}

	var (
		wg      sync.WaitGroup
		closers []func()
		goRun   = func(fn func(ctx context.Context)) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fn(stopCtx)
			}()
		}
	)

	hub := realtime.NewHub(cfg.HubBuffer)
	var remote realtime.Publisher
	if cfg.KafkaEnabled {
		slog.Info("realtime: relaying events through kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
		relay := realtime.NewKafkaRelay(cfg.KafkaBrokers, cfg.KafkaEventsTopic, hub)
		remote = relay
		goRun(relay.Run)
		closers = append(closers, relay.Close)
	}
	broadcaster := realtime.NewBroadcaster(hub, remote)

	var clicks urlshortener.ClickRecorder
	switch {
	case !cfg.StatsEnabled:
		slog.Warn("click stats disabled by config", "STATS_ENABLED", false)
	case cfg.KafkaEnabled:
		slog.Info("click stats: kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaClicksTopic)
		collector := stats.NewKafkaCollector(cfg.KafkaBrokers, cfg.KafkaClicksTopic)
		consumer := stats.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaClicksTopic, store.rows)
		clicks = collector
		goRun(consumer.Run)
		closers = append(closers, collector.Close, consumer.Close)
	default:
		slog.Info("click stats: channel")
		collector := stats.NewChannelCollector(10_000)
		consumer := stats.NewConsumer(store.rows, collector.Events())
		clicks = collector
		goRun(consumer.Run)
		closers = append(closers, collector.Close)
	}

	var limiter ratelimit.Limiter
	switch {
	case !cfg.RateLimitEnabled:
		slog.Warn("RateLimit disabled by config", "RATELIMIT_ENABLED", false)
	case cfg.RateLimitBackend == "redis":
		redisClient, err := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal(err)
		}
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient)
	default:
		local := ratelimit.NewLocalLimiter(10 * time.Minute)
		goRun(func(ctx context.Context) { local.Run(ctx, time.Minute) })
		limiter = local
	}

	identity := urlshortener.NewIdentityService(store.users, store.ledger, urlshortener.NewJWTIssuer(ts), store.tx)
	urls := urlshortener.NewUrlShortenerService(urlStore, urlshortener.RandomCodes{}, broadcaster, clicks, urlshortener.Options{
		CodeLength:   cfg.ShortCodeLength,
		CodeAttempts: cfg.ShortCodeAttempts,
	})

	goRun(func(ctx context.Context) { urlStore.Run(ctx, cfg.CacheSweepInterval) })
	goRun(jobs.NewTokenSweeper(store.ledger, cfg.TokenSweepInterval).Run)

	r := gee.New()
	r.Use(
		gee.Recovery(),
		middleware.ReqID(),
		middleware.AccessLog(),
		middleware.CORS(cfg.CORSAllowedOrigins),
		httpmiddleware.Metrics(),
		httpmiddleware.TraceName(),
	)
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Identity: identity,
		Urls:     urls,
		About:    urlshortener.NewAboutService(cfg.AboutFile),
		Hub:      hub,
		Tokens:   ts,
		Limiter:  limiter,
		Cookie: httpapi.CookieOptions{
			Name:     cfg.RefreshCookieName,
			Secure:   cfg.RefreshCookieSecure,
			SameSite: cfg.RefreshCookieSameSite,
			TTL:      cfg.RefreshTokenTTL,
		},
		PublicBaseURL:  cfg.PublicBaseURL,
		RedirectStatus: cfg.RedirectStatus,
		Heartbeat:      cfg.HubHeartbeat,
	})

	publicHandler := http.Handler(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(r, "http")
	}
	publicSrv := httpserver.New(cfg, publicHandler)
	// Shutdown waits for in-flight requests and an event stream never ends by
	// itself; closing the hub lets those handlers return
	publicSrv.RegisterOnShutdown(hub.Close)

	adminSrv := httpserver.NewAdmin(cfg, adminMux(cfg, store.ping))

	err = httpserver.RunWithGracefulShutdownContext(stopCtx, cfg.ShutdownTimeout, publicSrv, adminSrv)
	stop()

	// servers are down and stopCtx is done: consumers flush their last batch
	for _, c := range closers {
		c()
	}
	wg.Wait()

	if err != nil {
		log.Fatal(err)
	}
	slog.Info("shutdown complete")
}

// adminMux is served on the internal listener only.
func adminMux(cfg config.Config, ping func(context.Context) error) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			slog.Error("readyz: storage ping failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("storage not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name": cfg.ServiceName,
			"version":      version,
			"commit":       commit,
			"build_time":   buildTime,
			"go_version":   runtime.Version(),
		})
	})

	if cfg.PprofEnabled {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}
