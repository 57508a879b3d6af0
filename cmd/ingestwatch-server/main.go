package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/ingestwatch/internal/alerting"
	"github.com/edirooss/ingestwatch/internal/config"
	"github.com/edirooss/ingestwatch/internal/http/handler"
	mw "github.com/edirooss/ingestwatch/internal/http/middleware"
	"github.com/edirooss/ingestwatch/internal/linkage"
	"github.com/edirooss/ingestwatch/internal/notify"
	"github.com/edirooss/ingestwatch/internal/provider"
	"github.com/edirooss/ingestwatch/internal/redis"
	"github.com/edirooss/ingestwatch/internal/resolver"
	"github.com/edirooss/ingestwatch/internal/service"
)

func init() {
	// Handle version display
	handleVersion()
}

func main() {
	// Read env
	isDev := os.Getenv("ENV") == "dev"

	// Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Create Zap logger
	log := buildLogger(isDev)
	defer log.Sync()
	log = log.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry provider
	src, closeSrc, err := buildProvider(ctx, log, cfg)
	if err != nil {
		log.Fatal("telemetry provider creation failed", zap.Error(err))
	}
	defer closeSrc()

	// Services
	matcher := linkage.NewMatcher(cfg.Linkage.MinStreamKeyLength)
	res := resolver.New(log, src, matcher, resolver.Options{
		CallTimeout:       cfg.Telemetry.CallTimeout,
		Lookback:          cfg.Resolver.Lookback,
		SignalConcurrency: cfg.Resolver.SignalConcurrency,
	})
	topo := service.NewTopologyService(log, src, matcher, service.TopologyOptions{
		TTL:               cfg.Topology.CacheTTL,
		RefreshTimeout:    cfg.Topology.RefreshTimeout,
		AllowStaleOnError: true,
	})
	failover := service.NewFailoverService(log, res, cfg.Topology.FailoverConcurrency)
	monitor := alerting.NewMonitor(log, src,
		alerting.NewDedupCache(alerting.DedupOptions{Capacity: cfg.Alerts.DedupCapacity, MaxAge: cfg.Alerts.MaxAge}),
		res,
		notify.New(log, cfg.Notify.WebhookURL, cfg.Notify.Timeout),
		alerting.NewVerifier(cfg.Webhook.Key, cfg.Webhook.MaxSkew),
		alerting.MonitorOptions{
			PollConcurrency: cfg.Alerts.PollConcurrency,
			CallTimeout:     cfg.Telemetry.CallTimeout,
		},
	)
	if cfg.Webhook.Key == "" {
		log.Warn("webhook.key is empty; webhook signatures are not verified")
	}

	// Create Gin router
	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = zap.NewStdLog(log.Named("gin")).Writer() // Configure Gin's logger to use Zap
	r := gin.New()

	// Apply Gin middlewares
	{
		r.Use(gin.Recovery()) // Recovery first (outermost)
		r.Use(mw.RequestID()) // Attach request ID for tracing; early in the chain so it's available everywhere

		if isDev { // Enable CORS for local dashboards
			r.Use(cors.New(cors.Config{
				AllowOrigins:  []string{"http://localhost:5173", "http://localhost:3000", "http://127.0.0.1:3000"},
				AllowMethods:  []string{"GET", "POST", "OPTIONS"},
				AllowHeaders:  []string{"X-Request-ID", "Content-Type"},
				ExposeHeaders: []string{"X-Request-ID", "X-Total-Count", "X-Cache", "X-Generated-At"},
				MaxAge:        12 * time.Hour,
			}))
		} else { // Behind a TLS-terminating proxy
			r.SetTrustedProxies([]string{"127.0.0.1"})
			r.Use(secure.New(secure.Config{
				SSLProxyHeaders: map[string]string{
					"X-Forwarded-Proto": "https",
				},
				FrameDeny:          true,
				ContentTypeNosniff: true,
			}))
		}

		r.Use(mw.AccessLog(log.Named("http"))) // Observability (logger, metrics)

		r.Use(func(c *gin.Context) {
			// Enforce a hard 10MB max request body.
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 10<<20)
			c.Next()
		})
	}

	// Register route handlers
	{
		r.GET("/api/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))

		// --- Pushed events (signature-checked, rate limited) ---
		{
			webhookshndlr := handler.NewWebhooksHandler(log, monitor, cfg.Webhook.RatePerSec, cfg.Webhook.Burst)
			r.POST("/api/webhooks/streamlive", webhookshndlr.Push("streamlive"))
			r.POST("/api/webhooks/streamlink", webhookshndlr.Push("streamlink"))
			r.GET("/api/webhooks/health", webhookshndlr.Health)
		}

		// --- Telemetry-backed views (bounded concurrency) ---
		api := r.Group("/api", mw.LimitConcurrentRequests(cfg.Server.MaxConcurrent))
		{
			topohndlr := handler.NewTopologyHandler(log, topo, failover)
			api.GET("/resources", topohndlr.Resources)
			api.GET("/topology", topohndlr.Topology)
			api.POST("/cache/clear", topohndlr.ClearCache)

			inputhndlr := handler.NewInputStatusHandler(log, res, topo)
			api.GET("/channels/:id/input-status", mw.RequireValidResourceID(), inputhndlr.InputStatus)

			alertshndlr := handler.NewAlertsHandler(monitor)
			api.POST("/alerts/check", alertshndlr.Check)
		}
	}

	// Background alert poller
	go monitor.Run(ctx, cfg.Alerts.PollInterval)

	httpsrv := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           r,
		ReadHeaderTimeout: 2 * time.Second,  // kills header-drip Slowloris
		ReadTimeout:       10 * time.Second, // full request read (incl. body)
		WriteTimeout:      2 * time.Minute,  // failover map may resolve many channels
		IdleTimeout:       60 * time.Second, // keep-alive cap
		MaxHeaderBytes:    1 << 20,          // 1MB cap
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpsrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", zap.Error(err))
		}
	}()

	log.Info("running HTTP server",
		zap.String("addr", httpsrv.Addr),
		zap.String("telemetry_backend", cfg.Telemetry.Backend),
		zap.String("version", config.Version))
	if err := httpsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server closed")
}

// buildProvider returns the configured telemetry backend, wrapped in the
// circuit breaker when enabled, and a func releasing its resources.
func buildProvider(ctx context.Context, log *zap.Logger, cfg *config.Config) (provider.Provider, func(), error) {
	var (
		src     provider.Provider
		closeFn = func() {}
	)

	switch cfg.Telemetry.Backend {
	case config.BackendMemory:
		mem := provider.NewMemory(log)
		if p := cfg.Telemetry.SnapshotPath; p != "" {
			snap, err := provider.ReadSnapshotFile(p)
			if err != nil {
				return nil, nil, err
			}
			st, err := provider.Load(ctx, mem, snap)
			if err != nil {
				return nil, nil, fmt.Errorf("load snapshot: %w", err)
			}
			log.Info("snapshot loaded", zap.String("path", p), zap.Int("resources", st.Resources), zap.Int("events", st.Events))
		}
		src = mem
	default:
		client := redis.NewClient(log, redis.ClientOptions{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		closeFn = func() { _ = client.Close() }
		src = redis.NewStore(log, client, cfg.Redis.KeyPrefix)
	}

	if b := cfg.Telemetry.Breaker; b.Enabled {
		src = provider.NewBreaker(log, src, provider.BreakerOptions{
			MaxRequests:      b.MaxRequests,
			Interval:         b.Interval,
			Timeout:          b.Timeout,
			FailureThreshold: b.FailureThreshold,
		})
	}
	return src, closeFn, nil
}

// handleVersion prints build metadata and exits when -v/--version is provided.
func handleVersion() {
	v := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(v, "version", false, "print version and exit")
	flag.Parse()

	if *v {
		fmt.Printf("ingestwatch %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildDate)
		os.Exit(0)
	}
}

// helpers

func buildLogger(isDev bool) *zap.Logger {
	if !isDev {
		return zap.Must(zap.NewProductionConfig().Build())
	}
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
