package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/waveportal/waveledger/internal/ledger"
	"github.com/waveportal/waveledger/internal/publisher"
	"github.com/waveportal/waveledger/internal/server/handler"
	"github.com/waveportal/waveledger/internal/waves"
	"github.com/waveportal/waveledger/internal/webhooks"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("waved exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("waved")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("ledger.backend", "pebble")
	viper.SetDefault("ledger.pebble_dir", "data/waves")
	viper.SetDefault("database.url", "")
	viper.SetDefault("kafka.brokers", []string{})
	viper.SetDefault("kafka.topic", "waves")

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Ledger backend ────────────────────────────────────────────────────────
	var (
		ld ledger.Ledger
		db *pgxpool.Pool
	)
	backend := viper.GetString("ledger.backend")
	switch backend {
	case "memory":
		ld = ledger.NewMemory()
		logger.Warn("memory backend selected — waves will not survive a restart")

	case "pebble":
		pl, err := ledger.OpenPebble(viper.GetString("ledger.pebble_dir"), logger)
		if err != nil {
			return fmt.Errorf("open pebble ledger: %w", err)
		}
		defer pl.Close() //nolint:errcheck
		ld = pl

	case "postgres":
		dbURL := viper.GetString("database.url")
		if dbURL == "" {
			return errors.New("ledger.backend=postgres requires database.url")
		}
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		if err := pool.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")

		pg := ledger.NewPostgresLedger(pool, logger)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return err
		}
		ld = pg
		db = pool

	default:
		return fmt.Errorf("unknown ledger backend %q", backend)
	}

	startCtx := context.Background()
	n, err := ld.Count(startCtx)
	if err != nil {
		return fmt.Errorf("read ledger count: %w", err)
	}
	logger.Info("ledger ready",
		zap.String("backend", backend),
		zap.Int("waves", n),
	)

	// ── Wave service ──────────────────────────────────────────────────────────
	svc := waves.NewService(ld, logger)
	svc.SetMetricsRecorder(handler.RecordObserverOutcome)

	// ── Webhooks (requires postgres) ─────────────────────────────────────────
	var whHandler *webhooks.Handler
	if db != nil {
		store := webhooks.NewPostgresStore(db)
		if err := store.EnsureSchema(startCtx); err != nil {
			return err
		}
		whSvc := webhooks.NewService(store, logger)
		whSvc.SetMetricsRecorder(handler.RecordWebhookDelivery)
		whHandler = webhooks.NewHandler(whSvc, logger)

		svc.Subscribe("webhooks", func(ev waves.Event) error {
			whSvc.Dispatch(context.Background(), webhooks.EventWaveAppended, map[string]string{
				"index":     strconv.Itoa(ev.Index),
				"sender":    ev.Sender,
				"message":   ev.Message,
				"timestamp": strconv.FormatInt(ev.Timestamp, 10),
			})
			return nil
		})
		logger.Info("webhook dispatch enabled")
	}

	// ── Kafka publisher (optional) ───────────────────────────────────────────
	if brokers := viper.GetStringSlice("kafka.brokers"); len(brokers) > 0 {
		pub := publisher.NewKafka(brokers, viper.GetString("kafka.topic"), logger)
		defer pub.Close() //nolint:errcheck
		svc.Subscribe("kafka", pub.HandleWave)
		logger.Info("kafka publisher enabled",
			zap.Strings("brokers", brokers),
			zap.String("topic", viper.GetString("kafka.topic")),
		)
	}

	// ── HTTP Router ───────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS
	corsOrigins := viper.GetStringSlice("server.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Request body size limit (1 MB). A deployment-level cap on wave
	// submissions; the ledger core itself accepts any message length.
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	// Per-IP rate limiting
	if rps := viper.GetInt("server.rate_limit_rps"); rps > 0 {
		router.Use(handler.RateLimiter(rps, rps*2))
	}

	router.Use(handler.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	// Health and metrics (public)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", handler.MetricsHandler())

	// API v1
	v1 := router.Group("/api/v1")
	handler.NewWaveHandler(svc, logger).Register(v1)
	handler.NewStreamHandler(svc, logger).Register(v1)
	if whHandler != nil {
		whHandler.Register(v1)
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	httpPort := viper.GetInt("server.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("waved HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	<-quit
	logger.Info("shutting down waved...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	return nil
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
