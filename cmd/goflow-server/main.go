// Command goflow-server runs the flow reconciliation engine behind its HTTP
// surface. Configuration comes from the environment (optionally a .env file):
//
//	GOFLOW_LISTEN_ADDR      listen address (default :8080)
//	GOFLOW_REDIS_ADDR       Redis address; empty selects the in-memory store
//	GOFLOW_REDIS_PREFIX     key prefix (default gfl)
//	GOFLOW_VARIANT          poll | callback (default poll)
//	GOFLOW_ACTION           vendor action name (default signIn)
//	GOFLOW_FLOW_TTL         flow record TTL (default 15m)
//	GOFLOW_LOCK_TTL         initiation lock TTL (default 30s)
//	GOFLOW_CALLBACK_URL     public callback URL (callback variant)
//	AUTHSIGNAL_URL          challenge service base URL
//	AUTHSIGNAL_SECRET       challenge service API secret
//	GOFLOW_AUTH_MODE        none | basic | bearer | api-key | jwt
//	GOFLOW_AUTH_USERNAME    basic mode username
//	GOFLOW_AUTH_PASSWORD    basic mode password
//	GOFLOW_AUTH_TOKEN       bearer mode token
//	GOFLOW_AUTH_API_KEY     api-key mode key
//	GOFLOW_AUTH_JWT_SECRET  jwt mode HS256 secret
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goFlow "github.com/MrEthical07/goFlow"
	"github.com/MrEthical07/goFlow/metrics/export/prometheus"
	"github.com/MrEthical07/goFlow/middleware"
	"github.com/MrEthical07/goFlow/server"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	logHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.StampMilli,
	})
	slog.SetDefault(slog.New(logHandler))

	if err := run(); err != nil {
		slog.Error("goflow-server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	builder := goFlow.New().
		WithConfig(configFromEnv()).
		WithAuditSink(goFlow.NewJSONWriterSink(os.Stdout))

	var rdb *redis.Client
	if addr := os.Getenv("GOFLOW_REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		builder = builder.WithRedis(rdb)
		slog.Info("using redis flow store", "addr", addr)
	} else {
		builder = builder.WithMemoryStore()
		slog.Warn("using in-memory flow store, single instance only")
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := server.New(engine, server.Config{Guard: guardFromEnv()})

	mux := http.NewServeMux()
	mux.Handle("/", srv.Handler())
	mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(engine).Handler())

	listenAddr := envOr("GOFLOW_LISTEN_ADDR", ":8080")
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", listenAddr, "variant", os.Getenv("GOFLOW_VARIANT"))
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func configFromEnv() goFlow.Config {
	cfg := goFlow.Config{
		Flow: goFlow.FlowConfig{
			TTL:         envDuration("GOFLOW_FLOW_TTL", 15*time.Minute),
			LockTTL:     envDuration("GOFLOW_LOCK_TTL", 30*time.Second),
			Action:      envOr("GOFLOW_ACTION", "signIn"),
			CallbackURL: os.Getenv("GOFLOW_CALLBACK_URL"),
			RedisPrefix: envOr("GOFLOW_REDIS_PREFIX", "gfl"),
		},
		Challenge: goFlow.ChallengeConfig{
			BaseURL:     os.Getenv("AUTHSIGNAL_URL"),
			Secret:      os.Getenv("AUTHSIGNAL_SECRET"),
			Timeout:     envDuration("GOFLOW_CHALLENGE_TIMEOUT", 5*time.Second),
			MaxRetries:  2,
			BackoffBase: 200 * time.Millisecond,
		},
		Audit: goFlow.AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: goFlow.MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
	if os.Getenv("GOFLOW_VARIANT") == "callback" {
		cfg.Variant = goFlow.VariantCallback
	}
	return cfg
}

func guardFromEnv() middleware.Config {
	return middleware.Config{
		Mode:        middleware.Mode(envOr("GOFLOW_AUTH_MODE", "none")),
		Username:    os.Getenv("GOFLOW_AUTH_USERNAME"),
		Password:    os.Getenv("GOFLOW_AUTH_PASSWORD"),
		BearerToken: os.Getenv("GOFLOW_AUTH_TOKEN"),
		APIKey:      os.Getenv("GOFLOW_AUTH_API_KEY"),
		JWTSecret:   []byte(os.Getenv("GOFLOW_AUTH_JWT_SECRET")),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration, using default", "key", key, "value", v)
		return fallback
	}
	return d
}
