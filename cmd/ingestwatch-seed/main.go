package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/ingestwatch/internal/config"
	"github.com/edirooss/ingestwatch/internal/provider"
	"github.com/edirooss/ingestwatch/internal/redis"
	"github.com/edirooss/ingestwatch/pkg/errchain"
)

func main() {
	// CLI flags; Redis settings default to the loaded config.
	file := flag.String("file", "", "JSON snapshot to load")
	addr := flag.String("redis", "", "redis address (overrides config)")
	prefix := flag.String("prefix", "", "key prefix (overrides config)")
	purge := flag.Bool("purge", false, "delete every key under the prefix before loading")
	debug := flag.Bool("debug", false, "dump the full error chain on failure")
	flag.Parse()

	if *file == "" {
		fmt.Println("Usage: ./ingestwatch-seed -file=<snapshot.json> [-redis=host:port] [-prefix=ingest:] [-purge] [-debug]")
		os.Exit(1)
	}

	log := buildLogger()
	log = log.Named("seed")

	if err := run(log, *file, *addr, *prefix, *purge); err != nil {
		fields := []zap.Field{zap.Error(err)}
		if *debug {
			fields = append(fields, errchain.Field(err))
		}
		log.Fatal("seed failed", fields...)
	}
}

func run(log *zap.Logger, file, addr, prefix string, purge bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr == "" {
		addr = cfg.Redis.Addr
	}
	if prefix == "" {
		prefix = cfg.Redis.KeyPrefix
	}

	snap, err := provider.ReadSnapshotFile(file)
	if err != nil {
		return err
	}

	client := redis.NewClient(log, redis.ClientOptions{Addr: addr, DB: cfg.Redis.DB, Password: cfg.Redis.Password})
	defer client.Close()
	store := redis.NewStore(log, client, prefix)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if purge {
		n, err := store.Purge(ctx)
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		log.Info("purged", zap.String("prefix", prefix), zap.Int64("keys", n))
	}

	start := time.Now()
	st, err := provider.Load(ctx, store, snap)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	log.Info("snapshot loaded",
		zap.String("file", file),
		zap.Int("resources", st.Resources),
		zap.Int("events", st.Events),
		zap.Int("signals", st.Signals),
		zap.Int("failover", st.Failover),
		zap.Int("conditions", st.Conditions),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}
