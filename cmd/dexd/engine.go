package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"loyaltyDex/internal/config"
	"loyaltyDex/internal/dex"
	"loyaltyDex/internal/storage"
	"loyaltyDex/internal/storage/pebble"
	"loyaltyDex/internal/storage/postgres"
)

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	case config.StorePebble:
		store, err := pebble.New(cfg.DataDir, pebble.NewDefaultConfig())
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// newService wires the store and the event sinks into a pool service.
func newService(cfg config.Config, store storage.Store, logger *zap.Logger, extra ...dex.EventSink) *dex.Service {
	sinks := dex.MultiSink{dex.NewLogSink(logger.Named("events"))}
	if cfg.EventsOut != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.EventsOut))
	}
	sinks = append(sinks, extra...)
	return dex.NewService(store, sinks, logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
