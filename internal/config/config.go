package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePebble   = "pebble"
	StorePostgres = "postgres"
)

// Config holds the pool engine settings shared by every command.
type Config struct {
	Store     string
	DataDir   string
	PGDSN     string
	EventsOut string
	LogLevel  string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return engineConfig(v)
}

func engineConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Store:     strings.ToLower(v.GetString("store")),
		DataDir:   v.GetString("data-dir"),
		PGDSN:     v.GetString("pg-dsn"),
		EventsOut: v.GetString("events-out"),
		LogLevel:  v.GetString("log-level"),
	}
	switch cfg.Store {
	case StoreMemory, StorePebble:
	case StorePostgres:
		if cfg.PGDSN == "" {
			return Config{}, fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return Config{}, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("DEX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", StorePebble)
	v.SetDefault("data-dir", "./data/pools")
	v.SetDefault("events-out", "./data/events.jsonl")
	v.SetDefault("log-level", "info")
	v.SetDefault("listen", ":8080")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", "500ms")
	v.SetDefault("window", "5m")
	v.SetDefault("batch-size", 1000)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
