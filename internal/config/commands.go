package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// ServeConfig configures the HTTP api.
type ServeConfig struct {
	Config
	Listen    string
	JWTSecret string
}

func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}
	engine, err := engineConfig(v)
	if err != nil {
		return ServeConfig{}, err
	}
	cfg := ServeConfig{
		Config:    engine,
		Listen:    v.GetString("listen"),
		JWTSecret: v.GetString("jwt-secret"),
	}
	if cfg.JWTSecret == "" {
		return ServeConfig{}, fmt.Errorf("jwt-secret is required")
	}
	return cfg, nil
}

// ReconcileConfig configures custody reconciliation.
type ReconcileConfig struct {
	Config
	RPCURL       string
	Custody      string
	Tokens       []string
	Block        uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

func LoadReconcile(cfgFile string, flags *pflag.FlagSet) (ReconcileConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReconcileConfig{}, err
	}
	engine, err := engineConfig(v)
	if err != nil {
		return ReconcileConfig{}, err
	}
	cfg := ReconcileConfig{
		Config:       engine,
		RPCURL:       v.GetString("rpc"),
		Custody:      v.GetString("custody"),
		Tokens:       getStringSlice(v, "token"),
		Block:        v.GetUint64("block"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
	}
	if cfg.RPCURL == "" {
		return ReconcileConfig{}, fmt.Errorf("rpc url is required")
	}
	if cfg.Custody == "" {
		return ReconcileConfig{}, fmt.Errorf("custody address is required")
	}
	return cfg, nil
}

// StatsConfig configures window statistics over the event log.
type StatsConfig struct {
	Input         string
	Out           string
	Window        string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom string
	LogLevel      string
}

func LoadStats(cfgFile string, flags *pflag.FlagSet) (StatsConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return StatsConfig{}, err
	}
	cfg := StatsConfig{
		Input:         v.GetString("in"),
		Out:           v.GetString("out"),
		Window:        v.GetString("window"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		LogLevel:      v.GetString("log-level"),
	}
	if cfg.Input == "" {
		cfg.Input = v.GetString("events-out")
	}
	if cfg.Out == "" && cfg.PGDSN == "" {
		return StatsConfig{}, fmt.Errorf("either out or pg-dsn is required")
	}
	return cfg, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
