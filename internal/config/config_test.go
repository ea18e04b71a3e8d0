package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StorePebble || cfg.DataDir != "./data/pools" || cfg.EventsOut != "./data/events.jsonl" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("DEX_STORE", "memory")
	t.Setenv("DEX_EVENTS_OUT", "/tmp/events.jsonl")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	if err := flags.Parse([]string{"--log-level=debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.EventsOut != "/tmp/events.jsonl" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dex.yaml")
	content := "store: postgres\npg-dsn: postgres://localhost/dex\nmax-retries: 2\nretry-backoff: 1s\nrpc: http://localhost:8545\ncustody: \"0x00000000000000000000000000000000000000aa\"\ntoken:\n  - \"0x00000000000000000000000000000000000000bb\"\n  - \" \"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadReconcile(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != StorePostgres || cfg.PGDSN != "postgres://localhost/dex" {
		t.Fatalf("unexpected engine config: %+v", cfg.Config)
	}
	if cfg.MaxRetries != 2 || cfg.RetryBackoff != time.Second {
		t.Fatalf("unexpected retry config: %+v", cfg)
	}
	if len(cfg.Tokens) != 1 {
		t.Fatalf("unexpected tokens: %v", cfg.Tokens)
	}
}

func TestLoadRejectsBadStore(t *testing.T) {
	t.Setenv("DEX_STORE", "redis")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected unknown store error")
	}

	t.Setenv("DEX_STORE", "postgres")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestLoadServeRequiresSecret(t *testing.T) {
	if _, err := LoadServe("", nil); err == nil {
		t.Fatalf("expected missing secret error")
	}
	t.Setenv("DEX_JWT_SECRET", "s3cret")
	cfg, err := LoadServe("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":8080" || cfg.JWTSecret != "s3cret" {
		t.Fatalf("unexpected serve config: %+v", cfg)
	}
}

func TestLoadStats(t *testing.T) {
	if _, err := LoadStats("", nil); err == nil {
		t.Fatalf("expected missing output error")
	}
	t.Setenv("DEX_OUT", "./data/stats.jsonl")
	cfg, err := LoadStats("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Input != "./data/events.jsonl" || cfg.Window != "5m" || cfg.BatchSize != 1000 {
		t.Fatalf("unexpected stats config: %+v", cfg)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]uint64{
		"":                     0,
		"1700000000":           1700000000,
		"2023-11-14T22:13:20Z": 1700000000,
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q = %d, want %d", in, got, want)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x00000000000000000000000000000000000000aa ", ""})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0] != common.HexToAddress("0xaa") {
		t.Fatalf("unexpected addresses: %v", got)
	}
	if _, err := ParseAddresses([]string{"0x123"}); err == nil {
		t.Fatalf("expected invalid address error")
	}
}
