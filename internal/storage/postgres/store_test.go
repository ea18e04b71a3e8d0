package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgconn"

	"loyaltyDex/internal/model"
	"loyaltyDex/internal/storage"
	"loyaltyDex/internal/storage/storagetest"
)

// Runs only when DEX_TEST_PG_DSN points at a disposable database.
func newTestStore(t *testing.T) *Store {
	dsn := os.Getenv("DEX_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("DEX_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := store.pool.Exec(ctx, `TRUNCATE pools, lp_positions, pool_window_stats, stats_state`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return newTestStore(t)
	})
}

func TestStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.LoadState(ctx, "stats:300"); err != nil || ok {
		t.Fatalf("expected no state, got ok=%v err=%v", ok, err)
	}
	if err := store.SaveState(ctx, "stats:300", 1700000000); err != nil {
		t.Fatalf("save state: %v", err)
	}
	ts, ok, err := store.LoadState(ctx, "stats:300")
	if err != nil || !ok || ts != 1700000000 {
		t.Fatalf("load state = %d, %v, %v", ts, ok, err)
	}
}

func TestAddressTextIsLowerHex(t *testing.T) {
	got := addressText(common.HexToAddress("0xABCDEFabcdef0000000000000000000000000001"))
	if got != "0xabcdefabcdef0000000000000000000000000001" {
		t.Fatalf("unexpected address text: %s", got)
	}
}

func TestRetryableCodes(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&pgconn.PgError{Code: "40001"}, true},
		{&pgconn.PgError{Code: "40P01"}, true},
		{fmt.Errorf("get pool: %w", &pgconn.PgError{Code: "40001"}), true},
		{&pgconn.PgError{Code: "23505"}, false},
		{errors.New("connection reset"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := retryable(tc.err); got != tc.want {
			t.Fatalf("retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestConcurrentCreateSeesCommittedPool(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := model.NormalizeKey(common.HexToAddress("0x0a"), common.HexToAddress("0x0b"))
	errExists := errors.New("pool exists")

	const workers = 4
	results := make([]error, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = store.Update(ctx, func(tx storage.Tx) error {
				exists, err := tx.HasPool(ctx, key)
				if err != nil {
					return err
				}
				if exists {
					return errExists
				}
				return tx.SetPool(ctx, model.NewPool(key))
			})
		}(i)
	}
	close(start)
	wg.Wait()

	created := 0
	for _, err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, errExists):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
}
