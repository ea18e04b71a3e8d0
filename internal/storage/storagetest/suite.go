// Package storagetest holds behaviour checks shared by every storage.Store backend.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"loyaltyDex/internal/model"
	"loyaltyDex/internal/storage"
)

var errAbort = errors.New("abort")

// Run exercises a fresh store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("commit", func(t *testing.T) { testCommit(t, newStore(t)) })
	t.Run("rollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("read_own_writes", func(t *testing.T) { testReadOwnWrites(t, newStore(t)) })
	t.Run("view_read_only", func(t *testing.T) { testViewReadOnly(t, newStore(t)) })
	t.Run("list_pools", func(t *testing.T) { testListPools(t, newStore(t)) })
}

func fundedPool() model.Pool {
	pool := model.NewPool(model.NormalizeKey(common.HexToAddress("0x0a"), common.HexToAddress("0x0b")))
	pool.ReserveA = math.NewInt(1000)
	pool.ReserveB = math.NewInt(4000)
	pool.LPSupply = math.NewInt(2000)
	return pool
}

var provider = common.HexToAddress("0xcafe")

func testCommit(t *testing.T, store storage.Store) {
	ctx := context.Background()
	pool := fundedPool()

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.SetPool(ctx, pool); err != nil {
			return err
		}
		position := model.NewPosition(pool.Key(), provider)
		position.Shares = math.NewInt(2000)
		return tx.SetPosition(ctx, position)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(tx storage.Tx) error {
		got, ok, err := tx.GetPool(ctx, pool.Key())
		if err != nil {
			return err
		}
		if !ok || !got.ReserveB.Equal(pool.ReserveB) || !got.LPSupply.Equal(pool.LPSupply) {
			t.Fatalf("pool mismatch: %+v", got)
		}
		has, err := tx.HasPool(ctx, pool.Key())
		if err != nil || !has {
			t.Fatalf("has pool = %v, %v", has, err)
		}
		position, ok, err := tx.GetPosition(ctx, pool.Key(), provider)
		if err != nil {
			return err
		}
		if !ok || !position.Shares.Equal(math.NewInt(2000)) {
			t.Fatalf("position mismatch: %+v", position)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testRollback(t *testing.T, store storage.Store) {
	ctx := context.Background()
	pool := fundedPool()

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.SetPool(ctx, pool); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort error, got %v", err)
	}

	err = store.View(ctx, func(tx storage.Tx) error {
		has, err := tx.HasPool(ctx, pool.Key())
		if err != nil {
			return err
		}
		if has {
			t.Fatalf("aborted write was committed")
		}
		position, ok, err := tx.GetPosition(ctx, pool.Key(), provider)
		if err != nil {
			return err
		}
		if ok || !position.Shares.IsZero() {
			t.Fatalf("missing position should default to zero, got %+v", position)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func testReadOwnWrites(t *testing.T, store storage.Store) {
	ctx := context.Background()
	pool := fundedPool()

	err := store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.SetPool(ctx, pool); err != nil {
			return err
		}
		got, ok, err := tx.GetPool(ctx, pool.Key())
		if err != nil {
			return err
		}
		if !ok || !got.ReserveA.Equal(pool.ReserveA) {
			t.Fatalf("staged pool not visible: %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func testViewReadOnly(t *testing.T, store storage.Store) {
	ctx := context.Background()
	err := store.View(ctx, func(tx storage.Tx) error {
		return tx.SetPool(ctx, fundedPool())
	})
	if !errors.Is(err, storage.ErrReadOnly) {
		t.Fatalf("expected read-only error, got %v", err)
	}
}

func testListPools(t *testing.T, store storage.Store) {
	ctx := context.Background()
	keys := []model.PoolKey{
		model.NormalizeKey(common.HexToAddress("0x03"), common.HexToAddress("0x04")),
		model.NormalizeKey(common.HexToAddress("0x02"), common.HexToAddress("0x01")),
	}

	err := store.Update(ctx, func(tx storage.Tx) error {
		for _, key := range keys {
			if err := tx.SetPool(ctx, model.NewPool(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	pools, err := store.ListPools(ctx)
	if err != nil {
		t.Fatalf("list pools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pools[0].Key() != keys[1] || pools[1].Key() != keys[0] {
		t.Fatalf("pools not ordered by key: %+v", pools)
	}
}
