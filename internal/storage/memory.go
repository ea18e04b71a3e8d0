package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"loyaltyDex/internal/model"
)

type positionKey struct {
	pool     model.PoolKey
	provider common.Address
}

// MemoryStore keeps pools and positions in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	pools     map[model.PoolKey]model.Pool
	positions map[positionKey]model.LiquidityPosition
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:     make(map[model.PoolKey]model.Pool),
		positions: make(map[positionKey]model.LiquidityPosition),
	}
}

// Update stages writes and applies them only if fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newMemoryTx(s, false)
	if err := fn(tx); err != nil {
		return err
	}
	for key, pool := range tx.pools {
		s.pools[key] = pool
	}
	for key, position := range tx.positions {
		s.positions[key] = position
	}
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(newMemoryTx(s, true))
}

// ListPools returns every pool ordered by key.
func (s *MemoryStore) ListPools(ctx context.Context) ([]model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pools := make([]model.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		pools = append(pools, pool)
	}
	SortPools(pools)
	return pools, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// SortPools orders pools by TokenA then TokenB bytes.
func SortPools(pools []model.Pool) {
	sort.Slice(pools, func(i, j int) bool {
		if c := bytes.Compare(pools[i].TokenA.Bytes(), pools[j].TokenA.Bytes()); c != 0 {
			return c < 0
		}
		return bytes.Compare(pools[i].TokenB.Bytes(), pools[j].TokenB.Bytes()) < 0
	})
}

type memoryTx struct {
	store     *MemoryStore
	readOnly  bool
	pools     map[model.PoolKey]model.Pool
	positions map[positionKey]model.LiquidityPosition
}

func newMemoryTx(store *MemoryStore, readOnly bool) *memoryTx {
	return &memoryTx{
		store:     store,
		readOnly:  readOnly,
		pools:     make(map[model.PoolKey]model.Pool),
		positions: make(map[positionKey]model.LiquidityPosition),
	}
}

func (tx *memoryTx) GetPool(_ context.Context, key model.PoolKey) (model.Pool, bool, error) {
	if pool, ok := tx.pools[key]; ok {
		return pool, true, nil
	}
	pool, ok := tx.store.pools[key]
	return pool, ok, nil
}

func (tx *memoryTx) SetPool(_ context.Context, pool model.Pool) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.pools[pool.Key()] = pool
	return nil
}

func (tx *memoryTx) HasPool(ctx context.Context, key model.PoolKey) (bool, error) {
	_, ok, err := tx.GetPool(ctx, key)
	return ok, err
}

func (tx *memoryTx) GetPosition(_ context.Context, key model.PoolKey, provider common.Address) (model.LiquidityPosition, bool, error) {
	pk := positionKey{pool: key, provider: provider}
	if position, ok := tx.positions[pk]; ok {
		return position, true, nil
	}
	if position, ok := tx.store.positions[pk]; ok {
		return position, true, nil
	}
	return model.NewPosition(key, provider), false, nil
}

func (tx *memoryTx) SetPosition(_ context.Context, position model.LiquidityPosition) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.positions[positionKey{pool: position.Pool, provider: position.Provider}] = position
	return nil
}
