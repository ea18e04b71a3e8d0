package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ethereum/go-ethereum/common"

	"loyaltyDex/internal/model"
	"loyaltyDex/internal/storage"
)

const (
	poolPrefix     byte = 0x01
	positionPrefix byte = 0x02
)

// Config controls how the database is opened.
type Config struct {
	Sync bool
	// FS overrides the filesystem; nil means the OS filesystem.
	FS vfs.FS
}

func NewDefaultConfig() Config {
	return Config{Sync: true}
}

// Store persists pools and positions in a pebble database.
type Store struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	mu        sync.Mutex
}

// New opens (or creates) the database at dir.
func New(dir string, cfg Config) (*Store, error) {
	opts := &pebble.Options{}
	if cfg.FS != nil {
		opts.FS = cfg.FS
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble: %w", err)
	}
	writeOpts := pebble.NoSync
	if cfg.Sync {
		writeOpts = pebble.Sync
	}
	return &Store{db: db, writeOpts: writeOpts}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Update runs fn against an indexed batch and commits it only if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	batch := s.db.NewIndexedBatch()
	defer batch.Close()

	if err := fn(&tx{reader: batch, batch: batch}); err != nil {
		return err
	}
	if err := batch.Commit(s.writeOpts); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&tx{reader: s.db})
}

// ListPools scans the pool prefix in key order.
func (s *Store) ListPools(ctx context.Context) ([]model.Pool, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{poolPrefix},
		UpperBound: []byte{poolPrefix + 1},
	})
	if err != nil {
		return nil, fmt.Errorf("open iterator: %w", err)
	}
	defer iter.Close()

	pools := make([]model.Pool, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var pool model.Pool
		if err := json.Unmarshal(iter.Value(), &pool); err != nil {
			return nil, fmt.Errorf("decode pool: %w", err)
		}
		pools = append(pools, pool)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return pools, nil
}

type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
}

type tx struct {
	reader reader
	batch  *pebble.Batch
}

func (t *tx) GetPool(_ context.Context, key model.PoolKey) (model.Pool, bool, error) {
	var pool model.Pool
	ok, err := t.get(poolKey(key), &pool)
	if err != nil {
		return model.Pool{}, false, fmt.Errorf("get pool %s: %w", key, err)
	}
	return pool, ok, nil
}

func (t *tx) SetPool(_ context.Context, pool model.Pool) error {
	if err := t.put(poolKey(pool.Key()), pool); err != nil {
		return fmt.Errorf("set pool %s: %w", pool.Key(), err)
	}
	return nil
}

func (t *tx) HasPool(ctx context.Context, key model.PoolKey) (bool, error) {
	_, ok, err := t.GetPool(ctx, key)
	return ok, err
}

func (t *tx) GetPosition(_ context.Context, key model.PoolKey, provider common.Address) (model.LiquidityPosition, bool, error) {
	var position model.LiquidityPosition
	ok, err := t.get(positionKey(key, provider), &position)
	if err != nil {
		return model.LiquidityPosition{}, false, fmt.Errorf("get position %s: %w", key, err)
	}
	if !ok {
		return model.NewPosition(key, provider), false, nil
	}
	return position, true, nil
}

func (t *tx) SetPosition(_ context.Context, position model.LiquidityPosition) error {
	if err := t.put(positionKey(position.Pool, position.Provider), position); err != nil {
		return fmt.Errorf("set position %s: %w", position.Pool, err)
	}
	return nil
}

func (t *tx) get(key []byte, out interface{}) (bool, error) {
	value, closer, err := t.reader.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	defer closer.Close()

	if err := json.Unmarshal(value, out); err != nil {
		return false, fmt.Errorf("decode value: %w", err)
	}
	return true, nil
}

func (t *tx) put(key []byte, value interface{}) error {
	if t.batch == nil {
		return storage.ErrReadOnly
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}
	return t.batch.Set(key, data, nil)
}

func poolKey(key model.PoolKey) []byte {
	out := make([]byte, 0, 1+2*common.AddressLength)
	out = append(out, poolPrefix)
	out = append(out, key.TokenA.Bytes()...)
	return append(out, key.TokenB.Bytes()...)
}

func positionKey(key model.PoolKey, provider common.Address) []byte {
	out := make([]byte, 0, 1+3*common.AddressLength)
	out = append(out, positionPrefix)
	out = append(out, key.TokenA.Bytes()...)
	out = append(out, key.TokenB.Bytes()...)
	return append(out, provider.Bytes()...)
}
