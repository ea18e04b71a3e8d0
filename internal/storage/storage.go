package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"loyaltyDex/internal/model"
)

// ErrReadOnly is returned by writes attempted inside View.
var ErrReadOnly = errors.New("storage: write in read-only unit of work")

// PoolRegistry stores pool records by normalized key.
type PoolRegistry interface {
	GetPool(ctx context.Context, key model.PoolKey) (model.Pool, bool, error)
	SetPool(ctx context.Context, pool model.Pool) error
	HasPool(ctx context.Context, key model.PoolKey) (bool, error)
}

// LiquidityLedger stores LP balances by (pool, provider).
type LiquidityLedger interface {
	GetPosition(ctx context.Context, key model.PoolKey, provider common.Address) (model.LiquidityPosition, bool, error)
	SetPosition(ctx context.Context, position model.LiquidityPosition) error
}

// Tx is the view of both stores inside one unit of work.
type Tx interface {
	PoolRegistry
	LiquidityLedger
}

// Store runs units of work against durable pool and position state.
//
// Update serializes units of work and commits every write made through the Tx
// only when fn returns nil. View runs fn without permitting writes.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	ListPools(ctx context.Context) ([]model.Pool, error)
	Close() error
}
