package model

import (
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// LiquidityPosition is the LP balance a provider holds in one pool.
type LiquidityPosition struct {
	Pool     PoolKey        `json:"pool"`
	Provider common.Address `json:"provider"`
	Shares   math.Int       `json:"shares"`
}

// NewPosition returns a zero position.
func NewPosition(key PoolKey, provider common.Address) LiquidityPosition {
	return LiquidityPosition{Pool: key, Provider: provider, Shares: math.ZeroInt()}
}
