package model

import (
	"bytes"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// PoolKey identifies a pool by its two assets in canonical order.
type PoolKey struct {
	TokenA common.Address `json:"token_a"`
	TokenB common.Address `json:"token_b"`
}

// NormalizeKey orders a token pair so the byte-wise smaller address fills TokenA.
func NormalizeKey(a, b common.Address) PoolKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return PoolKey{TokenA: a, TokenB: b}
	}
	return PoolKey{TokenA: b, TokenB: a}
}

func (k PoolKey) String() string {
	return k.TokenA.Hex() + "/" + k.TokenB.Hex()
}

// Pool is the reserve and LP-supply record of a two-asset constant-product pool.
type Pool struct {
	TokenA   common.Address `json:"token_a"`
	TokenB   common.Address `json:"token_b"`
	ReserveA math.Int       `json:"reserve_a"`
	ReserveB math.Int       `json:"reserve_b"`
	LPSupply math.Int       `json:"lp_supply"`
}

// NewPool returns an empty pool for key.
func NewPool(key PoolKey) Pool {
	return Pool{
		TokenA:   key.TokenA,
		TokenB:   key.TokenB,
		ReserveA: math.ZeroInt(),
		ReserveB: math.ZeroInt(),
		LPSupply: math.ZeroInt(),
	}
}

func (p Pool) Key() PoolKey {
	return PoolKey{TokenA: p.TokenA, TokenB: p.TokenB}
}

// Empty reports whether the pool holds no reserves and no supply.
func (p Pool) Empty() bool {
	return p.ReserveA.IsZero() && p.ReserveB.IsZero() && p.LPSupply.IsZero()
}

// Consistent reports whether supply and reserves are zero together and never negative.
func (p Pool) Consistent() bool {
	if p.ReserveA.IsNil() || p.ReserveB.IsNil() || p.LPSupply.IsNil() {
		return false
	}
	if p.ReserveA.IsNegative() || p.ReserveB.IsNegative() || p.LPSupply.IsNegative() {
		return false
	}
	if p.LPSupply.IsZero() {
		return p.ReserveA.IsZero() && p.ReserveB.IsZero()
	}
	return p.ReserveA.IsPositive() && p.ReserveB.IsPositive()
}
