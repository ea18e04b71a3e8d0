package dex

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace of the pool error taxonomy.
const ModuleName = "loyaltydex"

// Pool engine sentinel errors. Codes are stable across releases.
var (
	ErrPoolAlreadyExists     = errorsmod.Register(ModuleName, 1, "pool already exists")
	ErrPoolNotFound          = errorsmod.Register(ModuleName, 2, "pool not found")
	ErrInvalidAmount         = errorsmod.Register(ModuleName, 3, "invalid amount")
	ErrInsufficientLiquidity = errorsmod.Register(ModuleName, 4, "insufficient liquidity")
	ErrSlippageExceeded      = errorsmod.Register(ModuleName, 5, "slippage exceeded")
	ErrInvalidTokenPair      = errorsmod.Register(ModuleName, 6, "invalid token pair")
	// ErrUnauthorized is returned when a withdrawal exceeds the provider's owned shares.
	ErrUnauthorized = errorsmod.Register(ModuleName, 7, "unauthorized")
)

var taxonomy = []*errorsmod.Error{
	ErrPoolAlreadyExists,
	ErrPoolNotFound,
	ErrInvalidAmount,
	ErrInsufficientLiquidity,
	ErrSlippageExceeded,
	ErrInvalidTokenPair,
	ErrUnauthorized,
}

// Kind returns the taxonomy error err belongs to, or false for infrastructure errors.
func Kind(err error) (*errorsmod.Error, bool) {
	if err == nil {
		return nil, false
	}
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return kind, true
		}
	}
	return nil, false
}
