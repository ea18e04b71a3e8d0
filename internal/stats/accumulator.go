package stats

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"loyaltyDex/internal/amm"
	"loyaltyDex/internal/model"
)

// Accumulator holds activity totals for one pool window.
type Accumulator struct {
	Key         model.PoolKey
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	VolumeA     *big.Int
	VolumeB     *big.Int
	FeeA        *big.Int
	FeeB        *big.Int
	Adds        uint64
	Removals    uint64
	LastTS      uint64
}

func NewAccumulator(key model.PoolKey, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		Key:         key,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeA:     big.NewInt(0),
		VolumeB:     big.NewInt(0),
		FeeA:        big.NewInt(0),
		FeeB:        big.NewInt(0),
	}
}

func (a *Accumulator) AddEvent(record model.EventRecord) error {
	if record.Timestamp > a.LastTS {
		a.LastTS = record.Timestamp
	}

	switch record.Name {
	case model.EventSwap:
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Data, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	case model.EventLiquidityAdded:
		a.Adds++
	case model.EventLiquidityRemoved:
		a.Removals++
	}
	return nil
}

func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	amountIn, err := parseBigInt(swap.AmountIn)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(swap.FromToken) {
		return fmt.Errorf("invalid from token: %s", swap.FromToken)
	}

	fee := feeFromAmount(amountIn)
	if common.HexToAddress(swap.FromToken) == a.Key.TokenA {
		a.VolumeA.Add(a.VolumeA, amountIn)
		a.FeeA.Add(a.FeeA, fee)
	} else {
		a.VolumeB.Add(a.VolumeB, amountIn)
		a.FeeB.Add(a.FeeB, fee)
	}
	a.SwapCount++
	return nil
}

// Stats renders the accumulator as a window statistics row.
func (a *Accumulator) Stats(windowSeconds uint64) model.PoolWindowStats {
	return model.PoolWindowStats{
		TokenA:            a.Key.TokenA.Hex(),
		TokenB:            a.Key.TokenB.Hex(),
		WindowSizeSecs:    int64(windowSeconds),
		WindowStart:       unixTime(a.WindowStart),
		WindowEnd:         unixTime(a.WindowEnd),
		SwapCount:         a.SwapCount,
		VolumeA:           a.VolumeA.String(),
		VolumeB:           a.VolumeB.String(),
		FeeA:              a.FeeA.String(),
		FeeB:              a.FeeB.String(),
		LiquidityAdds:     a.Adds,
		LiquidityRemovals: a.Removals,
	}
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", value)
	}
	return parsed, nil
}

// feeFromAmount returns the part of amountIn the pricing curve did not see.
func feeFromAmount(amountIn *big.Int) *big.Int {
	priced := new(big.Int).Mul(amountIn, big.NewInt(amm.FeeNumerator))
	priced.Quo(priced, big.NewInt(amm.FeeDenominator))
	return priced.Sub(amountIn, priced)
}
