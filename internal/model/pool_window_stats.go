package model

import "time"

// PoolWindowStats stores aggregated activity for a pool window.
type PoolWindowStats struct {
	TokenA            string    `json:"token_a"`
	TokenB            string    `json:"token_b"`
	WindowSizeSecs    int64     `json:"window_size_seconds"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	SwapCount         uint64    `json:"swap_count"`
	VolumeA           string    `json:"volume_a"`
	VolumeB           string    `json:"volume_b"`
	FeeA              string    `json:"fee_a"`
	FeeB              string    `json:"fee_b"`
	LiquidityAdds     uint64    `json:"liquidity_adds"`
	LiquidityRemovals uint64    `json:"liquidity_removals"`
}
