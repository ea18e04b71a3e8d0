package model

import "encoding/json"

// Event names as published to sinks.
const (
	EventPoolCreated      = "pool_created"
	EventLiquidityAdded   = "liquidity_added"
	EventLiquidityRemoved = "liquidity_removed"
	EventSwap             = "swap"
)

// Event is a domain notification emitted after a committed mutation.
type Event struct {
	Name      string      `json:"name"`
	Timestamp uint64      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// EventRecord is the JSON representation used when reading events back.
type EventRecord struct {
	Name      string          `json:"name"`
	Timestamp uint64          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// PoolCreatedData is the pool_created payload.
type PoolCreatedData struct {
	TokenA string `json:"token_a"`
	TokenB string `json:"token_b"`
}

// LiquidityAddedData is the liquidity_added payload.
type LiquidityAddedData struct {
	Provider string `json:"provider"`
	TokenA   string `json:"token_a"`
	TokenB   string `json:"token_b"`
	LPMinted string `json:"lp_minted"`
}

// LiquidityRemovedData is the liquidity_removed payload.
type LiquidityRemovedData struct {
	Provider string `json:"provider"`
	TokenA   string `json:"token_a"`
	TokenB   string `json:"token_b"`
	LPBurned string `json:"lp_burned"`
}

// SwapEventData is the swap payload.
type SwapEventData struct {
	Trader    string `json:"trader"`
	FromToken string `json:"from_token"`
	ToToken   string `json:"to_token"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}
