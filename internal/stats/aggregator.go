package stats

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"loyaltyDex/internal/model"
)

// Sink receives finished window rows.
type Sink interface {
	UpsertWindowStats(ctx context.Context, stats []model.PoolWindowStats) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Aggregator folds the event log into per-pool window statistics.
type Aggregator struct {
	cfg          Config
	sink         Sink
	logger       *zap.Logger
	accumulators map[model.PoolKey]*Accumulator
}

func NewAggregator(cfg Config, sink Sink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[model.PoolKey]*Accumulator),
	}
}

// Run aggregates every event in the JSONL file newer than the saved state.
//
// The saved state always points just before the earliest window still open, so
// a rerun recomputes partially seen windows in full and the sink upsert
// replaces them.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowStats, 0, a.cfg.BatchSize)
	var total, applied, skipped, failed, windows int

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode event", zap.Error(err))
			continue
		}
		if record.Timestamp <= startTs {
			skipped++
			continue
		}

		key, ok, err := recordPoolKey(record)
		if err != nil {
			failed++
			a.logger.Warn("event pool", zap.Error(err), zap.String("event", record.Name))
			continue
		}
		if !ok {
			skipped++
			continue
		}

		start := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		acc := a.accumulators[key]
		if acc == nil {
			acc = NewAccumulator(key, start, start+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		} else if acc.WindowStart != start {
			batch = append(batch, acc.Stats(a.cfg.WindowSeconds))
			windows++
			acc = NewAccumulator(key, start, start+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", key.String()), zap.String("event", record.Name))
			continue
		}
		applied++

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowStats(ctx, batch); err != nil {
				return fmt.Errorf("write window stats: %w", err)
			}
			batch = batch[:0]
			if err := a.saveState(ctx, startTs); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		batch = append(batch, acc.Stats(a.cfg.WindowSeconds))
		windows++
	}
	if len(batch) > 0 {
		if err := a.sink.UpsertWindowStats(ctx, batch); err != nil {
			return fmt.Errorf("write window stats: %w", err)
		}
	}
	if err := a.saveState(ctx, startTs); err != nil {
		return err
	}
	a.accumulators = make(map[model.PoolKey]*Accumulator)

	a.logger.Info("stats complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("windows", windows),
	)
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

func (a *Aggregator) saveState(ctx context.Context, fallback uint64) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	safeTs := fallback
	if open := minOpenWindowStart(a.accumulators); open > 0 {
		safeTs = open - 1
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func recordPoolKey(record model.EventRecord) (model.PoolKey, bool, error) {
	var tokenA, tokenB string
	switch record.Name {
	case model.EventSwap:
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Data, &swap); err != nil {
			return model.PoolKey{}, false, fmt.Errorf("decode swap: %w", err)
		}
		tokenA, tokenB = swap.FromToken, swap.ToToken
	case model.EventLiquidityAdded:
		var added model.LiquidityAddedData
		if err := json.Unmarshal(record.Data, &added); err != nil {
			return model.PoolKey{}, false, fmt.Errorf("decode liquidity added: %w", err)
		}
		tokenA, tokenB = added.TokenA, added.TokenB
	case model.EventLiquidityRemoved:
		var removed model.LiquidityRemovedData
		if err := json.Unmarshal(record.Data, &removed); err != nil {
			return model.PoolKey{}, false, fmt.Errorf("decode liquidity removed: %w", err)
		}
		tokenA, tokenB = removed.TokenA, removed.TokenB
	default:
		return model.PoolKey{}, false, nil
	}

	if !common.IsHexAddress(tokenA) || !common.IsHexAddress(tokenB) {
		return model.PoolKey{}, false, fmt.Errorf("invalid token pair %q/%q", tokenA, tokenB)
	}
	return model.NormalizeKey(common.HexToAddress(tokenA), common.HexToAddress(tokenB)), true, nil
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func minOpenWindowStart(acc map[model.PoolKey]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}

func unixTime(ts uint64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}
