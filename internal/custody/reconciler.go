package custody

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"loyaltyDex/internal/model"
)

// Drift status values.
const (
	StatusOK    = "ok"
	StatusOver  = "over"
	StatusUnder = "under"
)

// ChainReader reads chain identity and ERC20 state for a custody account.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BalanceOf(ctx context.Context, token, owner common.Address, blockNumber *big.Int) (*big.Int, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// PoolLister returns every registered pool.
type PoolLister interface {
	ListPools(ctx context.Context) ([]model.Pool, error)
}

// Config controls reconciliation. A zero BlockNumber means the chain head at
// the start of the run.
type Config struct {
	Custody      common.Address
	Tokens       []common.Address
	BlockNumber  uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// TokenReport compares recorded reserves with the custody balance of one token.
type TokenReport struct {
	Token     string `json:"token"`
	Pools     int    `json:"pools"`
	Decimals  uint8  `json:"decimals"`
	Recorded  string `json:"recorded"`
	OnChain   string `json:"on_chain"`
	Drift     string `json:"drift"`
	DriftText string `json:"drift_units"`
	Status    string `json:"status"`
}

// Report is the outcome of one reconciliation. Every balance was read at Block.
type Report struct {
	ChainID string        `json:"chain_id"`
	Block   uint64        `json:"block"`
	Tokens  []TokenReport `json:"tokens"`
}

// Reconciler checks that the custody account holds at least what the pools record.
type Reconciler struct {
	cfg    Config
	pools  PoolLister
	reader ChainReader
	logger *zap.Logger
}

func NewReconciler(cfg Config, pools PoolLister, reader ChainReader, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{cfg: cfg, pools: pools, reader: reader, logger: logger}
}

// Run reports every pool token, ordered by token address.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	if r.reader == nil {
		return Report{}, fmt.Errorf("chain reader is nil")
	}
	if r.cfg.Custody == (common.Address{}) {
		return Report{}, fmt.Errorf("custody address is required")
	}

	var chainID *big.Int
	err := withRetry(ctx, r.logger, "chainID", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		chainID, err = r.reader.ChainID(ctx)
		return err
	})
	if err != nil {
		return Report{}, fmt.Errorf("chain id: %w", err)
	}
	if chainID == nil {
		return Report{}, fmt.Errorf("chain id: empty response")
	}

	blockNumber := r.cfg.BlockNumber
	if blockNumber == 0 {
		err := withRetry(ctx, r.logger, "blockNumber", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			blockNumber, err = r.reader.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return Report{}, fmt.Errorf("latest block: %w", err)
		}
	}
	r.logger.Info("reconcile target",
		zap.String("chain_id", chainID.String()),
		zap.Uint64("block", blockNumber),
	)

	pools, err := r.pools.ListPools(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list pools: %w", err)
	}

	recorded := make(map[common.Address]*big.Int)
	counts := make(map[common.Address]int)
	for _, pool := range pools {
		addReserve(recorded, pool.TokenA, pool.ReserveA.BigInt())
		addReserve(recorded, pool.TokenB, pool.ReserveB.BigInt())
		counts[pool.TokenA]++
		counts[pool.TokenB]++
	}

	tokens := make([]common.Address, 0, len(recorded))
	for token := range recorded {
		if r.selected(token) {
			tokens = append(tokens, token)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		return bytes.Compare(tokens[i].Bytes(), tokens[j].Bytes()) < 0
	})

	block := new(big.Int).SetUint64(blockNumber)

	reports := make([]TokenReport, 0, len(tokens))
	for _, token := range tokens {
		var balance *big.Int
		err := withRetry(ctx, r.logger, "balanceOf", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			balance, err = r.reader.BalanceOf(ctx, token, r.cfg.Custody, block)
			return err
		})
		if err != nil {
			return Report{}, fmt.Errorf("balance of %s: %w", token.Hex(), err)
		}

		var decimals uint8
		err = withRetry(ctx, r.logger, "decimals", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			decimals, err = r.reader.Decimals(ctx, token)
			return err
		})
		if err != nil {
			r.logger.Warn("token decimals", zap.String("token", token.Hex()), zap.Error(err))
			decimals = 0
		}

		report := buildReport(token, counts[token], decimals, recorded[token], balance)
		if report.Status == StatusUnder {
			r.logger.Warn("custody below recorded reserves",
				zap.String("token", report.Token),
				zap.String("recorded", report.Recorded),
				zap.String("on_chain", report.OnChain),
			)
		}
		reports = append(reports, report)
	}

	r.logger.Info("reconcile complete", zap.Int("pools", len(pools)), zap.Int("tokens", len(reports)))
	return Report{ChainID: chainID.String(), Block: blockNumber, Tokens: reports}, nil
}

func (r *Reconciler) selected(token common.Address) bool {
	if len(r.cfg.Tokens) == 0 {
		return true
	}
	for _, want := range r.cfg.Tokens {
		if want == token {
			return true
		}
	}
	return false
}

func buildReport(token common.Address, pools int, decimals uint8, recorded, onChain *big.Int) TokenReport {
	drift := new(big.Int).Sub(onChain, recorded)
	status := StatusOK
	switch drift.Sign() {
	case 1:
		status = StatusOver
	case -1:
		status = StatusUnder
	}
	return TokenReport{
		Token:     token.Hex(),
		Pools:     pools,
		Decimals:  decimals,
		Recorded:  recorded.String(),
		OnChain:   onChain.String(),
		Drift:     drift.String(),
		DriftText: formatTokenAmount(drift, decimals),
		Status:    status,
	}
}

func addReserve(totals map[common.Address]*big.Int, token common.Address, amount *big.Int) {
	total, ok := totals[token]
	if !ok {
		total = new(big.Int)
		totals[token] = total
	}
	if amount != nil {
		total.Add(total, amount)
	}
}
