package dex

import (
	"context"
	"time"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"loyaltyDex/internal/amm"
	"loyaltyDex/internal/model"
	"loyaltyDex/internal/storage"
)

// Service coordinates pool creation, liquidity accounting and swaps.
//
// Every mutating call runs as one storage unit of work: all preconditions and
// pricing are checked before the first write, so a failed call leaves state
// untouched. Events are published only after the unit of work commits. Asset
// custody and caller authentication happen outside the service; the identities
// passed in are trusted.
type Service struct {
	store  storage.Store
	events EventSink
	logger *zap.Logger
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store storage.Store, events EventSink, logger *zap.Logger, opts ...Option) *Service {
	if events == nil {
		events = nopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePool registers an empty pool for the unordered pair (tokenA, tokenB).
func (s *Service) CreatePool(ctx context.Context, tokenA, tokenB common.Address) error {
	if tokenA == tokenB {
		return ErrInvalidTokenPair.Wrapf("token %s paired with itself", tokenA.Hex())
	}

	key := model.NormalizeKey(tokenA, tokenB)
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		exists, err := tx.HasPool(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return ErrPoolAlreadyExists.Wrap(key.String())
		}
		return tx.SetPool(ctx, model.NewPool(key))
	})
	if err != nil {
		return err
	}

	s.logger.Debug("pool created", zap.String("pool", key.String()))
	s.publish(ctx, model.EventPoolCreated, model.PoolCreatedData{
		TokenA: key.TokenA.Hex(),
		TokenB: key.TokenB.Hex(),
	})
	return nil
}

// AddLiquidity credits amountA to the pool's canonical token_a reserve and
// amountB to token_b, whatever order tokenA and tokenB are passed in, and mints
// LP units to provider. The tokens must already be in custody.
func (s *Service) AddLiquidity(ctx context.Context, provider, tokenA, tokenB common.Address, amountA, amountB math.Int) (math.Int, error) {
	if err := checkAmount("amount_a", amountA); err != nil {
		return math.ZeroInt(), err
	}
	if err := checkAmount("amount_b", amountB); err != nil {
		return math.ZeroInt(), err
	}

	key := model.NormalizeKey(tokenA, tokenB)
	var minted math.Int
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		pool, ok, err := tx.GetPool(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPoolNotFound.Wrap(key.String())
		}
		// Guard against corrupted stored state.
		if !pool.Consistent() {
			return ErrInsufficientLiquidity.Wrapf("pool %s reserves and supply are out of step", key)
		}

		minted = amm.LPMintAmount(amountA, amountB, pool.ReserveA, pool.ReserveB, pool.LPSupply)
		if !minted.IsPositive() {
			return ErrInvalidAmount.Wrap("deposit too small to mint liquidity")
		}

		pool.ReserveA = pool.ReserveA.Add(amountA)
		pool.ReserveB = pool.ReserveB.Add(amountB)
		pool.LPSupply = pool.LPSupply.Add(minted)
		if !amm.InRange(pool.ReserveA) || !amm.InRange(pool.ReserveB) || !amm.InRange(pool.LPSupply) {
			return ErrInvalidAmount.Wrap("deposit exceeds maximum pool size")
		}

		position, _, err := tx.GetPosition(ctx, key, provider)
		if err != nil {
			return err
		}
		position.Shares = position.Shares.Add(minted)

		if err := tx.SetPool(ctx, pool); err != nil {
			return err
		}
		return tx.SetPosition(ctx, position)
	})
	if err != nil {
		return math.ZeroInt(), err
	}

	s.logger.Debug("liquidity added",
		zap.String("pool", key.String()),
		zap.String("provider", provider.Hex()),
		zap.Stringer("lp_minted", minted),
	)
	s.publish(ctx, model.EventLiquidityAdded, model.LiquidityAddedData{
		Provider: provider.Hex(),
		TokenA:   key.TokenA.Hex(),
		TokenB:   key.TokenB.Hex(),
		LPMinted: minted.String(),
	})
	return minted, nil
}

// Swap trades amountIn of fromToken for toToken. It fails with
// ErrSlippageExceeded, leaving the pool untouched, when the output would be
// below minAmountOut.
func (s *Service) Swap(ctx context.Context, trader, fromToken, toToken common.Address, amountIn, minAmountOut math.Int) (math.Int, error) {
	if err := checkAmount("amount_in", amountIn); err != nil {
		return math.ZeroInt(), err
	}
	if err := checkAmount("min_amount_out", minAmountOut); err != nil {
		return math.ZeroInt(), err
	}

	key := model.NormalizeKey(fromToken, toToken)
	var amountOut math.Int
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		pool, ok, err := tx.GetPool(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPoolNotFound.Wrap(key.String())
		}

		quote, err := quoteSwap(pool, fromToken, toToken, amountIn)
		if err != nil {
			return err
		}
		amountOut = quote.amountOut
		if amountOut.LT(minAmountOut) {
			return ErrSlippageExceeded.Wrapf("amount out %s below minimum %s", amountOut, minAmountOut)
		}

		if quote.aToB {
			pool.ReserveA = pool.ReserveA.Add(amountIn)
			pool.ReserveB = pool.ReserveB.Sub(amountOut)
		} else {
			pool.ReserveB = pool.ReserveB.Add(amountIn)
			pool.ReserveA = pool.ReserveA.Sub(amountOut)
		}
		if !pool.ReserveA.IsPositive() || !pool.ReserveB.IsPositive() {
			return ErrInsufficientLiquidity.Wrap("swap would drain the pool")
		}
		if !amm.InRange(pool.ReserveA) || !amm.InRange(pool.ReserveB) {
			return ErrInvalidAmount.Wrap("swap exceeds maximum pool size")
		}
		return tx.SetPool(ctx, pool)
	})
	if err != nil {
		return math.ZeroInt(), err
	}

	s.logger.Debug("swap executed",
		zap.String("pool", key.String()),
		zap.String("trader", trader.Hex()),
		zap.Stringer("amount_in", amountIn),
		zap.Stringer("amount_out", amountOut),
	)
	s.publish(ctx, model.EventSwap, model.SwapEventData{
		Trader:    trader.Hex(),
		FromToken: fromToken.Hex(),
		ToToken:   toToken.Hex(),
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
	})
	return amountOut, nil
}

// QuoteSwap prices a swap against current reserves without executing it.
func (s *Service) QuoteSwap(ctx context.Context, fromToken, toToken common.Address, amountIn math.Int) (math.Int, error) {
	if err := checkAmount("amount_in", amountIn); err != nil {
		return math.ZeroInt(), err
	}

	key := model.NormalizeKey(fromToken, toToken)
	var amountOut math.Int
	err := s.store.View(ctx, func(tx storage.Tx) error {
		pool, ok, err := tx.GetPool(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPoolNotFound.Wrap(key.String())
		}
		quote, err := quoteSwap(pool, fromToken, toToken, amountIn)
		if err != nil {
			return err
		}
		amountOut = quote.amountOut
		return nil
	})
	if err != nil {
		return math.ZeroInt(), err
	}
	return amountOut, nil
}

// RemoveLiquidity burns lpAmount of provider's shares and returns the
// proportional reserves in canonical (token_a, token_b) order. Burning more
// than the provider owns fails with ErrUnauthorized.
func (s *Service) RemoveLiquidity(ctx context.Context, provider, tokenA, tokenB common.Address, lpAmount math.Int) (math.Int, math.Int, error) {
	if err := checkAmount("lp_amount", lpAmount); err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}

	key := model.NormalizeKey(tokenA, tokenB)
	var amountA, amountB math.Int
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		pool, ok, err := tx.GetPool(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPoolNotFound.Wrap(key.String())
		}
		if !pool.LPSupply.IsPositive() || !pool.Consistent() {
			return ErrInsufficientLiquidity.Wrapf("pool %s has no liquidity to withdraw", key)
		}

		position, _, err := tx.GetPosition(ctx, key, provider)
		if err != nil {
			return err
		}
		if position.Shares.LT(lpAmount) {
			return ErrUnauthorized.Wrapf("owned shares %s below requested %s", position.Shares, lpAmount)
		}

		amountA, amountB = amm.WithdrawAmounts(lpAmount, pool.ReserveA, pool.ReserveB, pool.LPSupply)
		pool.ReserveA = pool.ReserveA.Sub(amountA)
		pool.ReserveB = pool.ReserveB.Sub(amountB)
		pool.LPSupply = pool.LPSupply.Sub(lpAmount)
		position.Shares = position.Shares.Sub(lpAmount)

		if err := tx.SetPool(ctx, pool); err != nil {
			return err
		}
		return tx.SetPosition(ctx, position)
	})
	if err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}

	s.logger.Debug("liquidity removed",
		zap.String("pool", key.String()),
		zap.String("provider", provider.Hex()),
		zap.Stringer("lp_burned", lpAmount),
		zap.Stringer("amount_a", amountA),
		zap.Stringer("amount_b", amountB),
	)
	s.publish(ctx, model.EventLiquidityRemoved, model.LiquidityRemovedData{
		Provider: provider.Hex(),
		TokenA:   key.TokenA.Hex(),
		TokenB:   key.TokenB.Hex(),
		LPBurned: lpAmount.String(),
	})
	return amountA, amountB, nil
}

// GetExchangeRate returns the price of the canonical token_a in units of
// token_b as the unreduced fraction reserve_b / reserve_a. Argument order does
// not matter.
func (s *Service) GetExchangeRate(ctx context.Context, tokenA, tokenB common.Address) (math.Int, math.Int, error) {
	key := model.NormalizeKey(tokenA, tokenB)
	var numerator, denominator math.Int
	err := s.store.View(ctx, func(tx storage.Tx) error {
		pool, ok, err := tx.GetPool(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPoolNotFound.Wrap(key.String())
		}
		if !pool.ReserveA.IsPositive() || !pool.ReserveB.IsPositive() {
			return ErrInsufficientLiquidity.Wrapf("pool %s has empty reserves", key)
		}
		numerator, denominator = pool.ReserveB, pool.ReserveA
		return nil
	})
	if err != nil {
		return math.ZeroInt(), math.ZeroInt(), err
	}
	return numerator, denominator, nil
}

// GetPool returns the pool for the unordered pair.
func (s *Service) GetPool(ctx context.Context, tokenA, tokenB common.Address) (model.Pool, error) {
	key := model.NormalizeKey(tokenA, tokenB)
	var pool model.Pool
	err := s.store.View(ctx, func(tx storage.Tx) error {
		found, ok, err := tx.GetPool(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrPoolNotFound.Wrap(key.String())
		}
		pool = found
		return nil
	})
	return pool, err
}

// GetPosition returns provider's LP balance in the pool, zero if it never deposited.
func (s *Service) GetPosition(ctx context.Context, provider, tokenA, tokenB common.Address) (model.LiquidityPosition, error) {
	key := model.NormalizeKey(tokenA, tokenB)
	var position model.LiquidityPosition
	err := s.store.View(ctx, func(tx storage.Tx) error {
		exists, err := tx.HasPool(ctx, key)
		if err != nil {
			return err
		}
		if !exists {
			return ErrPoolNotFound.Wrap(key.String())
		}
		position, _, err = tx.GetPosition(ctx, key, provider)
		return err
	})
	return position, err
}

func (s *Service) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.store.ListPools(ctx)
}

func (s *Service) publish(ctx context.Context, name string, data interface{}) {
	event := model.Event{
		Name:      name,
		Timestamp: uint64(s.now().Unix()),
		Data:      data,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", zap.String("event", name), zap.Error(err))
	}
}

type swapQuote struct {
	amountOut math.Int
	aToB      bool
}

func quoteSwap(pool model.Pool, fromToken, toToken common.Address, amountIn math.Int) (swapQuote, error) {
	var reserveIn, reserveOut math.Int
	var aToB bool
	switch {
	case fromToken == pool.TokenA && toToken == pool.TokenB:
		reserveIn, reserveOut, aToB = pool.ReserveA, pool.ReserveB, true
	case fromToken == pool.TokenB && toToken == pool.TokenA:
		reserveIn, reserveOut = pool.ReserveB, pool.ReserveA
	default:
		return swapQuote{}, ErrInvalidTokenPair.Wrapf("%s -> %s does not match pool %s", fromToken.Hex(), toToken.Hex(), pool.Key())
	}

	if !reserveIn.IsPositive() || !reserveOut.IsPositive() || !pool.Consistent() {
		return swapQuote{}, ErrInsufficientLiquidity.Wrapf("pool %s has empty reserves", pool.Key())
	}

	amountOut := amm.GetAmountOut(amountIn, reserveIn, reserveOut)
	if !amountOut.IsPositive() {
		return swapQuote{}, ErrInvalidAmount.Wrap("swap output rounds to zero")
	}
	return swapQuote{amountOut: amountOut, aToB: aToB}, nil
}

func checkAmount(name string, amount math.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount.Wrapf("%s must be positive", name)
	}
	if !amm.InRange(amount) {
		return ErrInvalidAmount.Wrapf("%s exceeds maximum amount", name)
	}
	return nil
}
