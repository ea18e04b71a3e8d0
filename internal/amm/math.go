package amm

import (
	"math/big"

	"cosmossdk.io/math"
)

// Swap fee expressed as the share of the input that is priced: 0.3% stays in the pool.
const (
	FeeNumerator   = 997
	FeeDenominator = 1000
)

// amountBits bounds every persisted amount to the signed 128-bit range.
const amountBits = 127

var (
	// MaxAmount is the largest amount a pool, position or call argument may carry.
	MaxAmount = math.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), amountBits), big.NewInt(1)))

	one    = big.NewInt(1)
	feeNum = big.NewInt(FeeNumerator)
	feeDen = big.NewInt(FeeDenominator)
)

// InRange reports whether x fits the signed 128-bit amount range.
func InRange(x math.Int) bool {
	if x.IsNil() {
		return false
	}
	return x.BigInt().BitLen() <= amountBits
}

// ISqrt returns floor(sqrt(x)), or zero for x <= 0.
func ISqrt(x math.Int) math.Int {
	if x.IsNil() || !x.IsPositive() {
		return math.ZeroInt()
	}
	return math.NewIntFromBigInt(isqrt(x.BigInt()))
}

// isqrt runs the Babylonian iteration from (x+1)/2 until it stops decreasing.
func isqrt(x *big.Int) *big.Int {
	if x.Sign() <= 0 {
		return new(big.Int)
	}
	z := new(big.Int).Set(x)
	y := new(big.Int).Add(z, one)
	y.Rsh(y, 1)
	for y.Cmp(z) < 0 {
		z.Set(y)
		y.Quo(x, y)
		y.Add(y, z)
		y.Rsh(y, 1)
	}
	return z
}

// LPMintAmount returns the LP units minted for a deposit of (depositA, depositB).
//
// A pool with no supply is seeded with the geometric mean of the deposit. Otherwise
// the smaller of the two proportional contributions is minted, so a deposit that
// diverges from the reserve ratio cannot dilute existing providers.
// Callers pass amounts within MaxAmount.
func LPMintAmount(depositA, depositB, reserveA, reserveB, totalSupply math.Int) math.Int {
	if totalSupply.IsZero() {
		product := new(big.Int).Mul(depositA.BigInt(), depositB.BigInt())
		return math.NewIntFromBigInt(isqrt(product))
	}
	if !reserveA.IsPositive() || !reserveB.IsPositive() {
		return math.ZeroInt()
	}

	supply := totalSupply.BigInt()
	mintA := mulDiv(depositA.BigInt(), supply, reserveA.BigInt())
	mintB := mulDiv(depositB.BigInt(), supply, reserveB.BigInt())
	if mintA.Cmp(mintB) < 0 {
		return math.NewIntFromBigInt(mintA)
	}
	return math.NewIntFromBigInt(mintB)
}

// GetAmountOut prices amountIn against the constant-product curve after the fee.
// The full amountIn is credited to the input reserve by the caller; only the
// fee-discounted part is priced, which keeps reserveIn*reserveOut non-decreasing.
func GetAmountOut(amountIn, reserveIn, reserveOut math.Int) math.Int {
	inWithFee := new(big.Int).Mul(amountIn.BigInt(), feeNum)
	numerator := new(big.Int).Mul(inWithFee, reserveOut.BigInt())
	denominator := new(big.Int).Mul(reserveIn.BigInt(), feeDen)
	denominator.Add(denominator, inWithFee)
	if denominator.Sign() <= 0 {
		return math.ZeroInt()
	}
	return math.NewIntFromBigInt(numerator.Quo(numerator, denominator))
}

// WithdrawAmounts returns the reserves owed for burning lpAmount of totalSupply.
func WithdrawAmounts(lpAmount, reserveA, reserveB, totalSupply math.Int) (math.Int, math.Int) {
	if !totalSupply.IsPositive() {
		return math.ZeroInt(), math.ZeroInt()
	}
	supply := totalSupply.BigInt()
	amountA := mulDiv(lpAmount.BigInt(), reserveA.BigInt(), supply)
	amountB := mulDiv(lpAmount.BigInt(), reserveB.BigInt(), supply)
	return math.NewIntFromBigInt(amountA), math.NewIntFromBigInt(amountB)
}

// Product returns reserveA*reserveB without bounds.
func Product(reserveA, reserveB math.Int) *big.Int {
	return new(big.Int).Mul(reserveA.BigInt(), reserveB.BigInt())
}

func mulDiv(a, b, c *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}
