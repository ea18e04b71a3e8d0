package amm

import (
	"math/big"
	"testing"

	"cosmossdk.io/math"
	"pgregory.net/rapid"
)

func TestISqrtKnownValues(t *testing.T) {
	cases := map[int64]int64{
		-5:        0,
		0:         0,
		1:         1,
		2:         1,
		3:         1,
		4:         2,
		8:         2,
		9:         3,
		15:        3,
		16:        4,
		4_000_000: 2000,
		4_000_001: 2000,
	}
	for in, want := range cases {
		got := ISqrt(math.NewInt(in))
		if !got.Equal(math.NewInt(want)) {
			t.Fatalf("isqrt(%d) = %s, want %d", in, got, want)
		}
	}
}

func TestISqrtFloorProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Int64Range(0, 1<<62).Draw(t, "x")
		y := rapid.Int64Range(0, 1<<62).Draw(t, "y")

		root := ISqrt(math.NewInt(x)).BigInt()
		sq := new(big.Int).Mul(root, root)
		next := new(big.Int).Add(root, big.NewInt(1))
		next.Mul(next, next)
		if sq.Cmp(big.NewInt(x)) > 0 || next.Cmp(big.NewInt(x)) <= 0 {
			t.Fatalf("isqrt(%d) = %s is not the floor root", x, root)
		}

		if x <= y && ISqrt(math.NewInt(x)).GT(ISqrt(math.NewInt(y))) {
			t.Fatalf("isqrt not monotone for %d <= %d", x, y)
		}
	})
}

func TestISqrtPerfectSquares(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := rapid.Int64Range(0, 1<<31).Draw(t, "r")
		got := ISqrt(math.NewInt(r * r))
		if !got.Equal(math.NewInt(r)) {
			t.Fatalf("isqrt(%d^2) = %s", r, got)
		}
	})
}

func TestLPMintAmountSeed(t *testing.T) {
	got := LPMintAmount(math.NewInt(1000), math.NewInt(4000), math.ZeroInt(), math.ZeroInt(), math.ZeroInt())
	if !got.Equal(math.NewInt(2000)) {
		t.Fatalf("seed mint = %s, want 2000", got)
	}
}

func TestLPMintAmountProportional(t *testing.T) {
	got := LPMintAmount(math.NewInt(500), math.NewInt(2000), math.NewInt(1000), math.NewInt(4000), math.NewInt(2000))
	if !got.Equal(math.NewInt(1000)) {
		t.Fatalf("mint = %s, want 1000", got)
	}
}

func TestLPMintAmountTakesMinimum(t *testing.T) {
	// 500/1000 of A but only 1000/4000 of B
	got := LPMintAmount(math.NewInt(500), math.NewInt(1000), math.NewInt(1000), math.NewInt(4000), math.NewInt(2000))
	if !got.Equal(math.NewInt(500)) {
		t.Fatalf("mint = %s, want 500", got)
	}
}

func TestLPMintAmountEmptyReserveWithSupply(t *testing.T) {
	got := LPMintAmount(math.NewInt(10), math.NewInt(10), math.ZeroInt(), math.NewInt(5), math.NewInt(7))
	if !got.IsZero() {
		t.Fatalf("mint = %s, want 0", got)
	}
}

func TestGetAmountOut(t *testing.T) {
	got := GetAmountOut(math.NewInt(150), math.NewInt(1500), math.NewInt(6000))
	if !got.Equal(math.NewInt(543)) {
		t.Fatalf("amount out = %s, want 543", got)
	}

	if out := GetAmountOut(math.NewInt(1), math.NewInt(1_000_000), math.NewInt(1_000_000)); !out.IsZero() {
		t.Fatalf("dust swap = %s, want 0", out)
	}
}

func TestGetAmountOutNeverDrainsOrShrinksProduct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.Int64Range(1, 1<<40).Draw(t, "in")
		rin := rapid.Int64Range(1, 1<<40).Draw(t, "reserve_in")
		rout := rapid.Int64Range(1, 1<<40).Draw(t, "reserve_out")

		out := GetAmountOut(math.NewInt(in), math.NewInt(rin), math.NewInt(rout))
		if out.GTE(math.NewInt(rout)) {
			t.Fatalf("output %s drains reserve %d", out, rout)
		}

		before := Product(math.NewInt(rin), math.NewInt(rout))
		after := Product(math.NewInt(rin+in), math.NewInt(rout).Sub(out))
		if after.Cmp(before) < 0 {
			t.Fatalf("product shrank: %s -> %s", before, after)
		}
	})
}

func TestWithdrawAmounts(t *testing.T) {
	a, b := WithdrawAmounts(math.NewInt(2000), math.NewInt(1650), math.NewInt(5457), math.NewInt(3000))
	if !a.Equal(math.NewInt(1100)) || !b.Equal(math.NewInt(3638)) {
		t.Fatalf("withdraw = (%s, %s), want (1100, 3638)", a, b)
	}

	a, b = WithdrawAmounts(math.NewInt(1), math.NewInt(10), math.NewInt(10), math.ZeroInt())
	if !a.IsZero() || !b.IsZero() {
		t.Fatalf("withdraw from empty supply = (%s, %s)", a, b)
	}
}

func TestLargeAmountsStayWithinBounds(t *testing.T) {
	out := GetAmountOut(MaxAmount, MaxAmount, MaxAmount)
	if !InRange(out) {
		t.Fatalf("amount out %s out of range", out)
	}

	seed := LPMintAmount(MaxAmount, MaxAmount, math.ZeroInt(), math.ZeroInt(), math.ZeroInt())
	if !seed.Equal(MaxAmount) {
		t.Fatalf("seed mint %s, want %s", seed, MaxAmount)
	}
}

func TestInRange(t *testing.T) {
	if !InRange(MaxAmount) {
		t.Fatalf("max amount should be in range")
	}
	if InRange(MaxAmount.AddRaw(1)) {
		t.Fatalf("max amount + 1 should be out of range")
	}
	if InRange(math.Int{}) {
		t.Fatalf("nil int should be out of range")
	}
}
