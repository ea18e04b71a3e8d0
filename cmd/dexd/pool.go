package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"loyaltyDex/internal/config"
	"loyaltyDex/internal/dex"
)

func poolCommands() []*cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create-pool TOKEN_A TOKEN_B",
		Short: "Register an empty pool for a token pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *dex.Service) error {
				tokenA, tokenB, err := parsePair(args)
				if err != nil {
					return err
				}
				if err := svc.CreatePool(ctx, tokenA, tokenB); err != nil {
					return err
				}
				pool, err := svc.GetPool(ctx, tokenA, tokenB)
				if err != nil {
					return err
				}
				return printJSON(pool)
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add-liquidity TOKEN_A TOKEN_B AMOUNT_A AMOUNT_B",
		Short: "Deposit both tokens and mint LP units to the caller",
		Long:  "AMOUNT_A is credited to the lower-addressed token of the pair and AMOUNT_B to the other, whatever order the tokens are given in.",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *dex.Service) error {
				caller, err := callerFlag(cmd)
				if err != nil {
					return err
				}
				tokenA, tokenB, err := parsePair(args)
				if err != nil {
					return err
				}
				amountA, err := parseAmount(args[2])
				if err != nil {
					return err
				}
				amountB, err := parseAmount(args[3])
				if err != nil {
					return err
				}
				minted, err := svc.AddLiquidity(ctx, caller, tokenA, tokenB, amountA, amountB)
				if err != nil {
					return err
				}
				return printJSON(map[string]string{"lp_minted": minted.String()})
			})
		},
	}
	addCmd.Flags().String("caller", "", "provider address")

	swapCmd := &cobra.Command{
		Use:   "swap FROM_TOKEN TO_TOKEN AMOUNT_IN MIN_AMOUNT_OUT",
		Short: "Trade one pool token for the other",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *dex.Service) error {
				caller, err := callerFlag(cmd)
				if err != nil {
					return err
				}
				from, to, err := parsePair(args)
				if err != nil {
					return err
				}
				amountIn, err := parseAmount(args[2])
				if err != nil {
					return err
				}
				minOut, err := parseAmount(args[3])
				if err != nil {
					return err
				}
				out, err := svc.Swap(ctx, caller, from, to, amountIn, minOut)
				if err != nil {
					return err
				}
				return printJSON(map[string]string{"amount_out": out.String()})
			})
		},
	}
	swapCmd.Flags().String("caller", "", "trader address")

	removeCmd := &cobra.Command{
		Use:   "remove-liquidity TOKEN_A TOKEN_B LP_AMOUNT",
		Short: "Burn LP units and withdraw the proportional reserves",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *dex.Service) error {
				caller, err := callerFlag(cmd)
				if err != nil {
					return err
				}
				tokenA, tokenB, err := parsePair(args)
				if err != nil {
					return err
				}
				lpAmount, err := parseAmount(args[2])
				if err != nil {
					return err
				}
				amountA, amountB, err := svc.RemoveLiquidity(ctx, caller, tokenA, tokenB, lpAmount)
				if err != nil {
					return err
				}
				return printJSON(map[string]string{"amount_a": amountA.String(), "amount_b": amountB.String()})
			})
		},
	}
	removeCmd.Flags().String("caller", "", "provider address")

	rateCmd := &cobra.Command{
		Use:   "rate TOKEN_A TOKEN_B",
		Short: "Print the pool price reserve_b/reserve_a as an unreduced fraction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *dex.Service) error {
				tokenA, tokenB, err := parsePair(args)
				if err != nil {
					return err
				}
				num, den, err := svc.GetExchangeRate(ctx, tokenA, tokenB)
				if err != nil {
					return err
				}
				return printJSON(map[string]string{"numerator": num.String(), "denominator": den.String()})
			})
		},
	}

	quoteCmd := &cobra.Command{
		Use:   "quote FROM_TOKEN TO_TOKEN AMOUNT_IN",
		Short: "Price a swap without executing it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *dex.Service) error {
				from, to, err := parsePair(args)
				if err != nil {
					return err
				}
				amountIn, err := parseAmount(args[2])
				if err != nil {
					return err
				}
				out, err := svc.QuoteSwap(ctx, from, to, amountIn)
				if err != nil {
					return err
				}
				return printJSON(map[string]string{"amount_out": out.String()})
			})
		},
	}

	poolCmd := &cobra.Command{
		Use:   "pool [TOKEN_A TOKEN_B]",
		Short: "Show one pool, or every pool without arguments",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected zero or two tokens, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *dex.Service) error {
				if len(args) == 0 {
					pools, err := svc.ListPools(ctx)
					if err != nil {
						return err
					}
					return printJSON(pools)
				}
				tokenA, tokenB, err := parsePair(args)
				if err != nil {
					return err
				}
				pool, err := svc.GetPool(ctx, tokenA, tokenB)
				if err != nil {
					return err
				}
				return printJSON(pool)
			})
		},
	}

	return []*cobra.Command{createCmd, addCmd, swapCmd, removeCmd, rateCmd, quoteCmd, poolCmd}
}

func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *dex.Service) error) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, newService(cfg, store, logger))
}

func callerFlag(cmd *cobra.Command) (common.Address, error) {
	value, _ := cmd.Flags().GetString("caller")
	if value == "" {
		return common.Address{}, fmt.Errorf("--caller is required")
	}
	return config.ParseAddress(value)
}

func parsePair(args []string) (common.Address, common.Address, error) {
	tokens, err := config.ParseAddresses(args[:2])
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	if len(tokens) != 2 {
		return common.Address{}, common.Address{}, fmt.Errorf("two token addresses are required")
	}
	return tokens[0], tokens[1], nil
}

func parseAmount(value string) (math.Int, error) {
	amount, ok := math.NewIntFromString(value)
	if !ok {
		return math.Int{}, fmt.Errorf("invalid amount: %s", value)
	}
	return amount, nil
}
