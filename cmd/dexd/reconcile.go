package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loyaltyDex/internal/chain"
	"loyaltyDex/internal/config"
	"loyaltyDex/internal/custody"
)

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReconcile(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	custodyAddr, err := config.ParseAddress(cfg.Custody)
	if err != nil {
		return err
	}
	tokens, err := config.ParseAddresses(cfg.Tokens)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := openStore(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("reconcile start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("custody", custodyAddr.Hex()),
		zap.Int("tokens", len(tokens)),
		zap.Uint64("block", cfg.Block),
	)

	reconciler := custody.NewReconciler(custody.Config{
		Custody:      custodyAddr,
		Tokens:       tokens,
		BlockNumber:  cfg.Block,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, store, chainClient, logger)

	report, err := reconciler.Run(ctx)
	if err != nil {
		return err
	}
	if err := printJSON(report); err != nil {
		return err
	}
	for _, token := range report.Tokens {
		if token.Status == custody.StatusUnder {
			return fmt.Errorf("custody holds less than recorded reserves for %s at block %d", token.Token, report.Block)
		}
	}
	return nil
}
