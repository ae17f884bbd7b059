package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Solana-ZH/bondswap/pkg/protocol"
	"github.com/Solana-ZH/bondswap/pkg/sol"
	"github.com/Solana-ZH/bondswap/utils"
)

func main() {
	root := &cobra.Command{
		Use:          "bondswap",
		Short:        "Bonding-curve market client and local simulator",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("rpc", utils.DefaultRPC, "Solana RPC URL")
	pf.String("ws", utils.DefaultWS, "Solana WebSocket URL, empty to skip confirmations")
	pf.String("private-key", "", "base58 wallet key")
	pf.String("program-id", "", "bonding-curve program id")
	pf.String("provider-fee-collector", "", "provider fee collector address")
	pf.Bool("simulate", true, "simulate transactions instead of sending them")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newDeriveCmd(),
		newQuoteCmd(),
		newSwapCmd("buy"),
		newSwapCmd("sell"),
		newInitCmd(),
		newChangeFeeCmd(),
		newSimulateCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every command needs once flags are parsed.
type app struct {
	cfg                  utils.Config
	logger               *zap.Logger
	programID            solana.PublicKey
	providerFeeCollector solana.PublicKey
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := utils.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id: %w", err)
	}
	provider, err := solana.PublicKeyFromBase58(cfg.ProviderFeeCollector)
	if err != nil {
		return nil, fmt.Errorf("invalid provider fee collector: %w", err)
	}
	return &app{
		cfg:                  cfg,
		logger:               logger,
		programID:            programID,
		providerFeeCollector: provider,
	}, nil
}

func (a *app) wallet() (solana.PrivateKey, error) {
	if a.cfg.PrivateKey == "" {
		return nil, fmt.Errorf("SOLANA_PRIVATE_KEY is required")
	}
	key, err := solana.PrivateKeyFromBase58(a.cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	a.logger.Info("wallet loaded", zap.Stringer("public_key", key.PublicKey()))
	return key, nil
}

func (a *app) client(ctx context.Context) (*sol.Client, error) {
	ws := a.cfg.WSURL
	if a.cfg.Simulate {
		ws = ""
	}
	c, err := sol.NewClient(ctx, a.cfg.RPCURL, ws, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create solana client: %w", err)
	}
	return c, nil
}

func (a *app) protocol(c *sol.Client) *protocol.BancorProtocol {
	return protocol.NewBancor(c, a.programID, a.providerFeeCollector)
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
