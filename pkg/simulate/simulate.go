// Package simulate drives a full market lifecycle against a local ledger.
package simulate

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Solana-ZH/bondswap/pkg/ledger"
	"github.com/Solana-ZH/bondswap/pkg/pool/bancor"
	"github.com/Solana-ZH/bondswap/pkg/sol"
)

const (
	DefaultBuyAmount  uint64 = 1_000_000_000
	DefaultPayerFunds uint64 = 100_000_000_000
)

type Options struct {
	// BuyAmount is the lamports spent on the buy. Every token bought is
	// sold back afterwards.
	BuyAmount uint64
	// Fee is the pool fee set by the final ChangeFee.
	Fee    uint16
	Logger *zap.Logger
}

// Report is the market state after each step of the run.
type Report struct {
	Mint      solana.PublicKey
	Pool      solana.PublicKey
	Vault     solana.PublicKey
	Collector solana.PublicKey

	TokensBought     uint64
	LamportsReturned uint64
	Supply           uint64
	VaultLamports    uint64
	CollectorFees    uint64
	ProviderFees     uint64
	Fee              uint16
}

// Run initializes a market on l, buys, sells everything back and hands the
// pool to a fresh fee collector at opts.Fee. proc must be registered on l.
func Run(ctx context.Context, l *ledger.Ledger, proc *bancor.Processor, opts Options) (*Report, error) {
	if opts.BuyAmount == 0 {
		opts.BuyAmount = DefaultBuyAmount
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	programID := proc.ProgramID()
	provider := proc.ProviderFeeCollector()

	payer := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	collector := solana.NewWallet().PublicKey()
	nextCollector := solana.NewWallet().PublicKey()
	pool, _, err := bancor.DerivePoolAddress(programID, mint)
	if err != nil {
		return nil, fmt.Errorf("derive pool: %w", err)
	}
	vault, _, err := bancor.DeriveVaultAddress(programID, pool)
	if err != nil {
		return nil, fmt.Errorf("derive vault: %w", err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return nil, fmt.Errorf("derive token account: %w", err)
	}

	if err := l.SetAccount(ctx, payer, ledger.NewSystemAccount(DefaultPayerFunds)); err != nil {
		return nil, err
	}
	// enough to stay exempt after funding its successor
	collectorFunds := 2 * sol.MinimumBalance(0)
	if err := l.SetAccount(ctx, collector, ledger.NewSystemAccount(collectorFunds)); err != nil {
		return nil, err
	}
	providerBalance, err := l.Balance(ctx, provider)
	if err != nil {
		return nil, err
	}
	if need := sol.TopUp(providerBalance, 0); need > 0 {
		if err := l.SetAccount(ctx, provider, ledger.NewSystemAccount(providerBalance+need)); err != nil {
			return nil, err
		}
	}
	providerBalance, err = l.Balance(ctx, provider)
	if err != nil {
		return nil, err
	}

	report := &Report{Mint: mint, Pool: pool, Vault: vault, Collector: nextCollector}

	inst, err := bancor.NewInitializeInstruction(programID, bancor.InitializeAccounts{
		Payer:        payer,
		Mint:         mint,
		FeeCollector: collector,
	})
	if err != nil {
		return nil, err
	}
	if err := l.Execute(ctx, inst, payer, mint); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	logger.Info("market initialized", zap.Stringer("mint", mint), zap.Stringer("pool", pool))

	if err := l.SetAccount(ctx, ata, ledger.NewTokenAccount(mint, payer, 0)); err != nil {
		return nil, err
	}
	swap := bancor.SwapAccounts{
		User:                 payer,
		Mint:                 mint,
		FeeCollector:         collector,
		ProviderFeeCollector: provider,
	}

	inst, err = bancor.NewBuyInstruction(programID, swap, opts.BuyAmount, 0)
	if err != nil {
		return nil, err
	}
	if err := l.Execute(ctx, inst, payer); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	holding, err := l.TokenAccount(ctx, ata)
	if err != nil {
		return nil, err
	}
	report.TokensBought = holding.Amount
	logger.Info("bought", zap.Uint64("lamports", opts.BuyAmount), zap.Uint64("tokens", holding.Amount))

	before, err := l.Balance(ctx, payer)
	if err != nil {
		return nil, err
	}
	inst, err = bancor.NewSellInstruction(programID, swap, report.TokensBought, 0)
	if err != nil {
		return nil, err
	}
	if err := l.Execute(ctx, inst, payer); err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	after, err := l.Balance(ctx, payer)
	if err != nil {
		return nil, err
	}
	report.LamportsReturned = after - before
	logger.Info("sold", zap.Uint64("tokens", report.TokensBought), zap.Uint64("lamports", report.LamportsReturned))

	collectorBalance, err := l.Balance(ctx, collector)
	if err != nil {
		return nil, err
	}
	report.CollectorFees = collectorBalance - collectorFunds

	inst, err = bancor.NewChangeFeeInstruction(programID, bancor.ChangeFeeAccounts{
		FeeCollector:    collector,
		NewFeeCollector: nextCollector,
		Mint:            mint,
	}, opts.Fee)
	if err != nil {
		return nil, err
	}
	if err := l.Execute(ctx, inst, collector); err != nil {
		return nil, fmt.Errorf("change fee: %w", err)
	}

	poolAcc, err := l.Account(ctx, pool)
	if err != nil {
		return nil, err
	}
	state, err := bancor.LoadPoolState(poolAcc.Data)
	if err != nil {
		return nil, err
	}
	report.Fee = state.Fee
	m, err := l.Mint(ctx, mint)
	if err != nil {
		return nil, err
	}
	report.Supply = m.Supply
	if report.VaultLamports, err = l.Balance(ctx, vault); err != nil {
		return nil, err
	}
	providerAfter, err := l.Balance(ctx, provider)
	if err != nil {
		return nil, err
	}
	report.ProviderFees = providerAfter - providerBalance
	logger.Info("fee changed", zap.Uint16("fee", report.Fee), zap.Stringer("fee_collector", nextCollector))
	return report, nil
}
