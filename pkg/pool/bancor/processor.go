package bancor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/Solana-ZH/bondswap/pkg"
	"github.com/Solana-ZH/bondswap/pkg/sol"
)

// Config configures a Processor. Zero fields fall back to the production
// program id and provider fee collector, a no-op logger and unregistered
// metrics.
type Config struct {
	ProgramID            solana.PublicKey
	ProviderFeeCollector solana.PublicKey
	Logger               *zap.Logger
	Metrics              *Metrics
}

// Processor is the on-ledger swap program. It validates an instruction
// against the accounts it is given and returns the batch of effects that
// settles it. It never mutates its inputs.
type Processor struct {
	programID            solana.PublicKey
	providerFeeCollector solana.PublicKey
	logger               *zap.Logger
	metrics              *Metrics
}

func NewProcessor(cfg Config) *Processor {
	p := &Processor{
		programID:            cfg.ProgramID,
		providerFeeCollector: cfg.ProviderFeeCollector,
		logger:               cfg.Logger,
		metrics:              cfg.Metrics,
	}
	if p.programID.IsZero() {
		p.programID = BANCOR_PROGRAM_ID
	}
	if p.providerFeeCollector.IsZero() {
		p.providerFeeCollector = PROVIDER_FEE_COLLECTOR_ID
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p
}

func (p *Processor) ProgramID() solana.PublicKey {
	return p.programID
}

func (p *Processor) ProviderFeeCollector() solana.PublicKey {
	return p.providerFeeCollector
}

// Process decodes data and dispatches it to the matching operation.
func (p *Processor) Process(ctx context.Context, rt pkg.Runtime, accounts []*pkg.AccountInfo, data []byte) (*pkg.Batch, error) {
	inst, err := DecodeInstruction(data)
	if err != nil {
		p.reject("decode", err)
		return nil, err
	}

	var batch *pkg.Batch
	switch inst.Type {
	case InstructionInitialize:
		batch, err = p.initialize(rt, accounts)
	case InstructionBuy:
		batch, err = p.buy(rt, accounts, inst.Amount)
	case InstructionSell:
		batch, err = p.sell(rt, accounts, inst.Amount)
	case InstructionChangeFee:
		batch, err = p.changeFee(rt, accounts, inst.Fee)
	}
	if err != nil {
		p.reject(inst.Type.String(), err)
		return nil, err
	}
	op := inst.Type.String()
	batch.OnCommit(func() { p.metrics.observe(op, nil) })
	return batch, nil
}

func (p *Processor) reject(op string, err error) {
	p.metrics.observe(op, err)
	code, ok := CustomCode(err)
	if !ok {
		p.logger.Info("instruction rejected", zap.String("instruction", op), zap.Error(err))
		return
	}
	p.logger.Info("instruction rejected",
		zap.String("instruction", op),
		zap.Uint32("code", code),
		zap.Error(err),
	)
}

func (p *Processor) initialize(rt pkg.Runtime, accounts []*pkg.AccountInfo) (*pkg.Batch, error) {
	var payer, mint, pool, vault, feeCollector, systemProgram, tokenProgram, rentSysvar *pkg.AccountInfo
	it := &accountIter{accounts: accounts}
	if err := it.take(&payer, &mint, &pool, &vault, &feeCollector, &systemProgram, &tokenProgram, &rentSysvar); err != nil {
		return nil, err
	}

	poolKey, bump, err := DerivePoolAddress(p.programID, mint.Key)
	if err != nil {
		return nil, ErrInvalidAccountAddress
	}
	vaultKey, bumpSol, err := DeriveVaultAddress(p.programID, pool.Key)
	if err != nil {
		return nil, ErrInvalidAccountAddress
	}

	if err := requireSigner(payer, ErrSignatureRequired); err != nil {
		return nil, err
	}
	if err := requireOwner(payer, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := requireUnused(mint); err != nil {
		return nil, err
	}
	if err := requireSigner(mint, ErrSignatureRequired); err != nil {
		return nil, err
	}
	if err := requireUnused(pool); err != nil {
		return nil, err
	}
	if err := requireKey(pool, poolKey); err != nil {
		return nil, err
	}
	if err := requireUnused(vault); err != nil {
		return nil, err
	}
	if err := requireKey(vault, vaultKey); err != nil {
		return nil, err
	}
	if err := requireCollectorOwner(feeCollector); err != nil {
		return nil, err
	}
	if err := requireProgram(systemProgram, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := requireProgram(tokenProgram, solana.TokenProgramID); err != nil {
		return nil, err
	}
	if err := requireProgram(rentSysvar, solana.SysVarRentPubkey); err != nil {
		return nil, err
	}

	collateral, err := checkedAdd(BootstrapCollateral, rt.MinimumBalance(0))
	if err != nil {
		return nil, err
	}

	batch := &pkg.Batch{}

	createPool, err := system.NewCreateAccountInstruction(
		rt.MinimumBalance(PoolSize),
		PoolSize,
		p.programID,
		payer.Key,
		pool.Key,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build create pool account: %w", err)
	}
	batch.InvokeSigned(createPool, poolAuthority(mint.Key, bump))

	state := PoolState{
		IsInitialized: true,
		BumpSeed:      bump,
		BumpSeedSol:   bumpSol,
		Fee:           DefaultFee,
		FeeCollector:  feeCollector.Key,
	}
	record, err := state.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode pool record: %w", err)
	}
	batch.Write(pool.Key, record)

	fundVault, err := system.NewTransferInstruction(collateral, payer.Key, vault.Key).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build vault transfer: %w", err)
	}
	batch.Invoke(fundVault)

	createMint, err := system.NewCreateAccountInstruction(
		rt.MinimumBalance(sol.MintSize),
		sol.MintSize,
		solana.TokenProgramID,
		payer.Key,
		mint.Key,
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build create mint account: %w", err)
	}
	batch.Invoke(createMint)

	initMint, err := token.NewInitializeMintInstructionBuilder().
		SetDecimals(MintDecimals).
		SetMintAuthority(pool.Key).
		SetMintAccount(mint.Key).
		SetSysVarRentPubkeyAccount(solana.SysVarRentPubkey).
		ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build initialize mint: %w", err)
	}
	batch.Invoke(initMint)

	p.logger.Debug("market initialized",
		zap.Stringer("mint", mint.Key),
		zap.Stringer("pool", pool.Key),
		zap.Uint64("collateral", collateral),
	)
	return batch, nil
}

func (p *Processor) buy(rt pkg.Runtime, accounts []*pkg.AccountInfo, amount SwapAmount) (*pkg.Batch, error) {
	var payer, payerToken, pool, vault, mint, feeCollector, providerCollector, systemProgram, tokenProgram *pkg.AccountInfo
	it := &accountIter{accounts: accounts}
	if err := it.take(&payer, &payerToken, &pool, &vault, &mint, &feeCollector, &providerCollector, &systemProgram, &tokenProgram); err != nil {
		return nil, err
	}

	if err := requireSigner(payer, ErrSignatureRequired); err != nil {
		return nil, err
	}
	if err := requireOwner(payer, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := checkTraderToken(payerToken, payer, mint); err != nil {
		return nil, err
	}
	state, err := p.loadPool(pool, mint)
	if err != nil {
		return nil, err
	}
	if err := p.checkVault(vault, pool, state); err != nil {
		return nil, err
	}
	mintState, err := loadMint(mint, pool)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(feeCollector, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := requireKey(feeCollector, state.FeeCollector); err != nil {
		return nil, err
	}
	if err := requireOwner(providerCollector, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := requireKey(providerCollector, p.providerFeeCollector); err != nil {
		return nil, err
	}
	if err := requireProgram(systemProgram, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := requireProgram(tokenProgram, solana.TokenProgramID); err != nil {
		return nil, err
	}

	quote, err := QuoteBuy(CurveState{
		Supply:           mintState.Supply,
		VaultLamports:    vault.Lamports,
		ExemptionMinimum: rt.MinimumBalance(0),
		Fee:              state.Fee,
	}, amount.AmountIn)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("buy priced",
		zap.Uint64("amount_in", quote.AmountIn),
		zap.Uint64("adjusted_in", quote.AdjustedIn),
		zap.Uint64("tokens_out", quote.TokensOut),
		zap.Uint64("provider_fee", quote.ProviderFee),
		zap.Uint64("pool_fee", quote.PoolFee),
	)
	if amount.AmountIn > payer.Lamports {
		return nil, ErrBalanceTooSmall
	}
	if quote.TokensOut < amount.MinimumAmountOut {
		return nil, ErrExceededSlippage
	}

	batch := &pkg.Batch{}

	mintTo, err := token.NewMintToInstruction(
		quote.TokensOut,
		mint.Key,
		payerToken.Key,
		pool.Key,
		[]solana.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build mint to: %w", err)
	}
	batch.InvokeSigned(mintTo, poolAuthority(mint.Key, state.BumpSeed))

	transfers := []struct {
		to       solana.PublicKey
		lamports uint64
	}{
		{vault.Key, quote.AdjustedIn},
		{providerCollector.Key, quote.ProviderFee},
		{feeCollector.Key, quote.PoolFee},
	}
	for _, tr := range transfers {
		inst, err := system.NewTransferInstruction(tr.lamports, payer.Key, tr.to).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("build transfer to %s: %w", tr.to, err)
		}
		batch.Invoke(inst)
	}

	batch.OnCommit(func() { p.metrics.settled("buy", quote.AmountIn, quote.TokensOut) })
	return batch, nil
}

func (p *Processor) sell(rt pkg.Runtime, accounts []*pkg.AccountInfo, amount SwapAmount) (*pkg.Batch, error) {
	var payer, payerToken, pool, vault, mint, providerCollector, systemProgram, tokenProgram *pkg.AccountInfo
	it := &accountIter{accounts: accounts}
	if err := it.take(&payer, &payerToken, &pool, &vault, &mint, &providerCollector, &systemProgram, &tokenProgram); err != nil {
		return nil, err
	}

	if err := requireSigner(payer, ErrSignatureRequired); err != nil {
		return nil, err
	}
	if err := requireOwner(payer, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := checkTraderToken(payerToken, payer, mint); err != nil {
		return nil, err
	}
	holding, err := loadTokenAccount(payerToken)
	if err != nil {
		return nil, err
	}
	state, err := p.loadPool(pool, mint)
	if err != nil {
		return nil, err
	}
	if err := p.checkVault(vault, pool, state); err != nil {
		return nil, err
	}
	mintState, err := loadMint(mint, pool)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(providerCollector, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := requireKey(providerCollector, p.providerFeeCollector); err != nil {
		return nil, err
	}
	if err := requireProgram(systemProgram, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := requireProgram(tokenProgram, solana.TokenProgramID); err != nil {
		return nil, err
	}

	if amount.AmountIn > holding.Amount {
		return nil, ErrBalanceTooSmall
	}
	quote, err := QuoteSell(CurveState{
		Supply:           mintState.Supply,
		VaultLamports:    vault.Lamports,
		ExemptionMinimum: rt.MinimumBalance(0),
		Fee:              state.Fee,
	}, amount.AmountIn)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("sell priced",
		zap.Uint64("amount_in", quote.AmountIn),
		zap.Uint64("gross_out", quote.GrossOut),
		zap.Uint64("provider_fee", quote.ProviderFee),
		zap.Uint64("net_out", quote.NetOut),
	)
	if quote.NetOut < amount.MinimumAmountOut {
		return nil, ErrExceededSlippage
	}

	batch := &pkg.Batch{}
	authority := vaultAuthority(pool.Key, state.BumpSeedSol)

	payFee, err := system.NewTransferInstruction(quote.ProviderFee, vault.Key, providerCollector.Key).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build provider fee transfer: %w", err)
	}
	batch.InvokeSigned(payFee, authority)

	payout, err := system.NewTransferInstruction(quote.NetOut, vault.Key, payer.Key).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build payout transfer: %w", err)
	}
	batch.InvokeSigned(payout, authority)

	burn, err := token.NewBurnInstruction(
		amount.AmountIn,
		payerToken.Key,
		mint.Key,
		payer.Key,
		[]solana.PublicKey{},
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build burn: %w", err)
	}
	batch.Invoke(burn)

	batch.OnCommit(func() { p.metrics.settled("sell", quote.NetOut, quote.AmountIn) })
	return batch, nil
}

func (p *Processor) changeFee(rt pkg.Runtime, accounts []*pkg.AccountInfo, fee uint16) (*pkg.Batch, error) {
	var feeCollector, newFeeCollector, pool, mint, systemProgram *pkg.AccountInfo
	it := &accountIter{accounts: accounts}
	if err := it.take(&feeCollector, &newFeeCollector, &pool, &mint, &systemProgram); err != nil {
		return nil, err
	}

	state, err := p.loadPool(pool, mint)
	if err != nil {
		return nil, err
	}
	if err := requireSigner(feeCollector, ErrInvalidFeeAccount); err != nil {
		return nil, err
	}
	if err := requireOwner(feeCollector, solana.SystemProgramID); err != nil {
		return nil, err
	}
	if err := requireKey(feeCollector, state.FeeCollector); err != nil {
		return nil, err
	}
	if err := requireCollectorOwner(newFeeCollector); err != nil {
		return nil, err
	}
	if _, err := loadMint(mint, pool); err != nil {
		return nil, err
	}
	if err := requireProgram(systemProgram, solana.SystemProgramID); err != nil {
		return nil, err
	}

	updated, err := state.ChangeFee(feeCollector.Key, newFeeCollector.Key, fee)
	if err != nil {
		return nil, err
	}

	batch := &pkg.Batch{}
	if newFeeCollector.Lamports == 0 {
		fund, err := system.NewTransferInstruction(rt.MinimumBalance(0), feeCollector.Key, newFeeCollector.Key).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("build collector funding: %w", err)
		}
		batch.Invoke(fund)
	}

	record, err := updated.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode pool record: %w", err)
	}
	batch.Write(pool.Key, record)

	p.logger.Debug("fee changed",
		zap.Stringer("pool", pool.Key),
		zap.Uint16("fee", updated.Fee),
		zap.Stringer("fee_collector", updated.FeeCollector),
	)
	return batch, nil
}
