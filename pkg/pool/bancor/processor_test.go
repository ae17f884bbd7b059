package bancor_test

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Solana-ZH/bondswap/pkg"
	"github.com/Solana-ZH/bondswap/pkg/ledger"
	"github.com/Solana-ZH/bondswap/pkg/pool/bancor"
	"github.com/Solana-ZH/bondswap/pkg/sol"
)

const (
	lamportsPerSol = 1_000_000_000
	exemption      = 890_880
	buyAmount      = 100
	buyTokens      = 1_213_458_282
)

type market struct {
	ctx       context.Context
	ledger    *ledger.Ledger
	proc      *bancor.Processor
	metrics   *bancor.Metrics
	payer     solana.PublicKey
	mint      solana.PublicKey
	collector solana.PublicKey
	provider  solana.PublicKey
	pool      solana.PublicKey
	vault     solana.PublicKey
	payerATA  solana.PublicKey
}

func newMarket(t *testing.T) *market {
	t.Helper()
	m := &market{
		ctx:       context.Background(),
		ledger:    ledger.New(ledger.NewMemoryStore()),
		metrics:   bancor.NewMetrics(prometheus.NewRegistry()),
		payer:     solana.NewWallet().PublicKey(),
		mint:      solana.NewWallet().PublicKey(),
		collector: solana.NewWallet().PublicKey(),
		provider:  solana.NewWallet().PublicKey(),
	}
	m.proc = bancor.NewProcessor(bancor.Config{
		ProviderFeeCollector: m.provider,
		Metrics:              m.metrics,
	})
	m.ledger.Register(m.proc)

	var err error
	m.pool, _, err = bancor.DerivePoolAddress(m.proc.ProgramID(), m.mint)
	require.NoError(t, err)
	m.vault, _, err = bancor.DeriveVaultAddress(m.proc.ProgramID(), m.pool)
	require.NoError(t, err)
	m.payerATA, _, err = solana.FindAssociatedTokenAddress(m.payer, m.mint)
	require.NoError(t, err)

	m.fund(t, m.payer, 10*lamportsPerSol)
	m.fund(t, m.collector, lamportsPerSol)
	m.fund(t, m.provider, exemption)
	return m
}

func (m *market) fund(t *testing.T, key solana.PublicKey, lamports uint64) {
	t.Helper()
	require.NoError(t, m.ledger.SetAccount(m.ctx, key, ledger.NewSystemAccount(lamports)))
}

func (m *market) balance(t *testing.T, key solana.PublicKey) uint64 {
	t.Helper()
	b, err := m.ledger.Balance(m.ctx, key)
	require.NoError(t, err)
	return b
}

func (m *market) initialize(t *testing.T) {
	t.Helper()
	inst, err := bancor.NewInitializeInstruction(m.proc.ProgramID(), bancor.InitializeAccounts{
		Payer:        m.payer,
		Mint:         m.mint,
		FeeCollector: m.collector,
	})
	require.NoError(t, err)
	require.NoError(t, m.ledger.Execute(m.ctx, inst, m.payer, m.mint))
	require.NoError(t, m.ledger.SetAccount(m.ctx, m.payerATA, ledger.NewTokenAccount(m.mint, m.payer, 0)))
}

func (m *market) swapAccounts() bancor.SwapAccounts {
	return bancor.SwapAccounts{
		User:                 m.payer,
		Mint:                 m.mint,
		FeeCollector:         m.collector,
		ProviderFeeCollector: m.provider,
	}
}

func (m *market) buy(t *testing.T, amountIn, minOut uint64) error {
	t.Helper()
	inst, err := bancor.NewBuyInstruction(m.proc.ProgramID(), m.swapAccounts(), amountIn, minOut)
	require.NoError(t, err)
	return m.ledger.Execute(m.ctx, inst, m.payer)
}

func (m *market) sell(t *testing.T, amountIn, minOut uint64) error {
	t.Helper()
	inst, err := bancor.NewSellInstruction(m.proc.ProgramID(), m.swapAccounts(), amountIn, minOut)
	require.NoError(t, err)
	return m.ledger.Execute(m.ctx, inst, m.payer)
}

func (m *market) tokens(t *testing.T) uint64 {
	t.Helper()
	holding, err := m.ledger.TokenAccount(m.ctx, m.payerATA)
	require.NoError(t, err)
	return holding.Amount
}

func (m *market) supply(t *testing.T) uint64 {
	t.Helper()
	mint, err := m.ledger.Mint(m.ctx, m.mint)
	require.NoError(t, err)
	return mint.Supply
}

// snapshot loads the accounts of inst the way the ledger hands them to the
// program.
func (m *market) snapshot(t *testing.T, inst solana.Instruction) ([]*pkg.AccountInfo, []byte) {
	t.Helper()
	data, err := inst.Data()
	require.NoError(t, err)
	infos := make([]*pkg.AccountInfo, 0, len(inst.Accounts()))
	for _, meta := range inst.Accounts() {
		acc, err := m.ledger.Account(m.ctx, meta.PublicKey)
		require.NoError(t, err)
		infos = append(infos, &pkg.AccountInfo{
			Key:        meta.PublicKey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Lamports:   acc.Lamports,
			Owner:      acc.Owner,
			Data:       acc.Data,
		})
	}
	return infos, data
}

func TestInitialize(t *testing.T) {
	m := newMarket(t)
	before := m.balance(t, m.payer)
	m.initialize(t)

	poolAcc, err := m.ledger.Account(m.ctx, m.pool)
	require.NoError(t, err)
	assert.True(t, poolAcc.Owner.Equals(m.proc.ProgramID()))
	assert.Equal(t, sol.MinimumBalance(bancor.PoolSize), poolAcc.Lamports)

	state, err := bancor.LoadPoolState(poolAcc.Data)
	require.NoError(t, err)
	assert.Equal(t, bancor.DefaultFee, state.Fee)
	assert.True(t, state.FeeCollector.Equals(m.collector))
	_, bump, _ := bancor.DerivePoolAddress(m.proc.ProgramID(), m.mint)
	_, bumpSol, _ := bancor.DeriveVaultAddress(m.proc.ProgramID(), m.pool)
	assert.Equal(t, bump, state.BumpSeed)
	assert.Equal(t, bumpSol, state.BumpSeedSol)

	assert.Equal(t, uint64(bancor.BootstrapCollateral+exemption), m.balance(t, m.vault))

	mint, err := m.ledger.Mint(m.ctx, m.mint)
	require.NoError(t, err)
	assert.True(t, mint.IsInitialized)
	assert.Equal(t, uint64(0), mint.Supply)
	assert.Equal(t, bancor.MintDecimals, mint.Decimals)
	require.NotNil(t, mint.MintAuthority)
	assert.True(t, mint.MintAuthority.Equals(m.pool))
	assert.Nil(t, mint.FreezeAuthority)

	spent := sol.MinimumBalance(bancor.PoolSize) + bancor.BootstrapCollateral + exemption + sol.MinimumBalance(sol.MintSize)
	assert.Equal(t, before-spent, m.balance(t, m.payer))
}

func TestInitializeTwice(t *testing.T) {
	m := newMarket(t)
	m.initialize(t)

	inst, err := bancor.NewInitializeInstruction(m.proc.ProgramID(), bancor.InitializeAccounts{
		Payer:        m.payer,
		Mint:         m.mint,
		FeeCollector: m.collector,
	})
	require.NoError(t, err)
	err = m.ledger.Execute(m.ctx, inst, m.payer, m.mint)
	assert.ErrorIs(t, err, bancor.ErrAlreadyInUse)
}

func TestInitializeValidation(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(accounts []*pkg.AccountInfo)
		want   bancor.Error
	}{
		{"payer not signer", func(a []*pkg.AccountInfo) { a[0].IsSigner = false }, bancor.ErrSignatureRequired},
		{"payer not system owned", func(a []*pkg.AccountInfo) { a[0].Owner = solana.TokenProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"mint funded", func(a []*pkg.AccountInfo) { a[1].Lamports = 1 }, bancor.ErrAlreadyInUse},
		{"mint not signer", func(a []*pkg.AccountInfo) { a[1].IsSigner = false }, bancor.ErrSignatureRequired},
		{"pool funded", func(a []*pkg.AccountInfo) { a[2].Lamports = 1 }, bancor.ErrAlreadyInUse},
		{"pool address", func(a []*pkg.AccountInfo) { a[2].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"vault funded", func(a []*pkg.AccountInfo) { a[3].Lamports = 1 }, bancor.ErrAlreadyInUse},
		{"vault address", func(a []*pkg.AccountInfo) { a[3].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"funded collector owned by program", func(a []*pkg.AccountInfo) { a[4].Owner = solana.TokenProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"system program", func(a []*pkg.AccountInfo) { a[5].Key = solana.TokenProgramID }, bancor.ErrInvalidProgramAddress},
		{"token program", func(a []*pkg.AccountInfo) { a[6].Key = solana.SystemProgramID }, bancor.ErrInvalidProgramAddress},
		{"rent sysvar", func(a []*pkg.AccountInfo) { a[7].Key = solana.SystemProgramID }, bancor.ErrInvalidProgramAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMarket(t)
			inst, err := bancor.NewInitializeInstruction(m.proc.ProgramID(), bancor.InitializeAccounts{
				Payer:        m.payer,
				Mint:         m.mint,
				FeeCollector: m.collector,
			})
			require.NoError(t, err)
			accounts, data := m.snapshot(t, inst)
			tt.tamper(accounts)

			_, err = m.proc.Process(m.ctx, m.ledger, accounts, data)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("unfunded collector with any owner", func(t *testing.T) {
		m := newMarket(t)
		inst, err := bancor.NewInitializeInstruction(m.proc.ProgramID(), bancor.InitializeAccounts{
			Payer:        m.payer,
			Mint:         m.mint,
			FeeCollector: solana.NewWallet().PublicKey(),
		})
		require.NoError(t, err)
		accounts, data := m.snapshot(t, inst)
		accounts[4].Owner = solana.TokenProgramID

		batch, err := m.proc.Process(m.ctx, m.ledger, accounts, data)
		require.NoError(t, err)
		assert.Len(t, batch.Invocations, 4)
		assert.Len(t, batch.Writes, 1)
	})

	t.Run("missing accounts", func(t *testing.T) {
		m := newMarket(t)
		inst, err := bancor.NewInitializeInstruction(m.proc.ProgramID(), bancor.InitializeAccounts{
			Payer:        m.payer,
			Mint:         m.mint,
			FeeCollector: m.collector,
		})
		require.NoError(t, err)
		accounts, data := m.snapshot(t, inst)
		_, err = m.proc.Process(m.ctx, m.ledger, accounts[:7], data)
		assert.ErrorIs(t, err, bancor.ErrNotEnoughAccountKeys)
	})
}

func TestBuy(t *testing.T) {
	m := newMarket(t)
	m.initialize(t)

	payerBefore := m.balance(t, m.payer)
	collectorBefore := m.balance(t, m.collector)
	providerBefore := m.balance(t, m.provider)
	vaultBefore := m.balance(t, m.vault)

	require.NoError(t, m.buy(t, buyAmount, buyTokens))

	assert.Equal(t, uint64(buyTokens), m.tokens(t))
	assert.Equal(t, uint64(buyTokens), m.supply(t))
	assert.Equal(t, vaultBefore+96, m.balance(t, m.vault))
	assert.Equal(t, providerBefore+1, m.balance(t, m.provider))
	assert.Equal(t, collectorBefore+2, m.balance(t, m.collector))
	assert.Equal(t, payerBefore-99, m.balance(t, m.payer))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.Instructions.WithLabelValues("buy", "ok")))
	assert.Equal(t, float64(buyTokens), testutil.ToFloat64(m.metrics.Tokens.WithLabelValues("buy")))
}

func TestBuyRejections(t *testing.T) {
	m := newMarket(t)
	m.initialize(t)

	err := m.buy(t, buyAmount, buyTokens+1)
	assert.ErrorIs(t, err, bancor.ErrExceededSlippage)
	assert.Equal(t, uint64(0), m.supply(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.Instructions.WithLabelValues("buy", "ExceededSlippage")))

	err = m.buy(t, 11*lamportsPerSol, 0)
	assert.ErrorIs(t, err, bancor.ErrBalanceTooSmall)
	assert.Equal(t, uint64(0), m.tokens(t))
}

func TestBuyIsAtomic(t *testing.T) {
	m := newMarket(t)
	m.initialize(t)

	// an empty provider account cannot receive a 1 lamport fee and stay alive
	require.NoError(t, m.ledger.SetAccount(m.ctx, m.provider, ledger.NewSystemAccount(0)))
	payerBefore := m.balance(t, m.payer)
	vaultBefore := m.balance(t, m.vault)

	err := m.buy(t, buyAmount, 0)
	assert.ErrorIs(t, err, ledger.ErrRentExemption)

	assert.Equal(t, uint64(0), m.tokens(t))
	assert.Equal(t, uint64(0), m.supply(t))
	assert.Equal(t, payerBefore, m.balance(t, m.payer))
	assert.Equal(t, vaultBefore, m.balance(t, m.vault))

	// nothing settled
	assert.Zero(t, testutil.ToFloat64(m.metrics.Instructions.WithLabelValues("buy", "ok")))
	assert.Zero(t, testutil.ToFloat64(m.metrics.Tokens.WithLabelValues("buy")))
	assert.Zero(t, testutil.ToFloat64(m.metrics.Lamports.WithLabelValues("buy")))
}

func TestBuyNeedsFundedCollector(t *testing.T) {
	m := newMarket(t)
	m.collector = solana.NewWallet().PublicKey()
	m.initialize(t)

	// a 2 lamport pool fee cannot keep an empty collector alive
	err := m.buy(t, buyAmount, 0)
	assert.ErrorIs(t, err, ledger.ErrRentExemption)
	assert.Equal(t, uint64(0), m.balance(t, m.collector))

	m.fund(t, m.collector, exemption)
	require.NoError(t, m.buy(t, buyAmount, buyTokens))
	assert.Equal(t, uint64(exemption+2), m.balance(t, m.collector))
}

func TestSwapValidation(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(m *market, accounts []*pkg.AccountInfo)
		want   bancor.Error
	}{
		{"payer not signer", func(m *market, a []*pkg.AccountInfo) { a[0].IsSigner = false }, bancor.ErrSignatureRequired},
		{"payer owner", func(m *market, a []*pkg.AccountInfo) { a[0].Owner = solana.TokenProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"payer address", func(m *market, a []*pkg.AccountInfo) { a[0].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"token account owner", func(m *market, a []*pkg.AccountInfo) { a[1].Owner = solana.SystemProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"token account address", func(m *market, a []*pkg.AccountInfo) { a[1].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"pool owner", func(m *market, a []*pkg.AccountInfo) { a[2].Owner = solana.SystemProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"pool address", func(m *market, a []*pkg.AccountInfo) { a[2].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"pool data", func(m *market, a []*pkg.AccountInfo) {
			a[2].Data = append([]byte{2}, a[2].Data[1:]...)
		}, bancor.ErrInvalidAccountData},
		{"pool uninitialized", func(m *market, a []*pkg.AccountInfo) {
			a[2].Data = append([]byte{0}, a[2].Data[1:]...)
		}, bancor.ErrUninitializedAccount},
		{"vault address", func(m *market, a []*pkg.AccountInfo) { a[3].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"vault owner", func(m *market, a []*pkg.AccountInfo) { a[3].Owner = solana.TokenProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"mint address", func(m *market, a []*pkg.AccountInfo) { a[4].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"mint owner", func(m *market, a []*pkg.AccountInfo) { a[4].Owner = solana.SystemProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"mint authority", func(m *market, a []*pkg.AccountInfo) {
			var mint sol.Mint
			_ = mint.Decode(a[4].Data)
			other := solana.NewWallet().PublicKey()
			mint.MintAuthority = &other
			a[4].Data = mint.Encode()
		}, bancor.ErrInvalidMint},
		{"mint uninitialized", func(m *market, a []*pkg.AccountInfo) {
			var mint sol.Mint
			_ = mint.Decode(a[4].Data)
			mint.IsInitialized = false
			a[4].Data = mint.Encode()
		}, bancor.ErrInvalidMint},
	}

	for _, tt := range tests {
		t.Run("buy "+tt.name, func(t *testing.T) {
			m := newMarket(t)
			m.initialize(t)
			inst, err := bancor.NewBuyInstruction(m.proc.ProgramID(), m.swapAccounts(), buyAmount, 0)
			require.NoError(t, err)
			accounts, data := m.snapshot(t, inst)
			tt.tamper(m, accounts)
			_, err = m.proc.Process(m.ctx, m.ledger, accounts, data)
			assert.ErrorIs(t, err, tt.want)
		})
		t.Run("sell "+tt.name, func(t *testing.T) {
			m := newMarket(t)
			m.initialize(t)
			require.NoError(t, m.buy(t, buyAmount, 0))
			inst, err := bancor.NewSellInstruction(m.proc.ProgramID(), m.swapAccounts(), 1000, 0)
			require.NoError(t, err)
			accounts, data := m.snapshot(t, inst)
			tt.tamper(m, accounts)
			_, err = m.proc.Process(m.ctx, m.ledger, accounts, data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuyCollectorValidation(t *testing.T) {
	tests := []struct {
		name   string
		index  int
		tamper func(a *pkg.AccountInfo)
		want   bancor.Error
	}{
		{"fee collector address", 5, func(a *pkg.AccountInfo) { a.Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"fee collector owner", 5, func(a *pkg.AccountInfo) { a.Owner = solana.TokenProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"provider address", 6, func(a *pkg.AccountInfo) { a.Key = bancor.PROVIDER_FEE_COLLECTOR_ID }, bancor.ErrInvalidAccountAddress},
		{"provider owner", 6, func(a *pkg.AccountInfo) { a.Owner = solana.TokenProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"system program", 7, func(a *pkg.AccountInfo) { a.Key = solana.TokenProgramID }, bancor.ErrInvalidProgramAddress},
		{"token program", 8, func(a *pkg.AccountInfo) { a.Key = solana.SystemProgramID }, bancor.ErrInvalidProgramAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMarket(t)
			m.initialize(t)
			inst, err := bancor.NewBuyInstruction(m.proc.ProgramID(), m.swapAccounts(), buyAmount, 0)
			require.NoError(t, err)
			accounts, data := m.snapshot(t, inst)
			tt.tamper(accounts[tt.index])
			_, err = m.proc.Process(m.ctx, m.ledger, accounts, data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSell(t *testing.T) {
	m := newMarket(t)
	m.initialize(t)
	require.NoError(t, m.buy(t, buyAmount, 0))

	payerBefore := m.balance(t, m.payer)
	vaultBefore := m.balance(t, m.vault)
	providerBefore := m.balance(t, m.provider)

	require.NoError(t, m.sell(t, buyTokens, 95))

	assert.Equal(t, uint64(0), m.tokens(t))
	assert.Equal(t, uint64(0), m.supply(t))
	assert.Equal(t, payerBefore+95, m.balance(t, m.payer))
	assert.Equal(t, providerBefore, m.balance(t, m.provider))
	assert.Equal(t, vaultBefore-95, m.balance(t, m.vault))
	assert.GreaterOrEqual(t, m.balance(t, m.vault), uint64(bancor.BootstrapCollateral+exemption))
}

func TestSellRejections(t *testing.T) {
	m := newMarket(t)
	m.initialize(t)
	require.NoError(t, m.buy(t, buyAmount, 0))

	err := m.sell(t, buyTokens+1, 0)
	assert.ErrorIs(t, err, bancor.ErrBalanceTooSmall)

	err = m.sell(t, buyTokens, 96)
	assert.ErrorIs(t, err, bancor.ErrExceededSlippage)
	assert.Equal(t, uint64(buyTokens), m.tokens(t))
	assert.Equal(t, uint64(buyTokens), m.supply(t))
}

func TestSellReserveGuard(t *testing.T) {
	m := newMarket(t)
	m.initialize(t)
	require.NoError(t, m.buy(t, buyAmount, 0))

	// tokens minted without paying into the reserve
	holder := solana.NewWallet().PublicKey()
	holderATA, _, err := solana.FindAssociatedTokenAddress(holder, m.mint)
	require.NoError(t, err)
	m.fund(t, holder, lamportsPerSol)
	require.NoError(t, m.ledger.SetAccount(m.ctx, holderATA, ledger.NewTokenAccount(m.mint, holder, 5_000_000_000)))
	mintAcc, err := m.ledger.Account(m.ctx, m.mint)
	require.NoError(t, err)
	var mint sol.Mint
	require.NoError(t, mint.Decode(mintAcc.Data))
	mint.Supply += 5_000_000_000
	mintAcc.Data = mint.Encode()
	require.NoError(t, m.ledger.SetAccount(m.ctx, m.mint, mintAcc))

	inst, err := bancor.NewSellInstruction(m.proc.ProgramID(), bancor.SwapAccounts{
		User:                 holder,
		Mint:                 m.mint,
		ProviderFeeCollector: m.provider,
	}, 5_000_000_001, 0)
	require.NoError(t, err)
	err = m.ledger.Execute(m.ctx, inst, holder)
	assert.ErrorIs(t, err, bancor.ErrBalanceTooSmall)

	inst, err = bancor.NewSellInstruction(m.proc.ProgramID(), bancor.SwapAccounts{
		User:                 holder,
		Mint:                 m.mint,
		ProviderFeeCollector: m.provider,
	}, 5_000_000_000, 0)
	require.NoError(t, err)
	err = m.ledger.Execute(m.ctx, inst, holder)
	assert.ErrorIs(t, err, bancor.ErrReserveError)
}

func (m *market) changeFee(t *testing.T, signer, next solana.PublicKey, fee uint16) error {
	t.Helper()
	inst, err := bancor.NewChangeFeeInstruction(m.proc.ProgramID(), bancor.ChangeFeeAccounts{
		FeeCollector:    signer,
		NewFeeCollector: next,
		Mint:            m.mint,
	}, fee)
	require.NoError(t, err)
	return m.ledger.Execute(m.ctx, inst, signer)
}

func (m *market) poolState(t *testing.T) *bancor.PoolState {
	t.Helper()
	acc, err := m.ledger.Account(m.ctx, m.pool)
	require.NoError(t, err)
	state, err := bancor.LoadPoolState(acc.Data)
	require.NoError(t, err)
	return state
}

func TestChangeFee(t *testing.T) {
	m := newMarket(t)
	m.initialize(t)

	require.NoError(t, m.changeFee(t, m.collector, m.collector, 0))
	assert.Equal(t, uint16(0), m.poolState(t).Fee)

	require.NoError(t, m.changeFee(t, m.collector, m.collector, bancor.MaxFee))
	assert.Equal(t, bancor.MaxFee, m.poolState(t).Fee)

	err := m.changeFee(t, m.collector, m.collector, bancor.MaxFee+1)
	assert.ErrorIs(t, err, bancor.ErrInvalidFee)
	assert.Equal(t, bancor.MaxFee, m.poolState(t).Fee)

	next := solana.NewWallet().PublicKey()
	collectorBefore := m.balance(t, m.collector)
	require.NoError(t, m.changeFee(t, m.collector, next, 1000))
	state := m.poolState(t)
	assert.True(t, state.FeeCollector.Equals(next))
	assert.Equal(t, uint16(1000), state.Fee)
	assert.Equal(t, uint64(exemption), m.balance(t, next))
	assert.Equal(t, collectorBefore-exemption, m.balance(t, m.collector))

	// the previous collector lost its rights
	err = m.changeFee(t, m.collector, m.collector, 5)
	assert.ErrorIs(t, err, bancor.ErrInvalidAccountAddress)

	// buys now pay the new collector
	m.collector = next
	before := m.balance(t, next)
	require.NoError(t, m.buy(t, 100_000, 0))
	assert.Equal(t, before+1000, m.balance(t, next))
}

func TestChangeFeeRequiresCollectorSignature(t *testing.T) {
	m := newMarket(t)
	m.initialize(t)

	inst, err := bancor.NewChangeFeeInstruction(m.proc.ProgramID(), bancor.ChangeFeeAccounts{
		FeeCollector:    m.collector,
		NewFeeCollector: m.collector,
		Mint:            m.mint,
	}, 10)
	require.NoError(t, err)
	accounts, data := m.snapshot(t, inst)
	accounts[0].IsSigner = false
	_, err = m.proc.Process(m.ctx, m.ledger, accounts, data)
	assert.ErrorIs(t, err, bancor.ErrInvalidFeeAccount)

	accounts, data = m.snapshot(t, inst)
	accounts[1].Lamports = 1
	accounts[1].Owner = solana.TokenProgramID
	_, err = m.proc.Process(m.ctx, m.ledger, accounts, data)
	assert.ErrorIs(t, err, bancor.ErrInvalidAccountOwnerProgram)

	accounts, data = m.snapshot(t, inst)
	accounts[4].Key = solana.TokenProgramID
	_, err = m.proc.Process(m.ctx, m.ledger, accounts, data)
	assert.ErrorIs(t, err, bancor.ErrInvalidProgramAddress)
}

func TestChangeFeeValidation(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(m *market, accounts []*pkg.AccountInfo)
		want   bancor.Error
	}{
		{"collector owner", func(m *market, a []*pkg.AccountInfo) { a[0].Owner = solana.TokenProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"collector address", func(m *market, a []*pkg.AccountInfo) { a[0].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"pool owner", func(m *market, a []*pkg.AccountInfo) { a[2].Owner = solana.SystemProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"pool address", func(m *market, a []*pkg.AccountInfo) { a[2].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"pool of another mint", func(m *market, a []*pkg.AccountInfo) {
			a[2].Key, _, _ = bancor.DerivePoolAddress(m.proc.ProgramID(), solana.NewWallet().PublicKey())
		}, bancor.ErrInvalidAccountAddress},
		{"pool data", func(m *market, a []*pkg.AccountInfo) {
			a[2].Data = append([]byte{2}, a[2].Data[1:]...)
		}, bancor.ErrInvalidAccountData},
		{"mint address", func(m *market, a []*pkg.AccountInfo) { a[3].Key = solana.NewWallet().PublicKey() }, bancor.ErrInvalidAccountAddress},
		{"mint owner", func(m *market, a []*pkg.AccountInfo) { a[3].Owner = solana.SystemProgramID }, bancor.ErrInvalidAccountOwnerProgram},
		{"mint authority", func(m *market, a []*pkg.AccountInfo) {
			var mint sol.Mint
			_ = mint.Decode(a[3].Data)
			other := solana.NewWallet().PublicKey()
			mint.MintAuthority = &other
			a[3].Data = mint.Encode()
		}, bancor.ErrInvalidMint},
		{"mint uninitialized", func(m *market, a []*pkg.AccountInfo) {
			var mint sol.Mint
			_ = mint.Decode(a[3].Data)
			mint.IsInitialized = false
			a[3].Data = mint.Encode()
		}, bancor.ErrInvalidMint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMarket(t)
			m.initialize(t)
			before := m.poolState(t)

			next := solana.NewWallet().PublicKey()
			inst, err := bancor.NewChangeFeeInstruction(m.proc.ProgramID(), bancor.ChangeFeeAccounts{
				FeeCollector:    m.collector,
				NewFeeCollector: next,
				Mint:            m.mint,
			}, before.Fee+1)
			require.NoError(t, err)
			accounts, data := m.snapshot(t, inst)
			tt.tamper(m, accounts)

			batch, err := m.proc.Process(m.ctx, m.ledger, accounts, data)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, batch)

			after := m.poolState(t)
			assert.Equal(t, before.Fee, after.Fee)
			assert.True(t, after.FeeCollector.Equals(m.collector))
			assert.Equal(t, uint64(0), m.balance(t, next))
		})
	}
}

func TestProcessRejectsBadInstruction(t *testing.T) {
	m := newMarket(t)
	_, err := m.proc.Process(m.ctx, m.ledger, nil, []byte{9})
	assert.ErrorIs(t, err, bancor.ErrInvalidInstruction)
	_, err = m.proc.Process(m.ctx, m.ledger, nil, nil)
	assert.ErrorIs(t, err, bancor.ErrInvalidInstruction)
	_, err = m.proc.Process(m.ctx, m.ledger, nil, []byte{1, 0})
	assert.ErrorIs(t, err, bancor.ErrInvalidInstruction)
}
