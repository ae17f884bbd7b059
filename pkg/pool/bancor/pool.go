package bancor

import (
	"context"
	"fmt"

	cosmath "cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/Solana-ZH/bondswap/pkg"
	"github.com/Solana-ZH/bondswap/pkg/sol"
)

// Pool is the client view of one bonding-curve market. It mirrors the pool
// record plus the mint supply and vault balance it is priced against.
type Pool struct {
	PoolId               solana.PublicKey
	Mint                 solana.PublicKey
	Vault                solana.PublicKey
	State                PoolState
	Supply               uint64
	VaultLamports        uint64
	ExemptionMinimum     uint64
	ProgramID            solana.PublicKey
	ProviderFeeCollector solana.PublicKey
}

// NewPool builds the client view of the market for mint from a decoded pool
// record.
func NewPool(programID, mint solana.PublicKey, state PoolState) (*Pool, error) {
	poolID, err := poolAuthority(mint, state.BumpSeed).Address(programID)
	if err != nil {
		return nil, fmt.Errorf("derive pool address: %w", err)
	}
	vault, err := vaultAuthority(poolID, state.BumpSeedSol).Address(programID)
	if err != nil {
		return nil, fmt.Errorf("derive vault address: %w", err)
	}
	return &Pool{
		PoolId:               poolID,
		Mint:                 mint,
		Vault:                vault,
		State:                state,
		ExemptionMinimum:     sol.MinimumBalance(0),
		ProgramID:            programID,
		ProviderFeeCollector: PROVIDER_FEE_COLLECTOR_ID,
	}, nil
}

func (p *Pool) ProtocolName() pkg.ProtocolName {
	return pkg.ProtocolNameBancor
}

func (p *Pool) ProtocolType() pkg.ProtocolType {
	return pkg.ProtocolTypeBancor
}

func (p *Pool) GetProgramID() solana.PublicKey {
	return p.ProgramID
}

func (p *Pool) GetID() string {
	return p.PoolId.String()
}

// GetTokens returns the curve token and native SOL.
func (p *Pool) GetTokens() (baseMint, quoteMint string) {
	return p.Mint.String(), sol.NativeSOL.String()
}

func (p *Pool) curveState() CurveState {
	return CurveState{
		Supply:           p.Supply,
		VaultLamports:    p.VaultLamports,
		ExemptionMinimum: p.ExemptionMinimum,
		Fee:              p.State.Fee,
	}
}

// Refresh reloads the mint supply and vault balance.
func (p *Pool) Refresh(ctx context.Context, solClient *rpc.Client) error {
	results, err := solClient.GetMultipleAccountsWithOpts(ctx, []solana.PublicKey{p.Mint, p.Vault}, &rpc.GetMultipleAccountsOpts{
		Commitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return fmt.Errorf("failed to fetch market accounts: %w", err)
	}
	if results == nil || len(results.Value) != 2 || results.Value[0] == nil {
		return fmt.Errorf("mint %s not found", p.Mint)
	}

	var mint sol.Mint
	if err := mint.Decode(results.Value[0].Data.GetBinary()); err != nil {
		return fmt.Errorf("failed to decode mint %s: %w", p.Mint, err)
	}
	p.Supply = mint.Supply

	p.VaultLamports = 0
	if results.Value[1] != nil {
		p.VaultLamports = results.Value[1].Lamports
	}
	return nil
}

// isBuy reports whether inputMint is the SOL side of the market.
func (p *Pool) isBuy(inputMint string) (bool, error) {
	switch inputMint {
	case sol.NativeSOL.String(), sol.WSOL.String():
		return true, nil
	case p.Mint.String():
		return false, nil
	}
	return false, fmt.Errorf("mint %s is not traded by pool %s", inputMint, p.PoolId)
}

// Quote returns the amount received for inputAmount of inputMint, net of
// fees, after refreshing the market.
func (p *Pool) Quote(ctx context.Context, solClient *rpc.Client, inputMint string, inputAmount cosmath.Int) (cosmath.Int, error) {
	if solClient != nil {
		if err := p.Refresh(ctx, solClient); err != nil {
			return cosmath.Int{}, err
		}
	}
	return p.QuoteLocal(inputMint, inputAmount)
}

// QuoteLocal prices against the last fetched market state.
func (p *Pool) QuoteLocal(inputMint string, inputAmount cosmath.Int) (cosmath.Int, error) {
	if inputAmount.IsNegative() || !inputAmount.IsUint64() {
		return cosmath.Int{}, fmt.Errorf("input amount %s out of range", inputAmount)
	}
	buy, err := p.isBuy(inputMint)
	if err != nil {
		return cosmath.Int{}, err
	}
	if buy {
		q, err := QuoteBuy(p.curveState(), inputAmount.Uint64())
		if err != nil {
			return cosmath.Int{}, fmt.Errorf("quote buy: %w", err)
		}
		return cosmath.NewIntFromUint64(q.TokensOut), nil
	}
	q, err := QuoteSell(p.curveState(), inputAmount.Uint64())
	if err != nil {
		return cosmath.Int{}, fmt.Errorf("quote sell: %w", err)
	}
	return cosmath.NewIntFromUint64(q.NetOut), nil
}

// BuildSwapInstructions returns the Buy or Sell instruction for the trade.
// The caller's associated token account must already exist.
func (p *Pool) BuildSwapInstructions(
	ctx context.Context,
	solClient *rpc.Client,
	user solana.PublicKey,
	inputMint string,
	inputAmount cosmath.Int,
	minOut cosmath.Int,
) ([]solana.Instruction, error) {
	if !inputAmount.IsUint64() || !minOut.IsUint64() {
		return nil, fmt.Errorf("swap amounts out of range")
	}
	buy, err := p.isBuy(inputMint)
	if err != nil {
		return nil, err
	}
	accounts := SwapAccounts{
		User:                 user,
		Mint:                 p.Mint,
		FeeCollector:         p.State.FeeCollector,
		ProviderFeeCollector: p.ProviderFeeCollector,
	}

	var inst solana.Instruction
	if buy {
		inst, err = NewBuyInstruction(p.ProgramID, accounts, inputAmount.Uint64(), minOut.Uint64())
	} else {
		inst, err = NewSellInstruction(p.ProgramID, accounts, inputAmount.Uint64(), minOut.Uint64())
	}
	if err != nil {
		return nil, fmt.Errorf("build swap instruction: %w", err)
	}
	return []solana.Instruction{inst}, nil
}
