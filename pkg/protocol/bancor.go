package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/Solana-ZH/bondswap/pkg"
	"github.com/Solana-ZH/bondswap/pkg/pool/bancor"
	"github.com/Solana-ZH/bondswap/pkg/sol"
)

// BancorProtocol implements Protocol for bonding-curve markets. Every market
// pairs one program-issued token with native SOL, so pools are found by
// deriving the pool address from the token mint.
type BancorProtocol struct {
	SolClient            *sol.Client
	ProgramID            solana.PublicKey
	ProviderFeeCollector solana.PublicKey
}

func NewBancor(solClient *sol.Client, programID, providerFeeCollector solana.PublicKey) *BancorProtocol {
	return &BancorProtocol{
		SolClient:            solClient,
		ProgramID:            programID,
		ProviderFeeCollector: providerFeeCollector,
	}
}

// FetchPoolsByPair returns the market for the pair when one side is SOL.
func (p *BancorProtocol) FetchPoolsByPair(ctx context.Context, baseMint string, quoteMint string) ([]pkg.Pool, error) {
	var tokenMint string
	switch {
	case isSOL(quoteMint):
		tokenMint = baseMint
	case isSOL(baseMint):
		tokenMint = quoteMint
	default:
		return nil, nil
	}
	mint, err := solana.PublicKeyFromBase58(tokenMint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address: %w", err)
	}
	pool, err := p.FetchPoolByMint(ctx, mint)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, nil
	}
	return []pkg.Pool{pool}, nil
}

// FetchPoolByMint loads the market issuing mint. It returns nil when the
// pool account does not exist.
func (p *BancorProtocol) FetchPoolByMint(ctx context.Context, mint solana.PublicKey) (*bancor.Pool, error) {
	poolID, _, err := bancor.DerivePoolAddress(p.ProgramID, mint)
	if err != nil {
		return nil, fmt.Errorf("derive pool address: %w", err)
	}
	account, err := p.SolClient.RpcClient.GetAccountInfo(ctx, poolID)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pool account %s: %w", poolID, err)
	}
	return p.load(ctx, mint, account.Value)
}

// FetchPoolByID loads a market by its pool address. The mint is the one
// whose mint authority is the pool.
func (p *BancorProtocol) FetchPoolByID(ctx context.Context, poolID string) (pkg.Pool, error) {
	poolKey, err := solana.PublicKeyFromBase58(poolID)
	if err != nil {
		return nil, fmt.Errorf("invalid pool id: %w", err)
	}
	account, err := p.SolClient.RpcClient.GetAccountInfo(ctx, poolKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool account %s: %w", poolID, err)
	}

	layout := &sol.Mint{}
	mints, err := p.SolClient.RpcClient.GetProgramAccountsWithOpts(ctx, solana.TokenProgramID, &rpc.GetProgramAccountsOpts{
		Filters: []rpc.RPCFilter{
			{
				DataSize: layout.Span(),
			},
			{
				Memcmp: &rpc.RPCFilterMemcmp{
					Offset: layout.Offset("MintAuthority"),
					Bytes:  poolKey.Bytes(),
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find mint of pool %s: %w", poolID, err)
	}
	for _, m := range mints {
		pool, err := p.load(ctx, m.Pubkey, account.Value)
		if err != nil {
			continue
		}
		if pool.PoolId.Equals(poolKey) {
			return pool, nil
		}
	}
	return nil, fmt.Errorf("no mint is issued by pool %s", poolID)
}

func (p *BancorProtocol) load(ctx context.Context, mint solana.PublicKey, account *rpc.Account) (*bancor.Pool, error) {
	if account == nil {
		return nil, fmt.Errorf("pool account of mint %s not found", mint)
	}
	if !account.Owner.Equals(p.ProgramID) {
		return nil, fmt.Errorf("pool account of mint %s is owned by %s", mint, account.Owner)
	}
	state, err := bancor.LoadPoolState(account.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("failed to decode pool of mint %s: %w", mint, err)
	}
	pool, err := bancor.NewPool(p.ProgramID, mint, *state)
	if err != nil {
		return nil, err
	}
	pool.ProviderFeeCollector = p.ProviderFeeCollector
	if err := pool.Refresh(ctx, p.SolClient.RpcClient); err != nil {
		return nil, err
	}
	return pool, nil
}

func isSOL(mint string) bool {
	return mint == sol.NativeSOL.String() || mint == sol.WSOL.String()
}
