package bancor

import (
	"github.com/gagliardetto/solana-go"

	"github.com/Solana-ZH/bondswap/pkg"
	"github.com/Solana-ZH/bondswap/pkg/sol"
)

// DerivePoolAddress finds the pool address of a mint and its bump.
func DerivePoolAddress(programID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{mint.Bytes()}, programID)
}

// DeriveVaultAddress finds the reserve vault address of a pool and its bump.
func DeriveVaultAddress(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{pool.Bytes()}, programID)
}

func poolAuthority(mint solana.PublicKey, bump uint8) pkg.Authority {
	return pkg.Authority{Seeds: [][]byte{mint.Bytes()}, Bump: bump}
}

func vaultAuthority(pool solana.PublicKey, bump uint8) pkg.Authority {
	return pkg.Authority{Seeds: [][]byte{pool.Bytes()}, Bump: bump}
}

type accountIter struct {
	accounts []*pkg.AccountInfo
	pos      int
}

func (it *accountIter) next() (*pkg.AccountInfo, error) {
	if it.pos >= len(it.accounts) {
		return nil, ErrNotEnoughAccountKeys
	}
	acc := it.accounts[it.pos]
	it.pos++
	return acc, nil
}

// take pulls the next len(dst) accounts in order.
func (it *accountIter) take(dst ...**pkg.AccountInfo) error {
	for _, d := range dst {
		acc, err := it.next()
		if err != nil {
			return err
		}
		*d = acc
	}
	return nil
}

func requireSigner(acc *pkg.AccountInfo, err Error) error {
	if !acc.IsSigner {
		return err
	}
	return nil
}

func requireOwner(acc *pkg.AccountInfo, owner solana.PublicKey) error {
	if !acc.Owner.Equals(owner) {
		return ErrInvalidAccountOwnerProgram
	}
	return nil
}

func requireKey(acc *pkg.AccountInfo, key solana.PublicKey) error {
	if !acc.Key.Equals(key) {
		return ErrInvalidAccountAddress
	}
	return nil
}

func requireProgram(acc *pkg.AccountInfo, programID solana.PublicKey) error {
	if !acc.Key.Equals(programID) {
		return ErrInvalidProgramAddress
	}
	return nil
}

func requireUnused(acc *pkg.AccountInfo) error {
	if acc.Lamports > 0 {
		return ErrAlreadyInUse
	}
	return nil
}

// requireCollectorOwner accepts an unfunded collector with any owner.
func requireCollectorOwner(acc *pkg.AccountInfo) error {
	if acc.Lamports > 0 && !acc.Owner.Equals(solana.SystemProgramID) {
		return ErrInvalidAccountOwnerProgram
	}
	return nil
}

// loadPool checks the pool account against the mint and returns its record.
func (p *Processor) loadPool(pool, mint *pkg.AccountInfo) (*PoolState, error) {
	if err := requireOwner(pool, p.programID); err != nil {
		return nil, err
	}
	state, err := LoadPoolState(pool.Data)
	if err != nil {
		return nil, err
	}
	expected, err := poolAuthority(mint.Key, state.BumpSeed).Address(p.programID)
	if err != nil {
		return nil, ErrInvalidAccountAddress
	}
	if err := requireKey(pool, expected); err != nil {
		return nil, err
	}
	return state, nil
}

func (p *Processor) checkVault(vault, pool *pkg.AccountInfo, state *PoolState) error {
	expected, err := vaultAuthority(pool.Key, state.BumpSeedSol).Address(p.programID)
	if err != nil {
		return ErrInvalidAccountAddress
	}
	if err := requireKey(vault, expected); err != nil {
		return err
	}
	return requireOwner(vault, solana.SystemProgramID)
}

// loadMint decodes the mint and requires the pool to be its authority.
func loadMint(mint, pool *pkg.AccountInfo) (*sol.Mint, error) {
	if err := requireOwner(mint, solana.TokenProgramID); err != nil {
		return nil, err
	}
	var m sol.Mint
	if err := m.Decode(mint.Data); err != nil {
		return nil, ErrInvalidMint
	}
	if !m.IsInitialized || m.MintAuthority == nil || !m.MintAuthority.Equals(pool.Key) {
		return nil, ErrInvalidMint
	}
	return &m, nil
}

// checkTraderToken requires the token account to be the trader's associated
// token account for the mint.
func checkTraderToken(token, trader, mint *pkg.AccountInfo) error {
	if err := requireOwner(token, solana.TokenProgramID); err != nil {
		return err
	}
	expected, _, err := solana.FindAssociatedTokenAddress(trader.Key, mint.Key)
	if err != nil {
		return ErrInvalidAccountAddress
	}
	return requireKey(token, expected)
}

func loadTokenAccount(acc *pkg.AccountInfo) (*sol.TokenAccount, error) {
	var t sol.TokenAccount
	if err := t.Decode(acc.Data); err != nil {
		return nil, ErrInvalidAccountData
	}
	if t.State == sol.AccountStateUninitialized {
		return nil, ErrUninitializedAccount
	}
	return &t, nil
}
