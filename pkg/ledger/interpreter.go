package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"lukechampine.com/uint128"

	"github.com/Solana-ZH/bondswap/pkg"
	"github.com/Solana-ZH/bondswap/pkg/sol"
)

// txContext stages the account changes of one transaction.
type txContext struct {
	ctx       context.Context
	store     Store
	programID solana.PublicKey
	metas     []*solana.AccountMeta
	byKey     map[solana.PublicKey]*solana.AccountMeta
	accounts  map[solana.PublicKey]*Account
	dirty     map[solana.PublicKey]bool
}

func newTxContext(ctx context.Context, store Store, programID solana.PublicKey, metas []*solana.AccountMeta) *txContext {
	tx := &txContext{
		ctx:       ctx,
		store:     store,
		programID: programID,
		metas:     metas,
		byKey:     make(map[solana.PublicKey]*solana.AccountMeta, len(metas)),
		accounts:  make(map[solana.PublicKey]*Account),
		dirty:     make(map[solana.PublicKey]bool),
	}
	for _, meta := range metas {
		// a key listed twice keeps the union of its flags
		if prev, ok := tx.byKey[meta.PublicKey]; ok {
			merged := *prev
			merged.IsSigner = merged.IsSigner || meta.IsSigner
			merged.IsWritable = merged.IsWritable || meta.IsWritable
			tx.byKey[meta.PublicKey] = &merged
			continue
		}
		tx.byKey[meta.PublicKey] = meta
	}
	return tx
}

func (tx *txContext) load(key solana.PublicKey) (*Account, error) {
	if acc, ok := tx.accounts[key]; ok {
		return acc, nil
	}
	acc, err := tx.store.Get(tx.ctx, key)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		acc = empty()
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	tx.accounts[key] = acc
	return acc, nil
}

// writable loads an account the transaction is allowed to modify.
func (tx *txContext) writable(key solana.PublicKey) (*Account, error) {
	meta, ok := tx.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotProvided, key)
	}
	if !meta.IsWritable {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, key)
	}
	acc, err := tx.load(key)
	if err != nil {
		return nil, err
	}
	tx.dirty[key] = true
	return acc, nil
}

func (tx *txContext) changes() map[solana.PublicKey]*Account {
	out := make(map[solana.PublicKey]*Account, len(tx.dirty))
	for key := range tx.dirty {
		out[key] = tx.accounts[key]
	}
	return out
}

func (tx *txContext) checkRent() error {
	for key := range tx.dirty {
		acc := tx.accounts[key]
		if !sol.RentExempt(acc.Lamports, uint64(len(acc.Data))) {
			return fmt.Errorf("%w: %s holds %d lamports", ErrRentExemption, key, acc.Lamports)
		}
	}
	return nil
}

// apply runs the invocations of batch in order, then its writes.
func (tx *txContext) apply(batch *pkg.Batch) error {
	if batch == nil {
		return nil
	}
	for i, inv := range batch.Invocations {
		signers := make(map[solana.PublicKey]bool)
		for key, meta := range tx.byKey {
			if meta.IsSigner {
				signers[key] = true
			}
		}
		if inv.Authority != nil {
			addr, err := inv.Authority.Address(tx.programID)
			if err != nil {
				return fmt.Errorf("invocation %d: derive authority: %w", i, err)
			}
			signers[addr] = true
		}
		if err := tx.invoke(inv.Instruction, signers); err != nil {
			return fmt.Errorf("invocation %d: %w", i, err)
		}
	}
	for _, w := range batch.Writes {
		acc, err := tx.writable(w.Account)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if !acc.Owner.Equals(tx.programID) {
			return fmt.Errorf("write %s: %w: owned by %s", w.Account, ErrReadOnly, acc.Owner)
		}
		if len(w.Data) != len(acc.Data) {
			return fmt.Errorf("write %s: %w: %d bytes into %d", w.Account, ErrInvalidAccount, len(w.Data), len(acc.Data))
		}
		copy(acc.Data, w.Data)
	}
	return nil
}

func (tx *txContext) invoke(inst solana.Instruction, signers map[solana.PublicKey]bool) error {
	programID := inst.ProgramID()
	if _, ok := tx.byKey[programID]; !ok {
		return fmt.Errorf("%w: program %s", ErrAccountNotProvided, programID)
	}
	metas := inst.Accounts()
	for _, meta := range metas {
		txMeta, ok := tx.byKey[meta.PublicKey]
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotProvided, meta.PublicKey)
		}
		if meta.IsWritable && !txMeta.IsWritable {
			return fmt.Errorf("%w: %s", ErrReadOnly, meta.PublicKey)
		}
		if meta.IsSigner && !signers[meta.PublicKey] {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.PublicKey)
		}
	}
	data, err := inst.Data()
	if err != nil {
		return err
	}

	switch {
	case programID.Equals(solana.SystemProgramID):
		return tx.applySystem(metas, data)
	case programID.Equals(solana.TokenProgramID):
		return tx.applyToken(metas, data, signers)
	}
	return fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
}

func (tx *txContext) applySystem(metas []*solana.AccountMeta, data []byte) error {
	decoded, err := system.DecodeInstruction(metas, data)
	if err != nil {
		return fmt.Errorf("decode system instruction: %w", err)
	}
	switch impl := decoded.Impl.(type) {
	case *system.Transfer:
		from, err := tx.writable(metas[0].PublicKey)
		if err != nil {
			return err
		}
		to, err := tx.writable(metas[1].PublicKey)
		if err != nil {
			return err
		}
		return transferLamports(from, to, *impl.Lamports)

	case *system.CreateAccount:
		funding, err := tx.writable(metas[0].PublicKey)
		if err != nil {
			return err
		}
		created, err := tx.writable(metas[1].PublicKey)
		if err != nil {
			return err
		}
		if created.Lamports > 0 || len(created.Data) > 0 || !created.Owner.Equals(solana.SystemProgramID) {
			return fmt.Errorf("%w: %s", ErrAccountInUse, metas[1].PublicKey)
		}
		if err := transferLamports(funding, created, *impl.Lamports); err != nil {
			return err
		}
		created.Data = make([]byte, *impl.Space)
		created.Owner = *impl.Owner
		return nil
	}
	return fmt.Errorf("%w: system %T", ErrUnknownInstruction, decoded.Impl)
}

func transferLamports(from, to *Account, lamports uint64) error {
	if !from.Owner.Equals(solana.SystemProgramID) || len(from.Data) > 0 {
		return fmt.Errorf("%w: transfer source must be a plain system account", ErrInvalidAccount)
	}
	if from.Lamports < lamports {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, lamports, from.Lamports)
	}
	sum := uint128.From64(to.Lamports).Add64(lamports)
	if sum.Hi != 0 {
		return fmt.Errorf("%w: lamport overflow", ErrInvalidAccount)
	}
	from.Lamports -= lamports
	to.Lamports = sum.Lo
	return nil
}

func (tx *txContext) applyToken(metas []*solana.AccountMeta, data []byte, signers map[solana.PublicKey]bool) error {
	decoded, err := token.DecodeInstruction(metas, data)
	if err != nil {
		return fmt.Errorf("decode token instruction: %w", err)
	}
	switch impl := decoded.Impl.(type) {
	case *token.InitializeMint:
		acc, err := tx.writable(metas[0].PublicKey)
		if err != nil {
			return err
		}
		if !acc.Owner.Equals(solana.TokenProgramID) || uint64(len(acc.Data)) != sol.MintSize {
			return fmt.Errorf("%w: %s is not a mint account", ErrInvalidAccount, metas[0].PublicKey)
		}
		var mint sol.Mint
		if err := mint.Decode(acc.Data); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
		}
		if mint.IsInitialized {
			return fmt.Errorf("%w: mint %s", ErrAccountInUse, metas[0].PublicKey)
		}
		authority := *impl.MintAuthority
		mint = sol.Mint{
			MintAuthority:   &authority,
			Decimals:        *impl.Decimals,
			IsInitialized:   true,
			FreezeAuthority: impl.FreezeAuthority,
		}
		copy(acc.Data, mint.Encode())
		return nil

	case *token.MintTo:
		mintAcc, mint, err := tx.loadMint(metas[0].PublicKey)
		if err != nil {
			return err
		}
		destAcc, dest, err := tx.loadHolding(metas[1].PublicKey, metas[0].PublicKey)
		if err != nil {
			return err
		}
		authority := metas[2].PublicKey
		if mint.MintAuthority == nil || !mint.MintAuthority.Equals(authority) || !signers[authority] {
			return fmt.Errorf("%w: mint authority %s", ErrMissingSignature, authority)
		}
		amount := *impl.Amount
		supply := uint128.From64(mint.Supply).Add64(amount)
		balance := uint128.From64(dest.Amount).Add64(amount)
		if supply.Hi != 0 || balance.Hi != 0 {
			return fmt.Errorf("%w: token amount overflow", ErrInvalidAccount)
		}
		mint.Supply = supply.Lo
		dest.Amount = balance.Lo
		copy(mintAcc.Data, mint.Encode())
		copy(destAcc.Data, dest.Encode())
		return nil

	case *token.Burn:
		sourceAcc, source, err := tx.loadHolding(metas[0].PublicKey, metas[1].PublicKey)
		if err != nil {
			return err
		}
		mintAcc, mint, err := tx.loadMint(metas[1].PublicKey)
		if err != nil {
			return err
		}
		owner := metas[2].PublicKey
		if !source.Owner.Equals(owner) || !signers[owner] {
			return fmt.Errorf("%w: token owner %s", ErrMissingSignature, owner)
		}
		amount := *impl.Amount
		if source.Amount < amount || mint.Supply < amount {
			return fmt.Errorf("%w: burn %d of %d", ErrInsufficientFunds, amount, source.Amount)
		}
		source.Amount -= amount
		mint.Supply -= amount
		copy(sourceAcc.Data, source.Encode())
		copy(mintAcc.Data, mint.Encode())
		return nil
	}
	return fmt.Errorf("%w: token %T", ErrUnknownInstruction, decoded.Impl)
}

func (tx *txContext) loadMint(key solana.PublicKey) (*Account, *sol.Mint, error) {
	acc, err := tx.writable(key)
	if err != nil {
		return nil, nil, err
	}
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, nil, fmt.Errorf("%w: %s is not owned by the token program", ErrInvalidAccount, key)
	}
	var mint sol.Mint
	if err := mint.Decode(acc.Data); err != nil || !mint.IsInitialized {
		return nil, nil, fmt.Errorf("%w: %s is not an initialized mint", ErrInvalidAccount, key)
	}
	return acc, &mint, nil
}

func (tx *txContext) loadHolding(key, mint solana.PublicKey) (*Account, *sol.TokenAccount, error) {
	acc, err := tx.writable(key)
	if err != nil {
		return nil, nil, err
	}
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, nil, fmt.Errorf("%w: %s is not owned by the token program", ErrInvalidAccount, key)
	}
	var holding sol.TokenAccount
	if err := holding.Decode(acc.Data); err != nil || holding.State != sol.AccountStateInitialized {
		return nil, nil, fmt.Errorf("%w: %s is not an initialized token account", ErrInvalidAccount, key)
	}
	if !holding.Mint.Equals(mint) {
		return nil, nil, fmt.Errorf("%w: %s holds another mint", ErrInvalidAccount, key)
	}
	return acc, &holding, nil
}
