package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Solana-ZH/bondswap/pkg"
	"github.com/Solana-ZH/bondswap/pkg/sol"
)

var (
	ErrUnknownProgram     = errors.New("unknown program")
	ErrUnknownInstruction = errors.New("unsupported instruction")
	ErrMissingSignature   = errors.New("missing required signature")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAccountInUse       = errors.New("account already in use")
	ErrRentExemption      = errors.New("account would not be rent exempt")
	ErrReadOnly           = errors.New("account is not writable")
	ErrAccountNotProvided = errors.New("account not provided to the transaction")
	ErrInvalidAccount     = errors.New("invalid account state")
)

// Ledger is a local single-node ledger. It executes one instruction at a time
// and commits its effects atomically.
type Ledger struct {
	mu       sync.Mutex
	store    Store
	programs map[solana.PublicKey]pkg.Program
	logger   *zap.Logger
}

type Option func(*Ledger)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		programs: make(map[solana.PublicKey]pkg.Program),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register makes program callable by its id.
func (l *Ledger) Register(program pkg.Program) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[program.ProgramID()] = program
}

// MinimumBalance implements pkg.Runtime.
func (l *Ledger) MinimumBalance(dataLen uint64) uint64 {
	return sol.MinimumBalance(dataLen)
}

// SetAccount overwrites an account outside of any transaction.
func (l *Ledger) SetAccount(ctx context.Context, key solana.PublicKey, acc *Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Commit(ctx, map[solana.PublicKey]*Account{key: acc})
}

// Account returns the stored account. Unknown addresses read as empty system
// accounts.
func (l *Ledger) Account(ctx context.Context, key solana.PublicKey) (*Account, error) {
	acc, err := l.store.Get(ctx, key)
	if errors.Is(err, ErrAccountNotFound) {
		return empty(), nil
	}
	return acc, err
}

func (l *Ledger) Balance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	acc, err := l.Account(ctx, key)
	if err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}

func (l *Ledger) Mint(ctx context.Context, key solana.PublicKey) (*sol.Mint, error) {
	acc, err := l.Account(ctx, key)
	if err != nil {
		return nil, err
	}
	var m sol.Mint
	if err := m.Decode(acc.Data); err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", key, err)
	}
	return &m, nil
}

func (l *Ledger) TokenAccount(ctx context.Context, key solana.PublicKey) (*sol.TokenAccount, error) {
	acc, err := l.Account(ctx, key)
	if err != nil {
		return nil, err
	}
	var t sol.TokenAccount
	if err := t.Decode(acc.Data); err != nil {
		return nil, fmt.Errorf("decode token account %s: %w", key, err)
	}
	return &t, nil
}

// Execute runs inst as a transaction signed by signers. Every account the
// instruction marks as a signer must be among them. On any error the ledger
// is left unchanged.
func (l *Ledger) Execute(ctx context.Context, inst solana.Instruction, signers ...solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	programID := inst.ProgramID()
	program, ok := l.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
	}
	data, err := inst.Data()
	if err != nil {
		return fmt.Errorf("instruction data: %w", err)
	}

	signed := make(map[solana.PublicKey]bool, len(signers))
	for _, s := range signers {
		signed[s] = true
	}

	tx := newTxContext(ctx, l.store, programID, inst.Accounts())
	infos := make([]*pkg.AccountInfo, 0, len(tx.metas))
	for _, meta := range tx.metas {
		if meta.IsSigner && !signed[meta.PublicKey] {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.PublicKey)
		}
		acc, err := tx.load(meta.PublicKey)
		if err != nil {
			return err
		}
		infos = append(infos, &pkg.AccountInfo{
			Key:        meta.PublicKey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Lamports:   acc.Lamports,
			Owner:      acc.Owner,
			Data:       append([]byte(nil), acc.Data...),
		})
	}

	batch, err := program.Process(ctx, l, infos, data)
	if err != nil {
		return err
	}
	if err := tx.apply(batch); err != nil {
		l.logger.Warn("batch rejected", zap.Stringer("program", programID), zap.Error(err))
		return err
	}
	if err := tx.checkRent(); err != nil {
		return err
	}
	if err := l.store.Commit(ctx, tx.changes()); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	batch.Committed()
	l.logger.Debug("transaction committed",
		zap.Stringer("program", programID),
		zap.Int("invocations", len(batch.Invocations)),
		zap.Int("writes", len(batch.Writes)),
	)
	return nil
}

func (l *Ledger) Close() error {
	return l.store.Close()
}
