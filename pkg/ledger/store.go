package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrStoreClosed     = errors.New("store is closed")
	ErrAccountNotFound = errors.New("account not found")
)

// Store persists accounts. Commit must apply all changes or none.
// A nil entry or an entry with zero lamports removes the account.
type Store interface {
	Get(ctx context.Context, key solana.PublicKey) (*Account, error)
	Commit(ctx context.Context, changes map[solana.PublicKey]*Account) error
	Close() error
}

// MemoryStore keeps accounts in a map.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
	closed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[solana.PublicKey]*Account)}
}

func (s *MemoryStore) Get(ctx context.Context, key solana.PublicKey) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	acc, ok := s.accounts[key]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) Commit(ctx context.Context, changes map[solana.PublicKey]*Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for key, acc := range changes {
		if acc == nil || acc.Lamports == 0 {
			delete(s.accounts, key)
			continue
		}
		s.accounts[key] = acc.Clone()
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
