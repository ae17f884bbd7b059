package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/gagliardetto/solana-go"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 1024

// PebbleStore persists accounts in a pebble database keyed by address, with
// a read-through LRU cache of decoded accounts.
type PebbleStore struct {
	mu    sync.RWMutex
	db    *pebble.DB
	cache *lru.Cache[solana.PublicKey, *Account]
}

// OpenPebbleStore opens or creates the database at dir.
func OpenPebbleStore(dir string, cacheSize int) (*PebbleStore, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[solana.PublicKey, *Account](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create account cache: %w", err)
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}
	return &PebbleStore{db: db, cache: cache}, nil
}

func (s *PebbleStore) Get(ctx context.Context, key solana.PublicKey) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	if acc, ok := s.cache.Get(key); ok {
		return acc.Clone(), nil
	}

	val, closer, err := s.db.Get(key[:])
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	defer closer.Close()

	acc, err := decodeAccount(val)
	if err != nil {
		return nil, fmt.Errorf("decode account %s: %w", key, err)
	}
	s.cache.Add(key, acc)
	return acc.Clone(), nil
}

func (s *PebbleStore) Commit(ctx context.Context, changes map[solana.PublicKey]*Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrStoreClosed
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	for key, acc := range changes {
		if acc == nil || acc.Lamports == 0 {
			if err := batch.Delete(key[:], nil); err != nil {
				return err
			}
			continue
		}
		val, err := encodeAccount(acc)
		if err != nil {
			return fmt.Errorf("encode account %s: %w", key, err)
		}
		if err := batch.Set(key[:], val, nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}

	for key, acc := range changes {
		if acc == nil || acc.Lamports == 0 {
			s.cache.Remove(key)
			continue
		}
		s.cache.Add(key, acc.Clone())
	}
	return nil
}

func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	s.cache.Purge()
	err := s.db.Close()
	s.db = nil
	return err
}
