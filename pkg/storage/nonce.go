// Copyright (C) 2025, Parami Foundation Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"sync"

	"github.com/holiman/uint256"
)

// NonceStore records replay nonces that have been consumed. Scope partitions
// the nonce space (per gateway instance, per bridge source domain).
type NonceStore interface {
	Used(scope string, nonce *uint256.Int) (bool, error)
	MarkUsed(scope string, nonce *uint256.Int) error
}

// MemNonceStore is the in-memory NonceStore for tests and ephemeral runs.
type MemNonceStore struct {
	mu   sync.RWMutex
	used map[string]struct{}
}

func NewMemNonceStore() *MemNonceStore {
	return &MemNonceStore{used: make(map[string]struct{})}
}

func (s *MemNonceStore) Used(scope string, nonce *uint256.Int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.used[nonceKey(scope, nonce)]
	return ok, nil
}

func (s *MemNonceStore) MarkUsed(scope string, nonce *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used[nonceKey(scope, nonce)] = struct{}{}
	return nil
}

// DBNonceStore persists consumed nonces so a restart cannot replay a
// withdrawal.
type DBNonceStore struct {
	store *Storage
}

func NewDBNonceStore(store *Storage) *DBNonceStore {
	return &DBNonceStore{store: store}
}

func (s *DBNonceStore) Used(scope string, nonce *uint256.Int) (bool, error) {
	return s.store.Has([]byte(nonceKey(scope, nonce)))
}

func (s *DBNonceStore) MarkUsed(scope string, nonce *uint256.Int) error {
	return s.store.Put([]byte(nonceKey(scope, nonce)), []byte{1})
}

func nonceKey(scope string, nonce *uint256.Int) string {
	return "nonce/" + scope + "/" + nonce.Hex()
}
