// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package store

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/oops"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store. Values are copied on the way in and
// out so callers never share slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]Record
	receipts map[string][]Receipt
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]Record),
		receipts: make(map[string][]Receipt),
	}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, rec Record, receipt Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.AccountID]; ok {
		return oops.With("account", rec.AccountID).Wrap(ErrAlreadyExists)
	}
	s.records[rec.AccountID] = copyRecord(rec)
	s.receipts[rec.AccountID] = append(s.receipts[rec.AccountID], copyReceipt(receipt))
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, account string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[account]
	if !ok {
		return Record{}, oops.With("account", account).Wrap(ErrNotFound)
	}
	return copyRecord(rec), nil
}

// Commit implements Store.
func (s *MemoryStore) Commit(_ context.Context, rec Record, receipt Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[rec.AccountID]
	if !ok {
		return oops.With("account", rec.AccountID).Wrap(ErrNotFound)
	}
	if current.Nonce != rec.Nonce {
		return oops.With("account", rec.AccountID).
			With("expected_nonce", rec.Nonce).
			With("actual_nonce", current.Nonce).
			Wrap(ErrConflict)
	}

	next := copyRecord(rec)
	next.Nonce = current.Nonce + 1
	next.Code = current.Code
	s.records[rec.AccountID] = next
	s.receipts[rec.AccountID] = append(s.receipts[rec.AccountID], copyReceipt(receipt))
	return nil
}

// AppendReceipt implements Store.
func (s *MemoryStore) AppendReceipt(_ context.Context, receipt Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receipts[receipt.AccountID] = append(s.receipts[receipt.AccountID], copyReceipt(receipt))
	return nil
}

// Receipts implements Store.
func (s *MemoryStore) Receipts(_ context.Context, account string) ([]Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.receipts[account]
	out := make([]Receipt, len(src))
	for i, r := range src {
		out[i] = copyReceipt(r)
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() {}

func copyRecord(rec Record) Record {
	rec.State = slices.Clone(rec.State)
	return rec
}

func copyReceipt(r Receipt) Receipt {
	r.Logs = slices.Clone(r.Logs)
	return r
}
