// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package store persists contract state and execution receipts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// Sentinel errors returned by Store implementations.
var (
	ErrNotFound      = errors.New("account not found")
	ErrAlreadyExists = errors.New("account already initialized")
	ErrConflict      = errors.New("state changed concurrently")
)

// Record is the persisted state of one contract account.
type Record struct {
	AccountID string
	Code      string
	State     []byte
	// Nonce counts committed transitions and guards Commit against lost updates.
	Nonce     uint64
	UpdatedAt time.Time
}

// Receipt records the outcome of one executed deploy or call.
type Receipt struct {
	ID        ulid.ULID
	AccountID string
	Method    string
	Kind      string
	Logs      []string
	Success   bool
	ErrorCode string
	GasBurnt  uint64
	CreatedAt time.Time
}

// Store persists contract records and receipts.
type Store interface {
	// Create inserts a new record together with its deploy receipt.
	// Returns ErrAlreadyExists if the account already has state.
	Create(ctx context.Context, rec Record, receipt Receipt) error

	// Get returns the record for account, or ErrNotFound.
	Get(ctx context.Context, account string) (Record, error)

	// Commit replaces the state of rec.AccountID and appends receipt in one
	// atomic step. rec.Nonce must equal the stored nonce, otherwise
	// ErrConflict is returned and nothing is written.
	Commit(ctx context.Context, rec Record, receipt Receipt) error

	// AppendReceipt records a receipt without touching state.
	AppendReceipt(ctx context.Context, receipt Receipt) error

	// Receipts returns all receipts of account in execution order.
	Receipts(ctx context.Context, account string) ([]Receipt, error)

	// Close releases resources held by the store.
	Close()
}
