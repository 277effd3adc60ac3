// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saravmajestic/passguess/internal/store"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()

	_, err := s.Get(ctx, "alice.test")
	require.ErrorIs(t, err, store.ErrNotFound)

	rec := store.Record{AccountID: "alice.test", Code: "password", State: []byte("v1")}
	require.NoError(t, s.Create(ctx, rec, store.Receipt{ID: ulid.Make(), AccountID: "alice.test", Method: "new"}))

	err = s.Create(ctx, rec, store.Receipt{AccountID: "alice.test"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	got, err := s.Get(ctx, "alice.test")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.Nonce)

	got.State = []byte("v2")
	require.NoError(t, s.Commit(ctx, got, store.Receipt{AccountID: "alice.test", Method: "guess_solution", Logs: []string{"Wrong password"}}))

	// Committing with the old nonce again must fail.
	err = s.Commit(ctx, got, store.Receipt{AccountID: "alice.test"})
	require.ErrorIs(t, err, store.ErrConflict)

	after, err := s.Get(ctx, "alice.test")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), after.State)
	assert.Equal(t, uint64(1), after.Nonce)
	assert.Equal(t, "password", after.Code)

	receipts, err := s.Receipts(ctx, "alice.test")
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "new", receipts[0].Method)
	assert.Equal(t, []string{"Wrong password"}, receipts[1].Logs)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	state := []byte("abc")
	require.NoError(t, s.Create(ctx, store.Record{AccountID: "a.test", State: state}, store.Receipt{AccountID: "a.test"}))
	state[0] = 'X'

	got, err := s.Get(ctx, "a.test")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got.State)

	got.State[0] = 'Y'
	again, err := s.Get(ctx, "a.test")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again.State)
}

func TestMemoryStore_CommitUnknownAccount(t *testing.T) {
	s := store.NewMemoryStore()
	err := s.Commit(context.Background(), store.Record{AccountID: "ghost.test"}, store.Receipt{})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStore_ReceiptsEmpty(t *testing.T) {
	s := store.NewMemoryStore()
	got, err := s.Receipts(context.Background(), "none.test")
	require.NoError(t, err)
	assert.Empty(t, got)
}
