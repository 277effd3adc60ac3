// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saravmajestic/passguess/internal/store"
)

// setupPostgresContainer starts PostgreSQL, applies migrations and connects.
func setupPostgresContainer() (*store.PostgresStore, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("passguess_test"),
		postgres.WithUsername("passguess"),
		postgres.WithPassword("passguess"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	_ = migrator.Close()

	pg, err := store.Connect(ctx, connStr, store.ConnectOptions{Timeout: 30 * time.Second})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		pg.Close()
		_ = container.Terminate(ctx)
	}
	return pg, cleanup, nil
}

var _ = Describe("PostgresStore", Ordered, func() {
	var (
		pg      *store.PostgresStore
		cleanup func()
		ctx     context.Context
	)

	BeforeAll(func() {
		var err error
		pg, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterAll(func() {
		if cleanup != nil {
			cleanup()
		}
	})

	receipt := func(account, method string, logs ...string) store.Receipt {
		return store.Receipt{
			ID:        ulid.Make(),
			AccountID: account,
			Method:    method,
			Kind:      "call",
			Logs:      logs,
			Success:   true,
			GasBurnt:  42,
			CreatedAt: time.Now().UTC(),
		}
	}

	It("creates state exactly once", func() {
		rec := store.Record{AccountID: "once.test", Code: "password", State: []byte{0, 0, 0, 0}}
		Expect(pg.Create(ctx, rec, receipt("once.test", "new"))).To(Succeed())

		err := pg.Create(ctx, rec, receipt("once.test", "new"))
		Expect(err).To(MatchError(store.ErrAlreadyExists))
	})

	It("reports missing accounts", func() {
		_, err := pg.Get(ctx, "missing.test")
		Expect(err).To(MatchError(store.ErrNotFound))
	})

	It("commits state with receipts in order", func() {
		rec := store.Record{AccountID: "order.test", Code: "password", State: []byte("s0")}
		Expect(pg.Create(ctx, rec, receipt("order.test", "new"))).To(Succeed())

		got, err := pg.Get(ctx, "order.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Nonce).To(BeZero())

		Expect(pg.Commit(ctx, got, receipt("order.test", "guess_solution", "Wrong password"))).To(Succeed())
		got.Nonce++
		Expect(pg.Commit(ctx, got, receipt("order.test", "guess_solution", "Right password"))).To(Succeed())

		stale := got
		stale.Nonce = 0
		Expect(pg.Commit(ctx, stale, receipt("order.test", "guess_solution"))).To(MatchError(store.ErrConflict))

		receipts, err := pg.Receipts(ctx, "order.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(receipts).To(HaveLen(3))
		Expect(receipts[1].Logs).To(Equal([]string{"Wrong password"}))
		Expect(receipts[2].Logs).To(Equal([]string{"Right password"}))
	})

	It("lists receipts in insertion order when ids are out of order", func() {
		rec := store.Record{AccountID: "skew.test", Code: "password", State: []byte("s0")}
		Expect(pg.Create(ctx, rec, receipt("skew.test", "new"))).To(Succeed())

		late := receipt("skew.test", "guess_solution", "Wrong password")
		early := receipt("skew.test", "guess_solution", "Right password")
		early.ID = ulid.MustNew(ulid.Timestamp(time.Now().Add(-time.Hour)), nil)
		Expect(early.ID.Compare(late.ID)).To(Equal(-1))

		got, err := pg.Get(ctx, "skew.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(pg.Commit(ctx, got, late)).To(Succeed())
		Expect(pg.AppendReceipt(ctx, early)).To(Succeed())

		receipts, err := pg.Receipts(ctx, "skew.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(receipts).To(HaveLen(3))
		Expect(receipts[1].ID).To(Equal(late.ID))
		Expect(receipts[2].ID).To(Equal(early.ID))
	})

	It("round-trips state bytes exactly", func() {
		state := []byte{64, 0, 0, 0}
		state = append(state, "f84967f8893494c0723cb7d8c9360cbe6e9a77267f701ab55408e4b1cf1856e7"...)
		rec := store.Record{AccountID: "bytes.test", Code: "password", State: state}
		Expect(pg.Create(ctx, rec, receipt("bytes.test", "new"))).To(Succeed())

		got, err := pg.Get(ctx, "bytes.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.State).To(Equal(state))
	})
})
