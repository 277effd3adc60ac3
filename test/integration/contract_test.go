// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saravmajestic/passguess/contracts"
	"github.com/saravmajestic/passguess/internal/contract/password"
	"github.com/saravmajestic/passguess/internal/loader"
	"github.com/saravmajestic/passguess/internal/rpc"
	"github.com/saravmajestic/passguess/internal/runtime"
	"github.com/saravmajestic/passguess/internal/store"
	"github.com/saravmajestic/passguess/pkg/errutil"
)

const saravHash = "f84967f8893494c0723cb7d8c9360cbe6e9a77267f701ab55408e4b1cf1856e7"

// testEnv holds a migrated PostgreSQL database.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	connStr   string
	store     *store.PostgresStore
}

func setupTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	env := &testEnv{ctx: ctx, cancel: cancel}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("passguess_test"),
		postgres.WithUsername("passguess"),
		postgres.WithPassword("passguess"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.container = container

	env.connStr, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		env.cleanup()
		return nil, err
	}

	migrator, err := store.NewMigrator(env.connStr)
	if err != nil {
		env.cleanup()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		env.cleanup()
		return nil, err
	}
	_ = migrator.Close()

	env.store, err = store.Connect(ctx, env.connStr, store.ConnectOptions{Timeout: 30 * time.Second})
	if err != nil {
		env.cleanup()
		return nil, err
	}
	return env, nil
}

func (e *testEnv) cleanup() {
	if e.store != nil {
		e.store.Close()
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
	e.cancel()
}

// newRuntime builds a runtime over st with the built-in contracts.
func newRuntime(ctx context.Context, st store.Store) *runtime.Runtime {
	rt := runtime.New(st)
	l := loader.New(loader.WithNative(password.CodeName, password.Binding{}))
	codes, err := l.LoadAll(ctx, rt, contracts.FS)
	Expect(err).NotTo(HaveOccurred())
	Expect(codes).To(ContainElements("password", "password-lua"))
	return rt
}

var _ = Describe("Password contract on PostgreSQL", Ordered, func() {
	var (
		env *testEnv
		rt  *runtime.Runtime
	)

	BeforeAll(func() {
		var err error
		env, err = setupTestEnv()
		Expect(err).NotTo(HaveOccurred())
		rt = newRuntime(env.ctx, env.store)
	})

	AfterAll(func() {
		if env != nil {
			env.cleanup()
		}
	})

	deployArgs := func(hash string) []byte {
		data, err := json.Marshal(map[string]string{"solution": hash})
		Expect(err).NotTo(HaveOccurred())
		return data
	}
	guessArgs := func(candidate string) []byte {
		data, err := json.Marshal(map[string]string{"solution": candidate})
		Expect(err).NotTo(HaveOccurred())
		return data
	}

	for _, code := range []string{"password", "password-lua"} {
		It("runs the guess scenario with "+code, func() {
			account := code + ".scenario.test"
			_, err := rt.Deploy(env.ctx, account, code, deployArgs(saravHash), runtime.DefaultCallGas)
			Expect(err).NotTo(HaveOccurred())

			out, err := rt.Call(env.ctx, account, "guess_solution", guessArgs("wrong answer"), runtime.DefaultCallGas)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out.Result)).To(Equal("false"))

			out, err = rt.Call(env.ctx, account, "guess_solution", guessArgs("sarav"), runtime.DefaultCallGas)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out.Result)).To(Equal("true"))

			logs, err := rt.Logs(env.ctx, account)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(Equal([]string{"Wrong password", "Right password"}))

			view, err := rt.View(env.ctx, account, "get_solution", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(view.Result)).To(Equal(`"` + saravHash + `"`))
		})
	}

	It("rejects a second deploy", func() {
		_, err := rt.Deploy(env.ctx, "twice.test", "password", deployArgs(saravHash), runtime.DefaultCallGas)
		Expect(err).NotTo(HaveOccurred())

		_, err = rt.Deploy(env.ctx, "twice.test", "password", deployArgs("other"), runtime.DefaultCallGas)
		Expect(errutil.Code(err)).To(Equal(runtime.CodeAlreadyInitialized))

		view, err := rt.View(env.ctx, "twice.test", "get_solution", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(view.Result)).To(Equal(`"` + saravHash + `"`))
	})

	It("keeps state across runtime instances", func() {
		_, err := rt.Deploy(env.ctx, "restart.test", "password", deployArgs(saravHash), runtime.DefaultCallGas)
		Expect(err).NotTo(HaveOccurred())
		_, err = rt.Call(env.ctx, "restart.test", "guess_solution", guessArgs("sarav"), runtime.DefaultCallGas)
		Expect(err).NotTo(HaveOccurred())

		other, err := store.Connect(env.ctx, env.connStr, store.ConnectOptions{Timeout: 10 * time.Second})
		Expect(err).NotTo(HaveOccurred())
		defer other.Close()

		restarted := newRuntime(env.ctx, other)
		logs, err := restarted.Logs(env.ctx, "restart.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(logs).To(Equal([]string{"Right password"}))
	})

	It("records failed calls without changing state", func() {
		_, err := rt.Deploy(env.ctx, "failed.test", "password", deployArgs(saravHash), runtime.DefaultCallGas)
		Expect(err).NotTo(HaveOccurred())

		out, err := rt.Call(env.ctx, "failed.test", "guess_solution", guessArgs("sarav"), 1)
		Expect(errutil.Code(err)).To(Equal(runtime.CodeGasExceeded))
		Expect(out.GasBurnt).To(Equal(uint64(1)))

		receipts, err := rt.Receipts(env.ctx, "failed.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(receipts).To(HaveLen(2))
		Expect(receipts[1].Success).To(BeFalse())
		Expect(receipts[1].ErrorCode).To(Equal(runtime.CodeGasExceeded))

		rec, err := env.store.Get(env.ctx, "failed.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Nonce).To(BeZero())
	})

	It("detects conflicting commits from two hosts", func() {
		_, err := rt.Deploy(env.ctx, "race.test", "password", deployArgs(saravHash), runtime.DefaultCallGas)
		Expect(err).NotTo(HaveOccurred())

		second := newRuntime(env.ctx, env.store)
		hosts := []*runtime.Runtime{rt, second}

		const perHost = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for _, host := range hosts {
			wg.Add(1)
			go func(host *runtime.Runtime) {
				defer GinkgoRecover()
				defer wg.Done()
				for i := 0; i < perHost; i++ {
					_, err := host.Call(env.ctx, "race.test", "guess_solution", guessArgs("sarav"), runtime.DefaultCallGas)
					if err != nil {
						Expect(errutil.Code(err)).To(Equal(runtime.CodeStateConflict))
						continue
					}
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}(host)
		}
		wg.Wait()

		rec, err := env.store.Get(env.ctx, "race.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Nonce).To(Equal(uint64(succeeded)))

		logs, err := rt.Logs(env.ctx, "race.test")
		Expect(err).NotTo(HaveOccurred())
		Expect(logs).To(HaveLen(succeeded))
	})

	It("serves the RPC surface", func() {
		server := rpc.NewServer("127.0.0.1:0", rpc.NewHandler(rt))
		_, err := server.Start()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			Expect(server.Stop(context.Background())).To(Succeed())
		})
		base := "http://" + server.Addr() + "/v1/accounts/rpc.test"

		post := func(path, body string) (int, map[string]any) {
			resp, err := http.Post(base+path, "application/json", bytes.NewBufferString(body)) //nolint:noctx // test
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			var decoded map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
			return resp.StatusCode, decoded
		}

		status, _ := post("/deploy", `{"code":"password","args":{"solution":"`+saravHash+`"}}`)
		Expect(status).To(Equal(http.StatusCreated))

		status, body := post("/view/get_password_number", ``)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["result"]).To(BeNumerically("==", 1))

		status, body = post("/call/guess_solution", `{"args":{"solution":"sarav"}}`)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["result"]).To(BeTrue())
		Expect(body["logs"]).To(ConsistOf("Right password"))

		status, body = post("/deploy", `{"code":"password","args":{"solution":"x"}}`)
		Expect(status).To(Equal(http.StatusConflict))
		Expect(body["error"]).To(HaveKeyWithValue("code", runtime.CodeAlreadyInitialized))
	})
})
