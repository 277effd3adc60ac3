// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saravmajestic/passguess/internal/manifest"
	"github.com/saravmajestic/passguess/internal/runtime/capability"
	"github.com/saravmajestic/passguess/internal/store"
	"github.com/saravmajestic/passguess/pkg/errutil"
)

// HostVersion is checked against the requires constraint of manifests.
var HostVersion = semver.MustParse("1.0.0")

var tracer = otel.Tracer("passguess/runtime")

// accountPattern follows NEAR account id rules: lowercase alphanumeric
// parts separated by '.', '-' or '_'.
var accountPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

// Outcome is the result of an executed method.
type Outcome struct {
	// ReceiptID is zero for views, which leave no receipt.
	ReceiptID ulid.ULID
	Account   string
	Method    string
	Kind      MethodKind
	Result    json.RawMessage
	Logs      []string
	GasBurnt  uint64
}

type registration struct {
	contract Contract
	manifest *manifest.Manifest
}

// Runtime executes contracts against a Store.
type Runtime struct {
	store    store.Store
	enforcer *capability.Enforcer
	costs    Costs
	viewGas  uint64
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
	newID    func() ulid.ULID

	// exec serializes calls; views share it for reading.
	exec sync.RWMutex

	codesMu sync.RWMutex
	codes   map[string]registration
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithCosts replaces the gas schedule.
func WithCosts(c Costs) Option {
	return func(r *Runtime) { r.costs = c }
}

// WithViewGas sets the gas budget of views.
func WithViewGas(gas uint64) Option {
	return func(r *Runtime) { r.viewGas = gas }
}

// WithMetrics records invocations in m.
func WithMetrics(m *Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithClock sets the time source stamped on receipts.
func WithClock(now func() time.Time) Option {
	return func(r *Runtime) { r.now = now }
}

// New creates a Runtime over st.
func New(st store.Store, opts ...Option) *Runtime {
	r := &Runtime{
		store:    st,
		enforcer: capability.NewEnforcer(),
		costs:    DefaultCosts,
		viewGas:  DefaultViewGas,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    NewReceiptID,
		codes:    make(map[string]registration),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register makes contract code deployable under m.Name and grants it the
// manifest's capabilities.
func (r *Runtime) Register(c Contract, m *manifest.Manifest) error {
	if c == nil || m == nil {
		return oops.Code("REGISTER_INVALID").Errorf("contract and manifest are required")
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := m.CheckHost(HostVersion); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, method := range c.Methods() {
		if method.Kind != KindView && method.Kind != KindCall {
			return oops.Code("REGISTER_INVALID").With("code", m.Name).With("method", method.Name).
				Errorf("method kind must be view or call, got %q", method.Kind)
		}
		if method.Name == "" || method.Name == InitMethod || seen[method.Name] {
			return oops.Code("REGISTER_INVALID").With("code", m.Name).With("method", method.Name).
				Errorf("invalid or duplicate method name %q", method.Name)
		}
		seen[method.Name] = true
	}

	if err := r.enforcer.SetGrants(m.Name, m.Capabilities); err != nil {
		return err
	}

	r.codesMu.Lock()
	defer r.codesMu.Unlock()
	r.codes[m.Name] = registration{contract: c, manifest: m}

	r.logger.Debug("contract code registered",
		"code", m.Name,
		"version", m.Version,
		"runtime", string(m.Runtime))
	return nil
}

// Codes returns the registered manifests keyed by code name.
func (r *Runtime) Codes() map[string]*manifest.Manifest {
	r.codesMu.RLock()
	defer r.codesMu.RUnlock()

	out := make(map[string]*manifest.Manifest, len(r.codes))
	for name, reg := range r.codes {
		out[name] = reg.manifest
	}
	return out
}

// Deploy runs the initializer of code for account exactly once.
func (r *Runtime) Deploy(ctx context.Context, account, code string, args []byte, gas uint64) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "runtime.deploy", trace.WithAttributes(
		attribute.String("account", account),
		attribute.String("code", code),
	))
	defer func() { endSpan(span, out, err) }()

	if err := validateAccount(account); err != nil {
		return nil, err
	}
	reg, err := r.registration(code)
	if err != nil {
		return nil, err
	}

	r.exec.Lock()
	defer r.exec.Unlock()

	if _, err := r.store.Get(ctx, account); err == nil {
		return nil, alreadyInitialized(account)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, oops.With("account", account).Wrap(err)
	}

	env := newHostEnv(code, r.enforcer, r.costs, gas)
	var state []byte
	err = Guard(func() error {
		env.charge(r.costs.Base)
		if err := CheckArgs(InitMethod, args); err != nil {
			return err
		}
		var initErr error
		state, initErr = reg.contract.Init(env, args)
		if initErr != nil {
			return initErr
		}
		env.charge(linear(0, r.costs.StorageWritePerByte, len(state)))
		return nil
	})

	out = &Outcome{Account: account, Method: InitMethod, Kind: KindInit, Logs: env.logs, GasBurnt: env.burnt}
	if err != nil {
		r.metrics.observe(KindInit, InitMethod, errutil.Code(err), env.burnt)
		return out, oops.With("account", account).With("code", code).Wrap(err)
	}

	out.ReceiptID = r.newID()
	rec := store.Record{AccountID: account, Code: code, State: state}
	if err := r.store.Create(ctx, rec, r.receipt(out, nil)); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, alreadyInitialized(account)
		}
		errutil.LogError(r.logger, "failed to persist deploy", err)
		return nil, oops.With("account", account).Wrap(err)
	}

	r.metrics.observe(KindInit, InitMethod, "", env.burnt)
	r.logger.Info("contract deployed",
		"account", account,
		"code", code,
		"receipt_id", out.ReceiptID.String(),
		"gas_burnt", out.GasBurnt)
	return out, nil
}

// View runs a view method. Nothing is persisted and no receipt is written.
func (r *Runtime) View(ctx context.Context, account, method string, args []byte) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "runtime.view", trace.WithAttributes(
		attribute.String("account", account),
		attribute.String("method", method),
	))
	defer func() { endSpan(span, out, err) }()

	r.exec.RLock()
	defer r.exec.RUnlock()

	rec, reg, m, err := r.resolve(ctx, account, method)
	if err != nil {
		return nil, err
	}
	if m.Kind != KindView {
		return nil, oops.Code(CodeMethodNotView).
			With("account", account).
			With("method", method).
			Hint("use call for state-changing methods").
			Errorf("method %s is not a view", method)
	}

	env := newHostEnv(rec.Code, r.enforcer, r.costs, r.viewGas)
	var result []byte
	err = Guard(func() error {
		env.charge(linear(r.costs.Base, r.costs.StorageReadPerByte, len(rec.State)))
		if err := CheckArgs(method, args); err != nil {
			return err
		}
		var invokeErr error
		_, result, invokeErr = reg.contract.Invoke(env, method, rec.State, args)
		return invokeErr
	})
	r.metrics.observe(KindView, method, errutil.Code(err), env.burnt)

	out = &Outcome{Account: account, Method: method, Kind: KindView, Result: result, Logs: env.logs, GasBurnt: env.burnt}
	if err != nil {
		return out, oops.With("account", account).With("method", method).Wrap(err)
	}
	return out, nil
}

// Call runs a method through the state-changing path: the state returned
// by the method is committed with a receipt even when it is unchanged.
// When the method itself fails a failed receipt is recorded and the
// returned Outcome carries the logs emitted before the failure.
func (r *Runtime) Call(ctx context.Context, account, method string, args []byte, gas uint64) (out *Outcome, err error) {
	ctx, span := tracer.Start(ctx, "runtime.call", trace.WithAttributes(
		attribute.String("account", account),
		attribute.String("method", method),
		attribute.Int64("gas.prepaid", int64(min(gas, uint64(1<<63-1)))),
	))
	defer func() { endSpan(span, out, err) }()

	r.exec.Lock()
	defer r.exec.Unlock()

	rec, reg, m, err := r.resolve(ctx, account, method)
	if err != nil {
		return nil, err
	}

	env := newHostEnv(rec.Code, r.enforcer, r.costs, gas)
	var newState, result []byte
	err = Guard(func() error {
		env.charge(linear(r.costs.Base, r.costs.StorageReadPerByte, len(rec.State)))
		if err := CheckArgs(method, args); err != nil {
			return err
		}
		var invokeErr error
		newState, result, invokeErr = reg.contract.Invoke(env, method, rec.State, args)
		if invokeErr != nil {
			return invokeErr
		}
		env.charge(linear(0, r.costs.StorageWritePerByte, len(newState)))
		return nil
	})

	out = &Outcome{
		ReceiptID: r.newID(),
		Account:   account,
		Method:    method,
		Kind:      m.Kind,
		Logs:      env.logs,
		GasBurnt:  env.burnt,
	}
	if err != nil {
		r.metrics.observe(m.Kind, method, errutil.Code(err), env.burnt)
		if appendErr := r.store.AppendReceipt(ctx, r.receipt(out, err)); appendErr != nil {
			errutil.LogError(r.logger, "failed to record failed receipt", appendErr)
		}
		r.logger.Info("call failed",
			"account", account,
			"method", method,
			"receipt_id", out.ReceiptID.String(),
			"code", errutil.Code(err),
			"gas_burnt", out.GasBurnt)
		return out, oops.With("account", account).With("method", method).Wrap(err)
	}
	out.Result = result

	rec.State = newState
	if err := r.store.Commit(ctx, rec, r.receipt(out, nil)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, oops.Code(CodeStateConflict).With("account", account).Wrap(err)
		}
		errutil.LogError(r.logger, "failed to commit call", err)
		return nil, oops.With("account", account).With("method", method).Wrap(err)
	}

	r.metrics.observe(m.Kind, method, "", env.burnt)
	r.logger.Debug("call committed",
		"account", account,
		"method", method,
		"receipt_id", out.ReceiptID.String(),
		"gas_burnt", out.GasBurnt)
	return out, nil
}

// Logs returns the cumulative log of account: the logs of every committed
// receipt in execution order. Logs of failed calls are not included.
func (r *Runtime) Logs(ctx context.Context, account string) ([]string, error) {
	receipts, err := r.Receipts(ctx, account)
	if err != nil {
		return nil, err
	}
	logs := []string{}
	for _, rc := range receipts {
		if rc.Success {
			logs = append(logs, rc.Logs...)
		}
	}
	return logs, nil
}

// Receipts returns every receipt of an initialized account.
func (r *Runtime) Receipts(ctx context.Context, account string) ([]store.Receipt, error) {
	if _, err := r.load(ctx, account); err != nil {
		return nil, err
	}
	receipts, err := r.store.Receipts(ctx, account)
	if err != nil {
		return nil, oops.With("account", account).Wrap(err)
	}
	return receipts, nil
}

func (r *Runtime) registration(code string) (registration, error) {
	r.codesMu.RLock()
	defer r.codesMu.RUnlock()

	reg, ok := r.codes[code]
	if !ok {
		return registration{}, oops.Code(CodeCodeNotFound).With("code", code).Errorf("contract code %q is not registered", code)
	}
	return reg, nil
}

func (r *Runtime) load(ctx context.Context, account string) (store.Record, error) {
	if err := validateAccount(account); err != nil {
		return store.Record{}, err
	}
	rec, err := r.store.Get(ctx, account)
	if errors.Is(err, store.ErrNotFound) {
		return store.Record{}, oops.Code(CodeNotInitialized).
			With("account", account).
			Hint("deploy the contract first").
			Errorf("account %s is not initialized", account)
	}
	if err != nil {
		return store.Record{}, oops.With("account", account).Wrap(err)
	}
	return rec, nil
}

func (r *Runtime) resolve(ctx context.Context, account, method string) (store.Record, registration, Method, error) {
	rec, err := r.load(ctx, account)
	if err != nil {
		return store.Record{}, registration{}, Method{}, err
	}
	reg, err := r.registration(rec.Code)
	if err != nil {
		return store.Record{}, registration{}, Method{}, oops.With("account", account).Wrap(err)
	}
	m, ok := findMethod(reg.contract, method)
	if !ok {
		return store.Record{}, registration{}, Method{}, oops.Code(CodeMethodNotFound).
			With("account", account).
			With("code", rec.Code).
			With("method", method).
			Errorf("contract %s has no method %q", rec.Code, method)
	}
	return rec, reg, m, nil
}

func (r *Runtime) receipt(out *Outcome, err error) store.Receipt {
	return store.Receipt{
		ID:        out.ReceiptID,
		AccountID: out.Account,
		Method:    out.Method,
		Kind:      string(out.Kind),
		Logs:      out.Logs,
		Success:   err == nil,
		ErrorCode: errutil.Code(err),
		GasBurnt:  out.GasBurnt,
		CreatedAt: r.now().UTC(),
	}
}

func validateAccount(account string) error {
	if len(account) < 2 || len(account) > 64 || !accountPattern.MatchString(account) {
		return oops.Code(CodeInvalidAccount).
			With("account", account).
			Hint("account ids are 2-64 lowercase alphanumeric characters separated by '.', '-' or '_'").
			Errorf("invalid account id %q", account)
	}
	return nil
}

func alreadyInitialized(account string) error {
	return oops.Code(CodeAlreadyInitialized).
		With("account", account).
		Errorf("account %s is already initialized", account)
}

func endSpan(span trace.Span, out *Outcome, err error) {
	if out != nil {
		span.SetAttributes(attribute.Int64("gas.burnt", int64(min(out.GasBurnt, uint64(1<<63-1)))))
		if out.ReceiptID != (ulid.ULID{}) {
			span.SetAttributes(attribute.String("receipt.id", out.ReceiptID.String()))
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
