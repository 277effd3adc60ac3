// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passguess Contributors

// Package rpc exposes the contract runtime over HTTP with JSON bodies.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/saravmajestic/passguess/internal/observability"
	"github.com/saravmajestic/passguess/internal/runtime"
	"github.com/saravmajestic/passguess/pkg/errutil"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var tracer = otel.Tracer("passguess/rpc")

// Runtime is the part of *runtime.Runtime the handler serves.
type Runtime interface {
	Deploy(ctx context.Context, account, code string, args []byte, gas uint64) (*runtime.Outcome, error)
	View(ctx context.Context, account, method string, args []byte) (*runtime.Outcome, error)
	Call(ctx context.Context, account, method string, args []byte, gas uint64) (*runtime.Outcome, error)
	Logs(ctx context.Context, account string) ([]string, error)
}

// DeployRequest is the body of a deploy.
type DeployRequest struct {
	Code string          `json:"code"`
	Args json.RawMessage `json:"args,omitempty"`
	// Gas defaults to the handler's call gas when zero.
	Gas uint64 `json:"gas,omitempty"`
}

// CallRequest is the body of a call.
type CallRequest struct {
	Args json.RawMessage `json:"args,omitempty"`
	Gas  uint64          `json:"gas,omitempty"`
}

// OutcomeResponse is the JSON form of runtime.Outcome.
type OutcomeResponse struct {
	ReceiptID string          `json:"receipt_id,omitempty"`
	Account   string          `json:"account"`
	Method    string          `json:"method"`
	Kind      string          `json:"kind"`
	Result    json.RawMessage `json:"result,omitempty"`
	Logs      []string        `json:"logs"`
	GasBurnt  uint64          `json:"gas_burnt"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ErrorResponse is returned with every non-2xx status. Outcome is set when
// contract code ran before failing.
type ErrorResponse struct {
	Error   ErrorBody        `json:"error"`
	Outcome *OutcomeResponse `json:"outcome,omitempty"`
}

// LogsResponse is the body of a logs request.
type LogsResponse struct {
	Account string   `json:"account"`
	Logs    []string `json:"logs"`
}

// Handler routes RPC requests to a Runtime.
type Handler struct {
	rt      Runtime
	callGas uint64
	metrics *observability.Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCallGas sets the gas used when a request attaches none.
func WithCallGas(gas uint64) HandlerOption {
	return func(h *Handler) { h.callGas = gas }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *observability.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates the RPC handler.
func NewHandler(rt Runtime, opts ...HandlerOption) *Handler {
	h := &Handler{
		rt:      rt,
		callGas: runtime.DefaultCallGas,
		logger:  slog.Default(),
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.route("POST /v1/accounts/{account}/deploy", "deploy", h.handleDeploy)
	h.route("POST /v1/accounts/{account}/view/{method}", "view", h.handleView)
	h.route("POST /v1/accounts/{account}/call/{method}", "call", h.handleCall)
	h.route("GET /v1/accounts/{account}/logs", "logs", h.handleLogs)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// route registers fn under pattern with tracing, metrics and request logs.
func (h *Handler) route(pattern, name string, fn http.HandlerFunc) {
	h.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), "rpc."+name)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r.WithContext(ctx))

		elapsed := time.Since(start)
		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		h.metrics.ObserveRequest(name, rec.status, elapsed)
		h.logger.DebugContext(ctx, "rpc request",
			"route", name,
			"account", r.PathValue("account"),
			"status", rec.status,
			"duration", elapsed)
	})
}

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	if req.Code == "" {
		h.writeError(w, r, runtime.InvalidArgs(runtime.InitMethod, errors.New("code is required")), nil)
		return
	}

	out, err := h.rt.Deploy(r.Context(), r.PathValue("account"), req.Code, envelopeArgs(req.Args), h.gas(req.Gas))
	if err != nil {
		h.writeError(w, r, err, out)
		return
	}
	h.writeJSON(w, http.StatusCreated, NewOutcomeResponse(out))
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	args, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	out, err := h.rt.View(r.Context(), r.PathValue("account"), r.PathValue("method"), args)
	if err != nil {
		h.writeError(w, r, err, out)
		return
	}
	h.writeJSON(w, http.StatusOK, NewOutcomeResponse(out))
}

func (h *Handler) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	out, err := h.rt.Call(r.Context(), r.PathValue("account"), r.PathValue("method"), envelopeArgs(req.Args), h.gas(req.Gas))
	if err != nil {
		h.writeError(w, r, err, out)
		return
	}
	h.writeJSON(w, http.StatusOK, NewOutcomeResponse(out))
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")
	logs, err := h.rt.Logs(r.Context(), account)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, LogsResponse{Account: account, Logs: logs})
}

func (h *Handler) gas(requested uint64) uint64 {
	if requested == 0 {
		return h.callGas
	}
	return requested
}

// envelopeArgs treats "args": null in a request envelope as absent.
func envelopeArgs(raw json.RawMessage) []byte {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, oops.Code("BAD_REQUEST").Wrap(err)
	}
	if len(data) > maxBodyBytes {
		return nil, oops.Code("BAD_REQUEST").Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	return data, nil
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return oops.Code("BAD_REQUEST").Hint("request body must be a JSON object").Wrap(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return oops.Code("BAD_REQUEST").Hint("request body must be a single JSON object").Errorf("unexpected data after request body")
	}
	return nil
}

// NewOutcomeResponse converts an outcome to its JSON form. It returns nil for
// a nil outcome.
func NewOutcomeResponse(out *runtime.Outcome) *OutcomeResponse {
	if out == nil {
		return nil
	}
	resp := &OutcomeResponse{
		Account:  out.Account,
		Method:   out.Method,
		Kind:     string(out.Kind),
		Result:   out.Result,
		Logs:     out.Logs,
		GasBurnt: out.GasBurnt,
	}
	if resp.Logs == nil {
		resp.Logs = []string{}
	}
	if out.ReceiptID != (ulid.ULID{}) {
		resp.ReceiptID = out.ReceiptID.String()
	}
	return resp
}

// statusFor maps error codes to HTTP status codes.
func statusFor(code string) int {
	switch code {
	case runtime.CodeAlreadyInitialized, runtime.CodeStateConflict:
		return http.StatusConflict
	case runtime.CodeNotInitialized, runtime.CodeMethodNotFound, runtime.CodeCodeNotFound:
		return http.StatusNotFound
	case runtime.CodeInvalidArgs, runtime.CodeMethodNotView, runtime.CodeInvalidAccount, "BAD_REQUEST":
		return http.StatusBadRequest
	case runtime.CodeGasExceeded:
		return http.StatusPaymentRequired
	case runtime.CodeCapabilityDenied:
		return http.StatusForbidden
	case runtime.CodeContractPanic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, out *runtime.Outcome) {
	code := errutil.Code(err)
	status := statusFor(code)

	body := ErrorResponse{
		Error:   ErrorBody{Code: code, Message: err.Error()},
		Outcome: NewOutcomeResponse(out),
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		body.Error.Hint = oopsErr.Hint()
	}
	if status == http.StatusInternalServerError {
		errutil.LogError(h.logger, "rpc request failed", err)
		body.Error.Code = "INTERNAL"
		body.Error.Message = "internal error"
		body.Error.Hint = ""
	}
	h.logger.DebugContext(r.Context(), "rpc request rejected", "code", code, "status", status)
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("failed to write response", "error", err)
	}
}
