package execution

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"quorachain/core/events"
	"quorachain/core/types"
	"quorachain/crypto"
	"quorachain/observability"
)

// CyclesPerCall is the flat execution charge debited for every handler
// invocation, including cross-service calls made through the gateway.
const CyclesPerCall = 21_000

// Transaction addresses a single service method invocation.
type Transaction struct {
	Caller      crypto.Address
	Service     string
	Method      string
	Payload     string
	CyclesLimit uint64
}

// BlockParams carries the block-level inputs handed to the dispatcher by the
// consensus layer.
type BlockParams struct {
	Height      uint64
	Timestamp   uint64
	CyclesLimit uint64
	Proposer    crypto.Address
}

// Dispatcher applies transactions strictly in block order and schedules the
// settlement hooks: each service's post-transaction hook after every
// transaction, and each service's post-block hook once after the last
// transaction of the block. Execution is single-threaded; determinism depends
// on this strict ordering.
type Dispatcher struct {
	registry         *Registry
	emitter          events.Emitter
	logger           *slog.Logger
	settlementCaller crypto.Address
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
	}
}

// SetEmitter configures where transaction events are forwarded after each
// transaction completes. Passing nil resets to a no-op emitter.
func (d *Dispatcher) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		d.emitter = events.NoopEmitter{}
		return
	}
	d.emitter = emitter
}

// SetLogger overrides the logger used for swallowed hook failures.
func (d *Dispatcher) SetLogger(logger *slog.Logger) {
	if logger == nil {
		d.logger = slog.Default()
		return
	}
	d.logger = logger
}

// SetSettlementCaller designates the account synthesized post-block contexts
// are attributed to. The default is the null address.
func (d *Dispatcher) SetSettlementCaller(addr crypto.Address) {
	d.settlementCaller = addr
}

// InitGenesis runs every registered service's genesis handler exactly once,
// in registration order. Unlike transaction dispatch, a genesis failure is
// fatal: a chain must not start from half-initialised state, so every
// registered service must have a payload section and every section must name
// a registered service.
func (d *Dispatcher) InitGenesis(params BlockParams, payloads map[string]json.RawMessage) error {
	for name := range payloads {
		if _, ok := d.registry.Resolve(name); !ok {
			return fmt.Errorf("execution: genesis section %q has no registered service", name)
		}
	}
	for _, svc := range d.registry.Services() {
		if _, ok := payloads[svc.Name()]; !ok {
			return fmt.Errorf("execution: no genesis section for service %q", svc.Name())
		}
	}
	for _, svc := range d.registry.Services() {
		payload := payloads[svc.Name()]
		ctx := types.NewServiceContext(types.ContextParams{
			Caller:      d.settlementCaller,
			ServiceName: svc.Name(),
			Method:      "init_genesis",
			Height:      params.Height,
			Timestamp:   params.Timestamp,
			CyclesLimit: params.CyclesLimit,
		})
		if err := svc.InitGenesis(ctx, payload); err != nil {
			return fmt.Errorf("execution: genesis for service %q: %w", svc.Name(), err)
		}
	}
	return nil
}

// ExecTx resolves and executes a single transaction's primary method, then
// runs every service's post-transaction hook in registration order. Hooks run
// regardless of whether the primary method succeeded.
func (d *Dispatcher) ExecTx(params BlockParams, tx Transaction) types.Response {
	ctx := types.NewServiceContext(types.ContextParams{
		Caller:      tx.Caller,
		ServiceName: tx.Service,
		Method:      tx.Method,
		Payload:     tx.Payload,
		Height:      params.Height,
		Timestamp:   params.Timestamp,
		CyclesLimit: tx.CyclesLimit,
	})
	resp := d.dispatch(ctx, tx)

	for _, svc := range d.registry.Services() {
		d.runHook(svc.Name(), "tx", func() { svc.PostTxHook(ctx) })
	}
	d.flushEvents(ctx)

	outcome := "ok"
	if resp.IsError() {
		outcome = "error"
	}
	observability.ExecutionMetrics().Transactions.WithLabelValues(tx.Service, tx.Method, outcome).Inc()
	return resp
}

// ExecBlock applies every transaction in order, then runs each service's
// post-block hook once with a synthesized context: zeroed cycle counter,
// fresh event log, caller set to the designated settlement account, and the
// block proposer attached.
func (d *Dispatcher) ExecBlock(params BlockParams, txs []Transaction) []types.Response {
	responses := make([]types.Response, 0, len(txs))
	for _, tx := range txs {
		responses = append(responses, d.ExecTx(params, tx))
	}

	ctx := types.NewServiceContext(types.ContextParams{
		Caller:      d.settlementCaller,
		Height:      params.Height,
		Timestamp:   params.Timestamp,
		CyclesLimit: params.CyclesLimit,
		Proposer:    params.Proposer,
	})
	for _, svc := range d.registry.Services() {
		d.runHook(svc.Name(), "block", func() { svc.PostBlockHook(ctx) })
	}
	d.flushEvents(ctx)
	return responses
}

// Query runs a read-only method outside block processing, e.g. to serve RPC.
func (d *Dispatcher) Query(caller crypto.Address, service, method, payload string) types.Response {
	target, ok := d.registry.Resolve(service)
	if !ok {
		return types.Failf(types.CodeServiceNotFound, "service %q not found", service)
	}
	ctx := types.NewServiceContext(types.ContextParams{
		Caller:      caller,
		ServiceName: service,
		Method:      method,
		Payload:     payload,
	})
	return target.Read(ctx, method, payload)
}

func (d *Dispatcher) dispatch(ctx *types.ServiceContext, tx Transaction) types.Response {
	target, ok := d.registry.Resolve(tx.Service)
	if !ok {
		return types.Failf(types.CodeServiceNotFound, "service %q not found", tx.Service)
	}
	if err := ctx.ChargeCycles(CyclesPerCall); err != nil {
		return types.Fail(types.CodeOutOfCycles, err.Error())
	}
	return target.Write(ctx, tx.Method, tx.Payload)
}

// runHook executes a settlement hook. Settlement is best-effort: a panicking
// hook is logged and counted but never aborts block processing.
func (d *Dispatcher) runHook(service, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			observability.ExecutionMetrics().HookFailures.WithLabelValues(service, kind).Inc()
			d.logger.Error("settlement hook failed",
				slog.String("service", service),
				slog.String("kind", kind),
				slog.Any("panic", r))
		}
	}()
	observability.ExecutionMetrics().Hooks.WithLabelValues(service, kind).Inc()
	fn()
}

func (d *Dispatcher) flushEvents(ctx *types.ServiceContext) {
	for _, evt := range ctx.Events() {
		d.emitter.Emit(evt)
	}
}
