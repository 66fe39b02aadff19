package types

import (
	"errors"

	"quorachain/crypto"
)

// ErrOutOfCycles is reported when a context's execution budget is exhausted.
var ErrOutOfCycles = errors.New("types: cycles limit exceeded")

// ContextParams carries everything needed to open an execution context for a
// transaction or a synthesised hook invocation.
type ContextParams struct {
	Caller      crypto.Address
	ServiceName string
	Method      string
	Payload     string
	Height      uint64
	Timestamp   uint64
	CyclesLimit uint64
	Proposer    crypto.Address
}

type contextShared struct {
	cyclesUsed uint64
	events     []Event
}

// ServiceContext identifies the caller, target method, and execution budget
// of a single service invocation. Contexts are cheap to construct; a cross
// service call clones the context while sharing the cycle counter and event
// log with the originating transaction.
type ServiceContext struct {
	caller      crypto.Address
	serviceName string
	method      string
	payload     string
	admission   []byte
	height      uint64
	timestamp   uint64
	cyclesLimit uint64
	proposer    crypto.Address
	shared      *contextShared
}

// NewServiceContext opens a fresh context with a zeroed cycle counter and an
// empty event log.
func NewServiceContext(params ContextParams) *ServiceContext {
	return &ServiceContext{
		caller:      params.Caller,
		serviceName: params.ServiceName,
		method:      params.Method,
		payload:     params.Payload,
		height:      params.Height,
		timestamp:   params.Timestamp,
		cyclesLimit: params.CyclesLimit,
		proposer:    params.Proposer,
		shared:      &contextShared{},
	}
}

// WithCall clones the context for a cross-service invocation. The clone keeps
// the original caller, height, and timestamp but is stamped with the callee
// coordinates and the caller's admission token. Cycle accounting and the
// event log remain shared with the parent so the whole call tree is metered
// and logged as one transaction.
func (ctx *ServiceContext) WithCall(service, method, payload string, admission []byte) *ServiceContext {
	clone := *ctx
	clone.serviceName = service
	clone.method = method
	clone.payload = payload
	if admission != nil {
		clone.admission = append([]byte(nil), admission...)
	} else {
		clone.admission = nil
	}
	return &clone
}

// GetCaller returns the transaction origin address.
func (ctx *ServiceContext) GetCaller() crypto.Address { return ctx.caller }

// ServiceName returns the service this context is addressed to.
func (ctx *ServiceContext) ServiceName() string { return ctx.serviceName }

// Method returns the method this context is addressed to.
func (ctx *ServiceContext) Method() string { return ctx.method }

// Payload returns the serialized call payload.
func (ctx *ServiceContext) Payload() string { return ctx.payload }

// AdmissionToken returns the opaque caller-identity token attached by the
// gateway, or nil for direct transaction dispatch.
func (ctx *ServiceContext) AdmissionToken() []byte { return ctx.admission }

// BlockHeight returns the height of the enclosing block.
func (ctx *ServiceContext) BlockHeight() uint64 { return ctx.height }

// Timestamp returns the enclosing block timestamp.
func (ctx *ServiceContext) Timestamp() uint64 { return ctx.timestamp }

// Proposer returns the block proposer address. It is only populated on
// contexts synthesised for post-block hooks.
func (ctx *ServiceContext) Proposer() crypto.Address { return ctx.proposer }

// CyclesLimit returns the execution budget of the enclosing transaction.
func (ctx *ServiceContext) CyclesLimit() uint64 { return ctx.cyclesLimit }

// CyclesUsed returns the cycles consumed so far across the whole call tree.
func (ctx *ServiceContext) CyclesUsed() uint64 { return ctx.shared.cyclesUsed }

// ChargeCycles debits the execution budget. Exhausting the budget returns
// ErrOutOfCycles and leaves the counter saturated at the limit.
func (ctx *ServiceContext) ChargeCycles(amount uint64) error {
	remaining := ctx.cyclesLimit - ctx.shared.cyclesUsed
	if ctx.cyclesLimit > 0 && amount > remaining {
		ctx.shared.cyclesUsed = ctx.cyclesLimit
		return ErrOutOfCycles
	}
	ctx.shared.cyclesUsed += amount
	return nil
}

// EmitEvent appends a topic-tagged event to the transaction's event log.
func (ctx *ServiceContext) EmitEvent(service, topic, payload string) {
	ctx.shared.events = append(ctx.shared.events, Event{
		Service: service,
		Topic:   topic,
		Payload: payload,
	})
}

// Events returns a copy of the events recorded so far.
func (ctx *ServiceContext) Events() []Event {
	out := make([]Event, len(ctx.shared.events))
	copy(out, ctx.shared.events)
	return out
}
