package execution

import (
	"quorachain/core/types"
)

// Gateway is the only path by which one service invokes another. It enforces
// the read/write split at the type level and stamps the caller's admission
// token onto the cloned context; validating the token against a known
// constant is the callee's responsibility. A failed call always comes back as
// an error envelope, never as a fault that aborts the caller.
type Gateway struct {
	registry *Registry
}

func NewGateway(registry *Registry) *Gateway {
	return &Gateway{registry: registry}
}

// Read invokes a side-effect-free method on the target service. The admission
// token is optional and only checked if the target enforces one.
func (g *Gateway) Read(ctx *types.ServiceContext, admission []byte, service, method, payload string) types.Response {
	target, ok := g.registry.Resolve(service)
	if !ok {
		return types.Failf(types.CodeServiceNotFound, "service %q not found", service)
	}
	callCtx := ctx.WithCall(service, method, payload, admission)
	if err := callCtx.ChargeCycles(CyclesPerCall); err != nil {
		return types.Fail(types.CodeOutOfCycles, err.Error())
	}
	return target.Read(callCtx, method, payload)
}

// Write invokes a mutating method on the target service. Targets guarding
// economically sensitive methods reject the call with a NonAuthorized
// envelope when the admission token is absent or mismatched.
func (g *Gateway) Write(ctx *types.ServiceContext, admission []byte, service, method, payload string) types.Response {
	target, ok := g.registry.Resolve(service)
	if !ok {
		return types.Failf(types.CodeServiceNotFound, "service %q not found", service)
	}
	callCtx := ctx.WithCall(service, method, payload, admission)
	if err := callCtx.ChargeCycles(CyclesPerCall); err != nil {
		return types.Fail(types.CodeOutOfCycles, err.Error())
	}
	return target.Write(callCtx, method, payload)
}
