package execution

import (
	"encoding/json"
	"fmt"

	"quorachain/core/types"
)

// Service is the fixed capability set every state-machine service exposes to
// the dispatcher. Read must be side-effect free; Write may mutate the
// service's namespace. Hooks are invoked by the dispatcher outside normal
// dispatch and must never panic block processing to a halt.
type Service interface {
	Name() string
	InitGenesis(ctx *types.ServiceContext, payload json.RawMessage) error
	Read(ctx *types.ServiceContext, method, payload string) types.Response
	Write(ctx *types.ServiceContext, method, payload string) types.Response
	PostTxHook(ctx *types.ServiceContext)
	PostBlockHook(ctx *types.ServiceContext)
}

// Registry maps service names to registered services while preserving
// registration order. Hook scheduling and genesis processing walk services in
// that order, which must therefore be identical on every node.
type Registry struct {
	order    []string
	services map[string]Service
}

func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register adds a service under its name. Registering the same name twice is
// a programming error and is rejected.
func (r *Registry) Register(svc Service) error {
	name := svc.Name()
	if name == "" {
		return fmt.Errorf("execution: service name must not be empty")
	}
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("execution: service %q already registered", name)
	}
	r.services[name] = svc
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the service registered under name.
func (r *Registry) Resolve(name string) (Service, bool) {
	svc, ok := r.services[name]
	return svc, ok
}

// Services returns all services in registration order.
func (r *Registry) Services() []Service {
	out := make([]Service, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.services[name])
	}
	return out
}
