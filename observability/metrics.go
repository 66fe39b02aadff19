package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type executionMetrics struct {
	Transactions *prometheus.CounterVec
	Hooks        *prometheus.CounterVec
	HookFailures *prometheus.CounterVec
	Settlements  *prometheus.CounterVec
}

var (
	executionOnce     sync.Once
	executionRegistry *executionMetrics
)

// ExecutionMetrics returns the lazily-initialised execution metrics registry
// used to record dispatcher and settlement activity.
func ExecutionMetrics() *executionMetrics {
	executionOnce.Do(func() {
		executionRegistry = &executionMetrics{
			Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "quora",
				Subsystem: "execution",
				Name:      "transactions_total",
				Help:      "Total transactions dispatched segmented by service, method, and outcome.",
			}, []string{"service", "method", "outcome"}),
			Hooks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "quora",
				Subsystem: "execution",
				Name:      "hooks_total",
				Help:      "Total settlement hook invocations segmented by service and kind.",
			}, []string{"service", "kind"}),
			HookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "quora",
				Subsystem: "execution",
				Name:      "hook_failures_total",
				Help:      "Hook panics swallowed by the dispatcher segmented by service and kind.",
			}, []string{"service", "kind"}),
			Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "quora",
				Subsystem: "settlement",
				Name:      "transfers_total",
				Help:      "Fee and reward settlement transfers segmented by service and outcome.",
			}, []string{"service", "outcome"}),
		}
		prometheus.MustRegister(
			executionRegistry.Transactions,
			executionRegistry.Hooks,
			executionRegistry.HookFailures,
			executionRegistry.Settlements,
		)
	})
	return executionRegistry
}
