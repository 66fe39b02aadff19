package events

import "quorachain/core/types"

// Emitter broadcasts transaction events to downstream subscribers
// (e.g. indexers, RPC feeds).
type Emitter interface {
	Emit(types.Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(types.Event) {}

// MemoryEmitter records events in order of emission. Intended for tests and
// single-process tooling.
type MemoryEmitter struct {
	Events []types.Event
}

// Emit implements the Emitter interface.
func (m *MemoryEmitter) Emit(evt types.Event) {
	m.Events = append(m.Events, evt)
}
