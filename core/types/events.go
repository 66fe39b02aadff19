package types

// Event is a structured state change recorded against the transaction that
// produced it. Payload is the canonical JSON form of the emitting service's
// event record so indexers can decode it without service-specific knowledge.
type Event struct {
	Service string `json:"service"`
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}
