package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"quorachain/core/execution"
)

// Spec is the genesis file layout. Each registered service receives its own
// payload section, keyed by service name, and is initialised exactly once
// before any transaction is processed.
type Spec struct {
	GenesisTime string                     `json:"genesisTime"`
	ChainID     uint64                     `json:"chainId"`
	CyclesLimit uint64                     `json:"cyclesLimit,omitempty"`
	Services    map[string]json.RawMessage `json:"services"`

	genesisTimestamp time.Time
}

// DefaultCyclesLimit bounds genesis execution when the spec omits one.
const DefaultCyclesLimit uint64 = 1_000_000_000

// LoadFromFile reads and validates a genesis spec.
func LoadFromFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a genesis spec from raw JSON.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("genesis: decode spec: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	if s.ChainID == 0 {
		return fmt.Errorf("genesis: chainId must be set")
	}
	if len(s.Services) == 0 {
		return fmt.Errorf("genesis: services section must not be empty")
	}
	for name := range s.Services {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("genesis: service name must not be blank")
		}
	}
	raw := strings.TrimSpace(s.GenesisTime)
	if raw == "" {
		s.genesisTimestamp = time.Unix(0, 0).UTC()
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fmt.Errorf("genesis: parse genesisTime %q: %w", raw, err)
	}
	s.genesisTimestamp = parsed.UTC()
	return nil
}

// Timestamp returns the genesis block timestamp in unix seconds.
func (s *Spec) Timestamp() uint64 {
	return uint64(s.genesisTimestamp.Unix())
}

// Apply runs every service's genesis handler through the dispatcher at
// height zero. A failure aborts chain bootstrap.
func (s *Spec) Apply(dispatcher *execution.Dispatcher) error {
	limit := s.CyclesLimit
	if limit == 0 {
		limit = DefaultCyclesLimit
	}
	params := execution.BlockParams{
		Height:      0,
		Timestamp:   s.Timestamp(),
		CyclesLimit: limit,
	}
	return dispatcher.InitGenesis(params, s.Services)
}
