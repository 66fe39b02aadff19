package metadata

import (
	"encoding/json"
	"fmt"

	"quorachain/core/state"
	"quorachain/core/types"
	"quorachain/native/common"
)

// ServiceName is the registry name of the consensus-parameters service.
const ServiceName = "metadata"

const (
	// MethodGetMetadata returns the full metadata record.
	MethodGetMetadata = "get_metadata"
	// MethodUpdateMetadata replaces the full metadata record. Only callers
	// presenting the governance admission token are admitted.
	MethodUpdateMetadata = "update_metadata"
)

const metadataKey = "metadata"

// Service owns the chain's consensus parameters. It deliberately has no admin
// of its own: the governance service is the single authorized writer,
// asserted through its admission token rather than an address check.
type Service struct {
	store *state.ServiceStore
}

func NewService(store *state.ServiceStore) *Service {
	return &Service{store: store}
}

func (s *Service) Name() string { return ServiceName }

// InitGenesis seeds the initial metadata. Called exactly once before any
// transaction.
func (s *Service) InitGenesis(ctx *types.ServiceContext, payload json.RawMessage) error {
	var meta Metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return fmt.Errorf("metadata: decode genesis payload: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return err
	}
	return s.store.SetValue(metadataKey, metadataToRecord(meta))
}

func (s *Service) Read(ctx *types.ServiceContext, method, payload string) types.Response {
	switch method {
	case MethodGetMetadata:
		return s.getMetadata(ctx)
	default:
		return types.Failf(types.CodeServiceNotFound, "method %q not found on service %q", method, ServiceName)
	}
}

func (s *Service) Write(ctx *types.ServiceContext, method, payload string) types.Response {
	switch method {
	case MethodUpdateMetadata:
		return s.updateMetadata(ctx, payload)
	default:
		return types.Failf(types.CodeServiceNotFound, "method %q not found on service %q", method, ServiceName)
	}
}

// PostTxHook is a no-op; metadata has no per-transaction settlement.
func (s *Service) PostTxHook(ctx *types.ServiceContext) {}

// PostBlockHook is a no-op; metadata has no per-block settlement.
func (s *Service) PostBlockHook(ctx *types.ServiceContext) {}

func (s *Service) getMetadata(ctx *types.ServiceContext) types.Response {
	var record metadataRecord
	found, err := s.store.GetValue(metadataKey, &record)
	if err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	if !found {
		return types.Fail(types.CodePayloadFormat, "metadata: not initialised")
	}
	return types.SucceedJSON(record.toMetadata())
}

func (s *Service) updateMetadata(ctx *types.ServiceContext, payload string) types.Response {
	if !common.TokenMatches(ctx.AdmissionToken(), common.TokenGovernance) {
		return types.Fail(types.CodeNonAuthorized, "metadata: caller is not authorized to update metadata")
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return types.Failf(types.CodePayloadFormat, "metadata: decode payload: %v", err)
	}
	if err := meta.Validate(); err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	if err := s.store.SetValue(metadataKey, metadataToRecord(meta)); err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	return types.Succeed("")
}
