package governance

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/rlp"

	"quorachain/core/execution"
	"quorachain/core/state"
	"quorachain/core/types"
	"quorachain/crypto"
	"quorachain/native/asset"
	"quorachain/native/common"
	"quorachain/native/metadata"
	"quorachain/observability"
)

// ServiceName is the registry name of the governance service.
const ServiceName = "governance"

// Read methods.
const (
	MethodGetAdminAddress = "get_admin_address"
	MethodGetGovernInfo   = "get_govern_info"
	MethodGetTxFailureFee = "get_tx_failure_fee"
	MethodGetTxFloorFee   = "get_tx_floor_fee"
	MethodCalcTxFee       = "calc_tx_fee"
)

// Write methods. All except accumulate_profit require admin authority.
const (
	MethodSetAdmin         = "set_admin"
	MethodSetGovernInfo    = "set_govern_info"
	MethodUpdateMetadata   = "update_metadata"
	MethodUpdateValidators = "update_validators"
	MethodUpdateInterval   = "update_interval"
	MethodUpdateRatio      = "update_ratio"
	MethodAccumulateProfit = "accumulate_profit"
)

const (
	adminKey        = "admin"
	feeAddressKey   = "fee_address"
	minerAddressKey = "miner_address"
)

// Service holds the chain-wide economic parameters, accumulates per-account
// profit across a block, and settles fees and miner rewards through hooks
// invoked outside normal transaction dispatch.
type Service struct {
	store   *state.ServiceStore
	profits *state.StoreMap
	gateway *execution.Gateway
	logger  *slog.Logger

	// clearProfitsOnSettle resets the profit ledger after the post-tx
	// settlement pass. The historical behaviour never cleared it, re-charging
	// already-settled profit on the next pass; keep this off unless the
	// deployment has confirmed the intended accounting.
	clearProfitsOnSettle bool
}

func NewService(store *state.ServiceStore, gateway *execution.Gateway) *Service {
	return &Service{
		store:   store,
		profits: store.Map("profit"),
		gateway: gateway,
		logger:  slog.Default(),
	}
}

// SetLogger overrides the logger used for swallowed settlement failures.
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger == nil {
		s.logger = slog.Default()
		return
	}
	s.logger = logger
}

// SetClearProfitsOnSettle toggles profit ledger clearing after settlement.
func (s *Service) SetClearProfitsOnSettle(clear bool) {
	s.clearProfitsOnSettle = clear
}

func (s *Service) Name() string { return ServiceName }

// InitGenesis seeds the parameter record and settlement addresses. The profit
// ledger must be empty at genesis; anything else means the store namespace is
// corrupt or reused.
func (s *Service) InitGenesis(ctx *types.ServiceContext, payload json.RawMessage) error {
	empty, err := s.profits.IsEmpty()
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("governance: profit ledger not empty at genesis")
	}

	var genesis InitGenesisPayload
	if err := json.Unmarshal(payload, &genesis); err != nil {
		return fmt.Errorf("governance: decode genesis payload: %w", err)
	}
	if genesis.Info.Admin.IsZero() {
		return fmt.Errorf("governance: genesis admin must not be the null address")
	}

	info := genesis.Info
	sortDiscountLevels(info.TxFeeDiscount)
	if err := s.store.SetValue(adminKey, infoToRecord(info)); err != nil {
		return err
	}
	if err := s.store.SetValue(feeAddressKey, genesis.FeeAddress); err != nil {
		return err
	}
	return s.store.SetValue(minerAddressKey, genesis.MinerAddress)
}

func (s *Service) Read(ctx *types.ServiceContext, method, payload string) types.Response {
	switch method {
	case MethodGetAdminAddress:
		return s.getAdminAddress(ctx)
	case MethodGetGovernInfo:
		return s.getGovernInfo(ctx)
	case MethodGetTxFailureFee:
		return s.getTxFailureFee(ctx)
	case MethodGetTxFloorFee:
		return s.getTxFloorFee(ctx)
	case MethodCalcTxFee:
		return s.calcTxFee(ctx, payload)
	default:
		return types.Failf(types.CodeServiceNotFound, "method %q not found on service %q", method, ServiceName)
	}
}

func (s *Service) Write(ctx *types.ServiceContext, method, payload string) types.Response {
	switch method {
	case MethodSetAdmin:
		return s.setAdmin(ctx, payload)
	case MethodSetGovernInfo:
		return s.setGovernInfo(ctx, payload)
	case MethodUpdateMetadata:
		return s.updateMetadata(ctx, payload)
	case MethodUpdateValidators:
		return s.updateValidators(ctx, payload)
	case MethodUpdateInterval:
		return s.updateInterval(ctx, payload)
	case MethodUpdateRatio:
		return s.updateRatio(ctx, payload)
	case MethodAccumulateProfit:
		return s.accumulateProfit(ctx, payload)
	default:
		return types.Failf(types.CodeServiceNotFound, "method %q not found on service %q", method, ServiceName)
	}
}

// --- read handlers ---

func (s *Service) getAdminAddress(ctx *types.ServiceContext) types.Response {
	info, resp := s.loadInfo()
	if resp != nil {
		return *resp
	}
	return types.SucceedJSON(info.Admin)
}

func (s *Service) getGovernInfo(ctx *types.ServiceContext) types.Response {
	info, resp := s.loadInfo()
	if resp != nil {
		return *resp
	}
	return types.SucceedJSON(info)
}

func (s *Service) getTxFailureFee(ctx *types.ServiceContext) types.Response {
	info, resp := s.loadInfo()
	if resp != nil {
		return *resp
	}
	return types.SucceedJSON(info.TxFailureFee)
}

func (s *Service) getTxFloorFee(ctx *types.ServiceContext) types.Response {
	info, resp := s.loadInfo()
	if resp != nil {
		return *resp
	}
	return types.SucceedJSON(info.TxFloorFee)
}

func (s *Service) calcTxFee(ctx *types.ServiceContext, payload string) types.Response {
	var query CalcFeePayload
	if err := json.Unmarshal([]byte(payload), &query); err != nil {
		return types.Failf(types.CodePayloadFormat, "governance: decode payload: %v", err)
	}
	info, resp := s.loadInfo()
	if resp != nil {
		return *resp
	}
	fee, err := calcTxFee(query.Profit, info)
	if err != nil {
		return types.Fail(types.CodeArithmeticOverflow, err.Error())
	}
	return types.SucceedJSON(fee)
}

// --- write handlers ---

func (s *Service) setAdmin(ctx *types.ServiceContext, payload string) types.Response {
	if !s.isAdmin(ctx) {
		return types.Fail(types.CodeNonAuthorized, "governance: caller is not admin")
	}
	var change SetAdminPayload
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return types.Failf(types.CodePayloadFormat, "governance: decode payload: %v", err)
	}
	info, resp := s.loadInfo()
	if resp != nil {
		return *resp
	}
	info.Admin = change.Admin
	if err := s.store.SetValue(adminKey, infoToRecord(info)); err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	return s.emitEvent(ctx, "Set New Admin", SetAdminEvent{
		Topic: "Set New Admin",
		Admin: change.Admin,
	})
}

func (s *Service) setGovernInfo(ctx *types.ServiceContext, payload string) types.Response {
	if !s.isAdmin(ctx) {
		return types.Fail(types.CodeNonAuthorized, "governance: caller is not admin")
	}
	var change SetGovernInfoPayload
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return types.Failf(types.CodePayloadFormat, "governance: decode payload: %v", err)
	}
	info := change.Inner
	sortDiscountLevels(info.TxFeeDiscount)
	if err := s.store.SetValue(adminKey, infoToRecord(info)); err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	return s.emitEvent(ctx, "Set New Govern Info", SetGovernInfoEvent{
		Topic: "Set New Govern Info",
		Info:  info,
	})
}

func (s *Service) updateMetadata(ctx *types.ServiceContext, payload string) types.Response {
	if !s.isAdmin(ctx) {
		return types.Fail(types.CodeNonAuthorized, "governance: caller is not admin")
	}
	var meta metadata.Metadata
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		return types.Failf(types.CodePayloadFormat, "governance: decode payload: %v", err)
	}
	if resp := s.writeMetadata(ctx, meta); resp != nil {
		return *resp
	}
	return s.emitEvent(ctx, "Metadata Updated", newUpdateMetadataEvent(meta))
}

func (s *Service) updateValidators(ctx *types.ServiceContext, payload string) types.Response {
	if !s.isAdmin(ctx) {
		return types.Fail(types.CodeNonAuthorized, "governance: caller is not admin")
	}
	var change UpdateValidatorsPayload
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return types.Failf(types.CodePayloadFormat, "governance: decode payload: %v", err)
	}
	meta, resp := s.readMetadata(ctx)
	if resp != nil {
		return *resp
	}
	meta.ValidatorList = change.ValidatorList
	if resp := s.writeMetadata(ctx, meta); resp != nil {
		return *resp
	}
	return s.emitEvent(ctx, "Validators Updated", UpdateValidatorsEvent{
		Topic:         "Validators Updated",
		ValidatorList: change.ValidatorList,
	})
}

func (s *Service) updateInterval(ctx *types.ServiceContext, payload string) types.Response {
	if !s.isAdmin(ctx) {
		return types.Fail(types.CodeNonAuthorized, "governance: caller is not admin")
	}
	var change UpdateIntervalPayload
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return types.Failf(types.CodePayloadFormat, "governance: decode payload: %v", err)
	}
	meta, resp := s.readMetadata(ctx)
	if resp != nil {
		return *resp
	}
	meta.Interval = change.Interval
	if resp := s.writeMetadata(ctx, meta); resp != nil {
		return *resp
	}
	return s.emitEvent(ctx, "Interval Updated", UpdateIntervalEvent{
		Topic:    "Interval Updated",
		Interval: change.Interval,
	})
}

func (s *Service) updateRatio(ctx *types.ServiceContext, payload string) types.Response {
	if !s.isAdmin(ctx) {
		return types.Fail(types.CodeNonAuthorized, "governance: caller is not admin")
	}
	var change UpdateRatioPayload
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return types.Failf(types.CodePayloadFormat, "governance: decode payload: %v", err)
	}
	meta, resp := s.readMetadata(ctx)
	if resp != nil {
		return *resp
	}
	meta.ProposeRatio = change.ProposeRatio
	meta.PrevoteRatio = change.PrevoteRatio
	meta.PrecommitRatio = change.PrecommitRatio
	meta.BrakeRatio = change.BrakeRatio
	if resp := s.writeMetadata(ctx, meta); resp != nil {
		return *resp
	}
	return s.emitEvent(ctx, "Ratio Updated", UpdateRatioEvent{
		Topic:          "Ratio Updated",
		ProposeRatio:   change.ProposeRatio,
		PrevoteRatio:   change.PrevoteRatio,
		PrecommitRatio: change.PrecommitRatio,
		BrakeRatio:     change.BrakeRatio,
	})
}

// accumulateProfit carries no admin check: it is invoked by the fee
// accounting path for every transaction's originating account. The trust
// boundary sits with the caller, not this service.
func (s *Service) accumulateProfit(ctx *types.ServiceContext, payload string) types.Response {
	var credit AccumulateProfitPayload
	if err := json.Unmarshal([]byte(payload), &credit); err != nil {
		return types.Failf(types.CodePayloadFormat, "governance: decode payload: %v", err)
	}
	var current uint64
	if _, err := s.profits.Get(credit.Address.Bytes(), &current); err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	updated, err := checkedAdd(current, credit.AccumulatedProfit)
	if err != nil {
		return types.Failf(types.CodeArithmeticOverflow, "governance: profit overflow for %s", credit.Address)
	}
	if err := s.profits.Insert(credit.Address.Bytes(), updated); err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	return types.Succeed("")
}

// --- hooks ---

// PostTxHook settles accumulated profit: for every ledger entry it derives
// the fee owed and moves it from the account to the fee-collection address.
// Settlement is best-effort; a failed transfer for one address never blocks
// the others.
func (s *Service) PostTxHook(ctx *types.ServiceContext) {
	info, resp := s.loadInfo()
	if resp != nil {
		s.logger.Error("profit settlement skipped", slog.String("reason", resp.ErrorMessage))
		return
	}
	var feeAddress crypto.Address
	found, err := s.store.GetValue(feeAddressKey, &feeAddress)
	if err != nil || !found {
		s.logger.Error("profit settlement skipped", slog.String("reason", "fee address unavailable"))
		return
	}
	nativeAsset, assetResp := s.nativeAsset(ctx)
	if assetResp != nil {
		s.logger.Error("profit settlement skipped", slog.String("reason", assetResp.ErrorMessage))
		return
	}

	type profitEntry struct {
		address crypto.Address
		profit  uint64
	}
	var entries []profitEntry
	err = s.profits.Iterate(func(key []byte, value []byte) error {
		var profit uint64
		if err := rlp.DecodeBytes(value, &profit); err != nil {
			return err
		}
		entries = append(entries, profitEntry{address: crypto.NewAddress(key), profit: profit})
		return nil
	})
	if err != nil {
		s.logger.Error("profit settlement skipped", slog.Any("error", err))
		return
	}

	for _, entry := range entries {
		fee, err := calcTxFee(entry.profit, info)
		if err != nil {
			observability.ExecutionMetrics().Settlements.WithLabelValues(ServiceName, "overflow").Inc()
			s.logger.Warn("profit settlement overflow",
				slog.String("address", entry.address.String()),
				slog.Uint64("profit", entry.profit))
			continue
		}
		resp := s.transferFrom(ctx, asset.TransferFromPayload{
			AssetID:   nativeAsset.ID,
			Sender:    entry.address,
			Recipient: feeAddress,
			Value:     fee,
		})
		if resp != nil {
			observability.ExecutionMetrics().Settlements.WithLabelValues(ServiceName, "error").Inc()
			s.logger.Warn("fee settlement transfer failed",
				slog.String("address", entry.address.String()),
				slog.Uint64("fee", fee),
				slog.String("error", resp.ErrorMessage))
			continue
		}
		observability.ExecutionMetrics().Settlements.WithLabelValues(ServiceName, "ok").Inc()
	}

	if s.clearProfitsOnSettle {
		if err := s.profits.Clear(); err != nil {
			s.logger.Error("profit ledger clear failed", slog.Any("error", err))
		}
	}
}

// PostBlockHook pays the block proposer: miner_benefit moves from the miner
// source account to the proposer named in the synthesized block context.
func (s *Service) PostBlockHook(ctx *types.ServiceContext) {
	info, resp := s.loadInfo()
	if resp != nil {
		s.logger.Error("miner settlement skipped", slog.String("reason", resp.ErrorMessage))
		return
	}
	var minerAddress crypto.Address
	found, err := s.store.GetValue(minerAddressKey, &minerAddress)
	if err != nil || !found {
		s.logger.Error("miner settlement skipped", slog.String("reason", "miner address unavailable"))
		return
	}
	proposer := ctx.Proposer()
	if proposer.IsZero() {
		s.logger.Warn("miner settlement skipped", slog.String("reason", "no proposer on block context"))
		return
	}
	nativeAsset, assetResp := s.nativeAsset(ctx)
	if assetResp != nil {
		s.logger.Error("miner settlement skipped", slog.String("reason", assetResp.ErrorMessage))
		return
	}
	transferResp := s.transferFrom(ctx, asset.TransferFromPayload{
		AssetID:   nativeAsset.ID,
		Sender:    minerAddress,
		Recipient: proposer,
		Value:     info.MinerBenefit,
	})
	if transferResp != nil {
		observability.ExecutionMetrics().Settlements.WithLabelValues(ServiceName, "error").Inc()
		s.logger.Warn("miner reward transfer failed",
			slog.String("proposer", proposer.String()),
			slog.Uint64("benefit", info.MinerBenefit),
			slog.String("error", transferResp.ErrorMessage))
		return
	}
	observability.ExecutionMetrics().Settlements.WithLabelValues(ServiceName, "ok").Inc()
}

// --- internals ---

func (s *Service) isAdmin(ctx *types.ServiceContext) bool {
	info, resp := s.loadInfo()
	if resp != nil {
		return false
	}
	return ctx.GetCaller() == info.Admin
}

func (s *Service) loadInfo() (GovernanceInfo, *types.Response) {
	var record governanceInfoRecord
	found, err := s.store.GetValue(adminKey, &record)
	if err != nil {
		resp := types.Fail(types.CodePayloadFormat, err.Error())
		return GovernanceInfo{}, &resp
	}
	if !found {
		resp := types.Fail(types.CodePayloadFormat, "governance: info not initialised")
		return GovernanceInfo{}, &resp
	}
	return record.toInfo(), nil
}

// readMetadata fetches the current metadata snapshot through the gateway.
// Gateway failures propagate verbatim with the upstream code and message.
func (s *Service) readMetadata(ctx *types.ServiceContext) (metadata.Metadata, *types.Response) {
	resp := s.gateway.Read(ctx, nil, metadata.ServiceName, metadata.MethodGetMetadata, "")
	if resp.IsError() {
		return metadata.Metadata{}, &resp
	}
	var meta metadata.Metadata
	if err := json.Unmarshal([]byte(resp.Data), &meta); err != nil {
		failed := types.Failf(types.CodePayloadFormat, "governance: decode metadata: %v", err)
		return metadata.Metadata{}, &failed
	}
	return meta, nil
}

func (s *Service) writeMetadata(ctx *types.ServiceContext, meta metadata.Metadata) *types.Response {
	payload, err := json.Marshal(meta)
	if err != nil {
		failed := types.Failf(types.CodePayloadFormat, "governance: encode metadata: %v", err)
		return &failed
	}
	resp := s.gateway.Write(ctx, common.TokenGovernance, metadata.ServiceName, metadata.MethodUpdateMetadata, string(payload))
	if resp.IsError() {
		return &resp
	}
	return nil
}

func (s *Service) nativeAsset(ctx *types.ServiceContext) (asset.Asset, *types.Response) {
	resp := s.gateway.Read(ctx, common.TokenGovernance, asset.ServiceName, asset.MethodGetNativeAsset, "")
	if resp.IsError() {
		return asset.Asset{}, &resp
	}
	var native asset.Asset
	if err := json.Unmarshal([]byte(resp.Data), &native); err != nil {
		failed := types.Failf(types.CodePayloadFormat, "governance: decode native asset: %v", err)
		return asset.Asset{}, &failed
	}
	return native, nil
}

func (s *Service) transferFrom(ctx *types.ServiceContext, transfer asset.TransferFromPayload) *types.Response {
	payload, err := json.Marshal(transfer)
	if err != nil {
		failed := types.Failf(types.CodePayloadFormat, "governance: encode transfer: %v", err)
		return &failed
	}
	resp := s.gateway.Write(ctx, common.TokenGovernance, asset.ServiceName, asset.MethodTransferFrom, string(payload))
	if resp.IsError() {
		return &resp
	}
	return nil
}

func (s *Service) emitEvent(ctx *types.ServiceContext, topic string, event interface{}) types.Response {
	payload, err := json.Marshal(event)
	if err != nil {
		return types.Failf(types.CodePayloadFormat, "governance: encode event: %v", err)
	}
	ctx.EmitEvent(ServiceName, topic, string(payload))
	return types.Succeed("")
}
