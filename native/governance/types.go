package governance

import (
	"sort"

	"quorachain/crypto"
	"quorachain/native/metadata"
)

// DiscountLevel grants a transaction-fee discount once accumulated profit
// crosses Amount. The ratio is expressed per million, with 1,000,000 meaning
// full price; the same scale applies to GovernanceInfo.ProfitDeductRate.
type DiscountLevel struct {
	Amount             uint64 `json:"amount"`
	DiscountPerMillion uint64 `json:"discount_per_million"`
}

// GovernanceInfo is the chain-wide economic parameter record. The discount
// tier table is kept sorted ascending by Amount; every write path re-sorts
// rather than trusting caller-supplied ordering.
type GovernanceInfo struct {
	Admin            crypto.Address  `json:"admin"`
	TxFailureFee     uint64          `json:"tx_failure_fee"`
	TxFloorFee       uint64          `json:"tx_floor_fee"`
	ProfitDeductRate uint64          `json:"profit_deduct_rate"`
	TxFeeDiscount    []DiscountLevel `json:"tx_fee_discount"`
	MinerBenefit     uint64          `json:"miner_benefit"`
}

func sortDiscountLevels(levels []DiscountLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Amount < levels[j].Amount
	})
}

// InitGenesisPayload seeds the governance state: the parameter record, the
// fee-collection account, and the account debited for miner rewards.
type InitGenesisPayload struct {
	Info         GovernanceInfo `json:"info"`
	FeeAddress   crypto.Address `json:"fee_address"`
	MinerAddress crypto.Address `json:"miner_address"`
}

// SetAdminPayload transfers admin authority to a new address.
type SetAdminPayload struct {
	Admin crypto.Address `json:"admin"`
}

// SetGovernInfoPayload replaces the whole parameter record.
type SetGovernInfoPayload struct {
	Inner GovernanceInfo `json:"inner"`
}

// UpdateValidatorsPayload replaces the consensus validator set.
type UpdateValidatorsPayload struct {
	ValidatorList []metadata.Validator `json:"verifier_list"`
}

// UpdateIntervalPayload changes the consensus round interval.
type UpdateIntervalPayload struct {
	Interval uint64 `json:"interval"`
}

// UpdateRatioPayload changes the consensus phase timeout ratios.
type UpdateRatioPayload struct {
	ProposeRatio   uint64 `json:"propose_ratio"`
	PrevoteRatio   uint64 `json:"prevote_ratio"`
	PrecommitRatio uint64 `json:"precommit_ratio"`
	BrakeRatio     uint64 `json:"brake_ratio"`
}

// AccumulateProfitPayload credits fee-generating profit to an account for the
// current settlement period.
type AccumulateProfitPayload struct {
	Address           crypto.Address `json:"address"`
	AccumulatedProfit uint64         `json:"accumulated_profit"`
}

// CalcFeePayload asks for the transaction fee owed on the given profit.
type CalcFeePayload struct {
	Profit uint64 `json:"profit"`
}

// SetAdminEvent is emitted after admin authority changes hands.
type SetAdminEvent struct {
	Topic string         `json:"topic"`
	Admin crypto.Address `json:"admin"`
}

// SetGovernInfoEvent is emitted after the parameter record is replaced.
type SetGovernInfoEvent struct {
	Topic string         `json:"topic"`
	Info  GovernanceInfo `json:"info"`
}

// UpdateMetadataEvent is emitted after a full metadata rewrite.
type UpdateMetadataEvent struct {
	Topic          string               `json:"topic"`
	ValidatorList  []metadata.Validator `json:"verifier_list"`
	Interval       uint64               `json:"interval"`
	ProposeRatio   uint64               `json:"propose_ratio"`
	PrevoteRatio   uint64               `json:"prevote_ratio"`
	PrecommitRatio uint64               `json:"precommit_ratio"`
	BrakeRatio     uint64               `json:"brake_ratio"`
}

func newUpdateMetadataEvent(m metadata.Metadata) UpdateMetadataEvent {
	return UpdateMetadataEvent{
		Topic:          "Metadata Updated",
		ValidatorList:  m.ValidatorList,
		Interval:       m.Interval,
		ProposeRatio:   m.ProposeRatio,
		PrevoteRatio:   m.PrevoteRatio,
		PrecommitRatio: m.PrecommitRatio,
		BrakeRatio:     m.BrakeRatio,
	}
}

// UpdateValidatorsEvent is emitted after the validator set changes.
type UpdateValidatorsEvent struct {
	Topic         string               `json:"topic"`
	ValidatorList []metadata.Validator `json:"verifier_list"`
}

// UpdateIntervalEvent is emitted after the round interval changes.
type UpdateIntervalEvent struct {
	Topic    string `json:"topic"`
	Interval uint64 `json:"interval"`
}

// UpdateRatioEvent is emitted after the phase timeout ratios change.
type UpdateRatioEvent struct {
	Topic          string `json:"topic"`
	ProposeRatio   uint64 `json:"propose_ratio"`
	PrevoteRatio   uint64 `json:"prevote_ratio"`
	PrecommitRatio uint64 `json:"precommit_ratio"`
	BrakeRatio     uint64 `json:"brake_ratio"`
}

// governanceInfoRecord is the RLP persistence shape of GovernanceInfo.
type governanceInfoRecord struct {
	Admin            crypto.Address
	TxFailureFee     uint64
	TxFloorFee       uint64
	ProfitDeductRate uint64
	TxFeeDiscount    []discountLevelRecord
	MinerBenefit     uint64
}

type discountLevelRecord struct {
	Amount             uint64
	DiscountPerMillion uint64
}

func infoToRecord(info GovernanceInfo) governanceInfoRecord {
	levels := make([]discountLevelRecord, len(info.TxFeeDiscount))
	for i, level := range info.TxFeeDiscount {
		levels[i] = discountLevelRecord(level)
	}
	return governanceInfoRecord{
		Admin:            info.Admin,
		TxFailureFee:     info.TxFailureFee,
		TxFloorFee:       info.TxFloorFee,
		ProfitDeductRate: info.ProfitDeductRate,
		TxFeeDiscount:    levels,
		MinerBenefit:     info.MinerBenefit,
	}
}

func (r governanceInfoRecord) toInfo() GovernanceInfo {
	levels := make([]DiscountLevel, len(r.TxFeeDiscount))
	for i, level := range r.TxFeeDiscount {
		levels[i] = DiscountLevel(level)
	}
	return GovernanceInfo{
		Admin:            r.Admin,
		TxFailureFee:     r.TxFailureFee,
		TxFloorFee:       r.TxFloorFee,
		ProfitDeductRate: r.ProfitDeductRate,
		TxFeeDiscount:    levels,
		MinerBenefit:     r.MinerBenefit,
	}
}
