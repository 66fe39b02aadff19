package metadata

import (
	"fmt"

	"quorachain/crypto"
)

// Validator describes one member of the consensus validator set together
// with its round weights.
type Validator struct {
	Address       crypto.Address `json:"address"`
	PubKey        string         `json:"pub_key"`
	ProposeWeight uint64         `json:"propose_weight"`
	VoteWeight    uint64         `json:"vote_weight"`
}

// Metadata is the chain's consensus parameter record: the validator set, the
// round timing interval in milliseconds, and the per-phase timeout ratios.
type Metadata struct {
	ValidatorList  []Validator `json:"verifier_list"`
	Interval       uint64      `json:"interval"`
	ProposeRatio   uint64      `json:"propose_ratio"`
	PrevoteRatio   uint64      `json:"prevote_ratio"`
	PrecommitRatio uint64      `json:"precommit_ratio"`
	BrakeRatio     uint64      `json:"brake_ratio"`
}

// Validate rejects records that would stall consensus outright.
func (m Metadata) Validate() error {
	if len(m.ValidatorList) == 0 {
		return fmt.Errorf("metadata: validator list must not be empty")
	}
	if m.Interval == 0 {
		return fmt.Errorf("metadata: interval must be positive")
	}
	return nil
}

// metadataRecord is the RLP persistence shape of Metadata.
type metadataRecord struct {
	ValidatorList  []validatorRecord
	Interval       uint64
	ProposeRatio   uint64
	PrevoteRatio   uint64
	PrecommitRatio uint64
	BrakeRatio     uint64
}

type validatorRecord struct {
	Address       crypto.Address
	PubKey        string
	ProposeWeight uint64
	VoteWeight    uint64
}

func metadataToRecord(m Metadata) metadataRecord {
	validators := make([]validatorRecord, len(m.ValidatorList))
	for i, v := range m.ValidatorList {
		validators[i] = validatorRecord(v)
	}
	return metadataRecord{
		ValidatorList:  validators,
		Interval:       m.Interval,
		ProposeRatio:   m.ProposeRatio,
		PrevoteRatio:   m.PrevoteRatio,
		PrecommitRatio: m.PrecommitRatio,
		BrakeRatio:     m.BrakeRatio,
	}
}

func (r metadataRecord) toMetadata() Metadata {
	validators := make([]Validator, len(r.ValidatorList))
	for i, v := range r.ValidatorList {
		validators[i] = Validator(v)
	}
	return Metadata{
		ValidatorList:  validators,
		Interval:       r.Interval,
		ProposeRatio:   r.ProposeRatio,
		PrevoteRatio:   r.PrevoteRatio,
		PrecommitRatio: r.PrecommitRatio,
		BrakeRatio:     r.BrakeRatio,
	}
}
