package asset

import (
	"github.com/holiman/uint256"

	"quorachain/crypto"
)

// Asset describes the chain's native asset.
type Asset struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// InitGenesisPayload seeds the asset descriptor and initial balances. When ID
// is omitted it is derived from the symbol.
type InitGenesisPayload struct {
	ID     string            `json:"id,omitempty"`
	Name   string            `json:"name"`
	Symbol string            `json:"symbol"`
	Alloc  map[string]uint64 `json:"alloc,omitempty"`
}

// GetBalancePayload queries one account's balance.
type GetBalancePayload struct {
	Address crypto.Address `json:"address"`
}

// GetBalanceResponse reports one account's balance. The balance marshals as
// a decimal string; balances can exceed the uint64 range.
type GetBalanceResponse struct {
	Address crypto.Address `json:"address"`
	Balance *uint256.Int   `json:"balance"`
}

// TransferFromPayload moves value between two third-party accounts on behalf
// of an authorized service.
type TransferFromPayload struct {
	AssetID   string         `json:"asset_id"`
	Sender    crypto.Address `json:"sender"`
	Recipient crypto.Address `json:"recipient"`
	Value     uint64         `json:"value"`
}

// TransferFromEvent records a completed third-party transfer.
type TransferFromEvent struct {
	Topic     string         `json:"topic"`
	AssetID   string         `json:"asset_id"`
	Sender    crypto.Address `json:"sender"`
	Recipient crypto.Address `json:"recipient"`
	Value     uint64         `json:"value"`
}

// assetRecord is the RLP persistence shape of Asset.
type assetRecord struct {
	ID     string
	Name   string
	Symbol string
}

func assetToRecord(a Asset) assetRecord { return assetRecord(a) }

func (r assetRecord) toAsset() Asset { return Asset(r) }
