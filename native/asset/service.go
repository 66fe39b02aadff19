package asset

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"quorachain/core/state"
	"quorachain/core/types"
	"quorachain/crypto"
	"quorachain/native/common"
)

// ServiceName is the registry name of the native asset service.
const ServiceName = "asset"

const (
	// MethodGetNativeAsset returns the chain's native asset descriptor.
	MethodGetNativeAsset = "get_native_asset"
	// MethodGetBalance returns an account's native asset balance.
	MethodGetBalance = "get_balance"
	// MethodTransferFrom moves value between two third-party accounts. Only
	// callers presenting the governance admission token are admitted.
	MethodTransferFrom = "transfer_from"
)

// CodeInsufficientBalance reports a transfer exceeding the sender's balance.
const CodeInsufficientBalance uint64 = 110

const nativeAssetKey = "native_asset"

// Service is a minimal native asset ledger. It exists to give settlement a
// counterparty: the governance hooks route fees and miner rewards through
// transfer_from.
type Service struct {
	store    *state.ServiceStore
	balances *state.StoreMap
}

func NewService(store *state.ServiceStore) *Service {
	return &Service{store: store, balances: store.Map("balances")}
}

func (s *Service) Name() string { return ServiceName }

// InitGenesis registers the native asset descriptor and seeds the allocation
// table. Called exactly once before any transaction.
func (s *Service) InitGenesis(ctx *types.ServiceContext, payload json.RawMessage) error {
	var genesis InitGenesisPayload
	if err := json.Unmarshal(payload, &genesis); err != nil {
		return fmt.Errorf("asset: decode genesis payload: %w", err)
	}
	if genesis.Symbol == "" {
		return fmt.Errorf("asset: native asset symbol must not be empty")
	}
	if genesis.ID == "" {
		genesis.ID = hex.EncodeToString(ethcrypto.Keccak256([]byte(genesis.Symbol)))
	}
	asset := Asset{ID: genesis.ID, Name: genesis.Name, Symbol: genesis.Symbol}
	if err := s.store.SetValue(nativeAssetKey, assetToRecord(asset)); err != nil {
		return err
	}
	for addrStr, amount := range genesis.Alloc {
		addr, err := crypto.DecodeAddress(addrStr)
		if err != nil {
			return fmt.Errorf("asset: genesis alloc address %q: %w", addrStr, err)
		}
		if err := s.setBalance(addr, uint256.NewInt(amount)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Read(ctx *types.ServiceContext, method, payload string) types.Response {
	switch method {
	case MethodGetNativeAsset:
		return s.getNativeAsset(ctx)
	case MethodGetBalance:
		return s.getBalance(ctx, payload)
	default:
		return types.Failf(types.CodeServiceNotFound, "method %q not found on service %q", method, ServiceName)
	}
}

func (s *Service) Write(ctx *types.ServiceContext, method, payload string) types.Response {
	switch method {
	case MethodTransferFrom:
		return s.transferFrom(ctx, payload)
	default:
		return types.Failf(types.CodeServiceNotFound, "method %q not found on service %q", method, ServiceName)
	}
}

// PostTxHook is a no-op; the asset ledger settles synchronously.
func (s *Service) PostTxHook(ctx *types.ServiceContext) {}

// PostBlockHook is a no-op; the asset ledger settles synchronously.
func (s *Service) PostBlockHook(ctx *types.ServiceContext) {}

func (s *Service) getNativeAsset(ctx *types.ServiceContext) types.Response {
	asset, err := s.nativeAsset()
	if err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	return types.SucceedJSON(asset)
}

func (s *Service) getBalance(ctx *types.ServiceContext, payload string) types.Response {
	var query GetBalancePayload
	if err := json.Unmarshal([]byte(payload), &query); err != nil {
		return types.Failf(types.CodePayloadFormat, "asset: decode payload: %v", err)
	}
	balance, err := s.balance(query.Address)
	if err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	return types.SucceedJSON(GetBalanceResponse{Address: query.Address, Balance: balance})
}

func (s *Service) transferFrom(ctx *types.ServiceContext, payload string) types.Response {
	if !common.TokenMatches(ctx.AdmissionToken(), common.TokenGovernance) {
		return types.Fail(types.CodeNonAuthorized, "asset: caller is not authorized to transfer between accounts")
	}
	var transfer TransferFromPayload
	if err := json.Unmarshal([]byte(payload), &transfer); err != nil {
		return types.Failf(types.CodePayloadFormat, "asset: decode payload: %v", err)
	}
	asset, err := s.nativeAsset()
	if err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	if transfer.AssetID != asset.ID {
		return types.Failf(types.CodePayloadFormat, "asset: unknown asset id %q", transfer.AssetID)
	}

	value := uint256.NewInt(transfer.Value)
	senderBalance, err := s.balance(transfer.Sender)
	if err != nil {
		return types.Fail(types.CodePayloadFormat, err.Error())
	}
	if senderBalance.Lt(value) {
		return types.Failf(CodeInsufficientBalance, "asset: balance of %s is below %d", transfer.Sender, transfer.Value)
	}

	// A self-transfer must leave the balance untouched; writing the credit
	// after the debit would resurrect the debited funds.
	if transfer.Sender != transfer.Recipient {
		recipientBalance, err := s.balance(transfer.Recipient)
		if err != nil {
			return types.Fail(types.CodePayloadFormat, err.Error())
		}
		updated, overflow := new(uint256.Int).AddOverflow(recipientBalance, value)
		if overflow {
			return types.Failf(types.CodeArithmeticOverflow, "asset: balance of %s overflows", transfer.Recipient)
		}
		if err := s.setBalance(transfer.Sender, new(uint256.Int).Sub(senderBalance, value)); err != nil {
			return types.Fail(types.CodePayloadFormat, err.Error())
		}
		if err := s.setBalance(transfer.Recipient, updated); err != nil {
			return types.Fail(types.CodePayloadFormat, err.Error())
		}
	}

	event, err := json.Marshal(TransferFromEvent{
		Topic:     "Transfer From",
		AssetID:   transfer.AssetID,
		Sender:    transfer.Sender,
		Recipient: transfer.Recipient,
		Value:     transfer.Value,
	})
	if err != nil {
		return types.Failf(types.CodePayloadFormat, "asset: encode event: %v", err)
	}
	ctx.EmitEvent(ServiceName, "Transfer From", string(event))
	return types.Succeed("")
}

func (s *Service) nativeAsset() (Asset, error) {
	var record assetRecord
	found, err := s.store.GetValue(nativeAssetKey, &record)
	if err != nil {
		return Asset{}, err
	}
	if !found {
		return Asset{}, fmt.Errorf("asset: native asset not initialised")
	}
	return record.toAsset(), nil
}

func (s *Service) balance(addr crypto.Address) (*uint256.Int, error) {
	balance := new(uint256.Int)
	if _, err := s.balances.Get(addr.Bytes(), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (s *Service) setBalance(addr crypto.Address, balance *uint256.Int) error {
	return s.balances.Insert(addr.Bytes(), balance)
}
