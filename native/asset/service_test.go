package asset

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"quorachain/core/state"
	"quorachain/core/types"
	"quorachain/crypto"
	"quorachain/native/common"
	"quorachain/storage"
)

func testAddr(b byte) crypto.Address {
	return crypto.NewAddress(bytes.Repeat([]byte{b}, 20))
}

var (
	senderAddr    = testAddr(0x01)
	recipientAddr = testAddr(0x02)
)

func newTestService(t *testing.T, alloc map[string]uint64) *Service {
	t.Helper()
	svc := NewService(state.NewServiceStore(storage.NewMemDB(), ServiceName))
	payload, err := json.Marshal(InitGenesisPayload{Name: "Quora Coin", Symbol: "QRC", Alloc: alloc})
	if err != nil {
		t.Fatalf("marshal genesis payload: %v", err)
	}
	if err := svc.InitGenesis(baseCtx(nil), payload); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	return svc
}

func baseCtx(admission []byte) *types.ServiceContext {
	ctx := types.NewServiceContext(types.ContextParams{
		Caller:      senderAddr,
		Height:      1,
		Timestamp:   1_700_000_000,
		CyclesLimit: 10_000_000,
	})
	if admission == nil {
		return ctx
	}
	return ctx.WithCall(ServiceName, MethodTransferFrom, "", admission)
}

func queryBalance(t *testing.T, svc *Service, addr crypto.Address) uint64 {
	t.Helper()
	payload, _ := json.Marshal(GetBalancePayload{Address: addr})
	resp := svc.Read(baseCtx(nil), MethodGetBalance, string(payload))
	if resp.IsError() {
		t.Fatalf("get_balance failed: %s", resp.ErrorMessage)
	}
	var decoded GetBalanceResponse
	if err := json.Unmarshal([]byte(resp.Data), &decoded); err != nil {
		t.Fatalf("decode balance response: %v", err)
	}
	if !decoded.Balance.IsUint64() {
		t.Fatalf("balance %s exceeds uint64 range", decoded.Balance.Dec())
	}
	return decoded.Balance.Uint64()
}

func nativeAssetID(t *testing.T, svc *Service) string {
	t.Helper()
	resp := svc.Read(baseCtx(nil), MethodGetNativeAsset, "")
	if resp.IsError() {
		t.Fatalf("get_native_asset failed: %s", resp.ErrorMessage)
	}
	var asset Asset
	if err := json.Unmarshal([]byte(resp.Data), &asset); err != nil {
		t.Fatalf("decode asset: %v", err)
	}
	return asset.ID
}

func TestGenesisDerivesIDFromSymbol(t *testing.T) {
	svc := newTestService(t, nil)
	want := hex.EncodeToString(ethcrypto.Keccak256([]byte("QRC")))
	if got := nativeAssetID(t, svc); got != want {
		t.Fatalf("expected derived asset id %s, got %s", want, got)
	}
}

func TestGenesisRequiresSymbol(t *testing.T) {
	svc := NewService(state.NewServiceStore(storage.NewMemDB(), ServiceName))
	payload, _ := json.Marshal(InitGenesisPayload{Name: "No Symbol"})
	if err := svc.InitGenesis(baseCtx(nil), payload); err == nil {
		t.Fatalf("expected genesis without a symbol to fail")
	}
}

func TestGenesisSeedsAllocations(t *testing.T) {
	svc := newTestService(t, map[string]uint64{
		senderAddr.String():    5_000,
		recipientAddr.String(): 250,
	})
	if got := queryBalance(t, svc, senderAddr); got != 5_000 {
		t.Fatalf("expected sender balance 5000, got %d", got)
	}
	if got := queryBalance(t, svc, recipientAddr); got != 250 {
		t.Fatalf("expected recipient balance 250, got %d", got)
	}
	if got := queryBalance(t, svc, testAddr(0x09)); got != 0 {
		t.Fatalf("expected unknown account balance 0, got %d", got)
	}
}

func transferPayload(t *testing.T, svc *Service, value uint64) string {
	t.Helper()
	payload, err := json.Marshal(TransferFromPayload{
		AssetID:   nativeAssetID(t, svc),
		Sender:    senderAddr,
		Recipient: recipientAddr,
		Value:     value,
	})
	if err != nil {
		t.Fatalf("marshal transfer payload: %v", err)
	}
	return string(payload)
}

func TestTransferFromRequiresAdmissionToken(t *testing.T) {
	svc := newTestService(t, map[string]uint64{senderAddr.String(): 1_000})

	resp := svc.Write(baseCtx(nil), MethodTransferFrom, transferPayload(t, svc, 100))
	if resp.Code != types.CodeNonAuthorized {
		t.Fatalf("expected code %d without token, got %d (%s)", types.CodeNonAuthorized, resp.Code, resp.ErrorMessage)
	}

	resp = svc.Write(baseCtx([]byte("impostor")), MethodTransferFrom, transferPayload(t, svc, 100))
	if resp.Code != types.CodeNonAuthorized {
		t.Fatalf("expected code %d for wrong token, got %d", types.CodeNonAuthorized, resp.Code)
	}

	if got := queryBalance(t, svc, senderAddr); got != 1_000 {
		t.Fatalf("expected untouched balance, got %d", got)
	}
}

func TestTransferFromMovesValueAndEmitsEvent(t *testing.T) {
	svc := newTestService(t, map[string]uint64{senderAddr.String(): 1_000})

	ctx := baseCtx(common.TokenGovernance)
	resp := svc.Write(ctx, MethodTransferFrom, transferPayload(t, svc, 300))
	if resp.IsError() {
		t.Fatalf("transfer_from failed: %s", resp.ErrorMessage)
	}

	if got := queryBalance(t, svc, senderAddr); got != 700 {
		t.Fatalf("expected sender balance 700, got %d", got)
	}
	if got := queryBalance(t, svc, recipientAddr); got != 300 {
		t.Fatalf("expected recipient balance 300, got %d", got)
	}

	events := ctx.Events()
	if len(events) != 1 || events[0].Topic != "Transfer From" {
		t.Fatalf("expected a Transfer From event, got %+v", events)
	}
	var evt TransferFromEvent
	if err := json.Unmarshal([]byte(events[0].Payload), &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Sender != senderAddr || evt.Recipient != recipientAddr || evt.Value != 300 {
		t.Fatalf("unexpected event payload %+v", evt)
	}
}

func TestTransferFromInsufficientBalance(t *testing.T) {
	svc := newTestService(t, map[string]uint64{senderAddr.String(): 100})

	resp := svc.Write(baseCtx(common.TokenGovernance), MethodTransferFrom, transferPayload(t, svc, 101))
	if resp.Code != CodeInsufficientBalance {
		t.Fatalf("expected code %d, got %d (%s)", CodeInsufficientBalance, resp.Code, resp.ErrorMessage)
	}
	if got := queryBalance(t, svc, senderAddr); got != 100 {
		t.Fatalf("expected untouched sender balance, got %d", got)
	}
	if got := queryBalance(t, svc, recipientAddr); got != 0 {
		t.Fatalf("expected untouched recipient balance, got %d", got)
	}
}

func TestTransferFromToSelfPreservesSupply(t *testing.T) {
	svc := newTestService(t, map[string]uint64{senderAddr.String(): 1_000})

	payload, err := json.Marshal(TransferFromPayload{
		AssetID:   nativeAssetID(t, svc),
		Sender:    senderAddr,
		Recipient: senderAddr,
		Value:     100,
	})
	if err != nil {
		t.Fatalf("marshal transfer payload: %v", err)
	}
	resp := svc.Write(baseCtx(common.TokenGovernance), MethodTransferFrom, string(payload))
	if resp.IsError() {
		t.Fatalf("self transfer failed: %s", resp.ErrorMessage)
	}
	if got := queryBalance(t, svc, senderAddr); got != 1_000 {
		t.Fatalf("self-transfer changed supply: balance = %d, want 1000", got)
	}

	// Beyond the balance it still fails like any other transfer.
	payload, _ = json.Marshal(TransferFromPayload{
		AssetID:   nativeAssetID(t, svc),
		Sender:    senderAddr,
		Recipient: senderAddr,
		Value:     1_001,
	})
	resp = svc.Write(baseCtx(common.TokenGovernance), MethodTransferFrom, string(payload))
	if resp.Code != CodeInsufficientBalance {
		t.Fatalf("expected code %d, got %d (%s)", CodeInsufficientBalance, resp.Code, resp.ErrorMessage)
	}
}

func TestGetBalanceReportsFullPrecision(t *testing.T) {
	svc := newTestService(t, nil)

	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 64) // 2^64, past uint64
	if err := svc.setBalance(senderAddr, huge); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	payload, _ := json.Marshal(GetBalancePayload{Address: senderAddr})
	resp := svc.Read(baseCtx(nil), MethodGetBalance, string(payload))
	if resp.IsError() {
		t.Fatalf("get_balance failed: %s", resp.ErrorMessage)
	}
	var decoded GetBalanceResponse
	if err := json.Unmarshal([]byte(resp.Data), &decoded); err != nil {
		t.Fatalf("decode balance response: %v", err)
	}
	if decoded.Balance.Cmp(huge) != 0 {
		t.Fatalf("expected balance %s, got %s", huge.Dec(), decoded.Balance.Dec())
	}
}

func TestTransferFromRejectsUnknownAsset(t *testing.T) {
	svc := newTestService(t, map[string]uint64{senderAddr.String(): 1_000})

	payload, _ := json.Marshal(TransferFromPayload{
		AssetID:   "deadbeef",
		Sender:    senderAddr,
		Recipient: recipientAddr,
		Value:     10,
	})
	resp := svc.Write(baseCtx(common.TokenGovernance), MethodTransferFrom, string(payload))
	if resp.Code != types.CodePayloadFormat {
		t.Fatalf("expected code %d, got %d (%s)", types.CodePayloadFormat, resp.Code, resp.ErrorMessage)
	}
}

func TestUnknownMethods(t *testing.T) {
	svc := newTestService(t, nil)
	if resp := svc.Read(baseCtx(nil), "no_such_method", ""); resp.Code != types.CodeServiceNotFound {
		t.Fatalf("expected code %d, got %d", types.CodeServiceNotFound, resp.Code)
	}
	if resp := svc.Write(baseCtx(nil), "no_such_method", ""); resp.Code != types.CodeServiceNotFound {
		t.Fatalf("expected code %d, got %d", types.CodeServiceNotFound, resp.Code)
	}
}
