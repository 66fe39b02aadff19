package metadata

import (
	"bytes"
	"encoding/json"
	"testing"

	"quorachain/core/state"
	"quorachain/core/types"
	"quorachain/crypto"
	"quorachain/native/common"
	"quorachain/storage"
)

func testValidator(b byte) Validator {
	return Validator{
		Address:       crypto.NewAddress(bytes.Repeat([]byte{b}, 20)),
		PubKey:        "pubkey",
		ProposeWeight: 1,
		VoteWeight:    1,
	}
}

func defaultMetadata() Metadata {
	return Metadata{
		ValidatorList:  []Validator{testValidator(0x01)},
		Interval:       3000,
		ProposeRatio:   15,
		PrevoteRatio:   10,
		PrecommitRatio: 10,
		BrakeRatio:     10,
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(state.NewServiceStore(storage.NewMemDB(), ServiceName))
	payload, err := json.Marshal(defaultMetadata())
	if err != nil {
		t.Fatalf("marshal genesis payload: %v", err)
	}
	if err := svc.InitGenesis(readCtx(), payload); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	return svc
}

func readCtx() *types.ServiceContext {
	return types.NewServiceContext(types.ContextParams{
		Caller:      crypto.NewAddress(bytes.Repeat([]byte{0x0a}, 20)),
		Height:      1,
		Timestamp:   1_700_000_000,
		CyclesLimit: 10_000_000,
	})
}

func writeCtx(admission []byte) *types.ServiceContext {
	return readCtx().WithCall(ServiceName, MethodUpdateMetadata, "", admission)
}

func currentMetadata(t *testing.T, svc *Service) Metadata {
	t.Helper()
	resp := svc.Read(readCtx(), MethodGetMetadata, "")
	if resp.IsError() {
		t.Fatalf("get_metadata failed: %s", resp.ErrorMessage)
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(resp.Data), &meta); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	return meta
}

func TestGenesisRoundTrip(t *testing.T) {
	svc := newTestService(t)
	meta := currentMetadata(t, svc)
	want := defaultMetadata()
	if meta.Interval != want.Interval || meta.ProposeRatio != want.ProposeRatio {
		t.Fatalf("metadata mismatch: got %+v, want %+v", meta, want)
	}
	if len(meta.ValidatorList) != 1 || meta.ValidatorList[0] != want.ValidatorList[0] {
		t.Fatalf("validator mismatch: got %+v", meta.ValidatorList)
	}
}

func TestGenesisRejectsInvalidMetadata(t *testing.T) {
	cases := []Metadata{
		{Interval: 3000},
		{ValidatorList: []Validator{testValidator(0x01)}},
	}
	for _, meta := range cases {
		svc := NewService(state.NewServiceStore(storage.NewMemDB(), ServiceName))
		payload, _ := json.Marshal(meta)
		if err := svc.InitGenesis(readCtx(), payload); err == nil {
			t.Fatalf("expected genesis to reject %+v", meta)
		}
	}
}

func TestUpdateRequiresAdmissionToken(t *testing.T) {
	svc := newTestService(t)
	next := defaultMetadata()
	next.Interval = 5000
	payload, _ := json.Marshal(next)

	if resp := svc.Write(writeCtx(nil), MethodUpdateMetadata, string(payload)); resp.Code != types.CodeNonAuthorized {
		t.Fatalf("expected code %d without token, got %d", types.CodeNonAuthorized, resp.Code)
	}
	if resp := svc.Write(writeCtx([]byte("somebody")), MethodUpdateMetadata, string(payload)); resp.Code != types.CodeNonAuthorized {
		t.Fatalf("expected code %d for wrong token, got %d", types.CodeNonAuthorized, resp.Code)
	}
	if got := currentMetadata(t, svc).Interval; got != 3000 {
		t.Fatalf("metadata mutated by rejected writes: interval %d", got)
	}
}

func TestUpdateReplacesRecord(t *testing.T) {
	svc := newTestService(t)
	next := Metadata{
		ValidatorList:  []Validator{testValidator(0x02), testValidator(0x03)},
		Interval:       5000,
		ProposeRatio:   20,
		PrevoteRatio:   12,
		PrecommitRatio: 11,
		BrakeRatio:     9,
	}
	payload, _ := json.Marshal(next)
	if resp := svc.Write(writeCtx(common.TokenGovernance), MethodUpdateMetadata, string(payload)); resp.IsError() {
		t.Fatalf("update failed: %s", resp.ErrorMessage)
	}

	meta := currentMetadata(t, svc)
	if meta.Interval != 5000 || len(meta.ValidatorList) != 2 {
		t.Fatalf("expected replaced record, got %+v", meta)
	}
}

func TestUpdateValidatesRecord(t *testing.T) {
	svc := newTestService(t)
	broken := defaultMetadata()
	broken.ValidatorList = nil
	payload, _ := json.Marshal(broken)

	resp := svc.Write(writeCtx(common.TokenGovernance), MethodUpdateMetadata, string(payload))
	if resp.Code != types.CodePayloadFormat {
		t.Fatalf("expected code %d, got %d (%s)", types.CodePayloadFormat, resp.Code, resp.ErrorMessage)
	}
	if got := currentMetadata(t, svc); len(got.ValidatorList) != 1 {
		t.Fatalf("metadata mutated by rejected update: %+v", got)
	}
}

func TestUnknownMethods(t *testing.T) {
	svc := newTestService(t)
	if resp := svc.Read(readCtx(), "no_such_method", ""); resp.Code != types.CodeServiceNotFound {
		t.Fatalf("expected code %d, got %d", types.CodeServiceNotFound, resp.Code)
	}
	if resp := svc.Write(readCtx(), "no_such_method", ""); resp.Code != types.CodeServiceNotFound {
		t.Fatalf("expected code %d, got %d", types.CodeServiceNotFound, resp.Code)
	}
}
