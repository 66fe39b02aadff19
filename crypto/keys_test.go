package crypto

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	addr := NewAddress(bytes.Repeat([]byte{0x42}, AddressLength))
	encoded := addr.String()
	if !strings.HasPrefix(encoded, AddressPrefix+"1") {
		t.Fatalf("expected %q prefix, got %s", AddressPrefix, encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
	}
}

func TestDecodeAddressRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"not-bech32",
		"qc1qqqq", // truncated payload
	}
	for _, in := range cases {
		if _, err := DecodeAddress(in); err == nil {
			t.Fatalf("expected decode of %q to fail", in)
		}
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	addr := NewAddress(bytes.Repeat([]byte{0x01}, AddressLength))
	foreign := strings.Replace(addr.String(), AddressPrefix+"1", "xx1", 1)
	if _, err := DecodeAddress(foreign); err == nil {
		t.Fatalf("expected foreign prefix to be rejected")
	}
}

func TestAddressIsZero(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Fatalf("expected zero value to be the null address")
	}
	if NewAddress(bytes.Repeat([]byte{0x01}, AddressLength)).IsZero() {
		t.Fatalf("expected non-zero address")
	}
}

func TestAddressJSONRoundTrip(t *testing.T) {
	addr := NewAddress(bytes.Repeat([]byte{0x07}, AddressLength))
	blob, err := json.Marshal(addr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Address
	if err := json.Unmarshal(blob, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch")
	}

	// Empty and null decode to the null address.
	for _, in := range []string{`""`, `null`} {
		var a Address
		if err := json.Unmarshal([]byte(in), &a); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if !a.IsZero() {
			t.Fatalf("expected %s to decode to the null address", in)
		}
	}
}

func TestAddressRLPRoundTrip(t *testing.T) {
	addr := NewAddress(bytes.Repeat([]byte{0x0c}, AddressLength))
	encoded, err := rlp.EncodeToBytes(addr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded Address
	if err := rlp.DecodeBytes(encoded, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch")
	}
}

func TestGeneratePrivateKeyDerivesStableAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.IsZero() {
		t.Fatalf("expected non-null derived address")
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.PubKey().Address() != addr {
		t.Fatalf("expected restored key to derive the same address")
	}
}
