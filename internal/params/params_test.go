package params

import (
	"math/big"
	"testing"
)

func TestNormalizeDenormalizeScalars(t *testing.T) {
	in := []any{nil, true, "hello", float64(3.5)}

	raw, err := Normalize(in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	out, err := Denormalize(raw)
	if err != nil {
		t.Fatalf("Denormalize: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("got %d values, want %d", len(out), len(in))
	}

	if out[1] != true || out[2] != "hello" {
		t.Fatalf("unexpected round-trip values: %#v", out)
	}
}

func TestNormalizeDenormalizeBigInt(t *testing.T) {
	big1, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	raw, err := Normalize([]any{big1})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	out, err := Denormalize(raw)
	if err != nil {
		t.Fatalf("Denormalize: %v", err)
	}

	got, ok := out[0].(*big.Int)
	if !ok {
		t.Fatalf("expected *big.Int, got %T", out[0])
	}

	if got.Cmp(big1) != 0 {
		t.Fatalf("got %s, want %s", got, big1)
	}
}

func TestNormalizeDenormalizeBlob(t *testing.T) {
	blob := []byte{0x00, 0x01, 0xFF, 0x10}

	raw, err := Normalize([]any{blob})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	out, err := Denormalize(raw)
	if err != nil {
		t.Fatalf("Denormalize: %v", err)
	}

	got, ok := out[0].([]byte)
	if !ok {
		t.Fatalf("expected []byte, got %T", out[0])
	}

	if string(got) != string(blob) {
		t.Fatalf("got %v, want %v", got, blob)
	}
}

func TestDenormalizeNilForEmptyInput(t *testing.T) {
	out, err := Denormalize(nil)
	if err != nil {
		t.Fatalf("Denormalize: %v", err)
	}

	if out != nil {
		t.Fatalf("expected nil, got %#v", out)
	}
}
