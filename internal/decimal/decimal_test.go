package decimal

import "testing"

func TestRescaleTruncate(t *testing.T) {
	v := MustParse("10.12349")
	out, err := v.Rescale(4, Truncate)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}
	if out.String() != "10.1234" {
		t.Fatalf("got %s, want 10.1234", out.String())
	}
}

func TestRescaleCeilAbs(t *testing.T) {
	v := MustParse("10.12341")
	out, err := v.Rescale(4, CeilAbs)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}
	if out.String() != "10.1235" {
		t.Fatalf("got %s, want 10.1235", out.String())
	}
}

func TestRescaleCeilAbsExact(t *testing.T) {
	v := MustParse("10.1234")
	out, err := v.Rescale(4, CeilAbs)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}
	if out.String() != "10.1234" {
		t.Fatalf("exact values must not be bumped: got %s", out.String())
	}
}

func TestMulThenRescaleQuoteValue(t *testing.T) {
	price := MustParse("10.0000")
	amount := MustParse("2.5000")
	raw, err := price.Mul(amount)
	if err != nil {
		t.Fatalf("mul: %v", err)
	}
	vol, err := raw.Rescale(4, Truncate)
	if err != nil {
		t.Fatalf("rescale: %v", err)
	}
	if vol.String() != "25.0000" {
		t.Fatalf("got %s, want 25.0000", vol.String())
	}
}

func TestOverflowRejected(t *testing.T) {
	big29 := "99999999999999999999999999999" // 29 nines
	if _, err := Parse(big29); err != ErrOverflow {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{"0", "10.5000", "0.0001", "99999999999999999999999999"}
	for _, c := range cases {
		v := MustParse(c)
		enc := v.Encode()
		dec, err := DecodeLeaf(enc[:])
		if err != nil {
			t.Fatalf("decode %s: %v", c, err)
		}
		if !dec.Equal(v) {
			t.Fatalf("round trip mismatch: %s -> %s", v.String(), dec.String())
		}
	}
}

func TestEncodeNegative(t *testing.T) {
	v, err := Parse("-12.5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	enc := v.Encode()
	if enc[0] != 1 {
		t.Fatalf("expected sign byte 1, got %d", enc[0])
	}
	dec, err := DecodeLeaf(enc[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !dec.Equal(v) {
		t.Fatalf("round trip mismatch: %s -> %s", v.String(), dec.String())
	}
}

func TestDivTrunc(t *testing.T) {
	a := MustParse("10")
	b := MustParse("3")
	out, err := a.DivTrunc(b, 4)
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	if out.String() != "3.3333" {
		t.Fatalf("got %s, want 3.3333", out.String())
	}
}

func TestDivByZero(t *testing.T) {
	a := MustParse("10")
	if _, err := a.DivTrunc(Zero, 4); err != ErrDivideByZero {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
}
