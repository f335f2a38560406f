package h264

import (
	"bytes"
	"testing"
)

func TestParseSEIPayloadsVariadicLength(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0x01, 0x02, 0xAA, 0xBB}
	payloads, err := ParseSEIPayloads(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
	p := payloads[0]
	if p.Type != 511 {
		t.Fatalf("type = %d, want 511", p.Type)
	}
	if !bytes.Equal(p.Data, []byte{0xAA, 0xBB}) {
		t.Fatalf("data = %x, want aabb", p.Data)
	}
}

func TestParseSEIPayloadsTruncated(t *testing.T) {
	_, err := ParseSEIPayloads([]byte{0x04, 0x10, 0x01})
	if err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestEmitSEINALURoundTrip(t *testing.T) {
	payloads := []SEIPayload{
		{Type: SEITypeUserDataRegistered, Data: []byte{0x01, 0x02, 0x03}},
	}

	nalu := EmitSEINALU(payloads)

	units, err := SplitAVCC(nalu)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if units[0].Type() != NALTypeSEI {
		t.Fatalf("type = %d, want %d", units[0].Type(), NALTypeSEI)
	}

	sodb, err := EBSPToSODB(units[0].Data[1:])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := ParseSEIPayloads(sodb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Type != SEITypeUserDataRegistered || !bytes.Equal(got[0].Data, payloads[0].Data) {
		t.Fatalf("got %+v, want %+v", got, payloads)
	}
}

func TestStdSEIsShape(t *testing.T) {
	reset := CCResetSEI()
	if reset.Type != SEITypeUserDataRegistered {
		t.Fatalf("reset type = %d", reset.Type)
	}
	if reset.Data[8] != 0b010_00000|18 {
		t.Fatalf("reset cc_count byte = %#x", reset.Data[8])
	}

	pad := EmptyPaddingSEI()
	if pad.Data[8] != 0b010_00000|4 {
		t.Fatalf("padding cc_count byte = %#x", pad.Data[8])
	}

	if OrderReset >= 0 || OrderPadding <= 0 {
		t.Fatal("order sentinels must straddle zero")
	}
}
