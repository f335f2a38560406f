package h264

import (
	"bytes"
	"testing"
)

func TestSODBToEBSPInsertsEmulationPrevention(t *testing.T) {
	sodb := []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x02, 0x03}
	ebsp := SODBToEBSP(sodb)

	back, err := EBSPToSODB(ebsp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(back, sodb) {
		t.Fatalf("round trip mismatch: got %x, want %x", back, sodb)
	}
}

func TestEBSPToSODBMissingStopBit(t *testing.T) {
	_, err := EBSPToSODB([]byte{0x01, 0x02, 0x03})
	if err == nil {
		t.Fatal("expected error for missing stop bit")
	}
}

func TestEBSPToRBSPIdentityWithoutEmulationBytes(t *testing.T) {
	data := []byte{0x01, 0x02, 0x04, 0x05, 0x06}
	got, err := EBSPToRBSP(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %x, want %x", got, data)
	}
}

func TestRBSPToEBSPInsertsBeforeZeroZeroZeroToThree(t *testing.T) {
	rbsp := []byte{0x00, 0x00, 0x00}
	got := RBSPToEBSP(rbsp)
	want := []byte{0x00, 0x00, 0x03, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestEmptyInputs(t *testing.T) {
	if got := SODBToEBSP(nil); !bytes.Equal(got, []byte{0x80}) {
		t.Fatalf("SODBToEBSP(nil) = %x, want 80", got)
	}
	got, err := EBSPToSODB([]byte{0x80})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %x, want empty", got)
	}
}
