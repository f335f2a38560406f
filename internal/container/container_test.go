package container

import "testing"

func TestClassifyStreamsH264BecomesTimeSourceAndSEI(t *testing.T) {
	streams := []StreamDescriptor{
		{Index: 0, Codec: CodecH264},
		{Index: 1, Codec: CodecSCTE35},
	}
	c, err := ClassifyStreams(streams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TimeSource == nil || *c.TimeSource != 0 {
		t.Fatalf("got time source %v, want 0", c.TimeSource)
	}
	if c.SEI == nil || *c.SEI != 0 {
		t.Fatalf("got SEI %v, want 0", c.SEI)
	}
	if c.SCTE == nil || *c.SCTE != 1 {
		t.Fatalf("got SCTE %v, want 1", c.SCTE)
	}
}

func TestClassifyStreamsNoH264FallsBackToFirstStream(t *testing.T) {
	streams := []StreamDescriptor{
		{Index: 0, Codec: CodecUnknown},
		{Index: 1, Codec: CodecSCTE35},
	}
	c, err := ClassifyStreams(streams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TimeSource == nil || *c.TimeSource != 0 {
		t.Fatalf("got time source %v, want 0 (first stream)", c.TimeSource)
	}
	if c.HasSEI() {
		t.Fatal("expected no SEI stream")
	}
	if !c.HasSCTE() {
		t.Fatal("expected an SCTE stream")
	}
}

func TestClassifyStreamsNoStreamsFails(t *testing.T) {
	if _, err := ClassifyStreams(nil); err == nil {
		t.Fatal("expected error with no streams at all")
	}
}
