package memsource

import (
	"context"
	"io"
	"testing"

	"github.com/zsiec/metamix/internal/container"
)

func TestSourceReplaysPacketsThenEOF(t *testing.T) {
	streams := []container.StreamDescriptor{{Index: 0, Codec: container.CodecH264}}
	packets := []container.Packet{
		{StreamIndex: 0, PTS: 100, Data: []byte{1}},
		{StreamIndex: 0, PTS: 200, Data: []byte{2}},
	}
	s := New(streams, packets)
	if err := s.Open(context.Background(), "mem://", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Streams()) != 1 {
		t.Fatalf("got %d streams, want 1", len(s.Streams()))
	}

	for _, want := range packets {
		got, err := s.ReadPacket(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.PTS != want.PTS {
			t.Fatalf("got pts %d, want %d", got.PTS, want.PTS)
		}
	}
	if _, err := s.ReadPacket(context.Background()); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}
