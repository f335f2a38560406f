package tsmux

import (
	"bytes"
	"context"
	"testing"

	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/container"
	"github.com/zsiec/metamix/internal/container/tsdemux"
)

func TestPacketSinkRoundTripsThroughTSDemux(t *testing.T) {
	var buf bytes.Buffer

	sink := New()
	streams := []container.StreamDescriptor{
		{Index: 0, Codec: container.CodecH264, TimeBase: clock.SysTimeBase},
		{Index: 1, Codec: container.CodecSCTE35, TimeBase: clock.SysTimeBase},
	}
	if err := sink.WriteHeader(&buf, streams); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	videoData := []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0xAB, 0xAB}
	if err := sink.WritePacket(container.Packet{StreamIndex: 0, PTS: 90000, DTS: 90000, Data: videoData}); err != nil {
		t.Fatalf("WritePacket video: %v", err)
	}

	scteData := []byte{0xFC, 0x30, 0x11, 0x00, 0x00, 0x00}
	if err := sink.WritePacket(container.Packet{StreamIndex: 1, PTS: 180000, DTS: 180000, Data: scteData}); err != nil {
		t.Fatalf("WritePacket scte: %v", err)
	}

	r := bytes.NewReader(buf.Bytes())
	ps := tsdemux.New()
	discovered, err := ps.Streams(r)
	if err != nil {
		t.Fatalf("Streams: %v", err)
	}
	if len(discovered) != 2 {
		t.Fatalf("got %d streams, want 2", len(discovered))
	}
	if discovered[0].Codec != container.CodecH264 {
		t.Fatalf("stream 0 codec = %v, want CodecH264", discovered[0].Codec)
	}
	if discovered[1].Codec != container.CodecSCTE35 {
		t.Fatalf("stream 1 codec = %v, want CodecSCTE35", discovered[1].Codec)
	}

	pkt, err := ps.ReadPacket(context.Background(), r)
	if err != nil {
		t.Fatalf("ReadPacket video: %v", err)
	}
	if pkt.StreamIndex != 0 || pkt.PTS != 90000 {
		t.Fatalf("got packet %+v, want stream 0 @ PTS 90000", pkt)
	}
	if !bytes.Equal(pkt.Data, videoData) {
		t.Fatalf("video payload mismatch: got %x, want %x", pkt.Data, videoData)
	}

	pkt2, err := ps.ReadPacket(context.Background(), r)
	if err != nil {
		t.Fatalf("ReadPacket scte: %v", err)
	}
	if pkt2.StreamIndex != 1 || pkt2.PTS != 180000 {
		t.Fatalf("got packet %+v, want stream 1 @ PTS 180000", pkt2)
	}
	if !bytes.Equal(pkt2.Data, scteData) {
		t.Fatalf("scte payload mismatch: got %x, want %x", pkt2.Data, scteData)
	}
}
