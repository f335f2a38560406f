// Package tsmux adapts internal/mpegts's transport-stream muxer to the
// container/srt.PacketSink contract, turning the codec-classified
// container.Packet stream an injector or extractor writes into a PAT/PMT/
// PES-framed transport stream. It is the write-side mirror of
// container/tsdemux.
package tsmux

import (
	"fmt"
	"io"

	"github.com/zsiec/metamix/internal/container"
	"github.com/zsiec/metamix/internal/mpegts"
)

const (
	firstElementaryPID uint16 = 0x100
	videoStreamID      uint8  = 0xE0
	dataStreamID       uint8  = 0xFC
)

// PacketSink packetizes one transport stream. Like tsdemux.PacketSource,
// it is single-use: one instance per opened connection.
type PacketSink struct {
	mux         *mpegts.Muxer
	pidForIndex map[int]uint16
	codecForPID map[uint16]container.CodecID
}

// New returns a PacketSink ready to mux a single transport stream.
func New() *PacketSink {
	return &PacketSink{
		pidForIndex: make(map[int]uint16),
		codecForPID: make(map[uint16]container.CodecID),
	}
}

// WriteHeader assigns each stream a contiguous PID starting at 0x100 (the
// same convention most encoders use) and writes the PAT/PMT describing
// them.
func (s *PacketSink) WriteHeader(w io.Writer, streams []container.StreamDescriptor) error {
	s.mux = mpegts.NewMuxer(w)

	pmtStreams := make([]mpegts.PMTElementaryStream, len(streams))
	for i, sd := range streams {
		pid := firstElementaryPID + uint16(i)
		s.pidForIndex[sd.Index] = pid
		s.codecForPID[pid] = sd.Codec
		pmtStreams[i] = mpegts.PMTElementaryStream{ElementaryPID: pid, StreamType: streamTypeFor(sd.Codec)}
	}
	return s.mux.WriteHeader(pmtStreams)
}

// WritePacket muxes one packet as a PES payload on the PID WriteHeader
// assigned its stream index.
func (s *PacketSink) WritePacket(pkt container.Packet) error {
	pid, ok := s.pidForIndex[pkt.StreamIndex]
	if !ok {
		return fmt.Errorf("tsmux: packet for unclassified stream index %d", pkt.StreamIndex)
	}
	hasDTS := pkt.DTS != pkt.PTS
	return s.mux.WritePES(pid, streamIDFor(s.codecForPID[pid]), int64(pkt.PTS), int64(pkt.DTS), hasDTS, pkt.Data)
}

func streamTypeFor(codec container.CodecID) uint8 {
	switch codec {
	case container.CodecH264:
		return 0x1B
	case container.CodecSCTE35:
		return 0x86
	default:
		return 0x06 // private/PES-packetized data, the generic passthrough type
	}
}

func streamIDFor(codec container.CodecID) uint8 {
	if codec == container.CodecH264 {
		return videoStreamID
	}
	return dataStreamID
}
