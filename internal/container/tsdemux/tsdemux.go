// Package tsdemux adapts internal/mpegts's transport-stream demuxer to the
// container/srt.PacketSource contract, turning a raw MPEG-TS byte stream
// into the codec-classified, PID-indexed container.Packet stream an
// extractor or injector reads. It is the "caller-supplied PacketSource"
// container/srt expects to sit above the raw SRT byte transport.
package tsdemux

import (
	"context"
	"fmt"
	"io"

	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/container"
	"github.com/zsiec/metamix/internal/mpegts"
)

// PMT stream_type values this system cares about. SCTE-35 has no single
// registered stream_type in wide use, so a well-known PID is also accepted,
// the same fallback internal/demux's mpegts splitter used.
const (
	streamTypeH264         = 0x1B
	streamTypeSCTE35       = 0x86
	scte35WellKnownPID uint16 = 500
)

// mpegTSTimeBase is the 90kHz clock every PES PTS/DTS in a transport stream
// is expressed in.
var mpegTSTimeBase = clock.SysTimeBase

// PacketSource demuxes one MPEG-TS stream, discovering its PMT once up
// front and then handing back PES payloads as container.Packet. A
// PacketSource is single-use: one instance per opened connection, matching
// container/srt.Source's lifecycle.
type PacketSource struct {
	demuxer    *mpegts.Demuxer
	pidToIndex map[uint16]int
	streams    []container.StreamDescriptor
}

// New returns a PacketSource ready to demux a single transport stream.
func New() *PacketSource {
	return &PacketSource{pidToIndex: make(map[uint16]int)}
}

// Streams reads r until the PMT is seen, classifying every elementary
// stream it lists by PMT stream_type.
func (p *PacketSource) Streams(r io.Reader) ([]container.StreamDescriptor, error) {
	p.demuxer = mpegts.NewDemuxer(context.Background(), r)

	for {
		data, err := p.demuxer.NextData()
		if err != nil {
			return nil, fmt.Errorf("tsdemux: stream discovery: %w", err)
		}
		if data.PMT == nil {
			continue
		}

		for _, es := range data.PMT.ElementaryStreams {
			idx := len(p.streams)
			codec := container.CodecUnknown
			switch {
			case es.StreamType == streamTypeH264:
				codec = container.CodecH264
			case es.StreamType == streamTypeSCTE35 || es.ElementaryPID == scte35WellKnownPID:
				codec = container.CodecSCTE35
			}
			p.pidToIndex[es.ElementaryPID] = idx
			p.streams = append(p.streams, container.StreamDescriptor{
				Index:    idx,
				Codec:    codec,
				TimeBase: mpegTSTimeBase,
			})
		}
		return p.streams, nil
	}
}

// ReadPacket returns the next PES payload belonging to a stream Streams
// already classified, skipping PSI and any PID it didn't recognize.
func (p *PacketSource) ReadPacket(ctx context.Context, r io.Reader) (container.Packet, error) {
	for {
		if ctx.Err() != nil {
			return container.Packet{}, ctx.Err()
		}

		data, err := p.demuxer.NextData()
		if err != nil {
			return container.Packet{}, err
		}
		if data.PES == nil || data.FirstPacket == nil {
			continue
		}

		idx, ok := p.pidToIndex[data.FirstPacket.Header.PID]
		if !ok {
			continue
		}

		pkt := container.Packet{StreamIndex: idx, Data: data.PES.Data}
		if hdr := data.PES.Header; hdr != nil && hdr.OptionalHeader != nil {
			if hdr.OptionalHeader.PTS != nil {
				pkt.PTS = clock.TS(hdr.OptionalHeader.PTS.Base)
			}
			if hdr.OptionalHeader.DTS != nil {
				pkt.DTS = clock.TS(hdr.OptionalHeader.DTS.Base)
			} else {
				pkt.DTS = pkt.PTS
			}
		}
		return pkt, nil
	}
}
