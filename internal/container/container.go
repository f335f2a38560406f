// Package container defines this system's media container boundary: the
// Source/Sink contract an extractor or injector opens against, the packet
// and stream-descriptor types that cross it, and stream classification —
// picking which of a container's streams carries captions, ad cues, and
// the timeline this input's clock rescaling is anchored to.
//
// This package only fixes the contract; implementations live in
// subpackages: an in-memory fake pair (memsource, memsink), an SRT byte
// transport (srt), and MPEG-TS demux/mux adapters over internal/mpegts that
// plug into it (tsdemux, tsmux).
package container

import (
	"context"
	"fmt"

	"github.com/zsiec/metamix/internal/clock"
)

// CodecID identifies the codec of a stream this system cares about; any
// other codec is CodecUnknown.
type CodecID int

const (
	CodecUnknown CodecID = iota
	CodecH264
	CodecSCTE35
)

// StreamDescriptor describes one elementary stream in an opened container.
type StreamDescriptor struct {
	Index    int
	Codec    CodecID
	TimeBase clock.TimeBase
}

// Packet is one compressed packet read from or written to a container, with
// timestamps in its stream's own TimeBase (not yet rescaled to the clock).
type Packet struct {
	StreamIndex int
	PTS, DTS    clock.TS
	Data        []byte
}

// Source yields packets from an opened media container.
type Source interface {
	// Open opens url, optionally hinting the container format (e.g.
	// "mpegts"); an empty formatHint lets the implementation probe.
	Open(ctx context.Context, url, formatHint string) error
	// Streams returns the container's elementary streams, valid only
	// after Open returns successfully.
	Streams() []StreamDescriptor
	// ReadPacket returns the next packet, or io.EOF at end of stream.
	ReadPacket(ctx context.Context) (Packet, error)
	Close() error
}

// Sink accepts packets to mux into an output container.
type Sink interface {
	Open(ctx context.Context, url, formatHint string) error
	// CopyParametersFrom copies stream parameters (codec, time base) from
	// an opened Source before WriteHeader, so the sink's stream layout
	// mirrors the source it is mirroring or rewriting.
	CopyParametersFrom(Source) error
	// WriteHeader must be called once, after CopyParametersFrom and
	// before any WritePacket.
	WriteHeader() error
	WritePacket(Packet) error
	Close() error
}

// Classification records which stream index (if any) serves each role this
// system needs: the clock time-source, the SEI/caption source, and the
// SCTE-35 ad-cue source. A single stream can hold more than one role (an
// H.264 stream carrying SEI is both the time-source and the SEI source).
type Classification struct {
	TimeSource *int
	SEI        *int
	SCTE       *int
}

// HasSEI reports whether a SEI-bearing stream was found.
func (c Classification) HasSEI() bool { return c.SEI != nil }

// HasSCTE reports whether an SCTE-35 stream was found.
func (c Classification) HasSCTE() bool { return c.SCTE != nil }

// ClassifyStreams assigns roles to streams: the first H.264 stream becomes
// both the time-source and the SEI source; if no H.264 stream exists, the
// first stream of any kind becomes the time-source only; the first
// SCTE_35-coded stream becomes the SCTE source. Returns an error if no
// time-source stream could be found at all.
func ClassifyStreams(streams []StreamDescriptor) (Classification, error) {
	var c Classification

	for i := range streams {
		s := streams[i]
		if s.Codec == CodecH264 && c.SEI == nil {
			idx := s.Index
			c.SEI = &idx
			if c.TimeSource == nil {
				c.TimeSource = &idx
			}
		}
		if s.Codec == CodecSCTE35 && c.SCTE == nil {
			idx := s.Index
			c.SCTE = &idx
		}
	}

	if c.TimeSource == nil && len(streams) > 0 {
		idx := streams[0].Index
		c.TimeSource = &idx
	}

	if c.TimeSource == nil {
		return c, fmt.Errorf("container: no time-source stream found")
	}
	return c, nil
}
