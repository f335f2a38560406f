// Package memsink is an in-memory container.Sink that records every
// packet written to it, used by tests to assert on an extractor's or
// injector's remuxed output without a real muxer.
package memsink

import (
	"context"
	"fmt"

	"github.com/zsiec/metamix/internal/container"
)

// Sink is a container.Sink that appends every written packet to Packets.
type Sink struct {
	streams      []container.StreamDescriptor
	headerWriten bool
	Packets      []container.Packet
}

// New returns an empty Sink.
func New() *Sink {
	return &Sink{}
}

func (s *Sink) Open(_ context.Context, _, _ string) error { return nil }

func (s *Sink) CopyParametersFrom(src container.Source) error {
	s.streams = append([]container.StreamDescriptor(nil), src.Streams()...)
	return nil
}

func (s *Sink) WriteHeader() error {
	if len(s.streams) == 0 {
		return fmt.Errorf("memsink: WriteHeader called before CopyParametersFrom")
	}
	s.headerWriten = true
	return nil
}

func (s *Sink) WritePacket(p container.Packet) error {
	if !s.headerWriten {
		return fmt.Errorf("memsink: WritePacket called before WriteHeader")
	}
	s.Packets = append(s.Packets, p)
	return nil
}

func (s *Sink) Close() error { return nil }
