// Package memsource is an in-memory container.Source backed by a
// pre-built slice of packets, used by tests and by gen-streams' synthetic
// fixture consumers in place of a real demuxer.
package memsource

import (
	"context"
	"io"

	"github.com/zsiec/metamix/internal/container"
)

// Source is a container.Source over a fixed, in-memory packet list.
type Source struct {
	streams []container.StreamDescriptor
	packets []container.Packet
	pos     int
	opened  bool
}

// New returns a Source that replays packets in order once Open is called.
func New(streams []container.StreamDescriptor, packets []container.Packet) *Source {
	return &Source{streams: streams, packets: packets}
}

func (s *Source) Open(_ context.Context, _, _ string) error {
	s.opened = true
	return nil
}

func (s *Source) Streams() []container.StreamDescriptor { return s.streams }

func (s *Source) ReadPacket(_ context.Context) (container.Packet, error) {
	if s.pos >= len(s.packets) {
		return container.Packet{}, io.EOF
	}
	p := s.packets[s.pos]
	s.pos++
	return p, nil
}

func (s *Source) Close() error {
	s.opened = false
	return nil
}
