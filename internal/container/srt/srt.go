// Package srt wires an SRT connection as the byte transport under a
// container.Source, following the dial/accept idiom of this system's SRT
// ingest layer. It does not itself demux MPEG-TS: packetized AVCC+PES
// framing is expected to come from a caller-supplied PacketSource (e.g. an
// internal/mpegts-based demuxer) laid over the connection's raw bytes, the
// same "external collaborator" split this module draws around the full
// container contract.
package srt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/metamix/internal/container"
)

// dialTimeout bounds how long Open waits for the SRT handshake.
const dialTimeout = 10 * time.Second

// srtLatencyNs matches this system's other SRT call sites: 120ms.
const srtLatencyNs = 120_000_000

// PacketSource turns a connected byte stream into container packets; a
// caller supplies one (typically backed by internal/mpegts) because this
// package only owns the SRT transport, not demuxing.
type PacketSource interface {
	Streams(r io.Reader) ([]container.StreamDescriptor, error)
	ReadPacket(ctx context.Context, r io.Reader) (container.Packet, error)
}

// Source is a container.Source that dials a remote SRT listener and hands
// the raw byte stream to a PacketSource for demuxing.
type Source struct {
	packets PacketSource
	log     *slog.Logger

	conn    *srtgo.Conn
	streams []container.StreamDescriptor
}

// New returns a Source demuxing via packets. If log is nil, slog.Default()
// is used.
func New(packets PacketSource, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{packets: packets, log: log.With("component", "container.srt")}
}

func (s *Source) Open(ctx context.Context, url, formatHint string) error {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs
	if formatHint != "" {
		cfg.StreamID = formatHint
	}

	s.log.Info("dialing", "url", url)

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(url, cfg)
		ch <- dialResult{conn, err}
	}()

	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return fmt.Errorf("container/srt: dial %s: %w", url, res.err)
		}
		s.conn = res.conn
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("container/srt: dial %s: timed out after %s", url, dialTimeout)
	}

	streams, err := s.packets.Streams(s.conn)
	if err != nil {
		s.conn.Close()
		return fmt.Errorf("container/srt: stream discovery: %w", err)
	}
	s.streams = streams
	return nil
}

func (s *Source) Streams() []container.StreamDescriptor { return s.streams }

func (s *Source) ReadPacket(ctx context.Context) (container.Packet, error) {
	return s.packets.ReadPacket(ctx, s.conn)
}

func (s *Source) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
