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

// PacketSink turns container packets into bytes written to a connected byte
// stream; a caller supplies one (typically backed by internal/container/
// tsmux) because this package only owns the SRT transport, not muxing.
type PacketSink interface {
	WriteHeader(w io.Writer, streams []container.StreamDescriptor) error
	WritePacket(container.Packet) error
}

// Sink is a container.Sink that dials a remote SRT listener and writes a
// muxed byte stream to it, the push-side mirror of Source.
type Sink struct {
	packets PacketSink
	log     *slog.Logger

	conn    *srtgo.Conn
	streams []container.StreamDescriptor
}

// NewSink returns a Sink muxing via packets. If log is nil, slog.Default()
// is used.
func NewSink(packets PacketSink, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{packets: packets, log: log.With("component", "container.srt")}
}

func (s *Sink) Open(ctx context.Context, url, formatHint string) error {
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
	return nil
}

func (s *Sink) CopyParametersFrom(src container.Source) error {
	s.streams = src.Streams()
	return nil
}

func (s *Sink) WriteHeader() error {
	return s.packets.WriteHeader(s.conn, s.streams)
}

func (s *Sink) WritePacket(p container.Packet) error {
	return s.packets.WritePacket(p)
}

func (s *Sink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
