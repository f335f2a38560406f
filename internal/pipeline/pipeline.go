// Package pipeline implements the two packet-processing loops this system
// runs per configured input and for its single output: the extractor
// (mirror a source to its sink while pulling SEI captions and SCTE-35 cues
// off of it) and the injector (mirror the output source to its sink while
// stamping the currently-selected input's captions back into it). Both are
// built on the same read/dispatch/remux loop, differing only in which
// packet processors they register per classified stream role.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/container"
)

// maxIORetries bounds consecutive read or write failures before the loop
// gives up and surfaces the error to its caller.
const maxIORetries = 10

// StreamRestartError reports a condition the remux loop treats as the
// source having restarted: a non-monotonic DTS, or a PTS earlier than its
// DTS. (A processor's stop request ends the loop with a nil error instead.)
// The supervisor restarts the owning goroutine in response, the same as a
// clean EOF.
type StreamRestartError struct {
	Reason string
}

func (e *StreamRestartError) Error() string { return "pipeline: stream restarted: " + e.Reason }

// packetProcessor handles a packet already known to belong to the stream
// role it was registered for. Returning true requests that the loop stop
// after remuxing this packet.
type packetProcessor func(pkt container.Packet) bool

// runRemuxLoop reads packets from src until EOF, dispatches each to the
// processors registered for its stream index, then writes it to sink.
// Processors that rewrite a packet's Data do so on the copy they were
// handed and return it via their closure state; see Extractor/Injector.
// The loop stops when src is exhausted, a processor requests a break, or a
// non-monotonic timestamp is observed.
func runRemuxLoop(ctx context.Context, log *slog.Logger, src container.Source, sink container.Sink, rewrite func(container.Packet) container.Packet, processors map[int][]packetProcessor) error {
	var lastDTS clock.TS
	hasLastDTS := false
	readFailures := 0
	writeFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, err := src.ReadPacket(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("source at EOF")
				return nil
			}
			readFailures++
			if readFailures > maxIORetries {
				return fmt.Errorf("pipeline: read packet: %w", err)
			}
			log.Error("read error, retrying", "error", err, "attempt", readFailures)
			continue
		}
		readFailures = 0

		if hasLastDTS && lastDTS >= pkt.DTS {
			return &StreamRestartError{Reason: fmt.Sprintf("non-monotonic dts in stream %d: %d >= %d", pkt.StreamIndex, lastDTS, pkt.DTS)}
		}
		if pkt.PTS < pkt.DTS {
			return &StreamRestartError{Reason: fmt.Sprintf("pts (%d) < dts (%d) in stream %d", pkt.PTS, pkt.DTS, pkt.StreamIndex)}
		}
		lastDTS = pkt.DTS
		hasLastDTS = true

		brk := false
		for _, proc := range processors[pkt.StreamIndex] {
			if proc(pkt) {
				brk = true
			}
		}

		if rewrite != nil {
			pkt = rewrite(pkt)
		}

		if err := sink.WritePacket(pkt); err != nil {
			writeFailures++
			if writeFailures > maxIORetries {
				return fmt.Errorf("pipeline: write packet: %w", err)
			}
			log.Error("remux error, retrying", "error", err, "attempt", writeFailures)
		} else {
			writeFailures = 0
		}

		if brk {
			return nil
		}
	}
}

// openPair opens src and sink, mirrors src's stream parameters into sink,
// and writes sink's header: the common prelude both the extractor and the
// injector run before entering runRemuxLoop.
func openPair(ctx context.Context, src container.Source, srcURL, srcFormat string, sink container.Sink, sinkURL, sinkFormat string) error {
	if err := src.Open(ctx, srcURL, srcFormat); err != nil {
		return fmt.Errorf("pipeline: open source: %w", err)
	}
	if err := sink.Open(ctx, sinkURL, sinkFormat); err != nil {
		return fmt.Errorf("pipeline: open sink: %w", err)
	}
	if err := sink.CopyParametersFrom(src); err != nil {
		return fmt.Errorf("pipeline: copy stream parameters: %w", err)
	}
	if err := sink.WriteHeader(); err != nil {
		return fmt.Errorf("pipeline: write header: %w", err)
	}
	return nil
}
