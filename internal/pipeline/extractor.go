package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/container"
	"github.com/zsiec/metamix/internal/h264"
	"github.com/zsiec/metamix/internal/input"
	"github.com/zsiec/metamix/internal/metadata"
	"github.com/zsiec/metamix/internal/scte35"
)

// Extractor mirrors one configured input's source to its sink unchanged,
// while pulling closed-caption SEI payloads and SCTE-35 cues off of it and
// pushing them, rescaled onto the shared clock, into the queue group the
// injector later drains.
type Extractor struct {
	log   *slog.Logger
	in    *input.UserDefined
	src   container.Source
	sink  container.Sink
	group *metadata.Group
	clk   *clock.Clock
}

// NewExtractor returns an Extractor for in, reading from src and mirroring
// to sink, pushing extracted metadata into group rescaled onto clk.
func NewExtractor(in *input.UserDefined, src container.Source, sink container.Sink, group *metadata.Group, clk *clock.Clock, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	spec := in.Spec()
	return &Extractor{
		log:   log.With("component", "extractor", "input", spec.Name),
		in:    in,
		src:   src,
		sink:  sink,
		group: group,
		clk:   clk,
	}
}

// Run opens the input's source and sink, classifies the source's streams,
// and runs the read/extract/remux loop until the source is exhausted, a
// restart is requested or detected, or ctx is cancelled. On return (by any
// path) it drops this input's left-over queued metadata and pushes a
// CC-reset one clock tick ahead, so a stale caption never lingers on a dead
// input's behalf.
func (e *Extractor) Run(ctx context.Context) error {
	defer e.postExit()

	e.in.ClearRestartScheduled()

	spec := e.in.Spec()
	if err := openPair(ctx, e.src, spec.Source, spec.SourceFormat, e.sink, spec.Sink, spec.SinkFormat); err != nil {
		return fmt.Errorf("extractor %s: %w", spec.Name, err)
	}
	defer e.src.Close()
	defer e.sink.Close()

	streams := e.src.Streams()
	class, err := container.ClassifyStreams(streams)
	if err != nil {
		return fmt.Errorf("extractor %s: %w", spec.Name, err)
	}

	processors := map[int][]packetProcessor{
		*class.TimeSource: {e.maintenanceProcessor()},
	}

	if class.HasSEI() {
		e.in.DeclareSEI()
		timeBase := streams[*class.SEI].TimeBase
		appendProcessor(processors, *class.SEI, e.seiProcessor(timeBase))
	}
	if class.HasSCTE() {
		e.in.DeclareSCTE()
		timeBase := streams[*class.SCTE].TimeBase
		appendProcessor(processors, *class.SCTE, e.scteProcessor(timeBase))
	}

	return runRemuxLoop(ctx, e.log, e.src, e.sink, nil, processors)
}

func appendProcessor(m map[int][]packetProcessor, idx int, p packetProcessor) {
	m[idx] = append(m[idx], p)
}

// maintenanceProcessor requests a loop break once this input's restart flag
// has been set by the control surface.
func (e *Extractor) maintenanceProcessor() packetProcessor {
	return func(container.Packet) bool {
		return e.in.IsRestartScheduled()
	}
}

// seiProcessor pulls USER_DATA_REGISTERED SEI payloads (closed captions)
// out of every SEI NALU in the stream's packets, rescales their timestamps
// onto the clock, and pushes them into this input's metadata queue.
func (e *Extractor) seiProcessor(streamTimeBase clock.TimeBase) packetProcessor {
	ptsRescaler := clock.ClockRelative(e.clk, streamTimeBase)
	dtsRescaler := clock.ClockRelative(e.clk, streamTimeBase)
	id := e.in.Spec().ID

	return func(pkt container.Packet) bool {
		nalus, err := h264.SplitAVCC(pkt.Data)
		if err != nil {
			e.log.Error("invalid NALU stream, skipping packet", "error", err)
			return false
		}

		order := 0
		for _, nalu := range nalus {
			if !nalu.IsValid() {
				e.log.Error("invalid NALU, skipping")
				continue
			}
			if nalu.Type() != h264.NALTypeSEI {
				continue
			}

			sodb, err := h264.EBSPToSODB(nalu.Data)
			if err != nil || len(sodb) == 0 {
				e.log.Error("malformed SEI NALU", "error", err)
				continue
			}
			payloads, err := h264.ParseSEIPayloads(sodb[1:])
			if err != nil {
				e.log.Error("malformed SEI payloads", "error", err)
				continue
			}

			for _, p := range payloads {
				if p.Type != h264.SEITypeUserDataRegistered {
					continue
				}
				rescaledPTS := ptsRescaler.RescaleToClock(pkt.PTS)
				rescaledDTS := dtsRescaler.RescaleToClock(pkt.DTS)

				e.group.SEI().Push(metadata.Metadata[h264.SEIPayload]{
					InputID: id,
					PTS:     rescaledPTS,
					DTS:     rescaledDTS,
					Order:   order,
					Value:   p,
				})
				order++
			}
		}
		return false
	}
}

// scteProcessor decodes SCTE-35 splice_info_sections carried whole in each
// packet of an SCTE_35-coded stream and pushes them into this input's
// metadata queue, rescaled onto the clock.
func (e *Extractor) scteProcessor(streamTimeBase clock.TimeBase) packetProcessor {
	ptsRescaler := clock.ClockRelative(e.clk, streamTimeBase)
	dtsRescaler := clock.ClockRelative(e.clk, streamTimeBase)
	id := e.in.Spec().ID

	return func(pkt container.Packet) bool {
		bounded, err := scte35.Bound(pkt.Data)
		if err != nil {
			e.log.Error("malformed SCTE-35 section", "error", err)
			return false
		}
		section, err := scte35.DecodeBytes(bounded)
		if err != nil {
			e.log.Error("malformed SCTE-35 section", "error", err)
			return false
		}

		rescaledPTS := ptsRescaler.RescaleToClock(pkt.PTS)
		rescaledDTS := dtsRescaler.RescaleToClock(pkt.DTS)

		e.group.SCTE().Push(metadata.Metadata[scte35.SpliceInfoSection]{
			InputID: id,
			PTS:     rescaledPTS,
			DTS:     rescaledDTS,
			Value:   *section,
		})
		return false
	}
}

func (e *Extractor) postExit() {
	if n := e.group.DropID(e.in.Spec().ID); n > 0 {
		e.log.Debug("dropped left-over metadata from queue", "count", n)
	} else {
		e.log.Debug("no left-over metadata on queue")
	}

	reset := metadata.Metadata[h264.SEIPayload]{
		InputID: e.in.Spec().ID,
		PTS:     e.clk.Now() + 1,
		DTS:     e.clk.Now() + 1,
		Order:   h264.OrderReset,
		Value:   h264.CCResetSEI(),
	}
	e.group.SEI().Push(reset)
	e.log.Debug("pushed CC reset", "pts", reset.PTS)
}
