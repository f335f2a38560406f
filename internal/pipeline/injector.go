package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/container"
	"github.com/zsiec/metamix/internal/h264"
	"github.com/zsiec/metamix/internal/input"
	"github.com/zsiec/metamix/internal/metadata"
)

// Injector mirrors the output source to its sink, ticking the shared clock
// off of the time-source stream and, on the SEI stream, replacing whatever
// closed captions the upstream encoder burned in with whatever the
// currently-selected input's query window returns. SCTE-35 is never
// injected into the output: that stream role, if present, passes through
// unexamined.
type Injector struct {
	log          *slog.Logger
	src          container.Source
	sink         container.Sink
	registry     *input.Registry
	clk          *clock.Clock
	tsAdjustment *atomic.Int64

	sourceURL, sinkURL, sourceFormat, sinkFormat string
}

// NewInjector returns the single output Injector, reading from src and
// mirroring to sink. tsAdjustment is the live, operator-mutable offset (in
// clock ticks) subtracted from SEI timestamps before they're used as a
// query window bound, shared with the control surface that lets it be
// changed at runtime.
func NewInjector(src container.Source, sourceURL, sourceFormat string, sink container.Sink, sinkURL, sinkFormat string, registry *input.Registry, clk *clock.Clock, tsAdjustment *atomic.Int64, log *slog.Logger) *Injector {
	if log == nil {
		log = slog.Default()
	}
	return &Injector{
		log:          log.With("component", "injector"),
		src:          src,
		sink:         sink,
		registry:     registry,
		clk:          clk,
		tsAdjustment: tsAdjustment,
		sourceURL:    sourceURL,
		sourceFormat: sourceFormat,
		sinkURL:      sinkURL,
		sinkFormat:   sinkFormat,
	}
}

// Run opens the output's source and sink, classifies the source's streams,
// and runs the tick/inject/remux loop until the source is exhausted or ctx
// is cancelled.
func (inj *Injector) Run(ctx context.Context) error {
	if err := openPair(ctx, inj.src, inj.sourceURL, inj.sourceFormat, inj.sink, inj.sinkURL, inj.sinkFormat); err != nil {
		return fmt.Errorf("injector: %w", err)
	}
	defer inj.src.Close()
	defer inj.sink.Close()

	streams := inj.src.Streams()
	class, err := container.ClassifyStreams(streams)
	if err != nil {
		return fmt.Errorf("injector: %w", err)
	}

	ticker := clock.NewTSTicker(inj.clk)
	tickPTSRescaler := clock.ClockRelative(inj.clk, streams[*class.TimeSource].TimeBase)

	processors := map[int][]packetProcessor{
		*class.TimeSource: {func(pkt container.Packet) bool {
			ticker.Tick(tickPTSRescaler.RescaleToClock(pkt.PTS))
			return false
		}},
	}

	var rewrite func(container.Packet) container.Packet
	if class.HasSEI() {
		seiProc, seiRewrite := inj.seiInjector(streams[*class.SEI].TimeBase, *class.SEI)
		appendProcessor(processors, *class.SEI, seiProc)
		rewrite = seiRewrite
	}

	return runRemuxLoop(ctx, inj.log, inj.src, inj.sink, rewrite, processors)
}

// seiInjector returns the packet processor that computes this frame's query
// window and captions, and the rewrite function that splices them into the
// packet's SEI NALU. They share state (the captions found for the current
// packet) through the closure, relying on runRemuxLoop calling the
// processor before the rewrite function for the same packet.
func (inj *Injector) seiInjector(streamTimeBase clock.TimeBase, seiStreamIndex int) (packetProcessor, func(container.Packet) container.Packet) {
	ptsRescaler := clock.ClockRelative(inj.clk, streamTimeBase)
	prevPTS := clock.TS(math.MinInt64)
	var prevInputID input.ID
	hasPrevInput := false

	var found []metadata.Metadata[h264.SEIPayload]

	processor := func(pkt container.Packet) bool {
		rescaledPTS := ptsRescaler.RescaleToClock(pkt.PTS) - inj.tsAdjustment.Load()

		cur := inj.registry.CurrentInput(input.SEIKind)
		curID := cur.Spec().ID

		found = found[:0]
		if !hasPrevInput || prevInputID != curID {
			found = append(found, metadata.Metadata[h264.SEIPayload]{
				InputID: curID,
				PTS:     rescaledPTS,
				DTS:     rescaledPTS,
				Order:   h264.OrderReset,
				Value:   h264.CCResetSEI(),
			})
		}
		prevInputID = curID
		hasPrevInput = true

		found = append(found, cur.QuerySEI(prevPTS, rescaledPTS+1)...)
		prevPTS = rescaledPTS + 1

		return false
	}

	rewrite := func(pkt container.Packet) container.Packet {
		if pkt.StreamIndex != seiStreamIndex {
			return pkt
		}

		nalus, err := h264.SplitAVCC(pkt.Data)
		if err != nil {
			inj.log.Error("invalid NALU stream, passing packet through unmodified", "error", err)
			return pkt
		}

		var out []byte
		i := 0

		for ; i < len(nalus); i++ {
			t := nalus[i].Type()
			if t == h264.NALTypeAUD || t == h264.NALTypeSPS || t == h264.NALTypePPS {
				out = append(out, h264.EmitAVCC(nalus[i])...)
				continue
			}
			break
		}

		var payloads []h264.SEIPayload
		if i < len(nalus) && nalus[i].Type() == h264.NALTypeSEI {
			stripped, err := inj.stripCaptions(nalus[i])
			if err != nil {
				inj.log.Error("error stripping captions from source SEI", "error", err)
			} else {
				payloads = stripped
			}
			i++
		}

		for _, m := range found {
			payloads = append(payloads, m.Value)
		}

		out = append(out, h264.EmitSEINALU(payloads)...)

		for ; i < len(nalus); i++ {
			out = append(out, h264.EmitAVCC(nalus[i])...)
		}

		pkt.Data = out
		return pkt
	}

	return processor, rewrite
}

// stripCaptions returns every SEI payload in nalu except USER_DATA_REGISTERED
// ones (the upstream encoder's own closed captions, which this system
// replaces entirely with whatever the selected input's query returns).
func (inj *Injector) stripCaptions(nalu h264.NALU) ([]h264.SEIPayload, error) {
	sodb, err := h264.EBSPToSODB(nalu.Data)
	if err != nil || len(sodb) == 0 {
		return nil, fmt.Errorf("malformed SEI NALU: %w", err)
	}
	payloads, err := h264.ParseSEIPayloads(sodb[1:])
	if err != nil {
		return nil, err
	}

	var kept []h264.SEIPayload
	for _, p := range payloads {
		if p.Type == h264.SEITypeUserDataRegistered {
			continue
		}
		kept = append(kept, p)
	}
	return kept, nil
}
