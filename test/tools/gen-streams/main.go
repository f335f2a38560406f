// Command gen-streams writes synthetic AVCC H.264 + SCTE-35 transport
// streams to disk for use as test fixtures, the same role the teacher's
// ffmpeg-driven stream generator played for its own distribution tests,
// adapted here to this system's own wire formats: since nothing downstream
// decodes actual video, frames carry placeholder slice data, with real
// AVCC framing, real SEI-wrapped CEA-608 captions, and real SCTE-35
// splice_info_sections instead.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zsiec/metamix/internal/clock"
	"github.com/zsiec/metamix/internal/mpegts"
)

func main() {
	outDir := flag.String("out", "test/fixtures", "directory to write generated .ts files into")
	frames := flag.Int("frames", 150, "number of video frames per stream")
	fps := flag.Float64("fps", 30, "frame rate")
	sceneCount := flag.Int("scenes", 3, "number of caption scenes to generate (name_N.ts)")
	scteEvery := flag.Int("scte-every", 90, "emit a splice_insert every N frames (0 disables)")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		slog.Error("creating output directory", "error", err)
		os.Exit(1)
	}

	for i := 0; i < *sceneCount; i++ {
		name := fmt.Sprintf("scene_%d.ts", i+1)
		path := filepath.Join(*outDir, name)

		f, err := os.Create(path)
		if err != nil {
			slog.Error("creating fixture file", "file", path, "error", err)
			os.Exit(1)
		}

		cfg := sceneConfig{
			frames:    *frames,
			fps:       *fps,
			scteEvery: *scteEvery,
			caption:   fmt.Sprintf("scene %d", i+1),
			eventID:   uint32(1000 + i),
		}
		if err := generateScene(f, cfg); err != nil {
			f.Close()
			slog.Error("generating fixture", "file", path, "error", err)
			os.Exit(1)
		}
		f.Close()

		slog.Info("wrote fixture", "file", path, "frames", *frames)
	}
}

// sceneConfig parameterizes one generated stream.
type sceneConfig struct {
	frames    int
	fps       float64
	scteEvery int
	caption   string
	eventID   uint32
}

const (
	videoPID = 0x100
	sctePID  = 0x101
	videoSID = 0xE0
	scteSID  = 0xFC
)

// generateScene writes one complete transport stream to w: a PAT/PMT
// declaring an H.264 video stream and an SCTE-35 stream, then one PES per
// video frame (every 15th carrying an SEI NALU with a CEA-608 caption payload)
// interleaved with periodic SCTE-35 splice_insert PES packets.
func generateScene(w *os.File, cfg sceneConfig) error {
	mux := mpegts.NewMuxer(w)
	if err := mux.WriteHeader([]mpegts.PMTElementaryStream{
		{ElementaryPID: videoPID, StreamType: 0x1B},
		{ElementaryPID: sctePID, StreamType: 0x86},
	}); err != nil {
		return fmt.Errorf("writing PAT/PMT: %w", err)
	}

	ticksPerFrame := int64(float64(clock.SysClockRate) / cfg.fps)

	for i := 0; i < cfg.frames; i++ {
		pts := int64(i) * ticksPerFrame

		frame, err := buildFrame(i, cfg.caption)
		if err != nil {
			return fmt.Errorf("building frame %d: %w", i, err)
		}
		if err := mux.WritePES(videoPID, videoSID, pts, pts, false, frame); err != nil {
			return fmt.Errorf("writing video PES: %w", err)
		}

		if cfg.scteEvery > 0 && i > 0 && i%cfg.scteEvery == 0 {
			section, err := buildSpliceInsert(cfg.eventID)
			if err != nil {
				return fmt.Errorf("building splice_insert: %w", err)
			}
			if err := mux.WritePES(sctePID, scteSID, pts, pts, false, section); err != nil {
				return fmt.Errorf("writing SCTE-35 PES: %w", err)
			}
		}
	}
	return nil
}
