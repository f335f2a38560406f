// Command srt-push replays a transport stream file over SRT at its own
// pace, as a caller dialing a listening srt:// input, the same role the
// teacher's manifest-driven stream pusher played against its own ingest
// server: adapted here to push one file at a time (this system configures
// one input per stream key, not a fixed roster of nine), and to derive
// playback duration from the file's own PES timestamps via internal/mpegts
// instead of shelling out to ffprobe.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	srt "github.com/zsiec/srtgo"

	"github.com/zsiec/metamix/internal/mpegts"
)

const tsPacketSize = 188

func main() {
	fileFlag := flag.String("file", "", "transport stream file to push")
	keyFlag := flag.String("key", "", "SRT stream id (default: filename without extension)")
	addrFlag := flag.String("addr", "127.0.0.1:6000", "SRT listener address to dial")
	durationFlag := flag.Float64("duration", 0, "known duration in seconds (skips PTS-range detection)")
	flag.Parse()

	filePath := *fileFlag
	if filePath == "" && flag.NArg() > 0 {
		filePath = flag.Arg(0)
	}
	if filePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: srt-push --file stream.ts [--key mykey] [--addr host:port]\n")
		os.Exit(1)
	}

	streamID := *keyFlag
	if streamID == "" {
		base := filepath.Base(filePath)
		streamID = base[:len(base)-len(filepath.Ext(base))]
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", filePath, err)
		os.Exit(1)
	}

	duration := *durationFlag
	if duration <= 0 {
		duration, err = ptsRangeDuration(data)
		if err != nil || duration <= 0 {
			fmt.Fprintf(os.Stderr, "could not determine duration (%v), pass --duration explicitly\n", err)
			os.Exit(1)
		}
	}

	pushLoop(filePath, streamID, *addrFlag, data, duration)
}

// ptsRangeDuration demuxes data just far enough to learn the lowest and
// highest PES PTS seen, and returns the span between them in seconds.
func ptsRangeDuration(data []byte) (float64, error) {
	dmx := mpegts.NewDemuxer(context.Background(), bytes.NewReader(data))

	var minPTS, maxPTS int64
	seen := false
	for {
		d, err := dmx.NextData()
		if err != nil {
			break
		}
		if d.PES == nil || d.PES.Header == nil || d.PES.Header.OptionalHeader == nil {
			continue
		}
		pts := d.PES.Header.OptionalHeader.PTS
		if pts == nil {
			continue
		}
		if !seen || pts.Base < minPTS {
			minPTS = pts.Base
		}
		if !seen || pts.Base > maxPTS {
			maxPTS = pts.Base
		}
		seen = true
	}
	if !seen {
		return 0, fmt.Errorf("no PTS-bearing PES packets found")
	}
	return float64(maxPTS-minPTS) / 90_000, nil
}

func pushLoop(filePath, streamID, addr string, data []byte, duration float64) {
	bytesPerSec := float64(len(data)) / duration
	chunkSize := tsPacketSize * 7

	fmt.Printf("file: %s (%d bytes, %.1fs, %.0f bytes/sec)\n", filePath, len(data), duration, bytesPerSec)

	for {
		fmt.Printf("[%s] dialing SRT %s...\n", streamID, addr)

		cfg := srt.DefaultConfig()
		cfg.StreamID = streamID

		conn, err := srt.Dial(addr, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%s] dial failed: %v, retrying\n", streamID, err)
			time.Sleep(time.Second)
			continue
		}

		fmt.Printf("[%s] connected, streaming\n", streamID)
		err = streamOnce(conn, data, bytesPerSec, chunkSize, streamID)
		conn.Close()

		if err != nil {
			fmt.Fprintf(os.Stderr, "[%s] connection lost: %v, reconnecting\n", streamID, err)
			time.Sleep(time.Second)
		}
	}
}

// streamOnce writes data to conn in chunkSize pieces, paced against
// bytesPerSec, looping back to the start so the connection never runs dry.
func streamOnce(conn *srt.Conn, data []byte, bytesPerSec float64, chunkSize int, streamID string) error {
	start := time.Now()
	var sent int64
	lastLog := time.Now()
	const logInterval = 10 * time.Second

	for loop := 1; ; loop++ {
		for i := 0; i < len(data); i += chunkSize {
			end := i + chunkSize
			if end > len(data) {
				end = len(data)
			}
			if _, err := conn.Write(data[i:end]); err != nil {
				return err
			}
			sent += int64(end - i)

			expected := float64(sent) / bytesPerSec
			elapsed := time.Since(start).Seconds()
			if expected > elapsed {
				time.Sleep(time.Duration((expected - elapsed) * float64(time.Second)))
			}

			if time.Since(lastLog) >= logInterval {
				rate := float64(sent) / time.Since(start).Seconds()
				fmt.Printf("[%s] loop=%d rate=%.0f B/s (target=%.0f) total=%.1f MB\n",
					streamID, loop, rate, bytesPerSec, float64(sent)/(1024*1024))
				lastLog = time.Now()
			}
		}
	}
}
