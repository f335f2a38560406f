package tsdemux

import (
	"bytes"
	"context"
	"testing"

	"github.com/zsiec/metamix/internal/container"
)

const tsPacketSize = 188

func tsPacket(pid uint16, cc uint8, pusi bool, payload []byte) []byte {
	buf := make([]byte, tsPacketSize)
	buf[0] = 0x47
	buf[1] = byte(pid>>8) & 0x1F
	if pusi {
		buf[1] |= 0x40
	}
	buf[2] = byte(pid)
	buf[3] = 0x10 | (cc & 0x0F)
	copy(buf[4:], payload)
	return buf
}

// crc32MPEG2 mirrors internal/mpegts's unexported CRC32 so this test can
// build section bytes that verify against it.
func crc32MPEG2(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func crc32Section(body []byte) []byte {
	crc := crc32MPEG2(body)
	return append(append([]byte{}, body...), byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

// pmtPayload builds a minimal single-program PMT section listing streams,
// with a correct trailing CRC32.
func pmtPayload(streams []struct {
	streamType uint8
	pid        uint16
}) []byte {
	body := []byte{
		0x02,       // table_id
		0xB0, 0x00, // section_syntax_indicator + section_length (patched below)
		0x00, 0x01, // program_number
		0xC1,       // version + current_next
		0x00,       // section_number
		0x00,       // last_section_number
		0xE1, 0x00, // PCR_PID
		0xF0, 0x00, // program_info_length = 0
	}
	for _, s := range streams {
		body = append(body, s.streamType, byte(s.pid>>8)&0x1F, byte(s.pid), 0xF0, 0x00)
	}
	sectionLength := len(body) - 3 + 4 // everything after length field, plus CRC
	body[1] = 0xB0 | byte(sectionLength>>8)
	body[2] = byte(sectionLength)

	section := crc32Section(body)
	payload := make([]byte, 1+len(section))
	payload[0] = 0x00 // pointer field
	copy(payload[1:], section)
	return payload
}

// patPayload builds a single-program PAT section pointing pmtPID at its
// PMT, so the demuxer's program map recognizes pmtPID as carrying PSI.
func patPayload(pmtPID uint16) []byte {
	body := []byte{
		0x00,       // table_id
		0xB0, 0x00, // section_syntax_indicator + section_length (patched below)
		0x00, 0x01, // transport_stream_id
		0xC1, // version + current_next
		0x00, // section_number
		0x00, // last_section_number
		0x00, 0x01, // program_number = 1
		byte(0xE0 | pmtPID>>8), byte(pmtPID),
	}
	sectionLength := len(body) - 3 + 4
	body[1] = 0xB0 | byte(sectionLength>>8)
	body[2] = byte(sectionLength)

	section := crc32Section(body)
	payload := make([]byte, 1+len(section))
	payload[0] = 0x00
	copy(payload[1:], section)
	return payload
}

func pesPayload(streamID byte, pts int64, data []byte) []byte {
	ptsBytes := []byte{
		byte(0x21 | (pts>>29)&0x0E),
		byte(pts >> 22),
		byte(0x01 | (pts>>14)&0xFE),
		byte(pts >> 7),
		byte(0x01 | (pts<<1)&0xFE),
	}
	header := []byte{0x00, 0x00, 0x01, streamID, 0x00, 0x00, 0x80, 0x80, 0x05}
	header = append(header, ptsBytes...)
	return append(header, data...)
}

func TestPacketSourceStreamsClassifiesByPMT(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(tsPacket(0x0000, 0, true, patPayload(0x1000)))
	stream.Write(tsPacket(0x1000, 0, true, pmtPayload([]struct {
		streamType uint8
		pid        uint16
	}{
		{0x1B, 0x100},  // H.264 video
		{0x86, 0x101},  // SCTE-35
		{0x0F, 0x102},  // AAC, uninteresting
	})))

	ps := New()
	streams, err := ps.Streams(&stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(streams) != 3 {
		t.Fatalf("got %d streams, want 3", len(streams))
	}
	if streams[0].Codec != container.CodecH264 {
		t.Fatalf("got codec %v for pid 0x100, want CodecH264", streams[0].Codec)
	}
	if streams[1].Codec != container.CodecSCTE35 {
		t.Fatalf("got codec %v for pid 0x101, want CodecSCTE35", streams[1].Codec)
	}
	if streams[2].Codec != container.CodecUnknown {
		t.Fatalf("got codec %v for pid 0x102, want CodecUnknown", streams[2].Codec)
	}
}

func TestPacketSourceReadPacketExtractsPTS(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(tsPacket(0x0000, 0, true, patPayload(0x1000)))
	stream.Write(tsPacket(0x1000, 0, true, pmtPayload([]struct {
		streamType uint8
		pid        uint16
	}{
		{0x1B, 0x100},
	})))

	videoData := []byte{0x00, 0x00, 0x00, 0x01, 0x65}
	stream.Write(tsPacket(0x100, 0, true, pesPayload(0xE0, 90000, videoData)))

	ps := New()
	if _, err := ps.Streams(&stream); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pkt, err := ps.ReadPacket(context.Background(), &stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkt.StreamIndex != 0 {
		t.Fatalf("got stream index %d, want 0", pkt.StreamIndex)
	}
	if pkt.PTS != 90000 {
		t.Fatalf("got PTS %d, want 90000", pkt.PTS)
	}
	if !bytes.Contains(pkt.Data, []byte{0x65}) {
		t.Fatalf("got data %x, missing payload", pkt.Data)
	}
}
