package mpegts

import "io"

// patPID and the well-known PMT PID this muxer always assigns; one program,
// one PMT, matching the single-program transport streams this system reads.
const (
	patPID  uint16 = 0x0000
	pmtPID  uint16 = 0x1000
	tsPacketPayload = packetSize - 4
)

// Muxer packetizes a PAT, a PMT, and PES-wrapped elementary stream payloads
// into a transport stream written to w. It is the write-side mirror of
// Demuxer: same packet layout and PSI section framing, run in reverse.
type Muxer struct {
	w  io.Writer
	cc map[uint16]uint8
}

// NewMuxer returns a Muxer writing to w.
func NewMuxer(w io.Writer) *Muxer {
	return &Muxer{w: w, cc: make(map[uint16]uint8)}
}

// WriteHeader emits one PAT (pointing at pmtPID) and one PMT listing
// streams. Call it once, before any WritePES.
func (m *Muxer) WriteHeader(streams []PMTElementaryStream) error {
	if err := m.writeSection(patPID, buildPATSection(pmtPID)); err != nil {
		return err
	}
	return m.writeSection(pmtPID, buildPMTSection(streams))
}

// WritePES wraps data in a PES header addressed to pid and packetizes it.
// hasDTS distinguishes a PTS-only header from a PTS+DTS one; dts is
// ignored when hasDTS is false.
func (m *Muxer) WritePES(pid uint16, streamID uint8, pts, dts int64, hasDTS bool, data []byte) error {
	pes := buildPESSection(streamID, pts, dts, hasDTS, data)
	return m.writeTSPackets(pid, pes, true)
}

func (m *Muxer) writeSection(pid uint16, body []byte) error {
	section := appendCRC32(body)
	payload := make([]byte, 1+len(section))
	payload[0] = 0x00 // pointer field
	copy(payload[1:], section)
	return m.writeTSPackets(pid, payload, true)
}

// writeTSPackets splits payload into 188-byte TS packets addressed to pid,
// setting PUSI on only the first one, and padding the final packet with an
// adaptation-field stuffing region rather than extra payload bytes (which
// would otherwise be read back as part of an unbounded-length PES payload).
func (m *Muxer) writeTSPackets(pid uint16, payload []byte, firstPUSI bool) error {
	pusi := firstPUSI
	for len(payload) > 0 {
		pkt := make([]byte, packetSize)
		pkt[0] = syncByte
		pkt[1] = byte(pid>>8) & 0x1F
		if pusi {
			pkt[1] |= 0x40
		}
		pkt[2] = byte(pid)

		cc := m.cc[pid]
		m.cc[pid] = (cc + 1) & 0x0F

		n := len(payload)
		if n >= tsPacketPayload {
			pkt[3] = 0x10 | (cc & 0x0F) // payload only
			copy(pkt[4:], payload[:tsPacketPayload])
			payload = payload[tsPacketPayload:]
		} else {
			pad := tsPacketPayload - n
			pkt[3] = 0x30 | (cc & 0x0F) // adaptation field + payload
			if pad == 1 {
				pkt[4] = 0x00
			} else {
				afLen := pad - 1
				pkt[4] = byte(afLen)
				pkt[5] = 0x00
				for i := 6; i < 4+pad; i++ {
					pkt[i] = 0xFF
				}
			}
			copy(pkt[4+pad:], payload)
			payload = nil
		}

		if _, err := m.w.Write(pkt); err != nil {
			return err
		}
		pusi = false
	}
	return nil
}

func appendCRC32(body []byte) []byte {
	crc := crc32MPEG2(body)
	return append(append([]byte{}, body...), byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

// buildPATSection builds a single-program PAT body (sans CRC) pointing
// program 1 at pmtPID.
func buildPATSection(pmtPID uint16) []byte {
	body := []byte{
		0x00,       // table_id
		0xB0, 0x00, // section_syntax_indicator + section_length, patched below
		0x00, 0x01, // transport_stream_id
		0xC1, // version + current_next_indicator
		0x00, // section_number
		0x00, // last_section_number
		0x00, 0x01, // program_number = 1
		byte(0xE0 | pmtPID>>8), byte(pmtPID),
	}
	patchSectionLength(body)
	return body
}

// buildPMTSection builds a single-program PMT body (sans CRC) listing streams.
func buildPMTSection(streams []PMTElementaryStream) []byte {
	body := []byte{
		0x02,       // table_id
		0xB0, 0x00, // section_syntax_indicator + section_length, patched below
		0x00, 0x01, // program_number
		0xC1,       // version + current_next_indicator
		0x00,       // section_number
		0x00,       // last_section_number
		0xE1, 0x00, // reserved + PCR_PID (first stream; 0x100 if there are none)
		0xF0, 0x00, // program_info_length = 0
	}
	if len(streams) > 0 {
		body[8] = byte(0xE0 | streams[0].ElementaryPID>>8)
		body[9] = byte(streams[0].ElementaryPID)
	}
	for _, s := range streams {
		body = append(body, s.StreamType, byte(0xE0|s.ElementaryPID>>8), byte(s.ElementaryPID), 0xF0, 0x00)
	}
	patchSectionLength(body)
	return body
}

// patchSectionLength fills in body[1:3]'s section_length field, assuming a
// trailing 4-byte CRC32 will be appended after body.
func patchSectionLength(body []byte) {
	sectionLength := len(body) - 3 + 4
	body[1] = 0xB0 | byte(sectionLength>>8)
	body[2] = byte(sectionLength)
}

// buildPESSection builds a PES packet (start code through payload) carrying
// a PTS (and optionally a DTS).
func buildPESSection(streamID uint8, pts, dts int64, hasDTS bool, data []byte) []byte {
	var optional []byte
	var ptsDTSFlags byte
	if hasDTS {
		ptsDTSFlags = 0xC0
		optional = append(encodeTimestamp(0x03, pts), encodeTimestamp(0x01, dts)...)
	} else {
		ptsDTSFlags = 0x80
		optional = encodeTimestamp(0x02, pts)
	}

	header := []byte{
		0x00, 0x00, 0x01, streamID,
		0x00, 0x00, // PES_packet_length, patched below if it fits in 16 bits
		0x80, ptsDTSFlags, byte(len(optional)),
	}
	header = append(header, optional...)

	packetLength := len(header) - 6 + len(data)
	if packetLength <= 0xFFFF {
		header[4] = byte(packetLength >> 8)
		header[5] = byte(packetLength)
	} // else leave 0: "unbounded", the convention real video streams use

	return append(header, data...)
}

// encodeTimestamp packs a 33-bit timestamp into the 5-byte PES format,
// prefixed with the given 4-bit marker ('0010' for PTS-only, '0011' for the
// PTS half of a PTS+DTS pair, '0001' for the DTS half).
func encodeTimestamp(prefix byte, ts int64) []byte {
	return []byte{
		byte(prefix<<4) | byte((ts>>29)&0x0E) | 0x01,
		byte(ts >> 22),
		byte((ts>>14)&0xFE) | 0x01,
		byte(ts >> 7),
		byte((ts<<1)&0xFE) | 0x01,
	}
}
