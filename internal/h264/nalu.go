// Package h264 implements the AVCC NALU framing, EBSP/RBSP/SODB byte
// transforms, and SEI payload codec used to carry CEA-608/708 closed
// captions in H.264 elementary streams.
package h264

import (
	"encoding/binary"
	"fmt"
)

// NAL unit type codes, per ITU-T H.264 Table 7-1.
const (
	NALTypeSlice      = 1
	NALTypeIDR        = 5
	NALTypeSEI        = 6
	NALTypeSPS        = 7
	NALTypePPS        = 8
	NALTypeAUD        = 9
	NALTypeFillerData = 12
)

// MaxNALULength is the largest NALU payload this codec will accept from an
// AVCC length prefix.
const MaxNALULength = 8 * 1024 * 1024

// NALU is a single AVCC NAL unit: the raw bytes including the one-byte NAL
// header, excluding the 4-byte length prefix.
type NALU struct {
	Data []byte
}

// IsValid reports whether the NALU has at least one byte and its
// forbidden_zero_bit is unset.
func (n NALU) IsValid() bool {
	return len(n.Data) > 0 && n.Data[0]&0x80 == 0
}

// Type returns the 5-bit NAL unit type from the header byte.
func (n NALU) Type() byte {
	if len(n.Data) == 0 {
		return 0
	}
	return n.Data[0] & 0x1F
}

// ParseError reports a malformed AVCC NALU stream.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "h264: " + e.Reason }

// SplitAVCC decodes a sequence of 4-byte-length-prefixed NAL units. It
// never copies: each returned NALU's Data is a sub-slice of frame.
func SplitAVCC(frame []byte) ([]NALU, error) {
	var units []NALU
	for len(frame) > 0 {
		if len(frame) < 4 {
			return nil, &ParseError{Reason: fmt.Sprintf("truncated NALU length prefix: %d bytes remain", len(frame))}
		}
		length := binary.BigEndian.Uint32(frame[:4])
		if length == 0 {
			return nil, &ParseError{Reason: "0-sized NALU"}
		}
		if length > MaxNALULength {
			return nil, &ParseError{Reason: fmt.Sprintf("NALU length %d exceeds maximum %d", length, MaxNALULength)}
		}
		frame = frame[4:]
		if uint64(length) > uint64(len(frame)) {
			return nil, &ParseError{Reason: fmt.Sprintf("NALU length %d exceeds remaining buffer %d", length, len(frame))}
		}
		units = append(units, NALU{Data: frame[:length]})
		frame = frame[length:]
	}
	return units, nil
}

// EmitAVCC writes a single NALU with its 4-byte big-endian length prefix.
func EmitAVCC(n NALU) []byte {
	out := make([]byte, 4+len(n.Data))
	binary.BigEndian.PutUint32(out[:4], uint32(len(n.Data)))
	copy(out[4:], n.Data)
	return out
}
