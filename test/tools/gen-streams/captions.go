package main

import (
	"github.com/zsiec/metamix/internal/h264"
)

// buildFrame returns one AVCC access unit: an AUD, an SEI NALU carrying a
// CEA-608 line-21 caption payload (only on every 15th frame, imitating a
// real encoder that doesn't repeat caption data every frame), and a
// placeholder slice NALU standing in for actual compressed video.
func buildFrame(index int, text string) ([]byte, error) {
	var out []byte

	out = append(out, h264.EmitAVCC(h264.NALU{Data: []byte{h264.NALTypeAUD, 0xF0}})...)

	if index%15 == 0 {
		out = append(out, h264.EmitSEINALU([]h264.SEIPayload{
			{Type: h264.SEITypeUserDataRegistered, Data: cea608Payload(text)},
		})...)
	}

	sliceType := byte(h264.NALTypeSlice)
	if index == 0 {
		sliceType = h264.NALTypeIDR
	}
	out = append(out, h264.EmitAVCC(h264.NALU{Data: placeholderSlice(sliceType, index)})...)

	return out, nil
}

// cea608Payload builds a minimal, well-formed ATSC A/53 user_data_type_structure
// carrying text as CEA-608 line-21 byte pairs (odd parity is not computed
// here; this is test fixture data, not a broadcast-compliant encoder).
func cea608Payload(text string) []byte {
	pairs := [][2]byte{}
	for i := 0; i < len(text); i += 2 {
		b0 := text[i]
		b1 := byte(0x80)
		if i+1 < len(text) {
			b1 = text[i+1]
		}
		pairs = append(pairs, [2]byte{b0, b1})
	}

	body := []byte{
		181, 0, 49, 'G', 'A', '9', '4', 3,
		0b010_00000 | byte(len(pairs)+1),
		0x00,
	}
	for _, p := range pairs {
		body = append(body, 0b11111_1_00, p[0]|0x80, p[1]|0x80)
	}
	body = append(body, 0b11111_0_10, 0x00, 0x00, 0xFF)
	return body
}

// placeholderSlice returns a syntactically minimal NALU of the given type:
// just the NAL header and a one-byte body, enough to round-trip through
// SplitAVCC but not decodable as real video.
func placeholderSlice(nalType byte, index int) []byte {
	return []byte{nalType, byte(index)}
}
