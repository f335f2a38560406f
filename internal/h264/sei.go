package h264

// SEI payload type tags used by this system (ITU-T H.264 Annex D).
const (
	SEITypeBufferingPeriod      = 0
	SEITypePicTiming            = 1
	SEITypeFillerPayload        = 3
	SEITypeUserDataRegistered   = 4
	SEITypeUserDataUnregistered = 5
	SEITypeRecoveryPoint        = 6
)

// SEIPayload is a single SEI message: a variadic-length type tag and its
// payload in SODB form (emulation-prevention already removed, stop bit
// already stripped).
type SEIPayload struct {
	Type int
	Data []byte
}

func parseVariadicLengthInt(rbsp []byte, pos *int) (int, error) {
	x := 0
	for {
		if *pos >= len(rbsp) {
			return 0, &ParseError{Reason: "malformed SEI: variadic length ran past end"}
		}
		b := rbsp[*pos]
		*pos++
		x += int(b)
		if b != 0xFF {
			break
		}
	}
	return x, nil
}

// ParseSEIPayloads walks the RBSP body of an SEI NALU (the NAL header byte
// already stripped) and returns each payload's type/size/bytes. rbsp_trailing_bits
// (0x80 and any padding before it) must already have been removed by the
// caller, e.g. via EBSPToSODB on the whole NALU body.
func ParseSEIPayloads(rbsp []byte) ([]SEIPayload, error) {
	var payloads []SEIPayload
	pos := 0
	for pos < len(rbsp) {
		payloadType, err := parseVariadicLengthInt(rbsp, &pos)
		if err != nil {
			return nil, err
		}
		payloadSize, err := parseVariadicLengthInt(rbsp, &pos)
		if err != nil {
			return nil, err
		}
		if payloadSize > len(rbsp)-pos {
			return nil, &ParseError{Reason: "malformed SEI: payload size exceeds remaining bytes"}
		}
		data := make([]byte, payloadSize)
		copy(data, rbsp[pos:pos+payloadSize])
		pos += payloadSize
		payloads = append(payloads, SEIPayload{Type: payloadType, Data: data})
	}
	return payloads, nil
}

func variadicLengthIntSize(n int) int {
	return n/255 + 1
}

func emitVariadicLengthInt(n int, out []byte) []byte {
	for n >= 255 {
		out = append(out, 0xFF)
		n -= 255
	}
	return append(out, byte(n))
}

func seiPayloadSizeHint(p SEIPayload) int {
	x := len(p.Data) + countEmulationPreventionBytes(p.Data) + 1
	x += variadicLengthIntSize(len(p.Data))
	x += variadicLengthIntSize(p.Type)
	return x
}

func emitSEIPayload(p SEIPayload, out []byte) []byte {
	out = emitVariadicLengthInt(p.Type, out)
	out = emitVariadicLengthInt(len(p.Data), out)
	return append(out, p.Data...)
}

// EmitSEINALU builds a complete AVCC NALU (with 4-byte length prefix and
// SEI NAL header byte) carrying the given payloads in order. The payloads
// form one SODB, escaped with emulation prevention as a whole and ended by
// a single stop bit.
func EmitSEINALU(payloads []SEIPayload) []byte {
	sizeHint := 1
	for _, p := range payloads {
		sizeHint += seiPayloadSizeHint(p)
	}

	sodb := make([]byte, 0, sizeHint)
	for _, p := range payloads {
		sodb = emitSEIPayload(p, sodb)
	}
	body := append([]byte{NALTypeSEI}, SODBToEBSP(sodb)...)

	return EmitAVCC(NALU{Data: body})
}
