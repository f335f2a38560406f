package h264

import "math"

// OrderPadding and OrderReset are the intra-frame order sentinels used by
// the synthesized "empty DTVCC padding" and "CC reset" SEI payloads: the
// padding sorts after any real caption for the same (input, pts) and the
// reset sorts before it, so a reset always precedes whatever the newly
// selected input contributes at the same instant.
const (
	OrderReset   = math.MinInt32
	OrderPadding = math.MaxInt32
)

// emptyPaddingPayload is a well-formed ATSC A/53 user_data_type_structure
// carrying no caption data (XDS null padding plus immediate DTVCC packet
// end markers), used so every output frame carries a syntactically valid
// captions SEI even when no source contributes one.
var emptyPaddingPayload = []byte{
	181, 0, 49, 'G', 'A', '9', '4', 3,
	0b010_00000 | 4,
	0x00,

	0b11111_1_00, 0x80, 0x80,
	0b11111_1_01, 0x01, 0x85,

	0b11111_0_10, 0x00, 0x00,
	0b11111_0_10, 0x00, 0x00,

	0xFF,
}

// ccResetPayload is a well-formed ATSC A/53 user_data_type_structure that
// erases displayed and non-displayed CEA-608 memory on both fields/channels
// and resets both CEA-708 language services, used to clear stale captions
// when the selected SEI input changes.
var ccResetPayload = []byte{
	181, 0, 49, 'G', 'A', '9', '4', 3,
	0b010_00000 | 18,
	0x00,

	0b11111_1_00, 0x94, 0x2C,
	0b11111_1_00, 0x94, 0xAE,
	0b11111_1_00, 0x94, 0x2F,

	0b11111_1_00, 0x1C, 0x2C,
	0b11111_1_00, 0x1C, 0xAE,
	0b11111_1_00, 0x1C, 0x2F,

	0b11111_1_01, 0x94, 0x2C,
	0b11111_1_01, 0x94, 0xAE,
	0b11111_1_01, 0x94, 0x2F,

	0b11111_1_01, 0x1C, 0x2C,
	0b11111_1_01, 0x1C, 0xAE,
	0b11111_1_01, 0x1C, 0x2F,

	0b11111_1_11, 0x02, 0x21,
	0b11111_1_10, 0x8F, 0x00,
	0b11111_1_11, 0x02, 0x41,
	0b11111_1_10, 0x8F, 0x00,

	0b11111_0_10, 0x00, 0x00,
	0b11111_0_10, 0x00, 0x00,

	0xFF,
}

// EmptyPaddingSEI returns the synthesized no-op captions payload. The
// returned SEIPayload.Data is shared and must not be mutated by callers.
func EmptyPaddingSEI() SEIPayload {
	return SEIPayload{Type: SEITypeUserDataRegistered, Data: emptyPaddingPayload}
}

// CCResetSEI returns the synthesized caption-reset payload. The returned
// SEIPayload.Data is shared and must not be mutated by callers.
func CCResetSEI() SEIPayload {
	return SEIPayload{Type: SEITypeUserDataRegistered, Data: ccResetPayload}
}
