package bitio

import "testing"

func TestReaderUint64RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		bits int
		val  uint64
	}{
		{"8 bits", 8, 0xAB},
		{"12 bits high", 12, 0xFFF},
		{"12 bits low", 12, 0x001},
		{"33 bits", 33, 0x1FFFFFFFF},
		{"1 bit", 1, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWriter((tc.bits + 7) / 8)
			w.PutUint64(tc.bits, tc.val)

			r := NewReader(w.Bytes())
			got := r.Uint64(tc.bits)
			if r.Err() != nil {
				t.Fatalf("unexpected error: %v", r.Err())
			}
			if got != tc.val {
				t.Fatalf("got %#x, want %#x", got, tc.val)
			}
		})
	}
}

func TestReaderOverflow(t *testing.T) {
	r := NewReader([]byte{0xFF})
	r.Uint64(4)
	r.Uint64(8) // only 4 bits remain
	if r.Err() == nil {
		t.Fatal("expected overflow error")
	}

	var pe *ParseError
	if _, ok := r.Err().(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T", r.Err())
	}
	_ = pe
}

func TestReaderSkipAndBytes(t *testing.T) {
	data := []byte{0x00, 0xAB, 0xCD}
	r := NewReader(data)
	r.Skip(8)
	got := r.Bytes(2)
	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
	if got[0] != 0xAB || got[1] != 0xCD {
		t.Fatalf("got %x, want ab cd", got)
	}
}

func TestBitsLeft(t *testing.T) {
	r := NewReader([]byte{0x00, 0x00})
	if r.BitsLeft() != 16 {
		t.Fatalf("got %d, want 16", r.BitsLeft())
	}
	r.Skip(5)
	if r.BitsLeft() != 11 {
		t.Fatalf("got %d, want 11", r.BitsLeft())
	}
}
