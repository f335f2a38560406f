package input

import (
	"testing"

	"github.com/zsiec/metamix/internal/h264"
	"github.com/zsiec/metamix/internal/metadata"
)

func TestClearQuerySEIReturnsCCResetAtWindowEnd(t *testing.T) {
	c := NewClear()
	got := c.QuerySEI(100, 200)
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1", len(got))
	}
	if got[0].PTS != 199 {
		t.Fatalf("got pts %d, want 199 (until-1)", got[0].PTS)
	}
}

func TestClearQuerySCTEReturnsSpliceNull(t *testing.T) {
	c := NewClear()
	got := c.QuerySCTE(100, 200)
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1", len(got))
	}
	if got[0].Value.SpliceCommand.Type() != 0x00 {
		t.Fatalf("got command type %#x, want SpliceNull (0x00)", got[0].Value.SpliceCommand.Type())
	}
}

func TestUserDefinedQuerySEIFallsBackToEmptyPadding(t *testing.T) {
	g := metadata.NewGroup()
	u := NewUserDefined(Spec{ID: 1, Name: "cam1"}, g)

	got := u.QuerySEI(100, 200)
	if len(got) != 1 {
		t.Fatalf("got %d items, want the synthesized fallback", len(got))
	}
	if got[0].PTS != 199 {
		t.Fatalf("got pts %d, want 199", got[0].PTS)
	}
}

func TestUserDefinedQuerySEIDrainsQueuedMetadata(t *testing.T) {
	g := metadata.NewGroup()
	u := NewUserDefined(Spec{ID: 1, Name: "cam1"}, g)
	g.SEI().Push(metadata.Metadata[h264.SEIPayload]{
		InputID: 1, PTS: 150,
		Value: h264.SEIPayload{Type: 4, Data: []byte{0xAA}},
	})

	got := u.QuerySEI(100, 200)
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1 real payload", len(got))
	}
	if got[0].PTS != 150 {
		t.Fatalf("got pts %d, want the queued item's pts 150", got[0].PTS)
	}
}

func TestRegistryRejectsReservedIDAndName(t *testing.T) {
	g := metadata.NewGroup()
	_, err := NewRegistry(nil, []Input{NewUserDefined(Spec{ID: 0, Name: "x"}, g)})
	if err == nil {
		t.Fatal("expected error for reserved id 0")
	}
	_, err = NewRegistry(nil, []Input{NewUserDefined(Spec{ID: 1, Name: "clear"}, g)})
	if err == nil {
		t.Fatal("expected error for reserved name clear")
	}
}

func TestRegistryLookupAndSelection(t *testing.T) {
	g := metadata.NewGroup()
	cam1 := NewUserDefined(Spec{ID: 1, Name: "cam1"}, g)
	cam1.DeclareSEI()
	cam2 := NewUserDefined(Spec{ID: 2, Name: "cam2"}, g)

	reg, err := NewRegistry(nil, []Input{cam1, cam2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := reg.ByID(0); !ok {
		t.Fatal("expected virtual clear input to be present")
	}
	if in, ok := reg.ByName("cam2"); !ok || in.Spec().ID != 2 {
		t.Fatalf("got %+v, %v", in, ok)
	}

	if reg.Current(SEIKind) != ClearID {
		t.Fatalf("expected clear input selected by default")
	}

	if err := reg.SetCurrent(SEIKind, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Current(SEIKind) != 1 {
		t.Fatalf("got %d, want 1", reg.Current(SEIKind))
	}

	if err := reg.SetCurrent(SEIKind, 99); err == nil {
		t.Fatal("expected error selecting unregistered id")
	}

	// cam2 never declared SCTE; selecting it should still succeed (only a
	// warning is logged), just not error.
	if err := reg.SetCurrentByName(SCTEKind, "cam2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
