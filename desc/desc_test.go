package desc

import "testing"

func TestSegmentRoundTrip(t *testing.T) {
	cases := []Segment{
		{Base: 0, Limit: 0xFFFFFFFF, Type: TypeCode, DPL: 0, Present: true, DB: true, Granularity: true},
		{Base: 0x10000, Limit: 0xFFFF, Type: TypeData, DPL: 3, Present: true, Writable: true},
		{Base: 0x400000, Limit: 0x1000, Type: TypeCode, DPL: 0, Present: true, Long: true, Conforming: true},
	}
	for i, want := range cases {
		enc := EncodeSegment(want)
		got := DecodeSegment(enc)
		if got.Base != want.Base {
			t.Errorf("case %d: base = %#x, want %#x", i, got.Base, want.Base)
		}
		if got.Limit != want.Limit {
			t.Errorf("case %d: limit = %#x, want %#x", i, got.Limit, want.Limit)
		}
		if got.DPL != want.DPL {
			t.Errorf("case %d: dpl = %d, want %d", i, got.DPL, want.DPL)
		}
		if got.Present != want.Present {
			t.Errorf("case %d: present = %v, want %v", i, got.Present, want.Present)
		}
		if got.Type != want.Type {
			t.Errorf("case %d: type = %v, want %v", i, got.Type, want.Type)
		}
	}
}

func TestGateRoundTrip(t *testing.T) {
	cases := []Gate{
		{Selector: 0x08, Offset: 0x00401000, Type: TypeInterruptGate, DPL: 0, Present: true},
		{Selector: 0x08, Offset: 0x80001000, Type: TypeTrapGate, DPL: 3, Present: true},
		{Selector: 0x18, Offset: 0x1000, Type: TypeCallGate, DPL: 3, Present: true, ParamCount: 2},
	}
	for i, want := range cases {
		enc, err := EncodeGate(want)
		if err != nil {
			t.Fatalf("case %d: encode error: %v", i, err)
		}
		got := DecodeGate(enc)
		if got != want {
			t.Errorf("case %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestEncodeGateRejectsNonGateType(t *testing.T) {
	_, err := EncodeGate(Gate{Type: TypeCode})
	if err == nil {
		t.Fatal("expected error encoding a non-gate type as a gate")
	}
}
