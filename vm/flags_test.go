package vm

import "testing"

// TestADDWidths covers invariant 1: for every operand width, ADD's stored
// result is (a+b) mod 2^W and flags follow the architectural table.
func TestADDWidths(t *testing.T) {
	cases := []struct {
		w        int
		a, b     uint64
		wantR    uint64
		cf, zf   bool
	}{
		{Width8, 0xFF, 0x01, 0x00, true, true},
		{Width16, 0x1234, 0x0001, 0x1235, false, false},
		{Width32, 0xFFFFFFFF, 0x02, 0x01, true, false},
		{Width64, 0xFFFFFFFFFFFFFFFF, 0x01, 0x00, true, true},
	}
	for _, tc := range cases {
		var f EFLAGS
		got := f.ADD(tc.a, tc.b, tc.w)
		if got != tc.wantR {
			t.Errorf("ADD(%#x,%#x,w=%d) = %#x, want %#x", tc.a, tc.b, tc.w, got, tc.wantR)
		}
		if f.CF != tc.cf {
			t.Errorf("ADD(%#x,%#x,w=%d) CF = %v, want %v", tc.a, tc.b, tc.w, f.CF, tc.cf)
		}
		if f.ZF != tc.zf {
			t.Errorf("ADD(%#x,%#x,w=%d) ZF = %v, want %v", tc.a, tc.b, tc.w, f.ZF, tc.zf)
		}
	}
}

// TestShiftZeroCountLeavesFlags covers invariant 3: SHL/SHR with a masked
// count of 0 is a complete no-op on flags.
func TestShiftZeroCountLeavesFlags(t *testing.T) {
	f := EFLAGS{CF: true, ZF: true, OF: true, PF: true}
	before := f
	got := f.Shift(0x55, 0, Width8, ShiftSHL)
	if got != 0x55 {
		t.Errorf("Shift with count 0 changed the value: got %#x", got)
	}
	if f != before {
		t.Errorf("Shift with count 0 changed flags: got %+v, want %+v", f, before)
	}

	f2 := EFLAGS{CF: true, ZF: false}
	before2 := f2
	got2 := f2.Shift(0x80, 32, Width8, ShiftSHR) // masked count 32&0x1F == 0
	if got2 != 0x80 {
		t.Errorf("Shift with masked count 0 changed the value: got %#x", got2)
	}
	if f2 != before2 {
		t.Errorf("Shift with masked count 0 changed flags: got %+v, want %+v", f2, before2)
	}
}

// TestINCPreservesCF covers invariant/scenario S4: INC AL on 0x0F with CF
// already set leaves CF untouched while updating AF/OF/ZF.
func TestINCPreservesCF(t *testing.T) {
	f := EFLAGS{CF: true}
	got := f.INC(0x0F, Width8)
	if got != 0x10 {
		t.Fatalf("INC(0x0F) = %#x, want 0x10", got)
	}
	if !f.CF {
		t.Error("expected CF to remain set across INC")
	}
	if !f.AF {
		t.Error("expected AF set (0x0F -> 0x10 carries out of bit 3)")
	}
	if f.OF {
		t.Error("expected OF clear")
	}
	if f.ZF {
		t.Error("expected ZF clear")
	}
}

// TestDECPreservesCF mirrors TestINCPreservesCF for DEC.
func TestDECPreservesCF(t *testing.T) {
	f := EFLAGS{CF: true}
	got := f.DEC(0x00, Width8)
	if got != 0xFF {
		t.Fatalf("DEC(0x00) = %#x, want 0xFF", got)
	}
	if !f.CF {
		t.Error("expected CF to remain set across DEC")
	}
}

// TestEFLAGSRoundTrip checks ToUint64/FromUint64 preserve flag state,
// including the always-1 bit at position 1.
func TestEFLAGSRoundTrip(t *testing.T) {
	f := EFLAGS{CF: true, ZF: true, SF: true, DF: true, IF: true, IOPL: 3}
	packed := f.ToUint64()
	if packed&flagFixed == 0 {
		t.Error("expected bit 1 to always read as 1")
	}
	var g EFLAGS
	g.FromUint64(packed)
	if g.CF != f.CF || g.ZF != f.ZF || g.SF != f.SF || g.DF != f.DF || g.IF != f.IF || g.IOPL != f.IOPL {
		t.Errorf("round trip mismatch: got %+v, want fields from %+v", g, f)
	}
}

// TestEvaluateConditions spot-checks a handful of the 16 Jcc predicates.
func TestEvaluateConditions(t *testing.T) {
	f := EFLAGS{ZF: true}
	if !f.Evaluate(CondE) {
		t.Error("expected CondE true when ZF set")
	}
	if f.Evaluate(CondNE) {
		t.Error("expected CondNE false when ZF set")
	}

	f2 := EFLAGS{SF: true, OF: false}
	if !f2.Evaluate(CondL) {
		t.Error("expected CondL true when SF != OF")
	}
}
