package tools

import (
	"strings"
	"testing"
)

func TestFormatHexDump_SingleRow(t *testing.T) {
	data := []byte("Hi!")
	out := NewFormatter(DefaultFormatOptions()).FormatHexDump(0x1000, data)

	if !strings.Contains(out, "00001000") {
		t.Errorf("expected base address in output, got: %s", out)
	}
	if !strings.Contains(out, "48 69 21") {
		t.Errorf("expected hex bytes 48 69 21, got: %s", out)
	}
	if !strings.Contains(out, "|Hi!") {
		t.Errorf("expected ASCII gutter with Hi!, got: %s", out)
	}
}

func TestFormatHexDump_MultipleRows(t *testing.T) {
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	opts := DefaultFormatOptions()
	opts.BytesPerLine = 16
	out := NewFormatter(opts).FormatHexDump(0, data)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows for 20 bytes at 16/line, got %d: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "00000010") {
		t.Errorf("second row should start at offset 0x10, got: %s", lines[1])
	}
}

func TestFormatHexDump_NoASCII(t *testing.T) {
	opts := DefaultFormatOptions()
	opts.ShowASCII = false
	out := NewFormatter(opts).FormatHexDump(0, []byte{0x41})
	if strings.Contains(out, "|") {
		t.Errorf("did not expect an ASCII gutter, got: %s", out)
	}
}

func TestFormatRegisterTable(t *testing.T) {
	regs := []NamedValue{
		{Name: "EAX", Value: 0x1234},
		{Name: "EBX", Value: 0},
		{Name: "ECX", Value: 0xFF},
		{Name: "EDX", Value: 0xDEAD},
	}
	out := NewFormatter(DefaultFormatOptions()).FormatRegisterTable(regs)
	if !strings.Contains(out, "EAX =00001234") {
		t.Errorf("expected EAX =00001234, got: %s", out)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 1 {
		t.Errorf("expected 4 registers at 4/line to fit on one row, got %d rows: %q", len(lines), out)
	}
}

func TestFormatRegisterTable_Wraps(t *testing.T) {
	opts := DefaultFormatOptions()
	opts.RegistersPerLine = 2
	regs := []NamedValue{
		{Name: "EAX", Value: 1}, {Name: "EBX", Value: 2},
		{Name: "ECX", Value: 3}, {Name: "EDX", Value: 4},
	}
	out := NewFormatter(opts).FormatRegisterTable(regs)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 rows at 2/line, got %d: %q", len(lines), out)
	}
}

func TestFormatFlagSummary(t *testing.T) {
	flags := []NamedFlag{
		{Name: "CF", Set: true},
		{Name: "ZF", Set: false},
		{Name: "SF", Set: true},
	}
	got := FormatFlagSummary(flags)
	want := "CF zf SF"
	if got != want {
		t.Errorf("FormatFlagSummary = %q, want %q", got, want)
	}
}

func TestFormatHexDumpWithStyle_Compact(t *testing.T) {
	data := make([]byte, 32)
	out := FormatHexDumpWithStyle(0, data, FormatCompact)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 1 {
		t.Errorf("compact style packs 32 bytes/line, expected 1 row for 32 bytes, got %d", len(lines))
	}
}
