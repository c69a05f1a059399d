// Package tools provides display formatting helpers shared by the
// debugger's CLI, TUI and GUI front ends: hex dumps, register tables and
// flag summaries.
package tools

import (
	"fmt"
	"strings"
)

// FormatStyle selects how much whitespace a formatter uses.
type FormatStyle int

const (
	FormatDefault  FormatStyle = iota // standard spacing
	FormatCompact                     // minimal whitespace, one line per row
	FormatExpanded                    // extra spacing for readability
)

// FormatOptions controls hex dump and register table layout.
type FormatOptions struct {
	Style            FormatStyle
	BytesPerLine     int  // hex dump: bytes shown per row
	RegistersPerLine int  // register table: registers shown per row
	ShowASCII        bool // hex dump: append the printable-ASCII gutter
	UppercaseHex     bool
}

// DefaultFormatOptions mirrors the debugger's default panel layout: 16
// bytes per hex dump row, 4 registers per table row, ASCII gutter shown.
func DefaultFormatOptions() *FormatOptions {
	return &FormatOptions{
		Style:            FormatDefault,
		BytesPerLine:     16,
		RegistersPerLine: 4,
		ShowASCII:        true,
		UppercaseHex:     true,
	}
}

// CompactFormatOptions packs more onto each row, for the TUI's smaller panes.
func CompactFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatCompact
	opts.BytesPerLine = 32
	opts.RegistersPerLine = 8
	opts.ShowASCII = false
	return opts
}

// ExpandedFormatOptions is used for full-screen memory/register views.
func ExpandedFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatExpanded
	opts.BytesPerLine = 8
	opts.RegistersPerLine = 2
	return opts
}

// Formatter renders hex dumps and register tables using a shared set of
// FormatOptions, so the CLI, TUI and GUI panels stay visually consistent.
type Formatter struct {
	options *FormatOptions
}

// NewFormatter creates a Formatter; a nil options uses DefaultFormatOptions.
func NewFormatter(options *FormatOptions) *Formatter {
	if options == nil {
		options = DefaultFormatOptions()
	}
	return &Formatter{options: options}
}

func (f *Formatter) hexFmt() string {
	if f.options.UppercaseHex {
		return "%02X"
	}
	return "%02x"
}

// FormatHexDump renders data (read from physical address base) as a
// classic hex-dump: one row of f.options.BytesPerLine bytes, an optional
// ASCII gutter, addresses left-padded to 8 hex digits.
func (f *Formatter) FormatHexDump(base uint64, data []byte) string {
	var sb strings.Builder
	perLine := f.options.BytesPerLine
	if perLine <= 0 {
		perLine = 16
	}
	byteFmt := f.hexFmt()

	for off := 0; off < len(data); off += perLine {
		end := off + perLine
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]

		fmt.Fprintf(&sb, "%08X  ", base+uint64(off))
		for i := 0; i < perLine; i++ {
			if i < len(row) {
				fmt.Fprintf(&sb, byteFmt+" ", row[i])
			} else {
				sb.WriteString("   ")
			}
			if i == perLine/2-1 {
				sb.WriteString(" ")
			}
		}
		if f.options.ShowASCII {
			sb.WriteString(" |")
			for _, b := range row {
				if b >= 0x20 && b < 0x7F {
					sb.WriteByte(b)
				} else {
					sb.WriteByte('.')
				}
			}
			sb.WriteString("|")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// NamedValue is one entry of a register or flag table: a display name and
// its current value.
type NamedValue struct {
	Name  string
	Value uint64
	Width int // in hex digits; 0 defaults to 8
}

// FormatRegisterTable lays regs out in a grid of f.options.RegistersPerLine
// columns, right-padding names so values line up — the same column-aligned
// idea the teacher's assembly formatter used for operand columns, applied
// to a register dump instead.
func (f *Formatter) FormatRegisterTable(regs []NamedValue) string {
	perLine := f.options.RegistersPerLine
	if perLine <= 0 {
		perLine = 4
	}
	var sb strings.Builder

	hexVerb := "X"
	if !f.options.UppercaseHex {
		hexVerb = "x"
	}
	for i, r := range regs {
		width := r.Width
		if width == 0 {
			width = 8
		}
		valFmt := fmt.Sprintf("%%0%d%s", width, hexVerb)
		fmt.Fprintf(&sb, "%-4s="+valFmt+" ", r.Name, r.Value)
		if (i+1)%perLine == 0 || i == len(regs)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// FormatFlagSummary renders a set of boolean flags as a space-separated
// list of their names, uppercased when set and lowercased when clear
// (e.g. "CF zf SF of"), matching how the teacher's status line showed CPSR.
func FormatFlagSummary(flags []NamedFlag) string {
	parts := make([]string, len(flags))
	for i, fl := range flags {
		if fl.Set {
			parts[i] = strings.ToUpper(fl.Name)
		} else {
			parts[i] = strings.ToLower(fl.Name)
		}
	}
	return strings.Join(parts, " ")
}

// NamedFlag is one flag bit plus its current value, used by FormatFlagSummary.
type NamedFlag struct {
	Name string
	Set  bool
}

// FormatHexDump is a convenience function using DefaultFormatOptions.
func FormatHexDump(base uint64, data []byte) string {
	return NewFormatter(DefaultFormatOptions()).FormatHexDump(base, data)
}

// FormatHexDumpWithStyle formats a hex dump with a named style.
func FormatHexDumpWithStyle(base uint64, data []byte, style FormatStyle) string {
	var options *FormatOptions
	switch style {
	case FormatCompact:
		options = CompactFormatOptions()
	case FormatExpanded:
		options = ExpandedFormatOptions()
	default:
		options = DefaultFormatOptions()
	}
	return NewFormatter(options).FormatHexDump(base, data)
}
