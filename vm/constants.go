// Package vm implements the x86 instruction execution engine: register
// file, flag arithmetic, memory/segmentation, the fetch-decode-execute
// loop, and the exception pipeline. It does not implement the full x86
// opcode catalogue -- only a representative set of handlers sufficient to
// exercise every addressing mode and flag contract the architecture
// defines. Device models (PIC/LAPIC/IOAPIC) live in the sibling `platform`
// package and are threaded in explicitly rather than held as singletons.
package vm

// Operand/address widths in bits.
const (
	Width8  = 8
	Width16 = 16
	Width32 = 32
	Width64 = 64
)

// EFLAGS bit positions (also valid for RFLAGS; bits above 21 are reserved).
const (
	FlagCF   = 1 << 0  // Carry
	FlagPF   = 1 << 2  // Parity
	FlagAF   = 1 << 4  // Auxiliary carry
	FlagZF   = 1 << 6  // Zero
	FlagSF   = 1 << 7  // Sign
	FlagTF   = 1 << 8  // Trap
	FlagIF   = 1 << 9  // Interrupt enable
	FlagDF   = 1 << 10 // Direction
	FlagOF   = 1 << 11 // Overflow
	FlagIOPL = 3 << 12 // I/O privilege level (2 bits)
	FlagNT   = 1 << 14 // Nested task
	FlagRF   = 1 << 16 // Resume
	FlagVM   = 1 << 17 // Virtual-8086 mode
	FlagAC   = 1 << 18 // Alignment check
	FlagVIF  = 1 << 19 // Virtual interrupt flag
	FlagVIP  = 1 << 20 // Virtual interrupt pending
	FlagID   = 1 << 21 // ID flag
	flagFixed = 1 << 1 // bit 1 always reads as 1
)

// Segment register indices, matching the encoding order used by segment
// override prefixes and SS/DS defaulting rules.
const (
	SegES = 0
	SegCS = 1
	SegSS = 2
	SegDS = 3
	SegFS = 4
	SegGS = 5
)

// General purpose register codes (0..15; 8..15 valid only with REX).
const (
	RegAX = 0
	RegCX = 1
	RegDX = 2
	RegBX = 3
	RegSP = 4
	RegBP = 5
	RegSI = 6
	RegDI = 7
)

// Architectural reset values (spec.md S6 "Architectural constants").
const (
	ResetCS        uint16 = 0xF000
	ResetIP        uint32 = 0xFFF0
	A20EnabledAtReset = false
)

// Fault vectors (spec.md S4.8).
const (
	VecDE = 0  // Divide error
	VecDB = 1  // Debug
	VecBP = 3  // Breakpoint
	VecOF = 4  // Overflow (INTO)
	VecBR = 5  // Bound range exceeded
	VecUD = 6  // Undefined opcode
	VecNM = 7  // Device not available
	VecDF = 8  // Double fault
	VecTS = 10 // Invalid TSS
	VecNP = 11 // Segment not present
	VecSS = 12 // Stack-segment fault
	VecGP = 13 // General protection
	VecPF = 14 // Page fault
	VecMF = 16 // x87 FP error
	VecAC = 17 // Alignment check
	VecMC = 18 // Machine check
	VecXM = 19 // SIMD FP exception
)

// MMIO window base addresses (spec.md S4.3 / S6).
const (
	LapicWindowSize      = 0x1000
	IoapicBase           = 0xFEC00000
	IoapicWindowSize     = 0x1000
	FramebufferBase      = 0xE0000000
)
