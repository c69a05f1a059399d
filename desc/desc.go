// Package desc encodes and decodes the 8-byte segment and gate descriptors
// that populate the GDT, LDT and IDT. It replaces the teacher's
// ARM-mnemonic-to-machine-code encoder with the x86 equivalent concern:
// packing/unpacking privilege and type bits into a fixed-width descriptor
// word, following the same bit-field-assembly idiom (spec.md S4.8).
package desc

import "fmt"

// Type identifies what kind of descriptor an 8-byte GDT/LDT/IDT slot holds.
type Type int

const (
	TypeNull Type = iota
	TypeCode
	TypeData
	TypeTSSAvailable
	TypeTSSBusy
	TypeCallGate
	TypeInterruptGate
	TypeTrapGate
	TypeLDT
)

// Segment is the decoded form of a code/data/TSS/LDT segment descriptor.
type Segment struct {
	Base       uint64
	Limit      uint32
	Type       Type
	DPL        int
	Present    bool
	DB         bool // 0=16-bit default, 1=32-bit default (code/data only)
	Long       bool // L bit, code segments only
	Granularity bool // G bit: limit scaled by 4KiB
	Conforming bool // code segments only
	Writable   bool // data segments only
}

// Gate is the decoded form of a call/interrupt/trap gate descriptor,
// living in the GDT (call gates) or IDT (interrupt/trap gates).
type Gate struct {
	Selector uint16
	Offset   uint64
	Type     Type
	DPL      int
	Present  bool
	ParamCount int // call gates only: count of stack params to copy (spec S4.7)
}

// EncodeSegment packs a Segment into its 8-byte GDT/LDT representation.
func EncodeSegment(s Segment) [8]byte {
	var d [8]byte
	limit := s.Limit
	if s.Granularity {
		limit >>= 12
	}
	d[0] = byte(limit)
	d[1] = byte(limit >> 8)
	d[2] = byte(s.Base)
	d[3] = byte(s.Base >> 8)
	d[4] = byte(s.Base >> 16)

	access := byte(0x10) // S=1 (code/data, not system)
	access |= byte(s.DPL&0x3) << 5
	if s.Present {
		access |= 0x80
	}
	switch s.Type {
	case TypeCode:
		access |= 0x08
		if s.Conforming {
			access |= 0x04
		}
		access |= 0x02 // readable
	case TypeData:
		if s.Writable {
			access |= 0x02
		}
	}
	d[5] = access

	flags := byte((limit >> 16) & 0x0F)
	if s.Granularity {
		flags |= 0x80
	}
	if s.Long {
		flags |= 0x20
	} else if s.DB {
		flags |= 0x40
	}
	d[6] = flags
	d[7] = byte(s.Base >> 24)
	return d
}

// DecodeSegment unpacks an 8-byte GDT/LDT slot into a Segment.
func DecodeSegment(d [8]byte) Segment {
	limit := uint32(d[0]) | uint32(d[1])<<8 | uint32(d[6]&0x0F)<<16
	base := uint64(d[2]) | uint64(d[3])<<8 | uint64(d[4])<<16 | uint64(d[7])<<24
	access := d[5]
	flags := d[6]
	s := Segment{
		Base:        base,
		Limit:       limit,
		DPL:         int((access >> 5) & 0x3),
		Present:     access&0x80 != 0,
		Granularity: flags&0x80 != 0,
		Long:        flags&0x20 != 0,
		DB:          flags&0x40 != 0,
	}
	if s.Granularity {
		s.Limit = s.Limit<<12 | 0xFFF
	}
	if access&0x08 != 0 {
		s.Type = TypeCode
		s.Conforming = access&0x04 != 0
	} else {
		s.Type = TypeData
		s.Writable = access&0x02 != 0
	}
	return s
}

// gateTypeCode returns the IA-32 descriptor-type nibble for a gate Type.
func gateTypeCode(t Type) (byte, error) {
	switch t {
	case TypeCallGate:
		return 0xC, nil
	case TypeInterruptGate:
		return 0xE, nil
	case TypeTrapGate:
		return 0xF, nil
	case TypeTSSAvailable:
		return 0x9, nil
	case TypeTSSBusy:
		return 0xB, nil
	case TypeLDT:
		return 0x2, nil
	}
	return 0, fmt.Errorf("desc: %v is not a gate type", t)
}

// EncodeGate packs a Gate into its 8-byte IDT/GDT representation.
func EncodeGate(g Gate) ([8]byte, error) {
	var d [8]byte
	code, err := gateTypeCode(g.Type)
	if err != nil {
		return d, err
	}
	d[0] = byte(g.Offset)
	d[1] = byte(g.Offset >> 8)
	d[2] = byte(g.Selector)
	d[3] = byte(g.Selector >> 8)
	if g.Type == TypeCallGate {
		d[4] = byte(g.ParamCount & 0x1F)
	}
	access := code
	access |= byte(g.DPL&0x3) << 5
	if g.Present {
		access |= 0x80
	}
	d[5] = access
	d[6] = byte(g.Offset >> 16)
	d[7] = byte(g.Offset >> 24)
	return d, nil
}

// DecodeGate unpacks an 8-byte IDT/GDT slot into a Gate.
func DecodeGate(d [8]byte) Gate {
	access := d[5]
	typeCode := access & 0x0F
	g := Gate{
		Offset:   uint64(d[0]) | uint64(d[1])<<8 | uint64(d[6])<<16 | uint64(d[7])<<24,
		Selector: uint16(d[2]) | uint16(d[3])<<8,
		DPL:      int((access >> 5) & 0x3),
		Present:  access&0x80 != 0,
	}
	switch typeCode {
	case 0xC:
		g.Type = TypeCallGate
		g.ParamCount = int(d[4] & 0x1F)
	case 0xE:
		g.Type = TypeInterruptGate
	case 0xF:
		g.Type = TypeTrapGate
	case 0x9:
		g.Type = TypeTSSAvailable
	case 0xB:
		g.Type = TypeTSSBusy
	case 0x2:
		g.Type = TypeLDT
	}
	return g
}
