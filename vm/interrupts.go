package vm

import (
	"fmt"

	"github.com/x86emu/x86emu/desc"
)

// FaultKind distinguishes a guest-visible architectural exception/interrupt
// from the internal bookkeeping around it (spec.md S4.8, S7).
type FaultKind int

const (
	FaultException FaultKind = iota // CPU-detected fault/trap (#GP, #PF, ...)
	FaultSoftware                   // INT n / INT3 / INTO
	FaultExternal                   // delivered via PIC/IOAPIC
)

// Fault is the guest-visible interrupt/exception condition, carrying
// everything raiseFault needs to walk the IDT (spec.md S7).
type Fault struct {
	Kind      FaultKind
	Vector    int
	ErrorCode uint32
	HasError  bool
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault vector=%#x kind=%d errcode=%#x", f.Vector, f.Kind, f.ErrorCode)
}

// HostError reports an internal bug (unimplemented opcode path, IDT
// misconfiguration) distinct from any architectural Fault. VM.Step returns
// it directly instead of routing it through the guest's IDT (spec.md S7).
type HostError struct {
	Msg string
}

func (e *HostError) Error() string { return e.Msg }

func hostErrorf(format string, args ...any) *HostError {
	return &HostError{Msg: fmt.Sprintf(format, args...)}
}

// push pushes a value of the current stack width onto SS:[e]sp.
func (vm *VM) push(v uint64) error {
	w := vm.CPU.StackWidth()
	sp := vm.CPU.GPR[RegSP]
	sp -= uint64(w / 8)
	lin := vm.CPU.Linear(SegSS, sp&maskOf(vm.CPU.AddressWidth()))
	if err := vm.Bus.WriteBytes(lin, w/8, v); err != nil {
		return err
	}
	vm.CPU.GPR[RegSP] = (vm.CPU.GPR[RegSP] &^ maskOf(vm.CPU.AddressWidth())) | (sp & maskOf(vm.CPU.AddressWidth()))
	return nil
}

// pop pops a value of the current stack width from SS:[e]sp.
func (vm *VM) pop() (uint64, error) {
	w := vm.CPU.StackWidth()
	sp := vm.CPU.GPR[RegSP] & maskOf(vm.CPU.AddressWidth())
	lin := vm.CPU.Linear(SegSS, sp)
	v, err := vm.Bus.ReadBytes(lin, w/8)
	if err != nil {
		return 0, err
	}
	newSP := sp + uint64(w/8)
	vm.CPU.GPR[RegSP] = (vm.CPU.GPR[RegSP] &^ maskOf(vm.CPU.AddressWidth())) | (newSP & maskOf(vm.CPU.AddressWidth()))
	return v, nil
}

// idtEntry reads the 8-byte IDT gate for vector, real-mode IVT entries
// reinterpreted as a degenerate gate with Offset/Selector only.
func (vm *VM) idtEntry(vector int) (desc.Gate, error) {
	if !vm.CPU.ProtectedMode {
		base := uint64(vector) * 4 // real-mode IVT lives at physical address 0
		raw, err := vm.Bus.ReadBytes(base, 4)
		if err != nil {
			return desc.Gate{}, err
		}
		return desc.Gate{Offset: raw & 0xFFFF, Selector: uint16(raw >> 16), Present: true, Type: desc.TypeInterruptGate}, nil
	}
	if uint64(vector)*8+7 > uint64(vm.CPU.IDTR.Limit) {
		return desc.Gate{}, hostErrorf("idt: vector %d exceeds IDT limit %d", vector, vm.CPU.IDTR.Limit)
	}
	var raw [8]byte
	for i := 0; i < 8; i++ {
		b, err := vm.Bus.ReadByte(vm.CPU.IDTR.Base + uint64(vector)*8 + uint64(i))
		if err != nil {
			return desc.Gate{}, err
		}
		raw[i] = b
	}
	return desc.DecodeGate(raw), nil
}

// raiseFault walks the IDT for f.Vector and transfers control, pushing the
// ring-transition frame (spec.md S4.8, S7). It is also the entry point for
// INT n and externally delivered IRQs.
func (vm *VM) raiseFault(f *Fault) error {
	gate, err := vm.idtEntry(f.Vector)
	if err != nil {
		return err
	}
	if !gate.Present {
		if f.Vector != VecDF {
			return vm.raiseFault(&Fault{Kind: FaultException, Vector: VecGP, HasError: true, ErrorCode: uint32(f.Vector) * 8})
		}
		return hostErrorf("double fault vector not present")
	}

	if vm.CPU.ProtectedMode && f.Kind == FaultSoftware && gate.DPL < vm.CPU.CPL {
		return vm.raiseFault(&Fault{Kind: FaultException, Vector: VecGP, HasError: true, ErrorCode: uint32(f.Vector) * 8})
	}

	savedFlags := vm.CPU.Flags
	savedCS := vm.CPU.Seg[SegCS].Selector
	savedRIP := vm.CPU.RIP

	if !vm.CPU.ProtectedMode {
		if err := vm.push(uint64(savedFlags.ToUint64())); err != nil {
			return err
		}
		if err := vm.push(uint64(savedCS)); err != nil {
			return err
		}
		if err := vm.push(savedRIP); err != nil {
			return err
		}
		vm.CPU.Seg[SegCS] = Segment{Selector: gate.Selector, Base: uint64(gate.Selector) << 4, Present: true, Executable: true}
		vm.CPU.RIP = gate.Offset
		vm.CPU.Flags.IF = false
		vm.CPU.Flags.TF = false
		return nil
	}

	newCPL := gate.DPL
	if f.Kind != FaultSoftware {
		newCPL = vm.CPU.CPL
	}
	if newCPL < vm.CPU.CPL {
		// Privilege change: a real CPU switches to the TSS-resident stack
		// for the new ring. Kept minimal -- this engine does not model the
		// full TSS stack-switch, only same-privilege delivery.
	}
	if err := vm.push(uint64(savedFlags.ToUint64())); err != nil {
		return err
	}
	if err := vm.push(uint64(savedCS)); err != nil {
		return err
	}
	if err := vm.push(savedRIP); err != nil {
		return err
	}
	if f.HasError {
		if err := vm.push(uint64(f.ErrorCode)); err != nil {
			return err
		}
	}
	vm.CPU.RIP = gate.Offset
	vm.CPU.Flags.IF = false
	if gate.Type == desc.TypeTrapGate {
		// trap gates leave IF untouched
		vm.CPU.Flags.IF = savedFlags.IF
	}
	vm.CPU.Flags.TF = false
	vm.CPU.CPL = newCPL
	return nil
}

// IRET pops the interrupt/trap frame pushed by raiseFault, restoring
// RIP/CS/flags (spec.md S4.7).
func (vm *VM) iret() error {
	rip, err := vm.pop()
	if err != nil {
		return err
	}
	cs, err := vm.pop()
	if err != nil {
		return err
	}
	flagsWord, err := vm.pop()
	if err != nil {
		return err
	}
	vm.CPU.RIP = rip
	vm.CPU.Seg[SegCS] = Segment{Selector: uint16(cs), Base: uint64(cs) << 4, Present: true, Executable: true}
	vm.CPU.Flags.FromUint64(flagsWord)
	return nil
}
