package vm

import "github.com/x86emu/x86emu/platform"

// VM bundles the CPU, the memory/MMIO/port bus, and the device platform
// into the single object a host loop drives one instruction at a time,
// mirroring the teacher's vm/executor.go Execute loop generalized from a
// fixed ARM register file to the x86 addressing/segmentation model
// (spec.md S4.9 / Design Note: thread a Platform bundle explicitly).
type VM struct {
	CPU      *CPU
	Bus      Bus
	Platform *platform.Platform

	// MaxInstructions bounds VM.Run, 0 meaning unbounded (spec.md S4.9
	// execution-limit guard, adapted from the teacher's instruction cap).
	MaxInstructions uint64
}

// NewVM constructs a VM wired to bus and plat, with the CPU at its
// architectural reset state.
func NewVM(bus Bus, plat *platform.Platform) *VM {
	return &VM{CPU: NewCPU(), Bus: bus, Platform: plat}
}

// Reset restores the CPU to its architectural reset state; the bus and
// platform are left as-is (a guest re-bootstraps its own device state).
func (vm *VM) Reset() { vm.CPU.Reset() }

// Bootstrap resets the CPU and points CS:IP at physical address `at` (CS
// base = at, IP = 0), skipping the conventional F000:FFF0 reset vector --
// the shape a unit test or the CLI loader uses to start execution directly
// at a known entry point (spec.md S6, loader package). It copies no image
// bytes; the caller places the image in memory.
func (vm *VM) Bootstrap(at uint64) {
	vm.CPU.Reset()
	vm.CPU.Seg[SegCS] = Segment{Base: at, Limit: 0xFFFFFFFF, Present: true, Executable: true, DB: true}
	vm.CPU.RIP = 0
}

// InjectIRQ raises IRQ line `irq` on the PIC, matching spec.md S6's
// inject_irq() external interface. Safe to call from a goroutine other
// than the one driving Step (spec.md S5).
func (vm *VM) InjectIRQ(irq int) bool {
	return vm.Platform.PIC.RaiseIRQ(irq)
}

// pollInterrupts drains queued external IRQs and, if the CPU is accepting
// interrupts this cycle, delivers the highest-priority pending one. STI's
// one-instruction deferral is modeled by InterruptShadow: a nonzero shadow
// suppresses delivery for exactly one more Step call (spec.md S4.8).
func (vm *VM) pollInterrupts() (bool, error) {
	vm.Platform.PIC.Drain()
	vm.Platform.IOAPIC.Drain(func(vector byte) {
		vm.Platform.PIC.RaiseIRQ(int(vector))
	})
	if vm.CPU.InterruptShadow > 0 {
		vm.CPU.InterruptShadow--
		return false, nil
	}
	if !vm.CPU.Flags.IF {
		return false, nil
	}
	vector, ok := vm.Platform.PIC.Pending()
	if !ok {
		return false, nil
	}
	err := vm.raiseFault(&Fault{Kind: FaultExternal, Vector: int(vector)})
	return true, err
}

// Step executes exactly one instruction (after first checking for a
// pending, unmasked interrupt), matching spec.md S6's step() contract.
func (vm *VM) Step() (ExecutionStatus, error) {
	if vm.CPU.Halted {
		delivered, err := vm.pollInterrupts()
		if err != nil {
			return StatusFault, err
		}
		if delivered {
			vm.CPU.Halted = false
		}
		return StatusContinue, nil
	}

	if _, err := vm.pollInterrupts(); err != nil {
		return StatusFault, err
	}

	at := vm.CPU.Linear(SegCS, vm.CPU.RIP)
	startRIP := vm.CPU.RIP
	status, consumed, err := vm.decodeExecute(at)
	if err != nil {
		return status, err
	}
	vm.CPU.Cycles++
	if status == StatusFault {
		return status, nil
	}
	if vm.CPU.RIP == startRIP {
		// Handler did not redirect control flow (no branch/call/iret/hlt);
		// advance past the bytes it consumed.
		vm.CPU.RIP += consumed
	}
	if status == StatusHalt {
		vm.CPU.Halted = true
		return StatusHalt, nil
	}
	return StatusContinue, nil
}

// Run steps the VM until it halts, faults, or MaxInstructions is reached
// (0 meaning unbounded).
func (vm *VM) Run() (ExecutionStatus, error) {
	var n uint64
	for {
		status, err := vm.Step()
		if err != nil {
			return status, err
		}
		if status == StatusFault || status == StatusHalt {
			return status, nil
		}
		n++
		if vm.MaxInstructions != 0 && n >= vm.MaxInstructions {
			return StatusContinue, nil
		}
	}
}
