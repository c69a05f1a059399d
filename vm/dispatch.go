package vm

// ExecutionStatus reports the outcome of one VM.Step call (spec.md S6).
type ExecutionStatus int

const (
	StatusContinue ExecutionStatus = iota
	StatusHalt
	StatusFault
)

// opHandler executes one decoded instruction. c is positioned just past the
// opcode byte(s); p carries the already-collected prefixes. instrStart is
// the linear address of the first prefix/opcode byte, needed by handlers
// that compute branch targets relative to the following instruction.
type opHandler func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error)

// opTable is the primary one-byte opcode dispatch table, mirroring the
// teacher's register-pointer-array trick (constant-time lookup instead of
// a type switch) applied to opcode dispatch rather than register access.
var opTable [256]opHandler

// opTable0F is the 0x0F two-byte escape dispatch table.
var opTable0F [256]opHandler

func reg(table *[256]opHandler, opcode byte, h opHandler) {
	table[opcode] = h
}

func regRange(table *[256]opHandler, lo, hi byte, h opHandler) {
	for o := int(lo); o <= int(hi); o++ {
		table[o] = h
	}
}

func init() {
	registerALU()
	registerIncDec()
	registerGroup3()
	registerShiftGroup()
	registerBCD()
	registerMov()
	registerStack()
	registerStringOps()
	registerControlFlow()
	registerIO()
	registerSystem()
	registerX87()
}

// unhandled reports #UD for any opcode slot the representative handler set
// doesn't cover -- the dispatcher decodes far enough to fault cleanly
// rather than panicking (spec.md S4.7 "Everything else...").
func unhandled(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecUD})
}

// deliverFault routes a Fault through the IDT and reports StatusFault, or
// propagates a HostError untouched if the IDT walk itself fails.
func (vm *VM) deliverFault(f *Fault) (ExecutionStatus, error) {
	if err := vm.raiseFault(f); err != nil {
		return StatusFault, err
	}
	return StatusFault, nil
}

// decodeExecute fetches, decodes prefixes + opcode, and dispatches one
// instruction starting at linear address `at`. It returns the number of
// bytes consumed so VM.Step can advance RIP on continuation paths where the
// handler itself did not already redirect control flow.
func (vm *VM) decodeExecute(at uint64) (ExecutionStatus, uint64, error) {
	c := NewCursor(vm.Bus, at)
	p, err := collectPrefixes(c, vm.CPU.LongMode)
	if err != nil {
		return StatusFault, 0, err
	}
	vm.CPU.Prefixes = p

	opcode, err := c.U8()
	if err != nil {
		return StatusFault, 0, err
	}

	var status ExecutionStatus
	if opcode == 0x0F {
		opcode2, err := c.U8()
		if err != nil {
			return StatusFault, 0, err
		}
		h := opTable0F[opcode2]
		if h == nil {
			h = unhandled
		}
		status, err = h(vm, c, p, at)
		if err != nil {
			return status, 0, err
		}
	} else {
		h := opTable[opcode]
		if h == nil {
			h = unhandled
		}
		status, err = h(vm, c, p, at)
		if err != nil {
			return status, 0, err
		}
	}
	return status, c.Pos, nil
}
