package vm

// aluOp is one of the eight reg/rm ALU operations sharing a single opcode
// layout (spec.md S4.7 "ALU reg/rm family").
type aluOp struct {
	base  byte // +0 Eb,Gb +1 Ev,Gv +2 Gb,Eb +3 Gv,Ev +4 AL,ib +5//eAX,iz
	apply func(f *EFLAGS, dest, src uint64, w int) uint64
}

var aluOps = []aluOp{
	{0x00, func(f *EFLAGS, d, s uint64, w int) uint64 { return f.ADD(d, s, w) }},
	{0x08, func(f *EFLAGS, d, s uint64, w int) uint64 { return f.Logical(d|s, w) }},
	{0x10, func(f *EFLAGS, d, s uint64, w int) uint64 { return f.ADC(d, s, w) }},
	{0x18, func(f *EFLAGS, d, s uint64, w int) uint64 { return f.SBB(d, s, w) }},
	{0x20, func(f *EFLAGS, d, s uint64, w int) uint64 { return f.Logical(d&s, w) }},
	{0x28, func(f *EFLAGS, d, s uint64, w int) uint64 { return f.SUB(d, s, w) }},
	{0x30, func(f *EFLAGS, d, s uint64, w int) uint64 { return f.Logical(d^s, w) }},
	{0x38, func(f *EFLAGS, d, s uint64, w int) uint64 { f.CMP(d, s, w); return d }},
}

// opWidth resolves the effective operand width for opcode `wBit`
// (0=byte, 1=full), honoring REX.W/0x66 override.
func (vm *VM) opWidth(wBit bool) int {
	if !wBit {
		return Width8
	}
	return vm.CPU.OperandWidth()
}

func registerALU() {
	for _, op := range aluOps {
		op := op
		isCompare := op.base == 0x38

		reg(&opTable, op.base+0x00, aluMR(op, false, isCompare))
		reg(&opTable, op.base+0x01, aluMR(op, true, isCompare))
		reg(&opTable, op.base+0x02, aluRM(op, false, isCompare))
		reg(&opTable, op.base+0x03, aluRM(op, true, isCompare))
		reg(&opTable, op.base+0x04, aluAccImm(op, false, isCompare))
		reg(&opTable, op.base+0x05, aluAccImm(op, true, isCompare))
	}
}

// aluMR handles the `op Eb/Ev, Gb/Gv` form: rm is destination, reg is
// source.
func aluMR(op aluOp, wide, isCompare bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		aw := vm.CPU.AddressWidth()
		m, err := DecodeModRM(c, aw)
		if err != nil {
			return StatusFault, err
		}
		regCode := RegWithRex(m.Reg, p.RexR)
		src := vm.CPU.ReadBySize(regCode, w, p.RexPresent)
		dest, err := vm.ReadRM(m, w, aw, SegDS, instrStart+c.Pos)
		if err != nil {
			return StatusFault, err
		}
		result := op.apply(&vm.CPU.Flags, dest, src, w)
		if !isCompare {
			if err := vm.WriteRM(m, w, result, aw, SegDS, instrStart+c.Pos); err != nil {
				return StatusFault, err
			}
		}
		return StatusContinue, nil
	}
}

// aluRM handles the `op Gb/Gv, Eb/Ev` form: reg is destination, rm is
// source.
func aluRM(op aluOp, wide, isCompare bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		aw := vm.CPU.AddressWidth()
		m, err := DecodeModRM(c, aw)
		if err != nil {
			return StatusFault, err
		}
		regCode := RegWithRex(m.Reg, p.RexR)
		src, err := vm.ReadRM(m, w, aw, SegDS, instrStart+c.Pos)
		if err != nil {
			return StatusFault, err
		}
		dest := vm.CPU.ReadBySize(regCode, w, p.RexPresent)
		result := op.apply(&vm.CPU.Flags, dest, src, w)
		if !isCompare {
			vm.CPU.WriteBySize(regCode, w, result, p.RexPresent)
		}
		return StatusContinue, nil
	}
}

// aluAccImm handles the `op AL/eAX, imm` form.
func aluAccImm(op aluOp, wide, isCompare bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		immW := w
		if immW > Width32 {
			immW = Width32
		}
		imm, err := c.ImmBySize(immW)
		if err != nil {
			return StatusFault, err
		}
		dest := vm.CPU.ReadBySize(RegAX, w, p.RexPresent)
		result := op.apply(&vm.CPU.Flags, dest, imm, w)
		if !isCompare {
			vm.CPU.WriteBySize(RegAX, w, result, p.RexPresent)
		}
		return StatusContinue, nil
	}
}

// registerIncDec wires the single-byte 0x40-0x4F short forms (valid outside
// long mode only -- in long mode those bytes are REX) plus the group
// 4/5 (0xFE/0xFF) memory forms (spec.md S4.7).
func registerIncDec() {
	for i := byte(0); i < 8; i++ {
		i := i
		reg(&opTable, 0x40+i, func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
			w := vm.CPU.OperandWidth()
			v := vm.CPU.ReadBySize(int(i), w, false)
			r := vm.CPU.Flags.INC(v, w)
			vm.CPU.WriteBySize(int(i), w, r, false)
			return StatusContinue, nil
		})
		reg(&opTable, 0x48+i, func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
			w := vm.CPU.OperandWidth()
			v := vm.CPU.ReadBySize(int(i), w, false)
			r := vm.CPU.Flags.DEC(v, w)
			vm.CPU.WriteBySize(int(i), w, r, false)
			return StatusContinue, nil
		})
	}

	reg(&opTable, 0xFE, group45(false))
	reg(&opTable, 0xFF, group45(true))
}

// group45 dispatches the /0 INC, /1 DEC reg-extension group plus /2 CALL
// near, /4 JMP near and /6 PUSH r/m, all handled here; /3 CALLF, /5 JMPF
// and /7 raise #UD.
func group45(wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		aw := vm.CPU.AddressWidth()
		m, err := DecodeModRM(c, aw)
		if err != nil {
			return StatusFault, err
		}
		end := instrStart + c.Pos
		switch m.Reg {
		case 0, 1:
			v, err := vm.ReadRM(m, w, aw, SegDS, end)
			if err != nil {
				return StatusFault, err
			}
			var r uint64
			if m.Reg == 0 {
				r = vm.CPU.Flags.INC(v, w)
			} else {
				r = vm.CPU.Flags.DEC(v, w)
			}
			if err := vm.WriteRM(m, w, r, aw, SegDS, end); err != nil {
				return StatusFault, err
			}
			return StatusContinue, nil
		case 2: // CALL near indirect
			target, err := vm.ReadRM(m, w, aw, SegDS, end)
			if err != nil {
				return StatusFault, err
			}
			if err := vm.push(instrStart + c.Pos); err != nil {
				return StatusFault, err
			}
			vm.CPU.RIP = target
			return StatusContinue, nil
		case 4: // JMP near indirect
			target, err := vm.ReadRM(m, w, aw, SegDS, end)
			if err != nil {
				return StatusFault, err
			}
			vm.CPU.RIP = target
			return StatusContinue, nil
		case 6: // PUSH r/m
			v, err := vm.ReadRM(m, vm.CPU.StackWidth(), aw, SegDS, end)
			if err != nil {
				return StatusFault, err
			}
			if err := vm.push(v); err != nil {
				return StatusFault, err
			}
			return StatusContinue, nil
		}
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecUD})
	}
}

// registerGroup3 wires 0xF6/0xF7: /2 NOT, /3 NEG, /4 MUL, /5 IMUL, /6 DIV,
// /7 IDIV (spec.md S4.7).
func registerGroup3() {
	reg(&opTable, 0xF6, group3(false))
	reg(&opTable, 0xF7, group3(true))
}

func group3(wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		aw := vm.CPU.AddressWidth()
		m, err := DecodeModRM(c, aw)
		if err != nil {
			return StatusFault, err
		}
		end0 := instrStart + c.Pos
		switch m.Reg {
		case 0, 1: // TEST r/m, imm
			v, err := vm.ReadRM(m, w, aw, SegDS, end0)
			if err != nil {
				return StatusFault, err
			}
			immW := w
			if immW > Width32 {
				immW = Width32
			}
			imm, err := c.ImmBySize(immW)
			if err != nil {
				return StatusFault, err
			}
			vm.CPU.Flags.Logical(v&imm, w)
			return StatusContinue, nil
		case 2: // NOT
			v, err := vm.ReadRM(m, w, aw, SegDS, end0)
			if err != nil {
				return StatusFault, err
			}
			if err := vm.WriteRM(m, w, (^v)&maskOf(w), aw, SegDS, end0); err != nil {
				return StatusFault, err
			}
			return StatusContinue, nil
		case 3: // NEG
			v, err := vm.ReadRM(m, w, aw, SegDS, end0)
			if err != nil {
				return StatusFault, err
			}
			r := vm.CPU.Flags.NEG(v, w)
			if err := vm.WriteRM(m, w, r, aw, SegDS, end0); err != nil {
				return StatusFault, err
			}
			return StatusContinue, nil
		case 4: // MUL
			v, err := vm.ReadRM(m, w, aw, SegDS, end0)
			if err != nil {
				return StatusFault, err
			}
			return StatusContinue, vm.mulUnsigned(v, w)
		case 5: // IMUL (one-operand form)
			v, err := vm.ReadRM(m, w, aw, SegDS, end0)
			if err != nil {
				return StatusFault, err
			}
			return StatusContinue, vm.imulOneOperand(v, w)
		case 6: // DIV
			v, err := vm.ReadRM(m, w, aw, SegDS, end0)
			if err != nil {
				return StatusFault, err
			}
			return vm.divUnsigned(v, w)
		case 7: // IDIV
			v, err := vm.ReadRM(m, w, aw, SegDS, end0)
			if err != nil {
				return StatusFault, err
			}
			return vm.idivSigned(v, w)
		}
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecUD})
	}
}

// mulUnsigned performs one-operand MUL of the accumulator by src, writing
// the double-width product to AX for byte operands and to DX:AX (or
// EDX:EAX / RDX:RAX) otherwise.
func (vm *VM) mulUnsigned(src uint64, w int) error {
	a := vm.CPU.ReadBySize(RegAX, w, false)
	if w == Width8 {
		r := (a & 0xFF) * (src & 0xFF)
		vm.CPU.WriteBySize(RegAX, Width16, r, false)
		vm.CPU.Flags.CF = r>>8 != 0
		vm.CPU.Flags.OF = vm.CPU.Flags.CF
		return nil
	}
	hi, lo := mul128(a&maskOf(w), src&maskOf(w), w)
	vm.CPU.WriteBySize(RegAX, w, lo, false)
	vm.CPU.WriteBySize(RegDX, w, hi, false)
	vm.CPU.Flags.CF = hi != 0
	vm.CPU.Flags.OF = hi != 0
	return nil
}

func mul128(a, b uint64, w int) (hi, lo uint64) {
	if w == Width64 {
		var hiW, loW uint64
		hiW, loW = mul64(a, b)
		return hiW, loW
	}
	full := a * b
	return full >> uint(w), full & maskOf(w)
}

func mul64(a, b uint64) (hi, lo uint64) {
	const mask32 = 0xFFFFFFFF
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32
	lo1 := aLo * bLo
	mid1 := aLo * bHi
	mid2 := aHi * bLo
	hi1 := aHi * bHi
	carry := (lo1>>32 + mid1&mask32 + mid2&mask32) >> 32
	lo = a * b
	hi = hi1 + mid1>>32 + mid2>>32 + carry
	return hi, lo
}

func (vm *VM) imulOneOperand(src uint64, w int) error {
	a := int64(signExtend(vm.CPU.ReadBySize(RegAX, w, false), w))
	s := int64(signExtend(src, w))
	if w == Width8 {
		r := a * s
		vm.CPU.WriteBySize(RegAX, Width16, uint64(r)&0xFFFF, false)
		overflow := r != int64(int8(r))
		vm.CPU.Flags.CF, vm.CPU.Flags.OF = overflow, overflow
		return nil
	}
	if w == Width64 {
		hi, lo := imul64(a, s)
		vm.CPU.WriteBySize(RegAX, w, lo, false)
		vm.CPU.WriteBySize(RegDX, w, hi, false)
		overflow := hi != 0 && hi != ^uint64(0)
		vm.CPU.Flags.CF, vm.CPU.Flags.OF = overflow, overflow
		return nil
	}
	full := a * s
	lo := uint64(full) & maskOf(w)
	hi := uint64(full>>uint(w)) & maskOf(w)
	vm.CPU.WriteBySize(RegAX, w, lo, false)
	vm.CPU.WriteBySize(RegDX, w, hi, false)
	overflow := full != int64(int32(lo))
	if w == Width16 {
		overflow = full != int64(int16(lo))
	}
	vm.CPU.Flags.CF, vm.CPU.Flags.OF = overflow, overflow
	return nil
}

func imul64(a, b int64) (hi, lo uint64) {
	neg := (a < 0) != (b < 0)
	ua, ub := uint64(a), uint64(b)
	if a < 0 {
		ua = uint64(-a)
	}
	if b < 0 {
		ub = uint64(-b)
	}
	h, l := mul64(ua, ub)
	if neg {
		l = ^l + 1
		h = ^h
		if l == 0 {
			h++
		}
	}
	return h, l
}

func signExtend(v uint64, w int) uint64 {
	if w >= Width64 {
		return v
	}
	sign := v & signBit(w)
	if sign == 0 {
		return v & maskOf(w)
	}
	return v | ^maskOf(w)
}

func (vm *VM) divUnsigned(src uint64, w int) (ExecutionStatus, error) {
	if src&maskOf(w) == 0 {
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecDE})
	}
	if w == Width8 {
		dividend := vm.CPU.ReadBySize(RegAX, Width16, false)
		q, r := dividend/(src&0xFF), dividend%(src&0xFF)
		if q > 0xFF {
			return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecDE})
		}
		vm.CPU.WriteByte(RegAX, false, uint8(q))
		vm.CPU.WriteByte(4, false, uint8(r)) // AH
		return StatusContinue, nil
	}
	hi := vm.CPU.ReadBySize(RegDX, w, false)
	lo := vm.CPU.ReadBySize(RegAX, w, false)
	q, r, ok := divmod128(hi, lo, src&maskOf(w), w)
	if !ok {
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecDE})
	}
	vm.CPU.WriteBySize(RegAX, w, q, false)
	vm.CPU.WriteBySize(RegDX, w, r, false)
	return StatusContinue, nil
}

func divmod128(hi, lo, divisor uint64, w int) (q, r uint64, ok bool) {
	if w < Width64 {
		full := hi<<uint(w) | lo
		q64 := full / divisor
		r64 := full % divisor
		if q64 > maskOf(w) {
			return 0, 0, false
		}
		return q64, r64, true
	}
	if hi == 0 {
		return lo / divisor, lo % divisor, true
	}
	if hi >= divisor {
		return 0, 0, false
	}
	// 128-by-64 shift-subtract restoring division over hi:lo, adequate for
	// an engine that does not claim cycle-level performance.
	var quotient, remainder uint64
	for i := 127; i >= 0; i-- {
		remainder <<= 1
		var bit uint64
		if i >= 64 {
			bit = (hi >> uint(i-64)) & 1
		} else {
			bit = (lo >> uint(i)) & 1
		}
		remainder |= bit
		quotient <<= 1
		if remainder >= divisor {
			remainder -= divisor
			quotient |= 1
		}
	}
	return quotient, remainder, true
}

func (vm *VM) idivSigned(src uint64, w int) (ExecutionStatus, error) {
	s := int64(signExtend(src, w))
	if s == 0 {
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecDE})
	}
	if w == Width8 {
		dividend := int64(int16(vm.CPU.ReadBySize(RegAX, Width16, false)))
		q, r := dividend/s, dividend%s
		if q > 127 || q < -128 {
			return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecDE})
		}
		vm.CPU.WriteByte(RegAX, false, uint8(q))
		vm.CPU.WriteByte(4, false, uint8(r))
		return StatusContinue, nil
	}
	hi := int64(signExtend(vm.CPU.ReadBySize(RegDX, w, false), w))
	lo := vm.CPU.ReadBySize(RegAX, w, false)
	neg := hi < 0
	uHi := uint64(hi)
	if neg {
		uHi = ^uHi
		lo = ^lo + 1
		if lo == 0 {
			uHi++
		}
	}
	uDivisor := uint64(s)
	if s < 0 {
		uDivisor = uint64(-s)
	}
	q, r, ok := divmod128(uHi, lo, uDivisor, w)
	if !ok {
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecDE})
	}
	if neg != (s < 0) {
		q = (^q + 1) & maskOf(w)
	}
	if neg {
		r = (^r + 1) & maskOf(w)
	}
	vm.CPU.WriteBySize(RegAX, w, q, false)
	vm.CPU.WriteBySize(RegDX, w, r, false)
	return StatusContinue, nil
}
