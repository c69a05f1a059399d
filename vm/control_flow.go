package vm

// condTable maps opcode low nibble (0x70+n / 0x0F80+n) to the x86 Jcc
// predicate it tests (spec.md S4.7 "all 16 Jcc predicates").
var condTable = [16]Condition{
	CondO, CondNO, CondB, CondAE, CondE, CondNE, CondBE, CondA,
	CondS, CondNS, CondP, CondNP, CondL, CondGE, CondLE, CondG,
}

// registerControlFlow wires JMP/CALL/RET, Jcc, LOOP family, and far
// transfers (spec.md S4.7).
func registerControlFlow() {
	reg(&opTable, 0xEB, jmpRel8)
	reg(&opTable, 0xE9, jmpRel)
	reg(&opTable, 0xE8, callRel)
	reg(&opTable, 0xC3, retNear(0))
	reg(&opTable, 0xC2, retNearImm)
	reg(&opTable, 0xEA, jmpFarDirect)
	reg(&opTable, 0x9A, callFarDirect)
	reg(&opTable, 0xCB, retFar(0))
	reg(&opTable, 0xCA, retFarImm)

	for i := byte(0); i < 16; i++ {
		cond := condTable[i]
		reg(&opTable, 0x70+i, jcc8(cond))
		reg(&opTable0F, 0x80+i, jccRel(cond))
	}

	reg(&opTable, 0xE0, loopNE)
	reg(&opTable, 0xE1, loopE)
	reg(&opTable, 0xE2, loopCX)
	reg(&opTable, 0xE3, jcxz)
}

func branchRel8(vm *VM, c *Cursor, instrStart uint64) error {
	d, err := c.I8()
	if err != nil {
		return err
	}
	vm.CPU.RIP = instrStart + c.Pos + uint64(int64(d))
	return nil
}

func branchRel(vm *VM, c *Cursor, instrStart uint64) error {
	w := vm.CPU.OperandWidth()
	var d int64
	if w == Width16 {
		v, err := c.U16()
		if err != nil {
			return err
		}
		d = int64(int16(v))
	} else {
		v, err := c.I32()
		if err != nil {
			return err
		}
		d = v
	}
	vm.CPU.RIP = instrStart + c.Pos + uint64(d)
	return nil
}

func jmpRel8(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	if err := branchRel8(vm, c, instrStart); err != nil {
		return StatusFault, err
	}
	return StatusContinue, nil
}

func jmpRel(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	if err := branchRel(vm, c, instrStart); err != nil {
		return StatusFault, err
	}
	return StatusContinue, nil
}

func callRel(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	w := vm.CPU.OperandWidth()
	var d int64
	if w == Width16 {
		v, err := c.U16()
		if err != nil {
			return StatusFault, err
		}
		d = int64(int16(v))
	} else {
		v, err := c.I32()
		if err != nil {
			return StatusFault, err
		}
		d = v
	}
	ret := instrStart + c.Pos
	if err := vm.push(ret); err != nil {
		return StatusFault, err
	}
	vm.CPU.RIP = ret + uint64(d)
	return StatusContinue, nil
}

func retNear(extraPop uint64) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		ret, err := vm.pop()
		if err != nil {
			return StatusFault, err
		}
		vm.CPU.GPR[RegSP] += extraPop
		vm.CPU.RIP = ret
		return StatusContinue, nil
	}
}

func retNearImm(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	n, err := c.U16()
	if err != nil {
		return StatusFault, err
	}
	ret, err := vm.pop()
	if err != nil {
		return StatusFault, err
	}
	vm.CPU.GPR[RegSP] += uint64(n)
	vm.CPU.RIP = ret
	return StatusContinue, nil
}

// jmpFarDirect and callFarDirect implement the ptr16:16/32 far transfer in
// its real-mode shape (CS base = selector<<4) in every mode; protected-mode
// selector resolution, descriptor type/DPL checks and call gates are not
// performed, here or in retFar.
func jmpFarDirect(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	off, sel, err := readFarPointer(vm, c)
	if err != nil {
		return StatusFault, err
	}
	vm.CPU.Seg[SegCS] = Segment{Selector: sel, Base: uint64(sel) << 4, Present: true, Executable: true}
	vm.CPU.RIP = off
	return StatusContinue, nil
}

func callFarDirect(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	off, sel, err := readFarPointer(vm, c)
	if err != nil {
		return StatusFault, err
	}
	if err := vm.push(uint64(vm.CPU.Seg[SegCS].Selector)); err != nil {
		return StatusFault, err
	}
	if err := vm.push(instrStart + c.Pos); err != nil {
		return StatusFault, err
	}
	vm.CPU.Seg[SegCS] = Segment{Selector: sel, Base: uint64(sel) << 4, Present: true, Executable: true}
	vm.CPU.RIP = off
	return StatusContinue, nil
}

func readFarPointer(vm *VM, c *Cursor) (offset uint64, selector uint16, err error) {
	w := vm.CPU.OperandWidth()
	if w == Width16 {
		off, err := c.U16()
		if err != nil {
			return 0, 0, err
		}
		sel, err := c.U16()
		if err != nil {
			return 0, 0, err
		}
		return uint64(off), sel, nil
	}
	off, err := c.U32()
	if err != nil {
		return 0, 0, err
	}
	sel, err := c.U16()
	if err != nil {
		return 0, 0, err
	}
	return uint64(off), sel, nil
}

func retFar(extraPop uint64) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		off, err := vm.pop()
		if err != nil {
			return StatusFault, err
		}
		sel, err := vm.pop()
		if err != nil {
			return StatusFault, err
		}
		vm.CPU.GPR[RegSP] += extraPop
		vm.CPU.Seg[SegCS] = Segment{Selector: uint16(sel), Base: sel << 4, Present: true, Executable: true}
		vm.CPU.RIP = off
		return StatusContinue, nil
	}
}

func retFarImm(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	n, err := c.U16()
	if err != nil {
		return StatusFault, err
	}
	return retFar(uint64(n))(vm, c, p, instrStart)
}

func jcc8(cond Condition) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		d, err := c.I8()
		if err != nil {
			return StatusFault, err
		}
		if vm.CPU.Flags.Evaluate(cond) {
			vm.CPU.RIP = instrStart + c.Pos + uint64(int64(d))
		}
		return StatusContinue, nil
	}
}

func jccRel(cond Condition) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.CPU.OperandWidth()
		var d int64
		if w == Width16 {
			v, err := c.U16()
			if err != nil {
				return StatusFault, err
			}
			d = int64(int16(v))
		} else {
			v, err := c.I32()
			if err != nil {
				return StatusFault, err
			}
			d = v
		}
		if vm.CPU.Flags.Evaluate(cond) {
			vm.CPU.RIP = instrStart + c.Pos + uint64(d)
		}
		return StatusContinue, nil
	}
}

func loopCounter(vm *VM) (uint64, int) {
	aw := vm.CPU.AddressWidth()
	cx := vm.CPU.ReadBySize(RegCX, aw, false) - 1
	vm.CPU.WriteBySize(RegCX, aw, cx&maskOf(aw), false)
	return cx & maskOf(aw), aw
}

func loopCX(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	d, err := c.I8()
	if err != nil {
		return StatusFault, err
	}
	cx, _ := loopCounter(vm)
	if cx != 0 {
		vm.CPU.RIP = instrStart + c.Pos + uint64(int64(d))
	}
	return StatusContinue, nil
}

func loopE(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	d, err := c.I8()
	if err != nil {
		return StatusFault, err
	}
	cx, _ := loopCounter(vm)
	if cx != 0 && vm.CPU.Flags.ZF {
		vm.CPU.RIP = instrStart + c.Pos + uint64(int64(d))
	}
	return StatusContinue, nil
}

func loopNE(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	d, err := c.I8()
	if err != nil {
		return StatusFault, err
	}
	cx, _ := loopCounter(vm)
	if cx != 0 && !vm.CPU.Flags.ZF {
		vm.CPU.RIP = instrStart + c.Pos + uint64(int64(d))
	}
	return StatusContinue, nil
}

func jcxz(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	d, err := c.I8()
	if err != nil {
		return StatusFault, err
	}
	aw := vm.CPU.AddressWidth()
	if vm.CPU.ReadBySize(RegCX, aw, false) == 0 {
		vm.CPU.RIP = instrStart + c.Pos + uint64(int64(d))
	}
	return StatusContinue, nil
}
