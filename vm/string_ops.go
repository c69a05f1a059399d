package vm

// registerStringOps wires MOVS/CMPS/SCAS/LODS/STOS, each supporting a
// REP/REPE/REPNE prefix (spec.md S4.7).
func registerStringOps() {
	reg(&opTable, 0xA4, stringOp(false, stringMOVS, false))
	reg(&opTable, 0xA5, stringOp(true, stringMOVS, false))
	reg(&opTable, 0xA6, stringOp(false, stringCMPS, true))
	reg(&opTable, 0xA7, stringOp(true, stringCMPS, true))
	reg(&opTable, 0xAE, stringOp(false, stringSCAS, true))
	reg(&opTable, 0xAF, stringOp(true, stringSCAS, true))
	reg(&opTable, 0xAC, stringOp(false, stringLODS, false))
	reg(&opTable, 0xAD, stringOp(true, stringLODS, false))
	reg(&opTable, 0xAA, stringOp(false, stringSTOS, false))
	reg(&opTable, 0xAB, stringOp(true, stringSTOS, false))
}

// stringStep performs one element of a string instruction and reports
// whether the loop should stop early. The steps here always report false;
// stringOp applies the REPE/REPNE ZF test for CMPS/SCAS itself.
type stringStep func(vm *VM, w int, p Prefixes) (stopEarly bool, err error)

// stringOp wraps step with the REP/REPE/REPNE CX-counted loop. checksZF
// distinguishes CMPS/SCAS (where F3/F2 mean REPE/REPNE and terminate early
// on the comparison result) from MOVS/STOS/LODS (where F3 means a plain
// repeat-CX-times REP with no flag check, per spec.md S4.7).
func stringOp(wide bool, step stringStep, checksZF bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		if p.Rep == RepNone {
			if _, err := step(vm, w, p); err != nil {
				return StatusFault, err
			}
			return StatusContinue, nil
		}
		counterW := vm.CPU.AddressWidth()
		for {
			count := vm.CPU.ReadBySize(RegCX, counterW, false)
			if count == 0 {
				break
			}
			vm.CPU.WriteBySize(RegCX, counterW, count-1, false)
			stop, err := step(vm, w, p)
			if err != nil {
				return StatusFault, err
			}
			if stop {
				break
			}
			if checksZF {
				if p.Rep == RepEqual && !vm.CPU.Flags.ZF {
					break
				}
				if p.Rep == RepNotEqual && vm.CPU.Flags.ZF {
					break
				}
			}
		}
		return StatusContinue, nil
	}
}

func stringDelta(w int) uint64 { return uint64(w / 8) }

func (vm *VM) advanceIndex(reg int, w int) {
	delta := stringDelta(w)
	aw := vm.CPU.AddressWidth()
	cur := vm.CPU.ReadBySize(reg, aw, false)
	if vm.CPU.Flags.DF {
		vm.CPU.WriteBySize(reg, aw, (cur-delta)&maskOf(aw), false)
	} else {
		vm.CPU.WriteBySize(reg, aw, (cur+delta)&maskOf(aw), false)
	}
}

func stringMOVS(vm *VM, w int, p Prefixes) (bool, error) {
	srcOff := vm.CPU.ReadBySize(RegSI, vm.CPU.AddressWidth(), false)
	dstOff := vm.CPU.ReadBySize(RegDI, vm.CPU.AddressWidth(), false)
	srcSeg := vm.CPU.EffectiveSegment(SegDS)
	v, err := vm.Bus.ReadBytes(vm.CPU.Linear(srcSeg, srcOff), w/8)
	if err != nil {
		return true, err
	}
	if err := vm.Bus.WriteBytes(vm.CPU.Linear(SegES, dstOff), w/8, v); err != nil {
		return true, err
	}
	vm.advanceIndex(RegSI, w)
	vm.advanceIndex(RegDI, w)
	return false, nil
}

func stringCMPS(vm *VM, w int, p Prefixes) (bool, error) {
	srcOff := vm.CPU.ReadBySize(RegSI, vm.CPU.AddressWidth(), false)
	dstOff := vm.CPU.ReadBySize(RegDI, vm.CPU.AddressWidth(), false)
	srcSeg := vm.CPU.EffectiveSegment(SegDS)
	a, err := vm.Bus.ReadBytes(vm.CPU.Linear(srcSeg, srcOff), w/8)
	if err != nil {
		return true, err
	}
	b, err := vm.Bus.ReadBytes(vm.CPU.Linear(SegES, dstOff), w/8)
	if err != nil {
		return true, err
	}
	vm.CPU.Flags.CMP(a, b, w)
	vm.advanceIndex(RegSI, w)
	vm.advanceIndex(RegDI, w)
	return false, nil
}

func stringSCAS(vm *VM, w int, p Prefixes) (bool, error) {
	dstOff := vm.CPU.ReadBySize(RegDI, vm.CPU.AddressWidth(), false)
	b, err := vm.Bus.ReadBytes(vm.CPU.Linear(SegES, dstOff), w/8)
	if err != nil {
		return true, err
	}
	a := vm.CPU.ReadBySize(RegAX, w, false)
	vm.CPU.Flags.CMP(a, b, w)
	vm.advanceIndex(RegDI, w)
	return false, nil
}

func stringLODS(vm *VM, w int, p Prefixes) (bool, error) {
	srcOff := vm.CPU.ReadBySize(RegSI, vm.CPU.AddressWidth(), false)
	srcSeg := vm.CPU.EffectiveSegment(SegDS)
	v, err := vm.Bus.ReadBytes(vm.CPU.Linear(srcSeg, srcOff), w/8)
	if err != nil {
		return true, err
	}
	vm.CPU.WriteBySize(RegAX, w, v, false)
	vm.advanceIndex(RegSI, w)
	return false, nil
}

func stringSTOS(vm *VM, w int, p Prefixes) (bool, error) {
	dstOff := vm.CPU.ReadBySize(RegDI, vm.CPU.AddressWidth(), false)
	v := vm.CPU.ReadBySize(RegAX, w, false)
	if err := vm.Bus.WriteBytes(vm.CPU.Linear(SegES, dstOff), w/8, v); err != nil {
		return true, err
	}
	vm.advanceIndex(RegDI, w)
	return false, nil
}
