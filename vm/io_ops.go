package vm

// registerIO wires IN/OUT imm8 and DX forms (spec.md S4.7).
func registerIO() {
	reg(&opTable, 0xE4, inImm(false))
	reg(&opTable, 0xE5, inImm(true))
	reg(&opTable, 0xE6, outImm(false))
	reg(&opTable, 0xE7, outImm(true))
	reg(&opTable, 0xEC, inDX(false))
	reg(&opTable, 0xED, inDX(true))
	reg(&opTable, 0xEE, outDX(false))
	reg(&opTable, 0xEF, outDX(true))
}

// checkIOPermission enforces CPL<=IOPL (spec.md S4.7 "CPL/IOPL/TSS-bitmap
// checks"). Used as-is by CLI/STI, which gate on IOPL alone; IN/OUT layer
// checkIOBitmap on top since they also need the TSS permission bitmap.
func (vm *VM) checkIOPermission(port uint16) error {
	if !vm.CPU.ProtectedMode {
		return nil
	}
	if vm.CPU.CPL > vm.CPU.IOPL {
		_, err := vm.deliverFault(&Fault{Kind: FaultException, Vector: VecGP, HasError: true, ErrorCode: 0})
		return err
	}
	return nil
}

// tssIOMapBaseOffset is the byte offset of the I/O map base field within a
// 32-bit TSS (spec.md S6 "the TSS is read only for its I/O map base and
// permission bitmap").
const tssIOMapBaseOffset = 0x66

// ioPortAllowed consults the current TSS's I/O permission bitmap for a
// single port, per Intel's convention: a port whose bit (or whose bitmap
// byte falls outside the TSS limit) is set denies access.
func (vm *VM) ioPortAllowed(port uint16) (bool, error) {
	if vm.CPU.TR.Limit == 0 {
		return false, nil
	}
	rawBase, err := vm.Bus.ReadBytes(vm.CPU.TR.Base+tssIOMapBaseOffset, 2)
	if err != nil {
		return false, err
	}
	byteOff := uint64(uint16(rawBase)) + uint64(port/8)
	if byteOff > uint64(vm.CPU.TR.Limit) {
		return false, nil
	}
	b, err := vm.Bus.ReadByte(vm.CPU.TR.Base + byteOff)
	if err != nil {
		return false, err
	}
	return b&(1<<(port%8)) == 0, nil
}

// checkIOBitmap enforces both halves of the I/O permission check IN/OUT
// require: CPL<=IOPL, and the TSS bitmap allowing every port the access
// touches (spec.md S4.7, S6).
func (vm *VM) checkIOBitmap(port uint16, w int) error {
	if err := vm.checkIOPermission(port); err != nil {
		return err
	}
	if !vm.CPU.ProtectedMode {
		return nil
	}
	for i := 0; i < w/8; i++ {
		allowed, err := vm.ioPortAllowed(port + uint16(i))
		if err != nil {
			return err
		}
		if !allowed {
			_, ferr := vm.deliverFault(&Fault{Kind: FaultException, Vector: VecGP, HasError: true, ErrorCode: 0})
			return ferr
		}
	}
	return nil
}

func inImm(wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		port, err := c.U8()
		if err != nil {
			return StatusFault, err
		}
		w := vm.opWidth(wide)
		if err := vm.checkIOBitmap(uint16(port), w); err != nil {
			return StatusFault, err
		}
		v, err := vm.Bus.ReadPort(uint16(port), w)
		if err != nil {
			return StatusFault, err
		}
		vm.CPU.WriteBySize(RegAX, w, v, false)
		return StatusContinue, nil
	}
}

func outImm(wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		port, err := c.U8()
		if err != nil {
			return StatusFault, err
		}
		w := vm.opWidth(wide)
		if err := vm.checkIOBitmap(uint16(port), w); err != nil {
			return StatusFault, err
		}
		v := vm.CPU.ReadBySize(RegAX, w, false)
		if err := vm.Bus.WritePort(uint16(port), w, v); err != nil {
			return StatusFault, err
		}
		return StatusContinue, nil
	}
}

func inDX(wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		port := uint16(vm.CPU.ReadBySize(RegDX, Width16, false))
		w := vm.opWidth(wide)
		if err := vm.checkIOBitmap(port, w); err != nil {
			return StatusFault, err
		}
		v, err := vm.Bus.ReadPort(port, w)
		if err != nil {
			return StatusFault, err
		}
		vm.CPU.WriteBySize(RegAX, w, v, false)
		return StatusContinue, nil
	}
}

func outDX(wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		port := uint16(vm.CPU.ReadBySize(RegDX, Width16, false))
		w := vm.opWidth(wide)
		if err := vm.checkIOBitmap(port, w); err != nil {
			return StatusFault, err
		}
		v := vm.CPU.ReadBySize(RegAX, w, false)
		if err := vm.Bus.WritePort(port, w, v); err != nil {
			return StatusFault, err
		}
		return StatusContinue, nil
	}
}
