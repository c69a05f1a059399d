package vm

// registerX87 wires the 0xD8-0xDF escape opcodes. This engine models no
// floating-point unit, so every encoding just decodes its ModR/M (and any
// SIB/displacement) and steps over it rather than faulting (spec.md S1,
// S4.7 "the engine must however parse and advance past x87 encodings").
func registerX87() {
	regRange(&opTable, 0xD8, 0xDF, opX87Escape)
}

func opX87Escape(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	aw := vm.CPU.AddressWidth()
	if _, err := DecodeModRM(c, aw); err != nil {
		return StatusFault, err
	}
	return StatusContinue, nil
}
