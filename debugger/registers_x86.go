package debugger

import (
	"strings"

	"github.com/x86emu/x86emu/vm"
)

// generalRegisterByName maps a 32-bit general-purpose register mnemonic to
// its vm.RegXX index, shared by the expression evaluator's two parsers.
var generalRegisterByName = map[string]int{
	"eax": vm.RegAX, "ecx": vm.RegCX, "edx": vm.RegDX, "ebx": vm.RegBX,
	"esp": vm.RegSP, "ebp": vm.RegBP, "esi": vm.RegSI, "edi": vm.RegDI,
}

// evalSpecialRegister resolves the alias names eip/pc/rip, sp and
// eflags/flags; the 32-bit GPR names, esp included, go through
// generalRegisterByName.
func evalSpecialRegister(name string, machine *vm.VM) (uint64, bool) {
	switch name {
	case "eip", "pc", "rip":
		return machine.CPU.RIP, true
	case "sp":
		return machine.CPU.GPR[vm.RegSP], true
	case "eflags", "flags":
		return machine.CPU.Flags.ToUint64(), true
	}
	return 0, false
}

// registerValue resolves any debugger register reference (eax..edi, esp,
// eip, eflags) to its current value.
func registerValue(name string, machine *vm.VM) (uint64, bool) {
	name = strings.ToLower(name)
	if v, ok := evalSpecialRegister(name, machine); ok {
		return v, true
	}
	if idx, ok := generalRegisterByName[name]; ok {
		return machine.CPU.GPR[idx], true
	}
	return 0, false
}

// setRegisterValue is registerValue's write-side counterpart, used by the
// debugger's "set" command.
func setRegisterValue(name string, value uint64, machine *vm.VM) bool {
	name = strings.ToLower(name)
	switch name {
	case "eip", "pc", "rip":
		machine.CPU.RIP = value
		return true
	case "sp", "esp":
		machine.CPU.GPR[vm.RegSP] = value
		return true
	case "eflags", "flags":
		machine.CPU.Flags.FromUint64(value)
		return true
	}
	if idx, ok := generalRegisterByName[name]; ok {
		machine.CPU.GPR[idx] = value
		return true
	}
	return false
}
