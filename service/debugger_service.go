// Package service wraps a vm.VM and a debugger.Debugger behind a
// thread-safe façade. Each REST/WebSocket API session owns one; the CLI,
// TUI and GUI front ends drive debugger.Debugger and its VM directly.
package service

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/x86emu/x86emu/debugger"
	"github.com/x86emu/x86emu/loader"
	"github.com/x86emu/x86emu/vm"
)

const (
	maxDisassemblyCount = 1000   // Maximum number of instructions to disassemble
	maxStackCount       = 1000   // Maximum number of stack entries to return
	maxStackOffset      = 100000 // Maximum stack offset to prevent wraparound attacks
	stepsBeforeYield    = 1000   // Yield every N steps during execution
)

var serviceLog *log.Logger

func init() {
	if os.Getenv("X86EMU_DEBUG") != "" {
		// Note: file handle intentionally not closed - kept open for process lifetime.
		logPath := filepath.Join(os.TempDir(), "x86emu-service-debug.log")
		f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) // #nosec G304 -- fixed filename in temp dir
		if err != nil {
			serviceLog = log.New(os.Stderr, "SERVICE: ", log.Ltime|log.Lmicroseconds|log.Lshortfile)
		} else {
			serviceLog = log.New(f, "SERVICE: ", log.Ltime|log.Lmicroseconds|log.Lshortfile)
		}
	} else {
		serviceLog = log.New(io.Discard, "", 0)
	}
}

// DebuggerService provides a thread-safe interface to debugger functionality.
// The API session manager creates one per session.
//
// Lock Ordering:
// The service uses its own sync.RWMutex (s.mu) to protect all field access,
// including access to the debugger. When calling Debugger methods that have
// their own internal mutex (like ShouldBreak), the lock order is:
// s.mu -> debugger.mu
//
// Do NOT acquire locks in the reverse order (debugger.mu -> s.mu) as this
// would create a deadlock risk.
type DebuggerService struct {
	mu        sync.RWMutex
	vm        *vm.VM
	debugger  *debugger.Debugger
	symbols   map[string]uint64
	sourceMap map[uint64]string // address -> annotation (for debugger display)

	imageBase  uint64
	imageEntry uint64
	loaded     bool

	execState ExecutionState
}

// NewDebuggerService creates a new debugger service
func NewDebuggerService(machine *vm.VM) *DebuggerService {
	return &DebuggerService{
		vm:        machine,
		debugger:  debugger.NewDebugger(machine),
		symbols:   make(map[string]uint64),
		sourceMap: make(map[uint64]string),
		execState: StateHalted,
	}
}

// GetVM returns the underlying VM (for testing)
func (s *DebuggerService) GetVM() *vm.VM {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vm
}

// LoadImage loads a flat binary image at base and starts it at
// base+entryOffset, with an optional symbol table for label/breakpoint
// resolution.
func (s *DebuggerService) LoadImage(image []byte, base, entryOffset uint64, symbols map[string]uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := loader.LoadImage(s.vm, image, base, entryOffset); err != nil {
		return err
	}

	s.imageBase = base
	s.imageEntry = entryOffset
	s.loaded = true

	s.symbols = make(map[string]uint64, len(symbols))
	for name, addr := range symbols {
		s.symbols[name] = addr
	}
	s.sourceMap = make(map[uint64]string)

	s.debugger.LoadSymbols(s.symbols)
	s.debugger.LoadSourceMap(s.sourceMap)
	s.debugger.Breakpoints.Clear()
	s.debugger.Running = false
	s.execState = StateHalted

	return nil
}

// LoadImageFile loads a flat binary image from disk.
func (s *DebuggerService) LoadImageFile(path string, base, entryOffset uint64, symbols map[string]uint64) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path supplied by the operator loading their own image
	if err != nil {
		return fmt.Errorf("reading image %q: %w", path, err)
	}
	return s.LoadImage(data, base, entryOffset, symbols)
}

// GetRegisterState returns current register state (thread-safe)
func (s *DebuggerService) GetRegisterState() RegisterState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cpu := s.vm.CPU
	return RegisterState{
		EAX: uint32(cpu.GPR[vm.RegAX]), EBX: uint32(cpu.GPR[vm.RegBX]),
		ECX: uint32(cpu.GPR[vm.RegCX]), EDX: uint32(cpu.GPR[vm.RegDX]),
		ESI: uint32(cpu.GPR[vm.RegSI]), EDI: uint32(cpu.GPR[vm.RegDI]),
		EBP: uint32(cpu.GPR[vm.RegBP]), ESP: uint32(cpu.GPR[vm.RegSP]),
		EIP: uint32(cpu.RIP),
		Flags: FlagsState{
			CF: cpu.Flags.CF, PF: cpu.Flags.PF, AF: cpu.Flags.AF,
			ZF: cpu.Flags.ZF, SF: cpu.Flags.SF, TF: cpu.Flags.TF,
			IF: cpu.Flags.IF, DF: cpu.Flags.DF, OF: cpu.Flags.OF,
		},
		Cycles: cpu.Cycles,
	}
}

// Step executes a single instruction
func (s *DebuggerService) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.vm.Step()
	if err != nil {
		s.execState = StateError
		return err
	}
	if status == vm.StatusHalt || s.vm.CPU.Halted {
		s.execState = StateHalted
	}
	if status == vm.StatusFault {
		s.execState = StateError
	}
	return nil
}

// Continue marks execution as running; RunUntilHalt drives the actual loop.
func (s *DebuggerService) Continue() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.debugger.Running = true
	s.debugger.StepMode = debugger.StepNone
	s.execState = StateRunning
	return nil
}

// Pause pauses execution.
func (s *DebuggerService) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugger.Running = false
	s.execState = StateHalted
}

// Reset performs a complete reset to initial CPU state, clearing breakpoints
// and the loaded image.
func (s *DebuggerService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vm.Reset()
	s.loaded = false
	s.imageBase = 0
	s.imageEntry = 0
	s.symbols = make(map[string]uint64)
	s.sourceMap = make(map[uint64]string)
	s.debugger.Breakpoints.Clear()
	s.debugger.Running = false
	s.execState = StateHalted

	return nil
}

// ResetToEntryPoint resets the CPU and rewinds RIP to the loaded image's
// entry point, without reloading or re-clearing breakpoints.
func (s *DebuggerService) ResetToEntryPoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.vm.Reset()
		s.execState = StateHalted
		s.debugger.Running = false
		return nil
	}

	s.vm.Reset()
	s.vm.CPU.Seg[vm.SegCS] = vm.Segment{Base: s.imageBase, Limit: 0xFFFFFFFF, Present: true, Executable: true, DB: true}
	s.vm.CPU.RIP = s.imageEntry
	s.debugger.Running = false
	s.execState = StateHalted

	return nil
}

// GetExecutionState returns current execution state
func (s *DebuggerService) GetExecutionState() ExecutionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.execState
}

// AddBreakpoint adds a breakpoint at the specified address
func (s *DebuggerService) AddBreakpoint(address uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugger.Breakpoints.AddBreakpoint(address, false, "")
	return nil
}

// RemoveBreakpoint removes a breakpoint
func (s *DebuggerService) RemoveBreakpoint(address uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugger.Breakpoints.DeleteBreakpointAt(address)
}

// GetBreakpoints returns all breakpoints
func (s *DebuggerService) GetBreakpoints() []BreakpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bps := s.debugger.Breakpoints.GetAllBreakpoints()
	result := make([]BreakpointInfo, len(bps))
	for i, bp := range bps {
		result[i] = BreakpointInfo{Address: bp.Address, Enabled: bp.Enabled, Condition: bp.Condition}
	}
	return result
}

// ClearAllBreakpoints removes all breakpoints
func (s *DebuggerService) ClearAllBreakpoints() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugger.Breakpoints.Clear()
}

// GetMemory returns memory contents for a region. Unreadable bytes (past
// the end of a mapped region) are returned as zero so the memory view can
// still render a partial page.
func (s *DebuggerService) GetMemory(address uint64, size uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	serviceLog.Printf("GetMemory: address=0x%08X, size=%d", address, size)
	data := make([]byte, size)
	for i := uint64(0); i < size; i++ {
		v, err := s.vm.Bus.ReadBytes(address+i, 1)
		if err != nil {
			data[i] = 0
			continue
		}
		data[i] = byte(v)
	}
	return data, nil
}

// GetSourceMap returns address-to-annotation lookup (for debugger display)
func (s *DebuggerService) GetSourceMap() map[uint64]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[uint64]string, len(s.sourceMap))
	for addr, line := range s.sourceMap {
		result[addr] = line
	}
	return result
}

// GetSymbols returns all symbols
func (s *DebuggerService) GetSymbols() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make(map[string]uint64, len(s.symbols))
	for k, v := range s.symbols {
		symbols[k] = v
	}
	return symbols
}

// GetSymbolForAddress resolves an address to a symbol name
func (s *DebuggerService) GetSymbolForAddress(addr uint64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSymbolForAddressUnsafe(addr)
}

func (s *DebuggerService) getSymbolForAddressUnsafe(addr uint64) string {
	for name, symbolAddr := range s.symbols {
		if symbolAddr == addr {
			return name
		}
	}
	return ""
}

// RunUntilHalt runs the program until halt, fault or breakpoint. If Running
// is already false (e.g. paused before this was called), it returns
// immediately.
func (s *DebuggerService) RunUntilHalt() error {
	serviceLog.Println("RunUntilHalt() called")
	s.mu.Lock()
	if !s.debugger.Running {
		s.mu.Unlock()
		return nil
	}
	s.execState = StateRunning
	s.mu.Unlock()

	stepCount := 0

	for {
		s.mu.Lock()
		if !s.debugger.Running {
			s.mu.Unlock()
			break
		}

		if shouldBreak, _ := s.debugger.ShouldBreak(); shouldBreak {
			s.debugger.Running = false
			s.execState = StateBreakpoint
			s.mu.Unlock()
			break
		}

		status, err := s.vm.Step()
		if err != nil {
			s.debugger.Running = false
			s.execState = StateError
			s.mu.Unlock()
			return err
		}

		if status == vm.StatusHalt || s.vm.CPU.Halted {
			s.debugger.Running = false
			s.execState = StateHalted
			s.mu.Unlock()
			break
		}
		if status == vm.StatusFault {
			s.debugger.Running = false
			s.execState = StateError
			s.mu.Unlock()
			return fmt.Errorf("fault at RIP=0x%08X", s.vm.CPU.RIP)
		}
		s.mu.Unlock()

		stepCount++
		if stepCount >= stepsBeforeYield {
			stepCount = 0
			time.Sleep(1 * time.Millisecond)
		}
	}

	serviceLog.Println("RunUntilHalt() completed")
	return nil
}

// IsRunning returns whether execution is in progress
func (s *DebuggerService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debugger.Running
}

// SetRunning sets the running state synchronously, used by async execution
// methods before launching goroutines.
func (s *DebuggerService) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugger.Running = running
	if running {
		s.execState = StateRunning
	} else if s.execState == StateRunning {
		s.execState = StateHalted
	}
}

// GetDisassembly returns raw instruction bytes starting at address. No
// disassembler is wired in; each line carries the 4 raw bytes at that
// address plus any resolved symbol, the same placeholder the TUI shows.
func (s *DebuggerService) GetDisassembly(startAddr uint64, count int) []DisassemblyLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if count <= 0 || count > maxDisassemblyCount {
		return []DisassemblyLine{}
	}

	lines := make([]DisassemblyLine, 0, count)
	addr := startAddr

	for i := 0; i < count; i++ {
		word, err := s.vm.Bus.ReadBytes(addr, 4)
		if err != nil {
			break
		}

		lines = append(lines, DisassemblyLine{
			Address: addr,
			Bytes:   []byte{byte(word), byte(word >> 8), byte(word >> 16), byte(word >> 24)},
			Symbol:  s.getSymbolForAddressUnsafe(addr),
		})
		addr += 4
	}

	return lines
}

// GetStack returns stack contents starting at ESP+offset words.
func (s *DebuggerService) GetStack(offset int, count int) []StackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if count <= 0 || count > maxStackCount {
		return []StackEntry{}
	}
	if offset < -maxStackOffset || offset > maxStackOffset {
		return []StackEntry{}
	}

	sp := int64(s.vm.CPU.GPR[vm.RegSP])
	startAddr := sp + int64(offset)*4
	if startAddr < 0 {
		return []StackEntry{}
	}

	entries := make([]StackEntry, 0, count)
	for i := 0; i < count; i++ {
		addr := uint64(startAddr) + uint64(i*4)
		value, err := s.vm.Bus.ReadBytes(addr, 4)
		if err != nil {
			break
		}
		entries = append(entries, StackEntry{
			Address: addr,
			Value:   uint32(value),
			Symbol:  s.getSymbolForAddressUnsafe(value),
		})
	}

	return entries
}

// StepOver executes one instruction, stepping over CALL instructions.
func (s *DebuggerService) StepOver() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return fmt.Errorf("no image loaded")
	}

	s.debugger.SetStepOver()

	for s.debugger.Running {
		if shouldBreak, _ := s.debugger.ShouldBreak(); shouldBreak {
			s.debugger.Running = false
			break
		}

		status, err := s.vm.Step()
		if err != nil {
			s.debugger.Running = false
			return err
		}
		if status == vm.StatusHalt || s.vm.CPU.Halted {
			s.debugger.Running = false
			s.execState = StateHalted
			break
		}
	}

	return nil
}

// StepOut configures the debugger to step out of the current function.
func (s *DebuggerService) StepOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return fmt.Errorf("no image loaded")
	}

	s.debugger.SetStepOut()
	return nil
}

// AddWatchpoint adds a watchpoint at the specified address
func (s *DebuggerService) AddWatchpoint(address uint64, watchType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wpType debugger.WatchType
	switch watchType {
	case "read":
		wpType = debugger.WatchRead
	case "write":
		wpType = debugger.WatchWrite
	case "readwrite":
		wpType = debugger.WatchReadWrite
	default:
		return fmt.Errorf("invalid watchpoint type: %s", watchType)
	}

	expression := fmt.Sprintf("[0x%08X]", address)
	s.debugger.Watchpoints.AddWatchpoint(wpType, expression, address, false, 0)

	return nil
}

// RemoveWatchpoint removes a watchpoint by ID
func (s *DebuggerService) RemoveWatchpoint(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugger.Watchpoints.DeleteWatchpoint(id)
}

// GetWatchpoints returns all watchpoints
func (s *DebuggerService) GetWatchpoints() []WatchpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wps := s.debugger.Watchpoints.GetAllWatchpoints()
	result := make([]WatchpointInfo, len(wps))
	for i, wp := range wps {
		var wpType string
		switch wp.Type {
		case debugger.WatchRead:
			wpType = "read"
		case debugger.WatchWrite:
			wpType = "write"
		case debugger.WatchReadWrite:
			wpType = "readwrite"
		}

		result[i] = WatchpointInfo{ID: wp.ID, Address: wp.Address, Type: wpType, Enabled: wp.Enabled}
	}
	return result
}

// ExecuteCommand executes a debugger command and returns its output
func (s *DebuggerService) ExecuteCommand(command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.debugger.ExecuteCommand(command)
	output := s.debugger.GetOutput()
	return output, err
}

// EvaluateExpression evaluates an expression and returns the result
func (s *DebuggerService) EvaluateExpression(expr string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugger.Evaluator.EvaluateExpression(expr, s.vm, s.symbols)
}
