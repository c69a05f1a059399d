package api

import (
	"time"

	"github.com/x86emu/x86emu/service"
)

// SessionCreateRequest represents a request to create a new session
type SessionCreateRequest struct {
	MemorySize uint64 `json:"memorySize,omitempty"` // Memory size in bytes (default: 1MiB)
}

// SessionCreateResponse represents the response from creating a session
type SessionCreateResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStatusResponse represents the current status of a session
type SessionStatusResponse struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	EIP       uint32 `json:"eip"`
	Cycles    uint64 `json:"cycles"`
	Error     string `json:"error,omitempty"`
}

// LoadImageRequest represents a request to load a flat binary image
type LoadImageRequest struct {
	Image        []byte            `json:"image"`       // Raw image bytes
	Base         uint64            `json:"base"`         // Physical load address
	EntryOffset  uint64            `json:"entryOffset"`  // Offset from base where execution starts
	Symbols      map[string]uint64 `json:"symbols,omitempty"`
}

// LoadImageResponse represents the response from loading an image
type LoadImageResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

// RegistersResponse represents the current register state
type RegistersResponse struct {
	EAX    uint32     `json:"eax"`
	EBX    uint32     `json:"ebx"`
	ECX    uint32     `json:"ecx"`
	EDX    uint32     `json:"edx"`
	ESI    uint32     `json:"esi"`
	EDI    uint32     `json:"edi"`
	EBP    uint32     `json:"ebp"`
	ESP    uint32     `json:"esp"`
	EIP    uint32     `json:"eip"`
	Flags  FlagsBits  `json:"flags"`
	Cycles uint64     `json:"cycles"`
}

// FlagsBits represents the EFLAGS bits exposed over the API
type FlagsBits struct {
	CF bool `json:"cf"`
	PF bool `json:"pf"`
	AF bool `json:"af"`
	ZF bool `json:"zf"`
	SF bool `json:"sf"`
	TF bool `json:"tf"`
	IF bool `json:"if"`
	DF bool `json:"df"`
	OF bool `json:"of"`
}

// MemoryRequest represents a request for memory data
type MemoryRequest struct {
	Address uint64 `json:"address"`
	Length  uint64 `json:"length"`
}

// MemoryResponse represents memory data
type MemoryResponse struct {
	Address uint64 `json:"address"`
	Data    []byte `json:"data"`
	Length  uint64 `json:"length"`
}

// DisassemblyRequest represents a request for disassembly
type DisassemblyRequest struct {
	Address uint64 `json:"address"`
	Count   uint64 `json:"count"`
}

// DisassemblyResponse represents disassembled instructions. No disassembler
// is wired in: each entry carries the raw instruction bytes.
type DisassemblyResponse struct {
	Instructions []InstructionInfo `json:"instructions"`
}

// InstructionInfo represents one disassembly-view entry
type InstructionInfo struct {
	Address uint64 `json:"address"`
	Bytes   []byte `json:"bytes"`
	Symbol  string `json:"symbol,omitempty"`
}

// BreakpointRequest represents a request to add/remove a breakpoint
type BreakpointRequest struct {
	Address uint64 `json:"address"`
}

// BreakpointsResponse represents a list of breakpoints
type BreakpointsResponse struct {
	Breakpoints []uint64 `json:"breakpoints"`
}

// WatchpointRequest represents a request to add a watchpoint
type WatchpointRequest struct {
	Address uint64 `json:"address"`
	Type    string `json:"type"` // "read", "write", "readwrite"
}

// WatchpointResponse represents a single watchpoint
type WatchpointResponse struct {
	ID      int    `json:"id"`
	Address uint64 `json:"address"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// WatchpointsResponse represents a list of watchpoints
type WatchpointsResponse struct {
	Watchpoints []service.WatchpointInfo `json:"watchpoints"`
}

// SourceMapResponse represents the address-to-annotation map
type SourceMapResponse struct {
	Entries map[uint64]string `json:"entries"`
}

// CommandRequest represents a request to execute a debugger command
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResponse represents the output of a debugger command
type CommandResponse struct {
	Output string `json:"output"`
}

// EvaluateRequest represents a request to evaluate an expression
type EvaluateRequest struct {
	Expression string `json:"expression"`
}

// EvaluateResponse represents the result of evaluating an expression
type EvaluateResponse struct {
	Value uint64 `json:"value"`
}

// StackRequest represents a request for stack contents
type StackRequest struct {
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// StackResponse represents a list of stack entries
type StackResponse struct {
	Entries []service.StackEntry `json:"entries"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// SuccessResponse represents a simple success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Event represents a WebSocket event
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// StateEvent represents a state change event
type StateEvent struct {
	State  string    `json:"state"`
	EIP    uint32    `json:"eip"`
	Flags  FlagsBits `json:"flags"`
	Cycles uint64    `json:"cycles"`
}

// OutputEvent represents console output
type OutputEvent struct {
	Stream  string `json:"stream"`  // "stdout" or "stderr"
	Content string `json:"content"` // Output content
}

// ExecutionEvent represents execution events like breakpoints
type ExecutionEvent struct {
	Event   string `json:"event"` // "breakpoint_hit", "error", "halted"
	Address uint64 `json:"address,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
	Message string `json:"message,omitempty"`
}

// ToRegisterResponse converts service.RegisterState to API response
func ToRegisterResponse(regs *service.RegisterState) *RegistersResponse {
	return &RegistersResponse{
		EAX: regs.EAX, EBX: regs.EBX, ECX: regs.ECX, EDX: regs.EDX,
		ESI: regs.ESI, EDI: regs.EDI, EBP: regs.EBP, ESP: regs.ESP,
		EIP: regs.EIP,
		Flags: FlagsBits{
			CF: regs.Flags.CF, PF: regs.Flags.PF, AF: regs.Flags.AF,
			ZF: regs.Flags.ZF, SF: regs.Flags.SF, TF: regs.Flags.TF,
			IF: regs.Flags.IF, DF: regs.Flags.DF, OF: regs.Flags.OF,
		},
		Cycles: regs.Cycles,
	}
}

// ToInstructionInfo converts service.DisassemblyLine to API response
func ToInstructionInfo(line *service.DisassemblyLine) InstructionInfo {
	return InstructionInfo{
		Address: line.Address,
		Bytes:   line.Bytes,
		Symbol:  line.Symbol,
	}
}
