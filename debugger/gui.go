package debugger

import (
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/x86emu/x86emu/vm"
)

// GUI represents the graphical user interface for the debugger
type GUI struct {
	// Core components
	Debugger *Debugger
	App      fyne.App
	Window   fyne.Window

	// View panels
	SourceView      *widget.TextGrid
	RegisterView    *widget.TextGrid
	MemoryView      *widget.TextGrid
	StackView       *widget.TextGrid
	BreakpointsList *widget.List
	ConsoleOutput   *widget.TextGrid
	StatusLabel     *widget.Label

	// Controls
	Toolbar *widget.Toolbar

	// State
	CurrentAddress uint64
	MemoryAddress  uint64
	StackAddress   uint64
	Running        bool

	// Source code cache
	SourceLines []string
	SourceFile  string

	// Breakpoints data
	breakpoints []string

	// Console output buffer
	consoleBuffer strings.Builder
	consoleMutex  sync.Mutex
}

// RunGUI runs the GUI (Graphical User Interface) debugger
func RunGUI(dbg *Debugger) error {
	gui := newGUI(dbg)
	gui.Window.ShowAndRun()
	return nil
}

// newGUI creates a new graphical user interface
func newGUI(debugger *Debugger) *GUI {
	myApp := app.New()
	myWindow := myApp.NewWindow("x86 Emulator Debugger")

	gui := &GUI{
		Debugger:       debugger,
		App:            myApp,
		Window:         myWindow,
		CurrentAddress: 0,
		MemoryAddress:  0,
		StackAddress:   0,
		Running:        false,
		breakpoints:    []string{},
	}

	gui.initializeViews()
	gui.buildLayout()
	gui.setupToolbar()

	// Set window size
	myWindow.Resize(fyne.NewSize(1400, 900))

	return gui
}

// initializeViews creates all the view panels
func (g *GUI) initializeViews() {
	// Source view
	g.SourceView = widget.NewTextGrid()
	g.SourceView.SetText("No address annotations loaded")

	// Register view
	g.RegisterView = widget.NewTextGrid()
	g.updateRegisters()

	// Memory view
	g.MemoryView = widget.NewTextGrid()
	g.updateMemory()

	// Stack view
	g.StackView = widget.NewTextGrid()
	g.updateStack()

	// Breakpoints list
	g.breakpoints = []string{}
	g.BreakpointsList = widget.NewList(
		func() int {
			return len(g.breakpoints)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("template")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(g.breakpoints[id])
		},
	)

	// Console output
	g.ConsoleOutput = widget.NewTextGrid()
	g.ConsoleOutput.SetText("")

	// Status label
	g.StatusLabel = widget.NewLabel("Ready")
}

// buildLayout creates the main layout
func (g *GUI) buildLayout() {
	// Create bordered panels for better visual separation
	sourcePanel := container.NewBorder(
		widget.NewLabel("📄 Source Code"),
		nil, nil, nil,
		container.NewScroll(g.SourceView),
	)

	registerPanel := container.NewBorder(
		widget.NewLabel("📊 Registers"),
		nil, nil, nil,
		container.NewScroll(g.RegisterView),
	)

	memoryPanel := container.NewBorder(
		widget.NewLabel("💾 Memory"),
		nil, nil, nil,
		container.NewScroll(g.MemoryView),
	)

	stackPanel := container.NewBorder(
		widget.NewLabel("📚 Stack"),
		nil, nil, nil,
		container.NewScroll(g.StackView),
	)

	breakpointsPanel := container.NewBorder(
		widget.NewLabel("🔴 Breakpoints"),
		nil, nil, nil,
		container.NewScroll(g.BreakpointsList),
	)

	consolePanel := container.NewBorder(
		widget.NewLabel("💻 Console Output"),
		nil, nil, nil,
		container.NewScroll(g.ConsoleOutput),
	)

	// Left side: source code (larger)
	leftPanel := container.NewMax(sourcePanel)

	// Right side: registers and breakpoints
	rightTop := container.NewVSplit(registerPanel, breakpointsPanel)
	rightTop.SetOffset(0.6) // 60% registers, 40% breakpoints

	// Bottom right: memory, stack, console
	bottomTabs := container.NewAppTabs(
		container.NewTabItem("Memory", memoryPanel),
		container.NewTabItem("Stack", stackPanel),
		container.NewTabItem("Console", consolePanel),
	)

	rightPanel := container.NewVSplit(rightTop, bottomTabs)
	rightPanel.SetOffset(0.5)

	// Main split: left (source) and right (info panels)
	mainSplit := container.NewHSplit(leftPanel, rightPanel)
	mainSplit.SetOffset(0.55) // 55% source, 45% info

	// Add status bar at bottom
	statusBar := container.NewBorder(nil, nil, nil, nil, g.StatusLabel)

	// Complete layout with toolbar at top
	content := container.NewBorder(
		g.Toolbar, // top
		statusBar, // bottom
		nil,       // left
		nil,       // right
		mainSplit, // center
	)

	g.Window.SetContent(content)
}

// setupToolbar creates the debugger control toolbar
func (g *GUI) setupToolbar() {
	g.Toolbar = widget.NewToolbar(
		widget.NewToolbarAction(theme.MediaPlayIcon(), func() {
			g.runProgram()
		}),
		widget.NewToolbarAction(theme.MediaSkipNextIcon(), func() {
			g.stepProgram()
		}),
		widget.NewToolbarAction(theme.MediaFastForwardIcon(), func() {
			g.continueProgram()
		}),
		widget.NewToolbarAction(theme.MediaStopIcon(), func() {
			g.stopProgram()
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentAddIcon(), func() {
			g.addBreakpoint()
		}),
		widget.NewToolbarAction(theme.ContentClearIcon(), func() {
			g.clearBreakpoints()
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), func() {
			g.refreshViews()
		}),
	)
}

// updateViews refreshes all view panels
func (g *GUI) updateViews() {
	g.updateSource()
	g.updateRegisters()
	g.updateMemory()
	g.updateStack()
	g.updateBreakpoints()
	g.updateConsole()
}

// updateSource updates the address annotation view
func (g *GUI) updateSource() {
	currentRIP := g.Debugger.VM.CPU.RIP

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Current RIP: 0x%08X\n\n", currentRIP))
	if source, ok := g.Debugger.SourceMap[currentRIP]; ok {
		sb.WriteString(fmt.Sprintf("→ %s\n", source))
	} else {
		sb.WriteString("No annotation at this address\n")
	}
	g.SourceView.SetText(sb.String())
}

// updateRegisters updates the register view
func (g *GUI) updateRegisters() {
	var sb strings.Builder

	cpu := g.Debugger.VM.CPU

	sb.WriteString("General Purpose Registers:\n")
	sb.WriteString("──────────────────────────\n")
	names := []string{"eax", "ebx", "ecx", "edx", "esi", "edi", "ebp", "esp"}
	for _, name := range names {
		idx := generalRegisterByName[name]
		v := cpu.GPR[idx]
		sb.WriteString(fmt.Sprintf("%-3s: 0x%08X  (%d)\n", strings.ToUpper(name), v, int32(v)))
	}

	sb.WriteString("\nInstruction Pointer:\n")
	sb.WriteString("──────────────────────────\n")
	sb.WriteString(fmt.Sprintf("EIP: 0x%08X  (%d)\n", cpu.RIP, int32(cpu.RIP)))

	sb.WriteString("\nEFLAGS:\n")
	sb.WriteString("──────────────────────────\n")
	flags := ""
	for _, bit := range []struct {
		set bool
		ch  string
	}{
		{cpu.Flags.CF, "C"}, {cpu.Flags.PF, "P"}, {cpu.Flags.AF, "A"},
		{cpu.Flags.ZF, "Z"}, {cpu.Flags.SF, "S"}, {cpu.Flags.OF, "O"},
	} {
		if bit.set {
			flags += bit.ch
		} else {
			flags += "-"
		}
	}
	sb.WriteString(fmt.Sprintf("Flags: %s (0x%08X)\n", flags, cpu.Flags.ToUint64()))

	g.RegisterView.SetText(sb.String())
}

// updateMemory updates the memory view
func (g *GUI) updateMemory() {
	var sb strings.Builder

	// Show memory around RIP or a specific address
	addr := g.MemoryAddress
	if addr == 0 {
		addr = g.Debugger.VM.CPU.RIP
	}

	// Round down to 16-byte boundary
	addr &= ^uint64(0xF)

	sb.WriteString(fmt.Sprintf("Memory at 0x%08X:\n", addr))
	sb.WriteString("──────────────────────────────────────────────────\n")

	// Show 16 lines of 16 bytes each
	for i := uint64(0); i < 16; i++ {
		lineAddr := addr + i*16
		sb.WriteString(fmt.Sprintf("%08X: ", lineAddr))

		// Hex view
		for j := uint64(0); j < 16; j++ {
			byteAddr := lineAddr + j
			v, err := g.Debugger.VM.Bus.ReadBytes(byteAddr, 1)
			if err == nil {
				sb.WriteString(fmt.Sprintf("%02X ", byte(v)))
			} else {
				sb.WriteString("?? ")
			}
		}

		// ASCII view
		sb.WriteString(" ")
		for j := uint64(0); j < 16; j++ {
			byteAddr := lineAddr + j
			v, err := g.Debugger.VM.Bus.ReadBytes(byteAddr, 1)
			if err == nil {
				b := byte(v)
				if b >= 32 && b < 127 {
					sb.WriteString(string(b))
				} else {
					sb.WriteString(".")
				}
			} else {
				sb.WriteString("?")
			}
		}
		sb.WriteString("\n")
	}

	g.MemoryView.SetText(sb.String())
}

// updateStack updates the stack view
func (g *GUI) updateStack() {
	var sb strings.Builder

	sp := g.Debugger.VM.CPU.GPR[generalRegisterByName["esp"]]

	sb.WriteString(fmt.Sprintf("Stack at ESP=0x%08X:\n", sp))
	sb.WriteString("──────────────────────────────\n")

	// Show 16 dwords above SP
	for i := 0; i < 16; i++ {
		addr := sp + uint64(i*4)
		prefix := "  "
		if i == 0 {
			prefix = "→ "
		}

		word, err := g.Debugger.VM.Bus.ReadBytes(addr, 4)
		if err == nil {
			sb.WriteString(fmt.Sprintf("%s%08X: %08X  (%d)\n", prefix, addr, word, int32(word)))
		}
	}

	g.StackView.SetText(sb.String())
}

// updateBreakpoints updates the breakpoints list
func (g *GUI) updateBreakpoints() {
	breakpoints := g.Debugger.Breakpoints.GetAllBreakpoints()
	g.breakpoints = make([]string, 0, len(breakpoints))

	for _, bp := range breakpoints {
		// Try to resolve symbol name
		symbol := ""
		for name, addr := range g.Debugger.Symbols {
			if addr == bp.Address {
				symbol = fmt.Sprintf(" [%s]", name)
				break
			}
		}

		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}

		g.breakpoints = append(g.breakpoints, fmt.Sprintf("0x%08X%s (%s)", bp.Address, symbol, status))
	}

	g.BreakpointsList.Refresh()
}

// updateConsole updates the console output view from the debugger's output
// buffer, the same buffer the CLI and TUI front ends read from.
func (g *GUI) updateConsole() {
	g.consoleMutex.Lock()
	defer g.consoleMutex.Unlock()

	if output := g.Debugger.GetOutput(); output != "" {
		g.consoleBuffer.WriteString(output)
	}
	g.ConsoleOutput.SetText(g.consoleBuffer.String())
}

// runProgram starts/restarts program execution
func (g *GUI) runProgram() {
	g.StatusLabel.SetText("Running...")
	g.Running = true

	// Execute program in goroutine to keep UI responsive
	go func() {
		for g.Running && !g.Debugger.VM.CPU.Halted {
			status, err := g.Debugger.VM.Step()
			if err != nil {
				g.StatusLabel.SetText(fmt.Sprintf("Error: %v", err))
				g.Running = false
				break
			}

			// Check for breakpoints
			if shouldBreak, reason := g.Debugger.ShouldBreak(); shouldBreak {
				g.StatusLabel.SetText(fmt.Sprintf("Stopped: %s at RIP=0x%08X", reason, g.Debugger.VM.CPU.RIP))
				g.Running = false
				g.updateViews()
				break
			}

			if status == vm.StatusHalt || g.Debugger.VM.CPU.Halted {
				g.StatusLabel.SetText(fmt.Sprintf("Program halted at RIP=0x%08X", g.Debugger.VM.CPU.RIP))
				g.Running = false
				g.updateViews()
				break
			}
			if status == vm.StatusFault {
				g.StatusLabel.SetText(fmt.Sprintf("Fault at RIP=0x%08X", g.Debugger.VM.CPU.RIP))
				g.Running = false
				g.updateViews()
				break
			}
		}
	}()
}

// stepProgram executes one instruction
func (g *GUI) stepProgram() {
	if g.Debugger.VM.CPU.Halted {
		g.StatusLabel.SetText("Program has halted")
		return
	}

	status, err := g.Debugger.VM.Step()
	if err != nil {
		g.StatusLabel.SetText(fmt.Sprintf("Error: %v", err))
		return
	}

	if status == vm.StatusHalt || g.Debugger.VM.CPU.Halted {
		g.StatusLabel.SetText(fmt.Sprintf("Program halted at RIP=0x%08X", g.Debugger.VM.CPU.RIP))
	} else if status == vm.StatusFault {
		g.StatusLabel.SetText(fmt.Sprintf("Fault at RIP=0x%08X", g.Debugger.VM.CPU.RIP))
	} else {
		g.StatusLabel.SetText(fmt.Sprintf("Stepped to RIP=0x%08X", g.Debugger.VM.CPU.RIP))
	}

	g.updateViews()
}

// continueProgram continues execution until breakpoint
func (g *GUI) continueProgram() {
	g.runProgram()
}

// stopProgram stops execution
func (g *GUI) stopProgram() {
	g.Running = false
	g.StatusLabel.SetText("Stopped")
	g.updateViews()
}

// addBreakpoint adds a breakpoint at current RIP
func (g *GUI) addBreakpoint() {
	rip := g.Debugger.VM.CPU.RIP
	g.Debugger.Breakpoints.AddBreakpoint(rip, false, "")
	g.updateBreakpoints()
	g.StatusLabel.SetText(fmt.Sprintf("Breakpoint added at 0x%08X", rip))
}

// clearBreakpoints removes all breakpoints
func (g *GUI) clearBreakpoints() {
	g.Debugger.Breakpoints.Clear()
	g.updateBreakpoints()
	g.StatusLabel.SetText("All breakpoints cleared")
}

// refreshViews manually refreshes all views
func (g *GUI) refreshViews() {
	g.updateViews()
	g.StatusLabel.SetText("Views refreshed")
}
