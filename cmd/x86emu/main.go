// Command x86emu loads a flat binary image, wires it to a platform and
// runs it to halt/fault, or hands it off to one of the debugger front
// ends. It stays intentionally thin: flag parsing and wiring, not a
// disassembler or BIOS loader.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/x86emu/x86emu/api"
	"github.com/x86emu/x86emu/config"
	"github.com/x86emu/x86emu/debugger"
	"github.com/x86emu/x86emu/loader"
	"github.com/x86emu/x86emu/logging"
	"github.com/x86emu/x86emu/platform"
	"github.com/x86emu/x86emu/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config, using defaults: %v\n", err)
		cfg = config.DefaultConfig()
	}

	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		debugMode   = flag.Bool("debug", false, "Start in command-line debugger mode")
		tuiMode     = flag.Bool("tui", false, "Use TUI (Text User Interface) debugger")
		guiMode     = flag.Bool("gui", false, "Use the native GUI debugger")
		apiServer   = flag.Bool("api-server", false, "Start HTTP API server mode")
		apiPort     = flag.Int("port", 8080, "API server port (used with -api-server)")
		maxInsns    = flag.Uint64("max-instructions", cfg.Execution.MaxInstructions, "Maximum instructions before Run stops (0 = unbounded)")
		base        = flag.String("base", cfg.Execution.BootAddress, "Physical load address for the image (hex or decimal)")
		entryOffset = flag.String("entry", "0x0", "Entry point offset from base (hex or decimal)")
		memSize     = flag.Int("mem-size", int(cfg.Execution.MemorySize), "Guest physical memory size in bytes")
		lapicHz     = flag.Uint64("lapic-hz", cfg.Platform.LAPICBaseHz, "Local APIC timer base frequency in Hz")
		verboseMode = flag.Bool("verbose", false, "Verbose output")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("x86emu %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	log := logging.New(os.Stderr, *verboseMode)

	if *apiServer {
		runAPIServer(*apiPort)
		return
	}

	if flag.NArg() == 0 {
		printHelp()
		os.Exit(0)
	}

	imagePath := flag.Arg(0)
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: file not found: %s\n", imagePath)
		os.Exit(1)
	}

	baseAddr, err := parseAddress(*base)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -base address: %v\n", err)
		os.Exit(1)
	}
	entryAddr, err := parseAddress(*entryOffset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -entry offset: %v\n", err)
		os.Exit(1)
	}

	machine := vm.NewVM(vm.NewMemory(*memSize), platform.New(*lapicHz))
	machine.MaxInstructions = *maxInsns

	log.Debug("loading image", "path", imagePath, "base", baseAddr, "entry", entryAddr)
	if err := loader.LoadImageFile(machine, imagePath, baseAddr, entryAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading image: %v\n", err)
		os.Exit(1)
	}

	if *verboseMode {
		fmt.Printf("Loaded %s at base=0x%X, entry=0x%X\n", imagePath, baseAddr, baseAddr+entryAddr)
	}

	switch {
	case *tuiMode:
		dbg := debugger.NewDebugger(machine)
		if err := debugger.RunTUI(dbg); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			os.Exit(1)
		}
	case *guiMode:
		dbg := debugger.NewDebugger(machine)
		if err := debugger.RunGUI(dbg); err != nil {
			fmt.Fprintf(os.Stderr, "GUI error: %v\n", err)
			os.Exit(1)
		}
	case *debugMode:
		dbg := debugger.NewDebugger(machine)
		fmt.Println("x86emu Debugger - Type 'help' for commands")
		fmt.Printf("Image loaded: %s\n", imagePath)
		fmt.Println()
		if err := debugger.RunCLI(dbg); err != nil {
			fmt.Fprintf(os.Stderr, "Debugger error: %v\n", err)
			os.Exit(1)
		}
	default:
		runDirect(machine, *verboseMode)
	}
}

// runDirect steps machine to completion outside the debugger, mirroring
// the teacher's direct-execution path.
func runDirect(machine *vm.VM, verbose bool) {
	if verbose {
		fmt.Println("Starting execution...")
		fmt.Println("----------------------------------------")
	}

	status, err := machine.Run()
	if err != nil || status == vm.StatusFault {
		fmt.Fprintf(os.Stderr, "\nFault at RIP=0x%08X: %v\n", machine.CPU.RIP, err)
		os.Exit(1)
	}

	if verbose {
		fmt.Println("----------------------------------------")
		fmt.Println("Execution complete")
		fmt.Printf("CPU cycles: %d\n", machine.CPU.Cycles)
		fmt.Printf("Final RIP: 0x%08X\n", machine.CPU.RIP)
	}
}

// runAPIServer starts the HTTP API server and blocks until a shutdown
// signal arrives, with a process monitor to catch a dead parent process.
func runAPIServer(port int) {
	server := api.NewServer(port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownOnce sync.Once
	performShutdown := func() {
		shutdownOnce.Do(func() {
			fmt.Println("\nShutting down API server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("API server stopped")
			os.Exit(0)
		})
	}

	monitor := api.NewProcessMonitor(performShutdown)
	monitor.Start()

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "API server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	performShutdown()
}

// parseAddress parses a string as hex ("0x..." prefix) or decimal.
func parseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func printHelp() {
	fmt.Printf(`x86emu %s

Usage: x86emu [options] <image-file>
       x86emu -api-server [-port N]

Options:
  -help               Show this help message
  -version            Show version information
  -api-server         Start HTTP API server mode (no image file required)
  -port N             API server port (default: 8080, used with -api-server)
  -debug              Start in command-line debugger mode
  -tui                Start in TUI debugger mode
  -gui                Start in native GUI debugger mode
  -base ADDR          Physical load address (default: boot_address from config, 0x7C00)
  -entry ADDR         Entry point offset from base (default: 0x0)
  -mem-size N         Guest physical memory size in bytes (default: memory_size from config, 16777216)
  -max-instructions N Stop Run after N instructions, 0 = unbounded
  -verbose            Enable verbose output

Examples:
  # Run a flat binary image directly
  x86emu program.bin

  # Run with the command-line debugger
  x86emu -debug program.bin

  # Run with the TUI debugger
  x86emu -tui program.bin

  # Start the HTTP API server for a remote front end
  x86emu -api-server -port 3000

For more information, see DESIGN.md.
`, Version)
}
