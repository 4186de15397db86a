package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/r824vm/r824/api"
	"github.com/r824vm/r824/arch"
	"github.com/r824vm/r824/assembler"
	"github.com/r824vm/r824/config"
	"github.com/r824vm/r824/debugger"
	"github.com/r824vm/r824/tools"
	"github.com/r824vm/r824/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"     // Version number (set by git tag at build time)
	Commit  = "unknown" // Git commit hash
	Date    = "unknown" // Build date
)

// Exit codes per the CLI contract: 0 success, 1 configuration error, 2 when
// the assembly surfaced any error.
const (
	exitOK     = 0
	exitConfig = 1
	exitAsm    = 2
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		configPath  = flag.String("config", "", "Configuration file path (default: platform config dir)")
		archPath    = flag.String("arch", "", "Architecture description JSON (default: built-in R824)")
		runMode     = flag.Bool("run", false, "Assemble, then execute (with -verbose, print the final register dump)")
		debugMode   = flag.Bool("debug", false, "Assemble, then start the command-line debugger")
		tuiMode     = flag.Bool("tui", false, "Assemble, then start the TUI debugger")
		apiServer   = flag.Bool("api-server", false, "Start HTTP API server mode")
		apiPort     = flag.Int("port", 8080, "API server port (used with -api-server)")
		maxCycles   = flag.Uint64("max-cycles", 0, "Maximum CPU cycles before halt (0 = config default)")
		lintMode    = flag.Bool("lint", false, "Lint the source and report issues instead of assembling")
		xrefMode    = flag.Bool("xref", false, "Print the symbol cross-reference table instead of assembling")
		fmtMode     = flag.Bool("fmt", false, "Print the formatted source to stdout instead of assembling")
		verboseMode = flag.Bool("verbose", false, "Verbose output")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("R824 toolchain %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		os.Exit(exitOK)
	}

	if *showHelp {
		printHelp()
		os.Exit(exitOK)
	}

	// API server mode needs no input file.
	if *apiServer {
		runAPIServer(*apiPort)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfig)
	}
	if *maxCycles != 0 {
		cfg.Execution.MaxCycles = *maxCycles
	}

	spec, err := loadArch(*archPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfig)
	}

	if flag.NArg() == 0 {
		printHelp()
		os.Exit(exitConfig)
	}

	asmFile := flag.Arg(0)
	source, err := os.ReadFile(asmFile) // #nosec G304 -- user-specified input path
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", asmFile, err)
		os.Exit(exitConfig)
	}

	// Tool modes work on the source text and exit without producing an
	// image.
	if *fmtMode {
		fmt.Print(tools.NewFormatter(nil).Format(string(source)))
		os.Exit(exitOK)
	}
	if *lintMode {
		issues, err := tools.NewLinter().Lint(spec, string(source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfig)
		}
		for _, issue := range issues {
			fmt.Printf("%s: %s\n", asmFile, issue)
		}
		if errCount, _, _ := tools.CountByLevel(issues); errCount > 0 {
			os.Exit(exitAsm)
		}
		os.Exit(exitOK)
	}
	if *xrefMode {
		xr, err := tools.Xref(spec, string(source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfig)
		}
		fmt.Print(xr.String())
		os.Exit(exitOK)
	}

	if *verboseMode {
		fmt.Printf("Assembling %s against %q\n", asmFile, spec.Name)
	}

	asm, err := assembler.New(spec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfig)
	}
	asm.Includes = &fileLoader{dir: filepath.Dir(asmFile)}
	for _, line := range strings.Split(string(source), "\n") {
		asm.AssembleLine(line)
	}
	asm.Finalize()

	for _, w := range asm.Errors.Warnings {
		fmt.Fprintf(os.Stderr, "%s: %s\n", asmFile, w)
	}
	if asm.Errors.HasErrors() {
		for _, e := range asm.Errors.Errors {
			fmt.Fprintf(os.Stderr, "%s: %s\n", asmFile, e.Error())
		}
		os.Exit(exitAsm)
	}

	image := assembler.WordsToBytes(asm.Words, asm.Width)

	if *verboseMode {
		fmt.Printf("Assembled %d words (%d bytes)\n", len(asm.Words), len(image))
	}

	// Execution modes share a VM loaded with the image.
	if *runMode || *debugMode || *tuiMode {
		machine := newMachine(cfg)
		if err := machine.LoadImage(image); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitConfig)
		}

		if *runMode {
			os.Exit(runProgram(machine, *verboseMode))
		}

		dbg := debugger.NewDebugger(machine)
		dbg.LoadSymbols(definedSymbols(asm))
		dbg.LoadSourceMap(sourceMap(asm, strings.Split(string(source), "\n")))

		if *tuiMode {
			if err := debugger.RunTUI(dbg); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
				os.Exit(exitConfig)
			}
		} else {
			fmt.Println("R824 Debugger - Type 'help' for commands")
			fmt.Printf("Program loaded: %s\n", asmFile)
			fmt.Println()
			if err := debugger.RunCLI(dbg); err != nil {
				fmt.Fprintf(os.Stderr, "Debugger error: %v\n", err)
				os.Exit(exitConfig)
			}
		}
		os.Exit(exitOK)
	}

	// Default mode: write the binary image.
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Error: output file required (usage: r824 <input.asm> <output.bin>)")
		os.Exit(exitConfig)
	}
	outFile := flag.Arg(1)
	if err := os.WriteFile(outFile, image, 0644); err != nil { // #nosec G306 -- ordinary output artifact
		fmt.Fprintf(os.Stderr, "Error: cannot write %s: %v\n", outFile, err)
		os.Exit(exitConfig)
	}
	if *verboseMode {
		fmt.Printf("Wrote %s\n", outFile)
	}
	os.Exit(exitOK)
}

// loadConfig reads the TOML configuration; an explicit path must exist.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return config.LoadFrom(path)
}

// loadArch resolves the architecture description: built-in R824 by default,
// or a JSON document per spec §6.
func loadArch(path string) (*arch.Spec, error) {
	if path == "" {
		return arch.Default(), nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- user-specified architecture file
	if err != nil {
		return nil, fmt.Errorf("architecture file %s: %w", path, err)
	}
	return arch.LoadJSON(data)
}

// newMachine builds a VM with any memory overrides from cfg applied.
func newMachine(cfg *config.Config) *vm.VM {
	machine := vm.NewVMWithLayout(vm.Layout{
		RAMSize:   cfg.Memory.RAMSize,
		VRAMBase:  cfg.Memory.VRAMBase,
		VRAMSize:  cfg.Memory.VRAMSize,
		TimerBase: cfg.Memory.TimerBase,
	})
	machine.MaxCycles = cfg.Execution.MaxCycles
	machine.Console = newStdioConsole()
	return machine
}

// runProgram executes the loaded image until halt and returns the guest's
// exit code.
func runProgram(machine *vm.VM, verbose bool) int {
	if err := machine.Run(nil); err != nil {
		fmt.Fprintf(os.Stderr, "\nRuntime error at ipt=0x%06X: %v\n", machine.CPU.IPtr, err)
		return exitConfig
	}

	if verbose {
		fmt.Println()
		machine.DumpRegisters()
		fmt.Printf("CPU cycles: %d\n", machine.CPU.Cycles)
	}

	return int(machine.ExitCode)
}

// runAPIServer starts the inspection service and blocks until a shutdown
// signal arrives.
func runAPIServer(port int) {
	server := api.NewServer(port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Shutdown must run only once whether triggered by a signal or by the
	// parent-process monitor.
	var shutdownOnce sync.Once
	performShutdown := func() {
		shutdownOnce.Do(func() {
			fmt.Println("\nShutting down API server...")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
				os.Exit(exitConfig)
			}

			fmt.Println("API server stopped")
			os.Exit(exitOK)
		})
	}

	// Detect parent death so a crashed GUI host doesn't orphan the backend.
	monitor := api.NewProcessMonitor(performShutdown)
	monitor.Start()

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "API server error: %v\n", err)
			os.Exit(exitConfig)
		}
	}()

	<-sigChan
	performShutdown()
}

// fileLoader resolves .include/.module directives relative to the input
// file's directory; the assembler core never touches the filesystem itself.
type fileLoader struct {
	dir string
}

func (f *fileLoader) Load(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, name)) // #nosec G304 -- include paths come from the user's own source
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// stdioConsole adapts stdin/stdout to the vm.Console byte contract.
type stdioConsole struct {
	in  *bufio.Reader
	out *bufio.Writer
}

func newStdioConsole() *stdioConsole {
	return &stdioConsole{
		in:  bufio.NewReader(os.Stdin),
		out: bufio.NewWriter(os.Stdout),
	}
}

func (c *stdioConsole) WriteByte(b byte) error {
	if err := c.out.WriteByte(b); err != nil {
		return err
	}
	// Flush per byte: guest output interleaves with prompts.
	return c.out.Flush()
}

func (c *stdioConsole) ReadByte() (byte, error) {
	return c.in.ReadByte()
}

func definedSymbols(asm *assembler.Assembler) map[string]uint32 {
	out := make(map[string]uint32)
	for name, sym := range asm.Symbols.All() {
		if sym.Defined {
			out[name] = sym.Value
		}
	}
	return out
}

// sourceMap maps each emitted instruction's address to its source text for
// the debugger's listing views.
func sourceMap(asm *assembler.Assembler, lines []string) map[uint32]string {
	out := make(map[uint32]string)
	for _, meta := range asm.LineMeta {
		if meta.Line-1 >= 0 && meta.Line-1 < len(lines) {
			out[meta.Offset] = strings.TrimSpace(lines[meta.Line-1])
		}
	}
	return out
}

func printHelp() {
	fmt.Printf(`R824 toolchain %s

Usage: r824 [options] <input.asm> <output.bin>
       r824 -run [options] <input.asm>
       r824 -debug|-tui [options] <input.asm>
       r824 -lint|-xref|-fmt [options] <input.asm>
       r824 -api-server [-port N]

Options:
  -help              Show this help message
  -version           Show version information
  -config FILE       Configuration file (default: platform config dir)
  -arch FILE         Architecture description JSON (default: built-in R824)
  -run               Assemble, then execute until HLT/EXIT
  -debug             Assemble, then start the command-line debugger
  -tui               Assemble, then start the TUI debugger
  -lint              Lint the source and report issues (exit 2 on errors)
  -xref              Print the symbol cross-reference table
  -fmt               Print the formatted source to stdout
  -api-server        Start HTTP API server mode (no input file required)
  -port N            API server port (default: 8080, used with -api-server)
  -max-cycles N      Maximum CPU cycles before halt (0 = config default)
  -verbose           Enable verbose output

Exit codes:
  0  success
  1  configuration error (missing file, bad architecture document)
  2  the assembly surfaced errors

Examples:
  # Assemble a program to a flat binary image
  r824 program.asm program.bin

  # Assemble and run directly
  r824 -run program.asm

  # Run under the TUI debugger
  r824 -tui program.asm

  # Lint, cross-reference, or reformat a source file
  r824 -lint program.asm
  r824 -xref program.asm
  r824 -fmt program.asm > formatted.asm

  # Serve the inspection API for remote tooling
  r824 -api-server -port 3000
`, Version)
}
