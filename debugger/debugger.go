package debugger

import (
	"fmt"
	"strings"

	"github.com/r824vm/r824/vm"
)

// Debugger wraps a *vm.VM with interactive inspection and control: named
// breakpoints keyed on IPtr, watchpoints on registers or memory, a small
// expression evaluator for print/condition commands, and the step/continue
// state machine the CLI and TUI front ends drive.
type Debugger struct {
	VM *vm.VM

	Breakpoints *BreakpointManager
	Watchpoints *WatchpointManager
	History     *CommandHistory
	Evaluator   *Evaluator

	Running           bool
	StepMode          StepMode
	StepOverCallDepth int
	StepOverIPtr      uint32 // IPtr to return to after a step-over

	// Symbols maps label/define names to their resolved addresses, loaded
	// from the assembler's symbol table after assembly.
	Symbols map[string]uint32

	// SourceMap maps an IPtr to the source line that produced it, for
	// listing views.
	SourceMap map[uint32]string

	LastCommand string

	Output strings.Builder
}

// StepMode represents the debugger's current single-step strategy.
type StepMode int

const (
	StepNone   StepMode = iota // not stepping
	StepSingle                 // step one instruction
	StepOver                   // step over a JAL call
	StepOut                    // run until IRET/return (simplified: single step)
)

// NewDebugger wraps machine with a fresh debugger session.
func NewDebugger(machine *vm.VM) *Debugger {
	return &Debugger{
		VM:          machine,
		Breakpoints: NewBreakpointManager(),
		Watchpoints: NewWatchpointManager(),
		History:     NewCommandHistory(),
		Evaluator:   NewEvaluator(),
		Symbols:     make(map[string]uint32),
		SourceMap:   make(map[uint32]string),
	}
}

// LoadSymbols installs the label/define table built by the assembler.
func (d *Debugger) LoadSymbols(symbols map[string]uint32) {
	d.Symbols = symbols
}

// LoadSourceMap installs an IPtr->source-line mapping for listing views.
func (d *Debugger) LoadSourceMap(sourceMap map[uint32]string) {
	d.SourceMap = sourceMap
}

// ResolveAddress resolves a symbol name or parses a numeric (decimal,
// 0x-hex, or $-hex) address.
func (d *Debugger) ResolveAddress(addrStr string) (uint32, error) {
	if addr, exists := d.Symbols[strings.ToLower(addrStr)]; exists {
		return addr, nil
	}

	switch {
	case strings.HasPrefix(addrStr, "0x") || strings.HasPrefix(addrStr, "0X"):
		var addr uint32
		if _, err := fmt.Sscanf(addrStr, "0x%x", &addr); err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
		return addr, nil
	case strings.HasPrefix(addrStr, "$"):
		var addr uint32
		if _, err := fmt.Sscanf(addrStr[1:], "%x", &addr); err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
		return addr, nil
	default:
		var addr uint32
		if _, err := fmt.Sscanf(addrStr, "%d", &addr); err != nil {
			return 0, fmt.Errorf("invalid address: %s", addrStr)
		}
		return addr, nil
	}
}

// ExecuteCommand parses and runs a single debugger command line. An empty
// line repeats the last command, matching the teacher's CLI conventions.
func (d *Debugger) ExecuteCommand(cmdLine string) error {
	cmdLine = strings.TrimSpace(cmdLine)

	if cmdLine == "" {
		cmdLine = d.LastCommand
	}
	if cmdLine != "" {
		d.History.Add(cmdLine)
		d.LastCommand = cmdLine
	}

	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return nil
	}

	return d.handleCommand(strings.ToLower(parts[0]), parts[1:])
}

func (d *Debugger) handleCommand(cmd string, args []string) error {
	switch cmd {
	case "run", "r":
		return d.cmdRun(args)
	case "continue", "c":
		return d.cmdContinue(args)
	case "step", "s", "si":
		return d.cmdStep(args)
	case "next", "n":
		return d.cmdNext(args)
	case "finish", "fin":
		return d.cmdFinish(args)

	case "break", "b":
		return d.cmdBreak(args)
	case "tbreak", "tb":
		return d.cmdTBreak(args)
	case "delete", "d":
		return d.cmdDelete(args)
	case "enable":
		return d.cmdEnable(args)
	case "disable":
		return d.cmdDisable(args)

	case "watch", "w":
		return d.cmdWatch(args)

	case "print", "p":
		return d.cmdPrint(args)
	case "x":
		return d.cmdExamine(args)
	case "info", "i":
		return d.cmdInfo(args)
	case "list", "l":
		return d.cmdList(args)

	case "set":
		return d.cmdSet(args)

	case "reset":
		return d.cmdReset(args)

	case "help", "h", "?":
		return d.cmdHelp(args)

	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

// ShouldBreak reports whether execution should pause at the current IPtr,
// per the active step mode, breakpoints, and watchpoints.
func (d *Debugger) ShouldBreak() (bool, string) {
	iptr := d.VM.CPU.IPtr

	switch d.StepMode {
	case StepSingle:
		d.StepMode = StepNone
		return true, "single step"
	case StepOver:
		if iptr == d.StepOverIPtr {
			d.StepMode = StepNone
			return true, "step over complete"
		}
	case StepOut:
		d.StepMode = StepNone
		return true, "step"
	}

	if bp := d.Breakpoints.GetBreakpoint(iptr); bp != nil {
		if !bp.Enabled {
			return false, ""
		}

		if bp.Condition != "" {
			result, err := d.Evaluator.Evaluate(bp.Condition, d.VM, d.Symbols)
			if err != nil {
				return true, fmt.Sprintf("breakpoint %d (condition error: %v)", bp.ID, err)
			}
			if !result {
				return false, ""
			}
		}

		bp.HitCount++
		if bp.Temporary {
			_ = d.Breakpoints.DeleteBreakpoint(bp.ID)
		}

		return true, fmt.Sprintf("breakpoint %d", bp.ID)
	}

	if wp, changed := d.Watchpoints.CheckWatchpoints(d.VM); wp != nil && changed {
		return true, fmt.Sprintf("watchpoint %d: %s", wp.ID, wp.Expression)
	}

	return false, ""
}

// GetOutput returns and clears the accumulated output buffer.
func (d *Debugger) GetOutput() string {
	output := d.Output.String()
	d.Output.Reset()
	return output
}

func (d *Debugger) Printf(format string, args ...interface{}) {
	d.Output.WriteString(fmt.Sprintf(format, args...))
}

func (d *Debugger) Println(args ...interface{}) {
	d.Output.WriteString(fmt.Sprintln(args...))
}

// SetStepOver arranges to single-step unless the instruction at the
// current IPtr is a JAL call, in which case it runs until IPtr returns
// past the call's operand byte.
func (d *Debugger) SetStepOver() {
	opcode, err := d.VM.Memory.ReadByte(d.VM.CPU.IPtr)
	if err != nil {
		d.StepMode = StepSingle
		d.Running = true
		return
	}

	if opcode == vm.OpJAL {
		d.StepOverIPtr = vm.Trunc24(d.VM.CPU.IPtr + 2)
		d.StepMode = StepOver
	} else {
		d.StepMode = StepSingle
	}
	d.Running = true
}

// SetStepOut arranges to run until the next break opportunity; the VM has
// no hardware call-stack so this is a simplified single step.
func (d *Debugger) SetStepOut() {
	d.StepMode = StepOut
	d.Running = true
}
