package debugger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/r824vm/r824/vm"
)

// Command handler implementations.

// cmdRun resets and starts program execution.
func (d *Debugger) cmdRun(args []string) error {
	d.VM.Reset()
	d.Running = true
	d.StepMode = StepNone

	d.Println("Starting program execution...")
	return nil
}

// cmdContinue continues execution from the current point.
func (d *Debugger) cmdContinue(args []string) error {
	if d.VM.CPU.Halted {
		return fmt.Errorf("program is not running")
	}

	d.Running = true
	d.StepMode = StepNone

	d.Println("Continuing...")
	return nil
}

// cmdStep executes a single instruction.
func (d *Debugger) cmdStep(args []string) error {
	d.StepMode = StepSingle
	d.Running = true
	return nil
}

// cmdNext steps over a JAL call (step to the next instruction at the same level).
func (d *Debugger) cmdNext(args []string) error {
	d.SetStepOver()
	return nil
}

// cmdFinish steps one instruction; there is no call stack to track, so it
// does not run on to the current call's return.
func (d *Debugger) cmdFinish(args []string) error {
	d.SetStepOut()
	return nil
}

// cmdBreak sets a breakpoint.
func (d *Debugger) cmdBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break <address|label> [if <condition>]")
	}

	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	var condition string
	if len(args) > 1 && strings.ToLower(args[1]) == "if" {
		condition = strings.Join(args[2:], " ")
	}

	bp := d.Breakpoints.AddBreakpoint(address, false, condition)

	if condition != "" {
		d.Printf("Breakpoint %d at 0x%06X (condition: %s)\n", bp.ID, address, condition)
	} else {
		d.Printf("Breakpoint %d at 0x%06X\n", bp.ID, address)
	}

	return nil
}

// cmdTBreak sets a temporary breakpoint (auto-delete after hit).
func (d *Debugger) cmdTBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tbreak <address|label>")
	}

	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	bp := d.Breakpoints.AddBreakpoint(address, true, "")
	d.Printf("Temporary breakpoint %d at 0x%06X\n", bp.ID, address)

	return nil
}

// cmdDelete deletes breakpoint(s).
func (d *Debugger) cmdDelete(args []string) error {
	if len(args) == 0 {
		d.Breakpoints.Clear()
		d.Println("All breakpoints deleted")
		return nil
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DeleteBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d deleted\n", id)
	return nil
}

// cmdEnable enables a breakpoint.
func (d *Debugger) cmdEnable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: enable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.EnableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d enabled\n", id)
	return nil
}

// cmdDisable disables a breakpoint.
func (d *Debugger) cmdDisable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: disable <breakpoint-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DisableBreakpoint(id); err != nil {
		return err
	}

	d.Printf("Breakpoint %d disabled\n", id)
	return nil
}

// cmdWatch sets a watchpoint on a register or memory location.
func (d *Debugger) cmdWatch(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: watch <register|[address]>")
	}

	expression := strings.Join(args, " ")

	isRegister, register, address, err := d.parseWatchExpression(expression)
	if err != nil {
		return err
	}

	wp := d.Watchpoints.AddWatchpoint(WatchWrite, expression, address, isRegister, register)

	if err := d.Watchpoints.InitializeWatchpoint(wp.ID, d.VM); err != nil {
		d.Watchpoints.DeleteWatchpoint(wp.ID)
		return err
	}

	d.Printf("Watchpoint %d: %s\n", wp.ID, expression)
	return nil
}

// parseWatchExpression parses a watch expression into a register index or a
// memory address.
func (d *Debugger) parseWatchExpression(expr string) (isRegister bool, register int, address uint32, err error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	if expr == "ipt" || expr == "ip" || expr == "iptr" {
		return false, 0, 0, fmt.Errorf("IPtr cannot be watched; use a breakpoint instead")
	}

	if idx, ok := vm.RegIndex(expr); ok {
		return true, idx, 0, nil
	}

	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") {
		addrStr := strings.TrimSuffix(strings.TrimPrefix(expr, "["), "]")
		addr, err := d.ResolveAddress(addrStr)
		if err != nil {
			return false, 0, 0, err
		}
		return false, 0, addr, nil
	}

	addr, err := d.ResolveAddress(expr)
	if err != nil {
		return false, 0, 0, fmt.Errorf("invalid watch expression: %s", expr)
	}

	return false, 0, addr, nil
}

// cmdPrint evaluates and prints an expression.
func (d *Debugger) cmdPrint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <expression>")
	}

	expression := strings.Join(args, " ")
	result, err := d.Evaluator.EvaluateExpression(expression, d.VM, d.Symbols)
	if err != nil {
		return err
	}

	d.Printf("= 0x%06X (%d)\n", uint32(result)&0xFFFFFF, result)
	return nil
}

// cmdExamine examines memory at an address. Supports x/<count><format><unit>
// <address>, e.g. x/8xw 0x1000.
func (d *Debugger) cmdExamine(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: x[/nfu] <address>\n  n: count, f: format (x/d/u/o/t), u: unit size (b/w)")
	}

	count := 1
	format := 'x'
	unit := 'w'
	addrArg := args[0]

	if strings.HasPrefix(args[0], "/") {
		formatStr := args[0][1:]
		if len(args) < 2 {
			return fmt.Errorf("missing address")
		}
		addrArg = args[1]

		i := 0
		for i < len(formatStr) && formatStr[i] >= '0' && formatStr[i] <= '9' {
			i++
		}
		if i > 0 {
			if n, err := strconv.Atoi(formatStr[:i]); err == nil {
				count = n
			}
			formatStr = formatStr[i:]
		}

		if len(formatStr) > 0 {
			format = rune(formatStr[0])
			formatStr = formatStr[1:]
		}
		if len(formatStr) > 0 {
			unit = rune(formatStr[0])
		}
	}

	address, err := d.ResolveAddress(addrArg)
	if err != nil {
		return err
	}

	d.Printf("0x%06X:", address)
	for i := 0; i < count; i++ {
		var value uint32
		var readErr error

		switch unit {
		case 'b':
			val, e := d.VM.Memory.ReadByte(address)
			value = uint32(val)
			readErr = e
			address = vm.Trunc24(address + 1)
		default:
			value, readErr = d.VM.Memory.Read24(address)
			address = vm.Trunc24(address + 3)
		}

		if readErr != nil {
			return readErr
		}

		switch format {
		case 'd':
			d.Printf(" %d", vm.SignExtend24(value))
		case 'u':
			d.Printf(" %d", value)
		case 'o':
			d.Printf(" %o", value)
		case 't':
			d.Printf(" %b", value)
		default:
			d.Printf(" 0x%06X", value)
		}
	}
	d.Println()

	return nil
}

// cmdInfo displays information about debugger/VM state.
func (d *Debugger) cmdInfo(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: info <registers|breakpoints|watchpoints|stack|interrupts>")
	}

	switch strings.ToLower(args[0]) {
	case "registers", "reg", "r":
		return d.showRegisters()
	case "breakpoints", "break", "b":
		return d.showBreakpoints()
	case "watchpoints", "watch", "w":
		return d.showWatchpoints()
	case "stack", "s":
		return d.showStack()
	case "interrupts", "int", "i":
		return d.showInterrupts()
	default:
		return fmt.Errorf("unknown info command: %s", args[0])
	}
}

// showRegisters displays the stack cache, workspace, and IPtr.
func (d *Debugger) showRegisters() error {
	d.Println("Registers:")
	for i := 0; i < vm.NumRegs; i++ {
		v := d.VM.CPU.GetReg(i)
		d.Printf("  %-3s = 0x%06X (%d)\n", vm.RegName(i), uint32(v)&0xFFFFFF, v)
	}
	d.Printf("  ipt = 0x%06X (%d)\n", d.VM.CPU.IPtr, d.VM.CPU.IPtr)

	mie := "off"
	if d.VM.CPU.MIE {
		mie = "on"
	}
	d.Printf("  MIE = %s  mip = 0x%02X  mie = 0x%02X\n", mie, d.VM.CPU.Mip, d.VM.CPU.Mie)
	d.Printf("  cycles = %d  halted = %v\n", d.VM.CPU.Cycles, d.VM.CPU.Halted)

	return nil
}

// showBreakpoints displays all breakpoints.
func (d *Debugger) showBreakpoints() error {
	breakpoints := d.Breakpoints.GetAllBreakpoints()
	if len(breakpoints) == 0 {
		d.Println("No breakpoints")
		return nil
	}

	d.Println("Breakpoints:")
	for _, bp := range breakpoints {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}

		temp := ""
		if bp.Temporary {
			temp = " (temporary)"
		}

		condition := ""
		if bp.Condition != "" {
			condition = fmt.Sprintf(" if %s", bp.Condition)
		}

		d.Printf("  %d: 0x%06X %s%s%s (hit %d times)\n",
			bp.ID, bp.Address, status, temp, condition, bp.HitCount)
	}

	return nil
}

// showWatchpoints displays all watchpoints.
func (d *Debugger) showWatchpoints() error {
	watchpoints := d.Watchpoints.GetAllWatchpoints()
	if len(watchpoints) == 0 {
		d.Println("No watchpoints")
		return nil
	}

	d.Println("Watchpoints:")
	for _, wp := range watchpoints {
		status := "enabled"
		if !wp.Enabled {
			status = "disabled"
		}

		d.Printf("  %d: %s %s (hit %d times, last value: 0x%06X)\n",
			wp.ID, wp.Expression, status, wp.HitCount, wp.LastValue)
	}

	return nil
}

// showStack displays words near the current stack pointer.
func (d *Debugger) showStack() error {
	sp := d.VM.CPU.SP()
	d.Printf("Stack (SP = 0x%06X):\n", sp)

	addr := sp
	for i := 0; i < 8; i++ {
		value, err := d.VM.Memory.Read24(addr)
		if err != nil {
			break
		}
		d.Printf("  0x%06X: 0x%06X (%d)\n", addr, value, vm.SignExtend24(value))
		addr = vm.Trunc24(addr + 3)
	}

	return nil
}

// showInterrupts displays pending/enabled interrupt state and the
// interrupt-save workspace slots.
func (d *Debugger) showInterrupts() error {
	cpu := d.VM.CPU
	d.Printf("MIE (global enable): %v\n", cpu.MIE)
	d.Printf("mie (per-cause enable): 0x%02X\n", cpu.Mie)
	d.Printf("mip (pending): 0x%02X\n", cpu.Mip)
	if s := cpu.IsServicing(); s >= 0 {
		d.Printf("currently servicing cause %d\n", s)
	} else {
		d.Println("no interrupt in service")
	}
	d.Printf("save slots: w11=0x%06X(C) w12=0x%06X(B) w13=0x%06X(A) w14=0x%06X(IPtr)\n",
		uint32(cpu.W[11])&0xFFFFFF, uint32(cpu.W[12])&0xFFFFFF, uint32(cpu.W[13])&0xFFFFFF, uint32(cpu.W[14])&0xFFFFFF)
	return nil
}

// cmdList shows source lines around the current IPtr.
func (d *Debugger) cmdList(args []string) error {
	iptr := d.VM.CPU.IPtr

	if source, exists := d.SourceMap[iptr]; exists {
		d.Printf("=> 0x%06X: %s\n", iptr, source)
	} else {
		d.Printf("=> 0x%06X: <no source>\n", iptr)
	}

	for offset := uint32(1); offset <= 8; offset++ {
		addr := vm.Trunc24(iptr + offset)
		if source, exists := d.SourceMap[addr]; exists {
			d.Printf("   0x%06X: %s\n", addr, source)
		}
	}

	return nil
}

// cmdSet modifies a register or memory value.
func (d *Debugger) cmdSet(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: set <register|*address> = <value>")
	}

	if args[1] != "=" {
		return fmt.Errorf("usage: set <register|*address> = <value>")
	}

	target := strings.ToLower(args[0])
	valueStr := args[2]

	value, err := d.Evaluator.EvaluateExpression(valueStr, d.VM, d.Symbols)
	if err != nil {
		return err
	}

	if strings.HasPrefix(target, "*") {
		addrStr := target[1:]
		address, err := d.ResolveAddress(addrStr)
		if err != nil {
			return err
		}

		if err := d.VM.Memory.Write24(address, uint32(value)&0xFFFFFF); err != nil {
			return err
		}

		d.Printf("Memory 0x%06X set to 0x%06X\n", address, uint32(value)&0xFFFFFF)
		return nil
	}

	idx, ok := vm.RegIndex(target)
	if !ok {
		return fmt.Errorf("invalid register: %s", target)
	}

	d.VM.CPU.SetReg(idx, vm.SignExtend24(uint32(value)))
	d.Printf("Register %s set to 0x%06X\n", target, uint32(value)&0xFFFFFF)

	return nil
}

// cmdReset resets the VM to its power-on state.
func (d *Debugger) cmdReset(args []string) error {
	d.VM.Reset()
	d.Println("VM reset")
	return nil
}

// cmdHelp displays help information.
func (d *Debugger) cmdHelp(args []string) error {
	if len(args) > 0 {
		return d.showCommandHelp(args[0])
	}

	d.Println("R824 Debugger Commands:")
	d.Println()
	d.Println("Execution Control:")
	d.Println("  run (r)           - Reset and start program execution")
	d.Println("  continue (c)      - Continue execution")
	d.Println("  step (s, si)      - Execute single instruction")
	d.Println("  next (n)          - Step over a JAL call")
	d.Println("  finish (fin)      - Step one instruction (no call-return tracking)")
	d.Println()
	d.Println("Breakpoints:")
	d.Println("  break (b) <addr>  - Set breakpoint")
	d.Println("  tbreak (tb) <addr>- Set temporary breakpoint")
	d.Println("  delete (d) [id]   - Delete breakpoint(s)")
	d.Println("  enable <id>       - Enable breakpoint")
	d.Println("  disable <id>      - Disable breakpoint")
	d.Println()
	d.Println("Watchpoints:")
	d.Println("  watch (w) <expr>  - Watch a register or memory location")
	d.Println()
	d.Println("Inspection:")
	d.Println("  print (p) <expr>  - Evaluate expression")
	d.Println("  x[/nfu] <addr>    - Examine memory")
	d.Println("  info (i) <what>   - Show information (registers/breakpoints/watchpoints/stack/interrupts)")
	d.Println("  list (l)          - List source code")
	d.Println()
	d.Println("Modification:")
	d.Println("  set <var> = <val> - Modify register/memory")
	d.Println()
	d.Println("Control:")
	d.Println("  reset             - Reset VM")
	d.Println("  help (h, ?)       - Show this help")
	d.Println()
	d.Println("Type 'help <command>' for detailed help on a specific command.")

	return nil
}

// showCommandHelp shows detailed help for a specific command.
func (d *Debugger) showCommandHelp(cmd string) error {
	helpText := map[string]string{
		"break": "break <address|label> [if <condition>]\n  Set a breakpoint at the specified address or label.\n  Optional condition will be evaluated each time.",
		"step":  "step\n  Execute a single instruction.",
		"next":  "next\n  Step over a JAL call (execute until control returns past it).",
		"print": "print <expression>\n  Evaluate and print an expression.\n  Expressions can include registers (a, b, c, w0..w15, ipt), memory, symbols, and arithmetic.",
		"x":     "x[/nfu] <address>\n  Examine memory.\n  n: count, f: format (x/d/u/o/t), u: unit (b/w)",
		"info":  "info <registers|breakpoints|watchpoints|stack|interrupts>\n  Display information about program state.",
	}

	if help, exists := helpText[cmd]; exists {
		d.Println(help)
		return nil
	}

	return fmt.Errorf("no help available for command: %s", cmd)
}
