package debugger

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/r824vm/r824/vm"
)

// TUI is the full-screen text interface for the debugger, built from
// tview panels over a tcell screen.
type TUI struct {
	Debugger *Debugger
	App      *tview.Application
	Pages    *tview.Pages

	MainLayout *tview.Flex
	LeftPanel  *tview.Flex
	RightPanel *tview.Flex

	SourceView      *tview.TextView
	RegisterView    *tview.TextView
	MemoryView      *tview.TextView
	StackView       *tview.TextView
	DisassemblyView *tview.TextView
	BreakpointsView *tview.TextView
	OutputView      *tview.TextView
	CommandInput    *tview.InputField

	MemoryAddress uint32
	Running       bool
}

// NewTUI creates a text interface driving dbg over the real terminal.
func NewTUI(dbg *Debugger) *TUI {
	t := &TUI{
		Debugger: dbg,
		App:      tview.NewApplication(),
	}

	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()

	return t
}

// NewTUIWithScreen creates a text interface bound to an explicit tcell
// screen, for tests driving a simulation screen instead of a real terminal.
func NewTUIWithScreen(dbg *Debugger, screen tcell.Screen) *TUI {
	t := &TUI{
		Debugger: dbg,
		App:      tview.NewApplication().SetScreen(screen),
	}

	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()

	return t
}

func (t *TUI) initializeViews() {
	t.SourceView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.SourceView.SetBorder(true).SetTitle(" Source ")

	t.RegisterView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	t.MemoryView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.MemoryView.SetBorder(true).SetTitle(" Memory ")

	t.StackView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.StackView.SetBorder(true).SetTitle(" Stack ")

	t.DisassemblyView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.DisassemblyView.SetBorder(true).SetTitle(" Memory @ IPtr ")

	t.BreakpointsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.BreakpointsView.SetBorder(true).SetTitle(" Breakpoints/Watchpoints ")

	t.OutputView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	t.CommandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0)
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)
}

func (t *TUI) buildLayout() {
	t.LeftPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.SourceView, 0, 3, false).
		AddItem(t.DisassemblyView, 0, 2, false)

	rightTop := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.RegisterView, 12, 0, false).
		AddItem(t.MemoryView, 0, 1, false).
		AddItem(t.StackView, 0, 1, false)

	t.RightPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(rightTop, 0, 3, false).
		AddItem(t.BreakpointsView, 8, 0, false)

	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.LeftPanel, 0, 2, false).
		AddItem(t.RightPanel, 0, 1, false)

	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(t.OutputView, 8, 0, false).
		AddItem(t.CommandInput, 3, 0, true)

	t.Pages = tview.NewPages().
		AddPage("main", t.MainLayout, true, true)
}

func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			t.executeCommand("help")
			return nil
		case tcell.KeyF5:
			t.executeCommand("continue")
			return nil
		case tcell.KeyF9:
			t.executeCommand("break")
			return nil
		case tcell.KeyF10:
			t.executeCommand("next")
			return nil
		case tcell.KeyF11:
			t.executeCommand("step")
			return nil
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		}
		return event
	})
}

func (t *TUI) handleCommand(key tcell.Key) {
	if key == tcell.KeyEnter {
		cmd := t.CommandInput.GetText()
		if cmd != "" {
			t.executeCommand(cmd)
			t.CommandInput.SetText("")
		}
	}
}

// executeCommand runs cmd through the debugger and refreshes every panel.
func (t *TUI) executeCommand(cmd string) {
	t.Debugger.Output.Reset()

	err := t.Debugger.ExecuteCommand(cmd)
	output := t.Debugger.GetOutput()

	if err != nil {
		t.WriteOutput(fmt.Sprintf("[red]Error:[white] %v\n", err))
	}
	if output != "" {
		t.WriteOutput(output)
	}

	if t.Debugger.Running {
		for t.Debugger.Running {
			if _, stepErr := t.Debugger.VM.Step(); stepErr != nil {
				t.Debugger.Running = false
				t.WriteOutput(fmt.Sprintf("[red]Runtime error:[white] %v\n", stepErr))
				break
			}
			if t.Debugger.VM.CPU.Halted {
				t.Debugger.Running = false
				t.WriteOutput(fmt.Sprintf("Program halted, exit code %d\n", t.Debugger.VM.ExitCode))
				break
			}
			if shouldBreak, reason := t.Debugger.ShouldBreak(); shouldBreak {
				t.Debugger.Running = false
				t.WriteOutput(fmt.Sprintf("[yellow]Stopped:[white] %s at ipt=0x%06X\n", reason, t.Debugger.VM.CPU.IPtr))
				break
			}
		}
	}

	t.RefreshAll()
}

func (t *TUI) WriteOutput(text string) {
	_, _ = t.OutputView.Write([]byte(text))
	t.OutputView.ScrollToEnd()
}

func (t *TUI) RefreshAll() {
	t.UpdateSourceView()
	t.UpdateRegisterView()
	t.UpdateMemoryView()
	t.UpdateStackView()
	t.UpdateDisassemblyView()
	t.UpdateBreakpointsView()
	t.App.Draw()
}

// UpdateSourceView shows source lines around the current IPtr.
func (t *TUI) UpdateSourceView() {
	t.SourceView.Clear()

	if len(t.Debugger.SourceMap) == 0 {
		t.SourceView.SetText("[yellow]No source map available[white]")
		return
	}

	iptr := t.Debugger.VM.CPU.IPtr

	var startAddr uint32
	if iptr > 10 {
		startAddr = iptr - 10
	}

	var lines []string
	for addr := startAddr; addr < iptr+20; addr++ {
		sourceLine, exists := t.Debugger.SourceMap[addr]
		if !exists {
			continue
		}

		marker := "  "
		color := "white"
		if addr == iptr {
			marker = "->"
			color = "yellow"
		}
		if t.Debugger.Breakpoints.GetBreakpoint(addr) != nil {
			marker = "* "
		}

		lines = append(lines, fmt.Sprintf("[%s]%s 0x%06X: %s[white]", color, marker, addr, sourceLine))
	}

	t.SourceView.SetText(strings.Join(lines, "\n"))
}

// UpdateRegisterView shows the stack cache, workspace, IPtr and interrupt
// control bits.
func (t *TUI) UpdateRegisterView() {
	t.RegisterView.Clear()

	cpu := t.Debugger.VM.CPU
	var lines []string

	lines = append(lines, fmt.Sprintf("a: 0x%06X  b: 0x%06X  c: 0x%06X", uint32(cpu.A)&0xFFFFFF, uint32(cpu.B)&0xFFFFFF, uint32(cpu.C)&0xFFFFFF))

	for row := 0; row < 4; row++ {
		var cols []string
		for col := 0; col < 4; col++ {
			idx := row*4 + col
			cols = append(cols, fmt.Sprintf("w%-2d: 0x%06X", idx, uint32(cpu.W[idx])&0xFFFFFF))
		}
		lines = append(lines, strings.Join(cols, "  "))
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("ipt: 0x%06X", cpu.IPtr))

	mie := "n"
	if cpu.MIE {
		mie = "[green]y[white]"
	}
	lines = append(lines, fmt.Sprintf("MIE: %s  mip: 0x%02X  mie: 0x%02X", mie, cpu.Mip, cpu.Mie))
	lines = append(lines, fmt.Sprintf("cycles: %d  halted: %v", cpu.Cycles, cpu.Halted))

	t.RegisterView.SetText(strings.Join(lines, "\n"))
}

// UpdateMemoryView shows a hex/ASCII dump around the inspected address.
func (t *TUI) UpdateMemoryView() {
	t.MemoryView.Clear()

	addr := t.MemoryAddress
	if addr == 0 {
		addr = t.Debugger.VM.CPU.IPtr
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("[yellow]Address: 0x%06X[white]", addr))

	for row := 0; row < 16; row++ {
		rowAddr := vm.Trunc24(addr + uint32(row*16))

		line := fmt.Sprintf("0x%06X: ", rowAddr)

		var hexBytes []string
		var asciiBytes []byte

		for col := 0; col < 16; col++ {
			byteAddr := vm.Trunc24(rowAddr + uint32(col))
			b, err := t.Debugger.VM.Memory.ReadByte(byteAddr)
			if err != nil {
				hexBytes = append(hexBytes, "??")
				asciiBytes = append(asciiBytes, '.')
				continue
			}
			hexBytes = append(hexBytes, fmt.Sprintf("%02X", b))
			if b >= 32 && b < 127 {
				asciiBytes = append(asciiBytes, b)
			} else {
				asciiBytes = append(asciiBytes, '.')
			}
		}

		line += strings.Join(hexBytes, " ") + "  " + string(asciiBytes)
		lines = append(lines, line)
	}

	t.MemoryView.SetText(strings.Join(lines, "\n"))
}

// UpdateStackView shows 24-bit words near the current stack pointer.
func (t *TUI) UpdateStackView() {
	t.StackView.Clear()

	sp := t.Debugger.VM.CPU.SP()

	var lines []string
	lines = append(lines, fmt.Sprintf("[yellow]SP: 0x%06X[white]", sp))

	addr := sp
	for i := 0; i < 16; i++ {
		word, err := t.Debugger.VM.Memory.Read24(addr)
		if err != nil {
			lines = append(lines, fmt.Sprintf("0x%06X: ??????", addr))
			addr = vm.Trunc24(addr + 3)
			continue
		}

		marker := "  "
		if addr == sp {
			marker = "->"
		}

		line := fmt.Sprintf("%s 0x%06X: 0x%06X", marker, addr, word)
		if sym := t.findSymbolForAddress(word); sym != "" {
			line += fmt.Sprintf(" <%s>", sym)
		}

		lines = append(lines, line)
		addr = vm.Trunc24(addr + 3)
	}

	t.StackView.SetText(strings.Join(lines, "\n"))
}

// UpdateDisassemblyView shows the raw bytes around the current IPtr.
func (t *TUI) UpdateDisassemblyView() {
	t.DisassemblyView.Clear()

	iptr := t.Debugger.VM.CPU.IPtr

	var startAddr uint32
	if iptr > 8 {
		startAddr = iptr - 8
	}

	var lines []string
	for i := 0; i < 16; i++ {
		addr := vm.Trunc24(startAddr + uint32(i))

		b, err := t.Debugger.VM.Memory.ReadByte(addr)
		if err != nil {
			continue
		}

		marker := "  "
		color := "white"
		if addr == iptr {
			marker = "->"
			color = "yellow"
		}
		if t.Debugger.Breakpoints.GetBreakpoint(addr) != nil {
			marker = "* "
		}

		line := fmt.Sprintf("[%s]%s 0x%06X: 0x%02X[white]", color, marker, addr, b)
		if sym := t.findSymbolForAddress(addr); sym != "" {
			line = fmt.Sprintf("[%s]%s 0x%06X: 0x%02X  <%s>[white]", color, marker, addr, b, sym)
		}

		lines = append(lines, line)
	}

	t.DisassemblyView.SetText(strings.Join(lines, "\n"))
}

// UpdateBreakpointsView lists breakpoints and watchpoints.
func (t *TUI) UpdateBreakpointsView() {
	t.BreakpointsView.Clear()

	var lines []string

	bps := t.Debugger.Breakpoints.GetAllBreakpoints()
	if len(bps) > 0 {
		lines = append(lines, "[yellow]Breakpoints:[white]")
		for _, bp := range bps {
			status := "enabled"
			color := "green"
			if !bp.Enabled {
				status = "disabled"
				color = "red"
			}

			line := fmt.Sprintf("  %d: [%s]%s[white] 0x%06X", bp.ID, color, status, bp.Address)
			if sym := t.findSymbolForAddress(bp.Address); sym != "" {
				line += fmt.Sprintf(" <%s>", sym)
			}
			if bp.Condition != "" {
				line += fmt.Sprintf(" if %s", bp.Condition)
			}
			line += fmt.Sprintf(" (hits: %d)", bp.HitCount)

			lines = append(lines, line)
		}
	} else {
		lines = append(lines, "[yellow]No breakpoints set[white]")
	}

	lines = append(lines, "")

	wps := t.Debugger.Watchpoints.GetAllWatchpoints()
	if len(wps) > 0 {
		lines = append(lines, "[yellow]Watchpoints:[white]")
		for _, wp := range wps {
			line := fmt.Sprintf("  %d: watch %s = 0x%06X", wp.ID, wp.Expression, wp.LastValue)
			lines = append(lines, line)
		}
	}

	t.BreakpointsView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI) findSymbolForAddress(addr uint32) string {
	for sym, symAddr := range t.Debugger.Symbols {
		if symAddr == addr {
			return sym
		}
	}
	return ""
}

// Run starts the TUI event loop.
func (t *TUI) Run() error {
	t.RefreshAll()

	t.WriteOutput("[green]R824 Debugger[white]\n")
	t.WriteOutput("Press F1 for help, F5 to continue, F10 to step over, F11 to step\n")
	t.WriteOutput("Type 'help' for command list\n\n")

	return t.App.SetRoot(t.Pages, true).SetFocus(t.CommandInput).Run()
}

// Stop halts the TUI application.
func (t *TUI) Stop() {
	t.App.Stop()
}
