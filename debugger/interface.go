package debugger

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RunCLI runs the command-line debugger interface.
func RunCLI(dbg *Debugger) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("(r824-dbg) ")

		if !scanner.Scan() {
			break
		}

		cmdLine := strings.TrimSpace(scanner.Text())

		if cmdLine == "quit" || cmdLine == "q" || cmdLine == "exit" {
			fmt.Println("Exiting debugger...")
			break
		}

		if err := dbg.ExecuteCommand(cmdLine); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

		output := dbg.GetOutput()
		if output != "" {
			fmt.Print(output)
		}

		if dbg.Running {
			for dbg.Running {
				if _, err := dbg.VM.Step(); err != nil {
					dbg.Running = false
					fmt.Printf("Runtime error: %v\n", err)
					break
				}

				if dbg.VM.CPU.Halted {
					dbg.Running = false
					fmt.Printf("Program halted, exit code %d\n", dbg.VM.ExitCode)
					break
				}

				if shouldBreak, reason := dbg.ShouldBreak(); shouldBreak {
					dbg.Running = false
					fmt.Printf("Stopped: %s at ipt=0x%06X\n", reason, dbg.VM.CPU.IPtr)
					break
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("input error: %w", err)
	}

	return nil
}

// RunTUI runs the full-screen TUI debugger.
func RunTUI(dbg *Debugger) error {
	tui := NewTUI(dbg)
	return tui.Run()
}
