// Package tools carries the developer-facing helpers around the assembler:
// a linter, a source formatter, and a symbol cross-referencer. They all
// operate on raw source text plus the state an assembly run leaves behind.
package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/r824vm/r824/arch"
	"github.com/r824vm/r824/assembler"
)

// LintLevel represents the severity of a lint issue
type LintLevel int

const (
	LintError   LintLevel = iota // Syntax errors, undefined references
	LintWarning                  // Best practice violations, potential issues
	LintInfo                     // Suggestions, style recommendations
)

func (l LintLevel) String() string {
	switch l {
	case LintError:
		return "error"
	case LintWarning:
		return "warning"
	case LintInfo:
		return "info"
	default:
		return "unknown"
	}
}

// LintIssue represents a single lint finding
type LintIssue struct {
	Level   LintLevel
	Line    int
	Message string
	Code    string // Issue code like "UNDEF_LABEL", "UNUSED_LABEL"
}

func (i LintIssue) String() string {
	return fmt.Sprintf("line %d: %s: %s [%s]", i.Line, i.Level, i.Message, i.Code)
}

// Linter analyzes assembly source for errors and style issues.
type Linter struct {
	// MaxLineLength flags source lines longer than this; 0 disables the
	// check.
	MaxLineLength int
}

// NewLinter returns a linter with the default checks enabled.
func NewLinter() *Linter {
	return &Linter{MaxLineLength: 120}
}

// Lint assembles source against spec and reports every diagnostic plus the
// style findings the assembler itself does not care about. Issues come back
// sorted by line number, errors before warnings on the same line.
func (l *Linter) Lint(spec *arch.Spec, source string) ([]LintIssue, error) {
	asm, err := assembler.Assemble(spec, source)
	if err != nil {
		return nil, err
	}

	var issues []LintIssue

	for _, e := range asm.Errors.Errors {
		issues = append(issues, LintIssue{
			Level:   LintError,
			Line:    e.Pos.Line,
			Message: e.Message,
			Code:    errorCode(e),
		})
	}
	for _, w := range asm.Errors.Warnings {
		issues = append(issues, LintIssue{
			Level:   LintWarning,
			Line:    w.Pos.Line,
			Message: w.Message,
			Code:    warningCode(w.Message),
		})
	}

	// Labels defined but never referenced: harmless, worth knowing.
	for _, sym := range asm.Symbols.GetUnusedSymbols() {
		issues = append(issues, LintIssue{
			Level:   LintInfo,
			Line:    sym.Pos.Line,
			Message: fmt.Sprintf("label %q is never referenced", sym.Name),
			Code:    "UNUSED_LABEL",
		})
	}

	// Symbols referenced but never defined. The fixup pass already warns
	// about these; the lint finding carries the stronger level because an
	// image with unresolved references will not run as intended.
	for _, sym := range asm.Symbols.GetUndefinedSymbols() {
		line := 0
		if len(sym.References) > 0 {
			line = sym.References[0].Line
		}
		issues = append(issues, LintIssue{
			Level:   LintError,
			Line:    line,
			Message: fmt.Sprintf("symbol %q is referenced but never defined", sym.Name),
			Code:    "UNDEF_LABEL",
		})
	}

	issues = append(issues, l.styleIssues(source)...)

	sort.SliceStable(issues, func(a, b int) bool {
		if issues[a].Line != issues[b].Line {
			return issues[a].Line < issues[b].Line
		}
		return issues[a].Level < issues[b].Level
	})

	return issues, nil
}

// styleIssues scans the raw source for findings the assembler has no reason
// to diagnose.
func (l *Linter) styleIssues(source string) []LintIssue {
	var issues []LintIssue
	for n, line := range strings.Split(source, "\n") {
		lineNum := n + 1

		if l.MaxLineLength > 0 && len(line) > l.MaxLineLength {
			issues = append(issues, LintIssue{
				Level:   LintInfo,
				Line:    lineNum,
				Message: fmt.Sprintf("line is %d characters long", len(line)),
				Code:    "LONG_LINE",
			})
		}

		if trimmed := strings.TrimRight(line, " \t"); trimmed != line {
			issues = append(issues, LintIssue{
				Level:   LintInfo,
				Line:    lineNum,
				Message: "trailing whitespace",
				Code:    "TRAILING_WS",
			})
		}

		if strings.Contains(line, "\t") && strings.Contains(strings.TrimLeft(line, " \t"), "\t") {
			issues = append(issues, LintIssue{
				Level:   LintInfo,
				Line:    lineNum,
				Message: "embedded tab inside a statement",
				Code:    "EMBEDDED_TAB",
			})
		}
	}
	return issues
}

// errorCode maps an assembler diagnostic to a stable lint code.
func errorCode(e *assembler.Error) string {
	switch e.Kind {
	case assembler.ErrSyntax:
		if strings.Contains(e.Message, "could not decode") {
			return "UNKNOWN_INSTRUCTION"
		}
		return "SYNTAX"
	case assembler.ErrSemantics:
		if strings.Contains(e.Message, "duplicate label") {
			return "DUP_LABEL"
		}
		return "SEMANTICS"
	case assembler.ErrConfiguration:
		return "CONFIG"
	default:
		return "RUNTIME"
	}
}

func warningCode(message string) string {
	switch {
	case strings.Contains(message, "unknown directive"):
		return "UNKNOWN_DIRECTIVE"
	case strings.Contains(message, "unresolved symbol"):
		return "UNDEF_LABEL"
	case strings.Contains(message, "overlapping fixup"):
		return "OVERLAP_FIXUP"
	default:
		return "ASM_WARNING"
	}
}

// CountByLevel tallies issues per severity, for summary lines.
func CountByLevel(issues []LintIssue) (errors, warnings, infos int) {
	for _, i := range issues {
		switch i.Level {
		case LintError:
			errors++
		case LintWarning:
			warnings++
		case LintInfo:
			infos++
		}
	}
	return
}
