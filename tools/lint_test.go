package tools

import (
	"strings"
	"testing"

	"github.com/r824vm/r824/arch"
)

func TestLint_UndefinedLabel(t *testing.T) {
	source := "nop\nj missing_label\n"

	linter := NewLinter()
	issues, err := linter.Lint(arch.Default(), source)
	if err != nil {
		t.Fatalf("Lint error: %v", err)
	}

	foundError := false
	for _, issue := range issues {
		if issue.Code == "UNDEF_LABEL" && strings.Contains(issue.Message, "missing_label") && issue.Level == LintError {
			foundError = true
		}
	}

	if !foundError {
		t.Errorf("Expected undefined label error, got: %v", issues)
	}
}

func TestLint_UnusedLabel(t *testing.T) {
	source := "orphan: nop\nhlt\n"

	linter := NewLinter()
	issues, err := linter.Lint(arch.Default(), source)
	if err != nil {
		t.Fatalf("Lint error: %v", err)
	}

	found := false
	for _, issue := range issues {
		if issue.Code == "UNUSED_LABEL" && strings.Contains(issue.Message, "orphan") {
			found = true
			if issue.Level != LintInfo {
				t.Errorf("Expected info level, got %v", issue.Level)
			}
			if issue.Line != 1 {
				t.Errorf("Expected line 1, got %d", issue.Line)
			}
		}
	}

	if !found {
		t.Errorf("Expected unused label finding, got: %v", issues)
	}
}

func TestLint_UnknownDirective(t *testing.T) {
	source := ".bogus 1 2 3\n"

	linter := NewLinter()
	issues, err := linter.Lint(arch.Default(), source)
	if err != nil {
		t.Fatalf("Lint error: %v", err)
	}

	found := false
	for _, issue := range issues {
		if issue.Code == "UNKNOWN_DIRECTIVE" && issue.Level == LintWarning {
			found = true
		}
	}

	if !found {
		t.Errorf("Expected unknown directive warning, got: %v", issues)
	}
}

func TestLint_UnknownInstruction(t *testing.T) {
	source := "frobnicate a, b\n"

	linter := NewLinter()
	issues, err := linter.Lint(arch.Default(), source)
	if err != nil {
		t.Fatalf("Lint error: %v", err)
	}

	found := false
	for _, issue := range issues {
		if issue.Level == LintError && issue.Code == "UNKNOWN_INSTRUCTION" {
			found = true
		}
	}

	if !found {
		t.Errorf("Expected unknown instruction error, got: %v", issues)
	}
}

func TestLint_DuplicateLabel(t *testing.T) {
	source := "here: nop\nhere: nop\nj here\n"

	linter := NewLinter()
	issues, err := linter.Lint(arch.Default(), source)
	if err != nil {
		t.Fatalf("Lint error: %v", err)
	}

	found := false
	for _, issue := range issues {
		if issue.Code == "DUP_LABEL" && issue.Line == 2 {
			found = true
		}
	}

	if !found {
		t.Errorf("Expected duplicate label error on line 2, got: %v", issues)
	}
}

func TestLint_TrailingWhitespace(t *testing.T) {
	source := "nop   \nhlt\n"

	linter := NewLinter()
	issues, err := linter.Lint(arch.Default(), source)
	if err != nil {
		t.Fatalf("Lint error: %v", err)
	}

	found := false
	for _, issue := range issues {
		if issue.Code == "TRAILING_WS" && issue.Line == 1 {
			found = true
		}
	}

	if !found {
		t.Errorf("Expected trailing whitespace finding, got: %v", issues)
	}
}

func TestLint_CleanProgram(t *testing.T) {
	source := "start: ldl #0x05\nldl #0x07\nadd\nj start\n"

	linter := NewLinter()
	issues, err := linter.Lint(arch.Default(), source)
	if err != nil {
		t.Fatalf("Lint error: %v", err)
	}

	errors, warnings, _ := CountByLevel(issues)
	if errors != 0 || warnings != 0 {
		t.Errorf("Expected a clean program, got: %v", issues)
	}
}

func TestLint_IssuesSortedByLine(t *testing.T) {
	source := "nop  \n.bogus\nj nowhere\n"

	linter := NewLinter()
	issues, err := linter.Lint(arch.Default(), source)
	if err != nil {
		t.Fatalf("Lint error: %v", err)
	}

	for i := 1; i < len(issues); i++ {
		if issues[i].Line < issues[i-1].Line {
			t.Errorf("Issues not sorted by line: %v", issues)
		}
	}
}
