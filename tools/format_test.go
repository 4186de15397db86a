package tools

import (
	"strings"
	"testing"
)

func TestFormat_BasicInstruction(t *testing.T) {
	source := `ldl   #0x05`

	formatter := NewFormatter(DefaultFormatOptions())
	result := formatter.Format(source)

	// Whitespace runs inside the statement collapse to one space
	if !strings.Contains(result, "ldl #0x05") {
		t.Errorf("Expected collapsed statement, got: %q", result)
	}

	// Statement is indented to the instruction column
	if !strings.HasPrefix(result, strings.Repeat(" ", 8)+"ldl") {
		t.Errorf("Expected statement at column 8, got: %q", result)
	}
}

func TestFormat_WithLabel(t *testing.T) {
	source := `loop:add`

	formatter := NewFormatter(DefaultFormatOptions())
	result := formatter.Format(source)

	if !strings.HasPrefix(result, "loop:") {
		t.Errorf("Expected label at the margin, got: %q", result)
	}
	if !strings.Contains(result, "add") {
		t.Error("Expected statement after the label")
	}
}

func TestFormat_MultipleLabels(t *testing.T) {
	source := `first:second: nop`

	formatter := NewFormatter(DefaultFormatOptions())
	result := formatter.Format(source)

	if !strings.Contains(result, "first: second:") {
		t.Errorf("Expected both labels preserved, got: %q", result)
	}
}

func TestFormat_TrailingComment(t *testing.T) {
	source := `        nop ; wait for the timer`

	formatter := NewFormatter(DefaultFormatOptions())
	result := formatter.Format(source)

	idx := strings.Index(result, ";")
	if idx < 0 {
		t.Fatal("Expected comment preserved")
	}
	if idx < 40 {
		t.Errorf("Expected comment aligned at column 40, found at %d: %q", idx, result)
	}
}

func TestFormat_MarginCommentStaysAtMargin(t *testing.T) {
	source := `; top-of-file banner`

	formatter := NewFormatter(DefaultFormatOptions())
	result := formatter.Format(source)

	if !strings.HasPrefix(result, ";") {
		t.Errorf("Expected margin comment unmoved, got: %q", result)
	}
}

func TestFormat_EmptyLines(t *testing.T) {
	source := "nop\n\nnop\n"

	preserved := NewFormatter(DefaultFormatOptions()).Format(source)
	if strings.Count(preserved, "\n") != 3 {
		t.Errorf("Expected empty line preserved, got: %q", preserved)
	}

	opts := DefaultFormatOptions()
	opts.PreserveEmptyLines = false
	compacted := NewFormatter(opts).Format(source)
	if strings.Count(compacted, "\n") != 2 {
		t.Errorf("Expected empty line dropped, got: %q", compacted)
	}
}

func TestFormat_CompactStyle(t *testing.T) {
	source := `        nop`

	formatter := NewFormatter(CompactFormatOptions())
	result := formatter.Format(source)

	if result != "nop\n" {
		t.Errorf("Expected compact output %q, got: %q", "nop\n", result)
	}
}

func TestFormat_DirectivePassesThrough(t *testing.T) {
	source := `.data $01   $02 $03`

	formatter := NewFormatter(DefaultFormatOptions())
	result := formatter.Format(source)

	if !strings.Contains(result, ".data $01 $02 $03") {
		t.Errorf("Expected directive with collapsed spacing, got: %q", result)
	}
}

func TestFormat_Idempotent(t *testing.T) {
	source := "start:  ldl #0x05   ; push five\n        add\n"

	formatter := NewFormatter(DefaultFormatOptions())
	once := formatter.Format(source)
	twice := formatter.Format(once)

	if once != twice {
		t.Errorf("Formatting is not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}
