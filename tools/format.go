package tools

import (
	"strings"
)

// FormatStyle defines formatting options
type FormatStyle int

const (
	FormatDefault  FormatStyle = iota // Standard formatting
	FormatCompact                     // Minimal whitespace
	FormatExpanded                    // Extra whitespace for readability
)

// FormatOptions controls formatter behavior
type FormatOptions struct {
	Style              FormatStyle
	LabelColumn        int  // Column for labels (default: 0)
	InstructionColumn  int  // Column for instructions (default: 8)
	CommentColumn      int  // Column for trailing comments (default: 40)
	AlignComments      bool // Align trailing comments in a column
	PreserveEmptyLines bool // Keep empty lines
}

// DefaultFormatOptions returns default formatter options
func DefaultFormatOptions() *FormatOptions {
	return &FormatOptions{
		Style:              FormatDefault,
		LabelColumn:        0,
		InstructionColumn:  8,
		CommentColumn:      40,
		AlignComments:      true,
		PreserveEmptyLines: true,
	}
}

// CompactFormatOptions returns options for compact formatting
func CompactFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatCompact
	opts.InstructionColumn = 0
	opts.CommentColumn = 0
	opts.AlignComments = false
	return opts
}

// ExpandedFormatOptions returns options for expanded formatting
func ExpandedFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatExpanded
	opts.InstructionColumn = 12
	opts.CommentColumn = 50
	return opts
}

// Formatter normalizes assembly source layout: labels at the left margin,
// statements indented to a fixed column, trailing comments aligned. It is
// purely textual; nothing is assembled, so even source that does not
// assemble cleanly can be formatted.
type Formatter struct {
	options *FormatOptions
}

// NewFormatter creates a new formatter
func NewFormatter(options *FormatOptions) *Formatter {
	if options == nil {
		options = DefaultFormatOptions()
	}
	return &Formatter{options: options}
}

// Format rewrites source according to the formatter's options and returns
// the result. The output always ends with a newline when the input was
// non-empty.
func (f *Formatter) Format(source string) string {
	lines := strings.Split(source, "\n")

	// Drop a trailing empty element produced by a final newline so we do
	// not emit a duplicate blank line at the end.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var out strings.Builder
	for _, raw := range lines {
		formatted := f.formatLine(raw)
		if formatted == "" && !f.options.PreserveEmptyLines {
			continue
		}
		out.WriteString(formatted)
		out.WriteByte('\n')
	}
	return out.String()
}

// formatLine lays out a single source line.
func (f *Formatter) formatLine(raw string) string {
	labels, statement, comment := splitLine(raw)

	if len(labels) == 0 && statement == "" && comment == "" {
		return ""
	}

	var sb strings.Builder

	// Comment-only lines keep their column: a left-margin comment stays at
	// the margin, an indented one moves to the comment column.
	if len(labels) == 0 && statement == "" {
		if startsAtMargin(raw) || !f.options.AlignComments {
			return comment
		}
		pad(&sb, f.options.CommentColumn)
		sb.WriteString(comment)
		return sb.String()
	}

	for i, label := range labels {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(label + ":")
	}

	if statement != "" {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		pad(&sb, f.options.InstructionColumn)
		sb.WriteString(statement)
	}

	if comment != "" {
		if f.options.AlignComments {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pad(&sb, f.options.CommentColumn)
		} else if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(comment)
	}

	return sb.String()
}

// splitLine divides a raw line into its leading labels, the statement text
// with whitespace runs collapsed, and the trailing comment (still carrying
// its leading ';').
func splitLine(raw string) (labels []string, statement, comment string) {
	line := raw
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		comment = strings.TrimSpace(line[idx:])
		line = line[:idx]
	}
	line = strings.TrimSpace(line)

	for {
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			break
		}
		candidate := line[:idx]
		if strings.ContainsAny(candidate, " \t") || !isIdentText(candidate) {
			break
		}
		labels = append(labels, candidate)
		line = strings.TrimSpace(line[idx+1:])
	}

	statement = strings.Join(strings.Fields(line), " ")
	return labels, statement, comment
}

func isIdentText(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return s != ""
}

func startsAtMargin(raw string) bool {
	return len(raw) > 0 && raw[0] != ' ' && raw[0] != '\t'
}

// pad extends sb with spaces up to column; at least zero spaces are added,
// so text past the column simply continues after a single separator the
// caller already wrote.
func pad(sb *strings.Builder, column int) {
	for sb.Len() < column {
		sb.WriteByte(' ')
	}
}
