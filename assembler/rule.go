package assembler

import (
	"fmt"
	"regexp"

	"github.com/r824vm/r824/arch"
)

// CompiledRule is an architecture rule with its format string compiled into
// a deterministic, case-insensitive regex, per spec §4.1.
type CompiledRule struct {
	Rule arch.Rule
	// Regex matches a lower-cased instruction line against this rule.
	Regex *regexp.Regexp
	// CaptureVars maps the k-th regex capture group to a variable index;
	// the k-th capture corresponds to the k-th ~name token encountered
	// while walking the format string left to right.
	CaptureVars []int
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// numericPattern accepts the literal forms spec §6 allows: a $-prefixed hex
// literal, a 0x-prefixed hex literal, a decimal integer, or an identifier
// (a symbol reference resolved through the symbol table, possibly via a
// fixup).
const numericPattern = `(\$[0-9a-fA-F]+|0[xX][0-9a-fA-F]+|-?[0-9]+|[A-Za-z_][A-Za-z0-9_]*)`

// compilePattern walks a rule's format string, escaping literal punctuation,
// collapsing whitespace runs into `\s+`, and replacing each ~name
// placeholder with an enumeration group or a numeric/symbolic group,
// per spec §4.1.
func compilePattern(fmtStr string, spec *arch.Spec) (string, []int, error) {
	var out []byte
	var captureVars []int
	n := len(fmtStr)
	i := 0
	for i < n {
		c := fmtStr[i]
		switch {
		case c == ' ' || c == '\t':
			for i < n && (fmtStr[i] == ' ' || fmtStr[i] == '\t') {
				i++
			}
			out = append(out, `\s+`...)
		case c == '~':
			j := i + 1
			for j < n && isIdentChar(fmtStr[j]) {
				j++
			}
			name := fmtStr[i+1 : j]
			idx, desc, ok := spec.VarByName(name)
			if !ok {
				return "", nil, fmt.Errorf("unresolved variable reference ~%s", name)
			}
			if desc.IsEnum() {
				out = append(out, `(\w+)`...)
			} else {
				out = append(out, numericPattern...)
			}
			captureVars = append(captureVars, idx)
			i = j
		default:
			j := i
			for j < n && fmtStr[j] != ' ' && fmtStr[j] != '\t' && fmtStr[j] != '~' {
				j++
			}
			out = append(out, regexp.QuoteMeta(fmtStr[i:j])...)
			i = j
		}
	}
	return string(out), captureVars, nil
}

// CompileRules compiles every rule in spec, in order, rejecting any rule
// with an unresolved variable reference.
func CompileRules(spec *arch.Spec) ([]*CompiledRule, error) {
	compiled := make([]*CompiledRule, 0, len(spec.Rules))
	for _, rule := range spec.Rules {
		pattern, vars, err := compilePattern(rule.Fmt, spec)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Fmt, err)
		}
		re, err := regexp.Compile("(?i)^" + pattern + "$")
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Fmt, err)
		}
		compiled = append(compiled, &CompiledRule{Rule: rule, Regex: re, CaptureVars: vars})
	}
	return compiled, nil
}
