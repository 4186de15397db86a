package assembler

import (
	"fmt"
	"strings"
)

// dispatchDirective handles a line beginning with '.', per spec §4.3.
// Unknown directives emit a non-fatal warning.
func (a *Assembler) dispatchDirective(line string) {
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case ".define":
		a.directiveDefine(args)
	case ".org":
		a.directiveOrg(args)
	case ".len":
		a.directiveLen(args)
	case ".width":
		a.directiveWidth(args)
	case ".arch":
		a.directiveArch(args)
	case ".include", ".module":
		a.directiveInclude(name, args)
	case ".data":
		a.directiveData(args)
	case ".string":
		a.directiveString(line, fields[0])
	case ".align":
		a.directiveAlign(args)
	default:
		a.Errors.AddWarning(a.pos(), fmt.Sprintf("unknown directive %q", name))
	}
}

func (a *Assembler) argError(msg string) {
	a.Errors.AddError(NewError(a.pos(), ErrSyntax, msg))
}

func parseConst(s string) (uint32, bool) {
	n, ok := parseIntLiteral(s)
	if !ok {
		return 0, false
	}
	return uint32(n), true
}

// directiveDefine implements `.define NAME VALUE`: binds NAME (lower-cased)
// to integer VALUE in the symbol table.
func (a *Assembler) directiveDefine(args []string) {
	if len(args) != 2 {
		a.argError(".define requires NAME and VALUE")
		return
	}
	v, ok := parseConst(args[1])
	if !ok {
		a.argError(fmt.Sprintf(".define value %q is not an integer", args[1]))
		return
	}
	a.Symbols.Define(strings.ToLower(args[0]), v, a.pos())
}

// directiveOrg implements `.org N`: sets IP and origin to N.
func (a *Assembler) directiveOrg(args []string) {
	if len(args) != 1 {
		a.argError(".org requires one argument")
		return
	}
	n, ok := parseConst(args[0])
	if !ok {
		a.argError(fmt.Sprintf(".org value %q is not an integer", args[0]))
		return
	}
	a.IP = n
	a.Origin = n
}

// directiveLen implements `.len N`: sets the declared code length in words.
func (a *Assembler) directiveLen(args []string) {
	if len(args) != 1 {
		a.argError(".len requires one argument")
		return
	}
	n, ok := parseConst(args[0])
	if !ok {
		a.argError(fmt.Sprintf(".len value %q is not an integer", args[0]))
		return
	}
	a.CodeLen = n
}

// directiveWidth implements `.width N`: sets the word width in bits.
func (a *Assembler) directiveWidth(args []string) {
	if len(args) != 1 {
		a.argError(".width requires one argument")
		return
	}
	n, ok := parseConst(args[0])
	if !ok {
		a.argError(fmt.Sprintf(".width value %q is not an integer", args[0]))
		return
	}
	a.Width = int(n)
}

// directiveArch handles `.arch S` without swapping the rule table: it only
// records a warning, naming S when a host loader is attached. The active
// architecture changes only when the host calls SwapArch itself.
func (a *Assembler) directiveArch(args []string) {
	if len(args) != 1 {
		a.argError(".arch requires one argument")
		return
	}
	if a.Includes == nil {
		a.Errors.AddWarning(a.pos(), ".arch requires a host-provided loader")
		return
	}
	a.Errors.AddWarning(a.pos(), fmt.Sprintf(".arch %s: architecture swap delegated to host loader", args[0]))
}

// directiveInclude implements `.include`/`.module`: delegates to the
// host-provided loader, per spec §1 (file I/O plumbing is a collaborator).
func (a *Assembler) directiveInclude(directive string, args []string) {
	if len(args) != 1 {
		a.argError(directive + " requires one argument")
		return
	}
	if a.Includes == nil {
		a.Errors.AddError(NewError(a.pos(), ErrConfiguration, directive+" requires a host-provided loader"))
		return
	}
	text, err := a.Includes.Load(strings.Trim(args[0], `"`))
	if err != nil {
		a.Errors.AddError(NewError(a.pos(), ErrConfiguration, err.Error()))
		return
	}
	for _, sub := range strings.Split(text, "\n") {
		a.AssembleLine(sub)
	}
}

// directiveData implements `.data T1 T2 ...`: each token is parsed as a
// constant and appended as a word.
func (a *Assembler) directiveData(args []string) {
	for _, tok := range args {
		v, ok := parseConst(tok)
		if !ok {
			a.argError(fmt.Sprintf(".data token %q is not a constant", tok))
			continue
		}
		a.Words = append(a.Words, v&uint32(mask64(a.Width)))
		a.IP++
	}
}

// directiveString implements `.string ...rest`: each character's code unit
// is appended as a word.
func (a *Assembler) directiveString(line, directiveTok string) {
	rest := strings.TrimPrefix(line, directiveTok)
	rest = strings.TrimLeft(rest, " \t")
	rest = strings.Trim(rest, `"`)
	for _, r := range rest {
		a.Words = append(a.Words, uint32(r)&uint32(mask64(a.Width)))
		a.IP++
	}
}

// directiveAlign implements `.align K`: advances IP to the next multiple
// of K. K must satisfy 1 <= K <= declared code length.
func (a *Assembler) directiveAlign(args []string) {
	if len(args) != 1 {
		a.argError(".align requires one argument")
		return
	}
	k, ok := parseConst(args[0])
	if !ok {
		a.argError(fmt.Sprintf(".align value %q is not an integer", args[0]))
		return
	}
	if k < 1 || k > a.CodeLen {
		a.Errors.AddError(NewError(a.pos(), ErrSemantics, fmt.Sprintf(".align %d is out of range", k)))
		return
	}
	rem := a.IP % k
	if rem != 0 {
		pad := k - rem
		for i := uint32(0); i < pad; i++ {
			a.Words = append(a.Words, 0)
		}
		a.IP += pad
	}
}
