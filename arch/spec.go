// Package arch models the architecture description the assembler compiles
// rules from: variable descriptors, bit-emission components, and rules, per
// spec §3/§4.1.
package arch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VarDesc describes one named variable an instruction format can reference.
// A non-empty Toks marks the variable as an enumeration, whose value is the
// zero-based index of a matched token.
type VarDesc struct {
	Bits   int      `json:"bits"`
	Toks   []string `json:"toks,omitempty"`
	Endian string   `json:"endian,omitempty"` // "big" or "little"; default "big"
	IPRel  bool     `json:"iprel,omitempty"`
	IPOfs  int      `json:"ipofs,omitempty"`
	IPMul  int      `json:"ipmul,omitempty"` // defaults to 1 when zero
}

// IsEnum reports whether this variable's captured text is a token name
// rather than a numeric literal.
func (v VarDesc) IsEnum() bool {
	return len(v.Toks) > 0
}

// Multiplier returns IPMul, defaulting to 1 per spec §4.5.
func (v VarDesc) Multiplier() int {
	if v.IPMul == 0 {
		return 1
	}
	return v.IPMul
}

// ComponentKind tags a bit-emission component's shape, per the Design Notes
// in spec §9: literal string vs. full-variable-index vs. slice are modeled
// as a tagged variant rather than a dynamically typed list.
type ComponentKind int

const (
	// KindLiteral is a fixed binary string such as "0110".
	KindLiteral ComponentKind = iota
	// KindVariable references the whole of a named variable's bits.
	KindVariable
	// KindSlice references a sub-range [b, b+n) of a named variable's bits.
	KindSlice
)

// Component is one element of a rule's bit-emission list.
type Component struct {
	Kind     ComponentKind
	Literal  string // valid when Kind == KindLiteral
	VarIndex int    // valid when Kind == KindVariable or KindSlice
	Offset   int    // b, valid when Kind == KindSlice
	Width    int    // n, valid when Kind == KindSlice
}

// Len returns the bit width this component contributes to a rule's total
// length: the string length for a literal, the variable's full width for a
// whole-variable reference, or n for a slice.
func (c Component) Len(vars []VarDesc) int {
	switch c.Kind {
	case KindLiteral:
		return len(c.Literal)
	case KindSlice:
		return c.Width
	default:
		return vars[c.VarIndex].Bits
	}
}

// Rule is one instruction format: a format string whose first token is the
// mnemonic prefix, and an ordered bit-emission list.
type Rule struct {
	Fmt  string
	Bits []Component
}

// Spec is an immutable-after-load architecture description: a name, a word
// width in bits, an ordered variable table, and an ordered rule list. Rule
// order defines first-match priority at assembly time, per spec §3.
type Spec struct {
	Name  string
	Width int
	Vars  []VarDesc
	// VarIndex maps a variable name to its position in Vars, the index a
	// rule's bit component refers to.
	VarIndex map[string]int
	Rules    []Rule
}

// VarByName looks up a variable descriptor and its index by name.
func (s *Spec) VarByName(name string) (int, VarDesc, bool) {
	idx, ok := s.VarIndex[name]
	if !ok {
		return 0, VarDesc{}, false
	}
	return idx, s.Vars[idx], true
}

// --- JSON wire format ---
//
// The architecture description is loaded from a JSON document at boot, per
// spec §6: {name, width, vars: {name -> {bits,toks,endian,iprel,ipofs,
// ipmul}}, rules: [{fmt, bits: [...]}]}. A rule's bits array references
// variables by index into the *declaration order* of the vars object; since
// encoding/json decodes objects into Go maps with no order, the vars object
// is decoded with a token-level walk that preserves key order instead of
// going through map[string]VarDesc.

type wireRule struct {
	Fmt  string            `json:"fmt"`
	Bits []json.RawMessage `json:"bits"`
}

type wireDoc struct {
	Name  string          `json:"name"`
	Width int             `json:"width"`
	Vars  json.RawMessage `json:"vars"`
	Rules []wireRule      `json:"rules"`
}

// LoadJSON parses an architecture description document, per spec §6.
func LoadJSON(data []byte) (*Spec, error) {
	var doc wireDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("architecture document: %w", err)
	}

	width := doc.Width
	if width == 0 {
		width = 8
	}

	names, descs, err := decodeOrderedVars(doc.Vars)
	if err != nil {
		return nil, err
	}

	spec := &Spec{
		Name:     doc.Name,
		Width:    width,
		Vars:     descs,
		VarIndex: make(map[string]int, len(names)),
	}
	for i, name := range names {
		spec.VarIndex[name] = i
	}

	for _, wr := range doc.Rules {
		rule := Rule{Fmt: wr.Fmt}
		for _, raw := range wr.Bits {
			comp, err := decodeComponent(raw, spec)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", wr.Fmt, err)
			}
			rule.Bits = append(rule.Bits, comp)
		}
		spec.Rules = append(spec.Rules, rule)
	}

	return spec, nil
}

// decodeOrderedVars walks the vars object as a raw token stream so the
// declaration order becomes the variable index order the rules reference.
func decodeOrderedVars(raw json.RawMessage) ([]string, []VarDesc, error) {
	if len(raw) == 0 {
		return nil, nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("vars must be a JSON object")
	}

	var names []string
	var descs []VarDesc
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		name, _ := keyTok.(string)
		var desc VarDesc
		if err := dec.Decode(&desc); err != nil {
			return nil, nil, fmt.Errorf("var %q: %w", name, err)
		}
		names = append(names, name)
		descs = append(descs, desc)
	}
	return names, descs, nil
}

func decodeComponent(raw json.RawMessage, spec *Spec) (Component, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return Component{Kind: KindLiteral, Literal: asString}, nil
	}

	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		if asInt < 0 || asInt >= len(spec.Vars) {
			return Component{}, fmt.Errorf("variable index %d out of range", asInt)
		}
		return Component{Kind: KindVariable, VarIndex: asInt}, nil
	}

	var triple [3]int
	if err := json.Unmarshal(raw, &triple); err == nil {
		if triple[0] < 0 || triple[0] >= len(spec.Vars) {
			return Component{}, fmt.Errorf("variable index %d out of range", triple[0])
		}
		return Component{Kind: KindSlice, VarIndex: triple[0], Offset: triple[1], Width: triple[2]}, nil
	}

	return Component{}, fmt.Errorf("unrecognized bits entry: %s", raw)
}
