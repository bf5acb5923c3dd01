package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// OptionKind is the syntactic kind of an option value.
type OptionKind int

const (
	OptionString OptionKind = iota
	OptionBoolean
	OptionNumber
	OptionEnum
	OptionMap
	OptionList
	OptionOption
)

func (k OptionKind) String() string {
	switch k {
	case OptionString:
		return "STRING"
	case OptionBoolean:
		return "BOOLEAN"
	case OptionNumber:
		return "NUMBER"
	case OptionEnum:
		return "ENUM"
	case OptionMap:
		return "MAP"
	case OptionList:
		return "LIST"
	case OptionOption:
		return "OPTION"
	default:
		return fmt.Sprintf("OptionKind(%d)", int(k))
	}
}

// OptionElement is one option assignment as written in source.
//
// Value depends on Kind:
//   - OptionString, OptionBoolean, OptionNumber, OptionEnum: string
//   - OptionMap: []*OptionElement
//   - OptionList: []any holding OptionPrimitive, string, []*OptionElement or []any
//   - OptionOption: *OptionElement for a dotted path like (a).b.c
type OptionElement struct {
	Name          string
	Kind          OptionKind
	Value         any
	Parenthesized bool
}

// OptionPrimitive is a scalar list item that keeps its syntactic kind.
type OptionPrimitive struct {
	Kind  OptionKind
	Value string
}

// NewOption returns an option element; a name written as "(ext)" is unwrapped and
// marked parenthesized.
func NewOption(name string, kind OptionKind, value any) *OptionElement {
	parenthesized := false
	if strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")") {
		name = name[1 : len(name)-1]
		parenthesized = true
	}
	return &OptionElement{Name: name, Kind: kind, Value: value, Parenthesized: parenthesized}
}

// String renders the element in proto source form, e.g. `(foo).bar = "x"`.
func (e *OptionElement) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *OptionElement) write(b *strings.Builder) {
	b.WriteString(e.formattedName())
	if nested, ok := e.Value.(*OptionElement); ok && e.Kind == OptionOption {
		b.WriteByte('.')
		nested.write(b)
		return
	}
	b.WriteString(" = ")
	writeOptionValue(b, e.Kind, e.Value)
}

func (e *OptionElement) formattedName() string {
	if e.Parenthesized {
		return "(" + e.Name + ")"
	}
	return e.Name
}

func writeOptionValue(b *strings.Builder, kind OptionKind, value any) {
	switch v := value.(type) {
	case string:
		if kind == OptionString {
			b.WriteString(strconv.Quote(v))
		} else {
			b.WriteString(v)
		}
	case OptionPrimitive:
		writeOptionValue(b, v.Kind, v.Value)
	case *OptionElement:
		b.WriteString("{ ")
		writeMapEntry(b, v)
		b.WriteString(" }")
	case []*OptionElement:
		b.WriteString("{ ")
		for i, entry := range v {
			if i > 0 {
				b.WriteString(", ")
			}
			writeMapEntry(b, entry)
		}
		b.WriteString(" }")
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteString(", ")
			}
			writeOptionValue(b, listItemKind(kind, item), item)
		}
		b.WriteByte(']')
	default:
		fmt.Fprintf(b, "%v", v)
	}
}

func writeMapEntry(b *strings.Builder, e *OptionElement) {
	name := e.Name
	if e.Parenthesized {
		name = "[" + name + "]"
	}
	b.WriteString(name)
	switch e.Value.(type) {
	case []*OptionElement, *OptionElement:
		b.WriteByte(' ')
	default:
		b.WriteString(": ")
	}
	writeOptionValue(b, e.Kind, e.Value)
}

// listItemKind returns the kind to render a bare list item with.
func listItemKind(_ OptionKind, item any) OptionKind {
	s, ok := item.(string)
	if !ok {
		return OptionMap
	}
	if s == "true" || s == "false" {
		return OptionBoolean
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return OptionNumber
	}
	return OptionString
}
