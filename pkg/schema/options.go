package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Members of the options messages that the rest of the model reads.
var (
	FieldDeprecated      = NewProtoMember(FieldOptions, "deprecated")
	FieldPacked          = NewProtoMember(FieldOptions, "packed")
	MessageDeprecated    = NewProtoMember(MessageOptions, "deprecated")
	EnumDeprecated       = NewProtoMember(EnumOptions, "deprecated")
	EnumAllowAlias       = NewProtoMember(EnumOptions, "allow_alias")
	EnumValueDeprecated  = NewProtoMember(EnumValueOptions, "deprecated")
	ServiceDeprecated    = NewProtoMember(ServiceOptions, "deprecated")
	MethodDeprecated     = NewProtoMember(MethodOptions, "deprecated")
	FieldSince           = NewProtoMember(FieldOptions, "protoprune.since")
	FieldUntil           = NewProtoMember(FieldOptions, "protoprune.until")
	EnumValueSince       = NewProtoMember(EnumValueOptions, "protoprune.constant_since")
	EnumValueUntil       = NewProtoMember(EnumValueOptions, "protoprune.constant_until")
	redactedOptionMember = regexp.MustCompile(`(^|\.)redacted$`)
)

// Options holds the option elements of one declaration and, once linked, their
// canonical value graph.
//
// The graph maps a ProtoMember to either a string (every scalar, including enum
// constants and booleans), a []any list, or a nested map[ProtoMember]any for message
// values.
type Options struct {
	optionType ProtoType
	elements   []*OptionElement
	entries    map[ProtoMember]any
}

// NewOptions returns unlinked options of type optionType, e.g. FieldOptions.
func NewOptions(optionType ProtoType, elements []*OptionElement) Options {
	return Options{optionType: optionType, elements: elements}
}

// OptionType returns the options message type.
func (o Options) OptionType() ProtoType {
	return o.optionType
}

// Elements returns the option elements as written in source.
func (o Options) Elements() []*OptionElement {
	return o.elements
}

// IsLinked reports whether Link has run.
func (o Options) IsLinked() bool {
	return o.entries != nil
}

// Get returns the value assigned to member, or nil.
func (o Options) Get(member ProtoMember) any {
	return o.entries[member]
}

// Map returns the canonical value graph. Callers must not modify it.
func (o Options) Map() map[ProtoMember]any {
	return o.entries
}

// OptionMatches reports whether a top-level option whose member name matches namePattern
// is set to value.
func (o Options) OptionMatches(namePattern *regexp.Regexp, value string) bool {
	for member, v := range o.entries {
		if namePattern.MatchString(member.Member) && v == value {
			return true
		}
	}
	return false
}

// Fields flattens the value graph into every member it references, in a stable order.
// Members for which skip returns true are omitted along with everything below them.
func (o Options) Fields(skip func(ProtoMember) bool) []ProtoMember {
	var result []ProtoMember
	seen := map[ProtoMember]struct{}{}
	gatherFields(o.entries, skip, seen, &result)
	return result
}

func gatherFields(value any, skip func(ProtoMember) bool, seen map[ProtoMember]struct{}, result *[]ProtoMember) {
	switch v := value.(type) {
	case map[ProtoMember]any:
		for _, member := range sortedMembers(v) {
			if skip != nil && skip(member) {
				continue
			}
			if _, ok := seen[member]; !ok {
				seen[member] = struct{}{}
				*result = append(*result, member)
			}
			gatherFields(v[member], skip, seen, result)
		}
	case []any:
		for _, item := range v {
			gatherFields(item, skip, seen, result)
		}
	}
}

func sortedMembers(m map[ProtoMember]any) []ProtoMember {
	members := make([]ProtoMember, 0, len(m))
	for member := range m {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].String() < members[j].String()
	})
	return members
}

// Link canonicalizes every element against the options message and its extensions.
// Elements that resolve to nothing are dropped silently; conflicting assignments are
// reported to the linker.
func (o Options) Link(l *Linker, location Location) Options {
	entries := map[ProtoMember]any{}
	for _, element := range o.elements {
		canonical := l.canonicalizeOption(o.optionType, element, location)
		if canonical == nil {
			continue
		}
		entries = l.union(entries, canonical, location)
	}
	return Options{optionType: o.optionType, elements: o.elements, entries: entries}
}

func (l *Linker) canonicalizeOption(optionType ProtoType, element *OptionElement, location Location) map[ProtoMember]any {
	options, ok := l.types[optionType].(*MessageType)
	if !ok {
		return nil
	}

	field := options.Field(element.Name)
	var path []string
	if field != nil && !element.Parenthesized {
		path = []string{element.Name}
	} else {
		extensions := l.extensionsByName[optionType]
		name := strings.TrimPrefix(element.Name, ".")
		path = resolveFieldPath(name, extensions)
		for scope := l.packageName; path == nil && scope != ""; scope = parentScope(scope) {
			path = resolveFieldPath(scope+"."+name, extensions)
		}
		if path == nil {
			return nil
		}
		field = extensions[path[0]]
	}

	result := map[ProtoMember]any{}
	last := result
	lastType := optionType
	for _, segment := range path[1:] {
		nested := map[ProtoMember]any{}
		last[field.Member(lastType)] = nested
		last = nested
		lastType = field.Type
		if field = l.dereference(field, segment); field == nil {
			return nil
		}
	}
	last[field.Member(lastType)] = l.canonicalizeValue(field, element.Value, location)
	return result
}

func (l *Linker) canonicalizeValue(context *Field, value any, location Location) any {
	switch v := value.(type) {
	case *OptionElement:
		result := map[ProtoMember]any{}
		field := l.dereference(context, v.Name)
		if field == nil {
			l.addError(location, "unable to resolve option %s on %s", v.Name, context.Type)
		} else {
			result[field.Member(context.Type)] = l.canonicalizeValue(field, v.Value, location)
		}
		return coerceValueForField(context, result)

	case []*OptionElement:
		result := map[ProtoMember]any{}
		for _, entry := range v {
			if strings.Contains(entry.Name, "/") {
				if member, value, ok := l.expandAny(context, entry, location); ok {
					result[member] = value
				}
				continue
			}
			field := l.dereference(context, entry.Name)
			if field == nil {
				l.addError(location, "unable to resolve option %s on %s", entry.Name, context.Type)
				continue
			}
			member := field.Member(context.Type)
			value := l.canonicalizeValue(field, entry.Value, location)
			if existing, ok := result[member]; ok {
				result[member] = l.unionValue(member, existing, value, location)
			} else {
				result[member] = value
			}
		}
		return coerceValueForField(context, result)

	case []any:
		var result []any
		for _, item := range v {
			switch c := l.canonicalizeValue(context, item, location).(type) {
			case []any:
				result = append(result, c...)
			default:
				result = append(result, c)
			}
		}
		return result

	case OptionPrimitive:
		return coerceValueForField(context, v.Value)

	case string:
		return coerceValueForField(context, v)

	default:
		l.addError(location, "unexpected option value %T for %s", value, context.Name)
		return nil
	}
}

// expandAny links an Any written in expanded form, `[prefix/pkg.Type] { ... }`, against
// pkg.Type. The entry is keyed by its type URL on the Any message.
func (l *Linker) expandAny(context *Field, entry *OptionElement, location Location) (ProtoMember, any, bool) {
	typeName := strings.TrimPrefix(entry.Name[strings.LastIndexByte(entry.Name, '/')+1:], ".")
	t := Get(typeName)
	if _, ok := l.types[t].(*MessageType); !ok {
		l.addError(location, "unable to resolve type %s in option value of %s", typeName, context.Type)
		return ProtoMember{}, nil, false
	}
	return NewProtoMember(context.Type, entry.Name), l.canonicalizeValue(&Field{Type: t}, entry.Value, location), true
}

// coerceValueForField wraps single values of repeated fields in a list.
func coerceValueForField(context *Field, value any) any {
	if context.IsRepeated() {
		if list, ok := value.([]any); ok {
			return list
		}
		return []any{value}
	}
	return value
}

func (l *Linker) union(a, b map[ProtoMember]any, location Location) map[ProtoMember]any {
	result := make(map[ProtoMember]any, len(a)+len(b))
	for member, value := range a {
		result[member] = value
	}
	for member, value := range b {
		if existing, ok := result[member]; ok && existing != nil {
			result[member] = l.unionValue(member, existing, value, location)
		} else {
			result[member] = value
		}
	}
	return result
}

func (l *Linker) unionValue(member ProtoMember, a, b any, location Location) any {
	switch av := a.(type) {
	case []any:
		if bv, ok := b.([]any); ok {
			merged := make([]any, 0, len(av)+len(bv))
			return append(append(merged, av...), bv...)
		}
	case map[ProtoMember]any:
		if bv, ok := b.(map[ProtoMember]any); ok {
			return l.union(av, bv, location)
		}
	}
	l.addError(location, "conflicting options: %s", formatConflict(member, a, b))
	return a
}

func formatConflict(member ProtoMember, a, b any) string {
	return fmt.Sprintf("%s = %v, %v", member.SimpleName(), a, b)
}

// resolveFieldPath splits name into a known extension name followed by field names. It
// tries the shortest dotted prefix first: for "a.b.c.d" with extension "a.b" it
// returns [a.b c d].
func resolveFieldPath(name string, extensions map[string]*Field) []string {
	for end := 0; end < len(name); {
		next := strings.IndexByte(name[end+1:], '.')
		if next == -1 {
			end = len(name)
		} else {
			end += 1 + next
		}
		if _, ok := extensions[name[:end]]; ok {
			path := []string{name[:end]}
			if end < len(name) {
				path = append(path, strings.Split(name[end+1:], ".")...)
			}
			return path
		}
	}
	return nil
}

func parentScope(scope string) string {
	if i := strings.LastIndexByte(scope, '.'); i != -1 {
		return scope[:i]
	}
	return ""
}

// Retain drops option values the schema no longer carries. Non-extension members of the
// google.protobuf options messages are always kept.
func (o Options) Retain(s *Schema, keep Retainer) Options {
	if o.entries == nil {
		return o
	}
	retained, _ := retainOptionValue(s, keep, o.entries).(map[ProtoMember]any)
	if retained == nil {
		retained = map[ProtoMember]any{}
	}
	return Options{optionType: o.optionType, elements: o.elements, entries: retained}
}

func retainOptionValue(s *Schema, keep Retainer, value any) any {
	switch v := value.(type) {
	case map[ProtoMember]any:
		result := map[ProtoMember]any{}
		for member, nested := range v {
			if !isCoreOptionMember(s, member) && !keep.ContainsMember(member) {
				continue
			}
			if !optionValueTypeRetained(s, keep, member, nested) {
				continue
			}
			if r := retainOptionValue(s, keep, nested); r != nil {
				result[member] = r
			}
		}
		if len(result) == 0 {
			return nil
		}
		return result
	case []any:
		var result []any
		for _, item := range v {
			if r := retainOptionValue(s, keep, item); r != nil {
				result = append(result, r)
			}
		}
		if len(result) == 0 {
			return nil
		}
		return result
	default:
		return v
	}
}

// optionValueTypeRetained keeps a scalar value only if the type of its field survives.
func optionValueTypeRetained(s *Schema, keep Retainer, member ProtoMember, value any) bool {
	if _, ok := value.(string); !ok {
		return true
	}
	field := s.GetField(member)
	if field == nil {
		return isCoreOptionMember(s, member)
	}
	t := field.Type
	return t.IsScalar() || keep.ContainsType(t)
}

func isCoreOptionMember(s *Schema, member ProtoMember) bool {
	if !IsOptionsType(member.Type) {
		return false
	}
	if field := s.GetField(member); field != nil {
		return !field.IsExtension
	}
	return !strings.Contains(member.Member, ".")
}
