package schema

import (
	"fmt"
	"strings"
)

// LinkError is one problem found while linking.
type LinkError struct {
	Location Location
	Message  string
}

func (e *LinkError) Error() string {
	if e.Location.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}

// LinkErrors is returned by Link when any error was found. Linking does not stop at
// the first error.
type LinkErrors struct {
	Errors []*LinkError
}

func (e *LinkErrors) Error() string {
	lines := make([]string, 0, len(e.Errors)+1)
	lines = append(lines, fmt.Sprintf("link failed with %d error(s)", len(e.Errors)))
	for _, err := range e.Errors {
		lines = append(lines, "  "+err.Error())
	}
	return strings.Join(lines, "\n")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *LinkErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}

// Linker resolves option references against the unlinked declarations of every file.
type Linker struct {
	types            map[ProtoType]Type
	extensionsByName map[ProtoType]map[string]*Field
	packageName      string
	errs             *[]*LinkError
}

// Link canonicalizes options, derives field flags and merges extension fields into
// their target messages. Types referenced by fields, rpcs and extends must already be
// resolved.
func Link(files []*ProtoFile) (*Schema, error) {
	l := newLinker(files)
	linked := make([]*ProtoFile, 0, len(files))
	for _, f := range files {
		linked = append(linked, l.forPackage(f.PackageName).linkFile(f))
	}
	linked = mergeExtensions(linked)
	if len(*l.errs) > 0 {
		return nil, &LinkErrors{Errors: *l.errs}
	}
	return NewSchema(linked), nil
}

func newLinker(files []*ProtoFile) *Linker {
	l := &Linker{
		types:            map[ProtoType]Type{},
		extensionsByName: map[ProtoType]map[string]*Field{},
		errs:             &[]*LinkError{},
	}
	paths := map[string]struct{}{}
	declaredIn := map[ProtoType]string{}
	for _, f := range files {
		if _, ok := paths[f.Path()]; ok {
			l.addError(f.Location, "duplicate file %s", f.Path())
			continue
		}
		paths[f.Path()] = struct{}{}
		for _, t := range f.TypesAndNestedTypes() {
			if previous, ok := declaredIn[t.ProtoType()]; ok {
				l.addError(t.TypeLocation(), "type %s is already declared in %s", t.ProtoType(), previous)
				continue
			}
			declaredIn[t.ProtoType()] = f.Path()
			l.types[t.ProtoType()] = t
		}
		for _, e := range f.AllExtends() {
			byName := l.extensionsByName[e.Type]
			if byName == nil {
				byName = map[string]*Field{}
				l.extensionsByName[e.Type] = byName
			}
			for _, field := range e.Fields {
				if _, ok := byName[field.QualifiedName()]; ok {
					l.addError(field.Location, "extension %s of %s is already declared", field.QualifiedName(), e.Type)
					continue
				}
				byName[field.QualifiedName()] = field
			}
		}
	}
	return l
}

func (l *Linker) forPackage(packageName string) *Linker {
	scoped := *l
	scoped.packageName = packageName
	return &scoped
}

func (l *Linker) addError(location Location, format string, args ...any) {
	*l.errs = append(*l.errs, &LinkError{Location: location, Message: fmt.Sprintf(format, args...)})
}

// dereference returns the field name of context's message type. Names may be
// bracketed or parenthesized extension names, resolved relative to the current package.
func (l *Linker) dereference(context *Field, name string) *Field {
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") ||
		strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")") {
		name = name[1 : len(name)-1]
	}
	msg, ok := l.types[context.Type].(*MessageType)
	if !ok {
		return nil
	}
	if f := msg.Field(name); f != nil {
		return f
	}
	extensions := l.extensionsByName[context.Type]
	name = strings.TrimPrefix(name, ".")
	if f, ok := extensions[name]; ok {
		return f
	}
	for scope := l.packageName; scope != ""; scope = parentScope(scope) {
		if f, ok := extensions[scope+"."+name]; ok {
			return f
		}
	}
	return nil
}

func (l *Linker) linkFile(f *ProtoFile) *ProtoFile {
	linked := *f
	linked.Options = f.Options.Link(l, f.Location)
	linked.Types = l.linkTypes(f.Types)
	linked.Services = make([]*Service, 0, len(f.Services))
	for _, svc := range f.Services {
		linked.Services = append(linked.Services, l.linkService(svc))
	}
	linked.Extends = l.linkExtends(f.Extends)
	return &linked
}

func (l *Linker) linkTypes(types []Type) []Type {
	linked := make([]Type, 0, len(types))
	for _, t := range types {
		switch t := t.(type) {
		case *MessageType:
			linked = append(linked, l.linkMessage(t))
		case *EnumType:
			linked = append(linked, l.linkEnum(t))
		case *EnclosingType:
			enclosing := *t
			enclosing.Nested = l.linkTypes(t.Nested)
			enclosing.Extends = l.linkExtends(t.Extends)
			linked = append(linked, &enclosing)
		}
	}
	return linked
}

func (l *Linker) linkMessage(m *MessageType) *MessageType {
	linked := *m
	linked.Options = m.Options.Link(l, m.Location)
	linked.DeclaredFields = l.linkFields(m.DeclaredFields)
	linked.ExtensionFields = nil
	linked.OneOfs = make([]*OneOf, 0, len(m.OneOfs))
	for _, o := range m.OneOfs {
		oneOf := *o
		oneOf.Options = o.Options.Link(l, o.Location)
		oneOf.Fields = l.linkFields(o.Fields)
		linked.OneOfs = append(linked.OneOfs, &oneOf)
	}
	linked.Nested = l.linkTypes(m.Nested)
	linked.Extends = l.linkExtends(m.Extends)
	l.validateTags(&linked)
	return &linked
}

func (l *Linker) validateTags(m *MessageType) {
	tags := map[int]string{}
	names := map[string]struct{}{}
	for _, f := range m.FieldsAndOneOfFields() {
		if f.IsExtension {
			continue
		}
		if previous, ok := tags[f.Tag]; ok {
			l.addError(f.Location, "multiple fields share tag %d in %s: %s and %s", f.Tag, m.Type, previous, f.Name)
		}
		tags[f.Tag] = f.Name
		if _, ok := names[f.Name]; ok {
			l.addError(f.Location, "multiple fields named %s in %s", f.Name, m.Type)
		}
		names[f.Name] = struct{}{}
	}
}

func (l *Linker) linkFields(fields []*Field) []*Field {
	linked := make([]*Field, 0, len(fields))
	for _, f := range fields {
		l.validateFieldType(f)
		linked = append(linked, f.withOptions(f.Options.Link(l, f.Location)))
	}
	return linked
}

func (l *Linker) validateFieldType(f *Field) {
	switch t := f.Type; {
	case t.IsZero():
		l.addError(f.Location, "unable to resolve %s for field %s", f.ElementType, f.Name)
	case t.IsMap():
		if _, err := NewMapType(t.KeyType(), t.ValueType()); err != nil {
			l.addError(f.Location, "field %s: %v", f.Name, err)
		}
		l.validateNamedType(f.Location, t.ValueType(), f.Name)
	case t.IsNamed():
		l.validateNamedType(f.Location, t, f.Name)
	}
}

func (l *Linker) validateNamedType(location Location, t ProtoType, context string) {
	if !t.IsNamed() {
		return
	}
	switch l.types[t].(type) {
	case *MessageType, *EnumType:
	default:
		l.addError(location, "unable to resolve %s for %s", t, context)
	}
}

func (l *Linker) validateMessageType(location Location, t ProtoType, context string) {
	if _, ok := l.types[t].(*MessageType); !ok {
		l.addError(location, "expected a message for %s but was %s", context, t)
	}
}

func (l *Linker) linkEnum(e *EnumType) *EnumType {
	linked := *e
	linked.Options = e.Options.Link(l, e.Location)
	linked.Constants = make([]*EnumConstant, 0, len(e.Constants))
	tags := map[int]string{}
	for _, c := range e.Constants {
		constant := *c
		constant.Options = c.Options.Link(l, c.Location)
		linked.Constants = append(linked.Constants, &constant)
		if previous, ok := tags[c.Tag]; ok && !linked.AllowAlias() {
			l.addError(c.Location, "multiple enum constants share tag %d in %s: %s and %s", c.Tag, e.Type, previous, c.Name)
		}
		tags[c.Tag] = c.Name
	}
	return &linked
}

func (l *Linker) linkService(svc *Service) *Service {
	linked := *svc
	linked.Options = svc.Options.Link(l, svc.Location)
	linked.Rpcs = make([]*Rpc, 0, len(svc.Rpcs))
	for _, r := range svc.Rpcs {
		rpc := *r
		rpc.Options = r.Options.Link(l, r.Location)
		l.validateMessageType(r.Location, r.RequestType, svc.Name+"."+r.Name+" request")
		l.validateMessageType(r.Location, r.ResponseType, svc.Name+"."+r.Name+" response")
		linked.Rpcs = append(linked.Rpcs, &rpc)
	}
	return &linked
}

func (l *Linker) linkExtends(extends []*Extend) []*Extend {
	linked := make([]*Extend, 0, len(extends))
	for _, e := range extends {
		extend := *e
		l.validateMessageType(e.Location, e.Type, "extend "+e.Name)
		extend.Fields = l.linkFields(e.Fields)
		linked = append(linked, &extend)
	}
	return linked
}

// mergeExtensions copies every message targeted by an extend block with its
// ExtensionFields set.
func mergeExtensions(files []*ProtoFile) []*ProtoFile {
	byTarget := map[ProtoType][]*Field{}
	for _, f := range files {
		for _, e := range f.AllExtends() {
			byTarget[e.Type] = append(byTarget[e.Type], e.Fields...)
		}
	}
	merged := make([]*ProtoFile, 0, len(files))
	for _, f := range files {
		file := *f
		file.Types = withExtensionFields(f.Types, byTarget)
		merged = append(merged, &file)
	}
	return merged
}

func withExtensionFields(types []Type, byTarget map[ProtoType][]*Field) []Type {
	result := make([]Type, len(types))
	for i, t := range types {
		switch t := t.(type) {
		case *MessageType:
			m := *t
			m.ExtensionFields = byTarget[t.Type]
			m.Nested = withExtensionFields(t.Nested, byTarget)
			result[i] = &m
		case *EnclosingType:
			e := *t
			e.Nested = withExtensionFields(t.Nested, byTarget)
			result[i] = &e
		default:
			result[i] = t
		}
	}
	return result
}
