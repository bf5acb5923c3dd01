package schema

// Syntax is the language level of a file.
type Syntax string

const (
	SyntaxProto2   Syntax = "proto2"
	SyntaxProto3   Syntax = "proto3"
	SyntaxEditions Syntax = "editions"
)

// Type is a declared message, enum, or an enclosing type left behind by pruning.
type Type interface {
	ProtoType() ProtoType
	TypeLocation() Location
	TypeDocumentation() string
	TypeOptions() Options
	NestedTypes() []Type
	NestedExtends() []*Extend
	isType()
}

// TagRange is an inclusive range of field numbers.
type TagRange struct {
	Start int
	End   int
}

// MaxTag is the largest field number.
const MaxTag = 536870911

// Contains reports whether tag is in the range.
func (r TagRange) Contains(tag int) bool {
	return tag >= r.Start && tag <= r.End
}

// Reserved lists reserved names and field numbers.
type Reserved struct {
	Location      Location
	Documentation string
	Names         []string
	Ranges        []TagRange
}

// MessageType is a message declaration.
type MessageType struct {
	Type          ProtoType
	Location      Location
	Name          string
	Documentation string
	// DeclaredFields excludes fields of oneofs.
	DeclaredFields []*Field
	// ExtensionFields are the fields extend blocks add to this message; filled by Link.
	ExtensionFields  []*Field
	OneOfs           []*OneOf
	Nested           []Type
	Extends          []*Extend
	Reserveds        []Reserved
	ExtensionsRanges []TagRange
	Options          Options
	Syntax           Syntax
}

func (m *MessageType) ProtoType() ProtoType      { return m.Type }
func (m *MessageType) TypeLocation() Location    { return m.Location }
func (m *MessageType) TypeDocumentation() string { return m.Documentation }
func (m *MessageType) TypeOptions() Options      { return m.Options }
func (m *MessageType) NestedTypes() []Type       { return m.Nested }
func (m *MessageType) NestedExtends() []*Extend  { return m.Extends }
func (*MessageType) isType()                     {}

// Fields returns declared fields followed by extension fields.
func (m *MessageType) Fields() []*Field {
	fields := make([]*Field, 0, len(m.DeclaredFields)+len(m.ExtensionFields))
	fields = append(fields, m.DeclaredFields...)
	return append(fields, m.ExtensionFields...)
}

// FieldsAndOneOfFields returns declared, extension and oneof fields.
func (m *MessageType) FieldsAndOneOfFields() []*Field {
	fields := m.Fields()
	for _, o := range m.OneOfs {
		fields = append(fields, o.Fields...)
	}
	return fields
}

// Field returns the declared or oneof field named name.
func (m *MessageType) Field(name string) *Field {
	for _, f := range m.DeclaredFields {
		if f.Name == name {
			return f
		}
	}
	for _, o := range m.OneOfs {
		for _, f := range o.Fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// ExtensionField returns the extension field with the given qualified name.
func (m *MessageType) ExtensionField(qualifiedName string) *Field {
	for _, f := range m.ExtensionFields {
		if f.QualifiedName() == qualifiedName {
			return f
		}
	}
	return nil
}

// EnumType is an enum declaration.
type EnumType struct {
	Type          ProtoType
	Location      Location
	Name          string
	Documentation string
	Constants     []*EnumConstant
	Reserveds     []Reserved
	Options       Options
	Syntax        Syntax
}

func (e *EnumType) ProtoType() ProtoType      { return e.Type }
func (e *EnumType) TypeLocation() Location    { return e.Location }
func (e *EnumType) TypeDocumentation() string { return e.Documentation }
func (e *EnumType) TypeOptions() Options      { return e.Options }
func (*EnumType) NestedTypes() []Type         { return nil }
func (*EnumType) NestedExtends() []*Extend    { return nil }
func (*EnumType) isType()                     {}

// Constant returns the constant named name.
func (e *EnumType) Constant(name string) *EnumConstant {
	for _, c := range e.Constants {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ConstantForTag returns the first constant with the given number.
func (e *EnumType) ConstantForTag(tag int) *EnumConstant {
	for _, c := range e.Constants {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// AllowAlias reports whether the allow_alias option is set.
func (e *EnumType) AllowAlias() bool {
	return e.Options.Get(EnumAllowAlias) == "true"
}

// EnumConstant is one value of an enum.
type EnumConstant struct {
	Location      Location
	Name          string
	Tag           int
	Documentation string
	Options       Options
}

// Since returns the first version the constant exists in, or "".
func (c *EnumConstant) Since() string {
	s, _ := c.Options.Get(EnumValueSince).(string)
	return s
}

// Until returns the first version the constant no longer exists in, or "".
func (c *EnumConstant) Until() string {
	s, _ := c.Options.Get(EnumValueUntil).(string)
	return s
}

// Deprecated reports whether the constant is marked deprecated.
func (c *EnumConstant) Deprecated() bool {
	return c.Options.Get(EnumValueDeprecated) == "true"
}

// EnclosingType stands in for a message that was pruned but still has retained nested
// declarations. It has no fields and no options.
type EnclosingType struct {
	Type          ProtoType
	Location      Location
	Name          string
	Documentation string
	Nested        []Type
	Extends       []*Extend
}

func (e *EnclosingType) ProtoType() ProtoType      { return e.Type }
func (e *EnclosingType) TypeLocation() Location    { return e.Location }
func (e *EnclosingType) TypeDocumentation() string { return e.Documentation }
func (*EnclosingType) TypeOptions() Options        { return Options{optionType: MessageOptions} }
func (e *EnclosingType) NestedTypes() []Type       { return e.Nested }
func (e *EnclosingType) NestedExtends() []*Extend  { return e.Extends }
func (*EnclosingType) isType()                     {}
