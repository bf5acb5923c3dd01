package schema

// Label is the cardinality of a field.
type Label int

const (
	// LabelNone is a field declared without a label: proto3 implicit presence and map
	// fields.
	LabelNone Label = iota
	LabelOptional
	LabelRequired
	LabelRepeated
	// LabelOneOf is a field declared inside a oneof.
	LabelOneOf
)

func (l Label) String() string {
	switch l {
	case LabelOptional:
		return "optional"
	case LabelRequired:
		return "required"
	case LabelRepeated:
		return "repeated"
	case LabelOneOf:
		return "oneof"
	default:
		return ""
	}
}

// Field is a message field or an extension field.
type Field struct {
	// Namespace is the package or message that declares the field. For extensions it
	// prefixes the qualified name.
	Namespace     string
	Location      Location
	Label         Label
	Name          string
	JSONName      string
	Documentation string
	Tag           int
	Default       string
	// ElementType is the type as written in source.
	ElementType string
	Type        ProtoType
	Options     Options
	IsExtension bool
	Deprecated  bool
	Packed      bool
	Redacted    bool
}

// QualifiedName returns the name used as member: "pkg.name" for extensions, the plain
// name otherwise.
func (f *Field) QualifiedName() string {
	if f.IsExtension && f.Namespace != "" {
		return f.Namespace + "." + f.Name
	}
	return f.Name
}

// Member returns the field's member of declaring.
func (f *Field) Member(declaring ProtoType) ProtoMember {
	return NewProtoMember(declaring, f.QualifiedName())
}

// IsRepeated reports whether the field is repeated. Map fields are not.
func (f *Field) IsRepeated() bool {
	return f.Label == LabelRepeated
}

// IsRequired reports whether the field is required.
func (f *Field) IsRequired() bool {
	return f.Label == LabelRequired
}

// Since returns the first version the field exists in, or "".
func (f *Field) Since() string {
	s, _ := f.Options.Get(FieldSince).(string)
	return s
}

// Until returns the first version the field no longer exists in, or "".
func (f *Field) Until() string {
	s, _ := f.Options.Get(FieldUntil).(string)
	return s
}

func (f *Field) withOptions(options Options) *Field {
	linked := *f
	linked.Options = options
	linked.Deprecated = options.Get(FieldDeprecated) == "true"
	linked.Packed = options.Get(FieldPacked) == "true"
	linked.Redacted = options.OptionMatches(redactedOptionMember, "true")
	return &linked
}

// OneOf is a named group of mutually exclusive fields.
type OneOf struct {
	Name          string
	Documentation string
	Location      Location
	Fields        []*Field
	Options       Options
}
