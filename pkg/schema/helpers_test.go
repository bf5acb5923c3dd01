package schema

func optionalField(name string, tag int, t ProtoType) *Field {
	return &Field{Label: LabelOptional, Name: name, Tag: tag, Type: t, ElementType: t.String()}
}

func repeatedField(name string, tag int, t ProtoType) *Field {
	f := optionalField(name, tag, t)
	f.Label = LabelRepeated
	return f
}

func extensionField(namespace string, f *Field) *Field {
	f.Namespace = namespace
	f.IsExtension = true
	return f
}

func withFieldOptions(f *Field, elements ...*OptionElement) *Field {
	f.Options = NewOptions(FieldOptions, elements)
	return f
}

func message(t ProtoType, fields ...*Field) *MessageType {
	return &MessageType{
		Type:           t,
		Name:           t.SimpleName(),
		DeclaredFields: fields,
		Options:        NewOptions(MessageOptions, nil),
	}
}

func protoFile(path, pkg string, types ...Type) *ProtoFile {
	return &ProtoFile{
		Location:    NewLocation("", path),
		PackageName: pkg,
		Syntax:      SyntaxProto2,
		Types:       types,
		Options:     NewOptions(FileOptions, nil),
	}
}

// descriptorFile declares the subset of google/protobuf/descriptor.proto the tests
// rely on.
func descriptorFile() *ProtoFile {
	options := func(t ProtoType, fields ...*Field) *MessageType {
		m := message(t, fields...)
		m.ExtensionsRanges = []TagRange{{Start: 1000, End: MaxTag}}
		return m
	}
	return protoFile("google/protobuf/descriptor.proto", "google.protobuf",
		options(FileOptions, optionalField("java_package", 1, String)),
		options(MessageOptions, optionalField("deprecated", 3, Bool)),
		options(FieldOptions, optionalField("packed", 2, Bool), optionalField("deprecated", 3, Bool)),
		options(OneOfOptions),
		options(EnumOptions, optionalField("allow_alias", 2, Bool), optionalField("deprecated", 3, Bool)),
		options(EnumValueOptions, optionalField("deprecated", 1, Bool)),
		options(ServiceOptions, optionalField("deprecated", 33, Bool)),
		options(MethodOptions, optionalField("deprecated", 33, Bool)),
	)
}

// optionsFile declares package test with a Meta message and FieldOptions extensions.
func optionsFile() *ProtoFile {
	meta := Get("test.Meta")
	f := protoFile("test/options.proto", "test",
		message(meta,
			optionalField("owner", 1, String),
			repeatedField("labels", 2, String),
			optionalField("child", 3, meta),
		),
	)
	f.Imports = []string{"google/protobuf/descriptor.proto"}
	f.Extends = []*Extend{{
		Name: "google.protobuf.FieldOptions",
		Type: FieldOptions,
		Fields: []*Field{
			extensionField("test", optionalField("since", 1000, String)),
			extensionField("test", repeatedField("tags", 1001, String)),
			extensionField("test", optionalField("meta", 1002, meta)),
			extensionField("test", optionalField("redacted", 1003, Bool)),
		},
	}}
	return f
}
