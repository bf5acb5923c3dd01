package loader

import (
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoprune/pkg/schema"
)

// fileBuilder converts one compiled file to the schema model. Resolved types and source
// positions come from the linked descriptor; option assignments come from the raw parse,
// which mirrors the linked descriptor element for element.
type fileBuilder struct {
	base string
	fd   protoreflect.FileDescriptor
	raw  *descriptorpb.FileDescriptorProto
	err  error
}

func buildFile(base string, fd protoreflect.FileDescriptor, raw *descriptorpb.FileDescriptorProto) (*schema.ProtoFile, error) {
	b := &fileBuilder{base: base, fd: fd, raw: raw}
	f := b.file()
	return f, b.err
}

func (b *fileBuilder) options(optionType schema.ProtoType, raw optionsMessage) schema.Options {
	options, err := newOptions(optionType, raw)
	if err != nil && b.err == nil {
		b.err = err
	}
	return options
}

func (b *fileBuilder) location(d protoreflect.Descriptor) (schema.Location, string) {
	location := schema.NewLocation(b.base, b.fd.Path())
	loc := b.fd.SourceLocations().ByDescriptor(d)
	if loc.Path == nil {
		return location, ""
	}
	return location.At(loc.StartLine+1, loc.StartColumn+1), documentation(loc.LeadingComments)
}

// documentation strips the comment's leading space from every line.
func documentation(comment string) string {
	lines := strings.Split(strings.TrimRight(comment, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (b *fileBuilder) file() *schema.ProtoFile {
	f := &schema.ProtoFile{
		Location:    schema.NewLocation(b.base, b.fd.Path()),
		PackageName: string(b.fd.Package()),
		Syntax:      syntaxOf(b.fd),
		Options:     b.options(schema.FileOptions, b.raw.GetOptions()),
	}
	if f.Syntax == schema.SyntaxEditions {
		f.Edition = strings.TrimPrefix(b.raw.GetEdition().String(), "EDITION_")
	}
	imports := b.fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		imp := imports.Get(i)
		if imp.IsPublic {
			f.PublicImports = append(f.PublicImports, imp.Path())
		} else {
			f.Imports = append(f.Imports, imp.Path())
		}
	}
	f.Types = b.types(b.fd.Messages(), b.fd.Enums(), b.raw.GetMessageType(), b.raw.GetEnumType())
	services := b.fd.Services()
	for i := 0; i < services.Len(); i++ {
		f.Services = append(f.Services, b.service(services.Get(i), b.raw.GetService()[i]))
	}
	f.Extends = b.extends(b.fd.Extensions(), b.raw.GetExtension(), f.PackageName)
	return f
}

func syntaxOf(fd protoreflect.FileDescriptor) schema.Syntax {
	switch fd.Syntax() {
	case protoreflect.Proto3:
		return schema.SyntaxProto3
	case protoreflect.Editions:
		return schema.SyntaxEditions
	default:
		return schema.SyntaxProto2
	}
}

func (b *fileBuilder) types(
	messages protoreflect.MessageDescriptors,
	enums protoreflect.EnumDescriptors,
	rawMessages []*descriptorpb.DescriptorProto,
	rawEnums []*descriptorpb.EnumDescriptorProto,
) []schema.Type {
	var types []schema.Type
	for i := 0; i < messages.Len(); i++ {
		md := messages.Get(i)
		if md.IsMapEntry() {
			continue
		}
		types = append(types, b.message(md, rawMessages[i]))
	}
	for i := 0; i < enums.Len(); i++ {
		types = append(types, b.enum(enums.Get(i), rawEnums[i]))
	}
	return types
}

func (b *fileBuilder) message(md protoreflect.MessageDescriptor, raw *descriptorpb.DescriptorProto) *schema.MessageType {
	location, doc := b.location(md)
	m := &schema.MessageType{
		Type:          schema.Get(string(md.FullName())),
		Location:      location,
		Name:          string(md.Name()),
		Documentation: doc,
		Options:       b.options(schema.MessageOptions, raw.GetOptions()),
		Syntax:        syntaxOf(b.fd),
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if od := fd.ContainingOneof(); od != nil && !od.IsSynthetic() {
			continue
		}
		m.DeclaredFields = append(m.DeclaredFields, b.field(fd, raw.GetField()[i], string(md.FullName()), false))
	}
	oneOfs := md.Oneofs()
	for i := 0; i < oneOfs.Len(); i++ {
		od := oneOfs.Get(i)
		if od.IsSynthetic() {
			continue
		}
		m.OneOfs = append(m.OneOfs, b.oneOf(od, raw))
	}

	m.Nested = b.types(md.Messages(), md.Enums(), raw.GetNestedType(), raw.GetEnumType())
	m.Extends = b.extends(md.Extensions(), raw.GetExtension(), string(md.FullName()))

	if names := md.ReservedNames(); names.Len() > 0 {
		reserved := schema.Reserved{Location: location}
		for i := 0; i < names.Len(); i++ {
			reserved.Names = append(reserved.Names, string(names.Get(i)))
		}
		m.Reserveds = append(m.Reserveds, reserved)
	}
	if ranges := md.ReservedRanges(); ranges.Len() > 0 {
		reserved := schema.Reserved{Location: location}
		for i := 0; i < ranges.Len(); i++ {
			r := ranges.Get(i)
			reserved.Ranges = append(reserved.Ranges, schema.TagRange{Start: int(r[0]), End: int(r[1]) - 1})
		}
		m.Reserveds = append(m.Reserveds, reserved)
	}
	extensionRanges := md.ExtensionRanges()
	for i := 0; i < extensionRanges.Len(); i++ {
		r := extensionRanges.Get(i)
		m.ExtensionsRanges = append(m.ExtensionsRanges, schema.TagRange{Start: int(r[0]), End: int(r[1]) - 1})
	}
	return m
}

func (b *fileBuilder) oneOf(od protoreflect.OneofDescriptor, rawMessage *descriptorpb.DescriptorProto) *schema.OneOf {
	location, doc := b.location(od)
	oneOf := &schema.OneOf{
		Name:          string(od.Name()),
		Documentation: doc,
		Location:      location,
		Options:       b.options(schema.OneOfOptions, rawMessage.GetOneofDecl()[od.Index()].GetOptions()),
	}
	fields := od.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		declaring := string(fd.ContainingMessage().FullName())
		oneOf.Fields = append(oneOf.Fields, b.field(fd, rawMessage.GetField()[fd.Index()], declaring, false))
	}
	return oneOf
}

func (b *fileBuilder) field(fd protoreflect.FieldDescriptor, raw *descriptorpb.FieldDescriptorProto, namespace string, extension bool) *schema.Field {
	location, doc := b.location(fd)
	f := &schema.Field{
		Namespace:     namespace,
		Location:      location,
		Label:         labelOf(fd),
		Name:          string(fd.Name()),
		Documentation: doc,
		Tag:           int(fd.Number()),
		ElementType:   elementType(fd, raw),
		Type:          fieldType(fd),
		Options:       b.options(schema.FieldOptions, raw.GetOptions()),
		IsExtension:   extension,
	}
	if fd.HasJSONName() {
		if name, ok := pseudoOption(raw.GetOptions(), jsonNameOption); ok {
			f.JSONName = name
		}
	}
	if def, ok := pseudoOption(raw.GetOptions(), defaultOption); ok {
		f.Default = def
	}
	return f
}

func labelOf(fd protoreflect.FieldDescriptor) schema.Label {
	switch {
	case fd.IsMap():
		return schema.LabelNone
	case fd.ContainingOneof() != nil && !fd.ContainingOneof().IsSynthetic():
		return schema.LabelOneOf
	case fd.Cardinality() == protoreflect.Repeated:
		return schema.LabelRepeated
	case fd.Cardinality() == protoreflect.Required:
		return schema.LabelRequired
	case fd.ParentFile().Syntax() == protoreflect.Proto3 && !fd.HasOptionalKeyword():
		return schema.LabelNone
	case fd.ParentFile().Syntax() == protoreflect.Editions && !fd.HasPresence():
		return schema.LabelNone
	default:
		return schema.LabelOptional
	}
}

// elementType is the type as written: the scalar name, the source type name, or
// map<K, V>.
func elementType(fd protoreflect.FieldDescriptor, raw *descriptorpb.FieldDescriptorProto) string {
	if fd.IsMap() {
		return "map<" + elementType(fd.MapKey(), nil) + ", " + elementType(fd.MapValue(), nil) + ">"
	}
	if raw != nil && raw.TypeName != nil {
		return raw.GetTypeName()
	}
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return string(fd.Message().FullName())
	case protoreflect.EnumKind:
		return string(fd.Enum().FullName())
	default:
		return fd.Kind().String()
	}
}

func fieldType(fd protoreflect.FieldDescriptor) schema.ProtoType {
	if fd.IsMap() {
		t, err := schema.NewMapType(fieldType(fd.MapKey()), fieldType(fd.MapValue()))
		if err != nil {
			return schema.ProtoType{}
		}
		return t
	}
	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return schema.Get(string(fd.Message().FullName()))
	case protoreflect.EnumKind:
		return schema.Get(string(fd.Enum().FullName()))
	default:
		return schema.Get(fd.Kind().String())
	}
}

func (b *fileBuilder) enum(ed protoreflect.EnumDescriptor, raw *descriptorpb.EnumDescriptorProto) *schema.EnumType {
	location, doc := b.location(ed)
	e := &schema.EnumType{
		Type:          schema.Get(string(ed.FullName())),
		Location:      location,
		Name:          string(ed.Name()),
		Documentation: doc,
		Options:       b.options(schema.EnumOptions, raw.GetOptions()),
		Syntax:        syntaxOf(b.fd),
	}
	values := ed.Values()
	for i := 0; i < values.Len(); i++ {
		vd := values.Get(i)
		valueLocation, valueDoc := b.location(vd)
		e.Constants = append(e.Constants, &schema.EnumConstant{
			Location:      valueLocation,
			Name:          string(vd.Name()),
			Tag:           int(vd.Number()),
			Documentation: valueDoc,
			Options:       b.options(schema.EnumValueOptions, raw.GetValue()[i].GetOptions()),
		})
	}
	if names := ed.ReservedNames(); names.Len() > 0 {
		reserved := schema.Reserved{Location: location}
		for i := 0; i < names.Len(); i++ {
			reserved.Names = append(reserved.Names, string(names.Get(i)))
		}
		e.Reserveds = append(e.Reserveds, reserved)
	}
	if ranges := ed.ReservedRanges(); ranges.Len() > 0 {
		reserved := schema.Reserved{Location: location}
		for i := 0; i < ranges.Len(); i++ {
			r := ranges.Get(i)
			reserved.Ranges = append(reserved.Ranges, schema.TagRange{Start: int(r[0]), End: int(r[1])})
		}
		e.Reserveds = append(e.Reserveds, reserved)
	}
	return e
}

func (b *fileBuilder) service(sd protoreflect.ServiceDescriptor, raw *descriptorpb.ServiceDescriptorProto) *schema.Service {
	location, doc := b.location(sd)
	svc := &schema.Service{
		Type:          schema.Get(string(sd.FullName())),
		Location:      location,
		Name:          string(sd.Name()),
		Documentation: doc,
		Options:       b.options(schema.ServiceOptions, raw.GetOptions()),
	}
	methods := sd.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		rawMethod := raw.GetMethod()[i]
		rpcLocation, rpcDoc := b.location(md)
		svc.Rpcs = append(svc.Rpcs, &schema.Rpc{
			Location:          rpcLocation,
			Name:              string(md.Name()),
			Documentation:     rpcDoc,
			RequestTypeName:   rawMethod.GetInputType(),
			ResponseTypeName:  rawMethod.GetOutputType(),
			RequestType:       schema.Get(string(md.Input().FullName())),
			ResponseType:      schema.Get(string(md.Output().FullName())),
			RequestStreaming:  md.IsStreamingClient(),
			ResponseStreaming: md.IsStreamingServer(),
			Options:           b.options(schema.MethodOptions, rawMethod.GetOptions()),
		})
	}
	return svc
}

// extends groups consecutive extension fields with the same target into one block.
func (b *fileBuilder) extends(extensions protoreflect.ExtensionDescriptors, raw []*descriptorpb.FieldDescriptorProto, namespace string) []*schema.Extend {
	var result []*schema.Extend
	var current *schema.Extend
	for i := 0; i < extensions.Len(); i++ {
		xd := extensions.Get(i)
		target := schema.Get(string(xd.ContainingMessage().FullName()))
		if current == nil || current.Type != target || current.Name != raw[i].GetExtendee() {
			location, _ := b.location(xd)
			current = &schema.Extend{
				Location: location,
				Name:     raw[i].GetExtendee(),
				Type:     target,
			}
			result = append(result, current)
		}
		current.Fields = append(current.Fields, b.field(xd, raw[i], namespace, true))
	}
	return result
}
