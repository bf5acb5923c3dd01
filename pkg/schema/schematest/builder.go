// Package schematest builds linked schemas in memory for tests.
//
//	s := schematest.New().
//		File("roshambo.proto", "game",
//			schematest.Enum("Roshambo",
//				schematest.Constant("ROCK", 0),
//				schematest.Constant("SCISSORS", 1),
//				schematest.Constant("PAPER", 2),
//			),
//		).
//		MustBuild(t)
//
// Type names resolve like protobuf names: scalars, then the innermost enclosing scope
// outwards. Every schema includes a minimal google/protobuf/descriptor.proto and
// protoprune/extensions.proto, and imports are computed from what each file uses.
package schematest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoprune/pkg/schema"
)

const (
	// DescriptorPath is the path of the built-in descriptor file.
	DescriptorPath = "google/protobuf/descriptor.proto"
	// ExtensionsPath is the path of the built-in version options file.
	ExtensionsPath = "protoprune/extensions.proto"
)

// Builder collects file declarations.
type Builder struct {
	files []fileDecl
}

type fileDecl struct {
	path   string
	pkg    string
	syntax schema.Syntax
	parts  []FilePart
}

// New returns a builder holding the built-in files.
func New() *Builder {
	b := &Builder{}
	b.File(DescriptorPath, "google.protobuf", descriptorParts()...)
	b.File(ExtensionsPath, "protoprune", extensionParts()...)
	return b
}

// File adds a proto2 file.
func (b *Builder) File(path, pkg string, parts ...FilePart) *Builder {
	b.files = append(b.files, fileDecl{path: path, pkg: pkg, syntax: schema.SyntaxProto2, parts: parts})
	return b
}

// Proto3File adds a proto3 file.
func (b *Builder) Proto3File(path, pkg string, parts ...FilePart) *Builder {
	b.files = append(b.files, fileDecl{path: path, pkg: pkg, syntax: schema.SyntaxProto3, parts: parts})
	return b
}

// Files returns the unlinked files.
func (b *Builder) Files() []*schema.ProtoFile {
	ctx := &buildContext{declared: map[string]struct{}{}}
	for _, f := range b.files {
		for _, p := range f.parts {
			ctx.declare(f.pkg, p)
		}
	}
	files := make([]*schema.ProtoFile, 0, len(b.files))
	for _, f := range b.files {
		files = append(files, ctx.file(f, b.otherPaths(f.path)))
	}
	return files
}

func (b *Builder) otherPaths(path string) []string {
	var paths []string
	for _, f := range b.files {
		if f.path != path {
			paths = append(paths, f.path)
		}
	}
	return paths
}

// Build links the files and trims imports to those each file needs.
func (b *Builder) Build() (*schema.Schema, error) {
	s, err := schema.Link(b.Files())
	if err != nil {
		return nil, err
	}
	return s.Retain(keepAll{}), nil
}

// MustBuild is Build failing t on error.
func (b *Builder) MustBuild(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

type keepAll struct{}

func (keepAll) ContainsType(schema.ProtoType) bool     { return true }
func (keepAll) ContainsMember(schema.ProtoMember) bool { return true }

// FilePart is a top-level declaration.
type FilePart interface{ filePart() }

// MessagePart is a declaration inside a message.
type MessagePart interface{ messagePart() }

// EnumPart is a declaration inside an enum.
type EnumPart interface{ enumPart() }

// MessageDecl declares a message.
type MessageDecl struct {
	Name  string
	parts []MessagePart
}

// Message declares a message with fields, oneofs, nested types, extends and options.
func Message(name string, parts ...MessagePart) MessageDecl {
	return MessageDecl{Name: name, parts: parts}
}

func (MessageDecl) filePart()    {}
func (MessageDecl) messagePart() {}

// EnumDecl declares an enum.
type EnumDecl struct {
	Name  string
	parts []EnumPart
}

// Enum declares an enum with constants and options.
func Enum(name string, parts ...EnumPart) EnumDecl {
	return EnumDecl{Name: name, parts: parts}
}

func (EnumDecl) filePart()    {}
func (EnumDecl) messagePart() {}

// ConstantDecl declares an enum constant.
type ConstantDecl struct {
	Name    string
	Tag     int
	options []*schema.OptionElement
}

// Constant declares NAME = tag.
func Constant(name string, tag int) ConstantDecl {
	return ConstantDecl{Name: name, Tag: tag}
}

func (ConstantDecl) enumPart() {}

// Options adds option elements.
func (c ConstantDecl) Options(elements ...*schema.OptionElement) ConstantDecl {
	c.options = append(append([]*schema.OptionElement(nil), c.options...), elements...)
	return c
}

// Since sets (protoprune.constant_since).
func (c ConstantDecl) Since(version string) ConstantDecl {
	return c.Options(schema.NewOption("(protoprune.constant_since)", schema.OptionString, version))
}

// Until sets (protoprune.constant_until).
func (c ConstantDecl) Until(version string) ConstantDecl {
	return c.Options(schema.NewOption("(protoprune.constant_until)", schema.OptionString, version))
}

// FieldDecl declares a field.
type FieldDecl struct {
	Name     string
	Tag      int
	TypeName string
	Label    schema.Label
	options  []*schema.OptionElement
}

// Field declares an optional field.
func Field(name string, tag int, typeName string) FieldDecl {
	return FieldDecl{Name: name, Tag: tag, TypeName: typeName, Label: schema.LabelOptional}
}

// Repeated declares a repeated field.
func Repeated(name string, tag int, typeName string) FieldDecl {
	return FieldDecl{Name: name, Tag: tag, TypeName: typeName, Label: schema.LabelRepeated}
}

// Required declares a required field.
func Required(name string, tag int, typeName string) FieldDecl {
	return FieldDecl{Name: name, Tag: tag, TypeName: typeName, Label: schema.LabelRequired}
}

// Map declares map<key, value> name = tag.
func Map(name string, tag int, key, value string) FieldDecl {
	return FieldDecl{Name: name, Tag: tag, TypeName: fmt.Sprintf("map<%s, %s>", key, value), Label: schema.LabelNone}
}

func (FieldDecl) messagePart() {}

// Options adds option elements.
func (f FieldDecl) Options(elements ...*schema.OptionElement) FieldDecl {
	f.options = append(append([]*schema.OptionElement(nil), f.options...), elements...)
	return f
}

// Since sets (protoprune.since).
func (f FieldDecl) Since(version string) FieldDecl {
	return f.Options(schema.NewOption("(protoprune.since)", schema.OptionString, version))
}

// Until sets (protoprune.until).
func (f FieldDecl) Until(version string) FieldDecl {
	return f.Options(schema.NewOption("(protoprune.until)", schema.OptionString, version))
}

// OneOfDecl declares a oneof.
type OneOfDecl struct {
	Name   string
	fields []FieldDecl
}

// OneOf declares a oneof of fields.
func OneOf(name string, fields ...FieldDecl) OneOfDecl {
	return OneOfDecl{Name: name, fields: fields}
}

func (OneOfDecl) messagePart() {}

// ExtendDecl declares an extend block.
type ExtendDecl struct {
	Target string
	fields []FieldDecl
}

// Extend declares extend target { fields }.
func Extend(target string, fields ...FieldDecl) ExtendDecl {
	return ExtendDecl{Target: target, fields: fields}
}

func (ExtendDecl) filePart()    {}
func (ExtendDecl) messagePart() {}

// ServiceDecl declares a service.
type ServiceDecl struct {
	Name    string
	rpcs    []RpcDecl
	options []*schema.OptionElement
}

// Service declares a service of rpcs.
func Service(name string, rpcs ...RpcDecl) ServiceDecl {
	return ServiceDecl{Name: name, rpcs: rpcs}
}

func (ServiceDecl) filePart() {}

// RpcDecl declares an rpc.
type RpcDecl struct {
	Name     string
	Request  string
	Response string
	options  []*schema.OptionElement
}

// Rpc declares rpc name(request) returns (response).
func Rpc(name, request, response string) RpcDecl {
	return RpcDecl{Name: name, Request: request, Response: response}
}

// Options adds option elements.
func (r RpcDecl) Options(elements ...*schema.OptionElement) RpcDecl {
	r.options = append(append([]*schema.OptionElement(nil), r.options...), elements...)
	return r
}

// OptionDecl is an option of the enclosing file, message or enum.
type OptionDecl struct {
	element *schema.OptionElement
}

// Option declares option name = value.
func Option(name string, kind schema.OptionKind, value any) OptionDecl {
	return OptionDecl{element: schema.NewOption(name, kind, value)}
}

func (OptionDecl) filePart()    {}
func (OptionDecl) messagePart() {}
func (OptionDecl) enumPart()    {}

type buildContext struct {
	declared map[string]struct{}
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func (c *buildContext) declare(scope string, part any) {
	switch d := part.(type) {
	case MessageDecl:
		name := qualify(scope, d.Name)
		c.declared[name] = struct{}{}
		for _, p := range d.parts {
			c.declare(name, p)
		}
	case EnumDecl:
		c.declared[qualify(scope, d.Name)] = struct{}{}
	case ServiceDecl:
		c.declared[qualify(scope, d.Name)] = struct{}{}
	}
}

// resolve finds name from scope outwards.
func (c *buildContext) resolve(name, scope string) schema.ProtoType {
	if t := schema.Get(name); t.IsScalar() {
		return t
	}
	if strings.HasPrefix(name, "map<") && strings.HasSuffix(name, ">") {
		key, value, _ := strings.Cut(name[len("map<"):len(name)-1], ",")
		return schema.Get(fmt.Sprintf("map<%s, %s>",
			c.resolve(strings.TrimSpace(key), scope), c.resolve(strings.TrimSpace(value), scope)))
	}
	if strings.HasPrefix(name, ".") {
		return schema.Get(name)
	}
	for s := scope; ; s = parent(s) {
		if _, ok := c.declared[qualify(s, name)]; ok {
			return schema.Get(qualify(s, name))
		}
		if s == "" {
			break
		}
	}
	return schema.Get(name)
}

func parent(scope string) string {
	if i := strings.LastIndexByte(scope, '.'); i != -1 {
		return scope[:i]
	}
	return ""
}

func (c *buildContext) file(f fileDecl, imports []string) *schema.ProtoFile {
	location := schema.NewLocation("", f.path)
	file := &schema.ProtoFile{
		Location:    location,
		PackageName: f.pkg,
		Syntax:      f.syntax,
		Imports:     imports,
	}
	var options []*schema.OptionElement
	for _, p := range f.parts {
		switch d := p.(type) {
		case MessageDecl:
			file.Types = append(file.Types, c.message(d, f.pkg, location, f.syntax))
		case EnumDecl:
			file.Types = append(file.Types, c.enum(d, f.pkg, location, f.syntax))
		case ServiceDecl:
			file.Services = append(file.Services, c.service(d, f.pkg, location))
		case ExtendDecl:
			file.Extends = append(file.Extends, c.extend(d, f.pkg, location))
		case OptionDecl:
			options = append(options, d.element)
		}
	}
	file.Options = schema.NewOptions(schema.FileOptions, options)
	return file
}

func (c *buildContext) message(d MessageDecl, scope string, location schema.Location, syntax schema.Syntax) *schema.MessageType {
	name := qualify(scope, d.Name)
	m := &schema.MessageType{
		Type:     schema.Get(name),
		Location: location,
		Name:     d.Name,
		Syntax:   syntax,
	}
	var options []*schema.OptionElement
	for _, p := range d.parts {
		switch part := p.(type) {
		case FieldDecl:
			m.DeclaredFields = append(m.DeclaredFields, c.field(part, name, name, location, false))
		case OneOfDecl:
			oneOf := &schema.OneOf{Name: part.Name, Location: location, Options: schema.NewOptions(schema.OneOfOptions, nil)}
			for _, fd := range part.fields {
				fd.Label = schema.LabelOneOf
				oneOf.Fields = append(oneOf.Fields, c.field(fd, name, name, location, false))
			}
			m.OneOfs = append(m.OneOfs, oneOf)
		case MessageDecl:
			m.Nested = append(m.Nested, c.message(part, name, location, syntax))
		case EnumDecl:
			m.Nested = append(m.Nested, c.enum(part, name, location, syntax))
		case ExtendDecl:
			m.Extends = append(m.Extends, c.extend(part, name, location))
		case OptionDecl:
			options = append(options, part.element)
		}
	}
	m.Options = schema.NewOptions(schema.MessageOptions, options)
	return m
}

func (c *buildContext) enum(d EnumDecl, scope string, location schema.Location, syntax schema.Syntax) *schema.EnumType {
	name := qualify(scope, d.Name)
	e := &schema.EnumType{
		Type:     schema.Get(name),
		Location: location,
		Name:     d.Name,
		Syntax:   syntax,
	}
	var options []*schema.OptionElement
	for _, p := range d.parts {
		switch part := p.(type) {
		case ConstantDecl:
			e.Constants = append(e.Constants, &schema.EnumConstant{
				Location: location,
				Name:     part.Name,
				Tag:      part.Tag,
				Options:  schema.NewOptions(schema.EnumValueOptions, part.options),
			})
		case OptionDecl:
			options = append(options, part.element)
		}
	}
	e.Options = schema.NewOptions(schema.EnumOptions, options)
	return e
}

func (c *buildContext) field(d FieldDecl, namespace, scope string, location schema.Location, extension bool) *schema.Field {
	return &schema.Field{
		Namespace:   namespace,
		Location:    location,
		Label:       d.Label,
		Name:        d.Name,
		Tag:         d.Tag,
		ElementType: d.TypeName,
		Type:        c.resolve(d.TypeName, scope),
		Options:     schema.NewOptions(schema.FieldOptions, d.options),
		IsExtension: extension,
	}
}

func (c *buildContext) extend(d ExtendDecl, scope string, location schema.Location) *schema.Extend {
	e := &schema.Extend{
		Location: location,
		Name:     d.Target,
		Type:     c.resolve(d.Target, scope),
	}
	for _, fd := range d.fields {
		e.Fields = append(e.Fields, c.field(fd, scope, scope, location, true))
	}
	return e
}

func (c *buildContext) service(d ServiceDecl, scope string, location schema.Location) *schema.Service {
	svc := &schema.Service{
		Type:     schema.Get(qualify(scope, d.Name)),
		Location: location,
		Name:     d.Name,
		Options:  schema.NewOptions(schema.ServiceOptions, d.options),
	}
	for _, r := range d.rpcs {
		svc.Rpcs = append(svc.Rpcs, &schema.Rpc{
			Location:         location,
			Name:             r.Name,
			RequestTypeName:  r.Request,
			ResponseTypeName: r.Response,
			RequestType:      c.resolve(r.Request, scope),
			ResponseType:     c.resolve(r.Response, scope),
			Options:          schema.NewOptions(schema.MethodOptions, r.options),
		})
	}
	return svc
}

func descriptorParts() []FilePart {
	return []FilePart{
		Message("FileOptions", Field("java_package", 1, "string"), Field("deprecated", 23, "bool")),
		Message("MessageOptions", Field("deprecated", 3, "bool"), Field("map_entry", 7, "bool")),
		Message("FieldOptions", Field("packed", 2, "bool"), Field("deprecated", 3, "bool"), Field("lazy", 5, "bool")),
		Message("OneofOptions"),
		Message("EnumOptions", Field("allow_alias", 2, "bool"), Field("deprecated", 3, "bool")),
		Message("EnumValueOptions", Field("deprecated", 1, "bool")),
		Message("ServiceOptions", Field("deprecated", 33, "bool")),
		Message("MethodOptions", Field("deprecated", 33, "bool")),
	}
}

func extensionParts() []FilePart {
	return []FilePart{
		Extend("google.protobuf.FieldOptions",
			Field("since", 76001, "string"),
			Field("until", 76002, "string"),
		),
		Extend("google.protobuf.EnumValueOptions",
			Field("constant_since", 76003, "string"),
			Field("constant_until", 76004, "string"),
		),
	}
}
