package schema

import (
	"fmt"
	"strings"
)

// ProtoType names a scalar, a message, enum or service, or a map type. Two ProtoTypes
// are equal when their canonical strings are.
type ProtoType struct {
	name string
}

// Scalar types.
var (
	Bool     = ProtoType{"bool"}
	Bytes    = ProtoType{"bytes"}
	Double   = ProtoType{"double"}
	Float    = ProtoType{"float"}
	Fixed32  = ProtoType{"fixed32"}
	Fixed64  = ProtoType{"fixed64"}
	Int32    = ProtoType{"int32"}
	Int64    = ProtoType{"int64"}
	Sfixed32 = ProtoType{"sfixed32"}
	Sfixed64 = ProtoType{"sfixed64"}
	Sint32   = ProtoType{"sint32"}
	Sint64   = ProtoType{"sint64"}
	String   = ProtoType{"string"}
	Uint32   = ProtoType{"uint32"}
	Uint64   = ProtoType{"uint64"}
)

var scalars = map[string]ProtoType{
	Bool.name:     Bool,
	Bytes.name:    Bytes,
	Double.name:   Double,
	Float.name:    Float,
	Fixed32.name:  Fixed32,
	Fixed64.name:  Fixed64,
	Int32.name:    Int32,
	Int64.name:    Int64,
	Sfixed32.name: Sfixed32,
	Sfixed64.name: Sfixed64,
	Sint32.name:   Sint32,
	Sint64.name:   Sint64,
	String.name:   String,
	Uint32.name:   Uint32,
	Uint64.name:   Uint64,
}

// Well-known options message types.
var (
	FileOptions      = ProtoType{"google.protobuf.FileOptions"}
	MessageOptions   = ProtoType{"google.protobuf.MessageOptions"}
	FieldOptions     = ProtoType{"google.protobuf.FieldOptions"}
	OneOfOptions     = ProtoType{"google.protobuf.OneofOptions"}
	EnumOptions      = ProtoType{"google.protobuf.EnumOptions"}
	EnumValueOptions = ProtoType{"google.protobuf.EnumValueOptions"}
	ServiceOptions   = ProtoType{"google.protobuf.ServiceOptions"}
	MethodOptions    = ProtoType{"google.protobuf.MethodOptions"}
)

var optionsTypes = map[ProtoType]struct{}{
	FileOptions:      {},
	MessageOptions:   {},
	FieldOptions:     {},
	OneOfOptions:     {},
	EnumOptions:      {},
	EnumValueOptions: {},
	ServiceOptions:   {},
	MethodOptions:    {},
}

// Get returns the type named by name, which is a scalar keyword, a fully-qualified name
// (a leading dot is dropped) or "map<K, V>".
func Get(name string) ProtoType {
	name = strings.TrimSpace(name)
	if t, ok := scalars[name]; ok {
		return t
	}
	if strings.HasPrefix(name, "map<") && strings.HasSuffix(name, ">") {
		key, value, ok := strings.Cut(name[len("map<"):len(name)-1], ",")
		if ok {
			return ProtoType{fmt.Sprintf("map<%s, %s>", Get(key), Get(value))}
		}
	}
	return ProtoType{strings.TrimPrefix(name, ".")}
}

// NewMapType returns map<key, value>. Keys must be scalars other than bytes, float and
// double.
func NewMapType(key, value ProtoType) (ProtoType, error) {
	if !key.IsScalar() || key == Bytes || key == Float || key == Double {
		return ProtoType{}, fmt.Errorf("map key type %s is not allowed", key)
	}
	if value.IsZero() || value.IsMap() {
		return ProtoType{}, fmt.Errorf("map value type %s is not allowed", value)
	}
	return ProtoType{fmt.Sprintf("map<%s, %s>", key, value)}, nil
}

// String returns the canonical name.
func (t ProtoType) String() string {
	return t.name
}

// IsZero reports whether t is unset.
func (t ProtoType) IsZero() bool {
	return t.name == ""
}

// IsScalar reports whether t is one of the 15 scalar types.
func (t ProtoType) IsScalar() bool {
	_, ok := scalars[t.name]
	return ok
}

// IsMap reports whether t is a map type.
func (t ProtoType) IsMap() bool {
	return strings.HasPrefix(t.name, "map<")
}

// IsNamed reports whether t names a declared message, enum or service.
func (t ProtoType) IsNamed() bool {
	return !t.IsZero() && !t.IsScalar() && !t.IsMap()
}

// KeyType returns the key of a map type.
func (t ProtoType) KeyType() ProtoType {
	key, _ := t.mapParts()
	return key
}

// ValueType returns the value of a map type.
func (t ProtoType) ValueType() ProtoType {
	_, value := t.mapParts()
	return value
}

func (t ProtoType) mapParts() (ProtoType, ProtoType) {
	if !t.IsMap() {
		return ProtoType{}, ProtoType{}
	}
	key, value, _ := strings.Cut(t.name[len("map<"):len(t.name)-1], ",")
	return Get(key), Get(value)
}

// SimpleName returns the last dotted segment.
func (t ProtoType) SimpleName() string {
	if t.IsMap() || t.IsScalar() {
		return t.name
	}
	return t.name[strings.LastIndexByte(t.name, '.')+1:]
}

// EnclosingTypeOrPackage returns everything before the last dot, or "" for a
// top-level type in the default package.
func (t ProtoType) EnclosingTypeOrPackage() string {
	if !t.IsNamed() {
		return ""
	}
	if i := strings.LastIndexByte(t.name, '.'); i != -1 {
		return t.name[:i]
	}
	return ""
}

// NestedType returns the type named name inside t.
func (t ProtoType) NestedType(name string) ProtoType {
	return ProtoType{t.name + "." + name}
}

// ProtoMember identifies a field, enum constant or rpc of a type. Extension fields use
// their qualified name as member.
type ProtoMember struct {
	Type   ProtoType
	Member string
}

// NewProtoMember returns the member of t named member.
func NewProtoMember(t ProtoType, member string) ProtoMember {
	return ProtoMember{Type: t, Member: member}
}

// ParseProtoMember parses "pkg.Type#member".
func ParseProtoMember(s string) (ProtoMember, error) {
	typeName, member, ok := strings.Cut(s, "#")
	if !ok || typeName == "" || member == "" {
		return ProtoMember{}, fmt.Errorf("invalid member %q, expected Type#member", s)
	}
	return NewProtoMember(Get(typeName), member), nil
}

// String returns "pkg.Type#member".
func (m ProtoMember) String() string {
	return m.Type.String() + "#" + m.Member
}

// SimpleName returns the member name without any package qualifier.
func (m ProtoMember) SimpleName() string {
	return m.Member[strings.LastIndexByte(m.Member, '.')+1:]
}

// IsOptionsType reports whether t is one of the google.protobuf options messages.
func IsOptionsType(t ProtoType) bool {
	_, ok := optionsTypes[t]
	return ok
}
