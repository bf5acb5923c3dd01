package schema

// Service is a service declaration. Its Type is its fully-qualified name.
type Service struct {
	Type          ProtoType
	Location      Location
	Name          string
	Documentation string
	Rpcs          []*Rpc
	Options       Options
}

// Rpc returns the rpc named name.
func (s *Service) Rpc(name string) *Rpc {
	for _, r := range s.Rpcs {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// Rpc is one method of a service.
type Rpc struct {
	Location          Location
	Name              string
	Documentation     string
	RequestTypeName   string
	ResponseTypeName  string
	RequestType       ProtoType
	ResponseType      ProtoType
	RequestStreaming  bool
	ResponseStreaming bool
	Options           Options
}

// Extend is an extend block adding fields to Type.
type Extend struct {
	Location      Location
	Documentation string
	// Name is the extended type as written in source.
	Name   string
	Type   ProtoType
	Fields []*Field
}

// ProtoFile is one .proto file.
type ProtoFile struct {
	Location    Location
	PackageName string
	Syntax      Syntax
	Edition     string
	// Imports excludes public imports.
	Imports       []string
	PublicImports []string
	Types         []Type
	Services      []*Service
	Extends       []*Extend
	Options       Options
}

// Path returns the file's path relative to its source root.
func (f *ProtoFile) Path() string {
	return f.Location.Path
}

// IsEmpty reports whether the file declares nothing.
func (f *ProtoFile) IsEmpty() bool {
	return len(f.Types) == 0 && len(f.Services) == 0 && len(f.Extends) == 0
}

// TypesAndNestedTypes returns every type in the file, outer types before their nested
// types.
func (f *ProtoFile) TypesAndNestedTypes() []Type {
	var result []Type
	var walk func([]Type)
	walk = func(types []Type) {
		for _, t := range types {
			result = append(result, t)
			walk(t.NestedTypes())
		}
	}
	walk(f.Types)
	return result
}

// AllExtends returns file-level extends followed by extends nested in messages.
func (f *ProtoFile) AllExtends() []*Extend {
	extends := append([]*Extend(nil), f.Extends...)
	for _, t := range f.TypesAndNestedTypes() {
		extends = append(extends, t.NestedExtends()...)
	}
	return extends
}
