package schema

// Retainer decides which declarations survive Schema.Retain.
type Retainer interface {
	// ContainsType reports whether the type or service t is kept with its options.
	ContainsType(t ProtoType) bool
	// ContainsMember reports whether the field, enum constant or rpc m is kept.
	ContainsMember(m ProtoMember) bool
}

// Retain returns a copy of s holding only what keep accepts:
//   - a message or enum is kept if keep contains its type; a message that is not kept
//     but has kept nested types or extends becomes an EnclosingType
//   - a field is kept if keep contains its member and its type (for maps, key and
//     value) is kept
//   - an rpc is kept if keep contains its member and both of its types are kept
//   - an extend is kept if its target is kept and at least one of its fields is
//   - option values are kept as described by Options.Retain
//
// Every file is kept, possibly empty, and its imports are reduced to those its remaining
// declarations need.
func (s *Schema) Retain(keep Retainer) *Schema {
	r := rewriter{schema: s, keep: keep}
	files := make([]*ProtoFile, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, r.file(f))
	}
	retained := NewSchema(files)
	for i, f := range files {
		files[i] = retained.retainImports(f)
	}
	return NewSchema(files)
}

// RetainLinked keeps exactly the given types with all of their members. It trims files
// that were loaded only to resolve references.
func (s *Schema) RetainLinked(types map[ProtoType]struct{}) *Schema {
	return s.Retain(typeSet(types))
}

type typeSet map[ProtoType]struct{}

func (t typeSet) ContainsType(pt ProtoType) bool {
	_, ok := t[pt]
	return ok
}

func (t typeSet) ContainsMember(m ProtoMember) bool {
	return t.ContainsType(m.Type)
}

type rewriter struct {
	schema *Schema
	keep   Retainer
}

func (r rewriter) typeRetained(t ProtoType) bool {
	switch {
	case t.IsZero():
		return false
	case t.IsScalar():
		return true
	case t.IsMap():
		return r.typeRetained(t.KeyType()) && r.typeRetained(t.ValueType())
	default:
		return r.keep.ContainsType(t)
	}
}

func (r rewriter) file(f *ProtoFile) *ProtoFile {
	file := *f
	file.Types = r.types(f.Types)
	file.Services = nil
	for _, svc := range f.Services {
		if retained := r.service(svc); retained != nil {
			file.Services = append(file.Services, retained)
		}
	}
	file.Extends = r.extends(f.Extends)
	file.Options = f.Options.Retain(r.schema, r.keep)
	return &file
}

func (r rewriter) types(types []Type) []Type {
	var result []Type
	for _, t := range types {
		var retained Type
		switch t := t.(type) {
		case *MessageType:
			retained = r.message(t)
		case *EnumType:
			retained = r.enum(t)
		case *EnclosingType:
			retained = r.enclose(t.Type, t.Location, t.Name, t.Documentation, t.Nested, t.Extends)
		}
		if retained != nil {
			result = append(result, retained)
		}
	}
	return result
}

func (r rewriter) message(m *MessageType) Type {
	if !r.keep.ContainsType(m.Type) {
		return r.enclose(m.Type, m.Location, m.Name, m.Documentation, m.Nested, m.Extends)
	}
	retained := *m
	retained.DeclaredFields = r.fields(m.Type, m.DeclaredFields)
	retained.ExtensionFields = r.fields(m.Type, m.ExtensionFields)
	retained.OneOfs = nil
	for _, o := range m.OneOfs {
		fields := r.fields(m.Type, o.Fields)
		if len(fields) == 0 {
			continue
		}
		oneOf := *o
		oneOf.Fields = fields
		oneOf.Options = o.Options.Retain(r.schema, r.keep)
		retained.OneOfs = append(retained.OneOfs, &oneOf)
	}
	retained.Nested = r.types(m.Nested)
	retained.Extends = r.extends(m.Extends)
	retained.Options = m.Options.Retain(r.schema, r.keep)
	return &retained
}

// enclose keeps a namespace for surviving nested declarations. It returns nil when
// nothing inside survives.
func (r rewriter) enclose(t ProtoType, location Location, name, doc string, nested []Type, extends []*Extend) Type {
	retainedNested := r.types(nested)
	retainedExtends := r.extends(extends)
	if len(retainedNested) == 0 && len(retainedExtends) == 0 {
		return nil
	}
	return &EnclosingType{
		Type:          t,
		Location:      location,
		Name:          name,
		Documentation: doc,
		Nested:        retainedNested,
		Extends:       retainedExtends,
	}
}

func (r rewriter) enum(e *EnumType) Type {
	if !r.keep.ContainsType(e.Type) {
		return nil
	}
	retained := *e
	retained.Constants = nil
	for _, c := range e.Constants {
		if !r.keep.ContainsMember(NewProtoMember(e.Type, c.Name)) {
			continue
		}
		constant := *c
		constant.Options = c.Options.Retain(r.schema, r.keep)
		retained.Constants = append(retained.Constants, &constant)
	}
	retained.Options = e.Options.Retain(r.schema, r.keep)
	return &retained
}

func (r rewriter) fields(declaring ProtoType, fields []*Field) []*Field {
	var result []*Field
	for _, f := range fields {
		if !r.keep.ContainsMember(f.Member(declaring)) || !r.typeRetained(f.Type) {
			continue
		}
		field := *f
		field.Options = f.Options.Retain(r.schema, r.keep)
		result = append(result, &field)
	}
	return result
}

func (r rewriter) extends(extends []*Extend) []*Extend {
	var result []*Extend
	for _, e := range extends {
		if !r.typeRetained(e.Type) {
			continue
		}
		fields := r.fields(e.Type, e.Fields)
		if len(fields) == 0 {
			continue
		}
		extend := *e
		extend.Fields = fields
		result = append(result, &extend)
	}
	return result
}

func (r rewriter) service(svc *Service) *Service {
	if !r.keep.ContainsType(svc.Type) {
		return nil
	}
	retained := *svc
	retained.Rpcs = nil
	for _, rpc := range svc.Rpcs {
		if !r.keep.ContainsMember(NewProtoMember(svc.Type, rpc.Name)) ||
			!r.typeRetained(rpc.RequestType) || !r.typeRetained(rpc.ResponseType) {
			continue
		}
		retainedRpc := *rpc
		retainedRpc.Options = rpc.Options.Retain(r.schema, r.keep)
		retained.Rpcs = append(retained.Rpcs, &retainedRpc)
	}
	retained.Options = svc.Options.Retain(r.schema, r.keep)
	return &retained
}

// retainImports drops imports that no remaining declaration of f needs. An import is
// needed if it, or a file it publicly re-exports, declares a referenced type or
// extension. Public imports are kept while the imported file still declares anything.
func (s *Schema) retainImports(f *ProtoFile) *ProtoFile {
	needed := map[string]struct{}{}
	s.collectDependencies(f, needed)
	delete(needed, f.Path())

	retained := *f
	retained.Imports = nil
	for _, path := range f.Imports {
		if s.provides(path, needed, map[string]struct{}{}) {
			retained.Imports = append(retained.Imports, path)
		}
	}
	retained.PublicImports = nil
	for _, path := range f.PublicImports {
		if s.exportsAnything(path, map[string]struct{}{}) {
			retained.PublicImports = append(retained.PublicImports, path)
		}
	}
	return &retained
}

func (s *Schema) provides(path string, needed, seen map[string]struct{}) bool {
	if _, ok := needed[path]; ok {
		return true
	}
	if _, ok := seen[path]; ok {
		return false
	}
	seen[path] = struct{}{}
	imported := s.ProtoFile(path)
	if imported == nil {
		return false
	}
	for _, public := range imported.PublicImports {
		if s.provides(public, needed, seen) {
			return true
		}
	}
	return false
}

func (s *Schema) exportsAnything(path string, seen map[string]struct{}) bool {
	if _, ok := seen[path]; ok {
		return false
	}
	seen[path] = struct{}{}
	imported := s.ProtoFile(path)
	if imported == nil {
		return false
	}
	if !imported.IsEmpty() {
		return true
	}
	for _, public := range imported.PublicImports {
		if s.exportsAnything(public, seen) {
			return true
		}
	}
	return false
}

// collectDependencies adds the path of every file declaring a type or extension that f
// refers to.
func (s *Schema) collectDependencies(f *ProtoFile, needed map[string]struct{}) {
	addType := func(t ProtoType) {
		for _, named := range namedTypes(t) {
			if file := s.ProtoFileForType(named); file != nil {
				needed[file.Path()] = struct{}{}
			}
		}
	}
	addOptions := func(o Options) {
		for _, member := range o.Fields(nil) {
			if file := s.ProtoFileForExtension(member); file != nil {
				needed[file.Path()] = struct{}{}
			}
		}
	}
	addFields := func(fields []*Field) {
		for _, field := range fields {
			addType(field.Type)
			addOptions(field.Options)
		}
	}
	addExtends := func(extends []*Extend) {
		for _, e := range extends {
			addType(e.Type)
			addFields(e.Fields)
		}
	}

	addOptions(f.Options)
	addExtends(f.Extends)
	for _, t := range f.TypesAndNestedTypes() {
		addOptions(t.TypeOptions())
		addExtends(t.NestedExtends())
		switch t := t.(type) {
		case *MessageType:
			addFields(t.DeclaredFields)
			for _, o := range t.OneOfs {
				addOptions(o.Options)
				addFields(o.Fields)
			}
		case *EnumType:
			for _, c := range t.Constants {
				addOptions(c.Options)
			}
		}
	}
	for _, svc := range f.Services {
		addOptions(svc.Options)
		for _, rpc := range svc.Rpcs {
			addType(rpc.RequestType)
			addType(rpc.ResponseType)
			addOptions(rpc.Options)
		}
	}
}

// namedTypes returns the declared types t refers to, looking inside maps.
func namedTypes(t ProtoType) []ProtoType {
	switch {
	case t.IsMap():
		return append(namedTypes(t.KeyType()), namedTypes(t.ValueType())...)
	case t.IsNamed():
		return []ProtoType{t}
	default:
		return nil
	}
}
