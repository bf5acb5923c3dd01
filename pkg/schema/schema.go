package schema

// Schema is an indexed set of linked files.
type Schema struct {
	files          []*ProtoFile
	filesByPath    map[string]*ProtoFile
	types          map[ProtoType]Type
	typeOrder      []ProtoType
	services       map[ProtoType]*Service
	fileOfType     map[ProtoType]*ProtoFile
	extensionFiles map[ProtoMember]*ProtoFile
}

// NewSchema indexes files that are already linked. Use Link for loader output.
func NewSchema(files []*ProtoFile) *Schema {
	s := &Schema{
		files:          files,
		filesByPath:    make(map[string]*ProtoFile, len(files)),
		types:          map[ProtoType]Type{},
		services:       map[ProtoType]*Service{},
		fileOfType:     map[ProtoType]*ProtoFile{},
		extensionFiles: map[ProtoMember]*ProtoFile{},
	}
	for _, f := range files {
		s.filesByPath[f.Path()] = f
		for _, t := range f.Types {
			s.indexType(f, t)
		}
		for _, svc := range f.Services {
			s.services[svc.Type] = svc
			s.fileOfType[svc.Type] = f
		}
		for _, e := range f.Extends {
			s.indexExtend(f, e)
		}
	}
	return s
}

func (s *Schema) indexType(f *ProtoFile, t Type) {
	s.types[t.ProtoType()] = t
	s.typeOrder = append(s.typeOrder, t.ProtoType())
	s.fileOfType[t.ProtoType()] = f
	for _, nested := range t.NestedTypes() {
		s.indexType(f, nested)
	}
	for _, e := range t.NestedExtends() {
		s.indexExtend(f, e)
	}
}

func (s *Schema) indexExtend(f *ProtoFile, e *Extend) {
	for _, field := range e.Fields {
		s.extensionFiles[field.Member(e.Type)] = f
	}
}

// Files returns the files in load order.
func (s *Schema) Files() []*ProtoFile {
	return s.files
}

// ProtoFile returns the file at path, or nil.
func (s *Schema) ProtoFile(path string) *ProtoFile {
	return s.filesByPath[path]
}

// ProtoFileForType returns the file declaring the type or service t.
func (s *Schema) ProtoFileForType(t ProtoType) *ProtoFile {
	return s.fileOfType[t]
}

// ProtoFileForExtension returns the file declaring the extension member m.
func (s *Schema) ProtoFileForExtension(m ProtoMember) *ProtoFile {
	return s.extensionFiles[m]
}

// Types returns every declared message and enum type in file order.
func (s *Schema) Types() []ProtoType {
	return s.typeOrder
}

// Services returns every service in file order.
func (s *Schema) Services() []*Service {
	var services []*Service
	for _, f := range s.files {
		services = append(services, f.Services...)
	}
	return services
}

// GetType returns the message, enum or enclosing type t, or nil.
func (s *Schema) GetType(t ProtoType) Type {
	return s.types[t]
}

// GetMessageType returns the message t, or nil.
func (s *Schema) GetMessageType(t ProtoType) *MessageType {
	m, _ := s.types[t].(*MessageType)
	return m
}

// GetEnumType returns the enum t, or nil.
func (s *Schema) GetEnumType(t ProtoType) *EnumType {
	e, _ := s.types[t].(*EnumType)
	return e
}

// GetService returns the service t, or nil.
func (s *Schema) GetService(t ProtoType) *Service {
	return s.services[t]
}

// GetField returns the declared, oneof or extension field m, or nil.
func (s *Schema) GetField(m ProtoMember) *Field {
	msg := s.GetMessageType(m.Type)
	if msg == nil {
		return nil
	}
	if f := msg.Field(m.Member); f != nil {
		return f
	}
	return msg.ExtensionField(m.Member)
}

// GetEnumConstant returns the enum constant m, or nil.
func (s *Schema) GetEnumConstant(m ProtoMember) *EnumConstant {
	if e := s.GetEnumType(m.Type); e != nil {
		return e.Constant(m.Member)
	}
	return nil
}

// GetRpc returns the rpc m, or nil.
func (s *Schema) GetRpc(m ProtoMember) *Rpc {
	if svc := s.GetService(m.Type); svc != nil {
		return svc.Rpc(m.Member)
	}
	return nil
}
