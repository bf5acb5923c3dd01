package loader

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/parser"
	"github.com/bufbuild/protocompile/reporter"
	"github.com/bufbuild/protocompile/wellknownimports"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoprune/pkg/prune"
	"github.com/platinummonkey/protoprune/pkg/rules"
	"github.com/platinummonkey/protoprune/pkg/schema"
)

const (
	// DescriptorPath is always loaded so options can be linked.
	DescriptorPath = "google/protobuf/descriptor.proto"
	// ExtensionsPath declares the since and until version options.
	ExtensionsPath = "protoprune/extensions.proto"
)

//go:embed protoprune/extensions.proto
var extensionsProto []byte

var tracer = otel.Tracer("protoprune/loader")

// ErrNoSources is returned when no source file was found.
var ErrNoSources = errors.New("no .proto source files found")

// Root is a tree of .proto files. Paths inside FS are import paths.
type Root struct {
	// Base is reported in locations, usually the directory FS was opened from.
	Base string
	FS   fs.FS
}

// DirRoot returns a root for a directory on disk.
func DirRoot(dir string) Root {
	return Root{Base: dir, FS: os.DirFS(dir)}
}

// Result is a loaded schema.
type Result struct {
	Schema *schema.Schema
	// SourceFiles are the paths of files found in source roots, sorted.
	SourceFiles []string
	// LinkedFiles are the paths of files loaded only to resolve imports, sorted.
	LinkedFiles []string
}

// IsSource reports whether path was loaded from a source root.
func (r *Result) IsSource(path string) bool {
	i := sort.SearchStrings(r.SourceFiles, path)
	return i < len(r.SourceFiles) && r.SourceFiles[i] == path
}

// Loader compiles .proto files into a linked schema. Every .proto file below a source
// root is loaded; proto path roots only resolve imports and are trimmed to what the
// sources reach.
type Loader struct {
	sources   []Root
	protoPath []Root
	cache     Cache
	log       logrus.FieldLogger
}

// NewLoader creates a loader. A nil log discards output.
func NewLoader(sources, protoPath []Root, log logrus.FieldLogger) *Loader {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Loader{
		sources:   sources,
		protoPath: protoPath,
		log:       log,
	}
}

// SetCache sets the cache for parsed files.
func (l *Loader) SetCache(cache Cache) {
	l.cache = cache
}

// Load compiles and links every source file and its imports.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Load",
		trace.WithAttributes(attribute.Int("roots", len(l.sources)+len(l.protoPath))),
	)
	defer span.End()

	result, err := l.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("files.source", len(result.SourceFiles)),
		attribute.Int("files.linked", len(result.LinkedFiles)),
	)
	span.SetStatus(codes.Ok, "loaded")
	return result, nil
}

func (l *Loader) load(ctx context.Context) (*Result, error) {
	sourceFiles, err := l.sourceFiles()
	if err != nil {
		return nil, err
	}
	if len(sourceFiles) == 0 {
		return nil, ErrNoSources
	}

	resolver := wellknownimports.WithStandardImports(&protocompile.SourceResolver{Accessor: l.open})
	compiler := protocompile.Compiler{
		Resolver:       resolver,
		SourceInfoMode: protocompile.SourceInfoStandard,
	}
	compiled, err := compiler.Compile(ctx, append(append([]string(nil), sourceFiles...), ExtensionsPath, DescriptorPath)...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile: %w", err)
	}

	descriptors := make([]protoreflect.FileDescriptor, 0, len(compiled))
	for _, f := range compiled {
		descriptors = append(descriptors, f)
	}
	descriptors = withImports(descriptors)

	isSource := make(map[string]struct{}, len(sourceFiles))
	for _, p := range sourceFiles {
		isSource[p] = struct{}{}
	}
	var linkedFiles []string
	files := make([]*schema.ProtoFile, 0, len(descriptors))
	for _, fd := range descriptors {
		content, err := l.read(resolver, fd.Path())
		if err != nil {
			return nil, err
		}
		raw, err := l.parse(ctx, fd.Path(), content)
		if err != nil {
			return nil, err
		}
		file, err := buildFile(l.baseOf(fd.Path()), fd, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fd.Path(), err)
		}
		files = append(files, file)
		if _, ok := isSource[fd.Path()]; !ok {
			linkedFiles = append(linkedFiles, fd.Path())
		}
	}
	sort.Strings(linkedFiles)

	s, err := schema.Link(files)
	if err != nil {
		return nil, err
	}
	s = trimLinked(s, isSource)

	l.log.WithFields(logrus.Fields{
		"source_files": len(sourceFiles),
		"linked_files": len(linkedFiles),
	}).Debug("Loaded schema")
	return &Result{Schema: s, SourceFiles: sourceFiles, LinkedFiles: linkedFiles}, nil
}

// sourceFiles lists every .proto file below the source roots. A path found in more
// than one root is loaded from the first.
func (l *Loader) sourceFiles() ([]string, error) {
	seen := map[string]struct{}{}
	var files []string
	for _, root := range l.sources {
		err := fs.WalkDir(root.FS, ".", func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path.Ext(p) != ".proto" {
				return nil
			}
			if _, ok := seen[p]; ok {
				l.log.Warnf("Ignoring %s in %s: already loaded from another source root", p, root.Base)
				return nil
			}
			seen[p] = struct{}{}
			files = append(files, p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list source root %s: %w", root.Base, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// open finds p in the source roots, then the proto path, then the embedded files.
func (l *Loader) open(p string) (io.ReadCloser, error) {
	for _, root := range l.roots() {
		f, err := root.FS.Open(p)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if p == ExtensionsPath {
		return io.NopCloser(bytes.NewReader(extensionsProto)), nil
	}
	return nil, fs.ErrNotExist
}

func (l *Loader) roots() []Root {
	return append(append([]Root(nil), l.sources...), l.protoPath...)
}

func (l *Loader) baseOf(p string) string {
	for _, root := range l.roots() {
		if _, err := fs.Stat(root.FS, p); err == nil {
			return root.Base
		}
	}
	return ""
}

func (l *Loader) read(resolver protocompile.Resolver, p string) ([]byte, error) {
	found, err := resolver.FindFileByPath(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", p, err)
	}
	if found.Source == nil {
		return nil, fmt.Errorf("no source available for %s", p)
	}
	if closer, ok := found.Source.(io.Closer); ok {
		defer closer.Close()
	}
	content, err := io.ReadAll(found.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return content, nil
}

// parse returns the unlinked descriptor of a file, whose options are still
// uninterpreted.
func (l *Loader) parse(ctx context.Context, p string, content []byte) (*descriptorpb.FileDescriptorProto, error) {
	key := cacheKey(p, content)
	if l.cache != nil {
		if raw, ok := l.cache.Get(ctx, key); ok {
			return raw, nil
		}
	}
	handler := reporter.NewHandler(nil)
	node, err := parser.Parse(p, bytes.NewReader(content), handler)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p, err)
	}
	parsed, err := parser.ResultFromAST(node, false, handler)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p, err)
	}
	raw := parsed.FileDescriptorProto()
	if l.cache != nil {
		l.cache.Add(ctx, key, raw)
	}
	return raw, nil
}

// withImports returns files and everything they import, each file after its imports.
func withImports(files []protoreflect.FileDescriptor) []protoreflect.FileDescriptor {
	var ordered []protoreflect.FileDescriptor
	seen := map[string]struct{}{}
	var visit func(fd protoreflect.FileDescriptor)
	visit = func(fd protoreflect.FileDescriptor) {
		if _, ok := seen[fd.Path()]; ok {
			return
		}
		seen[fd.Path()] = struct{}{}
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			visit(imports.Get(i).FileDescriptor)
		}
		ordered = append(ordered, fd)
	}
	for _, fd := range files {
		visit(fd)
	}
	return ordered
}

// trimLinked keeps the declarations of source files and what they reach in every other
// file.
func trimLinked(s *schema.Schema, sources map[string]struct{}) *schema.Schema {
	var roots []string
	for _, f := range s.Files() {
		if _, ok := sources[f.Path()]; !ok {
			continue
		}
		for _, t := range f.TypesAndNestedTypes() {
			roots = append(roots, t.ProtoType().String())
		}
		for _, svc := range f.Services {
			roots = append(roots, svc.Type.String())
		}
		for _, e := range f.AllExtends() {
			for _, field := range e.Fields {
				roots = append(roots, field.Member(e.Type).String())
			}
		}
	}

	reachable := map[schema.ProtoType]struct{}{}
	if len(roots) > 0 {
		r, err := rules.NewBuilder().AddRoot(roots...).Build()
		if err != nil {
			return s
		}
		for _, t := range prune.Prune(s, r).Marks.Types() {
			reachable[t] = struct{}{}
		}
	}
	for _, f := range s.Files() {
		if _, ok := sources[f.Path()]; !ok {
			continue
		}
		for _, t := range f.TypesAndNestedTypes() {
			reachable[t.ProtoType()] = struct{}{}
		}
		for _, svc := range f.Services {
			reachable[svc.Type] = struct{}{}
		}
	}
	return s.RetainLinked(reachable)
}
