package protoprint

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/platinummonkey/protoprune/pkg/schema"
)

const indentUnit = "  "

// Printer renders files of a schema as .proto source.
type Printer struct {
	schema *schema.Schema
}

// NewPrinter returns a printer for files of s. Option names and value quoting are
// resolved against s.
func NewPrinter(s *schema.Schema) *Printer {
	return &Printer{schema: s}
}

// Print writes f to w.
func (p *Printer) Print(w io.Writer, f *schema.ProtoFile) error {
	_, err := io.WriteString(w, p.String(f))
	return err
}

// String returns f as .proto source.
func (p *Printer) String(f *schema.ProtoFile) string {
	out := &output{}
	p.file(out, f)
	return out.String()
}

// WriteFiles prints every non-empty file accepted by include to dir, keeping each
// file's path. It returns the written paths.
func (p *Printer) WriteFiles(dir string, include func(path string) bool) ([]string, error) {
	var written []string
	for _, f := range p.schema.Files() {
		if f.IsEmpty() || include != nil && !include(f.Path()) {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(f.Path()))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, fmt.Errorf("failed to create directory for %s: %w", f.Path(), err)
		}
		if err := os.WriteFile(target, []byte(p.String(f)), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.Path(), err)
		}
		written = append(written, f.Path())
	}
	sort.Strings(written)
	return written, nil
}

type output struct {
	bytes.Buffer
	depth int
}

func (o *output) line(format string, args ...any) {
	if format == "" {
		o.WriteByte('\n')
		return
	}
	o.WriteString(strings.Repeat(indentUnit, o.depth))
	fmt.Fprintf(o, format, args...)
	o.WriteByte('\n')
}

func (o *output) doc(documentation string) {
	if documentation == "" {
		return
	}
	for _, line := range strings.Split(documentation, "\n") {
		if line == "" {
			o.line("//")
		} else {
			o.line("// %s", line)
		}
	}
}

// block writes `header {`, runs body one level deeper, and closes the brace.
func (o *output) block(header string, body func()) {
	o.line("%s {", header)
	o.depth++
	body()
	o.depth--
	o.line("}")
}

func (p *Printer) file(out *output, f *schema.ProtoFile) {
	switch {
	case f.Syntax == schema.SyntaxEditions:
		out.line("edition = %s;", strconv.Quote(f.Edition))
	case f.Syntax != "":
		out.line("syntax = %s;", strconv.Quote(string(f.Syntax)))
	}
	if f.PackageName != "" {
		out.line("")
		out.line("package %s;", f.PackageName)
	}

	if len(f.Imports)+len(f.PublicImports) > 0 {
		out.line("")
		imports := append([]string(nil), f.Imports...)
		sort.Strings(imports)
		for _, path := range imports {
			out.line("import %s;", strconv.Quote(path))
		}
		public := append([]string(nil), f.PublicImports...)
		sort.Strings(public)
		for _, path := range public {
			out.line("import public %s;", strconv.Quote(path))
		}
	}

	if options := p.options(f.Options); len(options) > 0 {
		out.line("")
		for _, option := range options {
			out.line("option %s;", option)
		}
	}

	for _, t := range f.Types {
		out.line("")
		p.typeDecl(out, t)
	}
	for _, e := range f.Extends {
		out.line("")
		p.extend(out, e)
	}
	for _, svc := range f.Services {
		out.line("")
		p.service(out, svc)
	}
}

func (p *Printer) typeDecl(out *output, t schema.Type) {
	switch t := t.(type) {
	case *schema.MessageType:
		p.message(out, t)
	case *schema.EnumType:
		p.enum(out, t)
	case *schema.EnclosingType:
		out.doc(t.Documentation)
		out.block("message "+t.Name, func() {
			p.nested(out, t.Nested, t.Extends, false)
		})
	}
}

func (p *Printer) message(out *output, m *schema.MessageType) {
	out.doc(m.Documentation)
	out.block("message "+m.Name, func() {
		wrote := false
		separate := func() {
			if wrote {
				out.line("")
			}
			wrote = true
		}

		if options := p.options(m.Options); len(options) > 0 {
			separate()
			for _, option := range options {
				out.line("option %s;", option)
			}
		}
		if len(m.DeclaredFields) > 0 {
			separate()
			for _, f := range m.DeclaredFields {
				p.field(out, f, m.Syntax)
			}
		}
		for _, o := range m.OneOfs {
			separate()
			p.oneOf(out, o, m.Syntax)
		}
		if len(m.Reserveds) > 0 || len(m.ExtensionsRanges) > 0 {
			separate()
			for _, r := range m.Reserveds {
				out.line("reserved %s;", reservedValues(r))
			}
			if len(m.ExtensionsRanges) > 0 {
				out.line("extensions %s;", tagRanges(m.ExtensionsRanges))
			}
		}
		p.nested(out, m.Nested, m.Extends, wrote)
	})
}

func (p *Printer) nested(out *output, types []schema.Type, extends []*schema.Extend, separate bool) {
	for _, t := range types {
		if separate {
			out.line("")
		}
		separate = true
		p.typeDecl(out, t)
	}
	for _, e := range extends {
		if separate {
			out.line("")
		}
		separate = true
		p.extend(out, e)
	}
}

func (p *Printer) oneOf(out *output, o *schema.OneOf, syntax schema.Syntax) {
	out.doc(o.Documentation)
	out.block("oneof "+o.Name, func() {
		for _, option := range p.options(o.Options) {
			out.line("option %s;", option)
		}
		for _, f := range o.Fields {
			p.field(out, f, syntax)
		}
	})
}

func (p *Printer) field(out *output, f *schema.Field, syntax schema.Syntax) {
	out.doc(f.Documentation)
	var b strings.Builder
	switch f.Label {
	case schema.LabelOptional:
		b.WriteString("optional ")
	case schema.LabelRequired:
		b.WriteString("required ")
	case schema.LabelRepeated:
		b.WriteString("repeated ")
	}
	fmt.Fprintf(&b, "%s %s = %d", typeName(f), f.Name, f.Tag)

	var inline []string
	if f.Default != "" {
		inline = append(inline, "default = "+p.scalar(f.Type, f.Default))
	}
	if f.JSONName != "" {
		inline = append(inline, "json_name = "+strconv.Quote(f.JSONName))
	}
	inline = append(inline, p.options(f.Options)...)
	if len(inline) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(inline, ", "))
	}
	out.line("%s;", b.String())
}

func typeName(f *schema.Field) string {
	if f.ElementType != "" {
		return f.ElementType
	}
	return f.Type.String()
}

func (p *Printer) enum(out *output, e *schema.EnumType) {
	out.doc(e.Documentation)
	out.block("enum "+e.Name, func() {
		for _, option := range p.options(e.Options) {
			out.line("option %s;", option)
		}
		for _, c := range e.Constants {
			out.doc(c.Documentation)
			if options := p.options(c.Options); len(options) > 0 {
				out.line("%s = %d [%s];", c.Name, c.Tag, strings.Join(options, ", "))
			} else {
				out.line("%s = %d;", c.Name, c.Tag)
			}
		}
		for _, r := range e.Reserveds {
			out.line("reserved %s;", reservedValues(r))
		}
	})
}

func (p *Printer) extend(out *output, e *schema.Extend) {
	out.doc(e.Documentation)
	name := e.Name
	if name == "" {
		name = e.Type.String()
	}
	out.block("extend "+name, func() {
		for _, f := range e.Fields {
			p.field(out, f, "")
		}
	})
}

func (p *Printer) service(out *output, svc *schema.Service) {
	out.doc(svc.Documentation)
	out.block("service "+svc.Name, func() {
		for _, option := range p.options(svc.Options) {
			out.line("option %s;", option)
		}
		for _, rpc := range svc.Rpcs {
			out.doc(rpc.Documentation)
			signature := fmt.Sprintf("rpc %s(%s%s) returns (%s%s)", rpc.Name,
				streaming(rpc.RequestStreaming), rpcTypeName(rpc.RequestTypeName, rpc.RequestType),
				streaming(rpc.ResponseStreaming), rpcTypeName(rpc.ResponseTypeName, rpc.ResponseType))
			options := p.options(rpc.Options)
			if len(options) == 0 {
				out.line("%s;", signature)
				continue
			}
			out.block(signature, func() {
				for _, option := range options {
					out.line("option %s;", option)
				}
			})
		}
	})
}

func streaming(stream bool) string {
	if stream {
		return "stream "
	}
	return ""
}

func rpcTypeName(written string, t schema.ProtoType) string {
	if written != "" {
		return written
	}
	return t.String()
}

func reservedValues(r schema.Reserved) string {
	var values []string
	for _, name := range r.Names {
		values = append(values, strconv.Quote(name))
	}
	if len(r.Ranges) > 0 {
		values = append(values, tagRanges(r.Ranges))
	}
	return strings.Join(values, ", ")
}

func tagRanges(ranges []schema.TagRange) string {
	values := make([]string, 0, len(ranges))
	for _, r := range ranges {
		switch {
		case r.Start == r.End:
			values = append(values, strconv.Itoa(r.Start))
		case r.End == schema.MaxTag:
			values = append(values, fmt.Sprintf("%d to max", r.Start))
		default:
			values = append(values, fmt.Sprintf("%d to %d", r.Start, r.End))
		}
	}
	return strings.Join(values, ", ")
}
