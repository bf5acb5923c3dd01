package schema

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	meta      = Get("test.Meta")
	dinosaur  = Get("test.Dinosaur")
	tagsExt   = NewProtoMember(FieldOptions, "test.tags")
	metaExt   = NewProtoMember(FieldOptions, "test.meta")
	sinceExt  = NewProtoMember(FieldOptions, "test.since")
	metaOwner = NewProtoMember(meta, "owner")
	metaLabel = NewProtoMember(meta, "labels")
	metaChild = NewProtoMember(meta, "child")
)

func linkFieldOptions(t *testing.T, elements ...*OptionElement) (*Field, error) {
	t.Helper()
	name := withFieldOptions(optionalField("name", 1, String), elements...)
	name.Location = NewLocation("", "test/dinosaur.proto").At(4, 3)
	f := protoFile("test/dinosaur.proto", "test", message(dinosaur, name))
	f.Imports = []string{"test/options.proto"}
	s, err := Link([]*ProtoFile{descriptorFile(), optionsFile(), f})
	if err != nil {
		return nil, err
	}
	return s.GetField(NewProtoMember(dinosaur, "name")), nil
}

func TestOptions_CoreAndExtensionNames(t *testing.T) {
	f, err := linkFieldOptions(t,
		NewOption("deprecated", OptionBoolean, "true"),
		NewOption("(tags)", OptionString, "a"),
		NewOption("(test.tags)", OptionString, "b"),
	)
	require.NoError(t, err)

	assert.Equal(t, map[ProtoMember]any{
		FieldDeprecated: "true",
		tagsExt:         []any{"a", "b"},
	}, f.Options.Map())
	assert.True(t, f.Deprecated)
	assert.False(t, f.Packed)
}

func TestOptions_NestedPathsAndMapLiteralsMerge(t *testing.T) {
	f, err := linkFieldOptions(t,
		&OptionElement{Name: "meta", Kind: OptionOption, Parenthesized: true,
			Value: NewOption("owner", OptionString, "jesse")},
		NewOption("(test.meta.labels)", OptionString, "x"),
		&OptionElement{Name: "meta", Kind: OptionMap, Parenthesized: true, Value: []*OptionElement{
			{Name: "labels", Kind: OptionList, Value: []any{"y", OptionPrimitive{Kind: OptionString, Value: "z"}}},
			{Name: "child", Kind: OptionMap, Value: []*OptionElement{
				{Name: "owner", Kind: OptionString, Value: "kat"},
			}},
		}},
	)
	require.NoError(t, err)

	assert.Equal(t, map[ProtoMember]any{
		metaExt: map[ProtoMember]any{
			metaOwner: "jesse",
			metaLabel: []any{"x", "y", "z"},
			metaChild: map[ProtoMember]any{metaOwner: "kat"},
		},
	}, f.Options.Map())
}

func TestOptions_UnknownOptionIsDropped(t *testing.T) {
	f, err := linkFieldOptions(t, NewOption("(nope)", OptionNumber, "1"))
	require.NoError(t, err)
	assert.Empty(t, f.Options.Map())
	assert.True(t, f.Options.IsLinked())
}

func TestOptions_ConflictingScalars(t *testing.T) {
	_, err := linkFieldOptions(t,
		NewOption("(since)", OptionString, "1.0"),
		NewOption("(test.since)", OptionString, "2.0"),
	)
	require.Error(t, err)

	var linkErrs *LinkErrors
	require.True(t, errors.As(err, &linkErrs))
	require.Len(t, linkErrs.Errors, 1)
	assert.Contains(t, linkErrs.Errors[0].Error(), "conflicting options: since = 1.0, 2.0")
	assert.Equal(t, "test/dinosaur.proto", linkErrs.Errors[0].Location.Path)
}

func TestOptions_Redacted(t *testing.T) {
	f, err := linkFieldOptions(t, NewOption("(redacted)", OptionBoolean, "true"))
	require.NoError(t, err)
	assert.True(t, f.Redacted)
	assert.True(t, f.Options.OptionMatches(regexp.MustCompile(`redacted$`), "true"))
	assert.False(t, f.Options.OptionMatches(regexp.MustCompile(`redacted$`), "false"))
}

func TestOptions_Fields(t *testing.T) {
	f, err := linkFieldOptions(t,
		NewOption("deprecated", OptionBoolean, "true"),
		&OptionElement{Name: "meta", Kind: OptionMap, Parenthesized: true, Value: []*OptionElement{
			{Name: "child", Kind: OptionMap, Value: []*OptionElement{
				{Name: "owner", Kind: OptionString, Value: "kat"},
			}},
		}},
	)
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]ProtoMember{FieldDeprecated, metaExt, metaChild, metaOwner},
		f.Options.Fields(nil))

	skipMeta := func(m ProtoMember) bool { return m == metaExt }
	assert.Equal(t, []ProtoMember{FieldDeprecated}, f.Options.Fields(skipMeta))
}

func TestResolveFieldPath(t *testing.T) {
	extensions := map[string]*Field{"a.b": {}, "x": {}}
	assert.Equal(t, []string{"a.b", "c", "d"}, resolveFieldPath("a.b.c.d", extensions))
	assert.Equal(t, []string{"x"}, resolveFieldPath("x", extensions))
	assert.Equal(t, []string{"x", "y"}, resolveFieldPath("x.y", extensions))
	assert.Nil(t, resolveFieldPath("a", extensions))
	assert.Nil(t, resolveFieldPath("", extensions))
}

func TestOptionElement_String(t *testing.T) {
	tests := []struct {
		name    string
		element *OptionElement
		want    string
	}{
		{"string", NewOption("java_package", OptionString, "com.squareup"), `java_package = "com.squareup"`},
		{"boolean", NewOption("deprecated", OptionBoolean, "true"), `deprecated = true`},
		{"extension", NewOption("(test.since)", OptionString, "1.0"), `(test.since) = "1.0"`},
		{"path", &OptionElement{Name: "test.meta", Kind: OptionOption, Parenthesized: true,
			Value: NewOption("owner", OptionString, "jesse")}, `(test.meta).owner = "jesse"`},
		{"map", &OptionElement{Name: "test.meta", Kind: OptionMap, Parenthesized: true, Value: []*OptionElement{
			{Name: "owner", Kind: OptionString, Value: "kat"},
			{Name: "labels", Kind: OptionList, Value: []any{OptionPrimitive{Kind: OptionEnum, Value: "FOO"}}},
		}}, `(test.meta) = { owner: "kat", labels: [FOO] }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.element.String())
		})
	}
}
