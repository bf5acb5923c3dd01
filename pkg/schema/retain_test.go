package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retainer struct {
	types   map[ProtoType]bool
	members map[ProtoMember]bool
}

func (r retainer) ContainsType(t ProtoType) bool     { return r.types[t] }
func (r retainer) ContainsMember(m ProtoMember) bool { return r.members[m] }

// keep adds t and the given members of t.
func (r retainer) keep(t ProtoType, members ...string) retainer {
	r.types[t] = true
	for _, m := range members {
		r.members[NewProtoMember(t, m)] = true
	}
	return r
}

func newRetainer() retainer {
	return retainer{types: map[ProtoType]bool{}, members: map[ProtoMember]bool{}}
}

func geologySchema(t *testing.T) *Schema {
	t.Helper()
	period := &EnumType{
		Type: Get("geology.Period"),
		Name: "Period",
		Constants: []*EnumConstant{
			{Name: "JURASSIC", Tag: 1},
			{Name: "CRETACEOUS", Tag: 2},
		},
	}
	rock := message(Get("geology.Rock"), optionalField("name", 1, String))
	geology := protoFile("geology.proto", "geology", period, rock)

	outer := message(Get("dino.Outer"), optionalField("id", 1, Int64))
	inner := message(Get("dino.Outer.Inner"),
		optionalField("period", 1, Get("geology.Period")),
		optionalField("rocks", 2, Get("map<string, geology.Rock>")),
	)
	outer.Nested = []Type{inner}
	dino := protoFile("dino.proto", "dino", outer)
	dino.Imports = []string{"geology.proto", "google/protobuf/descriptor.proto"}

	s, err := Link([]*ProtoFile{descriptorFile(), geology, dino})
	require.NoError(t, err)
	return s
}

func TestRetain_EnclosingType(t *testing.T) {
	s := geologySchema(t)
	keep := newRetainer().
		keep(Get("dino.Outer.Inner"), "period").
		keep(Get("geology.Period"), "JURASSIC")

	pruned := s.Retain(keep)

	outer, ok := pruned.GetType(Get("dino.Outer")).(*EnclosingType)
	require.True(t, ok, "expected an enclosing type")
	require.Len(t, outer.Nested, 1)

	inner := pruned.GetMessageType(Get("dino.Outer.Inner"))
	require.NotNil(t, inner)
	require.Len(t, inner.DeclaredFields, 1)
	assert.Equal(t, "period", inner.DeclaredFields[0].Name)

	period := pruned.GetEnumType(Get("geology.Period"))
	require.NotNil(t, period)
	require.Len(t, period.Constants, 1)
	assert.Equal(t, "JURASSIC", period.Constants[0].Name)

	assert.Nil(t, pruned.GetType(Get("geology.Rock")))
	assert.Equal(t, []string{"geology.proto"}, pruned.ProtoFile("dino.proto").Imports)

	// The input schema is unchanged.
	assert.Len(t, s.GetMessageType(Get("dino.Outer.Inner")).DeclaredFields, 2)
}

func TestRetain_MapValueMustSurvive(t *testing.T) {
	s := geologySchema(t)
	keep := newRetainer().keep(Get("dino.Outer.Inner"), "period", "rocks")

	pruned := s.Retain(keep)

	inner := pruned.GetMessageType(Get("dino.Outer.Inner"))
	require.NotNil(t, inner)
	assert.Empty(t, inner.DeclaredFields)
	assert.Empty(t, pruned.ProtoFile("dino.proto").Imports)
	assert.NotNil(t, pruned.ProtoFile("geology.proto"), "files are kept even when empty")
	assert.True(t, pruned.ProtoFile("geology.proto").IsEmpty())
}

func TestRetainLinked(t *testing.T) {
	s := geologySchema(t)

	pruned := s.RetainLinked(map[ProtoType]struct{}{
		Get("geology.Rock"):   {},
		Get("geology.Period"): {},
	})

	assert.Len(t, pruned.GetEnumType(Get("geology.Period")).Constants, 2)
	assert.NotNil(t, pruned.GetMessageType(Get("geology.Rock")))
	assert.Nil(t, pruned.GetType(Get("dino.Outer")))
	assert.Nil(t, pruned.GetType(Get("dino.Outer.Inner")))
}

func TestRetain_ExtendsAndOptions(t *testing.T) {
	dinoFile := protoFile("test/dinosaur.proto", "test",
		message(dinosaur, withFieldOptions(optionalField("name", 1, String),
			NewOption("deprecated", OptionBoolean, "true"),
			NewOption("(tags)", OptionString, "a"),
			&OptionElement{Name: "meta", Kind: OptionMap, Parenthesized: true, Value: []*OptionElement{
				{Name: "owner", Kind: OptionString, Value: "kat"},
				{Name: "labels", Kind: OptionString, Value: "x"},
			}},
		)))
	dinoFile.Imports = []string{"test/options.proto"}
	s, err := Link([]*ProtoFile{descriptorFile(), optionsFile(), dinoFile})
	require.NoError(t, err)

	keep := newRetainer().
		keep(dinosaur, "name").
		keep(FieldOptions, "test.meta").
		keep(meta, "owner")

	pruned := s.Retain(keep)

	name := pruned.GetField(NewProtoMember(dinosaur, "name"))
	require.NotNil(t, name)
	assert.Equal(t, map[ProtoMember]any{
		FieldDeprecated: "true",
		metaExt:         map[ProtoMember]any{metaOwner: "kat"},
	}, name.Options.Map())

	options := pruned.ProtoFile("test/options.proto")
	require.Len(t, options.Extends, 1)
	require.Len(t, options.Extends[0].Fields, 1)
	assert.Equal(t, "meta", options.Extends[0].Fields[0].Name)
	assert.Equal(t, []string{"test/options.proto"}, pruned.ProtoFile("test/dinosaur.proto").Imports)
}
