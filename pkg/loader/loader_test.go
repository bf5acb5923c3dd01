package loader

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoprune/pkg/schema"
)

const dinosaurProto = `syntax = "proto3";

package squareup.dinosaurs;

import "squareup/geology/period.proto";

// A dinosaur.
message Dinosaur {
  string name = 1;
  repeated string picture_urls = 2 [deprecated = true];
  map<string, squareup.geology.Period> periods = 3;
  oneof diet {
    string plant = 4;
    string meat = 5;
  }
  optional int32 length = 6;
}

service Museum {
  rpc Exhibit(Dinosaur) returns (stream Dinosaur);
}
`

const periodProto = `syntax = "proto3";

package squareup.geology;

enum Period {
  CRETACEOUS = 0;
  JURASSIC = 1;
  reserved 5 to 9;
}

message Unused {
  string note = 1;
}
`

const cardProto = `syntax = "proto2";

package test;

import "google/protobuf/descriptor.proto";
import "protoprune/extensions.proto";

message Meta {
  optional string owner = 1;
  repeated string labels = 2;
}

extend google.protobuf.FieldOptions {
  optional Meta meta = 5000;
  optional bool redacted = 5001;
}

message Card {
  optional string number = 1 [(meta) = { owner: "kat" labels: ["a", "b"] }, (redacted) = true];
  optional string holder = 2 [(meta).owner = "jesse", (protoprune.since) = "20"];
  optional int32 cvv = 3 [default = 123, json_name = "code"];
  reserved 10 to 12;
  extensions 100 to 199;
}
`

func dinosaurLoader() *Loader {
	sources := Root{Base: "protos", FS: fstest.MapFS{
		"squareup/dinosaurs/dinosaur.proto": {Data: []byte(dinosaurProto)},
	}}
	protoPath := Root{Base: "third_party", FS: fstest.MapFS{
		"squareup/geology/period.proto": {Data: []byte(periodProto)},
	}}
	return NewLoader([]Root{sources}, []Root{protoPath}, nil)
}

func TestLoad(t *testing.T) {
	result, err := dinosaurLoader().Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"squareup/dinosaurs/dinosaur.proto"}, result.SourceFiles)
	assert.Contains(t, result.LinkedFiles, "squareup/geology/period.proto")
	assert.Contains(t, result.LinkedFiles, DescriptorPath)
	assert.Contains(t, result.LinkedFiles, ExtensionsPath)
	assert.True(t, result.IsSource("squareup/dinosaurs/dinosaur.proto"))
	assert.False(t, result.IsSource("squareup/geology/period.proto"))

	s := result.Schema
	dinosaur := s.GetMessageType(schema.Get("squareup.dinosaurs.Dinosaur"))
	require.NotNil(t, dinosaur)
	assert.Equal(t, "A dinosaur.", dinosaur.Documentation)
	assert.Equal(t, "protos", dinosaur.Location.Base)
	assert.Equal(t, "squareup/dinosaurs/dinosaur.proto", dinosaur.Location.Path)
	assert.Equal(t, 8, dinosaur.Location.Line)
	assert.Equal(t, schema.SyntaxProto3, dinosaur.Syntax)

	name := dinosaur.Field("name")
	require.NotNil(t, name)
	assert.Equal(t, schema.String, name.Type)
	assert.Equal(t, schema.LabelNone, name.Label)

	pictures := dinosaur.Field("picture_urls")
	require.NotNil(t, pictures)
	assert.Equal(t, schema.LabelRepeated, pictures.Label)
	assert.True(t, pictures.Deprecated)

	periods := dinosaur.Field("periods")
	require.NotNil(t, periods)
	assert.Equal(t, "map<string, squareup.geology.Period>", periods.Type.String())
	assert.Equal(t, schema.LabelNone, periods.Label)

	length := dinosaur.Field("length")
	require.NotNil(t, length)
	assert.Equal(t, schema.LabelOptional, length.Label)

	require.Len(t, dinosaur.OneOfs, 1)
	diet := dinosaur.OneOfs[0]
	assert.Equal(t, "diet", diet.Name)
	require.Len(t, diet.Fields, 2)
	assert.Equal(t, schema.LabelOneOf, diet.Fields[0].Label)
	assert.Len(t, dinosaur.DeclaredFields, 4)
	assert.Empty(t, dinosaur.Nested, "map entries are not types")

	museum := s.GetService(schema.Get("squareup.dinosaurs.Museum"))
	require.NotNil(t, museum)
	exhibit := museum.Rpc("Exhibit")
	require.NotNil(t, exhibit)
	assert.Equal(t, schema.Get("squareup.dinosaurs.Dinosaur"), exhibit.RequestType)
	assert.False(t, exhibit.RequestStreaming)
	assert.True(t, exhibit.ResponseStreaming)

	period := s.GetEnumType(schema.Get("squareup.geology.Period"))
	require.NotNil(t, period)
	assert.Equal(t, "third_party", period.Location.Base)
	assert.Len(t, period.Constants, 2)
	require.Len(t, period.Reserveds, 1)
	assert.Equal(t, []schema.TagRange{{Start: 5, End: 9}}, period.Reserveds[0].Ranges)

	assert.Nil(t, s.GetType(schema.Get("squareup.geology.Unused")), "unreachable proto path types are trimmed")
}

func TestLoad_Options(t *testing.T) {
	sources := Root{Base: "protos", FS: fstest.MapFS{
		"test/card.proto": {Data: []byte(cardProto)},
	}}
	result, err := NewLoader([]Root{sources}, nil, nil).Load(context.Background())
	require.NoError(t, err)

	card := result.Schema.GetMessageType(schema.Get("test.Card"))
	require.NotNil(t, card)

	meta := schema.NewProtoMember(schema.FieldOptions, "test.meta")
	owner := schema.NewProtoMember(schema.Get("test.Meta"), "owner")
	labels := schema.NewProtoMember(schema.Get("test.Meta"), "labels")

	number := card.Field("number")
	require.NotNil(t, number)
	assert.True(t, number.Redacted)
	assert.Equal(t, map[schema.ProtoMember]any{
		owner:  "kat",
		labels: []any{"a", "b"},
	}, number.Options.Get(meta))

	holder := card.Field("holder")
	require.NotNil(t, holder)
	assert.False(t, holder.Redacted)
	assert.Equal(t, map[schema.ProtoMember]any{owner: "jesse"}, holder.Options.Get(meta))
	assert.Equal(t, "20", holder.Since())

	cvv := card.Field("cvv")
	require.NotNil(t, cvv)
	assert.Equal(t, "123", cvv.Default)
	assert.Equal(t, "code", cvv.JSONName)
	assert.Empty(t, cvv.Options.Elements())

	assert.Equal(t, []schema.TagRange{{Start: 100, End: 199}}, card.ExtensionsRanges)
	require.Len(t, card.Reserveds, 1)
	assert.Equal(t, []schema.TagRange{{Start: 10, End: 12}}, card.Reserveds[0].Ranges)

	fieldOptions := result.Schema.GetMessageType(schema.FieldOptions)
	require.NotNil(t, fieldOptions)
	assert.NotNil(t, fieldOptions.ExtensionField("test.meta"))
}

func TestLoad_Errors(t *testing.T) {
	t.Run("no sources", func(t *testing.T) {
		_, err := NewLoader([]Root{{Base: "empty", FS: fstest.MapFS{}}}, nil, nil).Load(context.Background())
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("syntax error", func(t *testing.T) {
		sources := Root{Base: "protos", FS: fstest.MapFS{
			"broken.proto": {Data: []byte(`syntax = "proto3"; message {`)},
		}}
		_, err := NewLoader([]Root{sources}, nil, nil).Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to compile")
	})

	t.Run("missing import", func(t *testing.T) {
		sources := Root{Base: "protos", FS: fstest.MapFS{
			"a.proto": {Data: []byte(`syntax = "proto3"; import "missing.proto";`)},
		}}
		_, err := NewLoader([]Root{sources}, nil, nil).Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing.proto")
	})
}
