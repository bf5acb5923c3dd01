package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnclosing(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"a.b.Message#field", "a.b.Message"},
		{"a.b.Outer.Inner", "a.b.Outer.*"},
		{"a.b.Outer.*", "a.b.*"},
		{"a.b.Message", "a.b.*"},
		{"a.b.*", "a.*"},
		{"a.*", "*"},
		{"Message", "*"},
		{"*", ""},
		{"google.protobuf.FieldOptions#squareup.redacted", "google.protobuf.FieldOptions"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, Enclosing(tt.id))
		})
	}
}

func TestIdentifierSet_Includes(t *testing.T) {
	tests := []struct {
		name     string
		includes []string
		excludes []string
		id       string
		want     bool
		rule     string
	}{
		{
			name:     "exact include",
			includes: []string{"wire.MessageA"},
			id:       "wire.MessageA",
			want:     true,
			rule:     "wire.MessageA",
		},
		{
			name:     "no matching include",
			includes: []string{"wire.MessageA"},
			id:       "wire.MessageB",
			want:     false,
		},
		{
			name:     "package wildcard",
			includes: []string{"wire.*"},
			id:       "wire.sub.MessageA",
			want:     true,
			rule:     "wire.*",
		},
		{
			name:     "member inherits type",
			includes: []string{"wire.MessageA"},
			id:       "wire.MessageA#b",
			want:     true,
			rule:     "wire.MessageA",
		},
		{
			name:     "specific include beats broader exclude",
			includes: []string{"wire.MessageA"},
			excludes: []string{"wire.*"},
			id:       "wire.MessageA",
			want:     true,
			rule:     "wire.MessageA",
		},
		{
			name:     "broader exclude applies to siblings",
			includes: []string{"wire.MessageA"},
			excludes: []string{"wire.*"},
			id:       "wire.MessageB",
			want:     false,
			rule:     "wire.*",
		},
		{
			name:     "specific exclude beats broader include",
			includes: []string{"wire.*"},
			excludes: []string{"wire.MessageB"},
			id:       "wire.MessageB",
			want:     false,
			rule:     "wire.MessageB",
		},
		{
			name:     "member exclude beats type include",
			includes: []string{"wire.MessageA"},
			excludes: []string{"wire.MessageA#b"},
			id:       "wire.MessageA#b",
			want:     false,
			rule:     "wire.MessageA#b",
		},
		{
			name:     "member include beats type exclude",
			includes: []string{"wire.MessageA#b"},
			excludes: []string{"wire.MessageA"},
			id:       "wire.MessageA#b",
			want:     true,
			rule:     "wire.MessageA#b",
		},
		{
			name:     "tie at the same level goes to the exclude",
			includes: []string{"wire.MessageA"},
			excludes: []string{"wire.MessageA"},
			id:       "wire.MessageA",
			want:     false,
			rule:     "wire.MessageA",
		},
		{
			name:     "tie at the same wildcard level goes to the exclude",
			includes: []string{"wire.*"},
			excludes: []string{"wire.*"},
			id:       "wire.MessageA#b",
			want:     false,
			rule:     "wire.*",
		},
		{
			name:     "nearest wildcard wins over root wildcard",
			includes: []string{"*"},
			excludes: []string{"wire.*"},
			id:       "wire.MessageA",
			want:     false,
			rule:     "wire.*",
		},
		{
			name:     "nested package wildcard beats parent package wildcard",
			includes: []string{"wire.sub.*"},
			excludes: []string{"wire.*"},
			id:       "wire.sub.MessageA",
			want:     true,
			rule:     "wire.sub.*",
		},
		{
			name:     "empty includes keeps everything not excluded",
			excludes: []string{"wire.MessageB"},
			id:       "wire.MessageA",
			want:     true,
		},
		{
			name:     "empty includes still honors excludes",
			excludes: []string{"wire.MessageB"},
			id:       "wire.MessageB#c",
			want:     false,
			rule:     "wire.MessageB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewIdentifierSet(tt.includes, tt.excludes)
			d := set.Includes(tt.id)
			assert.Equal(t, tt.want, d.Result)
			assert.Equal(t, tt.rule, d.Rule)
		})
	}
}

func TestIdentifierSet_Excludes(t *testing.T) {
	set := NewIdentifierSet([]string{"wire.MessageA"}, []string{"wire.*", "other.Message#c"})

	assert.False(t, set.Excludes("wire.MessageA").Result)
	assert.False(t, set.Excludes("wire.MessageA#b").Result)
	assert.True(t, set.Excludes("wire.MessageB").Result)
	assert.True(t, set.Excludes("other.Message#c").Result)
	assert.False(t, set.Excludes("other.Message#d").Result)
	assert.False(t, set.Excludes("other.Message").Result)

	d := set.Excludes("wire.Nested.Deep")
	assert.True(t, d.Result)
	assert.True(t, d.Exclude)
	assert.Equal(t, "wire.*", d.Rule)
}

func TestIdentifierSet_Rules(t *testing.T) {
	set := NewIdentifierSet([]string{"b", " a ", ""}, []string{"z"})
	assert.Equal(t, []string{"a", "b"}, set.IncludeRules())
	assert.Equal(t, []string{"z"}, set.ExcludeRules())
	assert.False(t, set.IsEmpty())
	assert.True(t, NewIdentifierSet(nil, nil).IsEmpty())
}
