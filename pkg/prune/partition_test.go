package prune

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoprune/pkg/graph"
	"github.com/platinummonkey/protoprune/pkg/rules"
	"github.com/platinummonkey/protoprune/pkg/schema"
	st "github.com/platinummonkey/protoprune/pkg/schema/schematest"
)

func partitionSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return st.New().
		File("common.proto", "common",
			st.Message("Money", st.Field("cents", 1, "int64")),
			st.Message("Address", st.Field("street", 1, "string")),
		).
		File("app.proto", "app",
			st.Message("Order", st.Field("total", 1, "common.Money")),
		).
		File("admin.proto", "admin",
			st.Message("Report", st.Field("total", 1, "common.Money"), st.Field("where", 2, "common.Address")),
		).
		MustBuild(t)
}

func TestPartition(t *testing.T) {
	s := partitionSchema(t)
	modules := []Module{
		{Name: "app", DependsOn: []string{"common"}, Rules: buildRules(t, rules.NewBuilder().AddRoot("app.*"))},
		{Name: "common", Rules: buildRules(t, rules.NewBuilder().AddRoot("common.Money"))},
		{Name: "admin", DependsOn: []string{"common"}, Rules: buildRules(t, rules.NewBuilder().AddRoot("admin.*"))},
	}

	partitioned, err := Partition(context.Background(), s, modules)
	require.NoError(t, err)

	require.Len(t, partitioned.Order, 3)
	assert.Equal(t, "common", partitioned.Order[0])

	common := partitioned.Modules["common"]
	assert.Equal(t, []schema.ProtoType{schema.Get("common.Money")}, common.Owned)

	app := partitioned.Modules["app"]
	assert.Equal(t, []schema.ProtoType{schema.Get("app.Order")}, app.Owned)
	assert.True(t, app.Owns(schema.Get("app.Order")))
	assert.False(t, app.Owns(schema.Get("common.Money")))
	assert.NotNil(t, app.Schema.GetMessageType(schema.Get("common.Money")), "upstream types stay in the module schema")

	admin := partitioned.Modules["admin"]
	assert.Equal(t, []schema.ProtoType{schema.Get("admin.Report"), schema.Get("common.Address")}, admin.Owned)

	assert.Empty(t, partitioned.Warnings)
	assert.Len(t, partitioned.Groups(), 1)
}

func TestPartition_WarnsOnSharedTypes(t *testing.T) {
	s := partitionSchema(t)
	modules := []Module{
		{Name: "app", Rules: buildRules(t, rules.NewBuilder().AddRoot("app.*"))},
		{Name: "admin", Rules: buildRules(t, rules.NewBuilder().AddRoot("admin.*"))},
	}

	partitioned, err := Partition(context.Background(), s, modules)
	require.NoError(t, err)

	require.Len(t, partitioned.Warnings, 1)
	assert.Contains(t, partitioned.Warnings[0], "common.Money is retained by")
	assert.Len(t, partitioned.Groups(), 2)
}

func TestPartition_InvalidModuleGraphs(t *testing.T) {
	s := partitionSchema(t)
	everything := buildRules(t, rules.NewBuilder())

	tests := []struct {
		name    string
		modules []Module
		wantErr error
	}{
		{
			name:    "unknown dependency",
			modules: []Module{{Name: "app", DependsOn: []string{"missing"}, Rules: everything}},
			wantErr: ErrUnknownDependency,
		},
		{
			name: "cycle",
			modules: []Module{
				{Name: "a", DependsOn: []string{"b"}, Rules: everything},
				{Name: "b", DependsOn: []string{"a"}, Rules: everything},
			},
			wantErr: graph.ErrCycle,
		},
		{
			name: "duplicate",
			modules: []Module{
				{Name: "a", Rules: everything},
				{Name: "a", Rules: everything},
			},
			wantErr: ErrDuplicateModule,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Partition(context.Background(), s, tt.modules)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPartition_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Partition(ctx, partitionSchema(t), []Module{
		{Name: "app", Rules: buildRules(t, rules.NewBuilder())},
	})
	assert.ErrorIs(t, err, context.Canceled)
}
