package fomod_test

import (
	"testing"

	"github.com/DonovanMods/stellar-mod-loader/internal/fomod"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plannedGroup(gt fomod.GroupType, plugins ...*fomod.Plugin) fomod.PlannedGroup {
	g := fomod.PlannedGroup{PluginGroup: &fomod.PluginGroup{Name: "Options", Type: gt, Plugins: plugins}}
	for _, p := range plugins {
		g.Plugins = append(g.Plugins, fomod.PlannedPlugin{Plugin: p, Resolution: fomod.TypeResolution{Type: p.Type.Type}})
	}
	return g
}

func TestValidateGroup_ExactlyOne(t *testing.T) {
	a := plugin("a", fomod.TypeOptional)
	b := plugin("b", fomod.TypeOptional)
	group := plannedGroup(fomod.SelectExactlyOne, a, b)

	assert.False(t, fomod.ValidateGroup(group, nil).Valid())
	assert.True(t, fomod.ValidateGroup(group, []*fomod.Plugin{a}).Valid())
	assert.False(t, fomod.ValidateGroup(group, []*fomod.Plugin{a, b}).Valid())
}

func TestValidateGroup_Cardinality(t *testing.T) {
	a := plugin("a", fomod.TypeOptional)
	b := plugin("b", fomod.TypeOptional)

	tests := []struct {
		name   string
		gt     fomod.GroupType
		chosen []*fomod.Plugin
		valid  bool
	}{
		{"at most one empty", fomod.SelectAtMostOne, nil, true},
		{"at most one two", fomod.SelectAtMostOne, []*fomod.Plugin{a, b}, false},
		{"at least one empty", fomod.SelectAtLeastOne, nil, false},
		{"at least one two", fomod.SelectAtLeastOne, []*fomod.Plugin{a, b}, true},
		{"any empty", fomod.SelectAny, nil, true},
		{"all partial", fomod.SelectAll, []*fomod.Plugin{a}, false},
		{"all complete", fomod.SelectAll, []*fomod.Plugin{a, b}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, fomod.ValidateGroup(plannedGroup(tt.gt, a, b), tt.chosen).Valid())
		})
	}
}

func TestValidateGroup_RequiredAlwaysNeeded(t *testing.T) {
	req := plugin("core", fomod.TypeRequired)
	opt := plugin("extra", fomod.TypeOptional)

	for _, gt := range []fomod.GroupType{fomod.SelectAny, fomod.SelectAtLeastOne, fomod.SelectAtMostOne, fomod.SelectExactlyOne, fomod.SelectAll} {
		t.Run(string(gt), func(t *testing.T) {
			v := fomod.ValidateGroup(plannedGroup(gt, req, opt), []*fomod.Plugin{opt})
			assert.False(t, v.Valid())
			assert.NotEmpty(t, v.Problems)
		})
	}
}

func TestValidateGroup_NotUsable(t *testing.T) {
	broken := plugin("broken", fomod.TypeNotUsable)
	v := fomod.ValidateGroup(plannedGroup(fomod.SelectAny, broken), []*fomod.Plugin{broken})
	assert.False(t, v.Valid())
	assert.Equal(t, "Options", v.Group)
}

func TestInstallPlan_Validate(t *testing.T) {
	a := plugin("a", fomod.TypeOptional)
	b := plugin("b", fomod.TypeOptional)
	group := &fomod.PluginGroup{Name: "Pick", Type: fomod.SelectExactlyOne, Plugins: []*fomod.Plugin{a, b}}
	cfg := &fomod.ModuleConfig{InstallSteps: []*fomod.InstallStep{{Name: "Main", Groups: []*fomod.PluginGroup{group}}}}
	planner := fomod.NewPlanner(fomod.NewResolver(fomod.Environment{}))

	assert.Empty(t, planner.Plan(cfg, nil).Validate())

	failed := planner.Plan(cfg, fomod.Choices{group: {a, b}}).Validate()
	require.Len(t, failed, 1)
	assert.Equal(t, "Main", failed[0].Step)
	assert.Equal(t, "Pick", failed[0].Group)
}
