package fomod_test

import (
	"sort"
	"testing"

	"github.com/DonovanMods/stellar-mod-loader/internal/fomod"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plugin(name string, t fomod.PluginType, flags ...fomod.ConditionFlag) *fomod.Plugin {
	return &fomod.Plugin{Name: name, Type: fomod.TypeDescriptor{Type: t}, Flags: flags}
}

func pluginNames(plugins []*fomod.Plugin) []string {
	var names []string
	for _, p := range plugins {
		names = append(names, p.Name)
	}
	return names
}

func plannedNames(plugins []fomod.PlannedPlugin) []string {
	var names []string
	for _, p := range plugins {
		names = append(names, p.Name)
	}
	return names
}

func TestPlanner_Ordering(t *testing.T) {
	group := func(order fomod.Order) *fomod.PluginGroup {
		return &fomod.PluginGroup{
			Name:  string(order),
			Type:  fomod.SelectAny,
			Order: order,
			Plugins: []*fomod.Plugin{
				plugin("beta", fomod.TypeOptional),
				plugin("Alpha", fomod.TypeOptional),
				plugin("gamma", fomod.TypeOptional),
			},
		}
	}
	cfg := &fomod.ModuleConfig{
		StepOrder: fomod.OrderDescending,
		InstallSteps: []*fomod.InstallStep{
			{Name: "a-step", GroupOrder: fomod.OrderExplicit, Groups: []*fomod.PluginGroup{
				group(fomod.OrderExplicit), group(fomod.OrderAscending), group(fomod.OrderDescending),
			}},
			{Name: "B-step"},
		},
	}

	plan := fomod.NewPlanner(fomod.NewResolver(fomod.Environment{})).Plan(cfg, nil)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "B-step", plan.Steps[0].Name)
	assert.Equal(t, "a-step", plan.Steps[1].Name)

	groups := plan.Steps[1].Groups
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"beta", "Alpha", "gamma"}, plannedNames(groups[0].Plugins))
	assert.Equal(t, []string{"Alpha", "beta", "gamma"}, plannedNames(groups[1].Plugins))
	assert.Equal(t, []string{"gamma", "beta", "Alpha"}, plannedNames(groups[2].Plugins))
}

func TestPlanner_VisibilityUsesEarlierFlags(t *testing.T) {
	hd := plugin("HD", fomod.TypeOptional, fomod.ConditionFlag{Name: "quality", Value: "hd"})
	sd := plugin("SD", fomod.TypeRecommended, fomod.ConditionFlag{Name: "quality", Value: "sd"})
	quality := &fomod.PluginGroup{Name: "Quality", Type: fomod.SelectExactlyOne, Order: fomod.OrderExplicit, Plugins: []*fomod.Plugin{hd, sd}}

	hdOnly := &fomod.InstallStep{
		Name:    "2 HD extras",
		Visible: &fomod.CompositeDependency{Flags: []fomod.FlagDependency{{Flag: "quality", Value: "hd"}}},
		Groups: []*fomod.PluginGroup{{Name: "Extras", Type: fomod.SelectAny, Plugins: []*fomod.Plugin{
			plugin("Parallax", fomod.TypeOptional),
		}}},
	}
	cfg := &fomod.ModuleConfig{
		StepOrder: fomod.OrderAscending,
		InstallSteps: []*fomod.InstallStep{
			hdOnly,
			{Name: "1 Quality", Groups: []*fomod.PluginGroup{quality}},
		},
	}
	planner := fomod.NewPlanner(fomod.NewResolver(fomod.Environment{}))

	// The default picks the Recommended SD option, so the HD step is dropped
	plan := planner.Plan(cfg, nil)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "1 Quality", plan.Steps[0].Name)
	assert.Equal(t, []string{"SD"}, pluginNames(plan.Steps[0].Groups[0].Selected))
	assert.Equal(t, fomod.Flags{"quality": "sd"}, plan.Flags)

	plan = planner.Plan(cfg, fomod.Choices{quality: {hd}})
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "2 HD extras", plan.Steps[1].Name)
	assert.Equal(t, fomod.Flags{"quality": "hd"}, plan.Flags)
	assert.Equal(t, []string{"HD"}, pluginNames(plan.SelectedPlugins()))
}

func TestPlanner_ResolvesTypesWithFlags(t *testing.T) {
	mode := plugin("Survival", fomod.TypeOptional, fomod.ConditionFlag{Name: "mode", Value: "survival"})
	dynamic := &fomod.Plugin{
		Name: "Needs",
		Type: fomod.TypeDescriptor{
			Type: fomod.TypeOptional,
			Patterns: []fomod.TypePattern{{
				Dependencies: &fomod.CompositeDependency{Flags: []fomod.FlagDependency{{Flag: "mode", Value: "survival"}}},
				Type:         fomod.TypeRequired,
			}},
		},
	}
	cfg := &fomod.ModuleConfig{
		StepOrder: fomod.OrderExplicit,
		InstallSteps: []*fomod.InstallStep{
			{Name: "Mode", Groups: []*fomod.PluginGroup{{Name: "Mode", Type: fomod.SelectAny, Plugins: []*fomod.Plugin{mode}}}},
			{Name: "Needs", Groups: []*fomod.PluginGroup{{Name: "Needs", Type: fomod.SelectAny, Plugins: []*fomod.Plugin{dynamic}}}},
		},
	}
	group := cfg.InstallSteps[0].Groups[0]
	planner := fomod.NewPlanner(fomod.NewResolver(fomod.Environment{}))

	plan := planner.Plan(cfg, fomod.Choices{group: {mode}})
	needs := plan.Steps[1].Groups[0]
	assert.Equal(t, fomod.TypeRequired, needs.Plugins[0].Type())
	assert.Equal(t, fomod.ResolvedByPattern, needs.Plugins[0].Resolution.Source)
	assert.Equal(t, []string{"Needs"}, pluginNames(needs.Selected))

	plan = planner.Plan(cfg, fomod.Choices{group: nil})
	needs = plan.Steps[1].Groups[0]
	assert.Equal(t, fomod.TypeOptional, needs.Plugins[0].Type())
	assert.Equal(t, fomod.UsedDefault, needs.Plugins[0].Resolution.Source)
	assert.Empty(t, needs.Selected)
}

func TestPlanner_NilConfig(t *testing.T) {
	plan := fomod.NewPlanner(fomod.NewResolver(fomod.Environment{})).Plan(nil, nil)
	assert.Empty(t, plan.Steps)
	assert.Empty(t, plan.SelectedPlugins())
}

func TestDefaultSelection(t *testing.T) {
	planned := func(gt fomod.GroupType, plugins ...*fomod.Plugin) fomod.PlannedGroup {
		g := fomod.PlannedGroup{PluginGroup: &fomod.PluginGroup{Name: "g", Type: gt, Plugins: plugins}}
		for _, p := range plugins {
			g.Plugins = append(g.Plugins, fomod.PlannedPlugin{Plugin: p, Resolution: fomod.TypeResolution{Type: p.Type.Type}})
		}
		return g
	}

	tests := []struct {
		name  string
		group fomod.PlannedGroup
		want  []string
	}{
		{
			"select all skips not usable",
			planned(fomod.SelectAll, plugin("a", fomod.TypeOptional), plugin("b", fomod.TypeNotUsable), plugin("c", fomod.TypeCouldBeUsable)),
			[]string{"a", "c"},
		},
		{
			"select any takes required and recommended",
			planned(fomod.SelectAny, plugin("a", fomod.TypeOptional), plugin("b", fomod.TypeRecommended), plugin("c", fomod.TypeRequired)),
			[]string{"b", "c"},
		},
		{
			"select any may be empty",
			planned(fomod.SelectAny, plugin("a", fomod.TypeOptional)),
			nil,
		},
		{
			"exactly one prefers required",
			planned(fomod.SelectExactlyOne, plugin("a", fomod.TypeRecommended), plugin("b", fomod.TypeRequired)),
			[]string{"b"},
		},
		{
			"exactly one falls back to first usable",
			planned(fomod.SelectExactlyOne, plugin("a", fomod.TypeNotUsable), plugin("b", fomod.TypeOptional), plugin("c", fomod.TypeOptional)),
			[]string{"b"},
		},
		{
			"at most one may pick none",
			planned(fomod.SelectAtMostOne, plugin("a", fomod.TypeOptional)),
			nil,
		},
		{
			"at most one takes recommended",
			planned(fomod.SelectAtMostOne, plugin("a", fomod.TypeOptional), plugin("b", fomod.TypeRecommended), plugin("c", fomod.TypeRecommended)),
			[]string{"b"},
		},
		{
			"at least one falls back to first usable",
			planned(fomod.SelectAtLeastOne, plugin("a", fomod.TypeOptional), plugin("b", fomod.TypeOptional)),
			[]string{"a"},
		},
		{
			"fallback follows declaration order",
			displayedAscending(planned(fomod.SelectExactlyOne, plugin("zeta", fomod.TypeOptional), plugin("alpha", fomod.TypeOptional))),
			[]string{"zeta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pluginNames(fomod.DefaultSelection(tt.group)))
		})
	}
}

// displayedAscending reorders a group's planned plugins by name, leaving the declared order alone
func displayedAscending(g fomod.PlannedGroup) fomod.PlannedGroup {
	g.Plugins = append([]fomod.PlannedPlugin(nil), g.Plugins...)
	sort.Slice(g.Plugins, func(i, j int) bool { return g.Plugins[i].Plugin.Name < g.Plugins[j].Plugin.Name })
	return g
}
