package fomod

import (
	"sort"
	"strings"
)

// Choices maps each plugin group to the plugins the user picked in it.
// Groups without an entry use their default selection.
type Choices map[*PluginGroup][]*Plugin

// PlannedPlugin is a plugin with its resolved type
type PlannedPlugin struct {
	*Plugin
	Resolution TypeResolution
}

// Type returns the resolved plugin type
func (p PlannedPlugin) Type() PluginType {
	return p.Resolution.Type
}

// PlannedGroup is a group of a visible step, with plugins in display order
type PlannedGroup struct {
	*PluginGroup
	Plugins  []PlannedPlugin
	Selected []*Plugin // Effective selection: the user's choice or the default
}

// PlannedStep is a visible install step
type PlannedStep struct {
	*InstallStep
	Groups []PlannedGroup
}

// InstallPlan is the ordered set of visible steps of an installer
type InstallPlan struct {
	Steps []PlannedStep
	Flags Flags // Flags accumulated from every selected plugin of visible steps
}

// SelectedPlugins returns every selected plugin of visible steps, in plan order
func (p *InstallPlan) SelectedPlugins() []*Plugin {
	var out []*Plugin
	for _, step := range p.Steps {
		for _, group := range step.Groups {
			out = append(out, group.Selected...)
		}
	}
	return out
}

// Planner turns a ModuleConfig into an InstallPlan
type Planner struct {
	resolver *Resolver
}

// NewPlanner creates a planner that evaluates dependencies with resolver
func NewPlanner(resolver *Resolver) *Planner {
	return &Planner{resolver: resolver}
}

// Plan materializes the visible steps of cfg. Step visibility is evaluated
// with the flags set by the selections of the visible steps before it.
func (p *Planner) Plan(cfg *ModuleConfig, choices Choices) *InstallPlan {
	plan := &InstallPlan{Flags: Flags{}}
	if cfg == nil {
		return plan
	}

	for _, step := range sortSteps(cfg.InstallSteps, cfg.StepOrder) {
		if !p.resolver.Evaluate(step.Visible, plan.Flags) {
			continue
		}

		planned := PlannedStep{InstallStep: step}
		for _, group := range sortGroups(step.Groups, step.GroupOrder) {
			pg := p.planGroup(group, plan.Flags)
			if chosen, ok := choices[group]; ok {
				pg.Selected = chosen
			} else {
				pg.Selected = DefaultSelection(pg)
			}
			planned.Groups = append(planned.Groups, pg)
		}

		// Flags only become visible to later steps
		for _, group := range planned.Groups {
			for _, plugin := range group.Selected {
				for _, flag := range plugin.Flags {
					plan.Flags[flag.Name] = flag.Value
				}
			}
		}
		plan.Steps = append(plan.Steps, planned)
	}
	return plan
}

func (p *Planner) planGroup(group *PluginGroup, flags Flags) PlannedGroup {
	pg := PlannedGroup{PluginGroup: group}
	for _, plugin := range sortPlugins(group.Plugins, group.Order) {
		pg.Plugins = append(pg.Plugins, PlannedPlugin{
			Plugin:     plugin,
			Resolution: p.resolver.ResolveType(plugin.Type, flags),
		})
	}
	return pg
}

// DefaultSelection returns the plugins a choice UI should start with.
// SelectAll groups get every usable plugin; other groups get their Required
// and Recommended plugins. Single-choice groups keep only the preferred one,
// and groups that need a choice fall back to the first usable plugin in
// declaration order.
func DefaultSelection(group PlannedGroup) []*Plugin {
	var selected []*Plugin
	switch group.Type {
	case SelectAll:
		for _, p := range group.Plugins {
			if p.Type() != TypeNotUsable {
				selected = append(selected, p.Plugin)
			}
		}
		return selected
	case SelectExactlyOne:
		if p := preferredPlugin(group, true); p != nil {
			return []*Plugin{p}
		}
		return nil
	case SelectAtMostOne:
		if p := preferredPlugin(group, false); p != nil {
			return []*Plugin{p}
		}
		return nil
	}

	for _, p := range group.Plugins {
		if t := p.Type(); t == TypeRequired || t == TypeRecommended {
			selected = append(selected, p.Plugin)
		}
	}
	if len(selected) == 0 && group.Type == SelectAtLeastOne {
		if p := preferredPlugin(group, true); p != nil {
			selected = append(selected, p)
		}
	}
	return selected
}

// preferredPlugin picks a Required plugin, else a Recommended one, else
// (when fallback is set) the first usable plugin. Plugins are considered in
// declaration order, not display order.
func preferredPlugin(group PlannedGroup, fallback bool) *Plugin {
	plugins := declarationOrder(group)
	for _, want := range []PluginType{TypeRequired, TypeRecommended} {
		for _, p := range plugins {
			if p.Type() == want {
				return p.Plugin
			}
		}
	}
	if !fallback {
		return nil
	}
	for _, p := range plugins {
		if p.Type() != TypeNotUsable {
			return p.Plugin
		}
	}
	return nil
}

// declarationOrder returns the group's planned plugins in the order the
// installer declares them
func declarationOrder(group PlannedGroup) []PlannedPlugin {
	if group.PluginGroup == nil || len(group.PluginGroup.Plugins) != len(group.Plugins) {
		return group.Plugins
	}
	byPlugin := make(map[*Plugin]PlannedPlugin, len(group.Plugins))
	for _, p := range group.Plugins {
		byPlugin[p.Plugin] = p
	}
	out := make([]PlannedPlugin, 0, len(group.Plugins))
	for _, p := range group.PluginGroup.Plugins {
		if planned, ok := byPlugin[p]; ok {
			out = append(out, planned)
		}
	}
	return out
}

func sortSteps(steps []*InstallStep, order Order) []*InstallStep {
	out := append([]*InstallStep(nil), steps...)
	sortByName(order, len(out), func(i int) string { return out[i].Name }, func(less func(i, j int) bool) {
		sort.SliceStable(out, less)
	})
	return out
}

func sortGroups(groups []*PluginGroup, order Order) []*PluginGroup {
	out := append([]*PluginGroup(nil), groups...)
	sortByName(order, len(out), func(i int) string { return out[i].Name }, func(less func(i, j int) bool) {
		sort.SliceStable(out, less)
	})
	return out
}

func sortPlugins(plugins []*Plugin, order Order) []*Plugin {
	out := append([]*Plugin(nil), plugins...)
	sortByName(order, len(out), func(i int) string { return out[i].Name }, func(less func(i, j int) bool) {
		sort.SliceStable(out, less)
	})
	return out
}

// sortByName sorts by case-insensitive name for Ascending/Descending; Explicit keeps declaration order
func sortByName(order Order, n int, name func(int) string, sortFn func(func(i, j int) bool)) {
	if order == OrderExplicit || n < 2 {
		return
	}
	sortFn(func(i, j int) bool {
		a, b := strings.ToLower(name(i)), strings.ToLower(name(j))
		if order == OrderDescending {
			return a > b
		}
		return a < b
	})
}
