package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/DonovanMods/stellar-mod-loader/internal/fomod"
)

// installerOption is one --option value: the plugins to pick in a step's group
type installerOption struct {
	Step    string
	Group   string
	Plugins []string
}

func (o installerOption) String() string {
	return o.Step + "/" + o.Group + "=" + strings.Join(o.Plugins, ",")
}

// parseInstallerOption parses "Step/Group=Plugin[,Plugin]". The last slash
// before '=' separates the step from the group.
func parseInstallerOption(s string) (installerOption, error) {
	path, plugins, ok := strings.Cut(s, "=")
	if !ok {
		return installerOption{}, fmt.Errorf("invalid installer option %q: expected Step/Group=Plugin[,Plugin]", s)
	}
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return installerOption{}, fmt.Errorf("invalid installer option %q: expected Step/Group before '='", s)
	}

	opt := installerOption{
		Step:  strings.TrimSpace(path[:idx]),
		Group: strings.TrimSpace(path[idx+1:]),
	}
	for _, p := range strings.Split(plugins, ",") {
		if p = strings.TrimSpace(p); p != "" {
			opt.Plugins = append(opt.Plugins, p)
		}
	}
	if len(opt.Plugins) == 0 {
		return installerOption{}, fmt.Errorf("invalid installer option %q: no plugins given", s)
	}
	return opt, nil
}

func parseInstallerOptions(values []string) ([]installerOption, error) {
	out := make([]installerOption, 0, len(values))
	for _, v := range values {
		opt, err := parseInstallerOption(v)
		if err != nil {
			return nil, err
		}
		out = append(out, opt)
	}
	return out, nil
}

// selectInstallerOptions applies the options to an installer. Choosing a plugin
// can reveal later steps, so the plan is recomputed until every option found
// its group or no option matches anymore. The final plan must validate.
func selectInstallerOptions(apply func(fomod.Choices) *fomod.InstallPlan, options []installerOption) (*fomod.InstallPlan, error) {
	choices := fomod.Choices{}
	used := make([]bool, len(options))
	plan := apply(choices)

	for range len(options) + 1 {
		changed := false
		for _, step := range plan.Steps {
			for _, group := range step.Groups {
				for i, opt := range options {
					if used[i] || !strings.EqualFold(step.Name, opt.Step) || !strings.EqualFold(group.Name, opt.Group) {
						continue
					}
					picks, err := pickPlugins(group, opt.Plugins)
					if err != nil {
						return nil, fmt.Errorf("installer option %s: %w", opt, err)
					}
					choices[group.PluginGroup] = picks
					used[i] = true
					changed = true
				}
			}
		}
		if !changed {
			break
		}
		plan = apply(choices)
	}

	for i, opt := range options {
		if !used[i] {
			return nil, fmt.Errorf("installer option %s matches no visible step and group", opt)
		}
	}

	if failed := plan.Validate(); len(failed) > 0 {
		var problems []string
		for _, v := range failed {
			problems = append(problems, fmt.Sprintf("%s/%s: %s", v.Step, v.Group, strings.Join(v.Problems, "; ")))
		}
		return nil, fmt.Errorf("invalid installer selection:\n  %s", strings.Join(problems, "\n  "))
	}
	return plan, nil
}

func pickPlugins(group fomod.PlannedGroup, names []string) ([]*fomod.Plugin, error) {
	picks := make([]*fomod.Plugin, 0, len(names))
	for _, name := range names {
		var found *fomod.Plugin
		for _, p := range group.Plugins {
			if strings.EqualFold(p.Name, name) {
				found = p.Plugin
				break
			}
		}
		if found == nil {
			available := make([]string, len(group.Plugins))
			for i, p := range group.Plugins {
				available[i] = p.Name
			}
			return nil, fmt.Errorf("no plugin %q in group %s; available: %s", name, group.Name, strings.Join(available, ", "))
		}
		picks = append(picks, found)
	}
	return picks, nil
}

// printInstallPlan lists every visible group with its options, marking the selected ones
func printInstallPlan(out io.Writer, plan *fomod.InstallPlan) {
	for _, step := range plan.Steps {
		fmt.Fprintf(out, "  %s\n", heading(step.Name))
		for _, group := range step.Groups {
			selected := make(map[*fomod.Plugin]bool, len(group.Selected))
			for _, p := range group.Selected {
				selected[p] = true
			}
			fmt.Fprintf(out, "    %s %s\n", group.Name, colorMuted("("+string(group.Type)+")"))
			for _, p := range group.Plugins {
				mark := " "
				if selected[p.Plugin] {
					mark = colorGreen("*")
				}
				fmt.Fprintf(out, "      [%s] %s %s\n", mark, p.Name, colorMuted(string(p.Type())))
			}
		}
	}
}
