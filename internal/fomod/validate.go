package fomod

import "fmt"

// GroupValidation is the outcome of checking one group's selection
type GroupValidation struct {
	Step     string
	Group    string
	Problems []string
}

// Valid reports whether the selection passed every check
func (v GroupValidation) Valid() bool {
	return len(v.Problems) == 0
}

// ValidateGroup checks a selection against the group's cardinality rule,
// requires every Required plugin and rejects NotUsable plugins.
func ValidateGroup(group PlannedGroup, chosen []*Plugin) GroupValidation {
	result := GroupValidation{Group: group.Name}

	picked := make(map[*Plugin]bool, len(chosen))
	for _, p := range chosen {
		picked[p] = true
	}
	n := len(picked)

	switch group.Type {
	case SelectExactlyOne:
		if n != 1 {
			result.Problems = append(result.Problems, fmt.Sprintf("exactly one option must be selected, got %d", n))
		}
	case SelectAtMostOne:
		if n > 1 {
			result.Problems = append(result.Problems, fmt.Sprintf("at most one option may be selected, got %d", n))
		}
	case SelectAtLeastOne:
		if n < 1 {
			result.Problems = append(result.Problems, "at least one option must be selected")
		}
	case SelectAll:
		for _, p := range group.Plugins {
			if p.Type() != TypeNotUsable && !picked[p.Plugin] {
				result.Problems = append(result.Problems, fmt.Sprintf("%q must be selected", p.Name))
			}
		}
	}

	for _, p := range group.Plugins {
		switch p.Type() {
		case TypeRequired:
			if !picked[p.Plugin] && group.Type != SelectAll {
				result.Problems = append(result.Problems, fmt.Sprintf("required option %q is not selected", p.Name))
			}
		case TypeNotUsable:
			if picked[p.Plugin] {
				result.Problems = append(result.Problems, fmt.Sprintf("option %q is not usable", p.Name))
			}
		}
	}
	return result
}

// Validate checks the effective selection of every group in the plan.
// Only failing groups are returned.
func (p *InstallPlan) Validate() []GroupValidation {
	var failed []GroupValidation
	for _, step := range p.Steps {
		for _, group := range step.Groups {
			v := ValidateGroup(group, group.Selected)
			v.Step = step.Name
			if !v.Valid() {
				failed = append(failed, v)
			}
		}
	}
	return failed
}
