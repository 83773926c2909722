// Package fomod decodes FOMOD installer descriptors and evaluates them: it
// resolves composite dependencies, plans the visible install steps and
// computes the final source to destination file map of an install.
package fomod

// Operator combines the conditions of a composite dependency
type Operator string

const (
	OperatorAnd Operator = "And"
	OperatorOr  Operator = "Or"
)

// FileState is the required state of a file dependency
type FileState string

const (
	FileMissing  FileState = "Missing"
	FileInactive FileState = "Inactive"
	FileActive   FileState = "Active"
)

// PluginType describes how a plugin may be chosen
type PluginType string

const (
	TypeRequired      PluginType = "Required"
	TypeRecommended   PluginType = "Recommended"
	TypeOptional      PluginType = "Optional"
	TypeCouldBeUsable PluginType = "CouldBeUsable"
	TypeNotUsable     PluginType = "NotUsable"
)

// GroupType is the cardinality rule of a plugin group
type GroupType string

const (
	SelectAll        GroupType = "SelectAll"
	SelectAny        GroupType = "SelectAny"
	SelectAtLeastOne GroupType = "SelectAtLeastOne"
	SelectAtMostOne  GroupType = "SelectAtMostOne"
	SelectExactlyOne GroupType = "SelectExactlyOne"
)

// Order controls how steps, groups and plugins are sorted
type Order string

const (
	OrderAscending  Order = "Ascending"
	OrderDescending Order = "Descending"
	OrderExplicit   Order = "Explicit"
)

// FileDependency requires a file to be in a given state
type FileDependency struct {
	File  string
	State FileState
}

// FlagDependency requires a condition flag to hold a value
type FlagDependency struct {
	Flag  string
	Value string
}

// VersionDependency requires a minimum version of the game or of the installer tool
type VersionDependency struct {
	Version string
}

// CompositeDependency is a boolean tree of dependency conditions
type CompositeDependency struct {
	Operator Operator
	Files    []FileDependency
	Flags    []FlagDependency
	Nested   []*CompositeDependency
	Game     *VersionDependency
	Fomm     *VersionDependency
}

// IsEmpty reports whether the dependency has no conditions at all
func (d *CompositeDependency) IsEmpty() bool {
	return d == nil || (len(d.Files) == 0 && len(d.Flags) == 0 && len(d.Nested) == 0 && d.Game == nil && d.Fomm == nil)
}

// FileEntry maps a file or folder of the archive to a destination inside the data directory
type FileEntry struct {
	Source          string
	Destination     string
	Folder          bool
	Priority        int
	AlwaysInstall   bool
	InstallIfUsable bool
}

// ConditionFlag is a flag set when its plugin is selected
type ConditionFlag struct {
	Name  string
	Value string
}

// TypePattern assigns a plugin type when its dependencies are satisfied
type TypePattern struct {
	Dependencies *CompositeDependency
	Type         PluginType
}

// TypeDescriptor is a plugin's static type or its dependency-driven type patterns
type TypeDescriptor struct {
	Type     PluginType    // Static type, or the default type of a pattern list
	Patterns []TypePattern // Non-empty for dependencyType descriptors
}

// Plugin is a selectable option of a plugin group
type Plugin struct {
	Name        string
	Description string
	Image       string
	Files       []FileEntry
	Flags       []ConditionFlag
	Type        TypeDescriptor
}

// PluginGroup is a set of plugins sharing a cardinality rule
type PluginGroup struct {
	Name    string
	Type    GroupType
	Order   Order
	Plugins []*Plugin
}

// InstallStep is one page of the installer
type InstallStep struct {
	Name       string
	Visible    *CompositeDependency
	GroupOrder Order
	Groups     []*PluginGroup
}

// ConditionalInstall installs files when its dependencies are satisfied
type ConditionalInstall struct {
	Dependencies *CompositeDependency
	Files        []FileEntry
}

// ModuleConfig is the decoded content of ModuleConfig.xml
type ModuleConfig struct {
	ModuleName              string
	ModuleImage             string
	ModuleDependencies      *CompositeDependency
	RequiredInstallFiles    []FileEntry
	StepOrder               Order
	InstallSteps            []*InstallStep
	ConditionalFileInstalls []ConditionalInstall
}

// Info is the decoded content of info.xml
type Info struct {
	Name        string
	Author      string
	Version     string
	Website     string
	Description string
	Groups      []string
}

// Installer is a FOMOD installer detected inside a mod
type Installer struct {
	Info       *Info         // Optional metadata
	Config     *ModuleConfig // Nil when ModuleConfig.xml is absent or unreadable
	ZeroConfig bool          // True when no install steps need user choices
}
