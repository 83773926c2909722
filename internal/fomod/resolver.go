package fomod

import (
	"strings"

	"github.com/DonovanMods/stellar-mod-loader/internal/pathutil"

	goversion "github.com/hashicorp/go-version"
	"github.com/rs/zerolog"
)

// Flags holds condition flag values accumulated from selected plugins
type Flags map[string]string

// Clone returns a copy of the flags
func (f Flags) Clone() Flags {
	out := make(Flags, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ModFile is a file of the mod being installed, as currently selected
type ModFile struct {
	Path    string // Destination path relative to the data directory
	Enabled bool
}

// InstalledMod is another mod of the active profile
type InstalledMod struct {
	Name    string
	Enabled bool
	Files   []string // Paths relative to the data directory
}

// Environment is everything the resolver can look at to decide file states
type Environment struct {
	ModFiles      []ModFile      // The mod being installed
	ExternalFiles []string       // Files already present in the game and data directories
	InstalledMods []InstalledMod // Other mods of the active profile
	GameVersion   string         // Empty when the installed version is unknown
}

// Resolver evaluates composite dependencies against an Environment
type Resolver struct {
	env    Environment
	policy pathutil.Policy
	logger zerolog.Logger

	modFiles  map[string]bool
	external  map[string]bool
	installed []map[string]bool
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger used to report skipped conditions
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithPathPolicy overrides the path comparison policy (case-insensitive by default)
func WithPathPolicy(p pathutil.Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// NewResolver creates a resolver over the given environment
func NewResolver(env Environment, opts ...Option) *Resolver {
	r := &Resolver{
		env:    env,
		policy: pathutil.Policy{FoldCase: true},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.modFiles = make(map[string]bool, len(env.ModFiles))
	for _, f := range env.ModFiles {
		key := r.policy.Key(f.Path)
		r.modFiles[key] = r.modFiles[key] || f.Enabled
	}
	r.external = make(map[string]bool, len(env.ExternalFiles))
	for _, f := range env.ExternalFiles {
		r.external[r.policy.Key(f)] = true
	}
	r.installed = make([]map[string]bool, len(env.InstalledMods))
	for i, mod := range env.InstalledMods {
		set := make(map[string]bool, len(mod.Files))
		for _, f := range mod.Files {
			set[r.policy.Key(f)] = true
		}
		r.installed[i] = set
	}
	return r
}

// FileState returns the state of a file as seen by this installer
func (r *Resolver) FileState(path string) FileState {
	key := r.policy.Key(path)
	if key == "" {
		return FileMissing
	}

	if enabled, ok := r.modFiles[key]; ok {
		if enabled {
			return FileActive
		}
		return FileInactive
	}

	if r.external[key] {
		return FileActive
	}

	state := FileMissing
	for i, mod := range r.env.InstalledMods {
		if !r.installed[i][key] {
			continue
		}
		if mod.Enabled {
			return FileActive
		}
		state = FileInactive
	}
	return state
}

// Evaluate reports whether dep is satisfied under flags. A nil or empty dependency is satisfied.
func (r *Resolver) Evaluate(dep *CompositeDependency, flags Flags) bool {
	if dep.IsEmpty() {
		return true
	}

	var results []bool
	for _, f := range dep.Files {
		results = append(results, r.FileState(f.File) == f.State)
	}
	for _, f := range dep.Flags {
		results = append(results, flagMatches(flags, f))
	}
	for _, nested := range dep.Nested {
		results = append(results, r.Evaluate(nested, flags))
	}
	if dep.Game != nil {
		results = append(results, r.gameVersionSatisfied(dep.Game.Version))
	}
	if dep.Fomm != nil {
		r.logger.Warn().Str("version", dep.Fomm.Version).Msg("fommDependency is not supported, ignoring")
	}

	if len(results) == 0 {
		return true
	}
	if dep.Operator == OperatorOr {
		for _, ok := range results {
			if ok {
				return true
			}
		}
		return false
	}
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

func flagMatches(flags Flags, dep FlagDependency) bool {
	value := flags[dep.Flag]
	if dep.Value == "" {
		return value == ""
	}
	return value == dep.Value
}

// gameVersionSatisfied compares the installed game version with a required minimum.
// An unknown or unparsable version skips the check.
func (r *Resolver) gameVersionSatisfied(required string) bool {
	installedRaw := strings.TrimSpace(r.env.GameVersion)
	if installedRaw == "" || strings.TrimSpace(required) == "" {
		r.logger.Debug().Str("required", required).Msg("game version unknown, skipping gameDependency")
		return true
	}

	installed, err := goversion.NewVersion(installedRaw)
	if err != nil {
		r.logger.Debug().Err(err).Str("installed", installedRaw).Msg("unparsable game version, skipping gameDependency")
		return true
	}
	want, err := goversion.NewVersion(strings.TrimSpace(required))
	if err != nil {
		r.logger.Warn().Err(err).Str("required", required).Msg("unparsable gameDependency version, skipping")
		return true
	}
	return installed.GreaterThanOrEqual(want)
}

// ResolutionSource tells which branch produced a plugin type
type ResolutionSource int

const (
	UsedDefault       ResolutionSource = iota // No pattern matched; the default type applies
	ResolvedByPattern                         // A dependency pattern matched
)

// TypeResolution is the effective type of a plugin and how it was obtained
type TypeResolution struct {
	Type    PluginType
	Source  ResolutionSource
	Pattern int // Index of the matching pattern, -1 for UsedDefault
}

// ResolveType computes a plugin's effective type. The first pattern whose
// dependencies hold wins; otherwise the default type applies.
func (r *Resolver) ResolveType(td TypeDescriptor, flags Flags) TypeResolution {
	for i, p := range td.Patterns {
		if r.Evaluate(p.Dependencies, flags) {
			return TypeResolution{Type: p.Type, Source: ResolvedByPattern, Pattern: i}
		}
	}
	t := td.Type
	if t == "" {
		t = TypeOptional
	}
	return TypeResolution{Type: t, Source: UsedDefault, Pattern: -1}
}
