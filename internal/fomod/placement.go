package fomod

import (
	"path/filepath"
	"sort"

	"github.com/DonovanMods/stellar-mod-loader/internal/orderedmap"
	"github.com/DonovanMods/stellar-mod-loader/internal/pathutil"
)

// FileMap maps candidate source paths to destinations relative to the data root
type FileMap = orderedmap.Map[string, string]

// Placement is everything needed to compute the final file map of an import
type Placement struct {
	Installer  *Installer   // Nil for mods without a FOMOD installer
	Plan       *InstallPlan // Selections of the visible steps, nil when there are none
	Candidates []string     // Files of the import source, relative to it
	DataRoot   string       // Detected data root, relative to the import source
}

type placed struct {
	source   string
	dest     string
	priority int
}

// ResolveFileMap computes the source to destination map of an import.
// Without an installer config every candidate under the data root is kept.
// Otherwise the selected plugins' files, the satisfied conditional installs
// and the required files are merged; when two sources land on the same
// destination the higher priority wins, then the later entry. A source
// listed with several destinations keeps the last one.
// The result depends only on its inputs.
func (r *Resolver) ResolveFileMap(p Placement) (*FileMap, Flags) {
	out := orderedmap.New[string, string]()
	flags := Flags{}

	if p.Installer == nil || p.Installer.Config == nil {
		for _, c := range p.Candidates {
			if rel, ok := r.policy.StripDir(c, p.DataRoot); ok && rel != "" {
				out.Set(pathutil.Normalize(c), rel)
			}
		}
		return out, flags
	}

	cfg := p.Installer.Config
	var entries []FileEntry
	if p.Plan != nil {
		for _, plugin := range p.Plan.SelectedPlugins() {
			entries = append(entries, plugin.Files...)
			for _, flag := range plugin.Flags {
				flags[flag.Name] = flag.Value
			}
		}
	}
	for _, cond := range cfg.ConditionalFileInstalls {
		if r.Evaluate(cond.Dependencies, flags) {
			entries = append(entries, cond.Files...)
		}
	}
	entries = append(entries, cfg.RequiredInstallFiles...)

	var all []placed
	for _, e := range entries {
		all = append(all, r.expand(e, p.Candidates, p.DataRoot)...)
	}

	// Stable by priority so equal priorities keep merge order
	sort.SliceStable(all, func(i, j int) bool { return all[i].priority < all[j].priority })

	owner := make(map[string]string, len(all))   // destination key -> source
	current := make(map[string]string, len(all)) // source -> destination key
	for _, e := range all {
		key := r.policy.Key(e.dest)
		if prev, ok := owner[key]; ok && prev != e.source {
			out.Delete(prev)
			delete(current, prev)
		}
		// A source lands in one place only; a later destination replaces the earlier one
		if old, ok := current[e.source]; ok && old != key {
			dropped, _ := out.Get(e.source)
			r.logger.Debug().Str("source", e.source).Str("dropped", dropped).Str("destination", e.dest).Msg("installer maps a file to several destinations, keeping the last")
			delete(owner, old)
		}
		owner[key] = e.source
		current[e.source] = key
		out.Set(e.source, e.dest)
	}
	return out, flags
}

// expand resolves one file entry against the candidate list.
// Sources that match no candidate are dropped.
func (r *Resolver) expand(e FileEntry, candidates []string, dataRoot string) []placed {
	source := pathutil.Normalize(filepath.Join(pathutil.Normalize(dataRoot), pathutil.Normalize(e.Source)))
	dest := pathutil.Normalize(e.Destination)

	var out []placed
	if !e.Folder {
		for _, c := range candidates {
			if r.policy.Equal(c, source) {
				if dest == "" {
					dest = filepath.Base(pathutil.Normalize(c))
				}
				out = append(out, placed{source: pathutil.Normalize(c), dest: dest, priority: e.Priority})
				break
			}
		}
		if len(out) == 0 {
			r.logger.Debug().Str("source", e.Source).Msg("installer file not found in mod")
		}
		return out
	}

	for _, c := range candidates {
		rel, ok := r.policy.StripDir(c, source)
		if !ok || rel == "" {
			continue
		}
		out = append(out, placed{
			source:   pathutil.Normalize(c),
			dest:     pathutil.Normalize(filepath.Join(dest, rel)),
			priority: e.Priority,
		})
	}
	return out
}
