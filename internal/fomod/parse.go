package fomod

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ParseModuleConfig decodes a ModuleConfig.xml document
func ParseModuleConfig(data []byte) (*ModuleConfig, error) {
	root, err := readRoot(data)
	if err != nil {
		return nil, fmt.Errorf("reading module config: %w", err)
	}
	if !strings.EqualFold(root.Tag, "config") {
		return nil, fmt.Errorf("unexpected root element %q, want config", root.Tag)
	}

	cfg := &ModuleConfig{
		ModuleName:  strings.TrimSpace(text(child(root, "moduleName"))),
		ModuleImage: attr(child(root, "moduleImage"), "path"),
	}

	if deps := child(root, "moduleDependencies"); deps != nil {
		cfg.ModuleDependencies = parseComposite(deps)
	}
	if files := child(root, "requiredInstallFiles"); files != nil {
		cfg.RequiredInstallFiles = parseFileList(files)
	}

	if steps := child(root, "installSteps"); steps != nil {
		cfg.StepOrder = parseOrder(attr(steps, "order"))
		for _, el := range children(steps, "installStep") {
			cfg.InstallSteps = append(cfg.InstallSteps, parseStep(el))
		}
	}

	if cond := child(root, "conditionalFileInstalls"); cond != nil {
		for _, pattern := range children(child(cond, "patterns"), "pattern") {
			cfg.ConditionalFileInstalls = append(cfg.ConditionalFileInstalls, ConditionalInstall{
				Dependencies: parseComposite(child(pattern, "dependencies")),
				Files:        parseFileList(child(pattern, "files")),
			})
		}
	}

	return cfg, nil
}

// ParseInfo decodes an info.xml document
func ParseInfo(data []byte) (*Info, error) {
	root, err := readRoot(data)
	if err != nil {
		return nil, fmt.Errorf("reading info: %w", err)
	}

	info := &Info{
		Name:        strings.TrimSpace(text(child(root, "Name"))),
		Author:      strings.TrimSpace(text(child(root, "Author"))),
		Version:     strings.TrimSpace(text(child(root, "Version"))),
		Website:     strings.TrimSpace(text(child(root, "Website"))),
		Description: strings.TrimSpace(text(child(root, "Description"))),
	}
	for _, g := range children(child(root, "Groups"), "element") {
		if name := strings.TrimSpace(g.Text()); name != "" {
			info.Groups = append(info.Groups, name)
		}
	}
	return info, nil
}

func readRoot(data []byte) (*etree.Element, error) {
	decoded, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	// Text is already UTF-8; ignore whatever the declaration claims
	doc.ReadSettings.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := doc.ReadFromBytes(decoded); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}
	return root, nil
}

func parseStep(el *etree.Element) *InstallStep {
	step := &InstallStep{
		Name:    attr(el, "name"),
		Visible: parseComposite(child(el, "visible")),
	}
	groups := child(el, "optionalFileGroups")
	step.GroupOrder = parseOrder(attr(groups, "order"))
	for _, g := range children(groups, "group") {
		step.Groups = append(step.Groups, parseGroup(g))
	}
	return step
}

func parseGroup(el *etree.Element) *PluginGroup {
	group := &PluginGroup{
		Name: attr(el, "name"),
		Type: parseGroupType(attr(el, "type")),
	}
	plugins := child(el, "plugins")
	group.Order = parseOrder(attr(plugins, "order"))
	for _, p := range children(plugins, "plugin") {
		group.Plugins = append(group.Plugins, parsePlugin(p))
	}
	return group
}

func parsePlugin(el *etree.Element) *Plugin {
	plugin := &Plugin{
		Name:        attr(el, "name"),
		Description: strings.TrimSpace(text(child(el, "description"))),
		Image:       attr(child(el, "image"), "path"),
		Files:       parseFileList(child(el, "files")),
		Type:        TypeDescriptor{Type: TypeOptional},
	}

	for _, f := range children(child(el, "conditionFlags"), "flag") {
		plugin.Flags = append(plugin.Flags, ConditionFlag{
			Name:  attr(f, "name"),
			Value: strings.TrimSpace(f.Text()),
		})
	}

	if td := child(el, "typeDescriptor"); td != nil {
		if dt := child(td, "dependencyType"); dt != nil {
			plugin.Type.Type = parsePluginType(attr(child(dt, "defaultType"), "name"))
			for _, p := range children(child(dt, "patterns"), "pattern") {
				plugin.Type.Patterns = append(plugin.Type.Patterns, TypePattern{
					Dependencies: parseComposite(child(p, "dependencies")),
					Type:         parsePluginType(attr(child(p, "type"), "name")),
				})
			}
		} else if t := child(td, "type"); t != nil {
			plugin.Type.Type = parsePluginType(attr(t, "name"))
		}
	}
	return plugin
}

// parseComposite decodes any element shaped like a compositeDependency
func parseComposite(el *etree.Element) *CompositeDependency {
	if el == nil {
		return nil
	}

	dep := &CompositeDependency{Operator: OperatorAnd}
	if strings.EqualFold(attr(el, "operator"), string(OperatorOr)) {
		dep.Operator = OperatorOr
	}

	for _, c := range el.ChildElements() {
		switch strings.ToLower(c.Tag) {
		case "filedependency":
			dep.Files = append(dep.Files, FileDependency{
				File:  attr(c, "file"),
				State: parseFileState(attr(c, "state")),
			})
		case "flagdependency":
			dep.Flags = append(dep.Flags, FlagDependency{
				Flag:  attr(c, "flag"),
				Value: attr(c, "value"),
			})
		case "gamedependency":
			dep.Game = &VersionDependency{Version: attr(c, "version")}
		case "fommdependency":
			dep.Fomm = &VersionDependency{Version: attr(c, "version")}
		case "dependencies":
			dep.Nested = append(dep.Nested, parseComposite(c))
		}
	}
	return dep
}

func parseFileList(el *etree.Element) []FileEntry {
	if el == nil {
		return nil
	}

	var files []FileEntry
	for _, c := range el.ChildElements() {
		tag := strings.ToLower(c.Tag)
		if tag != "file" && tag != "folder" {
			continue
		}
		entry := FileEntry{
			Source:          attr(c, "source"),
			Folder:          tag == "folder",
			AlwaysInstall:   parseBool(attr(c, "alwaysInstall")),
			InstallIfUsable: parseBool(attr(c, "installIfUsable")),
		}
		// An absent destination means "same as source"; an empty one means the data root
		if a := c.SelectAttr("destination"); a != nil {
			entry.Destination = a.Value
		} else {
			entry.Destination = entry.Source
		}
		if p, err := strconv.Atoi(attr(c, "priority")); err == nil {
			entry.Priority = p
		}
		files = append(files, entry)
	}
	return files
}

func parseOrder(s string) Order {
	switch strings.ToLower(s) {
	case "descending":
		return OrderDescending
	case "explicit":
		return OrderExplicit
	default:
		return OrderAscending
	}
}

func parseGroupType(s string) GroupType {
	for _, t := range []GroupType{SelectAll, SelectAny, SelectAtLeastOne, SelectAtMostOne, SelectExactlyOne} {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return SelectAny
}

func parsePluginType(s string) PluginType {
	for _, t := range []PluginType{TypeRequired, TypeRecommended, TypeOptional, TypeCouldBeUsable, TypeNotUsable} {
		if strings.EqualFold(s, string(t)) {
			return t
		}
	}
	return TypeOptional
}

func parseFileState(s string) FileState {
	switch strings.ToLower(s) {
	case "missing":
		return FileMissing
	case "inactive":
		return FileInactive
	default:
		return FileActive
	}
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

// child returns the first child element whose tag matches case-insensitively
func child(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if strings.EqualFold(c.Tag, tag) {
			return c
		}
	}
	return nil
}

// children returns every child element whose tag matches case-insensitively
func children(el *etree.Element, tag string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if strings.EqualFold(c.Tag, tag) {
			out = append(out, c)
		}
	}
	return out
}

func attr(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	for _, a := range el.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Value
		}
	}
	return ""
}

func text(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}
