package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/fomod"
	"github.com/DonovanMods/stellar-mod-loader/internal/logging"
	"github.com/DonovanMods/stellar-mod-loader/internal/pathutil"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/config"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/modstore"

	"github.com/rs/zerolog"
)

// defaultDataDirNames is used when the game declares no data folder names
var defaultDataDirNames = []string{"Data"}

// ImportResult is the outcome of a completed import
type ImportResult struct {
	Root    bool
	ModName string
	ModRef  domain.ModEntry
	Files   int      // Files committed to the mod store
	Plugins []string // Plugins appended to the profile's load order
}

// Importer turns archives and folders into stored profile mods
type Importer struct {
	store      *modstore.Store
	profiles   *config.ProfileStore
	extractor  *Extractor
	stagingDir string
	policy     pathutil.Policy
	logger     zerolog.Logger
}

// NewImporter creates an importer that unpacks archives below stagingDir
func NewImporter(store *modstore.Store, profiles *config.ProfileStore, stagingDir string, policy pathutil.Policy, logger zerolog.Logger) *Importer {
	logger = logging.Component(logger, "importer")
	return &Importer{
		store:      store,
		profiles:   profiles,
		extractor:  NewExtractor(logger),
		stagingDir: stagingDir,
		policy:     policy,
		logger:     logger,
	}
}

// BeginModAdd extracts an archive into <stagingDir>/<modName> and describes
// what importing it would install. Stale staging content is cleared first and
// removed again when extraction fails.
func (i *Importer) BeginModAdd(ctx context.Context, profile *domain.Profile, game *domain.Game, root bool, archivePath string) (*domain.ModImportRequest, error) {
	if !i.extractor.CanExtract(archivePath) {
		i.logger.Error().Str("archive", archivePath).Msg("Unsupported archive format")
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedArchive, filepath.Base(archivePath))
	}
	if _, err := os.Stat(archivePath); err != nil {
		return nil, fmt.Errorf("archive not found: %w", err)
	}

	modName := ModNameFromArchive(archivePath)
	staging := filepath.Join(i.stagingDir, modName)
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("clearing staging directory: %w", err)
	}

	i.logger.Info().Str("archive", archivePath).Str("mod", modName).Msg("Importing archive")
	if err := i.extractor.Extract(ctx, archivePath, staging); err != nil {
		i.removeStaging(staging)
		i.logger.Error().Err(err).Str("archive", archivePath).Msg("Extraction failed")
		return nil, fmt.Errorf("extracting %s: %w", filepath.Base(archivePath), err)
	}

	req, err := i.prepare(profile, game, root, modName, staging, false)
	if err != nil {
		i.removeStaging(staging)
		return nil, err
	}
	return req, nil
}

// BeginModExternalImport describes importing a loose folder. The folder is
// read in place and never modified.
func (i *Importer) BeginModExternalImport(ctx context.Context, profile *domain.Profile, game *domain.Game, root bool, folderPath string) (*domain.ModImportRequest, error) {
	info, err := os.Stat(folderPath)
	if err != nil {
		return nil, fmt.Errorf("mod folder not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", folderPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folderPath = filepath.Clean(folderPath)
	i.logger.Info().Str("folder", folderPath).Msg("Importing folder")
	return i.prepare(profile, game, root, filepath.Base(folderPath), folderPath, true)
}

func (i *Importer) prepare(profile *domain.Profile, game *domain.Game, root bool, modName, modPath string, external bool) (*domain.ModImportRequest, error) {
	files, err := modstore.WalkFiles(modPath)
	if err != nil {
		return nil, fmt.Errorf("listing mod files: %w", err)
	}

	req := &domain.ModImportRequest{
		ProfileName:   profile.Name,
		Root:          root,
		ModName:       modName,
		ModPath:       modPath,
		External:      external,
		FilePaths:     make([]domain.ModFilePath, 0, len(files)),
		MergeStrategy: domain.MergeReplace,
		Status:        domain.ImportPending,
	}
	for _, f := range files {
		req.FilePaths = append(req.FilePaths, domain.ModFilePath{FilePath: f, Enabled: true})
	}

	if !root {
		names := defaultDataDirNames
		if game != nil && len(game.DataDirNames) > 0 {
			names = game.DataDirNames
		}
		req.SubdirRoot = DetectDataRoot(files, names)
	}

	if installer, dataRoot := i.detectInstaller(modPath, files); installer != nil {
		req.Installer = installer
		req.SubdirRoot = dataRoot
	}

	if game != nil {
		for _, f := range files {
			if isPluginFile(game.PluginFormats, f) {
				req.Plugins = append(req.Plugins, f)
			}
		}
	}

	i.ApplyPlacement(profile, game, req, nil)
	i.logger.Debug().
		Str("mod", modName).
		Int("files", len(files)).
		Str("dataRoot", req.SubdirRoot).
		Bool("fomod", req.Installer != nil).
		Msg("Import prepared")
	return req, nil
}

// DetectDataRoot returns the top-level directory of files whose name matches
// one of names (ignoring case), or "" when there is none.
func DetectDataRoot(files []string, names []string) string {
	for _, f := range files {
		top := pathutil.TopLevel(f)
		if top == pathutil.Normalize(f) {
			continue // a file, not a directory
		}
		for _, name := range names {
			if strings.EqualFold(top, name) {
				return top
			}
		}
	}
	return ""
}

// detectInstaller looks for fomod/info.xml and fomod/ModuleConfig.xml and
// returns the parsed installer with the directory holding the fomod folder.
// A broken ModuleConfig.xml leaves an installer without config, which
// installs every file like a mod without one.
func (i *Importer) detectInstaller(modPath string, files []string) (*fomod.Installer, string) {
	var configFile, infoFile string
	for _, f := range files {
		dir, base := filepath.Split(f)
		if !strings.EqualFold(filepath.Base(filepath.Clean(dir)), "fomod") {
			continue
		}
		switch {
		case strings.EqualFold(base, "moduleconfig.xml") && shallower(f, configFile):
			configFile = f
		case strings.EqualFold(base, "info.xml") && shallower(f, infoFile):
			infoFile = f
		}
	}
	if configFile == "" && infoFile == "" {
		return nil, ""
	}

	anchor := configFile
	if anchor == "" {
		anchor = infoFile
	}
	dataRoot := pathutil.Normalize(filepath.Dir(filepath.Dir(anchor)))

	installer := &fomod.Installer{}
	if configFile != "" {
		data, err := os.ReadFile(filepath.Join(modPath, configFile))
		if err == nil {
			installer.Config, err = fomod.ParseModuleConfig(data)
		}
		if err != nil {
			i.logger.Warn().Err(err).Str("file", configFile).Msg("Ignoring unreadable FOMOD config")
			installer.Config = nil
		}
	}
	if infoFile != "" {
		data, err := os.ReadFile(filepath.Join(modPath, infoFile))
		if err == nil {
			installer.Info, err = fomod.ParseInfo(data)
		}
		if err != nil {
			i.logger.Warn().Err(err).Str("file", infoFile).Msg("Ignoring unreadable FOMOD info")
			installer.Info = nil
		}
	}
	installer.ZeroConfig = installer.Config == nil || len(installer.Config.InstallSteps) == 0
	return installer, dataRoot
}

// shallower reports whether candidate has fewer path components than current (or current is unset)
func shallower(candidate, current string) bool {
	if current == "" {
		return true
	}
	sep := string(filepath.Separator)
	return strings.Count(candidate, sep) < strings.Count(current, sep)
}

func isPluginFile(formats []string, file string) bool {
	ext := filepath.Ext(file)
	for _, f := range formats {
		if strings.EqualFold(ext, f) {
			return true
		}
	}
	return false
}

// ApplyPlacement recomputes req.FileMap from the request's enabled files and
// the given installer choices (nil uses the default selections). The returned
// plan is nil for mods without an installer config.
func (i *Importer) ApplyPlacement(profile *domain.Profile, game *domain.Game, req *domain.ModImportRequest, choices fomod.Choices) *fomod.InstallPlan {
	if req.Status == domain.ImportManualInstall {
		req.FileMap = i.manualFileMap(req)
		return nil
	}

	resolver := fomod.NewResolver(i.environment(profile, game, req),
		fomod.WithLogger(i.logger),
		fomod.WithPathPolicy(i.policy),
	)

	var plan *fomod.InstallPlan
	if req.Installer != nil && req.Installer.Config != nil {
		cfg := req.Installer.Config
		if !resolver.Evaluate(cfg.ModuleDependencies, nil) {
			i.logger.Warn().Str("mod", req.ModName).Msg("FOMOD module dependencies are not met")
		}
		plan = fomod.NewPlanner(resolver).Plan(cfg, choices)
	}

	fileMap, _ := resolver.ResolveFileMap(fomod.Placement{
		Installer:  req.Installer,
		Plan:       plan,
		Candidates: req.EnabledFiles(),
		DataRoot:   req.SubdirRoot,
	})
	for _, f := range req.FilePaths {
		src := pathutil.Normalize(f.FilePath)
		if f.Enabled && f.MappedFilePath != "" && fileMap.Has(src) {
			fileMap.Set(src, pathutil.Normalize(f.MappedFilePath))
		}
	}
	req.FileMap = fileMap
	return plan
}

// manualFileMap maps every enabled file to its override or its path below the data root
func (i *Importer) manualFileMap(req *domain.ModImportRequest) *fomod.FileMap {
	out := &fomod.FileMap{}
	for _, f := range req.FilePaths {
		if !f.Enabled {
			continue
		}
		out.Set(pathutil.Normalize(f.FilePath), i.destination(req, f))
	}
	return out
}

// destination is where a candidate lands relative to the data root
func (i *Importer) destination(req *domain.ModImportRequest, f domain.ModFilePath) string {
	if f.MappedFilePath != "" {
		return pathutil.Normalize(f.MappedFilePath)
	}
	if rel, ok := i.policy.StripDir(f.FilePath, req.SubdirRoot); ok {
		return rel
	}
	return pathutil.Normalize(f.FilePath)
}

// environment collects what the FOMOD resolver may look at for this import
func (i *Importer) environment(profile *domain.Profile, game *domain.Game, req *domain.ModImportRequest) fomod.Environment {
	env := fomod.Environment{}
	if game != nil {
		env.GameVersion = game.Version
	}

	for _, f := range req.FilePaths {
		env.ModFiles = append(env.ModFiles, fomod.ModFile{Path: i.destination(req, f), Enabled: f.Enabled})
	}

	if game != nil {
		env.ExternalFiles = i.externalFiles(profile.Installation(game))
	}

	for _, e := range profile.ModList(req.Root).Entries() {
		if e.Key == req.ModName {
			continue
		}
		files, err := i.store.ListFiles(profile.Name, req.Root, e.Key, false)
		if err != nil {
			i.logger.Debug().Err(err).Str("mod", e.Key).Msg("Skipping mod without stored files")
			continue
		}
		env.InstalledMods = append(env.InstalledMods, fomod.InstalledMod{Name: e.Key, Enabled: e.Value.Enabled, Files: files})
	}
	return env
}

// externalFiles lists the files of the game that no deployment wrote. Data
// directory files are relative to the data directory; files elsewhere in the
// game directory are relative to the game directory.
func (i *Importer) externalFiles(inst domain.Installation) []string {
	if inst.ModDir == "" {
		return nil
	}

	deployed := map[string]bool{domain.DeploymentMarkerName: true}
	if meta, err := ReadMarker(inst.ModDir); err == nil && meta != nil {
		for _, p := range meta.ProfileModFiles {
			if filepath.IsAbs(p) {
				p = filepath.Clean(p)
			}
			deployed[p] = true
		}
	}

	var out []string
	dataFiles, err := walkGameFiles(inst.ModDir, "")
	if err != nil {
		i.logger.Debug().Err(err).Str("dir", inst.ModDir).Msg("Could not list game data files")
	}
	for _, f := range dataFiles {
		if !deployed[f] {
			out = append(out, f)
		}
	}

	if inst.BaseDir == "" || filepath.Clean(inst.BaseDir) == filepath.Clean(inst.ModDir) {
		return out
	}
	baseFiles, err := walkGameFiles(inst.BaseDir, inst.ModDir)
	if err != nil {
		i.logger.Debug().Err(err).Str("dir", inst.BaseDir).Msg("Could not list game files")
	}
	for _, f := range baseFiles {
		if !deployed[filepath.Join(inst.BaseDir, f)] {
			out = append(out, f)
		}
	}
	return out
}

// walkGameFiles lists the files below dir relative to it, leaving out the
// subtree at skip. Whatever was listed before an error is returned with it.
func walkGameFiles(dir, skip string) ([]string, error) {
	if skip != "" {
		skip = filepath.Clean(skip)
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skip != "" && filepath.Clean(path) == skip {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	return files, err
}

// CompleteModImport commits the request's file map into the profile's mod
// store, records the mod and its plugins in the profile and saves it. The
// staging directory of an archive import is removed in every case.
func (i *Importer) CompleteModImport(ctx context.Context, profile *domain.Profile, req *domain.ModImportRequest) (*ImportResult, error) {
	defer i.cleanup(req)
	log := i.logger.With().Str("mod", req.ModName).Str("profile", profile.Name).Logger()

	switch req.Status {
	case domain.ImportCanceled:
		log.Info().Msg("Import canceled")
		return nil, domain.ErrImportCanceled
	case domain.ImportFailed:
		log.Error().Err(req.Err).Msg("Import failed")
		if req.Err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrImportFailed, req.Err)
		}
		return nil, domain.ErrImportFailed
	}

	if req.FileMap == nil || req.FileMap.Len() == 0 {
		return nil, fmt.Errorf("%w: no files selected for %s", domain.ErrImportFailed, req.ModName)
	}

	files := make(map[string]string, req.FileMap.Len())
	for _, e := range req.FileMap.Entries() {
		files[filepath.Join(req.ModPath, e.Key)] = e.Value
	}
	if err := i.store.Commit(ctx, profile.Name, req.Root, req.ModName, files, req.MergeStrategy); err != nil {
		return nil, fmt.Errorf("storing mod files: %w", err)
	}

	list := profile.ModList(req.Root)
	entry, exists := list.Get(req.ModName)
	if !exists {
		entry = domain.ModEntry{Enabled: true}
	}
	entry.VerificationError = ""
	list.Set(req.ModName, entry)

	added := i.addPlugins(profile, req)

	if err := i.profiles.Save(profile); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	log.Info().Int("files", len(files)).Int("plugins", len(added)).Msg("Import complete")
	return &ImportResult{
		Root:    req.Root,
		ModName: req.ModName,
		ModRef:  entry,
		Files:   len(files),
		Plugins: added,
	}, nil
}

// addPlugins appends the plugins a regular mod installs at the top of the data
// directory to the profile's load order, enabled, unless already listed
func (i *Importer) addPlugins(profile *domain.Profile, req *domain.ModImportRequest) []string {
	if req.Root {
		return nil
	}
	var added []string
	for _, src := range req.Plugins {
		dest, ok := req.FileMap.Get(pathutil.Normalize(src))
		if !ok || strings.ContainsRune(dest, filepath.Separator) {
			continue
		}
		if profile.PluginIndex(dest) >= 0 {
			continue
		}
		profile.Plugins = append(profile.Plugins, domain.PluginRef{Plugin: dest, Enabled: true, ModID: req.ModName})
		added = append(added, dest)
	}
	return added
}

func (i *Importer) cleanup(req *domain.ModImportRequest) {
	if req.External {
		return
	}
	i.removeStaging(req.ModPath)
}

func (i *Importer) removeStaging(dir string) {
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		i.logger.Warn().Err(err).Str("dir", dir).Msg("Could not remove staging directory")
	}
}

// ReadModFilePaths lists the stored files of a mod relative to its directory,
// sorted. normalize lower-cases directory components.
func (i *Importer) ReadModFilePaths(profile *domain.Profile, modName string, root, normalize bool) ([]string, error) {
	if !i.store.Exists(profile.Name, root, modName) {
		return nil, fmt.Errorf("%w: %s", domain.ErrModNotFound, modName)
	}
	return i.store.ListFiles(profile.Name, root, modName, normalize)
}
