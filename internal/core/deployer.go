package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/linker"
	"github.com/DonovanMods/stellar-mod-loader/internal/logging"
	"github.com/DonovanMods/stellar-mod-loader/internal/pathutil"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/db"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/modstore"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DeployOptions controls a deploy
type DeployOptions struct {
	DeployPlugins       bool // Write the plugin list file
	NormalizePathCasing bool // Lower-case directory names of regular mod files
}

// DeployEventKind identifies a deployment lifecycle event
type DeployEventKind string

const (
	EventDeployStarted     DeployEventKind = "deploy_started"
	EventPluginListWritten DeployEventKind = "plugin_list_written"
	EventModDeployed       DeployEventKind = "mod_deployed"
	EventDeployFinished    DeployEventKind = "deploy_finished"
	EventDeployFailed      DeployEventKind = "deploy_failed"
	EventUndeployStarted   DeployEventKind = "undeploy_started"
	EventUndeployFinished  DeployEventKind = "undeploy_finished"
)

// DeployEvent reports progress of a deploy or undeploy
type DeployEvent struct {
	Kind    DeployEventKind
	Profile string
	Mod     string // Set for EventModDeployed
	Files   int    // Files written or removed so far
	Err     error  // Set for EventDeployFailed
}

// EventSink receives deployment events. Implementations must be safe to call
// from the goroutine running the deploy.
type EventSink interface {
	OnDeployEvent(DeployEvent)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(DeployEvent)

// OnDeployEvent calls f
func (f EventSinkFunc) OnDeployEvent(e DeployEvent) { f(e) }

// Deployer materializes a profile's mods in the game directories and removes them again
type Deployer struct {
	store         *modstore.Store
	ledger        *db.DB
	sink          EventSink
	logger        zerolog.Logger
	policy        pathutil.Policy
	pluginBackups int
	now           func() time.Time
}

// DeployerOption configures a Deployer
type DeployerOption func(*Deployer)

// WithLedger records file ownership and deployment history in database
func WithLedger(database *db.DB) DeployerOption {
	return func(d *Deployer) { d.ledger = database }
}

// WithEventSink delivers deployment events to sink
func WithEventSink(sink EventSink) DeployerOption {
	return func(d *Deployer) { d.sink = sink }
}

// WithCasePolicy sets how deployed paths are matched against existing files
func WithCasePolicy(policy pathutil.Policy) DeployerOption {
	return func(d *Deployer) { d.policy = policy }
}

// NewDeployer creates a deployer reading mod files from store
func NewDeployer(store *modstore.Store, logger zerolog.Logger, opts ...DeployerOption) *Deployer {
	d := &Deployer{
		store:         store,
		logger:        logging.Component(logger, "deployer"),
		policy:        pathutil.Policy{FoldCase: true},
		pluginBackups: DefaultPluginBackups,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MarkerPath returns the deployment marker location inside a mod directory
func MarkerPath(modDir string) string {
	return filepath.Join(modDir, domain.DeploymentMarkerName)
}

// ReadMarker loads the deployment marker of modDir. Returns nil when nothing is deployed.
func ReadMarker(modDir string) (*domain.DeploymentMetadata, error) {
	data, err := os.ReadFile(MarkerPath(modDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading deployment marker: %w", err)
	}
	var meta domain.DeploymentMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing deployment marker: %w", err)
	}
	return &meta, nil
}

func writeMarker(modDir string, meta *domain.DeploymentMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding deployment marker: %w", err)
	}
	if err := os.WriteFile(MarkerPath(modDir), data, 0644); err != nil {
		return fmt.Errorf("writing deployment marker: %w", err)
	}
	return nil
}

// IsDeployed reports whether profile is the one deployed in its game's mod directory
func (d *Deployer) IsDeployed(profile *domain.Profile, game *domain.Game) bool {
	inst := profile.Installation(game)
	if inst.ModDir == "" {
		return false
	}
	meta, err := ReadMarker(inst.ModDir)
	return err == nil && meta != nil && meta.Profile == profile.Name
}

// deployRun accumulates what one deploy wrote
type deployRun struct {
	profile   string
	method    string
	manifest  []string
	owned     []db.OwnedFile
	conflicts []db.Conflict
	owners    map[string]string // folded absolute path -> mod name
	resolver  *pathutil.CaseResolver
}

func (r *deployRun) metadata() *domain.DeploymentMetadata {
	return &domain.DeploymentMetadata{Profile: r.profile, LinkMethod: r.method, ProfileModFiles: r.manifest}
}

// Deploy writes the enabled files of every enabled mod of profile into the
// game directories. Earlier mods in a list win file conflicts. On failure the
// partial deployment is rolled back and the original error returned.
func (d *Deployer) Deploy(ctx context.Context, profile *domain.Profile, game *domain.Game, opts DeployOptions) error {
	inst := profile.Installation(game)
	if inst.ModDir == "" {
		return fmt.Errorf("%w: no mod directory for profile %q", domain.ErrInvalidConfig, profile.Name)
	}
	log := d.logger.With().Str("profile", profile.Name).Logger()
	done := logging.Operation(log, "deploy")
	defer done()

	if err := os.MkdirAll(inst.ModDir, 0755); err != nil {
		return fmt.Errorf("creating mod directory: %w", err)
	}

	existing, err := ReadMarker(inst.ModDir)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Info().Str("deployed", existing.Profile).Msg("Removing existing deployment first")
		if err := d.undeploy(ctx, existing, inst, game.ID); err != nil {
			return fmt.Errorf("removing existing deployment: %w", err)
		}
	}

	d.emit(DeployEvent{Kind: EventDeployStarted, Profile: profile.Name})
	log.Info().Msg("Deploying profile")

	lnk := linker.New(inst.LinkMethod)
	run := &deployRun{profile: profile.Name, method: lnk.Method().String(), owners: make(map[string]string)}
	if d.policy.FoldCase {
		run.resolver = pathutil.NewCaseResolver()
	}
	depID := d.beginLedger(game.ID, profile.Name)

	if err := d.deploy(ctx, run, profile, inst, game, lnk, opts); err != nil {
		log.Error().Err(err).Int("written", len(run.manifest)).Msg("Deploy failed, rolling back")
		d.rollback(ctx, run, profile, game, inst)
		d.finishLedger(depID, db.StatusFailed, len(run.manifest), err)
		d.emit(DeployEvent{Kind: EventDeployFailed, Profile: profile.Name, Files: len(run.manifest), Err: err})
		return err
	}

	profile.Deployed = len(run.manifest) > 0
	if d.ledger != nil && depID != "" {
		if err := d.ledger.SaveDeployedFiles(depID, game.ID, profile.Name, run.owned, run.conflicts); err != nil {
			log.Warn().Err(err).Msg("Could not record deployed files")
		}
	}
	d.finishLedger(depID, db.StatusDeployed, len(run.manifest), nil)

	log.Info().Int("files", len(run.manifest)).Int("conflicts", len(run.conflicts)).Msg("Deploy finished")
	d.emit(DeployEvent{Kind: EventDeployFinished, Profile: profile.Name, Files: len(run.manifest)})
	return nil
}

func (d *Deployer) deploy(ctx context.Context, run *deployRun, profile *domain.Profile, inst domain.Installation, game *domain.Game, lnk linker.Linker, opts DeployOptions) error {
	if opts.DeployPlugins && len(profile.Plugins) > 0 {
		if inst.PluginListPath == "" {
			return fmt.Errorf("%w for profile %q", domain.ErrPluginListPath, profile.Name)
		}
		listType := game.PluginListType
		if listType == "" {
			listType = domain.PluginListAsterisk
		}
		if err := writePluginList(inst.PluginListPath, listType, profile.Name, profile.Plugins, d.pluginBackups, d.now()); err != nil {
			return err
		}
		d.emit(DeployEvent{Kind: EventPluginListWritten, Profile: profile.Name})
	}

	if profile.ModList(true).Len() > 0 {
		if inst.BaseDir == "" {
			return fmt.Errorf("%w: no game base directory for root mods of profile %q", domain.ErrInvalidConfig, profile.Name)
		}
		if err := d.deployList(ctx, run, profile, true, inst.BaseDir, lnk, false); err != nil {
			return err
		}
	}
	if err := d.deployList(ctx, run, profile, false, inst.ModDir, lnk, opts.NormalizePathCasing); err != nil {
		return err
	}

	if profile.ManageConfigFiles && inst.ConfigDir != "" {
		written, err := applyConfigFiles(d.store.ConfigDir(profile.Name), inst.ConfigDir)
		for _, path := range written {
			run.manifest = append(run.manifest, path)
			run.owned = append(run.owned, db.OwnedFile{Path: path})
		}
		if err != nil {
			return err
		}
	}

	if len(run.manifest) > 0 {
		return writeMarker(inst.ModDir, run.metadata())
	}
	return nil
}

// deployList deploys one mod list in order. Placement is write-if-absent, so
// earlier mods keep the files they share with later ones.
func (d *Deployer) deployList(ctx context.Context, run *deployRun, profile *domain.Profile, root bool, destDir string, lnk linker.Linker, normalize bool) error {
	for _, entry := range profile.ModList(root).Entries() {
		if !entry.Value.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		before := len(run.manifest)
		if err := d.deployMod(ctx, run, profile.Name, root, entry.Key, destDir, lnk, normalize); err != nil {
			return fmt.Errorf("deploying mod %s: %w", entry.Key, err)
		}
		d.logger.Debug().Str("mod", entry.Key).Bool("root", root).Int("files", len(run.manifest)-before).Msg("Mod deployed")
		d.emit(DeployEvent{Kind: EventModDeployed, Profile: profile.Name, Mod: entry.Key, Files: len(run.manifest)})
	}
	return nil
}

type placement struct {
	rel    string
	dst    string
	placed bool
	done   bool
}

// deployMod places every stored file of one mod. Files are placed concurrently;
// whatever was placed is recorded even when another file fails.
func (d *Deployer) deployMod(ctx context.Context, run *deployRun, profile string, root bool, mod, destDir string, lnk linker.Linker, normalize bool) error {
	files, err := d.store.ListFiles(profile, root, mod, false)
	if err != nil {
		return err
	}
	srcDir := d.store.ModPath(profile, root, mod)

	results := make([]placement, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		rel := file
		if normalize {
			rel = pathutil.LowerDirs(rel)
		}
		if run.resolver != nil {
			rel = run.resolver.Resolve(destDir, rel)
		}
		dst := filepath.Join(destDir, rel)
		src := filepath.Join(srcDir, file)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			placed, err := lnk.Place(src, dst)
			if err != nil {
				return fmt.Errorf("placing %s: %w", file, err)
			}
			results[i] = placement{rel: rel, dst: dst, placed: placed, done: true}
			return nil
		})
	}
	err = g.Wait()

	// Record placed files before skipped ones so same-mod clashes name the mod as winner
	for _, placedPass := range []bool{true, false} {
		for _, r := range results {
			if !r.done || r.placed != placedPass {
				continue
			}
			d.record(run, r, root, mod)
		}
	}
	return err
}

func (d *Deployer) record(run *deployRun, r placement, root bool, mod string) {
	path := r.rel
	if root {
		path = r.dst
	}
	key := d.policy.Key(r.dst)

	if !r.placed {
		run.conflicts = append(run.conflicts, db.Conflict{Path: path, Winner: run.owners[key], Loser: mod})
		return
	}
	run.owners[key] = mod
	run.manifest = append(run.manifest, path)
	run.owned = append(run.owned, db.OwnedFile{Path: path, ModName: mod, Root: root})
}

// rollback persists the partial manifest and undeploys the same profile.
// It runs to completion even when ctx was canceled.
func (d *Deployer) rollback(ctx context.Context, run *deployRun, profile *domain.Profile, game *domain.Game, inst domain.Installation) {
	if len(run.manifest) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	meta := run.metadata()
	if err := writeMarker(inst.ModDir, meta); err != nil {
		d.logger.Error().Err(err).Msg("Could not persist partial manifest, removing files directly")
		if err := d.undeploy(ctx, meta, inst, game.ID); err != nil {
			d.logger.Error().Err(err).Msg("Rollback failed")
		}
		return
	}
	if err := d.Undeploy(ctx, profile, game); err != nil {
		d.logger.Error().Err(err).Msg("Rollback failed")
	}
}

// Undeploy removes every file recorded in the deployment marker of the
// profile's mod directory. Nothing deployed is a no-op. Removal continues past
// failures; the first error is returned and the marker is kept.
func (d *Deployer) Undeploy(ctx context.Context, profile *domain.Profile, game *domain.Game) error {
	inst := profile.Installation(game)
	if inst.ModDir == "" {
		return nil
	}
	meta, err := ReadMarker(inst.ModDir)
	if err != nil {
		return err
	}
	if meta == nil {
		return nil
	}
	if meta.Profile != profile.Name {
		d.logger.Warn().Str("profile", profile.Name).Str("deployed", meta.Profile).Msg("Undeploying a different profile")
	}

	if err := d.undeploy(ctx, meta, inst, game.ID); err != nil {
		return err
	}
	if meta.Profile == profile.Name {
		profile.Deployed = false
	}
	return nil
}

func (d *Deployer) undeploy(ctx context.Context, meta *domain.DeploymentMetadata, inst domain.Installation, gameID string) error {
	log := d.logger.With().Str("profile", meta.Profile).Logger()
	done := logging.Operation(log, "undeploy")
	defer done()

	d.emit(DeployEvent{Kind: EventUndeployStarted, Profile: meta.Profile})

	method := inst.LinkMethod
	if meta.LinkMethod != "" {
		method = domain.ParseLinkMethod(meta.LinkMethod)
	}
	lnk := linker.New(method)
	log.Debug().Stringer("method", lnk.Method()).Int("files", len(meta.ProfileModFiles)).Msg("Removing deployed files")

	var (
		g       errgroup.Group
		mu      sync.Mutex
		removed int
	)
	g.SetLimit(runtime.NumCPU())
	for _, entry := range meta.ProfileModFiles {
		path, base := resolveManifestPath(entry, inst)
		isConfig := inst.ConfigDir != "" && pathutil.Policy{}.HasPrefixDir(path, inst.ConfigDir)
		remover := lnk
		if isConfig {
			remover = configRemover
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := removeDeployed(remover, path, base, isConfig); err != nil {
				return err
			}
			mu.Lock()
			removed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Int("removed", removed).Msg("Undeploy incomplete")
		return fmt.Errorf("undeploying %s: %w", meta.Profile, err)
	}

	if err := os.Remove(MarkerPath(inst.ModDir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing deployment marker: %w", err)
	}

	if d.ledger != nil {
		if err := d.ledger.ClearDeployedFiles(gameID, meta.Profile); err != nil {
			log.Warn().Err(err).Msg("Could not clear deployed files")
		}
		if latest, err := d.ledger.LatestDeployment(gameID, meta.Profile); err == nil && latest != nil && latest.Status == db.StatusDeployed {
			d.finishLedger(latest.ID, db.StatusUndeployed, latest.FileCount, nil)
		}
	}

	log.Info().Int("files", removed).Msg("Undeploy finished")
	d.emit(DeployEvent{Kind: EventUndeployFinished, Profile: meta.Profile, Files: removed})
	return nil
}

// resolveManifestPath turns a manifest entry into an absolute path and the
// directory where pruning of empty parents stops.
func resolveManifestPath(entry string, inst domain.Installation) (path, base string) {
	if !filepath.IsAbs(entry) {
		return filepath.Join(inst.ModDir, entry), inst.ModDir
	}
	path = filepath.Clean(entry)
	exact := pathutil.Policy{}
	for _, dir := range []string{inst.ConfigDir, inst.ModDir, inst.BaseDir} {
		if dir != "" && exact.HasPrefixDir(path, dir) && len(dir) > len(base) {
			base = filepath.Clean(dir)
		}
	}
	if base == "" {
		base = filepath.Dir(path)
	}
	return path, base
}

// configRemover removes managed config files, which are always copies
var configRemover linker.Linker = linker.NewCopy()

// removeDeployed deletes one deployed file through the linker that placed it,
// restores a config backup when there is one and prunes parent directories left empty.
func removeDeployed(lnk linker.Linker, path, base string, isConfig bool) error {
	if err := lnk.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	if isConfig {
		restored, err := restoreConfigBackup(path)
		if err != nil {
			return err
		}
		if restored {
			return nil
		}
	}
	pruneEmptyDirs(filepath.Dir(path), base)
	return nil
}

// pruneEmptyDirs removes dir and its ancestors while they are empty, stopping at base
func pruneEmptyDirs(dir, base string) {
	base = filepath.Clean(base)
	for {
		dir = filepath.Clean(dir)
		rel, err := filepath.Rel(base, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// ManifestFiles returns the sorted manifest of the deployment in modDir
func ManifestFiles(modDir string) ([]string, error) {
	meta, err := ReadMarker(modDir)
	if err != nil || meta == nil {
		return nil, err
	}
	files := append([]string(nil), meta.ProfileModFiles...)
	sort.Strings(files)
	return files, nil
}

func (d *Deployer) emit(e DeployEvent) {
	if d.sink != nil {
		d.sink.OnDeployEvent(e)
	}
}

func (d *Deployer) beginLedger(gameID, profile string) string {
	if d.ledger == nil {
		return ""
	}
	id, err := d.ledger.BeginDeployment(gameID, profile)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Could not record deployment")
		return ""
	}
	return id
}

func (d *Deployer) finishLedger(id string, status db.DeploymentStatus, files int, deployErr error) {
	if d.ledger == nil || id == "" {
		return
	}
	if err := d.ledger.FinishDeployment(id, status, files, deployErr); err != nil {
		d.logger.Warn().Err(err).Msg("Could not update deployment record")
	}
}
