package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
	"github.com/DonovanMods/stellar-mod-loader/internal/fomod"
	"github.com/DonovanMods/stellar-mod-loader/internal/gamedb"
	"github.com/DonovanMods/stellar-mod-loader/internal/logging"
	"github.com/DonovanMods/stellar-mod-loader/internal/pathutil"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/config"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/db"
	"github.com/DonovanMods/stellar-mod-loader/internal/storage/modstore"

	"github.com/rs/zerolog"
)

const ledgerFileName = "sml.db"

// ServiceConfig holds configuration for the core service
type ServiceConfig struct {
	ConfigDir   string         // Directory for configuration files
	DataDir     string         // Directory for the ledger, profiles and staging
	Logger      zerolog.Logger // Zero value logs nothing
	Sink        EventSink      // Optional: receives deploy and undeploy events
	HookTimeout time.Duration  // Zero uses DefaultHookTimeout
}

// Service is the main orchestrator for mod management operations
type Service struct {
	config   *config.Config
	db       *db.DB
	gamedb   gamedb.DB
	games    map[string]*domain.Game
	store    *modstore.Store
	profiles *ProfileManager
	deployer *Deployer
	importer *Importer
	hooks    *HookRunner
	logger   zerolog.Logger

	configDir string
}

// NewService loads configuration, opens the ledger and wires the engines
func NewService(cfg ServiceConfig) (*Service, error) {
	logger := logging.Component(cfg.Logger, "service")

	appConfig, err := config.Load(cfg.ConfigDir, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	known, err := gamedb.Load(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading game database: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.New(filepath.Join(cfg.DataDir, ledgerFileName))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	games, err := config.LoadGames(cfg.ConfigDir)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("loading games: %w", err)
	}

	timeout := cfg.HookTimeout
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}

	policy := pathutil.Policy{FoldCase: appConfig.FoldCase()}
	store := modstore.New(appConfig.ProfilesDir)
	profileStore := config.NewProfileStore(appConfig.ProfilesDir)

	s := &Service{
		config:    appConfig,
		db:        database,
		gamedb:    known,
		games:     games,
		store:     store,
		hooks:     NewHookRunner(timeout, logging.Component(cfg.Logger, "hooks")),
		logger:    logger,
		configDir: cfg.ConfigDir,
	}

	opts := []DeployerOption{WithLedger(database), WithCasePolicy(policy)}
	if cfg.Sink != nil {
		opts = append(opts, WithEventSink(cfg.Sink))
	}
	s.deployer = NewDeployer(store, cfg.Logger, opts...)
	s.importer = NewImporter(store, profileStore, appConfig.StagingDir, policy, cfg.Logger)
	s.profiles = NewProfileManager(profileStore, store, s.deployer, s, cfg.Logger)
	return s, nil
}

// Close releases resources held by the service
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Config returns the application configuration
func (s *Service) Config() *config.Config {
	return s.config
}

// GameDB returns the database of known games
func (s *Service) GameDB() gamedb.DB {
	return s.gamedb
}

// Profiles returns the profile manager
func (s *Service) Profiles() *ProfileManager {
	return s.profiles
}

// Game returns the effective configuration of a configured game: the user's
// settings completed from the game database and the default link method.
func (s *Service) Game(id string) (*domain.Game, error) {
	configured, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGameNotFound, id)
	}
	game := *configured
	if entry, err := s.gamedb.Lookup(id); err == nil {
		entry.Apply(&game)
	}
	if !game.LinkMethodSet {
		game.LinkMethod = s.config.DefaultLinkMethod
	}
	return &game, nil
}

// ListGames returns every configured game, sorted by ID
func (s *Service) ListGames() []*domain.Game {
	ids := config.SortedGameIDs(s.games)
	out := make([]*domain.Game, 0, len(ids))
	for _, id := range ids {
		if game, err := s.Game(id); err == nil {
			out = append(out, game)
		}
	}
	return out
}

// AddGame saves a game to games.yaml
func (s *Service) AddGame(game *domain.Game) error {
	if game.ID == "" {
		return fmt.Errorf("%w: game ID is required", domain.ErrInvalidConfig)
	}
	if game.InstallPath == "" {
		return fmt.Errorf("%w: install path is required for %s", domain.ErrInvalidConfig, game.ID)
	}
	if err := config.SaveGame(s.configDir, game); err != nil {
		return err
	}
	s.games[game.ID] = game
	s.logger.Info().Str("game", game.ID).Str("path", game.InstallPath).Msg("Game saved")
	return nil
}

// RemoveGame deletes a game from games.yaml. Profiles are kept, but none of
// the game's profiles may be deployed.
func (s *Service) RemoveGame(id string) error {
	if _, ok := s.games[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrGameNotFound, id)
	}
	profiles, err := s.profiles.List(id)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if p.Deployed {
			return fmt.Errorf("profile %q of %s is deployed; undeploy it first", p.Name, id)
		}
	}
	if err := config.DeleteGame(s.configDir, id); err != nil {
		return err
	}
	delete(s.games, id)
	s.logger.Info().Str("game", id).Msg("Game removed")
	return nil
}

// DetectGames scans the Steam libraries for known games that are not configured yet
func (s *Service) DetectGames() []domain.Game {
	var out []domain.Game
	for _, game := range s.gamedb.Detect(gamedb.SteamRoots()) {
		if _, ok := s.games[game.ID]; !ok {
			out = append(out, game)
		}
	}
	return out
}

// LoadProfile loads a profile together with its game
func (s *Service) LoadProfile(name string) (*domain.Profile, *domain.Game, error) {
	profile, err := s.profiles.Load(name)
	if err != nil {
		return nil, nil, err
	}
	game, err := s.Game(profile.GameID)
	if err != nil {
		return nil, nil, err
	}
	return profile, game, nil
}

// BeginModAdd extracts an archive and prepares its import into profile
func (s *Service) BeginModAdd(ctx context.Context, profile *domain.Profile, root bool, archivePath string) (*domain.ModImportRequest, error) {
	game, err := s.Game(profile.GameID)
	if err != nil {
		return nil, err
	}
	return s.importer.BeginModAdd(ctx, profile, game, root, archivePath)
}

// BeginModExternalImport prepares importing a loose folder into profile
func (s *Service) BeginModExternalImport(ctx context.Context, profile *domain.Profile, root bool, folderPath string) (*domain.ModImportRequest, error) {
	game, err := s.Game(profile.GameID)
	if err != nil {
		return nil, err
	}
	return s.importer.BeginModExternalImport(ctx, profile, game, root, folderPath)
}

// ApplyPlacement recomputes the file map of req for the given installer choices
func (s *Service) ApplyPlacement(profile *domain.Profile, req *domain.ModImportRequest, choices fomod.Choices) *fomod.InstallPlan {
	game, _ := s.Game(profile.GameID)
	return s.importer.ApplyPlacement(profile, game, req, choices)
}

// CompleteModImport commits a prepared import
func (s *Service) CompleteModImport(ctx context.Context, profile *domain.Profile, req *domain.ModImportRequest) (*ImportResult, error) {
	return s.importer.CompleteModImport(ctx, profile, req)
}

// ReadModFilePaths lists the stored files of a mod
func (s *Service) ReadModFilePaths(profile *domain.Profile, modName string, root, normalize bool) ([]string, error) {
	return s.importer.ReadModFilePaths(profile, modName, root, normalize)
}

// ModSize returns the stored size of a mod in bytes
func (s *Service) ModSize(profile *domain.Profile, root bool, modName string) (int64, error) {
	return s.store.Size(profile.Name, root, modName)
}

// Deploy runs the deploy hooks around the deployment engine. A failing
// before_all hook aborts the deploy; a failing after_all hook is only logged.
func (s *Service) Deploy(ctx context.Context, profile *domain.Profile, opts DeployOptions, noHooks bool) error {
	game, err := s.Game(profile.GameID)
	if err != nil {
		return err
	}
	hc := s.hookContext(profile, game)

	if !noHooks {
		if err := s.hooks.RunNamed(ctx, game.Hooks, HookDeployBeforeAll, hc); err != nil {
			return err
		}
	}
	if err := s.deployer.Deploy(ctx, profile, game, opts); err != nil {
		return err
	}
	if !noHooks {
		if err := s.hooks.RunNamed(ctx, game.Hooks, HookDeployAfterAll, hc); err != nil {
			s.logger.Warn().Err(err).Msg("Hook failed after deploy")
		}
	}
	return nil
}

// Undeploy runs the undeploy hooks around the undeployment engine
func (s *Service) Undeploy(ctx context.Context, profile *domain.Profile, noHooks bool) error {
	game, err := s.Game(profile.GameID)
	if err != nil {
		return err
	}
	hc := s.hookContext(profile, game)

	if !noHooks {
		if err := s.hooks.RunNamed(ctx, game.Hooks, HookUndeployBeforeAll, hc); err != nil {
			return err
		}
	}
	if err := s.deployer.Undeploy(ctx, profile, game); err != nil {
		return err
	}
	if !noHooks {
		if err := s.hooks.RunNamed(ctx, game.Hooks, HookUndeployAfterAll, hc); err != nil {
			s.logger.Warn().Err(err).Msg("Hook failed after undeploy")
		}
	}
	return nil
}

func (s *Service) hookContext(profile *domain.Profile, game *domain.Game) HookContext {
	inst := profile.Installation(game)
	return HookContext{
		GameID:   game.ID,
		GamePath: inst.BaseDir,
		ModPath:  inst.ModDir,
		Profile:  profile.Name,
	}
}

// VerifyProfile checks a profile's settings, mods and plugins
func (s *Service) VerifyProfile(profile *domain.Profile) *ProfileVerification {
	return s.profiles.VerifyProfile(profile)
}

// DeploymentStatus describes what is deployed in a profile's mod directory
type DeploymentStatus struct {
	Profile         string
	ModDir          string
	DeployedProfile string         // Profile named by the marker, "" when nothing is deployed
	Files           int            // Paths in the deployment manifest
	Latest          *db.Deployment // Newest ledger row for the profile, nil when none
}

// Deployed reports whether the profile itself is the deployed one
func (st *DeploymentStatus) Deployed() bool {
	return st.DeployedProfile != "" && st.DeployedProfile == st.Profile
}

// Status reads the deployment marker and the newest ledger row of a profile
func (s *Service) Status(profile *domain.Profile) (*DeploymentStatus, error) {
	game, err := s.Game(profile.GameID)
	if err != nil {
		return nil, err
	}
	inst := profile.Installation(game)
	st := &DeploymentStatus{Profile: profile.Name, ModDir: inst.ModDir}

	if inst.ModDir != "" {
		meta, err := ReadMarker(inst.ModDir)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			st.DeployedProfile = meta.Profile
			st.Files = len(meta.ProfileModFiles)
		}
	}

	latest, err := s.db.LatestDeployment(game.ID, profile.Name)
	if err != nil {
		return nil, err
	}
	st.Latest = latest
	return st, nil
}

// Conflicts returns the paths mods lost during the profile's newest deployment
func (s *Service) Conflicts(profile *domain.Profile) ([]db.Conflict, error) {
	latest, err := s.db.LatestDeployment(profile.GameID, profile.Name)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotDeployed, profile.Name)
	}
	return s.db.ListConflicts(latest.ID)
}

// DeployedFiles returns the ledger's file ownership for a deployed profile
func (s *Service) DeployedFiles(profile *domain.Profile) ([]db.OwnedFile, error) {
	return s.db.ListDeployedFiles(profile.GameID, profile.Name)
}

// PluginListBackups returns the plugin list backups of the profile's game, newest first
func (s *Service) PluginListBackups(profile *domain.Profile) ([]string, error) {
	game, err := s.Game(profile.GameID)
	if err != nil {
		return nil, err
	}
	path := profile.Installation(game).PluginListPath
	if path == "" {
		return nil, fmt.Errorf("%w for profile %q", domain.ErrPluginListPath, profile.Name)
	}
	return PluginListBackups(path)
}

// RestorePluginBackup replaces the profile's load order with a backup's
func (s *Service) RestorePluginBackup(profile *domain.Profile, backupPath string) error {
	return s.profiles.RestorePluginBackup(profile, backupPath)
}
