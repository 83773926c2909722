package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"github.com/rs/zerolog"
)

// DefaultHookTimeout bounds a single hook script
const DefaultHookTimeout = 60 * time.Second

// Hook names passed to scripts in SML_HOOK
const (
	HookDeployBeforeAll   = "deploy.before_all"
	HookDeployAfterAll    = "deploy.after_all"
	HookUndeployBeforeAll = "undeploy.before_all"
	HookUndeployAfterAll  = "undeploy.after_all"
)

// HookContext is the environment a hook script runs with
type HookContext struct {
	GameID   string
	GamePath string // Game base directory
	ModPath  string // Game data directory
	Profile  string
	HookName string
}

// HookResult is the captured output of a hook script
type HookResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// HookRunner executes hook scripts with a timeout
type HookRunner struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewHookRunner creates a hook runner with the given timeout
func NewHookRunner(timeout time.Duration, logger zerolog.Logger) *HookRunner {
	return &HookRunner{timeout: timeout, logger: logger}
}

// Run executes a hook script and returns its output
func (r *HookRunner) Run(ctx context.Context, scriptPath string, hc HookContext) (*HookResult, error) {
	result := &HookResult{}

	info, err := os.Stat(scriptPath)
	if errors.Is(err, fs.ErrNotExist) {
		return result, fmt.Errorf("hook script not found: %s", scriptPath)
	}
	if err != nil {
		return result, fmt.Errorf("checking hook script: %w", err)
	}
	if info.Mode()&0111 == 0 {
		return result, fmt.Errorf("hook script not executable: %s", scriptPath)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, scriptPath)
	cmd.WaitDelay = 100 * time.Millisecond
	cmd.Env = append(os.Environ(),
		"SML_GAME_ID="+hc.GameID,
		"SML_GAME_PATH="+hc.GamePath,
		"SML_MOD_PATH="+hc.ModPath,
		"SML_PROFILE="+hc.Profile,
		"SML_HOOK="+hc.HookName,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().Str("hook", hc.HookName).Str("script", scriptPath).Msg("running hook")
	err = cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("hook timed out after %v: %s", r.timeout, scriptPath)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("hook failed with exit code %d: %s", result.ExitCode, scriptPath)
		}
		return result, fmt.Errorf("running hook: %w", err)
	}
	return result, nil
}

// RunNamed runs the script configured for name, if any. Missing scripts are a no-op.
func (r *HookRunner) RunNamed(ctx context.Context, hooks domain.GameHooks, name string, hc HookContext) error {
	script := HookScript(hooks, name)
	if script == "" {
		return nil
	}
	hc.HookName = name
	result, err := r.Run(ctx, script, hc)
	if result != nil && result.Stdout != "" {
		r.logger.Info().Str("hook", name).Msg(result.Stdout)
	}
	if err != nil {
		if result != nil && result.Stderr != "" {
			r.logger.Error().Str("hook", name).Msg(result.Stderr)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// HookScript returns the script configured for a hook name, or ""
func HookScript(hooks domain.GameHooks, name string) string {
	switch name {
	case HookDeployBeforeAll:
		return hooks.Deploy.BeforeAll
	case HookDeployAfterAll:
		return hooks.Deploy.AfterAll
	case HookUndeployBeforeAll:
		return hooks.Undeploy.BeforeAll
	case HookUndeployAfterAll:
		return hooks.Undeploy.AfterAll
	default:
		return ""
	}
}
