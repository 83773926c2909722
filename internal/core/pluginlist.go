package core

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"
)

const (
	pluginBackupInfix = ".sml_bak."
	// DefaultPluginBackups is how many plugin list backups are kept
	DefaultPluginBackups = 5
)

// RenderPluginList serializes a plugin load order in the given list format.
// Asterisk lists every plugin and marks enabled ones with '*'; legacy lists
// only the enabled plugins.
func RenderPluginList(listType domain.PluginListType, profile string, plugins []domain.PluginRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# This file was generated automatically by sml for profile %q.\n", profile)
	b.WriteString("# Changes made here are overwritten on the next deploy.\n")
	for _, p := range plugins {
		switch listType {
		case domain.PluginListLegacy:
			if p.Enabled {
				b.WriteString(p.Plugin + "\n")
			}
		default:
			if p.Enabled {
				b.WriteString("*")
			}
			b.WriteString(p.Plugin + "\n")
		}
	}
	return b.String()
}

// ParsePluginList reads an asterisk or legacy plugin list. Comments and blank lines are skipped.
func ParsePluginList(data string) []domain.PluginRef {
	var refs []domain.PluginRef
	sc := bufio.NewScanner(strings.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		enabled := strings.HasPrefix(line, "*")
		refs = append(refs, domain.PluginRef{Plugin: strings.TrimPrefix(line, "*"), Enabled: enabled})
	}
	return refs
}

// writePluginList backs up any existing list at path, then writes the new one
func writePluginList(path string, listType domain.PluginListType, profile string, plugins []domain.PluginRef, keep int, now time.Time) error {
	if err := backupPluginList(path, keep, now); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating plugin list dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(RenderPluginList(listType, profile, plugins)), 0644); err != nil {
		return fmt.Errorf("writing plugin list: %w", err)
	}
	return nil
}

// backupPluginList copies an existing plugin list to <path>.sml_bak.<unixnano>
// and deletes all but the newest keep backups.
func backupPluginList(path string, keep int, now time.Time) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading existing plugin list: %w", err)
	}

	backup := path + pluginBackupInfix + strconv.FormatInt(now.UnixNano(), 10)
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return fmt.Errorf("backing up plugin list: %w", err)
	}

	backups, err := PluginListBackups(path)
	if err != nil {
		return err
	}
	for i := keep; i < len(backups); i++ {
		if err := os.Remove(backups[i]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("rotating plugin list backups: %w", err)
		}
	}
	return nil
}

// PluginListBackups returns the backups of the plugin list at path, newest first
func PluginListBackups(path string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing plugin list backups: %w", err)
	}

	type backup struct {
		path  string
		stamp int64
	}
	prefix := filepath.Base(path) + pluginBackupInfix
	var found []backup
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		stamp, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), prefix), 10, 64)
		if err != nil {
			continue
		}
		found = append(found, backup{filepath.Join(filepath.Dir(path), e.Name()), stamp})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].stamp > found[j].stamp })

	out := make([]string, len(found))
	for i, b := range found {
		out[i] = b.path
	}
	return out, nil
}
