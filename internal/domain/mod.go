package domain

import (
	"strings"

	"github.com/DonovanMods/stellar-mod-loader/internal/fomod"
)

// DeploymentMarkerName is the file written into the mod directory of a deployed profile
const DeploymentMarkerName = ".sml.json"

// DeploymentMetadata is the manifest of every path a deploy wrote for a profile.
// Relative paths are relative to the mod directory; absolute paths are used as-is.
// LinkMethod names how the files were placed; markers without it fall back to
// the profile's current method.
type DeploymentMetadata struct {
	Profile         string   `json:"profile"`
	LinkMethod      string   `json:"linkMethod,omitempty"`
	ProfileModFiles []string `json:"profileModFiles"`
}

// MergeStrategy controls how an import is combined with an existing mod of the same name
type MergeStrategy string

const (
	MergeReplace   MergeStrategy = "REPLACE"   // Remove the existing mod's files first
	MergeOverwrite MergeStrategy = "OVERWRITE" // Keep existing files, imported files win
	MergeAdd       MergeStrategy = "ADD"       // Keep existing files, only add new ones
)

// ParseMergeStrategy converts a string to MergeStrategy (default REPLACE)
func ParseMergeStrategy(s string) MergeStrategy {
	switch MergeStrategy(strings.ToUpper(s)) {
	case MergeOverwrite:
		return MergeOverwrite
	case MergeAdd:
		return MergeAdd
	default:
		return MergeReplace
	}
}

// ImportStatus tracks an in-progress import
type ImportStatus string

const (
	ImportPending       ImportStatus = "PENDING"
	ImportFailed        ImportStatus = "FAILED"
	ImportManualInstall ImportStatus = "MANUALINSTALL"
	ImportCanceled      ImportStatus = "CANCELED"
)

// ModFilePath is a candidate file of an import
type ModFilePath struct {
	FilePath       string // Relative to the import source root, OS separators
	Enabled        bool
	MappedFilePath string // Optional destination override, relative to the data root
}

// ModImportRequest describes an import between its begin and complete steps.
// It is never persisted.
type ModImportRequest struct {
	ProfileName   string
	Root          bool // Root mods install relative to the game base directory
	ModName       string
	ModPath       string // Staging directory, or the folder itself for external imports
	External      bool   // ModPath is a user folder and must not be removed
	FilePaths     []ModFilePath
	SubdirRoot    string           // Detected data root, stripped from destinations
	Installer     *fomod.Installer // Nil when the mod carries no FOMOD installer
	Plugins       []string         // Candidate plugin files, relative to ModPath
	FileMap       *fomod.FileMap   // Final source to destination mapping
	MergeStrategy MergeStrategy
	Status        ImportStatus
	Err           error // Reason for ImportFailed
}

// EnabledFiles returns the file paths the user kept enabled
func (r *ModImportRequest) EnabledFiles() []string {
	out := make([]string, 0, len(r.FilePaths))
	for _, f := range r.FilePaths {
		if f.Enabled {
			out = append(out, f.FilePath)
		}
	}
	return out
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
