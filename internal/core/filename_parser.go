package core

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ParsedFilename is what a NexusMods download name tells us about a mod
type ParsedFilename struct {
	ModID    string // NexusMods mod ID
	Version  string // Mod version, dashes turned into dots
	BaseName string // Mod name portion before the ID
}

// nexusPattern matches Name-ModID-Version.ext, e.g. SkyUI-12604-5-2SE.zip.
// The ID has at least two digits so it is not mistaken for a version part.
var nexusPattern = regexp.MustCompile(`^(.+?)-(\d{2,})-([^.]+)$`)

// timestampSuffix matches the upload timestamp NexusMods appends to versions
var timestampSuffix = regexp.MustCompile(`-\d{10,}$`)

// ParseNexusModsFilename extracts mod ID and version from a name like
// "SkyUI-12604-5-2SE.zip". Returns nil when the name does not follow the pattern.
func ParseNexusModsFilename(filename string) *ParsedFilename {
	stem := archiveStem(filename)
	if stem == filepath.Base(filename) {
		return nil // no archive extension
	}

	matches := nexusPattern.FindStringSubmatch(stem)
	if matches == nil {
		return nil
	}

	version := timestampSuffix.ReplaceAllString(matches[3], "")
	return &ParsedFilename{
		ModID:    matches[2],
		Version:  strings.ReplaceAll(version, "-", "."),
		BaseName: matches[1],
	}
}

// ModNameFromArchive derives the display name of a mod from its archive file name
func ModNameFromArchive(filename string) string {
	if parsed := ParseNexusModsFilename(filename); parsed != nil {
		return parsed.BaseName
	}
	return archiveStem(filename)
}

// archiveStem strips the archive extension, including double ones like .tar.gz
func archiveStem(filename string) string {
	base := filepath.Base(filename)
	lower := strings.ToLower(base)
	for _, ext := range []string{".tar.gz", ".tar.xz"} {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
