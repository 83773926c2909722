package domain

import "errors"

var (
	ErrModNotFound        = errors.New("mod not found")
	ErrGameNotFound       = errors.New("game not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrProfileExists      = errors.New("profile already exists")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	ErrPluginListPath     = errors.New("unable to resolve plugin list path")
	ErrNotDeployed        = errors.New("profile is not deployed")
	ErrImportCanceled     = errors.New("import canceled")
	ErrImportFailed       = errors.New("import failed")
	ErrLinkFailed         = errors.New("link operation failed")
)
