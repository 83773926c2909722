package main

import (
	"testing"

	"github.com/DonovanMods/stellar-mod-loader/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModCmd_Structure(t *testing.T) {
	assert.Equal(t, "mod", modCmd.Use)

	var subCmds []string
	for _, cmd := range modCmd.Commands() {
		subCmds = append(subCmds, cmd.Name())
	}

	for _, name := range []string{"add", "import", "list", "enable", "disable", "move", "remove", "rename", "files"} {
		assert.Contains(t, subCmds, name)
	}
	assert.NotNil(t, modAddCmd.Flags().Lookup("option"))
	assert.NotNil(t, modImportCmd.Flags().Lookup("merge"))
	assert.NotNil(t, modListCmd.Flags().Lookup("root"))
}

func TestReadImportSettings(t *testing.T) {
	t.Cleanup(resetFlags)

	tests := []struct {
		name    string
		setup   func()
		errText string
	}{
		{name: "bad name", setup: func() { modName = "../escape" }, errText: "invalid mod name"},
		{name: "bad merge", setup: func() { modMerge = "squash" }, errText: "invalid merge strategy"},
		{name: "manual with options", setup: func() { modManual = true; modOptions = []string{"A/B=C"} }, errText: "cannot be combined"},
		{name: "bad option", setup: func() { modOptions = []string{"nothing"} }, errText: "invalid installer option"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			tt.setup()
			_, err := readImportSettings()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestReadImportSettings_Valid(t *testing.T) {
	t.Cleanup(resetFlags)
	resetFlags()
	modName = "Big Mod"
	modMerge = "ADD"
	modOptions = []string{"Main/Body=Athletic"}

	s, err := readImportSettings()
	require.NoError(t, err)
	assert.Equal(t, "Big Mod", s.name)
	assert.True(t, s.hasMerge)
	assert.Equal(t, domain.MergeAdd, s.merge)
	require.Len(t, s.options, 1)
	assert.Equal(t, "Body", s.options[0].Group)
}

func TestModAddCmd_NoArgs(t *testing.T) {
	newCLI(t)

	_, err := runCLI(t, "mod", "add")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
