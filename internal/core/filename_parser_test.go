package core_test

import (
	"testing"

	"github.com/DonovanMods/stellar-mod-loader/internal/core"

	"github.com/stretchr/testify/assert"
)

func TestParseNexusModsFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     *core.ParsedFilename
	}{
		{
			name:     "standard nexusmods pattern",
			filename: "SkyUI-12604-5-2SE.zip",
			want:     &core.ParsedFilename{ModID: "12604", Version: "5.2SE", BaseName: "SkyUI"},
		},
		{
			name:     "pattern with underscores in name",
			filename: "SkyUI_5_2_SE-12604-5-2SE.zip",
			want:     &core.ParsedFilename{ModID: "12604", Version: "5.2SE", BaseName: "SkyUI_5_2_SE"},
		},
		{
			name:     "pattern with timestamp suffix",
			filename: "SKSE64-30379-2-2-6-1703618069.7z",
			want:     &core.ParsedFilename{ModID: "30379", Version: "2.2.6", BaseName: "SKSE64"},
		},
		{
			name:     "pattern with spaces replaced by dashes",
			filename: "Unofficial-Skyrim-Patch-266-4-3-0a.zip",
			want:     &core.ParsedFilename{ModID: "266", Version: "4.3.0a", BaseName: "Unofficial-Skyrim-Patch"},
		},
		{
			name:     "no pattern - simple name",
			filename: "my-cool-mod.zip",
			want:     nil,
		},
		{
			name:     "no pattern - no version after id",
			filename: "ModName-12345.zip",
			want:     nil,
		},
		{
			name:     "7z extension",
			filename: "TestMod-99999-1-0.7z",
			want:     &core.ParsedFilename{ModID: "99999", Version: "1.0", BaseName: "TestMod"},
		},
		{
			name:     "rar extension",
			filename: "TestMod-88888-2-1.rar",
			want:     &core.ParsedFilename{ModID: "88888", Version: "2.1", BaseName: "TestMod"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.ParseNexusModsFilename(tt.filename)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModNameFromArchive(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"SkyUI-12604-5-2SE.7z", "SkyUI"},
		{"/downloads/SKSE64-30379-2-2-6-1703618069.7z", "SKSE64"},
		{"my-cool-mod.zip", "my-cool-mod"},
		{"Better Armor.tar.gz", "Better Armor"},
		{"ModName-12345.zip", "ModName-12345"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, core.ModNameFromArchive(tt.filename))
		})
	}
}
