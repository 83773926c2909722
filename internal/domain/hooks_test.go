package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookConfig_IsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		config   HookConfig
		expected bool
	}{
		{"all empty", HookConfig{}, true},
		{"has before_all", HookConfig{BeforeAll: "/path/to/script"}, false},
		{"has after_all", HookConfig{AfterAll: "/path/to/script"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.IsEmpty())
		})
	}
}

func TestGameHooks_IsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		hooks    GameHooks
		expected bool
	}{
		{"all empty", GameHooks{}, true},
		{"has deploy hook", GameHooks{Deploy: HookConfig{BeforeAll: "/path"}}, false},
		{"has undeploy hook", GameHooks{Undeploy: HookConfig{AfterAll: "/path"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.hooks.IsEmpty())
		})
	}
}

func TestParseLinkMethod(t *testing.T) {
	tests := []struct {
		in   string
		want LinkMethod
	}{
		{"copy", LinkCopy},
		{"hardlink", LinkHardlink},
		{"symlink", LinkSymlink},
		{"", LinkCopy},
		{"bogus", LinkCopy},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLinkMethod(tt.in))
		})
	}
}
