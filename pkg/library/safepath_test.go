package library_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-mc/lodestone/pkg/library"
)

func TestNewSafePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
		want  string
	}{
		{"plain file", "config.toml", true, "config.toml"},
		{"nested", "mods/sodium.jar", true, "mods/sodium.jar"},
		{"backslashes normalized", `mods\sodium.jar`, true, "mods/sodium.jar"},
		{"redundant segments cleaned", "mods//./sodium.jar", true, "mods/sodium.jar"},
		{"empty", "", false, ""},
		{"dot", ".", false, ""},
		{"absolute", "/etc/passwd", false, ""},
		{"parent traversal", "../outside.jar", false, ""},
		{"embedded traversal", "mods/../../outside.jar", false, ""},
		{"reserved characters", "mods/what?.jar", false, ""},
		{"control characters", "mods/bad\x01name.jar", false, ""},
		{"trailing dot", "mods/trailing.", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp, ok := library.NewSafePath(tt.input)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, sp.String())
			}
		})
	}
}

func TestSafePathResolveStaysUnderBase(t *testing.T) {
	base := t.TempDir()
	sp, ok := library.NewSafePath("saves/world/level.dat")
	require.True(t, ok)

	resolved := sp.Resolve(base)
	rel, err := filepath.Rel(base, resolved)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("saves", "world", "level.dat"), rel)
}

func TestInstallPathAccessors(t *testing.T) {
	raw := library.RawInstallPath(filepath.Join("mods", "lithium.jar"))
	assert.Equal(t, ".jar", raw.Ext())
	assert.Equal(t, "lithium.jar", raw.FileName())

	sp, ok := library.NewSafePath("packs/base.mrpack")
	require.True(t, ok)
	safe := library.SafeInstallPath(sp)
	assert.Equal(t, ".mrpack", safe.Ext())
	assert.Equal(t, "base.mrpack", safe.FileName())
}
