package paths_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lodestone-mc/lodestone/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsesOverride(t *testing.T) {
	dir := t.TempDir()

	p, err := paths.New(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, p.Root())
	assert.Equal(t, filepath.Join(dir, "instances"), p.InstancesDir())
	assert.Equal(t, filepath.Join(dir, "contentlibrary"), p.ContentLibraryDir())
	assert.Equal(t, filepath.Join(dir, "contentmeta"), p.ContentMetaDir())
	assert.Equal(t, filepath.Join(dir, "config.toml"), p.ConfigFile())
}

func TestNewUsesEnvWhenNoOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(paths.EnvDataDir, dir)

	p, err := paths.New("")
	require.NoError(t, err)
	assert.Equal(t, dir, p.Root())
}

func TestEnsureLayoutCreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "launcher")

	p, err := paths.New(dir)
	require.NoError(t, err)
	require.NoError(t, p.EnsureLayout())

	for _, sub := range []string{p.InstancesDir(), p.ContentLibraryDir(), p.ContentMetaDir(), p.TempDir()} {
		info, err := os.Stat(sub)
		require.NoError(t, err, sub)
		assert.True(t, info.IsDir(), sub)
	}
}

func TestInstanceLayoutHelpers(t *testing.T) {
	root := filepath.Join("launcher", "instances", "skyblock")

	assert.Equal(t, filepath.Join(root, "info.json"), paths.InstanceInfoFile(root))
	assert.Equal(t, filepath.Join(root, ".minecraft", "saves"), paths.InstanceSavesDir(root))
	assert.Equal(t, filepath.Join(root, ".minecraft", "mods"), paths.InstanceModsDir(root))
	assert.Equal(t, filepath.Join(root, ".minecraft", "servers.dat"), paths.InstanceServersFile(root))
}
