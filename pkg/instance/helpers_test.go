package instance_test

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lodestone-mc/lodestone/pkg/instance"
	"github.com/lodestone-mc/lodestone/pkg/nbt"
	"github.com/stretchr/testify/require"
)

// newTestInstance builds an instance directory with an info file and
// empty game subdirectories, then loads it.
func newTestInstance(t *testing.T) *instance.Instance {
	t.Helper()

	root := filepath.Join(t.TempDir(), "testinstance")
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".minecraft", "saves"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".minecraft", "mods"), 0755))

	info, err := json.Marshal(map[string]any{"minecraft_version": "1.21", "loader": "fabric"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "info.json"), info, 0644))

	inst, err := instance.LoadFromDir(root)
	require.NoError(t, err)
	return inst
}

// writeWorld creates a world folder with a gzip-compressed level.dat.
func writeWorld(t *testing.T, savesDir, folder, levelName string, lastPlayed int64) string {
	t.Helper()

	worldDir := filepath.Join(savesDir, folder)
	require.NoError(t, os.MkdirAll(worldDir, 0755))

	var raw bytes.Buffer
	gz := gzip.NewWriter(&raw)
	require.NoError(t, nbt.EncodeNamed(gz, "", nbt.Compound{
		"Data": nbt.Compound{
			"LastPlayed": lastPlayed,
			"LevelName":  levelName,
		},
	}))
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(filepath.Join(worldDir, "level.dat"), raw.Bytes(), 0644))
	return worldDir
}

// writeServers writes an uncompressed servers.dat.
func writeServers(t *testing.T, path string, servers ...nbt.Compound) {
	t.Helper()

	items := make([]any, 0, len(servers))
	for _, server := range servers {
		items = append(items, server)
	}

	var raw bytes.Buffer
	require.NoError(t, nbt.EncodeNamed(&raw, "", nbt.Compound{
		"servers": nbt.List{ElementType: nbt.TagCompound, Items: items},
	}))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, raw.Bytes(), 0644))
}

// writeJar creates a mod jar, optionally with fabric metadata.
func writeJar(t *testing.T, modsDir, fileName string, meta map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	if meta != nil {
		entry, err := archive.Create("fabric.mod.json")
		require.NoError(t, err)
		require.NoError(t, json.NewEncoder(entry).Encode(meta))
	}
	entry, err := archive.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	_, err = entry.Write([]byte("Manifest-Version: 1.0\n"))
	require.NoError(t, err)
	require.NoError(t, archive.Close())

	path := filepath.Join(modsDir, fileName)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

// finishWorlds drives a world load to publication.
func finishWorlds(t *testing.T, inst *instance.Instance) []instance.WorldSummary {
	t.Helper()

	var result []instance.WorldSummary
	require.Eventually(t, func() bool {
		worlds, ok := inst.FinishLoadWorlds()
		if ok {
			result = worlds
		}
		return ok
	}, 5*time.Second, 5*time.Millisecond)
	return result
}

// finishMods drives a mod load to publication.
func finishMods(t *testing.T, inst *instance.Instance) []instance.ModSummary {
	t.Helper()

	var result []instance.ModSummary
	require.Eventually(t, func() bool {
		mods, ok := inst.FinishLoadMods()
		if ok {
			result = mods
		}
		return ok
	}, 5*time.Second, 5*time.Millisecond)
	return result
}

// finishServers drives a server load to publication.
func finishServers(t *testing.T, inst *instance.Instance) []instance.ServerSummary {
	t.Helper()

	var result []instance.ServerSummary
	require.Eventually(t, func() bool {
		servers, ok := inst.FinishLoadServers()
		if ok {
			result = servers
		}
		return ok
	}, 5*time.Second, 5*time.Millisecond)
	return result
}
